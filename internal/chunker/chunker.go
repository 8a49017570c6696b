package chunker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/kbchat/internal/model"
)

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

var ErrInvalidConfig = errors.New("invalid chunker config")

// Chunk splits every document into fixed-size windows of chunkSize characters
// advancing by chunkSize-overlap. Windows stop once one reaches the end of the
// document. Whitespace-only windows are dropped and do not consume an index.
func Chunk(ctx context.Context, docs []model.Document, chunkSize, overlap int) ([]model.Chunk, error) {
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk_size=%d overlap=%d", ErrInvalidConfig, chunkSize, overlap)
	}
	logger := logutil.GetLogger(ctx)
	stride := chunkSize - overlap

	var chunks []model.Chunk
	for _, doc := range docs {
		runes := []rune(doc.Content)
		total := len(runes)
		index := 0
		for start := 0; start < total; start += stride {
			end := start + chunkSize
			if end > total {
				end = total
			}
			text := string(runes[start:end])
			if strings.TrimSpace(text) != "" {
				chunks = append(chunks, model.Chunk{
					Source: doc.Path,
					Text:   text,
					Index:  index,
					Start:  start,
					End:    end,
				})
				index++
			}
			if end == total {
				break
			}
		}
		logger.Debug("document chunked", zap.String("source", doc.Path), zap.Int("chars", total), zap.Int("chunks", index))
	}
	logger.Info("chunking completed",
		zap.Int("documents", len(docs)),
		zap.Int("total_chunks", len(chunks)),
		zap.Int("chunk_size", chunkSize),
		zap.Int("overlap", overlap),
	)
	return chunks, nil
}
