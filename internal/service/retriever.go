package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/kbchat/internal/model"
)

const DefaultTopK = 5

type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorSearcher interface {
	Query(ctx context.Context, vector []float32, topK int) ([]model.RetrievalHit, error)
}

// Retrieval is the outcome of a context lookup. Err is set when the lookup
// failed; Context is then empty and the caller proceeds without grounding.
type Retrieval struct {
	Context string
	Hits    int
	Err     error
}

func (r Retrieval) Degraded() bool {
	return r.Err != nil
}

type Retriever struct {
	embedder QueryEmbedder
	index    VectorSearcher
}

func NewRetriever(embedder QueryEmbedder, index VectorSearcher) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) Retrieval {
	logger := logutil.GetLogger(ctx).With(zap.Int("query_len", len(query)), zap.Int("top_k", topK))
	if topK <= 0 {
		topK = DefaultTopK
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		logger.Error("embed query failed, continue without context", zap.Error(err))
		return Retrieval{Err: fmt.Errorf("embed query: %w", err)}
	}
	hits, err := r.index.Query(ctx, vec, topK)
	if err != nil {
		logger.Error("vector query failed, continue without context", zap.Error(err))
		return Retrieval{Err: err}
	}
	if len(hits) == 0 {
		logger.Warn("no matches found in vector index")
		return Retrieval{}
	}
	text := RenderContext(hits)
	logger.Info("context retrieved", zap.Int("hits", len(hits)), zap.Int("context_len", len(text)))
	return Retrieval{Context: text, Hits: len(hits)}
}

// RenderContext formats hits in rank order. Hits without text keep their rank
// but are left out.
func RenderContext(hits []model.RetrievalHit) string {
	var lines []string
	for i, hit := range hits {
		text := hit.Metadata[model.MetaText]
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[Document %d] (Distance: %.3f)", i+1, hit.Distance))
		if source := hit.Metadata[model.MetaSource]; source != "" {
			lines = append(lines, "Source: "+source)
		}
		lines = append(lines, text, "")
	}
	return strings.Join(lines, "\n")
}
