package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/kbchat/internal/chunker"
	"github.com/xxxsen/kbchat/internal/model"
)

const (
	DefaultBatchSize         = 100
	DefaultMetadataTextBytes = 1000
	progressEvery            = 10
)

var ErrNoChunks = errors.New("no chunks to index")

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Store interface {
	EnsureBucket(ctx context.Context) error
	RecreateIndex(ctx context.Context, dimension int) error
	PutEntries(ctx context.Context, entries []model.IndexEntry) error
}

type Options struct {
	ChunkSize         int
	ChunkOverlap      int
	BatchSize         int
	MetadataTextBytes int
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = chunker.DefaultChunkSize
		if o.ChunkOverlap == 0 {
			o.ChunkOverlap = chunker.DefaultOverlap
		}
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MetadataTextBytes <= 0 {
		o.MetadataTextBytes = DefaultMetadataTextBytes
	}
	return o
}

type Builder struct {
	embedder Embedder
	store    Store
	opts     Options
}

func NewBuilder(embedder Embedder, store Store, opts Options) *Builder {
	return &Builder{embedder: embedder, store: store, opts: opts.withDefaults()}
}

// Build replaces the vector index with one entry per chunk of docs and returns
// the number of vectors uploaded. The previous index is deleted before any
// new vector is written, so a failed build leaves the index empty or partial.
func (b *Builder) Build(ctx context.Context, docs []model.Document) (int, error) {
	logger := logutil.GetLogger(ctx)
	chunks, err := chunker.Chunk(ctx, docs, b.opts.ChunkSize, b.opts.ChunkOverlap)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, ErrNoChunks
	}
	if err := b.store.EnsureBucket(ctx); err != nil {
		return 0, fmt.Errorf("ensure vector bucket: %w", err)
	}

	first, err := b.embedder.Embed(ctx, chunks[0].Text)
	if err != nil {
		return 0, fmt.Errorf("embed chunk 0: %w", err)
	}
	if len(first) == 0 {
		return 0, fmt.Errorf("embed chunk 0: empty vector")
	}
	dimension := len(first)
	logger.Info("embedding dimension detected", zap.Int("dimension", dimension))
	if err := b.store.RecreateIndex(ctx, dimension); err != nil {
		return 0, fmt.Errorf("recreate index: %w", err)
	}

	entries := make([]model.IndexEntry, 0, len(chunks))
	for i, c := range chunks {
		vec := first
		if i > 0 {
			vec, err = b.embedder.Embed(ctx, c.Text)
			if err != nil {
				return 0, fmt.Errorf("embed chunk %d: %w", i, err)
			}
		}
		entries = append(entries, model.IndexEntry{
			Key:      EntryKey(i),
			Vector:   vec,
			Metadata: b.metadata(c),
		})
		if (i+1)%progressEvery == 0 {
			logger.Info("embedding progress", zap.Int("done", i+1), zap.Int("total", len(chunks)))
		}
	}

	batches := (len(entries) + b.opts.BatchSize - 1) / b.opts.BatchSize
	for n, start := 0, 0; start < len(entries); n, start = n+1, start+b.opts.BatchSize {
		end := start + b.opts.BatchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := b.store.PutEntries(ctx, entries[start:end]); err != nil {
			return 0, fmt.Errorf("upload batch %d/%d: %w", n+1, batches, err)
		}
		logger.Info("batch uploaded", zap.Int("batch", n+1), zap.Int("batches", batches), zap.Int("vectors", end-start))
	}
	logger.Info("index build completed", zap.Int("vectors", len(entries)), zap.Int("documents", len(docs)))
	return len(entries), nil
}

func (b *Builder) metadata(c model.Chunk) map[string]string {
	return map[string]string{
		model.MetaText:       TruncateBytes(c.Text, b.opts.MetadataTextBytes),
		model.MetaSource:     c.Source,
		model.MetaChunkIndex: strconv.Itoa(c.Index),
		model.MetaStart:      strconv.Itoa(c.Start),
		model.MetaEnd:        strconv.Itoa(c.End),
	}
}

func EntryKey(i int) string {
	return fmt.Sprintf("chunk_%05d", i)
}

// TruncateBytes cuts s to at most limit bytes without splitting a rune.
func TruncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
