package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3vectors"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/kbchat/internal/ai"
	"github.com/xxxsen/kbchat/internal/awsutil"
	"github.com/xxxsen/kbchat/internal/chunker"
	"github.com/xxxsen/kbchat/internal/config"
	"github.com/xxxsen/kbchat/internal/corpus"
	"github.com/xxxsen/kbchat/internal/indexer"
	"github.com/xxxsen/kbchat/internal/vectorstore"
)

func main() {
	var (
		configPath string
		contentDir string
		dryRun     bool
	)

	rootCmd := &cobra.Command{
		Use:   "kbindex",
		Short: "knowledge base vector index tool",
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "rebuild the vector index from the markdown corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			if contentDir != "" {
				cfg.Corpus.Type = "local"
				cfg.Corpus.Dir = contentDir
			}
			if err := cfg.ValidateIndexer(); err != nil {
				return err
			}
			return runBuild(cmd.Context(), cfg, dryRun)
		},
	}

	buildCmd.Flags().StringVar(&configPath, "config", "", "path to config.json, optional when configured by env")
	buildCmd.Flags().StringVar(&contentDir, "content-dir", "", "local markdown directory, overrides corpus settings")
	buildCmd.Flags().BoolVar(&dryRun, "dry-run", false, "load and chunk the corpus without touching the index")
	rootCmd.AddCommand(buildCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("index build failed", zap.Error(err))
	}
}

func runBuild(ctx context.Context, cfg *config.Config, dryRun bool) error {
	start := time.Now()
	log := logutil.GetLogger(ctx).With(
		zap.String("corpus", cfg.Corpus.Type),
		zap.String("vector_bucket", cfg.VectorIndex.Bucket),
		zap.String("vector_index", cfg.VectorIndex.Index),
	)
	log.Info("index build started")

	source, err := corpus.New(cfg.Corpus, cfg.AWS)
	if err != nil {
		return fmt.Errorf("init corpus: %w", err)
	}
	docs, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no markdown documents found")
	}

	if dryRun {
		chunks, err := chunker.Chunk(ctx, docs, cfg.Corpus.ChunkSize, cfg.Corpus.ChunkOverlap)
		if err != nil {
			return err
		}
		log.Info("dry run completed", zap.Int("documents", len(docs)), zap.Int("chunks", len(chunks)))
		return nil
	}

	awsCfg, err := awsutil.Load(ctx, cfg.AWSOptions())
	if err != nil {
		return err
	}
	provider, err := ai.NewProvider(cfg.Embedding.Provider, cfg.ProviderArgs(cfg.Embedding))
	if err != nil {
		return fmt.Errorf("init embedding provider: %w", err)
	}
	store := vectorstore.NewS3VectorsStore(
		s3vectors.NewFromConfig(awsCfg),
		cfg.VectorIndex.Bucket,
		cfg.VectorIndex.Index,
		cfg.VectorIndex.DistanceMetric,
	)
	embedder := ai.NewEmbedder(provider, cfg.Embedding.Model)
	log.Info("embedding provider ready", zap.String("provider", provider.Name()), zap.String("embedding_model", embedder.ModelName()))
	builder := indexer.NewBuilder(embedder, store, indexer.Options{
		ChunkSize:         cfg.Corpus.ChunkSize,
		ChunkOverlap:      cfg.Corpus.ChunkOverlap,
		BatchSize:         cfg.Corpus.BatchSize,
		MetadataTextBytes: cfg.Corpus.MetadataTextBytes,
	})
	count, err := builder.Build(ctx, docs)
	if err != nil {
		return err
	}
	log.Info("index build finished",
		zap.Int("documents", len(docs)),
		zap.Int("vectors", count),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
