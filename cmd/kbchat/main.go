package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/kbchat/internal/ai"
	"github.com/xxxsen/kbchat/internal/analytics"
	"github.com/xxxsen/kbchat/internal/awsutil"
	"github.com/xxxsen/kbchat/internal/config"
	"github.com/xxxsen/kbchat/internal/handler"
	"github.com/xxxsen/kbchat/internal/middleware"
	"github.com/xxxsen/kbchat/internal/service"
	"github.com/xxxsen/kbchat/internal/vectorstore"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "kbchat",
		Short: "knowledge base chat completion service",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			chat, err := buildChatService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return runServer(cfg, chat)
		},
	}

	lambdaCmd := &cobra.Command{
		Use:   "lambda",
		Short: "serve requests from the aws lambda runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			chat, err := buildChatService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			logutil.GetLogger(context.Background()).Info("starting lambda handler", zap.String("model", cfg.LLM.Model))
			lambda.Start(handler.NewLambdaHandler(chat).Handle)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json, optional when configured by env")
	rootCmd.AddCommand(runCmd, lambdaCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func buildChatService(ctx context.Context, cfg *config.Config) (*service.ChatService, error) {
	awsCfg, err := awsutil.Load(ctx, cfg.AWSOptions())
	if err != nil {
		return nil, err
	}
	llmProvider, err := ai.NewProvider(cfg.LLM.Provider, cfg.ProviderArgs(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	embedProvider, err := ai.NewProvider(cfg.Embedding.Provider, cfg.ProviderArgs(cfg.Embedding))
	if err != nil {
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}
	store := vectorstore.NewS3VectorsStore(
		s3vectors.NewFromConfig(awsCfg),
		cfg.VectorIndex.Bucket,
		cfg.VectorIndex.Index,
		cfg.VectorIndex.DistanceMetric,
	)
	embedder := ai.NewEmbedder(embedProvider, cfg.Embedding.Model)
	chatModel := ai.NewChatModel(llmProvider, cfg.LLM.Model)
	retriever := service.NewRetriever(embedder, store)

	var recorder analytics.Recorder
	if cfg.Analytics.Table != "" {
		recorder = analytics.NewDynamoRecorder(dynamodb.NewFromConfig(awsCfg), cfg.Analytics.Table)
	}
	logutil.GetLogger(ctx).Info("chat service configured",
		zap.String("llm_provider", llmProvider.Name()),
		zap.String("llm_model", chatModel.ModelName()),
		zap.String("embedding_provider", embedProvider.Name()),
		zap.String("embedding_model", embedder.ModelName()),
		zap.String("vector_bucket", cfg.VectorIndex.Bucket),
		zap.String("vector_index", cfg.VectorIndex.Index),
		zap.Bool("analytics", recorder != nil),
	)
	return service.NewChatService(chatModel, retriever, recorder, service.ChatOptions{
		DefaultModel:       cfg.Chat.DefaultModel,
		DefaultTemperature: &cfg.Chat.DefaultTemperature,
		DefaultMaxTokens:   cfg.Chat.DefaultMaxTokens,
		MaxQueryTurns:      cfg.Chat.MaxQueryTurns,
		TopK:               cfg.VectorIndex.MaxResults,
		KBVersion:          cfg.Chat.KBVersion,
		AnalyticsTTLDays:   cfg.Analytics.TTLDays,
	}), nil
}

func runServer(cfg *config.Config, chat *service.ChatService) error {
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	deps := handler.RouterDeps{
		Chat:   handler.NewChatHandler(chat),
		Health: handler.NewHealthHandler(cfg.Chat.KBVersion),
	}
	engine, err := webapi.NewEngine(
		"/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORS),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
