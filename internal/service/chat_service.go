package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/kbchat/internal/ai"
	"github.com/xxxsen/kbchat/internal/analytics"
	"github.com/xxxsen/kbchat/internal/model"
	appErr "github.com/xxxsen/kbchat/internal/pkg/errors"
)

const (
	DefaultModel       = "claude-3-5-sonnet"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000

	completionObject = "chat.completion"
	finishReasonStop = "stop"
)

type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) Retrieval
}

type ChatOptions struct {
	DefaultModel       string
	DefaultTemperature *float64 // nil selects DefaultTemperature; 0 is honored
	DefaultMaxTokens   int
	MaxQueryTurns      int
	TopK               int
	KBVersion          string
	AnalyticsTTLDays   int
}

func (o ChatOptions) withDefaults() ChatOptions {
	if o.DefaultModel == "" {
		o.DefaultModel = DefaultModel
	}
	temperature := DefaultTemperature
	if o.DefaultTemperature != nil {
		temperature = *o.DefaultTemperature
	}
	o.DefaultTemperature = &temperature
	if o.DefaultMaxTokens <= 0 {
		o.DefaultMaxTokens = DefaultMaxTokens
	}
	if o.MaxQueryTurns <= 0 {
		o.MaxQueryTurns = DefaultQueryTurns
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.KBVersion == "" {
		o.KBVersion = DefaultKBVersion
	}
	if o.AnalyticsTTLDays <= 0 {
		o.AnalyticsTTLDays = analytics.DefaultTTLDays
	}
	return o
}

type ChatService struct {
	llm       ai.IChatModel
	retriever ContextRetriever
	recorder  analytics.Recorder
	opts      ChatOptions
	now       func() time.Time
}

// NewChatService wires the request pipeline. recorder may be nil to disable
// analytics.
func NewChatService(llm ai.IChatModel, retriever ContextRetriever, recorder analytics.Recorder, opts ChatOptions) *ChatService {
	return &ChatService{
		llm:       llm,
		retriever: retriever,
		recorder:  recorder,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

func (s *ChatService) Complete(ctx context.Context, req *model.ChatRequest) (*model.ChatCompletion, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, appErr.Invalid("messages field is required")
	}
	userMsg, ok := model.LastUserMessage(req.Messages)
	if !ok {
		return nil, appErr.Invalid("No user message found")
	}
	modelName := req.Model
	if modelName == "" {
		modelName = s.opts.DefaultModel
	}
	temperature := *s.opts.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := s.opts.DefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	logger := logutil.GetLogger(ctx).With(zap.String("model", modelName), zap.Int("messages", len(req.Messages)))

	query := BuildQuery(req.Messages, s.opts.MaxQueryTurns)
	logger.Info("retrieving context", zap.Int("query_len", len(query)))
	retrieval := s.retriever.Retrieve(ctx, query, s.opts.TopK)
	if retrieval.Degraded() {
		logger.Warn("answering without context", zap.Error(retrieval.Err))
	}

	enhanced := InjectContext(req.Messages, retrieval.Context, s.opts.KBVersion)
	system, turns := SplitSystem(enhanced)
	logger.Info("calling llm", zap.Int("turns", len(turns)), zap.Int("system_blocks", len(system)))
	reply, err := s.llm.Chat(ctx, &ai.ChatRequest{
		System:      system,
		Messages:    turns,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		logger.Error("llm call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", appErr.ErrLLM, err)
	}

	if s.recorder != nil {
		rec := analytics.NewRecord(userMsg.Content, reply, retrieval.Context, s.opts.AnalyticsTTLDays, s.now())
		if err := s.recorder.Record(ctx, rec); err != nil {
			logger.Warn("record analytics failed", zap.Error(err))
		}
	}

	return &model.ChatCompletion{
		ID:      newCompletionID(),
		Object:  completionObject,
		Created: s.now().Unix(),
		Model:   modelName,
		Choices: []model.ChatChoice{
			{
				Index:        0,
				Message:      model.Message{Role: model.RoleAssistant, Content: reply},
				FinishReason: finishReasonStop,
			},
		},
		Usage: model.ChatUsage{},
	}, nil
}
