package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/trace"
	"go.uber.org/zap"

	"github.com/xxxsen/kbchat/internal/middleware"
	appErr "github.com/xxxsen/kbchat/internal/pkg/errors"
	"github.com/xxxsen/kbchat/internal/pkg/response"
)

type lambdaEvent struct {
	HTTPMethod     string `json:"httpMethod"`
	RequestContext struct {
		HTTP struct {
			Method string `json:"method"`
		} `json:"http"`
	} `json:"requestContext"`
	Body            json.RawMessage `json:"body"`
	IsBase64Encoded bool            `json:"isBase64Encoded"`
}

func (e *lambdaEvent) method() string {
	if e.HTTPMethod != "" {
		return e.HTTPMethod
	}
	return e.RequestContext.HTTP.Method
}

// LambdaHandler serves chat completions from API Gateway proxy events and
// from direct invocations whose payload is the request body itself.
type LambdaHandler struct {
	chat ChatCompleter
}

func NewLambdaHandler(chat ChatCompleter) *LambdaHandler {
	return &LambdaHandler{chat: chat}
}

func (h *LambdaHandler) Handle(ctx context.Context, payload json.RawMessage) (resp events.APIGatewayProxyResponse, err error) {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		ctx = trace.WithTraceId(ctx, lc.AwsRequestID)
	}
	defer func() {
		if r := recover(); r != nil {
			logutil.GetLogger(ctx).Error("invocation panic", zap.Any("panic", r), zap.String("stack", string(debug.Stack())))
			resp, err = h.fail(ctx, fmt.Errorf("%w: panic: %v", appErr.ErrInternal, r)), nil
		}
	}()
	var event lambdaEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return h.fail(ctx, appErr.Invalid("invalid JSON body")), nil
	}
	if event.method() == http.MethodOptions {
		return proxyResponse(http.StatusNoContent, ""), nil
	}
	raw := []byte(payload)
	if event.IsBase64Encoded {
		var encoded string
		if err := json.Unmarshal(event.Body, &encoded); err != nil {
			return h.fail(ctx, appErr.Invalid("invalid request body")), nil
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return h.fail(ctx, appErr.Invalid("invalid base64 body")), nil
		}
		raw = decoded
	}
	req, err := decodeChatRequest(raw)
	if err != nil {
		return h.fail(ctx, err), nil
	}
	completion, err := h.chat.Complete(ctx, req)
	if err != nil {
		return h.fail(ctx, err), nil
	}
	body, err := json.Marshal(completion)
	if err != nil {
		return h.fail(ctx, err), nil
	}
	logutil.GetLogger(ctx).Info("chat completion served", zap.Int("reply_len", len(completion.Choices[0].Message.Content)))
	return proxyResponse(http.StatusOK, string(body)), nil
}

func (h *LambdaHandler) fail(ctx context.Context, err error) events.APIGatewayProxyResponse {
	code, msg := errorStatus(err)
	logger := logutil.GetLogger(ctx).With(zap.Int("status", code), zap.Error(err))
	if code >= http.StatusInternalServerError {
		logger.Error("invocation failed")
	} else {
		logger.Warn("invocation rejected")
	}
	body, _ := json.Marshal(response.ErrorBody(code, msg))
	return proxyResponse(code, string(body))
}

func proxyResponse(code int, body string) events.APIGatewayProxyResponse {
	headers := middleware.CORSHeaders()
	if body != "" {
		headers["Content-Type"] = "application/json"
	}
	return events.APIGatewayProxyResponse{
		StatusCode: code,
		Headers:    headers,
		Body:       body,
	}
}
