package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/kbchat/internal/middleware"
	"github.com/xxxsen/kbchat/internal/model"
	appErr "github.com/xxxsen/kbchat/internal/pkg/errors"
)

type fakeCompleter struct {
	req  *model.ChatRequest
	resp *model.ChatCompletion
	err  error
}

func (f *fakeCompleter) Complete(ctx context.Context, req *model.ChatRequest) (*model.ChatCompletion, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &model.ChatCompletion{
		ID:      "chatcmpl-000000000000",
		Object:  "chat.completion",
		Model:   "claude-3-5-sonnet",
		Choices: []model.ChatChoice{{Message: model.Message{Role: model.RoleAssistant, Content: "hi there"}, FinishReason: "stop"}},
	}, nil
}

type panicCompleter struct{}

func (panicCompleter) Complete(ctx context.Context, req *model.ChatRequest) (*model.ChatCompletion, error) {
	panic("boom")
}

func newTestRouter(chat ChatCompleter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.CORS(nil))
	RegisterRoutes(r.Group("/v1"), RouterDeps{
		Chat:   NewChatHandler(chat),
		Health: NewHealthHandler("v1"),
	})
	return r
}

func doPost(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorDetail {
	t.Helper()
	var body model.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestChatCompleteSuccess(t *testing.T) {
	fake := &fakeCompleter{}
	w := doPost(newTestRouter(fake), `{"messages":[{"role":"user","content":"hello"}],"temperature":0,"max_tokens":10}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var resp model.ChatCompletion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "hi there", resp.Choices[0].Message.Content)
	require.Equal(t, "hello", fake.req.Messages[0].Content)
	require.NotNil(t, fake.req.Temperature)
	require.Equal(t, 0.0, *fake.req.Temperature)
	require.Equal(t, 10, *fake.req.MaxTokens)
}

func TestChatCompleteUnwrapsEventBody(t *testing.T) {
	cases := []string{
		`{"body":"{\"messages\":[{\"role\":\"user\",\"content\":\"wrapped\"}]}"}`,
		`{"body":{"messages":[{"role":"user","content":"wrapped"}]}}`,
	}
	for i, body := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			fake := &fakeCompleter{}
			w := doPost(newTestRouter(fake), body)
			require.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, "wrapped", fake.req.Messages[0].Content)
		})
	}
}

func TestChatCompleteValidationError(t *testing.T) {
	fake := &fakeCompleter{err: appErr.Invalid("messages field is required")}
	w := doPost(newTestRouter(fake), `{"messages":[]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	detail := decodeError(t, w)
	require.Equal(t, "messages field is required", detail.Message)
	require.Equal(t, "invalid_request_error", detail.Type)
	require.Equal(t, 400, detail.Code)
}

func TestChatCompleteMalformedJSON(t *testing.T) {
	fake := &fakeCompleter{}
	w := doPost(newTestRouter(fake), `{"messages":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Nil(t, fake.req)
}

func TestChatCompleteLLMError(t *testing.T) {
	fake := &fakeCompleter{err: fmt.Errorf("%w: %w", appErr.ErrLLM, errors.New("throttled"))}
	w := doPost(newTestRouter(fake), `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	detail := decodeError(t, w)
	require.True(t, strings.HasPrefix(detail.Message, "Internal server error: "))
	require.Contains(t, detail.Message, "throttled")
	require.Equal(t, 500, detail.Code)
}

func TestChatCompleteUnexpectedErrorIsGeneric(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("nil pointer somewhere")}
	w := doPost(newTestRouter(fake), `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "Internal server error", decodeError(t, w).Message)
}

func TestChatPreflight(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(&fakeCompleter{}).ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	require.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(&fakeCompleter{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok","kb_version":"v1"}`, w.Body.String())
}

func TestChatCompletePanicReturnsEnvelope(t *testing.T) {
	w := doPost(newTestRouter(panicCompleter{}), `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":{"message":"Internal server error","type":"invalid_request_error","code":500}}`, w.Body.String())
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.NotContains(t, w.Body.String(), "boom")
}

func TestErrorStatusInternal(t *testing.T) {
	code, msg := errorStatus(appErr.ErrInternal)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "Internal server error", msg)
}

func TestChatCompleteBodyTooLarge(t *testing.T) {
	chat := &fakeCompleter{}
	padding := strings.Repeat("a", maxBodyBytes)
	w := doPost(newTestRouter(chat), `{"messages":[{"role":"user","content":"`+padding+`"}]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	detail := decodeError(t, w)
	require.Equal(t, "request body too large", detail.Message)
	require.Equal(t, http.StatusBadRequest, detail.Code)
	require.Nil(t, chat.req)
}

func TestChatCompleteBodyAtLimit(t *testing.T) {
	chat := &fakeCompleter{}
	prefix, suffix := `{"messages":[{"role":"user","content":"`, `"}]}`
	padding := strings.Repeat("a", maxBodyBytes-len(prefix)-len(suffix))
	w := doPost(newTestRouter(chat), prefix+padding+suffix)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, chat.req.Messages[0].Content, len(padding))
}
