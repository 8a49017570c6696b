package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/kbchat/internal/model"
	appErr "github.com/xxxsen/kbchat/internal/pkg/errors"
	"github.com/xxxsen/kbchat/internal/pkg/response"
)

const maxBodyBytes = 4 << 20

type ChatCompleter interface {
	Complete(ctx context.Context, req *model.ChatRequest) (*model.ChatCompletion, error)
}

type ChatHandler struct {
	chat ChatCompleter
}

func NewChatHandler(chat ChatCompleter) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) Complete(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		handleError(c, appErr.Invalid("invalid request body"))
		return
	}
	if len(raw) > maxBodyBytes {
		handleError(c, appErr.Invalid("request body too large"))
		return
	}
	req, err := decodeChatRequest(raw)
	if err != nil {
		handleError(c, err)
		return
	}
	resp, err := h.chat.Complete(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resp)
}

func (h *ChatHandler) Preflight(c *gin.Context) {
	c.AbortWithStatus(http.StatusNoContent)
}

// decodeChatRequest accepts the request body itself or an invocation event
// carrying it under "body", either as a JSON string or as an object.
func decodeChatRequest(raw []byte) (*model.ChatRequest, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, appErr.Invalid("invalid JSON body")
	}
	if body, ok := envelope["body"]; ok {
		var text string
		if err := json.Unmarshal(body, &text); err == nil {
			raw = []byte(text)
		} else {
			raw = body
		}
	}
	req := &model.ChatRequest{}
	if err := json.Unmarshal(raw, req); err != nil {
		return nil, appErr.Invalid("invalid JSON body")
	}
	return req, nil
}
