package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/kbchat/internal/pkg/response"
)

type HealthHandler struct {
	version string
}

func NewHealthHandler(kbVersion string) *HealthHandler {
	return &HealthHandler{version: kbVersion}
}

func (h *HealthHandler) Get(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok", "kb_version": h.version})
}
