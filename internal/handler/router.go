package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Chat   *ChatHandler
	Health *HealthHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.Use(Recovery())
	api.POST("/chat/completions", deps.Chat.Complete)
	api.OPTIONS("/chat/completions", deps.Chat.Preflight)
	api.GET("/healthz", deps.Health.Get)
}
