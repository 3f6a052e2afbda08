package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the relay's public API.
func RegisterRoutes(r gin.IRouter, handler *Handler) {
	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/chat", handler.Chat)
		apiGroup.GET("/history", handler.History)
		apiGroup.GET("/health", handler.Health)
	}
}
