package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ai-interface/backend/n8n"
	"ai-interface/backend/pkg/logger"
	"ai-interface/backend/relay/service"

	"github.com/gin-gonic/gin"
)

// ChatRequest is the body of POST /api/chat. Everything is optional; the
// upstream payload defaults are applied further down.
type ChatRequest struct {
	ChatInput string               `json:"chatInput"`
	Files     []n8n.FileAttachment `json:"files"`
	SessionID string               `json:"sessionId"`
}

// Handler serves the relay's public endpoints.
type Handler struct {
	service *service.ChatService
}

// NewHandler creates the endpoint handler.
func NewHandler(svc *service.ChatService) *Handler {
	return &Handler{service: svc}
}

// Chat relays one user turn to the workflow engine.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	log := logger.FromContext(c)
	log.Info("chat turn received",
		"chat_input_len", len(req.ChatInput),
		"files", len(req.Files),
		"session_id", req.SessionID,
	)

	result, err := h.service.HandleTurn(c.Request.Context(), service.ChatTurn{
		ChatInput: req.ChatInput,
		Files:     req.Files,
		SessionID: req.SessionID,
	})
	if err != nil {
		message, details := describeUpstreamError(err)
		log.LogError(err, "chat turn failed", "session_id", req.SessionID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   message,
			"details": details,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"response":  result.Response,
		"sessionId": result.SessionID,
	})
}

// History returns the persisted transcript for a session.
func (h *Handler) History(c *gin.Context) {
	sessionID := c.Query("sessionId")

	messages, err := h.service.History(c.Request.Context(), sessionID)
	if err != nil {
		logger.FromContext(c).LogError(err, "history query failed", "session_id", sessionID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": messages,
	})
}

// Health reports whether the workflow engine is reachable. The relay itself
// is by definition running, so this always answers 200.
func (h *Handler) Health(c *gin.Context) {
	statusCode, err := h.service.UpstreamHealth(c.Request.Context())

	switch {
	case err != nil:
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"n8n":     gin.H{"status": "disconnected", "error": err.Error()},
			"server":  "running",
		})
	case statusCode < 200 || statusCode >= 300:
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"n8n":     gin.H{"status": "disconnected", "error": fmt.Sprintf("n8n health check returned status %d", statusCode)},
			"server":  "running",
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"n8n":     gin.H{"status": "connected", "statusCode": statusCode},
			"server":  "running",
		})
	}
}

// describeUpstreamError maps a classified workflow failure to the
// user-facing message and details of the error envelope.
func describeUpstreamError(err error) (message, details string) {
	var upstreamErr *n8n.Error
	if !errors.As(err, &upstreamErr) {
		return "Failed to process request", ""
	}

	switch upstreamErr.Kind {
	case n8n.KindHTTP:
		message = fmt.Sprintf("n8n returned %d: %s", upstreamErr.StatusCode, upstreamErr.Status)
		// Raw upstream bodies are surfaced when they are JSON, matching
		// the behavior clients already depend on.
		body := bytes.TrimSpace(upstreamErr.Body)
		if len(body) > 0 && (body[0] == '{' || body[0] == '[') && json.Valid(body) {
			details = string(body)
		}
	case n8n.KindUnreachable:
		message = "No response received from n8n workflow. Please check if n8n is running."
		details = upstreamErr.Err.Error()
	default:
		message = "Request setup error"
		details = upstreamErr.Err.Error()
	}
	return message, details
}
