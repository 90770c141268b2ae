package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/pipeline"
	"github.com/watchsense/backend/pkg/logger"
)

type WebSocketHandler struct {
	service *pipeline.Service
}

func NewWebSocketHandler(service *pipeline.Service) *WebSocketHandler {
	return &WebSocketHandler{
		service: service,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Query   string `json:"query"`
			Brand   string `json:"brand"`
			MinStar *int   `json:"min_star"`
			MaxStar *int   `json:"max_star"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "analyze" {
			continue
		}
		if strings.TrimSpace(msg.Query) == "" {
			h.sendError(c, "Query is required")
			continue
		}

		logger.Info("Processing WebSocket analysis", zap.String("query", msg.Query))

		err = h.streamAnalysis(c, pipeline.Request{
			Query:   msg.Query,
			Brand:   msg.Brand,
			MinStar: msg.MinStar,
			MaxStar: msg.MaxStar,
		})
		if err != nil {
			if errors.Is(err, pipeline.ErrNoMatches) {
				h.sendError(c, "No matching reviews found")
				continue
			}
			logger.Error("Failed to stream analysis", zap.Error(err))
			h.sendError(c, "Failed to process analysis")
		}
	}
}

// streamAnalysis pushes one message per completed pipeline stage, then the
// full result. Cached results skip straight to the complete message.
func (h *WebSocketHandler) streamAnalysis(c *websocket.Conn, req pipeline.Request) error {
	ctx := context.Background()

	req.OnStage = func(stage string, elapsed float64) {
		h.sendStage(c, stage, elapsed)
	}

	result, cached, err := h.service.Analyze(ctx, req)
	if err != nil {
		return err
	}

	return c.WriteJSON(map[string]interface{}{
		"type":   "complete",
		"result": result,
		"cached": cached,
	})
}

func (h *WebSocketHandler) sendStage(c *websocket.Conn, stage string, elapsed float64) {
	msg := map[string]interface{}{
		"type":    "stage",
		"stage":   stage,
		"elapsed": elapsed,
	}

	if err := c.WriteJSON(msg); err != nil {
		logger.Warn("Failed to send stage update", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}
