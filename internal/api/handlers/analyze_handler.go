package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/pipeline"
	"github.com/watchsense/backend/pkg/logger"
)

type AnalyzeHandler struct {
	service *pipeline.Service
}

func NewAnalyzeHandler(service *pipeline.Service) *AnalyzeHandler {
	return &AnalyzeHandler{
		service: service,
	}
}

func (h *AnalyzeHandler) HandleAnalyze(c *fiber.Ctx) error {
	var req struct {
		Query   string `json:"query"`
		Brand   string `json:"brand"`
		MinStar *int   `json:"min_star"`
		MaxStar *int   `json:"max_star"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	result, cached, err := h.service.Analyze(c.Context(), pipeline.Request{
		Query:   req.Query,
		Brand:   req.Brand,
		MinStar: req.MinStar,
		MaxStar: req.MaxStar,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrNoMatches) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No matching reviews found",
			})
		}
		logger.Error("Failed to process analysis", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process analysis",
		})
	}

	return c.JSON(fiber.Map{
		"result": result,
		"cached": cached,
	})
}
