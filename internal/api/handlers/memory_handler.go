package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/memory"
	"github.com/watchsense/backend/internal/metrics"
	"github.com/watchsense/backend/pkg/logger"
)

type MemoryHandler struct {
	store *memory.Store
}

func NewMemoryHandler(store *memory.Store) *MemoryHandler {
	return &MemoryHandler{
		store: store,
	}
}

func (h *MemoryHandler) HandleStats(c *fiber.Ctx) error {
	return c.JSON(h.store.Stats())
}

// HandleClear drops short-term state by default; scope=all also resets the
// persisted long-term document.
func (h *MemoryHandler) HandleClear(c *fiber.Ctx) error {
	scope := c.Query("scope", "short_term")

	switch scope {
	case "short_term":
		h.store.ClearShortTerm()
	case "all":
		h.store.ClearAll()
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "scope must be short_term or all",
		})
	}

	logger.Info("Memory cleared", zap.String("scope", scope))
	return c.JSON(fiber.Map{
		"status": "cleared",
		"scope":  scope,
	})
}

func (h *MemoryHandler) HandleExport(c *fiber.Ctx) error {
	var req struct {
		Path string `json:"path"`
	}
	// Body is optional; an empty path selects a timestamped default.
	_ = c.BodyParser(&req)

	path, err := h.store.Export(req.Path)
	if err != nil {
		logger.Error("Failed to export memory", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export memory",
		})
	}

	return c.JSON(fiber.Map{
		"status": "exported",
		"path":   path,
	})
}

func (h *MemoryHandler) HandleImport(c *fiber.Ctx) error {
	var req struct {
		Path string `json:"path"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Path == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "path is required",
		})
	}

	if err := h.store.Import(req.Path); err != nil {
		logger.Error("Failed to import memory", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to import memory",
		})
	}

	return c.JSON(fiber.Map{
		"status": "imported",
		"path":   req.Path,
	})
}

// HandleAnalysis looks up the most recent stored analysis for a query.
func (h *MemoryHandler) HandleAnalysis(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query is required",
		})
	}

	record, err := h.store.AnalysisByQuery(query)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No stored analysis for query",
			})
		}
		logger.Error("Failed to look up analysis", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to look up analysis",
		})
	}

	return c.JSON(record)
}

func (h *MemoryHandler) HandleSuggestionFeedback(c *fiber.Ctx) error {
	var req struct {
		Suggestion string `json:"suggestion"`
		Category   string `json:"category"`
		Accepted   *bool  `json:"accepted"`
		Rating     *int   `json:"rating"`
		Reason     string `json:"reason"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Suggestion == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "suggestion is required",
		})
	}
	if req.Accepted == nil && req.Rating == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "accepted or rating is required",
		})
	}

	if req.Rating != nil {
		if *req.Rating < 1 || *req.Rating > 5 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "rating must be between 1 and 5",
			})
		}
		h.store.AddSuggestionRating(req.Suggestion, *req.Rating, req.Category)
	}

	if req.Accepted != nil {
		if *req.Accepted {
			h.store.AcceptSuggestion(req.Suggestion, req.Category)
			metrics.SuggestionFeedback.WithLabelValues("accepted").Inc()
		} else {
			h.store.RejectSuggestion(req.Suggestion, req.Category, req.Reason)
			metrics.SuggestionFeedback.WithLabelValues("rejected").Inc()
		}
	}

	return c.JSON(fiber.Map{
		"status": "recorded",
	})
}
