package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/api/handlers"
	"github.com/watchsense/backend/internal/cache/redis"
	"github.com/watchsense/backend/internal/llm"
	"github.com/watchsense/backend/internal/memory"
	"github.com/watchsense/backend/internal/metrics"
	"github.com/watchsense/backend/internal/pipeline"
	"github.com/watchsense/backend/internal/retrieval"
	"github.com/watchsense/backend/internal/storage/sqlite"
	"github.com/watchsense/backend/internal/vector"
	"github.com/watchsense/backend/internal/vector/flat"
	"github.com/watchsense/backend/internal/vector/milvus"
	"github.com/watchsense/backend/pkg/config"
	appLogger "github.com/watchsense/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting WatchSense API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.Corpus.Path)
	if err != nil {
		appLogger.Fatal("Failed to open review corpus", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	reviews, err := sqliteClient.LoadAll()
	if err != nil {
		appLogger.Fatal("Failed to load reviews", zap.Error(err))
	}
	appLogger.Info("Review corpus loaded", zap.Int("count", len(reviews)))

	var index vector.Index
	switch cfg.Index.Backend {
	case "milvus":
		milvusClient, err := milvus.NewClient(cfg.Index.Endpoint, cfg.Index.CollectionName, cfg.Index.VectorDim)
		if err != nil {
			appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
		}
		defer milvusClient.Close()

		err = milvusClient.CreateCollection(context.Background())
		if err != nil {
			appLogger.Fatal("Failed to create collection", zap.Error(err))
		}
		index = milvusClient
	case "flat":
		flatIndex, err := flat.Load(cfg.Index.Path)
		if err != nil {
			appLogger.Fatal("Failed to load review index", zap.Error(err))
		}
		appLogger.Info("Review index loaded", zap.Int("vectors", flatIndex.Len()))
		index = flatIndex
	default:
		appLogger.Fatal("Unknown index backend", zap.String("backend", cfg.Index.Backend))
	}

	llmClient := llm.NewClient(
		cfg.LLM.BaseURL,
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	memoryStore := memory.NewStore(cfg.Memory.Path)

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	engine := retrieval.NewEngine(llmClient, index, reviews, memoryStore)
	if cacheClient != nil {
		engine.SetEmbeddingCache(cacheClient, time.Duration(cfg.Redis.TTLSec)*time.Second)
	}
	runner := pipeline.NewRunner(llmClient, engine, memoryStore, cfg.Index.TopK)
	service := pipeline.NewService(runner, cacheClient, time.Duration(cfg.Redis.TTLSec)*time.Second)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	analyzeHandler := handlers.NewAnalyzeHandler(service)
	memoryHandler := handlers.NewMemoryHandler(memoryStore)
	wsHandler := handlers.NewWebSocketHandler(service)

	api := app.Group("/api/v1")

	api.Post("/analyze", analyzeHandler.HandleAnalyze)

	api.Get("/memory/stats", memoryHandler.HandleStats)
	api.Post("/memory/clear", memoryHandler.HandleClear)
	api.Post("/memory/export", memoryHandler.HandleExport)
	api.Post("/memory/import", memoryHandler.HandleImport)
	api.Get("/memory/analysis", memoryHandler.HandleAnalysis)

	api.Post("/suggestions/feedback", memoryHandler.HandleSuggestionFeedback)

	api.Get("/health", func(c *fiber.Ctx) error {
		count, err := sqliteClient.Count()
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  "review corpus unavailable",
			})
		}
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"reviews": count,
			"time":    time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/analyze", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
