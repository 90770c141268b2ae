package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/analysis"
	"github.com/watchsense/backend/internal/cache/redis"
	"github.com/watchsense/backend/internal/llm"
	"github.com/watchsense/backend/internal/metrics"
	"github.com/watchsense/backend/internal/storage/sqlite"
	"github.com/watchsense/backend/internal/vector"
	"github.com/watchsense/backend/internal/vector/flat"
	"github.com/watchsense/backend/internal/vector/milvus"
	"github.com/watchsense/backend/pkg/config"
	appLogger "github.com/watchsense/backend/pkg/logger"
)

const embeddingBatchSize = 100

// The indexer loads a review CSV into the corpus database, embeds every
// review body, and builds the vector index the API server searches.
func main() {
	csvPath := flag.String("csv", "", "path to the review CSV (columns: brand, star_rating, review_body)")
	flag.Parse()

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

	if *csvPath == "" {
		appLogger.Fatal("The -csv flag is required")
	}

	metrics.Init()

	reviews, err := readReviewCSV(*csvPath)
	if err != nil {
		appLogger.Fatal("Failed to read review CSV", zap.Error(err))
	}
	appLogger.Info("Review CSV loaded", zap.Int("count", len(reviews)))

	sqliteClient, err := sqlite.NewClient(cfg.Corpus.Path)
	if err != nil {
		appLogger.Fatal("Failed to open review corpus", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}
	if err := sqliteClient.InsertReviews(reviews); err != nil {
		appLogger.Fatal("Failed to insert reviews", zap.Error(err))
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

	ctx := context.Background()

	switch cfg.Index.Backend {
	case "flat":
		err = buildFlatIndex(ctx, cfg.Index.Path, cfg.Index.VectorDim, llmClient, reviews)
	case "milvus":
		err = buildMilvusIndex(ctx, cfg, llmClient, reviews)
	default:
		appLogger.Fatal("Unknown index backend", zap.String("backend", cfg.Index.Backend))
	}
	if err != nil {
		appLogger.Fatal("Failed to build index", zap.Error(err))
	}

	// Cached analyses were computed against the old index.
	if cfg.Redis.Enabled {
		cacheClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, skipping cache invalidation", zap.Error(err))
		} else {
			if err := cacheClient.InvalidateAnalysisCache(ctx); err != nil {
				appLogger.Warn("Failed to invalidate analysis cache", zap.Error(err))
			}
			cacheClient.Close()
		}
	}

	appLogger.Info("Indexing complete",
		zap.Int("reviews", len(reviews)),
		zap.String("backend", cfg.Index.Backend),
	)
}

func readReviewCSV(path string) ([]analysis.Review, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"brand", "star_rating", "review_body"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var reviews []analysis.Review
	var nextID int64 = 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		rating, err := strconv.Atoi(record[cols["star_rating"]])
		if err != nil {
			appLogger.Warn("Skipping review with invalid rating",
				zap.Int64("row", nextID),
				zap.String("star_rating", record[cols["star_rating"]]),
			)
			continue
		}

		reviews = append(reviews, analysis.Review{
			ID:         nextID,
			Brand:      record[cols["brand"]],
			StarRating: rating,
			Body:       record[cols["review_body"]],
		})
		nextID++
	}

	return reviews, nil
}

func embedReviews(ctx context.Context, llmClient *llm.Client, reviews []analysis.Review) ([]int64, [][]float32, error) {
	ids := make([]int64, 0, len(reviews))
	texts := make([]string, 0, len(reviews))
	for _, r := range reviews {
		ids = append(ids, r.ID)
		texts = append(texts, r.Body)
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := llmClient.GenerateBatchEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}
		embeddings = append(embeddings, batch...)

		metrics.ReviewsIndexed.Add(float64(end - start))
		appLogger.Info("Embedded review batch", zap.Int("done", end), zap.Int("total", len(texts)))
	}

	return ids, embeddings, nil
}

func buildFlatIndex(ctx context.Context, path string, dim int, llmClient *llm.Client, reviews []analysis.Review) error {
	ids, embeddings, err := embedReviews(ctx, llmClient, reviews)
	if err != nil {
		return err
	}

	index, err := flat.New(dim)
	if err != nil {
		return err
	}
	if err := index.Add(ids, embeddings); err != nil {
		return err
	}

	return index.Save(path)
}

func buildMilvusIndex(ctx context.Context, cfg *config.Config, llmClient *llm.Client, reviews []analysis.Review) error {
	milvusClient, err := milvus.NewClient(cfg.Index.Endpoint, cfg.Index.CollectionName, cfg.Index.VectorDim)
	if err != nil {
		return err
	}
	defer milvusClient.Close()

	if err := milvusClient.CreateCollection(ctx); err != nil {
		return err
	}

	ids, embeddings, err := embedReviews(ctx, llmClient, reviews)
	if err != nil {
		return err
	}

	// Inner-product search assumes unit vectors.
	for i := range embeddings {
		embeddings[i] = vector.Normalize(embeddings[i])
	}

	return milvusClient.Insert(ctx, ids, embeddings)
}
