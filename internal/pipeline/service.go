package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/analysis"
	"github.com/watchsense/backend/internal/cache/redis"
	"github.com/watchsense/backend/internal/metrics"
	"github.com/watchsense/backend/pkg/logger"
	"github.com/watchsense/backend/pkg/utils"
)

// Service fronts the runner with request-level caching and telemetry. The
// cache client may be nil, in which case every request runs the pipeline.
type Service struct {
	runner   *Runner
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewService(runner *Runner, cache *redis.Client, cacheTTL time.Duration) *Service {
	runner.OnStage = func(stage string, elapsed float64) {
		metrics.StageDuration.WithLabelValues(stage).Observe(elapsed)
	}

	return &Service{
		runner:   runner,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Analyze runs one request through the pipeline, serving identical requests
// from cache. The returned bool reports whether the result was cached.
func (s *Service) Analyze(ctx context.Context, req Request) (*analysis.Result, bool, error) {
	key := requestHash(req)

	if s.cache != nil {
		cached, found, err := s.cache.GetAnalysis(ctx, key)
		if err != nil {
			logger.Warn("Analysis cache lookup failed", zap.Error(err))
		}
		if found {
			metrics.CacheHits.WithLabelValues("analysis").Inc()
			return cached, true, nil
		}
		metrics.CacheMisses.WithLabelValues("analysis").Inc()
	}

	result, err := s.runner.Run(ctx, req)
	if err != nil {
		if errors.Is(err, ErrNoMatches) {
			metrics.AnalysesTotal.WithLabelValues("no_matches").Inc()
		} else {
			metrics.AnalysesTotal.WithLabelValues("error").Inc()
		}
		return nil, false, err
	}

	metrics.AnalysesTotal.WithLabelValues("success").Inc()
	metrics.RetrievedReviewsCount.Observe(float64(result.RetrievedCount))
	metrics.FaithfulnessScore.Observe(result.Faithfulness.ImprovedFaithfulness)

	if s.cache != nil {
		if err := s.cache.SetAnalysis(ctx, key, result, s.cacheTTL); err != nil {
			logger.Warn("Failed to cache analysis", zap.Error(err))
		}
	}

	return result, false, nil
}

func requestHash(req Request) string {
	minStar, maxStar := "", ""
	if req.MinStar != nil {
		minStar = fmt.Sprintf("%d", *req.MinStar)
	}
	if req.MaxStar != nil {
		maxStar = fmt.Sprintf("%d", *req.MaxStar)
	}
	return utils.HashString(fmt.Sprintf("%s|%s|%s|%s", req.Query, req.Brand, minStar, maxStar))
}
