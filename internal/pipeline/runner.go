package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/analysis"
	"github.com/watchsense/backend/internal/evaluation"
	"github.com/watchsense/backend/internal/features"
	"github.com/watchsense/backend/internal/intent"
	"github.com/watchsense/backend/internal/memory"
	"github.com/watchsense/backend/internal/retrieval"
	"github.com/watchsense/backend/pkg/logger"
)

// ErrNoMatches is the defined outcome for a query whose retrieved set is empty
// after filtering. It is not a failure: no generation stages run and no
// analysis record is stored.
var ErrNoMatches = errors.New("no matching reviews found")

const snippetReviewLimit = 40

// CompletionService is the LLM-backed generation boundary.
type CompletionService interface {
	ExtractQueryFeatures(ctx context.Context, query string) (*analysis.QueryFeatures, error)
	SummarizeReviews(ctx context.Context, queryText, intent, reviewsSnippet string, stats analysis.RatingStats) (*analysis.Summary, error)
	GenerateRecommendations(ctx context.Context, intent, brand string, summary analysis.Summary, features map[string]analysis.FeatureInsight) (*analysis.Advisor, error)
}

// Retriever fetches relevant reviews for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filters retrieval.Filters) ([]analysis.RetrievedReview, error)
}

// Request is one immutable analysis request.
type Request struct {
	Query   string
	Brand   string
	MinStar *int
	MaxStar *int

	// OnStage, when set, receives per-stage progress for this request only.
	OnStage func(stage string, elapsed float64)
}

// State is the mutable record threaded through the stages. Every run owns its
// own instance; only the memory store is shared between runs.
type State struct {
	Query   string
	Brand   string
	MinStar *int
	MaxStar *int

	Intent            intent.Intent
	ExtractedFeatures *analysis.QueryFeatures
	Retrieved         []analysis.RetrievedReview
	Summary           *analysis.Summary
	FeatureAnalysis   map[string]analysis.FeatureInsight
	Advisor           *analysis.Advisor
	Faithfulness      *analysis.FaithfulnessReport
	EvalMetrics       *analysis.EvalMetrics
	Latency           map[string]float64
}

type stage struct {
	name       string
	latencyKey string
	run        func(ctx context.Context, s *State) error
}

// Runner drives the fixed analysis pipeline: extract, retrieve, feature
// analysis, summarize, faithfulness, advise, evaluate. Stages run strictly in
// order; any stage error aborts the run.
type Runner struct {
	llm       CompletionService
	retriever Retriever
	memory    *memory.Store
	topK      int

	// OnStage, when set, is called after each completed stage with its name
	// and elapsed seconds.
	OnStage func(stage string, elapsed float64)
}

func NewRunner(llm CompletionService, retriever Retriever, store *memory.Store, topK int) *Runner {
	if topK <= 0 {
		topK = 60
	}
	return &Runner{
		llm:       llm,
		retriever: retriever,
		memory:    store,
		topK:      topK,
	}
}

func (r *Runner) Run(ctx context.Context, req Request) (*analysis.Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}

	state := &State{
		Query:   req.Query,
		Brand:   req.Brand,
		MinStar: req.MinStar,
		MaxStar: req.MaxStar,
		Latency: make(map[string]float64),
	}

	stages := []stage{
		{"extract", "feature_extraction_time", r.stageExtract},
		{"retrieve", "retrieval_time", r.stageRetrieve},
		{"feature_analysis", "feature_analysis_time", r.stageFeatureAnalysis},
		{"summarize", "summary_time", r.stageSummarize},
		{"faithfulness", "faithfulness_time", r.stageFaithfulness},
		{"advise", "advisor_time", r.stageAdvise},
		{"evaluate", "evaluation_time", r.stageEvaluate},
	}

	for _, st := range stages {
		start := time.Now()
		err := st.run(ctx, state)
		elapsed := round3(time.Since(start).Seconds())
		state.Latency[st.latencyKey] = elapsed

		if r.OnStage != nil {
			r.OnStage(st.name, elapsed)
		}
		if req.OnStage != nil {
			req.OnStage(st.name, elapsed)
		}

		if err != nil {
			if errors.Is(err, ErrNoMatches) {
				logger.Info("No matching reviews", zap.String("query", req.Query))
				return nil, ErrNoMatches
			}
			logger.Error("Pipeline stage failed",
				zap.String("stage", st.name),
				zap.Error(err),
			)
			return nil, fmt.Errorf("stage %s: %w", st.name, err)
		}
	}

	result := &analysis.Result{
		ID:                uuid.New().String(),
		Query:             state.Query,
		Intent:            string(state.Intent),
		ExtractedFeatures: *state.ExtractedFeatures,
		Summary:           *state.Summary,
		FeatureAnalysis:   state.FeatureAnalysis,
		Advisor:           *state.Advisor,
		LatencyMetrics:    state.Latency,
		EvalMetrics:       *state.EvalMetrics,
		Faithfulness:      *state.Faithfulness,
		RetrievedCount:    len(state.Retrieved),
	}

	r.persistRun(result, state)

	logger.Info("Analysis completed",
		zap.String("query", req.Query),
		zap.Int("retrieved", result.RetrievedCount),
		zap.Float64("total_latency", state.Latency["total_latency"]),
	)

	return result, nil
}

func (r *Runner) stageExtract(ctx context.Context, s *State) error {
	extracted, err := r.llm.ExtractQueryFeatures(ctx, s.Query)
	if err != nil {
		return err
	}

	s.ExtractedFeatures = extracted
	if s.Brand == "" {
		s.Brand = extracted.Brand
	}
	return nil
}

func (r *Runner) stageRetrieve(ctx context.Context, s *State) error {
	retrieved, err := r.retriever.Retrieve(ctx, s.Query, r.topK, retrieval.Filters{
		Brand:   s.Brand,
		MinStar: s.MinStar,
		MaxStar: s.MaxStar,
	})
	if err != nil {
		return err
	}

	if len(retrieved) == 0 {
		return ErrNoMatches
	}

	s.Retrieved = retrieved
	return nil
}

func (r *Runner) stageFeatureAnalysis(ctx context.Context, s *State) error {
	if s.Retrieved == nil {
		return fmt.Errorf("feature analysis requires retrieval state")
	}

	s.FeatureAnalysis = features.Analyze(s.Retrieved)
	r.memory.UpdateShortTerm(memory.Update{FeatureAnalysis: s.FeatureAnalysis})
	return nil
}

func (r *Runner) stageSummarize(ctx context.Context, s *State) error {
	if s.Retrieved == nil {
		return fmt.Errorf("summarization requires retrieval state")
	}

	s.Intent = intent.Detect(s.Query)
	intentStr := string(s.Intent)
	r.memory.UpdateShortTerm(memory.Update{Intent: &intentStr})

	stats := computeRatingStats(s.Retrieved)
	snippet := buildReviewsSnippet(s.Retrieved, snippetReviewLimit)

	summary, err := r.llm.SummarizeReviews(ctx, s.Query, intentStr, snippet, stats)
	if err != nil {
		return err
	}

	// Numeric rating facts always come from the retrieved set, never from
	// generated text.
	summary.RatingStats = stats

	s.Summary = summary
	r.memory.UpdateShortTerm(memory.Update{Summary: summary})
	return nil
}

func (r *Runner) stageFaithfulness(ctx context.Context, s *State) error {
	if s.Summary == nil {
		return fmt.Errorf("faithfulness requires summary state")
	}

	report := evaluation.VerifyClaims(s.Retrieved, *s.Summary)
	s.Faithfulness = &report
	return nil
}

func (r *Runner) stageAdvise(ctx context.Context, s *State) error {
	if s.Summary == nil {
		return fmt.Errorf("advisor requires summary state")
	}

	advisor, err := r.llm.GenerateRecommendations(ctx, string(s.Intent), s.Brand, *s.Summary, s.FeatureAnalysis)
	if err != nil {
		return err
	}

	s.Advisor = advisor
	r.memory.UpdateShortTerm(memory.Update{Advisor: advisor})
	return nil
}

func (r *Runner) stageEvaluate(ctx context.Context, s *State) error {
	if s.Summary == nil || s.Advisor == nil {
		return fmt.Errorf("evaluation requires summary and advisor state")
	}

	metrics := evaluation.Evaluate(s.Query, s.Retrieved, *s.Summary, *s.Advisor)
	if s.Faithfulness != nil {
		metrics.ImprovedFaithfulness = s.Faithfulness.ImprovedFaithfulness
	}

	s.EvalMetrics = &metrics
	return nil
}

// persistRun writes the consolidated analysis record and telemetry. Total
// latency is the sum of stage durations, excluding orchestration overhead.
func (r *Runner) persistRun(result *analysis.Result, s *State) {
	var total float64
	for _, v := range s.Latency {
		total += v
	}
	s.Latency["total_latency"] = round3(total)

	r.memory.UpdateShortTerm(memory.Update{LatencyMetrics: s.Latency})

	r.memory.SaveCompleteAnalysis(memory.AnalysisRecord{
		ID:              result.ID,
		Query:           s.Query,
		Intent:          string(s.Intent),
		Summary:         *s.Summary,
		FeatureAnalysis: s.FeatureAnalysis,
		Advisor:         *s.Advisor,
		Metrics:         *s.EvalMetrics,
		Latency:         s.Latency,
		Timestamp:       time.Now().Format(time.RFC3339),
	})

	r.memory.AddPerformanceMetric(memory.PerformanceRecord{
		EvalMetrics: *s.EvalMetrics,
		Latency:     s.Latency,
		Query:       s.Query,
		Brand:       s.Brand,
	})
}

func buildReviewsSnippet(retrieved []analysis.RetrievedReview, max int) string {
	var b strings.Builder
	for i, r := range retrieved {
		if i >= max {
			break
		}
		fmt.Fprintf(&b, "- [%d] %s\n", r.StarRating, r.Body)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func computeRatingStats(retrieved []analysis.RetrievedReview) analysis.RatingStats {
	stats := analysis.RatingStats{
		Distribution: make(map[int]int),
		TotalReviews: len(retrieved),
	}
	if len(retrieved) == 0 {
		return stats
	}

	var ratingSum float64
	var positive, negative int
	for _, r := range retrieved {
		ratingSum += float64(r.StarRating)
		stats.Distribution[r.StarRating]++
		switch {
		case r.StarRating >= 4:
			positive++
		case r.StarRating <= 2:
			negative++
		}
	}

	total := float64(len(retrieved))
	positivePct := round1(float64(positive) / total * 100)
	negativePct := round1(float64(negative) / total * 100)

	stats.Average = round2(ratingSum / total)
	stats.SentimentPercentages = analysis.SentimentPercentages{
		Positive: positivePct,
		Negative: negativePct,
		Neutral:  round1(100 - positivePct - negativePct),
	}

	return stats
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
