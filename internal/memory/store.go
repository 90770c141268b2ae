package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/analysis"
	"github.com/watchsense/backend/pkg/logger"
)

// ErrNotFound signals a query with no stored analysis.
var ErrNotFound = errors.New("analysis not found")

// ShortTerm holds the current request context. It is overwritten field-by-field
// during a run and reset on clear.
type ShortTerm struct {
	LastQuery       string                             `json:"last_query"`
	RetrievedIDs    []int64                            `json:"retrieved_ids"`
	Summary         *analysis.Summary                  `json:"summary"`
	Advisor         *analysis.Advisor                  `json:"advisor"`
	FeatureAnalysis map[string]analysis.FeatureInsight `json:"feature_analysis"`
	LatencyMetrics  map[string]float64                 `json:"latency_metrics"`
	Intent          string                             `json:"intent"`
}

// Update carries partial short-term changes. Nil fields are no-ops: a set value
// is never cleared by a later partial update.
type Update struct {
	LastQuery       *string
	RetrievedIDs    []int64
	Summary         *analysis.Summary
	Advisor         *analysis.Advisor
	FeatureAnalysis map[string]analysis.FeatureInsight
	LatencyMetrics  map[string]float64
	Intent          *string
}

type QueryEntry struct {
	Query     string `json:"query"`
	Timestamp string `json:"timestamp"`
}

type SummaryEntry struct {
	Query           string                             `json:"query"`
	Summary         *analysis.Summary                  `json:"summary"`
	FeatureAnalysis map[string]analysis.FeatureInsight `json:"feature_analysis,omitempty"`
	Timestamp       string                             `json:"timestamp"`
}

type SuggestionEntry struct {
	Suggestion string `json:"suggestion"`
	Category   string `json:"category"`
	Reason     string `json:"reason,omitempty"`
	Timestamp  string `json:"timestamp"`
}

type SuggestionRating struct {
	Suggestion string `json:"suggestion"`
	Rating     int    `json:"rating"`
	Category   string `json:"category"`
	Timestamp  string `json:"timestamp"`
}

// PerformanceRecord is one per-request telemetry row.
type PerformanceRecord struct {
	analysis.EvalMetrics
	Latency map[string]float64 `json:"latency"`
	Query   string             `json:"query"`
	Brand   string             `json:"brand,omitempty"`
}

type PerformanceEntry struct {
	Metrics   PerformanceRecord `json:"metrics"`
	Timestamp string            `json:"timestamp"`
}

// AnalysisRecord is the complete per-request record appended after every
// finished run.
type AnalysisRecord struct {
	ID              string                             `json:"id"`
	Query           string                             `json:"query"`
	Intent          string                             `json:"intent"`
	Summary         analysis.Summary                   `json:"summary"`
	FeatureAnalysis map[string]analysis.FeatureInsight `json:"feature_analysis"`
	Advisor         analysis.Advisor                   `json:"advisor"`
	Metrics         analysis.EvalMetrics               `json:"metrics"`
	Latency         map[string]float64                 `json:"latency"`
	Timestamp       string                             `json:"timestamp"`
}

// LongTerm is the persisted memory document. Every key is present in the file
// even when empty; missing keys in an older file are backfilled on load.
type LongTerm struct {
	QueryHistory        []QueryEntry       `json:"query_history"`
	ProductCategories   []string           `json:"product_categories"`
	Brands              []string           `json:"brands"`
	AcceptedSuggestions []SuggestionEntry  `json:"accepted_suggestions"`
	RejectedSuggestions []SuggestionEntry  `json:"rejected_suggestions"`
	SummaryHistory      []SummaryEntry     `json:"summary_history"`
	SuggestionRatings   []SuggestionRating `json:"suggestion_ratings"`
	PerformanceMetrics  []PerformanceEntry `json:"performance_metrics"`
	CompleteAnalyses    []AnalysisRecord   `json:"complete_analyses"`
}

// Store is the two-tier memory shared by all pipeline runs. One mutex
// serializes every load-modify-persist cycle, so concurrent requests cannot
// interleave writes to the backing file.
type Store struct {
	mu        sync.Mutex
	path      string
	shortTerm ShortTerm
	longTerm  LongTerm
}

func NewStore(path string) *Store {
	s := &Store{path: path}
	s.longTerm = s.loadLongTerm()
	s.longTerm.ensureKeys()
	return s
}

func defaultLongTerm() LongTerm {
	lt := LongTerm{}
	lt.ensureKeys()
	return lt
}

func (lt *LongTerm) ensureKeys() {
	if lt.QueryHistory == nil {
		lt.QueryHistory = []QueryEntry{}
	}
	if lt.ProductCategories == nil {
		lt.ProductCategories = []string{}
	}
	if lt.Brands == nil {
		lt.Brands = []string{}
	}
	if lt.AcceptedSuggestions == nil {
		lt.AcceptedSuggestions = []SuggestionEntry{}
	}
	if lt.RejectedSuggestions == nil {
		lt.RejectedSuggestions = []SuggestionEntry{}
	}
	if lt.SummaryHistory == nil {
		lt.SummaryHistory = []SummaryEntry{}
	}
	if lt.SuggestionRatings == nil {
		lt.SuggestionRatings = []SuggestionRating{}
	}
	if lt.PerformanceMetrics == nil {
		lt.PerformanceMetrics = []PerformanceEntry{}
	}
	if lt.CompleteAnalyses == nil {
		lt.CompleteAnalyses = []AnalysisRecord{}
	}
}

// loadLongTerm reads the backing file. An unreadable or corrupt file degrades
// to the default empty structure so the process stays available.
func (s *Store) loadLongTerm() LongTerm {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read memory file, starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return defaultLongTerm()
	}

	var lt LongTerm
	if err := json.Unmarshal(data, &lt); err != nil {
		logger.Warn("Failed to parse memory file, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return defaultLongTerm()
	}

	return lt
}

// persistLocked writes the long-term document through to disk. Failures are
// logged, not fatal: the in-memory state stays valid.
func (s *Store) persistLocked() {
	data, err := json.MarshalIndent(s.longTerm, "", "  ")
	if err != nil {
		logger.Error("Failed to marshal memory", zap.Error(err))
		return
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		logger.Error("Failed to persist memory", zap.String("path", s.path), zap.Error(err))
	}
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}

// AddQuery appends to the query history. History is never deduplicated.
func (s *Store) AddQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.longTerm.QueryHistory = append(s.longTerm.QueryHistory, QueryEntry{
		Query:     query,
		Timestamp: timestamp(),
	})
	s.persistLocked()
}

// AddBrand registers a tracked brand. Duplicates (exact match) are ignored.
func (s *Store) AddBrand(brand string) {
	if brand == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.longTerm.Brands {
		if b == brand {
			return
		}
	}
	s.longTerm.Brands = append(s.longTerm.Brands, brand)
	s.persistLocked()
}

// AddCategory registers a tracked product category. Duplicates are ignored.
func (s *Store) AddCategory(category string) {
	if category == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.longTerm.ProductCategories {
		if c == category {
			return
		}
	}
	s.longTerm.ProductCategories = append(s.longTerm.ProductCategories, category)
	s.persistLocked()
}

// UpdateShortTerm merges non-nil fields into the short-term context.
func (s *Store) UpdateShortTerm(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.LastQuery != nil {
		s.shortTerm.LastQuery = *u.LastQuery
	}
	if u.RetrievedIDs != nil {
		s.shortTerm.RetrievedIDs = u.RetrievedIDs
	}
	if u.Summary != nil {
		s.shortTerm.Summary = u.Summary
	}
	if u.Advisor != nil {
		s.shortTerm.Advisor = u.Advisor
	}
	if u.FeatureAnalysis != nil {
		s.shortTerm.FeatureAnalysis = u.FeatureAnalysis
	}
	if u.LatencyMetrics != nil {
		s.shortTerm.LatencyMetrics = u.LatencyMetrics
	}
	if u.Intent != nil {
		s.shortTerm.Intent = *u.Intent
	}
}

// SaveCompleteAnalysis appends a finished run to the complete-analyses log and
// mirrors the summary into the summary history.
func (s *Store) SaveCompleteAnalysis(record AnalysisRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.longTerm.CompleteAnalyses = append(s.longTerm.CompleteAnalyses, record)

	s.longTerm.SummaryHistory = append(s.longTerm.SummaryHistory, SummaryEntry{
		Query:           record.Query,
		Summary:         &record.Summary,
		FeatureAnalysis: record.FeatureAnalysis,
		Timestamp:       record.Timestamp,
	})

	s.persistLocked()
}

// AnalysisByQuery returns the most recent analysis matching the query
// (case-insensitive exact match).
func (s *Store) AnalysisByQuery(query string) (AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.longTerm.CompleteAnalyses) - 1; i >= 0; i-- {
		record := s.longTerm.CompleteAnalyses[i]
		if strings.EqualFold(record.Query, query) {
			return record, nil
		}
	}
	return AnalysisRecord{}, ErrNotFound
}

func (s *Store) AddPerformanceMetric(record PerformanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.longTerm.PerformanceMetrics = append(s.longTerm.PerformanceMetrics, PerformanceEntry{
		Metrics:   record,
		Timestamp: timestamp(),
	})
	s.persistLocked()
}

func (s *Store) AddSuggestionRating(suggestion string, rating int, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.longTerm.SuggestionRatings = append(s.longTerm.SuggestionRatings, SuggestionRating{
		Suggestion: suggestion,
		Rating:     rating,
		Category:   category,
		Timestamp:  timestamp(),
	})
	s.persistLocked()
}

func (s *Store) AcceptSuggestion(suggestion, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.longTerm.AcceptedSuggestions = append(s.longTerm.AcceptedSuggestions, SuggestionEntry{
		Suggestion: suggestion,
		Category:   category,
		Timestamp:  timestamp(),
	})
	s.persistLocked()
}

func (s *Store) RejectSuggestion(suggestion, category, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.longTerm.RejectedSuggestions = append(s.longTerm.RejectedSuggestions, SuggestionEntry{
		Suggestion: suggestion,
		Category:   category,
		Reason:     reason,
		Timestamp:  timestamp(),
	})
	s.persistLocked()
}

// ClearShortTerm resets the current request context only.
func (s *Store) ClearShortTerm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shortTerm = ShortTerm{}
	logger.Info("Short-term memory cleared")
}

// ClearAll resets both tiers and rewrites the persisted store to its default
// empty structure.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shortTerm = ShortTerm{}
	s.longTerm = defaultLongTerm()
	s.persistLocked()
	logger.Info("Memory cleared")
}

// Context returns a copy of the short-term context.
func (s *Store) Context() ShortTerm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shortTerm
}

type snapshot struct {
	ShortTerm       ShortTerm `json:"short_term"`
	LongTerm        LongTerm  `json:"long_term"`
	ExportTimestamp string    `json:"export_timestamp"`
}

// Export serializes both memory tiers to a snapshot file and returns its path.
// An empty path defaults to a timestamp-named file.
func (s *Store) Export(path string) (string, error) {
	s.mu.Lock()
	snap := snapshot{
		ShortTerm:       s.shortTerm,
		LongTerm:        s.longTerm,
		ExportTimestamp: timestamp(),
	}
	s.mu.Unlock()

	if path == "" {
		path = fmt.Sprintf("memory_backup_%s.json", time.Now().Format("20060102_150405"))
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal memory snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write memory snapshot: %w", err)
	}

	logger.Info("Memory exported", zap.String("path", path))
	return path, nil
}

// Import replaces both tiers from a previously exported snapshot, backfilling
// any missing long-term keys, and persists the result.
func (s *Store) Import(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read memory snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse memory snapshot: %w", err)
	}

	snap.LongTerm.ensureKeys()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.longTerm = snap.LongTerm
	s.shortTerm = snap.ShortTerm
	s.persistLocked()

	logger.Info("Memory imported", zap.String("path", path))
	return nil
}
