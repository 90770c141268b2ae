package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchsense/backend/internal/analysis"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "memory.json"))
}

func TestNewStore(t *testing.T) {
	t.Run("missing file starts empty", func(t *testing.T) {
		store := newTestStore(t)

		stats := store.Stats()
		require.Zero(t, stats.TotalQueries)
		require.Zero(t, stats.BrandsTracked)
	})

	t.Run("corrupt file degrades to empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		store := NewStore(path)
		require.Zero(t, store.Stats().TotalQueries)
	})

	t.Run("missing keys are backfilled", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory.json")
		partial := `{"query_history": [{"query": "q1", "timestamp": "2026-01-01T00:00:00Z"}]}`
		require.NoError(t, os.WriteFile(path, []byte(partial), 0644))

		store := NewStore(path)
		require.Equal(t, 1, store.Stats().TotalQueries)

		// A persisted write must emit every key, including the backfilled ones.
		store.AddBrand("Casio")

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var doc map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &doc))
		for _, key := range []string{
			"query_history", "product_categories", "brands",
			"accepted_suggestions", "rejected_suggestions", "summary_history",
			"suggestion_ratings", "performance_metrics", "complete_analyses",
		} {
			require.Contains(t, doc, key)
			require.NotEqual(t, "null", string(doc[key]), "key %s", key)
		}
	})
}

func TestQueryHistoryAndBrands(t *testing.T) {
	store := newTestStore(t)

	t.Run("query history is never deduplicated", func(t *testing.T) {
		store.AddQuery("battery complaints")
		store.AddQuery("battery complaints")

		require.Equal(t, 2, store.Stats().TotalQueries)
	})

	t.Run("brands are deduplicated by exact match", func(t *testing.T) {
		store.AddBrand("Casio")
		store.AddBrand("Casio")
		store.AddBrand("casio")
		store.AddBrand("")

		stats := store.Stats()
		require.Equal(t, 2, stats.BrandsTracked)
		require.Equal(t, []string{"Casio", "casio"}, stats.Brands)
	})

	t.Run("stats history is most recent first", func(t *testing.T) {
		history := store.Stats().QueryHistory
		require.Len(t, history, 2)
		require.Equal(t, "battery complaints", history[0].Query)
	})
}

func TestUpdateShortTerm(t *testing.T) {
	store := newTestStore(t)

	query := "strap issues"
	store.UpdateShortTerm(Update{LastQuery: &query, RetrievedIDs: []int64{1, 2}})

	intent := "negative"
	store.UpdateShortTerm(Update{Intent: &intent})

	ctx := store.Context()
	require.Equal(t, "strap issues", ctx.LastQuery)
	require.Equal(t, []int64{1, 2}, ctx.RetrievedIDs)
	require.Equal(t, "negative", ctx.Intent)

	t.Run("nil fields do not clear state", func(t *testing.T) {
		store.UpdateShortTerm(Update{})

		ctx := store.Context()
		require.Equal(t, "strap issues", ctx.LastQuery)
		require.Equal(t, []int64{1, 2}, ctx.RetrievedIDs)
	})

	t.Run("clear resets short term only", func(t *testing.T) {
		store.AddQuery("strap issues")
		store.ClearShortTerm()

		require.Empty(t, store.Context().LastQuery)
		require.Equal(t, 1, store.Stats().TotalQueries)
	})
}

func TestSaveCompleteAnalysis(t *testing.T) {
	store := newTestStore(t)

	record := AnalysisRecord{
		ID:        "run-1",
		Query:     "Battery Complaints",
		Intent:    "negative",
		Summary:   analysis.Summary{SummaryText: "battery drains fast"},
		Timestamp: "2026-01-01T00:00:00Z",
	}
	store.SaveCompleteAnalysis(record)

	t.Run("lookup is case insensitive", func(t *testing.T) {
		got, err := store.AnalysisByQuery("battery complaints")
		require.NoError(t, err)
		require.Equal(t, "run-1", got.ID)
	})

	t.Run("lookup returns most recent match", func(t *testing.T) {
		store.SaveCompleteAnalysis(AnalysisRecord{
			ID:    "run-2",
			Query: "battery complaints",
		})

		got, err := store.AnalysisByQuery("Battery Complaints")
		require.NoError(t, err)
		require.Equal(t, "run-2", got.ID)
	})

	t.Run("unknown query", func(t *testing.T) {
		_, err := store.AnalysisByQuery("nothing stored")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("summary is mirrored into history", func(t *testing.T) {
		stats := store.Stats()
		require.Equal(t, 2, stats.SummariesStored)
	})
}

func TestPerformanceAndFeedback(t *testing.T) {
	store := newTestStore(t)

	store.AddPerformanceMetric(PerformanceRecord{
		EvalMetrics: analysis.EvalMetrics{RetrievalCount: 40, SuggestionsGenerated: 4},
		Latency:     map[string]float64{"total_latency": 2.0},
		Query:       "q1",
	})
	store.AddPerformanceMetric(PerformanceRecord{
		EvalMetrics: analysis.EvalMetrics{RetrievalCount: 20, SuggestionsGenerated: 2},
		Latency:     map[string]float64{"total_latency": 4.0},
		Query:       "q2",
	})

	store.AcceptSuggestion("improve strap", "product")
	store.AcceptSuggestion("target divers", "marketing")
	store.RejectSuggestion("lower price", "marketing", "not feasible")

	stats := store.Stats()

	require.Equal(t, 2.0, stats.Performance.TotalRuns)
	require.Equal(t, 3.0, stats.Performance.AvgLatency)
	require.Equal(t, 30.0, stats.Performance.AvgRetrievals)
	require.Equal(t, 3.0, stats.Performance.AvgSuggestions)

	require.Equal(t, 3, stats.Feedback.TotalFeedback)
	require.Equal(t, 2, stats.Feedback.Accepted)
	require.Equal(t, 1, stats.Feedback.Rejected)
	require.InDelta(t, 66.666, stats.Feedback.AcceptanceRate, 0.01)
}

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "memory.json"))

	store.AddQuery("battery life")
	store.AddBrand("Seiko")
	query := "battery life"
	store.UpdateShortTerm(Update{LastQuery: &query})

	exportPath := filepath.Join(dir, "backup.json")
	got, err := store.Export(exportPath)
	require.NoError(t, err)
	require.Equal(t, exportPath, got)

	t.Run("round trip restores both tiers", func(t *testing.T) {
		other := NewStore(filepath.Join(dir, "other.json"))
		require.NoError(t, other.Import(exportPath))

		stats := other.Stats()
		require.Equal(t, 1, stats.TotalQueries)
		require.Equal(t, []string{"Seiko"}, stats.Brands)
		require.Equal(t, "battery life", other.Context().LastQuery)
	})

	t.Run("import of missing file fails", func(t *testing.T) {
		err := store.Import(filepath.Join(dir, "does-not-exist.json"))
		require.Error(t, err)
	})

	t.Run("snapshot has export timestamp", func(t *testing.T) {
		data, err := os.ReadFile(exportPath)
		require.NoError(t, err)

		var snap map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &snap))
		require.Contains(t, snap, "export_timestamp")
		require.Contains(t, snap, "short_term")
		require.Contains(t, snap, "long_term")
	})
}

func TestClearAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	store := NewStore(path)

	store.AddQuery("q")
	store.AddBrand("Casio")
	store.ClearAll()

	require.Zero(t, store.Stats().TotalQueries)
	require.Zero(t, store.Stats().BrandsTracked)

	// The reset survives a reload.
	reloaded := NewStore(path)
	require.Zero(t, reloaded.Stats().TotalQueries)
}
