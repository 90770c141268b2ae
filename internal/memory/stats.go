package memory

// PerformanceSummary aggregates the performance-metric log.
type PerformanceSummary struct {
	TotalRuns      float64 `json:"total_runs"`
	AvgLatency     float64 `json:"avg_latency"`
	AvgRetrievals  float64 `json:"avg_retrievals"`
	AvgSuggestions float64 `json:"avg_suggestions"`
}

// FeedbackSummary aggregates suggestion acceptance and rejection.
type FeedbackSummary struct {
	TotalFeedback  int     `json:"total_feedback"`
	Accepted       int     `json:"accepted"`
	Rejected       int     `json:"rejected"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// Stats is the memory overview served by the stats endpoint.
type Stats struct {
	TotalQueries    int                `json:"total_queries"`
	BrandsTracked   int                `json:"brands_tracked"`
	Brands          []string           `json:"brands"`
	SummariesStored int                `json:"summaries_stored"`
	QueryHistory    []QueryEntry       `json:"query_history"`
	Performance     PerformanceSummary `json:"performance"`
	Feedback        FeedbackSummary    `json:"feedback"`
}

const recentQueryLimit = 20

// Stats reports counts and rolling averages over the long-term store. The
// query history is returned most-recent first, capped at 20 entries.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.longTerm.QueryHistory
	start := 0
	if len(history) > recentQueryLimit {
		start = len(history) - recentQueryLimit
	}

	recent := make([]QueryEntry, 0, len(history)-start)
	for i := len(history) - 1; i >= start; i-- {
		recent = append(recent, history[i])
	}

	brands := make([]string, len(s.longTerm.Brands))
	copy(brands, s.longTerm.Brands)

	return Stats{
		TotalQueries:    len(history),
		BrandsTracked:   len(s.longTerm.Brands),
		Brands:          brands,
		SummariesStored: len(s.longTerm.CompleteAnalyses),
		QueryHistory:    recent,
		Performance:     s.performanceSummaryLocked(),
		Feedback:        s.feedbackSummaryLocked(),
	}
}

func (s *Store) performanceSummaryLocked() PerformanceSummary {
	entries := s.longTerm.PerformanceMetrics
	if len(entries) == 0 {
		return PerformanceSummary{}
	}

	var latencySum, retrievalSum, suggestionSum float64
	for _, entry := range entries {
		if total, ok := entry.Metrics.Latency["total_latency"]; ok {
			latencySum += total
		}
		retrievalSum += float64(entry.Metrics.RetrievalCount)
		suggestionSum += float64(entry.Metrics.SuggestionsGenerated)
	}

	n := float64(len(entries))
	return PerformanceSummary{
		TotalRuns:      n,
		AvgLatency:     latencySum / n,
		AvgRetrievals:  retrievalSum / n,
		AvgSuggestions: suggestionSum / n,
	}
}

func (s *Store) feedbackSummaryLocked() FeedbackSummary {
	accepted := len(s.longTerm.AcceptedSuggestions)
	rejected := len(s.longTerm.RejectedSuggestions)
	total := accepted + rejected

	summary := FeedbackSummary{
		TotalFeedback: total,
		Accepted:      accepted,
		Rejected:      rejected,
	}
	if total > 0 {
		summary.AcceptanceRate = float64(accepted) / float64(total) * 100
	}
	return summary
}
