package features

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchsense/backend/internal/analysis"
)

func retrievedReview(id int64, rating int, body string) analysis.RetrievedReview {
	return analysis.RetrievedReview{
		Review: analysis.Review{
			ID:         id,
			StarRating: rating,
			Body:       body,
		},
	}
}

func TestAnalyze(t *testing.T) {
	t.Run("aggregates battery mentions", func(t *testing.T) {
		retrieved := []analysis.RetrievedReview{
			retrievedReview(1, 5, "The battery lasts forever"),
			retrievedReview(2, 1, "Battery died within a week"),
			retrievedReview(3, 3, "Charging takes a while"),
			retrievedReview(4, 4, "Nice color"),
		}

		insights := Analyze(retrieved)

		battery, ok := insights["battery"]
		require.True(t, ok)
		require.Equal(t, 3, battery.MentionCount)
		require.Equal(t, 3.0, battery.AvgRating)
		require.Equal(t, 1, battery.Sentiment.Positive)
		require.Equal(t, 1, battery.Sentiment.Negative)
		require.Equal(t, 1, battery.Sentiment.Neutral)
	})

	t.Run("sentiment counts sum to mentions", func(t *testing.T) {
		retrieved := []analysis.RetrievedReview{
			retrievedReview(1, 5, "Comfortable strap, great fit"),
			retrievedReview(2, 2, "The band broke"),
			retrievedReview(3, 3, "Leather feels average"),
		}

		insights := Analyze(retrieved)

		for feature, insight := range insights {
			total := insight.Sentiment.Positive + insight.Sentiment.Negative + insight.Sentiment.Neutral
			require.Equal(t, insight.MentionCount, total, "feature %s", feature)
		}
	})

	t.Run("matching is case insensitive", func(t *testing.T) {
		retrieved := []analysis.RetrievedReview{
			retrievedReview(1, 4, "WATERPROOF and went for a SWIM"),
		}

		insights := Analyze(retrieved)

		water, ok := insights["water_resistance"]
		require.True(t, ok)
		require.Equal(t, 1, water.MentionCount)
	})

	t.Run("unmatched features are omitted", func(t *testing.T) {
		retrieved := []analysis.RetrievedReview{
			retrievedReview(1, 5, "Arrived on time"),
		}

		insights := Analyze(retrieved)
		require.Empty(t, insights)
	})

	t.Run("samples are capped", func(t *testing.T) {
		retrieved := []analysis.RetrievedReview{
			retrievedReview(1, 5, "Love the display"),
			retrievedReview(2, 4, "Clear display"),
			retrievedReview(3, 3, "Display is fine"),
			retrievedReview(4, 2, "Display scratched"),
			retrievedReview(5, 1, "Display died"),
		}

		insights := Analyze(retrieved)

		display := insights["display"]
		require.Equal(t, 5, display.MentionCount)
		require.Len(t, display.SampleReviews, 3)
		require.Equal(t, "Love the display", display.SampleReviews[0])
	})

	t.Run("empty input", func(t *testing.T) {
		require.Empty(t, Analyze(nil))
	})
}
