package evaluation

import (
	"strings"
	"testing"
	"unicode/utf8"

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

func claims(texts ...string) []analysis.Claim {
	out := make([]analysis.Claim, 0, len(texts))
	for _, t := range texts {
		out = append(out, analysis.Claim{Text: t})
	}
	return out
}

func TestEvaluate(t *testing.T) {
	t.Run("precision caps at one", func(t *testing.T) {
		retrieved := make([]analysis.RetrievedReview, 0, 60)
		for i := 0; i < 60; i++ {
			retrieved = append(retrieved, retrievedReview(int64(i), 4, "solid watch"))
		}

		metrics := Evaluate("query", retrieved, analysis.Summary{}, analysis.Advisor{})

		require.Equal(t, 60, metrics.RetrievalCount)
		require.Equal(t, 1.0, metrics.RetrievalPrecision)
	})

	t.Run("precision scales with retrieved count", func(t *testing.T) {
		retrieved := []analysis.RetrievedReview{
			retrievedReview(1, 4, "solid watch"),
			retrievedReview(2, 5, "runs well"),
		}

		metrics := Evaluate("query", retrieved, analysis.Summary{}, analysis.Advisor{})
		require.InDelta(t, 0.05, metrics.RetrievalPrecision, 1e-9)
	})

	t.Run("rating accuracy rewards matching averages", func(t *testing.T) {
		retrieved := []analysis.RetrievedReview{
			retrievedReview(1, 4, "a"),
			retrievedReview(2, 2, "b"),
		}
		summary := analysis.Summary{
			RatingStats: analysis.RatingStats{Average: 3.0},
		}

		metrics := Evaluate("query", retrieved, summary, analysis.Advisor{})
		require.Equal(t, 1.0, metrics.RatingAccuracy)
	})

	t.Run("rating accuracy penalizes drift", func(t *testing.T) {
		retrieved := []analysis.RetrievedReview{
			retrievedReview(1, 1, "a"),
		}
		summary := analysis.Summary{
			RatingStats: analysis.RatingStats{Average: 5.0},
		}

		metrics := Evaluate("query", retrieved, summary, analysis.Advisor{})
		require.InDelta(t, 0.2, metrics.RatingAccuracy, 1e-9)
	})

	t.Run("no retrieved reviews leaves accuracy zero", func(t *testing.T) {
		metrics := Evaluate("query", nil, analysis.Summary{}, analysis.Advisor{})
		require.Zero(t, metrics.RatingAccuracy)
		require.Zero(t, metrics.RetrievalCount)
	})

	t.Run("suggestions counted across both lists", func(t *testing.T) {
		advisor := analysis.Advisor{
			ProductImprovements: []analysis.Improvement{{Area: "strap"}, {Area: "battery"}},
			MarketingSuggestions: []analysis.MarketingSuggestion{
				{Strategy: "divers"},
			},
		}

		metrics := Evaluate("query", nil, analysis.Summary{}, advisor)
		require.Equal(t, 3, metrics.SuggestionsGenerated)
	})

	t.Run("faithfulness proxy stays within bounds", func(t *testing.T) {
		retrieved := []analysis.RetrievedReview{
			retrievedReview(1, 5, "battery lasts long and the strap is comfortable"),
		}
		summary := analysis.Summary{
			SummaryText: "battery lasts long and the strap is comfortable",
		}

		metrics := Evaluate("query", retrieved, summary, analysis.Advisor{})
		require.GreaterOrEqual(t, metrics.SummaryFaithfulnessProxy, 0.0)
		require.LessOrEqual(t, metrics.SummaryFaithfulnessProxy, 1.0)
		require.Greater(t, metrics.SummaryFaithfulnessProxy, 0.0)
	})
}

func TestVerifyClaims(t *testing.T) {
	retrieved := []analysis.RetrievedReview{
		retrievedReview(1, 1, "The strap broke after a month of light use"),
		retrievedReview(2, 5, "Battery life is outstanding, weeks on one charge"),
	}

	t.Run("verified and unverified claims", func(t *testing.T) {
		summary := analysis.Summary{
			TopComplaints: claims("strap broke quickly"),
			TopPraises:    claims("excellent battery life", "waterproof to great depths"),
		}

		report := VerifyClaims(retrieved, summary)

		require.Equal(t, "1/1", report.ComplaintsVerified)
		require.Equal(t, "1/2", report.PraisesVerified)
		require.Equal(t, "2/3", report.OverallVerification)
		require.InDelta(t, 0.667, report.ImprovedFaithfulness, 1e-9)
		require.InDelta(t, 66.7, report.ScorePercentage, 1e-9)

		require.Len(t, report.ComplaintDetails, 1)
		require.True(t, report.ComplaintDetails[0].Verified)
		require.Len(t, report.PraiseDetails, 2)
		require.True(t, report.PraiseDetails[0].Verified)
		require.False(t, report.PraiseDetails[1].Verified)
	})

	t.Run("no claims yields zero score", func(t *testing.T) {
		report := VerifyClaims(retrieved, analysis.Summary{})

		require.Zero(t, report.ImprovedFaithfulness)
		require.Equal(t, "0/1", report.OverallVerification)
		require.Empty(t, report.ComplaintDetails)
	})

	t.Run("claim text truncated in details", func(t *testing.T) {
		long := "strap " + strings.Repeat("padding ", 12)
		summary := analysis.Summary{
			TopComplaints: claims(long),
		}

		report := VerifyClaims(retrieved, summary)
		require.LessOrEqual(t, len(report.ComplaintDetails[0].Text), 60)
	})

	t.Run("truncation keeps multi-byte text valid", func(t *testing.T) {
		long := "strap café " + strings.Repeat("é", 80)
		summary := analysis.Summary{
			TopComplaints: claims(long),
		}

		report := VerifyClaims(retrieved, summary)

		text := report.ComplaintDetails[0].Text
		require.True(t, utf8.ValidString(text))
		require.Equal(t, 60, utf8.RuneCountInString(text))
	})
}

func TestSignificantKeywords(t *testing.T) {
	t.Run("skips short and stop words", func(t *testing.T) {
		got := significantKeywords("Very good fit with this strap design")
		require.Equal(t, []string{"strap", "design"}, got)
	})

	t.Run("caps at three keywords", func(t *testing.T) {
		got := significantKeywords("battery display strap clasp bezel")
		require.Equal(t, []string{"battery", "display", "strap"}, got)
	})

	t.Run("empty text", func(t *testing.T) {
		require.Empty(t, significantKeywords(""))
	})
}
