package features

import (
	"math"
	"strings"

	"github.com/watchsense/backend/internal/analysis"
)

// featureKeywords maps each feature category to its keyword synonyms. A review
// counts toward a feature when its text contains any synonym.
var featureKeywords = map[string][]string{
	"strap":            {"strap", "band", "bracelet", "leather", "metal", "rubber"},
	"battery":          {"battery", "charge", "power", "charging"},
	"display":          {"display", "screen", "lcd", "digital", "analog", "face"},
	"design":           {"design", "style", "look", "appearance", "aesthetic"},
	"durability":       {"durable", "quality", "break", "scratch", "damage", "broken"},
	"comfort":          {"comfort", "comfortable", "fit", "wear", "heavy", "light"},
	"water_resistance": {"water", "waterproof", "resistant", "swim", "shower"},
}

const maxSampleReviews = 3

// Analyze scans the retrieved reviews for each feature category and aggregates
// per-feature sentiment. Features with no matching reviews are omitted.
func Analyze(retrieved []analysis.RetrievedReview) map[string]analysis.FeatureInsight {
	result := make(map[string]analysis.FeatureInsight)

	for feature, keywords := range featureKeywords {
		var matched []analysis.RetrievedReview
		for _, review := range retrieved {
			if containsAny(review.Body, keywords) {
				matched = append(matched, review)
			}
		}

		if len(matched) == 0 {
			continue
		}

		var ratingSum float64
		var positive, negative int
		samples := make([]string, 0, maxSampleReviews)

		for _, review := range matched {
			ratingSum += float64(review.StarRating)
			switch {
			case review.StarRating >= 4:
				positive++
			case review.StarRating <= 2:
				negative++
			}
			if len(samples) < maxSampleReviews {
				samples = append(samples, review.Body)
			}
		}

		result[feature] = analysis.FeatureInsight{
			MentionCount: len(matched),
			AvgRating:    round2(ratingSum / float64(len(matched))),
			Sentiment: analysis.SentimentCounts{
				Positive: positive,
				Negative: negative,
				Neutral:  len(matched) - positive - negative,
			},
			SampleReviews: samples,
		}
	}

	return result
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
