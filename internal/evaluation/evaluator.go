package evaluation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/analysis"
	"github.com/watchsense/backend/pkg/logger"
)

// targetRetrievalSize is the nominal retrieved-set size used as the precision
// denominator. It is a proxy, not ground truth.
const targetRetrievalSize = 40

const (
	proxySampleReviews  = 10
	verifySampleReviews = 20
	maxClaimKeywords    = 3
	claimTextLimit      = 60
)

var stopWords = map[string]struct{}{
	"very": {}, "much": {}, "good": {}, "about": {},
	"with": {}, "this": {}, "that": {},
}

// Evaluate computes the retrieval and summary quality scorecard for one run.
func Evaluate(query string, retrieved []analysis.RetrievedReview, summary analysis.Summary, advisor analysis.Advisor) analysis.EvalMetrics {
	metrics := analysis.EvalMetrics{
		RetrievalCount:     len(retrieved),
		RetrievalPrecision: math.Min(1.0, float64(len(retrieved))/targetRetrievalSize),
	}

	metrics.SummaryFaithfulnessProxy = faithfulnessProxy(retrieved, summary)

	if len(retrieved) > 0 {
		var ratingSum float64
		for _, r := range retrieved {
			ratingSum += float64(r.StarRating)
		}
		actualAvg := ratingSum / float64(len(retrieved))
		metrics.RatingAccuracy = 1 - math.Abs(actualAvg-summary.RatingStats.Average)/5.0
	}

	metrics.SuggestionsGenerated = len(advisor.ProductImprovements) + len(advisor.MarketingSuggestions)

	logger.Debug("Run evaluated",
		zap.String("query", query),
		zap.Int("retrieval_count", metrics.RetrievalCount),
		zap.Float64("rating_accuracy", metrics.RatingAccuracy),
	)

	return metrics
}

// faithfulnessProxy measures lexical overlap between the first few retrieved
// review texts and the serialized summary, normalized against a fixed budget of
// 100 shared words.
func faithfulnessProxy(retrieved []analysis.RetrievedReview, summary analysis.Summary) float64 {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return 0
	}

	reviewWords := make(map[string]struct{})
	for i, r := range retrieved {
		if i >= proxySampleReviews {
			break
		}
		for _, w := range strings.Fields(strings.ToLower(r.Body)) {
			reviewWords[w] = struct{}{}
		}
	}

	overlap := 0
	seen := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(string(summaryJSON))) {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := reviewWords[w]; ok {
			overlap++
		}
	}

	return math.Min(1.0, float64(overlap)/100)
}

// VerifyClaims checks every complaint and praise in the summary against the
// retrieved review texts. A claim is verified when any of its significant
// keywords appears as a substring of the concatenated first twenty reviews.
func VerifyClaims(retrieved []analysis.RetrievedReview, summary analysis.Summary) analysis.FaithfulnessReport {
	var texts []string
	for i, r := range retrieved {
		if i >= verifySampleReviews {
			break
		}
		texts = append(texts, r.Body)
	}
	corpus := strings.ToLower(strings.Join(texts, " "))

	verifiedComplaints, complaintDetails := verifyClaimList(summary.TopComplaints, corpus)
	verifiedPraises, praiseDetails := verifyClaimList(summary.TopPraises, corpus)

	totalClaims := len(summary.TopComplaints) + len(summary.TopPraises)
	verifiedClaims := verifiedComplaints + verifiedPraises

	var score float64
	if totalClaims > 0 {
		score = round3(float64(verifiedClaims) / float64(totalClaims))
	}

	return analysis.FaithfulnessReport{
		ImprovedFaithfulness: score,
		ComplaintsVerified:   fraction(verifiedComplaints, len(summary.TopComplaints)),
		PraisesVerified:      fraction(verifiedPraises, len(summary.TopPraises)),
		OverallVerification:  fraction(verifiedClaims, totalClaims),
		ComplaintDetails:     complaintDetails,
		PraiseDetails:        praiseDetails,
		ScorePercentage:      round1(score * 100),
	}
}

func verifyClaimList(claims []analysis.Claim, corpus string) (int, []analysis.ClaimDetail) {
	verified := 0
	details := make([]analysis.ClaimDetail, 0, len(claims))

	for _, claim := range claims {
		keywords := significantKeywords(claim.Text)

		found := false
		for _, kw := range keywords {
			if strings.Contains(corpus, kw) {
				found = true
				break
			}
		}
		if found {
			verified++
		}

		details = append(details, analysis.ClaimDetail{
			Text:     truncate(claim.Text, claimTextLimit),
			Keywords: keywords,
			Verified: found,
		})
	}

	return verified, details
}

// significantKeywords extracts up to three lower-cased tokens longer than three
// characters, skipping a fixed stop-word list.
func significantKeywords(text string) []string {
	keywords := make([]string, 0, maxClaimKeywords)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) <= 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		keywords = append(keywords, w)
		if len(keywords) == maxClaimKeywords {
			break
		}
	}
	return keywords
}

// fraction formats a verified/total pair for display. A zero denominator shows
// as 1 so the string stays meaningful.
func fraction(verified, total int) string {
	if total == 0 {
		total = 1
	}
	return fmt.Sprintf("%d/%d", verified, total)
}

// truncate caps s at limit runes, never splitting a multi-byte character.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
