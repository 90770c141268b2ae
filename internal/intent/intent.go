package intent

import "strings"

// Intent steers how downstream generation prompts are framed. It never changes
// the shape of the pipeline itself.
type Intent string

const (
	Negative Intent = "negative"
	Positive Intent = "positive"
	Overall  Intent = "overall"
)

var negativeKeywords = []string{
	"issue", "problem", "complaint", "negative", "bad", "poor", "worst",
	"hate", "dislike", "disappointed", "broken", "fail", "wrong", "defect",
	"flaw", "concern", "drawback", "downside", "weakness", "lacking",
}

var positiveKeywords = []string{
	"positive", "good", "great", "best", "love", "excellent", "amazing",
	"perfect", "praise", "strength", "advantage", "benefit", "like",
	"appreciate", "impressed", "satisfied", "happy",
}

// Detect classifies a query as negative, positive or overall. Negative keywords
// are checked first, so a query matching both sets is classified negative.
func Detect(query string) Intent {
	q := strings.ToLower(query)

	for _, word := range negativeKeywords {
		if strings.Contains(q, word) {
			return Negative
		}
	}

	for _, word := range positiveKeywords {
		if strings.Contains(q, word) {
			return Positive
		}
	}

	return Overall
}
