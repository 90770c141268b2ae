package analysis

import "encoding/json"

// Review is one row of the review corpus.
type Review struct {
	ID         int64  `json:"id"`
	Brand      string `json:"brand"`
	StarRating int    `json:"star_rating"`
	Body       string `json:"review_body"`
}

// RetrievedReview is a corpus review with the similarity score attached by retrieval.
type RetrievedReview struct {
	Review
	Score float32 `json:"score"`
}

// QueryFeatures is the structured output of the query feature-extraction stage.
type QueryFeatures struct {
	Brand             string   `json:"brand"`
	Material          string   `json:"material"`
	WatchType         string   `json:"watch_type"`
	FeaturesMentioned []string `json:"features_mentioned"`
}

// Claim is a single complaint or praise item. Models return these either as plain
// strings or as objects keyed "complaint"/"issue"/"praise"/"feature", so decoding
// accepts both shapes.
type Claim struct {
	Text string
}

func (c *Claim) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	for _, key := range []string{"complaint", "issue", "praise", "feature"} {
		if v, ok := obj[key].(string); ok {
			c.Text = v
			return nil
		}
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	c.Text = string(raw)
	return nil
}

func (c Claim) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Text)
}

type SentimentPercentages struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// RatingStats are always recomputed from the retrieved set, never taken from
// model output.
type RatingStats struct {
	Average              float64              `json:"average"`
	Distribution         map[int]int          `json:"distribution"`
	TotalReviews         int                  `json:"total_reviews"`
	SentimentPercentages SentimentPercentages `json:"sentiment_percentages"`
}

type Summary struct {
	TopComplaints []Claim     `json:"top_complaints"`
	TopPraises    []Claim     `json:"top_praises"`
	SummaryText   string      `json:"summary_text"`
	RatingStats   RatingStats `json:"rating_stats"`
}

type Improvement struct {
	Area            string `json:"area"`
	Suggestion      string `json:"suggestion"`
	Priority        string `json:"priority"`
	EstimatedImpact string `json:"estimated_impact"`
}

type MarketingSuggestion struct {
	Strategy        string `json:"strategy"`
	Suggestion      string `json:"suggestion"`
	TargetAudience  string `json:"target_audience"`
	ExpectedOutcome string `json:"expected_outcome"`
}

type Advisor struct {
	ProductImprovements   []Improvement         `json:"product_improvements"`
	MarketingSuggestions  []MarketingSuggestion `json:"marketing_suggestions"`
	CompetitiveAdvantages []string              `json:"competitive_advantages"`
	RiskAreas             []string              `json:"risk_areas"`
}

type SentimentCounts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// FeatureInsight aggregates sentiment for one product feature.
// MentionCount always equals Positive + Negative + Neutral.
type FeatureInsight struct {
	MentionCount  int             `json:"mention_count"`
	AvgRating     float64         `json:"avg_rating"`
	Sentiment     SentimentCounts `json:"sentiment"`
	SampleReviews []string        `json:"sample_reviews"`
}

type EvalMetrics struct {
	RetrievalCount           int     `json:"retrieval_count"`
	RetrievalPrecision       float64 `json:"retrieval_precision"`
	SummaryFaithfulnessProxy float64 `json:"summary_faithfulness_proxy"`
	RatingAccuracy           float64 `json:"rating_accuracy"`
	SuggestionsGenerated     int     `json:"suggestions_generated"`
	ImprovedFaithfulness     float64 `json:"improved_faithfulness"`
}

type ClaimDetail struct {
	Text     string   `json:"text"`
	Keywords []string `json:"keywords"`
	Verified bool     `json:"verified"`
}

type FaithfulnessReport struct {
	ImprovedFaithfulness float64       `json:"improved_faithfulness"`
	ComplaintsVerified   string        `json:"complaints_verified"`
	PraisesVerified      string        `json:"praises_verified"`
	OverallVerification  string        `json:"overall_verification"`
	ComplaintDetails     []ClaimDetail `json:"complaint_details"`
	PraiseDetails        []ClaimDetail `json:"praise_details"`
	ScorePercentage      float64       `json:"score_percentage"`
}

// Result bundles everything one pipeline run produced.
type Result struct {
	ID                string                    `json:"id"`
	Query             string                    `json:"query"`
	Intent            string                    `json:"intent"`
	ExtractedFeatures QueryFeatures             `json:"extracted_features"`
	Summary           Summary                   `json:"summary"`
	FeatureAnalysis   map[string]FeatureInsight `json:"feature_analysis"`
	Advisor           Advisor                   `json:"advisor"`
	LatencyMetrics    map[string]float64        `json:"latency_metrics"`
	EvalMetrics       EvalMetrics               `json:"eval_metrics"`
	Faithfulness      FaithfulnessReport        `json:"faithfulness"`
	RetrievedCount    int                       `json:"retrieved_count"`
}
