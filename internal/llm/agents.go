package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/analysis"
	"github.com/watchsense/backend/pkg/logger"
)

// ErrInvalidPayload marks a completion that could not be decoded into the
// expected structure. Callers treat it as a stage failure.
var ErrInvalidPayload = errors.New("invalid payload from completion")

// TopK is how many complaints and praises the summarizer is asked for.
const TopK = 5

const extractFeaturesSystemPrompt = `Extract product features from the user query.
Return JSON with:
- brand: extracted brand name (or null)
- material: material mentioned (leather, metal, rubber, etc.)
- watch_type: type of watch (digital, analog, smart, sport, etc.)
- features_mentioned: list of features (battery, strap, display, design, etc.)`

// ExtractQueryFeatures pulls brand, material, watch type and mentioned features
// out of a free-text query.
func (c *Client) ExtractQueryFeatures(ctx context.Context, query string) (*analysis.QueryFeatures, error) {
	content, err := c.Complete(ctx, extractFeaturesSystemPrompt, query, true)
	if err != nil {
		return nil, fmt.Errorf("failed to extract query features: %w", err)
	}

	var features analysis.QueryFeatures
	if err := decodePayload(content, &features); err != nil {
		return nil, err
	}

	logger.Debug("Query features extracted",
		zap.String("brand", features.Brand),
		zap.Strings("features", features.FeaturesMentioned),
	)

	return &features, nil
}

// SummarizeReviews asks the model for complaints, praises and a synopsis. The
// rating stats are injected into the prompt for context only; the caller
// recomputes and overwrites them from the retrieved set.
func (c *Client) SummarizeReviews(ctx context.Context, queryText, intent, reviewsSnippet string, stats analysis.RatingStats) (*analysis.Summary, error) {
	var focusInstruction string
	switch intent {
	case "negative":
		focusInstruction = "Focus mainly on recurring complaints. Complaints should be more detailed than praises."
	case "positive":
		focusInstruction = "Focus mainly on recurring praises. Praises should be more detailed than complaints."
	default:
		focusInstruction = "Provide a balanced view of both praises and complaints."
	}

	systemPrompt := fmt.Sprintf(`You are a Review Summarizer Agent for watch products.

User Intent: %s
Instruction: %s

Your task is to extract insights from customer reviews.

Return ONLY a JSON object with the following fields:

1. "top_complaints": list of the top %d recurring complaints
2. "top_praises": list of the top %d recurring praises
3. "summary_text": a concise 3-5 sentence summary
4. "rating_stats": an object containing:
    - "average": %.2f
    - "distribution": the rating distribution dictionary
    - "total_reviews": %d
    - "sentiment_percentages":
        - "positive": %.1f
        - "negative": %.1f
        - "neutral": %.1f

Do NOT include explanations, markdown, or commentary.
Return ONLY valid JSON.`,
		intent, focusInstruction, TopK, TopK,
		stats.Average, stats.TotalReviews,
		stats.SentimentPercentages.Positive,
		stats.SentimentPercentages.Negative,
		stats.SentimentPercentages.Neutral,
	)

	userPrompt := fmt.Sprintf("Query: %s\n\nHere are the customer reviews:\n%s", queryText, reviewsSnippet)

	content, err := c.Complete(ctx, systemPrompt, userPrompt, true)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize reviews: %w", err)
	}

	var summary analysis.Summary
	if err := decodePayload(content, &summary); err != nil {
		return nil, err
	}

	logger.Debug("Reviews summarized",
		zap.Int("complaints", len(summary.TopComplaints)),
		zap.Int("praises", len(summary.TopPraises)),
	)

	return &summary, nil
}

// GenerateRecommendations turns a summary and feature analysis into actionable
// product and marketing advice.
func (c *Client) GenerateRecommendations(ctx context.Context, intent, brand string, summary analysis.Summary, features map[string]analysis.FeatureInsight) (*analysis.Advisor, error) {
	var advisorFocus string
	switch intent {
	case "negative":
		advisorFocus = "Prioritize product improvements addressing customer complaints and vulnerabilities."
	case "positive":
		advisorFocus = "Focus more on praises and strengths for marketing opportunities."
	default:
		advisorFocus = "Provide a balanced set of improvements and marketing ideas."
	}

	systemPrompt := fmt.Sprintf(`You are an Action-Advisor Agent for product improvement.

User Intent: %s
Instruction: %s

You must generate ONLY a JSON object with these fields:

1. "product_improvements": 3-5 highly actionable improvements
    Each item must include:
    - "area": which feature or domain it impacts
    - "suggestion": clear recommended action
    - "priority": "high" | "medium" | "low"
    - "estimated_impact": estimated improvement outcome

2. "marketing_suggestions": 3-5 marketing strategies
    Each item must include:
    - "strategy"
    - "suggestion"
    - "target_audience"
    - "expected_outcome"

3. "competitive_advantages": key strengths from customer feedback, as a list of strings

4. "risk_areas": critical issues that could harm brand reputation, as a list of strings

Return ONLY valid JSON. No explanations, no markdown.`, intent, advisorFocus)

	if brand == "" {
		brand = "General Watch Category"
	}

	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}
	featuresJSON, err := json.MarshalIndent(features, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feature analysis: %w", err)
	}

	userPrompt := fmt.Sprintf("Brand: %s\n\nReview Summary:\n%s\n\nFeature Analysis:\n%s",
		brand, summaryJSON, featuresJSON)

	content, err := c.Complete(ctx, systemPrompt, userPrompt, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate recommendations: %w", err)
	}

	var advisor analysis.Advisor
	if err := decodePayload(content, &advisor); err != nil {
		return nil, err
	}

	if len(advisor.ProductImprovements) == 0 && len(advisor.MarketingSuggestions) == 0 {
		return nil, fmt.Errorf("%w: advisor response has no improvements or marketing suggestions", ErrInvalidPayload)
	}

	logger.Debug("Recommendations generated",
		zap.Int("improvements", len(advisor.ProductImprovements)),
		zap.Int("marketing", len(advisor.MarketingSuggestions)),
	)

	return &advisor, nil
}

// decodePayload parses a JSON-mode completion into v, tolerating markdown
// fences some models wrap around their output.
func decodePayload(content string, v interface{}) error {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if err := json.Unmarshal([]byte(trimmed), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
