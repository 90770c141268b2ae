package llm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchsense/backend/internal/analysis"
)

func TestDecodePayload(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		var features analysis.QueryFeatures
		err := decodePayload(`{"brand": "Casio", "features_mentioned": ["battery"]}`, &features)
		require.NoError(t, err)
		require.Equal(t, "Casio", features.Brand)
		require.Equal(t, []string{"battery"}, features.FeaturesMentioned)
	})

	t.Run("fenced json", func(t *testing.T) {
		payload := "```json\n{\"brand\": \"Seiko\"}\n```"

		var features analysis.QueryFeatures
		err := decodePayload(payload, &features)
		require.NoError(t, err)
		require.Equal(t, "Seiko", features.Brand)
	})

	t.Run("bare fence", func(t *testing.T) {
		payload := "```\n{\"brand\": \"Timex\"}\n```"

		var features analysis.QueryFeatures
		err := decodePayload(payload, &features)
		require.NoError(t, err)
		require.Equal(t, "Timex", features.Brand)
	})

	t.Run("invalid json", func(t *testing.T) {
		var features analysis.QueryFeatures
		err := decodePayload("the model rambled instead", &features)
		require.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("summary with mixed claim shapes", func(t *testing.T) {
		payload := `{
			"top_complaints": ["strap broke", {"complaint": "battery drains"}],
			"top_praises": [{"praise": "great display"}],
			"summary_text": "mixed feedback"
		}`

		var summary analysis.Summary
		err := decodePayload(payload, &summary)
		require.NoError(t, err)
		require.Equal(t, "strap broke", summary.TopComplaints[0].Text)
		require.Equal(t, "battery drains", summary.TopComplaints[1].Text)
		require.Equal(t, "great display", summary.TopPraises[0].Text)
	})
}
