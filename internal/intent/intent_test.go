package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Intent
	}{
		{
			name:  "negative keyword",
			query: "What are the main complaints about the strap?",
			want:  Negative,
		},
		{
			name:  "positive keyword",
			query: "What do customers love about this watch?",
			want:  Positive,
		},
		{
			name:  "no keywords",
			query: "Summarize reviews for Casio watches",
			want:  Overall,
		},
		{
			name:  "negative wins over positive",
			query: "Is the battery good or is it a problem?",
			want:  Negative,
		},
		{
			name:  "case insensitive",
			query: "BROKEN after two days",
			want:  Negative,
		},
		{
			name:  "keyword inside larger word",
			query: "The problematic clasp",
			want:  Negative,
		},
		{
			name:  "empty query",
			query: "",
			want:  Overall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Detect(tt.query))
		})
	}
}
