package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestHash(t *testing.T) {
	minStar, maxStar := 1, 3

	base := Request{Query: "strap issues", Brand: "Casio"}

	t.Run("deterministic", func(t *testing.T) {
		require.Equal(t, requestHash(base), requestHash(base))
	})

	t.Run("filters change the key", func(t *testing.T) {
		filtered := base
		filtered.MinStar = &minStar
		require.NotEqual(t, requestHash(base), requestHash(filtered))

		capped := filtered
		capped.MaxStar = &maxStar
		require.NotEqual(t, requestHash(filtered), requestHash(capped))
	})

	t.Run("brand changes the key", func(t *testing.T) {
		other := base
		other.Brand = "Seiko"
		require.NotEqual(t, requestHash(base), requestHash(other))
	})

	t.Run("observer does not affect the key", func(t *testing.T) {
		observed := base
		observed.OnStage = func(string, float64) {}
		require.Equal(t, requestHash(base), requestHash(observed))
	})
}
