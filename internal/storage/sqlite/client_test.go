package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchsense/backend/internal/analysis"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func TestInsertAndLoad(t *testing.T) {
	client := newTestClient(t)

	reviews := []analysis.Review{
		{ID: 1, Brand: "Casio", StarRating: 5, Body: "Great battery"},
		{ID: 2, Brand: "Seiko", StarRating: 2, Body: "Strap broke"},
	}
	require.NoError(t, client.InsertReviews(reviews))

	t.Run("load all", func(t *testing.T) {
		got, err := client.LoadAll()
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, reviews[0], got[1])
		require.Equal(t, reviews[1], got[2])
	})

	t.Run("count", func(t *testing.T) {
		count, err := client.Count()
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})

	t.Run("empty insert is a no-op", func(t *testing.T) {
		require.NoError(t, client.InsertReviews(nil))

		count, err := client.Count()
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})
}

func TestLoadEmptyCorpus(t *testing.T) {
	client := newTestClient(t)

	got, err := client.LoadAll()
	require.NoError(t, err)
	require.Empty(t, got)
}
