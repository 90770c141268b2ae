package flat

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchsense/backend/internal/vector"
)

func TestNew(t *testing.T) {
	t.Run("valid dimension", func(t *testing.T) {
		idx, err := New(3)
		require.NoError(t, err)
		require.Equal(t, 3, idx.Dim())
		require.Zero(t, idx.Len())
	})

	t.Run("invalid dimension", func(t *testing.T) {
		_, err := New(0)
		require.Error(t, err)
	})
}

func TestAdd(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)

	t.Run("normalizes on insert", func(t *testing.T) {
		require.NoError(t, idx.Add([]int64{1}, [][]float32{{3, 4}}))

		got, err := idx.Search(context.Background(), []float32{0.6, 0.8}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.InDelta(t, 1.0, float64(got[0].Score), 1e-6)
	})

	t.Run("length mismatch", func(t *testing.T) {
		require.Error(t, idx.Add([]int64{1, 2}, [][]float32{{1, 0}}))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		require.Error(t, idx.Add([]int64{2}, [][]float32{{1, 0, 0}}))
	})
}

func TestSearch(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	require.NoError(t, idx.Add(
		[]int64{1, 2, 3},
		[][]float32{
			{1, 0},
			{0, 1},
			{0.7, 0.7},
		},
	))

	t.Run("orders by similarity", func(t *testing.T) {
		got, err := idx.Search(context.Background(), []float32{1, 0}, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		require.Equal(t, int64(1), got[0].ID)
		require.Equal(t, int64(3), got[1].ID)
		require.Equal(t, int64(2), got[2].ID)
	})

	t.Run("k caps the result", func(t *testing.T) {
		got, err := idx.Search(context.Background(), []float32{1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	t.Run("k beyond size returns everything", func(t *testing.T) {
		got, err := idx.Search(context.Background(), []float32{1, 0}, 100)
		require.NoError(t, err)
		require.Len(t, got, 3)
	})

	t.Run("wrong query dimension", func(t *testing.T) {
		_, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1)
		require.Error(t, err)
	})

	t.Run("non-positive k", func(t *testing.T) {
		got, err := idx.Search(context.Background(), []float32{1, 0}, 0)
		require.NoError(t, err)
		require.Empty(t, got)
	})
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")

	idx, err := New(2)
	require.NoError(t, err)
	require.NoError(t, idx.Add([]int64{1, 2}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, idx.Save(path))

	t.Run("round trip preserves search results", func(t *testing.T) {
		loaded, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, 2, loaded.Dim())
		require.Equal(t, 2, loaded.Len())

		got, err := loaded.Search(context.Background(), []float32{0, 1}, 1)
		require.NoError(t, err)
		require.Equal(t, int64(2), got[0].ID)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("unit length output", func(t *testing.T) {
		out := vector.Normalize([]float32{3, 4})

		var sum float64
		for _, x := range out {
			sum += float64(x) * float64(x)
		}
		require.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	})

	t.Run("zero vector unchanged", func(t *testing.T) {
		out := vector.Normalize([]float32{0, 0})
		require.Equal(t, []float32{0, 0}, out)
	})
}
