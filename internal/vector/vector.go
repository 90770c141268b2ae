package vector

import (
	"context"
	"math"
)

// Neighbor is one nearest-neighbor hit: a corpus review id and its similarity
// score (inner product, cosine-equivalent for normalized vectors).
type Neighbor struct {
	ID    int64
	Score float32
}

// Index is a nearest-neighbor search index over review embeddings.
type Index interface {
	Search(ctx context.Context, vector []float32, k int) ([]Neighbor, error)
	Dim() int
}

// Normalize returns the L2-normalized copy of v. A zero vector is returned
// unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
