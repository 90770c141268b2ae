package flat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/vector"
	"github.com/watchsense/backend/pkg/logger"
)

// Index is a file-backed brute-force nearest-neighbor index. Vectors are stored
// L2-normalized, so inner product equals cosine similarity and search is a
// single dot product per row.
type Index struct {
	mu        sync.RWMutex
	dimension int
	ids       []int64
	vectors   [][]float32
}

type indexFile struct {
	Dimension int         `json:"dimension"`
	IDs       []int64     `json:"ids"`
	Vectors   [][]float32 `json:"vectors"`
}

func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid index dimension %d", dimension)
	}
	return &Index{dimension: dimension}, nil
}

// Load reads a pre-built index file. A missing or unreadable file is fatal:
// the retrieval engine cannot operate without its index.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse index file: %w", err)
	}

	if f.Dimension <= 0 {
		return nil, fmt.Errorf("index file has invalid dimension %d", f.Dimension)
	}
	if len(f.IDs) != len(f.Vectors) {
		return nil, fmt.Errorf("index file is inconsistent: %d ids, %d vectors", len(f.IDs), len(f.Vectors))
	}
	for i, v := range f.Vectors {
		if len(v) != f.Dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), f.Dimension)
		}
	}

	logger.Info("Flat index loaded",
		zap.String("path", path),
		zap.Int("vectors", len(f.Vectors)),
		zap.Int("dimension", f.Dimension),
	)

	return &Index{
		dimension: f.Dimension,
		ids:       f.IDs,
		vectors:   f.Vectors,
	}, nil
}

func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	f := indexFile{
		Dimension: idx.dimension,
		IDs:       idx.ids,
		Vectors:   idx.vectors,
	}
	data, err := json.Marshal(f)
	idx.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}

	logger.Info("Flat index saved", zap.String("path", path), zap.Int("vectors", len(f.Vectors)))
	return nil
}

// Add appends vectors to the index, normalizing each one.
func (idx *Index) Add(ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, v := range vectors {
		if len(v) != idx.dimension {
			return fmt.Errorf("vector for id %d has dimension %d, want %d", ids[i], len(v), idx.dimension)
		}
		idx.ids = append(idx.ids, ids[i])
		idx.vectors = append(idx.vectors, vector.Normalize(v))
	}

	return nil
}

func (idx *Index) Dim() int {
	return idx.dimension
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}

func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]vector.Neighbor, error) {
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, want %d", len(query), idx.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	neighbors := make([]vector.Neighbor, len(idx.vectors))
	for i, v := range idx.vectors {
		neighbors[i] = vector.Neighbor{ID: idx.ids[i], Score: dot(v, query)}
	}

	sort.SliceStable(neighbors, func(a, b int) bool {
		return neighbors[a].Score > neighbors[b].Score
	})

	if k > len(neighbors) {
		k = len(neighbors)
	}
	return neighbors[:k], nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
