package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/vector"
	"github.com/watchsense/backend/pkg/logger"
)

// Client is a Milvus-backed review embedding index, used instead of the local
// flat index when the corpus outgrows a single file.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

func NewClient(endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) Dim() int {
	return m.vectorDim
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Review text embeddings",
		Fields: []*entity.Field{
			{
				Name:       "review_id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     false,
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(m.vectorDim),
				},
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Vectors are normalized before insert, so inner product is cosine similarity.
	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index params: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, ids []int64, embeddings [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(embeddings) {
		return fmt.Errorf("ids and embeddings length mismatch: %d vs %d", len(ids), len(embeddings))
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnInt64("review_id", ids),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
	)
	if err != nil {
		return fmt.Errorf("failed to insert embeddings: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Embeddings inserted into vector DB", zap.Int("count", len(ids)))

	return nil
}

func (m *Client) Search(ctx context.Context, queryEmbedding []float32, k int) ([]vector.Neighbor, error) {
	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"review_id"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.IP,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	neighbors := make([]vector.Neighbor, 0, k)
	for _, sr := range searchResult {
		idCol, ok := sr.IDs.(*entity.ColumnInt64)
		if !ok {
			return nil, fmt.Errorf("unexpected id column type %T", sr.IDs)
		}
		for i := 0; i < sr.ResultCount; i++ {
			neighbors = append(neighbors, vector.Neighbor{
				ID:    idCol.Data()[i],
				Score: sr.Scores[i],
			})
		}
	}

	logger.Debug("Vector search completed",
		zap.Int("topK", k),
		zap.Int("results", len(neighbors)),
	)

	return neighbors, nil
}
