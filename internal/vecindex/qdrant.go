package vecindex

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"studyrag/internal/contextutil"
)

// deterministicUUID maps a chunk id to a stable UUID acceptable as a Qdrant
// point id. Re-ingesting the same chunk overwrites the same point.
func deterministicUUID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// QdrantBackend stores vectors in a Qdrant collection. Persistence is owned
// by the Qdrant server, so Load only has to ensure the collection exists.
type QdrantBackend struct {
	client     *qdrant.Client
	collection string
	dim        int
}

// NewQdrantBackend creates a Qdrant-backed vector store. urlStr should be in
// the format "http://host:port"; the gRPC port is derived from the HTTP port.
func NewQdrantBackend(urlStr, collection string, dim int) (*QdrantBackend, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		if httpPort, err := strconv.Atoi(parsedURL.Port()); err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantBackend{
		client:     client,
		collection: collection,
		dim:        dim,
	}, nil
}

// Load ensures the collection exists with the expected vector size.
func (b *QdrantBackend) Load(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", b.collection, "vector_size", b.dim)
		if err := b.createCollection(ctx); err != nil {
			return err
		}
		return nil
	}

	info, err := b.client.GetCollectionInfo(ctx, b.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}

	config := info.Config
	if config == nil || config.Params == nil {
		return fmt.Errorf("collection config is invalid")
	}
	vectorsConfig := config.Params.GetVectorsConfig()
	if vectorsConfig == nil {
		return fmt.Errorf("collection vectors config is invalid")
	}
	params := vectorsConfig.GetParams()
	if params == nil {
		return fmt.Errorf("collection vector params are invalid")
	}
	if int(params.Size) != b.dim {
		return fmt.Errorf("collection vector size mismatch: expected %d, got %d", b.dim, params.Size)
	}

	logger.InfoContext(ctx, "collection validated", "collection", b.collection, "vector_size", b.dim)
	return nil
}

func (b *QdrantBackend) createCollection(ctx context.Context) error {
	err := b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(b.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Upsert inserts or replaces points in the collection.
func (b *QdrantBackend) Upsert(ctx context.Context, items []Item) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(items) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(items))
	for _, item := range items {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(deterministicUUID(item.ID)),
			Vectors: qdrant.NewVectors(item.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_id":   item.ID,
				"seq":        item.Seq,
				"collection": item.Collection,
				"source":     item.Source,
			}),
		})
	}

	_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: b.collection,
		Points:         points,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", b.collection, "count", len(items), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.InfoContext(ctx, "upserted points", "collection", b.collection, "count", len(items))
	return nil
}

// Search performs a similarity search against the collection. Qdrant does not
// guarantee tie order, so equal scores are re-sorted by insertion sequence.
func (b *QdrantBackend) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	limit := uint64(k)
	scoredPoints, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: b.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", b.collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	hits := make([]Hit, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		hit := Hit{Score: float64(point.Score)}
		if point.Payload != nil {
			if v, ok := point.Payload["chunk_id"]; ok {
				hit.ID = v.GetStringValue()
			}
			if v, ok := point.Payload["seq"]; ok {
				hit.Seq = int(v.GetIntegerValue())
			}
		}
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(a, c int) bool {
		if hits[a].Score != hits[c].Score {
			return hits[a].Score > hits[c].Score
		}
		return hits[a].Seq < hits[c].Seq
	})

	return hits, nil
}

// Clear drops and recreates the collection.
func (b *QdrantBackend) Clear(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := b.client.DeleteCollection(ctx, b.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if err := b.createCollection(ctx); err != nil {
		return err
	}

	logger.InfoContext(ctx, "collection cleared", "collection", b.collection)
	return nil
}

// Count returns the number of stored points.
func (b *QdrantBackend) Count(ctx context.Context) (int, error) {
	info, err := b.client.GetCollectionInfo(ctx, b.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection info: %w", err)
	}
	if info.PointsCount == nil {
		return 0, nil
	}
	return int(*info.PointsCount), nil
}
