// Package qdrant implements RetrievalPort over a Qdrant collection of
// embedded source chunks.
package qdrant

import (
	"context"
	"fmt"
	"math"

	"github.com/qdrant/go-client/qdrant"

	"personaforge/domain/core"
	"personaforge/internal"
	"personaforge/ports"
)

// Config holds connection and collection settings
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Store wraps a Qdrant collection behind ports.RetrievalPort. The query
// text is embedded with the same embedder that indexed the collection, so
// the collection is created with the embedder's vector width and cosine
// distance.
type Store struct {
	client     *qdrant.Client
	embedder   ports.EmbeddingPort
	collection string
	log        *internal.Logger
}

// NewStore connects to Qdrant and ensures the collection exists with the
// embedder's dimensions. An existing collection whose vector width differs
// from the embedder's is a startup configuration error, never coerced.
func NewStore(ctx context.Context, config Config, embedder ports.EmbeddingPort, log *internal.Logger) (*Store, error) {
	if config.Collection == "" {
		return nil, core.NewConfigurationError("missing qdrant collection name")
	}
	if log == nil {
		log = internal.DefaultLogger
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	store := &Store{
		client:     client,
		embedder:   embedder,
		collection: config.Collection,
		log:        log.WithComponent("qdrant"),
	}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("%w: list collections: %v", core.ErrRetrievalFailure, err)
	}
	for _, name := range collections {
		if name == s.collection {
			return s.checkDimensions(ctx)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.embedder.Dimensions()),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	s.log.Info("created collection %s (%d dimensions)", s.collection, s.embedder.Dimensions())
	return nil
}

// checkDimensions compares an existing collection's vector width against
// the embedder's before any query runs.
func (s *Store) checkDimensions(ctx context.Context) error {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: get collection info: %v", core.ErrRetrievalFailure, err)
	}
	size := int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	return verifyDimensions(size, s.embedder.Dimensions())
}

// verifyDimensions accepts a zero collection size, which Qdrant reports for
// named-vector layouts this store never creates.
func verifyDimensions(collectionSize, embedderSize int) error {
	if collectionSize != 0 && collectionSize != embedderSize {
		return core.NewDimensionMismatchError(collectionSize, embedderSize)
	}
	return nil
}

// Query embeds the query text and returns the closest chunks, scores
// normalized to [0,1].
func (s *Store) Query(ctx context.Context, queryText string, topK int, filter ports.ChunkFilter) ([]ports.RetrievedChunk, error) {
	vectors, err := s.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, err
	}

	limit := uint64(topK)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(toFloat32(vectors[0])...),
		Limit:          &limit,
		Filter:         buildFilter(filter),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query points: %v", core.ErrRetrievalFailure, err)
	}

	chunks := make([]ports.RetrievedChunk, 0, len(points))
	for _, point := range points {
		chunk := ports.RetrievedChunk{
			// Cosine scores from Qdrant sit in [-1,1]; negatives carry no
			// relevance signal.
			Score: math.Max(0, float64(point.Score)),
		}
		if point.Payload != nil {
			chunk.Text, chunk.Metadata = decodePayload(point.Payload)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Count reports how many chunks match the filter.
func (s *Store) Count(ctx context.Context, filter ports.ChunkFilter) (int, error) {
	exact := true
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         buildFilter(filter),
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count points: %v", core.ErrRetrievalFailure, err)
	}
	return int(count), nil
}

// UpsertChunks embeds and stores document chunks with their metadata.
func (s *Store) UpsertChunks(ctx context.Context, texts []string, metadata map[string]string) error {
	if len(texts) == 0 {
		return nil
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(texts))
	for i, text := range texts {
		payload := map[string]any{"text": text}
		for k, v := range metadata {
			payload[k] = v
		}
		points = append(points, &qdrant.PointStruct{
			Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: core.NewID().String()}},
			Vectors: qdrant.NewVectors(toFloat32(vectors[i])...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	wait := true
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("%w: upsert points: %v", core.ErrRetrievalFailure, err)
	}
	s.log.Debug("upserted %d chunks into %s", len(points), s.collection)
	return nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// buildFilter translates a ChunkFilter into Qdrant match conditions. All
// fields must match; within a field any listed value matches.
func buildFilter(filter ports.ChunkFilter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for field, values := range filter {
		switch len(values) {
		case 0:
			continue
		case 1:
			conditions = append(conditions, qdrant.NewMatch(field, values[0]))
		default:
			conditions = append(conditions, qdrant.NewMatchKeywords(field, values...))
		}
	}
	if len(conditions) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: conditions}
}

func decodePayload(payload map[string]*qdrant.Value) (string, map[string]string) {
	var text string
	metadata := make(map[string]string)
	for key, value := range payload {
		sv, ok := value.Kind.(*qdrant.Value_StringValue)
		if !ok {
			continue
		}
		if key == "text" {
			text = sv.StringValue
		} else {
			metadata[key] = sv.StringValue
		}
	}
	if len(metadata) == 0 {
		metadata = nil
	}
	return text, metadata
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
