// Package memindex is an in-memory RetrievalPort for development and tests:
// same contract as the Qdrant store without a running server.
package memindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"personaforge/domain/core"
	"personaforge/ports"
)

type entry struct {
	text     string
	vector   []float64
	metadata map[string]string
}

// Index holds embedded chunks in memory and answers cosine-similarity
// queries. Safe for concurrent use.
type Index struct {
	embedder ports.EmbeddingPort

	mu      sync.RWMutex
	entries []entry
}

// New creates an empty index over the given embedder.
func New(embedder ports.EmbeddingPort) *Index {
	return &Index{embedder: embedder}
}

// Add embeds and stores chunks with shared metadata.
func (idx *Index) Add(ctx context.Context, texts []string, metadata map[string]string) error {
	if len(texts) == 0 {
		return nil
	}
	vectors, err := idx.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, text := range texts {
		if len(idx.entries) > 0 && len(vectors[i]) != len(idx.entries[0].vector) {
			return core.NewDimensionMismatchError(len(idx.entries[0].vector), len(vectors[i]))
		}
		idx.entries = append(idx.entries, entry{
			text:     text,
			vector:   vectors[i],
			metadata: metadata,
		})
	}
	return nil
}

// UpsertChunks implements the indexer port over Add.
func (idx *Index) UpsertChunks(ctx context.Context, texts []string, metadata map[string]string) error {
	return idx.Add(ctx, texts, metadata)
}

// Query returns the topK closest chunks, scores in [0,1].
func (idx *Index) Query(ctx context.Context, queryText string, topK int, filter ports.ChunkFilter) ([]ports.RetrievedChunk, error) {
	vectors, err := idx.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, err
	}
	query := vectors[0]
	queryNorm := floats.Norm(query, 2)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var hits []ports.RetrievedChunk
	for _, e := range idx.entries {
		if !matches(e.metadata, filter) {
			continue
		}
		hits = append(hits, ports.RetrievedChunk{
			Text:     e.text,
			Score:    similarity(query, queryNorm, e.vector),
			Metadata: e.metadata,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count reports how many chunks match the filter.
func (idx *Index) Count(_ context.Context, filter ports.ChunkFilter) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	count := 0
	for _, e := range idx.entries {
		if matches(e.metadata, filter) {
			count++
		}
	}
	return count, nil
}

func matches(metadata map[string]string, filter ports.ChunkFilter) bool {
	for field, values := range filter {
		if len(values) == 0 {
			continue
		}
		actual, ok := metadata[field]
		if !ok {
			return false
		}
		found := false
		for _, v := range values {
			if v == actual {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func similarity(query []float64, queryNorm float64, vector []float64) float64 {
	if len(query) != len(vector) {
		return 0
	}
	norm := floats.Norm(vector, 2)
	if queryNorm == 0 || norm == 0 {
		return 0
	}
	return math.Max(0, floats.Dot(query, vector)/(queryNorm*norm))
}
