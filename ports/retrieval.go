package ports

import "context"

// ChunkFilter restricts retrieval to chunks whose metadata field matches any
// of the listed values. An empty filter matches everything.
type ChunkFilter map[string][]string

// RetrievedChunk is one vector-search hit.
type RetrievedChunk struct {
	Text string `json:"text"`
	// Score is normalized to roughly [0,1], most relevant first,
	// regardless of the backing index's native scoring.
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RetrievalPort wraps a vector similarity search index.
//
// An empty result set is a valid return value, not an error; callers branch
// on emptiness explicitly.
type RetrievalPort interface {
	// Query returns up to topK chunks ordered most-relevant-first.
	Query(ctx context.Context, queryText string, topK int, filter ChunkFilter) ([]RetrievedChunk, error)

	// Count reports how many chunks match the filter. Used to distinguish
	// "no source material exists" from "nothing matched this query".
	Count(ctx context.Context, filter ChunkFilter) (int, error)
}

// ChunkIndexerPort is the write side of a retrieval backend. Implemented by
// stores that accept new source material at runtime.
type ChunkIndexerPort interface {
	// UpsertChunks embeds and stores chunks, all sharing the metadata.
	UpsertChunks(ctx context.Context, texts []string, metadata map[string]string) error
}
