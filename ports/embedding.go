package ports

import "context"

// EmbeddingPort converts text to fixed-dimension vectors.
//
// Implementations issue one batched remote call per Embed invocation and
// retry transient failures with bounded exponential backoff internally.
// Permanent failures surface wrapped in core.ErrGatewayPermanent.
type EmbeddingPort interface {
	// Embed returns one vector per input text, in input order. Empty
	// strings are allowed and yield a defined low-information vector.
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the fixed vector width this embedder produces.
	// Constant for the lifetime of a deployment; a mismatch against a
	// stored index is a startup configuration error, never coerced.
	Dimensions() int
}
