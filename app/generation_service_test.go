package app

import (
	"context"
	"errors"
	"testing"

	"personaforge/domain/core"
	"personaforge/ports"
)

// stubGenerator replays canned candidate batches and records requests.
type stubGenerator struct {
	batches  [][]ports.RawCandidate
	requests []ports.PersonaGenerationRequest
	err      error
	errAfter int // fail on call n (1-based), 0 = per err immediately
	calls    int
}

func (g *stubGenerator) GeneratePersonas(_ context.Context, req ports.PersonaGenerationRequest) ([]ports.RawCandidate, error) {
	g.calls++
	g.requests = append(g.requests, req)
	if g.err != nil && (g.errAfter == 0 || g.calls >= g.errAfter) {
		return nil, g.err
	}
	batch := g.batches[0]
	if len(g.batches) > 1 {
		g.batches = g.batches[1:]
	}
	return batch, nil
}

func (g *stubGenerator) ExpandPersona(context.Context, string, []string) (ports.RawCandidate, error) {
	return nil, errors.New("not implemented")
}

func (g *stubGenerator) GenerateText(context.Context, string) (string, error) {
	return "", errors.New("not implemented")
}

// stubEmbedder returns one fixed vector per input text.
type stubEmbedder struct {
	vectors [][]float64
	err     error
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = e.vectors[i%len(e.vectors)]
	}
	return out, nil
}

func (e *stubEmbedder) Dimensions() int { return len(e.vectors[0]) }

// seqEmbedder returns a different vector set on each Embed call.
type seqEmbedder struct {
	batches [][][]float64
	call    int
}

func (e *seqEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	batch := e.batches[e.call]
	if e.call < len(e.batches)-1 {
		e.call++
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = batch[i%len(batch)]
	}
	return out, nil
}

func (e *seqEmbedder) Dimensions() int { return len(e.batches[0][0]) }

func rawBatch(names ...string) []ports.RawCandidate {
	batch := make([]ports.RawCandidate, len(names))
	for i, name := range names {
		batch[i] = ports.RawCandidate{"name": name, "background": "Background for " + name}
	}
	return batch
}

var orthogonal = [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
var identical = [][]float64{{1, 0, 0}}

func TestRunThresholdMetFirstIteration(t *testing.T) {
	gen := &stubGenerator{batches: [][]ports.RawCandidate{rawBatch("Ana", "Tomás", "Mira")}}
	svc := NewGenerationService(gen, &stubEmbedder{vectors: orthogonal}, nil)

	result, err := svc.Run(context.Background(), DocumentSet{Interviews: []string{"doc"}}, GenerationConfig{NumPersonas: 3})
	if err != nil {
		t.Fatal(err)
	}

	if result.State != StateDoneThresholdMet {
		t.Errorf("state = %s, want %s", result.State, StateDoneThresholdMet)
	}
	if !result.ThresholdMet {
		t.Error("threshold not marked met")
	}
	if result.Iterations != 1 || len(result.Attempts) != 1 {
		t.Errorf("iterations = %d, attempts = %d, want 1/1", result.Iterations, len(result.Attempts))
	}
	if len(result.Personas) != 3 {
		t.Errorf("personas = %d, want 3", len(result.Personas))
	}
	for _, p := range result.Personas {
		if p.ID.String() == "" {
			t.Error("persona missing assigned ID")
		}
	}
}

func TestRunExhaustsMaxIterationsWhenAlwaysSimilar(t *testing.T) {
	gen := &stubGenerator{batches: [][]ports.RawCandidate{rawBatch("Ana", "Tomás", "Mira")}}
	svc := NewGenerationService(gen, &stubEmbedder{vectors: identical}, nil)

	result, err := svc.Run(context.Background(), DocumentSet{Interviews: []string{"doc"}}, GenerationConfig{NumPersonas: 3})
	if err != nil {
		t.Fatal(err)
	}

	if result.State != StateDoneMaxIterations {
		t.Errorf("state = %s, want %s", result.State, StateDoneMaxIterations)
	}
	if result.ThresholdMet {
		t.Error("threshold marked met for identical personas")
	}
	if len(result.Attempts) != DefaultMaxIterations {
		t.Errorf("attempts = %d, want %d", len(result.Attempts), DefaultMaxIterations)
	}
	for _, attempt := range result.Attempts {
		want := attempt.Metrics.RQE >= attempt.Threshold
		if attempt.ThresholdMet != want {
			t.Errorf("attempt %d: threshold_met = %v with rqe %.3f against %.2f", attempt.Iteration, attempt.ThresholdMet, attempt.Metrics.RQE, attempt.Threshold)
		}
	}
	if gen.requests[0].DiversityHints != "" {
		t.Error("first iteration should carry no hints")
	}
	if gen.requests[1].DiversityHints == "" {
		t.Error("retry iteration should carry diversity hints")
	}
}

func TestRunSinglePassStopsAfterOneIteration(t *testing.T) {
	gen := &stubGenerator{batches: [][]ports.RawCandidate{rawBatch("Ana", "Tomás")}}
	svc := NewGenerationService(gen, &stubEmbedder{vectors: identical}, nil)

	result, err := svc.Run(context.Background(), DocumentSet{Context: []string{"doc"}}, GenerationConfig{NumPersonas: 2, SinglePass: true})
	if err != nil {
		t.Fatal(err)
	}

	if result.State != StateDoneSinglePass {
		t.Errorf("state = %s, want %s", result.State, StateDoneSinglePass)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
}

func TestRunSinglePassMeetingThresholdEndsThresholdMet(t *testing.T) {
	gen := &stubGenerator{batches: [][]ports.RawCandidate{rawBatch("Ana", "Tomás", "Mira")}}
	svc := NewGenerationService(gen, &stubEmbedder{vectors: orthogonal}, nil)

	result, err := svc.Run(context.Background(), DocumentSet{Context: []string{"doc"}}, GenerationConfig{NumPersonas: 3, SinglePass: true})
	if err != nil {
		t.Fatal(err)
	}

	if result.State != StateDoneThresholdMet {
		t.Errorf("state = %s, want %s", result.State, StateDoneThresholdMet)
	}
	if !result.ThresholdMet {
		t.Error("threshold not marked met")
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
}

func TestRunExhaustionReturnsFinalAttempt(t *testing.T) {
	// The first batch scores better than the later ones, but each
	// re-generation replaces the previous set; the result carries the
	// final batch with its own metrics.
	gen := &stubGenerator{batches: [][]ports.RawCandidate{
		rawBatch("Ana", "Tomás"),
		rawBatch("Bea", "Caro"),
		rawBatch("Dan", "Eli"),
	}}
	halfSimilar := [][]float64{{1, 0}, {0.5, 0.8660254037844386}}
	emb := &seqEmbedder{batches: [][][]float64{
		halfSimilar,
		{{1, 0}},
		{{1, 0}},
	}}
	svc := NewGenerationService(gen, emb, nil)

	result, err := svc.Run(context.Background(), DocumentSet{Interviews: []string{"doc"}}, GenerationConfig{NumPersonas: 2})
	if err != nil {
		t.Fatal(err)
	}

	if result.State != StateDoneMaxIterations {
		t.Errorf("state = %s, want %s", result.State, StateDoneMaxIterations)
	}
	if result.Personas[0].Name != "Dan" {
		t.Errorf("result carries %q, want the final batch", result.Personas[0].Name)
	}
	if result.Metrics.RQE > 0.01 {
		t.Errorf("final rqe = %.3f, want the last attempt's near-zero score", result.Metrics.RQE)
	}
	if result.Attempts[0].Metrics.RQE < 0.4 {
		t.Errorf("first attempt rqe = %.3f, want its higher score preserved in history", result.Attempts[0].Metrics.RQE)
	}
}

func TestRunRejectsEmptyDocuments(t *testing.T) {
	svc := NewGenerationService(&stubGenerator{}, &stubEmbedder{vectors: identical}, nil)

	_, err := svc.Run(context.Background(), DocumentSet{}, GenerationConfig{})
	if !errors.Is(err, core.ErrNoDocuments) {
		t.Errorf("err = %v, want ErrNoDocuments", err)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	svc := NewGenerationService(&stubGenerator{}, &stubEmbedder{vectors: identical}, nil)

	_, err := svc.Run(context.Background(), DocumentSet{Interviews: []string{"doc"}}, GenerationConfig{NumPersonas: 25})
	if !core.IsConfigurationError(err) {
		t.Errorf("err = %v, want configuration error", err)
	}
}

func TestRunGatewayFailureKeepsLastScoredAttempt(t *testing.T) {
	permanent := core.NewPermanentError("generate personas", errors.New("quota exhausted"))
	gen := &stubGenerator{
		batches:  [][]ports.RawCandidate{rawBatch("Ana", "Tomás", "Mira")},
		err:      permanent,
		errAfter: 2,
	}
	svc := NewGenerationService(gen, &stubEmbedder{vectors: identical}, nil)

	result, err := svc.Run(context.Background(), DocumentSet{Interviews: []string{"doc"}}, GenerationConfig{NumPersonas: 3})
	if err != nil {
		t.Fatal(err)
	}

	if result.State != StateFailed || !result.Incomplete {
		t.Errorf("state = %s incomplete = %v, want FAILED/incomplete", result.State, result.Incomplete)
	}
	if !core.IsPermanentError(result.FailureCause) {
		t.Errorf("failure cause = %v", result.FailureCause)
	}
	if len(result.Personas) != 3 {
		t.Errorf("personas = %d, want the first scored attempt preserved", len(result.Personas))
	}
	if len(result.Attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(result.Attempts))
	}
}

func TestRunCancellationBetweenIterations(t *testing.T) {
	gen := &stubGenerator{batches: [][]ports.RawCandidate{rawBatch("Ana", "Tomás")}}
	svc := NewGenerationService(gen, &stubEmbedder{vectors: identical}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Run(ctx, DocumentSet{Interviews: []string{"doc"}}, GenerationConfig{NumPersonas: 2})
	if err != nil {
		t.Fatal(err)
	}

	if result.State != StateFailed || !result.Incomplete {
		t.Errorf("state = %s incomplete = %v, want FAILED/incomplete", result.State, result.Incomplete)
	}
	if !errors.Is(result.FailureCause, context.Canceled) {
		t.Errorf("failure cause = %v, want context.Canceled", result.FailureCause)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times after cancellation", gen.calls)
	}
}

func TestRunSinglePersonaScoresPerfect(t *testing.T) {
	gen := &stubGenerator{batches: [][]ports.RawCandidate{rawBatch("Solo")}}
	svc := NewGenerationService(gen, &stubEmbedder{vectors: identical}, nil)

	result, err := svc.Run(context.Background(), DocumentSet{Interviews: []string{"doc"}}, GenerationConfig{NumPersonas: 1})
	if err != nil {
		t.Fatal(err)
	}

	if result.Metrics.RQE != 1 {
		t.Errorf("rqe = %f, want 1 for a single persona", result.Metrics.RQE)
	}
	if result.State != StateDoneThresholdMet {
		t.Errorf("state = %s, want %s", result.State, StateDoneThresholdMet)
	}
}
