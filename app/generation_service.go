// Package app wires the domain logic to the outbound ports: the iterative
// generation controller, attribute validation, and persona expansion.
package app

import (
	"context"
	"errors"
	"fmt"

	"personaforge/domain/core"
	"personaforge/domain/diversity"
	"personaforge/domain/persona"
	"personaforge/internal"
	"personaforge/ports"
)

// RunState labels where a generation run ended up.
type RunState string

const (
	StateInitial           RunState = "INITIAL"
	StateGenerating        RunState = "GENERATING"
	StateScoring           RunState = "SCORING"
	StateDoneThresholdMet  RunState = "DONE_THRESHOLD_MET"
	StateDoneMaxIterations RunState = "DONE_MAX_ITERATIONS"
	StateDoneSinglePass    RunState = "DONE_SINGLE_PASS"
	StateFailed            RunState = "FAILED"
)

// Terminal reports whether a state ends the run.
func (s RunState) Terminal() bool {
	switch s {
	case StateDoneThresholdMet, StateDoneMaxIterations, StateDoneSinglePass, StateFailed:
		return true
	}
	return false
}

// Default tuning for the refinement loop.
const (
	DefaultNumPersonas   = 5
	DefaultRQEThreshold  = 0.75
	DefaultMaxIterations = 3
	MinNumPersonas       = 1
	MaxNumPersonas       = 10
)

// DocumentSet carries the source material for one run. At least one
// document must be present across both groups.
type DocumentSet struct {
	Interviews []string
	Context    []string
}

// Empty reports whether the set holds no documents at all.
func (d DocumentSet) Empty() bool {
	return len(d.Interviews) == 0 && len(d.Context) == 0
}

// GenerationConfig tunes one run. Zero values fall back to defaults.
type GenerationConfig struct {
	NumPersonas    int
	RQEThreshold   float64
	MaxIterations  int
	SinglePass     bool
	OutputFormat   ports.OutputFormat
	ContextDetails string
	InterviewTopic string
	StudyDesign    string
}

func (c GenerationConfig) withDefaults() GenerationConfig {
	if c.NumPersonas == 0 {
		c.NumPersonas = DefaultNumPersonas
	}
	if c.RQEThreshold == 0 {
		c.RQEThreshold = DefaultRQEThreshold
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.OutputFormat == "" {
		c.OutputFormat = ports.FormatJSON
	}
	return c
}

// Validate rejects out-of-range settings after defaults are applied.
func (c GenerationConfig) Validate() error {
	if c.NumPersonas < MinNumPersonas || c.NumPersonas > MaxNumPersonas {
		return fmt.Errorf("%w: num_personas must be between 1 and 10", core.ErrInvalidGenerationConfig)
	}
	if c.RQEThreshold < 0 || c.RQEThreshold > 1 {
		return fmt.Errorf("%w: rqe_threshold must be between 0 and 1", core.ErrInvalidGenerationConfig)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations must be at least 1", core.ErrInvalidGenerationConfig)
	}
	return nil
}

// Attempt records one completed generate-and-score iteration. The run's
// attempt history is append-only.
type Attempt struct {
	Iteration    int                 `json:"iteration"`
	Personas     []persona.Candidate `json:"personas"`
	Metrics      diversity.Metrics   `json:"metrics"`
	Threshold    float64             `json:"threshold"`
	ThresholdMet bool                `json:"threshold_met"`
	Hints        string              `json:"hints,omitempty"`
	ScoredAt     core.Timestamp      `json:"scored_at"`
}

// RunResult is the outcome of one generation run. When Incomplete is set,
// Personas holds the last scored attempt before the failure, and
// FailureCause explains what stopped the run.
type RunResult struct {
	RunID        core.RunID          `json:"run_id"`
	State        RunState            `json:"state"`
	Personas     []persona.Candidate `json:"personas"`
	Metrics      diversity.Metrics   `json:"metrics"`
	ThresholdMet bool                `json:"threshold_met"`
	Iterations   int                 `json:"iterations"`
	Attempts     []Attempt           `json:"attempts"`
	Incomplete   bool                `json:"incomplete,omitempty"`
	FailureCause error               `json:"-"`
}

// GenerationService runs the iterative diversity refinement loop:
// generate a batch, embed and score it, and retry with redundancy hints
// until the threshold is met or iterations run out.
type GenerationService struct {
	generator ports.GenerativePort
	embedder  ports.EmbeddingPort
	log       *internal.Logger
}

// NewGenerationService creates the controller over the given ports.
func NewGenerationService(generator ports.GenerativePort, embedder ports.EmbeddingPort, log *internal.Logger) *GenerationService {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &GenerationService{
		generator: generator,
		embedder:  embedder,
		log:       log.WithComponent("generation"),
	}
}

// Run executes one generation run. Configuration problems return an error;
// model-side failures after at least one scored attempt return the last
// attempt marked incomplete instead, so partial work is never discarded.
func (s *GenerationService) Run(ctx context.Context, docs DocumentSet, cfg GenerationConfig) (*RunResult, error) {
	if docs.Empty() {
		return nil, core.ErrNoDocuments
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID: core.RunID(core.NewID()),
		State: StateInitial,
	}
	maxIterations := cfg.MaxIterations
	if cfg.SinglePass {
		maxIterations = 1
	}

	hints := ""
	for iteration := 1; iteration <= maxIterations; iteration++ {
		// Cancellation is only honored between iterations so a scored
		// attempt is never thrown away mid-flight.
		if err := ctx.Err(); err != nil {
			s.log.Warn("run %s cancelled before iteration %d", result.RunID, iteration)
			return s.fail(result, err), nil
		}

		result.State = StateGenerating
		s.log.Info("run %s iteration %d/%d: generating %d personas", result.RunID, iteration, maxIterations, cfg.NumPersonas)

		candidates, err := s.generate(ctx, docs, cfg, hints)
		if err != nil {
			s.log.Error("run %s iteration %d: generation failed: %v", result.RunID, iteration, err)
			return s.fail(result, err), nil
		}

		result.State = StateScoring
		metrics, matrix, err := s.score(ctx, candidates)
		if err != nil {
			s.log.Error("run %s iteration %d: scoring failed: %v", result.RunID, iteration, err)
			return s.fail(result, err), nil
		}

		result.Attempts = append(result.Attempts, Attempt{
			Iteration:    iteration,
			Personas:     candidates,
			Metrics:      metrics,
			Threshold:    cfg.RQEThreshold,
			ThresholdMet: metrics.RQE >= cfg.RQEThreshold,
			Hints:        hints,
			ScoredAt:     core.Now(),
		})
		result.Iterations = iteration
		s.log.Info("run %s iteration %d: rqe=%.3f (threshold %.2f)", result.RunID, iteration, metrics.RQE, cfg.RQEThreshold)

		if metrics.RQE >= cfg.RQEThreshold {
			return s.finish(result, StateDoneThresholdMet, true), nil
		}
		if cfg.SinglePass {
			return s.finish(result, StateDoneSinglePass, false), nil
		}
		if iteration == maxIterations {
			return s.finish(result, StateDoneMaxIterations, false), nil
		}

		hints = diversity.BuildHints(diversity.FindSimilarPairs(matrix, candidateNames(candidates)))
	}

	// Unreachable: the loop always returns by its last iteration.
	return s.finish(result, StateDoneMaxIterations, false), nil
}

func (s *GenerationService) generate(ctx context.Context, docs DocumentSet, cfg GenerationConfig, hints string) ([]persona.Candidate, error) {
	raws, err := s.generator.GeneratePersonas(ctx, ports.PersonaGenerationRequest{
		InterviewDocuments: docs.Interviews,
		ContextDocuments:   docs.Context,
		NumPersonas:        cfg.NumPersonas,
		ContextDetails:     cfg.ContextDetails,
		InterviewTopic:     cfg.InterviewTopic,
		StudyDesign:        cfg.StudyDesign,
		EthicalGuardrails:  true,
		OutputFormat:       cfg.OutputFormat,
		DiversityHints:     hints,
	})
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, core.NewPermanentError("generate personas", errors.New("model returned no personas"))
	}
	candidates := make([]persona.Candidate, 0, len(raws))
	for _, raw := range raws {
		c := persona.Normalize(raw)
		c.ID = core.PersonaID(core.NewID())
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *GenerationService) score(ctx context.Context, candidates []persona.Candidate) (diversity.Metrics, diversity.SimilarityMatrix, error) {
	if len(candidates) < 2 {
		return diversity.PerfectMetrics(), nil, nil
	}
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.SummaryText()
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return diversity.Metrics{}, nil, err
	}
	matrix, err := diversity.NewSimilarityMatrix(vectors)
	if err != nil {
		return diversity.Metrics{}, nil, err
	}
	return diversity.Score(matrix), matrix, nil
}

// finish seals the result with the final attempt. Each re-generation
// replaces the previous candidate set, so earlier attempts survive only as
// history records.
func (s *GenerationService) finish(result *RunResult, state RunState, thresholdMet bool) *RunResult {
	result.State = state
	result.ThresholdMet = thresholdMet
	if n := len(result.Attempts); n > 0 {
		last := result.Attempts[n-1]
		result.Personas = last.Personas
		result.Metrics = last.Metrics
	}
	s.log.Info("run %s finished: state=%s iterations=%d rqe=%.3f", result.RunID, state, result.Iterations, result.Metrics.RQE)
	return result
}

// fail seals the result with the most recent scored attempt, so partial
// work survives the failure.
func (s *GenerationService) fail(result *RunResult, cause error) *RunResult {
	result.State = StateFailed
	result.Incomplete = true
	result.FailureCause = cause
	if n := len(result.Attempts); n > 0 {
		last := result.Attempts[n-1]
		result.Personas = last.Personas
		result.Metrics = last.Metrics
	}
	return result
}

func candidateNames(candidates []persona.Candidate) []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	return names
}
