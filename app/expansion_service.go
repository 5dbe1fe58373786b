package app

import (
	"context"
	"encoding/json"
	"strings"

	"personaforge/domain/persona"
	"personaforge/internal"
	"personaforge/ports"
)

// expansionTopK bounds how many retrieved chunks feed an expansion prompt.
const expansionTopK = 5

// ExpansionService enriches a single persona with additional narrative
// detail grounded in retrieved source material, then merges the result back
// under the closed-world rules of persona.MergeExpansion.
type ExpansionService struct {
	generator ports.GenerativePort
	retriever ports.RetrievalPort
	log       *internal.Logger
}

// NewExpansionService creates the expander. The retriever may be nil, in
// which case expansion always falls back to the caller's context documents.
func NewExpansionService(generator ports.GenerativePort, retriever ports.RetrievalPort, log *internal.Logger) *ExpansionService {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &ExpansionService{
		generator: generator,
		retriever: retriever,
		log:       log.WithComponent("expansion"),
	}
}

// Expand deepens one persona. Identity and demographics are guaranteed to
// survive unchanged; only narrative fields grow.
func (s *ExpansionService) Expand(ctx context.Context, original persona.Candidate, docs DocumentSet, filter ports.ChunkFilter) (persona.Candidate, error) {
	contextDocs := s.retrieveContext(ctx, original, docs, filter)

	personaJSON, err := json.Marshal(original.RawMap())
	if err != nil {
		return persona.Candidate{}, err
	}

	raw, err := s.generator.ExpandPersona(ctx, string(personaJSON), contextDocs)
	if err != nil {
		return persona.Candidate{}, err
	}

	expanded := persona.Normalize(raw)
	merged := persona.MergeExpansion(original, expanded)
	s.log.Info("expanded persona %s (%s)", original.ID, original.Name)
	return merged, nil
}

// retrieveContext queries the index with the persona's characteristic text.
// When nothing comes back, the full document set stands in so an expansion
// always has grounding material.
func (s *ExpansionService) retrieveContext(ctx context.Context, c persona.Candidate, docs DocumentSet, filter ports.ChunkFilter) []string {
	fallback := append(append([]string{}, docs.Context...), docs.Interviews...)
	if s.retriever == nil {
		return fallback
	}

	chunks, err := s.retriever.Query(ctx, characteristicQuery(c), expansionTopK, filter)
	if err != nil {
		s.log.Warn("context retrieval failed, falling back to full documents: %v", err)
		return fallback
	}
	if len(chunks) == 0 {
		s.log.Debug("no chunks matched persona %s, using full documents", c.ID)
		return fallback
	}

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}
	return texts
}

// characteristicQuery condenses a persona into a short retrieval query.
func characteristicQuery(c persona.Candidate) string {
	parts := make([]string, 0, 4)
	if c.Name != "" && c.Name != persona.UnknownPersonaName {
		parts = append(parts, c.Name)
	}
	if c.Demographics.Occupation != "" {
		parts = append(parts, c.Demographics.Occupation)
	}
	if len(c.Goals) > 0 {
		parts = append(parts, strings.Join(c.Goals, " "))
	}
	if c.Background != "" {
		parts = append(parts, c.Background)
	}
	return strings.Join(parts, " ")
}
