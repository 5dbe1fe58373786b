package app

import (
	"context"
	"sort"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"personaforge/domain/core"
	"personaforge/domain/persona"
	"personaforge/internal"
	"personaforge/ports"
)

// Validation tuning.
const (
	DefaultCSThreshold = 0.80
	validationTopK     = 5
	maxSourceChunks    = 2
	sourceChunkMaxLen  = 200
)

// Report statuses. ReportDataUnavailable marks a run with no source corpus:
// the report is still complete and well typed, but every attribute is
// flagged at similarity zero and must not be read as a genuine low score.
const (
	ReportValidated       = "validated"
	ReportPartial         = "partial"
	ReportDataUnavailable = "validation_data_unavailable"
)

// SourceChunk is an excerpt of the source material that grounded one
// attribute, truncated for display.
type SourceChunk struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// AttributeResult grounds one persona attribute against retrieved source
// chunks. Similarity is the mean score of the top-k retrieved chunks; an
// attribute is flagged whenever it fails to clear the threshold.
type AttributeResult struct {
	Attribute    string        `json:"attribute"`
	Similarity   float64       `json:"similarity"`
	Validated    bool          `json:"validated"`
	Flagged      bool          `json:"flagged,omitempty"`
	SourceChunks []SourceChunk `json:"source_chunks,omitempty"`
}

// PersonaReport is the validation outcome for one persona: the name lists
// partition the attributes that carried text, and ValidationRate is the
// validated share of those attributes.
type PersonaReport struct {
	PersonaID           core.PersonaID    `json:"persona_id"`
	Name                string            `json:"name"`
	Attributes          []AttributeResult `json:"attributes"`
	ValidatedAttributes []string          `json:"validated_attributes"`
	FlaggedAttributes   []string          `json:"flagged_attributes"`
	ValidationRate      float64           `json:"validation_rate"`
	Status              string            `json:"validation_status"`
}

// SetReport is the validation outcome for a whole persona set.
// ValidationRate counts validated attributes across every persona.
type SetReport struct {
	Personas       []PersonaReport `json:"personas"`
	Status         string          `json:"status"`
	ValidationRate float64         `json:"validation_rate"`
	Threshold      float64         `json:"threshold"`
}

// ValidationService grounds generated personas against the source corpus:
// each validatable attribute is used as a retrieval query and passes when
// the mean similarity of its retrieved chunks clears the threshold.
type ValidationService struct {
	retriever ports.RetrievalPort
	log       *internal.Logger
}

// NewValidationService creates the validator over a retrieval backend.
func NewValidationService(retriever ports.RetrievalPort, log *internal.Logger) *ValidationService {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &ValidationService{
		retriever: retriever,
		log:       log.WithComponent("validation"),
	}
}

// ValidateSet validates every persona concurrently. When the corpus holds
// no chunks at all, the report comes back with ReportDataUnavailable and
// every attribute flagged at zero, distinguishable from genuine low scores.
func (s *ValidationService) ValidateSet(ctx context.Context, personas []persona.Candidate, threshold float64, filter ports.ChunkFilter) (*SetReport, error) {
	if threshold == 0 {
		threshold = DefaultCSThreshold
	}

	count, err := s.retriever.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		s.log.Warn("validation requested but no source chunks match the filter")
		return unavailableReport(personas, threshold), nil
	}

	reports := make([]PersonaReport, len(personas))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range personas {
		g.Go(func() error {
			report, err := s.validatePersona(gctx, c, threshold, filter)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	validatedAttrs, totalAttrs := 0, 0
	status := ReportValidated
	for _, r := range reports {
		validatedAttrs += len(r.ValidatedAttributes)
		totalAttrs += len(r.Attributes)
		if r.Status != ReportValidated {
			status = ReportPartial
		}
	}
	report := &SetReport{
		Personas:  reports,
		Status:    status,
		Threshold: threshold,
	}
	if totalAttrs > 0 {
		report.ValidationRate = float64(validatedAttrs) / float64(totalAttrs)
	}
	s.log.Info("validated %d/%d attributes across %d personas (threshold %.2f)", validatedAttrs, totalAttrs, len(reports), threshold)
	return report, nil
}

func (s *ValidationService) validatePersona(ctx context.Context, c persona.Candidate, threshold float64, filter ports.ChunkFilter) (PersonaReport, error) {
	report := PersonaReport{
		PersonaID: c.ID,
		Name:      c.Name,
	}

	for _, attribute := range persona.ValidatableAttributes {
		text := c.AttributeText(attribute)
		if text == "" {
			continue
		}

		chunks, err := s.retriever.Query(ctx, text, validationTopK, filter)
		if err != nil {
			return PersonaReport{}, err
		}

		// A query that matches nothing keeps similarity zero; an
		// ungrounded claim surfaces as ungrounded, never disappears.
		result := AttributeResult{Attribute: attribute}
		if len(chunks) > 0 {
			result.Similarity = meanSimilarity(chunks)
			result.SourceChunks = excerptChunks(chunks)
		}
		result.Validated = result.Similarity >= threshold
		result.Flagged = !result.Validated

		if result.Validated {
			report.ValidatedAttributes = append(report.ValidatedAttributes, attribute)
		} else {
			report.FlaggedAttributes = append(report.FlaggedAttributes, attribute)
		}
		report.Attributes = append(report.Attributes, result)
	}

	if total := len(report.Attributes); total > 0 {
		report.ValidationRate = float64(len(report.ValidatedAttributes)) / float64(total)
	}
	if len(report.FlaggedAttributes) == 0 {
		report.Status = ReportValidated
	} else {
		report.Status = ReportPartial
	}
	return report, nil
}

// unavailableReport marks every present attribute flagged at similarity
// zero without querying anything.
func unavailableReport(personas []persona.Candidate, threshold float64) *SetReport {
	reports := make([]PersonaReport, 0, len(personas))
	for _, c := range personas {
		report := PersonaReport{PersonaID: c.ID, Name: c.Name, Status: ReportDataUnavailable}
		for _, attribute := range persona.ValidatableAttributes {
			if c.AttributeText(attribute) == "" {
				continue
			}
			report.Attributes = append(report.Attributes, AttributeResult{
				Attribute: attribute,
				Flagged:   true,
			})
			report.FlaggedAttributes = append(report.FlaggedAttributes, attribute)
		}
		reports = append(reports, report)
	}
	return &SetReport{
		Personas:  reports,
		Status:    ReportDataUnavailable,
		Threshold: threshold,
	}
}

// meanSimilarity averages the scores of the retrieved chunks, so one strong
// hit cannot validate an attribute the rest of the corpus disputes.
func meanSimilarity(chunks []ports.RetrievedChunk) float64 {
	scores := make([]float64, len(chunks))
	for i, chunk := range chunks {
		scores[i] = chunk.Score
	}
	mean, _ := stats.Mean(scores)
	return mean
}

// excerptChunks keeps the strongest chunks as trimmed display excerpts.
func excerptChunks(chunks []ports.RetrievedChunk) []SourceChunk {
	sorted := make([]ports.RetrievedChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if len(sorted) > maxSourceChunks {
		sorted = sorted[:maxSourceChunks]
	}
	out := make([]SourceChunk, 0, len(sorted))
	for _, chunk := range sorted {
		out = append(out, SourceChunk{Text: truncateRunes(chunk.Text, sourceChunkMaxLen), Score: chunk.Score})
	}
	return out
}

// truncateRunes cuts on a rune boundary so a multi-byte character is never
// split mid-sequence.
func truncateRunes(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes)
}
