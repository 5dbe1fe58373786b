package ports

import "context"

// OutputFormat selects how generated personas are rendered.
type OutputFormat string

const (
	FormatJSON        OutputFormat = "json"
	FormatProfile     OutputFormat = "profile"
	FormatChat        OutputFormat = "chat"
	FormatProto       OutputFormat = "proto"
	FormatAdhoc       OutputFormat = "adhoc"
	FormatEngaging    OutputFormat = "engaging"
	FormatGoalBased   OutputFormat = "goal_based"
	FormatRoleBased   OutputFormat = "role_based"
	FormatInteractive OutputFormat = "interactive"
)

// PersonaGenerationRequest specifies one generation call.
type PersonaGenerationRequest struct {
	InterviewDocuments []string     `json:"interview_documents"`
	ContextDocuments   []string     `json:"context_documents"`
	NumPersonas        int          `json:"num_personas"`
	ContextDetails     string       `json:"context_details,omitempty"`
	InterviewTopic     string       `json:"interview_topic,omitempty"`
	StudyDesign        string       `json:"study_design,omitempty"`
	EthicalGuardrails  bool         `json:"ethical_guardrails"`
	OutputFormat       OutputFormat `json:"output_format"`
	// DiversityHints carries correction guidance from a prior scoring
	// pass into the next attempt's prompt.
	DiversityHints string `json:"diversity_hints,omitempty"`
}

// RawCandidate is one generated persona before normalization. The shape is
// model-dependent and unpredictable; only the normalizer interprets it.
type RawCandidate map[string]any

// GenerativePort wraps a text-generation model.
//
// Implementations retry rate-limit failures with bounded backoff; a
// permanent failure surfaces wrapped in core.ErrGatewayPermanent and aborts
// the current iteration only.
type GenerativePort interface {
	// GeneratePersonas produces a full candidate set from source documents.
	GeneratePersonas(ctx context.Context, req PersonaGenerationRequest) ([]RawCandidate, error)

	// ExpandPersona enriches one persona using retrieved context chunks.
	ExpandPersona(ctx context.Context, personaJSON string, contextDocuments []string) (RawCandidate, error)

	// GenerateText runs a free-form completion.
	GenerateText(ctx context.Context, prompt string) (string, error)
}
