package llm

import (
	"fmt"
	"strings"

	"personaforge/ports"
)

// formatGuides maps each output format to the rendering instructions
// appended to the generation prompt. Every format still requires the JSON
// envelope; the guide shapes the narrative style of field content.
var formatGuides = map[ports.OutputFormat]string{
	ports.FormatJSON:        "Write each field as plain, factual prose grounded in the source material.",
	ports.FormatProfile:     "Write fields as a professional research profile: third person, formal register, complete sentences.",
	ports.FormatChat:        "Write fields conversationally, in the persona's own first-person voice where natural.",
	ports.FormatProto:       "Write terse, compact field values suitable for a provisional proto-persona sketch.",
	ports.FormatAdhoc:       "Write quick, informal field values as for an ad-hoc workshop persona.",
	ports.FormatEngaging:    "Write vivid, narrative field values that make each persona feel like a real individual with a story.",
	ports.FormatGoalBased:   "Emphasize goals and tasks: make the goals field the richest, and relate other fields back to what the persona is trying to achieve.",
	ports.FormatRoleBased:   "Emphasize role and responsibilities: make occupation and behaviors the richest fields.",
	ports.FormatInteractive: "Write fields with enough specific detail to support follow-up questioning of the persona later.",
}

// ethicalGuardrails is always included in generation prompts.
const ethicalGuardrails = `ETHICAL REQUIREMENTS:
- Base every persona strictly on patterns present in the supplied material; do not invent demographic details the material cannot support.
- Avoid stereotypes: never derive personality, competence, or preferences from gender, ethnicity, age, or nationality alone.
- Represent the diversity actually present in the source material rather than an idealized population.
- Do not reproduce names or directly identifying details of real interview participants.`

// jsonEnvelope pins the machine-readable response contract.
const jsonEnvelope = `Respond with a single JSON object of the form {"personas": [...]} where each
array element is one persona object. Use these keys where the material
supports them: name, age, gender, location, occupation, education,
background, goals, frustrations, motivations, behaviors,
technology_profile, quote. Do not wrap the JSON in markdown fences.`

// BuildGenerationPrompt assembles the full generation prompt from a request.
// The document framing adapts to what is present: interviews, supporting
// context, or both.
func BuildGenerationPrompt(req ports.PersonaGenerationRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create %d distinct user personas grounded in the research material below.\n\n", req.NumPersonas)

	if req.InterviewTopic != "" {
		fmt.Fprintf(&b, "Interview topic: %s\n", req.InterviewTopic)
	}
	if req.StudyDesign != "" {
		fmt.Fprintf(&b, "Study design: %s\n", req.StudyDesign)
	}
	if req.ContextDetails != "" {
		fmt.Fprintf(&b, "Additional context: %s\n", req.ContextDetails)
	}
	b.WriteString("\n")

	switch {
	case len(req.InterviewDocuments) > 0 && len(req.ContextDocuments) > 0:
		b.WriteString("INTERVIEW TRANSCRIPTS (primary evidence):\n")
		writeDocuments(&b, req.InterviewDocuments)
		b.WriteString("\nSUPPORTING CONTEXT (secondary evidence):\n")
		writeDocuments(&b, req.ContextDocuments)
	case len(req.InterviewDocuments) > 0:
		b.WriteString("INTERVIEW TRANSCRIPTS:\n")
		writeDocuments(&b, req.InterviewDocuments)
	default:
		b.WriteString("CONTEXT DOCUMENTS:\n")
		writeDocuments(&b, req.ContextDocuments)
		b.WriteString("\nNo interview transcripts are available; derive personas from the context documents alone and keep claims proportional to that weaker evidence.\n")
	}
	b.WriteString("\n")

	if req.DiversityHints != "" {
		b.WriteString("DIVERSITY REQUIREMENTS:\n")
		b.WriteString(req.DiversityHints)
		b.WriteString("\n")
	}

	if req.EthicalGuardrails {
		b.WriteString(ethicalGuardrails)
		b.WriteString("\n\n")
	}

	if guide, ok := formatGuides[req.OutputFormat]; ok {
		b.WriteString(guide)
		b.WriteString("\n\n")
	}

	b.WriteString(jsonEnvelope)
	return b.String()
}

// BuildExpansionPrompt assembles the prompt that deepens one persona.
func BuildExpansionPrompt(personaJSON string, contextDocuments []string) string {
	var b strings.Builder

	b.WriteString("Expand the persona below with richer narrative detail grounded in the source material. ")
	b.WriteString("Deepen background, goals, frustrations, motivations, behaviors, and technology profile. ")
	b.WriteString("Never change the persona's name, age, or any demographic attribute.\n\n")

	b.WriteString("PERSONA:\n")
	b.WriteString(personaJSON)
	b.WriteString("\n\nSOURCE MATERIAL:\n")
	writeDocuments(&b, contextDocuments)

	b.WriteString("\nRespond with a single JSON object holding the expanded persona, using the same keys as the input. Do not wrap the JSON in markdown fences.\n")
	return b.String()
}

func writeDocuments(b *strings.Builder, docs []string) {
	for i, doc := range docs {
		fmt.Fprintf(b, "--- Document %d ---\n%s\n", i+1, doc)
	}
}
