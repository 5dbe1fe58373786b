package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"personaforge/domain/core"
	"personaforge/internal"
	"personaforge/ports"
)

// Generator implements ports.GenerativePort over a ChatClient.
type Generator struct {
	client ChatClient
	log    *internal.Logger
}

// NewGenerator wires a chat client into the generative port.
func NewGenerator(client ChatClient, log *internal.Logger) *Generator {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &Generator{client: client, log: log.WithComponent("llm")}
}

// GeneratePersonas produces a candidate batch from source documents.
func (g *Generator) GeneratePersonas(ctx context.Context, req ports.PersonaGenerationRequest) ([]ports.RawCandidate, error) {
	prompt := BuildGenerationPrompt(req)
	g.log.Debug("generation prompt: %d chars, %d interview docs, %d context docs",
		len(prompt), len(req.InterviewDocuments), len(req.ContextDocuments))

	content, err := g.client.ChatCompletion(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	candidates, err := parsePersonaBatch(content)
	if err != nil {
		return nil, core.NewPermanentError("parse generated personas", err)
	}
	return candidates, nil
}

// ExpandPersona enriches one persona using the supplied source material.
func (g *Generator) ExpandPersona(ctx context.Context, personaJSON string, contextDocuments []string) (ports.RawCandidate, error) {
	content, err := g.client.ChatCompletion(ctx, BuildExpansionPrompt(personaJSON, contextDocuments), true)
	if err != nil {
		return nil, err
	}

	var raw ports.RawCandidate
	if err := json.Unmarshal([]byte(cleanJSONContent(content)), &raw); err != nil {
		return nil, core.NewPermanentError("parse expanded persona", err)
	}
	return raw, nil
}

// GenerateText runs a free-form completion without the JSON contract.
func (g *Generator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return g.client.ChatCompletion(ctx, prompt, false)
}

// parsePersonaBatch accepts either the {"personas": [...]} envelope or a
// bare array, since models drift between the two.
func parsePersonaBatch(content string) ([]ports.RawCandidate, error) {
	cleaned := cleanJSONContent(content)

	var envelope struct {
		Personas []ports.RawCandidate `json:"personas"`
	}
	if err := json.Unmarshal([]byte(cleaned), &envelope); err == nil && len(envelope.Personas) > 0 {
		return envelope.Personas, nil
	}

	var bare []ports.RawCandidate
	if err := json.Unmarshal([]byte(cleaned), &bare); err == nil && len(bare) > 0 {
		return bare, nil
	}

	return nil, fmt.Errorf("no personas found in model output")
}

// cleanJSONContent strips markdown code fences the model sometimes wraps
// its JSON in despite instructions.
func cleanJSONContent(content string) string {
	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx != -1 {
			cleaned = cleaned[idx+1:]
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}
