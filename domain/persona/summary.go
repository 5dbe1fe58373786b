package persona

import "strings"

// SummaryText renders the candidate as a single flat string for embedding.
// Field order is fixed so that equal personas always embed identically:
// name, background, goals, frustrations, behaviors, occupation.
func (c Candidate) SummaryText() string {
	parts := make([]string, 0, 6)
	if c.Name != "" && c.Name != UnknownPersonaName {
		parts = append(parts, c.Name)
	}
	if c.Background != "" {
		parts = append(parts, c.Background)
	}
	if len(c.Goals) > 0 {
		parts = append(parts, strings.Join(c.Goals, " "))
	}
	if len(c.Frustrations) > 0 {
		parts = append(parts, strings.Join(c.Frustrations, " "))
	}
	if c.Behaviors != "" {
		parts = append(parts, c.Behaviors)
	}
	if c.Demographics.Occupation != "" {
		parts = append(parts, c.Demographics.Occupation)
	}
	return strings.Join(parts, " ")
}

// AttributeText returns the flattened text of one validatable attribute, or
// an empty string when the attribute carries no content.
func (c Candidate) AttributeText(attribute string) string {
	switch attribute {
	case "background":
		return c.Background
	case "goals":
		return strings.Join(c.Goals, " ")
	case "frustrations":
		return strings.Join(c.Frustrations, " ")
	case "motivations":
		return strings.Join(c.Motivations, " ")
	case "behaviors":
		return c.Behaviors
	case "quote":
		return c.Quote
	case "quotes":
		return strings.Join(c.Quotes, " ")
	}
	return ""
}

// ValidatableAttributes is the fixed set of persona fields that ground
// against source material, in report order.
var ValidatableAttributes = []string{
	"background", "goals", "frustrations", "motivations", "behaviors", "quote", "quotes",
}
