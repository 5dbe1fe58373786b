package persona

import (
	"personaforge/domain/core"
)

// Demographics is the canonical nested demographic block. Fields here are
// never invented and never overwritten by enrichment passes.
type Demographics struct {
	Age                int    `json:"age,omitempty"`
	Gender             string `json:"gender,omitempty"`
	Location           string `json:"location,omitempty"`
	Occupation         string `json:"occupation,omitempty"`
	Education          string `json:"education,omitempty"`
	Nationality        string `json:"nationality,omitempty"`
	IncomeBracket      string `json:"income_bracket,omitempty"`
	RelationshipStatus string `json:"relationship_status,omitempty"`
}

// IsZero reports whether no demographic field is set.
func (d Demographics) IsZero() bool {
	return d == Demographics{}
}

// TechnologyProfile describes a persona's relationship with technology.
type TechnologyProfile struct {
	PrimaryDevices         []string `json:"primary_devices,omitempty"`
	ComfortLevel           string   `json:"comfort_level,omitempty"`
	SoftwareUsed           []string `json:"software_used,omitempty"`
	InteractionPreferences []string `json:"interaction_preferences,omitempty"`
	AccessibilityNeeds     []string `json:"accessibility_needs,omitempty"`
}

// Candidate is one generated persona in canonical shape: demographics are
// always nested and goals/frustrations/motivations are always arrays.
type Candidate struct {
	ID                core.PersonaID     `json:"persona_id,omitempty"`
	Name              string             `json:"name"`
	Tagline           string             `json:"tagline,omitempty"`
	Demographics      Demographics       `json:"demographics"`
	Background        string             `json:"background,omitempty"`
	Goals             []string           `json:"goals"`
	Frustrations      []string           `json:"frustrations"`
	Motivations       []string           `json:"motivations,omitempty"`
	Behaviors         string             `json:"behaviors,omitempty"`
	TechnologyProfile *TechnologyProfile `json:"technology_profile,omitempty"`
	Quote             string             `json:"quote,omitempty"`
	Quotes            []string           `json:"quotes,omitempty"`
	OtherInformation  string             `json:"other_information,omitempty"`
}

// SetStatus tracks a persona set's lifecycle at the persistence boundary.
type SetStatus string

const (
	SetGenerating SetStatus = "generating"
	SetGenerated  SetStatus = "generated"
	SetExpanded   SetStatus = "expanded"
	SetValidated  SetStatus = "validated"
)

// Set is a persisted persona set with its final generation metrics.
type Set struct {
	ID           core.PersonaSetID `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Status       SetStatus         `json:"status"`
	Personas     []Candidate       `json:"personas"`
	FinalRQE     float64           `json:"final_rqe"`
	ThresholdMet bool              `json:"threshold_met"`
	Iterations   int               `json:"iterations"`
	CreatedAt    core.Timestamp    `json:"created_at"`
	UpdatedAt    core.Timestamp    `json:"updated_at"`
}
