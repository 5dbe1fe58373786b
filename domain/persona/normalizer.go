package persona

import (
	"fmt"
	"strconv"
	"strings"
)

// UnknownPersonaName is assigned when generated output carries no name key.
const UnknownPersonaName = "Unknown Persona"

// minFragmentLen is the shortest sentence fragment kept when splitting a
// freeform string into list items.
const minFragmentLen = 10

// fieldRule maps an ordered chain of source key paths onto one canonical
// target field. Paths are dot-separated; the first path that resolves to a
// non-empty value wins. Keeping the chains as data rather than branching
// code makes the rule set independently testable and extensible.
type fieldRule struct {
	Target  string
	Sources []string
}

// demographicRules resolve the eight canonical demographic fields from
// either nested demographics objects, flat top-level keys, or recognized
// synonyms.
var demographicRules = []fieldRule{
	{Target: "age", Sources: []string{"age", "demographics.age"}},
	{Target: "gender", Sources: []string{"gender", "demographics.gender"}},
	{Target: "location", Sources: []string{"location", "demographics.location", "nationality"}},
	{Target: "occupation", Sources: []string{"occupation", "demographics.occupation"}},
	{Target: "education", Sources: []string{"education", "education_level", "demographics.education", "demographics.education_level"}},
	{Target: "nationality", Sources: []string{"nationality", "demographics.nationality"}},
	{Target: "income_bracket", Sources: []string{"income_bracket", "demographics.income_bracket"}},
	{Target: "relationship_status", Sources: []string{"relationship_status", "demographics.relationship_status"}},
}

// backgroundSources is the fallback chain for the background narrative.
var backgroundSources = []string{
	"background",
	"detailed_description",
	"personal_background",
	"background_and_personal_history",
	"other_information",
	"basic_description",
}

// listRules resolve the array-typed content fields. Each source may point
// at a list, a freeform string, or a synonym container object.
var listRules = []fieldRule{
	{Target: "goals", Sources: []string{"goals", "goals_and_motivations.goals"}},
	{Target: "frustrations", Sources: []string{"frustrations", "pain_points", "pain_points_and_frustrations"}},
	{Target: "motivations", Sources: []string{"motivations", "goals_and_motivations.motivations"}},
}

// Normalize canonicalizes an arbitrary generated persona mapping into one
// consistent nested shape. Pure and deterministic; no I/O. Idempotent:
// Normalize(c.RawMap()) reproduces c for any normalized candidate c.
func Normalize(raw map[string]any) Candidate {
	c := Candidate{
		Name:         UnknownPersonaName,
		Goals:        []string{},
		Frustrations: []string{},
	}
	if raw == nil {
		return c
	}

	if name := flattenString(raw["name"]); name != "" {
		c.Name = name
	}
	c.Tagline = firstString(raw, "tagline", "role")

	for _, rule := range demographicRules {
		v, ok := resolvePath(raw, rule.Sources)
		if !ok {
			continue
		}
		switch rule.Target {
		case "age":
			c.Demographics.Age = coerceAge(v)
		case "gender":
			c.Demographics.Gender = flattenString(v)
		case "location":
			c.Demographics.Location = coerceLocation(v)
		case "occupation":
			c.Demographics.Occupation = flattenString(v)
		case "education":
			c.Demographics.Education = flattenString(v)
		case "nationality":
			c.Demographics.Nationality = flattenString(v)
		case "income_bracket":
			c.Demographics.IncomeBracket = flattenString(v)
		case "relationship_status":
			c.Demographics.RelationshipStatus = flattenString(v)
		}
	}

	for _, key := range backgroundSources {
		if s := flattenString(raw[key]); s != "" {
			c.Background = s
			break
		}
	}

	for _, rule := range listRules {
		v, ok := resolvePath(raw, rule.Sources)
		if !ok {
			continue
		}
		items := coerceList(v)
		switch rule.Target {
		case "goals":
			c.Goals = items
		case "frustrations":
			c.Frustrations = items
		case "motivations":
			if len(items) > 0 {
				c.Motivations = items
			}
		}
	}

	c.Behaviors = firstString(raw, "behaviors", "behaviors_and_preferences")
	c.TechnologyProfile = normalizeTechProfile(raw)

	if quotes, ok := raw["quotes"].([]any); ok {
		c.Quotes = stringSlice(quotes)
	} else if q := flattenString(raw["quote"]); q != "" {
		c.Quote = q
	}
	c.OtherInformation = flattenString(raw["other_information"])

	return c
}

// NormalizeAll normalizes a whole candidate list.
func NormalizeAll(raws []map[string]any) []Candidate {
	out := make([]Candidate, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Normalize(raw))
	}
	return out
}

// RawMap renders a candidate back into the generic mapping form. The result
// round-trips through Normalize without change.
func (c Candidate) RawMap() map[string]any {
	raw := map[string]any{
		"name":         c.Name,
		"goals":        anySlice(c.Goals),
		"frustrations": anySlice(c.Frustrations),
	}
	if c.Tagline != "" {
		raw["tagline"] = c.Tagline
	}

	demo := map[string]any{}
	if c.Demographics.Age != 0 {
		demo["age"] = c.Demographics.Age
	}
	setIfNotEmpty(demo, "gender", c.Demographics.Gender)
	setIfNotEmpty(demo, "location", c.Demographics.Location)
	setIfNotEmpty(demo, "occupation", c.Demographics.Occupation)
	setIfNotEmpty(demo, "education", c.Demographics.Education)
	setIfNotEmpty(demo, "nationality", c.Demographics.Nationality)
	setIfNotEmpty(demo, "income_bracket", c.Demographics.IncomeBracket)
	setIfNotEmpty(demo, "relationship_status", c.Demographics.RelationshipStatus)
	raw["demographics"] = demo

	setIfNotEmpty(raw, "background", c.Background)
	if len(c.Motivations) > 0 {
		raw["motivations"] = anySlice(c.Motivations)
	}
	setIfNotEmpty(raw, "behaviors", c.Behaviors)
	if tp := c.TechnologyProfile; tp != nil {
		tpm := map[string]any{}
		if len(tp.PrimaryDevices) > 0 {
			tpm["primary_devices"] = anySlice(tp.PrimaryDevices)
		}
		setIfNotEmpty(tpm, "comfort_level", tp.ComfortLevel)
		if len(tp.SoftwareUsed) > 0 {
			tpm["software_used"] = anySlice(tp.SoftwareUsed)
		}
		if len(tp.InteractionPreferences) > 0 {
			tpm["interaction_preferences"] = anySlice(tp.InteractionPreferences)
		}
		if len(tp.AccessibilityNeeds) > 0 {
			tpm["accessibility_needs"] = anySlice(tp.AccessibilityNeeds)
		}
		raw["technology_profile"] = tpm
	}
	if len(c.Quotes) > 0 {
		raw["quotes"] = anySlice(c.Quotes)
	} else {
		setIfNotEmpty(raw, "quote", c.Quote)
	}
	setIfNotEmpty(raw, "other_information", c.OtherInformation)
	return raw
}

// normalizeTechProfile passes a nested technology_profile object through, or
// synthesizes one from the flat technology_usage/digital_literacy keys.
func normalizeTechProfile(raw map[string]any) *TechnologyProfile {
	if obj, ok := raw["technology_profile"].(map[string]any); ok {
		tp := &TechnologyProfile{
			PrimaryDevices:         coerceList(obj["primary_devices"]),
			ComfortLevel:           flattenString(obj["comfort_level"]),
			SoftwareUsed:           coerceList(obj["software_used"]),
			InteractionPreferences: coerceList(obj["interaction_preferences"]),
			AccessibilityNeeds:     coerceList(obj["accessibility_needs"]),
		}
		return tp
	}

	usage, hasUsage := raw["technology_usage"]
	literacy, hasLiteracy := raw["digital_literacy"]
	if !hasUsage && !hasLiteracy {
		return nil
	}
	tp := &TechnologyProfile{}
	if hasUsage {
		tp.PrimaryDevices = coerceList(usage)
	}
	if hasLiteracy {
		tp.ComfortLevel = flattenString(literacy)
	}
	return tp
}

// resolvePath returns the first non-empty value along the source chain.
func resolvePath(raw map[string]any, sources []string) (any, bool) {
	for _, path := range sources {
		v := lookupPath(raw, path)
		if !isEmptyValue(v) {
			return v, true
		}
	}
	return nil, false
}

// lookupPath walks a dot-separated key path through nested maps.
func lookupPath(raw map[string]any, path string) any {
	cur := any(raw)
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// coerceList converts a value into a clean string slice. Lists pass through;
// strings split on newlines, and a single long line is further split on
// sentence boundaries, discarding fragments shorter than minFragmentLen.
func coerceList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return stringSlice(t)
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return splitFreeform(t)
	}
	if s := flattenString(v); s != "" {
		return []string{s}
	}
	return nil
}

func splitFreeform(s string) []string {
	var items []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, line)
		}
	}
	if len(items) != 1 {
		return items
	}
	var sentences []string
	for _, frag := range strings.Split(items[0], ".") {
		frag = strings.TrimSpace(frag)
		if len(frag) >= minFragmentLen {
			sentences = append(sentences, frag)
		}
	}
	if len(sentences) > 0 {
		return sentences
	}
	return items
}

func stringSlice(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := flattenString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func anySlice(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

func setIfNotEmpty(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := flattenString(raw[key]); s != "" {
			return s
		}
	}
	return ""
}

// flattenString renders scalars and flat lists as a single trimmed string.
func flattenString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := flattenString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

func coerceAge(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return 0
}

// coerceLocation accepts either a plain string or a {city, country} object.
func coerceLocation(v any) string {
	if obj, ok := v.(map[string]any); ok {
		city := flattenString(obj["city"])
		country := flattenString(obj["country"])
		switch {
		case city != "" && country != "":
			return city + ", " + country
		case city != "":
			return city
		default:
			return country
		}
	}
	return flattenString(v)
}
