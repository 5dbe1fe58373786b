package persona

// MergeExpansion folds an expanded candidate back into the original under a
// closed-world policy: only narrative content fields may change, identity
// and demographics are preserved verbatim, and array fields are replaced
// only when the expansion is at least as long as the original. Fields the
// expansion invents outside the expandable set are discarded.
func MergeExpansion(original, expanded Candidate) Candidate {
	merged := original

	if expanded.Background != "" {
		merged.Background = expanded.Background
	}
	merged.Goals = mergeList(original.Goals, expanded.Goals)
	merged.Frustrations = mergeList(original.Frustrations, expanded.Frustrations)
	merged.Motivations = mergeList(original.Motivations, expanded.Motivations)
	if expanded.Behaviors != "" {
		merged.Behaviors = expanded.Behaviors
	}
	if expanded.Quote != "" {
		merged.Quote = expanded.Quote
	}
	merged.Quotes = mergeList(original.Quotes, expanded.Quotes)

	if expanded.TechnologyProfile != nil {
		merged.TechnologyProfile = mergeTechProfile(original.TechnologyProfile, expanded.TechnologyProfile)
	}

	return merged
}

// mergeList keeps the original when the expansion would shrink it.
func mergeList(original, expanded []string) []string {
	if len(expanded) == 0 || len(expanded) < len(original) {
		return original
	}
	return expanded
}

func mergeTechProfile(original, expanded *TechnologyProfile) *TechnologyProfile {
	if original == nil {
		cp := *expanded
		return &cp
	}
	merged := *original
	merged.PrimaryDevices = mergeList(original.PrimaryDevices, expanded.PrimaryDevices)
	if expanded.ComfortLevel != "" {
		merged.ComfortLevel = expanded.ComfortLevel
	}
	merged.SoftwareUsed = mergeList(original.SoftwareUsed, expanded.SoftwareUsed)
	merged.InteractionPreferences = mergeList(original.InteractionPreferences, expanded.InteractionPreferences)
	merged.AccessibilityNeeds = mergeList(original.AccessibilityNeeds, expanded.AccessibilityNeeds)
	return &merged
}
