package diversity

import (
	"fmt"
	"sort"
	"strings"
)

// redundancyThreshold marks a persona pair as too similar to keep as-is.
const redundancyThreshold = 0.7

// maxReportedPairs caps how many redundant pairs the hint text names.
const maxReportedPairs = 3

// differentiationChecklist is appended to every hint so a retry prompt
// always carries concrete axes to vary, even beyond the flagged pairs.
var differentiationChecklist = []string{
	"Vary ages, life stages, and family situations across personas",
	"Assign distinct occupations, industries, and income levels",
	"Give each persona different primary goals and motivations",
	"Differentiate frustrations and pain points per persona",
	"Vary technology comfort, habits, and preferred channels",
}

// SimilarPair names two personas whose embeddings sit above the redundancy
// threshold.
type SimilarPair struct {
	NameA      string
	NameB      string
	Similarity float64
}

// FindSimilarPairs extracts pairs above the redundancy threshold, most
// similar first. Names are positional against the matrix rows.
func FindSimilarPairs(m SimilarityMatrix, names []string) []SimilarPair {
	var pairs []SimilarPair
	for i := 0; i < len(m); i++ {
		for j := i + 1; j < len(m); j++ {
			if m[i][j] > redundancyThreshold {
				pairs = append(pairs, SimilarPair{
					NameA:      nameAt(names, i),
					NameB:      nameAt(names, j),
					Similarity: m[i][j],
				})
			}
		}
	}
	sort.Slice(pairs, func(a, b int) bool {
		return pairs[a].Similarity > pairs[b].Similarity
	})
	return pairs
}

// BuildHints renders retry guidance from a scored batch. The text always
// includes the differentiation checklist, so the caller can feed it to a
// regeneration prompt unconditionally.
func BuildHints(pairs []SimilarPair) string {
	var b strings.Builder

	if len(pairs) > 0 {
		b.WriteString("The previous batch contained personas that were too similar:\n")
		for i, p := range pairs {
			if i >= maxReportedPairs {
				break
			}
			fmt.Fprintf(&b, "- %s and %s are %.0f%% similar\n", p.NameA, p.NameB, p.Similarity*100)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("The previous batch was not diverse enough overall.\n\n")
	}

	b.WriteString("Make every persona clearly distinct:\n")
	for _, item := range differentiationChecklist {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return b.String()
}

func nameAt(names []string, i int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return fmt.Sprintf("Persona %d", i+1)
}
