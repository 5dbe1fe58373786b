package app

import (
	"context"
	"reflect"
	"testing"

	"personaforge/domain/core"
	"personaforge/domain/persona"
	"personaforge/ports"
)

// expandStub records the expansion call and replays one canned result.
type expandStub struct {
	stubGenerator
	personaJSON string
	contextDocs []string
	result      ports.RawCandidate
}

func (g *expandStub) ExpandPersona(_ context.Context, personaJSON string, contextDocs []string) (ports.RawCandidate, error) {
	g.personaJSON = personaJSON
	g.contextDocs = contextDocs
	return g.result, nil
}

func TestExpandMergesUnderClosedWorldRules(t *testing.T) {
	original := persona.Candidate{
		ID:   core.PersonaID(core.NewID()),
		Name: "Ana",
		Demographics: persona.Demographics{
			Age:        34,
			Occupation: "Nurse",
		},
		Background: "Short background.",
		Goals:      []string{"one", "two", "three"},
	}
	gen := &expandStub{result: ports.RawCandidate{
		"name":       "Renamed Ana",
		"age":        60,
		"background": "A far richer background grounded in the interviews.",
		"goals":      []any{"only one goal"},
	}}
	retriever := &stubRetriever{
		count:  1,
		chunks: []ports.RetrievedChunk{{Text: "retrieved excerpt", Score: 0.9}},
	}
	svc := NewExpansionService(gen, retriever, nil)

	merged, err := svc.Expand(context.Background(), original, DocumentSet{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if merged.Name != "Ana" || merged.Demographics.Age != 34 {
		t.Errorf("identity changed: %s age %d", merged.Name, merged.Demographics.Age)
	}
	if merged.Background != "A far richer background grounded in the interviews." {
		t.Errorf("background not expanded: %q", merged.Background)
	}
	if !reflect.DeepEqual(merged.Goals, original.Goals) {
		t.Errorf("shorter goals list replaced original: %v", merged.Goals)
	}
	if !reflect.DeepEqual(gen.contextDocs, []string{"retrieved excerpt"}) {
		t.Errorf("expansion prompt fed %v, want retrieved chunks", gen.contextDocs)
	}
}

func TestExpandFallsBackToFullDocuments(t *testing.T) {
	gen := &expandStub{result: ports.RawCandidate{"name": "Ana"}}
	svc := NewExpansionService(gen, &stubRetriever{count: 0, chunks: nil}, nil)

	docs := DocumentSet{
		Interviews: []string{"interview one"},
		Context:    []string{"context one"},
	}
	_, err := svc.Expand(context.Background(), persona.Candidate{Name: "Ana"}, docs, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"context one", "interview one"}
	if !reflect.DeepEqual(gen.contextDocs, want) {
		t.Errorf("fallback docs = %v, want %v", gen.contextDocs, want)
	}
}
