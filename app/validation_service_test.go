package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"personaforge/domain/core"
	"personaforge/domain/persona"
	"personaforge/ports"
)

// stubRetriever serves canned chunks keyed by query substring.
type stubRetriever struct {
	count    int
	countErr error
	chunks   []ports.RetrievedChunk
	queryErr error
}

func (r *stubRetriever) Query(_ context.Context, _ string, _ int, _ ports.ChunkFilter) ([]ports.RetrievedChunk, error) {
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	return r.chunks, nil
}

func (r *stubRetriever) Count(_ context.Context, _ ports.ChunkFilter) (int, error) {
	return r.count, r.countErr
}

func testPersona() persona.Candidate {
	return persona.Candidate{
		ID:         core.PersonaID(core.NewID()),
		Name:       "Ana",
		Background: "Works night shifts at a regional hospital.",
		Goals:      []string{"Save money", "Travel more"},
	}
}

func TestValidateSetHighSimilarityValidates(t *testing.T) {
	retriever := &stubRetriever{
		count: 10,
		chunks: []ports.RetrievedChunk{
			{Text: "interview excerpt about night shifts", Score: 0.91},
			{Text: "another excerpt", Score: 0.89},
			{Text: "close match", Score: 0.90},
		},
	}
	svc := NewValidationService(retriever, nil)

	report, err := svc.ValidateSet(context.Background(), []persona.Candidate{testPersona()}, 0.80, nil)
	if err != nil {
		t.Fatal(err)
	}

	if report.Status != ReportValidated {
		t.Errorf("status = %s, want %s", report.Status, ReportValidated)
	}
	if report.ValidationRate != 1 {
		t.Errorf("validation rate = %f, want 1", report.ValidationRate)
	}

	p := report.Personas[0]
	if p.Status != ReportValidated {
		t.Errorf("persona status = %s, want %s", p.Status, ReportValidated)
	}
	// background and goals carry text; the empty attributes are skipped.
	if len(p.Attributes) != 2 {
		t.Fatalf("attributes = %d, want 2", len(p.Attributes))
	}
	if len(p.ValidatedAttributes) != 2 || len(p.FlaggedAttributes) != 0 {
		t.Errorf("validated=%v flagged=%v, want both attributes validated", p.ValidatedAttributes, p.FlaggedAttributes)
	}
	if p.ValidationRate != 1 {
		t.Errorf("persona validation rate = %f, want 1", p.ValidationRate)
	}
	for _, attr := range p.Attributes {
		if attr.Similarity < 0.89 || attr.Similarity > 0.91 {
			t.Errorf("%s similarity = %f, want mean of retrieved scores (0.90)", attr.Attribute, attr.Similarity)
		}
		if len(attr.SourceChunks) != 2 {
			t.Errorf("%s source chunks = %d, want 2", attr.Attribute, len(attr.SourceChunks))
		}
	}
}

func TestValidateSetStrongOutlierChunkDoesNotValidate(t *testing.T) {
	// One 0.95 hit among weak matches averages to 0.27; a single chunk
	// must not carry an otherwise ungrounded attribute.
	retriever := &stubRetriever{
		count: 10,
		chunks: []ports.RetrievedChunk{
			{Text: "strong match", Score: 0.95},
			{Text: "noise", Score: 0.10},
			{Text: "noise", Score: 0.10},
			{Text: "noise", Score: 0.10},
			{Text: "noise", Score: 0.10},
		},
	}
	svc := NewValidationService(retriever, nil)

	report, err := svc.ValidateSet(context.Background(), []persona.Candidate{testPersona()}, 0.80, nil)
	if err != nil {
		t.Fatal(err)
	}

	p := report.Personas[0]
	if p.Status != ReportPartial {
		t.Errorf("persona status = %s, want %s", p.Status, ReportPartial)
	}
	for _, attr := range p.Attributes {
		if attr.Similarity > 0.28 {
			t.Errorf("%s similarity = %f, want mean 0.27", attr.Attribute, attr.Similarity)
		}
		if attr.Validated {
			t.Errorf("%s validated on one outlier chunk", attr.Attribute)
		}
		if !attr.Flagged {
			t.Errorf("%s not flagged below threshold", attr.Attribute)
		}
	}
	if len(p.FlaggedAttributes) != 2 || p.ValidationRate != 0 {
		t.Errorf("flagged=%v rate=%f, want both attributes flagged at rate 0", p.FlaggedAttributes, p.ValidationRate)
	}
}

func TestValidateSetNoCorpusIsDistinguishable(t *testing.T) {
	svc := NewValidationService(&stubRetriever{count: 0}, nil)

	report, err := svc.ValidateSet(context.Background(), []persona.Candidate{testPersona()}, 0.80, nil)
	if err != nil {
		t.Fatal(err)
	}

	if report.Status != ReportDataUnavailable {
		t.Errorf("status = %s, want %s", report.Status, ReportDataUnavailable)
	}
	p := report.Personas[0]
	if p.Status != ReportDataUnavailable {
		t.Errorf("persona status = %s, want %s", p.Status, ReportDataUnavailable)
	}
	if len(p.Attributes) != 2 || len(p.FlaggedAttributes) != 2 {
		t.Fatalf("attributes = %d flagged = %d, want 2 and 2", len(p.Attributes), len(p.FlaggedAttributes))
	}
	for _, attr := range p.Attributes {
		if !attr.Flagged || attr.Similarity != 0 {
			t.Errorf("%s flagged=%v similarity=%f, want flagged at 0", attr.Attribute, attr.Flagged, attr.Similarity)
		}
	}
}

func TestValidateSetEmptyRetrievalFlagsAttribute(t *testing.T) {
	svc := NewValidationService(&stubRetriever{count: 3, chunks: nil}, nil)

	report, err := svc.ValidateSet(context.Background(), []persona.Candidate{testPersona()}, 0.80, nil)
	if err != nil {
		t.Fatal(err)
	}

	p := report.Personas[0]
	if p.Status != ReportPartial {
		t.Errorf("persona status = %s, want %s", p.Status, ReportPartial)
	}
	for _, attr := range p.Attributes {
		if !attr.Flagged {
			t.Errorf("%s not flagged", attr.Attribute)
		}
		if attr.Similarity != 0 {
			t.Errorf("%s similarity = %f, want 0", attr.Attribute, attr.Similarity)
		}
	}
	if report.Status != ReportPartial {
		t.Errorf("status = %s, want %s", report.Status, ReportPartial)
	}
}

func TestValidateSetTruncatesSourceChunks(t *testing.T) {
	long := strings.Repeat("x", 500)
	svc := NewValidationService(&stubRetriever{
		count:  1,
		chunks: []ports.RetrievedChunk{{Text: long, Score: 0.9}},
	}, nil)

	report, err := svc.ValidateSet(context.Background(), []persona.Candidate{testPersona()}, 0.80, nil)
	if err != nil {
		t.Fatal(err)
	}

	excerpt := report.Personas[0].Attributes[0].SourceChunks[0]
	if len(excerpt.Text) != sourceChunkMaxLen {
		t.Errorf("excerpt length = %d, want %d", len(excerpt.Text), sourceChunkMaxLen)
	}
}

func TestValidateSetRetrievalErrorAborts(t *testing.T) {
	svc := NewValidationService(&stubRetriever{
		count:    5,
		queryErr: core.NewPermanentError("query", errors.New("index offline")),
	}, nil)

	_, err := svc.ValidateSet(context.Background(), []persona.Candidate{testPersona()}, 0.80, nil)
	if !core.IsPermanentError(err) {
		t.Errorf("err = %v, want permanent gateway error", err)
	}
}

func TestValidateSetDefaultThreshold(t *testing.T) {
	svc := NewValidationService(&stubRetriever{
		count:  1,
		chunks: []ports.RetrievedChunk{{Text: "chunk", Score: 0.79}},
	}, nil)

	report, err := svc.ValidateSet(context.Background(), []persona.Candidate{testPersona()}, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	if report.Threshold != DefaultCSThreshold {
		t.Errorf("threshold = %f, want default %f", report.Threshold, DefaultCSThreshold)
	}
	if report.Personas[0].Status != ReportPartial {
		t.Error("0.79 similarity validated against 0.80 threshold")
	}
}

func TestValidateSetTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", 300)
	svc := NewValidationService(&stubRetriever{
		count:  1,
		chunks: []ports.RetrievedChunk{{Text: long, Score: 0.9}},
	}, nil)

	report, err := svc.ValidateSet(context.Background(), []persona.Candidate{testPersona()}, 0.80, nil)
	if err != nil {
		t.Fatal(err)
	}

	excerpt := report.Personas[0].Attributes[0].SourceChunks[0]
	runes := []rune(excerpt.Text)
	if len(runes) != sourceChunkMaxLen {
		t.Errorf("excerpt runes = %d, want %d", len(runes), sourceChunkMaxLen)
	}
	for _, r := range runes {
		if r != 'é' {
			t.Fatalf("excerpt contains mangled rune %q", r)
		}
	}
}
