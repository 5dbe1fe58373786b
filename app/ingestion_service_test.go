package app

import (
	"context"
	"strings"
	"testing"

	"personaforge/domain/core"
)

type stubIndexer struct {
	chunks   []string
	metadata map[string]string
}

func (s *stubIndexer) UpsertChunks(_ context.Context, texts []string, metadata map[string]string) error {
	s.chunks = append(s.chunks, texts...)
	s.metadata = metadata
	return nil
}

func TestIngestDocumentsChunksAndTags(t *testing.T) {
	indexer := &stubIndexer{}
	svc := NewIngestionService(indexer, nil)

	doc := "First paragraph of the interview.\n\nSecond paragraph with more detail."
	count, err := svc.IngestDocuments(context.Background(), []string{doc}, map[string]string{"source": "interview"})
	if err != nil {
		t.Fatal(err)
	}

	if count != len(indexer.chunks) {
		t.Errorf("count = %d, stored = %d", count, len(indexer.chunks))
	}
	if indexer.metadata["source"] != "interview" {
		t.Errorf("metadata = %v", indexer.metadata)
	}
}

func TestIngestDocumentsRejectsEmpty(t *testing.T) {
	svc := NewIngestionService(&stubIndexer{}, nil)

	if _, err := svc.IngestDocuments(context.Background(), nil, nil); !core.IsConfigurationError(err) {
		t.Errorf("err = %v, want configuration error", err)
	}
	if _, err := svc.IngestDocuments(context.Background(), []string{"   "}, nil); !core.IsConfigurationError(err) {
		t.Errorf("err = %v, want configuration error", err)
	}
}

func TestSplitDocumentMergesShortParagraphs(t *testing.T) {
	chunks := SplitDocument("Short one.\n\nShort two.")

	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want short paragraphs merged into 1", len(chunks))
	}
	if !strings.Contains(chunks[0], "Short one.") || !strings.Contains(chunks[0], "Short two.") {
		t.Errorf("merged chunk = %q", chunks[0])
	}
}

func TestSplitDocumentBreaksLongParagraphs(t *testing.T) {
	sentence := strings.Repeat("word ", 60) + ". "
	long := strings.Repeat(sentence, 8)

	chunks := SplitDocument(long)

	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want long paragraph split", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > maxChunkLen+100 {
			t.Errorf("chunk %d length = %d, exceeds target", i, len(chunk))
		}
	}
}
