package app

import (
	"context"
	"strings"

	"personaforge/domain/core"
	"personaforge/internal"
	"personaforge/ports"
)

// chunk sizing: paragraphs are merged up to maxChunkLen and oversized
// paragraphs split on sentence boundaries.
const maxChunkLen = 1000

// IngestionService splits source documents into chunks and indexes them for
// retrieval-backed validation and expansion.
type IngestionService struct {
	indexer ports.ChunkIndexerPort
	log     *internal.Logger
}

// NewIngestionService creates the ingester over an indexing backend.
func NewIngestionService(indexer ports.ChunkIndexerPort, log *internal.Logger) *IngestionService {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &IngestionService{indexer: indexer, log: log.WithComponent("ingestion")}
}

// IngestDocuments chunks and indexes documents, returning how many chunks
// were stored. Metadata is attached to every chunk, typically a source tag
// used later as a retrieval filter.
func (s *IngestionService) IngestDocuments(ctx context.Context, documents []string, metadata map[string]string) (int, error) {
	if len(documents) == 0 {
		return 0, core.NewConfigurationError("no documents to ingest")
	}

	var chunks []string
	for _, doc := range documents {
		chunks = append(chunks, SplitDocument(doc)...)
	}
	if len(chunks) == 0 {
		return 0, core.NewConfigurationError("documents contain no text")
	}

	if err := s.indexer.UpsertChunks(ctx, chunks, metadata); err != nil {
		return 0, err
	}
	s.log.Info("ingested %d documents as %d chunks", len(documents), len(chunks))
	return len(chunks), nil
}

// SplitDocument breaks a document into retrieval-sized chunks. Paragraph
// boundaries are preferred; adjacent short paragraphs merge, oversized ones
// split on sentences.
func SplitDocument(doc string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			chunks = append(chunks, text)
		}
		current.Reset()
	}

	for _, paragraph := range strings.Split(doc, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if len(paragraph) > maxChunkLen {
			flush()
			chunks = append(chunks, splitLong(paragraph)...)
			continue
		}
		if current.Len() > 0 && current.Len()+len(paragraph) > maxChunkLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	flush()
	return chunks
}

func splitLong(paragraph string) []string {
	var chunks []string
	var current strings.Builder

	for _, sentence := range strings.SplitAfter(paragraph, ". ") {
		if current.Len() > 0 && current.Len()+len(sentence) > maxChunkLen {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
	}
	if text := strings.TrimSpace(current.String()); text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
