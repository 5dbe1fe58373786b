package memindex

import (
	"context"
	"testing"

	"personaforge/ports"
)

// keywordEmbedder maps known words to fixed axes so similarity is exact.
type keywordEmbedder struct{}

func (keywordEmbedder) Dimensions() int { return 3 }

func (keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		switch text {
		case "nursing":
			out[i] = []float64{1, 0, 0}
		case "travel":
			out[i] = []float64{0, 1, 0}
		default:
			out[i] = []float64{0, 0, 1}
		}
	}
	return out, nil
}

func TestQueryRanksByCosineSimilarity(t *testing.T) {
	idx := New(keywordEmbedder{})
	ctx := context.Background()

	if err := idx.Add(ctx, []string{"nursing", "travel"}, nil); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Query(ctx, "nursing", 5, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].Text != "nursing" || hits[0].Score != 1 {
		t.Errorf("top hit = %q score %f, want nursing/1", hits[0].Text, hits[0].Score)
	}
	if hits[1].Score != 0 {
		t.Errorf("orthogonal hit score = %f, want 0", hits[1].Score)
	}
}

func TestQueryHonorsTopKAndFilter(t *testing.T) {
	idx := New(keywordEmbedder{})
	ctx := context.Background()

	if err := idx.Add(ctx, []string{"nursing"}, map[string]string{"source": "interview"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, []string{"travel"}, map[string]string{"source": "context"}); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Query(ctx, "nursing", 5, ports.ChunkFilter{"source": {"context"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Text != "travel" {
		t.Errorf("filtered hits = %v", hits)
	}

	hits, err = idx.Query(ctx, "nursing", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("topK ignored, hits = %d", len(hits))
	}
}

func TestCountMatchesFilter(t *testing.T) {
	idx := New(keywordEmbedder{})
	ctx := context.Background()

	if err := idx.Add(ctx, []string{"nursing", "travel"}, map[string]string{"source": "interview"}); err != nil {
		t.Fatal(err)
	}

	total, err := idx.Count(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("count = %d, want 2", total)
	}

	none, err := idx.Count(ctx, ports.ChunkFilter{"source": {"survey"}})
	if err != nil {
		t.Fatal(err)
	}
	if none != 0 {
		t.Errorf("filtered count = %d, want 0", none)
	}
}
