package api

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"personaforge/adapters/llm"
	"personaforge/adapters/memindex"
	"personaforge/app"
)

// hashEmbedder one-hots each distinct text onto a vector axis, so equal
// texts are identical and distinct texts are orthogonal (modulo collisions).
type hashEmbedder struct{}

const hashDim = 32

func (hashEmbedder) Dimensions() int { return hashDim }

func (hashEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		h := fnv.New32a()
		h.Write([]byte(text))
		vec := make([]float64, hashDim)
		vec[h.Sum32()%hashDim] = 1
		out[i] = vec
	}
	return out, nil
}

func newTestServer(t *testing.T, corpus []string) *Server {
	t.Helper()
	embedder := hashEmbedder{}
	generator := llm.NewGenerator(&llm.MockChatClient{}, nil)

	index := memindex.New(embedder)
	if len(corpus) > 0 {
		if err := index.Add(context.Background(), corpus, nil); err != nil {
			t.Fatal(err)
		}
	}

	return NewServer(
		app.NewGenerationService(generator, embedder, nil),
		app.NewValidationService(index, nil),
		app.NewExpansionService(generator, index, nil),
		nil,
		nil,
	)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGenerateEndpoint(t *testing.T) {
	server := newTestServer(t, nil)
	body := `{"interview_documents": ["interview text"], "num_personas": 1}`
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/personas/generate", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Personas) != 1 {
		t.Errorf("personas = %d, want 1", len(resp.Personas))
	}
	if resp.State != app.StateDoneThresholdMet {
		t.Errorf("state = %s, want %s", resp.State, app.StateDoneThresholdMet)
	}
}

func TestServerDefaultsFillUnsetRequestFields(t *testing.T) {
	server := newTestServer(t, []string{"grounding chunk"}).WithDefaults(Defaults{
		NumPersonas:   2,
		RQEThreshold:  0.9,
		MaxIterations: 1,
		CSThreshold:   0.99,
	})

	rec := httptest.NewRecorder()
	body := `{"interview_documents": ["interview text"]}`
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/personas/generate", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Attempts) == 0 || resp.Attempts[0].Threshold != 0.9 {
		t.Errorf("attempt threshold = %v, want the configured default 0.9", resp.Attempts)
	}

	rec = httptest.NewRecorder()
	body = `{"personas": [{"name": "Ana", "background": "anything"}]}`
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/personas/validate", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var report app.SetReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Threshold != 0.99 {
		t.Errorf("validation threshold = %f, want the configured default 0.99", report.Threshold)
	}
}

func TestGenerateEndpointRejectsEmptyDocuments(t *testing.T) {
	server := newTestServer(t, nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/personas/generate", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestValidateEndpointInlinePersonas(t *testing.T) {
	background := "Works rotating night shifts at a regional hospital."
	server := newTestServer(t, []string{background})
	body := `{"personas": [{"name": "Ana", "background": "` + background + `"}], "cs_threshold": 0.8}`
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/personas/validate", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var report app.SetReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Status != app.ReportValidated {
		t.Errorf("status = %s, want %s", report.Status, app.ReportValidated)
	}
}

func TestValidateEndpointNoCorpus(t *testing.T) {
	server := newTestServer(t, nil)
	body := `{"personas": [{"name": "Ana", "background": "anything"}]}`
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/personas/validate", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var report app.SetReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Status != app.ReportDataUnavailable {
		t.Errorf("status = %s, want %s", report.Status, app.ReportDataUnavailable)
	}
}

func TestExpandEndpointInlinePersona(t *testing.T) {
	server := newTestServer(t, []string{"some grounding chunk"})
	body := `{"persona": {"name": "Ana", "background": "short"}, "context_documents": ["extra context"]}`
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/personas/expand", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestExpandEndpointRequiresTarget(t *testing.T) {
	server := newTestServer(t, nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/personas/expand", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
