// Package api exposes the persona pipeline over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"personaforge/app"
	"personaforge/domain/core"
	"personaforge/internal"
	"personaforge/ports"
)

// Defaults are deployment-level fallbacks applied to request fields left
// unset. Zero fields here fall through to the services' own defaults.
type Defaults struct {
	NumPersonas   int
	RQEThreshold  float64
	MaxIterations int
	CSThreshold   float64
}

// Server holds the wired services behind the HTTP handlers.
type Server struct {
	generation *app.GenerationService
	validation *app.ValidationService
	expansion  *app.ExpansionService
	ingestion  *app.IngestionService
	repo       ports.PersonaRepositoryPort
	defaults   Defaults
	log        *internal.Logger
}

// NewServer wires the services into a server. The repository may be nil,
// disabling the persona-set routes.
func NewServer(generation *app.GenerationService, validation *app.ValidationService, expansion *app.ExpansionService, repo ports.PersonaRepositoryPort, log *internal.Logger) *Server {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &Server{
		generation: generation,
		validation: validation,
		expansion:  expansion,
		repo:       repo,
		log:        log.WithComponent("api"),
	}
}

// WithIngestion enables the document indexing route.
func (s *Server) WithIngestion(ingestion *app.IngestionService) *Server {
	s.ingestion = ingestion
	return s
}

// WithDefaults installs deployment-level threshold fallbacks.
func (s *Server) WithDefaults(defaults Defaults) *Server {
	s.defaults = defaults
	return s
}

// Router builds the route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/personas/generate", s.handleGenerate)
		r.Post("/personas/validate", s.handleValidate)
		r.Post("/personas/expand", s.handleExpand)
		if s.ingestion != nil {
			r.Post("/documents", s.handleIngest)
		}
		if s.repo != nil {
			r.Get("/persona-sets", s.handleListSets)
			r.Get("/persona-sets/{setID}", s.handleGetSet)
			r.Delete("/persona-sets/{setID}", s.handleDeleteSet)
		}
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsConfigurationError(err):
		status = http.StatusBadRequest
	case core.IsNotFoundError(err):
		status = http.StatusNotFound
	case core.IsPermanentError(err) || core.IsTransientError(err):
		status = http.StatusBadGateway
	}
	if status >= 500 {
		s.log.Error("request failed: %v", err)
	} else {
		s.log.Debug("request rejected: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, into any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return core.NewConfigurationError("invalid request body: " + err.Error())
	}
	return nil
}
