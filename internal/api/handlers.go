package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"personaforge/app"
	"personaforge/domain/core"
	"personaforge/domain/persona"
	"personaforge/ports"
)

// GenerateRequest drives one generation run. Save persists the result as a
// persona set when a repository is configured.
type GenerateRequest struct {
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	InterviewDocuments []string           `json:"interview_documents"`
	ContextDocuments   []string           `json:"context_documents"`
	NumPersonas        int                `json:"num_personas"`
	RQEThreshold       float64            `json:"rqe_threshold"`
	MaxIterations      int                `json:"max_iterations"`
	SinglePass         bool               `json:"single_pass"`
	OutputFormat       ports.OutputFormat `json:"output_format"`
	ContextDetails     string             `json:"context_details"`
	InterviewTopic     string             `json:"interview_topic"`
	StudyDesign        string             `json:"study_design"`
	Save               bool               `json:"save"`
}

// GenerateResponse wraps the run result with the stored set ID, if any.
type GenerateResponse struct {
	*app.RunResult
	SetID        string `json:"set_id,omitempty"`
	FailureCause string `json:"failure_cause,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	cfg := app.GenerationConfig{
		NumPersonas:    req.NumPersonas,
		RQEThreshold:   req.RQEThreshold,
		MaxIterations:  req.MaxIterations,
		SinglePass:     req.SinglePass,
		OutputFormat:   req.OutputFormat,
		ContextDetails: req.ContextDetails,
		InterviewTopic: req.InterviewTopic,
		StudyDesign:    req.StudyDesign,
	}
	if cfg.NumPersonas == 0 {
		cfg.NumPersonas = s.defaults.NumPersonas
	}
	if cfg.RQEThreshold == 0 {
		cfg.RQEThreshold = s.defaults.RQEThreshold
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = s.defaults.MaxIterations
	}

	result, err := s.generation.Run(r.Context(), app.DocumentSet{
		Interviews: req.InterviewDocuments,
		Context:    req.ContextDocuments,
	}, cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := GenerateResponse{RunResult: result}
	if result.FailureCause != nil {
		resp.FailureCause = result.FailureCause.Error()
	}

	if req.Save && s.repo != nil && len(result.Personas) > 0 {
		set := setFromRun(req, result)
		if err := s.repo.SaveSet(r.Context(), set); err != nil {
			s.writeError(w, err)
			return
		}
		resp.SetID = set.ID.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func setFromRun(req GenerateRequest, result *app.RunResult) *persona.Set {
	name := req.Name
	if name == "" {
		name = "Persona set " + result.RunID.String()
	}
	now := core.Now()
	return &persona.Set{
		ID:           core.PersonaSetID(core.NewID()),
		Name:         name,
		Description:  req.Description,
		Status:       persona.SetGenerated,
		Personas:     result.Personas,
		FinalRQE:     result.Metrics.RQE,
		ThresholdMet: result.ThresholdMet,
		Iterations:   result.Iterations,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ValidateRequest grounds stored or inline personas against the corpus.
type ValidateRequest struct {
	SetID       string              `json:"set_id"`
	Personas    []persona.Candidate `json:"personas"`
	CSThreshold float64             `json:"cs_threshold"`
	Filter      ports.ChunkFilter   `json:"filter"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	personas := req.Personas
	var set *persona.Set
	if req.SetID != "" {
		if s.repo == nil {
			s.writeError(w, core.NewConfigurationError("no persona repository configured"))
			return
		}
		setID, err := core.ParsePersonaSetID(req.SetID)
		if err != nil {
			s.writeError(w, core.NewConfigurationError(err.Error()))
			return
		}
		set, err = s.repo.GetSet(r.Context(), setID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		personas = set.Personas
	}
	if len(personas) == 0 {
		s.writeError(w, core.NewConfigurationError("no personas to validate"))
		return
	}

	threshold := req.CSThreshold
	if threshold == 0 {
		threshold = s.defaults.CSThreshold
	}
	report, err := s.validation.ValidateSet(r.Context(), personas, threshold, req.Filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if set != nil && report.Status == app.ReportValidated {
		set.Status = persona.SetValidated
		set.UpdatedAt = core.Now()
		if err := s.repo.SaveSet(r.Context(), set); err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, report)
}

// ExpandRequest deepens one persona, either stored or supplied inline.
type ExpandRequest struct {
	SetID            string             `json:"set_id"`
	PersonaID        string             `json:"persona_id"`
	Persona          *persona.Candidate `json:"persona"`
	ContextDocuments []string           `json:"context_documents"`
	Filter           ports.ChunkFilter  `json:"filter"`
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	var req ExpandRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	var (
		target *persona.Candidate
		set    *persona.Set
		index  int
	)
	switch {
	case req.Persona != nil:
		target = req.Persona
	case req.SetID != "" && req.PersonaID != "":
		if s.repo == nil {
			s.writeError(w, core.NewConfigurationError("no persona repository configured"))
			return
		}
		setID, err := core.ParsePersonaSetID(req.SetID)
		if err != nil {
			s.writeError(w, core.NewConfigurationError(err.Error()))
			return
		}
		set, err = s.repo.GetSet(r.Context(), setID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		for i := range set.Personas {
			if set.Personas[i].ID.String() == req.PersonaID {
				target = &set.Personas[i]
				index = i
				break
			}
		}
		if target == nil {
			s.writeError(w, core.ErrPersonaNotFound)
			return
		}
	default:
		s.writeError(w, core.NewConfigurationError("either persona or set_id and persona_id are required"))
		return
	}

	expanded, err := s.expansion.Expand(r.Context(), *target, app.DocumentSet{Context: req.ContextDocuments}, req.Filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if set != nil {
		set.Personas[index] = expanded
		set.Status = persona.SetExpanded
		set.UpdatedAt = core.Now()
		if err := s.repo.SaveSet(r.Context(), set); err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, expanded)
}

// IngestRequest indexes source documents for later validation runs.
type IngestRequest struct {
	Documents []string          `json:"documents"`
	Metadata  map[string]string `json:"metadata"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	count, err := s.ingestion.IngestDocuments(r.Context(), req.Documents, req.Metadata)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"chunks_indexed": count})
}

func (s *Server) handleListSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.repo.ListSets(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (s *Server) handleGetSet(w http.ResponseWriter, r *http.Request) {
	setID, err := core.ParsePersonaSetID(chi.URLParam(r, "setID"))
	if err != nil {
		s.writeError(w, core.NewConfigurationError(err.Error()))
		return
	}
	set, err := s.repo.GetSet(r.Context(), setID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	setID, err := core.ParsePersonaSetID(chi.URLParam(r, "setID"))
	if err != nil {
		s.writeError(w, core.NewConfigurationError(err.Error()))
		return
	}
	if err := s.repo.DeleteSet(r.Context(), setID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
