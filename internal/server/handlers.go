package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/haskel/cplxfox/internal/artifact"
	"github.com/haskel/cplxfox/internal/evaluator"
	"github.com/haskel/cplxfox/internal/extract"
	"github.com/haskel/cplxfox/internal/monitor"
	"github.com/haskel/cplxfox/internal/schema"
)

type InfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Tasks  int    `json:"tasks"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ModelsInfo identifies the loaded artifact.
type ModelsInfo struct {
	Path        string    `json:"path"`
	Fingerprint string    `json:"fingerprint"`
	LoadedAt    time.Time `json:"loaded_at"`
	Tasks       []string  `json:"tasks"`
}

type StatusResponse struct {
	Version string             `json:"version"`
	Uptime  string             `json:"uptime"`
	Models  ModelsInfo         `json:"models"`
	Host    *monitor.HostState `json:"host,omitempty"`
}

// ModelSummary is the listing entry of one task model.
type ModelSummary struct {
	Task             string            `json:"task"`
	Schema           schema.TaskSchema `json:"schema"`
	Degree           int               `json:"degree"`
	IsLogTransformed bool              `json:"is_log_transformed"`
	Features         int               `json:"features"`
	TrainingMetrics  artifact.Metrics  `json:"training_metrics"`
}

type ModelsResponse struct {
	ModelsInfo
	Models []ModelSummary `json:"models"`
}

type ModelResponse struct {
	Task     string                `json:"task"`
	Model    *artifact.FittedModel `json:"model"`
	Equation string                `json:"equation"`
}

// PredictRequest carries either a raw parameter string or a parameter map.
type PredictRequest struct {
	Task       string            `json:"task"`
	Parameters string            `json:"parameters,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

type PredictResponse struct {
	Task        string  `json:"task"`
	Parameters  string  `json:"parameters"`
	Complexity  float64 `json:"complexity"`
	Fingerprint string  `json:"fingerprint"`
}

type ReloadResponse struct {
	Reloaded    bool     `json:"reloaded"`
	Fingerprint string   `json:"fingerprint"`
	Tasks       []string `json:"tasks"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, InfoResponse{
		Name:    "cplxfox",
		Version: s.version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Tasks:  len(s.loaded().eval.Tasks()),
	})
}

func (s *Server) modelsInfo(m *loadedModels) ModelsInfo {
	return ModelsInfo{
		Path:        s.store.Path(),
		Fingerprint: m.fingerprint,
		LoadedAt:    m.loadedAt,
		Tasks:       m.eval.Tasks(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version: s.version,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
		Models:  s.modelsInfo(s.loaded()),
	}
	if s.aggregator != nil {
		resp.Host = s.aggregator.State()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	m := s.loaded()

	resp := ModelsResponse{
		ModelsInfo: s.modelsInfo(m),
		Models:     make([]ModelSummary, 0, len(m.eval.Tasks())),
	}
	for _, task := range m.eval.Tasks() {
		fm, _ := m.eval.Model(task)
		resp.Models = append(resp.Models, ModelSummary{
			Task:             task,
			Schema:           fm.Schema,
			Degree:           fm.Degree,
			IsLogTransformed: fm.IsLogTransformed,
			Features:         len(fm.FeatureNames),
			TrainingMetrics:  fm.TrainingMetrics,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	task := r.PathValue("task")

	fm, ok := s.loaded().eval.Model(task)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown task: "+task)
		return
	}

	s.writeJSON(w, http.StatusOK, ModelResponse{
		Task:     task,
		Model:    fm,
		Equation: fm.Equation(),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Task == "" {
		s.writeError(w, http.StatusBadRequest, "task field is required")
		return
	}

	if req.Parameters != "" && len(req.Params) > 0 {
		s.writeError(w, http.StatusBadRequest, "use either parameters or params, not both")
		return
	}

	raw := req.Parameters
	if len(req.Params) > 0 {
		if err := extract.ValidateParams(req.Params); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		raw = extract.Serialize(req.Params)
	}

	s.predict(w, req.Task, raw)
}

// handlePredictQuery predicts from query parameters, e.g.
// GET /v1/predict/FifteenPuzzle?shuffles=70&size=4
func (s *Server) handlePredictQuery(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	params := make(map[string]string, len(query))
	for key, values := range query {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	if err := extract.ValidateParams(params); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.predict(w, r.PathValue("task"), extract.Serialize(params))
}

func (s *Server) predict(w http.ResponseWriter, task, raw string) {
	m := s.loaded()

	complexity, err := m.eval.Predict(task, raw)
	if err != nil {
		s.writeError(w, predictStatus(err), err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, PredictResponse{
		Task:        task,
		Parameters:  raw,
		Complexity:  complexity,
		Fingerprint: m.fingerprint,
	})
}

func predictStatus(err error) int {
	switch {
	case errors.Is(err, evaluator.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, evaluator.ErrMissingField),
		errors.Is(err, evaluator.ErrNonFinite),
		errors.Is(err, extract.ErrEmptyParameters):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(); err != nil {
		s.logger.Error("model reload failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	m := s.loaded()
	s.writeJSON(w, http.StatusOK, ReloadResponse{
		Reloaded:    true,
		Fingerprint: m.fingerprint,
		Tasks:       m.eval.Tasks(),
	})
}

// writeJSON encodes before writing the header so an unencodable value
// becomes a 500 instead of an empty 200.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status,
		)
		buf.Reset()
		json.NewEncoder(&buf).Encode(ErrorResponse{Error: "failed to encode response"})
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}
