package fitd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/metrics"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/logger"
)

type HTTPServer struct {
	mux      *http.ServeMux
	store    *JobStore
	Executor *FitExecutor
}

func NewHTTPServer(store *JobStore, executor *FitExecutor, recorder *metrics.Recorder) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.Handle("/metrics", recorder.Handler())
	s.mux.HandleFunc("/v1/fits", s.handleFits)
	s.mux.HandleFunc("/v1/fits/", s.handleFitByID)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleFits handles /v1/fits
func (s *HTTPServer) handleFits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateFit(w, r)
	case http.MethodGet:
		s.handleListFits(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleFitByID handles /v1/fits/{id}, /v1/fits/{id}:stop and /v1/fits/{id}/summary
func (s *HTTPServer) handleFitByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/fits/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "fit ID is required")
		return
	}

	if strings.HasSuffix(path, ":stop") {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleStopFit(w, strings.TrimSuffix(path, ":stop"))
		return
	}

	if strings.HasSuffix(path, "/summary") {
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleGetSummary(w, strings.TrimSuffix(path, "/summary"))
		return
	}

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.handleGetFit(w, path)
}

// handleCreateFit handles POST /v1/fits: the request is checked, stored and started
func (s *HTTPServer) handleCreateFit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    string      `json:"id,omitempty"`
		Input *FitRequest `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Input == nil {
		s.writeError(w, http.StatusBadRequest, "input is required")
		return
	}
	if _, err := req.Input.compile(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.store.Create(req.ID, req.Input)
	if err != nil {
		switch {
		case errors.Is(err, ErrFitExists):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	started, err := s.Executor.Start(rec.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("fit created (HTTP)", "fit_id", rec.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"fit": convertFitToJSON(started),
	})
}

// handleListFits handles GET /v1/fits with pagination and filtering
func (s *HTTPServer) handleListFits(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, 1000)
		}
	}
	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	var status FitStatus
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		if status = ParseStatus(statusStr); status == "" {
			s.writeError(w, http.StatusBadRequest, "unknown status "+statusStr)
			return
		}
	}

	fits := s.store.List(limit, offset, status)
	fitsJSON := make([]map[string]any, 0, len(fits))
	for _, rec := range fits {
		fitsJSON = append(fitsJSON, convertFitToJSON(rec))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"fits": fitsJSON,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(fits),
		},
	})
}

// handleGetFit handles GET /v1/fits/{id}
func (s *HTTPServer) handleGetFit(w http.ResponseWriter, id string) {
	rec, ok := s.store.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "fit not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"fit": convertFitToJSON(rec),
	})
}

// handleStopFit handles POST /v1/fits/{id}:stop
func (s *HTTPServer) handleStopFit(w http.ResponseWriter, id string) {
	updated, err := s.Executor.Stop(id)
	if err != nil {
		switch {
		case errors.Is(err, ErrFitNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrFitIDMissing):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrFitTerminal):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("fit cancelled (HTTP)", "fit_id", id)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"fit": convertFitToJSON(updated),
	})
}

// handleGetSummary handles GET /v1/fits/{id}/summary
func (s *HTTPServer) handleGetSummary(w http.ResponseWriter, id string) {
	rec, ok := s.store.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "fit not found")
		return
	}
	if rec.Summary == nil {
		s.writeError(w, http.StatusPreconditionFailed, "summary not available")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"summary": convertSummaryToJSON(rec.Summary),
	})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
