package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"taskbridge/internal/auth"
	"taskbridge/internal/graph"
	"taskbridge/internal/logging"
	"taskbridge/internal/relay"
	"taskbridge/internal/tasks"
)

// Error kinds carried in the error envelope.
const (
	kindValidation   = "validation"
	kindAuthRequired = "auth_required"
	kindNotFound     = "not_found"
	kindRemoteAPI    = "remote_api"
	kindRelayFailed  = "relay_failed"
	kindInternal     = "internal"
)

// fieldError points at one invalid request field.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorBody struct {
	Kind    string       `json:"kind"`
	Message string       `json:"message"`
	Fields  []fieldError `json:"fields,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string, fields []fieldError) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Kind:    kind,
		Message: message,
		Fields:  fields,
	}})
}

// writeOperationError maps a gateway or relay error to its envelope.
func (s *Server) writeOperationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrAuthRequired):
		writeError(w, http.StatusUnauthorized, kindAuthRequired, err.Error(), nil)
	case errors.Is(err, graph.ErrNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, err.Error(), nil)
	case errors.Is(err, relay.ErrDeliveryFailed):
		writeError(w, http.StatusBadGateway, kindRelayFailed, err.Error(), nil)
	default:
		var apiErr *graph.APIError
		if errors.As(err, &apiErr) {
			writeError(w, http.StatusBadGateway, kindRemoteAPI, err.Error(), nil)
			return
		}
		s.logger.Error("request failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, kindInternal, err.Error(), nil)
	}
}

// createTaskRequest is the assistant-facing create payload.
type createTaskRequest struct {
	Title      string `json:"title"`
	Notes      string `json:"notes"`
	Importance string `json:"importance"`
	DueDate    string `json:"dueDate"`
	Category   string `json:"category"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid JSON body", nil)
		return
	}

	var fields []fieldError
	if strings.TrimSpace(req.Title) == "" {
		fields = append(fields, fieldError{Field: "title", Message: "title is required"})
	}
	category, err := tasks.ParseCategory(req.Category)
	if err != nil {
		fields = append(fields, fieldError{Field: "category", Message: err.Error()})
	}
	importance, err := tasks.ParseImportance(req.Importance)
	if err != nil {
		fields = append(fields, fieldError{Field: "importance", Message: err.Error()})
	}
	if req.DueDate != "" && !validDate(req.DueDate) {
		fields = append(fields, fieldError{Field: "dueDate", Message: "expected YYYY-MM-DD"})
	}
	if len(fields) > 0 {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid task", fields)
		return
	}

	ref, err := s.tasks.Create(r.Context(), tasks.CreateInput{
		Title:      strings.TrimSpace(req.Title),
		Notes:      req.Notes,
		Importance: importance,
		DueDate:    req.DueDate,
		Category:   category,
	})
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fields []fieldError
	category, err := tasks.ParseCategory(q.Get("category"))
	if err != nil {
		fields = append(fields, fieldError{Field: "category", Message: err.Error()})
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			fields = append(fields, fieldError{Field: "limit", Message: "expected a non-negative integer"})
		}
	}
	if len(fields) > 0 {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid query", fields)
		return
	}

	refs, err := s.tasks.List(r.Context(), tasks.ListInput{
		Category:         category,
		Limit:            limit,
		IncludeCompleted: q.Get("includeCompleted") == "true",
	})
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": refs})
}

type completeTaskRequest struct {
	Category string `json:"category"`
	ListID   string `json:"listId"`
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if strings.TrimSpace(taskID) == "" {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid task id",
			[]fieldError{{Field: "id", Message: "task id is required"}})
		return
	}

	var req completeTaskRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, kindValidation, "invalid JSON body", nil)
			return
		}
	}
	category, err := tasks.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid task",
			[]fieldError{{Field: "category", Message: err.Error()}})
		return
	}

	ref, err := s.tasks.Complete(r.Context(), tasks.CompleteInput{
		RemoteTaskID: taskID,
		Category:     category,
		ListID:       req.ListID,
	})
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.auth.Status(r.Context()))
}

func (s *Server) handleTaskChanged(w http.ResponseWriter, r *http.Request) {
	var in relay.Inbound
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid JSON body", nil)
		return
	}

	force := r.URL.Query().Get("force") == "true" ||
		strings.EqualFold(r.Header.Get("X-Relay-Force"), "true")

	res, err := s.relay.Process(r.Context(), in, force)
	if err != nil && res.Outcome == relay.OutcomeError {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// validDate reports whether s is a YYYY-MM-DD date.
func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
