package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"erp-ai-jobs/internal/domain"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/repository"
	"erp-ai-jobs/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type jobResponse struct {
	ID               string            `json:"id"`
	OrganizationID   string            `json:"organization_id"`
	ConversationID   string            `json:"conversation_id"`
	TriggerMessageID string            `json:"trigger_message_id,omitempty"`
	Type             string            `json:"job_type"`
	Status           string            `json:"status"`
	ResultMessageID  string            `json:"result_message_id,omitempty"`
	ResponseText     string            `json:"response_text,omitempty"`
	ConfidenceScore  float64           `json:"confidence_score,omitempty"`
	FragmentsUsed    []string          `json:"fragments_used,omitempty"`
	PromptTokens     int               `json:"prompt_tokens,omitempty"`
	CompletionTokens int               `json:"completion_tokens,omitempty"`
	TotalCostMicros  int64             `json:"total_cost_micros,omitempty"`
	ErrorCode        string            `json:"error_code,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

func toJobResponse(j *model.Job) jobResponse {
	return jobResponse{
		ID:               j.ID,
		OrganizationID:   j.OrganizationID,
		ConversationID:   j.ConversationID,
		TriggerMessageID: j.TriggerMessageID,
		Type:             string(j.Type),
		Status:           string(j.Status),
		ResultMessageID:  j.ResultMessageID,
		ResponseText:     j.ResponseText,
		ConfidenceScore:  j.ConfidenceScore,
		FragmentsUsed:    j.FragmentsUsed,
		PromptTokens:     j.PromptTokens,
		CompletionTokens: j.CompletionTokens,
		TotalCostMicros:  j.TotalCostMicros,
		ErrorCode:        j.ErrorCode,
		ErrorMessage:     j.ErrorMessage,
		Metadata:         j.Metadata,
		CreatedAt:        j.CreatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainErr maps engine errors onto HTTP statuses. StaleState and the
// precondition errors are conflicts, not server failures.
func (s *Server) writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotRetryable),
		errors.Is(err, domain.ErrNotCancellable),
		errors.Is(err, domain.ErrStaleState),
		errors.Is(err, domain.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error().Err(err).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// ---- auth ----

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey     string `json:"api_key"`
		OperatorID string `json:"operator_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if s.apiKey == "" || req.APIKey != s.apiKey {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if req.OperatorID == "" {
		req.OperatorID = "operator"
	}
	token, err := s.auth.Mint(w, req.OperatorID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ---- jobs ----

type enqueueRequest struct {
	OrganizationID   string            `json:"organization_id"`
	ConversationID   string            `json:"conversation_id"`
	Type             string            `json:"job_type"`
	TriggerMessageID string            `json:"trigger_message_id"`
	Metadata         map[string]string `json:"metadata"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	job, err := s.jobUC.Enqueue(r.Context(), usecase.EnqueueParams{
		OrganizationID:   req.OrganizationID,
		ConversationID:   req.ConversationID,
		Type:             model.JobType(req.Type),
		TriggerMessageID: req.TriggerMessageID,
		Metadata:         req.Metadata,
		ActorID:          operatorFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobResponse(job))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobUC.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org")
	filter, err := filterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	jobs, err := s.jobUC.List(r.Context(), orgID, filter)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}

	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	job, err := s.cancelUC.Cancel(r.Context(), chi.URLParam(r, "jobID"), operatorFrom(r.Context()))
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	job, err := s.retryUC.Retry(r.Context(), chi.URLParam(r, "jobID"), operatorFrom(r.Context()))
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobResponse(job))
}

// ---- stats ----

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org")
	filter, err := filterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := s.statsUC.Snapshot(r.Context(), orgID, filter)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// filterFromQuery parses the shared list/stats query parameters. Date
// bounds are inclusive ISO-8601 timestamps.
func filterFromQuery(r *http.Request) (repository.JobFilter, error) {
	var f repository.JobFilter
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		st := model.JobStatus(v)
		f.Status = &st
	}
	if v := q.Get("type"); v != "" {
		jt := model.JobType(v)
		f.Type = &jt
	}
	if v := q.Get("date_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("date_from must be RFC3339")
		}
		f.DateFrom = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("date_to must be RFC3339")
		}
		f.DateTo = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("offset must be a non-negative integer")
		}
		f.Offset = n
	}
	return f, nil
}
