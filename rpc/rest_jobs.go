package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/alphabill-org/partdist/compute"
)

// JobVerifyChains is the name of the job which verifies all the stored chains.
const JobVerifyChains = "verify-chains"

type (
	jobQueue interface {
		compute.Facade
		Submit(ctx context.Context, name string, priority int, payload any) (uuid.UUID, error)
	}

	jobRequest struct {
		Priority int `json:"priority"`
	}

	jobResponse struct {
		ID         uuid.UUID  `json:"id"`
		Name       string     `json:"name"`
		Status     string     `json:"status"`
		Priority   int        `json:"priority"`
		CreatedAt  time.Time  `json:"createdAt"`
		StartedAt  *time.Time `json:"startedAt,omitempty"`
		FinishedAt *time.Time `json:"finishedAt,omitempty"`
		Error      string     `json:"error,omitempty"`
	}
)

/*
JobEndpoints registers endpoints for managing background jobs:

	POST   /jobs/verify-chains
	GET    /jobs/{id}
	DELETE /jobs/{id}
	PUT    /jobs/{id}/priority
*/
func JobEndpoints(jobs jobQueue, log *slog.Logger) RegistrarFunc {
	return func(r *mux.Router) {
		r.HandleFunc("/jobs/"+JobVerifyChains, submitJob(jobs, JobVerifyChains, log)).Methods(http.MethodPost)
		r.HandleFunc("/jobs/{id}", jobStatus(jobs, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/jobs/{id}", cancelJob(jobs, log)).Methods(http.MethodDelete)
		r.HandleFunc("/jobs/{id}/priority", changeJobPriority(jobs, log)).Methods(http.MethodPut)
	}
}

func submitJob(jobs jobQueue, name string, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeJobRequest(r)
		if err != nil {
			writeErrorStatus(w, r, http.StatusBadRequest, err, log)
			return
		}
		id, err := jobs.Submit(r.Context(), name, req.Priority, nil)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, compute.ErrQueueFull) {
				status = http.StatusServiceUnavailable
			}
			writeErrorStatus(w, r, status, err, log)
			return
		}
		state, err := jobs.Status(r.Context(), id)
		if err != nil {
			writeErrorStatus(w, r, http.StatusInternalServerError, err, log)
			return
		}
		writeJSON(w, r, http.StatusAccepted, newJobResponse(state), log)
	}
}

func jobStatus(jobs jobQueue, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := jobID(r)
		if err != nil {
			writeErrorStatus(w, r, http.StatusBadRequest, err, log)
			return
		}
		state, err := jobs.Status(r.Context(), id)
		if err != nil {
			writeErrorStatus(w, r, http.StatusInternalServerError, err, log)
			return
		}
		if !state.Found {
			writeErrorStatus(w, r, http.StatusNotFound, fmt.Errorf("job %s not found", id), log)
			return
		}
		writeJSON(w, r, http.StatusOK, newJobResponse(state), log)
	}
}

func cancelJob(jobs jobQueue, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := jobID(r)
		if err != nil {
			writeErrorStatus(w, r, http.StatusBadRequest, err, log)
			return
		}
		res, err := jobs.Cancel(r.Context(), id)
		writeOpResult(w, r, id, res, err, log)
	}
}

func changeJobPriority(jobs jobQueue, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := jobID(r)
		if err != nil {
			writeErrorStatus(w, r, http.StatusBadRequest, err, log)
			return
		}
		req, err := decodeJobRequest(r)
		if err != nil {
			writeErrorStatus(w, r, http.StatusBadRequest, err, log)
			return
		}
		res, err := jobs.ChangePriority(r.Context(), id, req.Priority)
		writeOpResult(w, r, id, res, err, log)
	}
}

func writeOpResult(w http.ResponseWriter, r *http.Request, id uuid.UUID, res compute.OpResult, err error, log *slog.Logger) {
	switch {
	case err != nil:
		writeErrorStatus(w, r, http.StatusInternalServerError, err, log)
	case res == compute.NotFound:
		writeErrorStatus(w, r, http.StatusNotFound, fmt.Errorf("job %s not found", id), log)
	case res == compute.Rejected:
		writeErrorStatus(w, r, http.StatusConflict, fmt.Errorf("operation is not allowed in the current state of the job %s", id), log)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeJobRequest decodes optional JSON body of the request.
func decodeJobRequest(r *http.Request) (req jobRequest, err error) {
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, fmt.Errorf("decoding request body: %w", err)
	}
	return req, nil
}

func jobID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid job id: %w", err)
	}
	return id, nil
}

func newJobResponse(state compute.JobState) jobResponse {
	optTime := func(t time.Time) *time.Time {
		if t.IsZero() {
			return nil
		}
		return &t
	}
	resp := jobResponse{
		ID:         state.ID,
		Name:       state.Name,
		Status:     state.Status.String(),
		Priority:   state.Priority,
		CreatedAt:  state.CreatedAt,
		StartedAt:  optTime(state.StartedAt),
		FinishedAt: optTime(state.FinishedAt),
	}
	if state.Err != nil {
		resp.Error = state.Err.Error()
	}
	return resp
}
