package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Disclosure-Ledger/internal/api/request"
	"github.com/ndewijer/Disclosure-Ledger/internal/api/response"
	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/service"
)

// RunHandler handles HTTP requests for ledger runs and their journal.
type RunHandler struct {
	runService *service.RunService
}

// NewRunHandler creates a new RunHandler
func NewRunHandler(runService *service.RunService) *RunHandler {
	return &RunHandler{
		runService: runService,
	}
}

// ListRuns returns the most recent journal entries, newest first.
//
// Endpoint: GET /api/runs?limit=20
// Response: 200 OK with []model.Run
// Error: 400 Bad Request for an invalid limit
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := request.ParseRunLimit(r.URL.Query().Get("limit"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	runs, err := h.runService.ListRuns(limit)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to retrieve runs", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

// GetRun returns one journal entry.
//
// Endpoint: GET /api/runs/{uuid}
// Response: 200 OK with model.Run
// Error: 404 Not Found when the run does not exist
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runService.GetRun(chi.URLParam(r, "uuid"))
	if err != nil {
		if errors.Is(err, apperrors.ErrRunNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrRunNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, "failed to retrieve run", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// TriggerRun starts a run in the background. The optional date query
// parameter (YYYYMMDD) selects the filing day; it defaults to today.
//
// Endpoint: POST /api/runs?date=20240110
// Response: 202 Accepted with the running model.Run
// Error: 400 Bad Request for an invalid date, 409 Conflict while another run is in progress
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	date, err := request.ParseRunDate(r.URL.Query().Get("date"), h.runService.Today())
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	run, err := h.runService.Start(r.Context(), service.TriggerAPI, date)
	if err != nil {
		if errors.Is(err, apperrors.ErrRunInProgress) {
			response.RespondError(w, http.StatusConflict, apperrors.ErrRunInProgress.Error(), "")
			return
		}
		response.RespondError(w, http.StatusInternalServerError, "failed to start run", err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, run)
}
