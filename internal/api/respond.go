package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"tasnim.dev/role-grant/internal/grant"
)

type messageResponse struct {
	Message    string   `json:"message"`
	RequestID  string   `json:"request_id,omitempty"`
	Expiration int64    `json:"expiration_time,omitempty"`
	Role       string   `json:"role,omitempty"`
	PolicyARNs []string `json:"policy_arns,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg, details string) {
	respondJSON(w, status, errorResponse{Error: msg, Details: details})
}

// respondErr maps a domain error onto its HTTP status. Internal errors are
// logged with their cause and answered with a generic message.
func respondErr(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var perr *grant.ProvisionError
	switch {
	case errors.Is(err, grant.ErrMissingParameters):
		respondError(w, http.StatusBadRequest, "Missing parameters", "")
	case errors.Is(err, grant.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, grant.ErrNotFound):
		respondError(w, http.StatusNotFound, "Request not found", "")
	case errors.Is(err, grant.ErrConflict):
		respondError(w, http.StatusConflict, "Request already decided", err.Error())
	case errors.As(err, &perr):
		msg := fmt.Sprintf("Failed to attach policy %s", perr.PolicyARN)
		if perr.PolicyARN == "" {
			msg = fmt.Sprintf("Failed to create role %s", perr.RoleName)
		}
		logger.ErrorContext(r.Context(), "provisioning failed", "role", perr.RoleName, "policy", perr.PolicyARN, "error", perr.Err)
		respondError(w, http.StatusInternalServerError, msg, perr.Err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}
