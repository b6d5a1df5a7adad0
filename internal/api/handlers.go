package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tasnim.dev/role-grant/internal/aws/iam"
	"tasnim.dev/role-grant/internal/grant"
)

const maxBodyBytes = 1 << 20

// flexInt accepts a JSON number or a numeric string. Browsers posting form
// values tend to send the latter.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
		if s == "" {
			*f = 0
			return nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	fl, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*f = flexInt(int64(fl))
	return nil
}

type submitRequest struct {
	RoleName       string   `json:"role_name"`
	PolicyARNs     []string `json:"policy_arns"`
	Requester      string   `json:"requester"`
	DurationHours  flexInt  `json:"duration_hours"`
	ExpirationTime flexInt  `json:"expiration_time"`
}

type policiesResponse struct {
	Policies   []iam.IAMPolicy `json:"policies"`
	NextMarker string          `json:"next_marker,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	res, err := s.submitter.Submit(r.Context(), grant.SubmitInput{
		RoleName:       body.RoleName,
		PolicyARNs:     body.PolicyARNs,
		Requester:      body.Requester,
		DurationHours:  int64(body.DurationHours),
		ExpirationTime: int64(body.ExpirationTime),
	})
	if err != nil {
		respondErr(w, r, s.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, messageResponse{
		Message:    "Request submitted",
		RequestID:  res.RequestID,
		Expiration: res.ExpirationTime,
	})
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dec, err := s.decider.Decide(r.Context(), q.Get("request_id"), q.Get("action"))
	if err != nil {
		respondErr(w, r, s.logger, err)
		return
	}

	if dec.Action == grant.ActionReject {
		respondJSON(w, http.StatusOK, messageResponse{Message: "Request rejected"})
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{
		Message:    "Role created and policies attached",
		Role:       dec.RoleName,
		PolicyARNs: dec.PolicyARNs,
	})
}

func (s *Server) handlePolicies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := q.Get("scope")
	switch scope {
	case "", "AWS", "Local", "All":
	default:
		respondError(w, http.StatusBadRequest, "Invalid request", fmt.Sprintf("unknown scope %q", scope))
		return
	}

	var marker *string
	if m := q.Get("marker"); m != "" {
		marker = &m
	}

	policies, next, err := s.catalog.ListPoliciesPage(r.Context(), scope, marker)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "listing policies failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}

	if policies == nil {
		policies = []iam.IAMPolicy{}
	}
	resp := policiesResponse{Policies: policies}
	if next != nil {
		resp.NextMarker = *next
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
