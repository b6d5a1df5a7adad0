package grant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tasnim.dev/role-grant/internal/metrics"
)

type Decision struct {
	Action     Action
	RequestID  string
	RoleName   string
	PolicyARNs []string
	Status     Status
	// RoleCreated is true when approval created the role rather than
	// finding it already present.
	RoleCreated bool
}

type Decider struct {
	store       Store
	provisioner Provisioner
	trustPolicy string
	logger      *slog.Logger
}

func NewDecider(store Store, provisioner Provisioner, trustPolicy string, logger *slog.Logger) *Decider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decider{
		store:       store,
		provisioner: provisioner,
		trustPolicy: trustPolicy,
		logger:      logger.With("component", "decide"),
	}
}

// Decide applies an approve or reject action to a stored request.
func (d *Decider) Decide(ctx context.Context, requestID, action string) (Decision, error) {
	requestID = strings.TrimSpace(requestID)
	action = strings.TrimSpace(action)
	if requestID == "" || action == "" {
		return Decision{}, ErrMissingParameters
	}

	var (
		dec Decision
		err error
	)
	switch Action(action) {
	case ActionApprove:
		dec, err = d.approve(ctx, requestID)
	case ActionReject:
		dec, err = d.reject(ctx, requestID)
	default:
		return Decision{}, invalidf("invalid action %q", action)
	}
	metrics.RecordDecision(action, decisionOutcome(err))
	return dec, err
}

func (d *Decider) reject(ctx context.Context, requestID string) (Decision, error) {
	req, err := d.store.Get(ctx, requestID)
	if err != nil {
		return Decision{}, err
	}
	if req.Status == StatusApproved {
		return Decision{}, fmt.Errorf("%w: request %s is approved", ErrConflict, requestID)
	}

	if err := d.store.Transition(ctx, requestID, []Status{StatusPending, StatusRejected}, StatusRejected); err != nil {
		return Decision{}, err
	}
	d.logger.InfoContext(ctx, "request rejected", "request_id", requestID, "role_name", req.RoleName)

	return Decision{
		Action:     ActionReject,
		RequestID:  requestID,
		RoleName:   req.RoleName,
		PolicyARNs: req.PolicyARNs,
		Status:     StatusRejected,
	}, nil
}

// approve provisions the role before committing the status. The commit is a
// conditional pending->approved write, so of two concurrent approvals only
// one succeeds; the loser gets ErrConflict after idempotent provisioning.
func (d *Decider) approve(ctx context.Context, requestID string) (Decision, error) {
	req, err := d.store.Get(ctx, requestID)
	if err != nil {
		return Decision{}, err
	}
	if req.Status != StatusPending {
		return Decision{}, fmt.Errorf("%w: request %s is %s", ErrConflict, requestID, req.Status)
	}

	created, err := d.provisioner.EnsureRole(ctx, req.RoleName, d.trustPolicy)
	if err != nil {
		return Decision{}, &ProvisionError{RoleName: req.RoleName, Err: err}
	}
	if created {
		d.logger.InfoContext(ctx, "role created", "request_id", requestID, "role_name", req.RoleName)
	}

	for _, arn := range req.PolicyARNs {
		if err := d.provisioner.AttachPolicy(ctx, req.RoleName, arn); err != nil {
			d.logger.ErrorContext(ctx, "policy attach failed",
				"request_id", requestID, "role_name", req.RoleName, "policy_arn", arn, "error", err)
			return Decision{}, &ProvisionError{RoleName: req.RoleName, PolicyARN: arn, Err: err}
		}
	}

	if err := d.store.Transition(ctx, requestID, []Status{StatusPending}, StatusApproved); err != nil {
		return Decision{}, err
	}
	d.logger.InfoContext(ctx, "request approved",
		"request_id", requestID, "role_name", req.RoleName, "policies", len(req.PolicyARNs))

	return Decision{
		Action:      ActionApprove,
		RequestID:   requestID,
		RoleName:    req.RoleName,
		PolicyARNs:  req.PolicyARNs,
		Status:      StatusApproved,
		RoleCreated: created,
	}, nil
}

func decisionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrProvisionFailure):
		return "provision_failure"
	default:
		return "error"
	}
}
