package grant

import (
	"context"
	"strings"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// RoleRequest is the persisted grant record. It is removed by the store's
// TTL once ExpirationTime passes; there is no "expired" status.
type RoleRequest struct {
	RequestID      string
	RoleName       string
	PolicyARNs     []string
	Requester      string
	Status         Status
	CreatedAt      time.Time
	ExpirationTime int64 // epoch seconds
}

// Store persists RoleRequests.
//
// Create must fail rather than overwrite an existing request_id.
// Transition moves a record to status `to` only if its current status is one
// of `from`; it returns ErrNotFound for a missing record and ErrConflict when
// the current status does not match.
type Store interface {
	Create(ctx context.Context, req *RoleRequest) error
	Get(ctx context.Context, requestID string) (*RoleRequest, error)
	Transition(ctx context.Context, requestID string, from []Status, to Status) error
}

// Notifier delivers approval notifications. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, subject, message string) error
}

// Provisioner creates the target role and binds policies to it.
type Provisioner interface {
	EnsureRole(ctx context.Context, roleName, trustPolicy string) (bool, error)
	AttachPolicy(ctx context.Context, roleName, policyARN string) error
}

// NormalizePolicyARNs trims entries, drops empty ones and collapses
// duplicates, keeping first-seen order.
func NormalizePolicyARNs(arns []string) []string {
	seen := make(map[string]struct{}, len(arns))
	out := make([]string, 0, len(arns))
	for _, a := range arns {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
