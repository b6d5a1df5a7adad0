package dynamodb

import (
	"time"

	"tasnim.dev/role-grant/internal/grant"
)

// record is the table item layout. expiration_time is the table's TTL
// attribute.
type record struct {
	RequestID      string   `dynamodbav:"request_id"`
	RoleName       string   `dynamodbav:"role_name"`
	PolicyARNs     []string `dynamodbav:"policy_arns,stringset,omitempty"`
	Requester      string   `dynamodbav:"requester"`
	Status         string   `dynamodbav:"status"`
	CreatedAt      string   `dynamodbav:"created_at,omitempty"`
	ExpirationTime int64    `dynamodbav:"expiration_time"`
}

func toRecord(req *grant.RoleRequest) record {
	var created string
	if !req.CreatedAt.IsZero() {
		created = req.CreatedAt.UTC().Format(time.RFC3339)
	}
	return record{
		RequestID:      req.RequestID,
		RoleName:       req.RoleName,
		PolicyARNs:     req.PolicyARNs,
		Requester:      req.Requester,
		Status:         string(req.Status),
		CreatedAt:      created,
		ExpirationTime: req.ExpirationTime,
	}
}

func (r record) toRequest() *grant.RoleRequest {
	var created time.Time
	if r.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
			created = t
		}
	}
	return &grant.RoleRequest{
		RequestID:      r.RequestID,
		RoleName:       r.RoleName,
		PolicyARNs:     r.PolicyARNs,
		Requester:      r.Requester,
		Status:         grant.Status(r.Status),
		CreatedAt:      created,
		ExpirationTime: r.ExpirationTime,
	}
}
