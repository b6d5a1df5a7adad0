package grant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tasnim.dev/role-grant/internal/metrics"
)

type SubmitInput struct {
	RoleName       string
	PolicyARNs     []string
	Requester      string
	DurationHours  int64
	ExpirationTime int64
}

type SubmitResult struct {
	RequestID      string
	ExpirationTime int64
}

type Submitter struct {
	store      Store
	notifier   Notifier
	baseURL    string
	defaultTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

func NewSubmitter(store Store, notifier Notifier, baseURL string, defaultTTL time.Duration, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		store:      store,
		notifier:   notifier,
		baseURL:    baseURL,
		defaultTTL: defaultTTL,
		logger:     logger.With("component", "submit"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Submit records a new pending request and notifies approvers.
// The notification is best-effort: once the record is written, a publish
// failure is logged and the request still succeeds.
func (s *Submitter) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	roleName := strings.TrimSpace(in.RoleName)
	requester := strings.TrimSpace(in.Requester)
	policies := NormalizePolicyARNs(in.PolicyARNs)

	if roleName == "" || requester == "" || len(policies) == 0 {
		return SubmitResult{}, invalidf("role_name, policy_arns and requester are required")
	}
	if in.DurationHours < 0 {
		return SubmitResult{}, invalidf("duration_hours must be positive")
	}

	now := s.now().UTC()
	if in.ExpirationTime != 0 && in.ExpirationTime <= now.Unix() {
		return SubmitResult{}, invalidf("expiration_time %d is not in the future", in.ExpirationTime)
	}

	req := &RoleRequest{
		RequestID:      s.newID(),
		RoleName:       roleName,
		PolicyARNs:     policies,
		Requester:      requester,
		Status:         StatusPending,
		CreatedAt:      now.Truncate(time.Second),
		ExpirationTime: ExpirationTime(now, in.ExpirationTime, in.DurationHours, s.defaultTTL),
	}

	if err := s.store.Create(ctx, req); err != nil {
		return SubmitResult{}, fmt.Errorf("storing request: %w", err)
	}
	s.logger.InfoContext(ctx, "request submitted",
		"request_id", req.RequestID,
		"role_name", req.RoleName,
		"requester", req.Requester,
		"expiration_time", req.ExpirationTime,
	)

	if err := s.notifier.Notify(ctx, NotificationSubject, NotificationMessage(s.baseURL, req)); err != nil {
		metrics.RecordNotification(false)
		s.logger.WarnContext(ctx, "notification failed", "request_id", req.RequestID, "error", err)
	} else {
		metrics.RecordNotification(true)
	}

	return SubmitResult{RequestID: req.RequestID, ExpirationTime: req.ExpirationTime}, nil
}
