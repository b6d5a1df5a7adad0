package grant

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"tasnim.dev/role-grant/internal/utils"
)

const NotificationSubject = "IAM Role Approval Needed"

// ActionLink builds the decision URL an approver follows for req.
func ActionLink(baseURL, requestID string, action Action) string {
	q := url.Values{}
	q.Set("request_id", requestID)
	q.Set("action", string(action))
	return strings.TrimRight(baseURL, "/") + "/decide?" + q.Encode()
}

// NotificationMessage renders the approver-facing text for a new request.
func NotificationMessage(baseURL string, req *RoleRequest) string {
	var b strings.Builder
	b.WriteString("New IAM Role request:\n")
	fmt.Fprintf(&b, "Role: %s\n", req.RoleName)
	fmt.Fprintf(&b, "Policies: %s\n", strings.Join(req.PolicyARNs, ", "))
	fmt.Fprintf(&b, "Requester: %s\n\n", req.Requester)
	fmt.Fprintf(&b, "Approve request:\n%s\n\n", ActionLink(baseURL, req.RequestID, ActionApprove))
	fmt.Fprintf(&b, "Reject request:\n%s\n\n", ActionLink(baseURL, req.RequestID, ActionReject))
	fmt.Fprintf(&b, "Request expires at: %s", utils.EpochUTC(req.ExpirationTime))
	return b.String()
}

// LogNotifier writes notifications to a logger instead of a topic.
// Used in local mode where no SNS topic is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, subject, message string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "subject", subject, "message", message)
	return nil
}
