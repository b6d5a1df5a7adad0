package cleanup

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tasnim.dev/role-grant/internal/aws/iam"
	"tasnim.dev/role-grant/internal/metrics"
)

// Teardown is the set of tolerant IAM operations the cascade needs.
// *iam.Client satisfies it.
type Teardown interface {
	ListAttachedRolePolicies(ctx context.Context, roleName string) ([]iam.IAMAttachedPolicy, error)
	DetachRolePolicy(ctx context.Context, roleName, policyARN string) iam.Result
	ListRolePolicyNames(ctx context.Context, roleName string) ([]string, error)
	DeleteRolePolicy(ctx context.Context, roleName, policyName string) iam.Result
	ListInstanceProfileNames(ctx context.Context, roleName string) ([]string, error)
	RemoveRoleFromInstanceProfile(ctx context.Context, profileName, roleName string) iam.Result
	DeleteRole(ctx context.Context, roleName string) iam.Result
}

// ReportSink receives every finished report.
type ReportSink interface {
	Put(ctx context.Context, report *Report) error
}

const listResource = "(list)"

type Cascade struct {
	iam     Teardown
	sink    ReportSink
	workers int
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Cascade)

// WithSink archives each report after its cascade finishes.
func WithSink(sink ReportSink) Option {
	return func(c *Cascade) { c.sink = sink }
}

// WithWorkers bounds how many roles are torn down concurrently.
func WithWorkers(n int) Option {
	return func(c *Cascade) {
		if n > 0 {
			c.workers = n
		}
	}
}

func NewCascade(teardown Teardown, logger *slog.Logger, opts ...Option) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cascade{
		iam:     teardown,
		workers: 4,
		logger:  logger.With("component", "cleanup"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type roleBatch struct {
	roleName   string
	requestIDs []string
}

// Process tears down the role of every removal event in the batch.
// Non-removal events and events without a role name are skipped. Each role
// is cascaded once even if several events name it; distinct roles run
// concurrently. A failure on one role never stops the others.
func (c *Cascade) Process(ctx context.Context, events []Event) []*Report {
	batches := c.group(ctx, events)
	reports := make([]*Report, len(batches))

	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup

	for i, b := range batches {
		wg.Add(1)
		go func(idx int, b roleBatch) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				reports[idx] = c.abandoned(b, ctx.Err())
				return
			}
			defer func() { <-sem }()

			report := c.Run(ctx, b.roleName)
			report.RequestIDs = b.requestIDs
			c.archive(ctx, report)
			reports[idx] = report
		}(i, b)
	}

	wg.Wait()
	return reports
}

func (c *Cascade) group(ctx context.Context, events []Event) []roleBatch {
	var batches []roleBatch
	index := map[string]int{}

	for _, ev := range events {
		if ev.Kind != KindRemove {
			c.logger.DebugContext(ctx, "ignoring non-removal event", "event_id", ev.ID, "kind", ev.Kind)
			continue
		}
		roleName := strings.TrimSpace(ev.Snapshot.RoleName)
		if roleName == "" {
			c.logger.WarnContext(ctx, "removal event has no role_name, skipping", "event_id", ev.ID)
			continue
		}
		i, ok := index[roleName]
		if !ok {
			i = len(batches)
			index[roleName] = i
			batches = append(batches, roleBatch{roleName: roleName})
		}
		if id := ev.Snapshot.RequestID; id != "" {
			batches[i].requestIDs = append(batches[i].requestIDs, id)
		}
	}
	return batches
}

// Run executes the ordered cascade for one role: managed policies, inline
// policies, instance profiles, then the role itself. Every step is
// idempotent, so Run is safe to repeat from the start after an interruption.
func (c *Cascade) Run(ctx context.Context, roleName string) *Report {
	logger := c.logger.With("role_name", roleName)
	report := &Report{RoleName: roleName, StartedAt: c.now().UTC()}
	logger.InfoContext(ctx, "processing expired role")

	report.Steps = append(report.Steps,
		c.detachManaged(ctx, logger, roleName),
		c.deleteInline(ctx, logger, roleName),
		c.removeProfiles(ctx, logger, roleName),
	)

	step := StepReport{Step: StepDeleteRole}
	res := c.iam.DeleteRole(ctx, roleName)
	c.record(ctx, logger, &step, roleName, res)
	report.Steps = append(report.Steps, step)
	report.RoleDeleted = res.OK()

	report.FinishedAt = c.now().UTC()
	failed := report.Failed()
	metrics.RecordCleanupRole(failed)
	if failed {
		logger.ErrorContext(ctx, "cleanup finished with failures", "role_deleted", report.RoleDeleted)
	} else {
		logger.InfoContext(ctx, "cleanup finished")
	}
	return report
}

func (c *Cascade) detachManaged(ctx context.Context, logger *slog.Logger, roleName string) StepReport {
	step := StepReport{Step: StepDetachManaged}
	policies, err := c.iam.ListAttachedRolePolicies(ctx, roleName)
	if !c.listed(ctx, logger, &step, err) {
		return step
	}
	for _, p := range policies {
		c.record(ctx, logger, &step, p.ARN, c.iam.DetachRolePolicy(ctx, roleName, p.ARN))
	}
	return step
}

func (c *Cascade) deleteInline(ctx context.Context, logger *slog.Logger, roleName string) StepReport {
	step := StepReport{Step: StepDeleteInline}
	names, err := c.iam.ListRolePolicyNames(ctx, roleName)
	if !c.listed(ctx, logger, &step, err) {
		return step
	}
	for _, name := range names {
		c.record(ctx, logger, &step, name, c.iam.DeleteRolePolicy(ctx, roleName, name))
	}
	return step
}

func (c *Cascade) removeProfiles(ctx context.Context, logger *slog.Logger, roleName string) StepReport {
	step := StepReport{Step: StepRemoveProfiles}
	profiles, err := c.iam.ListInstanceProfileNames(ctx, roleName)
	if !c.listed(ctx, logger, &step, err) {
		return step
	}
	for _, name := range profiles {
		c.record(ctx, logger, &step, name, c.iam.RemoveRoleFromInstanceProfile(ctx, name, roleName))
	}
	return step
}

// listed reports whether discovery succeeded. A missing role makes the step
// vacuous; any other listing error is recorded against the step.
func (c *Cascade) listed(ctx context.Context, logger *slog.Logger, step *StepReport, err error) bool {
	if err == nil {
		return true
	}
	if iam.IsNotFound(err) {
		logger.InfoContext(ctx, "role already gone, nothing to do", "step", step.Step)
		metrics.RecordCleanupOp(string(step.Step), iam.NotFound.String())
		return false
	}
	logger.ErrorContext(ctx, "listing failed", "step", step.Step, "error", err)
	metrics.RecordCleanupOp(string(step.Step), iam.Failed.String())
	step.fail(listResource, err)
	return false
}

func (c *Cascade) record(ctx context.Context, logger *slog.Logger, step *StepReport, resource string, res iam.Result) {
	metrics.RecordCleanupOp(string(step.Step), res.Outcome.String())
	switch res.Outcome {
	case iam.Removed:
		step.Removed = append(step.Removed, resource)
		logger.InfoContext(ctx, "removed", "step", step.Step, "resource", resource)
	case iam.NotFound:
		step.Missing = append(step.Missing, resource)
		logger.InfoContext(ctx, "already removed", "step", step.Step, "resource", resource)
	default:
		step.fail(resource, res.Err)
		logger.ErrorContext(ctx, "remove failed", "step", step.Step, "resource", resource, "error", res.Err)
	}
}

func (c *Cascade) abandoned(b roleBatch, err error) *Report {
	now := c.now().UTC()
	step := StepReport{Step: StepDetachManaged}
	step.fail(listResource, err)
	return &Report{
		RoleName:   b.roleName,
		RequestIDs: b.requestIDs,
		StartedAt:  now,
		FinishedAt: now,
		Steps:      []StepReport{step},
	}
}

func (c *Cascade) archive(ctx context.Context, report *Report) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Put(ctx, report); err != nil {
		c.logger.WarnContext(ctx, "archiving cleanup report failed", "role_name", report.RoleName, "error", err)
	}
}
