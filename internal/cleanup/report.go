package cleanup

import "time"

type Step string

const (
	StepDetachManaged  Step = "detach_managed_policies"
	StepDeleteInline   Step = "delete_inline_policies"
	StepRemoveProfiles Step = "remove_instance_profiles"
	StepDeleteRole     Step = "delete_role"
)

// StepReport lists what happened to each resource touched by one step.
// Missing holds resources that were already gone.
type StepReport struct {
	Step    Step              `json:"step"`
	Removed []string          `json:"removed,omitempty"`
	Missing []string          `json:"missing,omitempty"`
	Failed  map[string]string `json:"failed,omitempty"`
}

func (s *StepReport) fail(resource string, err error) {
	if s.Failed == nil {
		s.Failed = map[string]string{}
	}
	s.Failed[resource] = err.Error()
}

// Report is the outcome of one role's cascade.
type Report struct {
	RoleName    string       `json:"role_name"`
	RequestIDs  []string     `json:"request_ids,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Steps       []StepReport `json:"steps"`
	RoleDeleted bool         `json:"role_deleted"`
}

// Failed reports whether any resource could not be removed.
func (r *Report) Failed() bool {
	for _, s := range r.Steps {
		if len(s.Failed) > 0 {
			return true
		}
	}
	return false
}
