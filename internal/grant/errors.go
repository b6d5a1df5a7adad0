package grant

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrMissingParameters = errors.New("missing parameters")
	ErrNotFound          = errors.New("request not found")
	ErrConflict          = errors.New("request already decided")
	ErrProvisionFailure  = errors.New("provisioning failed")
)

// ProvisionError reports the policy whose binding aborted an approval.
type ProvisionError struct {
	RoleName  string
	PolicyARN string
	Err       error
}

func (e *ProvisionError) Error() string {
	if e.PolicyARN == "" {
		return fmt.Sprintf("failed to ensure role %s: %v", e.RoleName, e.Err)
	}
	return fmt.Sprintf("failed to attach policy %s: %v", e.PolicyARN, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

func (e *ProvisionError) Is(target error) bool { return target == ErrProvisionFailure }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
