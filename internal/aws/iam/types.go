package iam

type IAMAttachedPolicy struct {
	Name string
	ARN  string
}

// IAMPolicy is a catalog entry offered to requesters.
type IAMPolicy struct {
	Name string `json:"name"`
	ARN  string `json:"arn"`
}

// Outcome classifies a single teardown call.
type Outcome int

const (
	Removed Outcome = iota
	NotFound
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Removed:
		return "removed"
	case NotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Result is the typed outcome of a tolerant teardown call. Err is set only
// when Outcome is Failed.
type Result struct {
	Outcome Outcome
	Err     error
}

// OK reports whether the resource is gone, either removed now or already absent.
func (r Result) OK() bool { return r.Outcome != Failed }
