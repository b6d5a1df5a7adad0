package cleanup

import "tasnim.dev/role-grant/internal/grant"

type EventKind string

const (
	KindInsert EventKind = "INSERT"
	KindModify EventKind = "MODIFY"
	KindRemove EventKind = "REMOVE"
)

// Event is one change record from the request store. For KindRemove,
// Snapshot holds the last-known values of the removed record.
type Event struct {
	ID       string
	Kind     EventKind
	Snapshot grant.RoleRequest
}

// Removal builds a removal event from an expired record snapshot.
func Removal(req grant.RoleRequest) Event {
	return Event{ID: req.RequestID, Kind: KindRemove, Snapshot: req}
}
