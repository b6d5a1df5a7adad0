package grant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	mu      sync.Mutex
	records map[string]RoleRequest
	// beforeTransition runs with the lock released, letting tests
	// interleave a competing write.
	beforeTransition func()
}

func newMemStore() *memStore {
	return &memStore{records: map[string]RoleRequest{}}
}

func (s *memStore) Create(ctx context.Context, req *RoleRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[req.RequestID]; ok {
		return errors.New("duplicate request_id")
	}
	cp := *req
	cp.PolicyARNs = slices.Clone(req.PolicyARNs)
	s.records[req.RequestID] = cp
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*RoleRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *memStore) Transition(ctx context.Context, id string, from []Status, to Status) error {
	if s.beforeTransition != nil {
		hook := s.beforeTransition
		s.beforeTransition = nil
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if !slices.Contains(from, r.Status) {
		return ErrConflict
	}
	r.Status = to
	s.records[id] = r
	return nil
}

type recordingNotifier struct {
	subjects []string
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(ctx context.Context, subject, message string) error {
	n.subjects = append(n.subjects, subject)
	n.messages = append(n.messages, message)
	return n.err
}

// fakeIAM models a role namespace with attached policies.
type fakeIAM struct {
	mu         sync.Mutex
	roles      map[string]map[string]struct{}
	trust      map[string]string
	createErr  error
	attachErrs map[string]error
	creates    int
	attaches   []string
}

func newFakeIAM() *fakeIAM {
	return &fakeIAM{
		roles:      map[string]map[string]struct{}{},
		trust:      map[string]string{},
		attachErrs: map[string]error{},
	}
}

func (f *fakeIAM) EnsureRole(ctx context.Context, roleName, trustPolicy string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[roleName]; ok {
		return false, nil
	}
	if f.createErr != nil {
		return false, f.createErr
	}
	f.creates++
	f.roles[roleName] = map[string]struct{}{}
	f.trust[roleName] = trustPolicy
	return true, nil
}

func (f *fakeIAM) AttachPolicy(ctx context.Context, roleName, policyARN string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.attachErrs[policyARN]; err != nil {
		return err
	}
	f.attaches = append(f.attaches, policyARN)
	f.roles[roleName][policyARN] = struct{}{}
	return nil
}

func (f *fakeIAM) attached(roleName string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for arn := range f.roles[roleName] {
		out = append(out, arn)
	}
	slices.Sort(out)
	return out
}
