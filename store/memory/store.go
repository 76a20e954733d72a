// Package memory provides an in-memory Store implementation for tests and
// single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/vercel"
	"github.com/xraph/vercel/dlq"
	"github.com/xraph/vercel/event"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/run"
	vercelstore "github.com/xraph/vercel/store"
	"github.com/xraph/vercel/trigger"
)

// compile-time interface check.
var _ vercelstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	registrations map[string]*trigger.Registration  // keyed by ID string
	regsByKey     map[string]string                 // params key -> ID string
	events        map[string]*event.Record          // keyed by Vercel event id
	claims        map[string]struct{}               // event ids being dispatched
	outputs       map[string]map[string]*run.Output // run id -> task key
	dlqEntries    map[string]*dlq.Entry             // keyed by ID string

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		registrations: make(map[string]*trigger.Registration),
		regsByKey:     make(map[string]string),
		events:        make(map[string]*event.Record),
		claims:        make(map[string]struct{}),
		outputs:       make(map[string]map[string]*run.Output),
		dlqEntries:    make(map[string]*dlq.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is still open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return vercel.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// trigger.Store
// ──────────────────────────────────────────────────

func copyRegistration(r *trigger.Registration) *trigger.Registration {
	cp := *r
	cp.EventTypes = append([]event.Type(nil), r.EventTypes...)
	cp.Params.ProjectIDs = append([]string(nil), r.Params.ProjectIDs...)
	return &cp
}

// CreateRegistration persists a registration.
func (s *Store) CreateRegistration(_ context.Context, reg *trigger.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.regsByKey[reg.Key]; ok {
		return trigger.ErrDuplicateRegistration
	}
	s.registrations[reg.ID.String()] = copyRegistration(reg)
	s.regsByKey[reg.Key] = reg.ID.String()
	return nil
}

// GetRegistration returns a registration by ID.
func (s *Store) GetRegistration(_ context.Context, regID id.ID) (*trigger.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.registrations[regID.String()]
	if !ok {
		return nil, trigger.ErrRegistrationNotFound
	}
	return copyRegistration(r), nil
}

// GetRegistrationByKey returns the registration serving a params key.
func (s *Store) GetRegistrationByKey(_ context.Context, key string) (*trigger.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	regID, ok := s.regsByKey[key]
	if !ok {
		return nil, trigger.ErrRegistrationNotFound
	}
	return copyRegistration(s.registrations[regID]), nil
}

// UpdateRegistration replaces a registration.
func (s *Store) UpdateRegistration(_ context.Context, reg *trigger.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registrations[reg.ID.String()]; !ok {
		return trigger.ErrRegistrationNotFound
	}
	s.registrations[reg.ID.String()] = copyRegistration(reg)
	return nil
}

// DeleteRegistration removes a registration.
func (s *Store) DeleteRegistration(_ context.Context, regID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registrations[regID.String()]
	if !ok {
		return trigger.ErrRegistrationNotFound
	}
	delete(s.registrations, regID.String())
	delete(s.regsByKey, r.Key)
	return nil
}

// ListRegistrations returns all registrations, oldest first.
func (s *Store) ListRegistrations(_ context.Context) ([]*trigger.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*trigger.Registration, 0, len(s.registrations))
	for _, r := range s.registrations {
		result = append(result, copyRegistration(r))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// CreateEvent records a received event. Returns ErrDuplicateEvent on conflict.
func (s *Store) CreateEvent(_ context.Context, rec *event.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[rec.ID]; ok {
		return event.ErrDuplicateEvent
	}
	cp := *rec
	s.events[rec.ID] = &cp
	return nil
}

// GetEvent returns a recorded event by Vercel event id.
func (s *Store) GetEvent(_ context.Context, eventID string) (*event.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.events[eventID]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	cp := *rec
	return &cp, nil
}

// ClaimEvent takes the dispatch claim on a recorded event.
func (s *Store) ClaimEvent(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.events[eventID]
	if !ok {
		return false, event.ErrEventNotFound
	}
	if _, held := s.claims[eventID]; held || rec.Dispatched {
		return false, nil
	}
	s.claims[eventID] = struct{}{}
	return true, nil
}

// ReleaseEvent drops the dispatch claim on an event.
func (s *Store) ReleaseEvent(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, eventID)
	return nil
}

// MarkEventDispatched flags a recorded event as dispatched.
func (s *Store) MarkEventDispatched(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.events[eventID]
	if !ok {
		return event.ErrEventNotFound
	}
	rec.Dispatched = true
	rec.Touch()
	return nil
}

// ListEvents returns recorded events, optionally filtered.
func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Record, 0, len(s.events))
	for _, rec := range s.events {
		if !matchEventOpts(rec, opts) {
			continue
		}
		cp := *rec
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ──────────────────────────────────────────────────
// run.Store
// ──────────────────────────────────────────────────

// GetTaskOutput returns the stored output of a task.
func (s *Store) GetTaskOutput(_ context.Context, runID, key string) (*run.Output, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out, ok := s.outputs[runID][key]
	if !ok {
		return nil, run.ErrOutputNotFound
	}
	cp := *out
	return &cp, nil
}

// SaveTaskOutput stores or replaces a task output.
func (s *Store) SaveTaskOutput(_ context.Context, out *run.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.outputs[out.RunID]
	if !ok {
		byKey = make(map[string]*run.Output)
		s.outputs[out.RunID] = byKey
	}
	cp := *out
	byKey[out.Key] = &cp
	return nil
}

// DeleteRunOutputs forgets every output of a run.
func (s *Store) DeleteRunOutputs(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.outputs, runID)
	return nil
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

func copyEntry(e *dlq.Entry) *dlq.Entry {
	cp := *e
	if e.ReplayedAt != nil {
		t := *e.ReplayedAt
		cp.ReplayedAt = &t
	}
	return &cp
}

// PushDLQ adds an entry to the DLQ.
func (s *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dlqEntries[entry.ID.String()] = copyEntry(entry)
	return nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(_ context.Context, dlqID id.ID) (*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return nil, dlq.ErrEntryNotFound
	}
	return copyEntry(e), nil
}

// ListDLQ returns DLQ entries, optionally filtered.
func (s *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(s.dlqEntries))
	for _, e := range s.dlqEntries {
		if opts.RegistrationID != nil && e.RegistrationID.String() != opts.RegistrationID.String() {
			continue
		}
		if opts.Reason != "" && e.Reason != opts.Reason {
			continue
		}
		if opts.From != nil && e.FailedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && e.FailedAt.After(*opts.To) {
			continue
		}
		result = append(result, copyEntry(e))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// UpdateDLQ replaces a DLQ entry.
func (s *Store) UpdateDLQ(_ context.Context, entry *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dlqEntries[entry.ID.String()]; !ok {
		return dlq.ErrEntryNotFound
	}
	s.dlqEntries[entry.ID.String()] = copyEntry(entry)
	return nil
}

// DeleteDLQ removes a DLQ entry.
func (s *Store) DeleteDLQ(_ context.Context, dlqID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dlqEntries[dlqID.String()]; !ok {
		return dlq.ErrEntryNotFound
	}
	delete(s.dlqEntries, dlqID.String())
	return nil
}

// PurgeDLQ deletes DLQ entries that failed before a threshold.
func (s *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for k, e := range s.dlqEntries {
		if e.FailedAt.Before(before) {
			delete(s.dlqEntries, k)
			count++
		}
	}
	return count, nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.dlqEntries)), nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func matchEventOpts(rec *event.Record, opts event.ListOpts) bool {
	if opts.Type != "" && rec.Type != opts.Type {
		return false
	}
	if opts.From != nil && rec.CreatedAt.Before(*opts.From) {
		return false
	}
	if opts.To != nil && rec.CreatedAt.After(*opts.To) {
		return false
	}
	return true
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
