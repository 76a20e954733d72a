package dlq_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/dlq"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/store/memory"
)

func ctx() context.Context { return context.Background() }

func newService() (*dlq.Service, *memory.Store) {
	store := memory.New()
	svc := dlq.NewService(store, nil)
	return svc, store
}

func push(t *testing.T, svc *dlq.Service, reason string, err error) *dlq.Entry {
	t.Helper()
	entry := &dlq.Entry{
		RegistrationID: id.NewRegistrationID(),
		EventID:        "evt_1",
		EventType:      "deployment.ready",
		Reason:         reason,
		Payload:        json.RawMessage(`{"id":"evt_1"}`),
	}
	if pushErr := svc.Push(ctx(), entry, err); pushErr != nil {
		t.Fatal(pushErr)
	}
	return entry
}

func TestPush(t *testing.T) {
	svc, store := newService()

	entry := push(t, svc, dlq.ReasonDispatchFailed, errors.New("handler exploded"))

	if entry.ID.IsNil() {
		t.Fatal("expected ID to be assigned")
	}
	if entry.FailedAt.IsZero() || entry.CreatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	got, err := store.GetDLQ(ctx(), entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Error != "handler exploded" {
		t.Fatalf("error: got %q", got.Error)
	}
	if got.Reason != dlq.ReasonDispatchFailed {
		t.Fatalf("reason: got %q", got.Reason)
	}
	if string(got.Payload) != `{"id":"evt_1"}` {
		t.Fatalf("payload: got %s", got.Payload)
	}
}

func TestPushCopiesValidationIssues(t *testing.T) {
	svc, _ := newService()

	verr := &catalog.ValidationError{Issues: []catalog.Issue{
		{Path: "/payload/target", Message: "value must be one of"},
		{Path: "/createdAt", Message: "got string, want integer"},
	}}
	entry := push(t, svc, dlq.ReasonInvalidPayload, verr)

	got, err := svc.Get(ctx(), entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(got.Issues))
	}
}

func TestListAndCount(t *testing.T) {
	svc, _ := newService()

	for range 3 {
		push(t, svc, dlq.ReasonDispatchFailed, errors.New("err"))
	}
	push(t, svc, dlq.ReasonInvalidPayload, errors.New("err"))

	entries, err := svc.List(ctx(), dlq.ListOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	invalid, _ := svc.List(ctx(), dlq.ListOpts{Reason: dlq.ReasonInvalidPayload})
	if len(invalid) != 1 {
		t.Fatalf("expected 1 invalid entry, got %d", len(invalid))
	}

	count, err := svc.Count(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Fatalf("expected 4, got %d", count)
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newService()
	entry := push(t, svc, dlq.ReasonDispatchFailed, errors.New("err"))

	if err := svc.Delete(ctx(), entry.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx(), entry.ID); !errors.Is(err, dlq.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
	if err := svc.Delete(ctx(), entry.ID); !errors.Is(err, dlq.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestReplaySuccess(t *testing.T) {
	svc, store := newService()
	entry := push(t, svc, dlq.ReasonDispatchFailed, errors.New("err"))

	var seen *dlq.Entry
	err := svc.Replay(ctx(), entry.ID, dlq.ReplayerFunc(func(_ context.Context, e *dlq.Entry) error {
		seen = e
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if seen == nil || seen.EventID != "evt_1" {
		t.Fatal("replayer did not receive the entry")
	}

	got, _ := store.GetDLQ(ctx(), entry.ID)
	if got.ReplayedAt == nil {
		t.Fatal("expected replayed_at to be set")
	}
	if got.ReplayCount != 1 {
		t.Fatalf("expected replay count 1, got %d", got.ReplayCount)
	}
}

func TestReplayFailure(t *testing.T) {
	svc, store := newService()
	entry := push(t, svc, dlq.ReasonDispatchFailed, errors.New("first"))

	boom := errors.New("still broken")
	err := svc.Replay(ctx(), entry.ID, dlq.ReplayerFunc(func(context.Context, *dlq.Entry) error {
		return boom
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected replay error, got %v", err)
	}

	got, _ := store.GetDLQ(ctx(), entry.ID)
	if got.ReplayedAt != nil {
		t.Fatal("replayed_at must stay unset on failure")
	}
	if got.Error != "still broken" || got.ReplayCount != 1 {
		t.Fatalf("unexpected entry after failed replay: %+v", got)
	}
}

func TestReplayUnknownEntry(t *testing.T) {
	svc, _ := newService()

	err := svc.Replay(ctx(), id.NewDLQID(), dlq.ReplayerFunc(func(context.Context, *dlq.Entry) error {
		t.Fatal("replayer must not be called")
		return nil
	}))
	if !errors.Is(err, dlq.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestPurge(t *testing.T) {
	svc, _ := newService()

	for range 3 {
		push(t, svc, dlq.ReasonDispatchFailed, errors.New("err"))
	}

	// Purge entries before "now + 1 second" should remove all.
	purged, err := svc.Purge(ctx(), time.Now().UTC().Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 3 {
		t.Fatalf("expected 3 purged, got %d", purged)
	}

	count, _ := svc.Count(ctx())
	if count != 0 {
		t.Fatalf("expected 0 after purge, got %d", count)
	}
}
