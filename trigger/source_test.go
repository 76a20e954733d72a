package trigger_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/client"
	"github.com/xraph/vercel/dlq"
	"github.com/xraph/vercel/event"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/signature"
	"github.com/xraph/vercel/store/memory"
	"github.com/xraph/vercel/trigger"
)

func ctx() context.Context { return context.Background() }

type fakeManager struct {
	mu      sync.Mutex
	created []client.CreateWebhookParams
	deleted []string
	n       int
}

func (m *fakeManager) CreateWebhook(_ context.Context, p client.CreateWebhookParams) (*client.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	m.created = append(m.created, p)
	suffix := string(rune('0' + m.n))
	return &client.Webhook{ID: "hook_" + suffix, URL: p.URL, Events: p.Events, Secret: "secret_" + suffix}, nil
}

func (m *fakeManager) DeleteWebhook(_ context.Context, p client.DeleteWebhookParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, p.WebhookID)
	return nil
}

type recorder struct {
	mu         sync.Mutex
	deliveries []*trigger.Delivery
	err        error
}

func (r *recorder) Dispatch(_ context.Context, d *trigger.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.deliveries = append(r.deliveries, d)
	return nil
}

func callback(regID id.ID) string { return "https://relay.example.com/hooks/" + regID.String() }

type fixture struct {
	store  *memory.Store
	dlq    *dlq.Service
	rec    *recorder
	mgr    *fakeManager
	source *trigger.Source
}

func newFixture() *fixture {
	s := memory.New()
	f := &fixture{
		store: s,
		dlq:   dlq.NewService(s, nil),
		rec:   &recorder{},
		mgr:   &fakeManager{},
	}
	f.source = trigger.NewSource(s, s, f.dlq, f.rec)
	return f
}

func (f *fixture) register(t *testing.T, triggers ...*trigger.Trigger) *trigger.Registration {
	t.Helper()
	regs, err := f.source.Register(ctx(), f.mgr, callback, triggers...)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	return regs[0]
}

func signed(t *testing.T, reg *trigger.Registration, typ event.Type) ([]byte, string) {
	t.Helper()
	body, err := catalog.Example(typ)
	require.NoError(t, err)
	return body, signature.Sign(body, reg.Secret)
}

func TestRegisterGroupsByParams(t *testing.T) {
	f := newFixture()
	team := trigger.Params{TeamID: teamID}

	regs, err := f.source.Register(ctx(), f.mgr, callback,
		trigger.New(catalog.OnDeploymentError, team),
		trigger.New(catalog.OnDeploymentCreated, team),
		trigger.New(catalog.OnDomainCreated, trigger.Params{}),
	)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	require.Len(t, f.mgr.created, 2)

	teamHook := f.mgr.created[0]
	assert.Equal(t, teamID, teamHook.TeamID)
	assert.Equal(t, []event.Type{event.DeploymentCreated, event.DeploymentError}, teamHook.Events)
	assert.Equal(t, callback(regs[0].ID), teamHook.URL)

	assert.Equal(t, "hook_1", regs[0].WebhookID)
	assert.Equal(t, "secret_1", regs[0].Secret)
	assert.Len(t, f.source.Triggers(), 3)

	stored, err := f.store.ListRegistrations(ctx())
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRegisterIsIdempotent(t *testing.T) {
	f := newFixture()
	tr := trigger.New(catalog.OnDeploymentReady, trigger.Params{TeamID: teamID})

	first := f.register(t, tr)
	second := f.register(t, tr)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.mgr.created, 1)
	assert.Empty(t, f.mgr.deleted)
	assert.Len(t, f.source.Triggers(), 1)
}

func TestRegisterWidensExistingWebhook(t *testing.T) {
	f := newFixture()
	team := trigger.Params{TeamID: teamID}

	first := f.register(t, trigger.New(catalog.OnDeploymentReady, team))
	widened := f.register(t, trigger.New(catalog.OnDeploymentError, team))

	assert.Equal(t, first.ID, widened.ID, "registration id must survive so the callback url stays valid")
	assert.Equal(t, []event.Type{event.DeploymentReady, event.DeploymentError}, widened.EventTypes)
	assert.Equal(t, "hook_2", widened.WebhookID)
	assert.Equal(t, "secret_2", widened.Secret)
	assert.Equal(t, []string{"hook_1"}, f.mgr.deleted)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture()

	_, err := f.source.Register(ctx(), f.mgr, callback)
	assert.ErrorIs(t, err, trigger.ErrNoTriggers)

	_, err = f.source.Register(ctx(), f.mgr, nil, trigger.New(catalog.OnDomainCreated, trigger.Params{}))
	assert.ErrorIs(t, err, trigger.ErrNoCallbackURL)
}

func TestUnregister(t *testing.T) {
	f := newFixture()
	reg := f.register(t, trigger.New(catalog.OnProjectCreated, trigger.Params{TeamID: teamID}))

	require.NoError(t, f.source.Unregister(ctx(), f.mgr, reg.ID))
	assert.Equal(t, []string{reg.WebhookID}, f.mgr.deleted)
	assert.Empty(t, f.source.Triggers())

	_, err := f.store.GetRegistration(ctx(), reg.ID)
	assert.ErrorIs(t, err, trigger.ErrRegistrationNotFound)

	err = f.source.Unregister(ctx(), f.mgr, reg.ID)
	assert.ErrorIs(t, err, trigger.ErrRegistrationNotFound)
}

func TestHandleDispatches(t *testing.T) {
	f := newFixture()
	tr := trigger.New(catalog.OnDeploymentReady, trigger.Params{TeamID: teamID, ProjectIDs: []string{projectID}})
	reg := f.register(t, tr)
	body, sig := signed(t, reg, event.DeploymentReady)

	out, err := f.source.Handle(ctx(), reg.ID, sig, body)
	require.NoError(t, err)
	assert.Equal(t, trigger.StatusDispatched, out.Status)
	assert.Equal(t, event.DeploymentReady, out.EventType)
	require.Len(t, out.Properties, 3)
	assert.Equal(t, "Application URL", out.Properties[2].Label)

	require.Len(t, f.rec.deliveries, 1)
	d := f.rec.deliveries[0]
	assert.Equal(t, reg.ID, d.Registration.ID)
	assert.Equal(t, catalog.OnDeploymentReady, d.Spec)
	assert.Equal(t, []*trigger.Trigger{tr}, d.Triggers)
	_, ok := d.Event.Payload.(*event.DeploymentPayload)
	assert.True(t, ok)

	rec, err := f.store.GetEvent(ctx(), out.EventID)
	require.NoError(t, err)
	assert.True(t, rec.Dispatched)
}

func TestHandleDeduplicates(t *testing.T) {
	f := newFixture()
	reg := f.register(t, trigger.New(catalog.OnDeploymentReady, trigger.Params{TeamID: teamID}))
	body, sig := signed(t, reg, event.DeploymentReady)

	_, err := f.source.Handle(ctx(), reg.ID, sig, body)
	require.NoError(t, err)

	out, err := f.source.Handle(ctx(), reg.ID, sig, body)
	require.NoError(t, err)
	assert.Equal(t, trigger.StatusDuplicate, out.Status)
	assert.Len(t, f.rec.deliveries, 1)
}

// gate blocks every dispatch until release is closed.
type gate struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *gate) Dispatch(ctx context.Context, _ *trigger.Delivery) error {
	g.calls.Add(1)
	g.started <- struct{}{}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestHandleConcurrentDeliveriesDispatchOnce(t *testing.T) {
	s := memory.New()
	g := &gate{started: make(chan struct{}, 2), release: make(chan struct{})}
	source := trigger.NewSource(s, s, dlq.NewService(s, nil), g)
	regs, err := source.Register(ctx(), &fakeManager{}, callback, trigger.New(catalog.OnDeploymentReady, trigger.Params{TeamID: teamID}))
	require.NoError(t, err)
	reg := regs[0]
	body, sig := signed(t, reg, event.DeploymentReady)

	type result struct {
		out *trigger.Outcome
		err error
	}
	results := make(chan result, 2)
	for range 2 {
		go func() {
			out, err := source.Handle(ctx(), reg.ID, sig, body)
			results <- result{out, err}
		}()
	}

	// The dispatch in flight holds the claim, so the other delivery
	// returns first.
	<-g.started
	first := <-results
	require.NoError(t, first.err)
	assert.Equal(t, trigger.StatusDuplicate, first.out.Status)

	close(g.release)
	second := <-results
	require.NoError(t, second.err)
	assert.Equal(t, trigger.StatusDispatched, second.out.Status)
	assert.Equal(t, int32(1), g.calls.Load())

	rec, err := s.GetEvent(ctx(), second.out.EventID)
	require.NoError(t, err)
	assert.True(t, rec.Dispatched)
}

func TestHandleFilteredEventStaysClaimable(t *testing.T) {
	f := newFixture()
	reg := f.register(t, trigger.New(catalog.OnDeploymentReady, trigger.Params{TeamID: teamID, ProjectIDs: []string{"prj_other"}}))
	body, sig := signed(t, reg, event.DeploymentReady)

	out, err := f.source.Handle(ctx(), reg.ID, sig, body)
	require.NoError(t, err)
	require.Equal(t, trigger.StatusFiltered, out.Status)

	claimed, err := f.store.ClaimEvent(ctx(), out.EventID)
	require.NoError(t, err)
	assert.True(t, claimed, "filtering releases the claim")
}

func TestHandleRejectsBadSignature(t *testing.T) {
	f := newFixture()
	reg := f.register(t, trigger.New(catalog.OnDeploymentReady, trigger.Params{TeamID: teamID}))
	body, _ := signed(t, reg, event.DeploymentReady)

	_, err := f.source.Handle(ctx(), reg.ID, signature.Sign(body, "wrong"), body)
	assert.ErrorIs(t, err, trigger.ErrInvalidSignature)

	count, _ := f.dlq.Count(ctx())
	assert.Zero(t, count, "signature failures are not dead-lettered")
	assert.Empty(t, f.rec.deliveries)
}

func TestHandleUnknownRegistration(t *testing.T) {
	f := newFixture()

	_, err := f.source.Handle(ctx(), id.NewRegistrationID(), "sig", []byte(`{}`))
	assert.ErrorIs(t, err, trigger.ErrRegistrationNotFound)
}

func TestHandleInvalidPayload(t *testing.T) {
	f := newFixture()
	reg := f.register(t, trigger.New(catalog.OnDeploymentReady, trigger.Params{TeamID: teamID}))

	raw, err := catalog.Example(event.DeploymentReady)
	require.NoError(t, err)
	body := []byte(strings.Replace(string(raw), `"target": "production"`, `"target": "preview"`, 1))

	out, err := f.source.Handle(ctx(), reg.ID, signature.Sign(body, reg.Secret), body)
	var ve *catalog.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"/payload/target"}, ve.Paths())

	assert.Equal(t, trigger.StatusInvalid, out.Status)
	assert.Equal(t, "evt_4kJvN7sQmX3bTy5WeR2Zc8Ld", out.EventID)
	require.NotEmpty(t, out.DLQID)

	entries, _ := f.dlq.List(ctx(), dlq.ListOpts{})
	require.Len(t, entries, 1)
	assert.Equal(t, dlq.ReasonInvalidPayload, entries[0].Reason)
	assert.Len(t, entries[0].Issues, 1)
	assert.Empty(t, f.rec.deliveries)
}

func TestHandleFilters(t *testing.T) {
	f := newFixture()
	reg := f.register(t, trigger.New(catalog.OnDeploymentReady, trigger.Params{TeamID: teamID, ProjectIDs: []string{"prj_other"}}))

	body, sig := signed(t, reg, event.DeploymentReady)
	out, err := f.source.Handle(ctx(), reg.ID, sig, body)
	require.NoError(t, err)
	assert.Equal(t, trigger.StatusFiltered, out.Status)

	// Not subscribed to this type.
	body, sig = signed(t, reg, event.DeploymentError)
	out, err = f.source.Handle(ctx(), reg.ID, sig, body)
	require.NoError(t, err)
	assert.Equal(t, trigger.StatusFiltered, out.Status)

	assert.Empty(t, f.rec.deliveries)
}

func TestHandleDispatchFailureAndReplay(t *testing.T) {
	f := newFixture()
	reg := f.register(t, trigger.New(catalog.OnProjectCreated, trigger.Params{TeamID: teamID}))
	body, sig := signed(t, reg, event.ProjectCreated)

	f.rec.err = errors.New("handler down")
	out, err := f.source.Handle(ctx(), reg.ID, sig, body)
	require.NoError(t, err, "dispatch failures are acknowledged to Vercel")
	assert.Equal(t, trigger.StatusDeadLettered, out.Status)

	dlqID, err := id.ParseDLQID(out.DLQID)
	require.NoError(t, err)
	entry, err := f.dlq.Get(ctx(), dlqID)
	require.NoError(t, err)
	assert.Equal(t, dlq.ReasonDispatchFailed, entry.Reason)
	assert.Contains(t, entry.Error, "handler down")

	f.rec.err = nil
	require.NoError(t, f.dlq.Replay(ctx(), dlqID, f.source))
	require.Len(t, f.rec.deliveries, 1)

	// Vercel redelivering the same event is now a duplicate.
	out, err = f.source.Handle(ctx(), reg.ID, sig, body)
	require.NoError(t, err)
	assert.Equal(t, trigger.StatusDuplicate, out.Status)
}

func TestHandleRedeliveryAfterFailureDispatches(t *testing.T) {
	f := newFixture()
	reg := f.register(t, trigger.New(catalog.OnDomainCreated, trigger.Params{}))
	body, sig := signed(t, reg, event.DomainCreated)

	f.rec.err = errors.New("handler down")
	_, err := f.source.Handle(ctx(), reg.ID, sig, body)
	require.NoError(t, err)

	f.rec.err = nil
	out, err := f.source.Handle(ctx(), reg.ID, sig, body)
	require.NoError(t, err)
	assert.Equal(t, trigger.StatusDispatched, out.Status)

	props := out.Properties
	require.Len(t, props, 2)
	assert.Equal(t, "false", props[1].Text)
}

func TestOutcomeJSON(t *testing.T) {
	raw, err := json.Marshal(&trigger.Outcome{Status: trigger.StatusFiltered, EventID: "evt_1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"filtered","event_id":"evt_1"}`, string(raw))
}
