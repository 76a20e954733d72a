package vercel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/client"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/observability"
	"github.com/xraph/vercel/ratelimit"
	"github.com/xraph/vercel/run"
	"github.com/xraph/vercel/trigger"
)

// AuthSource tells the platform who supplies credentials.
type AuthSource string

const (
	// AuthLocal means a static API key was configured.
	AuthLocal AuthSource = "LOCAL"

	// AuthHosted means OAuth tokens are supplied per run by the platform.
	AuthHosted AuthSource = "HOSTED"
)

// Metadata identifies the integration.
type Metadata struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const taskIcon = "vercel"

var metadata = Metadata{ID: "vercel", Name: "Vercel"}

// TaskFunc is the body of a Vercel task. It receives the client bound by
// CloneForRun and the run the task executes in.
type TaskFunc func(ctx context.Context, c *client.Client, task *run.Task, io run.IO) (any, error)

// Vercel is the integration facade. The value returned by New is unbound;
// CloneForRun returns a copy bound to a run, a connection and a client.
type Vercel struct {
	id         string
	apiKey     string
	config     Config
	logger     *slog.Logger
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	source     *trigger.Source

	io            run.IO
	connectionKey string
	client        *client.Client

	// Webhooks and Checks run their calls through RunTask.
	Webhooks *Webhooks
	Checks   *Checks
}

// New creates an integration instance identified by integrationID.
func New(integrationID string, opts ...Option) (*Vercel, error) {
	v := &Vercel{
		id:     integrationID,
		config: DefaultConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	if v.limiter == nil && v.config.RateLimit > 0 {
		v.limiter = ratelimit.New()
	}
	v.bind()

	return v, nil
}

func (v *Vercel) bind() {
	v.Webhooks = &Webhooks{runTask: v.RunTask}
	v.Checks = &Checks{runTask: v.RunTask}
}

// ID returns the integration identifier given to New.
func (v *Vercel) ID() string { return v.id }

// Metadata returns the integration's identity.
func (v *Vercel) Metadata() Metadata { return metadata }

// AuthSource reports LOCAL when an API key was configured, HOSTED otherwise.
func (v *Vercel) AuthSource() AuthSource {
	if v.apiKey != "" {
		return AuthLocal
	}
	return AuthHosted
}

// Source returns the webhook event source, or nil.
func (v *Vercel) Source() *trigger.Source { return v.source }

// Client returns the bound client, or nil before CloneForRun.
func (v *Vercel) Client() *client.Client { return v.client }

// ConnectionKey returns the bound connection key.
func (v *Vercel) ConnectionKey() string { return v.connectionKey }

// CreateClient builds an API client. An OAuth token wins over the API key.
func (v *Vercel) CreateClient(auth *oauth2.Token) (*client.Client, error) {
	if auth != nil && auth.AccessToken != "" {
		return client.New(oauth2.StaticTokenSource(auth), v.clientOptions(auth.AccessToken)...)
	}
	if v.apiKey != "" {
		return client.NewWithToken(v.apiKey, v.clientOptions(v.apiKey)...)
	}
	return nil, fmt.Errorf("%w: integration %s", ErrNoAuth, v.id)
}

// limitKey names the rate limit bucket of a credential. Vercel throttles per
// token, so clients sharing a token share a bucket and nothing else does.
func limitKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "tok_" + hex.EncodeToString(sum[:8])
}

func (v *Vercel) clientOptions(token string) []client.Option {
	hc := v.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: v.config.RequestTimeout}
	}

	opts := []client.Option{client.WithHTTPClient(hc)}
	if v.config.BaseURL != "" {
		opts = append(opts, client.WithBaseURL(v.config.BaseURL))
	}
	if v.limiter != nil && v.config.RateLimit > 0 {
		opts = append(opts, client.WithRateLimit(v.limiter, limitKey(token), v.config.RateLimit))
	}
	return opts
}

// CloneForRun returns an independent copy bound to io, connectionKey and a
// client created from auth. The receiver is not modified.
func (v *Vercel) CloneForRun(io run.IO, connectionKey string, auth *oauth2.Token) (*Vercel, error) {
	c, err := v.CreateClient(auth)
	if err != nil {
		return nil, err
	}

	clone := *v
	clone.io = io
	clone.connectionKey = connectionKey
	clone.client = c
	clone.bind()

	v.logger.Debug("vercel integration bound to run",
		"integration", v.id,
		"connection_key", connectionKey,
		"auth", clone.authKind(auth),
	)
	return &clone, nil
}

func (v *Vercel) authKind(auth *oauth2.Token) string {
	if auth != nil && auth.AccessToken != "" {
		return "oauth"
	}
	return "api_key"
}

// NewRun creates a run carrying the integration's logger, metrics and tracer.
func (v *Vercel) NewRun(runID string, opts ...run.Option) *run.Run {
	base := []run.Option{
		run.WithLogger(v.logger),
		run.WithMetrics(v.metrics),
		run.WithTracer(v.tracer),
	}
	return run.New(runID, append(base, opts...)...)
}

// RunTask executes fn under key with the bound client. Options default to
// the vercel icon and StandardBackoff; caller options override them, except
// the connection key, which is always the bound one.
func (v *Vercel) RunTask(ctx context.Context, key string, fn TaskFunc, opts *run.Options, onError run.ErrorCallback) (any, error) {
	if v.io == nil {
		return nil, ErrNoIO
	}
	if v.connectionKey == "" {
		return nil, ErrNoConnectionKey
	}
	if v.client == nil {
		return nil, ErrNoClient
	}

	retry := run.StandardBackoff
	o := run.Merge(&run.Options{Icon: taskIcon, Retry: &retry}, opts)
	o.ConnectionKey = v.connectionKey

	c, io := v.client, v.io
	return io.RunTask(ctx, key, func(ctx context.Context, task *run.Task) (any, error) {
		return fn(ctx, c, task, io)
	}, o, onError)
}

// Register creates or widens the Vercel webhooks serving triggers. The bound
// client is used when there is one; otherwise a client is created from the
// API key.
func (v *Vercel) Register(ctx context.Context, callback trigger.CallbackURL, triggers ...*trigger.Trigger) ([]*trigger.Registration, error) {
	if v.source == nil {
		return nil, ErrNoSource
	}
	c, err := v.managementClient()
	if err != nil {
		return nil, err
	}
	return v.source.Register(ctx, c, callback, triggers...)
}

// Unregister deletes a registration and its Vercel webhook.
func (v *Vercel) Unregister(ctx context.Context, regID id.ID) error {
	if v.source == nil {
		return ErrNoSource
	}
	c, err := v.managementClient()
	if err != nil {
		return err
	}
	return v.source.Unregister(ctx, c, regID)
}

func (v *Vercel) managementClient() (*client.Client, error) {
	if v.client != nil {
		return v.client, nil
	}
	return v.CreateClient(nil)
}

// ── Trigger factories ──────────────────────────────────

// OnDeploymentCreated fires when a deployment is created.
func (v *Vercel) OnDeploymentCreated(params trigger.Params) *trigger.Trigger {
	return trigger.New(catalog.OnDeploymentCreated, params)
}

// OnDeploymentSucceeded fires when a deployment build succeeds.
func (v *Vercel) OnDeploymentSucceeded(params trigger.Params) *trigger.Trigger {
	return trigger.New(catalog.OnDeploymentSucceeded, params)
}

// OnDeploymentReady fires when a deployment is ready to serve traffic.
func (v *Vercel) OnDeploymentReady(params trigger.Params) *trigger.Trigger {
	return trigger.New(catalog.OnDeploymentReady, params)
}

// OnDeploymentCanceled fires when a deployment is canceled.
func (v *Vercel) OnDeploymentCanceled(params trigger.Params) *trigger.Trigger {
	return trigger.New(catalog.OnDeploymentCanceled, params)
}

// OnDeploymentError fires when a deployment fails.
func (v *Vercel) OnDeploymentError(params trigger.Params) *trigger.Trigger {
	return trigger.New(catalog.OnDeploymentError, params)
}

// OnProjectCreated fires when a project is created.
func (v *Vercel) OnProjectCreated(params trigger.Params) *trigger.Trigger {
	return trigger.New(catalog.OnProjectCreated, params)
}

// OnProjectRemoved fires when a project is removed.
func (v *Vercel) OnProjectRemoved(params trigger.Params) *trigger.Trigger {
	return trigger.New(catalog.OnProjectRemoved, params)
}

// OnIntegrationConfigScopeChangeConfirmed fires when new scopes are confirmed.
func (v *Vercel) OnIntegrationConfigScopeChangeConfirmed(params trigger.Params) *trigger.Trigger {
	return trigger.New(catalog.OnIntegrationConfigScopeChangeConfirmed, params)
}

// OnIntegrationConfigRemoved fires when the integration is uninstalled.
func (v *Vercel) OnIntegrationConfigRemoved(params trigger.Params) *trigger.Trigger {
	return trigger.New(catalog.OnIntegrationConfigRemoved, params)
}

// OnIntegrationConfigPermissionUpgraded fires when permissions are upgraded.
func (v *Vercel) OnIntegrationConfigPermissionUpgraded(params trigger.Params) *trigger.Trigger {
	return trigger.New(catalog.OnIntegrationConfigPermissionUpgraded, params)
}

// OnDomainCreated fires when a domain is added.
func (v *Vercel) OnDomainCreated(params trigger.Params) *trigger.Trigger {
	return trigger.New(catalog.OnDomainCreated, params)
}
