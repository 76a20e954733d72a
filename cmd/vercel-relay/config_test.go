package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vercel/event"
)

const sampleFile = `
server:
  addr: ":9090"
  public_url: "https://relay.example.com"
vercel:
  api_url: "https://vercel.internal"
  request_timeout: "5s"
  rate_limit: 10
redis:
  addr: "redis:6379"
  db: 2
dispatch:
  forward_url: "https://app.example.com/vercel"
  dlq_retention: "24h"
triggers:
  - event: deployment.ready
    team_id: team_1
    project_ids: [prj_1, prj_2]
  - event: project.created
`

func noEnv(string) (string, bool) { return "", false }

func TestOverlayAppliesFile(t *testing.T) {
	cfg := Config{Addr: ":8080", RequestTimeout: 30 * time.Second, DLQRetention: 168 * time.Hour}
	require.NoError(t, cfg.overlay([]byte(sampleFile), noEnv))

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "https://relay.example.com", cfg.PublicURL)
	assert.Equal(t, "https://vercel.internal", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "https://app.example.com/vercel", cfg.ForwardURL)
	assert.Equal(t, 24*time.Hour, cfg.DLQRetention)
	require.Len(t, cfg.Triggers, 2)
	assert.Equal(t, []string{"prj_1", "prj_2"}, cfg.Triggers[0].ProjectIDs)
}

func TestOverlayEnvWins(t *testing.T) {
	cfg := Config{Addr: ":7070", RedisDB: 5}
	env := map[string]string{"ADDR": ":7070", "REDIS_DB": "5"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	require.NoError(t, cfg.overlay([]byte(sampleFile), lookup))

	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, 5, cfg.RedisDB)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
}

func TestOverlayRejectsBadDuration(t *testing.T) {
	var cfg Config
	err := cfg.overlay([]byte("vercel:\n  request_timeout: soon\n"), noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestTriggerConfig(t *testing.T) {
	tc := TriggerConfig{Event: "deployment.error", TeamID: "team_1"}
	types, err := tc.Types()
	require.NoError(t, err)
	assert.Equal(t, []event.Type{event.DeploymentError}, types)
	assert.Equal(t, "team_1", tc.Params().TeamID)

	types, err = TriggerConfig{Event: "project.*"}.Types()
	require.NoError(t, err)
	assert.Equal(t, []event.Type{event.ProjectCreated, event.ProjectRemoved}, types)

	_, err = TriggerConfig{Event: "deployment.promoted"}.Types()
	assert.ErrorIs(t, err, event.ErrUnknownType)
}

func TestValidate(t *testing.T) {
	trig := []TriggerConfig{{Event: "deployment.ready"}}

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty", cfg: Config{}},
		{name: "triggers without public url", cfg: Config{APIKey: "k", Triggers: trig}, wantErr: "PUBLIC_URL"},
		{name: "triggers without api key", cfg: Config{PublicURL: "https://x", Triggers: trig}, wantErr: "VERCEL_API_KEY"},
		{name: "check without api key", cfg: Config{CheckName: "e2e"}, wantErr: "VERCEL_API_KEY"},
		{name: "bad trigger", cfg: Config{Triggers: []TriggerConfig{{Event: "nope"}}}, wantErr: "triggers[0]"},
		{name: "complete", cfg: Config{APIKey: "k", PublicURL: "https://x", CheckName: "e2e", Triggers: trig}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLoggerLevels(t *testing.T) {
	cfg := Config{Environment: "production", LogLevel: "warn"}
	logger := cfg.NewLogger()
	assert.False(t, logger.Enabled(t.Context(), -4))
	assert.True(t, logger.Enabled(t.Context(), 4))
	assert.False(t, cfg.IsDevelopment())
}
