package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/event"
	"github.com/xraph/vercel/trigger"
)

// Config is read from the environment, then overlaid with CONFIG_FILE for
// every setting the environment leaves unset.
type Config struct {
	// Server
	Addr        string `envconfig:"ADDR" default:":8080"`
	PublicURL   string `envconfig:"PUBLIC_URL"`
	Environment string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ConfigFile  string `envconfig:"CONFIG_FILE"`

	// Vercel
	IntegrationID  string        `envconfig:"INTEGRATION_ID" default:"vercel"`
	APIKey         string        `envconfig:"VERCEL_API_KEY"`
	APIURL         string        `envconfig:"VERCEL_API_URL" default:"https://api.vercel.com"`
	RequestTimeout time.Duration `envconfig:"VERCEL_REQUEST_TIMEOUT" default:"30s"`
	RateLimit      int           `envconfig:"VERCEL_RATE_LIMIT" default:"0"`

	// Store
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Dispatch
	ForwardURL    string        `envconfig:"FORWARD_URL"`
	ForwardSecret string        `envconfig:"FORWARD_SECRET"`
	CheckName     string        `envconfig:"CHECK_NAME"`
	DLQRetention  time.Duration `envconfig:"DLQ_RETENTION" default:"168h"`

	// Triggers come from the config file only.
	Triggers []TriggerConfig `ignored:"true"`
}

// TriggerConfig subscribes to the event types matching Event, which may be
// an exact type or a pattern such as "deployment.*".
type TriggerConfig struct {
	Event      string   `yaml:"event"`
	TeamID     string   `yaml:"team_id"`
	ProjectIDs []string `yaml:"project_ids"`
}

// Types resolves Event against the known event types.
func (tc TriggerConfig) Types() ([]event.Type, error) {
	types := catalog.Expand(tc.Event)
	if len(types) == 0 {
		return nil, fmt.Errorf("%w: %q matches nothing", event.ErrUnknownType, tc.Event)
	}
	return types, nil
}

// Params is the filter scope of the trigger.
func (tc TriggerConfig) Params() trigger.Params {
	return trigger.Params{TeamID: tc.TeamID, ProjectIDs: tc.ProjectIDs}
}

type fileDuration time.Duration

func (d *fileDuration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = fileDuration(parsed)
	return nil
}

type configFile struct {
	Server *struct {
		Addr      *string `yaml:"addr"`
		PublicURL *string `yaml:"public_url"`
		LogLevel  *string `yaml:"log_level"`
	} `yaml:"server"`
	Vercel *struct {
		IntegrationID  *string       `yaml:"integration_id"`
		APIURL         *string       `yaml:"api_url"`
		RequestTimeout *fileDuration `yaml:"request_timeout"`
		RateLimit      *int          `yaml:"rate_limit"`
	} `yaml:"vercel"`
	Redis *struct {
		Addr *string `yaml:"addr"`
		DB   *int    `yaml:"db"`
	} `yaml:"redis"`
	Dispatch *struct {
		ForwardURL   *string       `yaml:"forward_url"`
		CheckName    *string       `yaml:"check_name"`
		DLQRetention *fileDuration `yaml:"dlq_retention"`
	} `yaml:"dispatch"`
	Triggers []TriggerConfig `yaml:"triggers"`
}

// LoadConfig reads the configuration.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.ConfigFile != "" {
		raw, err := os.ReadFile(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.overlay(raw, os.LookupEnv); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overlay applies a YAML config file. Values whose environment variable is
// set are left alone.
func (c *Config) overlay(raw []byte, lookupEnv func(string) (string, bool)) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString := func(env string, dst *string, v *string) {
		if _, ok := lookupEnv(env); !ok && v != nil {
			*dst = *v
		}
	}
	setInt := func(env string, dst *int, v *int) {
		if _, ok := lookupEnv(env); !ok && v != nil {
			*dst = *v
		}
	}
	setDuration := func(env string, dst *time.Duration, v *fileDuration) {
		if _, ok := lookupEnv(env); !ok && v != nil {
			*dst = time.Duration(*v)
		}
	}

	if s := f.Server; s != nil {
		setString("ADDR", &c.Addr, s.Addr)
		setString("PUBLIC_URL", &c.PublicURL, s.PublicURL)
		setString("LOG_LEVEL", &c.LogLevel, s.LogLevel)
	}
	if v := f.Vercel; v != nil {
		setString("INTEGRATION_ID", &c.IntegrationID, v.IntegrationID)
		setString("VERCEL_API_URL", &c.APIURL, v.APIURL)
		setDuration("VERCEL_REQUEST_TIMEOUT", &c.RequestTimeout, v.RequestTimeout)
		setInt("VERCEL_RATE_LIMIT", &c.RateLimit, v.RateLimit)
	}
	if r := f.Redis; r != nil {
		setString("REDIS_ADDR", &c.RedisAddr, r.Addr)
		setInt("REDIS_DB", &c.RedisDB, r.DB)
	}
	if d := f.Dispatch; d != nil {
		setString("FORWARD_URL", &c.ForwardURL, d.ForwardURL)
		setString("CHECK_NAME", &c.CheckName, d.CheckName)
		setDuration("DLQ_RETENTION", &c.DLQRetention, d.DLQRetention)
	}
	c.Triggers = f.Triggers
	return nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	for i, tc := range c.Triggers {
		if _, err := tc.Types(); err != nil {
			return fmt.Errorf("triggers[%d]: %w", i, err)
		}
	}
	if len(c.Triggers) > 0 {
		if c.PublicURL == "" {
			return fmt.Errorf("PUBLIC_URL is required to register triggers")
		}
		if c.APIKey == "" {
			return fmt.Errorf("VERCEL_API_KEY is required to register triggers")
		}
	}
	if c.CheckName != "" && c.APIKey == "" {
		return fmt.Errorf("VERCEL_API_KEY is required to create checks")
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// NewLogger returns a text logger in development and a JSON logger
// everywhere else.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
