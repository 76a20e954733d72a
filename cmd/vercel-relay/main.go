// Command vercel-relay receives Vercel webhooks, validates them and hands
// accepted events to a forwarding dispatcher.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/vercel"
	"github.com/xraph/vercel/api"
	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/dlq"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/observability"
	"github.com/xraph/vercel/store"
	"github.com/xraph/vercel/store/memory"
	redisstore "github.com/xraph/vercel/store/redis"
	"github.com/xraph/vercel/trigger"
)

func main() {
	if err := runMain(); err != nil {
		fmt.Fprintln(os.Stderr, "vercel-relay:", err)
		os.Exit(1)
	}
}

func runMain() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)
	tracer := observability.NewTracer()

	dlqSvc := dlq.NewService(st, logger).WithMetrics(metrics)

	disp := &dispatcher{
		logger:     logger,
		http:       &http.Client{Timeout: 10 * time.Second},
		forwardURL: cfg.ForwardURL,
		secret:     cfg.ForwardSecret,
		outputs:    st,
		checkName:  cfg.CheckName,
		maxRetries: 5,
	}

	source := trigger.NewSource(st, st, dlqSvc, disp,
		trigger.WithLogger(logger),
		trigger.WithMetrics(metrics),
		trigger.WithTracer(tracer),
	)

	vc := vercel.DefaultConfig()
	vc.BaseURL = cfg.APIURL
	vc.RequestTimeout = cfg.RequestTimeout
	vc.RateLimit = cfg.RateLimit

	opts := []vercel.Option{
		vercel.WithConfig(vc),
		vercel.WithLogger(logger),
		vercel.WithMetrics(metrics),
		vercel.WithTracer(tracer),
		vercel.WithSource(source),
	}
	if cfg.APIKey != "" {
		opts = append(opts, vercel.WithAPIKey(cfg.APIKey))
	}
	integration, err := vercel.New(cfg.IntegrationID, opts...)
	if err != nil {
		return err
	}
	disp.integration = integration

	if err := registerTriggers(ctx, cfg, integration, logger); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("/", api.NewHandler(st, source, dlqSvc, logger))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("vercel-relay listening", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		purgeLoop(gctx, dlqSvc, cfg.DLQRetention, logger)
		return nil
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (store.Store, error) {
	var st store.Store
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, using in-memory store")
		st = memory.New()
	} else {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		st = redisstore.New(rdb)
	}

	if err := st.Ping(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("store ping: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("store migrate: %w", err)
	}
	return st, nil
}

// registerTriggers makes sure every configured trigger has a Vercel webhook
// pointing at this server.
func registerTriggers(ctx context.Context, cfg *Config, integration *vercel.Vercel, logger *slog.Logger) error {
	if len(cfg.Triggers) == 0 {
		return nil
	}

	triggers := make([]*trigger.Trigger, 0, len(cfg.Triggers))
	for _, tc := range cfg.Triggers {
		types, err := tc.Types()
		if err != nil {
			return err
		}
		for _, t := range types {
			spec, err := catalog.Lookup(t)
			if err != nil {
				return err
			}
			triggers = append(triggers, trigger.New(spec, tc.Params()))
		}
	}

	base := strings.TrimSuffix(cfg.PublicURL, "/")
	callback := func(regID id.ID) string {
		return base + "/hooks/" + regID.String()
	}

	regs, err := integration.Register(ctx, callback, triggers...)
	if err != nil {
		return fmt.Errorf("register triggers: %w", err)
	}
	for _, r := range regs {
		logger.Info("webhook registered",
			"registration_id", r.ID.String(),
			"webhook_id", r.WebhookID,
			"events", len(r.EventTypes),
		)
	}
	return nil
}

// purgeLoop drops dead letters older than retention once an hour.
func purgeLoop(ctx context.Context, svc *dlq.Service, retention time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.Purge(ctx, time.Now().Add(-retention))
			if err != nil {
				logger.Error("dlq purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("dlq purged", "count", n)
			}
		}
	}
}
