package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"gatekeeper/internal/admin"
	"gatekeeper/internal/audit"
	auditkafka "gatekeeper/internal/audit/store/kafka"
	auditmemory "gatekeeper/internal/audit/store/memory"
	auditpostgres "gatekeeper/internal/audit/store/postgres"
	"gatekeeper/internal/demo"
	"gatekeeper/internal/gatekeeper"
	"gatekeeper/internal/identity"
	"gatekeeper/internal/platform/config"
	"gatekeeper/internal/platform/httpserver"
	platformkafka "gatekeeper/internal/platform/kafka"
	"gatekeeper/internal/platform/logger"
	platformmetrics "gatekeeper/internal/platform/metrics"
	"gatekeeper/internal/platform/postgres"
	platformredis "gatekeeper/internal/platform/redis"
	"gatekeeper/internal/policy"
	ratelimitmetrics "gatekeeper/internal/ratelimit/metrics"
	"gatekeeper/internal/ratelimit/service/requestlimit"
	"gatekeeper/internal/ratelimit/store/bucket"
	"gatekeeper/internal/redaction"
	"gatekeeper/internal/redaction/detector/pattern"
	"gatekeeper/internal/redaction/detector/presidio"
	httptransport "gatekeeper/internal/transport/http"
)

const (
	shutdownTimeout = 10 * time.Second
	startupTimeout  = 10 * time.Second
	sweepInterval   = time.Minute
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("gatekeeper exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	// closers run in reverse order once the server has drained.
	var closers []func(context.Context)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i](closeCtx)
		}
	}()

	checks := make(map[string]httptransport.HealthChecker)
	g, gctx := errgroup.WithContext(ctx)

	policies, err := buildPolicies(cfg, log)
	if err != nil {
		return err
	}
	if cfg.PolicyWatch && cfg.PolicyFile != "" {
		watcher, err := policy.NewWatcher(policies, log)
		if err != nil {
			return err
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}
	if cfg.PolicyFile != "" {
		g.Go(func() error { return reloadOnHangup(gctx, policies, log) })
	}

	counters, err := buildCounterStore(startCtx, cfg, log, g, gctx, checks, &closers)
	if err != nil {
		return err
	}
	limiter, err := requestlimit.New(counters,
		requestlimit.WithLogger(log),
		requestlimit.WithMetrics(ratelimitmetrics.New()),
		requestlimit.WithStoreTimeout(cfg.RateLimitTimeout),
	)
	if err != nil {
		return err
	}

	detector, err := buildDetector(cfg)
	if err != nil {
		return err
	}
	redactor, err := redaction.New(detector,
		redaction.WithLogger(log),
		redaction.WithMetrics(redaction.NewMetrics()),
		redaction.WithTimeout(cfg.DetectionTimeout),
	)
	if err != nil {
		return err
	}

	auditMetrics := audit.NewMetrics()
	auditStore, err := buildAuditStore(startCtx, cfg, log, auditMetrics, checks, &closers)
	if err != nil {
		return err
	}
	recorderOpts := []audit.Option{
		audit.WithLogger(log),
		audit.WithMetrics(auditMetrics),
		audit.WithWriteTimeout(cfg.AuditTimeout),
	}
	if cfg.AuditBuffer > 0 {
		recorderOpts = append(recorderOpts, audit.WithAsyncBuffer(cfg.AuditBuffer))
	}
	recorder, err := audit.NewRecorder(auditStore, recorderOpts...)
	if err != nil {
		return err
	}
	// Registered last so pending records drain before stores close.
	closers = append(closers, func(ctx context.Context) {
		if err := recorder.Close(ctx); err != nil {
			log.Error("audit recorder did not drain", "error", err)
		}
	})
	auditService, err := audit.NewService(auditStore)
	if err != nil {
		return err
	}

	pipeline, err := gatekeeper.New(policies, limiter, redactor, recorder,
		gatekeeper.WithLogger(log),
		gatekeeper.WithMetrics(gatekeeper.NewMetrics()),
	)
	if err != nil {
		return err
	}

	deps := httptransport.Deps{
		Logger:   log,
		Identity: buildIdentity(cfg),
		Pipeline: pipeline,
		Metrics:  platformmetrics.New(),
		Gatherer: prometheus.DefaultGatherer,
		Admin:    admin.New(auditService, limiter, policies, recorder, cfg.PrivilegedRole, log),
		Checks:   checks,
	}
	if cfg.DemoEndpoints {
		deps.Governed = append(deps.Governed, demo.New(log))
	}
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(deps))

	g.Go(func() error {
		log.Info("starting gatekeeper",
			"addr", cfg.Addr,
			"identity_mode", cfg.IdentityMode,
			"detector", detector.Name(),
			"redis", cfg.Redis.URL != "",
			"postgres", cfg.DatabaseURL != "",
			"kafka", len(cfg.Kafka.Brokers) > 0,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gatekeeper")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func buildPolicies(cfg config.Server, log *slog.Logger) (*policy.Holder, error) {
	if cfg.PolicyFile == "" {
		log.Warn("no policy file configured, using built-in policies")
		return policy.NewHolder(policy.Default(), policy.WithLogger(log))
	}
	initial, err := policy.LoadFile(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	return policy.NewHolder(initial, policy.WithLogger(log), policy.WithFile(cfg.PolicyFile))
}

// reloadOnHangup reloads the policy file on SIGHUP until ctx is done.
func reloadOnHangup(ctx context.Context, policies *policy.Holder, log *slog.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			log.InfoContext(ctx, "SIGHUP received, reloading policies")
			// Reload logs failures and keeps the previous snapshot.
			_ = policies.Reload(ctx)
		}
	}
}

func buildCounterStore(
	ctx context.Context,
	cfg config.Server,
	log *slog.Logger,
	g *errgroup.Group,
	gctx context.Context,
	checks map[string]httptransport.HealthChecker,
	closers *[]func(context.Context)) (requestlimit.CounterStore, error) {
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Warn("REDIS_URL not set, rate limit counters are process local")
		store := bucket.NewInMemoryBucketStore()
		g.Go(func() error { return store.RunSweeper(gctx, sweepInterval) })
		return store, nil
	}
	checks["redis"] = client
	*closers = append(*closers, func(context.Context) {
		if err := client.Close(); err != nil {
			log.Error("close redis", "error", err)
		}
	})
	return bucket.NewRedis(client.Client), nil
}

func buildAuditStore(
	ctx context.Context,
	cfg config.Server,
	log *slog.Logger,
	metrics *audit.Metrics,
	checks map[string]httptransport.HealthChecker,
	closers *[]func(context.Context)) (audit.Store, error) {
	var primary audit.Store
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if db == nil {
		log.Warn("DATABASE_URL not set, audit records are kept in memory")
		primary = auditmemory.NewInMemoryStore()
	} else {
		store := auditpostgres.New(db.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		checks["postgres"] = db
		*closers = append(*closers, func(context.Context) {
			if err := db.Close(); err != nil {
				log.Error("close postgres", "error", err)
			}
		})
		primary = store
	}

	producer, err := platformkafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		return nil, err
	}
	if producer == nil {
		return primary, nil
	}
	mirror, err := auditkafka.NewMirror(producer)
	if err != nil {
		return nil, err
	}
	checks["kafka"] = producer
	*closers = append(*closers, func(ctx context.Context) {
		if err := producer.Close(ctx); err != nil {
			log.Error("close kafka producer", "error", err)
		}
	})
	return audit.NewFanout(primary, log, metrics, mirror), nil
}

func buildDetector(cfg config.Server) (redaction.DetectionPort, error) {
	switch cfg.Detector {
	case config.DetectorPattern:
		return pattern.New(), nil
	case config.DetectorPresidio:
		return presidio.New(cfg.PresidioURL,
			presidio.WithHTTPClient(&http.Client{Timeout: cfg.DetectionTimeout}),
		)
	default:
		return nil, fmt.Errorf("unknown detector %q", cfg.Detector)
	}
}

func buildIdentity(cfg config.Server) identity.Provider {
	if cfg.IdentityMode == config.IdentityModeJWT {
		return identity.NewJWTProvider(cfg.JWTSigningKey, "gatekeeper")
	}
	return identity.NewHeaderProvider()
}
