// Command server runs the roll-call HTTP service: attendance reconciliation,
// the cutoff token gate, and roster mutations. main wires stores, services,
// and transport; business logic lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	attendancehandler "rollcall/internal/attendance/handler"
	attendancemetrics "rollcall/internal/attendance/metrics"
	attendanceservice "rollcall/internal/attendance/service"
	attendancestore "rollcall/internal/attendance/store"
	cutoffhandler "rollcall/internal/cutoff/handler"
	cutoffservice "rollcall/internal/cutoff/service"
	cutoffstore "rollcall/internal/cutoff/store"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/httpserver"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/middleware"
	redisplatform "rollcall/internal/platform/redis"
	rosterhandler "rollcall/internal/roster/handler"
	rosterservice "rollcall/internal/roster/service"
	rosterstore "rollcall/internal/roster/store"
	audit "rollcall/pkg/platform/audit"
	auditpublisher "rollcall/pkg/platform/audit/publisher"
	auditkafka "rollcall/pkg/platform/audit/store/kafka"
	auditmemory "rollcall/pkg/platform/audit/store/memory"
	"rollcall/pkg/platform/tx"
)

func main() {
	log := logger.New()
	slog.SetDefault(log)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	// Audit sink: Kafka when brokers are configured, in-memory otherwise.
	var auditStore audit.Store
	if len(cfg.KafkaBrokers) > 0 {
		kafkaStore, err := auditkafka.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer kafkaStore.Close()
		auditStore = kafkaStore
		log.Info("audit sink: kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		auditStore = auditmemory.NewInMemoryStore()
		log.Info("audit sink: memory")
	}
	publisher := auditpublisher.NewPublisher(auditStore,
		auditpublisher.WithLogger(log),
		auditpublisher.WithAsyncBuffer(256),
	)
	defer publisher.Close()

	// Storage backend.
	var (
		attendance attendancestore.Store
		tokens     cutoffstore.TokenStore
		events     cutoffstore.EventStore
		roster     rosterstore.Store
		runner     tx.Runner
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(context.Background()); err != nil {
			return err
		}
		attendance = attendancestore.NewPostgres(db)
		tokens = cutoffstore.NewPostgresTokenStore(db)
		events = cutoffstore.NewPostgresEventStore(db)
		roster = rosterstore.NewPostgres(db)
		runner = tx.NewSQLRunner(db)
		log.Info("storage backend: postgres")
	default:
		attendance = attendancestore.NewInMemoryStore()
		tokens = cutoffstore.NewInMemoryTokenStore()
		events = cutoffstore.NewInMemoryEventStore()
		roster = rosterstore.NewInMemoryStore()
		runner = tx.NoopRunner{}
		log.Info("storage backend: memory")
	}

	// Optional shared token ledger in Redis.
	if cfg.RedisURL != "" {
		redisCfg, err := config.RedisFromEnv(cfg.RedisURL)
		if err != nil {
			return err
		}
		redisClient, err := redisplatform.New(redisCfg)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		tokens = cutoffstore.NewRedisTokenStore(redisClient.Client)
		log.Info("token ledger: redis")
	}

	// Services.
	reconciler := attendanceservice.NewReconciler(attendance,
		attendanceservice.WithLogger(log),
		attendanceservice.WithMetrics(attendancemetrics.New()),
		attendanceservice.WithAudit(publisher),
	)
	gate := cutoffservice.NewGate(tokens, events,
		cutoffservice.WithLogger(log),
		cutoffservice.WithAudit(publisher),
	)
	rosterSvc := rosterservice.New(roster, gate, runner,
		rosterservice.WithLogger(log),
		rosterservice.WithAudit(publisher),
	)

	// Transport.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	attendancehandler.New(reconciler, log).Register(r)
	rosterhandler.New(rosterSvc, log).Register(r)

	// Token administration and event status changes are operator-only.
	validator := middleware.NewHMACValidator(cfg.JWTSigningKey)
	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireRole(validator, log, "ADMIN", "OPERATOR"))
		cutoffhandler.New(gate, log).Register(admin)
	})

	srv := httpserver.New(cfg.Addr, r)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
