package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/triage-api/internal/config"
	"github.com/jwalitptl/triage-api/internal/email"
	"github.com/jwalitptl/triage-api/internal/repository/postgres"
	"github.com/jwalitptl/triage-api/internal/service/capacity"
	"github.com/jwalitptl/triage-api/internal/service/dashboard"
	eventService "github.com/jwalitptl/triage-api/internal/service/event"
	internalworker "github.com/jwalitptl/triage-api/internal/worker"
	"github.com/jwalitptl/triage-api/pkg/logger"
	"github.com/jwalitptl/triage-api/pkg/messaging/redis"
	"github.com/jwalitptl/triage-api/pkg/metrics"
	"github.com/jwalitptl/triage-api/pkg/worker"
)

func setupHealthCheck(port int, reg *prometheus.Registry, db interface{ PingContext(context.Context) error }, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "health check server failed")
		}
	}()
	return srv
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	wc, err := config.LoadWorkerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load worker config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}).With("worker")
	log.SetGlobal()

	if cfg.Storage.Driver != "postgres" {
		log.Fatal(fmt.Errorf("storage driver %q", cfg.Storage.Driver), "the worker needs the postgres driver; the memory driver runs its outbox inside the api")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.NewMetrics("triage_worker", reg)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log.Zerolog(), m)
	if err != nil {
		log.Fatal(err, "failed to create Redis broker")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)

	processor, err := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		Channel:       cfg.Announcement.EventChannel,
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
	}, log, m)
	if err != nil {
		log.Fatal(err, "invalid outbox configuration")
	}
	cleanup := internalworker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, wc.CleanupInterval, log, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := setupHealthCheck(wc.MetricsPort, reg, db, log)

	var wg sync.WaitGroup
	start := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}
	start(processor.Start)
	start(cleanup.Start)

	if wc.ReportsEnabled {
		loc, err := cfg.Capacity.Location()
		if err != nil {
			log.Fatal(err, "invalid timezone")
		}
		tracker := capacity.NewTracker(postgres.NewShiftConfigRepository(db), appointmentRepo, loc, m,
			capacity.WithLogger(log.Zerolog()))

		// Without a sender the worker still emits shift.rolled_over.
		var sender email.Sender
		if cfg.Email.Enabled {
			smtp, err := email.NewSMTPSender(cfg.Email)
			if err != nil {
				log.Fatal(err, "invalid email configuration")
			}
			sender = smtp
		}

		reports := internalworker.NewShiftReportWorker(
			tracker,
			dashboard.NewService(appointmentRepo, tracker, cfg.Lifecycle.StaleAfter),
			sender,
			eventService.NewEventService(outboxRepo, log.Zerolog()),
			cfg.Email.Recipients,
			wc.ShiftCheckInterval,
			log,
			m,
		)
		start(reports.Start)
	}

	log.Info("worker started")
	<-ctx.Done()
	log.Info("shutting down...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = health.Shutdown(shutdownCtx)
}
