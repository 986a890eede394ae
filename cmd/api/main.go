package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/triage-api/internal/config"
	apth "github.com/jwalitptl/triage-api/internal/handler/appointment"
	authh "github.com/jwalitptl/triage-api/internal/handler/auth"
	dashh "github.com/jwalitptl/triage-api/internal/handler/dashboard"
	"github.com/jwalitptl/triage-api/internal/handler/health"
	"github.com/jwalitptl/triage-api/internal/handler/intake"
	queueh "github.com/jwalitptl/triage-api/internal/handler/queue"
	"github.com/jwalitptl/triage-api/internal/middleware"
	"github.com/jwalitptl/triage-api/internal/router"
	"github.com/jwalitptl/triage-api/internal/service/announcement"
	"github.com/jwalitptl/triage-api/internal/service/appointment"
	authService "github.com/jwalitptl/triage-api/internal/service/auth"
	"github.com/jwalitptl/triage-api/internal/service/capacity"
	"github.com/jwalitptl/triage-api/internal/service/dashboard"
	eventService "github.com/jwalitptl/triage-api/internal/service/event"
	"github.com/jwalitptl/triage-api/internal/service/queue"
	"github.com/jwalitptl/triage-api/pkg/auth"
	"github.com/jwalitptl/triage-api/pkg/logger"
	"github.com/jwalitptl/triage-api/pkg/messaging"
	"github.com/jwalitptl/triage-api/pkg/messaging/redis"
	"github.com/jwalitptl/triage-api/pkg/metrics"
	"github.com/jwalitptl/triage-api/pkg/security"
	"github.com/jwalitptl/triage-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	log.SetGlobal()
	zl := log.Zerolog()

	if err := run(cfg, log); err != nil {
		zl.Fatal().Err(err).Msg("api stopped")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	zl := log.Zerolog()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics("triage", reg)

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	var broker messaging.Broker = messaging.NopBroker{}
	if cfg.Redis.Enabled {
		rb, err := redis.NewRedisBroker(redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, zl, m)
		if err != nil {
			return err
		}
		defer rb.Close()
		broker = rb
		st.checks["redis"] = rb
	}

	loc, err := cfg.Capacity.Location()
	if err != nil {
		return err
	}
	tracker := capacity.NewTracker(st.configs, st.appointments, loc, m, capacity.WithLogger(zl))
	if err := tracker.Init(ctx, cfg.Capacity.MaxPerShift); err != nil {
		return fmt.Errorf("failed to initialise shift config: %w", err)
	}

	jwtSvc, err := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	if err != nil {
		return err
	}
	authSvc := authService.NewService(st.staff, jwtSvc, security.NewBcryptHasher(bcrypt.DefaultCost), zl)
	if cfg.Auth.SeedDefaultStaff {
		if _, err := authSvc.SeedDefaultStaff(ctx, cfg.Auth.DefaultPassword); err != nil {
			return err
		}
	}

	announcer := announcement.NewService(broker, announcement.Config{
		Channel: cfg.Announcement.Channel,
		Repeat:  cfg.Announcement.Repeat,
		Tone:    cfg.Announcement.Tone,
		Timeout: cfg.Announcement.Timeout,
	}, zl, m)
	engine := queue.NewEngine(st.appointments, m, cfg.Display.CacheTTL)
	appointmentSvc := appointment.NewService(appointment.Dependencies{
		Appointments: st.appointments,
		Patients:     st.patients,
		Capacity:     tracker,
		Queue:        engine,
		Events:       eventService.NewEventService(st.outbox, zl),
		Announcer:    announcer,
		Metrics:      m,
		Logger:       zl,
		TriageRoom:   cfg.Announcement.TriageRoom,
	})
	dashboardSvc := dashboard.NewService(st.appointments, tracker, cfg.Lifecycle.StaleAfter)

	// With in-process storage no separate worker can see the outbox.
	if cfg.Storage.Driver == "memory" {
		processor, err := worker.NewOutboxProcessor(st.outbox, broker, worker.OutboxProcessorConfig{
			Channel:       cfg.Announcement.EventChannel,
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			RetryDelay:    cfg.Outbox.RetryDelay,
		}, log, m)
		if err != nil {
			return err
		}
		go processor.Start(ctx)
	}

	gin.SetMode(cfg.Server.Mode)
	rateCfg := middleware.RateLimiterConfig{Rate: rate.Inf}
	if cfg.RateLimit.Enabled {
		rateCfg = middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		}
	}
	r := router.NewRouter(middleware.NewAuthMiddleware(authSvc), router.Handlers{
		Health:      health.NewHandler(st.checks, reg),
		Auth:        authh.NewHandler(authSvc),
		Intake:      intake.NewHandler(appointmentSvc, tracker),
		Queue:       queueh.NewHandler(engine),
		Appointment: apth.NewHandler(appointmentSvc),
		Dashboard:   dashh.NewHandler(dashboardSvc),
	}, m, router.RouterConfig{
		RateLimit:      rateCfg,
		CORSConfig:     middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins),
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info().Int("port", cfg.Server.Port).Str("storage", cfg.Storage.Driver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	zl.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	announcer.Wait()

	zl.Info().Msg("server exited")
	return nil
}
