package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/duynhne/session-gateway/config"
	database "github.com/duynhne/session-gateway/internal/core"
	"github.com/duynhne/session-gateway/internal/core/repository"
	logicv1 "github.com/duynhne/session-gateway/internal/logic/v1"
	"github.com/duynhne/session-gateway/internal/upstream"
	"github.com/duynhne/session-gateway/internal/web"
	v1 "github.com/duynhne/session-gateway/internal/web/v1"
	"github.com/duynhne/session-gateway/middleware"
	"github.com/duynhne/session-gateway/pkg/logger/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Configuration load failed: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		panic("Configuration validation failed: " + err.Error())
	}

	// Initialize Zerolog with LOG_LEVEL from config
	zerolog.Setup(cfg.Logging.Level)

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("env", cfg.Service.Env).
		Str("port", cfg.Service.Port).
		Str("upstream", cfg.Upstream.BaseURL).
		Str("session_store", cfg.Session.Store).
		Msg("Service starting")

	// Initialize OpenTelemetry tracing
	var tp interface{ Shutdown(context.Context) error }
	if cfg.Tracing.Enabled {
		provider, err := middleware.InitTracing(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing")
		} else {
			tp = provider
			log.Info().
				Str("endpoint", cfg.Tracing.Endpoint).
				Float64("sample_rate", cfg.Tracing.SampleRate).
				Msg("Tracing initialized")
		}
	} else {
		log.Info().Msg("Tracing disabled (TRACING_ENABLED=false)")
	}

	// Initialize Pyroscope profiling
	if cfg.Profiling.Enabled {
		if err := middleware.InitProfiling(cfg); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize profiling")
		} else {
			log.Info().
				Str("endpoint", cfg.Profiling.Endpoint).
				Msg("Profiling initialized")
			defer middleware.StopProfiling()
		}
	} else {
		log.Info().Msg("Profiling disabled (PROFILING_ENABLED=false)")
	}

	// Session store (memory, redis or postgres)
	store, closeStore, err := database.NewSessionStore(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Str("session_store", cfg.Session.Store).Msg("Failed to initialize session store")
	}
	log.Info().Str("session_store", cfg.Session.Store).Msg("Session store ready")

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if expiring, ok := store.(repository.ExpiringStore); ok {
		go repository.SweepExpired(sweepCtx, expiring, cfg.Session.SweepInterval)
	}

	origins, err := middleware.NewOriginPolicy(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedOriginPatterns)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid origin allowlist")
	}

	gateway := logicv1.NewGatewayService(
		upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout),
		store,
	)
	cookies := v1.NewCookieCodec(v1.CookieOptions{
		Name:     cfg.Session.CookieName,
		Secret:   cfg.Session.Secret,
		TTL:      cfg.Session.TTL,
		Secure:   cfg.CookieSecure(),
		SameSite: cfg.CookieSameSite(),
	})
	handler := v1.NewHandler(gateway, cookies, v1.Redirects{
		FrontendURL: cfg.Frontend.URL,
		SuccessPath: cfg.Frontend.VerifySuccessPath,
		FailurePath: cfg.Frontend.VerifyFailurePath,
	})

	var isShuttingDown atomic.Bool

	r, err := web.NewRouter(handler, web.RouterOptions{
		ServiceName:    cfg.Service.Name,
		UpstreamURL:    cfg.Upstream.BaseURL,
		Env:            cfg.Service.Env,
		TrustedProxies: cfg.Service.TrustedProxies,
		Origins:        origins,
		ShuttingDown:   &isShuttingDown,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Service.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Service.Port).Msg("Starting session gateway")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	// Fail readiness first and wait for propagation.
	isShuttingDown.Store(true)
	drainDelay := cfg.GetReadinessDrainDelayDuration()
	if drainDelay > 0 {
		log.Info().Dur("delay", drainDelay).Msg("Readiness drain delay started")
		time.Sleep(drainDelay)
		log.Info().Dur("delay", drainDelay).Msg("Readiness drain delay completed")
	}

	// Shutdown context with configurable timeout
	shutdownTimeout := cfg.GetShutdownTimeoutDuration()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info().Dur("timeout", shutdownTimeout).Msg("Shutting down server...")

	// 1. Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		log.Info().Msg("HTTP server shutdown complete")
	}

	// 2. Stop the sweeper and release the session store
	stopSweep()
	closeStore()
	log.Info().Msg("Session store closed")

	// 3. Shutdown tracer
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Tracer shutdown error")
		} else {
			log.Info().Msg("Tracer shutdown complete")
		}
	}

	log.Info().Msg("Graceful shutdown complete")
}
