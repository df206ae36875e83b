package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/carlosbmello/echef-caixa-web/internal/auth"
	"github.com/carlosbmello/echef-caixa-web/internal/backend"
	"github.com/carlosbmello/echef-caixa-web/internal/checkout"
	"github.com/carlosbmello/echef-caixa-web/internal/config"
	"github.com/carlosbmello/echef-caixa-web/internal/health"
	"github.com/carlosbmello/echef-caixa-web/internal/lock"
	"github.com/carlosbmello/echef-caixa-web/internal/obs"
	"github.com/carlosbmello/echef-caixa-web/internal/printing"
	"github.com/carlosbmello/echef-caixa-web/internal/session"
	"github.com/carlosbmello/echef-caixa-web/internal/tabs"
	"github.com/carlosbmello/echef-caixa-web/internal/tender"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().
		Str("env", cfg.AppEnv).
		Str("register", cfg.RegisterID).
		Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "caixa")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "caixa-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis client")
		}
	}()

	posClient := backend.New(cfg, logger)

	sessionSvc := &session.Service{
		Backend:    posClient,
		Locks:      lock.Locker{R: redisClient},
		RegisterID: cfg.RegisterID,
		LockTTL:    cfg.SessionLockTTL,
		Logger:     logger,
	}
	sessionHandler := &session.Handler{Svc: sessionSvc}

	tabSvc := &tabs.Service{Backend: posClient, Logger: logger}
	tabHandler := &tabs.Handler{Svc: tabSvc}

	tenderSvc := &tender.Service{
		Backend: posClient,
		Cache:   tender.NewCache(redisClient, cfg.TenderCacheTTL),
		Logger:  logger,
	}
	tenderHandler := &tender.Handler{Svc: tenderSvc}

	checkoutSvc := &checkout.Service{
		Backend:       posClient,
		Sessions:      sessionSvc,
		Tabs:          tabSvc,
		Tenders:       tenderSvc,
		FinalizeDelay: cfg.FinalizeDelay,
		Logger:        logger,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	printSvc := &printing.Service{
		Backend:  posClient,
		Checkout: checkoutSvc,
		PointID:  cfg.PrintPointID,
		Logger:   logger,
	}
	printHandler := &printing.Handler{Svc: printSvc}

	verifier := auth.NewVerifier(cfg.JWTSecret, jwa.HS256, envOrDefault("JWT_ISSUER", ""))
	authMiddleware := auth.Middleware{Verifier: verifier}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:        readinessChecker{backend: posClient, redis: redisClient},
		BackendTimeout: envDurationMillis("HEALTH_READY_BACKEND_TIMEOUT_MS", 500),
		RedisTimeout:   envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authMiddleware.RequireOperator)

		v.Route("/sessions", func(s chi.Router) {
			s.Post("/open", sessionHandler.Open)
			s.Get("/current", sessionHandler.Current)
			s.Post("/close", sessionHandler.Close)
			s.Get("/payments", sessionHandler.ListPayments)
		})

		v.Route("/movements", func(m chi.Router) {
			m.Post("/", sessionHandler.CreateMovement)
			m.Get("/", sessionHandler.ListMovements)
		})

		v.Route("/tabs", func(tb chi.Router) {
			tb.Get("/", tabHandler.ListOpen)
			tb.Get("/{identifier}", tabHandler.Resolve)
			tb.Patch("/items/{itemID}/cancel", tabHandler.CancelItem)
		})

		v.Route("/checkout", func(c chi.Router) {
			c.Get("/", checkoutHandler.Current)
			c.Delete("/", checkoutHandler.Cancel)
			c.Post("/tabs", checkoutHandler.AddTab)
			c.Delete("/tabs/{tabID}", checkoutHandler.RemoveTab)
			c.Put("/options", checkoutHandler.SetOptions)
			c.Post("/payments", checkoutHandler.AddPayment)
			c.Post("/finalize", checkoutHandler.Finalize)
		})

		v.Route("/tenders", func(td chi.Router) {
			td.Get("/", tenderHandler.List)
			td.Post("/refresh", tenderHandler.Refresh)
		})

		v.Route("/print", func(p chi.Router) {
			p.Post("/conference", printHandler.Conference)
			p.Post("/retry-failed", printHandler.RetryFailed)
		})
	})

	pollCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	go printSvc.Poll(pollCtx, cfg.PrintPollInterval)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		health.SetReady(false)
		stopPoller()
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown http server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	backend *backend.Client
	redis   *redis.Client
}

func (c readinessChecker) PingBackend(ctx context.Context, timeout time.Duration) error {
	if c.backend == nil {
		return errors.New("backend not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.backend.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallbackMS int) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return time.Duration(fallbackMS) * time.Millisecond
}
