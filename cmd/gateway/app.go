package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/vitaliydpua/appgw/internal/audit"
	"github.com/vitaliydpua/appgw/internal/auth"
	"github.com/vitaliydpua/appgw/internal/backend"
	"github.com/vitaliydpua/appgw/internal/config"
	"github.com/vitaliydpua/appgw/internal/dispatch"
	"github.com/vitaliydpua/appgw/internal/health"
	"github.com/vitaliydpua/appgw/internal/middleware"
	"github.com/vitaliydpua/appgw/internal/observability"
	"github.com/vitaliydpua/appgw/internal/throttle"
)

// application holds all wired components of the gateway process.
type application struct {
	cfg        *config.Config
	logger     observability.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	checker    *health.Checker
	redis      *redis.Client
	throttle   *throttle.Service
	dispatcher *dispatch.Dispatcher
	engine     *gin.Engine
	server     *http.Server
}

// newApplication wires every component from the configuration.
func newApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("appgw")

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  "appgw",
		Enabled:      cfg.Tracing.Enabled,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, err
	}

	checker := health.NewChecker(version, health.WithLogger(logger))

	app := &application{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		checker: checker,
	}

	identity, installations, counterparties := app.buildBackends()
	app.buildThrottle()
	app.buildDispatcher(identity, installations, counterparties)
	app.buildServer()

	return app, nil
}

// buildBackends creates the backend service clients and registers their
// readiness checks.
func (a *application) buildBackends() (*backend.IdentityClient, *backend.InstallationClient, *backend.CounterpartyClient) {
	clientConfig := func(name string, bc config.BackendConfig) backend.ClientConfig {
		return backend.ClientConfig{
			Name:             name,
			BaseURL:          bc.BaseURL,
			Timeout:          bc.Timeout,
			BreakerThreshold: bc.BreakerThreshold,
			BreakerTimeout:   bc.BreakerTimeout,
		}
	}
	opts := []backend.ClientOption{
		backend.WithClientLogger(a.logger),
		backend.WithClientMetrics(a.metrics),
	}

	identity := backend.NewIdentityClient(clientConfig("identity", a.cfg.Backends.Identity), opts...)
	installations := backend.NewInstallationClient(clientConfig("installation", a.cfg.Backends.Installation), opts...)
	counterparties := backend.NewCounterpartyClient(clientConfig("counterparty", a.cfg.Backends.Counterparty), opts...)

	probe := &http.Client{Timeout: health.DefaultCheckTimeout}
	a.checker.Register("identity", health.HTTPCheck(probe, a.cfg.Backends.Identity.BaseURL))
	a.checker.Register("installation", health.HTTPCheck(probe, a.cfg.Backends.Installation.BaseURL))
	a.checker.Register("counterparty", health.HTTPCheck(probe, a.cfg.Backends.Counterparty.BaseURL))

	return identity, installations, counterparties
}

// buildThrottle creates the throttle service. Redis is used for the
// similar-request slots when configured, otherwise slots live in
// process memory.
func (a *application) buildThrottle() {
	var slots throttle.SlotStore
	if a.cfg.Redis.Address != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Address,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		slots = throttle.NewRedisSlotStore(a.redis, a.cfg.Redis.Prefix)
		a.checker.Register("redis", health.RedisCheck(a.redis))
	}

	a.throttle = throttle.NewService(throttle.Config{
		Authenticated: throttle.SourceLimits{
			RPS:   a.cfg.Throttle.Authenticated.RPS,
			Burst: a.cfg.Throttle.Authenticated.Burst,
		},
		Anonymous: throttle.SourceLimits{
			RPS:   a.cfg.Throttle.Anonymous.RPS,
			Burst: a.cfg.Throttle.Anonymous.Burst,
		},
		SlotTTL:           a.cfg.Throttle.SlotTTL,
		ExcludedEndpoints: a.cfg.Throttle.ExcludedEndpoints,
	}, slots,
		throttle.WithServiceLogger(a.logger),
		throttle.WithServiceMetrics(a.metrics),
	)
}

// buildDispatcher creates the auth chain, audit trail and dispatcher.
func (a *application) buildDispatcher(
	identity backend.Identity,
	installations backend.Installations,
	counterparties backend.Counterparties,
) {
	chain := auth.NewChain(auth.ChainConfig{
		Identity:       identity,
		Installations:  installations,
		Counterparties: counterparties,
		Logger:         a.logger,
		Metrics:        a.metrics,
	})

	auditLog := audit.NewLogger(
		audit.NewLogSink(a.logger),
		audit.WithLogger(a.logger),
		audit.WithMetrics(a.metrics),
	)

	a.dispatcher = dispatch.New(dispatch.Config{
		Chain:        chain,
		Throttle:     a.throttle,
		Audit:        auditLog,
		Logger:       a.logger,
		Metrics:      a.metrics,
		MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
	})
}

// buildServer assembles the gin engine with the middleware stack and
// the operational endpoints.
func (a *application) buildServer() {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	if len(a.cfg.Server.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(a.cfg.Server.TrustedProxies)
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(a.logger),
		middleware.Tracing(a.tracer),
		middleware.AccessLog(a.logger),
		middleware.Metrics(a.metrics),
	)

	engine.GET("/healthz", a.checker.HealthHandler())
	engine.GET("/readyz", a.checker.ReadinessHandler())
	engine.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	a.server = &http.Server{
		Addr:         a.cfg.Server.Address,
		Handler:      engine,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}
	a.engine = engine
}

// RegisterRoutes binds route descriptors onto the gateway's router.
func (a *application) RegisterRoutes(routes ...dispatch.Route) error {
	return a.dispatcher.Register(a.engine, routes...)
}

// ApplyThrottleConfig applies reloaded throttle settings at runtime.
func (a *application) ApplyThrottleConfig(cfg config.ThrottleConfig) {
	a.throttle.SetExclusions(cfg.ExcludedEndpoints)
	a.throttle.SetSourceLimits(
		throttle.SourceLimits{RPS: cfg.Authenticated.RPS, Burst: cfg.Authenticated.Burst},
		throttle.SourceLimits{RPS: cfg.Anonymous.RPS, Burst: cfg.Anonymous.Burst},
	)
}

// Start registers the built-in routes and starts serving.
func (a *application) Start(ctx context.Context) error {
	if err := a.RegisterRoutes(builtinRoutes()...); err != nil {
		return err
	}

	go func() {
		a.logger.Info("listening", observability.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("server error", observability.Error(err))
		}
	}()
	return nil
}

// Shutdown drains the server. Readiness flips to draining first so load
// balancers stop routing here before in-flight requests finish.
func (a *application) Shutdown(logger observability.Logger) {
	a.checker.SetDraining(true)

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", observability.Error(err))
	}

	a.throttle.Stop()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Error("redis close failed", observability.Error(err))
		}
	}

	if err := a.tracer.Shutdown(ctx); err != nil {
		logger.Error("tracer shutdown failed", observability.Error(err))
	}

	logger.Info("gateway stopped")
}
