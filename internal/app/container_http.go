package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/http/handlers"
	"courier-dispatch/internal/http/middleware"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/http/pprofserver"
	"courier-dispatch/internal/http/router"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/service/courier"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/tracking"
)

// pprofServer is nil when profiling is disabled.
type pprofServer struct {
	*http.Server
}

func registerHTTP(container *dig.Container) error {
	if err := provideAll(container,
		handlers.New,
		func(logger logx.Logger, svc *courier.Service) *handlers.CourierHandler {
			return handlers.NewCourierHandler(logger, svc)
		},
		func(logger logx.Logger, svc *dispatch.Service) *handlers.DeliveryHandler {
			return handlers.NewDeliveryHandler(logger, svc)
		},
		newTrackHandler,
		newRateLimitClock,
		newRateLimiter,
		provideRateLimitCounter,
		newRateLimitMiddleware,
		middleware.NewObservability,
		newRouter,
		newServer,
		newPprofServer,
	); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

func newTrackHandler(
	logger logx.Logger,
	svc *dispatch.Service,
	hub *tracking.Hub,
	m *metrics.Tracking,
	cfg *config.Config,
) *handlers.TrackHandler {
	return handlers.NewTrackHandler(logger, svc, hub, m, handlers.TrackConfig{
		ETAAfterPickup: cfg.Dispatch.ETAAfterPickup,
		PollInterval:   cfg.Dispatch.TrackPollInterval,
	})
}

func newRateLimiter(cfg *config.Config, clock ratelimit.Clock) ratelimit.Limiter {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return ratelimit.NopLimiter{}
	}
	return ratelimit.NewTokenBucketLimiter(clock, ratelimit.Config{
		Rate:       rl.Rate,
		Burst:      rl.Burst,
		TTL:        rl.TTL,
		MaxBuckets: rl.MaxBuckets,
	})
}

func newRateLimitClock() ratelimit.Clock {
	return ratelimit.RealClock{}
}

type rateLimitCounterOut struct {
	dig.Out
	Counter prometheus.Counter `name:"rate_limit_exceeded_total"`
}

func provideRateLimitCounter(reg prometheus.Registerer) (rateLimitCounterOut, error) {
	c := metrics.NewRateLimitExceededTotal()
	return rateLimitCounterOut{Counter: c}, metrics.Register(reg, c)
}

type rateLimitIn struct {
	dig.In
	Logger  logx.Logger
	Counter prometheus.Counter `name:"rate_limit_exceeded_total"`
	Limiter ratelimit.Limiter
}

func newRateLimitMiddleware(in rateLimitIn) *ratelimit.Middleware {
	return ratelimit.New(in.Logger, in.Counter, in.Limiter, "/metrics", "/ping", "/healthcheck")
}

type routerIn struct {
	dig.In
	Base          *handlers.Handlers
	Couriers      *handlers.CourierHandler
	Delivery      *handlers.DeliveryHandler
	Track         *handlers.TrackHandler
	RateLimit     *ratelimit.Middleware
	Observability *middleware.Observability
	Reg           prometheus.Registerer
}

func newRouter(in routerIn) http.Handler {
	h := router.Handlers{
		Base:     in.Base,
		Couriers: in.Couriers,
		Delivery: in.Delivery,
		Track:    in.Track,
	}
	// serve whatever registry the collectors went to
	if g, ok := in.Reg.(prometheus.Gatherer); ok {
		h.Metrics = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return router.New(h, in.Observability.Handler(), in.RateLimit.Handler())
}

// newServer leaves WriteTimeout unset so tracking streams stay open.
func newServer(cfg *config.Config, mux http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func newPprofServer(cfg *config.Config) pprofServer {
	return pprofServer{Server: pprofserver.New(pprofserver.Config{
		Enabled: cfg.Pprof.Enabled,
		Addr:    cfg.Pprof.Addr,
		User:    cfg.Pprof.User,
		Pass:    cfg.Pprof.Pass,
	})}
}
