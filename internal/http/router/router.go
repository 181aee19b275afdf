// Package router assembles the chi routing tree of the API.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courier-dispatch/internal/http/handlers"
)

const requestTimeout = 5 * time.Second

// Handlers groups everything the router mounts.
type Handlers struct {
	Base     *handlers.Handlers
	Couriers *handlers.CourierHandler
	Delivery *handlers.DeliveryHandler
	Track    *handlers.TrackHandler
	Metrics  http.Handler
}

// New constructs the API handler. Extra middleware runs after the base stack.
// The tracking stream is mounted outside the request timeout.
func New(h Handlers, mws ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	for _, mw := range mws {
		r.Use(mw)
	}

	r.Get("/ping", h.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(h.Base.HealthcheckHead))
	metrics := h.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metrics)

	r.Get("/delivery-requests/{id}/track", h.Track.Stream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Post("/delivery-requests", h.Delivery.Create)
		r.Get("/delivery-requests/{id}", h.Delivery.Get)
		r.Get("/delivery-requests/{id}/events", h.Delivery.Events)
		r.Get("/delivery-requests/{id}/snapshot", h.Track.Snapshot)
		r.Post("/delivery-requests/{id}/assign", h.Delivery.Assign)
		r.Post("/delivery-requests/{id}/status", h.Delivery.Status)
		r.Post("/delivery-requests/{id}/cancel", h.Delivery.Cancel)

		r.Get("/couriers", h.Couriers.List)
		r.Post("/couriers", h.Couriers.Create)
		r.Put("/couriers", h.Couriers.Update)
		r.Get("/couriers/{id}", h.Couriers.GetByID)
		r.Post("/couriers/{id}/location", h.Couriers.UpdateLocation)
		r.Post("/couriers/{id}/release", h.Delivery.FreeCourier)
	})

	r.NotFound(h.Base.NotFound)
	return r
}
