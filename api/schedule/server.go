// Package schedule exposes the engine over HTTP with a chi router and
// streams committed updates over WebSocket.
package schedule

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/berthplan/core/engine"
	"github.com/kilianp07/berthplan/core/logger"
	"github.com/kilianp07/berthplan/internal/eventbus"
)

// DefaultAnalysisWindow is used by the occupancy and KPI routes when no
// end is given.
const DefaultAnalysisWindow = 24 * time.Hour

// Handler serves the schedule API.
type Handler struct {
	eng   *engine.Engine
	bus   eventbus.EventBus
	log   logger.Logger
	extra map[string]http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithBus enables GET /api/stream on bus.
func WithBus(bus eventbus.EventBus) Option {
	return func(h *Handler) { h.bus = bus }
}

// WithLogger sets the request logger.
func WithLogger(log logger.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// WithHandler mounts an additional handler under /api, for example the
// journal or berth usage routes.
func WithHandler(pattern string, handler http.Handler) Option {
	return func(h *Handler) { h.extra[pattern] = handler }
}

// New returns a Handler serving eng.
func New(eng *engine.Engine, opts ...Option) *Handler {
	h := &Handler{eng: eng, extra: map[string]http.Handler{}}
	for _, o := range opts {
		o(h)
	}
	h.log = logger.OrNop(h.log)
	return h
}

// Router builds the chi router with every route registered.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLog)
	h.Routes(r)
	return r
}

// Routes registers the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.healthz)
	r.Route("/api", func(r chi.Router) {
		r.Post("/vessels", h.registerVessel)
		r.Get("/vessels/{id}/status", h.vesselStatus)
		r.Post("/vessels/{id}/berthed", h.markServicing)
		r.Post("/vessels/{id}/departed", h.markDeparted)
		r.Post("/berths", h.registerBerth)
		r.Get("/berths", h.listBerths)
		r.Get("/schedule", h.getSchedule)
		r.Get("/schedule/export", h.exportSchedule)
		r.Post("/plan", h.plan)
		r.Post("/events", h.reportEvent)
		r.Get("/analysis/competition", h.competition)
		r.Get("/analysis/occupancy", h.occupancy)
		r.Get("/analysis/kpi", h.kpi)
		r.Get("/analysis/recommend", h.recommend)
		if h.bus != nil {
			r.Get("/stream", h.stream)
		}
		for pattern, handler := range h.extra {
			r.Handle(pattern, handler)
		}
	})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.eng.Snapshot().Version(),
	})
}

func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debugw("http request", map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		})
	})
}
