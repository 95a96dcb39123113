package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// NewRouter builds the API routes wrapped in tracing.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/availability/dates", h.availableDates)
		r.Get("/availability/slots", h.availableSlots)
		r.Get("/session-types", h.sessionTypes)
		r.Get("/holidays/{year}", h.publicHolidays)

		r.Post("/bookings", h.createBooking)
		r.Route("/bookings/{id}", func(r chi.Router) {
			r.Get("/", h.getBooking)
			r.Get("/policy", h.bookingPolicy)
			r.Post("/cancel", h.cancelBooking)
			r.Post("/reschedule", h.rescheduleBooking)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/overrides", h.listOverrides)
			r.Put("/overrides/{date}", h.putOverride)
			r.Delete("/overrides/{date}", h.deleteOverride)
			r.Post("/bookings/{id}/status", h.setBookingStatus)
			r.Get("/settings", h.getSettings)
			r.Put("/settings", h.putSettings)
		})
	})

	return otelhttp.NewHandler(r, "booking-api")
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
