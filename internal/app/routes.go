package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
)

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)
	r.MethodNotAllowed(app.methodNotAllowedResponse)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(r)))
	r.Use(app.recoverPanic)

	r.Get("/healthcheck", app.GetHealth)

	// the event stream needs no session and must not be buffered by it
	r.Get("/showings/{showingId}/seat-events", app.StreamSeatEvents)

	r.Group(func(r chi.Router) {
		r.Use(app.sessionManager.LoadAndSave)

		r.Get("/showings/{showingId}/seats", app.GetSeatLayout)

		r.Group(func(r chi.Router) {
			r.Use(app.requireAuthentication)

			limited := r.With(app.rateLimit("reservation", app.config.RateLimit.ReservationPerMinute))

			limited.Post("/showings/{showingId}/seats/{seatId}/hold", app.HoldSeat)
			limited.Post("/seat-holds/release", app.ReleaseSeatHold)

			limited.Post("/reservations/pay", app.PayReservation)
			r.Get("/reservations/{reservationId}", app.GetReservation)
			limited.Post("/reservations/{reservationId}/cancel", app.CancelReservation)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(app.requireOperator)
			r.Use(app.rateLimit("admin", app.config.RateLimit.AdminPerMinute))

			r.Put("/showings/{showingId}/seats/{seatId}/status", app.SetSeatStatus)
			r.Post("/showings/{showingId}/open", app.OpenShowing)
		})
	})

	return r
}
