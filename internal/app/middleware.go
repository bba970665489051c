package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

const rateLimitWindow = time.Minute

func (app *Application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")

				app.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (app *Application) requireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		partyId := app.sessionPartyId(r)
		if partyId == 0 {
			app.unauthorizedAccessResponse(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), SessionKeyPartyId, partyId)
		r = r.WithContext(ctx)

		next.ServeHTTP(w, r)
	})
}

func (app *Application) requireOperator(next http.Handler) http.Handler {
	return app.requireAuthentication(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if app.sessionManager.GetString(r.Context(), SessionKeyRole.String()) != RoleOperator {
			app.forbiddenResponse(w, r, "This resource is restricted to operators")
			return
		}

		next.ServeHTTP(w, r)
	}))
}

// rateLimit counts requests of the authenticated party per scope in fixed
// one-minute windows. Requests pass when the limiter itself fails.
func (app *Application) rateLimit(scope string, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if app.rateLimiter == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := scope + ":" + strconv.FormatInt(app.contextGetPartyId(r), 10)

			decision, err := app.rateLimiter.Allow(r.Context(), key, limit, rateLimitWindow)
			if err != nil {
				app.contextGetLogger(r).Warn("rate limit check failed, allowing request", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				app.rateLimitExceededResponse(w, r, decision.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (app *Application) contextGetLogger(r *http.Request) *slog.Logger {
	return app.logger.With("request_id", middleware.GetReqID(r.Context()))
}
