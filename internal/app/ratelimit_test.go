package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/metinatakli/seat-reservation-system/api"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/metinatakli/seat-reservation-system/internal/mocks"
	"github.com/metinatakli/seat-reservation-system/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("connection refused")
}

func newRateLimitedApplication(limiter ratelimit.Limiter, commands *mocks.MockSeatCommandService) *Application {
	return newTestApplication(func(a *Application) {
		a.config.RateLimit = RateLimitConfig{ReservationPerMinute: 2, AdminPerMinute: 1}
		a.rateLimiter = limiter
		a.seatCommands = commands
	})
}

func TestRateLimit_Reservation(t *testing.T) {
	t.Run("should reject holds over the per-minute limit", func(t *testing.T) {
		commands := new(mocks.MockSeatCommandService)
		commands.On("Hold", mock.Anything, int64(1), int64(2), int64(testPartyId)).
			Return(nil, &domain.SeatStateError{ShowingID: 1, SeatID: 2, Action: "hold", Status: domain.SeatHold})

		app := newRateLimitedApplication(ratelimit.NewMemoryLimiter(), commands)
		handler := app.Routes()

		for i := 0; i < 2; i++ {
			w, r := executeRequest(t, http.MethodPost, "/showings/1/seats/2/hold", nil)
			setupTestSession(t, app, r, testPartyId, "")
			handler.ServeHTTP(w, r)

			assert.Equal(t, http.StatusConflict, w.Code)
			assert.Equal(t, strconv.Itoa(1-i), w.Header().Get("X-RateLimit-Remaining"))
		}

		w, r := executeRequest(t, http.MethodPost, "/showings/1/seats/2/hold", nil)
		setupTestSession(t, app, r, testPartyId, "")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		checkErrorResponse(t, w, struct {
			wantStatus     int
			wantErrMessage string
		}{http.StatusTooManyRequests, "Too many requests, please try again later"})

		commands.AssertNumberOfCalls(t, "Hold", 2)
	})

	t.Run("should share one window across hold and release", func(t *testing.T) {
		commands := new(mocks.MockSeatCommandService)
		commands.On("Hold", mock.Anything, int64(1), int64(2), int64(testPartyId)).
			Return(nil, &domain.SeatStateError{ShowingID: 1, SeatID: 2, Action: "hold", Status: domain.SeatHold})
		commands.On("Release", mock.Anything, int64(1), int64(2), testHoldToken).Return(nil)

		app := newRateLimitedApplication(ratelimit.NewMemoryLimiter(), commands)
		handler := app.Routes()

		w, r := executeRequest(t, http.MethodPost, "/showings/1/seats/2/hold", nil)
		setupTestSession(t, app, r, testPartyId, "")
		handler.ServeHTTP(w, r)
		require.Equal(t, http.StatusConflict, w.Code)

		body := api.ReleaseHoldRequest{ShowingId: 1, SeatId: 2, HoldToken: testHoldToken}
		for _, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
			w, r = executeRequest(t, http.MethodPost, "/seat-holds/release", body)
			setupTestSession(t, app, r, testPartyId, "")
			handler.ServeHTTP(w, r)

			assert.Equal(t, want, w.Code)
		}
	})

	t.Run("should not limit reservation lookups", func(t *testing.T) {
		bookings := new(mocks.MockBookingService)
		bookings.On("Get", mock.Anything, int64(testPartyId), int64(9)).Return(nil, domain.ErrRecordNotFound)

		app := newRateLimitedApplication(ratelimit.NewMemoryLimiter(), new(mocks.MockSeatCommandService))
		app.bookings = bookings
		handler := app.Routes()

		for i := 0; i < 3; i++ {
			w, r := executeRequest(t, http.MethodGet, "/reservations/9", nil)
			setupTestSession(t, app, r, testPartyId, "")
			handler.ServeHTTP(w, r)

			assert.Equal(t, http.StatusNotFound, w.Code)
		}
	})

	t.Run("should allow requests when the limiter fails", func(t *testing.T) {
		commands := new(mocks.MockSeatCommandService)
		commands.On("Hold", mock.Anything, int64(1), int64(2), int64(testPartyId)).
			Return(nil, &domain.SeatStateError{ShowingID: 1, SeatID: 2, Action: "hold", Status: domain.SeatHold})

		app := newRateLimitedApplication(failingLimiter{}, commands)
		handler := app.Routes()

		for i := 0; i < 3; i++ {
			w, r := executeRequest(t, http.MethodPost, "/showings/1/seats/2/hold", nil)
			setupTestSession(t, app, r, testPartyId, "")
			handler.ServeHTTP(w, r)

			assert.Equal(t, http.StatusConflict, w.Code)
		}
	})
}

func TestRateLimit_Admin(t *testing.T) {
	t.Run("should apply the admin limit per operator", func(t *testing.T) {
		commands := new(mocks.MockSeatCommandService)
		commands.On("OpenShowing", mock.Anything, int64(5)).Return(int64(120), nil)

		app := newRateLimitedApplication(ratelimit.NewMemoryLimiter(), commands)
		handler := app.Routes()

		for _, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
			w, r := executeRequest(t, http.MethodPost, "/admin/showings/5/open", nil)
			setupTestSession(t, app, r, testOperatorId, RoleOperator)
			handler.ServeHTTP(w, r)

			assert.Equal(t, want, w.Code)
		}

		w, r := executeRequest(t, http.MethodPost, "/admin/showings/5/open", nil)
		setupTestSession(t, app, r, testOperatorId+1, RoleOperator)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
