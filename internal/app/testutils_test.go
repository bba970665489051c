package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/metinatakli/seat-reservation-system/api"
	"github.com/metinatakli/seat-reservation-system/internal/events"
	"github.com/metinatakli/seat-reservation-system/internal/mocks"
	"github.com/metinatakli/seat-reservation-system/internal/validator"
)

func newTestApplication(opts ...func(*Application)) *Application {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	app := &Application{
		config:         Config{Env: "test"},
		validator:      validator.NewValidator(),
		logger:         logger,
		sessionManager: scs.New(),
		seatCommands:   &mocks.MockSeatCommandService{},
		seatLayouts:    &mocks.MockSeatLayoutService{},
		bookings:       &mocks.MockBookingService{},
		seatEvents:     events.NewHub(logger),
		streamsDone:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(app)
	}

	return app
}

// setupTestSession stores a session for the party the way the auth service
// does and attaches its cookie to r.
func setupTestSession(t *testing.T, app *Application, r *http.Request, partyId int, role string) {
	ctx, err := app.sessionManager.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}

	app.sessionManager.Put(ctx, SessionKeyPartyId.String(), partyId)
	if role != "" {
		app.sessionManager.Put(ctx, SessionKeyRole.String(), role)
	}

	token, expiry, err := app.sessionManager.Commit(ctx)
	if err != nil {
		t.Fatalf("Failed to commit session: %v", err)
	}

	r.AddCookie(&http.Cookie{
		Name:    app.sessionManager.Cookie.Name,
		Value:   token,
		Expires: expiry,
	})
}

func executeRequest(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, *http.Request) {
	var reader io.Reader

	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(jsonData)
	}

	r := httptest.NewRequest(method, url, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	return w, r
}

func checkErrorResponse(t *testing.T, w *httptest.ResponseRecorder, tt struct {
	wantStatus     int
	wantErrMessage string
}) {
	if tt.wantStatus >= 200 && tt.wantStatus < 300 {
		return
	}

	switch tt.wantStatus {
	case http.StatusUnprocessableEntity:
		var validationResp api.ValidationErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&validationResp); err != nil {
			t.Fatalf("Failed to decode validation error response: %v", err)
		}

		errorSet := make(map[string]bool)
		for _, vErr := range validationResp.ValidationErrors {
			errorSet[vErr.Issue] = true
		}

		if !errorSet[tt.wantErrMessage] {
			t.Errorf("Expected validation error message '%s' not found in response", tt.wantErrMessage)
		}

	default:
		var errorResp api.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&errorResp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}

		if tt.wantErrMessage != "" && errorResp.Message != tt.wantErrMessage {
			t.Errorf("Error message = %v, want %v", errorResp.Message, tt.wantErrMessage)
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}
