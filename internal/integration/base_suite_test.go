package integration_test

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/metinatakli/seat-reservation-system/internal/app"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
)

const (
	dbName         = "seat_reservation"
	dbUser         = "test_user"
	dbPassword     = "test_password"
	dbImageName    = "postgres:17-alpine"
	cacheImageName = "redis:7"
)

type BaseSuite struct {
	suite.Suite
	app            *TestApp
	dbContainer    *PostgresContainer
	cacheContainer *RedisContainer
	server         *httptest.Server
}

func (s *BaseSuite) SetupSuite() {
	ctx := context.Background()

	postgresContainer, err := getDbContainer(ctx)
	if err != nil {
		s.T().Fatalf("failed to start container: %s", err)
	}

	redisContainer, err := getCacheContainer(ctx)
	if err != nil {
		s.T().Fatalf("failed to start container: %s", err)
	}

	s.dbContainer = postgresContainer
	s.cacheContainer = redisContainer

	cfg := app.Config{
		Port: 3000,
		Env:  "test",
		DB: app.DBConfig{
			DSN:          postgresContainer.ConnectionString,
			MaxOpenConns: 25,
			MaxIdleTime:  2 * time.Minute,
		},
		Redis: app.RedisConfig{
			URL:          redisContainer.ConnectionString,
			MaxOpenConns: 10,
			MaxIdleConns: 10,
			MaxIdleTime:  2 * time.Minute,
		},
		Seating: app.SeatingConfig{
			HoldTTL:          TestHoldTTL,
			MaxHoldsPerParty: TestMaxHoldsPerParty,
			LayoutCacheTTL:   time.Minute,
			LockLease:        5 * time.Second,
		},
		Payment: app.PaymentConfig{
			Provider:    "mock",
			FailMethods: []domain.PaymentMethod{domain.PaymentMethodBankTransfer},
		},
	}

	testApp, err := newTestApp(cfg)
	if err != nil {
		s.T().Fatalf("cannot initialize app: %s", err)
	}

	s.app = testApp
	s.server = httptest.NewServer(testApp.App.Routes())
}

func (s *BaseSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.app != nil {
		s.app.Close()
	}
	if s.dbContainer != nil {
		if err := testcontainers.TerminateContainer(s.dbContainer.Container); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}
	if s.cacheContainer != nil {
		if err := testcontainers.TerminateContainer(s.cacheContainer.Container); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}
}

type Scenario struct {
	Name             string
	Method           string
	URL              string
	Body             io.Reader
	Headers          map[string]string
	PartyId          int
	Role             string
	ExpectedStatus   int
	ExpectedResponse string
	BeforeTestFunc   func(t testing.TB, app *TestApp)
	AfterTestFunc    func(t testing.TB, app *TestApp, res *http.Response)
}

func (s Scenario) Run(t *testing.T, testApp *TestApp) {
	t.Run(s.Name, func(t *testing.T) {
		if s.BeforeTestFunc != nil {
			s.BeforeTestFunc(t, testApp)
		}

		req := prepareRequest(s.Method, s.URL, s.Body, s.Headers)
		if s.PartyId != 0 {
			req.AddCookie(sessionCookie(t, testApp, s.PartyId, s.Role))
		}

		rec := httptest.NewRecorder()
		testApp.App.Routes().ServeHTTP(rec, req)

		res := rec.Result()
		defer res.Body.Close()

		assert.Equal(t, s.ExpectedStatus, res.StatusCode)

		if s.ExpectedResponse != "" {
			compareResponse(t, res.Body, s.ExpectedResponse)
		}

		if s.AfterTestFunc != nil {
			s.AfterTestFunc(t, testApp, res)
		}
	})
}

func (s *BaseSuite) serve(req *http.Request) *http.Response {
	rec := httptest.NewRecorder()
	s.app.App.Routes().ServeHTTP(rec, req)

	return rec.Result()
}
