package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/exaring/otelpgx"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-system/internal/booking"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/metinatakli/seat-reservation-system/internal/events"
	"github.com/metinatakli/seat-reservation-system/internal/ratelimit"
	"github.com/metinatakli/seat-reservation-system/internal/seating"
	appvalidator "github.com/metinatakli/seat-reservation-system/internal/validator"
	"github.com/metinatakli/seat-reservation-system/internal/vcs"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var (
	version = vcs.Version()
)

const serviceName = "seat-reservation-api"

type seatCommandService interface {
	Hold(ctx context.Context, showingID, seatID, partyID int64) (*seating.HoldResult, error)
	Release(ctx context.Context, showingID, seatID int64, token string) error
	SetOperatorStatus(ctx context.Context, showingID, seatID int64, status domain.OperatorStatus) error
	OpenShowing(ctx context.Context, showingID int64) (int64, error)
}

type seatLayoutService interface {
	GetLayout(ctx context.Context, showingID int64) (*domain.SeatLayout, error)
	GetLayoutFor(ctx context.Context, showingID, partyID int64) (*domain.SeatLayout, error)
}

type bookingService interface {
	Pay(ctx context.Context, cmd booking.PayCommand) (*booking.PayResult, error)
	Get(ctx context.Context, partyID, reservationID int64) (*domain.Reservation, error)
	Cancel(ctx context.Context, partyID, reservationID int64) error
}

type seatEventSource interface {
	Subscribe(showingID int64) *events.Subscription
}

type Application struct {
	config         Config
	logger         *slog.Logger
	validator      *validator.Validate
	sessionManager *scs.SessionManager

	seatCommands seatCommandService
	seatLayouts  seatLayoutService
	bookings     bookingService
	seatEvents   seatEventSource
	rateLimiter  ratelimit.Limiter

	services    *Services
	streamsDone chan struct{}
}

type Config struct {
	Port             int
	Env              string
	DB               DBConfig
	Redis            RedisConfig
	Seating          SeatingConfig
	Prices           domain.PriceTable
	Payment          PaymentConfig
	AMQP             AMQPConfig
	RateLimit        RateLimitConfig
	OtelCollectorUrl string
}

type DBConfig struct {
	DSN            string
	MaxOpenConns   int
	MaxIdleTime    time.Duration
	MigrationsPath string
}

type RedisConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

type SeatingConfig struct {
	HoldTTL          time.Duration
	MaxHoldsPerParty int
	LayoutCacheTTL   time.Duration
	LockLease        time.Duration
	ReclaimInterval  time.Duration
	PendingGrace     time.Duration
	ResyncInterval   time.Duration
}

type PaymentConfig struct {
	Provider      string
	StripeKey     string
	Currency      string
	PaymentMethod string
	FailMethods   []domain.PaymentMethod
	ChargeTimeout time.Duration
}

type RateLimitConfig struct {
	ReservationPerMinute int
	AdminPerMinute       int
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

func NewApp(
	cfg Config,
	logger *slog.Logger,
	validator *validator.Validate,
	sessionManager *scs.SessionManager,
	services *Services) *Application {

	return &Application{
		config:         cfg,
		logger:         logger,
		validator:      validator,
		sessionManager: sessionManager,
		seatCommands:   services.Commands,
		seatLayouts:    services.Query,
		bookings:       services.Booking,
		seatEvents:     services.Hub,
		rateLimiter:    services.RateLimiter,
		services:       services,
		streamsDone:    make(chan struct{}),
	}
}

func Run() error {
	cfg := parseFlags()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	app := &Application{config: cfg, logger: logger}

	shutdownTelemetry, err := app.InitTelemetry()
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	if cfg.OtelCollectorUrl != "" {
		logger = slog.New(NewMultiHandler(logger.Handler(), otelslog.NewHandler(serviceName)))
	}

	if cfg.DB.MigrationsPath != "" {
		err = RunMigrations(cfg.DB.DSN, cfg.DB.MigrationsPath)
		if err != nil {
			return err
		}
		logger.Info("database migrations applied", "path", cfg.DB.MigrationsPath)
	}

	db, err := NewDatabasePool(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = NewRedisClient(cfg)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	} else {
		logger.Warn("redis url not set, using in-memory coordination store; run a single instance only")
	}

	services, err := NewServices(cfg, logger, db, redisClient)
	if err != nil {
		return err
	}
	defer services.Close()

	app = NewApp(cfg, logger, appvalidator.NewValidator(), NewSessionManager(redisClient), services)

	return app.run()
}

func parseFlags() Config {
	var cfg Config

	flag.IntVar(&cfg.Port, "port", envInt("PORT", 3000), "server port")
	flag.StringVar(&cfg.Env, "env", envString("ENV", "dev"), "Environment (dev|staging|prod)")

	flag.StringVar(&cfg.DB.DSN, "db-dsn", envString("DB_DSN", ""), "PostgreSQL DSN")
	flag.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")
	flag.StringVar(&cfg.DB.MigrationsPath, "db-migrations", envString("DB_MIGRATIONS", ""), "Apply migrations from this source URL at startup (e.g. file://migrations)")

	flag.StringVar(&cfg.Redis.URL, "redis-url", envString("REDIS_URL", ""), "Redis URL")
	flag.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	defaults := seating.DefaultConfig()
	reclaimDefaults := seating.DefaultReclaimerConfig()

	flag.DurationVar(&cfg.Seating.HoldTTL, "hold-ttl", defaults.HoldTTL, "How long a seat hold lasts")
	flag.IntVar(&cfg.Seating.MaxHoldsPerParty, "max-holds-per-party", defaults.MaxHoldsPerParty, "Concurrent holds allowed per party")
	flag.DurationVar(&cfg.Seating.LayoutCacheTTL, "layout-cache-ttl", defaults.LayoutCacheTTL, "Seat layout cache TTL")
	flag.DurationVar(&cfg.Seating.LockLease, "lock-lease", 10*time.Second, "Seat lock lease")
	flag.DurationVar(&cfg.Seating.ReclaimInterval, "reclaim-interval", reclaimDefaults.Interval, "Expired hold sweep interval")
	flag.DurationVar(&cfg.Seating.ResyncInterval, "redis-health-interval", seating.DefaultResyncInterval, "Redis health check interval; holds are resynced when Redis comes back")
	flag.DurationVar(&cfg.Seating.PendingGrace, "pending-grace", reclaimDefaults.PendingGrace, "Age after which an orphaned payment-pending seat is released")

	cfg.Prices = domain.DefaultPriceTable()
	for seatType := range cfg.Prices {
		name := "price-" + strings.ToLower(string(seatType))
		flag.Func(name, fmt.Sprintf("Price of a %s seat (default %s)", seatType, cfg.Prices[seatType]), func(s string) error {
			price, err := decimal.NewFromString(s)
			if err != nil {
				return err
			}
			if !price.IsPositive() {
				return errors.New("price must be positive")
			}

			cfg.Prices[seatType] = price
			return nil
		})
	}

	flag.StringVar(&cfg.Payment.Provider, "payment-provider", envString("PAYMENT_PROVIDER", "mock"), "Payment provider (mock|stripe)")
	flag.StringVar(&cfg.Payment.StripeKey, "stripe-key", envString("STRIPE_KEY", ""), "Stripe secret key")
	flag.StringVar(&cfg.Payment.Currency, "payment-currency", "krw", "Charge currency")
	flag.StringVar(&cfg.Payment.PaymentMethod, "stripe-payment-method", "pm_card_visa", "Stripe payment method used to confirm charges")
	flag.DurationVar(&cfg.Payment.ChargeTimeout, "payment-charge-timeout", booking.DefaultChargeTimeout, "Upper bound of one payment gateway call; kept below -pending-grace")
	flag.Func("payment-fail-methods", "Comma separated pay methods the mock provider declines", func(s string) error {
		for _, method := range strings.Split(s, ",") {
			method = strings.TrimSpace(method)
			if !domain.PaymentMethod(method).IsValid() {
				return fmt.Errorf("unknown pay method %q", method)
			}
			cfg.Payment.FailMethods = append(cfg.Payment.FailMethods, domain.PaymentMethod(method))
		}
		return nil
	})

	flag.StringVar(&cfg.AMQP.URL, "amqp-url", envString("AMQP_URL", ""), "RabbitMQ URL for reservation events")
	flag.StringVar(&cfg.AMQP.Exchange, "amqp-exchange", "reservations", "RabbitMQ exchange for reservation events")

	flag.IntVar(&cfg.RateLimit.ReservationPerMinute, "rate-limit-reservation", 60, "Hold, release, pay and cancel requests allowed per party per minute (0 disables)")
	flag.IntVar(&cfg.RateLimit.AdminPerMinute, "rate-limit-admin", 120, "Admin requests allowed per operator per minute (0 disables)")

	flag.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", envString("OTEL_COLLECTOR_URL", ""), "OpenTelemetry collector gRPC endpoint")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// NewSessionManager shares sessions with the auth service through Redis.
// Without a Redis client sessions are kept in memory.
func NewSessionManager(client *redis.Client) *scs.SessionManager {
	sessionManager := scs.New()

	if client != nil {
		sessionManager.Store = goredisstore.New(client)
	} else {
		sessionManager.Store = memstore.New()
	}
	sessionManager.IdleTimeout = 20 * time.Minute
	sessionManager.Cookie.Name = "session_id"

	return sessionManager
}

func NewRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	err := errors.Join(redisotel.InstrumentTracing(rdb), redisotel.InstrumentMetrics(rdb))
	if err != nil {
		rdb.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = rdb.Ping(ctx).Err()
	if err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

func NewDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) run() error {
	srv := &http.Server{
		Addr:        fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:     app.Routes(),
		IdleTimeout: time.Minute,
		ReadTimeout: 5 * time.Second,
		// seat event streams clear their own write deadline
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	srv.RegisterOnShutdown(func() {
		close(app.streamsDone)
	})

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	err := app.services.Start(bgCtx)
	if err != nil {
		return err
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		app.services.Stop()
		stopBackground()

		shutdownError <- srv.Shutdown(ctx)
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env)

	err = srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}
