package app

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-system/internal/booking"
	"github.com/metinatakli/seat-reservation-system/internal/broker"
	"github.com/metinatakli/seat-reservation-system/internal/coordination"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/metinatakli/seat-reservation-system/internal/events"
	"github.com/metinatakli/seat-reservation-system/internal/lock"
	"github.com/metinatakli/seat-reservation-system/internal/payment"
	"github.com/metinatakli/seat-reservation-system/internal/ratelimit"
	"github.com/metinatakli/seat-reservation-system/internal/repository"
	"github.com/metinatakli/seat-reservation-system/internal/seating"
	"github.com/redis/go-redis/v9"
)

// Services is the wired seat reservation core plus its background workers.
type Services struct {
	Commands  *seating.CommandService
	Query     *seating.QueryService
	Reclaimer *seating.Reclaimer
	Resync    *seating.HoldResync
	Booking   *booking.Service
	Hub       *events.Hub

	RateLimiter ratelimit.Limiter

	relay    *events.RedisRelay
	notifier domain.ReservationNotifier
	logger   *slog.Logger
}

// NewServices wires the core on top of the database and, when redisClient is
// not nil, Redis. Without Redis every shared concern is served in process.
func NewServices(cfg Config, logger *slog.Logger, db *pgxpool.Pool, redisClient *redis.Client) (*Services, error) {
	seatRepo := repository.NewPostgresSeatRepository(db)
	showingRepo := repository.NewPostgresShowingRepository(db)
	reservationRepo := repository.NewPostgresReservationRepository(db)

	hub := events.NewHub(logger)

	var (
		store       coordination.Store
		lockBackend lock.Backend
		publisher   events.Publisher = hub
		relay       *events.RedisRelay
		limiter     ratelimit.Limiter = ratelimit.NewMemoryLimiter()
		redisStore  *coordination.RedisStore
		failover    *coordination.Failover
	)

	if redisClient != nil {
		redisStore = coordination.NewRedisStore(redisClient)
		failover = coordination.NewFailover(redisStore, coordination.NewMemoryStore(), logger)
		store = failover
		lockBackend = redisStore
		relay = events.NewRedisRelay(redisClient, hub, logger)
		publisher = relay
		limiter = ratelimit.NewFailover(ratelimit.NewRedisLimiter(redisClient), limiter, logger)
	} else {
		memoryStore := coordination.NewMemoryStore()
		store = memoryStore
		lockBackend = memoryStore
	}

	seatingCfg := seating.Config{
		HoldTTL:          cfg.Seating.HoldTTL,
		MaxHoldsPerParty: cfg.Seating.MaxHoldsPerParty,
		LayoutCacheTTL:   cfg.Seating.LayoutCacheTTL,
	}
	defaults := seating.DefaultConfig()
	if seatingCfg.HoldTTL <= 0 {
		seatingCfg.HoldTTL = defaults.HoldTTL
	}
	if seatingCfg.MaxHoldsPerParty <= 0 {
		seatingCfg.MaxHoldsPerParty = defaults.MaxHoldsPerParty
	}
	if seatingCfg.LayoutCacheTTL <= 0 {
		seatingCfg.LayoutCacheTTL = defaults.LayoutCacheTTL
	}

	reclaimerCfg := seating.DefaultReclaimerConfig()
	if cfg.Seating.ReclaimInterval > 0 {
		reclaimerCfg.Interval = cfg.Seating.ReclaimInterval
	}
	if cfg.Seating.PendingGrace > 0 {
		reclaimerCfg.PendingGrace = cfg.Seating.PendingGrace
	}

	chargeTimeout := cfg.Payment.ChargeTimeout
	if chargeTimeout <= 0 {
		chargeTimeout = booking.DefaultChargeTimeout
	}
	if chargeTimeout >= reclaimerCfg.PendingGrace {
		chargeTimeout = reclaimerCfg.PendingGrace / 2
		logger.Warn("payment charge timeout must stay below the pending grace period, lowering it",
			"charge_timeout", chargeTimeout,
			"pending_grace", reclaimerCfg.PendingGrace)
	}

	locks := lock.NewManager(lockBackend, cfg.Seating.LockLease, logger)
	query := seating.NewQueryService(seatRepo, showingRepo, store, seatingCfg.LayoutCacheTTL, logger)
	commands := seating.NewCommandService(seatRepo, showingRepo, store, locks, query, publisher, seatingCfg, logger)
	reclaimer := seating.NewReclaimer(seatRepo, store, query, commands, publisher, reclaimerCfg, logger)

	var resync *seating.HoldResync
	if redisStore != nil {
		resync = seating.NewHoldResync(seatRepo, commands, redisStore, failover, cfg.Seating.ResyncInterval, logger)
	}

	var notifier domain.ReservationNotifier = broker.NewLogNotifier(logger)
	if cfg.AMQP.URL != "" {
		rabbit, err := broker.NewRabbitNotifier(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			return nil, err
		}
		notifier = rabbit
	}

	var gateway domain.PaymentGateway
	switch cfg.Payment.Provider {
	case "stripe":
		if cfg.Payment.StripeKey == "" {
			return nil, errors.New("stripe payment provider requires a secret key")
		}
		gateway = payment.NewStripeGateway(cfg.Payment.StripeKey, cfg.Payment.Currency, cfg.Payment.PaymentMethod)
	case "", "mock":
		gateway = payment.NewMockGateway(cfg.Payment.FailMethods...)
	default:
		return nil, errors.New("unknown payment provider " + cfg.Payment.Provider)
	}

	bookingService := booking.NewService(booking.Deps{
		Seats:         seatRepo,
		Showings:      showingRepo,
		Reservations:  reservationRepo,
		Commands:      commands,
		Layouts:       query,
		Publisher:     publisher,
		Gateway:       gateway,
		Notifier:      notifier,
		Prices:        cfg.Prices,
		ChargeTimeout: chargeTimeout,
	}, logger)

	return &Services{
		Commands:  commands,
		Query:     query,
		Reclaimer: reclaimer,
		Resync:    resync,
		Booking:   bookingService,
		Hub:       hub,

		RateLimiter: limiter,

		relay:    relay,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Start launches the hold reclaimer and, with Redis, the hold resync and the
// seat event relay. They stop when ctx is cancelled.
func (s *Services) Start(ctx context.Context) error {
	err := s.Reclaimer.Start(ctx)
	if err != nil {
		return err
	}

	if s.Resync != nil {
		err = s.Resync.Start(ctx)
		if err != nil {
			s.Reclaimer.Stop()
			return err
		}
	}

	if s.relay != nil {
		go func() {
			err := s.relay.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("seat event relay stopped", "error", err)
			}
		}()
	}

	return nil
}

func (s *Services) Stop() {
	s.Reclaimer.Stop()

	if s.Resync != nil {
		s.Resync.Stop()
	}
}

func (s *Services) Close() error {
	if closer, ok := s.notifier.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}
