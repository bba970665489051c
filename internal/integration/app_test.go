package integration_test

import (
	"log/slog"
	"os"

	"github.com/alexedwards/scs/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-system/internal/app"
	appvalidator "github.com/metinatakli/seat-reservation-system/internal/validator"
	"github.com/redis/go-redis/v9"
)

type TestApp struct {
	App         *app.Application
	Services    *app.Services
	DB          *pgxpool.Pool
	RedisClient *redis.Client
	Sessions    *scs.SessionManager
}

func newTestApp(cfg app.Config) (*TestApp, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	db, err := app.NewDatabasePool(cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := app.NewRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	services, err := app.NewServices(cfg, logger, db, redisClient)
	if err != nil {
		redisClient.Close()
		db.Close()
		return nil, err
	}

	sessionManager := app.NewSessionManager(redisClient)

	application := app.NewApp(
		cfg,
		logger,
		appvalidator.NewValidator(),
		sessionManager,
		services,
	)

	return &TestApp{
		App:         application,
		Services:    services,
		DB:          db,
		RedisClient: redisClient,
		Sessions:    sessionManager,
	}, nil
}

func (a *TestApp) Close() {
	a.Services.Close()
	a.RedisClient.Close()
	a.DB.Close()
}
