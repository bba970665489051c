package integration_test

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/metinatakli/seat-reservation-system/internal/app"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresContainer struct {
	Container        *postgres.PostgresContainer
	ConnectionString string
}

type RedisContainer struct {
	Container        *tcredis.RedisContainer
	ConnectionString string
}

func getDbContainer(ctx context.Context) (*PostgresContainer, error) {
	container, err := postgres.Run(ctx, dbImageName,
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
				wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
					return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
						dbUser, dbPassword, host, port.Port(), dbName)
				}),
			).WithDeadline(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start DB container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	err = app.RunMigrations(connStr, "file://../../migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresContainer{
		Container:        container,
		ConnectionString: connStr,
	}, nil
}

func getCacheContainer(ctx context.Context) (*RedisContainer, error) {
	container, err := tcredis.Run(ctx, cacheImageName)
	if err != nil {
		return nil, fmt.Errorf("failed to start cache container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &RedisContainer{
		Container:        container,
		ConnectionString: fmt.Sprintf("%s:%s", host, port.Port()),
	}, nil
}
