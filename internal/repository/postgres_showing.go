package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
)

type PostgresShowingRepository struct {
	db *pgxpool.Pool
}

func NewPostgresShowingRepository(db *pgxpool.Pool) *PostgresShowingRepository {
	return &PostgresShowingRepository{
		db: db,
	}
}

func (p *PostgresShowingRepository) GetByID(ctx context.Context, id int64) (*domain.Showing, error) {
	query := `
		SELECT id, screen_id, movie_title, start_time, status
		FROM showings
		WHERE id = $1
	`

	var showing domain.Showing

	err := p.db.QueryRow(ctx, query, id).Scan(
		&showing.ID,
		&showing.ScreenID,
		&showing.MovieTitle,
		&showing.StartTime,
		&showing.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &showing, nil
}
