package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
)

type PostgresSeatRepository struct {
	db *pgxpool.Pool
}

func NewPostgresSeatRepository(db *pgxpool.Pool) *PostgresSeatRepository {
	return &PostgresSeatRepository{
		db: db,
	}
}

const selectShowingSeat = `
	SELECT
		ss.showing_id,
		ss.seat_id,
		s.row_label,
		s.seat_no,
		s.seat_type,
		ss.status,
		ss.hold_token,
		ss.hold_party_id,
		ss.hold_expires_at,
		ss.reserved_party_id,
		ss.created_at,
		ss.updated_at
	FROM showing_seats ss
	JOIN seats s ON ss.seat_id = s.id
`

func scanShowingSeat(row pgx.Row, seat *domain.ShowingSeat) error {
	return row.Scan(
		&seat.ShowingID,
		&seat.SeatID,
		&seat.RowLabel,
		&seat.SeatNo,
		&seat.Type,
		&seat.Status,
		&seat.HoldToken,
		&seat.HoldPartyID,
		&seat.HoldExpiresAt,
		&seat.ReservedPartyID,
		&seat.CreatedAt,
		&seat.UpdatedAt,
	)
}

func (p *PostgresSeatRepository) Get(ctx context.Context, showingID, seatID int64) (*domain.ShowingSeat, error) {
	query := selectShowingSeat + `WHERE ss.showing_id = $1 AND ss.seat_id = $2`

	var seat domain.ShowingSeat

	err := scanShowingSeat(p.db.QueryRow(ctx, query, showingID, seatID), &seat)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &seat, nil
}

func (p *PostgresSeatRepository) ListByShowing(ctx context.Context, showingID int64) ([]domain.ShowingSeat, error) {
	query := selectShowingSeat + `
		WHERE ss.showing_id = $1
		ORDER BY s.row_label, s.seat_no
	`

	rows, err := p.db.Query(ctx, query, showingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.ShowingSeat, 0)

	for rows.Next() {
		var seat domain.ShowingSeat

		err = scanShowingSeat(rows, &seat)
		if err != nil {
			return nil, err
		}

		seats = append(seats, seat)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return seats, nil
}

func (p *PostgresSeatRepository) Update(ctx context.Context, seat *domain.ShowingSeat) error {
	query := `
		UPDATE showing_seats
		SET
			status = $3,
			hold_token = $4,
			hold_party_id = $5,
			hold_expires_at = $6,
			reserved_party_id = $7,
			updated_at = NOW()
		WHERE showing_id = $1 AND seat_id = $2
		RETURNING updated_at
	`

	err := p.db.QueryRow(
		ctx,
		query,
		seat.ShowingID,
		seat.SeatID,
		seat.Status,
		seat.HoldToken,
		seat.HoldPartyID,
		seat.HoldExpiresAt,
		seat.ReservedPartyID,
	).Scan(&seat.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRecordNotFound
		}

		return err
	}

	return nil
}

// CreateForShowing inserts an AVAILABLE record for every physical seat of the
// showing's screen. Seats that already have a record are skipped.
func (p *PostgresSeatRepository) CreateForShowing(ctx context.Context, showingID int64) (int64, error) {
	query := `
		INSERT INTO showing_seats (showing_id, seat_id, status)
		SELECT sh.id, s.id, 'AVAILABLE'
		FROM showings sh
		JOIN seats s ON s.screen_id = sh.screen_id
		WHERE sh.id = $1
		ON CONFLICT (showing_id, seat_id) DO NOTHING
	`

	tag, err := p.db.Exec(ctx, query, showingID)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (p *PostgresSeatRepository) FindExpiredHolds(ctx context.Context, now time.Time) ([]domain.ExpiredHold, error) {
	query := `
		SELECT showing_id, seat_id, hold_token
		FROM showing_seats
		WHERE status = 'HOLD' AND hold_expires_at <= $1
	`

	rows, err := p.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holds := make([]domain.ExpiredHold, 0)

	for rows.Next() {
		var hold domain.ExpiredHold

		err = rows.Scan(&hold.ShowingID, &hold.SeatID, &hold.HoldToken)
		if err != nil {
			return nil, err
		}

		holds = append(holds, hold)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return holds, nil
}

func (p *PostgresSeatRepository) ListLiveHolds(ctx context.Context, now time.Time) ([]domain.LiveHold, error) {
	query := `
		SELECT showing_id, seat_id, hold_token, hold_party_id, hold_expires_at
		FROM showing_seats
		WHERE status = 'HOLD'
			AND hold_token IS NOT NULL
			AND hold_party_id IS NOT NULL
			AND hold_expires_at > $1
		ORDER BY showing_id, seat_id
	`

	rows, err := p.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holds := make([]domain.LiveHold, 0)

	for rows.Next() {
		var hold domain.LiveHold

		err = rows.Scan(&hold.ShowingID, &hold.SeatID, &hold.HoldToken, &hold.PartyID, &hold.ExpiresAt)
		if err != nil {
			return nil, err
		}

		holds = append(holds, hold)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return holds, nil
}

// ReleaseExpiredHolds flips every expired hold to AVAILABLE in one statement.
// The status condition is re-checked so a seat paid for meanwhile is left alone.
func (p *PostgresSeatRepository) ReleaseExpiredHolds(ctx context.Context, now time.Time) ([]domain.SeatRef, error) {
	query := `
		UPDATE showing_seats
		SET
			status = 'AVAILABLE',
			hold_token = NULL,
			hold_party_id = NULL,
			hold_expires_at = NULL,
			updated_at = NOW()
		WHERE status = 'HOLD' AND hold_expires_at <= $1
		RETURNING showing_id, seat_id
	`

	rows, err := p.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	released := make([]domain.SeatRef, 0)

	for rows.Next() {
		var ref domain.SeatRef

		err = rows.Scan(&ref.ShowingID, &ref.SeatID)
		if err != nil {
			return nil, err
		}

		released = append(released, ref)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return released, nil
}

// FindStranded lists payment-pending seats and reserved seats of cancelled
// reservations, each with the latest reservation that booked it.
func (p *PostgresSeatRepository) FindStranded(ctx context.Context) ([]domain.StrandedSeat, error) {
	query := `
		SELECT ss.showing_id, ss.seat_id, ss.status, r.party_id, r.status, ss.updated_at
		FROM showing_seats ss
		LEFT JOIN LATERAL (
			SELECT res.party_id, res.status
			FROM reservation_seats rs
			JOIN reservations res ON rs.reservation_id = res.id
			WHERE rs.showing_id = ss.showing_id AND rs.seat_id = ss.seat_id
			ORDER BY res.created_at DESC
			LIMIT 1
		) r ON TRUE
		WHERE ss.status = 'PAYMENT_PENDING'
			OR (ss.status = 'RESERVED' AND r.status = 'CANCELLED')
	`

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stranded := make([]domain.StrandedSeat, 0)

	for rows.Next() {
		var seat domain.StrandedSeat
		var reservationStatus *string

		err = rows.Scan(
			&seat.ShowingID,
			&seat.SeatID,
			&seat.Status,
			&seat.PartyID,
			&reservationStatus,
			&seat.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if reservationStatus != nil {
			status := domain.ReservationStatus(*reservationStatus)
			seat.ReservationStatus = &status
		}

		stranded = append(stranded, seat)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return stranded, nil
}
