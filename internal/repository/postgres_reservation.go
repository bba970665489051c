package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/shopspring/decimal"
)

type PostgresReservationRepository struct {
	db *pgxpool.Pool
}

func NewPostgresReservationRepository(db *pgxpool.Pool) *PostgresReservationRepository {
	return &PostgresReservationRepository{
		db: db,
	}
}

// CreateConfirmed stores the reservation, its seat price snapshot and the
// successful payment in one transaction.
func (p *PostgresReservationRepository) CreateConfirmed(
	ctx context.Context,
	reservation *domain.Reservation,
	payment *domain.Payment) error {

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO reservations (
				reservation_no,
				party_id,
				showing_id,
				status,
				total_seats,
				total_amount
			)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(
			ctx,
			query,
			reservation.ReservationNo,
			reservation.PartyID,
			reservation.ShowingID,
			reservation.Status,
			reservation.TotalSeats,
			reservation.TotalAmount,
		).Scan(&reservation.ID, &reservation.CreatedAt, &reservation.UpdatedAt)

		if err != nil {
			return err
		}

		rows := make([][]any, 0, len(reservation.Seats))
		for i := range reservation.Seats {
			seat := &reservation.Seats[i]
			seat.ReservationID = reservation.ID

			rows = append(rows, []any{
				seat.ReservationID,
				seat.ShowingID,
				seat.SeatID,
				numeric(seat.Price),
			})
		}

		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"reservation_seats"},
			[]string{"reservation_id", "showing_id", "seat_id", "price"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return err
		}

		payment.ReservationID = reservation.ID

		return insertPayment(ctx, tx, payment)
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrEditConflict
		}

		return err
	}

	reservation.Payment = payment

	return nil
}

// numeric converts d for the binary COPY protocol.
func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func runInTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	var txOptions pgx.TxOptions

	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err == nil {
		return tx.Commit(ctx)
	}

	rollbackErr := tx.Rollback(ctx)
	if rollbackErr != nil {
		return errors.Join(err, rollbackErr)
	}

	return err
}

func (p *PostgresReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	query := `
		SELECT
			id,
			reservation_no,
			party_id,
			showing_id,
			status,
			total_seats,
			total_amount,
			created_at,
			updated_at,
			cancelled_at
		FROM reservations
		WHERE id = $1
	`

	var reservation domain.Reservation

	err := p.db.QueryRow(ctx, query, id).Scan(
		&reservation.ID,
		&reservation.ReservationNo,
		&reservation.PartyID,
		&reservation.ShowingID,
		&reservation.Status,
		&reservation.TotalSeats,
		&reservation.TotalAmount,
		&reservation.CreatedAt,
		&reservation.UpdatedAt,
		&reservation.CancelledAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	seats, err := p.retrieveReservationSeats(ctx, id)
	if err != nil {
		return nil, err
	}

	payment, err := getPaymentByReservationID(ctx, p.db, id)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, err
	}

	reservation.Seats = seats
	reservation.Payment = payment

	return &reservation, nil
}

func (p *PostgresReservationRepository) retrieveReservationSeats(
	ctx context.Context,
	reservationID int64) ([]domain.ReservationSeat, error) {

	query := `
		SELECT reservation_id, showing_id, seat_id, price
		FROM reservation_seats
		WHERE reservation_id = $1
		ORDER BY seat_id
	`

	rows, err := p.db.Query(ctx, query, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.ReservationSeat, 0)

	for rows.Next() {
		var seat domain.ReservationSeat

		err := rows.Scan(
			&seat.ReservationID,
			&seat.ShowingID,
			&seat.SeatID,
			&seat.Price,
		)
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

// Cancel marks a confirmed reservation and its payment cancelled.
func (p *PostgresReservationRepository) Cancel(ctx context.Context, id int64) error {
	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE reservations
			SET status = 'CANCELLED', cancelled_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = 'CONFIRMED'
		`

		tag, err := tx.Exec(ctx, query, id)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			var exists bool

			err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id = $1)`, id).Scan(&exists)
			if err != nil {
				return err
			}

			if !exists {
				return domain.ErrRecordNotFound
			}

			return domain.ErrReservationNotCancellable
		}

		return cancelPayment(ctx, tx, id)
	})
}
