package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertPayment(ctx context.Context, q querier, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (
			payment_no,
			reservation_id,
			method,
			amount,
			status,
			transaction_ref,
			paid_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	return q.QueryRow(
		ctx,
		query,
		payment.PaymentNo,
		payment.ReservationID,
		payment.Method,
		payment.Amount,
		payment.Status,
		payment.TransactionRef,
		payment.PaidAt,
	).Scan(&payment.ID, &payment.CreatedAt)
}

func getPaymentByReservationID(ctx context.Context, q querier, reservationID int64) (*domain.Payment, error) {
	query := `
		SELECT
			id,
			payment_no,
			reservation_id,
			method,
			amount,
			status,
			COALESCE(transaction_ref, ''),
			paid_at,
			cancelled_at,
			created_at
		FROM payments
		WHERE reservation_id = $1
	`

	var payment domain.Payment

	err := q.QueryRow(ctx, query, reservationID).Scan(
		&payment.ID,
		&payment.PaymentNo,
		&payment.ReservationID,
		&payment.Method,
		&payment.Amount,
		&payment.Status,
		&payment.TransactionRef,
		&payment.PaidAt,
		&payment.CancelledAt,
		&payment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &payment, nil
}

func cancelPayment(ctx context.Context, q querier, reservationID int64) error {
	query := `
		UPDATE payments
		SET status = 'CANCELLED', cancelled_at = NOW()
		WHERE reservation_id = $1 AND status = 'SUCCESS'
	`

	_, err := q.Exec(ctx, query, reservationID)
	return err
}
