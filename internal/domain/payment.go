package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSuccess   PaymentStatus = "SUCCESS"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodKakaoPay     PaymentMethod = "KAKAO_PAY"
	PaymentMethodNaverPay     PaymentMethod = "NAVER_PAY"
	PaymentMethodToss         PaymentMethod = "TOSS"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

var PaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodKakaoPay,
	PaymentMethodNaverPay,
	PaymentMethodToss,
	PaymentMethodBankTransfer,
}

func (m PaymentMethod) IsValid() bool {
	for _, method := range PaymentMethods {
		if m == method {
			return true
		}
	}

	return false
}

type Payment struct {
	ID             int64
	PaymentNo      string
	ReservationID  int64
	Method         PaymentMethod
	Amount         decimal.Decimal
	Status         PaymentStatus
	TransactionRef string
	PaidAt         *time.Time
	CancelledAt    *time.Time
	CreatedAt      time.Time
}

// NewSuccessfulPayment records an approved charge. Amount is the reservation total at creation.
func NewSuccessfulPayment(method PaymentMethod, amount decimal.Decimal, result *ChargeResult) *Payment {
	paidAt := result.ApprovedAt

	return &Payment{
		PaymentNo:      GenerateNumber("P"),
		Method:         method,
		Amount:         amount,
		Status:         PaymentStatusSuccess,
		TransactionRef: result.TransactionRef,
		PaidAt:         &paidAt,
	}
}

type ChargeRequest struct {
	Reference string
	PartyID   int64
	Amount    decimal.Decimal
	Method    PaymentMethod
}

type ChargeResult struct {
	TransactionRef string
	ApprovedAt     time.Time
}

// PaymentGateway charges a party. A declined charge returns an error wrapping
// ErrPaymentFailed. Any other error leaves the outcome of the charge unknown.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	// Refund returns an approved charge in full.
	Refund(ctx context.Context, transactionRef string) error
}
