// Package api holds the request and response bodies of the HTTP API.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	RequestId        string            `json:"requestId"`
	Timestamp        time.Time         `json:"timestamp"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type SeatLayoutResponse struct {
	ShowingId int64          `json:"showingId"`
	Seats     []SeatResponse `json:"seats"`
}

type SeatResponse struct {
	SeatId        int64      `json:"seatId"`
	RowLabel      string     `json:"rowLabel"`
	SeatNo        int        `json:"seatNo"`
	SeatType      string     `json:"seatType"`
	Status        string     `json:"status"`
	HoldExpiresAt *time.Time `json:"holdExpiresAt,omitempty"`
	HoldToken     *string    `json:"holdToken,omitempty"`
	HeldByMe      bool       `json:"heldByMe"`
}

type HoldResponse struct {
	HoldToken  string    `json:"holdToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
	TtlSeconds int64     `json:"ttlSeconds"`
}

type ReleaseHoldRequest struct {
	ShowingId int64  `json:"showingId" validate:"required,gt=0"`
	SeatId    int64  `json:"seatId" validate:"required,gt=0"`
	HoldToken string `json:"holdToken" validate:"required,uuid"`
}

type SeatHoldItem struct {
	SeatId    int64  `json:"seatId" validate:"required,gt=0"`
	HoldToken string `json:"holdToken" validate:"required,uuid"`
}

type PayRequest struct {
	ShowingId     int64          `json:"showingId" validate:"required,gt=0"`
	SeatHoldItems []SeatHoldItem `json:"seatHoldItems" validate:"required,min=1,max=10,dive"`
	PayMethod     string         `json:"payMethod" validate:"required,pay_method"`
}

type PayResponse struct {
	ReservationId int64           `json:"reservationId"`
	ReservationNo string          `json:"reservationNo"`
	TotalSeats    int             `json:"totalSeats"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

type ReservationResponse struct {
	Id            int64                     `json:"id"`
	ReservationNo string                    `json:"reservationNo"`
	ShowingId     int64                     `json:"showingId"`
	Status        string                    `json:"status"`
	TotalSeats    int                       `json:"totalSeats"`
	TotalAmount   decimal.Decimal           `json:"totalAmount"`
	Seats         []ReservationSeatResponse `json:"seats"`
	Payment       *PaymentResponse          `json:"payment,omitempty"`
	CreatedAt     time.Time                 `json:"createdAt"`
	CancelledAt   *time.Time                `json:"cancelledAt,omitempty"`
}

type ReservationSeatResponse struct {
	SeatId int64           `json:"seatId"`
	Price  decimal.Decimal `json:"price"`
}

type PaymentResponse struct {
	PaymentNo      string          `json:"paymentNo"`
	Method         string          `json:"method"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	TransactionRef string          `json:"transactionRef"`
	PaidAt         *time.Time      `json:"paidAt,omitempty"`
	CancelledAt    *time.Time      `json:"cancelledAt,omitempty"`
}

type SeatStatusRequest struct {
	Status string `json:"status" validate:"required,operator_status"`
}

type OpenShowingResponse struct {
	ShowingId    int64 `json:"showingId"`
	SeatsCreated int64 `json:"seatsCreated"`
}
