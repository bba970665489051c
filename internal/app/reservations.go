package app

import (
	"net/http"

	"github.com/metinatakli/seat-reservation-system/api"
	"github.com/metinatakli/seat-reservation-system/internal/booking"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
)

func (app *Application) PayReservation(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	var input api.PayRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	partyID := app.contextGetPartyId(r)

	items := make([]booking.SeatHoldItem, len(input.SeatHoldItems))
	for i, item := range input.SeatHoldItems {
		items[i] = booking.SeatHoldItem{SeatID: item.SeatId, HoldToken: item.HoldToken}
	}

	result, err := app.bookings.Pay(r.Context(), booking.PayCommand{
		PartyID:   partyID,
		ShowingID: input.ShowingId,
		Items:     items,
		Method:    domain.PaymentMethod(input.PayMethod),
	})
	if err != nil {
		logger.Info("payment rejected", "showing_id", input.ShowingId, "party_id", partyID, "error", err)
		app.seatErrorResponse(w, r, err)
		return
	}

	resp := api.PayResponse{
		ReservationId: result.ReservationID,
		ReservationNo: result.ReservationNo,
		TotalSeats:    result.TotalSeats,
		TotalAmount:   result.TotalAmount,
	}

	err = app.writeJSON(w, http.StatusCreated, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetReservation(w http.ResponseWriter, r *http.Request) {
	reservationID, err := app.readIDParam(r, "reservationId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	reservation, err := app.bookings.Get(r.Context(), app.contextGetPartyId(r), reservationID)
	if err != nil {
		app.seatErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toReservationResponse(reservation), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CancelReservation(w http.ResponseWriter, r *http.Request) {
	reservationID, err := app.readIDParam(r, "reservationId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.bookings.Cancel(r.Context(), app.contextGetPartyId(r), reservationID)
	if err != nil {
		app.seatErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, api.MessageResponse{Message: "reservation cancelled"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toReservationResponse(reservation *domain.Reservation) api.ReservationResponse {
	seats := make([]api.ReservationSeatResponse, len(reservation.Seats))
	for i, seat := range reservation.Seats {
		seats[i] = api.ReservationSeatResponse{
			SeatId: seat.SeatID,
			Price:  seat.Price,
		}
	}

	resp := api.ReservationResponse{
		Id:            reservation.ID,
		ReservationNo: reservation.ReservationNo,
		ShowingId:     reservation.ShowingID,
		Status:        string(reservation.Status),
		TotalSeats:    reservation.TotalSeats,
		TotalAmount:   reservation.TotalAmount,
		Seats:         seats,
		CreatedAt:     reservation.CreatedAt,
		CancelledAt:   reservation.CancelledAt,
	}

	if p := reservation.Payment; p != nil {
		resp.Payment = &api.PaymentResponse{
			PaymentNo:      p.PaymentNo,
			Method:         string(p.Method),
			Amount:         p.Amount,
			Status:         string(p.Status),
			TransactionRef: p.TransactionRef,
			PaidAt:         p.PaidAt,
			CancelledAt:    p.CancelledAt,
		}
	}

	return resp
}
