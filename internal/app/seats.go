package app

import (
	"net/http"

	"github.com/metinatakli/seat-reservation-system/api"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
)

// GetSeatLayout serves the seat layout of a showing. Seats the calling party
// holds carry the hold token.
func (app *Application) GetSeatLayout(w http.ResponseWriter, r *http.Request) {
	showingID, err := app.readIDParam(r, "showingId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var layout *domain.SeatLayout

	partyID := app.sessionPartyId(r)
	if partyID > 0 {
		layout, err = app.seatLayouts.GetLayoutFor(r.Context(), showingID, partyID)
	} else {
		layout, err = app.seatLayouts.GetLayout(r.Context(), showingID)
	}
	if err != nil {
		app.seatErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toSeatLayoutResponse(layout), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toSeatLayoutResponse(layout *domain.SeatLayout) api.SeatLayoutResponse {
	seats := make([]api.SeatResponse, len(layout.Seats))

	for i, item := range layout.Seats {
		seat := &seats[i]

		seat.SeatId = item.SeatID
		seat.RowLabel = item.RowLabel
		seat.SeatNo = item.SeatNo
		seat.SeatType = string(item.SeatType)
		seat.Status = string(item.Status)
		seat.HoldExpiresAt = item.HoldExpiresAt
		seat.HeldByMe = item.HeldByCaller

		if item.HeldByCaller && item.HoldToken != "" {
			seat.HoldToken = &item.HoldToken
		}
	}

	return api.SeatLayoutResponse{
		ShowingId: layout.ShowingID,
		Seats:     seats,
	}
}

func (app *Application) HoldSeat(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	showingID, err := app.readIDParam(r, "showingId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	seatID, err := app.readIDParam(r, "seatId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	partyID := app.contextGetPartyId(r)

	result, err := app.seatCommands.Hold(r.Context(), showingID, seatID, partyID)
	if err != nil {
		logger.Info("seat hold rejected",
			"showing_id", showingID,
			"seat_id", seatID,
			"party_id", partyID,
			"error", err)
		app.seatErrorResponse(w, r, err)
		return
	}

	resp := api.HoldResponse{
		HoldToken:  result.Token,
		ExpiresAt:  result.ExpiresAt,
		TtlSeconds: result.TTLSeconds,
	}

	err = app.writeJSON(w, http.StatusCreated, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) ReleaseSeatHold(w http.ResponseWriter, r *http.Request) {
	var input api.ReleaseHoldRequest

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

	err = app.seatCommands.Release(r.Context(), input.ShowingId, input.SeatId, input.HoldToken)
	if err != nil {
		app.seatErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, api.MessageResponse{Message: "seat hold released"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
