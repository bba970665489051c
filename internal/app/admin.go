package app

import (
	"net/http"

	"github.com/metinatakli/seat-reservation-system/api"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
)

// SetSeatStatus lets an operator block, disable or re-enable a seat.
func (app *Application) SetSeatStatus(w http.ResponseWriter, r *http.Request) {
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

	var input api.SeatStatusRequest

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	status := domain.OperatorStatus(input.Status)

	err = app.seatCommands.SetOperatorStatus(r.Context(), showingID, seatID, status)
	if err != nil {
		app.seatErrorResponse(w, r, err)
		return
	}

	logger.Info("operator changed seat status",
		"showing_id", showingID,
		"seat_id", seatID,
		"status", status,
		"operator_id", app.contextGetPartyId(r))

	err = app.writeJSON(w, http.StatusOK, api.MessageResponse{Message: "seat status updated"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) OpenShowing(w http.ResponseWriter, r *http.Request) {
	showingID, err := app.readIDParam(r, "showingId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	created, err := app.seatCommands.OpenShowing(r.Context(), showingID)
	if err != nil {
		app.seatErrorResponse(w, r, err)
		return
	}

	resp := api.OpenShowingResponse{
		ShowingId:    showingID,
		SeatsCreated: created,
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
