package app

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/seat-reservation-system/api"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
	appvalidator "github.com/metinatakli/seat-reservation-system/internal/validator"
)

const ErrInternalServer = "The server encountered a problem and could not process your request"

func (app *Application) logError(r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.contextGetLogger(r).Error(err.Error(), "method", method, "uri", uri)
}

// The errorResponse() method is a generic helper for sending JSON-formatted error
// messages to the client with a given status code.
func (app *Application) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	resp := api.ErrorResponse{
		Message:   message,
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
	}

	err := app.writeJSON(w, status, resp, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

func (app *Application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)
	app.errorResponse(w, r, http.StatusInternalServerError, ErrInternalServer)
}

func (app *Application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "The requested resource not found"
	app.errorResponse(w, r, http.StatusNotFound, message)
}

func (app *Application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	message := fmt.Sprintf("the %s method is not supported for this resource", r.Method)
	app.errorResponse(w, r, http.StatusMethodNotAllowed, message)
}

func (app *Application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (app *Application) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusConflict, err.Error())
}

func (app *Application) editConflictResponse(w http.ResponseWriter, r *http.Request) {
	message := "unable to update the record due to an edit conflict, please try again"
	app.errorResponse(w, r, http.StatusConflict, message)
}

func (app *Application) unauthorizedAccessResponse(w http.ResponseWriter, r *http.Request) {
	message := "You must be authenticated to access this resource"
	app.errorResponse(w, r, http.StatusUnauthorized, message)
}

func (app *Application) forbiddenResponse(w http.ResponseWriter, r *http.Request, message string) {
	app.errorResponse(w, r, http.StatusForbidden, message)
}

func (app *Application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	seconds := int64(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))

	message := "Too many requests, please try again later"
	app.errorResponse(w, r, http.StatusTooManyRequests, message)
}

func (app *Application) validationErrorResponse(w http.ResponseWriter, r *http.Request, errs []api.ValidationError) {
	resp := api.ValidationErrorResponse{
		Message:          "One or more fields are invalid",
		RequestId:        middleware.GetReqID(r.Context()),
		Timestamp:        time.Now(),
		ValidationErrors: errs,
	}

	err := app.writeJSON(w, http.StatusUnprocessableEntity, resp, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

func (app *Application) failedValidationResponse(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		app.badRequestResponse(w, r, err)
		return
	}

	errs := make([]api.ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		errs[i] = api.ValidationError{
			Field: fieldErr.Field(),
			Issue: appvalidator.ValidationMessage(fieldErr),
		}
	}

	app.validationErrorResponse(w, r, errs)
}

// seatErrorResponse maps errors of the seat and booking services onto HTTP
// statuses. The message carries the showing and seat the failure refers to.
func (app *Application) seatErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		app.notFoundResponse(w, r)
	case errors.Is(err, domain.ErrLockNotAcquired),
		errors.Is(err, domain.ErrInvalidSeatTransition),
		errors.Is(err, domain.ErrHoldLost),
		errors.Is(err, domain.ErrReservationNotCancellable):
		app.conflictResponse(w, r, err)
	case errors.Is(err, domain.ErrEditConflict):
		app.editConflictResponse(w, r)
	case errors.Is(err, domain.ErrInvalidHoldToken),
		errors.Is(err, domain.ErrShowingNotBookable),
		errors.Is(err, domain.ErrPaymentFailed):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, domain.ErrNotReservationOwner):
		app.forbiddenResponse(w, r, err.Error())
	case errors.Is(err, domain.ErrHoldLimitExceeded):
		app.validationErrorResponse(w, r, []api.ValidationError{{Field: "seatId", Issue: err.Error()}})
	case errors.Is(err, domain.ErrNoSeatsSelected), errors.Is(err, domain.ErrDuplicateSeat):
		app.validationErrorResponse(w, r, []api.ValidationError{{Field: "seatHoldItems", Issue: err.Error()}})
	case errors.Is(err, domain.ErrUnknownOperatorStatus):
		app.validationErrorResponse(w, r, []api.ValidationError{{Field: "status", Issue: err.Error()}})
	default:
		app.serverErrorResponse(w, r, err)
	}
}
