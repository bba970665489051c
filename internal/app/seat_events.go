package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/metinatakli/seat-reservation-system/internal/events"
)

const (
	seatEventPingInterval = 15 * time.Second
	seatEventStreamLimit  = 30 * time.Minute
)

// StreamSeatEvents keeps a server-sent event stream open and writes one event
// per seat change of the showing. Clients reconnect after the stream limit.
func (app *Application) StreamSeatEvents(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	showingID, err := app.readIDParam(r, "showingId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	rc := http.NewResponseController(w)

	err = rc.SetWriteDeadline(time.Time{})
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		app.serverErrorResponse(w, r, err)
		return
	}

	sub := app.seatEvents.Subscribe(showingID)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, "retry: 3000\n\n")
	if err := rc.Flush(); err != nil {
		logger.Warn("seat event stream cannot be flushed", "error", err)
		return
	}

	ping := time.NewTicker(seatEventPingInterval)
	defer ping.Stop()

	limit := time.NewTimer(seatEventStreamLimit)
	defer limit.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-app.streamsDone:
			return
		case <-limit.C:
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
		case change, ok := <-sub.Events():
			if !ok {
				logger.Warn("seat event subscriber fell behind, closing stream", "showing_id", showingID)
				return
			}

			err = writeSeatEvent(w, change)
			if err != nil {
				logger.Error("failed to encode seat event", "error", err)
				return
			}
		}

		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSeatEvent(w http.ResponseWriter, change events.SeatChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", change.EventID, events.EventName, payload)
	return err
}
