package app

import "net/http"

type sessionKey string

// Sessions are written by the auth service. This service only reads them.
const (
	SessionKeyPartyId = sessionKey("partyID")
	SessionKeyRole    = sessionKey("role")
)

const RoleOperator = "operator"

func (s sessionKey) String() string {
	return string(s)
}

func (app *Application) contextGetPartyId(r *http.Request) int64 {
	partyId, ok := r.Context().Value(SessionKeyPartyId).(int64)
	if !ok {
		panic("missing party id from context")
	}

	return partyId
}

// sessionPartyId returns the party of the session, or zero for anonymous callers.
func (app *Application) sessionPartyId(r *http.Request) int64 {
	return int64(app.sessionManager.GetInt(r.Context(), SessionKeyPartyId.String()))
}
