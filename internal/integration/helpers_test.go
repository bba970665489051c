package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-system/internal/app"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var keysToIgnore = map[string]struct{}{
	"timestamp":     {},
	"requestId":     {},
	"createdAt":     {},
	"holdExpiresAt": {},
}

func prepareRequest(method, path string, body io.Reader, headers map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, body)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// sessionCookie stores a session for the party in the shared session store,
// the way the auth service does, and returns its cookie.
func sessionCookie(t testing.TB, testApp *TestApp, partyId int, role string) *http.Cookie {
	t.Helper()

	ctx, err := testApp.Sessions.Load(context.Background(), "")
	require.NoError(t, err)

	testApp.Sessions.Put(ctx, app.SessionKeyPartyId.String(), partyId)
	if role != "" {
		testApp.Sessions.Put(ctx, app.SessionKeyRole.String(), role)
	}

	token, expiry, err := testApp.Sessions.Commit(ctx)
	require.NoError(t, err)

	return &http.Cookie{
		Name:    testApp.Sessions.Cookie.Name,
		Value:   token,
		Expires: expiry,
	}
}

func jsonBody(t testing.TB, v any) io.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return strings.NewReader(string(data))
}

func compareResponse(t *testing.T, body io.Reader, expectedResponse string) {
	var actual map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&actual))

	cleanMap(actual)

	var expected map[string]any
	require.NoError(t, json.Unmarshal([]byte(expectedResponse), &expected))

	opts := cmpopts.IgnoreMapEntries(func(k string, _ any) bool {
		_, ok := keysToIgnore[k]
		return ok
	})

	if diff := cmp.Diff(expected, actual, opts); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func cleanMap(m map[string]any) {
	for k, v := range m {
		if _, ok := keysToIgnore[k]; ok {
			delete(m, k)
			continue
		}

		switch nested := v.(type) {
		case map[string]any:
			cleanMap(nested)
		case []any:
			for _, item := range nested {
				if itemMap, ok := item.(map[string]any); ok {
					cleanMap(itemMap)
				}
			}
		}
	}
}

func executeSQLFile(t testing.TB, db *pgxpool.Pool, path string) {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = db.Exec(context.Background(), string(content))
	require.NoError(t, err)
}

func flushAllCache(t testing.TB, client *redis.Client) {
	t.Helper()

	require.NoError(t, client.FlushAll(context.Background()).Err())
}

// setupSeatingState resets both stores to the fixture showings of testdata/seating_up.sql.
func setupSeatingState(t testing.TB, testApp *TestApp) {
	t.Helper()

	executeSQLFile(t, testApp.DB, "testdata/seating_down.sql")
	flushAllCache(t, testApp.RedisClient)

	executeSQLFile(t, testApp.DB, "testdata/seating_up.sql")
}

func seatStatus(t testing.TB, db *pgxpool.Pool, showingId, seatId int64) string {
	t.Helper()

	var status string
	err := db.QueryRow(context.Background(),
		`SELECT status FROM showing_seats WHERE showing_id = $1 AND seat_id = $2`,
		showingId, seatId).Scan(&status)
	require.NoError(t, err)

	return status
}
