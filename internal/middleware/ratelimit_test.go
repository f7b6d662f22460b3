package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/livefeed/backend/internal/auth"
)

func newTestLimiter(burst int) (*RateLimiter, *time.Time) {
	log, _ := test.NewNullLogger()
	rl := NewRateLimiter(1, burst, log)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func serve(h http.Handler, remote string, ac auth.AuthContext) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	req = req.WithContext(auth.WithContext(req.Context(), ac))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl, clock := newTestLimiter(2)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1000", auth.Anonymous).Code)
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1001", auth.Anonymous).Code)

	rec := serve(h, "10.0.0.1:1002", auth.Anonymous)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, http.StatusTooManyRequests, body["status"])
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.2:1000", auth.Anonymous).Code, "other ip has its own bucket")
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1003", auth.AuthContext{UserID: "u1"}).Code, "users are keyed by id")

	*clock = clock.Add(time.Second)
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1004", auth.Anonymous).Code, "bucket refills")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl, clock := newTestLimiter(1)
	rl.allow("ip:a")
	*clock = clock.Add(time.Minute)
	rl.allow("ip:b")

	rl.Cleanup(30 * time.Second)
	assert.Equal(t, 1, rl.Size())
}
