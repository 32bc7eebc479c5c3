package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/gdestore/backend/internal/auth"
	"github.com/gdestore/backend/internal/ledger"
	"github.com/gdestore/backend/internal/ratelimit"
	"github.com/gdestore/backend/internal/storage/sqlite"
)

type testEnv struct {
	server *httptest.Server
	store  *sqlite.Store
}

// newTestEnv wires all handlers over an in-memory SQLite store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	engine := ledger.New(store)
	tokens := auth.NewTokenManager("test-secret", "test", time.Hour)
	limiter := ratelimit.New(100, time.Minute)

	mux := http.NewServeMux()
	NewHealthHandler(time.Now()).Register(mux)
	NewAuthHandler(store, engine, tokens, limiter, log).Register(mux)
	NewGamesHandler(store, engine, log).Register(mux)
	NewAdminHandler(store, engine, log).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{server: server, store: store}
}

// do sends a JSON request and decodes the JSON response into a generic map
// (or slice, via out).
func (e *testEnv) do(t *testing.T, method, path string, payload any, out any) int {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newLocalServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, payload any) int {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

// registerUser creates an account through the register endpoint and returns
// its id.
func (e *testEnv) registerUser(t *testing.T, email, username string) int64 {
	t.Helper()
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	status := e.do(t, http.MethodPost, "/auth", map[string]any{
		"action":   "register",
		"email":    email,
		"password": "secret-password",
		"username": username,
	}, &out)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, out.Token)
	return out.User.ID
}
