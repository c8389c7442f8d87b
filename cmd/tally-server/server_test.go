package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/app"
	"github.com/bobmcallan/tally/internal/server"
)

// testServer creates an httptest.Server with the full tally-server handler
// over a sqlite store in a temp dir.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	a, err := app.NewApp(writeTestConfig(t))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	ts := httptest.NewServer(server.NewServer(a).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthEndpoint(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestVersionEndpoint(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/api/version")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["version"])
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Post(ts.URL+"/api/health", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// TestExpenseRoundTrip_SQLite drives a balance-moving write through the
// sqlite backend end to end.
func TestExpenseRoundTrip_SQLite(t *testing.T) {
	ts := testServer(t)

	send := func(method, path, body string) *http.Response {
		req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(server.UserIDHeader, "alice")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := send(http.MethodPost, "/api/cash/deposit", `{"amount":"500"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = send(http.MethodPost, "/api/expenses", `{"amount":"120.50","category":"Rent","date":"2024-03-01","paymentMode":"Cash"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = send(http.MethodGet, "/api/cash", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var wallet struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wallet))
	assert.Equal(t, "379.5", wallet.Balance)
}

// --- test helpers ---

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	config := `
[storage]
backend = "sqlite"

[storage.sqlite]
path = "` + filepath.Join(dir, "tally.db") + `"

[logging]
level = "disabled"
`
	configPath := filepath.Join(dir, "tally.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))
	return configPath
}
