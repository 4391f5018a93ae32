package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/sitevisit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDevice(t *testing.T) (envFile string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sitevisit.EventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		id := req.SessionID
		if req.Event == sitevisit.EventOfficeLogout {
			id = "abc123"
		}
		_ = json.NewEncoder(w).Encode(sitevisit.EventResponse{Success: true, SessionID: id})
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("API_BASE_URL", srv.URL)
	t.Setenv("API_TOKEN", "")
	t.Setenv("USER_ID", "EMP001")
	t.Setenv("USER_EMAIL", "")
	t.Setenv("DEVICE_STORE", "file")
	t.Setenv("DEVICE_STORE_PATH", filepath.Join(dir, "device.json"))
	t.Setenv("OFFICE_LAT", "8.7901247")
	t.Setenv("OFFICE_LON", "78.1150205")
	t.Setenv("CLIENT_LAT", "")
	t.Setenv("CLIENT_LON", "")
	t.Setenv("OFFICE_GATE_METERS", "")
	return filepath.Join(dir, "missing.env")
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestAdvanceAndResume(t *testing.T) {
	env := setupDevice(t)

	code, out, errOut := runCLI(t, "-env", env, "-lat", "8.7901247", "-lon", "78.1150205", "-reason", "client visit", "advance")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "stage: client-login")
	assert.Contains(t, out, "session: abc123")

	// a later invocation resumes from the device store
	code, out, _ = runCLI(t, "-env", env, "stage")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "stage: client-login")

	code, _, errOut = runCLI(t, "-env", env, "-lat", "8.80", "-lon", "78.13", "advance")
	assert.Equal(t, exitPrecondition, code)
	assert.Contains(t, errOut, "client location")

	code, _, errOut = runCLI(t, "-env", env, "-lat", "8.805", "-lon", "78.135", "set-client")
	require.Equal(t, exitOK, code, errOut)

	code, out, errOut = runCLI(t, "-env", env, "-lat", "8.805", "-lon", "78.135", "advance")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "stage: client-logout")

	code, out, _ = runCLI(t, "-env", env, "clear")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "stage: idle")
	assert.NotContains(t, out, "session:")
}

func TestLocationErrors(t *testing.T) {
	env := setupDevice(t)

	code, _, _ := runCLI(t, "-env", env, "-deny-location", "-reason", "client visit", "advance")
	assert.Equal(t, exitPermission, code)

	code, _, errOut := runCLI(t, "-env", env, "-reason", "client visit", "advance")
	assert.Equal(t, exitPermission, code)
	assert.Contains(t, errOut, "-lat")
}

func TestUsageErrors(t *testing.T) {
	env := setupDevice(t)

	code, _, _ := runCLI(t, "-env", env)
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, "-env", env, "dance")
	assert.Equal(t, exitFailure, code)

	code, _, _ = runCLI(t, "-env", env, "-store", "floppy", "stage")
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, "-env", env, "-lat", "8.79", "-lon", "78.11", "punch", "sideways")
	assert.Equal(t, exitFailure, code)
}

func TestUnreachableRedisStoreFailsFast(t *testing.T) {
	env := setupDevice(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	t.Setenv("REDIS_HOST", "127.0.0.1")
	t.Setenv("REDIS_PORT", strconv.Itoa(port))
	t.Setenv("REDIS_PASSWORD", "")
	t.Setenv("REDIS_DB", "0")

	code, _, errOut := runCLI(t, "-env", env, "-store", "redis", "stage")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "device store unreachable")
}
