package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cmlabs-hris/site-visit-go/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuedTokenIsAccepted(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "device-secret")
	t.Setenv("JWT_ACCESS_EXPIRATION_TIME", "720h")
	env := filepath.Join(t.TempDir(), "missing.env")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-env", env, "-user", "EMP001", "-email", "asha@example.com"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "# expires "))

	userID, err := jwt.NewJWTService("device-secret", "1h").ValidateAccessToken(lines[0])
	require.NoError(t, err)
	assert.Equal(t, "EMP001", userID)
}

func TestIssueErrors(t *testing.T) {
	env := filepath.Join(t.TempDir(), "missing.env")

	t.Setenv("JWT_SECRET_KEY", "device-secret")
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), []string{"-env", env}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "-user is required")

	t.Setenv("JWT_SECRET_KEY", "")
	stderr.Reset()
	assert.Equal(t, 1, run(context.Background(), []string{"-env", env, "-user", "EMP001"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "JWT_SECRET_KEY")

	t.Setenv("JWT_SECRET_KEY", "device-secret")
	t.Setenv("JWT_ACCESS_EXPIRATION_TIME", "forever")
	stderr.Reset()
	assert.Equal(t, 1, run(context.Background(), []string{"-env", env, "-user", "EMP001"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "generate token")
}
