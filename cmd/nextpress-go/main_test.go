package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile = ""
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("HOOK_SECRET", "cli-secret")

	out, err := execute(t, "token", "--subject", "deploy")
	require.NoError(t, err)

	claims, err := security.ValidateJWT(strings.TrimSpace(out), "cli-secret")
	require.NoError(t, err)
	assert.Equal(t, "deploy", claims["sub"])
	assert.True(t, security.HasHookScope(claims))
}

func TestTokenCommandWithoutSecret(t *testing.T) {
	t.Setenv("HOOK_SECRET", "")

	_, err := execute(t, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HOOK_SECRET")
}

func TestTokenCommandNewSecret(t *testing.T) {
	out, err := execute(t, "token", "--new-secret")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 64)
}

func TestInvalidateRejectsBadArguments(t *testing.T) {
	_, err := execute(t, "invalidate", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid content id")

	_, err = execute(t, "invalidate", "7", "--kind", "exploded")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown change kind")
}

func TestMigrateAndResolve(t *testing.T) {
	t.Setenv("SQLITE_PATH", t.TempDir()+"/content.db")
	t.Setenv("LOG_LEVEL", "error")

	out, err := execute(t, "migrate", "--seed")
	require.NoError(t, err)
	assert.Contains(t, out, "schema ready")

	out, err = execute(t, "resolve", "about-us", "--include-content=false")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "About Us"`)
	assert.Contains(t, out, `"path": "/about-us/"`)
}
