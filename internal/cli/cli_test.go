package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	out, err := run(t, "token", "--uid", "alice", "--role", "admin")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (any, error) { return []byte("cli-secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, "ADMIN", claims["role"])
}

func TestToken_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := run(t, "token", "--uid", "alice")
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s")
	_, err = run(t, "token", "--uid", "alice", "--role", "root")
	assert.ErrorContains(t, err, "invalid role")

	_, err = run(t, "token")
	assert.Error(t, err)
}

func TestSeed_DryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sessions:
  - id: keynote
    title: Opening keynote
    start: 2026-05-18T09:00:00Z
    end: 2026-05-18T10:00:00Z
    capacity: 300
`), 0o600))

	out, err := run(t, "seed", "--file", path, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "keynote")
	assert.Contains(t, out, "2026-05-18 09:00")
	assert.Contains(t, out, "Opening keynote")
}

func TestSeed_RequiresFile(t *testing.T) {
	_, err := run(t, "seed")
	assert.Error(t, err)

	_, err = run(t, "seed", "--file", filepath.Join(t.TempDir(), "missing.yaml"), "--dry-run")
	assert.Error(t, err)
}

func TestRoot_RejectsLogLevel(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	_, err := run(t, "--log-level", "chatty", "token", "--uid", "a")
	assert.ErrorContains(t, err, "unknown level")
}
