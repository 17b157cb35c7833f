package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/itemkeeper/internal/api"
	"github.com/nerrad567/itemkeeper/internal/auth"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/config"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/database"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/logging"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/mqtt"
	"github.com/nerrad567/itemkeeper/internal/item"
	"github.com/nerrad567/itemkeeper/migrations"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

// writeConfig writes a config file using dbPath and port and returns its path.
func writeConfig(t *testing.T, dbPath string, port int, secret string) string {
	t.Helper()

	content := fmt.Sprintf(`
service:
  environment: development
database:
  path: %q
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: %d
logging:
  level: error
security:
  jwt:
    secret: %q
    ttl: "1h"
  seed_users: []
mqtt:
  enabled: false
metrics:
  enabled: true
`, dbPath, port, secret)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestRun_InvalidConfigPath(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestRun_MissingSecretFailsBeforeListen(t *testing.T) {
	t.Setenv("ITEMKEEPER_JWT_SECRET", "")
	path := writeConfig(t, filepath.Join(t.TempDir(), "test.db"), freePort(t), "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "security.jwt.secret is required")
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	path := writeConfig(t, filepath.Join(t.TempDir(), "test.db"), port, testSecret)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, path) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port)) //nolint:noctx // test
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

func TestMigrateStatus(t *testing.T) {
	path := writeConfig(t, filepath.Join(t.TempDir(), "test.db"), 8080, testSecret)

	out, err := execute(t, "", "migrate", "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "pending  20260301_090000")
	assert.NotContains(t, out, "applied")

	out, err = execute(t, "", "migrate", "up", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")

	out, err = execute(t, "", "migrate", "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "applied  20260301_090200")
	assert.NotContains(t, out, "pending")

	out, err = execute(t, "", "migrate", "down", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "rolled back")

	out, err = execute(t, "", "migrate", "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "pending  20260301_090200")
}

func TestMigrate_RejectsUnknownDirection(t *testing.T) {
	_, err := execute(t, "", "migrate", "sideways")
	require.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "argument", args: []string{"hash-password", "s3cret-pass"}},
		{name: "stdin", stdin: "s3cret-pass\n", args: []string{"hash-password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.stdin, tt.args...)
			require.NoError(t, err)

			hash := strings.TrimSpace(out)
			assert.True(t, strings.HasPrefix(hash, "$argon2id$"), "got %q", hash)

			ok, err := auth.VerifyPassword("s3cret-pass", hash)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestHashPassword_EmptyStdin(t *testing.T) {
	_, err := execute(t, "", "hash-password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is empty")
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(configEnvVar, "/from/env.yaml")
	assert.Equal(t, "/from/flag.yaml", resolveConfigPath("/from/flag.yaml"))
	assert.Equal(t, "/from/env.yaml", resolveConfigPath(""))
}

func TestHealthCheck_IncludesMQTT(t *testing.T) {
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: filepath.Join(t.TempDir(), "test.db"), BusyTimeout: 5})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	require.NoError(t, db.Migrate(ctx, migrations.FS))

	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	credentials, err := auth.NewCredentialValidator(auth.NewUserDirectory(db.DB))
	require.NoError(t, err)

	server, err := api.New(api.Deps{
		Config:      config.APIConfig{Host: "127.0.0.1", Port: freePort(t)},
		Logger:      logging.Discard(),
		Tokens:      tokens,
		Credentials: credentials,
		Items:       item.NewSQLiteRepository(db.DB),
	})
	require.NoError(t, err)
	require.NoError(t, server.Start(ctx))
	t.Cleanup(func() { server.Close() }) //nolint:errcheck // test cleanup

	require.NoError(t, healthCheck(ctx, db, server, nil), "mqtt disabled")

	err = healthCheck(ctx, db, server, &mqtt.Client{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mqtt.ErrNotConnected), "got %v", err)
	assert.Contains(t, err.Error(), "mqtt")
}
