package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/itemkeeper/internal/audit"
	"github.com/nerrad567/itemkeeper/internal/auth"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/config"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/database"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/logging"
	"github.com/nerrad567/itemkeeper/internal/item"
	"github.com/nerrad567/itemkeeper/internal/metrics"
	"github.com/nerrad567/itemkeeper/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// cheapParams keeps seeded password hashes fast to verify.
var cheapParams = auth.PasswordParams{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// testClock is a settable clock shared by the token service.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakePublisher captures published item events.
type fakePublisher struct {
	events chan item.Event
	err    error
}

func (p *fakePublisher) PublishItemEvent(_ context.Context, ev item.Event) error {
	p.events <- ev
	return p.err
}

type testEnv struct {
	srv       *Server
	handler   http.Handler
	tokens    *auth.TokenService
	clock     *testClock
	users     *auth.SQLiteUserDirectory
	items     *item.SQLiteRepository
	auditLogs *audit.SQLiteRepository
	events    *fakePublisher
	metrics   *metrics.Metrics
}

type envOption func(*Deps)

func withRegistration() envOption {
	return func(d *Deps) { d.Registration = true }
}

func withStream() envOption {
	return func(d *Deps) {
		d.Config.Stream = config.StreamConfig{Enabled: true, MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 10}
	}
}

func withDevMode() envOption {
	return func(d *Deps) { d.DevMode = true }
}

// newTestEnv builds a server on a migrated SQLite database with two users:
// "1" user@demo.com/user123 and "2" other@demo.com/other123.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	require.NoError(t, db.Migrate(ctx, migrations.FS))

	users := auth.NewUserDirectory(db.DB)
	for _, u := range []struct{ id, email, password string }{
		{"1", "user@demo.com", "user123"},
		{"2", "other@demo.com", "other123"},
	} {
		hash, err := cheapParams.Hash(u.password)
		require.NoError(t, err)
		require.NoError(t, users.Create(ctx, &auth.User{ID: u.id, Email: u.email, PasswordHash: hash, Role: auth.RoleUser}))
	}

	clock := &testClock{now: time.Now().Truncate(time.Second)}
	tokens, err := auth.NewTokenService(testSecret, time.Hour, auth.WithClock(clock.Now))
	require.NoError(t, err)

	creds, err := auth.NewCredentialValidator(users)
	require.NoError(t, err)

	logger := logging.Discard()

	auditLogs := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditLogs, logger)
	runCtx, cancel := context.WithCancel(context.Background())
	go recorder.Run(runCtx)
	t.Cleanup(func() {
		cancel()
		recorder.Wait()
	})

	events := &fakePublisher{events: make(chan item.Event, 16)}
	_, m := metrics.NewRegistry(nil)

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Logger:      logger,
		Tokens:      tokens,
		Credentials: creds,
		Users:       users,
		Items:       item.NewSQLiteRepository(db.DB),
		Audit:       recorder,
		AuditLogs:   auditLogs,
		Events:      events,
		Metrics:     m,
		Version:     "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() }) //nolint:errcheck // Test cleanup

	return &testEnv{
		srv:       srv,
		handler:   srv.Handler(),
		tokens:    tokens,
		clock:     clock,
		users:     users,
		items:     item.NewSQLiteRepository(db.DB),
		auditLogs: auditLogs,
		events:    events,
		metrics:   m,
	}
}

// token issues a valid token for one of the seeded users.
func (e *testEnv) token(t *testing.T, id string) string {
	t.Helper()
	emails := map[string]string{"1": "user@demo.com", "2": "other@demo.com"}
	tok, _, err := e.tokens.Issue(auth.Identity{ID: id, Email: emails[id], Role: auth.RoleUser})
	require.NoError(t, err)
	return tok
}

// do sends a request. body may be nil, a string (sent raw) or a value to
// JSON-encode. An empty token sends no Authorization header.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

// decode unmarshals a response body into a generic map.
func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}

// createItem creates an item as id and returns its decoded JSON.
func (e *testEnv) createItem(t *testing.T, id, name string) map[string]any {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/items", e.token(t, id), map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	it, ok := decode(t, w)["item"].(map[string]any)
	require.True(t, ok)
	return it
}
