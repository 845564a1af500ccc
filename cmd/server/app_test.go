package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpauth/internal/platform/config"
	"mcpauth/pkg/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenSecret(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"gen-secret", "--bytes", "48"})

	require.NoError(t, cmd.Execute())

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Len(t, raw, 48)
}

func TestGenSecretRejectsShortKeys(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"gen-secret", "--bytes", "8"})

	assert.Error(t, cmd.Execute())
}

func TestServeRequiresSecrets(t *testing.T) {
	t.Setenv("COOKIE_ENCRYPTION_KEY", "")
	t.Setenv("GITHUB_CLIENT_ID", "")
	t.Setenv("GITHUB_CLIENT_SECRET", "")
	t.Setenv("JWT_SIGNING_KEY", "")

	err := runServe(context.Background(), "")
	assert.Error(t, err)
}

func TestHealthWithoutBackingStores(t *testing.T) {
	rr := testutil.DoRequest(healthHandler(nil, nil), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")
}

type countingExpirer struct {
	calls atomic.Int32
}

func (c *countingExpirer) DeleteExpired(context.Context, time.Time) (int, error) {
	c.calls.Add(1)
	return 1, nil
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exp := &countingExpirer{}
	done := make(chan struct{})
	go func() {
		runSweeper(ctx, namedExpirer{name: "grants", expirer: exp}, 5*time.Millisecond, discardLogger())
		close(done)
	}()

	require.Eventually(t, func() bool { return exp.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

// TestBuildAppInMemory wires the whole process without Redis, Postgres or
// Kafka and drives the public endpoints that need no upstream.
func TestBuildAppInMemory(t *testing.T) {
	cfg := config.FromEnv()
	cfg.PublicURL = "https://broker.test"
	cfg.Redis.URL = ""
	cfg.Postgres.DSN = ""
	cfg.Kafka.Brokers = nil
	cfg.Cookie.Secret = "cookie-secret-for-tests"
	cfg.JWT.SigningKey = "jwt-key-for-tests"
	cfg.Upstream.ClientID = "gh-client"
	cfg.Upstream.ClientSecret = "gh-secret"

	a, err := buildApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(a.close)
	require.Len(t, a.expirers, 3)
	var names []string
	for _, e := range a.expirers {
		names = append(names, e.name)
	}
	assert.ElementsMatch(t, []string{"grants", "sessions", "ratelimit"}, names)

	t.Run("metadata", func(t *testing.T) {
		rr := testutil.DoRequest(a.router, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "authorization_endpoint", "https://broker.test/authorize")
	})

	t.Run("register then authorize shows the dialog", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/register", map[string]any{
			"redirect_uris":              []string{"https://client.example/cb"},
			"client_name":                "Acme Agent",
			"token_endpoint_auth_method": "none",
		})
		rr := testutil.DoRequest(a.router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		reg := testutil.UnmarshalResponse[map[string]any](t, rr)
		clientID, _ := (*reg)["client_id"].(string)
		require.NotEmpty(t, clientID)

		rr = testutil.DoRequest(a.router, httptest.NewRequest(http.MethodGet,
			"/authorize?response_type=code&client_id="+clientID+"&code_challenge=abc&state=s", nil))
		testutil.AssertStatusOK(t, rr)
		assert.Contains(t, rr.Body.String(), "Acme Agent")
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})

	t.Run("health", func(t *testing.T) {
		rr := testutil.DoRequest(a.router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		testutil.AssertStatusOK(t, rr)
	})

	t.Run("metrics", func(t *testing.T) {
		rr := testutil.DoRequest(a.router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		testutil.AssertStatusOK(t, rr)
		assert.Contains(t, rr.Body.String(), "mcpauth_")
	})
}
