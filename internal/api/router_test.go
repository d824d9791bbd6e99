package api_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventnest/eventnest/internal/api"
	"github.com/eventnest/eventnest/internal/app"
	"github.com/eventnest/eventnest/internal/handlers/testutil"
)

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"status":"ok"`)
	require.Contains(t, w.Body.String(), `"component":"database"`)
	require.Contains(t, w.Body.String(), `"component":"realtime"`)

	w = env.Request(http.MethodGet, "/health/live", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, env.Container.Stream.Close())
	w = env.Request(http.MethodGet, "/health/ready", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "realtime stream closed")

	for _, path := range []string{"/api/auth/me", "/api/events", "/api/notifications", "/api/contacts"} {
		testutil.RequireError(t, env.Request(http.MethodGet, path, nil, ""), http.StatusUnauthorized, "UNAUTHORIZED")
	}

	w = env.Request(http.MethodGet, "/api/invitations/validate?token=unknown", nil, "")
	testutil.RequireError(t, w, http.StatusNotFound, "NOT_FOUND")
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Request(http.MethodGet, "/health", nil, "")

	w := env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "eventnest_api_latency_seconds")
}

func TestRouter_MonitoringCanBeDisabled(t *testing.T) {
	env := testutil.NewEnv(t, func(cfg *app.Config) {
		cfg.Monitoring.Health.Enabled = false
		cfg.Monitoring.Prometheus.Enabled = false
	})

	testutil.RequireError(t, env.Request(http.MethodGet, "/health", nil, ""), http.StatusNotFound, "NOT_FOUND")
	testutil.RequireError(t, env.Request(http.MethodGet, "/metrics", nil, ""), http.StatusNotFound, "NOT_FOUND")
}

func TestRouter_NoRoute(t *testing.T) {
	env := testutil.NewEnv(t)
	resp := testutil.RequireError(t, env.Request(http.MethodGet, "/api/unknown", nil, ""), http.StatusNotFound, "NOT_FOUND")
	require.Contains(t, resp.Error.Message, "/api/unknown")
}

func TestRouter_RateLimitsPublicRoutes(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithRateLimit(2, time.Minute))

	body := map[string]string{"identifier": "nobody", "password": "wrong-password"}
	for i := 0; i < 2; i++ {
		w := env.Request(http.MethodPost, "/api/auth/login", body, "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := env.Request(http.MethodPost, "/api/auth/login", body, "")
	testutil.RequireError(t, w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED")
	require.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestNewRouterRequiresContainer(t *testing.T) {
	_, err := api.NewRouter(nil, nil)
	require.Error(t, err)
}

func TestNewContainerValidatesDependencies(t *testing.T) {
	env := testutil.NewEnv(t)

	_, err := api.NewContainer(nil, env.Config, env.JWT)
	require.Error(t, err)
	_, err = api.NewContainer(env.DB, nil, env.JWT)
	require.Error(t, err)
	_, err = api.NewContainer(env.DB, env.Config, nil)
	require.Error(t, err)

	c := env.Container
	require.NotNil(t, c.Dispatcher)
	require.NotNil(t, c.Reminders)
	require.NotNil(t, c.Hub)
	require.Zero(t, c.Stream.Sessions())
}
