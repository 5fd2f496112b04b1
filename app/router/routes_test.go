package router

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/orochi-outreach/app/dto"
	"github.com/amirphl/orochi-outreach/app/handlers"
	"github.com/amirphl/orochi-outreach/app/middleware"
	"github.com/amirphl/orochi-outreach/app/services"
	"github.com/amirphl/orochi-outreach/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *FiberRouter {
	t.Helper()
	tokens, err := services.NewTokenService(time.Hour, "orochi-outreach", "orochi-outreach-admin", "router-test-secret-key-with-32-characters")
	require.NoError(t, err)

	cfg := &config.Config{
		Server:  config.ServerConfig{AllowedOrigins: []string{"*"}},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	r := NewFiberRouter(
		cfg,
		handlers.NewAuthHandler(nil),
		handlers.NewCampaignAdminHandler(nil, nil),
		handlers.NewComplianceHandler(nil),
		middleware.NewAuthMiddleware(tokens),
	)
	r.SetupRoutes()
	return r
}

func TestRoutes(t *testing.T) {
	r := newTestRouter(t)

	t.Run("Health", func(t *testing.T) {
		resp, err := r.GetApp().Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("AdminNeedsToken", func(t *testing.T) {
		resp, err := r.GetApp().Test(httptest.NewRequest(http.MethodPost, "/api/v1/admin/campaigns/1/tick", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("UnknownRoute", func(t *testing.T) {
		resp, err := r.GetApp().Test(httptest.NewRequest(http.MethodGet, "/api/v1/nowhere", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body dto.APIResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.Success)
		assert.Equal(t, "NOT_FOUND", body.Error.(map[string]any)["code"])
	})

	t.Run("Metrics", func(t *testing.T) {
		// One request first so the HTTP counters have a sample
		_, err := r.GetApp().Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		require.NoError(t, err)

		resp, err := r.GetApp().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "http_requests_total")
	})

	t.Run("SwaggerDocument", func(t *testing.T) {
		resp, err := r.GetApp().Test(httptest.NewRequest(http.MethodGet, "/api/v1/swagger.json", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var doc map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
		assert.Equal(t, "2.0", doc["swagger"])
	})
}
