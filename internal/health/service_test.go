package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, h *HealthHandler) (int, OverallHealth) {
	t.Helper()
	app := fiber.New()
	app.Get("/v1/health", h.HandleHealth)
	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	require.NoError(t, err)
	var body OverallHealth
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return res.StatusCode, body
}

func TestHealthStartingUntilReady(t *testing.T) {
	h := NewHealthHandler(map[string]Check{"store": func(context.Context) error { return nil }})

	code, body := probe(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "starting", body.OverallStatus)

	h.SetReady()
	code, body = probe(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Components["store"].Status)
}

func TestHealthReportsFailingComponent(t *testing.T) {
	h := NewHealthHandler(map[string]Check{
		"store": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	h.SetReady()

	code, body := probe(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "error", body.OverallStatus)
	assert.Equal(t, "connection refused", body.Components["redis"].Error)
}
