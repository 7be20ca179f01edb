package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name    string
		redis   error
		status  int
		overall string
	}{
		{"all up", nil, 200, "ok"},
		{"redis down", errors.New("connection refused"), 503, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(map[string]Checker{
				"database": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return tt.redis },
			})
			app := fiber.New()
			app.Get("/health", h.CheckHealth)

			resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
			require.NoError(t, err)
			require.Equal(t, tt.status, resp.StatusCode)

			var body struct {
				Status     string                       `json:"status"`
				Components map[string]map[string]string `json:"components"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Equal(t, tt.overall, body.Status)
			require.Equal(t, "up", body.Components["database"]["status"])
		})
	}
}
