package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidenceledger/ledgergateway/internal/token"
)

func newTestApp(t *testing.T, authority *token.Authority) *fiber.App {
	t.Helper()

	app := fiber.New()
	app.Use(NewBearerAuth(authority, nil, "/users").AuthMiddleware())

	app.Post("/users", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})
	app.Post("/users/:name", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})
	app.Get("/channels", func(c *fiber.Ctx) error {
		username, org := Identity(c)
		return c.JSON(fiber.Map{"success": true, "username": username, "org": org})
	})

	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, auth string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return resp.StatusCode, out
}

func TestBearerAuth(t *testing.T) {
	now := time.Now()
	authority, err := token.NewAuthority("thisismysecret", token.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	foreign, err := token.NewAuthority("another-secret")
	require.NoError(t, err)

	valid, _, err := authority.Issue("alice", "org1", time.Hour)
	require.NoError(t, err)
	expired, _, err := authority.Issue("alice", "org1", -time.Minute)
	require.NoError(t, err)
	forged, _, err := foreign.Issue("alice", "org1", time.Hour)
	require.NoError(t, err)

	app := newTestApp(t, authority)

	tests := []struct {
		name        string
		method      string
		path        string
		auth        string
		wantSuccess bool
	}{
		{"enrollment is exempt", http.MethodPost, "/users", "", true},
		{"enrollment with trailing slash", http.MethodPost, "/users/", "", true},
		{"enrollment with query", http.MethodPost, "/users?x=1", "", true},
		{"below enrollment is gated", http.MethodPost, "/users/alice", "", false},
		{"valid token", http.MethodGet, "/channels", "Bearer " + valid, true},
		{"lowercase scheme", http.MethodGet, "/channels", "bearer " + valid, true},
		{"missing header", http.MethodGet, "/channels", "", false},
		{"wrong scheme", http.MethodGet, "/channels", "Basic " + valid, false},
		{"expired token", http.MethodGet, "/channels", "Bearer " + expired, false},
		{"foreign secret", http.MethodGet, "/channels", "Bearer " + forged, false},
		{"garbage", http.MethodGet, "/channels", "Bearer abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, tt.method, tt.path, tt.auth)

			assert.Equal(t, fiber.StatusOK, status)
			assert.Equal(t, tt.wantSuccess, body["success"])
			if !tt.wantSuccess {
				assert.Equal(t, AuthFailureMessage, body["message"])
			}
		})
	}
}

func TestBearerAuthStoresIdentity(t *testing.T) {
	authority, err := token.NewAuthority("thisismysecret")
	require.NoError(t, err)
	signed, _, err := authority.Issue("alice", "org1", time.Hour)
	require.NoError(t, err)

	_, body := doRequest(t, newTestApp(t, authority), http.MethodGet, "/channels", "Bearer "+signed)

	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "org1", body["org"])
}

func TestTrimSlash(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/users", "/users"},
		{"/users/", "/users"},
		{"/users//", "/users"},
		{"/", "/"},
		{"", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, trimSlash(tt.in), tt.in)
	}
}
