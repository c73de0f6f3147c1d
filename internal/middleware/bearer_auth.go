package middleware

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/evidenceledger/ledgergateway/internal/metrics"
	"github.com/evidenceledger/ledgergateway/internal/token"
)

// Keys under which the verified identity is stored in fiber locals
const (
	LocalUsername = "username"
	LocalOrgName  = "orgname"
	LocalToken    = "token"
)

// AuthFailureMessage is the only thing a client learns about a rejected token
const AuthFailureMessage = "Failed to authenticate token. Make sure to include the " +
	"token returned from /users call in the authorization header " +
	" as a Bearer token"

// Verifier is the part of the token authority used by the gate
type Verifier interface {
	Verify(signed string) (*token.Claims, error)
}

// BearerAuth gates every request behind a bearer token, except the exempted
// enrollment paths.
type BearerAuth struct {
	verifier Verifier
	metrics  *metrics.Metrics
	exempt   map[string]bool
}

// NewBearerAuth creates the gate. exemptPaths are matched against the request
// path without its trailing slashes, the way the router matches routes.
func NewBearerAuth(verifier Verifier, m *metrics.Metrics, exemptPaths ...string) *BearerAuth {
	exempt := make(map[string]bool, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[trimSlash(p)] = true
	}
	return &BearerAuth{
		verifier: verifier,
		metrics:  m,
		exempt:   exempt,
	}
}

// AuthMiddleware returns the fiber handler enforcing the gate
func (a *BearerAuth) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		slog.Debug("New request", "path", c.OriginalURL())

		if a.exempt[trimSlash(c.Path())] {
			return c.Next()
		}

		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return a.reject(c, "missing")
		}

		claims, err := a.verifier.Verify(raw)
		if err != nil {
			reason := "unknown"
			var authErr *token.AuthError
			if errors.As(err, &authErr) {
				reason = string(authErr.Kind)
			}
			slog.Debug("Token verification failed", "reason", reason, "error", err)
			return a.reject(c, reason)
		}

		c.Locals(LocalUsername, claims.Username)
		c.Locals(LocalOrgName, claims.OrgName)
		c.Locals(LocalToken, raw)

		slog.Debug("Decoded from JWT token", "username", claims.Username, "orgname", claims.OrgName)
		return c.Next()
	}
}

// reject answers with the uniform failure body. The status stays 200 for
// compatibility with existing clients of this API.
func (a *BearerAuth) reject(c *fiber.Ctx, reason string) error {
	a.metrics.AuthFailure(reason)
	return c.JSON(fiber.Map{
		"success": false,
		"message": AuthFailureMessage,
	})
}

func trimSlash(path string) string {
	if trimmed := strings.TrimRight(path, "/"); trimmed != "" {
		return trimmed
	}
	return "/"
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	return raw, raw != ""
}

// Identity returns the verified caller stored by the gate
func Identity(c *fiber.Ctx) (username, orgName string) {
	username, _ = c.Locals(LocalUsername).(string)
	orgName, _ = c.Locals(LocalOrgName).(string)
	return username, orgName
}

// RawToken returns the bearer token of the request, as verified by the gate
func RawToken(c *fiber.Ctx) string {
	raw, _ := c.Locals(LocalToken).(string)
	return raw
}
