package fiber

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/authstore/core"
)

const (
	// SessionCookie carries the raw session token for browser clients.
	SessionCookie = "authstore.session-token"

	localsSession   = "authstore.session"
	localsToken     = "authstore.token"
	localsRequestID = "authstore.request-id"
)

// requestID tags the request with an id and attaches a request scoped logger
// to its context.
func (a *Adapter) requestID(c fiber.Ctx) error {
	id := c.Get(fiber.HeaderXRequestID)
	if id == "" {
		var err error
		if id, err = a.ids.Generate(0); err != nil {
			return err
		}
	}

	c.Set(fiber.HeaderXRequestID, id)
	c.Locals(localsRequestID, id)
	c.SetContext(core.ContextWithLogger(c.Context(), a.logger().With(slog.String("request_id", id))))

	return c.Next()
}

// requireAuth validates the session token and stores the session and user in
// the request locals for downstream handlers.
func (a *Adapter) requireAuth(c fiber.Ctx) error {
	token, err := extractToken(c)
	if err != nil {
		return a.handleAuthError(c, err)
	}

	data, err := a.auth.Handler.GetSession(c.Context(), token)
	if err != nil {
		return a.handleAuthError(c, err)
	}

	c.Locals(localsSession, data)
	c.Locals(localsToken, token)

	return c.Next()
}

// extractToken reads the Authorization header (Bearer token) first, then
// falls back to the session cookie.
func extractToken(c fiber.Ctx) (string, error) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return "", core.ErrInvalidAuthHeader
		}
		return strings.TrimSpace(token), nil
	}

	if token := c.Cookies(SessionCookie); token != "" {
		return token, nil
	}

	return "", core.ErrMissingAuthHeader
}

func sessionFrom(c fiber.Ctx) *core.SessionAndUser {
	data, _ := c.Locals(localsSession).(*core.SessionAndUser)
	return data
}

func tokenFrom(c fiber.Ctx) string {
	token, _ := c.Locals(localsToken).(string)
	return token
}

func (a *Adapter) logger() *slog.Logger {
	if a.auth != nil && a.auth.Logger != nil {
		return a.auth.Logger
	}
	return slog.Default()
}

// Protected guards application routes with the auth session. Handlers read
// the session with SessionFrom.
func (a *Adapter) Protected(c fiber.Ctx) error {
	return a.requireAuth(c)
}

// SessionFrom returns the session stored by Protected, or nil.
func SessionFrom(c fiber.Ctx) *core.SessionAndUser {
	return sessionFrom(c)
}
