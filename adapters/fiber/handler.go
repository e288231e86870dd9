package fiber

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/authstore/core"
)

type verificationRequestBody struct {
	Identifier string `json:"identifier"`
}

type verifyBody struct {
	Identifier string `json:"identifier"`
	Token      string `json:"token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// getSession returns the session resolved by requireAuth
func (a *Adapter) getSession(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(sessionFrom(c))
}

// signOut invalidates the current session
func (a *Adapter) signOut(c fiber.Ctx) error {
	if err := a.auth.Handler.SignOut(c.Context(), tokenFrom(c)); err != nil {
		return a.handleAuthError(c, err)
	}

	clearSessionCookie(c)
	return c.Status(http.StatusOK).JSON(messageResponse{Message: "signed out successfully"})
}

// requestVerification sends a sign-in token to the given identifier
func (a *Adapter) requestVerification(c fiber.Ctx) error {
	var body verificationRequestBody
	if err := c.Bind().Body(&body); err != nil {
		return badRequest(c)
	}

	if err := a.auth.Handler.RequestVerification(c.Context(), body.Identifier); err != nil {
		return a.handleAuthError(c, err)
	}

	return c.Status(http.StatusAccepted).JSON(messageResponse{Message: "verification request sent"})
}

// verifyEmail exchanges a verification token for a session
func (a *Adapter) verifyEmail(c fiber.Ctx) error {
	var body verifyBody
	if err := c.Bind().Body(&body); err != nil {
		return badRequest(c)
	}

	result, err := a.auth.Handler.VerifyEmail(c.Context(), body.Identifier, body.Token)
	if err != nil {
		return a.handleAuthError(c, err)
	}

	setSessionCookie(c, result.Token, result.Session.Expires)
	return c.Status(http.StatusOK).JSON(result)
}

// deleteUser removes the signed in user with its accounts and sessions
func (a *Adapter) deleteUser(c fiber.Ctx) error {
	data := sessionFrom(c)
	if err := a.auth.Handler.DeleteUser(c.Context(), data.User.ID); err != nil {
		return a.handleAuthError(c, err)
	}

	clearSessionCookie(c)
	return c.Status(http.StatusOK).JSON(messageResponse{Message: "user deleted"})
}

func setSessionCookie(c fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func clearSessionCookie(c fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func badRequest(c fiber.Ctx) error {
	return c.Status(http.StatusBadRequest).JSON(core.ErrorResponse{
		Error: "invalid request body",
		Code:  http.StatusBadRequest,
	})
}

// handleAuthError maps authentication errors to appropriate HTTP responses.
// Adapter failures are logged and never reported as unauthenticated.
func (a *Adapter) handleAuthError(c fiber.Ctx, err error) error {
	status := mapErrorToStatus(err)
	if status >= http.StatusInternalServerError {
		core.LoggerFromContext(c.Context()).ErrorContext(c.Context(), "request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
		return c.Status(status).JSON(core.ErrorResponse{
			Error: http.StatusText(status),
			Code:  status,
		})
	}

	return c.Status(status).JSON(core.ErrorResponse{
		Error: err.Error(),
		Code:  status,
	})
}

// mapErrorToStatus maps auth error types to HTTP status codes
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case core.IsOperationFailure(err):
		return http.StatusInternalServerError

	case errors.Is(err, core.ErrMissingAuthHeader),
		errors.Is(err, core.ErrInvalidAuthHeader),
		errors.Is(err, core.ErrInvalidToken),
		errors.Is(err, core.ErrSessionExpired),
		errors.Is(err, core.ErrVerificationFailed),
		errors.Is(err, core.ErrTokenExpired):
		return http.StatusUnauthorized

	case errors.Is(err, core.ErrIdentifierRequired):
		return http.StatusBadRequest

	case errors.Is(err, core.ErrAccountNotOwned):
		return http.StatusForbidden

	case errors.Is(err, core.ErrAccountNotLinked):
		return http.StatusConflict

	case errors.Is(err, core.ErrNotSupported):
		return http.StatusNotImplemented

	default:
		return http.StatusInternalServerError
	}
}
