package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"budgetbee/internal/logging"
	"budgetbee/internal/models"
)

// ContextKeySession is where LoadSession stores the *models.Session.
const ContextKeySession = "session"

// LoginPath is where RequireSession sends anonymous clients.
const LoginPath = "/login"

// LoadSession resolves the session cookie once per request. A missing or bad
// cookie leaves the request anonymous; it never fails the request.
func LoadSession(m *SessionManager, logger logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session, err := m.Current(c)
			switch {
			case err == nil:
				c.Set(ContextKeySession, session)
			case !errors.Is(err, ErrUnauthenticated):
				logger.Warn(c.Request().Context(), "session lookup failed, treating request as anonymous",
					"error", err)
			}
			return next(c)
		}
	}
}

// RequireSession redirects anonymous requests to the login page.
// Must be used after LoadSession.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if SessionFromContext(c) == nil {
				return c.Redirect(http.StatusSeeOther, LoginPath)
			}
			return next(c)
		}
	}
}

// SessionFromContext returns the request's session, or nil when anonymous.
func SessionFromContext(c echo.Context) *models.Session {
	session, ok := c.Get(ContextKeySession).(*models.Session)
	if !ok {
		return nil
	}
	return session
}

// UsernameFromContext is a shortcut for SessionFromContext(c).Username.
func UsernameFromContext(c echo.Context) string {
	if session := SessionFromContext(c); session != nil {
		return session.Username
	}
	return ""
}
