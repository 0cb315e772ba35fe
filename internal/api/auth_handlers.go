package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"budgetbee/internal/auth"
	"budgetbee/internal/models"
)

const (
	msgAccountCreated     = "Account created! Please log in."
	msgUsernameTaken      = "Username already exists! Try another."
	msgInvalidCredentials = "Invalid username or password."
	msgLoggedOut          = "You have been logged out."
)

// registerForm handles GET /register
func (h *Handler) registerForm(c echo.Context) error {
	return h.render(c, http.StatusOK, "register", Page{Title: "Register"})
}

// register handles POST /register
func (h *Handler) register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}

	_, err := h.accounts.Register(c.Request().Context(), req.Username, req.Password)
	var inputErr *auth.InputError
	switch {
	case err == nil:
		addFlash(c, FlashSuccess, msgAccountCreated)
		return c.Redirect(http.StatusSeeOther, "/login")
	case errors.Is(err, auth.ErrDuplicateUsername):
		addFlash(c, FlashDanger, msgUsernameTaken)
		return c.Redirect(http.StatusSeeOther, "/register")
	case errors.As(err, &inputErr):
		addFlash(c, FlashDanger, inputErr.Message)
		return c.Redirect(http.StatusSeeOther, "/register")
	default:
		return fmt.Errorf("register: %w", err)
	}
}

// loginForm handles GET /login
func (h *Handler) loginForm(c echo.Context) error {
	return h.render(c, http.StatusOK, "login", Page{Title: "Log in"})
}

// login handles POST /login
func (h *Handler) login(c echo.Context) error {
	ctx := c.Request().Context()
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}

	user, err := h.accounts.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Info(ctx, "login failed", "username", req.Username, "ip", c.RealIP())
			return h.render(c, http.StatusUnauthorized, "login", Page{
				Title:    "Log in",
				Username: req.Username,
				Flashes:  []Flash{{Category: FlashDanger, Message: msgInvalidCredentials}},
			})
		}
		return fmt.Errorf("login: %w", err)
	}

	h.limiter.RecordSuccess(c.RealIP())
	if _, err := h.sessions.Start(c, user.Username); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	h.logger.Info(ctx, "user logged in", "username", user.Username)
	addFlash(c, FlashSuccess, fmt.Sprintf("Welcome back, %s!", user.Username))
	return c.Redirect(http.StatusSeeOther, "/")
}

// loginBlocked answers login attempts refused by the rate limiter.
func (h *Handler) loginBlocked(c echo.Context, retryAfter int) error {
	minutes := (retryAfter + 59) / 60
	h.logger.Warn(c.Request().Context(), "login rate limited", "ip", c.RealIP(), "retry_after", retryAfter)
	return h.render(c, http.StatusTooManyRequests, "login", Page{
		Title: "Log in",
		Flashes: []Flash{{
			Category: FlashDanger,
			Message:  fmt.Sprintf("Too many login attempts. Try again in %d minute(s).", minutes),
		}},
	})
}

// logout handles GET /logout
func (h *Handler) logout(c echo.Context) error {
	ctx := c.Request().Context()
	username := auth.UsernameFromContext(c)

	if err := h.sessions.End(c); err != nil {
		h.logger.Warn(ctx, "session revocation failed", "username", username, "error", err)
	}
	if username != "" {
		h.logger.Info(ctx, "user logged out", "username", username)
	}

	addFlash(c, FlashInfo, msgLoggedOut)
	return c.Redirect(http.StatusSeeOther, "/login")
}
