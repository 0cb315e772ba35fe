package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"budgetbee/internal/auth"
)

// guardedPaths are the routes wrapped in RequireSession.
var guardedPaths = map[string]bool{
	"/":        true,
	"/predict": true,
}

// RegisterRoutes sets up all routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	requireSession := auth.RequireSession()

	// Public
	e.GET("/health", h.health)
	e.GET("/static/*", echo.WrapHandler(http.StripPrefix("/static/", http.FileServer(http.FS(staticFiles())))))

	// Accounts
	e.GET("/register", h.registerForm)
	e.POST("/register", h.register)
	e.GET("/login", h.loginForm)
	e.POST("/login", h.login, h.limiter.Middleware(h.loginBlocked))
	e.GET("/logout", h.logout)

	// Authenticated
	e.GET("/", h.home, requireSession)
	e.GET("/predict", h.predictForm, requireSession)
	e.POST("/predict", h.predict, requireSession)
}
