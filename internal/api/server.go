package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"budgetbee/internal/auth"
)

const csrfContextKey = "csrf"

// ServerOptions tunes NewServer.
type ServerOptions struct {
	// SecureCookies marks the CSRF cookie Secure; set when serving TLS.
	SecureCookies bool
	// TrustProxy takes the client IP from X-Forwarded-For set by a proxy on a
	// private or loopback address. Off, the socket address is used.
	TrustProxy bool
}

// NewServer builds the echo instance with middleware, views and routes.
func NewServer(h *Handler, opts ServerOptions) (*echo.Echo, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = h.handleError
	if opts.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	// Middleware
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"request_id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				args = append(args, "error", v.Error)
			}
			h.logger.Info(c.Request().Context(), "request", args...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "same-origin",
		ContentSecurityPolicy: "default-src 'self'",
	}))
	e.Use(auth.LoadSession(h.sessions, h.logger))
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		// Anonymous requests to guarded routes are redirected to the login
		// page without reaching a handler.
		Skipper: func(c echo.Context) bool {
			return guardedPaths[c.Path()] && auth.SessionFromContext(c) == nil
		},
		TokenLookup:    "form:_csrf",
		ContextKey:     csrfContextKey,
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   opts.SecureCookies,
		CookieSameSite: http.SameSiteLaxMode,
	}))

	RegisterRoutes(e, h)
	return e, nil
}
