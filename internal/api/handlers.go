package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"budgetbee/internal/auth"
	"budgetbee/internal/classifier"
	"budgetbee/internal/logging"
	"budgetbee/internal/models"
)

// Accounts is the account service the handlers need.
type Accounts interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.User, error)
}

// Deps are the components a Handler is built from.
type Deps struct {
	Accounts Accounts
	Sessions *auth.SessionManager
	Limiter  *auth.RateLimiter
	Model    classifier.LoadResult
	Logger   logging.Logger
}

// Handler serves every BudgetBee route.
type Handler struct {
	accounts   Accounts
	sessions   *auth.SessionManager
	limiter    *auth.RateLimiter
	classifier classifier.Classifier
	model      classifier.LoadResult
	logger     logging.Logger
}

func NewHandler(d Deps) *Handler {
	limiter := d.Limiter
	if limiter == nil {
		limiter = auth.DefaultRateLimiter()
	}
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	model := d.Model
	if model.Classifier == nil {
		model.Classifier = classifier.Fallback{Label: classifier.DefaultFallbackLabel}
		model.Fallback = true
	}
	return &Handler{
		accounts:   d.Accounts,
		sessions:   d.Sessions,
		limiter:    limiter,
		classifier: model.Classifier,
		model:      model,
		logger:     logger,
	}
}

// render fills the per-request parts of page and writes the named view.
func (h *Handler) render(c echo.Context, status int, name string, page Page) error {
	page.User = auth.UsernameFromContext(c)
	if token, ok := c.Get(csrfContextKey).(string); ok {
		page.CSRF = token
	}
	page.Flashes = append(consumeFlashes(c), page.Flashes...)
	return c.Render(status, name, page)
}

// home handles GET /
func (h *Handler) home(c echo.Context) error {
	return h.render(c, http.StatusOK, "index", Page{Title: "Home"})
}

type healthResponse struct {
	Status   string `json:"status"`
	Model    string `json:"model"`
	Fallback bool   `json:"fallback"`
}

// health handles GET /health
func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:   "ok",
		Model:    h.model.Source,
		Fallback: h.model.Fallback,
	})
}

// handleError renders unexpected errors as the error view. Server faults are
// logged and never shown verbatim.
func (h *Handler) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Something went wrong on our side. Please try again."
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if code < http.StatusInternalServerError {
			message = http.StatusText(code)
			if m, ok := he.Message.(string); ok && m != "" {
				message = m
			}
		}
	}

	ctx := c.Request().Context()
	if code >= http.StatusInternalServerError {
		h.logger.Error(ctx, "request failed",
			"method", c.Request().Method,
			"uri", c.Request().RequestURI,
			"error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = h.render(c, code, "error", Page{Title: http.StatusText(code), Message: message})
	}
	if err != nil {
		h.logger.Error(ctx, "render error page", "error", err)
	}
}
