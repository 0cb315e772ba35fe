package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"budgetbee/internal/auth"
	"budgetbee/internal/models"
)

// predict handles POST /predict
func (h *Handler) predict(c echo.Context) error {
	var req models.PredictionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	req.Description = strings.TrimSpace(req.Description)
	req.Amount = strings.TrimSpace(req.Amount)

	if req.Description == "" {
		addFlash(c, FlashDanger, "Please describe the expense.")
		return c.Redirect(http.StatusSeeOther, "/")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		addFlash(c, FlashDanger, "Amount must be a number, like 4.50.")
		return c.Redirect(http.StatusSeeOther, "/")
	}
	if amount.IsNegative() {
		addFlash(c, FlashDanger, "Amount cannot be negative.")
		return c.Redirect(http.StatusSeeOther, "/")
	}

	labels := h.classifier.Classify([]string{req.Description})
	if len(labels) != 1 {
		return fmt.Errorf("classifier returned %d labels for 1 input", len(labels))
	}

	return h.render(c, http.StatusOK, "result", Page{
		Title: "Prediction",
		Result: &models.Prediction{
			Description: req.Description,
			Amount:      req.Amount,
			Category:    labels[0],
			Username:    auth.UsernameFromContext(c),
		},
	})
}

// predictForm handles GET /predict by sending the user to the form on /.
func (h *Handler) predictForm(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/")
}
