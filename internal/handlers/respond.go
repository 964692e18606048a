// Package handlers wires the HTTP surface: request binding, auth
// context, and the mapping from domain errors to status codes. All
// business rules live in the services underneath.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pharmacart-backend/internal/gateway"
	"pharmacart-backend/internal/lifecycle"
	"pharmacart-backend/internal/models"
	"pharmacart-backend/internal/money"
	"pharmacart-backend/internal/payment"
	"pharmacart-backend/internal/records"
	"pharmacart-backend/internal/store"
	"pharmacart-backend/pkg/utils"
)

// respondError maps a domain error to its HTTP status. The message is
// the error text itself; services phrase their errors for end users.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, money.ErrInvalidLineItem),
		errors.Is(err, money.ErrZeroOrNegativeAmount),
		errors.Is(err, records.ErrInvalidInput):
		utils.APIResponse(c, http.StatusBadRequest, false, err.Error(), nil)

	case errors.Is(err, store.ErrNotFound):
		utils.APIResponse(c, http.StatusNotFound, false, "Record not found", nil)

	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, lifecycle.ErrIllegalTransition),
		errors.Is(err, payment.ErrNotPayable),
		errors.Is(err, payment.ErrAmountMismatch):
		utils.APIResponse(c, http.StatusConflict, false, err.Error(), nil)

	case errors.Is(err, gateway.ErrUntrustedEvent):
		utils.APIResponse(c, http.StatusForbidden, false, "Untrusted payment event", nil)

	case errors.Is(err, gateway.ErrUnavailable), errors.Is(err, gateway.ErrRejected):
		utils.APIResponse(c, http.StatusBadGateway, false, "Payment provider error, please try again", nil)

	case errors.Is(err, store.ErrStoreUnavailable):
		utils.APIResponse(c, http.StatusServiceUnavailable, false, "Service temporarily unavailable", nil)

	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("handlers: unexpected error")
		utils.APIResponse(c, http.StatusInternalServerError, false, "Internal server error", nil)
	}
}

func bindError(c *gin.Context, err error) {
	utils.APIResponse(c, http.StatusBadRequest, false, "Invalid request body: "+err.Error(), nil)
}

func listQuery(c *gin.Context) store.ListQuery {
	return store.ListQuery{
		Page:     int(utils.StringToUint64(c.DefaultQuery("page", "1"))),
		PageSize: int(utils.StringToUint64(c.DefaultQuery("page_size", "20"))),
		Status:   parseStatus(c.Query("status")),
	}
}

func parseStatus(s string) models.Status {
	return models.Status(strings.ToUpper(strings.TrimSpace(s)))
}
