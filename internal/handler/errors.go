package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tokoledger/api/internal/cart"
	"github.com/tokoledger/api/internal/payment"
	"github.com/tokoledger/api/internal/pricing"
	"github.com/tokoledger/api/internal/returns"
	"github.com/tokoledger/api/internal/service"
	"go.uber.org/zap"
)

func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyCart) ||
		errors.Is(err, service.ErrInvalidLineRole) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, service.ErrProductNotFound) ||
		errors.Is(err, service.ErrOriginNotFound) ||
		errors.Is(err, service.ErrInvalidReturnType) ||
		errors.Is(err, service.ErrRepairReferenceRequired) ||
		errors.Is(err, pricing.ErrInvalidQuantity) ||
		errors.Is(err, pricing.ErrInvalidDiscount) ||
		errors.Is(err, pricing.ErrInvalidCharge) ||
		errors.Is(err, cart.ErrVariationRequired) ||
		errors.Is(err, cart.ErrVariationNotFound) ||
		errors.Is(err, cart.ErrLineNotFound) ||
		errors.Is(err, payment.ErrPaymentMismatch) ||
		errors.Is(err, payment.ErrEmptySplit) ||
		errors.Is(err, payment.ErrInvalidPaymentMethod) ||
		errors.Is(err, payment.ErrInvalidAmount) ||
		errors.Is(err, payment.ErrMissingPayment) ||
		errors.Is(err, returns.ErrInvalidQuantity) ||
		errors.Is(err, returns.ErrLineNotFound) ||
		errors.Is(err, returns.ErrEmptyReturn)
}

// isConflictError reports errors caused by the current state of a record
// or of stock rather than by the request itself.
func isConflictError(err error) bool {
	return errors.Is(err, service.ErrInvalidTransition) ||
		errors.Is(err, service.ErrNotEditable) ||
		errors.Is(err, service.ErrNotDiscardable) ||
		errors.Is(err, service.ErrHasReturns) ||
		errors.Is(err, service.ErrOriginNotFinal) ||
		errors.Is(err, service.ErrNotReturnable) ||
		errors.Is(err, service.ErrDuplicateSubmission) ||
		errors.Is(err, cart.ErrOutOfStock) ||
		errors.Is(err, returns.ErrExceedsAvailableQuantity)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, service.ErrTransactionNotFound) ||
		errors.Is(err, service.ErrRepairNotFound) ||
		errors.Is(err, service.ErrShopNotFound)
}

// writeServiceError maps a service error to its HTTP status. Unknown errors
// are logged and answered with a bare 500.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	switch {
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case isNotFoundError(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrForbiddenEdit):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case isConflictError(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		logger.Error(op, zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func formatItemError(field string, idx int, msg string) string {
	return field + "[" + strconv.Itoa(idx) + "]: " + msg
}

// parseAmount reads an optional decimal string. Empty means zero.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func uuidPtr(u pgtype.UUID) *string {
	if !u.Valid {
		return nil
	}
	s := uuid.UUID(u.Bytes).String()
	return &s
}

// queryInt reads a non-negative integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			return v
		}
	}
	return def
}
