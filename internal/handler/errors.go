package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/bazarko/marketplace-api/internal/domain/analytics"
	"github.com/bazarko/marketplace-api/internal/domain/order"
	"github.com/bazarko/marketplace-api/internal/domain/product"
	"github.com/bazarko/marketplace-api/internal/domain/voucher"
)

// errorResponse is the JSON error envelope returned by every endpoint.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// respondError maps domain errors to HTTP status codes. Unexpected errors are
// logged and masked behind a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrInvalidPaymentMethod),
		errors.Is(err, order.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, analytics.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())

	case errors.Is(err, voucher.ErrNotFound), voucher.IsValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, unwrapMessage(err))

	default:
		respondTypedError(w, r, err)
	}
}

func respondTypedError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		authErr  *order.UnauthorizedError
		transErr *order.InvalidStateTransitionError
		stockErr *product.InsufficientStockError
		pnfErr   *order.ProductNotFoundError
		iqErr    *order.InvalidQuantityError
	)
	switch {
	case errors.As(err, &authErr):
		writeError(w, http.StatusForbidden, authErr.Error())
	case errors.As(err, &transErr):
		writeError(w, http.StatusConflict, transErr.Error())
	case errors.As(err, &stockErr):
		writeError(w, http.StatusUnprocessableEntity, stockErr.Error())
	case errors.As(err, &pnfErr):
		writeError(w, http.StatusUnprocessableEntity, pnfErr.Error())
	case errors.As(err, &iqErr):
		writeError(w, http.StatusUnprocessableEntity, iqErr.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// unwrapMessage strips wrap prefixes so clients see the root cause only.
func unwrapMessage(err error) string {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err.Error()
		}
		err = unwrapped
	}
}
