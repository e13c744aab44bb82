package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pharmacy-pos/internal/domain/auth"
	"github.com/xenking/pharmacy-pos/internal/domain/medicine"
	"github.com/xenking/pharmacy-pos/internal/domain/sale"
	"github.com/xenking/pharmacy-pos/pkg/httpmiddleware"
)

// fail maps err to a status and a client-safe message. Rejections carry the
// message of the offending line; anything unexpected is logged and reported
// as a generic 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sale.ErrNoActor):
		httpmiddleware.WriteError(w, http.StatusUnauthorized, sale.ErrNoActor.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		httpmiddleware.WriteError(w, http.StatusUnauthorized, auth.ErrUnauthorized.Error())
	case errors.Is(err, sale.ErrNotFound), errors.Is(err, medicine.ErrNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, notFoundMessage(err))
	case sale.IsRejection(err):
		httpmiddleware.WriteError(w, http.StatusBadRequest, rejectionMessage(err))
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

func notFoundMessage(err error) string {
	if errors.Is(err, medicine.ErrNotFound) {
		return medicine.ErrNotFound.Error()
	}
	return sale.ErrNotFound.Error()
}

// rejectionMessage unwraps to the typed rejection so storage context added
// on the way up does not reach the client.
func rejectionMessage(err error) string {
	var (
		inputErr   *sale.InputError
		unavailErr *sale.UnavailableError
		expiredErr *sale.ExpiredError
		stockErr   *sale.InsufficientStockError
	)
	switch {
	case errors.As(err, &stockErr):
		return stockErr.Error()
	case errors.As(err, &expiredErr):
		return expiredErr.Error()
	case errors.As(err, &unavailErr):
		return unavailErr.Error()
	case errors.As(err, &inputErr):
		return inputErr.Error()
	case errors.Is(err, sale.ErrEmptyItems):
		return sale.ErrEmptyItems.Error()
	case errors.Is(err, sale.ErrInvalidPaymentMethod):
		return sale.ErrInvalidPaymentMethod.Error()
	default:
		return err.Error()
	}
}
