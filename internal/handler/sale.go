package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/pharmacy-pos/internal/domain/auth"
	"github.com/xenking/pharmacy-pos/internal/domain/sale"
)

// CreateSale handles POST /api/sales and answers 201 with the receipt.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var actorID string
	if actor, ok := auth.ActorFrom(r.Context()); ok {
		actorID = actor.ID()
	}

	body, err := decodeSaleRequest(r.Body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := body.toCreateRequest(actorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	receipt, err := h.sales.CreateSale(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeReceipt(e, receipt, actorID)
	writeJSON(w, http.StatusCreated, e)
}

// GetSale handles GET /api/sales/{orderNumber}.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "orderNumber")
	if !sale.ValidOrderNumber(number) {
		h.fail(w, r, sale.ErrNotFound)
		return
	}

	sl, err := h.receipts.GetByOrderNumber(r.Context(), number)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeReceipt(e, sale.NewReceipt(sl), sl.CreatedBy)
	writeJSON(w, http.StatusOK, e)
}
