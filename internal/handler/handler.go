// Package handler exposes the checkout and catalog over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/pharmacy-pos/internal/domain/auth"
	"github.com/xenking/pharmacy-pos/internal/domain/medicine"
	"github.com/xenking/pharmacy-pos/internal/domain/sale"
	"github.com/xenking/pharmacy-pos/pkg/httpmiddleware"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// SaleCreator runs a checkout.
type SaleCreator interface {
	CreateSale(ctx context.Context, req sale.CreateRequest) (*sale.Receipt, error)
}

// TokenVerifier resolves a bearer token to an actor.
type TokenVerifier interface {
	Verify(raw string) (auth.Actor, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// Location defines "today" when flagging expired medicines in listings.
	Location *time.Location
}

// Handler serves the /api routes.
type Handler struct {
	sales     SaleCreator
	receipts  sale.Repository
	medicines medicine.Repository
	tokens    TokenVerifier
	loc       *time.Location
	now       func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	sales SaleCreator,
	receipts sale.Repository,
	medicines medicine.Repository,
	tokens TokenVerifier,
) *Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		sales:     sales,
		receipts:  receipts,
		medicines: medicines,
		tokens:    tokens,
		loc:       loc,
		now:       time.Now,
	}
}

// Mount registers the API under /api on r. Every API route requires a bearer
// token.
func (h *Handler) Mount(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.Authenticate)
		r.Get("/medicines", h.ListMedicines)
		r.Post("/sales", h.CreateSale)
		r.Get("/sales/{orderNumber}", h.GetSale)
	})
}
