package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pharmacy-pos/internal/domain/auth"
	"github.com/xenking/pharmacy-pos/internal/domain/sale"
)

// Authenticate resolves the bearer token into an auth.Actor stored in the
// request context. Requests without a valid token get 401.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			h.fail(w, r, sale.ErrNoActor)
			return
		}

		actor, err := h.tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			zctx.From(r.Context()).Debug("Token rejected", zap.Error(err))
			h.fail(w, r, auth.ErrUnauthorized)
			return
		}

		ctx := auth.WithActor(r.Context(), actor)
		ctx = zctx.With(ctx, zap.Int64("user_id", actor.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
