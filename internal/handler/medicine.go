package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/pharmacy-pos/internal/domain/medicine"
)

// ListMedicines handles GET /api/medicines?q=. Only active medicines are
// listed; expired ones are flagged rather than hidden.
func (h *Handler) ListMedicines(w http.ResponseWriter, r *http.Request) {
	filter := medicine.ListFilter{Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	list, err := h.medicines.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	today := h.now().In(h.loc)
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ArrStart()
	for _, m := range list {
		encodeMedicine(e, m, today)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, e)
}
