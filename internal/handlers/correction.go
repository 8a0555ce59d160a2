package handlers

import (
	"net/http"
	"time"

	"github.com/avosseler/costmanager/httpx"
	"github.com/avosseler/costmanager/internal/services"
)

// CorrectionHandler serves the pending date-correction queue for AI-imported
// purchases whose receipt carried no usable date.
type CorrectionHandler struct {
	Svc *services.PurchaseService
}

func NewCorrectionHandler(svc *services.PurchaseService) *CorrectionHandler {
	return &CorrectionHandler{Svc: svc}
}

// List: GET /corrections
func (h *CorrectionHandler) List(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.Svc.DateCorrections())
}

// Resolve: POST /corrections/{id} – user supplies the real purchase date.
func (h *CorrectionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req struct {
		PurchaseDate string `json:"purchaseDate"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	date, err := time.Parse(dateLayout, req.PurchaseDate)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_purchase_date", nil)
		return
	}
	if err := h.Svc.ResolveDateCorrection(r.Context(), id, date); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_correct_date", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

// Dismiss: DELETE /corrections/{id} – drops the request, record untouched.
func (h *CorrectionHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	h.Svc.DismissDateCorrection(id)
	w.WriteHeader(http.StatusNoContent)
}
