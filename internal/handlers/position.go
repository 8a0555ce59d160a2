package handlers

import (
	"net/http"

	"github.com/avosseler/costmanager/httpx"
	"github.com/avosseler/costmanager/internal/models"
	"github.com/avosseler/costmanager/internal/services"
)

// PositionHandler serves line-item mutations. Every mutation goes through the
// service so the owning purchase's total stays consistent.
type PositionHandler struct {
	Svc *services.PurchaseService
}

func NewPositionHandler(svc *services.PurchaseService) *PositionHandler {
	return &PositionHandler{Svc: svc}
}

// Create: POST /purchases/{id}/positions
func (h *PositionHandler) Create(w http.ResponseWriter, r *http.Request) {
	purchaseID, ok := pathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var in services.PositionInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if in.ItemName == "" {
		httpx.JSONError(w, http.StatusBadRequest, "item_name_required", nil)
		return
	}
	id, err := h.Svc.AddPosition(r.Context(), purchaseID, in)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_position", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": id})
}

// Update: PUT /positions/{id} – full-record replace; unknown IDs are a no-op.
func (h *PositionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var p models.Position
	if err := httpx.Decode(r, &p); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	p.ID = id
	if err := h.Svc.UpdatePosition(r.Context(), &p); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_position", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

// Delete: DELETE /positions/{id}
func (h *PositionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.DeletePosition(r.Context(), id); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_position", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
