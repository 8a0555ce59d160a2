package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/avosseler/costmanager/httpx"
	"github.com/avosseler/costmanager/internal/models"
	"github.com/avosseler/costmanager/internal/services"
	"github.com/avosseler/costmanager/internal/store"
)

const dateLayout = "2006-01-02"

// PurchaseHandler serves the purchase CRUD plus the undo endpoint.
type PurchaseHandler struct {
	Store *store.PurchaseStore
	Svc   *services.PurchaseService
}

func NewPurchaseHandler(st *store.PurchaseStore, svc *services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{Store: st, Svc: svc}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// List: GET /purchases – every aggregate, newest first.
func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	aggregates, err := h.Store.GetAllPurchasesWithPositions(r.Context())
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_purchases", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, aggregates)
}

// Get: GET /purchases/{id}
func (h *PurchaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	agg, err := h.Store.GetPurchaseWithPositions(r.Context(), id)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_purchase", nil)
		return
	}
	if agg == nil {
		httpx.JSONError(w, http.StatusNotFound, "purchase_not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, agg)
}

// Create: POST /purchases – manual entry with an optional first position.
func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Store        string                  `json:"store"`
		StoreType    string                  `json:"storeType"`
		PurchaseDate string                  `json:"purchaseDate"`
		Position     *services.PositionInput `json:"position,omitempty"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if req.Store == "" {
		httpx.JSONError(w, http.StatusBadRequest, "store_required", nil)
		return
	}
	date := time.Now()
	if req.PurchaseDate != "" {
		parsed, err := time.Parse(dateLayout, req.PurchaseDate)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_purchase_date", nil)
			return
		}
		date = parsed
	}
	id, err := h.Svc.AddPurchase(r.Context(), req.Store, req.StoreType, date, req.Position)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_purchase", nil)
		return
	}
	agg, err := h.Store.GetPurchaseWithPositions(r.Context(), id)
	if err != nil || agg == nil {
		httpx.JSON(w, http.StatusCreated, map[string]any{"id": id})
		return
	}
	httpx.JSON(w, http.StatusCreated, agg)
}

// Update: PUT /purchases/{id} – full-record replace; unknown IDs are a no-op.
func (h *PurchaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var p models.Purchase
	if err := httpx.Decode(r, &p); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	p.ID = id
	if err := h.Svc.UpdatePurchase(r.Context(), &p); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_purchase", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

// AttachPhoto: POST /purchases/{id}/photo – stores a photo reference.
func (h *PurchaseHandler) AttachPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req struct {
		PhotoURI string `json:"photoUri"`
	}
	if err := httpx.Decode(r, &req); err != nil || req.PhotoURI == "" {
		httpx.JSONError(w, http.StatusBadRequest, "photo_uri_required", nil)
		return
	}
	if err := h.Svc.AttachPhoto(r.Context(), id, req.PhotoURI); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_attach_photo", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

// Delete: DELETE /purchases/{id} – soft-reversible via the undo slot.
func (h *PurchaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.DeletePurchase(r.Context(), id); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_purchase", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Undo: POST /undo – re-inserts the most recent delete, if one is pending.
func (h *PurchaseHandler) Undo(w http.ResponseWriter, r *http.Request) {
	undone, err := h.Svc.Undo(r.Context())
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "undo_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"undone": undone})
}
