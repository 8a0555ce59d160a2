package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/avosseler/costmanager/httpx"
	"github.com/avosseler/costmanager/internal/services"
)

// TransferHandler serves the JSON export/import round trip.
type TransferHandler struct {
	Svc *services.PurchaseService
}

func NewTransferHandler(svc *services.PurchaseService) *TransferHandler {
	return &TransferHandler{Svc: svc}
}

// Export: GET /export?start=2024-01-01&end=2024-01-31 – both bounds
// inclusive; the end date covers its whole day.
func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(dateLayout, r.URL.Query().Get("start"))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_start_date", nil)
		return
	}
	end, err := time.Parse(dateLayout, r.URL.Query().Get("end"))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_end_date", nil)
		return
	}
	end = end.Add(24*time.Hour - time.Nanosecond)

	data, err := h.Svc.ExportJSON(r.Context(), start, end)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "export_failed", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="purchases.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// maxImportBytes caps the import payload.
const maxImportBytes = 32 << 20

// Import: POST /import – a previously exported JSON array. All records are
// inserted as new; no identifier from the file survives.
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "read_failed", nil)
		return
	}
	imported, err := h.Svc.ImportJSON(r.Context(), data)
	if err != nil {
		if imported == 0 {
			httpx.JSONError(w, http.StatusBadRequest, "import_failed", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "import_incomplete", map[string]any{"imported": imported})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"imported": imported})
}
