package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/avosseler/costmanager/httpx"
	"github.com/avosseler/costmanager/internal/ai"
	"github.com/avosseler/costmanager/internal/audio"
	"github.com/avosseler/costmanager/internal/models"
	"github.com/avosseler/costmanager/internal/services"
)

// transcriber is the slice of the speech client this handler needs.
type transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, locale string) (string, error)
}

// ScanHandler serves the AI import paths: receipt photos and speech input.
// The recorder buffers PCM chunks pushed by the client between explicit
// start and stop calls.
type ScanHandler struct {
	Svc      *services.PurchaseService
	Speech   transcriber
	Recorder *audio.Recorder
	Locale   string
}

func NewScanHandler(svc *services.PurchaseService, speech transcriber, locale string) *ScanHandler {
	return &ScanHandler{Svc: svc, Speech: speech, Recorder: audio.NewRecorder(), Locale: locale}
}

// maxUploadBytes caps receipt photo and audio chunk uploads.
const maxUploadBytes = 16 << 20

// Scan: POST /scan – receipt in, persisted purchase out. Accepts a raw image
// body, {"image": "<base64>"} or {"text": "<receipt text>"} for receipts
// transcribed elsewhere.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Image string `json:"image"`
			Text  string `json:"text"`
		}
		if err := httpx.Decode(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		if req.Text != "" {
			agg, err := h.Svc.ImportReceiptText(r.Context(), req.Text)
			h.respondImport(w, agg, err)
			return
		}
		image, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil || len(image) == 0 {
			httpx.JSONError(w, http.StatusBadRequest, "image_required", nil)
			return
		}
		agg, err := h.Svc.ImportReceipt(r.Context(), image)
		h.respondImport(w, agg, err)
		return
	}

	image, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_image", nil)
		return
	}
	if len(image) == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "image_required", nil)
		return
	}
	agg, err := h.Svc.ImportReceipt(r.Context(), image)
	h.respondImport(w, agg, err)
}

func (h *ScanHandler) respondImport(w http.ResponseWriter, agg *models.PurchaseWithPositions, err error) {
	if err != nil {
		if errors.Is(err, ai.ErrNoAPIKey) {
			httpx.JSONError(w, http.StatusPreconditionFailed, "api_key_not_configured", nil)
			return
		}
		httpx.JSONError(w, http.StatusUnprocessableEntity, "receipt_not_recognized", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, agg)
}

// SpeechParse: POST /speech/parse – transcript in, prefilled purchase out.
// Nothing is persisted; the client confirms via the manual entry path.
func (h *ScanHandler) SpeechParse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transcript string `json:"transcript"`
	}
	if err := httpx.Decode(r, &req); err != nil || strings.TrimSpace(req.Transcript) == "" {
		httpx.JSONError(w, http.StatusBadRequest, "transcript_required", nil)
		return
	}
	prefill, err := h.Svc.ParseSpeechPurchase(r.Context(), req.Transcript)
	if err != nil {
		if errors.Is(err, ai.ErrNoAPIKey) {
			httpx.JSONError(w, http.StatusPreconditionFailed, "api_key_not_configured", nil)
			return
		}
		httpx.JSONError(w, http.StatusUnprocessableEntity, "speech_not_recognized", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, prefill)
}

// RecordStart: POST /speech/record/start – begins a fresh capture.
func (h *ScanHandler) RecordStart(w http.ResponseWriter, r *http.Request) {
	h.Recorder.Start()
	w.WriteHeader(http.StatusNoContent)
}

// RecordChunk: POST /speech/record/chunk – raw PCM samples pushed by the
// client while capture is active.
func (h *ScanHandler) RecordChunk(w http.ResponseWriter, r *http.Request) {
	chunk, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_chunk", nil)
		return
	}
	if _, err := h.Recorder.Write(chunk); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "buffer_failed", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordStop: POST /speech/record/stop – ends the capture and transcribes the
// buffered samples. Stopping with nothing buffered is a no-result, reported
// with 204, not an error.
func (h *ScanHandler) RecordStop(w http.ResponseWriter, r *http.Request) {
	pcm, ok := h.Recorder.Stop()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	transcript, err := h.Speech.Transcribe(r.Context(), pcm, h.Locale)
	if err != nil {
		if errors.Is(err, ai.ErrNoAPIKey) {
			httpx.JSONError(w, http.StatusPreconditionFailed, "api_key_not_configured", nil)
			return
		}
		httpx.JSONError(w, http.StatusBadGateway, "transcription_failed", nil)
		return
	}
	if transcript == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transcript": transcript})
}
