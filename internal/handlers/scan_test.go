package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avosseler/costmanager/internal/ai"
	"github.com/avosseler/costmanager/internal/services"
)

// fakeVision returns a canned model response.
type fakeVision struct {
	response string
	err      error
}

func (f *fakeVision) PurchaseFromImage(ctx context.Context, image []byte) (string, error) {
	return f.response, f.err
}

func (f *fakeVision) PurchaseFromText(ctx context.Context, text string) (string, error) {
	return f.response, f.err
}

// fakeTranscriber returns a canned transcript.
type fakeTranscriber struct {
	transcript string
	err        error
	gotPCM     []byte
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, pcm []byte, locale string) (string, error) {
	f.gotPCM = pcm
	return f.transcript, f.err
}

const receiptJSON = `{
  "purchaseDate": "2024-03-15",
  "store": "Edeka",
  "storeType": "supermarket",
  "totalPrice": 3.00,
  "positions": [
    {"itemName": "Milk", "itemType": "groceries", "quantity": 2.0, "unit": "liter", "unitPrice": 1.50, "price": 3.00}
  ]
}`

func TestScanPersistsRecognizedReceipt(t *testing.T) {
	svc, st := setupHandlers(t, &fakeVision{response: receiptJSON})
	h := NewScanHandler(svc, &fakeTranscriber{}, "de-DE")

	req := httptest.NewRequest(http.MethodPost, "/scan", bytes.NewReader([]byte{0xff, 0xd8, 0xff}))
	req.Header.Set("Content-Type", "image/jpeg")
	w := httptest.NewRecorder()
	h.Scan(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}
	all, err := st.GetAllPurchasesWithPositions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].Purchase.Store != "Edeka" {
		t.Fatalf("unexpected state after scan: %+v", all)
	}
}

func TestScanAcceptsBase64JSONBody(t *testing.T) {
	svc, _ := setupHandlers(t, &fakeVision{response: receiptJSON})
	h := NewScanHandler(svc, &fakeTranscriber{}, "de-DE")

	w := httptest.NewRecorder()
	h.Scan(w, jsonRequest(http.MethodPost, "/scan", `{"image": "/9j/AA=="}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}
}

func TestScanAcceptsTranscribedText(t *testing.T) {
	svc, st := setupHandlers(t, &fakeVision{response: receiptJSON})
	h := NewScanHandler(svc, &fakeTranscriber{}, "de-DE")

	w := httptest.NewRecorder()
	h.Scan(w, jsonRequest(http.MethodPost, "/scan", `{"text": "EDEKA Milch 2x1,50 Summe 3,00"}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}
	all, err := st.GetAllPurchasesWithPositions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 purchase after text scan, got %d", len(all))
	}
}

func TestScanUnrecognizedReceiptIs422(t *testing.T) {
	svc, st := setupHandlers(t, &fakeVision{response: "no json here"})
	h := NewScanHandler(svc, &fakeTranscriber{}, "de-DE")

	req := httptest.NewRequest(http.MethodPost, "/scan", bytes.NewReader([]byte{1}))
	w := httptest.NewRecorder()
	h.Scan(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", w.Code)
	}
	all, err := st.GetAllPurchasesWithPositions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatal("nothing may be persisted from an unrecognized receipt")
	}
}

func TestScanWithoutAPIKeyIs412(t *testing.T) {
	svc, _ := setupHandlers(t, &fakeVision{err: ai.ErrNoAPIKey})
	h := NewScanHandler(svc, &fakeTranscriber{}, "de-DE")

	req := httptest.NewRequest(http.MethodPost, "/scan", bytes.NewReader([]byte{1}))
	w := httptest.NewRecorder()
	h.Scan(w, req)
	if w.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 got %d", w.Code)
	}
}

func TestScanEmptyBodyIs400(t *testing.T) {
	svc, _ := setupHandlers(t, &fakeVision{response: receiptJSON})
	h := NewScanHandler(svc, &fakeTranscriber{}, "de-DE")

	req := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(""))
	w := httptest.NewRecorder()
	h.Scan(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}

func TestSpeechParseReturnsPrefillWithoutPersisting(t *testing.T) {
	svc, st := setupHandlers(t, &fakeVision{response: receiptJSON})
	h := NewScanHandler(svc, &fakeTranscriber{}, "de-DE")

	w := httptest.NewRecorder()
	h.SpeechParse(w, jsonRequest(http.MethodPost, "/speech/parse", `{"transcript": "two liters of milk at Edeka"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	var prefill services.SpeechPurchase
	if err := json.Unmarshal(w.Body.Bytes(), &prefill); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if prefill.Store != "Edeka" || prefill.Position == nil {
		t.Fatalf("unexpected prefill: %+v", prefill)
	}
	all, err := st.GetAllPurchasesWithPositions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatal("speech parsing must not persist anything")
	}
}

func TestSpeechParseRequiresTranscript(t *testing.T) {
	svc, _ := setupHandlers(t, &fakeVision{response: receiptJSON})
	h := NewScanHandler(svc, &fakeTranscriber{}, "de-DE")

	w := httptest.NewRecorder()
	h.SpeechParse(w, jsonRequest(http.MethodPost, "/speech/parse", `{"transcript": "   "}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}

func TestRecordLifecycle(t *testing.T) {
	svc, _ := setupHandlers(t, nil)
	speech := &fakeTranscriber{transcript: "zwei liter milch"}
	h := NewScanHandler(svc, speech, "de-DE")

	w := httptest.NewRecorder()
	h.RecordStart(w, httptest.NewRequest(http.MethodPost, "/speech/record/start", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("start: expected 204 got %d", w.Code)
	}

	w2 := httptest.NewRecorder()
	h.RecordChunk(w2, httptest.NewRequest(http.MethodPost, "/speech/record/chunk", bytes.NewReader([]byte{1, 2, 3, 4})))
	if w2.Code != http.StatusNoContent {
		t.Fatalf("chunk: expected 204 got %d", w2.Code)
	}

	w3 := httptest.NewRecorder()
	h.RecordStop(w3, httptest.NewRequest(http.MethodPost, "/speech/record/stop", nil))
	if w3.Code != http.StatusOK {
		t.Fatalf("stop: expected 200 got %d: %s", w3.Code, w3.Body.String())
	}
	if !bytes.Equal(speech.gotPCM, []byte{1, 2, 3, 4}) {
		t.Fatalf("transcriber got %v", speech.gotPCM)
	}
	var resp struct {
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(w3.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Transcript != "zwei liter milch" {
		t.Fatalf("transcript = %q", resp.Transcript)
	}
}

func TestRecordStopWithoutSamplesIs204(t *testing.T) {
	svc, _ := setupHandlers(t, nil)
	speech := &fakeTranscriber{}
	h := NewScanHandler(svc, speech, "de-DE")

	h.RecordStart(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/speech/record/start", nil))
	w := httptest.NewRecorder()
	h.RecordStop(w, httptest.NewRequest(http.MethodPost, "/speech/record/stop", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", w.Code)
	}
	if speech.gotPCM != nil {
		t.Fatal("transcriber must not be called with nothing buffered")
	}
}

func TestRecordStopEmptyTranscriptIs204(t *testing.T) {
	svc, _ := setupHandlers(t, nil)
	h := NewScanHandler(svc, &fakeTranscriber{transcript: ""}, "de-DE")

	h.RecordStart(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/speech/record/start", nil))
	h.RecordChunk(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/speech/record/chunk", bytes.NewReader([]byte{1})))
	w := httptest.NewRecorder()
	h.RecordStop(w, httptest.NewRequest(http.MethodPost, "/speech/record/stop", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", w.Code)
	}
}

func TestRecordStopTranscriptionFailureIs502(t *testing.T) {
	svc, _ := setupHandlers(t, nil)
	h := NewScanHandler(svc, &fakeTranscriber{err: errors.New("service down")}, "de-DE")

	h.RecordStart(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/speech/record/start", nil))
	h.RecordChunk(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/speech/record/chunk", bytes.NewReader([]byte{1})))
	w := httptest.NewRecorder()
	h.RecordStop(w, httptest.NewRequest(http.MethodPost, "/speech/record/stop", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", w.Code)
	}
}
