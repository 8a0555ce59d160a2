package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avosseler/costmanager/internal/ai"
	"github.com/avosseler/costmanager/internal/models"
)

const (
	receiptDateLayout = "2006-01-02"

	// datePlaceholder is the template string from the prompt; models echo it
	// back when the receipt carries no readable date.
	datePlaceholder = "YYYY-MM-DD"
)

// receiptResponse is the JSON object the vision model is asked to produce.
type receiptResponse struct {
	PurchaseDate string            `json:"purchaseDate"`
	Store        string            `json:"store"`
	StoreType    string            `json:"storeType"`
	TotalPrice   float64           `json:"totalPrice"`
	Positions    []receiptPosition `json:"positions"`
}

type receiptPosition struct {
	ItemName  string  `json:"itemName"`
	ItemType  string  `json:"itemType"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
	UnitPrice float64 `json:"unitPrice"`
	Price     float64 `json:"price"`
}

func parseReceipt(raw string) (*receiptResponse, error) {
	cleaned := ai.StripFences(raw)
	var parsed receiptResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("parse receipt response: %w", err)
	}
	return &parsed, nil
}

// repairDate turns the model's date string into a usable time. An empty
// string, the echoed template placeholder, or anything that fails the
// year-month-day parse falls back to the current date and flags the record
// for follow-up correction; the failure never propagates.
func repairDate(raw string) (date time.Time, needsCorrection bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.Contains(strings.ToUpper(trimmed), datePlaceholder) {
		return time.Now(), true
	}
	parsed, err := time.Parse(receiptDateLayout, trimmed)
	if err != nil {
		return time.Now(), true
	}
	return parsed, false
}

// ImportReceipt runs the vision model over a receipt photo and persists the
// extracted purchase. A malformed model response aborts this one receipt with
// nothing persisted; the error is for reporting, not a crash.
func (s *PurchaseService) ImportReceipt(ctx context.Context, image []byte) (*models.PurchaseWithPositions, error) {
	raw, err := s.vision.PurchaseFromImage(ctx, image)
	if err != nil {
		return nil, err
	}
	return s.reconcileReceipt(ctx, raw)
}

// ImportReceiptText is ImportReceipt for already-transcribed receipt text.
func (s *PurchaseService) ImportReceiptText(ctx context.Context, text string) (*models.PurchaseWithPositions, error) {
	raw, err := s.vision.PurchaseFromText(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.reconcileReceipt(ctx, raw)
}

// reconcileReceipt turns the raw model text into validated domain records and
// persists them atomically. The parsed totalPrice is trusted as-is for
// AI-sourced purchases; recalculation only kicks in on later edits. When the
// date had to be repaired, a correction request is recorded against the new
// purchase so the user can supply the real date afterwards.
func (s *PurchaseService) reconcileReceipt(ctx context.Context, raw string) (*models.PurchaseWithPositions, error) {
	parsed, err := parseReceipt(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("receipt response not usable")
		return nil, err
	}

	date, needsCorrection := repairDate(parsed.PurchaseDate)
	purchase := models.Purchase{
		PurchaseDate: date,
		Store:        parsed.Store,
		StoreType:    strings.ToLower(parsed.StoreType),
		TotalPrice:   parsed.TotalPrice,
	}
	positions := make([]models.Position, len(parsed.Positions))
	for i, pos := range parsed.Positions {
		positions[i] = models.Position{
			// owner ID back-filled by the store on insert
			ItemName:  pos.ItemName,
			ItemType:  pos.ItemType,
			Quantity:  pos.Quantity,
			Unit:      pos.Unit,
			UnitPrice: pos.UnitPrice,
			Price:     pos.Price,
		}
	}

	id, err := s.store.InsertPurchaseWithPositions(ctx, &purchase, positions)
	if err != nil {
		return nil, err
	}
	if needsCorrection {
		s.corrections.add(id)
		s.log.Info().Int64("purchase_id", id).Msg("receipt date unusable, correction requested")
	}
	s.log.Info().Int64("purchase_id", id).Int("positions", len(positions)).Str("store", purchase.Store).Msg("receipt imported")
	return &models.PurchaseWithPositions{Purchase: purchase, Positions: positions}, nil
}

// SpeechPurchase is the prefill extracted from a spoken purchase description.
// Nothing is persisted; the user confirms it through the manual entry path.
type SpeechPurchase struct {
	Store     string         `json:"store"`
	StoreType string         `json:"storeType"`
	Date      time.Time      `json:"date"`
	Position  *PositionInput `json:"position,omitempty"`
}

// ParseSpeechPurchase runs the model over a transcript and maps the response
// to prefilled purchase fields plus the first position, if any. An unusable
// date silently falls back to today; no correction request is recorded since
// no record exists yet.
func (s *PurchaseService) ParseSpeechPurchase(ctx context.Context, transcript string) (*SpeechPurchase, error) {
	raw, err := s.vision.PurchaseFromText(ctx, transcript)
	if err != nil {
		return nil, err
	}
	parsed, err := parseReceipt(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("speech response not usable")
		return nil, err
	}
	date, _ := repairDate(parsed.PurchaseDate)
	result := &SpeechPurchase{
		Store:     parsed.Store,
		StoreType: parsed.StoreType,
		Date:      date,
	}
	if len(parsed.Positions) > 0 {
		first := parsed.Positions[0]
		result.Position = &PositionInput{
			ItemName:  first.ItemName,
			ItemType:  first.ItemType,
			Quantity:  first.Quantity,
			Unit:      first.Unit,
			UnitPrice: first.UnitPrice,
		}
	}
	return result, nil
}

// DateCorrection is a pending request to replace the fallback date of an
// already-persisted purchase.
type DateCorrection struct {
	PurchaseID  int64     `json:"purchaseId"`
	RequestedAt time.Time `json:"requestedAt"`
}

type correctionSet struct {
	mu   sync.Mutex
	open map[int64]DateCorrection
}

func (c *correctionSet) add(purchaseID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open == nil {
		c.open = make(map[int64]DateCorrection)
	}
	c.open[purchaseID] = DateCorrection{PurchaseID: purchaseID, RequestedAt: time.Now()}
}

func (c *correctionSet) remove(purchaseID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.open, purchaseID)
}

func (c *correctionSet) list() []DateCorrection {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DateCorrection, 0, len(c.open))
	for _, corr := range c.open {
		out = append(out, corr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchaseID < out[j].PurchaseID })
	return out
}

// DateCorrections lists the purchases still waiting for a user-supplied date.
func (s *PurchaseService) DateCorrections() []DateCorrection {
	return s.corrections.list()
}

// ResolveDateCorrection writes the corrected date and clears the request.
func (s *PurchaseService) ResolveDateCorrection(ctx context.Context, purchaseID int64, date time.Time) error {
	if err := s.SetPurchaseDate(ctx, purchaseID, date); err != nil {
		return err
	}
	s.corrections.remove(purchaseID)
	return nil
}

// DismissDateCorrection drops the request without touching the record.
func (s *PurchaseService) DismissDateCorrection(purchaseID int64) {
	s.corrections.remove(purchaseID)
}
