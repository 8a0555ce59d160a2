package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/avosseler/costmanager/internal/ai"
	"github.com/avosseler/costmanager/internal/models"
	"github.com/avosseler/costmanager/internal/store"
)

// PurchaseService owns the rules around purchases and positions: keeping a
// purchase's total consistent with its positions, the single-level undo for
// deletes, and turning AI output or imported JSON into domain records.
type PurchaseService struct {
	store  *store.PurchaseStore
	vision ai.VisionModel
	log    zerolog.Logger

	undo        undoBuffer
	corrections correctionSet
}

func NewPurchaseService(st *store.PurchaseStore, vision ai.VisionModel, log zerolog.Logger) *PurchaseService {
	return &PurchaseService{store: st, vision: vision, log: log}
}

// PositionInput is the user-facing shape of a new line item. The line price is
// always computed here as quantity times unit price.
type PositionInput struct {
	ItemName  string  `json:"itemName"`
	ItemType  string  `json:"itemType"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
	UnitPrice float64 `json:"unitPrice"`
}

func (in PositionInput) toPosition(purchaseID int64) models.Position {
	return models.Position{
		PurchaseID: purchaseID,
		ItemName:   in.ItemName,
		ItemType:   in.ItemType,
		Quantity:   in.Quantity,
		Unit:       in.Unit,
		UnitPrice:  in.UnitPrice,
		Price:      in.Quantity * in.UnitPrice,
	}
}

// AddPurchase records a manually entered purchase with an optional first
// position. The initial total is that position's line price, or zero.
func (s *PurchaseService) AddPurchase(ctx context.Context, storeName, storeType string, date time.Time, first *PositionInput) (int64, error) {
	var positions []models.Position
	var total float64
	if first != nil {
		pos := first.toPosition(0)
		total = pos.Price
		positions = append(positions, pos)
	}
	purchase := models.Purchase{
		PurchaseDate: date,
		Store:        storeName,
		StoreType:    storeType,
		TotalPrice:   total,
	}
	return s.store.InsertPurchaseWithPositions(ctx, &purchase, positions)
}

// UpdatePurchase replaces the purchase record. Missing IDs are a no-op.
func (s *PurchaseService) UpdatePurchase(ctx context.Context, p *models.Purchase) error {
	return s.store.UpdatePurchase(ctx, p)
}

// SetPurchaseDate writes only the purchase date.
func (s *PurchaseService) SetPurchaseDate(ctx context.Context, purchaseID int64, date time.Time) error {
	return s.store.UpdatePurchaseDate(ctx, purchaseID, date)
}

// AttachPhoto stores the photo reference on an existing purchase.
func (s *PurchaseService) AttachPhoto(ctx context.Context, purchaseID int64, uri string) error {
	return s.store.UpdatePhotoURI(ctx, purchaseID, uri)
}

// AddPosition appends a line item to a purchase and restores the total
// invariant. Returns the new position's ID.
func (s *PurchaseService) AddPosition(ctx context.Context, purchaseID int64, in PositionInput) (int64, error) {
	positions := []models.Position{in.toPosition(purchaseID)}
	if err := s.store.InsertPositions(ctx, positions); err != nil {
		return 0, err
	}
	if err := s.recalcTotal(ctx, purchaseID); err != nil {
		return 0, err
	}
	return positions[0].ID, nil
}

// UpdatePosition replaces a line item and restores the total invariant for
// its owning purchase.
func (s *PurchaseService) UpdatePosition(ctx context.Context, p *models.Position) error {
	if err := s.store.UpdatePosition(ctx, p); err != nil {
		return err
	}
	return s.recalcTotal(ctx, p.PurchaseID)
}

// DeletePurchase snapshots the full aggregate, removes it (positions cascade)
// and puts the snapshot into the undo slot. Deleting a purchase that is
// already gone is a no-op.
func (s *PurchaseService) DeletePurchase(ctx context.Context, purchaseID int64) error {
	agg, err := s.store.GetPurchaseWithPositions(ctx, purchaseID)
	if err != nil {
		return err
	}
	if agg == nil {
		return nil
	}
	if err := s.store.DeletePurchase(ctx, purchaseID); err != nil {
		return err
	}
	// slot filled only once the delete went through; an undo of a failed
	// delete would re-insert a still-existing purchase
	s.undo.set(DeletePurchaseUndo{Snapshot: *agg})
	return nil
}

// DeletePosition captures the position into the undo slot, removes it, and
// restores the owner's total invariant.
func (s *PurchaseService) DeletePosition(ctx context.Context, positionID int64) error {
	pos, err := s.store.GetPosition(ctx, positionID)
	if err != nil {
		return err
	}
	if pos == nil {
		return nil
	}
	if err := s.store.DeletePosition(ctx, positionID); err != nil {
		return err
	}
	s.undo.set(DeletePositionUndo{Position: *pos})
	return s.recalcTotal(ctx, pos.PurchaseID)
}

// recalcTotal re-reads the owner's current position list and writes the sum
// of line prices back as the purchase total. An owner deleted in the meantime
// is skipped; an empty position list legitimately writes 0.
//
// There is no lock across this read-modify-write: two concurrent position
// edits on the same purchase race and the last write wins. Acceptable for a
// single-user local store.
func (s *PurchaseService) recalcTotal(ctx context.Context, purchaseID int64) error {
	agg, err := s.store.GetPurchaseWithPositions(ctx, purchaseID)
	if err != nil {
		return err
	}
	if agg == nil {
		return nil
	}
	var total float64
	for _, pos := range agg.Positions {
		total += pos.Price
	}
	agg.Purchase.TotalPrice = total
	return s.store.UpdatePurchase(ctx, &agg.Purchase)
}
