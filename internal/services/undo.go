package services

import (
	"context"
	"sync"

	"github.com/avosseler/costmanager/internal/models"
)

// UndoAction is the one pending reversible delete. The buffer is single-slot:
// a newer delete unconditionally replaces whatever was pending, which then
// becomes permanently unrecoverable.
type UndoAction interface {
	undoAction()
}

// DeletePurchaseUndo carries the full aggregate captured before the delete,
// children included.
type DeletePurchaseUndo struct {
	Snapshot models.PurchaseWithPositions
}

// DeletePositionUndo carries the single deleted position.
type DeletePositionUndo struct {
	Position models.Position
}

func (DeletePurchaseUndo) undoAction() {}
func (DeletePositionUndo) undoAction() {}

type undoBuffer struct {
	mu      sync.Mutex
	pending UndoAction
}

func (b *undoBuffer) set(a UndoAction) {
	b.mu.Lock()
	b.pending = a
	b.mu.Unlock()
}

// take clears the slot and returns what was pending, nil when idle.
func (b *undoBuffer) take() UndoAction {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.pending
	b.pending = nil
	return a
}

func (b *undoBuffer) peek() UndoAction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// PendingUndo reports the not-yet-consumed undo action, nil when there is none.
func (s *PurchaseService) PendingUndo() UndoAction {
	return s.undo.peek()
}

// Undo re-inserts the captured record(s) of the pending delete. All
// identifiers are reset so the store assigns fresh ones; the originals may
// already have been reused. Returns false without error when nothing was
// pending.
//
// Undoing a position delete re-runs the total recalculation for the owning
// purchase, since re-inserting the row does not by itself restore the total.
func (s *PurchaseService) Undo(ctx context.Context) (bool, error) {
	switch a := s.undo.take().(type) {
	case nil:
		return false, nil
	case DeletePurchaseUndo:
		purchase := a.Snapshot.Purchase
		purchase.ID = 0
		positions := make([]models.Position, len(a.Snapshot.Positions))
		for i, pos := range a.Snapshot.Positions {
			pos.ID = 0
			pos.PurchaseID = 0
			positions[i] = pos
		}
		if _, err := s.store.InsertPurchaseWithPositions(ctx, &purchase, positions); err != nil {
			return false, err
		}
		return true, nil
	case DeletePositionUndo:
		pos := a.Position
		pos.ID = 0
		if err := s.store.InsertPositions(ctx, []models.Position{pos}); err != nil {
			return false, err
		}
		if err := s.recalcTotal(ctx, pos.PurchaseID); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}
