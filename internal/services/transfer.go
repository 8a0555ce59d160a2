package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avosseler/costmanager/internal/models"
)

// ExportJSON serializes the aggregates in [start, end] inclusive as a
// pretty-printed JSON array, newest purchase first.
func (s *PurchaseService) ExportJSON(ctx context.Context, start, end time.Time) ([]byte, error) {
	aggregates, err := s.store.GetPurchasesBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(aggregates, "", "  ")
}

// ImportJSON inserts every aggregate of an exported JSON array as brand-new
// records: all identifiers are stripped first so nothing collides with
// existing rows. A payload that does not parse rejects the whole import.
// Returns the number of purchases imported.
func (s *PurchaseService) ImportJSON(ctx context.Context, data []byte) (int, error) {
	var aggregates []models.PurchaseWithPositions
	if err := json.Unmarshal(data, &aggregates); err != nil {
		return 0, fmt.Errorf("parse import payload: %w", err)
	}

	imported := 0
	for _, agg := range aggregates {
		purchase := agg.Purchase
		purchase.ID = 0
		positions := make([]models.Position, len(agg.Positions))
		for i, pos := range agg.Positions {
			pos.ID = 0
			pos.PurchaseID = 0
			positions[i] = pos
		}
		if _, err := s.store.InsertPurchaseWithPositions(ctx, &purchase, positions); err != nil {
			return imported, err
		}
		imported++
	}
	s.log.Info().Int("purchases", imported).Msg("import finished")
	return imported, nil
}
