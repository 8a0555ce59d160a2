package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/avosseler/costmanager/internal/models"
)

// PurchaseStore mediates between the domain records and the relational store.
// Missing-record updates and deletes are silent no-ops: the caller may race
// with a concurrent delete and that is not an error condition here.
type PurchaseStore struct {
	db       *gorm.DB
	notifier *notifier
	allWatch *watchHub[[]models.PurchaseWithPositions]
	oneWatch *watchHub[*models.PurchaseWithPositions]
}

func New(conn *gorm.DB) *PurchaseStore {
	n := newNotifier()
	return &PurchaseStore{
		db:       conn,
		notifier: n,
		allWatch: newWatchHub[[]models.PurchaseWithPositions](n, watchGracePeriod),
		oneWatch: newWatchHub[*models.PurchaseWithPositions](n, watchGracePeriod),
	}
}

// InsertPurchaseWithPositions persists the purchase and all its positions in
// one transaction. Every position is re-stamped with the generated purchase ID
// regardless of the owner ID it arrived with.
func (s *PurchaseStore) InsertPurchaseWithPositions(ctx context.Context, p *models.Purchase, positions []models.Position) (int64, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if len(positions) == 0 {
			return nil
		}
		for i := range positions {
			positions[i].PurchaseID = p.ID
		}
		return tx.Create(&positions).Error
	})
	if err != nil {
		return 0, err
	}
	s.notifier.publish()
	return p.ID, nil
}

func (s *PurchaseStore) InsertPositions(ctx context.Context, positions []models.Position) error {
	if len(positions) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&positions).Error; err != nil {
		return err
	}
	s.notifier.publish()
	return nil
}

// UpdatePurchase replaces the full record by ID. A missing ID affects no rows.
func (s *PurchaseStore) UpdatePurchase(ctx context.Context, p *models.Purchase) error {
	res := s.db.WithContext(ctx).Model(&models.Purchase{}).Where("id = ?", p.ID).Updates(map[string]any{
		"purchase_date": p.PurchaseDate,
		"store":         p.Store,
		"store_type":    p.StoreType,
		"total_price":   p.TotalPrice,
		"photo_uri":     p.PhotoURI,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.notifier.publish()
	}
	return nil
}

// UpdatePosition replaces the full record by ID. A missing ID affects no rows.
func (s *PurchaseStore) UpdatePosition(ctx context.Context, p *models.Position) error {
	res := s.db.WithContext(ctx).Model(&models.Position{}).Where("id = ?", p.ID).Updates(map[string]any{
		"purchase_id": p.PurchaseID,
		"item_name":   p.ItemName,
		"item_type":   p.ItemType,
		"quantity":    p.Quantity,
		"unit":        p.Unit,
		"unit_price":  p.UnitPrice,
		"price":       p.Price,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.notifier.publish()
	}
	return nil
}

// UpdatePurchaseDate writes only the date column, used when a pending
// date-correction request is resolved.
func (s *PurchaseStore) UpdatePurchaseDate(ctx context.Context, id int64, date time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Purchase{}).Where("id = ?", id).Update("purchase_date", date)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.notifier.publish()
	}
	return nil
}

// UpdatePhotoURI attaches a photo reference to an existing purchase.
func (s *PurchaseStore) UpdatePhotoURI(ctx context.Context, id int64, uri string) error {
	res := s.db.WithContext(ctx).Model(&models.Purchase{}).Where("id = ?", id).Update("photo_uri", uri)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.notifier.publish()
	}
	return nil
}

// DeletePurchase removes the purchase and all its positions. The positions are
// removed in the same transaction; the schema-level cascade is a backstop for
// stores that enforce it.
func (s *PurchaseStore) DeletePurchase(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("purchase_id = ?", id).Delete(&models.Position{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Purchase{}, id).Error
	})
	if err != nil {
		return err
	}
	s.notifier.publish()
	return nil
}

func (s *PurchaseStore) DeletePosition(ctx context.Context, id int64) error {
	if err := s.db.WithContext(ctx).Delete(&models.Position{}, id).Error; err != nil {
		return err
	}
	s.notifier.publish()
	return nil
}

// GetPosition returns the position or nil when it no longer exists.
func (s *PurchaseStore) GetPosition(ctx context.Context, id int64) (*models.Position, error) {
	var pos models.Position
	err := s.db.WithContext(ctx).First(&pos, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// GetPurchaseWithPositions is the point-in-time aggregate read used inside
// multi-step operations. Returns nil when the purchase no longer exists.
func (s *PurchaseStore) GetPurchaseWithPositions(ctx context.Context, id int64) (*models.PurchaseWithPositions, error) {
	var p models.Purchase
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var positions []models.Position
	if err := s.db.WithContext(ctx).Where("purchase_id = ?", id).Order("id").Find(&positions).Error; err != nil {
		return nil, err
	}
	return &models.PurchaseWithPositions{Purchase: p, Positions: positions}, nil
}

// GetAllPurchasesWithPositions returns every aggregate, newest purchase first.
func (s *PurchaseStore) GetAllPurchasesWithPositions(ctx context.Context) ([]models.PurchaseWithPositions, error) {
	var purchases []models.Purchase
	if err := s.db.WithContext(ctx).Order("purchase_date DESC, id DESC").Find(&purchases).Error; err != nil {
		return nil, err
	}
	return s.attachPositions(ctx, purchases)
}

// GetPurchasesBetween returns the aggregates whose purchase date falls in
// [start, end] inclusive, newest first. Used by the export path.
func (s *PurchaseStore) GetPurchasesBetween(ctx context.Context, start, end time.Time) ([]models.PurchaseWithPositions, error) {
	var purchases []models.Purchase
	err := s.db.WithContext(ctx).
		Where("purchase_date BETWEEN ? AND ?", start, end).
		Order("purchase_date DESC, id DESC").
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return s.attachPositions(ctx, purchases)
}

// attachPositions loads the positions for all given purchases in one query
// and groups them into aggregates, preserving purchase order.
func (s *PurchaseStore) attachPositions(ctx context.Context, purchases []models.Purchase) ([]models.PurchaseWithPositions, error) {
	aggregates := make([]models.PurchaseWithPositions, len(purchases))
	if len(purchases) == 0 {
		return aggregates, nil
	}
	ids := make([]int64, len(purchases))
	for i, p := range purchases {
		ids[i] = p.ID
	}
	var positions []models.Position
	if err := s.db.WithContext(ctx).Where("purchase_id IN ?", ids).Order("id").Find(&positions).Error; err != nil {
		return nil, err
	}
	byPurchase := make(map[int64][]models.Position, len(purchases))
	for _, pos := range positions {
		byPurchase[pos.PurchaseID] = append(byPurchase[pos.PurchaseID], pos)
	}
	for i, p := range purchases {
		aggregates[i] = models.PurchaseWithPositions{Purchase: p, Positions: byPurchase[p.ID]}
	}
	return aggregates, nil
}
