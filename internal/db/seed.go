package db

import (
	"time"

	"gorm.io/gorm"

	"github.com/avosseler/costmanager/internal/models"
)

// Seed inserts a couple of demo purchases. Intended for development only,
// guarded by a flag in main.
func Seed(conn *gorm.DB) error {
	samples := []models.PurchaseWithPositions{
		{
			Purchase: models.Purchase{PurchaseDate: time.Now(), Store: "Supermarkt A", StoreType: "supermarket", TotalPrice: 5.50},
			Positions: []models.Position{
				{ItemName: "Milk", ItemType: "groceries", Quantity: 2.0, Unit: "liter", UnitPrice: 1.50, Price: 3.00},
				{ItemName: "Bread", ItemType: "groceries", Quantity: 1.0, Unit: "piece", UnitPrice: 2.50, Price: 2.50},
			},
		},
		{
			Purchase: models.Purchase{PurchaseDate: time.Now(), Store: "Tankstelle B", StoreType: "gas station", TotalPrice: 75.50},
			Positions: []models.Position{
				{ItemName: "Super Benzin", ItemType: "fuel", Quantity: 50.0, Unit: "liter", UnitPrice: 1.51, Price: 75.50},
			},
		},
	}

	return conn.Transaction(func(tx *gorm.DB) error {
		for _, sample := range samples {
			p := sample.Purchase
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			for i := range sample.Positions {
				sample.Positions[i].PurchaseID = p.ID
			}
			if err := tx.Create(&sample.Positions).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
