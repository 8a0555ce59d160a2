package models

import "time"

// Purchase is one recorded shopping event. TotalPrice is derived from the
// purchase's positions and is rewritten by the service layer after every
// position mutation; the store does not enforce it.
type Purchase struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	PurchaseDate time.Time `gorm:"not null;index" json:"purchaseDate"`
	Store        string    `gorm:"size:255;not null" json:"store"`
	StoreType    string    `gorm:"size:100;not null" json:"storeType"`
	TotalPrice   float64   `gorm:"not null" json:"totalPrice"`
	PhotoURI     string    `gorm:"size:512" json:"photoUri,omitempty"`
}

// Position is one line item belonging to a purchase. Price is quantity times
// unit price at entry time but is stored independently and may diverge.
// UnitPrice may be negative to represent a discount line.
type Position struct {
	ID         int64   `gorm:"primaryKey" json:"id"`
	PurchaseID int64   `gorm:"index;not null" json:"purchaseId"`
	ItemName   string  `gorm:"size:255;not null" json:"itemName"`
	ItemType   string  `gorm:"size:100;not null" json:"itemType"`
	Quantity   float64 `gorm:"not null" json:"quantity"`
	Unit       string  `gorm:"size:50" json:"unit"`
	UnitPrice  float64 `gorm:"not null" json:"unitPrice"`
	Price      float64 `gorm:"not null" json:"price"`

	Purchase *Purchase `gorm:"foreignKey:PurchaseID;constraint:OnDelete:CASCADE" json:"-"`
}

// PurchaseWithPositions is the aggregate the store hands out: a purchase and
// its full, ID-ordered position list. It is also the export wire shape.
type PurchaseWithPositions struct {
	Purchase  Purchase   `json:"purchase"`
	Positions []Position `json:"positions"`
}
