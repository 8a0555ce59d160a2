package db

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avosseler/costmanager/internal/models"
)

func TestDialectorFor(t *testing.T) {
	cases := []struct {
		dsn  string
		want string
	}{
		{"", "sqlite"},
		{"costmanager.db", "sqlite"},
		{"file:test?mode=memory", "sqlite"},
		{"postgres://user:pw@localhost:5432/costs", "postgres"},
		{"postgresql://user:pw@localhost:5432/costs", "postgres"},
		{"host=localhost user=costs dbname=costs sslmode=disable", "postgres"},
	}
	for _, c := range cases {
		if got := DialectorFor(c.dsn).Name(); got != c.want {
			t.Errorf("DialectorFor(%q) = %s, want %s", c.dsn, got, c.want)
		}
	}
}

func TestSeedInsertsDemoData(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Seed(conn); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var purchases []models.Purchase
	if err := conn.Find(&purchases).Error; err != nil {
		t.Fatalf("load purchases: %v", err)
	}
	if len(purchases) != 2 {
		t.Fatalf("expected 2 demo purchases, got %d", len(purchases))
	}
	var positions []models.Position
	if err := conn.Find(&positions).Error; err != nil {
		t.Fatalf("load positions: %v", err)
	}
	if len(positions) != 3 {
		t.Fatalf("expected 3 demo positions, got %d", len(positions))
	}
	for _, pos := range positions {
		if pos.PurchaseID == 0 {
			t.Fatalf("position %d missing its owner", pos.ID)
		}
	}
}
