package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avosseler/costmanager/internal/services"
)

func TestPositionCreateUpdatesOwnerTotal(t *testing.T) {
	svc, st := setupHandlers(t, nil)
	h := NewPositionHandler(svc)
	ctx := context.Background()

	purchaseID, err := svc.AddPurchase(ctx, "Supermarkt A", "supermarket", time.Now(), nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := jsonRequest(http.MethodPost, "/purchases/1/positions", `{"itemName": "Milk", "itemType": "groceries", "quantity": 2, "unit": "liter", "unitPrice": 1.50}`)
	req.SetPathValue("id", fmt.Sprint(purchaseID))
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned position id")
	}

	agg, err := st.GetPurchaseWithPositions(ctx, purchaseID)
	if err != nil || agg == nil {
		t.Fatalf("read back: %v", err)
	}
	if agg.Purchase.TotalPrice != 3.00 {
		t.Fatalf("total = %v, want 3.00", agg.Purchase.TotalPrice)
	}
}

func TestPositionCreateRequiresItemName(t *testing.T) {
	svc, _ := setupHandlers(t, nil)
	h := NewPositionHandler(svc)

	req := jsonRequest(http.MethodPost, "/purchases/1/positions", `{"quantity": 1}`)
	req.SetPathValue("id", "1")
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}

func TestPositionDeleteRecalculatesTotal(t *testing.T) {
	svc, st := setupHandlers(t, nil)
	h := NewPositionHandler(svc)
	ctx := context.Background()

	purchaseID, err := svc.AddPurchase(ctx, "Supermarkt A", "supermarket", time.Now(), &services.PositionInput{
		ItemName: "Milk", ItemType: "groceries", Quantity: 2, Unit: "liter", UnitPrice: 1.50,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	breadID, err := svc.AddPosition(ctx, purchaseID, services.PositionInput{
		ItemName: "Bread", ItemType: "groceries", Quantity: 1, Unit: "piece", UnitPrice: 2.50,
	})
	if err != nil {
		t.Fatalf("seed bread: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/positions/1", nil)
	req.SetPathValue("id", fmt.Sprint(breadID))
	w := httptest.NewRecorder()
	h.Delete(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", w.Code)
	}

	agg, err := st.GetPurchaseWithPositions(ctx, purchaseID)
	if err != nil || agg == nil {
		t.Fatalf("read back: %v", err)
	}
	if len(agg.Positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(agg.Positions))
	}
	if agg.Purchase.TotalPrice != 3.00 {
		t.Fatalf("total = %v, want 3.00 after delete", agg.Purchase.TotalPrice)
	}
}
