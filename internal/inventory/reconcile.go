package inventory

import (
	"context"
	"errors"

	"go-pharmacy-pos/internal/apperr"
	"go-pharmacy-pos/internal/models"

	"gorm.io/gorm"
)

// Reconciliation compares a product's stock against a replay of its
// movement log: InitialStock - Out + In must equal Actual.
type Reconciliation struct {
	ProductID    uint   `json:"product_id"`
	SKU          string `json:"sku"`
	InitialStock int    `json:"initial_stock"`
	In           int64  `json:"in"`
	Out          int64  `json:"out"`
	Expected     int64  `json:"expected"`
	Actual       int    `json:"actual"`
	Balanced     bool   `json:"balanced"`
}

type movementTotals struct {
	ProductID uint
	InQty     int64
	OutQty    int64
}

const totalsSelect = "product_id, " +
	"COALESCE(SUM(CASE WHEN direction = 'in' THEN quantity ELSE 0 END), 0) AS in_qty, " +
	"COALESCE(SUM(CASE WHEN direction = 'out' THEN quantity ELSE 0 END), 0) AS out_qty"

func reconcile(p models.Product, t movementTotals) Reconciliation {
	expected := int64(p.InitialStock) - t.OutQty + t.InQty
	return Reconciliation{
		ProductID:    p.ID,
		SKU:          p.SKU,
		InitialStock: p.InitialStock,
		In:           t.InQty,
		Out:          t.OutQty,
		Expected:     expected,
		Actual:       p.StockQuantity,
		Balanced:     expected == int64(p.StockQuantity),
	}
}

// Reconcile replays one product's movements.
func (l *Ledger) Reconcile(ctx context.Context, productID uint) (*Reconciliation, error) {
	db := l.db.WithContext(ctx)
	var p models.Product
	if err := db.First(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product %d not found", productID)
		}
		return nil, apperr.Persistence("failed to load product", err)
	}
	var totals []movementTotals
	err := db.Model(&models.StockMovement{}).
		Select(totalsSelect).
		Where("product_id = ?", productID).
		Group("product_id").
		Scan(&totals).Error
	if err != nil {
		return nil, apperr.Persistence("failed to total stock movements", err)
	}
	var t movementTotals
	if len(totals) > 0 {
		t = totals[0]
	}
	r := reconcile(p, t)
	if !r.Balanced {
		l.log.Warn("stock out of balance", "product_id", p.ID, "expected", r.Expected, "actual", r.Actual)
	}
	return &r, nil
}

// ReconcileAll replays every product, in id order.
func (l *Ledger) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	db := l.db.WithContext(ctx)
	var products []models.Product
	if err := db.Order("id asc").Find(&products).Error; err != nil {
		return nil, apperr.Persistence("failed to fetch products", err)
	}
	var totals []movementTotals
	err := db.Model(&models.StockMovement{}).
		Select(totalsSelect).
		Group("product_id").
		Scan(&totals).Error
	if err != nil {
		return nil, apperr.Persistence("failed to total stock movements", err)
	}
	byProduct := make(map[uint]movementTotals, len(totals))
	for _, t := range totals {
		byProduct[t.ProductID] = t
	}

	out := make([]Reconciliation, 0, len(products))
	for _, p := range products {
		r := reconcile(p, byProduct[p.ID])
		if !r.Balanced {
			l.log.Warn("stock out of balance", "product_id", p.ID, "expected", r.Expected, "actual", r.Actual)
		}
		out = append(out, r)
	}
	return out, nil
}
