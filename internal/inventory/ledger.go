// Package inventory is the stock ledger: the only code allowed to change
// products.stock_quantity. Every change appends a stock movement in the
// same transaction.
package inventory

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"time"

	"go-pharmacy-pos/internal/apperr"
	"go-pharmacy-pos/internal/models"

	"gorm.io/gorm"
)

const defaultPageSize = 50

type Ledger struct {
	db       *gorm.DB
	log      *slog.Logger
	now      func() time.Time
	pageSize int
}

func New(db *gorm.DB, log *slog.Logger) *Ledger {
	return &Ledger{
		db:       db,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		pageSize: defaultPageSize,
	}
}

// WithTx returns a ledger bound to tx so debits and credits commit or roll
// back with the caller's unit of work.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	cp := *l
	cp.db = tx
	return &cp
}

// WithClock overrides the time source used for movement timestamps.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	cp := *l
	cp.now = now
	return &cp
}

// Debit removes qty units from a product and records an out movement.
// The decrement is a single conditional UPDATE guarded by
// stock_quantity >= qty, so concurrent debits can never drive stock
// negative or lose an update.
func (l *Ledger) Debit(ctx context.Context, productID uint, qty int, refOrderID *uint, notes string) (*models.StockMovement, error) {
	if qty <= 0 {
		return nil, apperr.Validation("debit quantity must be positive, got %d", qty)
	}
	var movement *models.StockMovement
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := l.now()
		res := tx.Model(&models.Product{}).
			Where("id = ? AND stock_quantity >= ?", productID, qty).
			Updates(map[string]any{
				"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
				"updated_at":     now,
			})
		if res.Error != nil {
			return apperr.Persistence("failed to debit stock", res.Error)
		}
		if res.RowsAffected == 0 {
			var p models.Product
			if err := tx.First(&p, productID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("product %d not found", productID)
				}
				return apperr.Persistence("failed to load product", err)
			}
			return apperr.InsufficientStock("insufficient stock for %s: requested %d, available %d", p.Name, qty, p.StockQuantity)
		}
		m, err := appendMovement(tx, productID, models.DirectionOut, qty, refOrderID, notes, now)
		if err != nil {
			return err
		}
		movement = m
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("debit failed", err)
	}
	l.log.Debug("stock debited", "product_id", productID, "qty", qty, "order_id", refOrderID)
	return movement, nil
}

// Credit adds qty units to a product and records an in movement.
func (l *Ledger) Credit(ctx context.Context, productID uint, qty int, refOrderID *uint, notes string) (*models.StockMovement, error) {
	if qty <= 0 {
		return nil, apperr.Validation("credit quantity must be positive, got %d", qty)
	}
	var movement *models.StockMovement
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := l.now()
		res := tx.Model(&models.Product{}).
			Where("id = ?", productID).
			Updates(map[string]any{
				"stock_quantity": gorm.Expr("stock_quantity + ?", qty),
				"updated_at":     now,
			})
		if res.Error != nil {
			return apperr.Persistence("failed to credit stock", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("product %d not found", productID)
		}
		m, err := appendMovement(tx, productID, models.DirectionIn, qty, refOrderID, notes, now)
		if err != nil {
			return err
		}
		movement = m
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("credit failed", err)
	}
	l.log.Debug("stock credited", "product_id", productID, "qty", qty, "order_id", refOrderID)
	return movement, nil
}

// Adjust applies a manual correction with no order reference: a positive
// delta restocks, a negative one writes stock off.
func (l *Ledger) Adjust(ctx context.Context, productID uint, delta int, reason string) (*models.StockMovement, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("adjustment reason is required")
	}
	switch {
	case delta > 0:
		return l.Credit(ctx, productID, delta, nil, reason)
	case delta < 0:
		return l.Debit(ctx, productID, -delta, nil, reason)
	}
	return nil, apperr.Validation("adjustment delta cannot be zero")
}

func appendMovement(tx *gorm.DB, productID uint, dir models.Direction, qty int, refOrderID *uint, notes string, at time.Time) (*models.StockMovement, error) {
	m := models.StockMovement{
		ProductID:        productID,
		Direction:        dir,
		Quantity:         qty,
		ReferenceOrderID: refOrderID,
		Notes:            notes,
		CreatedAt:        at,
	}
	if err := tx.Create(&m).Error; err != nil {
		return nil, apperr.Persistence("failed to record stock movement", err)
	}
	return &m, nil
}

// LowStock returns every product at or under its reorder level, lowest
// stock first.
func (l *Ledger) LowStock(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := l.db.WithContext(ctx).
		Where("stock_quantity <= reorder_level").
		Order("stock_quantity asc, id asc").
		Find(&products).Error
	if err != nil {
		return nil, apperr.Persistence("failed to fetch low stock products", err)
	}
	return products, nil
}

// History yields a product's movements newest first, one page at a time.
// Each range over the returned sequence starts again from the newest
// movement. A failed page is yielded as an error and ends the sequence.
func (l *Ledger) History(ctx context.Context, productID uint) iter.Seq2[models.StockMovement, error] {
	return func(yield func(models.StockMovement, error) bool) {
		db := l.db.WithContext(ctx)
		var n int64
		if err := db.Model(&models.Product{}).Where("id = ?", productID).Count(&n).Error; err != nil {
			yield(models.StockMovement{}, apperr.Persistence("failed to load product", err))
			return
		}
		if n == 0 {
			yield(models.StockMovement{}, apperr.NotFound("product %d not found", productID))
			return
		}

		var cursor uint
		for {
			q := db.Where("product_id = ?", productID)
			if cursor != 0 {
				q = q.Where("id < ?", cursor)
			}
			var page []models.StockMovement
			if err := q.Order("id desc").Limit(l.pageSize).Find(&page).Error; err != nil {
				yield(models.StockMovement{}, apperr.Persistence("failed to fetch stock history", err))
				return
			}
			for _, m := range page {
				if !yield(m, nil) {
					return
				}
			}
			if len(page) < l.pageSize {
				return
			}
			cursor = page[len(page)-1].ID
		}
	}
}

// MovementsForOrder returns the movements that reference an order, oldest first.
func (l *Ledger) MovementsForOrder(ctx context.Context, orderID uint) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := l.db.WithContext(ctx).
		Where("reference_order_id = ?", orderID).
		Order("id asc").
		Find(&movements).Error
	if err != nil {
		return nil, apperr.Persistence("failed to fetch order movements", err)
	}
	return movements, nil
}
