// Package orders is the order ledger: it turns checkout lines into a
// persisted order, debits stock through the inventory ledger in the same
// transaction and drives the fulfilment and payment state machines.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go-pharmacy-pos/internal/apperr"
	"go-pharmacy-pos/internal/catalog"
	"go-pharmacy-pos/internal/inventory"
	"go-pharmacy-pos/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db         *gorm.DB
	ledger     *inventory.Ledger
	log        *slog.Logger
	now        func() time.Time
	terminalID string
}

// New builds the order ledger. terminalID is stamped on every order this
// process places.
func New(db *gorm.DB, ledger *inventory.Ledger, log *slog.Logger, terminalID string) *Service {
	return &Service{
		db:         db,
		ledger:     ledger,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		terminalID: terminalID,
	}
}

// LineInput is one requested order line.
type LineInput struct {
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

type PlaceOrderInput struct {
	CustomerID     *uint                `json:"customer_id,omitempty"`
	Items          []LineInput          `json:"items"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	TaxAmount      decimal.Decimal      `json:"tax_amount"`
	Notes          string               `json:"notes,omitempty"`
	IdempotencyKey string               `json:"-"`
}

// lines validates the input and merges repeated products into one line,
// keeping the first unit price seen.
func (in PlaceOrderInput) lines() ([]LineInput, error) {
	if len(in.Items) == 0 {
		return nil, apperr.Validation("order has no items")
	}
	if !in.PaymentMethod.Valid() {
		return nil, apperr.Validation("unknown payment method %q", in.PaymentMethod)
	}
	if in.DiscountAmount.IsNegative() {
		return nil, apperr.Validation("order discount cannot be negative")
	}
	if in.TaxAmount.IsNegative() {
		return nil, apperr.Validation("tax amount cannot be negative")
	}

	merged := make([]LineInput, 0, len(in.Items))
	index := make(map[uint]int, len(in.Items))
	for i, item := range in.Items {
		if item.ProductID == 0 {
			return nil, apperr.Validation("item %d has no product", i+1)
		}
		if item.Quantity <= 0 {
			return nil, apperr.Validation("item %d: quantity must be positive, got %d", i+1, item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return nil, apperr.Validation("item %d: unit price cannot be negative", i+1)
		}
		if item.Discount.IsNegative() {
			return nil, apperr.Validation("item %d: discount cannot be negative", i+1)
		}
		if at, ok := index[item.ProductID]; ok {
			merged[at].Quantity += item.Quantity
			merged[at].Discount = merged[at].Discount.Add(item.Discount)
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}

	for _, line := range merged {
		gross := line.UnitPrice.Round(2).Mul(decimal.NewFromInt(int64(line.Quantity)))
		if line.Discount.Round(2).GreaterThan(gross) {
			return nil, apperr.Validation("discount on product %d exceeds the line amount", line.ProductID)
		}
	}
	return merged, nil
}

// PlaceOrder persists an order, its items and one stock debit per item as a
// single transaction. Either all of it commits or none of it does.
//
// A non-empty IdempotencyKey that already belongs to an order returns that
// order unchanged.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*models.Order, error) {
	lines, err := in.lines()
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if existing, err := s.findByKey(s.db.WithContext(ctx), key); err != nil || existing != nil {
			return existing, err
		}
	}
	if in.CustomerID != nil {
		if err := s.ensureCustomer(ctx, *in.CustomerID); err != nil {
			return nil, err
		}
	}

	order := models.Order{
		CustomerID:     in.CustomerID,
		Status:         models.OrderPending,
		PaymentStatus:  models.PaymentPending,
		DiscountAmount: in.DiscountAmount.Round(2),
		TaxAmount:      in.TaxAmount.Round(2),
		PaymentMethod:  in.PaymentMethod,
		Notes:          strings.TrimSpace(in.Notes),
		TerminalID:     s.terminalID,
		Items:          make([]models.OrderItem, 0, len(lines)),
	}
	for _, line := range lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice.Round(2),
			DiscountAmount: line.Discount.Round(2),
		})
	}
	order.TotalAmount = order.ItemsSubtotal().Sub(order.DiscountAmount).Add(order.TaxAmount).Round(2)
	if order.TotalAmount.IsNegative() {
		return nil, apperr.Validation("order discount exceeds the order amount")
	}
	if key != "" {
		order.IdempotencyKey = &key
	}
	items := order.Items

	var replayed *models.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := lockProducts(tx, lines)
		if err != nil {
			return err
		}
		// a concurrent attempt under the same key may have committed since
		// the first lookup
		if key != "" {
			existing, err := s.findByKey(tx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				replayed = existing
				return nil
			}
		}
		if err := checkStock(products, lines); err != nil {
			return err
		}

		now := s.now()
		order.CreatedAt, order.UpdatedAt = now, now
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return apperr.Persistence("failed to create order", err)
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
			return apperr.Persistence("failed to create order items", err)
		}

		ledger := s.ledger.WithTx(tx).WithClock(s.now)
		note := fmt.Sprintf("order #%d", order.ID)
		for _, item := range items {
			if _, err := ledger.Debit(ctx, item.ProductID, item.Quantity, &order.ID, note); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if key != "" {
			if existing, lookupErr := s.findByKey(s.db.WithContext(ctx), key); lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		s.log.Warn("order rejected", "error", err, "kind", apperr.KindOf(err))
		return nil, apperr.Persistence("place order failed", err)
	}
	if replayed != nil {
		return replayed, nil
	}

	s.log.Info("order placed", "order_id", order.ID, "total", order.TotalAmount.StringFixed(2), "items", len(items))
	return s.GetOrder(ctx, order.ID)
}

// lockProducts re-reads every ordered product FOR UPDATE.
func lockProducts(tx *gorm.DB, lines []LineInput) (map[uint]models.Product, error) {
	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	var products []models.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Find(&products).Error
	if err != nil {
		return nil, apperr.Persistence("failed to load products", err)
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// checkStock catches stale cart quantities before anything is written.
// The debit itself stays authoritative.
func checkStock(products map[uint]models.Product, lines []LineInput) error {
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			return apperr.NotFound("product %d not found", line.ProductID)
		}
		if line.Quantity > p.StockQuantity {
			return apperr.InsufficientStock("insufficient stock for %s: requested %d, available %d", p.Name, line.Quantity, p.StockQuantity)
		}
	}
	return nil
}

func (s *Service) findByKey(db *gorm.DB, key string) (*models.Order, error) {
	var order models.Order
	err := db.
		Preload("Items").
		Preload("Customer").
		Where("idempotency_key = ?", key).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence("failed to look up idempotency key", err)
	}
	s.log.Info("order replayed for idempotency key", "order_id", order.ID)
	return &order, nil
}

func (s *Service) ensureCustomer(ctx context.Context, id uint) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return apperr.Persistence("failed to load customer", err)
	}
	if n == 0 {
		return apperr.NotFound("customer %d not found", id)
	}
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	return loadOrder(s.db.WithContext(ctx), id)
}

func loadOrder(db *gorm.DB, id uint) (*models.Order, error) {
	var order models.Order
	err := db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Items.Product").
		Preload("Customer").
		First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %d not found", id)
		}
		return nil, apperr.Persistence("failed to load order", err)
	}
	return &order, nil
}

// OrderFilter narrows ListOrders. Zero values are ignored.
type OrderFilter struct {
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	CustomerID    uint
	From, To      time.Time
	Limit         int
	Offset        int
}

const maxListLimit = 200

// ListOrders returns orders newest first, with their customer.
func (s *Service) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	if f.Status != "" && !knownOrderStatus(f.Status) {
		return nil, apperr.Validation("unknown order status %q", f.Status)
	}
	if f.PaymentStatus != "" && !knownPaymentStatus(f.PaymentStatus) {
		return nil, apperr.Validation("unknown payment status %q", f.PaymentStatus)
	}
	q := s.db.WithContext(ctx).Model(&models.Order{}).Preload("Customer")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}
	if f.CustomerID != 0 {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("created_at < ?", f.To.UTC())
	}
	limit := f.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	var orders []models.Order
	err := q.Order("created_at desc, id desc").Limit(limit).Offset(max(f.Offset, 0)).Find(&orders).Error
	if err != nil {
		return nil, apperr.Persistence("failed to fetch orders", err)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order along the fulfilment state machine.
// Cancelling credits every item back exactly once; completing rolls the
// order into the customer's visit and spend totals.
func (s *Service) UpdateOrderStatus(ctx context.Context, id uint, to models.OrderStatus) (*models.Order, error) {
	if !knownOrderStatus(to) {
		return nil, apperr.Validation("unknown order status %q", to)
	}
	var from models.OrderStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(tx, id)
		if err != nil {
			return err
		}
		from = order.Status
		if from.IsTerminal() {
			return apperr.InvalidTransition("order %d is already %s", id, from)
		}
		if !CanTransition(from, to) {
			return apperr.InvalidTransition("order %d cannot move from %s to %s", id, from, to)
		}

		now := s.now()
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, from).
			Updates(map[string]any{"status": to, "updated_at": now})
		if res.Error != nil {
			return apperr.Persistence("failed to update order status", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidTransition("order %d is no longer %s", id, from)
		}

		switch to {
		case models.OrderCancelled:
			return s.restock(ctx, tx, order, fmt.Sprintf("order #%d cancelled", id))
		case models.OrderCompleted:
			if order.CustomerID != nil {
				return catalog.RecordVisit(tx, *order.CustomerID, order.TotalAmount, now)
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("update order status failed", err)
	}
	s.log.Info("order status changed", "order_id", id, "from", from, "to", to)
	return s.GetOrder(ctx, id)
}

// UpdatePaymentStatus moves an order along the payment state machine. It
// never touches stock; see RestockRefund.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id uint, to models.PaymentStatus) (*models.Order, error) {
	if !knownPaymentStatus(to) {
		return nil, apperr.Validation("unknown payment status %q", to)
	}
	var from models.PaymentStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("order %d not found", id)
			}
			return apperr.Persistence("failed to load order", err)
		}
		from = order.PaymentStatus
		if !CanTransitionPayment(from, to) {
			return apperr.InvalidTransition("order %d payment cannot move from %s to %s", id, from, to)
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", id, from).
			Updates(map[string]any{"payment_status": to, "updated_at": s.now()})
		if res.Error != nil {
			return apperr.Persistence("failed to update payment status", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidTransition("order %d payment is no longer %s", id, from)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("update payment status failed", err)
	}
	s.log.Info("payment status changed", "order_id", id, "from", from, "to", to)
	return s.GetOrder(ctx, id)
}

// RestockRefund returns the items of a completed, refunded order to stock.
// It is never implied by a refund and succeeds at most once per order.
func (s *Service) RestockRefund(ctx context.Context, id uint) (*models.Order, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(tx, id)
		if err != nil {
			return err
		}
		if order.Status != models.OrderCompleted || order.PaymentStatus != models.PaymentRefunded {
			return apperr.InvalidTransition("order %d is %s/%s; only completed refunded orders can be restocked", id, order.Status, order.PaymentStatus)
		}
		if order.Restocked {
			return apperr.InvalidTransition("order %d was already restocked", id)
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND restocked = ?", id, false).
			Updates(map[string]any{"restocked": true, "updated_at": s.now()})
		if res.Error != nil {
			return apperr.Persistence("failed to flag order restocked", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidTransition("order %d was already restocked", id)
		}
		return s.restock(ctx, tx, order, fmt.Sprintf("order #%d refunded", id))
	})
	if err != nil {
		return nil, apperr.Persistence("refund restock failed", err)
	}
	s.log.Info("refunded order restocked", "order_id", id)
	return s.GetOrder(ctx, id)
}

func (s *Service) restock(ctx context.Context, tx *gorm.DB, order *models.Order, note string) error {
	ledger := s.ledger.WithTx(tx).WithClock(s.now)
	for _, item := range order.Items {
		if _, err := ledger.Credit(ctx, item.ProductID, item.Quantity, &order.ID, note); err != nil {
			return err
		}
	}
	return nil
}

// DeleteOrder removes an order and its items. Orders referenced by stock
// movements are part of the audit trail and cannot be deleted.
func (s *Service) DeleteOrder(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return apperr.Persistence("failed to load order", err)
		}
		if n == 0 {
			return apperr.NotFound("order %d not found", id)
		}
		movements, err := s.ledger.WithTx(tx).MovementsForOrder(ctx, id)
		if err != nil {
			return err
		}
		if len(movements) > 0 {
			return apperr.Conflict("order %d has %d stock movements and cannot be deleted", id, len(movements))
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return apperr.Persistence("failed to delete order items", err)
		}
		if err := tx.Delete(&models.Order{}, id).Error; err != nil {
			return apperr.Persistence("failed to delete order", err)
		}
		return nil
	})
	if err != nil {
		return apperr.Persistence("delete order failed", err)
	}
	s.log.Info("order deleted", "order_id", id)
	return nil
}
