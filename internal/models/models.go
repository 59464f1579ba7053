package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product - The Inventory
type Product struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	SKU           string          `gorm:"size:64;uniqueIndex;not null" json:"sku"`
	Category      string          `gorm:"size:100" json:"category"`
	CostPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"cost_price"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	StockQuantity int             `gorm:"not null" json:"stock_quantity"` // written only by the stock ledger
	InitialStock  int             `gorm:"not null" json:"initial_stock"`  // stock at creation, base of reconciliation
	ReorderLevel  int             `gorm:"not null" json:"reorder_level"`
	ExpiryDate    *time.Time      `json:"expiry_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsLowStock reports whether the product sits at or under its reorder level.
func (p *Product) IsLowStock() bool {
	return p.StockQuantity <= p.ReorderLevel
}

// Customer - referenced by orders, never mutated by the core beyond the rollups.
type Customer struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Phone       string          `gorm:"size:50" json:"phone"`
	Email       string          `gorm:"size:255" json:"email,omitempty"`
	Address     string          `gorm:"size:500" json:"address,omitempty"`
	LastVisitAt *time.Time      `json:"last_visit_at,omitempty"`
	TotalSpent  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_spent"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// IsTerminal returns true once no further fulfilment transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "cash"
	PaymentCard      PaymentMethod = "card"
	PaymentMobile    PaymentMethod = "mobile"
	PaymentInsurance PaymentMethod = "insurance"
)

// Valid reports whether m is one of the accepted tender types.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentMobile, PaymentInsurance:
		return true
	}
	return false
}

// Order - The Transaction Header
type Order struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	CustomerID     *uint           `gorm:"index" json:"customer_id,omitempty"`
	Customer       *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Status         OrderStatus     `gorm:"size:20;not null;index" json:"status"`
	PaymentStatus  PaymentStatus   `gorm:"size:20;not null" json:"payment_status"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"tax_amount"`
	PaymentMethod  PaymentMethod   `gorm:"size:20;not null" json:"payment_method"`
	Notes          string          `gorm:"type:text" json:"notes,omitempty"`
	IdempotencyKey *string         `gorm:"size:100;uniqueIndex" json:"idempotency_key,omitempty"`
	TerminalID     string          `gorm:"size:50" json:"terminal_id,omitempty"`
	Restocked      bool            `gorm:"not null" json:"restocked"` // refund restock already applied
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Items          []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
}

// ItemsSubtotal sums the net line totals of the loaded items.
func (o *Order) ItemsSubtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// OrderItem - one priced line, immutable after checkout
type OrderItem struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	OrderID        uint            `gorm:"index;not null" json:"order_id"`
	ProductID      uint            `gorm:"index;not null" json:"product_id"`
	Product        *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity       int             `gorm:"not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"` // Snapshot of price at time of sale
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_amount"`
}

// LineTotal is quantity × unit price less the line discount.
func (item *OrderItem) LineTotal() decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Sub(item.DiscountAmount)
}

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// ErrImmutableMovement is returned by the hooks guarding the movement log.
var ErrImmutableMovement = errors.New("stock movements are append-only")

// StockMovement - audit record of one inventory change
type StockMovement struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ProductID        uint      `gorm:"index;not null" json:"product_id"`
	Direction        Direction `gorm:"size:3;not null" json:"direction"`
	Quantity         int       `gorm:"not null" json:"quantity"`
	ReferenceOrderID *uint     `gorm:"index" json:"reference_order_id,omitempty"` // nil for manual adjustments
	Notes            string    `gorm:"size:500" json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func (m *StockMovement) BeforeUpdate(tx *gorm.DB) error { return ErrImmutableMovement }

func (m *StockMovement) BeforeDelete(tx *gorm.DB) error { return ErrImmutableMovement }

// All lists every model in migration order.
func All() []any {
	return []any{
		&Product{},
		&Customer{},
		&Order{},
		&OrderItem{},
		&StockMovement{},
	}
}
