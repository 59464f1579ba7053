// Package catalog owns product and customer records. Stock quantities are
// read here but only ever written by the inventory ledger.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go-pharmacy-pos/internal/apperr"
	"go-pharmacy-pos/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *slog.Logger
	now func() time.Time
}

func New(db *gorm.DB, log *slog.Logger) *Service {
	return &Service{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// NewProduct is the input for CreateProduct. StockQuantity becomes the
// product's opening balance.
type NewProduct struct {
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Category      string          `json:"category"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	ReorderLevel  int             `json:"reorder_level"`
	ExpiryDate    *time.Time      `json:"expiry_date,omitempty"`
}

func (in NewProduct) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("product name is required")
	}
	if strings.TrimSpace(in.SKU) == "" {
		return apperr.Validation("product sku is required")
	}
	if in.Price.IsNegative() {
		return apperr.Validation("price cannot be negative")
	}
	if in.CostPrice.IsNegative() {
		return apperr.Validation("cost price cannot be negative")
	}
	if in.StockQuantity < 0 {
		return apperr.Validation("stock quantity cannot be negative")
	}
	if in.ReorderLevel < 0 {
		return apperr.Validation("reorder level cannot be negative")
	}
	return nil
}

// ProductPatch lists exactly the fields UpdateProduct may change. A nil
// field is left untouched. Stock is not patchable.
type ProductPatch struct {
	Name         *string          `json:"name,omitempty"`
	SKU          *string          `json:"sku,omitempty"`
	Category     *string          `json:"category,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty"`
	ReorderLevel *int             `json:"reorder_level,omitempty"`
	ExpiryDate   *time.Time       `json:"expiry_date,omitempty"`
	ClearExpiry  bool             `json:"clear_expiry,omitempty"`
}

// columns validates the patch and returns the column updates it implies.
func (p ProductPatch) columns() (map[string]any, error) {
	cols := map[string]any{}
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, apperr.Validation("product name cannot be blank")
		}
		cols["name"] = strings.TrimSpace(*p.Name)
	}
	if p.SKU != nil {
		if strings.TrimSpace(*p.SKU) == "" {
			return nil, apperr.Validation("product sku cannot be blank")
		}
		cols["sku"] = strings.TrimSpace(*p.SKU)
	}
	if p.Category != nil {
		cols["category"] = strings.TrimSpace(*p.Category)
	}
	if p.Price != nil {
		if p.Price.IsNegative() {
			return nil, apperr.Validation("price cannot be negative")
		}
		cols["price"] = p.Price.Round(2)
	}
	if p.CostPrice != nil {
		if p.CostPrice.IsNegative() {
			return nil, apperr.Validation("cost price cannot be negative")
		}
		cols["cost_price"] = p.CostPrice.Round(2)
	}
	if p.ReorderLevel != nil {
		if *p.ReorderLevel < 0 {
			return nil, apperr.Validation("reorder level cannot be negative")
		}
		cols["reorder_level"] = *p.ReorderLevel
	}
	if p.ClearExpiry && p.ExpiryDate != nil {
		return nil, apperr.Validation("expiry_date and clear_expiry are mutually exclusive")
	}
	if p.ExpiryDate != nil {
		cols["expiry_date"] = p.ExpiryDate.UTC()
	}
	if p.ClearExpiry {
		cols["expiry_date"] = nil
	}
	if len(cols) == 0 {
		return nil, apperr.Validation("patch changes nothing")
	}
	return cols, nil
}

func (s *Service) CreateProduct(ctx context.Context, in NewProduct) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	sku := strings.TrimSpace(in.SKU)
	if err := s.ensureSKUFree(ctx, sku, 0); err != nil {
		return nil, err
	}

	p := models.Product{
		Name:          strings.TrimSpace(in.Name),
		SKU:           sku,
		Category:      strings.TrimSpace(in.Category),
		CostPrice:     in.CostPrice.Round(2),
		Price:         in.Price.Round(2),
		StockQuantity: in.StockQuantity,
		InitialStock:  in.StockQuantity,
		ReorderLevel:  in.ReorderLevel,
		ExpiryDate:    utcPtr(in.ExpiryDate),
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, apperr.Persistence("failed to create product", err)
	}
	s.log.Info("product created", "product_id", p.ID, "sku", p.SKU, "stock", p.StockQuantity)
	return &p, nil
}

func (s *Service) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product %d not found", id)
		}
		return nil, apperr.Persistence("failed to load product", err)
	}
	return &p, nil
}

func (s *Service) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).Where("sku = ?", strings.TrimSpace(sku)).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product with sku %q not found", sku)
		}
		return nil, apperr.Persistence("failed to load product", err)
	}
	return &p, nil
}

// ProductFilter narrows ListProducts. Zero value lists everything.
type ProductFilter struct {
	Search   string // matches name or sku
	Category string
}

func (s *Service) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	q := s.db.WithContext(ctx).Model(&models.Product{})
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	var products []models.Product
	if err := q.Order("name asc, id asc").Find(&products).Error; err != nil {
		return nil, apperr.Persistence("failed to fetch products", err)
	}
	return products, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id uint, patch ProductPatch) (*models.Product, error) {
	cols, err := patch.columns()
	if err != nil {
		return nil, err
	}
	if sku, ok := cols["sku"].(string); ok {
		if err := s.ensureSKUFree(ctx, sku, id); err != nil {
			return nil, err
		}
	}
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return nil, apperr.Persistence("failed to update product", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("product %d not found", id)
	}
	s.log.Info("product updated", "product_id", id, "fields", len(cols))
	return s.GetProduct(ctx, id)
}

// DeleteProduct removes a product that has never moved. Products with
// stock history or sales stay, since the audit trail references them.
func (s *Service) DeleteProduct(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Product
		if err := tx.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("product %d not found", id)
			}
			return apperr.Persistence("failed to load product", err)
		}
		var refs int64
		if err := tx.Model(&models.StockMovement{}).Where("product_id = ?", id).Count(&refs).Error; err != nil {
			return apperr.Persistence("failed to check stock history", err)
		}
		if refs == 0 {
			if err := tx.Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&refs).Error; err != nil {
				return apperr.Persistence("failed to check sales", err)
			}
		}
		if refs > 0 {
			return apperr.Conflict("product %d has stock history and cannot be deleted", id)
		}
		if err := tx.Delete(&p).Error; err != nil {
			return apperr.Persistence("failed to delete product", err)
		}
		s.log.Info("product deleted", "product_id", id)
		return nil
	})
}

// ExpiringWithin lists products whose expiry date falls on or before
// now+days, soonest first. Already expired products are included.
func (s *Service) ExpiringWithin(ctx context.Context, days int) ([]models.Product, error) {
	if days < 0 {
		return nil, apperr.Validation("days cannot be negative")
	}
	cutoff := s.now().AddDate(0, 0, days)
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("expiry_date IS NOT NULL AND expiry_date <= ?", cutoff).
		Order("expiry_date asc, id asc").
		Find(&products).Error
	if err != nil {
		return nil, apperr.Persistence("failed to fetch expiring products", err)
	}
	return products, nil
}

func (s *Service) ensureSKUFree(ctx context.Context, sku string, exceptID uint) error {
	var n int64
	q := s.db.WithContext(ctx).Model(&models.Product{}).Where("sku = ?", sku)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return apperr.Persistence("failed to check sku", err)
	}
	if n > 0 {
		return apperr.Conflict("sku %q already exists", sku)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
