package dashboard

import (
	"context"
	"slices"
	"strings"
	"time"

	"go-pharmacy-pos/internal/apperr"
	"go-pharmacy-pos/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesReport holds completed-order revenue for a date range
type SalesReport struct {
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalCount   int64           `json:"total_count"`
}

// SalesReport totals completed orders created between start and end,
// both inclusive.
func (s *Service) SalesReport(ctx context.Context, start, end time.Time) (*SalesReport, error) {
	if end.Before(start) {
		return nil, apperr.Validation("report end %s is before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	db := s.db.WithContext(ctx)
	report := SalesReport{Start: start, End: end}

	scope := func() *gorm.DB {
		return db.Model(&models.Order{}).
			Where("status = ?", models.OrderCompleted).
			Where("created_at BETWEEN ? AND ?", start.UTC(), end.UTC())
	}
	var err error
	if report.TotalRevenue, err = sumTotals(scope()); err != nil {
		return nil, err
	}
	if err := scope().Count(&report.TotalCount).Error; err != nil {
		return nil, apperr.Persistence("failed to count orders", err)
	}
	return &report, nil
}

// ValuationItem is one product line of the stock valuation
type ValuationItem struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	CostPrice decimal.Decimal `json:"cost_price"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// CategoryGroup is every product of one category with its subtotal
type CategoryGroup struct {
	CategoryName string          `json:"category_name"`
	Items        []ValuationItem `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type Valuation struct {
	Categories []CategoryGroup `json:"categories"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

const uncategorized = "Uncategorized"

// StockValuation prices the stock on hand at cost, grouped by category.
// Categories and items come back sorted by name.
func (s *Service) StockValuation(ctx context.Context) (*Valuation, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("name asc, id asc").Find(&products).Error; err != nil {
		return nil, apperr.Persistence("failed to fetch inventory", err)
	}

	grandTotal := decimal.Zero
	grouped := make(map[string]*CategoryGroup)
	for _, p := range products {
		name := strings.TrimSpace(p.Category)
		if name == "" {
			name = uncategorized
		}
		group, ok := grouped[name]
		if !ok {
			group = &CategoryGroup{CategoryName: name, Items: []ValuationItem{}, Subtotal: decimal.Zero}
			grouped[name] = group
		}

		itemTotal := p.CostPrice.Mul(decimal.NewFromInt(int64(p.StockQuantity))).Round(2)
		group.Items = append(group.Items, ValuationItem{
			ProductID: p.ID,
			Name:      p.Name,
			SKU:       p.SKU,
			Quantity:  p.StockQuantity,
			CostPrice: p.CostPrice,
			TotalCost: itemTotal,
		})
		group.Subtotal = group.Subtotal.Add(itemTotal)
		grandTotal = grandTotal.Add(itemTotal)
	}

	v := Valuation{Categories: make([]CategoryGroup, 0, len(grouped)), GrandTotal: grandTotal}
	for _, group := range grouped {
		v.Categories = append(v.Categories, *group)
	}
	slices.SortFunc(v.Categories, func(a, b CategoryGroup) int {
		return strings.Compare(a.CategoryName, b.CategoryName)
	})
	return &v, nil
}
