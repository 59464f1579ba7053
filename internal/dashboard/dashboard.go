// Package dashboard computes read-only rollups over the order and stock
// ledgers. Revenue only ever counts completed orders.
package dashboard

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"go-pharmacy-pos/internal/apperr"
	"go-pharmacy-pos/internal/inventory"
	"go-pharmacy-pos/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultRecentLimit = 10
	DefaultTopLimit    = 5
	DefaultTrendDays   = 7
	maxTrendDays       = 366
)

type Service struct {
	db     *gorm.DB
	ledger *inventory.Ledger
	loc    *time.Location
	log    *slog.Logger
	now    func() time.Time
}

// New builds the aggregator. Trend days are calendar days in loc.
func New(db *gorm.DB, ledger *inventory.Ledger, loc *time.Location, log *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{db: db, ledger: ledger, loc: loc, log: log, now: time.Now}
}

// Window sizes the list sections of the dashboard. Zero means the default.
type Window struct {
	RecentLimit int `form:"recent" json:"recent_limit"`
	TopLimit    int `form:"top" json:"top_limit"`
	TrendDays   int `form:"days" json:"trend_days"`
}

func (w Window) withDefaults() (Window, error) {
	if w.RecentLimit < 0 || w.TopLimit < 0 || w.TrendDays < 0 {
		return w, apperr.Validation("dashboard window values cannot be negative")
	}
	if w.TrendDays > maxTrendDays {
		return w, apperr.Validation("trend window is limited to %d days", maxTrendDays)
	}
	if w.RecentLimit == 0 {
		w.RecentLimit = DefaultRecentLimit
	}
	if w.TopLimit == 0 {
		w.TopLimit = DefaultTopLimit
	}
	if w.TrendDays == 0 {
		w.TrendDays = DefaultTrendDays
	}
	return w, nil
}

type RecentOrder struct {
	ID            uint                 `json:"id"`
	CustomerName  string               `json:"customer_name"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	CreatedAt     time.Time            `json:"created_at"`
}

type TopProduct struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Sold      int64           `json:"sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type TrendPoint struct {
	Date   string          `json:"date"`
	Orders int             `json:"orders"`
	Total  decimal.Decimal `json:"total"`
}

type Metrics struct {
	TotalProducts int64           `json:"total_products"`
	LowStockCount int             `json:"low_stock_count"`
	TotalOrders   int64           `json:"total_orders"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	RecentOrders  []RecentOrder   `json:"recent_orders"`
	TopProducts   []TopProduct    `json:"top_products"`
	SalesTrend    []TrendPoint    `json:"sales_trend"`
}

func (s *Service) ComputeMetrics(ctx context.Context, w Window) (*Metrics, error) {
	w, err := w.withDefaults()
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var m Metrics

	if err := db.Model(&models.Product{}).Count(&m.TotalProducts).Error; err != nil {
		return nil, apperr.Persistence("failed to count products", err)
	}
	low, err := s.ledger.LowStock(ctx)
	if err != nil {
		return nil, err
	}
	m.LowStockCount = len(low)

	if err := db.Model(&models.Order{}).Where("status = ?", models.OrderCompleted).Count(&m.TotalOrders).Error; err != nil {
		return nil, apperr.Persistence("failed to count orders", err)
	}
	if m.TotalRevenue, err = sumTotals(db.Model(&models.Order{}).Where("status = ?", models.OrderCompleted)); err != nil {
		return nil, err
	}

	if m.RecentOrders, err = s.recentOrders(db, w.RecentLimit); err != nil {
		return nil, err
	}
	if m.TopProducts, err = s.topProducts(db, w.TopLimit); err != nil {
		return nil, err
	}
	if m.SalesTrend, err = s.salesTrend(db, w.TrendDays); err != nil {
		return nil, err
	}
	s.log.Debug("dashboard computed", "orders", m.TotalOrders, "revenue", m.TotalRevenue.StringFixed(2))
	return &m, nil
}

// sumTotals returns COALESCE(SUM(total_amount), 0) over q, scanned straight
// into a decimal.
func sumTotals(q *gorm.DB) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := q.Select("COALESCE(SUM(total_amount), 0)").Row().Scan(&total); err != nil {
		return decimal.Zero, apperr.Persistence("failed to sum revenue", err)
	}
	return total.Round(2), nil
}

func (s *Service) recentOrders(db *gorm.DB, n int) ([]RecentOrder, error) {
	var orders []models.Order
	err := db.Preload("Customer").
		Order("created_at desc, id desc").
		Limit(n).
		Find(&orders).Error
	if err != nil {
		return nil, apperr.Persistence("failed to fetch recent orders", err)
	}
	out := make([]RecentOrder, 0, len(orders))
	for _, o := range orders {
		r := RecentOrder{
			ID:            o.ID,
			Status:        o.Status,
			PaymentStatus: o.PaymentStatus,
			TotalAmount:   o.TotalAmount,
			CreatedAt:     o.CreatedAt,
		}
		if o.Customer != nil {
			r.CustomerName = o.Customer.Name
		}
		out = append(out, r)
	}
	return out, nil
}

// topProducts ranks products by units sold on completed orders, then by net
// revenue, then by id. Line amounts are summed in decimal.
func (s *Service) topProducts(db *gorm.DB, n int) ([]TopProduct, error) {
	var items []models.OrderItem
	err := db.Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status = ?", models.OrderCompleted).
		Find(&items).Error
	if err != nil {
		return nil, apperr.Persistence("failed to fetch sold items", err)
	}

	byProduct := map[uint]*TopProduct{}
	for _, item := range items {
		tp, ok := byProduct[item.ProductID]
		if !ok {
			tp = &TopProduct{ProductID: item.ProductID, Revenue: decimal.Zero}
			byProduct[item.ProductID] = tp
		}
		tp.Sold += int64(item.Quantity)
		tp.Revenue = tp.Revenue.Add(item.LineTotal())
	}

	ranked := make([]TopProduct, 0, len(byProduct))
	for _, tp := range byProduct {
		tp.Revenue = tp.Revenue.Round(2)
		ranked = append(ranked, *tp)
	}
	slices.SortFunc(ranked, func(a, b TopProduct) int {
		if c := cmp.Compare(b.Sold, a.Sold); c != 0 {
			return c
		}
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	if len(ranked) == 0 {
		return ranked, nil
	}

	ids := make([]uint, 0, len(ranked))
	for _, tp := range ranked {
		ids = append(ids, tp.ProductID)
	}
	var products []models.Product
	if err := db.Select("id", "name").Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, apperr.Persistence("failed to fetch product names", err)
	}
	names := make(map[uint]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	for i := range ranked {
		ranked[i].Name = names[ranked[i].ProductID]
	}
	return ranked, nil
}

// salesTrend returns one point per calendar day ending today, oldest first.
// Days without completed orders are present with a zero total.
func (s *Service) salesTrend(db *gorm.DB, days int) ([]TrendPoint, error) {
	today := s.now().In(s.loc)
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, -(days - 1))

	points := make([]TrendPoint, days)
	index := make(map[string]int, days)
	for i := range points {
		day := start.AddDate(0, 0, i).Format(time.DateOnly)
		points[i] = TrendPoint{Date: day, Total: decimal.Zero}
		index[day] = i
	}

	var orders []models.Order
	err := db.Select("id", "total_amount", "created_at").
		Where("status = ? AND created_at >= ?", models.OrderCompleted, start.UTC()).
		Find(&orders).Error
	if err != nil {
		return nil, apperr.Persistence("failed to fetch sales trend", err)
	}
	for _, o := range orders {
		i, ok := index[o.CreatedAt.In(s.loc).Format(time.DateOnly)]
		if !ok {
			continue
		}
		points[i].Orders++
		points[i].Total = points[i].Total.Add(o.TotalAmount)
	}
	return points, nil
}
