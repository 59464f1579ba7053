package dashboard

import (
	"context"
	"testing"
	"time"

	"go-pharmacy-pos/internal/apperr"
	"go-pharmacy-pos/internal/database/dbtest"
	"go-pharmacy-pos/internal/inventory"
	"go-pharmacy-pos/internal/logging"
	"go-pharmacy-pos/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var clock = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func newService(t *testing.T, loc *time.Location) (*Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	log := logging.Discard()
	svc := New(db, inventory.New(db, log), loc, log)
	svc.now = func() time.Time { return clock }
	return svc, db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedProduct(t *testing.T, db *gorm.DB, name, category string, stock, reorder int, cost string) models.Product {
	t.Helper()
	p := models.Product{
		Name:          name,
		SKU:           name,
		Category:      category,
		Price:         dec("1"),
		CostPrice:     dec(cost),
		StockQuantity: stock,
		InitialStock:  stock,
		ReorderLevel:  reorder,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

type seededOrder struct {
	status   models.OrderStatus
	total    string
	at       time.Time
	customer *uint
	items    []models.OrderItem
}

func seedOrder(t *testing.T, db *gorm.DB, o seededOrder) models.Order {
	t.Helper()
	order := models.Order{
		CustomerID:     o.customer,
		Status:         o.status,
		PaymentStatus:  models.PaymentPaid,
		PaymentMethod:  models.PaymentCash,
		TotalAmount:    dec(o.total),
		DiscountAmount: decimal.Zero,
		TaxAmount:      decimal.Zero,
		CreatedAt:      o.at,
		UpdatedAt:      o.at,
		Items:          o.items,
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

func item(p models.Product, qty int, price string) models.OrderItem {
	return models.OrderItem{ProductID: p.ID, Quantity: qty, UnitPrice: dec(price), DiscountAmount: decimal.Zero}
}

func TestRevenueCountsCompletedOrdersOnly(t *testing.T) {
	svc, db := newService(t, nil)
	at := clock.Add(-time.Hour)
	for _, total := range []string{"10", "20", "30"} {
		seedOrder(t, db, seededOrder{status: models.OrderCompleted, total: total, at: at})
	}
	seedOrder(t, db, seededOrder{status: models.OrderPending, total: "99", at: at})
	seedOrder(t, db, seededOrder{status: models.OrderCancelled, total: "45", at: at})

	m, err := svc.ComputeMetrics(context.Background(), Window{})
	require.NoError(t, err)

	assert.EqualValues(t, 3, m.TotalOrders)
	assert.True(t, m.TotalRevenue.Equal(decimal.NewFromInt(60)), m.TotalRevenue.String())
}

func TestEmptyStoreMetrics(t *testing.T) {
	svc, _ := newService(t, nil)

	m, err := svc.ComputeMetrics(context.Background(), Window{})
	require.NoError(t, err)

	assert.Zero(t, m.TotalProducts)
	assert.Zero(t, m.TotalOrders)
	assert.True(t, m.TotalRevenue.IsZero())
	assert.Empty(t, m.RecentOrders)
	assert.Empty(t, m.TopProducts)
	assert.Len(t, m.SalesTrend, DefaultTrendDays)
}

func TestProductCountsAndLowStock(t *testing.T) {
	svc, db := newService(t, nil)
	seedProduct(t, db, "Low", "", 15, 20, "1")
	seedProduct(t, db, "Fine", "", 25, 20, "1")

	m, err := svc.ComputeMetrics(context.Background(), Window{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, m.TotalProducts)
	assert.Equal(t, 1, m.LowStockCount)
}

func TestRecentOrdersNewestFirstWithCustomer(t *testing.T) {
	svc, db := newService(t, nil)
	c := models.Customer{Name: "Baraka", TotalSpent: decimal.Zero}
	require.NoError(t, db.Create(&c).Error)

	var ids []uint
	for i := 0; i < 4; i++ {
		var customer *uint
		if i == 3 {
			customer = &c.ID
		}
		o := seedOrder(t, db, seededOrder{status: models.OrderPending, total: "1", at: clock.Add(time.Duration(i-10) * time.Minute), customer: customer})
		ids = append(ids, o.ID)
	}

	m, err := svc.ComputeMetrics(context.Background(), Window{RecentLimit: 2})
	require.NoError(t, err)
	require.Len(t, m.RecentOrders, 2)
	assert.Equal(t, ids[3], m.RecentOrders[0].ID)
	assert.Equal(t, "Baraka", m.RecentOrders[0].CustomerName)
	assert.Equal(t, models.OrderPending, m.RecentOrders[0].Status)
	assert.Equal(t, ids[2], m.RecentOrders[1].ID)
	assert.Empty(t, m.RecentOrders[1].CustomerName)
}

func TestTopProductsTieBreaks(t *testing.T) {
	svc, db := newService(t, nil)
	a := seedProduct(t, db, "A", "", 100, 0, "1")
	b := seedProduct(t, db, "B", "", 100, 0, "1")
	c := seedProduct(t, db, "C", "", 100, 0, "1")
	d := seedProduct(t, db, "D", "", 100, 0, "1")
	at := clock.Add(-time.Hour)

	seedOrder(t, db, seededOrder{status: models.OrderCompleted, total: "0", at: at, items: []models.OrderItem{
		item(a, 5, "2.00"), item(c, 5, "3.00"), item(d, 3, "1.00"),
	}})
	seedOrder(t, db, seededOrder{status: models.OrderCompleted, total: "0", at: at, items: []models.OrderItem{
		item(b, 5, "3.00"), item(d, 4, "1.00"),
	}})
	// pending sales do not count
	seedOrder(t, db, seededOrder{status: models.OrderPending, total: "0", at: at, items: []models.OrderItem{
		item(a, 50, "2.00"),
	}})

	m, err := svc.ComputeMetrics(context.Background(), Window{TopLimit: 10})
	require.NoError(t, err)

	var got []string
	for _, tp := range m.TopProducts {
		got = append(got, tp.Name)
	}
	assert.Equal(t, []string{"D", "B", "C", "A"}, got)
	assert.EqualValues(t, 7, m.TopProducts[0].Sold)
	assert.Equal(t, "15.00", m.TopProducts[1].Revenue.StringFixed(2))

	m, err = svc.ComputeMetrics(context.Background(), Window{TopLimit: 2})
	require.NoError(t, err)
	assert.Len(t, m.TopProducts, 2)
}

func TestSalesTrendZeroFilled(t *testing.T) {
	svc, db := newService(t, nil)
	seedOrder(t, db, seededOrder{status: models.OrderCompleted, total: "10", at: time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC)})
	seedOrder(t, db, seededOrder{status: models.OrderCompleted, total: "20", at: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)})
	seedOrder(t, db, seededOrder{status: models.OrderCompleted, total: "30", at: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)})
	seedOrder(t, db, seededOrder{status: models.OrderCompleted, total: "5", at: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)})
	seedOrder(t, db, seededOrder{status: models.OrderCancelled, total: "7", at: time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC)})

	m, err := svc.ComputeMetrics(context.Background(), Window{TrendDays: 3})
	require.NoError(t, err)

	require.Len(t, m.SalesTrend, 3)
	assert.Equal(t, "2026-03-08", m.SalesTrend[0].Date)
	assert.Equal(t, "10.00", m.SalesTrend[0].Total.StringFixed(2))
	assert.Equal(t, "2026-03-09", m.SalesTrend[1].Date)
	assert.True(t, m.SalesTrend[1].Total.IsZero())
	assert.Zero(t, m.SalesTrend[1].Orders)
	assert.Equal(t, "2026-03-10", m.SalesTrend[2].Date)
	assert.Equal(t, 2, m.SalesTrend[2].Orders)
	assert.Equal(t, "50.00", m.SalesTrend[2].Total.StringFixed(2))
}

func TestSalesTrendUsesConfiguredZone(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)
	svc, db := newService(t, nairobi)
	// 22:30 UTC on the 9th is already the 10th in Nairobi
	seedOrder(t, db, seededOrder{status: models.OrderCompleted, total: "12", at: time.Date(2026, 3, 9, 22, 30, 0, 0, time.UTC)})

	m, err := svc.ComputeMetrics(context.Background(), Window{TrendDays: 2})
	require.NoError(t, err)
	require.Len(t, m.SalesTrend, 2)
	assert.True(t, m.SalesTrend[0].Total.IsZero())
	assert.Equal(t, "2026-03-10", m.SalesTrend[1].Date)
	assert.Equal(t, "12.00", m.SalesTrend[1].Total.StringFixed(2))
}

func TestWindowValidation(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.ComputeMetrics(context.Background(), Window{TopLimit: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.ComputeMetrics(context.Background(), Window{TrendDays: 1000})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSalesReport(t *testing.T) {
	svc, db := newService(t, nil)
	day := func(d int) time.Time { return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC) }
	seedOrder(t, db, seededOrder{status: models.OrderCompleted, total: "10.25", at: day(2)})
	seedOrder(t, db, seededOrder{status: models.OrderCompleted, total: "4.75", at: day(3)})
	seedOrder(t, db, seededOrder{status: models.OrderCompleted, total: "100", at: day(9)})
	seedOrder(t, db, seededOrder{status: models.OrderPending, total: "8", at: day(3)})

	r, err := svc.SalesReport(context.Background(), day(1), day(5))
	require.NoError(t, err)
	assert.EqualValues(t, 2, r.TotalCount)
	assert.Equal(t, "15.00", r.TotalRevenue.StringFixed(2))

	empty, err := svc.SalesReport(context.Background(), day(20), day(25))
	require.NoError(t, err)
	assert.Zero(t, empty.TotalCount)
	assert.True(t, empty.TotalRevenue.IsZero())

	_, err = svc.SalesReport(context.Background(), day(5), day(1))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestStockValuation(t *testing.T) {
	svc, db := newService(t, nil)
	seedProduct(t, db, "Ibuprofen", "Analgesics", 10, 0, "1.50")
	seedProduct(t, db, "Aspirin", "Analgesics", 4, 0, "0.25")
	seedProduct(t, db, "Bandage", "", 3, 0, "2.00")
	seedProduct(t, db, "Amoxicillin", "Antibiotics", 0, 0, "5.00")

	v, err := svc.StockValuation(context.Background())
	require.NoError(t, err)

	require.Len(t, v.Categories, 3)
	assert.Equal(t, "Analgesics", v.Categories[0].CategoryName)
	assert.Equal(t, "16.00", v.Categories[0].Subtotal.StringFixed(2))
	require.Len(t, v.Categories[0].Items, 2)
	assert.Equal(t, "Aspirin", v.Categories[0].Items[0].Name)
	assert.Equal(t, "Antibiotics", v.Categories[1].CategoryName)
	assert.True(t, v.Categories[1].Subtotal.IsZero())
	assert.Equal(t, uncategorized, v.Categories[2].CategoryName)
	assert.Equal(t, "22.00", v.GrandTotal.StringFixed(2))
}
