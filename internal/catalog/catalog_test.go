package catalog

import (
	"context"
	"testing"
	"time"

	"go-pharmacy-pos/internal/apperr"
	"go-pharmacy-pos/internal/database/dbtest"
	"go-pharmacy-pos/internal/logging"
	"go-pharmacy-pos/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return New(dbtest.Open(t), logging.Discard())
}

func paracetamol() NewProduct {
	return NewProduct{
		Name:          "Paracetamol 500mg",
		SKU:           "PCM-500",
		Category:      "Analgesics",
		CostPrice:     decimal.RequireFromString("1.20"),
		Price:         decimal.RequireFromString("2.50"),
		StockQuantity: 40,
		ReorderLevel:  10,
	}
}

func TestCreateProductRecordsOpeningBalance(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, paracetamol())
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, 40, p.StockQuantity)
	assert.Equal(t, 40, p.InitialStock)

	got, err := svc.GetProductBySKU(ctx, "PCM-500")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("2.5")))
}

func TestCreateProductValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	cases := map[string]func(*NewProduct){
		"blank name":     func(p *NewProduct) { p.Name = " " },
		"blank sku":      func(p *NewProduct) { p.SKU = "" },
		"negative price": func(p *NewProduct) { p.Price = decimal.NewFromInt(-1) },
		"negative cost":  func(p *NewProduct) { p.CostPrice = decimal.NewFromInt(-1) },
		"negative stock": func(p *NewProduct) { p.StockQuantity = -3 },
		"negative level": func(p *NewProduct) { p.ReorderLevel = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := paracetamol()
			mutate(&in)
			_, err := svc.CreateProduct(ctx, in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestCreateProductRejectsDuplicateSKU(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, paracetamol())
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, paracetamol())
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUpdateProductAppliesPatchOnly(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, paracetamol())
	require.NoError(t, err)

	price := decimal.RequireFromString("2.999")
	level := 15
	updated, err := svc.UpdateProduct(ctx, p.ID, ProductPatch{Price: &price, ReorderLevel: &level})
	require.NoError(t, err)

	assert.True(t, updated.Price.Equal(decimal.RequireFromString("3.00")))
	assert.Equal(t, 15, updated.ReorderLevel)
	assert.Equal(t, "Paracetamol 500mg", updated.Name)
	assert.Equal(t, 40, updated.StockQuantity)
}

func TestUpdateProductErrors(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, paracetamol())
	require.NoError(t, err)

	_, err = svc.UpdateProduct(ctx, p.ID, ProductPatch{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	blank := ""
	_, err = svc.UpdateProduct(ctx, p.ID, ProductPatch{Name: &blank})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	expiry := time.Now().AddDate(1, 0, 0)
	_, err = svc.UpdateProduct(ctx, p.ID, ProductPatch{ExpiryDate: &expiry, ClearExpiry: true})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	name := "Ibuprofen"
	_, err = svc.UpdateProduct(ctx, 999, ProductPatch{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	other := paracetamol()
	other.SKU = "IBU-200"
	_, err = svc.CreateProduct(ctx, other)
	require.NoError(t, err)
	sku := "IBU-200"
	_, err = svc.UpdateProduct(ctx, p.ID, ProductPatch{SKU: &sku})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestListProductsFilters(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, paracetamol())
	require.NoError(t, err)
	other := paracetamol()
	other.Name, other.SKU, other.Category = "Cetirizine 10mg", "CTZ-10", "Antihistamines"
	_, err = svc.CreateProduct(ctx, other)
	require.NoError(t, err)

	all, err := svc.ListProducts(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "Cetirizine 10mg", all[0].Name)

	found, err := svc.ListProducts(ctx, ProductFilter{Search: "pcm"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "PCM-500", found[0].SKU)

	byCategory, err := svc.ListProducts(ctx, ProductFilter{Category: "Antihistamines"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
}

func TestExpiringWithin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	mk := func(sku string, expiry *time.Time) {
		in := paracetamol()
		in.SKU = sku
		in.ExpiryDate = expiry
		_, err := svc.CreateProduct(ctx, in)
		require.NoError(t, err)
	}
	soon := now.AddDate(0, 0, 10)
	later := now.AddDate(0, 6, 0)
	expired := now.AddDate(0, 0, -2)
	mk("SOON", &soon)
	mk("LATER", &later)
	mk("EXPIRED", &expired)
	mk("NONE", nil)

	got, err := svc.ExpiringWithin(ctx, 30)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "EXPIRED", got[0].SKU)
	assert.Equal(t, "SOON", got[1].SKU)

	_, err = svc.ExpiringWithin(ctx, -1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeleteProductRefusedWithHistory(t *testing.T) {
	db := dbtest.Open(t)
	svc := New(db, logging.Discard())
	ctx := context.Background()

	kept, err := svc.CreateProduct(ctx, paracetamol())
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.StockMovement{ProductID: kept.ID, Direction: models.DirectionIn, Quantity: 1}).Error)

	other := paracetamol()
	other.SKU = "GONE"
	gone, err := svc.CreateProduct(ctx, other)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteProduct(ctx, kept.ID), apperr.ErrConflict)
	require.NoError(t, svc.DeleteProduct(ctx, gone.ID))
	_, err = svc.GetProduct(ctx, gone.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteProduct(ctx, gone.ID), apperr.ErrNotFound)
}

func TestCustomerDirectory(t *testing.T) {
	db := dbtest.Open(t)
	svc := New(db, logging.Discard())
	ctx := context.Background()

	_, err := svc.CreateCustomer(ctx, NewCustomer{Name: ""})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.CreateCustomer(ctx, NewCustomer{Name: "Amina", Email: "not-an-email"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	c, err := svc.CreateCustomer(ctx, NewCustomer{Name: "Amina Otieno", Phone: "0712000111", Email: "amina@example.com"})
	require.NoError(t, err)
	assert.True(t, c.TotalSpent.IsZero())

	phone := "0799000222"
	updated, err := svc.UpdateCustomer(ctx, c.ID, CustomerPatch{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)
	assert.Equal(t, "Amina Otieno", updated.Name)

	list, err := svc.ListCustomers(ctx, "amina")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.GetCustomer(ctx, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	at := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	require.NoError(t, RecordVisit(db, c.ID, decimal.RequireFromString("12.50"), at))
	require.NoError(t, RecordVisit(db, c.ID, decimal.RequireFromString("7.50"), at))
	got, err := svc.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalSpent.Equal(decimal.NewFromInt(20)), got.TotalSpent.String())
	require.NotNil(t, got.LastVisitAt)

	assert.ErrorIs(t, RecordVisit(db, 404, decimal.NewFromInt(1), at), apperr.ErrNotFound)
}
