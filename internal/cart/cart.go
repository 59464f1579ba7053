// Package cart accumulates candidate order lines for one checkout session.
// Quantities are advisory: nothing here reserves stock, and PlaceOrder
// re-checks live stock at commit time.
package cart

import (
	"go-pharmacy-pos/internal/models"
	"go-pharmacy-pos/internal/orders"

	"github.com/shopspring/decimal"
)

// Line is one product in the cart with the price seen when it was added.
type Line struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Cart is owned by a single session and is not safe for concurrent use.
// The zero value is an empty cart.
type Cart struct {
	order []uint
	lines map[uint]*Line
}

func New() *Cart {
	return &Cart{}
}

func clamp(qty, stock int) int {
	if qty < 0 {
		return 0
	}
	if stock < 0 {
		stock = 0
	}
	return min(qty, stock)
}

// AddItem adds qty units of p, merging with an existing line. The resulting
// quantity is silently truncated to the product's current stock.
func (c *Cart) AddItem(p models.Product, qty int) {
	if qty <= 0 {
		return
	}
	if line, ok := c.lines[p.ID]; ok {
		c.set(p, line.Quantity+qty)
		return
	}
	c.set(p, qty)
}

// SetQuantity replaces the line quantity for p, clamped to [0, stock].
// Zero removes the line.
func (c *Cart) SetQuantity(p models.Product, qty int) {
	c.set(p, qty)
}

func (c *Cart) set(p models.Product, qty int) {
	qty = clamp(qty, p.StockQuantity)
	if qty == 0 {
		c.RemoveItem(p.ID)
		return
	}
	if c.lines == nil {
		c.lines = make(map[uint]*Line)
	}
	if line, ok := c.lines[p.ID]; ok {
		line.Quantity = qty
		return
	}
	c.lines[p.ID] = &Line{
		ProductID: p.ID,
		Name:      p.Name,
		SKU:       p.SKU,
		Quantity:  qty,
		UnitPrice: p.Price,
	}
	c.order = append(c.order, p.ID)
}

// RemoveItem drops the line for productID. Absent ids are ignored.
func (c *Cart) RemoveItem(productID uint) {
	if _, ok := c.lines[productID]; !ok {
		return
	}
	delete(c.lines, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []Line {
	out := make([]Line, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.lines[id])
	}
	return out
}

func (c *Cart) Len() int { return len(c.order) }

// Totals computes subtotal - discount + subtotal*taxRate. Tax and total are
// rounded to cents. It does not modify the cart.
func (c *Cart) Totals(taxRate, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, id := range c.order {
		subtotal = subtotal.Add(c.lines[id].Subtotal())
	}
	tax := subtotal.Mul(taxRate).Round(2)
	return Totals{
		Subtotal: subtotal.Round(2),
		Discount: discount.Round(2),
		Tax:      tax,
		Total:    subtotal.Sub(discount).Add(tax).Round(2),
	}
}

// LineInputs converts the cart into PlaceOrder lines carrying the price
// snapshot taken when each product was added.
func (c *Cart) LineInputs() []orders.LineInput {
	out := make([]orders.LineInput, 0, len(c.order))
	for _, id := range c.order {
		line := c.lines[id]
		out = append(out, orders.LineInput{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Discount:  decimal.Zero,
		})
	}
	return out
}
