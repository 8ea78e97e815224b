package domain

import "github.com/shopspring/decimal"

type CartLine struct {
	ProductID ProductID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Product   Product   `json:"product"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Totals struct {
	Items  int             `json:"total_items"`
	Amount decimal.Decimal `json:"total_amount"`
}

// Cart holds at most one line per product.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

func (c Cart) Totals() Totals {
	t := Totals{Amount: decimal.Zero}
	for _, l := range c.Lines {
		t.Items += l.Quantity
		t.Amount = t.Amount.Add(l.Subtotal())
	}
	return t
}

func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

func (c Cart) Find(id ProductID) (int, bool) {
	for i, l := range c.Lines {
		if l.ProductID == id {
			return i, true
		}
	}
	return -1, false
}

// Clone returns a copy whose line slice can be mutated freely.
func (c Cart) Clone() Cart {
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return Cart{Lines: lines}
}

// Without returns a copy of the cart with the product's line dropped.
func (c Cart) Without(id ProductID) Cart {
	lines := make([]CartLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		if l.ProductID != id {
			lines = append(lines, l)
		}
	}
	return Cart{Lines: lines}
}
