package domain

import "github.com/shopspring/decimal"

// CartLineItem is one distinct car in the cart. Display fields and price are
// captured when the car is first added and are not refreshed afterwards.
type CartLineItem struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Brand    string          `json:"brand"`
	Model    string          `json:"model"`
	Image    string          `json:"image"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func (i CartLineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartState holds the ordered line items and the totals derived from them.
// Totals are only ever written by recompute.
type CartState struct {
	Items       []CartLineItem  `json:"items"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// NewCartState builds a state from persisted items. Entries with a blank id or
// a non-positive quantity are dropped and repeated ids are merged.
func NewCartState(items []CartLineItem) CartState {
	var c CartState
	for _, item := range items {
		if item.ID == "" || item.Quantity <= 0 {
			continue
		}
		c.Add(item, item.Quantity)
	}
	c.recompute()
	return c
}

// Add merges quantity into an existing line with the same id, or appends a new
// line. A quantity below 1 is treated as 1.
func (c *CartState) Add(item CartLineItem, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	if idx := c.indexOf(item.ID); idx >= 0 {
		c.Items[idx].Quantity += quantity
	} else {
		item.Quantity = quantity
		c.Items = append(c.Items, item)
	}
	c.recompute()
}

// Remove deletes the line regardless of its quantity. Reports whether a line
// was removed.
func (c *CartState) Remove(id string) bool {
	idx := c.indexOf(id)
	if idx < 0 {
		return false
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	c.recompute()
	return true
}

// SetQuantity sets an exact quantity; zero or less removes the line.
func (c *CartState) SetQuantity(id string, quantity int) bool {
	if quantity <= 0 {
		return c.Remove(id)
	}
	idx := c.indexOf(id)
	if idx < 0 {
		return false
	}
	c.Items[idx].Quantity = quantity
	c.recompute()
	return true
}

func (c *CartState) Reset() {
	c.Items = nil
	c.recompute()
}

func (c CartState) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c CartState) Find(id string) (CartLineItem, bool) {
	if idx := c.indexOf(id); idx >= 0 {
		return c.Items[idx], true
	}
	return CartLineItem{}, false
}

// Clone returns a copy that shares no backing array with c.
func (c CartState) Clone() CartState {
	out := CartState{
		TotalItems:  c.TotalItems,
		TotalAmount: c.TotalAmount,
	}
	if len(c.Items) > 0 {
		out.Items = make([]CartLineItem, len(c.Items))
		copy(out.Items, c.Items)
	}
	return out
}

func (c CartState) Snapshot() CartSnapshot {
	items := c.Clone().Items
	if items == nil {
		items = []CartLineItem{}
	}
	return CartSnapshot{Items: items}
}

func (c CartState) indexOf(id string) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *CartState) recompute() {
	total := 0
	amount := decimal.Zero
	for _, item := range c.Items {
		total += item.Quantity
		amount = amount.Add(item.Subtotal())
	}
	c.TotalItems = total
	c.TotalAmount = amount
}
