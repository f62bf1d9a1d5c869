package domain

import "github.com/shopspring/decimal"

// Car is the catalog view needed to put a car in the cart.
type Car struct {
	ID       string
	Title    string
	Brand    string
	Model    string
	Image    string
	Price    decimal.Decimal
	InStock  bool
	Quantity int
}

func (c Car) Available() bool {
	return c.InStock && c.Quantity > 0
}

// LineItem captures the car's current display data and price.
func (c Car) LineItem() CartLineItem {
	return CartLineItem{
		ID:    c.ID,
		Title: c.Title,
		Brand: c.Brand,
		Model: c.Model,
		Image: c.Image,
		Price: c.Price,
	}
}
