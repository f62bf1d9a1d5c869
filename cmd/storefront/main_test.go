package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/service"
)

func TestPrintCart(t *testing.T) {
	state := domain.NewCartState([]domain.CartLineItem{
		{ID: "c1", Title: "Supra", Brand: "Toyota", Model: "GR", Price: decimal.NewFromInt(55000), Quantity: 2},
	})

	var out bytes.Buffer
	printCart(&out, state)

	assert.Contains(t, out.String(), "Supra (Toyota GR)")
	assert.Contains(t, out.String(), "110000.00")
	assert.Contains(t, out.String(), "2 item(s)")
}

func TestPrintCart_Empty(t *testing.T) {
	var out bytes.Buffer
	printCart(&out, domain.NewCartState(nil))
	assert.Equal(t, "Your cart is empty.\n", out.String())
}

func TestPrintOutcome(t *testing.T) {
	var out bytes.Buffer
	printOutcome(&out, domain.ReconcileOutcome{
		Status:  domain.ReconcileStatusVerified,
		Warning: "order pending",
		Actions: []domain.NavAction{domain.ActionContinueShopping, domain.ActionViewOrders},
	})

	assert.Contains(t, out.String(), "Payment successful")
	assert.Contains(t, out.String(), "Warning: order pending")
	assert.Contains(t, out.String(), "/orders")
}

func TestPrintOrders(t *testing.T) {
	var out bytes.Buffer
	printOrders(&out, []domain.Order{
		{ID: "o1", Title: "Supra", Quantity: 1, TotalPrice: decimal.NewFromInt(55000), PaymentStatus: "paid",
			CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{ID: "o2", CarID: "c2", Quantity: 2, TotalPrice: decimal.NewFromInt(30000)},
	})

	assert.Contains(t, out.String(), "Supra")
	assert.Contains(t, out.String(), "55000.00")
	assert.Contains(t, out.String(), "2024-05-01")
	assert.Contains(t, out.String(), "c2")
}

func TestPrintOrders_Empty(t *testing.T) {
	var out bytes.Buffer
	printOrders(&out, nil)
	assert.Equal(t, "No orders yet.\n", out.String())
}

func TestDescribeError(t *testing.T) {
	assert.Equal(t, "your cart is empty", describeError(service.ErrEmptyCart))
	assert.Equal(t, "boom", describeError(errors.New("boom")))
	assert.Contains(t, describeError(invalidQuantity(0)), "between 1 and 99")
}
