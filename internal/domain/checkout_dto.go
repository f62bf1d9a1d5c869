package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Title     string
	Image     string
}

type CheckoutRequest struct {
	Items []CheckoutItem
	Email string
}

// NewCheckoutRequest maps every line item in cart order.
func NewCheckoutRequest(cart CartState, email string) CheckoutRequest {
	items := make([]CheckoutItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, CheckoutItem{
			ProductID: item.ID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Title:     item.Title,
			Image:     item.Image,
		})
	}
	return CheckoutRequest{Items: items, Email: email}
}

type CheckoutSession struct {
	SessionID string
}

// CheckoutHandoff tells the caller where to send the shopper to pay.
type CheckoutHandoff struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

// Order is a placed order. Verification responses carry only the first four
// fields; the order history fills in the car and payment details.
type Order struct {
	ID            string          `json:"id"`
	Quantity      int             `json:"quantity"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	Notes         string          `json:"notes,omitempty"`
	CarID         string          `json:"carId,omitempty"`
	Title         string          `json:"title,omitempty"`
	Brand         string          `json:"brand,omitempty"`
	Model         string          `json:"model,omitempty"`
	Image         string          `json:"image,omitempty"`
	PaymentStatus string          `json:"paymentStatus,omitempty"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	CreatedAt     time.Time       `json:"createdAt,omitzero"`
}

type VerifyResult struct {
	Verified   bool
	OrderError bool
	Message    string
	Orders     []Order
}

type NavAction struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

var (
	ActionReturnToCart     = NavAction{Label: "return to cart", Path: "/cart"}
	ActionGoHome           = NavAction{Label: "go home", Path: "/"}
	ActionContinueShopping = NavAction{Label: "continue shopping", Path: "/cars"}
	ActionViewOrders       = NavAction{Label: "view my orders", Path: "/orders"}
)

// ReconcileOutcome is what the payment return page renders.
type ReconcileOutcome struct {
	Status    ReconcileStatus `json:"status"`
	SessionID string          `json:"sessionId,omitempty"`
	Message   string          `json:"message,omitempty"`
	Warning   string          `json:"warning,omitempty"`
	Orders    []Order         `json:"orders,omitempty"`
	Actions   []NavAction     `json:"actions"`
}
