package service

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Consumers define these interfaces; backend.Client satisfies all of them.

type CheckoutBackend interface {
	CreateCheckoutSession(ctx context.Context, token string, req domain.CheckoutRequest) (domain.CheckoutSession, error)
	VerifyPayment(ctx context.Context, token, sessionID string) (domain.VerifyResult, error)
}

type AuthBackend interface {
	Login(ctx context.Context, email, password string) (domain.AuthSession, error)
}

type CatalogBackend interface {
	GetCar(ctx context.Context, id string) (domain.Car, error)
}

type OrdersBackend interface {
	ListOrders(ctx context.Context, token, email string) ([]domain.Order, error)
}
