package service

import (
	"errors"

	pkgerrors "github.com/fjod/go_cart/storefront/internal/errors"
)

var (
	ErrEmptyCart          = pkgerrors.New(pkgerrors.CodeEmptyCart, "your cart is empty")
	ErrNotAuthenticated   = pkgerrors.New(pkgerrors.CodeUnauthorized, "please log in to checkout")
	ErrMissingSession     = pkgerrors.New(pkgerrors.CodeDependency, "no session id returned from the server")
	ErrCheckoutFailed     = pkgerrors.New(pkgerrors.CodeDependency, "failed to initiate checkout")
	ErrInvalidCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
	ErrLoginFailed        = pkgerrors.New(pkgerrors.CodeDependency, "login failed")
	ErrCarNotFound        = pkgerrors.New(pkgerrors.CodeNotFound, "car not found")
	ErrCarLookupFailed    = pkgerrors.New(pkgerrors.CodeDependency, "failed to fetch car details")
	ErrOutOfStock         = pkgerrors.New(pkgerrors.CodeOutOfStock, "this car is out of stock")
	ErrSignInForOrders    = pkgerrors.New(pkgerrors.CodeUnauthorized, "please log in to view your orders")
	ErrOrdersFailed       = pkgerrors.New(pkgerrors.CodeDependency, "failed to fetch orders")
	ErrInvalidItem        = pkgerrors.New(pkgerrors.CodeValidation, "cart item must have an id")

	IllegalTransitionError = errors.New("illegal transition of reconcile status")
)

// withCause keeps the sentinel's code and message so errors.Is still matches
// it. A non-empty message from the backend replaces the sentinel's text.
func withCause(sentinel *pkgerrors.Error, cause error, backendMessage string) error {
	if backendMessage != "" {
		return pkgerrors.Wrap(sentinel.Code(), &sentinelCause{sentinel: sentinel, cause: cause}, backendMessage)
	}
	return pkgerrors.Wrap(sentinel.Code(), cause, sentinel.Message())
}

// sentinelCause lets a re-worded error still unwrap to its sentinel.
type sentinelCause struct {
	sentinel *pkgerrors.Error
	cause    error
}

func (s *sentinelCause) Error() string { return s.cause.Error() }

func (s *sentinelCause) Unwrap() []error { return []error{s.sentinel, s.cause} }
