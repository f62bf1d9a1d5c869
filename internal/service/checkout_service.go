package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	sessionPlaceholder = "{session_id}"

	// sharedCallTimeout bounds a backend call shared by concurrent callers.
	// The call is detached from each caller's cancellation.
	sharedCallTimeout = 30 * time.Second
)

// CheckoutService turns the current cart into a payment session and the
// redirect that hands the shopper to the payment page.
type CheckoutService struct {
	cart        *CartStore
	auth        *AuthGate
	backend     CheckoutBackend
	paymentPage string
	log         *logger.Logger
	metrics     *metrics.Metrics
	sfg         singleflight.Group // one in-flight checkout per cart
}

func NewCheckoutService(cart *CartStore, auth *AuthGate, b CheckoutBackend, paymentPage string, log *logger.Logger, m *metrics.Metrics) (*CheckoutService, error) {
	if cart == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if auth == nil {
		return nil, fmt.Errorf("auth gate required")
	}
	if b == nil {
		return nil, fmt.Errorf("checkout backend required")
	}
	if !strings.Contains(paymentPage, sessionPlaceholder) {
		return nil, fmt.Errorf("payment page url must contain %s", sessionPlaceholder)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CheckoutService{
		cart:        cart,
		auth:        auth,
		backend:     b,
		paymentPage: paymentPage,
		log:         log,
		metrics:     m,
	}, nil
}

// Initiate validates the preconditions, creates a checkout session and returns
// the payment page redirect. The cart is never modified. Concurrent calls
// share a single backend request; a caller that gives up early does not
// cancel it for the others.
func (s *CheckoutService) Initiate(ctx context.Context) (domain.CheckoutHandoff, error) {
	ch := s.sfg.DoChan(s.cart.key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return s.initiate(callCtx)
	})

	select {
	case <-ctx.Done():
		return domain.CheckoutHandoff{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.log.Debug(ctx, "checkout already in flight, sharing result")
		}
		if res.Err != nil {
			return domain.CheckoutHandoff{}, res.Err
		}
		return res.Val.(domain.CheckoutHandoff), nil
	}
}

func (s *CheckoutService) initiate(ctx context.Context) (domain.CheckoutHandoff, error) {
	identity, ok := s.auth.Current()
	if !ok {
		s.metrics.IncCheckout("unauthenticated")
		return domain.CheckoutHandoff{}, ErrNotAuthenticated
	}

	cart := s.cart.Snapshot()
	if cart.IsEmpty() {
		s.metrics.IncCheckout("empty_cart")
		return domain.CheckoutHandoff{}, ErrEmptyCart
	}

	ctx = s.log.WithField(ctx, "cart_items", cart.TotalItems)
	req := domain.NewCheckoutRequest(cart, identity.Email)

	session, err := s.backend.CreateCheckoutSession(ctx, s.auth.Token(), req)
	if err != nil {
		return domain.CheckoutHandoff{}, s.checkoutError(ctx, err)
	}
	if strings.TrimSpace(session.SessionID) == "" {
		s.metrics.IncCheckout("missing_session")
		s.log.Warn(ctx, "backend returned no session id")
		return domain.CheckoutHandoff{}, ErrMissingSession
	}

	ctx = s.log.WithSessionID(ctx, session.SessionID)
	s.log.Info(ctx, "checkout session created")
	s.metrics.IncCheckout("ok")

	return domain.CheckoutHandoff{
		SessionID:   session.SessionID,
		RedirectURL: strings.ReplaceAll(s.paymentPage, sessionPlaceholder, url.QueryEscape(session.SessionID)),
	}, nil
}

func (s *CheckoutService) checkoutError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, backend.ErrMissingSessionID):
		s.metrics.IncCheckout("missing_session")
		s.log.Warn(ctx, "backend returned no session id")
		return withCause(ErrMissingSession, err, "")
	case backend.IsUnauthorized(err):
		s.metrics.IncCheckout("unauthenticated")
		s.auth.Invalidate(ctx)
		return withCause(ErrNotAuthenticated, err, "")
	default:
		s.metrics.IncCheckout("error")
		s.log.WarnErr(ctx, "create checkout session failed", err)
		return withCause(ErrCheckoutFailed, err, backend.MessageOf(err))
	}
}
