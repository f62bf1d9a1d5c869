package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	pkgerrors "github.com/fjod/go_cart/storefront/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPaymentPage = "https://pay.example.com/checkout?session={session_id}"

type checkoutFixture struct {
	store    *mockStore
	backend  *mockBackend
	cart     *CartStore
	auth     *AuthGate
	checkout *CheckoutService
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{store: newMockStore(), backend: &mockBackend{}}
	f.cart = newTestCart(t, f.store)
	f.auth = newTestGate(t, f.store, f.backend)

	var err error
	f.checkout, err = NewCheckoutService(f.cart, f.auth, f.backend, testPaymentPage, nil, nil)
	require.NoError(t, err)
	return f
}

func (f *checkoutFixture) login(t *testing.T) {
	t.Helper()
	_, err := f.auth.Login(context.Background(), "shopper@example.com", "pw")
	require.NoError(t, err)
}

func (f *checkoutFixture) fill(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.cart.AddItem(ctx, lineItem("car-1", "19999.50"), 2)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, lineItem("car-2", "5000"), 1)
	require.NoError(t, err)
}

func TestNewCheckoutService_Validation(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := NewCheckoutService(nil, f.auth, f.backend, testPaymentPage, nil, nil)
	assert.Error(t, err)
	_, err = NewCheckoutService(f.cart, f.auth, f.backend, "https://pay.example.com/", nil, nil)
	assert.Error(t, err)
}

func TestInitiate_NotSignedIn(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fill(t)

	_, err := f.checkout.Initiate(context.Background())

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, int32(0), f.backend.createCalls.Load())
}

func TestInitiate_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	f.login(t)

	_, err := f.checkout.Initiate(context.Background())

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, int32(0), f.backend.createCalls.Load())
}

func TestInitiate_Success(t *testing.T) {
	f := newCheckoutFixture(t)
	f.login(t)
	f.fill(t)
	f.backend.createFn = func(ctx context.Context, token string, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
		return domain.CheckoutSession{SessionID: "cs_live/1"}, nil
	}
	before := f.cart.Snapshot()

	handoff, err := f.checkout.Initiate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "cs_live/1", handoff.SessionID)
	assert.Equal(t, "https://pay.example.com/checkout?session=cs_live%2F1", handoff.RedirectURL)

	req, token := f.backend.request()
	assert.Equal(t, "opaque-token", token)
	assert.Equal(t, "shopper@example.com", req.Email)
	require.Len(t, req.Items, 2)
	assert.Equal(t, "car-1", req.Items[0].ProductID)
	assert.Equal(t, 2, req.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("19999.50").Equal(req.Items[0].UnitPrice))
	assert.Equal(t, "Car car-1", req.Items[0].Title)
	assert.Equal(t, "car-1.png", req.Items[0].Image)

	assert.Equal(t, before, f.cart.Snapshot())
}

func TestInitiate_EmptySessionIDFailsClosed(t *testing.T) {
	f := newCheckoutFixture(t)
	f.login(t)
	f.fill(t)
	f.backend.createFn = func(ctx context.Context, token string, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
		return domain.CheckoutSession{SessionID: "  "}, nil
	}

	handoff, err := f.checkout.Initiate(context.Background())

	assert.ErrorIs(t, err, ErrMissingSession)
	assert.Empty(t, handoff.RedirectURL)
	assert.Equal(t, 3, f.cart.Snapshot().TotalItems)
}

func TestInitiate_BackendMissingSessionID(t *testing.T) {
	f := newCheckoutFixture(t)
	f.login(t)
	f.fill(t)
	f.backend.createFn = func(ctx context.Context, token string, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
		return domain.CheckoutSession{}, backend.ErrMissingSessionID
	}

	_, err := f.checkout.Initiate(context.Background())

	assert.ErrorIs(t, err, ErrMissingSession)
}

func TestInitiate_BackendErrorLeavesCart(t *testing.T) {
	f := newCheckoutFixture(t)
	f.login(t)
	f.fill(t)
	f.backend.createFn = func(ctx context.Context, token string, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
		return domain.CheckoutSession{}, &backend.APIError{Operation: "create", StatusCode: http.StatusBadRequest, Message: "Car out of stock"}
	}
	before := f.cart.Snapshot()

	_, err := f.checkout.Initiate(context.Background())

	assert.ErrorIs(t, err, ErrCheckoutFailed)
	assert.Equal(t, "Car out of stock", pkgerrors.PublicMessage(err))
	assert.Equal(t, before, f.cart.Snapshot())
	assert.True(t, f.auth.IsAuthenticated())
}

func TestInitiate_TransportErrorUsesDefaultMessage(t *testing.T) {
	f := newCheckoutFixture(t)
	f.login(t)
	f.fill(t)
	f.backend.createFn = func(ctx context.Context, token string, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
		return domain.CheckoutSession{}, errors.New("timeout")
	}

	_, err := f.checkout.Initiate(context.Background())

	assert.ErrorIs(t, err, ErrCheckoutFailed)
	assert.Equal(t, "failed to initiate checkout", pkgerrors.PublicMessage(err))
}

func TestInitiate_UnauthorizedSignsOut(t *testing.T) {
	f := newCheckoutFixture(t)
	f.login(t)
	f.fill(t)
	f.backend.createFn = func(ctx context.Context, token string, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
		return domain.CheckoutSession{}, &backend.APIError{Operation: "create", StatusCode: http.StatusUnauthorized}
	}

	_, err := f.checkout.Initiate(context.Background())

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, f.auth.IsAuthenticated())
	assert.Equal(t, 3, f.cart.Snapshot().TotalItems)
}

func TestInitiate_ConcurrentCallsShareOneRequest(t *testing.T) {
	f := newCheckoutFixture(t)
	f.login(t)
	f.fill(t)

	release := make(chan struct{})
	f.backend.createFn = func(ctx context.Context, token string, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
		<-release
		return domain.CheckoutSession{SessionID: "cs_once"}, nil
	}

	const callers = 5
	var wg sync.WaitGroup
	results := make([]domain.CheckoutHandoff, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.checkout.Initiate(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool {
		return f.backend.createCalls.Load() == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "cs_once", results[i].SessionID)
	}
	assert.Equal(t, int32(1), f.backend.createCalls.Load())
}

func TestInitiate_CallerLeavingDoesNotCancelSharedRequest(t *testing.T) {
	f := newCheckoutFixture(t)
	f.login(t)
	f.fill(t)

	release := make(chan struct{})
	f.backend.createFn = func(ctx context.Context, token string, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return domain.CheckoutSession{}, err
		}
		return domain.CheckoutSession{SessionID: "cs_shared"}, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.checkout.Initiate(firstCtx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool {
		return f.backend.createCalls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	type result struct {
		handoff domain.CheckoutHandoff
		err     error
	}
	second := make(chan result, 1)
	go func() {
		handoff, err := f.checkout.Initiate(context.Background())
		second <- result{handoff, err}
	}()

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("canceled caller kept waiting")
	}

	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.Equal(t, "cs_shared", res.handoff.SessionID)
	case <-time.After(time.Second):
		t.Fatal("second caller never got a result")
	}
	assert.Equal(t, int32(1), f.backend.createCalls.Load())
}
