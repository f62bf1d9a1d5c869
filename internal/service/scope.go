package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

// Backend is everything a scope needs from the storefront backend.
type Backend interface {
	CheckoutBackend
	AuthBackend
	CatalogBackend
	OrdersBackend
}

type Deps struct {
	Repo        repository.SnapshotStore
	Keys        repository.Keys
	Backend     Backend
	PaymentPage string
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
}

// Scope is one shopper's cart, identity and checkout flow, the unit a browser
// profile or a CLI profile owns.
type Scope struct {
	ID         string
	Cart       *CartStore
	Auth       *AuthGate
	Checkout   *CheckoutService
	Reconciler *Reconciler

	catalog  CatalogBackend
	orders   OrdersBackend
	log      *logger.Logger
	lastUsed atomic.Int64
}

// NewScope wires the services for id and restores their persisted state.
func NewScope(ctx context.Context, id string, deps Deps) (*Scope, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("scope id required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	cart, err := NewCartStore(deps.Repo, deps.Keys.Cart(id), log, deps.Metrics)
	if err != nil {
		return nil, err
	}
	auth, err := NewAuthGate(deps.Repo, deps.Keys.Auth(id), deps.Backend, log, deps.Metrics)
	if err != nil {
		return nil, err
	}
	checkout, err := NewCheckoutService(cart, auth, deps.Backend, deps.PaymentPage, log, deps.Metrics)
	if err != nil {
		return nil, err
	}
	reconciler, err := NewReconciler(cart, auth, deps.Backend, log, deps.Metrics)
	if err != nil {
		return nil, err
	}
	reconciler.OnTransition(func(ctx context.Context, sessionID string, from, to domain.ReconcileStatus) {
		log.Debug(ctx, fmt.Sprintf("reconcile %s: %s -> %s", sessionID, from, to))
	})

	ctx = log.WithClientID(ctx, id)
	if err := cart.Load(ctx); err != nil {
		return nil, err
	}
	if err := auth.Load(ctx); err != nil {
		return nil, err
	}

	s := &Scope{
		ID:         id,
		Cart:       cart,
		Auth:       auth,
		Checkout:   checkout,
		Reconciler: reconciler,
		catalog:    deps.Backend,
		orders:     deps.Backend,
		log:        log,
	}
	cart.onChange = s.touch
	s.touch()
	return s, nil
}

// AddCar looks the car up and adds it with the price it has right now.
func (s *Scope) AddCar(ctx context.Context, carID string, quantity int) (domain.CartState, error) {
	car, err := s.catalog.GetCar(ctx, carID)
	if err != nil {
		if backend.IsNotFound(err) {
			return domain.CartState{}, withCause(ErrCarNotFound, err, "")
		}
		s.log.WarnErr(ctx, "car lookup failed", err)
		return domain.CartState{}, withCause(ErrCarLookupFailed, err, backend.MessageOf(err))
	}
	if !car.Available() {
		return domain.CartState{}, ErrOutOfStock
	}
	return s.Cart.AddItem(ctx, car.LineItem(), quantity)
}

// Orders lists the signed-in shopper's orders. A rejected token signs the
// shopper out.
func (s *Scope) Orders(ctx context.Context) ([]domain.Order, error) {
	identity, ok := s.Auth.Current()
	if !ok {
		return nil, ErrSignInForOrders
	}
	orders, err := s.orders.ListOrders(ctx, s.Auth.Token(), identity.Email)
	if err != nil {
		if backend.IsUnauthorized(err) {
			s.Auth.Invalidate(ctx)
			return nil, withCause(ErrSignInForOrders, err, "")
		}
		s.log.WarnErr(ctx, "list orders failed", err)
		return nil, withCause(ErrOrdersFailed, err, backend.MessageOf(err))
	}
	return orders, nil
}

func (s *Scope) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Scope) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastUsed.Load()))
}

// Registry hands out one Scope per client id and keeps it in memory while it
// is in use.
type Registry struct {
	deps Deps

	mu     sync.Mutex
	scopes map[string]*Scope
}

func NewRegistry(deps Deps) (*Registry, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	return &Registry{
		deps:   deps,
		scopes: make(map[string]*Scope),
	}, nil
}

func (r *Registry) Scope(ctx context.Context, id string) (*Scope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.scopes[id]; ok {
		s.touch()
		return s, nil
	}
	s, err := NewScope(ctx, id, r.deps)
	if err != nil {
		return nil, err
	}
	r.scopes[id] = s
	return s, nil
}

// Sweep drops scopes idle for longer than idle. Scopes with an open cart
// subscription are kept whatever their age. Dropped state stays persisted and
// is reloaded on next use.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, s := range r.scopes {
		if s.Cart.SubscriberCount() > 0 {
			continue
		}
		if s.idleSince(now) > idle {
			delete(r.scopes, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scopes)
}
