package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

// mockStore is an in-memory SnapshotStore.
type mockStore struct {
	mu      sync.RWMutex
	data    map[string][]byte
	saves   map[string]int
	saveErr error
	loadErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		data:  make(map[string][]byte),
		saves: make(map[string]int),
	}
}

func (m *mockStore) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	data, ok := m.data[key]
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *mockStore) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves[key]++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockStore) get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key]
	return data, ok
}

func (m *mockStore) saveCount(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves[key]
}

func (m *mockStore) setLoadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

func (m *mockStore) setSaveErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// mockBackend implements Backend with overridable behaviour.
type mockBackend struct {
	mu sync.RWMutex

	createFn func(ctx context.Context, token string, req domain.CheckoutRequest) (domain.CheckoutSession, error)
	verifyFn func(ctx context.Context, token, sessionID string) (domain.VerifyResult, error)
	loginFn  func(ctx context.Context, email, password string) (domain.AuthSession, error)
	carFn    func(ctx context.Context, id string) (domain.Car, error)
	ordersFn func(ctx context.Context, token, email string) ([]domain.Order, error)

	createCalls atomic.Int32
	verifyCalls atomic.Int32
	lastRequest domain.CheckoutRequest
	lastToken   string
}

func (m *mockBackend) CreateCheckoutSession(ctx context.Context, token string, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	m.createCalls.Add(1)
	m.mu.Lock()
	m.lastRequest = req
	m.lastToken = token
	fn := m.createFn
	m.mu.Unlock()
	if fn == nil {
		return domain.CheckoutSession{SessionID: "cs_test"}, nil
	}
	return fn(ctx, token, req)
}

func (m *mockBackend) VerifyPayment(ctx context.Context, token, sessionID string) (domain.VerifyResult, error) {
	m.verifyCalls.Add(1)
	if m.verifyFn == nil {
		return domain.VerifyResult{}, errors.New("verify not configured")
	}
	return m.verifyFn(ctx, token, sessionID)
}

func (m *mockBackend) Login(ctx context.Context, email, password string) (domain.AuthSession, error) {
	if m.loginFn == nil {
		return domain.AuthSession{
			Token:    "opaque-token",
			Identity: domain.Identity{ID: "u1", Email: email},
		}, nil
	}
	return m.loginFn(ctx, email, password)
}

func (m *mockBackend) GetCar(ctx context.Context, id string) (domain.Car, error) {
	if m.carFn == nil {
		return domain.Car{}, errors.New("catalog not configured")
	}
	return m.carFn(ctx, id)
}

func (m *mockBackend) ListOrders(ctx context.Context, token, email string) ([]domain.Order, error) {
	if m.ordersFn == nil {
		return nil, errors.New("orders not configured")
	}
	return m.ordersFn(ctx, token, email)
}

func (m *mockBackend) request() (domain.CheckoutRequest, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequest, m.lastToken
}
