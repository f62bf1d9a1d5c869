package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

const persistTimeout = 2 * time.Second

// CartStore owns one shopper's cart. Every mutation recomputes totals, writes
// the snapshot and notifies subscribers while holding the lock, so observers
// and storage see mutations in the order they were applied.
type CartStore struct {
	repo    repository.SnapshotStore
	key     string
	log     *logger.Logger
	metrics *metrics.Metrics

	// onChange runs after every effective mutation.
	onChange func()

	mu      sync.Mutex
	state   domain.CartState
	subs    map[int]chan domain.CartState
	nextSub int
}

func NewCartStore(repo repository.SnapshotStore, key string, log *logger.Logger, m *metrics.Metrics) (*CartStore, error) {
	if repo == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("cart key required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CartStore{
		repo:    repo,
		key:     key,
		log:     log,
		metrics: m,
		subs:    make(map[int]chan domain.CartState),
	}, nil
}

// Load replaces the in-memory cart with the persisted one. A missing or
// corrupt snapshot leaves an empty cart. Any other storage error is returned
// and the in-memory cart is left untouched, so a later write cannot replace a
// snapshot that was never read.
func (s *CartStore) Load(ctx context.Context) error {
	state := domain.CartState{}

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	data, err := s.repo.Load(loadCtx, s.key)
	switch {
	case errors.Is(err, repository.ErrSnapshotNotFound):
	case err != nil:
		s.log.WarnErr(ctx, "load cart snapshot failed", err)
		return fmt.Errorf("load cart: %w", err)
	default:
		var snapshot domain.CartSnapshot
		if errDecode := json.Unmarshal(data, &snapshot); errDecode != nil {
			s.log.WarnErr(ctx, "cart snapshot is corrupt, starting empty", errDecode)
		} else {
			state = snapshot.State()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.publish()
	return nil
}

// AddItem merges quantity into the line with the same id or appends a new
// line. Quantities below 1 count as 1.
func (s *CartStore) AddItem(ctx context.Context, item domain.CartLineItem, quantity int) (domain.CartState, error) {
	if strings.TrimSpace(item.ID) == "" {
		return domain.CartState{}, ErrInvalidItem
	}
	return s.mutate(ctx, func(c *domain.CartState) bool {
		c.Add(item, quantity)
		return true
	}), nil
}

// RemoveItem deletes the line whatever its quantity. Unknown ids are ignored.
func (s *CartStore) RemoveItem(ctx context.Context, id string) domain.CartState {
	return s.mutate(ctx, func(c *domain.CartState) bool {
		return c.Remove(id)
	})
}

// UpdateQuantity sets an exact quantity. Zero or less removes the line;
// unknown ids are ignored.
func (s *CartStore) UpdateQuantity(ctx context.Context, id string, quantity int) domain.CartState {
	return s.mutate(ctx, func(c *domain.CartState) bool {
		return c.SetQuantity(id, quantity)
	})
}

func (s *CartStore) Clear(ctx context.Context) domain.CartState {
	return s.mutate(ctx, func(c *domain.CartState) bool {
		c.Reset()
		return true
	})
}

func (s *CartStore) Snapshot() domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe returns a channel that always holds the latest cart state. The
// current state is delivered immediately. Slow readers only miss intermediate
// states, never the last one.
func (s *CartStore) Subscribe() (<-chan domain.CartState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan domain.CartState, 1)
	ch <- s.state.Clone()
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// SubscriberCount reports how many subscriptions are still open.
func (s *CartStore) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *CartStore) mutate(ctx context.Context, apply func(*domain.CartState) bool) domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !apply(&s.state) {
		return s.state.Clone()
	}
	s.persist(ctx)
	s.publish()
	if s.onChange != nil {
		s.onChange()
	}
	return s.state.Clone()
}

// persist must be called with mu held. Failures are logged and the in-memory
// cart stays authoritative.
func (s *CartStore) persist(ctx context.Context) {
	data, err := json.Marshal(s.state.Snapshot())
	if err != nil {
		s.log.Error(ctx, "encode cart snapshot failed", err)
		s.metrics.IncPersistFailure("cart")
		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.repo.Save(saveCtx, s.key, data); err != nil {
		s.log.WarnErr(ctx, "persist cart failed, keeping in-memory cart", err)
		s.metrics.IncPersistFailure("cart")
	}
}

// publish must be called with mu held.
func (s *CartStore) publish() {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.state.Clone()
	}
}
