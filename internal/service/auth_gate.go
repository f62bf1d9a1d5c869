package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/golang-jwt/jwt/v5"
)

// AuthGate holds the signed-in shopper for one scope. It persists under its
// own key and never touches the cart.
type AuthGate struct {
	repo    repository.SnapshotStore
	key     string
	backend AuthBackend
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	session *domain.AuthSession
}

func NewAuthGate(repo repository.SnapshotStore, key string, auth AuthBackend, log *logger.Logger, m *metrics.Metrics) (*AuthGate, error) {
	if repo == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("auth key required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AuthGate{
		repo:    repo,
		key:     key,
		backend: auth,
		log:     log,
		metrics: m,
		now:     time.Now,
	}, nil
}

// Load restores a persisted identity. Expired tokens are discarded. Storage
// errors other than a missing snapshot are returned.
func (g *AuthGate) Load(ctx context.Context) error {
	var restored *domain.AuthSession

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	data, err := g.repo.Load(loadCtx, g.key)
	switch {
	case errors.Is(err, repository.ErrSnapshotNotFound):
	case err != nil:
		g.log.WarnErr(ctx, "load auth snapshot failed", err)
		return fmt.Errorf("load auth: %w", err)
	default:
		var session domain.AuthSession
		if errDecode := json.Unmarshal(data, &session); errDecode != nil {
			g.log.WarnErr(ctx, "auth snapshot is corrupt, treating as signed out", errDecode)
			break
		}
		session = g.fillFromToken(session)
		if g.expired(session.Token) {
			g.log.Info(ctx, "persisted token expired, signing out")
			g.forget(ctx)
			break
		}
		if session.Identity.Email != "" {
			restored = &session
		}
	}

	g.mu.Lock()
	g.session = restored
	g.mu.Unlock()
	return nil
}

func (g *AuthGate) Current() (domain.Identity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil || g.session.Identity.Email == "" {
		return domain.Identity{}, false
	}
	return g.session.Identity, true
}

func (g *AuthGate) IsAuthenticated() bool {
	_, ok := g.Current()
	return ok
}

func (g *AuthGate) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return ""
	}
	return g.session.Token
}

// Login exchanges credentials for a token and remembers the identity.
func (g *AuthGate) Login(ctx context.Context, email, password string) (domain.Identity, error) {
	if g.backend == nil {
		return domain.Identity{}, ErrLoginFailed
	}

	session, err := g.backend.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return domain.Identity{}, withCause(ErrInvalidCredentials, err, apiErr.Message)
		}
		g.log.WarnErr(ctx, "login request failed", err)
		return domain.Identity{}, withCause(ErrLoginFailed, err, "")
	}

	session = g.fillFromToken(session)
	if session.Identity.Email == "" {
		session.Identity.Email = strings.TrimSpace(email)
	}

	g.mu.Lock()
	g.session = &session
	g.mu.Unlock()

	g.save(ctx, session)
	return session.Identity, nil
}

// Logout forgets the identity. The cart is left alone.
func (g *AuthGate) Logout(ctx context.Context) {
	g.mu.Lock()
	g.session = nil
	g.mu.Unlock()
	g.forget(ctx)
}

// Invalidate is Logout triggered by the backend rejecting the token.
func (g *AuthGate) Invalidate(ctx context.Context) {
	g.log.Info(ctx, "backend rejected token, signing out")
	g.Logout(ctx)
}

func (g *AuthGate) save(ctx context.Context, session domain.AuthSession) {
	data, err := json.Marshal(session)
	if err != nil {
		g.log.Error(ctx, "encode auth snapshot failed", err)
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := g.repo.Save(saveCtx, g.key, data); err != nil {
		g.log.WarnErr(ctx, "persist auth failed, identity kept in memory only", err)
		g.metrics.IncPersistFailure("auth")
	}
}

func (g *AuthGate) forget(ctx context.Context) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := g.repo.Delete(delCtx, g.key); err != nil {
		g.log.WarnErr(ctx, "delete auth snapshot failed", err)
		g.metrics.IncPersistFailure("auth")
	}
}

// The client has no signing key, so claims are read without verification.
// They only decide whether to drop a stale session early; the backend still
// checks the signature on every protected call.
func (g *AuthGate) claims(token string) jwt.MapClaims {
	if token == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

func (g *AuthGate) expired(token string) bool {
	claims := g.claims(token)
	if claims == nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !g.now().Before(exp.Time)
}

func (g *AuthGate) fillFromToken(session domain.AuthSession) domain.AuthSession {
	claims := g.claims(session.Token)
	if claims == nil {
		return session
	}
	if session.Identity.Email == "" {
		if email, ok := claims["email"].(string); ok {
			session.Identity.Email = email
		}
	}
	if session.Identity.Role == "" {
		if role, ok := claims["role"].(string); ok {
			session.Identity.Role = role
		}
	}
	return session
}
