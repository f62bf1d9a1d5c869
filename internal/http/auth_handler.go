package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	pkgerrors "github.com/fjod/go_cart/storefront/internal/errors"
	"github.com/fjod/go_cart/storefront/internal/logger"
)

var errNotSignedIn = pkgerrors.New(pkgerrors.CodeUnauthorized, "not signed in")

type AuthHandler struct {
	scopes  ScopeSource
	log     *logger.Logger
	timeout time.Duration
}

func NewAuthHandler(scopes ScopeSource, log *logger.Logger, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		scopes:  scopes,
		log:     log,
		timeout: timeout,
	}
}

type LoginRequestDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type IdentityResponse struct {
	Authenticated bool             `json:"authenticated"`
	User          *domain.Identity `json:"user,omitempty"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}

	identity, err := scope.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, IdentityResponse{Authenticated: true, User: &identity})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}
	scope.Auth.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}
	identity, signedIn := scope.Auth.Current()
	if !signedIn {
		respondError(w, r, h.log, errNotSignedIn)
		return
	}
	respondJSON(w, http.StatusOK, IdentityResponse{Authenticated: true, User: &identity})
}
