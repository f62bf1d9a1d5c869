package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/logger"
)

type CheckoutHandler struct {
	scopes  ScopeSource
	log     *logger.Logger
	timeout time.Duration
}

func NewCheckoutHandler(scopes ScopeSource, log *logger.Logger, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		scopes:  scopes,
		log:     log,
		timeout: timeout,
	}
}

// Initiate answers with the session id and the payment page url.
func (h *CheckoutHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}
	handoff, err := scope.Checkout.Initiate(ctx)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, handoff)
}

// InitiateRedirect sends the browser straight to the payment page.
func (h *CheckoutHandler) InitiateRedirect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}
	handoff, err := scope.Checkout.Initiate(ctx)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	http.Redirect(w, r, handoff.RedirectURL, http.StatusSeeOther)
}

// Complete handles the payment page's return url and renders the outcome.
func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}
	outcome := scope.Reconciler.ReconcileURL(ctx, r.URL.String())
	respondJSON(w, http.StatusOK, outcome)
}
