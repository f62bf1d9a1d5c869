package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	pkgerrors "github.com/fjod/go_cart/storefront/internal/errors"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

// ScopeSource resolves the per-client services. *service.Registry implements it.
type ScopeSource interface {
	Scope(ctx context.Context, id string) (*service.Scope, error)
}

type CartHandler struct {
	scopes  ScopeSource
	log     *logger.Logger
	timeout time.Duration
}

func NewCartHandler(scopes ScopeSource, log *logger.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		scopes:  scopes,
		log:     log,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	CarID    string `json:"carId" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,min=1,max=99"`
}

type BuyNowRequestDTO struct {
	CarID string `json:"carId" validate:"required"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity" validate:"required,min=1,max=99"`
}

type BuyNowResponse struct {
	Cart domain.CartState `json:"cart"`
	Next string           `json:"next"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, scope.Cart.Snapshot())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	cart, err := scope.AddCar(ctx, req.CarID, quantity)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, cart)
}

// BuyNow adds one of the car and points the client at the cart page.
func (h *CartHandler) BuyNow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req BuyNowRequestDTO
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}

	cart, err := scope.AddCar(ctx, req.CarID, 1)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, BuyNowResponse{Cart: cart, Next: domain.ActionReturnToCart.Path})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequestDTO
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}

	cart := scope.Cart.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), *req.Quantity)
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}
	cart := scope.Cart.RemoveItem(r.Context(), chi.URLParam(r, "id"))
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, scope.Cart.Clear(r.Context()))
}

// Events streams the cart as server-sent events, one per change, starting
// with the current state.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, h.log, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
		return
	}
	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}

	updates, unsubscribe := scope.Cart.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case state, open := <-updates:
			if !open {
				return
			}
			data, err := json.Marshal(state)
			if err != nil {
				h.log.Error(r.Context(), "encode cart event failed", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func resolveScope(w http.ResponseWriter, r *http.Request, scopes ScopeSource, log *logger.Logger) (*service.Scope, bool) {
	clientID := getClientID(r.Context())
	if clientID == "" {
		respondError(w, r, log, pkgerrors.New(pkgerrors.CodeValidation, "missing client id"))
		return nil, false
	}
	scope, err := scopes.Scope(r.Context(), clientID)
	if err != nil {
		respondError(w, r, log, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart"))
		return nil, false
	}
	return scope, true
}
