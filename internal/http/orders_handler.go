package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
)

type OrdersHandler struct {
	scopes  ScopeSource
	log     *logger.Logger
	timeout time.Duration
}

func NewOrdersHandler(scopes ScopeSource, log *logger.Logger, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		scopes:  scopes,
		log:     log,
		timeout: timeout,
	}
}

type OrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// List serves the order history the "view my orders" action points at.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	scope, ok := resolveScope(w, r, h.scopes, h.log)
	if !ok {
		return
	}

	orders, err := scope.Orders(ctx)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	respondJSON(w, http.StatusOK, OrdersResponse{Orders: orders})
}
