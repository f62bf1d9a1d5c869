package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Scopes         ScopeSource
	Logger         *logger.Logger
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	AllowedOrigins []string
	CookieSecure   bool
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cartHandler := NewCartHandler(cfg.Scopes, log, timeout)
	authHandler := NewAuthHandler(cfg.Scopes, log, timeout)
	checkoutHandler := NewCheckoutHandler(cfg.Scopes, log, timeout)
	ordersHandler := NewOrdersHandler(cfg.Scopes, log, timeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(ClientIDMiddleware(cfg.CookieSecure))
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	bounded := []func(http.Handler) http.Handler{
		middleware.Timeout(timeout),
		middleware.Compress(5),
	}

	r.Group(func(r chi.Router) {
		r.Use(bounded...)
		r.Post("/checkout", checkoutHandler.InitiateRedirect)
		r.Get("/checkout/success", checkoutHandler.Complete)
		r.Get("/orders", ordersHandler.List)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			// The event stream outlives any request timeout.
			r.Get("/events", cartHandler.Events)

			r.Group(func(r chi.Router) {
				r.Use(bounded...)
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{id}", cartHandler.RemoveItem)
				r.Post("/buy-now", cartHandler.BuyNow)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(bounded...)
			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", authHandler.Login)
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
			})
			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", checkoutHandler.Initiate)
				r.Get("/verify", checkoutHandler.Complete)
			})
			r.Get("/orders", ordersHandler.List)
		})
	})

	return r
}
