package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/service"
)

func serveCmd() *cobra.Command {
	var (
		sweepEvery time.Duration
		idleAfter  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP server",
		Long: `Run the backend-for-frontend server.

Each browser gets its own cart and sign-in, keyed by the storefront_client
cookie. Configuration comes from STOREFRONT_* environment variables and an
optional .env file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), sweepEvery, idleAfter)
		},
	}

	cmd.Flags().DurationVar(&sweepEvery, "sweep-every", time.Minute, "how often idle shoppers are dropped from memory")
	cmd.Flags().DurationVar(&idleAfter, "idle-after", 30*time.Minute, "idle time before a shopper is dropped from memory")

	return cmd
}

func runServe(ctx context.Context, sweepEvery, idleAfter time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, "storefront")
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	registry, err := service.NewRegistry(a.deps())
	if err != nil {
		return err
	}

	router := h.NewRouter(h.RouterConfig{
		Scopes:         registry,
		Logger:         a.log,
		Gatherer:       a.registry,
		RequestTimeout: a.cfg.HTTP.RequestTimeout,
		AllowedOrigins: a.cfg.HTTP.AllowedOrigins,
		CookieSecure:   a.cfg.HTTP.CookieSecure || a.cfg.App.IsProd(),
	})

	srv := &http.Server{
		Addr:        ":" + a.cfg.App.Port,
		Handler:     otelhttp.NewHandler(router, "storefront"),
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: the cart event stream stays open
		IdleTimeout: 60 * time.Second,
	}

	go sweepScopes(ctx, a, registry, sweepEvery, idleAfter)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info(ctx, fmt.Sprintf("storefront listening on :%s", a.cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info(ctx, "shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		// open event streams hold shutdown until the deadline
		_ = srv.Close()
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.log.Info(shutdownCtx, "server exited")
	return nil
}

func sweepScopes(ctx context.Context, a *app, registry *service.Registry, every, idle time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := registry.Sweep(idle); removed > 0 {
				a.log.Debug(ctx, fmt.Sprintf("dropped %d idle shoppers, %d active", removed, registry.Len()))
			}
		}
	}
}
