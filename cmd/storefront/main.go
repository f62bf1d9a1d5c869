package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront cart and checkout client",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(cartCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(checkoutCmd())
	rootCmd.AddCommand(completeCmd())
	rootCmd.AddCommand(ordersCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

// app holds what every command needs: config, logging, storage and the
// backend client.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    repository.SnapshotStore
	backend  *backend.Client
	closers  []func(context.Context) error
}

func newApp(ctx context.Context, serviceName string) (*app, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	a := &app{
		cfg:      cfg,
		log:      log,
		registry: registry,
		metrics:  m,
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	client, err := backend.NewClient(backend.Options{
		BaseURL: cfg.Backend.BaseURL,
		Paths: backend.Paths{
			CreateCheckout: cfg.Backend.CheckoutPath,
			VerifyPayment:  cfg.Backend.VerifyPath,
			Login:          cfg.Backend.LoginPath,
			Car:            cfg.Backend.CarPath,
			UserOrders:     cfg.Backend.OrdersPath,
		},
		Timeout:            cfg.Backend.Timeout,
		BreakerMaxFailures: cfg.Backend.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.Backend.BreakerOpenTimeout,
		Logger:             log,
		Metrics:            m,
	})
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.backend = client

	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case config.StorageRedis:
		client, err := repository.ConnectRedis(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
		if err != nil {
			return err
		}
		a.store = repository.NewRedisRepository(client, a.cfg.Redis.TTL)
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })

	case config.StorageMongo:
		db, err := repository.ConnectMongoDB(ctx, a.cfg.Mongo.URI, a.cfg.Mongo.Database)
		if err != nil {
			return err
		}
		store := repository.NewMongoRepository(db)
		if indexer, ok := store.(interface{ CreateIndexes(context.Context) error }); ok {
			if err := indexer.CreateIndexes(ctx); err != nil {
				a.log.WarnErr(ctx, "create snapshot indexes failed", err)
			}
		}
		a.store = store
		a.closers = append(a.closers, db.Client().Disconnect)

	default:
		store, err := repository.NewFileRepository(a.cfg.Storage.Dir)
		if err != nil {
			return err
		}
		a.store = store
	}
	a.log.Info(ctx, fmt.Sprintf("snapshot storage: %s", a.cfg.Storage.Backend))
	return nil
}

func (a *app) deps() service.Deps {
	return service.Deps{
		Repo:        a.store,
		Keys:        repository.Keys{Namespace: a.cfg.Storage.Namespace},
		Backend:     a.backend,
		PaymentPage: a.cfg.Payment.PageURL,
		Logger:      a.log,
		Metrics:     a.metrics,
	}
}

// localScope is the single scope the CLI works on.
func (a *app) localScope(ctx context.Context) (*service.Scope, error) {
	return service.NewScope(ctx, a.cfg.Storage.Scope, a.deps())
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.WarnErr(ctx, "close failed", err)
		}
	}
	a.closers = nil
}

// withScope bootstraps the app, hands the local scope to fn and tears
// everything down afterwards.
func withScope(cmd *cobra.Command, fn func(ctx context.Context, a *app, scope *service.Scope) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, "storefront-cli")
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	scope, err := a.localScope(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, a, scope)
}
