package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/internal/wishlist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("storefront stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.Noop()
	if cfg.Telemetry.MetricsEnabled {
		mp, err := metrics.Setup(ctx, cfg.Telemetry)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mp.Shutdown(shutdownCtx); err != nil {
				log.Warn("failed to flush metrics", "error", err)
			}
		}()
		if m, err = metrics.New(mp); err != nil {
			return err
		}
	}

	store, redisClient, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	store = storage.Namespaced(store, cfg.Store.Namespace)
	log.Info("store ready", "driver", cfg.Store.Driver, "namespace", cfg.Store.Namespace)

	client := api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.RequestTimeout),
		api.WithLogger(log),
		api.WithMetrics(m),
		api.WithBreaker(breakerSettings(cfg.Breaker, log)),
	)
	mgr := session.NewManager(client, store, session.WithLogger(log))
	client.Bind(mgr)

	catalogOpts := []catalog.Option{catalog.WithLogger(log), catalog.WithAdmin(client, mgr)}
	if redisClient != nil && cfg.Catalog.CacheEnabled {
		catalogOpts = append(catalogOpts, catalog.WithCache(catalog.NewRedisCache(redisClient, cfg.Catalog.CacheTTL)))
	}
	products := catalog.NewService(client, catalogOpts...)

	cartSvc := cart.NewService(client, products, store, cart.WithLogger(log), cart.WithMetrics(m))
	wishlistSvc := wishlist.NewService(client, products, cartSvc, store, wishlist.WithLogger(log), wishlist.WithMetrics(m))
	mgr.Subscribe(cartSvc)
	mgr.Subscribe(wishlistSvc)

	checkoutSvc := checkout.NewService(client, cartSvc, mgr, checkout.Config{
		KeyID:     cfg.Checkout.PaymentKeyID,
		StoreName: cfg.Checkout.StoreName,
		TaxRate:   decimal.NewFromFloat(cfg.Checkout.TaxRate),
		Country:   cfg.Checkout.Country,
	}, checkout.WithLogger(log), checkout.WithMetrics(m))
	mgr.Subscribe(checkoutSvc)

	// Guest state first, so a restored session merges what the guest left.
	if err := cartSvc.Load(ctx); err != nil {
		log.Warn("failed to load cart", "error", err)
	}
	if err := wishlistSvc.Load(ctx); err != nil {
		log.Warn("failed to load wishlist", "error", err)
	}
	mgr.Restore(ctx)

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     cfg.API.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
		ServiceName:        cfg.Telemetry.ServiceName,
	}, h.Services{
		Session:  mgr,
		Catalog:  products,
		Cart:     cartSvc,
		Wishlist: wishlistSvc,
		Checkout: checkoutSvc,
		Orders:   orders.NewService(client, mgr, log),
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.API.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("storefront starting", "port", cfg.HTTP.Port, "api", cfg.API.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

// openStore returns the configured store. The redis client is returned too
// so the product cache can share the connection.
func openStore(ctx context.Context, cfg config.AppConfig) (storage.Store, *redis.Client, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return storage.NewMemory(), nil, func() {}, nil

	case config.DriverSQLite:
		s, err := storage.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := s.RunMigrations(); err != nil {
			s.Close()
			return nil, nil, nil, err
		}
		return s, nil, func() { s.Close() }, nil

	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return storage.NewRedis(rdb, cfg.Redis.TTL), rdb, func() { rdb.Close() }, nil

	case config.DriverMongo:
		db, err := storage.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = db.Client().Disconnect(ctx)
		}
		return storage.NewMongo(db), nil, closeFn, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func breakerSettings(cfg config.BreakerConfig, log *slog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "storefront-api",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
}
