package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/splat-labs/storefront/internal/analytics"
	"github.com/splat-labs/storefront/internal/commerce"
	"github.com/splat-labs/storefront/internal/handlers"
	"github.com/splat-labs/storefront/internal/payments"
	"github.com/splat-labs/storefront/internal/platform/cache"
	"github.com/splat-labs/storefront/internal/platform/config"
	"github.com/splat-labs/storefront/internal/platform/observability"
	"github.com/splat-labs/storefront/internal/services"
)

func main() {
	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")

	cfg, err := config.Load()
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	commerceClient, err := commerce.NewClient(commerce.Config{
		BaseURL:     cfg.Commerce.BaseURL,
		StoreID:     cfg.Commerce.StoreID,
		SecretToken: cfg.Commerce.SecretToken,
		PublicToken: cfg.Commerce.PublicToken,
		Logger:      logger.Named("commerce"),
	})
	if err != nil {
		logger.Fatal("failed to initialise commerce client", zap.Error(err))
	}

	cacheStore, err := newCacheStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise cache", zap.Error(err))
	}

	eventLogger := observability.EventLogger(logger.Named("services"))

	calculator, err := services.NewCalculationService(services.CalculationServiceDeps{
		Commerce: commerceClient,
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise calculation service", zap.Error(err))
	}

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Commerce: commerceClient,
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Commerce: commerceClient,
		Cache:    cacheStore,
		TTL:      cfg.Cache.TTL,
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	var emitter analytics.Emitter = analytics.NoopEmitter{}
	if cfg.Analytics.Endpoint != "" {
		httpEmitter, err := analytics.NewHTTPEmitter(analytics.HTTPEmitterConfig{
			Endpoint: cfg.Analytics.Endpoint,
			Key:      cfg.Analytics.Key,
			Logger:   logger.Named("analytics"),
		})
		if err != nil {
			logger.Fatal("failed to initialise analytics emitter", zap.Error(err))
		}
		emitter = httpEmitter
		logger.Info("analytics capture enabled", zap.String("endpoint", cfg.Analytics.Endpoint))
	}

	var checkout services.CheckoutService
	var stripeVerifier payments.EventVerifier
	if cfg.Stripe.APIKey != "" {
		provider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.Stripe.APIKey,
			Logger: eventLogger,
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe provider", zap.Error(err))
		}

		checkout, err = services.NewCheckoutService(services.CheckoutServiceDeps{
			Orders:      orders,
			Payments:    provider,
			SiteBaseURL: cfg.Site.BaseURL,
			Analytics:   emitter,
			Logger:      eventLogger,
		})
		if err != nil {
			logger.Fatal("failed to initialise checkout service", zap.Error(err))
		}

		if cfg.Stripe.WebhookSecret != "" {
			stripeVerifier, err = payments.NewStripeEventVerifier(cfg.Stripe.WebhookSecret)
			if err != nil {
				logger.Fatal("failed to initialise stripe webhook verifier", zap.Error(err))
			}
		} else {
			logger.Warn("stripe webhook secret not configured, /webhooks/stripe disabled")
		}
	} else {
		logger.Warn("stripe api key not configured, hosted checkout disabled")
	}

	checkoutHandlers := handlers.NewCheckoutHandlers(calculator, checkout, orders)
	catalogHandlers := handlers.NewCatalogHandlers(catalog)
	revalidateHandlers := handlers.NewRevalidateHandlers(catalog, cfg.Revalidate.Secret)
	commerceWebhooks := handlers.NewCommerceWebhookHandlers(cfg.Commerce.WebhookSecret, cfg.Commerce.StoreID, catalog)

	routerOpts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithInternalRoutes(revalidateHandlers.Routes),
	}

	webhookRegistrars := []handlers.RouteRegistrar{commerceWebhooks.Routes}
	if stripeVerifier != nil {
		stripeWebhooks := handlers.NewStripeWebhookHandlers(stripeVerifier, orders)
		webhookRegistrars = append(webhookRegistrars, stripeWebhooks.Routes)
	}
	routerOpts = append(routerOpts, handlers.WithWebhookRoutes(func(r chi.Router) {
		for _, register := range webhookRegistrars {
			register(r)
		}
	}))

	router := handlers.NewRouter(routerOpts...)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newCacheStore(cfg config.Config, logger *zap.Logger) (cache.Store, error) {
	if cfg.Cache.RedisAddr == "" {
		return cache.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("catalog cache backed by redis", zap.String("addr", cfg.Cache.RedisAddr))
	return cache.NewRedisStore(client)
}
