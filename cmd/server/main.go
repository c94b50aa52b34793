package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"bloomcart-be/internal/checkout"
	"bloomcart-be/internal/config"
	"bloomcart-be/internal/db"
	"bloomcart-be/internal/httpapi"
	"bloomcart-be/internal/logger"
	"bloomcart-be/internal/middleware"
	"bloomcart-be/internal/notify"
	"bloomcart-be/internal/order"
	"bloomcart-be/internal/payment"
	"bloomcart-be/internal/payment/webhook"
	"bloomcart-be/internal/scheduler"
	"bloomcart-be/internal/storefront"
	"bloomcart-be/internal/wallet"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database := db.InitDB(cfg)
	defer database.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.L().Fatal("redis unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	loc := shopLocation(cfg.Timezone)

	// storefront + checkout
	store := storefront.NewClient(cfg.BackendAPIURL, cfg.StorefrontCacheTTL)
	pricer := checkout.NewPricer(store)
	sessions := checkout.NewService(checkout.NewRedisStore(rdb, cfg.CheckoutSessionTTL), pricer, loc)

	// card payments
	gateway := payment.NewCardGateway(cfg.CardGatewayURL, cfg.CardGatewayAPIKey, cfg.CardGatewayCallbackToken)
	orderRepo := order.NewRepository(database)
	finalizer := order.NewFinalizer(orderRepo, gateway)
	hooks := order.NewPaymentHooks(orderRepo, finalizer)
	adapter := payment.NewAdapter(gateway, hooks, hooks)
	drafts := order.NewDraftService(orderRepo, adapter, pricer, cfg.Currency, cfg.DraftTTL)
	webhookHandler := webhook.NewWebhookHandler(adapter, gateway, payment.NewRepository(database))

	// wallet payments
	cld, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		logger.L().Fatal("cloudinary misconfigured", zap.Error(err))
	}
	links := notify.NewLinkSigner(cfg.NotifyLinkSecret, cfg.NotifyLinkTTL, cfg.PublicBaseURL)
	notifier := notify.NewService(
		notify.NewRepository(database),
		notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom),
		links,
		cfg.StaffEmail,
		cfg.StorePhone,
		cfg.NotifyMaxAttempts,
	)
	walletFlow := wallet.NewWorkflow(
		orderRepo,
		sessions,
		pricer,
		wallet.NewCloudinaryStore(cld, cfg.CloudinaryFolder),
		notifier,
		links,
		wallet.Config{Currency: cfg.Currency, MaxProofBytes: cfg.MaxProofBytes, SettleDelay: cfg.SettleDelay},
	)

	jobs, err := scheduler.New(finalizer, notifier, scheduler.Config{
		SweepInterval: cfg.DraftSweepInterval,
		RetryInterval: cfg.NotifyRetryInterval,
		Location:      loc,
	})
	if err != nil {
		logger.L().Fatal("failed to create scheduler", zap.Error(err))
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Sessions:       sessions,
		Drafts:         drafts,
		Finalizer:      finalizer,
		Wallet:         walletFlow,
		Storefront:     store,
		PaymentWebhook: webhookHandler.PaymentWebhookHandler,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxProofBytes:  cfg.MaxProofBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           newHandler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	jobs.Start()
	logger.L().Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))

	if err := serve(ctx, srv, func() {
		if err := jobs.Stop(); err != nil {
			logger.L().Warn("scheduler shutdown", zap.Error(err))
		}
		walletFlow.Shutdown()
	}); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
	logger.L().Info("server stopped")
}

// newHandler wraps the router with the net/http middleware chain.
func newHandler(router http.Handler) http.Handler {
	return logger.RequestIDMiddleware(
		logger.LoggingMiddleware(
			middleware.RateLimitMiddleware(router),
		),
	)
}

// serve runs srv until ctx is done, then drains requests and runs cleanup.
func serve(ctx context.Context, srv *http.Server, cleanup func()) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		cleanup()
		return err
	})

	return g.Wait()
}

func shopLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.L().Warn("unknown timezone, using UTC", zap.String("timezone", name), zap.Error(err))
		return time.UTC
	}
	return loc
}
