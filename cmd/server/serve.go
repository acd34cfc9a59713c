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

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"civicpulse/internal/config"
	"civicpulse/internal/db"
	"civicpulse/internal/identity"
	"civicpulse/internal/middleware"
	"civicpulse/internal/processor"
	"civicpulse/internal/router"
	"civicpulse/internal/services"
	"civicpulse/internal/store"
	"civicpulse/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("close store")
		}
	}()

	titles, err := services.TitlePolicyByName(cfg.TitleMatch)
	if err != nil {
		return err
	}
	proc, err := newProcessor(cfg, log)
	if err != nil {
		return err
	}
	limiter, err := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set, every bearer token will be rejected")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	router.RegisterRoutes(r, router.Deps{
		Store:       st,
		Processor:   proc,
		Verifier:    identity.NewHMACVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		TitlePolicy: titles,
		Checkout: services.CheckoutConfig{
			ClientDomain:   cfg.ClientDomain,
			Currency:       cfg.Currency,
			BoostPrice:     cfg.BoostPriceCents,
			SubscribePrice: cfg.SubscribePriceCents,
		},
		Limiter: limiter,
		Log:     log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("civicpulse server starting on :%s (store=%s)", cfg.Port, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore returns the configured store. Postgres is migrated on start.
func openStore(cfg *config.Config, log logrus.FieldLogger) (store.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using the in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil
	}
	conn, err := db.Open(cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn, log); err != nil {
		_ = db.Close(conn)
		return nil, err
	}
	return store.NewPostgresStore(conn), nil
}

// newProcessor wraps Stripe with a cache of completed sessions.
func newProcessor(cfg *config.Config, log logrus.FieldLogger) (processor.Processor, error) {
	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY is not set, checkout and confirmation will fail")
	}
	sessions, err := utils.NewCache[processor.Session](cfg.SessionCacheSize, cfg.SessionCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	return processor.NewCachingProcessor(processor.NewStripeProcessor(cfg.StripeSecretKey), sessions), nil
}
