package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sessionlab/booking-engine/internal/api"
	"github.com/sessionlab/booking-engine/internal/booking"
	"github.com/sessionlab/booking-engine/internal/config"
	"github.com/sessionlab/booking-engine/internal/correlate"
	"github.com/sessionlab/booking-engine/internal/db"
	"github.com/sessionlab/booking-engine/internal/ledger"
	"github.com/sessionlab/booking-engine/internal/provider/payment"
	"github.com/sessionlab/booking-engine/internal/provider/scheduling"
	"github.com/sessionlab/booking-engine/internal/reconcile"
	redisclient "github.com/sessionlab/booking-engine/internal/redis"
	"github.com/sessionlab/booking-engine/internal/webhook"
)

const version = "0.3.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	bookingRepo := booking.NewPgRepository(pgPool)
	ledgerRepo := ledger.NewPgRepository(pgPool)
	deadLetters := correlate.NewPgDeadLetterStore(pgPool)
	resolver := correlate.NewResolver(bookingRepo)
	claimer := redisclient.NewRedisDeliveryClaimer(rdb, cfg.ClaimTTL)

	payments := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey, cfg.ProviderTimeout)
	schedClient := scheduling.NewClient(cfg.SchedulingBaseURL, cfg.SchedulingAPIKey, cfg.ProviderTimeout)

	refundPolicy := reconcile.FullRefund
	if cfg.RefundPercent < 100 {
		refundPolicy = reconcile.PercentRefund(cfg.RefundPercent)
	}

	coordinator := reconcile.NewCoordinator(reconcile.Params{
		Bookings:     bookingRepo,
		Ledger:       ledgerRepo,
		Resolver:     resolver,
		DeadLetters:  deadLetters,
		Payments:     payments,
		Scheduling:   schedClient,
		Claimer:      claimer,
		RefundPolicy: refundPolicy,
		PendingGrace: cfg.PendingGrace,
		MaxRetries:   cfg.MaxTransitionRetries,
	})

	bookingSvc := booking.NewService(bookingRepo, schedClient)

	router := api.NewRouter(api.RouterConfig{
		Bookings:           bookingSvc,
		Coordinator:        coordinator,
		SchedulingVerifier: webhook.NewVerifier(booking.ProviderScheduling, cfg.SchedulingWebhookSecrets, cfg.SignatureTolerance),
		PaymentVerifier:    webhook.NewVerifier(booking.ProviderPayment, cfg.PaymentWebhookSecrets, cfg.SignatureTolerance),
		PgPool:             pgPool,
		Redis:              rdb,
		Env:                cfg.Env,
		Version:            version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
