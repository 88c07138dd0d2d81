// reconcile-cli is the operator surface for manual reconciliation: replaying
// a specific webhook delivery past the duplicate short-circuit, and triaging
// the dead-letter queue.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sessionlab/booking-engine/internal/booking"
	"github.com/sessionlab/booking-engine/internal/config"
	"github.com/sessionlab/booking-engine/internal/correlate"
	"github.com/sessionlab/booking-engine/internal/db"
	"github.com/sessionlab/booking-engine/internal/ledger"
	"github.com/sessionlab/booking-engine/internal/provider/payment"
	"github.com/sessionlab/booking-engine/internal/provider/scheduling"
	"github.com/sessionlab/booking-engine/internal/reconcile"
	redisclient "github.com/sessionlab/booking-engine/internal/redis"
)

type app struct {
	coordinator *reconcile.Coordinator
	deadLetters correlate.DeadLetterStore
}

func main() {
	log.SetFlags(0)

	root := &cobra.Command{
		Use:           "reconcile-cli",
		Short:         "Manual reconciliation tools for the booking engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newReplayCommand())
	root.AddCommand(newDeadLetterCommand())

	if err := root.Execute(); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

// connect wires the same stack the api-server runs, minus the HTTP layer.
func connect(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		return nil, nil, err
	}

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	bookingRepo := booking.NewPgRepository(pool)
	ledgerRepo := ledger.NewPgRepository(pool)
	deadLetters := correlate.NewPgDeadLetterStore(pool)

	refundPolicy := reconcile.FullRefund
	if cfg.RefundPercent < 100 {
		refundPolicy = reconcile.PercentRefund(cfg.RefundPercent)
	}

	coordinator := reconcile.NewCoordinator(reconcile.Params{
		Bookings:     bookingRepo,
		Ledger:       ledgerRepo,
		Resolver:     correlate.NewResolver(bookingRepo),
		DeadLetters:  deadLetters,
		Payments:     payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey, cfg.ProviderTimeout),
		Scheduling:   scheduling.NewClient(cfg.SchedulingBaseURL, cfg.SchedulingAPIKey, cfg.ProviderTimeout),
		Claimer:      redisclient.NewRedisDeliveryClaimer(rdb, cfg.ClaimTTL),
		RefundPolicy: refundPolicy,
		PendingGrace: cfg.PendingGrace,
		MaxRetries:   cfg.MaxTransitionRetries,
	})

	cleanup := func() {
		pool.Close()
		_ = rdb.Close()
	}

	return &app{
		coordinator: coordinator,
		deadLetters: deadLetters,
	}, cleanup, nil
}
