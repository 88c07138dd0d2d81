package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/sessionlab/booking-engine/internal/config"
	"github.com/sessionlab/booking-engine/internal/db"
	"github.com/sessionlab/booking-engine/internal/ledger"
)

// The sweep releases webhook deliveries that crashed mid-processing: a row
// stuck in pending past the grace period flips to error, which lets the
// provider's next retry reprocess it from a clean slate.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("sweep-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running sweep worker in env=%s interval=%s grace=%s", cfg.Env, cfg.SweepInterval, cfg.PendingGrace)

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

	repo := ledger.NewPgRepository(pgPool)

	// Run once at startup
	runOnce(rootCtx, repo, cfg.PendingGrace)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping sweep worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, repo, cfg.PendingGrace)
		}
	}
}

func runOnce(ctx context.Context, repo ledger.Repository, grace time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := repo.SweepStuck(runCtx, time.Now().Add(-grace))
	if err != nil {
		log.Printf("sweep run error: %v", err)
		return
	}
	log.Printf("sweep run complete in %s, released=%d", time.Since(start), n)
}
