package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sessionlab/booking-engine/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedBookings(context.Background(), pool, 500); err != nil {
		log.Fatalf("seed bookings: %v", err)
	}

	log.Println("seed complete")
}

func seedBookings(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d bookings", count)

	sessionTypes := []string{
		"intro-call-30",
		"portfolio-review-45",
		"pairing-session-60",
		"architecture-review-90",
		"career-chat-30",
	}
	prices := []int64{0, 4500, 7500, 12000, 15000}
	currencies := []string{"usd", "eur", "gbp"}

	const batchSize = 100

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			clientID := "client_" + gofakeit.LetterN(12)
			builderID := "builder_" + gofakeit.LetterN(12)
			idx := gofakeit.Number(0, len(sessionTypes)-1)

			_, err := tx.Exec(ctx, `
				INSERT INTO bookings (
					id, status, client_id, builder_id, session_type_id,
					price_minor, currency, version, created_at, updated_at
				)
				VALUES ($1, 'pending_scheduling', $2, $3, $4, $5, $6, 1, now(), now())
			`, id, clientID, builderID, sessionTypes[idx], prices[idx], currencies[gofakeit.Number(0, len(currencies)-1)])
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("bookings seeded: %d/%d", end, count)
	}

	log.Println("bookings seeded")
	return nil
}
