package db

import (
	"context"
	"database/sql"
	"log"
	"time"

	"ChatRelay/server/migrations"

	"github.com/jackc/pgx/v4/pgxpool"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

var Pool *pgxpool.Pool

// InitDB connects the global pool and applies pending migrations. The
// connect is retried with exponential backoff so the server survives the
// database coming up a few seconds after it.
func InitDB(dsn string) {
	ctx := context.Background()

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		pool, err := pgxpool.Connect(ctx, dsn)
		if err != nil {
			log.Printf("Database not ready, retrying: %v", err)
			return retry.RetryableError(err)
		}
		Pool = pool
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := migrate(dsn); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database connected and migrated")
}

func migrate(dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(sqlDB, ".")
}
