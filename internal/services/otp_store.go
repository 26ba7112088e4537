package services

import (
	"context"
	"log"
	"time"

	"ChatRelay/server/internal/db"

	"github.com/Masterminds/squirrel"
)

// pgOtpStore keeps pending codes in the otp_codes table so a restart (or a
// second instance) does not orphan codes the way an in-process map would.
type pgOtpStore struct{}

func NewPgOtpStore() *pgOtpStore {
	return &pgOtpStore{}
}

func (s *pgOtpStore) Upsert(ctx context.Context, identity, code string, expiresAt time.Time) error {
	query := psql.
		Insert("otp_codes").
		Columns("identity", "code", "expires_at").
		Values(identity, code, expiresAt).
		Suffix("ON CONFLICT (identity) DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at, created_at = NOW()")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = db.Pool.Exec(ctx, sqlStr, args...)
	return err
}

func (s *pgOtpStore) Get(ctx context.Context, identity string) (string, time.Time, error) {
	query := psql.
		Select("code", "expires_at").
		From("otp_codes").
		Where(squirrel.Eq{"identity": identity})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return "", time.Time{}, err
	}

	var code string
	var expiresAt time.Time
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&code, &expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}

	return code, expiresAt, nil
}

func (s *pgOtpStore) Delete(ctx context.Context, identity string) error {
	query := psql.
		Delete("otp_codes").
		Where(squirrel.Eq{"identity": identity})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = db.Pool.Exec(ctx, sqlStr, args...)
	return err
}
