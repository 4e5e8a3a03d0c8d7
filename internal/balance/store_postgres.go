package balance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stratum/pkg/platform/sentinel"
)

// PostgresStore persists entity balances in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the entity_balances table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS entity_balances (
			entity_id TEXT PRIMARY KEY,
			balance NUMERIC(30, 8) NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'T',
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			kyc_level INTEGER NOT NULL DEFAULT 0,
			daily_limit NUMERIC(30, 8) NOT NULL DEFAULT 100,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure entity_balances schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, record EntityBalance) error {
	now := time.Now().UTC()
	if record.Currency == "" {
		record.Currency = "T"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_balances (entity_id, balance, currency, verified, kyc_level, daily_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (entity_id) DO UPDATE SET
			balance = EXCLUDED.balance,
			currency = EXCLUDED.currency,
			verified = EXCLUDED.verified,
			kyc_level = EXCLUDED.kyc_level,
			daily_limit = EXCLUDED.daily_limit,
			updated_at = EXCLUDED.updated_at
	`, record.EntityID, record.Balance, record.Currency, record.Verified, record.KYCLevel, record.DailyLimit, now)
	if err != nil {
		return fmt.Errorf("upsert entity balance: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, entityID string) (*EntityBalance, error) {
	record, err := scanBalance(s.db.QueryRowContext(ctx, `
		SELECT entity_id, balance, currency, verified, kyc_level, daily_limit, created_at, updated_at
		FROM entity_balances WHERE entity_id = $1
	`, entityID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get entity balance: %w", err)
	}
	return record, nil
}

// Adjust applies the delta with a single atomic UPDATE so concurrent
// completions cannot lose increments.
func (s *PostgresStore) Adjust(ctx context.Context, entityID string, delta decimal.Decimal) (*EntityBalance, error) {
	record, err := scanBalance(s.db.QueryRowContext(ctx, `
		UPDATE entity_balances
		SET balance = balance + $1, updated_at = $2
		WHERE entity_id = $3
		RETURNING entity_id, balance, currency, verified, kyc_level, daily_limit, created_at, updated_at
	`, delta, time.Now().UTC(), entityID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("adjust entity balance: %w", err)
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBalance(row rowScanner) (*EntityBalance, error) {
	var (
		record     EntityBalance
		bal, limit string
	)
	if err := row.Scan(&record.EntityID, &bal, &record.Currency, &record.Verified,
		&record.KYCLevel, &limit, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if record.Balance, err = decimal.NewFromString(bal); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	if record.DailyLimit, err = decimal.NewFromString(limit); err != nil {
		return nil, fmt.Errorf("parse daily limit: %w", err)
	}
	return &record, nil
}
