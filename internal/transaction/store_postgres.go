package transaction

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"stratum/internal/ledger"
	"stratum/internal/validator"
	"stratum/pkg/platform/sentinel"
)

// PostgresStore persists transactions in PostgreSQL. Verification and
// validation snapshots are serialized to JSONB only at this boundary; the
// rest of the system passes them around as typed structs.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the transactions table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			requester_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount NUMERIC(30, 8) NOT NULL,
			currency TEXT NOT NULL DEFAULT 'T',
			status TEXT NOT NULL,
			from_entity_id TEXT NOT NULL,
			to_entity_id TEXT,
			description TEXT,
			failure_reason TEXT,
			layer_verification JSONB,
			validation_result JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			verified_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure transactions schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS transactions_requester_created_idx
		ON transactions (requester_id, created_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("ensure transactions index: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, tx *Transaction) error {
	verification, validation, err := marshalSnapshots(tx)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, requester_id, type, amount, currency, status,
			from_entity_id, to_entity_id, description, failure_reason,
			layer_verification, validation_result,
			created_at, updated_at, verified_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, tx.ID, tx.RequesterID, string(tx.Type), tx.Amount, tx.Currency, string(tx.Status),
		tx.FromEntityID, nullString(tx.ToEntityID), nullString(tx.Description), nullString(tx.FailureReason),
		verification, validation, tx.CreatedAt, tx.UpdatedAt, tx.VerifiedAt, tx.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, requesterID, id string) (*Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, selectColumns+`
		WHERE id = $1 AND requester_id = $2
	`, id, requesterID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (s *PostgresStore) Update(ctx context.Context, tx *Transaction) error {
	verification, validation, err := marshalSnapshots(tx)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET
			status = $1, failure_reason = $2,
			layer_verification = $3, validation_result = $4,
			updated_at = $5, verified_at = $6, completed_at = $7
		WHERE id = $8 AND requester_id = $9
	`, string(tx.Status), nullString(tx.FailureReason), verification, validation,
		tx.UpdatedAt, tx.VerifiedAt, tx.CompletedAt, tx.ID, tx.RequesterID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, requesterID string, filter Filter) ([]Transaction, error) {
	query := selectColumns + ` WHERE requester_id = $1`
	args := []any{requesterID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += ` AND type = $` + strconv.Itoa(len(args))
	}
	if filter.FromDate != nil {
		args = append(args, *filter.FromDate)
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if filter.ToDate != nil {
		args = append(args, *filter.ToDate)
		query += ` AND created_at <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context, requesterID string) (*Stats, error) {
	var (
		stats           Stats
		completedAmount string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COUNT(*) FILTER (WHERE status = 'APPROVAL_REQUIRED'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'COMPLETED'), 0)
		FROM transactions WHERE requester_id = $1
	`, requesterID).Scan(&stats.Total, &stats.Pending, &stats.Completed,
		&stats.Failed, &stats.ApprovalRequired, &completedAmount)
	if err != nil {
		return nil, fmt.Errorf("transaction stats: %w", err)
	}
	stats.CompletedAmount, err = decimal.NewFromString(completedAmount)
	if err != nil {
		return nil, fmt.Errorf("parse completed amount: %w", err)
	}
	return &stats, nil
}

const selectColumns = `
	SELECT id, requester_id, type, amount, currency, status,
		from_entity_id, to_entity_id, description, failure_reason,
		layer_verification, validation_result,
		created_at, updated_at, verified_at, completed_at
	FROM transactions
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var (
		tx                       Transaction
		txType, status, amount   string
		toEntity, desc, reason   sql.NullString
		verification, validation []byte
		verifiedAt, completedAt  sql.NullTime
	)
	if err := row.Scan(&tx.ID, &tx.RequesterID, &txType, &amount, &tx.Currency, &status,
		&tx.FromEntityID, &toEntity, &desc, &reason,
		&verification, &validation,
		&tx.CreatedAt, &tx.UpdatedAt, &verifiedAt, &completedAt); err != nil {
		return nil, err
	}
	tx.Type = Type(txType)
	tx.Status = Status(status)
	tx.ToEntityID = toEntity.String
	tx.Description = desc.String
	tx.FailureReason = reason.String

	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if len(verification) > 0 {
		tx.LayerVerification = &ledger.VerificationResult{}
		if err := json.Unmarshal(verification, tx.LayerVerification); err != nil {
			return nil, fmt.Errorf("decode layer verification snapshot: %w", err)
		}
	}
	if len(validation) > 0 {
		tx.ValidationResult = &validator.Result{}
		if err := json.Unmarshal(validation, tx.ValidationResult); err != nil {
			return nil, fmt.Errorf("decode validation snapshot: %w", err)
		}
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		tx.VerifiedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		tx.CompletedAt = &t
	}
	return &tx, nil
}

func marshalSnapshots(tx *Transaction) ([]byte, []byte, error) {
	var verification, validation []byte
	var err error
	if tx.LayerVerification != nil {
		if verification, err = json.Marshal(tx.LayerVerification); err != nil {
			return nil, nil, fmt.Errorf("encode layer verification snapshot: %w", err)
		}
	}
	if tx.ValidationResult != nil {
		if validation, err = json.Marshal(tx.ValidationResult); err != nil {
			return nil, nil, fmt.Errorf("encode validation snapshot: %w", err)
		}
	}
	return verification, validation, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
