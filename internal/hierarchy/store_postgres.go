package hierarchy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stratum/pkg/platform/sentinel"

	dErrors "stratum/pkg/domain-errors"
)

// PostgresStore persists layer nodes in PostgreSQL. This store is pure I/O;
// structural validation belongs to bootstrap and the registry service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed layer node store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the layer_nodes table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS layer_nodes (
			id TEXT PRIMARY KEY,
			level INTEGER NOT NULL,
			name TEXT NOT NULL,
			parent_id TEXT REFERENCES layer_nodes(id),
			balance NUMERIC(30, 8) NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'T',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure layer_nodes schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertNode(ctx context.Context, node Node) error {
	now := time.Now().UTC()
	if node.Currency == "" {
		node.Currency = DefaultCurrency
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO layer_nodes (id, level, name, parent_id, balance, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, node.ID, int(node.Level), node.Name, node.ParentID, node.Balance, node.Currency, now, now)
	if err != nil {
		return fmt.Errorf("insert layer node: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNode(ctx context.Context, id string) (*Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, level, name, parent_id, balance, currency, created_at, updated_at
		FROM layer_nodes WHERE id = $1
	`, id)
	node, err := scanNode(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get layer node: %w", err)
	}
	return node, nil
}

// ApplyDeltas applies the batch inside one database transaction. A delta
// addressed to a missing node aborts the transaction with no balance changes.
func (s *PostgresStore) ApplyDeltas(ctx context.Context, deltas []Delta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply deltas: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, d := range deltas {
		res, err := tx.ExecContext(ctx, `
			UPDATE layer_nodes SET balance = balance + $1, updated_at = $2 WHERE id = $3
		`, d.Amount, now, d.NodeID)
		if err != nil {
			return fmt.Errorf("apply delta to %s: %w", d.NodeID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("apply delta to %s: %w", d.NodeID, err)
		}
		if affected == 0 {
			return dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeInvariantViolation,
				"delta targets unknown node "+d.NodeID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply deltas: %w", err)
	}
	return nil
}

func (s *PostgresStore) NodesByLevel(ctx context.Context, level Level) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, level, name, parent_id, balance, currency, created_at, updated_at
		FROM layer_nodes WHERE level = $1 ORDER BY name
	`, int(level))
	if err != nil {
		return nil, fmt.Errorf("list nodes by level: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

func (s *PostgresStore) All(ctx context.Context) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, level, name, parent_id, balance, currency, created_at, updated_at
		FROM layer_nodes ORDER BY level DESC, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list all nodes: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	var (
		node     Node
		level    int
		parentID sql.NullString
		balance  string
	)
	if err := row.Scan(&node.ID, &level, &node.Name, &parentID, &balance,
		&node.Currency, &node.CreatedAt, &node.UpdatedAt); err != nil {
		return nil, err
	}
	node.Level = Level(level)
	if parentID.Valid {
		node.ParentID = &parentID.String
	}
	dec, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance for %s: %w", node.ID, err)
	}
	node.Balance = dec
	return &node, nil
}

func collectNodes(rows *sql.Rows) ([]Node, error) {
	var out []Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan layer node: %w", err)
		}
		out = append(out, *node)
	}
	return out, rows.Err()
}
