package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stratum/pkg/platform/sentinel"
)

// PostgresStore persists entity layer mappings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the entity_layer_mapping table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS entity_layer_mapping (
			entity_id TEXT PRIMARY KEY,
			layer1_id TEXT NOT NULL REFERENCES layer_nodes(id),
			layer2_id TEXT NOT NULL REFERENCES layer_nodes(id),
			layer3_id TEXT NOT NULL REFERENCES layer_nodes(id),
			layer4_id TEXT NOT NULL REFERENCES layer_nodes(id),
			layer5_id TEXT NOT NULL REFERENCES layer_nodes(id),
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure entity_layer_mapping schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, info EntityLayerInfo) error {
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_layer_mapping (entity_id, layer1_id, layer2_id, layer3_id, layer4_id, layer5_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_id) DO UPDATE SET
			layer1_id = EXCLUDED.layer1_id,
			layer2_id = EXCLUDED.layer2_id,
			layer3_id = EXCLUDED.layer3_id,
			layer4_id = EXCLUDED.layer4_id,
			layer5_id = EXCLUDED.layer5_id,
			created_at = EXCLUDED.created_at
	`, info.EntityID, info.Layer1ID, info.Layer2ID, info.Layer3ID, info.Layer4ID, info.Layer5ID, info.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert entity layer mapping: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, entityID string) (*EntityLayerInfo, error) {
	var info EntityLayerInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT entity_id, layer1_id, layer2_id, layer3_id, layer4_id, layer5_id, created_at
		FROM entity_layer_mapping WHERE entity_id = $1
	`, entityID).Scan(&info.EntityID, &info.Layer1ID, &info.Layer2ID, &info.Layer3ID,
		&info.Layer4ID, &info.Layer5ID, &info.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get entity layer mapping: %w", err)
	}
	return &info, nil
}
