package configstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/nucleus/harvest-core/pkg/harvest"
)

// PostgresStore keeps configurations in a versioned Postgres table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore connects to dsn and ensures the schema exists.
func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("CONFIG_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return NewPostgresStoreWithDB(db)
}

// NewPostgresStoreWithDB reuses an existing *sql.DB.
func NewPostgresStoreWithDB(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if err := ensureTable(db); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func ensureTable(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS harvester_configs (
  id bigserial PRIMARY KEY,
  version bigint NOT NULL DEFAULT 1,
  content jsonb NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now()
);
`
	_, err := db.Exec(ddl)
	return err
}

// Create inserts a new configuration at version 1.
func (s *PostgresStore) Create(ctx context.Context, content harvest.Content) (harvest.Config, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return harvest.Config{}, fmt.Errorf("marshal config content: %w", err)
	}
	cfg := harvest.Config{Content: content}
	err = s.db.QueryRowContext(ctx, `INSERT INTO harvester_configs (content, version) VALUES ($1, 1) RETURNING id, version`,
		data).Scan(&cfg.ID, &cfg.Version)
	if err != nil {
		return harvest.Config{}, err
	}
	return cfg, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (harvest.Config, error) {
	var data []byte
	cfg := harvest.Config{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT version, content FROM harvester_configs WHERE id=$1`, id).Scan(&cfg.Version, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return harvest.Config{}, fmt.Errorf("get config %d: %w", id, ErrNotFound)
		}
		return harvest.Config{}, err
	}
	if err := json.Unmarshal(data, &cfg.Content); err != nil {
		return harvest.Config{}, fmt.Errorf("decode config %d: %w", id, err)
	}
	return cfg, nil
}

func (s *PostgresStore) Update(ctx context.Context, cfg harvest.Config) (harvest.Config, error) {
	data, err := json.Marshal(cfg.Content)
	if err != nil {
		return harvest.Config{}, fmt.Errorf("marshal config content: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return harvest.Config{}, err
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM harvester_configs WHERE id=$1 FOR UPDATE`, cfg.ID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return harvest.Config{}, fmt.Errorf("update config %d: %w", cfg.ID, ErrNotFound)
		}
		return harvest.Config{}, err
	}
	if current != cfg.Version {
		return harvest.Config{}, fmt.Errorf("update config %d: %w: expected %d got %d", cfg.ID, ErrConflict, cfg.Version, current)
	}

	next := current + 1
	_, err = tx.ExecContext(ctx, `UPDATE harvester_configs SET content=$1, version=$2, updated_at=now() WHERE id=$3`,
		data, next, cfg.ID)
	if err != nil {
		return harvest.Config{}, err
	}
	if err := tx.Commit(); err != nil {
		return harvest.Config{}, err
	}
	cfg.Version = next
	return cfg, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]harvest.Config, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, version, content FROM harvester_configs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []harvest.Config
	for rows.Next() {
		var cfg harvest.Config
		var data []byte
		if err := rows.Scan(&cfg.ID, &cfg.Version, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &cfg.Content); err != nil {
			return nil, fmt.Errorf("decode config %d: %w", cfg.ID, err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
