// Package holdings answers which agencies hold a bibliographic record.
package holdings

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTable is the holdings items table queried by PostgresStore.
const DefaultTable = "bibliographicitem"

// PostgresStore reads holdings from the holdings items database.
type PostgresStore struct {
	db    *pgxpool.Pool
	table string
}

// OpenPool connects to the holdings database.
func OpenPool(ctx context.Context, dsn string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse holdings dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect holdings database: %w", err)
	}
	return pool, nil
}

// NewPostgresStore creates a store reading from table, or DefaultTable when
// table is empty.
func NewPostgresStore(db *pgxpool.Pool, table string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{db: db, table: table}
}

// HasHoldings returns the agencies holding bibliographicRecordID. When
// agencies is non-empty only those agencies are considered.
func (s *PostgresStore) HasHoldings(ctx context.Context, bibliographicRecordID string, agencies []int) (map[int]struct{}, error) {
	where := []string{"bibliographicrecordid = $1"}
	args := []any{bibliographicRecordID}
	if len(agencies) > 0 {
		ids := make([]int32, len(agencies))
		for i, a := range agencies {
			ids[i] = int32(a)
		}
		where = append(where, "agencyid = ANY($2)")
		args = append(args, ids)
	}
	stmt := fmt.Sprintf(`SELECT DISTINCT agencyid FROM %s WHERE %s`,
		pgx.Identifier{s.table}.Sanitize(), strings.Join(where, " AND "))

	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query holdings for %s: %w", bibliographicRecordID, err)
	}
	defer rows.Close()

	out := make(map[int]struct{})
	for rows.Next() {
		var agency int32
		if err := rows.Scan(&agency); err != nil {
			return nil, fmt.Errorf("scan holdings row: %w", err)
		}
		out[int(agency)] = struct{}{}
	}
	return out, rows.Err()
}
