package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/chatforge/realmsync/internal/domain"
)

// insertBatchSize bounds the VALUES list of one bulk insert statement.
const insertBatchSize = 500

// AllocateIDs reserves n fresh primary keys from the table's sequence.
// The returned IDs are strictly increasing and never reused, so they can
// be handed to the ID remapper before any row is inserted.
func (s *Store) AllocateIDs(ctx context.Context, table string, n int) ([]int64, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT nextval('%s_id_seq') FROM generate_series(1, $1)", table), n)
	if err != nil {
		return nil, fmt.Errorf("allocate %d ids for %s: %w", n, table, err)
	}
	defer rows.Close()

	out := make([]int64, 0, n)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan allocated id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != n {
		return nil, fmt.Errorf("allocate ids for %s: wanted %d, got %d", table, n, len(out))
	}
	return out, nil
}

// BulkInsert writes records into the table in batches. Every record must
// carry the same field set; the column order is deterministic (sorted) so
// generated SQL is stable across runs.
func (s *Store) BulkInsert(ctx context.Context, table string, records []domain.Record) error {
	return bulkInsert(ctx, s.db, table, records)
}

// BulkInsertTx is BulkInsert inside an existing transaction.
func (s *Store) BulkInsertTx(ctx context.Context, tx *sql.Tx, table string, records []domain.Record) error {
	return bulkInsert(ctx, tx, table, records)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func bulkInsert(ctx context.Context, db execer, table string, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := checkIdent(table); err != nil {
		return err
	}

	cols := make([]string, 0, len(records[0]))
	for col := range records[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	colList, err := joinIdents(cols)
	if err != nil {
		return err
	}

	for start := 0; start < len(records); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		var (
			placeholders []string
			args         []any
		)
		for _, r := range batch {
			if len(r) != len(cols) {
				return fmt.Errorf("bulk insert %s: inconsistent field set (want %d fields, record has %d)",
					table, len(cols), len(r))
			}
			ph := make([]string, len(cols))
			for i, col := range cols {
				v, ok := r[col]
				if !ok {
					return fmt.Errorf("bulk insert %s: record missing field %q", table, col)
				}
				args = append(args, v)
				ph[i] = fmt.Sprintf("$%d", len(args))
			}
			placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			table, colList, strings.Join(placeholders, ", "))
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("bulk insert %s (%d rows): %w", table, len(batch), err)
		}
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on nil error.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SetColumn updates a single column on a single row.
func (s *Store) SetColumn(ctx context.Context, table, column string, id int64, value any) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	if err := checkIdent(column); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s = $1 WHERE id = $2", table, column), value, id)
	if err != nil {
		return fmt.Errorf("set %s.%s on id %d: %w", table, column, id, err)
	}
	return nil
}

// GetOrCreateClient deduplicates client registration rows by name. The
// client table is shared across realms, so imported rows are matched
// rather than blindly re-inserted.
func (s *Store) GetOrCreateClient(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO zerver_client (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get or create client %q: %w", name, err)
	}
	return id, nil
}
