// Package store implements row-level persistence for the transfer engine
// against PostgreSQL. It deliberately exposes rows as generic records
// rather than typed models: the export/import pipeline treats the schema
// as data, and the config graph decides which tables and columns matter.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/chatforge/realmsync/internal/domain"
)

// Store wraps a Postgres connection pool.
type Store struct{ db *sql.DB }

// New creates a store over an open connection pool.
func New(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying pool for advisory locks and transactions.
func (s *Store) DB() *sql.DB { return s.db }

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// checkIdent guards table/column names interpolated into SQL. All callers
// pass compile-time constants; this catches a config-graph typo early.
func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("store: invalid identifier %q", name)
	}
	return nil
}

// FetchAll returns every row of the table, ordered by id.
func (s *Store) FetchAll(ctx context.Context, table string) ([]domain.Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY id", table))
	if err != nil {
		return nil, fmt.Errorf("fetch all %s: %w", table, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// FetchByFK returns rows whose fkField is in ids, restricted by the
// literal filter args (ANDed equality), ordered by id.
func (s *Store) FetchByFK(ctx context.Context, table, fkField string, ids []int64, filter map[string]any) ([]domain.Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if err := checkIdent(fkField); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ANY($1)", table, fkField)
	args := []any{pq.Array(ids)}
	for _, col := range sortedKeys(filter) {
		if err := checkIdent(col); err != nil {
			return nil, err
		}
		args = append(args, filter[col])
		query += fmt.Sprintf(" AND %s = $%d", col, len(args))
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s by %s: %w", table, fkField, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// FetchByIDs returns rows whose primary key is in ids, ordered by id.
func (s *Store) FetchByIDs(ctx context.Context, table string, ids []int64) ([]domain.Record, error) {
	return s.FetchByFK(ctx, table, "id", ids, nil)
}

// FetchRealm returns the realm row, or ok=false if it does not exist.
func (s *Store) FetchRealm(ctx context.Context, realmID int64) (domain.Record, bool, error) {
	records, err := s.FetchByIDs(ctx, domain.TableRealm, []int64{realmID})
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records[0], true, nil
}

// RealmIDBySubdomain returns the realm ID registered under the subdomain,
// or ok=false if the subdomain is free.
func (s *Store) RealmIDBySubdomain(ctx context.Context, subdomain string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM zerver_realm WHERE string_id = $1", subdomain,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup subdomain %q: %w", subdomain, err)
	}
	return id, true, nil
}

// SystemBotByEmail returns the destination server's own row for a
// well-known cross-realm bot, or ok=false if the bot is not provisioned.
func (s *Store) SystemBotByEmail(ctx context.Context, email string) (domain.Record, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT * FROM zerver_userprofile WHERE email = $1 AND is_system_bot = true", email)
	if err != nil {
		return nil, false, fmt.Errorf("lookup system bot: %w", err)
	}
	defer rows.Close()
	records, err := scanRecords(rows)
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records[0], true, nil
}

// ActiveUsers returns is_active per user ID, read from the destination
// store. Import-side subscription state derives from this, not from the
// source export.
func (s *Store) ActiveUsers(ctx context.Context, userIDs []int64) (map[int64]bool, error) {
	if len(userIDs) == 0 {
		return map[int64]bool{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, is_active FROM zerver_userprofile WHERE id = ANY($1)", pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("fetch active users: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]bool, len(userIDs))
	for rows.Next() {
		var id int64
		var active bool
		if err := rows.Scan(&id, &active); err != nil {
			return nil, fmt.Errorf("scan active user: %w", err)
		}
		out[id] = active
	}
	return out, rows.Err()
}

// FirstMessageIDs returns, per recipient ID, the minimum message ID in the
// destination store. Used to recompute each stream's cached first message
// after message IDs have been remapped.
func (s *Store) FirstMessageIDs(ctx context.Context, recipientIDs []int64) (map[int64]int64, error) {
	if len(recipientIDs) == 0 {
		return map[int64]int64{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT recipient_id, MIN(id) FROM zerver_message WHERE recipient_id = ANY($1) GROUP BY recipient_id",
		pq.Array(recipientIDs))
	if err != nil {
		return nil, fmt.Errorf("fetch first message ids: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var rcpt, minID int64
		if err := rows.Scan(&rcpt, &minID); err != nil {
			return nil, fmt.Errorf("scan first message id: %w", err)
		}
		out[rcpt] = minID
	}
	return out, rows.Err()
}

// scanRecords converts a generic result set into records. Byte slices
// become strings and times stay as time.Time until the date-field pass
// converts them.
func scanRecords(rows *sql.Rows) ([]domain.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []domain.Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		r := make(domain.Record, len(cols))
		for i, col := range cols {
			r[col] = normalizeValue(vals[i])
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// joinIdents validates and joins column names for interpolation.
func joinIdents(cols []string) (string, error) {
	for _, c := range cols {
		if err := checkIdent(c); err != nil {
			return "", err
		}
	}
	return strings.Join(cols, ", "), nil
}
