package statestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/types"
)

// ConnAcquirer hands out a pooled connection, bounding how long the caller
// waits for one (spec.md §5: "acquire waits up to a caller-specified
// deadline for an available handle; exhaustion raises a typed error").
// Implementations map a deadline expiry to ErrPoolExhausted before
// returning. *ctx.PgPoolCache's Acquire method, bound to one dsn, is the
// concrete implementation the wiring layer supplies.
type ConnAcquirer interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// PostgresStore is a Store backed by a pooled ConnAcquirer, adapted from
// the teacher's PostgresDB/StateStore wrappers: raw parameterized SQL, no
// ORM, lazy per-table DDL. Every operation acquires its own connection and
// releases it immediately after, so a slow query never pins a connection
// across unrelated calls.
type PostgresStore struct {
	acquirer ConnAcquirer
	table    *types.Table
	ensured  bool
}

// NewPostgresStore returns a PostgresStore for table, acquiring
// connections through acquirer. The table's DDL is created lazily on
// first use, not at construction.
func NewPostgresStore(acquirer ConnAcquirer, table *types.Table) *PostgresStore {
	return &PostgresStore{acquirer: acquirer, table: table}
}

func (s *PostgresStore) ensureTable(ctx context.Context) error {
	if s.ensured {
		return nil
	}

	var cols []string
	var pk []string
	for _, f := range s.table.Keys() {
		colType, err := postgresColumnType(f.Type)
		if err != nil {
			return err
		}
		cols = append(cols, fmt.Sprintf("%s %s NOT NULL", quoteIdent(f.Name), colType))
		pk = append(pk, quoteIdent(f.Name))
	}
	cols = append(cols, "date DATE NOT NULL", "text TEXT NOT NULL")
	pk = append(pk, "date")

	ddl := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s, PRIMARY KEY (%s))",
		quoteIdent(s.table.Name()), strings.Join(cols, ", "), strings.Join(pk, ", "),
	)

	conn, err := s.acquirer.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("statestore: creating table %s: %w", s.table.Name(), err)
	}
	s.ensured = true
	return nil
}

func (s *PostgresStore) keyColumns() []string {
	var out []string
	for _, f := range s.table.Keys() {
		out = append(out, f.Name)
	}
	return out
}

// Read implements Store.
func (s *PostgresStore) Read(ctx context.Context, asOf time.Time, iv interval.Interval, keyValues []string) (Row, bool, error) {
	if err := s.ensureTable(ctx); err != nil {
		return Row{}, false, err
	}

	keys := s.keyColumns()
	if len(keys) != len(keyValues) {
		return Row{}, false, fmt.Errorf("statestore: expected %d key values, got %d", len(keys), len(keyValues))
	}

	var where []string
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		args = append(args, keyValues[i])
		where = append(where, fmt.Sprintf("%s = $%d", quoteIdent(k), len(args)))
	}
	args = append(args, dateKey(asOf))
	where = append(where, fmt.Sprintf("date <= $%d", len(args)))

	query := fmt.Sprintf(
		"SELECT date, text FROM %s WHERE %s ORDER BY date DESC LIMIT 1",
		quoteIdent(s.table.Name()), strings.Join(where, " AND "),
	)

	conn, err := s.acquirer.Acquire(ctx)
	if err != nil {
		return Row{}, false, err
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, query, args...)
	var date time.Time
	var text string
	if err := row.Scan(&date, &text); err != nil {
		if err == pgx.ErrNoRows {
			return Row{}, false, nil
		}
		return Row{}, false, fmt.Errorf("statestore: reading %s: %w", s.table.Name(), err)
	}

	if !iv.Match(date, asOf) {
		return Row{}, false, nil
	}
	return Row{Date: date, Text: text}, true, nil
}

// Write implements Store, upserting on (keys..., date) conflict.
func (s *PostgresStore) Write(ctx context.Context, text string, asOf time.Time, keyValues []string) error {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}

	keys := s.keyColumns()
	if len(keys) != len(keyValues) {
		return fmt.Errorf("statestore: expected %d key values, got %d", len(keys), len(keyValues))
	}

	cols := append(append([]string(nil), keys...), "date", "text")
	placeholders := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, v := range keyValues {
		args = append(args, v)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	args = append(args, dateKey(asOf), text)
	placeholders[len(keyValues)] = fmt.Sprintf("$%d", len(keyValues)+1)
	placeholders[len(keyValues)+1] = fmt.Sprintf("$%d", len(keyValues)+2)

	conflictCols := append(append([]string(nil), keys...), "date")
	for i := range conflictCols {
		conflictCols[i] = quoteIdent(conflictCols[i])
	}

	quotedCols := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = quoteIdent(c)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET text = EXCLUDED.text",
		quoteIdent(s.table.Name()), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "), strings.Join(conflictCols, ", "),
	)

	conn, err := s.acquirer.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("statestore: writing %s: %w", s.table.Name(), err)
	}
	return nil
}

// GetDistinctKeys implements Store.
func (s *PostgresStore) GetDistinctKeys(ctx context.Context, asOf time.Time, iv interval.Interval) (DistinctKeys, error) {
	if err := s.ensureTable(ctx); err != nil {
		return DistinctKeys{}, err
	}

	keys := s.keyColumns()
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = quoteIdent(k)
	}

	lower := asOf.AddDate(0, 0, -int(iv.Days()))
	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE date >= $1 AND date <= $2",
		strings.Join(quoted, ", "), quoteIdent(s.table.Name()),
	)

	conn, err := s.acquirer.Acquire(ctx)
	if err != nil {
		return DistinctKeys{}, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, dateKey(lower), dateKey(asOf))
	if err != nil {
		return DistinctKeys{}, fmt.Errorf("statestore: get_distinct_keys on %s: %w", s.table.Name(), err)
	}
	defer rows.Close()

	out := DistinctKeys{Columns: keys}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return DistinctKeys{}, err
		}
		row := make([]string, len(vals))
		for i, v := range vals {
			row[i] = fmt.Sprintf("%v", v)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, rows.Err()
}

// Purge implements Store's on_expire=purge maintenance policy: delete rows
// with date < asOf - expire.
func (s *PostgresStore) Purge(ctx context.Context, asOf time.Time, expire interval.Interval) (int64, error) {
	if err := s.ensureTable(ctx); err != nil {
		return 0, err
	}

	cutoff := asOf.AddDate(0, 0, -int(expire.Days()))
	query := fmt.Sprintf("DELETE FROM %s WHERE date < $1", quoteIdent(s.table.Name()))

	conn, err := s.acquirer.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, dateKey(cutoff))
	if err != nil {
		return 0, fmt.Errorf("statestore: purging %s: %w", s.table.Name(), err)
	}
	return tag.RowsAffected(), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// postgresColumnType maps a known type to its Postgres column type,
// diverging from sqlColumnType only on types.Blob: Postgres has no BLOB
// type (sqlite does), binary data is BYTEA.
func postgresColumnType(kt types.KnownType) (string, error) {
	if kt == types.Blob {
		return "BYTEA", nil
	}
	return sqlColumnType(kt)
}
