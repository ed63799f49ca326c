package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/types"
)

// SQLiteStore is a Store backed by database/sql over modernc.org/sqlite,
// used for single-process deployments and tests where a Postgres cluster
// is unavailable (spec.md §6).
type SQLiteStore struct {
	db      *sql.DB
	table   *types.Table
	ensured bool
}

// OpenSQLiteStore opens (or creates) a SQLite database file at path and
// returns a SQLiteStore for table.
func OpenSQLiteStore(path string, table *types.Table) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statestore: opening sqlite %s: %w", path, err)
	}
	return &SQLiteStore{db: db, table: table}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureTable(ctx context.Context) error {
	if s.ensured {
		return nil
	}

	var cols []string
	var pk []string
	for _, f := range s.table.Keys() {
		colType, err := sqlColumnType(f.Type)
		if err != nil {
			return err
		}
		cols = append(cols, fmt.Sprintf("%s %s NOT NULL", quoteIdent(f.Name), colType))
		pk = append(pk, quoteIdent(f.Name))
	}
	cols = append(cols, "date TEXT NOT NULL", "text TEXT NOT NULL")
	pk = append(pk, "date")

	ddl := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s, PRIMARY KEY (%s))",
		quoteIdent(s.table.Name()), strings.Join(cols, ", "), strings.Join(pk, ", "),
	)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("statestore: creating table %s: %w", s.table.Name(), err)
	}
	s.ensured = true
	return nil
}

func (s *SQLiteStore) keyColumns() []string {
	var out []string
	for _, f := range s.table.Keys() {
		out = append(out, f.Name)
	}
	return out
}

// Read implements Store.
func (s *SQLiteStore) Read(ctx context.Context, asOf time.Time, iv interval.Interval, keyValues []string) (Row, bool, error) {
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
		where = append(where, fmt.Sprintf("%s = ?", quoteIdent(k)))
		_ = i
	}
	args = append(args, dateKey(asOf))
	where = append(where, "date <= ?")

	query := fmt.Sprintf(
		"SELECT date, text FROM %s WHERE %s ORDER BY date DESC LIMIT 1",
		quoteIdent(s.table.Name()), strings.Join(where, " AND "),
	)

	row := s.db.QueryRowContext(ctx, query, args...)
	var dateStr, text string
	if err := row.Scan(&dateStr, &text); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Row{}, false, nil
		}
		return Row{}, false, fmt.Errorf("statestore: reading %s: %w", s.table.Name(), err)
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return Row{}, false, fmt.Errorf("statestore: parsing stored date %q: %w", dateStr, err)
	}
	if !iv.Match(date, asOf) {
		return Row{}, false, nil
	}
	return Row{Date: date, Text: text}, true, nil
}

// Write implements Store, upserting on (keys..., date) conflict.
func (s *SQLiteStore) Write(ctx context.Context, text string, asOf time.Time, keyValues []string) error {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}

	keys := s.keyColumns()
	if len(keys) != len(keyValues) {
		return fmt.Errorf("statestore: expected %d key values, got %d", len(keys), len(keyValues))
	}

	cols := append(append([]string(nil), keys...), "date", "text")
	quotedCols := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = quoteIdent(c)
	}
	placeholders := make([]string, len(cols))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	args := make([]any, 0, len(cols))
	for _, v := range keyValues {
		args = append(args, v)
	}
	args = append(args, dateKey(asOf), text)

	conflictCols := append(append([]string(nil), keys...), "date")
	for i := range conflictCols {
		conflictCols[i] = quoteIdent(conflictCols[i])
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET text = excluded.text",
		quoteIdent(s.table.Name()), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "), strings.Join(conflictCols, ", "),
	)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("statestore: writing %s: %w", s.table.Name(), err)
	}
	return nil
}

// GetDistinctKeys implements Store.
func (s *SQLiteStore) GetDistinctKeys(ctx context.Context, asOf time.Time, iv interval.Interval) (DistinctKeys, error) {
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
		"SELECT DISTINCT %s FROM %s WHERE date >= ? AND date <= ?",
		strings.Join(quoted, ", "), quoteIdent(s.table.Name()),
	)

	rows, err := s.db.QueryContext(ctx, query, dateKey(lower), dateKey(asOf))
	if err != nil {
		return DistinctKeys{}, fmt.Errorf("statestore: get_distinct_keys on %s: %w", s.table.Name(), err)
	}
	defer rows.Close()

	out := DistinctKeys{Columns: keys}
	for rows.Next() {
		scanTargets := make([]any, len(keys))
		scanPtrs := make([]any, len(keys))
		for i := range scanTargets {
			scanPtrs[i] = &scanTargets[i]
		}
		if err := rows.Scan(scanPtrs...); err != nil {
			return DistinctKeys{}, err
		}
		row := make([]string, len(keys))
		for i, v := range scanTargets {
			row[i] = fmt.Sprintf("%v", v)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, rows.Err()
}

// Purge implements Store's on_expire=purge maintenance policy.
func (s *SQLiteStore) Purge(ctx context.Context, asOf time.Time, expire interval.Interval) (int64, error) {
	if err := s.ensureTable(ctx); err != nil {
		return 0, err
	}

	cutoff := asOf.AddDate(0, 0, -int(expire.Days()))
	query := fmt.Sprintf("DELETE FROM %s WHERE date < ?", quoteIdent(s.table.Name()))
	res, err := s.db.ExecContext(ctx, query, dateKey(cutoff))
	if err != nil {
		return 0, fmt.Errorf("statestore: purging %s: %w", s.table.Name(), err)
	}
	return res.RowsAffected()
}
