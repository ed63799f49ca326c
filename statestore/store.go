// Package statestore implements the as-of-date state store (spec.md §4.4):
// upsert-on-conflict writes, point-in-time reads matching an interval, the
// distinct-key-tuple scan, and the Purge used by the cache-cleaning
// maintenance task.
package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/types"
)

// ErrPoolExhausted is surfaced when a backend's connection pool has no
// handle available within the caller's deadline (spec.md §5, §7).
var ErrPoolExhausted = errors.New("statestore: connection pool exhausted")

// DistinctKeys is the tabular result of GetDistinctKeys: the key-field
// names (in table order) as column headers, and one row per distinct key
// combination observed in the matched date range — reusing the table's
// own key-column names, matching the original implementation's behavior
// (see DESIGN.md's "Open questions resolved").
type DistinctKeys struct {
	Columns []string
	Rows    [][]string
}

// Row is one state-store row as read back from storage: the as-of date
// the row was written at, and the serialised value blob.
type Row struct {
	Date time.Time
	Text string
}

// Store is the as-of-date state store interface. Implementations create
// their backing table lazily on first use, derived from the table's
// argument fields plus (date: date, text: str), with primary key
// (keys..., date).
type Store interface {
	// Read fetches the latest row with matching key values and
	// date <= asOf, returning it (and true) iff iv.Match(row.Date, asOf)
	// holds.
	Read(ctx context.Context, asOf time.Time, iv interval.Interval, keyValues []string) (Row, bool, error)

	// Write upserts: insert a new row, or update text in place on a
	// uniqueness conflict on (keys..., date).
	Write(ctx context.Context, text string, asOf time.Time, keyValues []string) error

	// GetDistinctKeys returns the distinct key-field combinations whose
	// rows fall in [asOf - iv, asOf].
	GetDistinctKeys(ctx context.Context, asOf time.Time, iv interval.Interval) (DistinctKeys, error)

	// Purge removes rows with date < asOf - expire, implementing the
	// on_expire=purge maintenance policy (spec.md §4.4, §9).
	Purge(ctx context.Context, asOf time.Time, expire interval.Interval) (int64, error)
}

// sqlColumnType maps a known type to its backing engine's nearest native
// SQL type per spec.md §6: int,bool -> INTEGER; float -> REAL;
// str,date,datetime,path,interval -> TEXT; blob -> BLOB.
func sqlColumnType(kt types.KnownType) (string, error) {
	switch kt {
	case types.Int, types.Bool:
		return "INTEGER", nil
	case types.Float:
		return "REAL", nil
	case types.Str, types.Date, types.DateTime, types.PathType, types.Interval:
		return "TEXT", nil
	case types.Blob:
		return "BLOB", nil
	default:
		return "", fmt.Errorf("statestore: no SQL column type for %s", kt)
	}
}

func dateKey(asOf time.Time) string {
	return asOf.UTC().Format("2006-01-02")
}
