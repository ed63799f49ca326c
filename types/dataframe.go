package types

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// DataFrame is the engine's typed tabular value: an ordered set of column
// names plus string-encoded rows. No dataframe or tabular-data library
// appears anywhere in the reference corpus this engine was built from, so
// this type is intentionally minimal and hand-rolled on encoding/csv and
// encoding/json rather than adapted from any example.
type DataFrame struct {
	Columns []string
	Rows    [][]string
}

// ToDict converts the frame to a column-name-keyed map of string slices,
// matching the "dataframe <-> dict" conversion matrix entry required by
// spec.md §4.2.
func (df DataFrame) ToDict() map[string][]string {
	out := make(map[string][]string, len(df.Columns))
	for ci, col := range df.Columns {
		values := make([]string, len(df.Rows))
		for ri, row := range df.Rows {
			if ci < len(row) {
				values[ri] = row[ci]
			}
		}
		out[col] = values
	}
	return out
}

// DataFrameFromDict reconstructs a DataFrame from the dict shape produced
// by ToDict. Column order is not guaranteed by a Go map, so callers that
// need stable column order should prefer the envelope/string paths.
func DataFrameFromDict(dict map[string][]string) DataFrame {
	cols := make([]string, 0, len(dict))
	maxLen := 0
	for col, values := range dict {
		cols = append(cols, col)
		if len(values) > maxLen {
			maxLen = len(values)
		}
	}
	rows := make([][]string, maxLen)
	for i := range rows {
		rows[i] = make([]string, len(cols))
		for ci, col := range cols {
			values := dict[col]
			if i < len(values) {
				rows[i][ci] = values[i]
			}
		}
	}
	return DataFrame{Columns: cols, Rows: rows}
}

// ToCSV renders the frame as CSV text, matching the "dataframe <-> str"
// conversion matrix entry.
func (df DataFrame) ToCSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(df.Columns); err != nil {
		return "", fmt.Errorf("types: encode dataframe: %w", err)
	}
	for _, row := range df.Rows {
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("types: encode dataframe row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("types: encode dataframe: %w", err)
	}
	return buf.String(), nil
}

// DataFrameFromCSV parses CSV text (first row as header) into a DataFrame.
func DataFrameFromCSV(text string) (DataFrame, error) {
	r := csv.NewReader(strings.NewReader(text))
	records, err := r.ReadAll()
	if err != nil {
		return DataFrame{}, fmt.Errorf("types: decode dataframe: %w", err)
	}
	if len(records) == 0 {
		return DataFrame{}, nil
	}
	return DataFrame{Columns: records[0], Rows: records[1:]}, nil
}
