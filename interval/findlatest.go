package interval

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FindLatest scans dir for files whose basename begins with an 8-digit
// YYYYMMDD date stamp and ends with suffix, and returns the path of the
// one with the greatest date <= asOf, provided that date still matches
// asOf under iv. Older files are not inspected once the first
// non-matching candidate is found, per spec.md §4.3.
func FindLatest(dir string, asOf time.Time, suffix string, iv Interval) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, err
	}

	type candidate struct {
		name string
		date time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, suffix) || len(name) < 8 {
			continue
		}
		stamp := name[:8]
		d, err := time.Parse("20060102", stamp)
		if err != nil {
			continue
		}
		if d.After(asOf) {
			continue
		}
		candidates = append(candidates, candidate{name: name, date: d})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].date.After(candidates[j].date)
	})

	if len(candidates) == 0 {
		return "", false, nil
	}

	best := candidates[0]
	if !iv.Match(best.date, asOf) {
		return "", false, nil
	}
	return filepath.Join(dir, best.name), true, nil
}
