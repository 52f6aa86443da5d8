package table

import (
	"sort"
	"time"
)

// FacetValue is one distinct value of a column and how many rows carry it.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// MinMax is the range of a numeric or date column over the rows that pass
// every other filter. Min and Max are rendered back as strings: numbers in
// shortest form, dates as YYYY-MM-DD.
type MinMax struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// FacetedValues returns the distinct non-empty values of column across the
// rows passing every filter except the column's own, sorted by value.
// Excluding the column's own filter keeps every option of a categorical
// column visible while one of them is selected.
func (e *Engine) FacetedValues(column string) []FacetValue {
	if _, ok := e.colIndex[column]; !ok {
		return nil
	}

	counts := map[string]int{}
	for _, r := range e.rowsMatching(column) {
		v := r.Get(column)
		if v == "" {
			continue
		}
		counts[v]++
	}

	out := make([]FacetValue, 0, len(counts))
	for v, n := range counts {
		out = append(out, FacetValue{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// FacetedMinMax returns the smallest and largest parseable value of a
// number or date column across the rows passing every filter except the
// column's own. ok is false when no row has a parseable value.
func (e *Engine) FacetedMinMax(column string) (MinMax, bool) {
	c, found := e.Column(column)
	if !found {
		return MinMax{}, false
	}

	rows := e.rowsMatching(column)
	switch c.Kind {
	case KindNumber:
		var lo, hi float64
		seen := false
		for _, r := range rows {
			v, ok := ParseNumber(r.Get(column))
			if !ok {
				continue
			}
			if !seen || v < lo {
				lo = v
			}
			if !seen || v > hi {
				hi = v
			}
			seen = true
		}
		if !seen {
			return MinMax{}, false
		}
		return MinMax{Min: formatNumber(lo), Max: formatNumber(hi)}, true

	case KindDate:
		var lo, hi time.Time
		seen := false
		for _, r := range rows {
			v, ok := ParseDate(r.Get(column))
			if !ok {
				continue
			}
			if !seen || v.Before(lo) {
				lo = v
			}
			if !seen || v.After(hi) {
				hi = v
			}
			seen = true
		}
		if !seen {
			return MinMax{}, false
		}
		return MinMax{Min: lo.Format(time.DateOnly), Max: hi.Format(time.DateOnly)}, true
	}
	return MinMax{}, false
}
