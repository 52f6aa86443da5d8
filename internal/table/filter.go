package table

import (
	"strings"
	"time"
)

// Filter is the value held for one column.
//
// Categorical and text columns read Value. Number and date columns read the
// [Min, Max] pair, which is always written together so both bounds change
// atomically. An empty bound is unbounded on that side.
type Filter struct {
	Value string `json:"value,omitempty"`
	Min   string `json:"min,omitempty"`
	Max   string `json:"max,omitempty"`
}

// Equals builds a categorical filter.
func Equals(v string) Filter { return Filter{Value: v} }

// Contains builds a free-text filter.
func Contains(v string) Filter { return Filter{Value: v} }

// Between builds a range filter. Either bound may be empty.
func Between(min, max string) Filter { return Filter{Min: min, Max: max} }

// IsZero reports whether the filter imposes nothing. Setting a zero filter
// removes the column's filter.
func (f Filter) IsZero() bool {
	return f.Value == "" && f.Min == "" && f.Max == ""
}

// forKind drops the fields a column of kind k does not read.
func (f Filter) forKind(k FilterKind) Filter {
	switch {
	case k.IsRange():
		return Filter{Min: f.Min, Max: f.Max}
	case k == KindCategorical, k == KindText:
		return Filter{Value: f.Value}
	default:
		return Filter{}
	}
}

// matcher reports whether one cell satisfies a column's filter.
type matcher func(cell string) bool

// compile turns a column's filter into a predicate. Each column kind
// interprets the filter value itself; fields the kind does not read are
// ignored. A nil result means the filter imposes no constraint.
func compile(kind FilterKind, f Filter) matcher {
	switch kind {
	case KindCategorical:
		if f.Value == "" {
			return nil
		}
		want := f.Value
		return func(cell string) bool { return cell == want }

	case KindText:
		if f.Value == "" {
			return nil
		}
		needle := strings.ToLower(f.Value)
		return func(cell string) bool {
			return strings.Contains(strings.ToLower(cell), needle)
		}

	case KindNumber:
		return numberRange(f)

	case KindDate:
		return dateRange(f)

	default:
		return nil
	}
}

// numberRange matches min <= v <= max. Bounds that do not parse as numbers
// are treated as absent.
func numberRange(f Filter) matcher {
	lo, hasLo := ParseNumber(f.Min)
	hi, hasHi := ParseNumber(f.Max)
	if !hasLo && !hasHi {
		return nil
	}
	return func(cell string) bool {
		v, ok := ParseNumber(cell)
		if !ok {
			return false
		}
		if hasLo && v < lo {
			return false
		}
		if hasHi && v > hi {
			return false
		}
		return true
	}
}

// dateRange matches min < v < max by calendar day. Both ends are exclusive:
// a row dated exactly on a bound is filtered out.
func dateRange(f Filter) matcher {
	lo, hasLo := ParseDate(f.Min)
	hi, hasHi := ParseDate(f.Max)
	if !hasLo && !hasHi {
		return nil
	}
	return func(cell string) bool {
		v, ok := ParseDate(cell)
		if !ok {
			return false
		}
		return inOpenInterval(v, lo, hasLo, hi, hasHi)
	}
}

func inOpenInterval(v, lo time.Time, hasLo bool, hi time.Time, hasHi bool) bool {
	if hasLo && !v.After(lo) {
		return false
	}
	if hasHi && !v.Before(hi) {
		return false
	}
	return true
}
