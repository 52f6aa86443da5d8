// Package table implements the in-memory view over the lead dataset:
// filtering, faceting, stable sorting, pagination, column visibility and
// row selection.
//
// The dataset is a flat slice of immutable [Record] values that is replaced
// wholesale on refresh. Everything shown to the user is derived from the
// current filter and sort state on demand; nothing derived is cached, so a
// facet list or page can never go stale after a filter change.
//
// An [Engine] is not safe for concurrent use. Callers that share one across
// goroutines must serialize access.
package table

// FilterKind selects the predicate a column applies to its filter value.
type FilterKind string

const (
	KindNone        FilterKind = "none"
	KindCategorical FilterKind = "categorical"
	KindNumber      FilterKind = "number"
	KindDate        FilterKind = "date"
	KindText        FilterKind = "text"
)

// Valid reports whether k is a known kind.
func (k FilterKind) Valid() bool {
	switch k {
	case KindNone, KindCategorical, KindNumber, KindDate, KindText:
		return true
	}
	return false
}

// IsRange reports whether the kind filters on a [min, max] pair.
func (k FilterKind) IsRange() bool {
	return k == KindNumber || k == KindDate
}

// Column describes one field of a record.
type Column struct {
	Key      string     `json:"key"`      // Field key, e.g. "budgetPerSeat"
	Label    string     `json:"label"`    // Header text, e.g. "Budget per Seat"
	Kind     FilterKind `json:"kind"`     // Filter predicate and sort comparator
	Hideable bool       `json:"hideable"` // Whether the user may hide the column
}

// Record is one spreadsheet row. Values are read-only once constructed.
type Record struct {
	ID     string
	values map[string]string
}

// NewRecord builds a record from a field map. The map is copied.
func NewRecord(id string, values map[string]string) Record {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Record{ID: id, values: cp}
}

// Get returns the value of field key, or "" when absent.
func (r Record) Get(key string) string {
	return r.values[key]
}

// Values returns a copy of all fields.
func (r Record) Values() map[string]string {
	cp := make(map[string]string, len(r.values))
	for k, v := range r.values {
		cp[k] = v
	}
	return cp
}
