package table

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultPageSize is used when New is given a non-positive page size.
const DefaultPageSize = 10

// ErrUnknownColumn is returned for operations on a column not in the schema.
var ErrUnknownColumn = errors.New("unknown column")

// ErrUnknownRow is returned when selecting an id that is not in the dataset.
var ErrUnknownRow = errors.New("unknown row")

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection maps "asc"/"desc" (any case) to a Direction. Anything else is Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return Desc
	}
	return Asc
}

// Sort is one key of the sort order.
type Sort struct {
	Column string    `json:"column"`
	Dir    Direction `json:"dir"`
}

// Engine holds the table state for one viewer.
type Engine struct {
	columns  []Column
	colIndex map[string]int
	pageSize int

	records []Record
	rowIdx  map[string]int

	filters   map[string]Filter
	sorts     []Sort
	hidden    map[string]bool
	selected  map[string]bool
	pageIndex int
}

// New creates an engine over the given columns with an empty dataset.
func New(columns []Column, pageSize int) *Engine {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	cols := make([]Column, len(columns))
	copy(cols, columns)

	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c.Key] = i
	}

	return &Engine{
		columns:  cols,
		colIndex: idx,
		pageSize: pageSize,
		rowIdx:   map[string]int{},
		filters:  map[string]Filter{},
		hidden:   map[string]bool{},
		selected: map[string]bool{},
	}
}

// Replace swaps in a new dataset. Filters, sorts and visibility are kept;
// selected ids that no longer exist are dropped and the page index is
// clamped into range.
func (e *Engine) Replace(records []Record) {
	e.records = make([]Record, len(records))
	copy(e.records, records)

	e.rowIdx = make(map[string]int, len(records))
	for i, r := range e.records {
		e.rowIdx[r.ID] = i
	}

	for id := range e.selected {
		if _, ok := e.rowIdx[id]; !ok {
			delete(e.selected, id)
		}
	}
	e.clampPage()
}

// Len returns the size of the whole dataset.
func (e *Engine) Len() int { return len(e.records) }

// PageSize returns the fixed page size.
func (e *Engine) PageSize() int { return e.pageSize }

// Columns returns every column in schema order.
func (e *Engine) Columns() []Column {
	out := make([]Column, len(e.columns))
	copy(out, e.columns)
	return out
}

// Column looks up a column by key.
func (e *Engine) Column(key string) (Column, bool) {
	i, ok := e.colIndex[key]
	if !ok {
		return Column{}, false
	}
	return e.columns[i], true
}

// ---------------------------------------------------------------------------
// Filters
// ---------------------------------------------------------------------------

// SetFilter replaces the filter for one column. Fields the column's kind does
// not read are dropped, and a filter left empty removes it.
func (e *Engine) SetFilter(column string, f Filter) error {
	i, ok := e.colIndex[column]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	f = f.forKind(e.columns[i].Kind)
	if f.IsZero() {
		delete(e.filters, column)
	} else {
		e.filters[column] = f
	}
	e.clampPage()
	return nil
}

// ToggleCategory selects value on a categorical column, or clears the
// filter when value is already the selected one.
func (e *Engine) ToggleCategory(column, value string) error {
	if cur, ok := e.filters[column]; ok && cur.Value == value {
		return e.SetFilter(column, Filter{})
	}
	return e.SetFilter(column, Equals(value))
}

// ClearFilters removes every filter.
func (e *Engine) ClearFilters() {
	e.filters = map[string]Filter{}
	e.clampPage()
}

// Filter returns the filter for one column.
func (e *Engine) Filter(column string) (Filter, bool) {
	f, ok := e.filters[column]
	return f, ok
}

// Filters returns a copy of all active filters.
func (e *Engine) Filters() map[string]Filter {
	out := make(map[string]Filter, len(e.filters))
	for k, v := range e.filters {
		out[k] = v
	}
	return out
}

// rowsMatching returns records satisfying every active filter except the
// one on column except (pass "" to apply all), in dataset order.
func (e *Engine) rowsMatching(except string) []Record {
	matchers := make(map[string]matcher, len(e.filters))
	for col, f := range e.filters {
		if col == except {
			continue
		}
		if m := compile(e.columns[e.colIndex[col]].Kind, f); m != nil {
			matchers[col] = m
		}
	}

	if len(matchers) == 0 {
		out := make([]Record, len(e.records))
		copy(out, e.records)
		return out
	}

	out := make([]Record, 0, len(e.records))
	for _, r := range e.records {
		ok := true
		for col, m := range matchers {
			if !m(r.Get(col)) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

// FilteredRows returns the records passing all filters, in dataset order.
func (e *Engine) FilteredRows() []Record {
	return e.rowsMatching("")
}

// ---------------------------------------------------------------------------
// Sorting
// ---------------------------------------------------------------------------

// SetSort sets the direction of column in the sort order, appending it as
// the lowest-priority key when not already present.
func (e *Engine) SetSort(column string, dir Direction) error {
	if _, ok := e.colIndex[column]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	if dir != Desc {
		dir = Asc
	}
	for i := range e.sorts {
		if e.sorts[i].Column == column {
			e.sorts[i].Dir = dir
			return nil
		}
	}
	e.sorts = append(e.sorts, Sort{Column: column, Dir: dir})
	return nil
}

// RemoveSort drops column from the sort order.
func (e *Engine) RemoveSort(column string) {
	out := e.sorts[:0]
	for _, s := range e.sorts {
		if s.Column != column {
			out = append(out, s)
		}
	}
	e.sorts = out
}

// ClearSort removes every sort key.
func (e *Engine) ClearSort() {
	e.sorts = nil
}

// Sorts returns a copy of the sort order.
func (e *Engine) Sorts() []Sort {
	out := make([]Sort, len(e.sorts))
	copy(out, e.sorts)
	return out
}

// SortedRows returns the filtered rows in sort order. The sort is stable:
// rows that compare equal on every key keep their dataset order.
func (e *Engine) SortedRows() []Record {
	rows := e.FilteredRows()
	if len(e.sorts) == 0 {
		return rows
	}

	keys := make([]Sort, len(e.sorts))
	copy(keys, e.sorts)
	kinds := make([]FilterKind, len(keys))
	for i, k := range keys {
		kinds[i] = e.columns[e.colIndex[k.Column]].Kind
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for k, key := range keys {
			c := compareCells(kinds[k], rows[i].Get(key.Column), rows[j].Get(key.Column), key.Dir)
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return rows
}

// compareCells orders two cells of one column. Cells that cannot be
// interpreted for the column's kind (including empty cells) sort after
// every valid cell in both directions.
func compareCells(kind FilterKind, a, b string, dir Direction) int {
	var c int
	var aok, bok bool

	switch kind {
	case KindNumber:
		av, ao := ParseNumber(a)
		bv, bo := ParseNumber(b)
		aok, bok = ao, bo
		switch {
		case av < bv:
			c = -1
		case av > bv:
			c = 1
		}
	case KindDate:
		av, ao := ParseDate(a)
		bv, bo := ParseDate(b)
		aok, bok = ao, bo
		c = av.Compare(bv)
	default:
		aok, bok = strings.TrimSpace(a) != "", strings.TrimSpace(b) != ""
		c = strings.Compare(strings.ToLower(a), strings.ToLower(b))
	}

	switch {
	case aok && !bok:
		return -1
	case !aok && bok:
		return 1
	case !aok && !bok:
		return 0
	}
	if dir == Desc {
		return -c
	}
	return c
}

// ---------------------------------------------------------------------------
// Column visibility
// ---------------------------------------------------------------------------

// SetColumnVisibility shows or hides a column. It only affects
// VisibleColumns; filters, sorts and facets ignore visibility.
func (e *Engine) SetColumnVisibility(column string, visible bool) error {
	c, ok := e.Column(column)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	if !c.Hideable && !visible {
		return fmt.Errorf("column %s cannot be hidden", column)
	}
	if visible {
		delete(e.hidden, column)
	} else {
		e.hidden[column] = true
	}
	return nil
}

// IsVisible reports whether a column is shown.
func (e *Engine) IsVisible(column string) bool {
	return !e.hidden[column]
}

// VisibleColumns returns the shown columns in schema order.
func (e *Engine) VisibleColumns() []Column {
	out := make([]Column, 0, len(e.columns))
	for _, c := range e.columns {
		if !e.hidden[c.Key] {
			out = append(out, c)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Pagination
// ---------------------------------------------------------------------------

// PageCount returns the number of pages of the filtered set, at least 1.
func (e *Engine) PageCount() int {
	return pageCount(len(e.FilteredRows()), e.pageSize)
}

func pageCount(n, size int) int {
	if n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

// PageIndex returns the zero-based current page.
func (e *Engine) PageIndex() int { return e.pageIndex }

// CanPreviousPage reports whether PreviousPage would move.
func (e *Engine) CanPreviousPage() bool { return e.pageIndex > 0 }

// CanNextPage reports whether NextPage would move.
func (e *Engine) CanNextPage() bool { return e.pageIndex+1 < e.PageCount() }

// NextPage advances one page. It is a no-op on the last page.
func (e *Engine) NextPage() bool {
	if !e.CanNextPage() {
		return false
	}
	e.pageIndex++
	return true
}

// PreviousPage goes back one page. It is a no-op on the first page.
func (e *Engine) PreviousPage() bool {
	if !e.CanPreviousPage() {
		return false
	}
	e.pageIndex--
	return true
}

// SetPage jumps to a zero-based page, clamped into range.
func (e *Engine) SetPage(index int) {
	e.pageIndex = index
	e.clampPage()
}

// clampPage pulls the page index back into range after the filtered set
// or the dataset changes size.
func (e *Engine) clampPage() {
	last := e.PageCount() - 1
	if e.pageIndex > last {
		e.pageIndex = last
	}
	if e.pageIndex < 0 {
		e.pageIndex = 0
	}
}

// PageRows returns the rows of the current page.
func (e *Engine) PageRows() []Record {
	return e.page(e.SortedRows())
}

func (e *Engine) page(rows []Record) []Record {
	start := e.pageIndex * e.pageSize
	if start >= len(rows) {
		return nil
	}
	end := start + e.pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// ---------------------------------------------------------------------------
// Selection
// ---------------------------------------------------------------------------

// ToggleRowSelection flips selection of one row. The row need not be visible.
func (e *Engine) ToggleRowSelection(id string) error {
	if _, ok := e.rowIdx[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRow, id)
	}
	if e.selected[id] {
		delete(e.selected, id)
	} else {
		e.selected[id] = true
	}
	return nil
}

// ToggleAllOnPage selects or deselects every row on the current page.
// Rows on other pages keep their state.
func (e *Engine) ToggleAllOnPage(selected bool) {
	for _, r := range e.PageRows() {
		if selected {
			e.selected[r.ID] = true
		} else {
			delete(e.selected, r.ID)
		}
	}
}

// ClearSelection deselects everything.
func (e *Engine) ClearSelection() {
	e.selected = map[string]bool{}
}

// IsSelected reports whether a row is selected.
func (e *Engine) IsSelected(id string) bool { return e.selected[id] }

// AllPageRowsSelected reports whether the page is non-empty and fully selected.
func (e *Engine) AllPageRowsSelected() bool {
	rows := e.PageRows()
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if !e.selected[r.ID] {
			return false
		}
	}
	return true
}

// SelectedCount returns the number of selected rows in the whole dataset.
func (e *Engine) SelectedCount() int { return len(e.selected) }

// SelectedRecords returns a snapshot of the selected rows in dataset order.
// The snapshot does not change when the selection changes later.
func (e *Engine) SelectedRecords() []Record {
	out := make([]Record, 0, len(e.selected))
	for _, r := range e.records {
		if e.selected[r.ID] {
			out = append(out, r)
		}
	}
	return out
}
