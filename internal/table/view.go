package table

import "strconv"

// ColumnView is the render state of one visible column.
type ColumnView struct {
	Column
	Filter   Filter       `json:"filter"`
	Filtered bool         `json:"filtered"`
	Sort     Direction    `json:"sort,omitempty"`
	SortRank int          `json:"sortRank,omitempty"` // 1-based position in the sort order, 0 when unsorted
	Facets   []FacetValue `json:"facets,omitempty"`
	Range    *MinMax      `json:"range,omitempty"`
}

// RowView is one row of the current page.
type RowView struct {
	ID       string            `json:"id"`
	Values   map[string]string `json:"values"`
	Selected bool              `json:"selected"`
}

// View is everything needed to render the table once.
type View struct {
	Columns         []ColumnView `json:"columns"`
	AllColumns      []Column     `json:"allColumns"`
	Hidden          []string     `json:"hidden,omitempty"`
	Rows            []RowView    `json:"rows"`
	PageIndex       int          `json:"pageIndex"`
	PageCount       int          `json:"pageCount"`
	PageSize        int          `json:"pageSize"`
	CanPrevious     bool         `json:"canPrevious"`
	CanNext         bool         `json:"canNext"`
	TotalRows       int          `json:"totalRows"`
	FilteredRows    int          `json:"filteredRows"`
	SelectedCount   int          `json:"selectedCount"`
	PageAllSelected bool         `json:"pageAllSelected"`
}

// View snapshots the engine for rendering. Facets are computed for every
// visible filterable column.
func (e *Engine) View() View {
	filtered := e.FilteredRows()
	v := View{
		AllColumns:    e.Columns(),
		PageIndex:     e.pageIndex,
		PageCount:     pageCount(len(filtered), e.pageSize),
		PageSize:      e.pageSize,
		CanPrevious:   e.CanPreviousPage(),
		CanNext:       e.CanNextPage(),
		TotalRows:     len(e.records),
		FilteredRows:  len(filtered),
		SelectedCount: len(e.selected),
	}

	rank := make(map[string]int, len(e.sorts))
	for i, s := range e.sorts {
		rank[s.Column] = i + 1
	}

	for _, c := range e.columns {
		if e.hidden[c.Key] {
			v.Hidden = append(v.Hidden, c.Key)
			continue
		}
		cv := ColumnView{Column: c}
		if f, ok := e.filters[c.Key]; ok {
			cv.Filter = f
			cv.Filtered = compile(c.Kind, f) != nil
		}
		if r := rank[c.Key]; r > 0 {
			cv.SortRank = r
			cv.Sort = e.sorts[r-1].Dir
		}
		switch {
		case c.Kind == KindCategorical:
			cv.Facets = e.FacetedValues(c.Key)
		case c.Kind.IsRange():
			if mm, ok := e.FacetedMinMax(c.Key); ok {
				cv.Range = &mm
			}
		}
		v.Columns = append(v.Columns, cv)
	}

	page := e.PageRows()
	v.Rows = make([]RowView, 0, len(page))
	allSelected := len(page) > 0
	for _, r := range page {
		sel := e.selected[r.ID]
		if !sel {
			allSelected = false
		}
		v.Rows = append(v.Rows, RowView{ID: r.ID, Values: r.Values(), Selected: sel})
	}
	v.PageAllSelected = allSelected
	return v
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
