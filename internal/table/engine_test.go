package table

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

var testColumns = []Column{
	{Key: "name", Label: "Name", Kind: KindText},
	{Key: "city", Label: "City", Kind: KindCategorical, Hideable: true},
	{Key: "seats", Label: "Seats", Kind: KindNumber, Hideable: true},
	{Key: "date", Label: "Date", Kind: KindDate, Hideable: true},
	{Key: "number", Label: "Number", Kind: KindNone},
}

func rec(id, name, city, seats, date string) Record {
	return NewRecord(id, map[string]string{
		"name": name, "city": city, "seats": seats, "date": date, "number": "98" + id,
	})
}

func ids(rows []Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

// numbered builds n records with ids 1..n, cities alternating Pune/Delhi.
func numbered(n int) []Record {
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		city := "Pune"
		if i%2 == 1 {
			city = "Delhi"
		}
		out[i] = rec(fmt.Sprint(i+1), fmt.Sprintf("Lead %d", i+1), city, fmt.Sprint(i+1), "2024-01-10")
	}
	return out
}

func newEngine(records ...Record) *Engine {
	e := New(testColumns, 10)
	e.Replace(records)
	return e
}

func TestSetFilter_UnknownColumn(t *testing.T) {
	e := newEngine()
	err := e.SetFilter("missing", Equals("x"))
	if !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("SetFilter() error = %v, want ErrUnknownColumn", err)
	}
}

func TestFilter_NumberRangeInclusive(t *testing.T) {
	e := newEngine(
		rec("1", "a", "Pune", "9", ""),
		rec("2", "b", "Pune", "10", ""),
		rec("3", "c", "Pune", "15", ""),
		rec("4", "d", "Pune", "20", ""),
		rec("5", "e", "Pune", "21", ""),
		rec("6", "f", "Pune", "", ""),
	)
	if err := e.SetFilter("seats", Between("10", "20")); err != nil {
		t.Fatal(err)
	}
	got := ids(e.FilteredRows())
	want := []string{"2", "3", "4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilteredRows() = %v, want %v", got, want)
	}
}

func TestFilter_DateRangeExclusive(t *testing.T) {
	e := newEngine(
		rec("1", "a", "Pune", "", "2024-01-01"),
		rec("2", "b", "Pune", "", "2024-01-02"),
		rec("3", "c", "Pune", "", "2024-01-30"),
		rec("4", "d", "Pune", "", "2024-01-31"),
		rec("5", "e", "Pune", "", "not a date"),
	)
	if err := e.SetFilter("date", Between("2024-01-01", "2024-01-31")); err != nil {
		t.Fatal(err)
	}
	got := ids(e.FilteredRows())
	want := []string{"2", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilteredRows() = %v, want %v", got, want)
	}
}

func TestFilter_OneSidedRange(t *testing.T) {
	e := newEngine(
		rec("1", "a", "Pune", "5", ""),
		rec("2", "b", "Pune", "50", ""),
	)
	if err := e.SetFilter("seats", Between("10", "")); err != nil {
		t.Fatal(err)
	}
	if got := ids(e.FilteredRows()); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("FilteredRows() = %v, want [2]", got)
	}
}

func TestFilter_TextAndCategorical(t *testing.T) {
	e := newEngine(
		rec("1", "Acme Corp", "Pune", "", ""),
		rec("2", "Bolt", "pune", "", ""),
		rec("3", "acme labs", "Delhi", "", ""),
	)

	if err := e.SetFilter("name", Contains("ACME")); err != nil {
		t.Fatal(err)
	}
	if got := ids(e.FilteredRows()); !reflect.DeepEqual(got, []string{"1", "3"}) {
		t.Errorf("text filter = %v, want [1 3]", got)
	}

	if err := e.SetFilter("city", Equals("Pune")); err != nil {
		t.Fatal(err)
	}
	if got := ids(e.FilteredRows()); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("text+categorical filter = %v, want [1]", got)
	}
}

func TestFilter_AddingNeverGrows(t *testing.T) {
	e := newEngine(numbered(25)...)
	before := len(e.FilteredRows())

	steps := []struct {
		col string
		f   Filter
	}{
		{"city", Equals("Pune")},
		{"seats", Between("3", "")},
		{"name", Contains("1")},
	}
	for _, s := range steps {
		if err := e.SetFilter(s.col, s.f); err != nil {
			t.Fatal(err)
		}
		after := len(e.FilteredRows())
		if after > before {
			t.Errorf("filter on %s grew rows from %d to %d", s.col, before, after)
		}
		before = after
	}
}

func TestToggleCategory(t *testing.T) {
	e := newEngine(numbered(4)...)

	if err := e.ToggleCategory("city", "Pune"); err != nil {
		t.Fatal(err)
	}
	if f, ok := e.Filter("city"); !ok || f.Value != "Pune" {
		t.Fatalf("Filter(city) = %+v, %v, want Pune", f, ok)
	}

	if err := e.ToggleCategory("city", "Delhi"); err != nil {
		t.Fatal(err)
	}
	if f, _ := e.Filter("city"); f.Value != "Delhi" {
		t.Errorf("Filter(city) = %q, want Delhi", f.Value)
	}

	if err := e.ToggleCategory("city", "Delhi"); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Filter("city"); ok {
		t.Error("toggling the selected value should clear the filter")
	}
}

func TestSetFilter_EmptyRemoves(t *testing.T) {
	e := newEngine(numbered(4)...)
	_ = e.SetFilter("city", Equals("Pune"))
	_ = e.SetFilter("city", Filter{})
	if len(e.Filters()) != 0 {
		t.Errorf("Filters() = %v, want empty", e.Filters())
	}
	if len(e.FilteredRows()) != 4 {
		t.Errorf("FilteredRows() len = %d, want 4", len(e.FilteredRows()))
	}
}

func TestSetFilter_DropsFieldsOfOtherKinds(t *testing.T) {
	tests := []struct {
		name   string
		column string
		filter Filter
		want   Filter
		stored bool
	}{
		{"value on number column", "seats", Filter{Value: "5"}, Filter{}, false},
		{"value on date column", "date", Filter{Value: "2024-01-10"}, Filter{}, false},
		{"bounds on categorical column", "city", Filter{Value: "Pune", Min: "1"}, Equals("Pune"), true},
		{"anything on none column", "number", Filter{Value: "98"}, Filter{}, false},
		{"range keeps bounds only", "seats", Filter{Value: "x", Min: "2"}, Between("2", ""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(numbered(4)...)
			if err := e.SetFilter(tt.column, tt.filter); err != nil {
				t.Fatal(err)
			}
			got, ok := e.Filter(tt.column)
			if ok != tt.stored || got != tt.want {
				t.Errorf("Filter(%s) = %+v, %v, want %+v, %v", tt.column, got, ok, tt.want, tt.stored)
			}
		})
	}
}

func TestView_FilteredOnlyWhenConstraining(t *testing.T) {
	e := newEngine(numbered(4)...)
	_ = e.SetFilter("seats", Between("abc", ""))
	_ = e.SetFilter("city", Equals("Pune"))

	filtered := map[string]bool{}
	for _, c := range e.View().Columns {
		filtered[c.Key] = c.Filtered
	}
	if filtered["seats"] {
		t.Error("seats marked filtered with an unparsable bound")
	}
	if !filtered["city"] {
		t.Error("city not marked filtered")
	}
	if n := len(e.FilteredRows()); n != 2 {
		t.Errorf("FilteredRows() len = %d, want 2", n)
	}
}

func TestSort_StableAcrossEqualKeys(t *testing.T) {
	e := newEngine(
		rec("1", "a", "Pune", "5", ""),
		rec("2", "b", "Delhi", "5", ""),
		rec("3", "c", "Pune", "1", ""),
		rec("4", "d", "Delhi", "5", ""),
	)
	if err := e.SetSort("seats", Asc); err != nil {
		t.Fatal(err)
	}
	got := ids(e.SortedRows())
	want := []string{"3", "1", "2", "4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortedRows() asc = %v, want %v", got, want)
	}

	_ = e.SetSort("seats", Desc)
	got = ids(e.SortedRows())
	want = []string{"1", "2", "4", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortedRows() desc = %v, want %v", got, want)
	}
}

func TestSort_MultiKeyAndInvalidLast(t *testing.T) {
	e := newEngine(
		rec("1", "a", "Pune", "5", ""),
		rec("2", "b", "Delhi", "", ""),
		rec("3", "c", "Pune", "1", ""),
		rec("4", "d", "Delhi", "7", ""),
	)
	_ = e.SetSort("city", Asc)
	_ = e.SetSort("seats", Desc)

	got := ids(e.SortedRows())
	want := []string{"4", "2", "1", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortedRows() = %v, want %v", got, want)
	}

	if s := e.Sorts(); len(s) != 2 || s[0].Column != "city" || s[1].Column != "seats" {
		t.Errorf("Sorts() = %+v, want city then seats", s)
	}

	e.RemoveSort("city")
	if s := e.Sorts(); len(s) != 1 || s[0].Column != "seats" {
		t.Errorf("Sorts() after remove = %+v", s)
	}
}

func TestSort_Dates(t *testing.T) {
	e := newEngine(
		rec("1", "a", "", "", "03/01/2024"),
		rec("2", "b", "", "", "2024-01-15"),
		rec("3", "c", "", "", "Feb 1, 2024"),
	)
	_ = e.SetSort("date", Asc)
	got := ids(e.SortedRows())
	want := []string{"2", "3", "1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortedRows() = %v, want %v", got, want)
	}
}

func TestPagination(t *testing.T) {
	e := newEngine(numbered(25)...)

	if e.PageCount() != 3 {
		t.Fatalf("PageCount() = %d, want 3", e.PageCount())
	}
	if e.CanPreviousPage() {
		t.Error("CanPreviousPage() on first page = true")
	}
	if e.PreviousPage() {
		t.Error("PreviousPage() on first page should be a no-op")
	}

	e.NextPage()
	e.NextPage()
	if e.PageIndex() != 2 {
		t.Fatalf("PageIndex() = %d, want 2", e.PageIndex())
	}
	if got := len(e.PageRows()); got != 5 {
		t.Errorf("last page rows = %d, want 5", got)
	}
	if e.NextPage() {
		t.Error("NextPage() on last page should be a no-op")
	}
	if e.PageIndex() != 2 {
		t.Errorf("PageIndex() = %d after no-op, want 2", e.PageIndex())
	}
}

func TestPagination_ClampsAfterFilter(t *testing.T) {
	e := newEngine(numbered(25)...)
	e.SetPage(2)

	// Seats 21..25 survive.
	if err := e.SetFilter("seats", Between("21", "")); err != nil {
		t.Fatal(err)
	}
	if e.PageCount() != 1 {
		t.Errorf("PageCount() = %d, want 1", e.PageCount())
	}
	if e.PageIndex() != 0 {
		t.Errorf("PageIndex() = %d, want 0", e.PageIndex())
	}
	if got := len(e.PageRows()); got != 5 {
		t.Errorf("PageRows() len = %d, want 5", got)
	}
}

func TestPagination_EmptyHasOnePage(t *testing.T) {
	e := newEngine()
	if e.PageCount() != 1 {
		t.Errorf("PageCount() = %d, want 1", e.PageCount())
	}
	if e.CanNextPage() || e.CanPreviousPage() {
		t.Error("empty table should not page")
	}
	if rows := e.PageRows(); len(rows) != 0 {
		t.Errorf("PageRows() = %v, want empty", rows)
	}
}

func TestColumnVisibility(t *testing.T) {
	e := newEngine(numbered(3)...)

	if err := e.SetColumnVisibility("city", false); err != nil {
		t.Fatal(err)
	}
	for _, c := range e.VisibleColumns() {
		if c.Key == "city" {
			t.Error("hidden column still visible")
		}
	}

	// Filters on hidden columns still apply.
	_ = e.SetFilter("city", Equals("Pune"))
	if got := len(e.FilteredRows()); got != 2 {
		t.Errorf("FilteredRows() len = %d, want 2", got)
	}

	if err := e.SetColumnVisibility("name", false); err == nil {
		t.Error("hiding a non-hideable column should fail")
	}

	_ = e.SetColumnVisibility("city", true)
	if len(e.VisibleColumns()) != len(testColumns) {
		t.Errorf("VisibleColumns() len = %d, want %d", len(e.VisibleColumns()), len(testColumns))
	}
}

func TestSelection_ToggleAllOnPageOnly(t *testing.T) {
	e := newEngine(numbered(25)...)

	e.ToggleAllOnPage(true)
	if e.SelectedCount() != 10 {
		t.Fatalf("SelectedCount() = %d, want 10", e.SelectedCount())
	}
	if !e.AllPageRowsSelected() {
		t.Error("AllPageRowsSelected() = false after select-all")
	}

	e.NextPage()
	if e.AllPageRowsSelected() {
		t.Error("second page should not be selected")
	}
	if err := e.ToggleRowSelection("15"); err != nil {
		t.Fatal(err)
	}

	e.PreviousPage()
	e.ToggleAllOnPage(false)
	got := ids(e.SelectedRecords())
	if !reflect.DeepEqual(got, []string{"15"}) {
		t.Errorf("SelectedRecords() = %v, want [15]", got)
	}
}

func TestSelection_SurvivesFilterAndDatasetOrder(t *testing.T) {
	e := newEngine(numbered(6)...)
	for _, id := range []string{"5", "2", "3"} {
		if err := e.ToggleRowSelection(id); err != nil {
			t.Fatal(err)
		}
	}

	// Hide 2 and 5 from view; they stay selected.
	_ = e.SetFilter("city", Equals("Pune"))
	_ = e.SetSort("seats", Desc)

	got := ids(e.SelectedRecords())
	want := []string{"2", "3", "5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SelectedRecords() = %v, want %v", got, want)
	}

	if err := e.ToggleRowSelection("99"); !errors.Is(err, ErrUnknownRow) {
		t.Errorf("ToggleRowSelection(99) error = %v, want ErrUnknownRow", err)
	}
}

func TestSelection_SnapshotIndependent(t *testing.T) {
	e := newEngine(numbered(3)...)
	_ = e.ToggleRowSelection("1")
	snap := e.SelectedRecords()
	_ = e.ToggleRowSelection("2")
	e.ClearSelection()

	if len(snap) != 1 || snap[0].ID != "1" {
		t.Errorf("snapshot changed: %v", ids(snap))
	}
}

func TestReplace_PrunesSelectionAndClamps(t *testing.T) {
	e := newEngine(numbered(25)...)
	_ = e.ToggleRowSelection("3")
	_ = e.ToggleRowSelection("20")
	e.SetPage(2)
	_ = e.SetFilter("city", Equals("Pune"))

	e.Replace(numbered(5))

	if got := ids(e.SelectedRecords()); !reflect.DeepEqual(got, []string{"3"}) {
		t.Errorf("SelectedRecords() = %v, want [3]", got)
	}
	if e.PageIndex() != 0 {
		t.Errorf("PageIndex() = %d, want 0", e.PageIndex())
	}
	if _, ok := e.Filter("city"); !ok {
		t.Error("Replace should keep filters")
	}
}

func TestFacetedValues_ExcludesOwnFilter(t *testing.T) {
	e := newEngine(
		rec("1", "a", "Pune", "5", ""),
		rec("2", "b", "Delhi", "15", ""),
		rec("3", "c", "Pune", "25", ""),
		rec("4", "d", "", "35", ""),
	)

	_ = e.SetFilter("city", Equals("Pune"))
	got := e.FacetedValues("city")
	want := []FacetValue{{Value: "Delhi", Count: 1}, {Value: "Pune", Count: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FacetedValues(city) = %v, want %v", got, want)
	}

	// Another column's filter narrows the facets.
	_ = e.SetFilter("seats", Between("10", "30"))
	got = e.FacetedValues("city")
	want = []FacetValue{{Value: "Delhi", Count: 1}, {Value: "Pune", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FacetedValues(city) with seats filter = %v, want %v", got, want)
	}
}

func TestFacetedMinMax(t *testing.T) {
	e := newEngine(
		rec("1", "a", "Pune", "5", "2024-02-01"),
		rec("2", "b", "Delhi", "1,500", "2024-01-05"),
		rec("3", "c", "Pune", "n/a", "soon"),
	)

	mm, ok := e.FacetedMinMax("seats")
	if !ok || mm.Min != "5" || mm.Max != "1500" {
		t.Errorf("FacetedMinMax(seats) = %+v, %v, want 5..1500", mm, ok)
	}

	// Own filter is ignored.
	_ = e.SetFilter("seats", Between("100", ""))
	mm, _ = e.FacetedMinMax("seats")
	if mm.Min != "5" {
		t.Errorf("FacetedMinMax(seats).Min = %s, want 5", mm.Min)
	}

	mm, ok = e.FacetedMinMax("date")
	if !ok || mm.Min != "2024-01-05" || mm.Max != "2024-01-05" {
		t.Errorf("FacetedMinMax(date) = %+v, %v, want 2024-01-05 both ends", mm, ok)
	}

	if _, ok := e.FacetedMinMax("city"); ok {
		t.Error("FacetedMinMax on categorical column should report !ok")
	}
}

func TestView(t *testing.T) {
	e := newEngine(numbered(12)...)
	_ = e.SetColumnVisibility("date", false)
	_ = e.SetSort("seats", Desc)
	_ = e.ToggleRowSelection("12")

	v := e.View()
	if v.TotalRows != 12 || v.FilteredRows != 12 {
		t.Errorf("View rows = %d/%d, want 12/12", v.FilteredRows, v.TotalRows)
	}
	if v.PageCount != 2 || !v.CanNext || v.CanPrevious {
		t.Errorf("View paging = count %d next %v prev %v", v.PageCount, v.CanNext, v.CanPrevious)
	}
	if len(v.Rows) != 10 || v.Rows[0].ID != "12" || !v.Rows[0].Selected {
		t.Errorf("first row = %+v, want selected id 12", v.Rows[0])
	}
	if !reflect.DeepEqual(v.Hidden, []string{"date"}) {
		t.Errorf("Hidden = %v, want [date]", v.Hidden)
	}
	for _, c := range v.Columns {
		switch c.Key {
		case "seats":
			if c.Sort != Desc || c.SortRank != 1 || c.Range == nil {
				t.Errorf("seats column view = %+v", c)
			}
		case "city":
			if len(c.Facets) != 2 {
				t.Errorf("city facets = %v, want 2", c.Facets)
			}
		}
	}
}
