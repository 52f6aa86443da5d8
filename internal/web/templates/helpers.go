// Package templates holds the dashboard's HTML components. The markup lives
// in the .templ files; run `templ generate` after editing them.
package templates

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/JonMunkholm/leaddesk/internal/core"
	"github.com/JonMunkholm/leaddesk/internal/table"
)

// DashboardData is everything the dashboard page shows.
type DashboardData struct {
	View        table.View
	Version     uint64
	FetchedAt   time.Time
	LoadError   *core.UserMessage
	Batches     []core.BatchStatus
	GateEnabled bool
}

func loadedLabel(d DashboardData) string {
	if d.Version == 0 {
		return "not loaded"
	}
	return fmt.Sprintf("%d rows, loaded %s", d.View.TotalRows, d.FetchedAt.Format("2006-01-02 15:04:05"))
}

// jsonAttr encodes a POST body for a data-body attribute. nil gives "".
func jsonAttr(body any) string {
	if body == nil {
		return ""
	}
	b, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return string(b)
}

func isHidden(v table.View, key string) bool {
	for _, k := range v.Hidden {
		if k == key {
			return true
		}
	}
	return false
}

// sortState is the label a column's sort button shows and the direction a
// click moves it to: none, asc, desc, none.
func sortState(c table.ColumnView) (label string, next table.Direction) {
	next, label = table.Asc, "↕"
	switch c.Sort {
	case table.Asc:
		next, label = table.Desc, "↑"
	case table.Desc:
		next, label = "", "↓"
	}
	if c.SortRank > 1 {
		label += strconv.Itoa(c.SortRank)
	}
	return label, next
}

func sortLabel(c table.ColumnView) string {
	label, _ := sortState(c)
	return label
}

func sortBody(c table.ColumnView) map[string]string {
	_, next := sortState(c)
	return map[string]string{"column": c.Key, "dir": string(next)}
}

func facetLabel(f table.FacetValue) string {
	return fmt.Sprintf("%s (%d)", f.Value, f.Count)
}

type rangeBound struct {
	Type        string
	Name        string
	Value       string
	Placeholder string
}

func rangeBounds(c table.ColumnView) []rangeBound {
	typ := "number"
	if c.Kind == table.KindDate {
		typ = "date"
	}
	var lo, hi string
	if c.Range != nil {
		lo, hi = c.Range.Min, c.Range.Max
	}
	return []rangeBound{
		{Type: typ, Name: "min", Value: c.Filter.Min, Placeholder: "min " + lo},
		{Type: typ, Name: "max", Value: c.Filter.Max, Placeholder: "max " + hi},
	}
}

func countsLabel(v table.View) string {
	return fmt.Sprintf("%d of %d rows match, %d selected", v.FilteredRows, v.TotalRows, v.SelectedCount)
}

func sentLabel(b core.BatchStatus) string {
	return fmt.Sprintf("%d/%d", b.Progress.Attempted, b.Targets)
}

func reportURL(id string) string {
	return "/api/batches/" + id + "/errors.json"
}
