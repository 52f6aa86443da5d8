package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/JonMunkholm/leaddesk/internal/core"
	"github.com/JonMunkholm/leaddesk/internal/export"
	"github.com/JonMunkholm/leaddesk/internal/logging"
	"github.com/JonMunkholm/leaddesk/internal/table"
)

var errNoVisibleColumns = errors.New("bad request: every column is hidden")

// tableResponse is the body of every /api/table call.
type tableResponse struct {
	table.View
	Dataset datasetInfo `json:"dataset"`
}

type datasetInfo struct {
	Version   uint64            `json:"version"`
	FetchedAt *time.Time        `json:"fetchedAt,omitempty"`
	Error     *core.UserMessage `json:"error,omitempty"`
}

func newDatasetInfo(ds core.Dataset) datasetInfo {
	info := datasetInfo{Version: ds.Version}
	if !ds.FetchedAt.IsZero() {
		t := ds.FetchedAt
		info.FetchedAt = &t
	}
	if ds.Err != nil {
		msg := core.MapError(ds.Err)
		info.Error = &msg
	}
	return info
}

// mutateTable applies fn to the session's engine and responds with the new view.
func (s *Server) mutateTable(w http.ResponseWriter, r *http.Request, fn func(e *table.Engine) error) {
	var view table.View
	err := s.withTable(w, r, func(e *table.Engine) error {
		if err := fn(e); err != nil {
			return err
		}
		view = e.View()
		return nil
	})
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, tableResponse{View: view, Dataset: newDatasetInfo(s.service.Dataset())})
}

func (s *Server) handleTableView(w http.ResponseWriter, r *http.Request) {
	s.mutateTable(w, r, func(*table.Engine) error { return nil })
}

type filterRequest struct {
	Column string `json:"column"`
	Value  string `json:"value"`
	Min    string `json:"min"`
	Max    string `json:"max"`
}

// handleSetFilter sets or clears one column filter. An empty value and
// empty bounds clear it.
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.mutateTable(w, r, func(e *table.Engine) error {
		return e.SetFilter(req.Column, table.Filter{Value: req.Value, Min: req.Min, Max: req.Max})
	})
}

func (s *Server) handleToggleCategory(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.mutateTable(w, r, func(e *table.Engine) error {
		return e.ToggleCategory(req.Column, req.Value)
	})
}

func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	s.mutateTable(w, r, func(e *table.Engine) error {
		e.ClearFilters()
		return nil
	})
}

type sortRequest struct {
	Column string `json:"column"`
	Dir    string `json:"dir"` // asc, desc, or empty to remove the column from the order
}

// handleSort updates the sort order. No column clears all sorting.
func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.mutateTable(w, r, func(e *table.Engine) error {
		switch {
		case req.Column == "":
			e.ClearSort()
		case req.Dir == "":
			e.RemoveSort(req.Column)
		default:
			return e.SetSort(req.Column, table.ParseDirection(req.Dir))
		}
		return nil
	})
}

type columnRequest struct {
	Column  string `json:"column"`
	Visible bool   `json:"visible"`
}

func (s *Server) handleColumnVisibility(w http.ResponseWriter, r *http.Request) {
	var req columnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.mutateTable(w, r, func(e *table.Engine) error {
		return e.SetColumnVisibility(req.Column, req.Visible)
	})
}

type selectRequest struct {
	ID    string `json:"id"`
	Clear bool   `json:"clear"`
}

func (s *Server) handleSelectRow(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.mutateTable(w, r, func(e *table.Engine) error {
		if req.Clear {
			e.ClearSelection()
			return nil
		}
		return e.ToggleRowSelection(req.ID)
	})
}

func (s *Server) handleSelectPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Selected bool `json:"selected"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.mutateTable(w, r, func(e *table.Engine) error {
		e.ToggleAllOnPage(req.Selected)
		return nil
	})
}

func (s *Server) handleSetPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.mutateTable(w, r, func(e *table.Engine) error {
		e.SetPage(req.Index)
		return nil
	})
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	s.mutateTable(w, r, func(e *table.Engine) error {
		e.NextPage()
		return nil
	})
}

func (s *Server) handlePrevPage(w http.ResponseWriter, r *http.Request) {
	s.mutateTable(w, r, func(e *table.Engine) error {
		e.PreviousPage()
		return nil
	})
}

// handleRefresh refetches the sheet. Every session re-syncs on its next call.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if t := s.cfg.Sheets.FetchTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	if err := s.service.Refresh(ctx); err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.handleTableView(w, r)
}

// handleExportXLSX downloads the filtered, sorted rows in the visible columns.
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	var (
		cols []table.Column
		rows []table.Record
	)
	err := s.withTable(w, r, func(e *table.Engine) error {
		cols = e.VisibleColumns()
		if len(cols) == 0 {
			return errNoVisibleColumns
		}
		rows = e.SortedRows()
		return nil
	})
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.xlsx"`)
	if err := export.WriteXLSX(w, "Leads", cols, rows); err != nil {
		// Headers are gone; the client sees a truncated file.
		logging.FromContext(r.Context()).Error("xlsx export failed", "error", err)
	}
}
