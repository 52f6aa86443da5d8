package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/leaddesk/internal/core"
	"github.com/JonMunkholm/leaddesk/internal/gate"
	"github.com/JonMunkholm/leaddesk/internal/logging"
	"github.com/JonMunkholm/leaddesk/internal/table"
	"github.com/JonMunkholm/leaddesk/internal/web/templates"
)

// recentBatches is how many finished batches the dashboard lists.
const recentBatches = 20

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var view table.View
	err := s.withTable(w, r, func(e *table.Engine) error {
		view = e.View()
		return nil
	})
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	ds := s.service.Dataset()
	data := templates.DashboardData{
		View:        view,
		Version:     ds.Version,
		FetchedAt:   ds.FetchedAt,
		Batches:     s.service.ActiveBatches(),
		GateEnabled: s.gate.Enabled(),
	}
	if ds.Err != nil {
		msg := core.MapError(ds.Err)
		data.LoadError = &msg
	}

	hist, err := s.service.History(r.Context(), recentBatches)
	if err != nil {
		// The page is still useful without history.
		logging.FromContext(r.Context()).Warn("load batch history", "error", err)
	}
	data.Batches = append(data.Batches, hist...)

	s.render(w, r, http.StatusOK, templates.Dashboard(data))
}

type healthResponse struct {
	Status   string             `json:"status"`
	Dataset  datasetInfo        `json:"dataset"`
	Records  int                `json:"records"`
	Batches  core.LimiterStatus `json:"batches"`
	Sessions int                `json:"sessions"`
	Time     time.Time          `json:"time"`
}

// handleHealth reports "degraded" while the sheet has never loaded or the
// last refresh failed. It always answers 200 so the process is not restarted
// over a sheet outage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ds := s.service.Dataset()
	status := "ok"
	if !ds.Loaded() || ds.Err != nil {
		status = "degraded"
	}
	writeJSON(w, healthResponse{
		Status:   status,
		Dataset:  newDatasetInfo(ds),
		Records:  len(ds.Records),
		Batches:  s.service.Limiter().Status(),
		Sessions: s.sessions.len(),
		Time:     time.Now().UTC(),
	})
}

func (s *Server) handleUnlockPage(w http.ResponseWriter, r *http.Request) {
	if !s.gate.Enabled() || s.gate.Unlocked(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, templates.Unlock(false))
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	if !s.gate.Enabled() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	if err := r.ParseForm(); err != nil {
		respondError(w, r, &badRequestError{err: err}, 0)
		return
	}

	cookie, err := s.gate.Unlock(r.PostFormValue("password"))
	if errors.Is(err, gate.ErrWrongPassword) {
		logging.FromContext(r.Context()).Warn("wrong gate password", "ip", r.RemoteAddr)
		s.render(w, r, http.StatusUnauthorized, templates.Unlock(true))
		return
	}
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, cookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.gate.Lock())
	http.Redirect(w, r, "/unlock", http.StatusSeeOther)
}

// render writes an HTML component. Render errors after the header is sent
// can only be logged.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "error", err)
	}
}
