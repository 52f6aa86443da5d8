package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/leaddesk/internal/core"
	"github.com/JonMunkholm/leaddesk/internal/table"
)

// sessionCookie identifies a browser's table state.
const sessionCookie = "leaddesk_session"

// session is one browser's filters, sorts, selection and page. It lives only
// in memory.
type session struct {
	mu       sync.Mutex
	engine   *table.Engine
	version  uint64 // dataset version the engine holds
	lastSeen time.Time
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	columns  []table.Column
	pageSize int
	now      func() time.Time
}

func newSessionStore(columns []table.Column, pageSize int, ttl time.Duration) *sessionStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &sessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		columns:  columns,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// lookup returns the session for id, creating a fresh one when id is
// unknown or expired. created reports whether a new id was issued.
func (st *sessionStore) lookup(id string) (sid string, sess *session, created bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	if s, ok := st.sessions[id]; ok && now.Sub(s.lastSeen) < st.ttl {
		s.lastSeen = now
		return id, s, false
	}

	sid = uuid.NewString()
	sess = &session{engine: table.New(st.columns, st.pageSize), lastSeen: now}
	st.sessions[sid] = sess
	return sid, sess, true
}

// sweep drops sessions idle for longer than the TTL.
func (st *sessionStore) sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	n := 0
	for id, s := range st.sessions {
		if now.Sub(s.lastSeen) >= st.ttl {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// run sweeps periodically until ctx is done.
func (st *sessionStore) run(ctx context.Context) {
	ticker := time.NewTicker(st.ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.sweep(); n > 0 {
				slog.Debug("expired table sessions", "count", n)
			}
		}
	}
}

// withTable runs fn on the caller's table engine while holding the session
// lock. The engine is re-synced first if the dataset changed since the
// session last looked.
func (s *Server) withTable(w http.ResponseWriter, r *http.Request, fn func(e *table.Engine) error) error {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	sid, sess, created := s.sessions.lookup(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sid,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	syncEngine(sess, s.service.Dataset())
	return fn(sess.engine)
}

func syncEngine(sess *session, ds core.Dataset) {
	if sess.version == ds.Version {
		return
	}
	sess.engine.Replace(ds.Records)
	sess.version = ds.Version
}
