package gate

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123"

func TestUnlock(t *testing.T) {
	g := New("open-sesame", testSecret, time.Hour, false)

	if _, err := g.Unlock("wrong"); err != ErrWrongPassword {
		t.Errorf("Unlock(wrong) error = %v, want ErrWrongPassword", err)
	}

	c, err := g.Unlock("open-sesame")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if c.Name != CookieName || !c.HttpOnly || c.Value == "" {
		t.Errorf("cookie = %+v", c)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(c)
	if !g.Unlocked(r) {
		t.Error("Unlocked() = false with fresh cookie")
	}
}

func TestUnlocked_Rejects(t *testing.T) {
	g := New("pw", testSecret, time.Hour, false)
	c, err := g.Unlock("pw")
	if err != nil {
		t.Fatal(err)
	}

	other := New("pw", "another-secret-of-length", time.Hour, false)
	expired := New("pw", testSecret, time.Hour, false)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	tests := []struct {
		name   string
		gate   *Gate
		cookie *http.Cookie
	}{
		{"no cookie", g, nil},
		{"garbage", g, &http.Cookie{Name: CookieName, Value: "not.a.jwt"}},
		{"wrong secret", other, c},
		{"expired", expired, c},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				r.AddCookie(tt.cookie)
			}
			if tt.gate.Unlocked(r) {
				t.Error("Unlocked() = true, want false")
			}
		})
	}
}

func TestDisabledGateIsOpen(t *testing.T) {
	g := New("", "", 0, false)
	if g.Enabled() {
		t.Error("Enabled() = true with empty password")
	}
	if !g.Unlocked(httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Error("disabled gate should be unlocked")
	}
}

func TestRequire(t *testing.T) {
	g := New("pw", testSecret, time.Hour, false)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := g.Require("/unlock")(next)

	tests := []struct {
		name     string
		method   string
		accept   string
		unlocked bool
		want     int
	}{
		{"page redirects", http.MethodGet, "text/html,application/xhtml+xml", false, http.StatusSeeOther},
		{"api is 401", http.MethodGet, "application/json", false, http.StatusUnauthorized},
		{"post is 401", http.MethodPost, "text/html", false, http.StatusUnauthorized},
		{"unlocked passes", http.MethodGet, "text/html", true, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/", nil)
			r.Header.Set("Accept", tt.accept)
			if tt.unlocked {
				c, _ := g.Unlock("pw")
				r.AddCookie(c)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestLock(t *testing.T) {
	g := New("pw", testSecret, time.Hour, true)
	c := g.Lock()
	if c.MaxAge >= 0 || !c.Secure {
		t.Errorf("Lock() cookie = %+v", c)
	}
}
