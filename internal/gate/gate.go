// Package gate implements the dashboard's password screen.
//
// The gate is a UI convenience that hides the dashboard behind a shared
// password. It is not an access-control boundary: the password is shared,
// there are no users, and nothing server-side is authorized by it beyond
// showing the page. Put real authentication in front of the service if the
// data needs protecting.
package gate

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName holds the signed unlock token.
const CookieName = "leaddesk_unlocked"

const subject = "dashboard"

// ErrWrongPassword is returned by Unlock for a bad password.
var ErrWrongPassword = errors.New("wrong password")

// Gate issues and checks unlock cookies.
type Gate struct {
	password []byte
	secret   []byte
	ttl      time.Duration
	secure   bool
	now      func() time.Time
}

// New creates a gate. An empty password disables it.
func New(password, secret string, ttl time.Duration, secureCookie bool) *Gate {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Gate{
		password: []byte(password),
		secret:   []byte(secret),
		ttl:      ttl,
		secure:   secureCookie,
		now:      time.Now,
	}
}

// Enabled reports whether a password is configured.
func (g *Gate) Enabled() bool { return len(g.password) > 0 }

// Unlock checks the password and returns the cookie marking this browser
// unlocked.
func (g *Gate) Unlock(password string) (*http.Cookie, error) {
	if subtle.ConstantTimeCompare([]byte(password), g.password) != 1 {
		return nil, ErrWrongPassword
	}

	now := g.now()
	exp := now.Add(g.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return nil, fmt.Errorf("sign unlock token: %w", err)
	}

	return &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Unlocked reports whether r carries a valid unlock cookie. A disabled gate
// is always unlocked.
func (g *Gate) Unlocked(r *http.Request) bool {
	if !g.Enabled() {
		return true
	}
	c, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return g.valid(c.Value)
}

func (g *Gate) valid(tokenString string) bool {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return false
	}
	return claims.Subject == subject
}

// Lock returns a cookie that clears the unlock cookie.
func (g *Gate) Lock() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Require redirects requests from locked browsers to unlockPath. API
// requests get 401 instead of a redirect.
func (g *Gate) Require(unlockPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.Unlocked(r) {
				next.ServeHTTP(w, r)
				return
			}
			if r.Method == http.MethodGet && acceptsHTML(r) {
				http.Redirect(w, r, unlockPath, http.StatusSeeOther)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"dashboard is locked","code":"GATE001"}`))
		})
	}
}

func acceptsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return accept == "" || strings.Contains(strings.ToLower(accept), "text/html")
}
