package middleware

import (
	"context"
	"net/http"
	"strings"
)

// Cookie names set at login.
const (
	AuthCookie     = "authenticated"
	UsernameCookie = "username"
)

// DefaultUsername owns uploads when no username was given at login.
const DefaultUsername = "guest"

type contextKey string

const usernameKey contextKey = "username"

// AuthMiddleware sprawdza, czy użytkownik jest zalogowany (ma cookie 'authenticated=true')
// i zapisuje jego nazwę w kontekście żądania.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		// Strona logowania jest dostępna bez uwierzytelnienia
		if r.URL.Path == "/login" || strings.HasPrefix(r.URL.Path, "/auth/") {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(AuthCookie)
		if err != nil || cookie.Value != "true" {
			// API zwraca 401, reszta przekierowuje na login
			if strings.HasPrefix(r.URL.Path, "/api/") ||
				r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		username := DefaultUsername
		if c, err := r.Cookie(UsernameCookie); err == nil && c.Value != "" {
			username = c.Value
		}

		next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
	})
}

// WithUsername returns a context carrying the logged-in username.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// Username returns the logged-in username stored by AuthMiddleware.
func Username(ctx context.Context) string {
	if v, ok := ctx.Value(usernameKey).(string); ok && v != "" {
		return v
	}
	return DefaultUsername
}
