package handler

import (
	"net/http"
	"strings"

	"detectionsite/internal/config"
	"detectionsite/internal/logger"
	"detectionsite/internal/middleware"
)

const cookieMaxAge = 2592000 // 30 days

const loginPage = `<!DOCTYPE html>
<html>
<head><title>Object detection - login</title></head>
<body>
<form method="post" action="/auth/login">
  <input name="username" placeholder="Username">
  <input name="password" type="password" placeholder="Password">
  <button type="submit">Log in</button>
</form>
</body>
</html>
`

// LoginPageHandler serves the login form.
func LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(loginPage))
}

// LoginHandler handles POST /auth/login by validating password and issuing
// the auth and username cookies.
func LoginHandler(config *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		password := r.FormValue("password")
		if password != config.Password {
			logger.Warning("Failed login attempt from %s", r.RemoteAddr)
			http.Error(w, "Invalid password", http.StatusUnauthorized)
			return
		}

		username := strings.TrimSpace(r.FormValue("username"))
		if username == "" {
			username = middleware.DefaultUsername
		}

		http.SetCookie(w, &http.Cookie{
			Name:     middleware.AuthCookie,
			Value:    "true",
			Path:     "/",
			MaxAge:   cookieMaxAge,
			HttpOnly: true,
		})
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.UsernameCookie,
			Value:    username,
			Path:     "/",
			MaxAge:   cookieMaxAge,
			HttpOnly: true,
		})

		logger.Info("User %s logged in", username)
		http.Redirect(w, r, "/api/feeds", http.StatusSeeOther)
	}
}

// LogoutHandler clears the authentication cookies and redirects to the login page.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{middleware.AuthCookie, middleware.UsernameCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:   name,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
