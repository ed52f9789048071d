package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
)

const (
	csrfTokenLength = 32
	csrfHeaderName  = "X-CSRF-Token"
	csrfCookieName  = "csrf_token"
)

// CSRFMiddleware adds double-submit CSRF protection for cookie-selected users.
// Safe methods hand out the csrf_token cookie; state-changing methods must
// echo it in X-CSRF-Token. Requests that pick their user with the
// X-Mock-User header carry no ambient credentials and are exempt, as are the
// /__mock/ harness endpoints.
func CSRFMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				if _, err := r.Cookie(csrfCookieName); err != nil {
					http.SetCookie(w, &http.Cookie{
						Name:     csrfCookieName,
						Value:    generateCSRFToken(),
						Path:     "/",
						HttpOnly: false, // the console reads it from JS
						Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
						SameSite: http.SameSiteLaxMode,
					})
				}
				next.ServeHTTP(w, r)
				return
			}

			if r.Header.Get(CurrentUserHeader) != "" || strings.HasPrefix(r.URL.Path, "/__mock/") {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(csrfCookieName)
			if err != nil {
				writeCSRFError(w, r, "csrf_token cookie required")
				return
			}
			headerToken := r.Header.Get(csrfHeaderName)
			if headerToken == "" || headerToken != cookie.Value {
				writeCSRFError(w, r, "X-CSRF-Token header must match csrf_token cookie")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeCSRFError(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusForbidden, apiError{
		ErrorCode: CodeForbidden,
		Message:   msg,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func generateCSRFToken() string {
	b := make([]byte, csrfTokenLength)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
