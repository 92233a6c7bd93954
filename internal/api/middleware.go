// Package api implements the Munchie collection REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireToken guards every route behind a shared bearer token. A nil-op
// middleware is returned when enabled is false.
//
// Browsers cannot set headers on an EventSource, so the token is also
// accepted from the access_token query parameter.
func RequireToken(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := presentedToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presentedToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		tok, found := strings.CutPrefix(h, "Bearer ")
		return tok, found && tok != ""
	}
	tok := r.URL.Query().Get("access_token")
	return tok, tok != ""
}
