//go:build debug

package webui

import "net/http"

// MaxAge adds no caching headers so edits to the assets on disk show up on reload.
func MaxAge(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		h.ServeHTTP(w, r)
	})
}
