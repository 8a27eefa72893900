package handlers

import (
	"net/http"
	"strings"
)

// StaticFiles serves stored originals and thumbnails from root under prefix.
// Directory listings are not exposed.
func StaticFiles(prefix, root string) http.Handler {
	fs := http.StripPrefix(strings.TrimRight(prefix, "/")+"/", http.FileServer(http.Dir(root)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fs.ServeHTTP(w, r)
	})
}
