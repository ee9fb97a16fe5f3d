package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// spaHandler serves the built web client. Paths that do not name a file
// fall back to index.html so client-side routes like /create and /swipe load.
type spaHandler struct {
	dir string
}

func newSPAHandler(dir string) spaHandler {
	return spaHandler{dir: dir}
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.dir == "" || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
		httpError(w, http.StatusNotFound, "not_found", "no route for %s %s", r.Method, r.URL.Path)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	name := filepath.Join(h.dir, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		http.ServeFile(w, r, name)
		return
	}

	index := filepath.Join(h.dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		httpError(w, http.StatusNotFound, "not_found", "no route for %s %s", r.Method, r.URL.Path)
		return
	}
	http.ServeFile(w, r, index)
}
