package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// spaHandler serves a built single-page app from disk. Unknown paths get
// index.html so client-side routes survive a reload.
type spaHandler struct {
	root  string
	files http.Handler
	log   zerolog.Logger
}

func newSPAHandler(root string, log zerolog.Logger) *spaHandler {
	return &spaHandler{
		root:  root,
		files: http.FileServer(http.Dir(root)),
		log:   log.With().Str("component", "spa").Logger(),
	}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := path.Clean("/" + r.URL.Path)
	full := filepath.Join(h.root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))

	info, err := os.Stat(full)
	if err == nil && !info.IsDir() {
		if strings.HasPrefix(clean, "/assets/") {
			// Build output is content-hashed
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		h.files.ServeHTTP(w, r)
		return
	}

	index := filepath.Join(h.root, "index.html")
	if _, err := os.Stat(index); err != nil {
		h.log.Warn().Str("root", h.root).Msg("index.html not found in static directory")
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, index)
}
