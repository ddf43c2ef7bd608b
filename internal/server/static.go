package server

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed ui
var embeddedUI embed.FS

const indexPage = "index.html"

// staticFS returns dir as a filesystem, or the embedded page when dir is
// empty.
func staticFS(dir string) (fs.FS, error) {
	if dir == "" {
		return fs.Sub(embeddedUI, "ui")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open static directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static path %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// handleStatic serves files from the static filesystem. Unknown paths get
// index.html so client-side routes resolve.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")

	if name != "" && name != indexPage {
		if info, err := fs.Stat(s.static, name); err == nil && !info.IsDir() {
			http.ServeFileFS(w, r, s.static, name)
			return
		}
	}

	data, err := fs.ReadFile(s.static, indexPage)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "failed to read index page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}
