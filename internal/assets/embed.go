// Package assets serves the embedded single-page chat UI.
// Files under web/ are compiled into the binary via go:embed and served with
// explicit content types and no-cache headers.
package assets

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

//go:embed all:web
var webFS embed.FS

// IndexFile is the UI entry point within the embedded tree.
const IndexFile = "index.html"

func init() {
	// Errors are ignored: these only fail if extension format is invalid,
	// and our literals are known-good.
	_ = mime.AddExtensionType(".map", "application/json")
}

// mimeFromExt returns the MIME type for a file extension.
// Falls back to the Go standard library's MIME type database,
// then to "application/octet-stream" if unknown.
func mimeFromExt(ext string) string {
	switch ext {
	case ".html":
		return "text/html; charset=utf-8"
	case ".js", ".mjs":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".map":
		return "application/json"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// FS returns the embedded UI tree rooted at web/.
func FS() fs.FS {
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		panic("assets: failed to create sub filesystem: " + err.Error())
	}
	return sub
}

// Index returns the UI entry page.
func Index() ([]byte, error) {
	return fs.ReadFile(FS(), IndexFile)
}

// FileServer returns an http.Handler that serves embedded UI files.
// The handler expects paths relative to the web root (strip /static/ before calling).
func FileServer() http.Handler {
	fileServer := http.FileServer(http.FS(FS()))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ext := strings.ToLower(path.Ext(r.URL.Path))
		if ext != "" {
			w.Header().Set("Content-Type", mimeFromExt(ext))
		}
		// The UI is tiny and unversioned; always revalidate
		w.Header().Set("Cache-Control", "no-cache")

		fileServer.ServeHTTP(w, r)
	})
}
