package middleware

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"authgate/internal/platform/logger"
	"authgate/internal/platform/metrics"
)

// StaticOptions configures the static file stage
type StaticOptions struct {
	Index   string // served for directory requests, default index.html
	Metrics *metrics.Metrics
}

// Static serves GET and HEAD requests for files found in fsys and halts the chain.
// Misses, other methods and dot-prefixed path segments fall through to next
func Static(fsys fs.FS, o StaticOptions) func(http.Handler) http.Handler {
	index := o.Index
	if index == "" {
		index = "index.html"
	}
	log := logger.Named("static")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fsys == nil || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
				next.ServeHTTP(w, r)
				return
			}

			name, ok := fsName(r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			fi, err := fs.Stat(fsys, name)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					log.Warn().Err(err).Str("path", name).Msg("static stat failed")
				}
				next.ServeHTTP(w, r)
				return
			}

			if fi.IsDir() {
				if !strings.HasSuffix(r.URL.Path, "/") {
					target := dirURL(name)
					if r.URL.RawQuery != "" {
						target += "?" + r.URL.RawQuery
					}
					o.Metrics.Halt("static", http.StatusMovedPermanently)
					http.Redirect(w, r, target, http.StatusMovedPermanently)
					return
				}
				name = path.Join(name, index)
				fi, err = fs.Stat(fsys, name)
				if err != nil || fi.IsDir() {
					next.ServeHTTP(w, r)
					return
				}
			}

			if r.Context().Err() != nil {
				return
			}
			if err := serveFile(w, r, fsys, name, fi); err != nil {
				log.Warn().Err(err).Str("path", name).Msg("static serve failed")
				next.ServeHTTP(w, r)
				return
			}
			o.Metrics.Halt("static", http.StatusOK)
		})
	}
}

// fsName maps a URL path to an fs.FS name, refusing dotfiles and traversal
func fsName(urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	for _, seg := range strings.Split(clean, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", false
		}
	}
	name := strings.TrimPrefix(clean, "/")
	if name == "" {
		name = "."
	}
	return name, fs.ValidPath(name)
}

// dirURL builds the slash-terminated redirect target from the cleaned name,
// so the Location is always a same-origin path
func dirURL(name string) string {
	if name == "." {
		return "/"
	}
	return "/" + name + "/"
}

func serveFile(w http.ResponseWriter, r *http.Request, fsys fs.FS, name string, fi fs.FileInfo) error {
	f, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	rs, ok := f.(io.ReadSeeker)
	if !ok {
		b, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		rs = bytes.NewReader(b)
	}
	w.Header().Set("Cache-Control", "public, max-age=0")
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), rs)
	return nil
}
