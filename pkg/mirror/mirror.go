// Package mirror serves a directory laid out like a Maven repository over
// HTTP. It backs the "serve" command, which shares a local repository with
// other machines, and doubles as a fake remote repository in tests.
//
// SHA-1 checksum files that are not present on disk are computed on demand.
// In-flight downloads (".part") and lock files are never served. With an
// [Upstream], files missing from the directory are fetched on first request,
// which turns the mirror into a pull-through cache.
package mirror

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configure the handler returned by [New].
type Options struct {
	// Root is the repository directory.
	Root string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Upstream fetches files missing from Root. Nil serves Root only.
	Upstream Upstream
	Logger   *log.Logger
}

// Upstream fetches a repository file into the served directory and returns
// its local path. rel is slash-separated and relative to the repository
// root.
type Upstream interface {
	Fetch(ctx context.Context, rel string) (string, error)
}

// UpstreamFunc adapts a function to [Upstream].
type UpstreamFunc func(ctx context.Context, rel string) (string, error)

// Fetch calls f.
func (f UpstreamFunc) Fetch(ctx context.Context, rel string) (string, error) { return f(ctx, rel) }

type server struct {
	root     string
	upstream Upstream
	logger   *log.Logger
}

// New returns a handler serving opts.Root.
func New(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &server{root: opts.Root, upstream: opts.Upstream, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.Get("/*", s.serveFile)
	r.Head("/*", s.serveFile)
	return r
}

func (s *server) serveFile(w http.ResponseWriter, req *http.Request) {
	rel := path.Clean("/" + chi.URLParam(req, "*"))
	if hidden(rel) {
		http.NotFound(w, req)
		return
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))

	f, info, err := openRegular(full)
	if err == nil {
		defer f.Close()
		http.ServeContent(w, req, info.Name(), info.ModTime(), f)
		return
	}
	if strings.HasSuffix(rel, ".sha1") {
		base := strings.TrimSuffix(rel, ".sha1")
		if sum, err := checksum(s.local(req.Context(), base)); err == nil {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			io.WriteString(w, sum)
			return
		}
		http.NotFound(w, req)
		return
	}
	if s.upstream != nil {
		if f, info, err := openRegular(s.local(req.Context(), rel)); err == nil {
			defer f.Close()
			http.ServeContent(w, req, info.Name(), info.ModTime(), f)
			return
		}
	}
	http.NotFound(w, req)
}

// local returns the path of rel on disk, fetching it upstream when it is
// missing. The result may not exist.
func (s *server) local(ctx context.Context, rel string) string {
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if _, err := os.Stat(full); err == nil || s.upstream == nil {
		return full
	}
	p, err := s.upstream.Fetch(ctx, strings.TrimPrefix(rel, "/"))
	if err != nil {
		s.logger.Debug("upstream miss", "path", rel, "err", err)
		return full
	}
	return p
}

func hidden(rel string) bool {
	base := path.Base(rel)
	return strings.HasSuffix(base, ".lock") || strings.HasSuffix(base, ".part") || strings.HasPrefix(base, ".")
}

func openRegular(name string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, os.ErrNotExist
	}
	return f, info, nil
}

func checksum(name string) (string, error) {
	f, _, err := openRegular(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path,
				"status", ww.Status(), "bytes", ww.BytesWritten(), "duration", time.Since(start))
		})
	}
}
