// Package localrepo manages the on-disk artifact cache laid out like a Maven
// local repository:
//
//	<root>/<group/as/path>/<artifactId>/<version>/<artifactId>-<version>[-<classifier>].<type>
//
// Fetches are serialized per artifact: within a process through a
// singleflight group, across processes through an advisory lock on
// "<file>.lock". Files are written to a temporary name and renamed into
// place, so readers never see partial artifacts.
package localrepo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	cperrors "github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/maven"
	"github.com/matzehuels/classpath/pkg/maven/version"
	"github.com/matzehuels/classpath/pkg/repository"
	"github.com/matzehuels/classpath/pkg/transport"
)

// Source downloads artifacts from remote repositories.
type Source interface {
	// RemotePath returns the path of c below repo's root. For snapshots this
	// may be a timestamped file name.
	RemotePath(ctx context.Context, repo repository.Repository, c maven.Coordinate) (string, error)
	// Download writes the file at path to dst.
	Download(ctx context.Context, repo repository.Repository, path string, policy repository.ChecksumPolicy, dst string) (int64, error)
}

// Options configure a [Repo].
type Options struct {
	// Root is the repository directory. Empty means Home.
	Root string
	// Home is the fallback when Root cannot be created. Empty means
	// DefaultHome().
	Home string
	// ForceRefresh re-fetches snapshot artifacts once per process.
	ForceRefresh bool
}

// Repo is a local artifact repository. It is safe for concurrent use.
type Repo struct {
	opts   Options
	logger *log.Logger

	mu      sync.Mutex
	root    string
	created bool

	group     singleflight.Group
	refreshed sync.Map
}

// DefaultHome returns ~/.m2/repository.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".m2", "repository")
	}
	return filepath.Join(home, ".m2", "repository")
}

// New creates a Repo. The root directory is not touched until the first
// write.
func New(opts Options, logger *log.Logger) *Repo {
	if logger == nil {
		logger = log.Default()
	}
	if opts.Home == "" {
		opts.Home = DefaultHome()
	}
	root := opts.Root
	if root == "" {
		root = opts.Home
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Repo{opts: opts, logger: logger, root: root}
}

// Root returns the repository directory currently in use.
func (r *Repo) Root() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root
}

// RelPath returns the slash-separated location of c relative to a
// repository root.
func RelPath(c maven.Coordinate) string {
	return path.Join(strings.ReplaceAll(c.GroupID, ".", "/"), c.ArtifactID, c.Version, c.FileName())
}

// ParsePath is the inverse of [RelPath]: it reads the coordinate of an
// artifact from its slash-separated location.
func ParsePath(rel string) (maven.Coordinate, error) {
	segs := strings.Split(strings.Trim(path.Clean("/"+rel), "/"), "/")
	if len(segs) < 4 {
		return maven.Coordinate{}, cperrors.New(cperrors.ErrCodeParse, "not an artifact path: %q", rel)
	}
	n := len(segs)
	file, ver, artifact := segs[n-1], segs[n-2], segs[n-3]
	rest, ok := strings.CutPrefix(file, artifact+"-"+ver)
	if !ok {
		return maven.Coordinate{}, cperrors.New(cperrors.ErrCodeParse, "file %q does not match %s %s", file, artifact, ver)
	}
	var classifier string
	if strings.HasPrefix(rest, "-") {
		dot := strings.Index(rest, ".")
		if dot < 0 {
			return maven.Coordinate{}, cperrors.New(cperrors.ErrCodeParse, "no extension in %q", file)
		}
		classifier, rest = rest[1:dot], rest[dot:]
	}
	typ, ok := strings.CutPrefix(rest, ".")
	if !ok || typ == "" {
		return maven.Coordinate{}, cperrors.New(cperrors.ErrCodeParse, "no extension in %q", file)
	}
	c := maven.Coordinate{
		GroupID:    strings.Join(segs[:n-3], "."),
		ArtifactID: artifact,
		Version:    ver,
		Classifier: classifier,
		Type:       typ,
	}
	if err := c.Validate(); err != nil {
		return maven.Coordinate{}, err
	}
	return c, nil
}

// Path returns the absolute local path of c.
func (r *Repo) Path(c maven.Coordinate) string {
	return filepath.Join(r.Root(), filepath.FromSlash(RelPath(c)))
}

// Find returns the local path of c if the artifact is present.
func (r *Repo) Find(c maven.Coordinate) (string, bool) {
	p := r.Path(c)
	if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
		return p, true
	}
	return "", false
}

// Versions lists the versions of groupID:artifactID present locally, in
// ascending order.
func (r *Repo) Versions(groupID, artifactID string) []string {
	dir := filepath.Join(r.Root(), filepath.FromSlash(strings.ReplaceAll(groupID, ".", "/")), artifactID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, _ := filepath.Glob(filepath.Join(dir, e.Name(), artifactID+"-*"))
		for _, f := range files {
			if !strings.HasSuffix(f, ".lock") {
				out = append(out, e.Name())
				break
			}
		}
	}
	version.Sort(out)
	return out
}

// ensureRoot creates the root directory on first use with the permissions of
// its nearest existing ancestor. When that fails the home repository is used
// instead.
func (r *Repo) ensureRoot() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.created {
		return r.root
	}
	r.created = true

	if err := mkdirLike(r.root); err != nil {
		cerr := cperrors.Wrap(cperrors.ErrCodeCacheDirectory, err, "could not create local repository %s", r.root)
		fallback := r.opts.Home
		r.logger.Error("local repository unavailable", "err", cerr, "fallback", fallback)
		if ferr := os.MkdirAll(fallback, 0o755); ferr != nil {
			r.logger.Error("could not create fallback repository", "dir", fallback, "err", ferr)
		}
		r.root = fallback
	}
	r.logger.Debug("local repository", "dir", r.root)
	return r.root
}

func mkdirLike(dir string) error {
	ancestor := filepath.Dir(dir)
	for {
		if _, err := os.Stat(ancestor); err == nil {
			break
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			break
		}
		ancestor = parent
	}
	perm := fs.FileMode(0o755)
	if info, err := os.Stat(ancestor); err == nil {
		perm = info.Mode().Perm()
	}
	return os.MkdirAll(dir, perm)
}

// Fetch returns the local path of c, downloading it from the first
// repository that has it when absent. Concurrent calls for the same
// artifact, in this or another process, perform at most one download.
func (r *Repo) Fetch(ctx context.Context, c maven.Coordinate, repos []repository.Repository, src Source) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	r.ensureRoot()
	dst := r.Path(c)

	if r.fresh(c, dst) {
		return dst, nil
	}

	for {
		_, err, _ := r.group.Do(dst, func() (any, error) {
			err := r.fetchLocked(ctx, c, dst, repos, src)
			if err != nil && ctx.Err() != nil {
				return nil, abandonedError{err}
			}
			return nil, err
		})
		var abandoned abandonedError
		if errors.As(err, &abandoned) {
			if ctx.Err() == nil {
				continue
			}
			return "", abandoned.err
		}
		if err != nil {
			return "", err
		}
		return dst, nil
	}
}

// abandonedError is a fetch given up because the context of the caller
// running it ended. Callers that shared it with a live context fetch again.
type abandonedError struct{ err error }

func (e abandonedError) Error() string { return e.err.Error() }
func (e abandonedError) Unwrap() error { return e.err }

// fresh reports whether dst can be used as is.
func (r *Repo) fresh(c maven.Coordinate, dst string) bool {
	if _, err := os.Stat(dst); err != nil {
		return false
	}
	if !r.opts.ForceRefresh || !c.IsSnapshot() {
		return true
	}
	_, done := r.refreshed.Load(dst)
	return done
}

func (r *Repo) fetchLocked(ctx context.Context, c maven.Coordinate, dst string, repos []repository.Repository, src Source) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return cperrors.Wrap(cperrors.ErrCodeCacheDirectory, err, "create %s", filepath.Dir(dst))
	}
	unlock, err := lockFile(ctx, dst+".lock")
	if err != nil {
		return cperrors.Wrap(cperrors.ErrCodeCacheDirectory, err, "lock %s", dst)
	}
	defer unlock()

	// Another process may have finished the download while we waited.
	if r.fresh(c, dst) {
		return nil
	}
	refresh := r.opts.ForceRefresh && c.IsSnapshot()
	if _, err := os.Stat(dst); err == nil && !refresh {
		return nil
	}

	var errs []error
	allMissing := true
	for _, repo := range repos {
		if !repo.Policy(c.IsSnapshot()).Enabled {
			continue
		}
		err := r.download(ctx, c, dst, repo, src)
		if err == nil {
			if refresh {
				r.refreshed.Store(dst, true)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, transport.ErrNotFound) {
			allMissing = false
		}
		r.logger.Debug("artifact not fetched", "coord", c.Display(), "repo", repo.ID, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", repo.ID, err))
	}

	// A refresh that fails keeps the copy already on disk.
	if refresh {
		if _, err := os.Stat(dst); err == nil {
			r.logger.Warn("could not refresh snapshot, using cached copy", "coord", c.Display())
			r.refreshed.Store(dst, true)
			return nil
		}
	}

	code := cperrors.ErrCodeDownload
	if allMissing {
		code = cperrors.ErrCodeNotFound
	}
	return cperrors.Wrap(code, errors.Join(errs...), "could not find artifact %s in %d repositories", c.Display(), len(errs))
}

func (r *Repo) download(ctx context.Context, c maven.Coordinate, dst string, repo repository.Repository, src Source) error {
	remote, err := src.RemotePath(ctx, repo, c)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	r.logger.Info("downloading", "coord", c.Display(), "repo", repo.ID)
	if _, err := src.Download(ctx, repo, remote, repo.Policy(c.IsSnapshot()).Checksum, tmpName); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}
