// Package resolve expands dependency coordinates into a conflict-resolved
// dependency graph and materializes its artifacts in a local repository.
//
// A [Resolver] is one resolution session. It memoizes every artifact it
// fetches (UNRESOLVED, RESOLVING, then RESOLVED or FAILED) and keeps parsed
// project descriptors in a bounded LRU, so repeated lookups within a session
// never touch the network twice.
//
// Graph construction walks the dependency tree level by level. Within a
// level, descriptors are loaded in parallel (bounded by
// [Options.Concurrency]) and the results are applied in declaration order,
// which makes conflict resolution deterministic: the nearest occurrence of
// an artifact wins, ties going to the one declared first.
package resolve

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/classpath/pkg/cache"
	"github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/localrepo"
	"github.com/matzehuels/classpath/pkg/maven"
	"github.com/matzehuels/classpath/pkg/metadata"
	"github.com/matzehuels/classpath/pkg/pom"
	"github.com/matzehuels/classpath/pkg/repository"
)

const (
	// DefaultConcurrency matches the transport's per-host connection limit.
	DefaultConcurrency = 8
	// DefaultModelCacheSize bounds the descriptors kept per session.
	DefaultModelCacheSize = 1024
)

// Transport fetches repository files. *transport.Client implements it.
type Transport interface {
	metadata.Fetcher
	Download(ctx context.Context, repo repository.Repository, path string, policy repository.ChecksumPolicy, dst string) (int64, error)
}

// Options configure a [Resolver].
type Options struct {
	// Repositories are searched in order.
	Repositories []repository.Repository
	// Local is the artifact cache. Required.
	Local *localrepo.Repo
	// Transport fetches remote files. Required.
	Transport Transport
	// Cache stores repository metadata. Nil disables metadata caching.
	Cache cache.Cache
	// CacheNamespace prefixes metadata cache keys.
	CacheNamespace string
	// Root is the project descriptor being built, reused when a parent
	// reference names it.
	Root *pom.Model
	// Overlays are consulted by ResolveDependency before the repositories.
	Overlays Chain
	// Concurrency bounds parallel fetches. Zero means DefaultConcurrency.
	Concurrency int
	// ModelCacheSize bounds cached descriptors. Zero means
	// DefaultModelCacheSize.
	ModelCacheSize int
	Logger         *log.Logger
}

// Resolver is a resolution session. It is safe for concurrent use.
type Resolver struct {
	id       string
	opts     Options
	versions *metadata.Resolver
	source   *source
	logger   *log.Logger

	models     *lru.Cache[string, *pom.Model]
	modelGroup singleflight.Group

	mu        sync.Mutex
	root      *pom.Model
	artifacts map[string]*entry

	versionGroup singleflight.Group
	versionMemo  sync.Map // requested coordinate -> concrete version
}

// New creates a session.
func New(opts Options) (*Resolver, error) {
	if opts.Local == nil || opts.Transport == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "resolver needs a local repository and a transport")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.ModelCacheSize <= 0 {
		opts.ModelCacheSize = DefaultModelCacheSize
	}
	if len(opts.Repositories) == 0 {
		opts.Logger.Warn("no repositories configured, only the local repository is used")
	}

	models, err := lru.New[string, *pom.Model](opts.ModelCacheSize)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "model cache")
	}

	versions := metadata.NewResolver(opts.Transport, opts.Cache, opts.Local, opts.Logger)
	if opts.CacheNamespace != "" {
		versions = versions.WithKeyer(cache.NewScopedKeyer(nil, opts.CacheNamespace))
	}

	id := uuid.NewString()
	return &Resolver{
		id:        id,
		opts:      opts,
		versions:  versions,
		source:    &source{transport: opts.Transport, versions: versions},
		logger:    opts.Logger.With("session", id[:8]),
		models:    models,
		root:      opts.Root,
		artifacts: make(map[string]*entry),
	}, nil
}

// LoadProject reads the project descriptor at path, resolving its parents
// through this session, and makes it the session root.
func (r *Resolver) LoadProject(path string) (*pom.Model, error) {
	m, err := pom.ReadFile(path, pom.Options{Lookup: r, Logger: r.logger})
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.root = m
	r.mu.Unlock()
	return m, nil
}

func (r *Resolver) rootModel() *pom.Model {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root
}

// SessionID identifies this session in logs and hooks.
func (r *Resolver) SessionID() string { return r.id }

// Repositories returns the repositories searched by this session.
func (r *Resolver) Repositories() []repository.Repository { return r.opts.Repositories }

// ResolveVersion returns c with a concrete version, resolving ranges and
// markers against repository metadata. Results are memoized per session.
func (r *Resolver) ResolveVersion(ctx context.Context, c maven.Coordinate) (maven.Coordinate, error) {
	if !c.IsRange() {
		return c, nil
	}
	key := c.GroupID + ":" + c.ArtifactID + ":" + c.Version
	if v, ok := r.versionMemo.Load(key); ok {
		return c.WithVersion(v.(string)), nil
	}
	v, err, _ := r.versionGroup.Do(key, func() (any, error) {
		v, err := r.versions.Resolve(ctx, c, r.opts.Repositories)
		if err != nil {
			return "", err
		}
		r.versionMemo.Store(key, v)
		return v, nil
	})
	if err != nil {
		return maven.Coordinate{}, err
	}
	return c.WithVersion(v.(string)), nil
}

// LatestVersion returns "groupId:artifactId:version[:classifier]" with the
// highest version coords' version or range admits. An omitted version admits
// any version.
func (r *Resolver) LatestVersion(ctx context.Context, coords, typ string) (string, error) {
	c, err := maven.ParseWithType(coords, typ)
	if err != nil {
		return "", err
	}
	c, err = r.ResolveVersion(ctx, c)
	if err != nil {
		return "", err
	}
	return c.Display(), nil
}

// LookupArtifact resolves coords to a local file, downloading it if needed.
// It lets project descriptors load their parents through this session.
func (r *Resolver) LookupArtifact(ctx context.Context, coords, typ string) (string, error) {
	c, err := maven.ParseWithType(coords, typ)
	if err != nil {
		return "", err
	}
	return r.Artifact(ctx, c)
}

// Artifact fetches the single file of c, without its dependencies, and
// returns its local path.
func (r *Resolver) Artifact(ctx context.Context, c maven.Coordinate) (string, error) {
	c, err := r.ResolveVersion(ctx, c)
	if err != nil {
		return "", err
	}
	return r.artifact(ctx, c)
}

// LoadPOM returns the project descriptor of c. Descriptors are cached for
// the lifetime of the session.
func (r *Resolver) LoadPOM(ctx context.Context, c maven.Coordinate) (*pom.Model, error) {
	c, err := r.ResolveVersion(ctx, c)
	if err != nil {
		return nil, err
	}
	key := c.GroupID + ":" + c.ArtifactID + ":" + c.Version
	if m, ok := r.models.Get(key); ok {
		return m, nil
	}
	v, err, _ := r.modelGroup.Do(key, func() (any, error) {
		if m, ok := r.models.Get(key); ok {
			return m, nil
		}
		desc := maven.Coordinate{GroupID: c.GroupID, ArtifactID: c.ArtifactID, Version: c.Version, Type: "pom"}
		path, err := r.artifact(ctx, desc)
		if err != nil {
			return nil, err
		}
		m, err := pom.ReadFile(path, pom.Options{Root: r.rootModel(), Lookup: r, Logger: r.logger})
		if err != nil {
			return nil, err
		}
		r.models.Add(key, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pom.Model), nil
}

// state is the lifecycle of an artifact within a session.
type state int

const (
	unresolved state = iota
	resolving
	resolved
	failed
)

func (s state) String() string {
	switch s {
	case resolving:
		return "RESOLVING"
	case resolved:
		return "RESOLVED"
	case failed:
		return "FAILED"
	default:
		return "UNRESOLVED"
	}
}

type entry struct {
	state state
	path  string
	err   error
	done  chan struct{}
}

// artifact returns the local path of c, which must have a concrete version.
// Terminal states are never re-queried.
func (r *Resolver) artifact(ctx context.Context, c maven.Coordinate) (string, error) {
	c.Exclusions = nil
	key := c.FullKey()

	var e *entry
	for {
		r.mu.Lock()
		cur, ok := r.artifacts[key]
		if !ok {
			e = &entry{state: resolving, done: make(chan struct{})}
			r.artifacts[key] = e
			r.mu.Unlock()
			break
		}
		r.mu.Unlock()

		select {
		case <-cur.done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		// Still resolving once done: the caller that owned the fetch was
		// canceled. A live caller takes over.
		if cur.state == resolving && ctx.Err() == nil {
			continue
		}
		return cur.path, cur.err
	}

	path, err := r.opts.Local.Fetch(ctx, c, r.opts.Repositories, r.source)

	r.mu.Lock()
	switch {
	case err == nil:
		e.state, e.path = resolved, path
	case ctx.Err() != nil:
		// A canceled fetch is not a verdict on the artifact.
		e.err = err
		delete(r.artifacts, key)
	default:
		e.state, e.err = failed, err
	}
	r.mu.Unlock()
	close(e.done)

	if err != nil {
		r.logger.Debug("artifact failed", "coord", c.Display(), "type", c.Key().Type, "err", err)
	}
	return path, err
}

// State reports the session state of the artifact c.
func (r *Resolver) State(c maven.Coordinate) string {
	c.Exclusions = nil
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.artifacts[c.FullKey()]; ok {
		return e.state.String()
	}
	return unresolved.String()
}

// source adapts the transport to the local repository, mapping snapshot
// coordinates to their timestamped remote names.
type source struct {
	transport Transport
	versions  *metadata.Resolver
}

func (s *source) RemotePath(ctx context.Context, repo repository.Repository, c maven.Coordinate) (string, error) {
	rel := localrepo.RelPath(c)
	if !c.IsSnapshot() {
		return rel, nil
	}
	remote := s.versions.SnapshotVersion(ctx, repo, c)
	if remote == c.Version {
		return rel, nil
	}
	dir := rel[:len(rel)-len(c.FileName())]
	return dir + c.WithVersion(remote).FileName(), nil
}

func (s *source) Download(ctx context.Context, repo repository.Repository, path string, policy repository.ChecksumPolicy, dst string) (int64, error) {
	return s.transport.Download(ctx, repo, path, policy, dst)
}
