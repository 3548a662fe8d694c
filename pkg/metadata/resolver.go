package metadata

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/classpath/pkg/cache"
	cperrors "github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/maven"
	"github.com/matzehuels/classpath/pkg/maven/version"
	"github.com/matzehuels/classpath/pkg/observability"
	"github.com/matzehuels/classpath/pkg/repository"
	"github.com/matzehuels/classpath/pkg/transport"
)

// DailyTTL is how long metadata stays fresh under the daily update policy.
const DailyTTL = 24 * time.Hour

const (
	fileName      = "maven-metadata.xml"
	localFileName = "maven-metadata-local.xml"
)

// Fetcher retrieves repository files.
type Fetcher interface {
	Get(ctx context.Context, repo repository.Repository, path string, policy repository.ChecksumPolicy) ([]byte, error)
	Offline() bool
}

// LocalVersions lists versions already present in the local repository.
type LocalVersions interface {
	Versions(groupID, artifactID string) []string
}

// Resolver resolves version ranges and markers. It is safe for concurrent
// use.
type Resolver struct {
	fetcher Fetcher
	cache   cache.Cache
	keyer   cache.Keyer
	local   LocalVersions
	logger  *log.Logger
}

// NewResolver creates a Resolver. c may be nil to disable metadata caching
// and local may be nil to ignore locally present versions.
func NewResolver(fetcher Fetcher, c cache.Cache, local LocalVersions, logger *log.Logger) *Resolver {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		fetcher: fetcher,
		cache:   c,
		keyer:   cache.NewDefaultKeyer(),
		local:   local,
		logger:  logger,
	}
}

// WithKeyer returns a copy of r using keyer for cache keys.
func (r *Resolver) WithKeyer(keyer cache.Keyer) *Resolver {
	cp := *r
	cp.keyer = keyer
	return &cp
}

func metadataPath(groupID, artifactID, ver string) string {
	p := path.Join(strings.ReplaceAll(groupID, ".", "/"), artifactID)
	if ver != "" {
		p = path.Join(p, ver)
	}
	return p
}

// Fetch returns the metadata of groupID:artifactID (ver empty) or of one
// snapshot version in repo. Remote documents are cached according to the
// repository's update policy: never keeps a cached document forever, daily
// for DailyTTL, always re-fetches. Offline, only the cache is consulted.
func (r *Resolver) Fetch(ctx context.Context, repo repository.Repository, groupID, artifactID, ver string) (*Metadata, error) {
	dir := metadataPath(groupID, artifactID, ver)
	policy := repo.Policy(ver != "")

	if repo.IsFile() {
		data, err := r.fetcher.Get(ctx, repo, path.Join(dir, fileName), repository.ChecksumIgnore)
		if errors.Is(err, transport.ErrNotFound) {
			data, err = r.fetcher.Get(ctx, repo, path.Join(dir, localFileName), repository.ChecksumIgnore)
		}
		if err != nil {
			return nil, err
		}
		return Parse(data)
	}

	key := r.keyer.MetadataKey(repo.URL, groupID, artifactID, ver)
	hooks := observability.Cache()
	if policy.Update != repository.UpdateAlways || r.fetcher.Offline() {
		if data, ok, _ := r.cache.Get(ctx, key); ok {
			hooks.OnCacheHit(ctx, "metadata")
			return Parse(data)
		}
		hooks.OnCacheMiss(ctx, "metadata")
	}

	data, err := r.fetcher.Get(ctx, repo, path.Join(dir, fileName), policy.Checksum)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}

	var ttl time.Duration
	if policy.Update == repository.UpdateDaily {
		ttl = DailyTTL
	}
	if err := r.cache.Set(ctx, key, data, ttl); err != nil {
		r.logger.Debug("metadata not cached", "key", key, "err", err)
	} else {
		hooks.OnCacheSet(ctx, "metadata", len(data))
	}
	return m, nil
}

// Versions collects the versions of groupID:artifactID offered by repos and
// present locally. Snapshot versions are only taken from repositories with
// an enabled snapshot policy. A repository that cannot be reached is
// skipped; the error is returned only when no repository answered.
func (r *Resolver) Versions(ctx context.Context, groupID, artifactID string, repos []repository.Repository) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(v string, snapshots bool) {
		if v == "" || seen[v] || (!snapshots && version.IsSnapshot(v)) {
			return
		}
		seen[v] = true
		out = append(out, v)
	}

	anySnapshots := false
	answered := 0
	var errs []error
	for _, repo := range repos {
		if !repo.Release.Enabled && !repo.Snapshot.Enabled {
			continue
		}
		anySnapshots = anySnapshots || repo.Snapshot.Enabled
		m, err := r.Fetch(ctx, repo, groupID, artifactID, "")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, transport.ErrNotFound) {
				answered++
			} else {
				r.logger.Debug("metadata unavailable", "repo", repo.ID, "artifact", groupID+":"+artifactID, "err", err)
				errs = append(errs, fmt.Errorf("%s: %w", repo.ID, err))
			}
			continue
		}
		answered++
		for _, v := range m.AllVersions() {
			if !repo.Release.Enabled && !version.IsSnapshot(v) {
				continue
			}
			add(v, repo.Snapshot.Enabled)
		}
	}
	if r.local != nil {
		for _, v := range r.local.Versions(groupID, artifactID) {
			add(v, anySnapshots)
		}
	}

	if len(out) == 0 && answered == 0 && len(errs) > 0 {
		return nil, cperrors.Wrap(cperrors.ErrCodeRepositoryUnavailable, errors.Join(errs...),
			"no repository reachable for %s:%s", groupID, artifactID)
	}
	version.Sort(out)
	return out, nil
}

// Resolve returns the concrete version c refers to. Plain versions are
// returned unchanged. Ranges, [maven.AnyVersion], RELEASE and LATEST are
// resolved to the highest matching version across repos.
func (r *Resolver) Resolve(ctx context.Context, c maven.Coordinate, repos []repository.Repository) (string, error) {
	if !c.IsRange() {
		return c.Version, nil
	}

	requested := c.Version
	spec := requested
	snapshots := true
	switch requested {
	case "RELEASE":
		spec, snapshots = maven.AnyVersion, false
	case "LATEST":
		spec = maven.AnyVersion
	}
	rng, err := version.ParseRange(spec)
	if err != nil {
		return "", cperrors.Wrap(cperrors.ErrCodeParse, err, "invalid version range in %s", c)
	}

	candidates, err := r.Versions(ctx, c.GroupID, c.ArtifactID, repos)
	if err != nil {
		return "", cperrors.Wrap(cperrors.ErrCodeVersionResolution, err,
			"could not resolve version of %s:%s for range %s", c.GroupID, c.ArtifactID, requested)
	}
	v, ok := version.Highest(candidates, rng, snapshots)
	if !ok {
		return "", cperrors.New(cperrors.ErrCodeVersionResolution,
			"no version of %s:%s satisfies %s", c.GroupID, c.ArtifactID, requested)
	}

	r.logger.Debug("resolved version", "coord", c.GroupID+":"+c.ArtifactID, "range", requested, "version", v)
	observability.Resolve().OnVersionResolved(ctx, c.GroupID+":"+c.ArtifactID, requested, v)
	return v, nil
}

// SnapshotVersion returns the timestamped version under which repo stores
// the file of snapshot c, or c.Version when the repository keeps plain
// "-SNAPSHOT" names.
func (r *Resolver) SnapshotVersion(ctx context.Context, repo repository.Repository, c maven.Coordinate) string {
	if !strings.HasSuffix(c.Version, "SNAPSHOT") || repo.IsFile() {
		return c.Version
	}
	m, err := r.Fetch(ctx, repo, c.GroupID, c.ArtifactID, c.Version)
	if err != nil {
		r.logger.Debug("no snapshot metadata", "coord", c.Display(), "repo", repo.ID, "err", err)
		return c.Version
	}
	if v := m.SnapshotValue(c.Version, c.Classifier, c.Key().Type); v != "" {
		return v
	}
	return c.Version
}
