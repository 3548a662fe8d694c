package resolve

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/classpath/pkg/localrepo"
	"github.com/matzehuels/classpath/pkg/maven"
	"github.com/matzehuels/classpath/pkg/maven/version"
)

// Overlay supplies the files of a dependency ahead of repository
// resolution. An empty result defers to the next source.
type Overlay interface {
	ResolveDependency(ctx context.Context, coords, typ string) ([]string, error)
}

// OverlayFunc adapts a function to [Overlay].
type OverlayFunc func(ctx context.Context, coords, typ string) ([]string, error)

// ResolveDependency calls f.
func (f OverlayFunc) ResolveDependency(ctx context.Context, coords, typ string) ([]string, error) {
	return f(ctx, coords, typ)
}

// Chain consults overlays from outer to inner; the first non-empty result
// wins and an error stops the search.
type Chain []Overlay

// ResolveDependency implements [Overlay].
func (c Chain) ResolveDependency(ctx context.Context, coords, typ string) ([]string, error) {
	for _, o := range c {
		files, err := o.ResolveDependency(ctx, coords, typ)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			return files, nil
		}
	}
	return nil, nil
}

// DirOverlay resolves artifacts embedded in a directory, either in a Maven
// repository layout or flat as "artifactId-version[-classifier].type".
// Embedded artifacts bring no transitive dependencies.
type DirOverlay struct {
	dir  string
	repo *localrepo.Repo
}

// NewDirOverlay creates an overlay over dir.
func NewDirOverlay(dir string) *DirOverlay {
	return &DirOverlay{
		dir:  dir,
		repo: localrepo.New(localrepo.Options{Root: dir, Home: dir}, log.Default()),
	}
}

// ResolveDependency implements [Overlay].
func (o *DirOverlay) ResolveDependency(_ context.Context, coords, typ string) ([]string, error) {
	c, err := maven.ParseWithType(coords, typ)
	if err != nil {
		return nil, err
	}
	if c.IsRange() {
		v, ok := o.highest(c)
		if !ok {
			return nil, nil
		}
		c = c.WithVersion(v)
	}
	if p, ok := o.repo.Find(c); ok {
		return []string{p}, nil
	}
	flat := filepath.Join(o.dir, c.FileName())
	if info, err := os.Stat(flat); err == nil && info.Mode().IsRegular() {
		return []string{flat}, nil
	}
	return nil, nil
}

// highest picks the highest embedded version satisfying c's range whose
// file is present.
func (o *DirOverlay) highest(c maven.Coordinate) (string, bool) {
	spec, snapshots := c.Version, true
	switch c.Version {
	case "RELEASE":
		spec, snapshots = maven.AnyVersion, false
	case "LATEST":
		spec = maven.AnyVersion
	}
	rng, err := version.ParseRange(spec)
	if err != nil {
		return "", false
	}
	var present []string
	for _, v := range o.repo.Versions(c.GroupID, c.ArtifactID) {
		if _, ok := o.repo.Find(c.WithVersion(v)); ok {
			present = append(present, v)
		}
	}
	return version.Highest(present, rng, snapshots)
}
