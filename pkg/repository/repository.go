// Package repository turns repository tokens into concrete remote repository
// definitions with fetch policies.
//
// A token is either "id", "id(url)" or a bare URL. Tokens naming a well-known
// repository (central, central-http, jcenter, jcenter-http, local) resolve to
// that repository's canonical definition.
package repository

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/proxy"
)

// UpdatePolicy controls when cached metadata is re-checked against the
// remote repository.
type UpdatePolicy string

const (
	UpdateNever  UpdatePolicy = "never"
	UpdateAlways UpdatePolicy = "always"
	UpdateDaily  UpdatePolicy = "daily"
)

// ChecksumPolicy controls how a checksum mismatch is treated.
type ChecksumPolicy string

const (
	ChecksumWarn   ChecksumPolicy = "warn"
	ChecksumFail   ChecksumPolicy = "fail"
	ChecksumIgnore ChecksumPolicy = "ignore"
)

// Policy governs one class of artifacts (releases or snapshots) in a
// repository.
type Policy struct {
	Enabled  bool
	Update   UpdatePolicy
	Checksum ChecksumPolicy
}

// Repository is a resolved remote repository. Two repositories are the same
// when all fields are equal.
type Repository struct {
	ID       string
	URL      string
	Release  Policy
	Snapshot Policy
	Proxy    *proxy.Proxy // nil when the repository is reached directly
}

// Key is a value identity over every field, used for deduplication.
func (r Repository) Key() string {
	p := ""
	if r.Proxy != nil {
		p = r.Proxy.String()
	}
	return fmt.Sprintf("%s|%s|%v|%v|%s", r.ID, r.URL, r.Release, r.Snapshot, p)
}

// Equal reports value equality.
func (r Repository) Equal(o Repository) bool { return r.Key() == o.Key() }

// String returns "id(url)", the token form of the repository.
func (r Repository) String() string {
	return r.ID + "(" + r.URL + ")"
}

// Policy returns the snapshot or release policy.
func (r Repository) Policy(snapshot bool) Policy {
	if snapshot {
		return r.Snapshot
	}
	return r.Release
}

// IsFile reports whether the repository lives on the local file system.
func (r Repository) IsFile() bool { return strings.HasPrefix(r.URL, "file:") }

// Dir returns the local directory of a file: repository.
func (r Repository) Dir() string {
	if !r.IsFile() {
		return ""
	}
	if u, err := url.Parse(r.URL); err == nil && u.Path != "" {
		return filepath.FromSlash(u.Path)
	}
	return filepath.FromSlash(strings.TrimPrefix(strings.TrimPrefix(r.URL, "file:"), "//"))
}

// Join builds the URL of a path below the repository root.
func (r Repository) Join(elem ...string) string {
	return strings.TrimSuffix(r.URL, "/") + "/" + strings.Join(elem, "/")
}

// Options are the session flags that shape repository policies.
type Options struct {
	// ForceRefresh switches the update policy from never to always.
	ForceRefresh bool
	// AllowSnapshots enables the snapshot policy.
	AllowSnapshots bool
	// LocalHome is the user's local repository, the target of the "local"
	// alias.
	LocalHome string
}

// WellKnown returns the canonical token of every well-known repository.
func WellKnown(localHome string) map[string]string {
	return map[string]string{
		"central":      "central(https://repo1.maven.org/maven2/)",
		"central-http": "central(http://repo1.maven.org/maven2/)",
		"jcenter":      "jcenter(https://jcenter.bintray.com/)",
		"jcenter-http": "jcenter(http://jcenter.bintray.com/)",
		"local":        "local(file:" + filepath.ToSlash(localHome) + ")",
	}
}

var tokenPattern = regexp.MustCompile(`^(?P<id>[^(]+)(\((?P<url>[^)]+)\))?$`)

// Registry resolves repository tokens. It is built once per session and is
// read-only afterwards.
type Registry struct {
	wellKnown map[string]string
	opts      Options
	selector  *proxy.Selector
	logger    *log.Logger
}

// NewRegistry creates a registry. selector may be nil when no proxies apply.
func NewRegistry(opts Options, selector *proxy.Selector, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		wellKnown: WellKnown(opts.LocalHome),
		opts:      opts,
		selector:  selector,
		logger:    logger,
	}
}

func (r *Registry) releasePolicy() Policy {
	update := UpdateNever
	if r.opts.ForceRefresh {
		update = UpdateAlways
	}
	return Policy{Enabled: true, Update: update, Checksum: ChecksumWarn}
}

func (r *Registry) snapshotPolicy() Policy {
	if !r.opts.AllowSnapshots {
		return Policy{Enabled: false}
	}
	return r.releasePolicy()
}

// Resolve turns one token into a repository.
func (r *Registry) Resolve(token string) (Repository, error) {
	return r.resolve(strings.TrimSpace(token), 0)
}

func (r *Registry) resolve(token string, depth int) (Repository, error) {
	m := tokenPattern.FindStringSubmatch(token)
	if m == nil || depth > len(r.wellKnown) {
		return Repository{}, errors.New(errors.ErrCodeParse, "could not parse repository: %q", token)
	}
	id := strings.TrimSpace(m[tokenPattern.SubexpIndex("id")])
	u := strings.TrimSpace(m[tokenPattern.SubexpIndex("url")])

	if u == "" {
		if canonical, ok := r.wellKnown[id]; ok {
			return r.resolve(canonical, depth+1)
		}
		u = id
	}
	if err := errors.ValidateRepositoryURL(u); err != nil {
		return Repository{}, errors.Wrap(errors.ErrCodeParse, err, "could not parse repository: %q", token)
	}

	repo := Repository{
		ID:       id,
		URL:      u,
		Release:  r.releasePolicy(),
		Snapshot: r.snapshotPolicy(),
	}
	if repo.IsFile() {
		repo.Release.Checksum = ChecksumIgnore
		if repo.Snapshot.Enabled {
			repo.Snapshot.Checksum = ChecksumIgnore
		}
	}
	if r.selector != nil {
		if p := r.selector.Select(u); p != nil {
			r.logger.Debug("setting proxy", "repository", repo.ID, "proxy", p)
			repo.Proxy = p
		}
	}
	return repo, nil
}

// ResolveAll resolves tokens in order, dropping repositories equal to one
// already resolved. An empty list means central.
func (r *Registry) ResolveAll(tokens []string) ([]Repository, error) {
	if len(tokens) == 0 {
		tokens = []string{"central"}
	}
	seen := make(map[string]bool)
	var repos []Repository
	for _, t := range tokens {
		repo, err := r.Resolve(t)
		if err != nil {
			return nil, err
		}
		if seen[repo.Key()] {
			continue
		}
		seen[repo.Key()] = true
		repos = append(repos, repo)
	}
	r.logger.Debug("repositories", "repos", repos)
	return repos, nil
}

var tokenSeparator = regexp.MustCompile(`[,\s]\s*`)

// SplitTokens splits a list of repository tokens separated by commas or
// whitespace, as found in environment variables.
func SplitTokens(s string) []string {
	var out []string
	for _, t := range tokenSeparator.Split(strings.TrimSpace(s), -1) {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// MergeTokens concatenates token lists, keeping the first occurrence of each
// token.
func MergeTokens(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, t := range list {
			if t = strings.TrimSpace(t); t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
