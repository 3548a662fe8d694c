package pom

import (
	"context"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/maven"
)

// Lookup fetches artifacts on behalf of a Model. coords is a
// "group:artifact:version" string; the returned path is a local file.
type Lookup interface {
	LookupArtifact(ctx context.Context, coords, typ string) (string, error)
}

// Options configure how a Model resolves its parents.
type Options struct {
	// Root is an already loaded descriptor reused when a parent reference
	// names it.
	Root *Model
	// Lookup fetches parent descriptors. Nil disables parent resolution.
	Lookup Lookup
	Logger *log.Logger

	// ancestors holds the identities of the descriptors whose parent chain
	// is being resolved.
	ancestors []string
}

// Model is a parsed project descriptor. Its parent chain is resolved on
// first use and memoized. A Model is safe for concurrent use.
type Model struct {
	raw  *project
	opts Options

	mu         sync.Mutex
	parentDone bool
	parent     *Model
	parentErr  error
	managed    []dependency
	managedOK  bool
}

// Read parses a descriptor.
func Read(r io.Reader, opts Options) (*Model, error) {
	raw, err := decode(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePOMParse, err, "error reading pom")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Model{raw: raw, opts: opts}, nil
}

// ReadFile parses the descriptor at path.
func ReadFile(path string, opts Options) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePOMParse, err, "error reading pom %s", path)
	}
	defer f.Close()
	m, err := Read(f, opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePOMParse, err, "error reading pom %s", path)
	}
	return m, nil
}

// GroupID returns the groupId, falling back to the parent reference.
func (m *Model) GroupID() string {
	if m.raw.GroupID == "" && m.raw.Parent != nil {
		return m.raw.Parent.GroupID
	}
	return m.raw.GroupID
}

// ArtifactID returns the artifactId.
func (m *Model) ArtifactID() string { return m.raw.ArtifactID }

// Version returns the version, falling back to the parent reference.
func (m *Model) Version() string {
	if m.raw.Version == "" && m.raw.Parent != nil {
		return m.raw.Parent.Version
	}
	return m.raw.Version
}

// Name returns the project name, which may be empty.
func (m *Model) Name() string { return strings.TrimSpace(m.raw.Name) }

// Packaging returns the packaging, "jar" when absent.
func (m *Model) Packaging() string {
	if p := strings.TrimSpace(m.raw.Packaging); p != "" {
		return p
	}
	return "jar"
}

// Identity returns groupId, artifactId and version.
func (m *Model) Identity() (groupID, artifactID, version string) {
	return m.GroupID(), m.ArtifactID(), m.Version()
}

// ID returns "groupId:artifactId:packaging:version".
func (m *Model) ID() string {
	return m.GroupID() + ":" + m.ArtifactID() + ":" + m.Packaging() + ":" + m.Version()
}

func (m *Model) gav() string {
	return m.GroupID() + ":" + m.ArtifactID() + ":" + m.Version()
}

// AppID returns the application name "groupId.artifactId" and version
// derived from the descriptor.
func (m *Model) AppID() (name, version string) {
	return m.GroupID() + "." + m.ArtifactID(), m.Version()
}

// ParentCoords returns "group:artifact:version" of the parent reference, or
// "" when there is none.
func (m *Model) ParentCoords() string {
	if m.raw.Parent == nil {
		return ""
	}
	p := m.raw.Parent
	return p.GroupID + ":" + p.ArtifactID + ":" + p.Version
}

// Properties returns the descriptor's own properties in document order.
func (m *Model) Properties() []Property {
	return slices.Clone(m.raw.Properties)
}

// Repositories returns the declared repositories as "id(url)" tokens, or the
// bare url when a repository has no id.
func (m *Model) Repositories() []string {
	out := make([]string, 0, len(m.raw.Repositories))
	for _, r := range m.raw.Repositories {
		if r.URL == "" {
			continue
		}
		if r.ID != "" {
			out = append(out, r.ID+"("+r.URL+")")
		} else {
			out = append(out, r.URL)
		}
	}
	return out
}

// Parent returns the resolved parent descriptor, or nil when there is none
// or it could not be loaded. The only error is a CYCLE error for a parent
// chain that revisits an ancestor.
func (m *Model) Parent(ctx context.Context) (*Model, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.parentDone {
		m.parent, m.parentErr = m.resolveParent(ctx)
		m.parentDone = true
	}
	return m.parent, m.parentErr
}

func (m *Model) resolveParent(ctx context.Context) (*Model, error) {
	ref := m.raw.Parent
	if ref == nil {
		return nil, nil
	}
	coords := m.ParentCoords()
	chain := append(slices.Clone(m.opts.ancestors), m.gav())
	if slices.Contains(chain, coords) {
		return nil, errors.New(errors.ErrCodeCycle, "parent cycle: %s -> %s", strings.Join(chain, " -> "), coords)
	}

	if root := m.opts.Root; root != nil && root != m &&
		ref.GroupID == root.GroupID() && ref.ArtifactID == root.ArtifactID() && ref.Version == root.Version() {
		return root, nil
	}
	if m.opts.Lookup == nil {
		return nil, nil
	}

	logger := m.opts.Logger
	path, err := m.opts.Lookup.LookupArtifact(ctx, coords, "pom")
	if err != nil {
		logger.Warn("could not resolve parent", "parent", coords, "pom", m.gav(), "err", err)
		return nil, nil
	}
	opts := m.opts
	opts.ancestors = chain
	parent, err := ReadFile(path, opts)
	if err != nil {
		logger.Warn("could not read parent", "parent", coords, "pom", m.gav(), "err", err)
		return nil, nil
	}
	return parent, nil
}

// managedRaw returns the merged dependencyManagement entries: the parent's
// table overlaid by this descriptor's entries, keyed by management key.
func (m *Model) managedRaw(ctx context.Context) ([]dependency, error) {
	parent, err := m.Parent(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.managedOK {
		defer m.mu.Unlock()
		return m.managed, nil
	}
	m.mu.Unlock()

	var merged []dependency
	if parent != nil {
		if merged, err = parent.managedRaw(ctx); err != nil {
			return nil, err
		}
		merged = slices.Clone(merged)
	}
	for _, d := range m.raw.DependencyManagement {
		if strings.EqualFold(d.Scope, "import") && d.typ() == "pom" {
			merged = overlay(merged, m.importBOM(ctx, d)...)
			continue
		}
		merged = overlay(merged, d)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.managed, m.managedOK = merged, true
	return merged, nil
}

func rawKey(d dependency) maven.Key {
	return maven.Key{GroupID: d.GroupID, ArtifactID: d.ArtifactID, Classifier: d.Classifier, Type: d.typ()}
}

// overlay replaces entries with the same key in place and appends new ones.
func overlay(list []dependency, entries ...dependency) []dependency {
	for _, e := range entries {
		k := rawKey(e)
		if i := slices.IndexFunc(list, func(d dependency) bool { return rawKey(d) == k }); i >= 0 {
			list[i] = e
		} else {
			list = append(list, e)
		}
	}
	return list
}

// importBOM loads the dependencyManagement of a bill-of-materials
// descriptor. Failures are logged and contribute nothing.
func (m *Model) importBOM(ctx context.Context, d dependency) []dependency {
	logger := m.opts.Logger
	values, err := m.values(ctx)
	if err != nil {
		logger.Warn("could not interpolate imported pom", "pom", m.gav(), "err", err)
		return nil
	}
	coords := expand(values, d.GroupID+":"+d.ArtifactID+":"+d.Version)
	chain := append(slices.Clone(m.opts.ancestors), m.gav())
	if m.opts.Lookup == nil || slices.Contains(chain, coords) {
		return nil
	}
	path, err := m.opts.Lookup.LookupArtifact(ctx, coords, "pom")
	if err != nil {
		logger.Warn("could not resolve imported pom", "bom", coords, "err", err)
		return nil
	}
	opts := m.opts
	opts.ancestors = chain
	bom, err := ReadFile(path, opts)
	if err != nil {
		logger.Warn("could not read imported pom", "bom", coords, "err", err)
		return nil
	}
	entries, err := bom.managedRaw(ctx)
	if err != nil {
		logger.Warn("could not load imported pom", "bom", coords, "err", err)
		return nil
	}
	return entries
}

// ManagedDependencies returns the merged dependencyManagement table as
// "group:artifact:type:classifier:version" strings.
func (m *Model) ManagedDependencies(ctx context.Context) ([]string, error) {
	managed, err := m.managedRaw(ctx)
	if err != nil {
		return nil, err
	}
	values, err := m.values(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(managed))
	for _, d := range managed {
		out = append(out, expand(values, d.GroupID+":"+d.ArtifactID+":"+d.typ()+":"+d.Classifier+":"+d.Version))
	}
	return out, nil
}

// DependencyStrings returns the descriptor's runtime dependencies of the
// given type ("" means jar) as coordinate strings, in declaration order and
// without duplicates. Optional dependencies and scopes other than compile
// and runtime are dropped; missing versions come from dependencyManagement.
func (m *Model) DependencyStrings(ctx context.Context, typ string) ([]string, error) {
	deps, values, err := m.filtered(ctx, typ)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		if s := expand(values, coordinateString(d)); !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Dependencies is [Model.DependencyStrings] parsed into dependencies that
// keep their declared scope.
func (m *Model) Dependencies(ctx context.Context, typ string) ([]maven.Dependency, error) {
	deps, values, err := m.filtered(ctx, typ)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []maven.Dependency
	for _, d := range deps {
		s := expand(values, coordinateString(d))
		if seen[s] {
			continue
		}
		seen[s] = true
		c, err := maven.ParseWithType(s, d.typ())
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodePOMParse, err, "dependency of %s", m.gav())
		}
		scope, err := maven.ParseScope(d.Scope)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodePOMParse, err, "dependency %s of %s", s, m.gav())
		}
		out = append(out, maven.Dependency{Coordinate: c, Scope: scope})
	}
	return out, nil
}

// filtered returns the included dependencies of typ with managed versions
// filled in, and the property values to interpolate them with. A broken
// parent chain fails even when every dependency carries its own version.
func (m *Model) filtered(ctx context.Context, typ string) ([]dependency, map[string]string, error) {
	if typ == "" {
		typ = maven.DefaultType
	}
	values, err := m.values(ctx)
	if err != nil {
		return nil, nil, err
	}
	var managed []dependency
	var out []dependency
	for _, d := range m.raw.Dependencies {
		if !include(d) || d.typ() != typ {
			continue
		}
		if d.Version == "" {
			if managed == nil {
				if managed, err = m.managedRaw(ctx); err != nil {
					return nil, nil, err
				}
			}
			d.Version = managedVersion(values, d, managed)
		}
		out = append(out, d)
	}
	return out, values, nil
}

func managedVersion(values map[string]string, d dependency, managed []dependency) string {
	k := interpolatedKey(values, d)
	for _, e := range managed {
		if interpolatedKey(values, e) == k {
			return e.Version
		}
	}
	return ""
}

func interpolatedKey(values map[string]string, d dependency) maven.Key {
	k := rawKey(d)
	k.GroupID = expand(values, k.GroupID)
	k.ArtifactID = expand(values, k.ArtifactID)
	k.Classifier = expand(values, k.Classifier)
	return k
}

func include(d dependency) bool {
	if d.optional() {
		return false
	}
	switch strings.ToLower(d.Scope) {
	case "", string(maven.ScopeCompile), string(maven.ScopeRuntime):
		return true
	default:
		return false
	}
}

func coordinateString(d dependency) string {
	s := d.GroupID + ":" + d.ArtifactID + ":" + d.Version
	if d.Classifier != "" {
		s += ":" + d.Classifier
	}
	if len(d.Exclusions) > 0 {
		parts := make([]string, len(d.Exclusions))
		for i, e := range d.Exclusions {
			parts[i] = strings.TrimSpace(e.GroupID) + ":" + strings.TrimSpace(e.ArtifactID)
		}
		s += "(" + strings.Join(parts, ",") + ")"
	}
	return s
}

var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// expand substitutes every placeholder once. Substituted values are not
// scanned again, so self-referential properties cannot loop; unknown
// placeholders stay verbatim.
func expand(values map[string]string, s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(ph string) string {
		if v, ok := values[ph[2:len(ph)-1]]; ok {
			return v
		}
		return ph
	})
}

// values returns the properties visible to this descriptor: inherited ones
// overridden by its own, plus the project identity. It fails with the
// parent chain's CYCLE error.
func (m *Model) values(ctx context.Context) (map[string]string, error) {
	values := make(map[string]string)
	var chain []*Model
	seen := make(map[*Model]bool)
	for cur := m; cur != nil && !seen[cur]; {
		seen[cur] = true
		chain = append(chain, cur)
		parent, err := cur.Parent(ctx)
		if err != nil {
			return nil, err
		}
		cur = parent
	}
	for _, cur := range slices.Backward(chain) {
		for _, p := range cur.raw.Properties {
			values[p.Name] = p.Value
		}
	}
	if g := m.GroupID(); g != "" {
		values["project.groupId"] = g
		values["pom.groupId"] = g
	}
	if v := m.Version(); v != "" {
		values["project.version"] = v
		values["pom.version"] = v
		values["version"] = v
	}
	return values, nil
}
