// Package maven models Maven artifact coordinates, exclusions and dependency
// scopes, and implements the coordinate string grammar
//
//	groupId:artifactId[:version][:classifier](exclusion,exclusion,...)
//
// An omitted or empty version stands for [AnyVersion]. Exclusions are
// comma-separated groupId:artifactId pairs with set semantics.
package maven

import (
	"regexp"
	"slices"
	"strings"

	"github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/maven/version"
)

// AnyVersion is the sentinel for an omitted version. It is the Maven range
// that every version satisfies.
const AnyVersion = "[0,)"

// DefaultType is the artifact type used when none is given.
const DefaultType = "jar"

var coordinatePattern = regexp.MustCompile(
	`^(?P<group>[^:(]+):(?P<artifact>[^:(]+)(:(?P<version>\(?[^:(]*))?(:(?P<classifier>[^:(]+))?(\((?P<exclusions>[^()]*)\))?$`)

var (
	groupIdx      = coordinatePattern.SubexpIndex("group")
	artifactIdx   = coordinatePattern.SubexpIndex("artifact")
	versionIdx    = coordinatePattern.SubexpIndex("version")
	classifierIdx = coordinatePattern.SubexpIndex("classifier")
	exclusionsIdx = coordinatePattern.SubexpIndex("exclusions")
)

// Exclusion removes an artifact from a dependency's transitive subtree.
// Either field may be "*" to match anything.
type Exclusion struct {
	GroupID    string
	ArtifactID string
}

// String returns "groupId:artifactId".
func (e Exclusion) String() string { return e.GroupID + ":" + e.ArtifactID }

// Matches reports whether the exclusion applies to the given artifact.
func (e Exclusion) Matches(groupID, artifactID string) bool {
	return (e.GroupID == "*" || e.GroupID == groupID) &&
		(e.ArtifactID == "*" || e.ArtifactID == artifactID)
}

// ParseExclusion parses a "groupId:artifactId" pair. Surrounding whitespace is
// ignored.
func ParseExclusion(s string) (Exclusion, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Exclusion{}, errors.New(errors.ErrCodeParse, "illegal exclusion dependency coordinates: %q (should be groupId:artifactId)", s)
	}
	return Exclusion{GroupID: strings.TrimSpace(parts[0]), ArtifactID: strings.TrimSpace(parts[1])}, nil
}

// Coordinate identifies one artifact.
type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string // exact version, range, or AnyVersion
	Classifier string
	Type       string
	Exclusions []Exclusion // sorted and free of duplicates
}

// Parse parses a coordinate string with the default "jar" type.
func Parse(s string) (Coordinate, error) {
	return ParseWithType(s, DefaultType)
}

// ParseWithType parses a coordinate string, assigning the given artifact type.
func ParseWithType(s, typ string) (Coordinate, error) {
	m := coordinatePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Coordinate{}, errors.New(errors.ErrCodeParse, "could not parse dependency: %q", s)
	}

	c := Coordinate{
		GroupID:    strings.TrimSpace(m[groupIdx]),
		ArtifactID: strings.TrimSpace(m[artifactIdx]),
		Version:    strings.TrimSpace(m[versionIdx]),
		Classifier: strings.TrimSpace(m[classifierIdx]),
		Type:       typ,
	}
	if c.GroupID == "" || c.ArtifactID == "" {
		return Coordinate{}, errors.New(errors.ErrCodeParse, "could not parse dependency: %q", s)
	}
	if c.Version == "" {
		c.Version = AnyVersion
	}
	if c.Type == "" {
		c.Type = DefaultType
	}

	if raw := m[exclusionsIdx]; strings.TrimSpace(raw) != "" {
		excls := make([]Exclusion, 0, strings.Count(raw, ",")+1)
		for _, part := range strings.Split(raw, ",") {
			e, err := ParseExclusion(part)
			if err != nil {
				return Coordinate{}, errors.Wrap(errors.ErrCodeParse, err, "could not parse dependency: %q", s)
			}
			excls = append(excls, e)
		}
		c.Exclusions = normalizeExclusions(excls)
	}
	return c, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level tables.
func MustParse(s string) Coordinate {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

func normalizeExclusions(excls []Exclusion) []Exclusion {
	if len(excls) == 0 {
		return nil
	}
	out := slices.Clone(excls)
	slices.SortFunc(out, func(a, b Exclusion) int {
		if c := strings.Compare(a.GroupID, b.GroupID); c != 0 {
			return c
		}
		return strings.Compare(a.ArtifactID, b.ArtifactID)
	})
	return slices.Compact(out)
}

// String serializes the coordinate in the grammar accepted by [Parse]. The
// [AnyVersion] sentinel is written as an empty version field.
func (c Coordinate) String() string {
	var b strings.Builder
	b.WriteString(c.GroupID)
	b.WriteByte(':')
	b.WriteString(c.ArtifactID)

	v := c.Version
	if v == AnyVersion {
		v = ""
	}
	if v != "" || c.Classifier != "" {
		b.WriteByte(':')
		b.WriteString(v)
	}
	if c.Classifier != "" {
		b.WriteByte(':')
		b.WriteString(c.Classifier)
	}
	if len(c.Exclusions) > 0 {
		b.WriteByte('(')
		for i, e := range c.Exclusions {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(e.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

// GAV returns "groupId:artifactId:version".
func (c Coordinate) GAV() string {
	return c.GroupID + ":" + c.ArtifactID + ":" + c.Version
}

// Display returns "groupId:artifactId:version[:classifier]", the form used
// when printing dependency trees.
func (c Coordinate) Display() string {
	s := c.GAV()
	if c.Classifier != "" {
		s += ":" + c.Classifier
	}
	return s
}

// Key returns the identity used for dependency management and conflict
// resolution.
func (c Coordinate) Key() Key {
	typ := c.Type
	if typ == "" {
		typ = DefaultType
	}
	return Key{GroupID: c.GroupID, ArtifactID: c.ArtifactID, Classifier: c.Classifier, Type: typ}
}

// Equal compares every field except exclusions.
func (c Coordinate) Equal(o Coordinate) bool {
	return c.Key() == o.Key() && c.Version == o.Version
}

// FullKey is a string over every field, exclusions included. It is the
// memoization key of a resolution session.
func (c Coordinate) FullKey() string {
	return c.String() + "@" + c.Key().Type
}

// WithVersion returns a copy of c with the version replaced.
func (c Coordinate) WithVersion(v string) Coordinate {
	c.Exclusions = slices.Clone(c.Exclusions)
	c.Version = v
	return c
}

// WithExclusions returns a copy of c whose exclusions are the union of its own
// and extra.
func (c Coordinate) WithExclusions(extra ...Exclusion) Coordinate {
	all := append(slices.Clone(c.Exclusions), extra...)
	c.Exclusions = normalizeExclusions(all)
	return c
}

// Excludes reports whether any of c's exclusions matches the artifact.
func (c Coordinate) Excludes(groupID, artifactID string) bool {
	for _, e := range c.Exclusions {
		if e.Matches(groupID, artifactID) {
			return true
		}
	}
	return false
}

// IsRange reports whether the version must be resolved against repository
// metadata before the artifact can be fetched.
func (c Coordinate) IsRange() bool {
	return c.Version == AnyVersion || version.IsRange(c.Version) ||
		c.Version == "RELEASE" || c.Version == "LATEST"
}

// IsSnapshot reports whether c refers to a snapshot version.
func (c Coordinate) IsSnapshot() bool {
	return version.IsSnapshot(c.Version)
}

// FileName returns "artifactId-version[-classifier].type".
func (c Coordinate) FileName() string {
	name := c.ArtifactID + "-" + c.Version
	if c.Classifier != "" {
		name += "-" + c.Classifier
	}
	return name + "." + c.Key().Type
}

// Validate checks that every component can safely be used as a path segment.
func (c Coordinate) Validate() error {
	if err := errors.ValidateSegment("groupId", c.GroupID); err != nil {
		return err
	}
	if err := errors.ValidateSegment("artifactId", c.ArtifactID); err != nil {
		return err
	}
	if err := errors.ValidateSegment("version", c.Version); err != nil {
		return err
	}
	if c.Classifier != "" {
		if err := errors.ValidateSegment("classifier", c.Classifier); err != nil {
			return err
		}
	}
	return errors.ValidateSegment("type", c.Key().Type)
}

// Key identifies an artifact irrespective of version: groupId, artifactId,
// classifier and type.
type Key struct {
	GroupID    string
	ArtifactID string
	Classifier string
	Type       string
}

// String returns "groupId:artifactId:type[:classifier]".
func (k Key) String() string {
	s := k.GroupID + ":" + k.ArtifactID + ":" + k.Type
	if k.Classifier != "" {
		s += ":" + k.Classifier
	}
	return s
}
