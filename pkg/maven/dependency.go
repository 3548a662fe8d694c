package maven

import (
	"strings"

	"github.com/matzehuels/classpath/pkg/errors"
)

// Scope is a Maven dependency scope.
type Scope string

// Dependency scopes. An absent scope means [ScopeCompile].
const (
	ScopeCompile  Scope = "compile"
	ScopeRuntime  Scope = "runtime"
	ScopeProvided Scope = "provided"
	ScopeTest     Scope = "test"
	ScopeSystem   Scope = "system"
)

// ParseScope normalizes a scope string; the empty string maps to compile.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case "":
		return ScopeCompile, nil
	case ScopeCompile, ScopeRuntime, ScopeProvided, ScopeTest, ScopeSystem:
		return sc, nil
	default:
		return "", errors.New(errors.ErrCodeParse, "unknown dependency scope %q", s)
	}
}

func (s Scope) rank() int {
	switch s {
	case ScopeCompile, "":
		return 4
	case ScopeRuntime:
		return 3
	case ScopeProvided:
		return 2
	case ScopeSystem:
		return 1
	default:
		return 0
	}
}

// Wider reports whether s makes an artifact available in more places than o.
// The order is compile > runtime > provided > system > test.
func (s Scope) Wider(o Scope) bool { return s.rank() > o.rank() }

// Derive returns the effective scope of a dependency declared with scope s
// when it is reached through an edge of scope parent. The result is never
// wider than parent:
//
//	parent \ child | compile  runtime  provided test system
//	compile        | compile  runtime  provided test system
//	runtime        | runtime  runtime  runtime  test system
//	provided       | provided provided provided test system
//	test           | test     test     test     test system
//
// A root dependency has an empty parent and keeps its own scope.
func (s Scope) Derive(parent Scope) Scope {
	if s == "" {
		s = ScopeCompile
	}
	switch {
	case s == ScopeSystem || s == ScopeTest:
		return s
	case parent == "" || parent == ScopeCompile:
		return s
	case parent == ScopeTest || parent == ScopeRuntime:
		return parent
	case parent == ScopeSystem || parent == ScopeProvided:
		return ScopeProvided
	default:
		return ScopeRuntime
	}
}

// Classpath reports whether artifacts in this scope belong on a runtime
// classpath.
func (s Scope) Classpath() bool {
	return s == ScopeCompile || s == ScopeRuntime || s == ""
}

// Dependency is a coordinate together with how it is used.
type Dependency struct {
	Coordinate
	Scope    Scope
	Optional bool
}

// ParseDependency parses a coordinate string into a runtime-scoped
// dependency, the scope given to coordinates listed directly by a host.
func ParseDependency(s, typ string) (Dependency, error) {
	c, err := ParseWithType(s, typ)
	if err != nil {
		return Dependency{}, err
	}
	return Dependency{Coordinate: c, Scope: ScopeRuntime}, nil
}

// ParseDependencies parses every string of coords, stopping at the first error.
func ParseDependencies(coords []string, typ string) ([]Dependency, error) {
	deps := make([]Dependency, 0, len(coords))
	for _, s := range coords {
		d, err := ParseDependency(s, typ)
		if err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, nil
}
