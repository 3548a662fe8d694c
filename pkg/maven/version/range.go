package version

import (
	"fmt"
	"slices"
	"strings"
)

// Restriction is one bounded interval of a [Range]. An empty bound is open.
type Restriction struct {
	Lower          string
	LowerInclusive bool
	Upper          string
	UpperInclusive bool
}

// Contains reports whether v lies within the restriction.
func (r Restriction) Contains(v Version) bool {
	if r.Lower != "" {
		c := v.Compare(Parse(r.Lower))
		if c < 0 || (c == 0 && !r.LowerInclusive) {
			return false
		}
	}
	if r.Upper != "" {
		c := v.Compare(Parse(r.Upper))
		if c > 0 || (c == 0 && !r.UpperInclusive) {
			return false
		}
	}
	return true
}

func (r Restriction) String() string {
	var b strings.Builder
	if r.LowerInclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	if r.Lower != "" && r.Lower == r.Upper && r.LowerInclusive && r.UpperInclusive {
		b.WriteString(r.Lower)
		b.WriteByte(']')
		return b.String()
	}
	b.WriteString(r.Lower)
	b.WriteByte(',')
	b.WriteString(r.Upper)
	if r.UpperInclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// Range is a union of restrictions such as "[1.0,2.0),[3.0,)".
type Range struct {
	Restrictions []Restriction
}

// IsRange reports whether spec is a version range rather than a plain version.
func IsRange(spec string) bool {
	spec = strings.TrimSpace(spec)
	return strings.HasPrefix(spec, "[") || strings.HasPrefix(spec, "(")
}

// ParseRange parses a Maven version range specification.
func ParseRange(spec string) (Range, error) {
	rest := strings.TrimSpace(spec)
	if !IsRange(rest) {
		return Range{}, fmt.Errorf("version range %q must start with '[' or '('", spec)
	}

	var r Range
	for rest != "" {
		end := strings.IndexAny(rest, "])")
		if end < 0 {
			return Range{}, fmt.Errorf("unbounded version range %q", spec)
		}
		res, err := parseRestriction(rest[:end+1])
		if err != nil {
			return Range{}, fmt.Errorf("version range %q: %w", spec, err)
		}
		r.Restrictions = append(r.Restrictions, res)

		rest = strings.TrimSpace(rest[end+1:])
		rest = strings.TrimSpace(strings.TrimPrefix(rest, ","))
		if rest != "" && !IsRange(rest) {
			return Range{}, fmt.Errorf("version range %q: unexpected %q", spec, rest)
		}
	}
	return r, nil
}

func parseRestriction(spec string) (Restriction, error) {
	res := Restriction{
		LowerInclusive: spec[0] == '[',
		UpperInclusive: spec[len(spec)-1] == ']',
	}
	body := strings.TrimSpace(spec[1 : len(spec)-1])

	comma := strings.IndexByte(body, ',')
	if comma < 0 {
		if !res.LowerInclusive || !res.UpperInclusive || body == "" {
			return Restriction{}, fmt.Errorf("single version %q must be enclosed in []", spec)
		}
		res.Lower, res.Upper = body, body
		return res, nil
	}

	res.Lower = strings.TrimSpace(body[:comma])
	res.Upper = strings.TrimSpace(body[comma+1:])
	if strings.Contains(res.Upper, ",") {
		return Restriction{}, fmt.Errorf("invalid restriction %q", spec)
	}
	if res.Lower != "" && res.Upper != "" && Compare(res.Lower, res.Upper) > 0 {
		return Restriction{}, fmt.Errorf("lower bound exceeds upper bound in %q", spec)
	}
	return res, nil
}

// Contains reports whether v satisfies any restriction of the range.
func (r Range) Contains(v Version) bool {
	for _, res := range r.Restrictions {
		if res.Contains(v) {
			return true
		}
	}
	return false
}

func (r Range) String() string {
	parts := make([]string, len(r.Restrictions))
	for i, res := range r.Restrictions {
		parts[i] = res.String()
	}
	return strings.Join(parts, ",")
}

// Highest returns the highest of candidates contained in r, or false when none
// match. Snapshots are skipped unless allowSnapshots is set.
func Highest(candidates []string, r Range, allowSnapshots bool) (string, bool) {
	var best Version
	found := false
	for _, c := range candidates {
		if !allowSnapshots && IsSnapshot(c) {
			continue
		}
		v := Parse(c)
		if !r.Contains(v) {
			continue
		}
		if !found || v.Compare(best) > 0 {
			best = v
			found = true
		}
	}
	return best.String(), found
}

// Sort orders versions ascending in place, keeping equal versions in their
// original order.
func Sort(versions []string) {
	slices.SortStableFunc(versions, Compare)
}
