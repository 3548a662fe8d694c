// Package version implements Maven version ordering and version ranges.
//
// Ordering follows Maven's ComparableVersion: a version string is split into
// numeric and qualifier items at '.', '-' and digit/letter transitions, trailing
// "null" items are dropped, and well-known qualifiers sort as
//
//	alpha < beta < milestone < rc = cr < snapshot < "" = ga = final = release < sp
//
// with unknown qualifiers sorting after sp, lexically among themselves.
package version

import (
	"strconv"
	"strings"
)

// Version is a parsed Maven version. The zero value is not useful; use [Parse].
type Version struct {
	raw   string
	items listItem
}

// Parse parses s. Every string is a valid Maven version, so Parse never fails.
func Parse(s string) Version {
	return Version{raw: s, items: parseItems(s)}
}

// String returns the version exactly as it was given to [Parse].
func (v Version) String() string { return v.raw }

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal to,
// or after o.
func (v Version) Compare(o Version) int {
	return v.items.compare(o.items)
}

// Compare parses and compares two version strings.
func Compare(a, b string) int {
	return Parse(a).Compare(Parse(b))
}

// IsSnapshot reports whether v names a snapshot version, either the
// "-SNAPSHOT" marker or a resolved timestamped snapshot.
func IsSnapshot(v string) bool {
	return strings.HasSuffix(v, "SNAPSHOT") || timestamped(v)
}

// timestamped matches the "-yyyyMMdd.HHmmss-N" suffix of deployed snapshots.
func timestamped(v string) bool {
	dash := strings.LastIndexByte(v, '-')
	if dash < 0 {
		return false
	}
	if _, err := strconv.Atoi(v[dash+1:]); err != nil {
		return false
	}
	rest := v[:dash]
	if len(rest) < 15 {
		return false
	}
	ts := rest[len(rest)-15:]
	return ts[8] == '.' && isDigits(ts[:8]) && isDigits(ts[9:])
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

type itemKind int

const (
	kindInt itemKind = iota
	kindString
	kindList
)

type item interface {
	kind() itemKind
	isNull() bool
	// compare orders the receiver against o; o may be nil.
	compare(o item) int
}

var qualifiers = []string{"alpha", "beta", "milestone", "rc", "snapshot", "", "sp"}

var qualifierAliases = map[string]string{
	"ga":      "",
	"final":   "",
	"release": "",
	"cr":      "rc",
}

// releaseIndex is the comparable form of the empty qualifier.
var releaseIndex = strconv.Itoa(indexOf(qualifiers, ""))

func indexOf(list []string, s string) int {
	for i, q := range list {
		if q == s {
			return i
		}
	}
	return -1
}

func comparableQualifier(q string) string {
	if i := indexOf(qualifiers, q); i >= 0 {
		return strconv.Itoa(i)
	}
	return strconv.Itoa(len(qualifiers)) + "-" + q
}

type intItem string

func newIntItem(s string) intItem {
	s = strings.TrimLeft(s, "0")
	return intItem(s)
}

func (i intItem) kind() itemKind { return kindInt }
func (i intItem) isNull() bool   { return i == "" }

func (i intItem) compare(o item) int {
	if o == nil {
		if i.isNull() {
			return 0
		}
		return 1
	}
	switch o.kind() {
	case kindInt:
		other := o.(intItem)
		if len(i) != len(other) {
			if len(i) < len(other) {
				return -1
			}
			return 1
		}
		return strings.Compare(string(i), string(other))
	default:
		return 1
	}
}

type stringItem string

func newStringItem(s string, followedByDigit bool) stringItem {
	if followedByDigit && len(s) == 1 {
		switch s[0] {
		case 'a':
			s = "alpha"
		case 'b':
			s = "beta"
		case 'm':
			s = "milestone"
		}
	}
	if alias, ok := qualifierAliases[s]; ok {
		s = alias
	}
	return stringItem(s)
}

func (s stringItem) kind() itemKind { return kindString }
func (s stringItem) isNull() bool   { return comparableQualifier(string(s)) == releaseIndex }

func (s stringItem) compare(o item) int {
	if o == nil {
		return strings.Compare(comparableQualifier(string(s)), releaseIndex)
	}
	switch o.kind() {
	case kindInt:
		return -1
	case kindString:
		return strings.Compare(comparableQualifier(string(s)), comparableQualifier(string(o.(stringItem))))
	default:
		return -1
	}
}

type listItem []item

func (l listItem) kind() itemKind { return kindList }
func (l listItem) isNull() bool   { return len(l) == 0 }

func (l listItem) compare(o item) int {
	if o == nil {
		if len(l) == 0 {
			return 0
		}
		return l[0].compare(nil)
	}
	switch o.kind() {
	case kindInt:
		return -1
	case kindString:
		return 1
	}
	other := o.(listItem)
	for i := 0; i < len(l) || i < len(other); i++ {
		var left, right item
		if i < len(l) {
			left = l[i]
		}
		if i < len(other) {
			right = other[i]
		}
		var result int
		if left == nil {
			if right != nil {
				result = -right.compare(nil)
			}
		} else {
			result = left.compare(right)
		}
		if result != 0 {
			return result
		}
	}
	return 0
}

func normalize(l listItem) listItem {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].isNull() {
			l = append(l[:i], l[i+1:]...)
		} else if l[i].kind() != kindList {
			break
		}
	}
	return l
}

// listBuilder tracks nested lists during parsing. Lists are value slices, so
// children are attached to their parent only once they are complete.
type listBuilder struct {
	stack []listItem
}

func (b *listBuilder) add(it item) {
	top := len(b.stack) - 1
	b.stack[top] = append(b.stack[top], it)
}

func (b *listBuilder) push() {
	b.stack = append(b.stack, nil)
}

func (b *listBuilder) finish() listItem {
	for len(b.stack) > 1 {
		top := normalize(b.stack[len(b.stack)-1])
		b.stack = b.stack[:len(b.stack)-1]
		b.add(top)
	}
	return normalize(b.stack[0])
}

func parseItem(digit bool, s string) item {
	if digit {
		return newIntItem(s)
	}
	return newStringItem(s, false)
}

func parseItems(v string) listItem {
	v = strings.ToLower(v)
	b := &listBuilder{stack: []listItem{nil}}

	isDigit := false
	start := 0
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c == '.':
			if i == start {
				b.add(intItem(""))
			} else {
				b.add(parseItem(isDigit, v[start:i]))
			}
			start = i + 1
		case c == '-':
			if i == start {
				b.add(intItem(""))
			} else {
				b.add(parseItem(isDigit, v[start:i]))
			}
			start = i + 1
			b.push()
		case c >= '0' && c <= '9':
			if !isDigit && i > start {
				b.add(newStringItem(v[start:i], true))
				start = i
				b.push()
			}
			isDigit = true
		default:
			if isDigit && i > start {
				b.add(parseItem(true, v[start:i]))
				start = i
				b.push()
			}
			isDigit = false
		}
	}
	if len(v) > start {
		b.add(parseItem(isDigit, v[start:]))
	}
	return b.finish()
}
