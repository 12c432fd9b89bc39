// Package datastore defines the schema-governed configuration store facade
// the adapter consumes: paths, change events, schema metadata, and an
// in-process implementation used by the daemon and tests.
package datastore

import (
	"fmt"
	"strings"
)

// Elem is one step of a schema path. List entries carry a key predicate:
// interface[name=Ethernet0_1] has Name "interface", KeyName "name" and
// Key "Ethernet0_1". Leaf-list entries use a bare predicate with an empty
// KeyName: trunk-vlans[100].
type Elem struct {
	Name    string
	KeyName string
	Key     string
}

// Path is a parsed schema path.
type Path []Elem

// ParsePath parses a slash-separated path with optional key predicates,
// e.g. "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu".
func ParsePath(s string) (Path, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}

	segs := strings.Split(s, "/")
	p := make(Path, 0, len(segs))
	for _, seg := range segs {
		e := Elem{Name: seg}
		if i := strings.IndexByte(seg, '['); i >= 0 {
			if !strings.HasSuffix(seg, "]") {
				return nil, fmt.Errorf("malformed predicate in %q", seg)
			}
			e.Name = seg[:i]
			pred := seg[i+1 : len(seg)-1]
			if j := strings.IndexByte(pred, '='); j >= 0 {
				e.KeyName = pred[:j]
				e.Key = strings.Trim(pred[j+1:], "'\"")
			} else {
				e.Key = strings.Trim(pred, "'\"")
			}
		}
		if e.Name == "" {
			return nil, fmt.Errorf("empty element in path %q", s)
		}
		p = append(p, e)
	}
	return p, nil
}

// MustParsePath parses a path and panics on error. For statically known paths.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String reconstitutes the canonical path form.
func (p Path) String() string {
	var sb strings.Builder
	for i, e := range p {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(e.Name)
		if e.Key != "" {
			if e.KeyName != "" {
				fmt.Fprintf(&sb, "[%s=%s]", e.KeyName, e.Key)
			} else {
				fmt.Fprintf(&sb, "[%s]", e.Key)
			}
		}
	}
	return sb.String()
}

// Shape returns the element names without key predicates. Handler dispatch
// and schema lookup are keyed by shape.
func (p Path) Shape() []string {
	names := make([]string, len(p))
	for i, e := range p {
		names[i] = e.Name
	}
	return names
}

// ShapeString returns the shape joined with slashes.
func (p Path) ShapeString() string {
	return strings.Join(p.Shape(), "/")
}

// KeyFor returns the key predicate value of the first element with the
// given name, or "" if absent.
func (p Path) KeyFor(name string) string {
	for _, e := range p {
		if e.Name == name {
			return e.Key
		}
	}
	return ""
}

// HasPrefix reports whether p starts with the given prefix path, matching
// key predicates where the prefix specifies them.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i, e := range prefix {
		if p[i].Name != e.Name {
			return false
		}
		if e.Key != "" && p[i].Key != e.Key {
			return false
		}
	}
	return true
}
