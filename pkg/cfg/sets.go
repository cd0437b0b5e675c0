package cfg

import (
	"fmt"
	"sort"

	"github.com/reschivon/autoforge/pkg/pyast"
)

// Def is one definition: a name bound by a node. Parameters are defined by
// their function node.
type Def struct {
	Name string
	Node pyast.Node
}

func (d Def) String() string {
	if d.Node == nil {
		return d.Name
	}
	return fmt.Sprintf("%s@%d", d.Name, d.Node.Position())
}

// DefSet is a set of definitions.
type DefSet map[Def]struct{}

// NewDefSet returns a set holding defs.
func NewDefSet(defs ...Def) DefSet {
	s := make(DefSet, len(defs))
	for _, d := range defs {
		s[d] = struct{}{}
	}
	return s
}

func (s DefSet) Add(d Def)      { s[d] = struct{}{} }
func (s DefSet) Has(d Def) bool { _, ok := s[d]; return ok }
func (s DefSet) AddAll(other DefSet) {
	for d := range other {
		s[d] = struct{}{}
	}
}

// Clone returns a copy of s.
func (s DefSet) Clone() DefSet {
	out := make(DefSet, len(s))
	for d := range s {
		out[d] = struct{}{}
	}
	return out
}

// Equal reports whether s and other hold the same definitions.
func (s DefSet) Equal(other DefSet) bool {
	if len(s) != len(other) {
		return false
	}
	for d := range s {
		if _, ok := other[d]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the definitions ordered by name, then line.
func (s DefSet) Sorted() []Def {
	out := make([]Def, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return line(out[i].Node) < line(out[j].Node)
	})
	return out
}

// Strings returns the sorted definitions formatted as name@line.
func (s DefSet) Strings() []string {
	defs := s.Sorted()
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.String()
	}
	return out
}

// NameSet is a set of (possibly dotted) names.
type NameSet map[string]struct{}

// NewNameSet returns a set holding names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s NameSet) Add(name string)      { s[name] = struct{}{} }
func (s NameSet) Has(name string) bool { _, ok := s[name]; return ok }
func (s NameSet) AddAll(other NameSet) {
	for n := range other {
		s[n] = struct{}{}
	}
}

// Sorted returns the names in lexical order.
func (s NameSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NodeSet is a set of tree nodes, compared by identity.
type NodeSet map[pyast.Node]struct{}

func (s NodeSet) Add(n pyast.Node)      { s[n] = struct{}{} }
func (s NodeSet) Has(n pyast.Node) bool { _, ok := s[n]; return ok }
func (s NodeSet) Remove(n pyast.Node)   { delete(s, n) }

// Clone returns a copy of s.
func (s NodeSet) Clone() NodeSet {
	out := make(NodeSet, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// Lines returns the sorted start lines of the nodes in s.
func (s NodeSet) Lines() []int {
	out := make([]int, 0, len(s))
	for n := range s {
		out = append(out, n.Position())
	}
	sort.Ints(out)
	return out
}

func line(n pyast.Node) int {
	if n == nil {
		return 0
	}
	return n.Position()
}
