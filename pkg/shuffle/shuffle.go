// Package shuffle randomly reorders the statements of each chunk of an
// analyzed graph while keeping every dependency satisfied.
package shuffle

import (
	"fmt"
	"math/rand/v2"

	"github.com/reschivon/autoforge/pkg/cfg"
	"github.com/reschivon/autoforge/pkg/pyast"
)

// NewRand returns the generator Shuffle expects for a seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Shuffle reorders statements inside every chunk of g. The graph must have
// been analyzed. Dependencies pointing forward in the original order are
// inverted first, so afterwards every statement depends only on statements
// placed before it. A chunk's trailing if or loop always stays last.
//
// Statement orders are renumbered; the inverted Deps sets are kept.
func Shuffle(g *cfg.Graph, rng *rand.Rand) error {
	byNode := index(g)
	invert(g, byNode)

	placed := cfg.NodeSet{}
	for _, c := range g.Chunks() {
		stmts := c.Statements
		term := c.Terminator()
		if term != nil {
			stmts = stmts[:len(stmts)-1]
		}

		order := make([]*cfg.Statement, 0, len(c.Statements))
		remaining := append([]*cfg.Statement(nil), stmts...)
		for len(remaining) > 0 {
			var ready []int
			for i, s := range remaining {
				if satisfied(s, placed, byNode) {
					ready = append(ready, i)
				}
			}
			if len(ready) == 0 {
				return fmt.Errorf("shuffling %s chunk %d: %d statements wait on each other: %w",
					g.Name(), c.Order, len(remaining), cfg.ErrInternal)
			}

			pick := ready[rng.IntN(len(ready))]
			s := remaining[pick]
			remaining = append(remaining[:pick], remaining[pick+1:]...)
			order = append(order, s)
			placed.Add(s.Node)
		}

		if term != nil {
			if !satisfied(term, placed, byNode) {
				return fmt.Errorf("shuffling %s chunk %d: terminator on line %d depends on a later statement: %w",
					g.Name(), c.Order, term.Node.Position(), cfg.ErrInternal)
			}
			order = append(order, term)
			placed.Add(term.Node)
		}

		c.Statements = order
		c.Renumber()
	}
	return nil
}

// Verify checks that every dependency of every statement is placed before
// it. It holds for any graph returned by Shuffle.
func Verify(g *cfg.Graph) error {
	byNode := index(g)
	for _, s := range g.Statements() {
		for d := range s.Deps {
			dep, ok := byNode[d]
			if !ok {
				continue
			}
			if !before(dep.Order, s.Order) {
				return fmt.Errorf("line %d placed before its dependency on line %d in %s: %w",
					s.Node.Position(), d.Position(), g.Name(), cfg.ErrInternal)
			}
		}
	}
	return nil
}

// index maps every statement node of g to its record.
func index(g *cfg.Graph) map[pyast.Node]*cfg.Statement {
	byNode := make(map[pyast.Node]*cfg.Statement)
	for _, s := range g.Statements() {
		byNode[s.Node] = s
	}
	return byNode
}

// invert turns every dependency on a later statement around. Such
// dependencies come from loop back edges; keeping both statements in their
// original relative order satisfies them.
func invert(g *cfg.Graph, byNode map[pyast.Node]*cfg.Statement) {
	type edge struct{ from, to *cfg.Statement }
	var flipped []edge

	for _, s := range g.Statements() {
		for d := range s.Deps {
			dep, ok := byNode[d]
			if !ok || dep == s {
				continue
			}
			if before(s.Order, dep.Order) {
				flipped = append(flipped, edge{from: s, to: dep})
			}
		}
	}
	for _, e := range flipped {
		e.from.Deps.Remove(e.to.Node)
		e.to.Deps.Add(e.from.Node)
	}
}

func satisfied(s *cfg.Statement, placed cfg.NodeSet, byNode map[pyast.Node]*cfg.Statement) bool {
	for d := range s.Deps {
		if _, inGraph := byNode[d]; inGraph && !placed.Has(d) {
			return false
		}
	}
	return true
}

func before(a, b cfg.Order) bool {
	if a.Chunk != b.Chunk {
		return a.Chunk < b.Chunk
	}
	return a.Index < b.Index
}
