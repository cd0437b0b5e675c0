package cfg

import (
	"fmt"
)

// FindIfJoinPoint returns the chunk where the branches of the if statement
// ending branch merge again.
//
// Chunks are scanned in creation order, tracking how deeply each one is
// nested below branch. Only parents created before a chunk are counted, which
// ignores loop back edges. A chunk with two such parents closes a region and
// sits one level above the deeper of them; a chunk entered from an if or loop
// statement sits one level below its parent, except a loop's gather, which
// is level with its loop base. The first chunk back at level zero is the
// join.
func FindIfJoinPoint(g *Graph, branch *Chunk) (*Chunk, error) {
	if !g.owns(branch) {
		return nil, fmt.Errorf("finding join point: chunk from another graph: %w", ErrInternal)
	}
	if term := branch.Terminator(); term == nil || term.Node.Kind() != "if" {
		return nil, fmt.Errorf("finding join point: chunk %d does not end in an if: %w", branch.Order, ErrInternal)
	}

	nesting := map[int]int{branch.Order: 0}
	for o := branch.Order + 1; o < g.Len(); o++ {
		c := g.chunks[o]

		var preceding []int
		for _, p := range g.parents[o] {
			if p >= branch.Order && p < o {
				preceding = append(preceding, p)
			}
		}

		var level int
		switch len(preceding) {
		case 0:
			return nil, fmt.Errorf("finding join point: chunk %d unreachable from chunk %d: %w", o, branch.Order, ErrInternal)
		case 1:
			p := g.chunks[preceding[0]]
			level = nesting[p.Order]
			if p.EndsInControlFlow() && !g.isGather(p, c) {
				level++
			}
		default:
			for _, p := range preceding {
				if nesting[p] > level {
					level = nesting[p]
				}
			}
			level--
		}

		switch {
		case level == 0:
			return c, nil
		case level < 0:
			return nil, fmt.Errorf("finding join point: chunk %d closes more regions than it opens: %w", o, ErrInternal)
		}
		nesting[o] = level
	}

	return nil, fmt.Errorf("finding join point for chunk %d: %w", branch.Order, ErrInternal)
}

// isGather reports whether c is the chunk following the loop held by base.
func (g *Graph) isGather(base, c *Chunk) bool {
	term := base.Terminator()
	if term == nil || !isLoop(term) {
		return false
	}
	kids := g.children[base.Order]
	return len(kids) > 0 && kids[len(kids)-1] == c.Order
}

func isLoop(s *Statement) bool {
	switch s.Node.Kind() {
	case "while", "for":
		return true
	}
	return false
}
