// Package reassemble turns shuffled chunk graphs back into statement trees
// and swaps rebuilt functions into a module.
package reassemble

import (
	"fmt"

	"github.com/reschivon/autoforge/pkg/cfg"
	"github.com/reschivon/autoforge/pkg/pyast"
)

// Options configures Function.
type Options struct {
	// StripComments drops comment lines and bare string statements.
	StripComments bool
}

// Function rebuilds the body of g's function from its chunks. Placeholders
// are dropped. The original definition is left untouched; the result is a
// copy with a new body.
func Function(g *cfg.Graph, opts Options) (*pyast.FunctionDef, error) {
	fn, ok := g.Func.(*pyast.FunctionDef)
	if !ok {
		return nil, fmt.Errorf("reassembling %s: not a def: %w", g.Name(), cfg.ErrInternal)
	}

	w := &walker{g: g, opts: opts, visited: make(map[int]bool)}
	body, err := w.walk(g.Entry)
	if err != nil {
		return nil, fmt.Errorf("reassembling %s: %w", g.Name(), err)
	}
	for _, c := range g.Chunks() {
		if !w.visited[c.Order] {
			return nil, fmt.Errorf("reassembling %s: chunk %d never reached: %w", g.Name(), c.Order, cfg.ErrInternal)
		}
	}

	out := *fn
	out.Body = body
	return &out, nil
}

type walker struct {
	g       *cfg.Graph
	opts    Options
	visited map[int]bool
}

// walk emits statements from c onward until it runs out of chunks or
// reaches a visited one.
func (w *walker) walk(c *cfg.Chunk) ([]pyast.Stmt, error) {
	var out []pyast.Stmt
	for c != nil && !w.visited[c.Order] {
		w.visited[c.Order] = true

		term := c.Terminator()
		for _, s := range c.Statements {
			if s != term && w.keep(s) {
				out = append(out, s.Node)
			}
		}

		kids := w.g.Children(c)
		if term == nil {
			switch len(kids) {
			case 0:
				c = nil
			case 1:
				c = kids[0]
			default:
				return nil, fmt.Errorf("chunk %d branches without a control statement: %w", c.Order, cfg.ErrInternal)
			}
			continue
		}

		var (
			stmt pyast.Stmt
			next *cfg.Chunk
			err  error
		)
		switch n := term.Node.(type) {
		case *pyast.If:
			stmt, next, err = w.ifStmt(c, n, kids)
		case *pyast.While:
			stmt, next, err = w.loop(c, n, kids)
		case *pyast.For:
			stmt, next, err = w.loop(c, n, kids)
		default:
			err = fmt.Errorf("chunk %d ends in %s: %w", c.Order, term.Node.Kind(), cfg.ErrInternal)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
		c = next
	}
	return out, nil
}

func (w *walker) keep(s *cfg.Statement) bool {
	if s.IsPlaceholder() {
		return false
	}
	if w.opts.StripComments {
		if _, ok := s.Node.(*pyast.Comment); ok || pyast.IsDocString(s.Node) {
			return false
		}
	}
	return true
}

// ifStmt rebuilds n. The join is held visited while the branches are walked
// so both stop there; the walk then continues at the join.
func (w *walker) ifStmt(c *cfg.Chunk, n *pyast.If, kids []*cfg.Chunk) (pyast.Stmt, *cfg.Chunk, error) {
	if len(kids) != 2 {
		return nil, nil, fmt.Errorf("if on line %d has %d successors: %w", n.Position(), len(kids), cfg.ErrInternal)
	}
	join, err := cfg.FindIfJoinPoint(w.g, c)
	if err != nil {
		return nil, nil, err
	}

	w.visited[join.Order] = true
	body, err := w.walk(kids[0])
	if err != nil {
		return nil, nil, err
	}
	var orelse []pyast.Stmt
	if kids[1] != join {
		if orelse, err = w.walk(kids[1]); err != nil {
			return nil, nil, err
		}
	}
	w.visited[join.Order] = false

	out := *n
	out.Body, out.Orelse = body, orelse
	return &out, join, nil
}

// loop rebuilds a while or for loop. Base children are body, orelse when
// present, then the chunk after the loop.
func (w *walker) loop(c *cfg.Chunk, n pyast.Stmt, kids []*cfg.Chunk) (pyast.Stmt, *cfg.Chunk, error) {
	if len(kids) != 2 && len(kids) != 3 {
		return nil, nil, fmt.Errorf("loop on line %d has %d successors: %w", n.Position(), len(kids), cfg.ErrInternal)
	}

	body, err := w.walk(kids[0])
	if err != nil {
		return nil, nil, err
	}
	var orelse []pyast.Stmt
	if len(kids) == 3 {
		if orelse, err = w.walk(kids[1]); err != nil {
			return nil, nil, err
		}
	}
	next := kids[len(kids)-1]

	switch l := n.(type) {
	case *pyast.While:
		out := *l
		out.Body, out.Orelse = body, orelse
		return &out, next, nil
	case *pyast.For:
		out := *l
		out.Body, out.Orelse = body, orelse
		return &out, next, nil
	}
	return nil, nil, fmt.Errorf("chunk %d: %s is not a loop: %w", c.Order, n.Kind(), cfg.ErrInternal)
}
