package cfg

import (
	"errors"
	"fmt"

	"github.com/reschivon/autoforge/internal/log"
	"github.com/reschivon/autoforge/pkg/pyast"
)

// DefaultMaxDepth is the default limit on statement nesting.
const DefaultMaxDepth = 13

// BuildOptions configures Build.
type BuildOptions struct {
	MaxDepth int        // nesting limit, DefaultMaxDepth when zero
	Logger   log.Logger // defaults to a discarding logger
}

// builder walks a module and builds one graph per function.
type builder struct {
	prog     *Program
	maxDepth int
	log      log.Logger
}

// Build builds chunk graphs for every function in m. A definition that
// cannot be built is recorded in Program.Skipped and the walk moves on to
// the next definition.
func Build(m *pyast.Module, opts BuildOptions) *Program {
	b := &builder{
		prog:     newProgram(m),
		maxDepth: opts.MaxDepth,
		log:      opts.Logger,
	}
	if b.maxDepth <= 0 {
		b.maxDepth = DefaultMaxDepth
	}
	if b.log == nil {
		b.log = log.Discard()
	}

	b.scope(m.Body)
	return b.prog
}

// scope looks for functions in module or class level statements. These
// statements contribute no chunks.
func (b *builder) scope(stmts []pyast.Stmt) {
	for _, s := range stmts {
		switch n := s.(type) {
		case *pyast.FunctionDef:
			if _, err := b.function(n, 0); err != nil {
				b.skip(n.Name, n.Position(), err)
			}
		case *pyast.ClassDef:
			b.scope(n.Body)
		case *pyast.If:
			b.scope(n.Body)
			b.scope(n.Orelse)
		case *pyast.While:
			b.scope(n.Body)
			b.scope(n.Orelse)
		case *pyast.For:
			b.scope(n.Body)
			b.scope(n.Orelse)
		}
	}
}

func (b *builder) skip(name string, line int, err error) {
	b.log.Warn("skipping function", "name", name, "line", line, "error", err)
	b.prog.Skipped = append(b.prog.Skipped, Skip{Name: name, Line: line, Err: err})
}

// function builds the graph of fn and appends it after any nested graphs.
func (b *builder) function(fn pyast.Functional, depth int) (*Graph, error) {
	b.log.Debug("building function", "name", fn.FuncName(), "line", fn.Position(), "depth", depth)

	g := NewGraph(fn)
	switch f := fn.(type) {
	case *pyast.FunctionDef:
		if _, err := b.body(g, g.Entry, f.Body, depth+1); err != nil {
			return nil, fmt.Errorf("building %s: %w", f.Name, err)
		}
	case *pyast.Lambda:
		body := pyast.NewExprStmt(f.Body)
		if _, err := b.stmt(g, g.Entry, body, depth+1); err != nil {
			return nil, fmt.Errorf("building lambda at line %d: %w", f.Position(), err)
		}
	default:
		return nil, fmt.Errorf("building %T: %w", fn, ErrInternal)
	}

	b.prog.add(g)
	return g, nil
}

// body appends stmts starting at cur and returns the chunk control leaves from.
func (b *builder) body(g *Graph, cur *Chunk, stmts []pyast.Stmt, depth int) (*Chunk, error) {
	var err error
	for _, s := range stmts {
		cur, err = b.stmt(g, cur, s, depth)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func (b *builder) stmt(g *Graph, cur *Chunk, s pyast.Stmt, depth int) (*Chunk, error) {
	if depth > b.maxDepth {
		return nil, fmt.Errorf("line %d at depth %d: %w", s.Position(), depth, ErrDepthExceeded)
	}
	b.log.Debug("adding statement", "kind", s.Kind(), "line", s.Position(), "chunk", cur.Order, "depth", depth)

	// Lambdas get their graphs before the statement using them so their
	// captures are known when the enclosing function is analyzed.
	for _, l := range pyast.Lambdas(s) {
		if _, err := b.function(l, depth); err != nil {
			return nil, err
		}
	}

	switch n := s.(type) {
	case *pyast.If:
		return b.ifStmt(g, cur, n, depth)
	case *pyast.While:
		return b.loop(g, cur, n, n.Body, n.Orelse, depth)
	case *pyast.For:
		return b.loop(g, cur, n, n.Body, n.Orelse, depth)
	case *pyast.FunctionDef:
		if _, err := b.function(n, depth); err != nil {
			return nil, err
		}
		cur.Append(n)
		return cur, nil
	case *pyast.Opaque:
		return nil, &UnsupportedError{Kind: n.Type, Line: n.Position()}
	}

	cur.Append(s)
	return cur, nil
}

// ifStmt creates the body region, the orelse region and then the join, so
// creation order follows nesting.
func (b *builder) ifStmt(g *Graph, cur *Chunk, n *pyast.If, depth int) (*Chunk, error) {
	cur.Append(n)

	body := g.NewChunk(KindBranch)
	if err := g.AddEdge(cur, body); err != nil {
		return nil, err
	}
	bodyExit, err := b.body(g, body, n.Body, depth+1)
	if err != nil {
		return nil, err
	}

	var orelseExit *Chunk
	if len(n.Orelse) > 0 {
		orelse := g.NewChunk(KindOrelse)
		if err := g.AddEdge(cur, orelse); err != nil {
			return nil, err
		}
		if orelseExit, err = b.body(g, orelse, n.Orelse, depth+1); err != nil {
			return nil, err
		}
	}

	join := g.NewChunk(KindJoin)
	if orelseExit == nil {
		if err := g.AddEdge(cur, join); err != nil {
			return nil, err
		}
	}
	if err := g.AddEdge(bodyExit, join); err != nil {
		return nil, err
	}
	if orelseExit != nil {
		if err := g.AddEdge(orelseExit, join); err != nil {
			return nil, err
		}
	}
	return join, nil
}

// loop gives the loop statement its own base chunk. Children of the base are
// ordered body, orelse (when present), gather.
func (b *builder) loop(g *Graph, cur *Chunk, n pyast.Stmt, body, orelse []pyast.Stmt, depth int) (*Chunk, error) {
	base := g.NewChunk(KindLoopBase)
	if err := g.AddEdge(cur, base); err != nil {
		return nil, err
	}
	base.Append(n)

	entry := g.NewChunk(KindLoopBody)
	if err := g.AddEdge(base, entry); err != nil {
		return nil, err
	}
	exit, err := b.body(g, entry, body, depth+1)
	if err != nil {
		return nil, err
	}
	if err := g.AddEdge(exit, base); err != nil {
		return nil, err
	}

	if len(orelse) > 0 {
		oe := g.NewChunk(KindOrelse)
		if err := g.AddEdge(base, oe); err != nil {
			return nil, err
		}
		oeExit, err := b.body(g, oe, orelse, depth+1)
		if err != nil {
			return nil, err
		}
		if err := g.AddEdge(oeExit, base); err != nil {
			return nil, err
		}
	}

	gather := g.NewChunk(KindGather)
	if err := g.AddEdge(base, gather); err != nil {
		return nil, err
	}
	return gather, nil
}

// IsSkippable reports whether err is a per-function failure that the driver
// can recover from by leaving the function unchanged.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrUnsupported) ||
		errors.Is(err, ErrDepthExceeded) ||
		errors.Is(err, ErrOrderingPrecondition) ||
		errors.Is(err, ErrInternal)
}
