package cfg

import (
	"github.com/reschivon/autoforge/pkg/pyast"
)

// Order locates a statement: the chunk it lives in and its index there.
type Order struct {
	Chunk int
	Index int
}

// Statement wraps a tree statement with its analysis sets.
type Statement struct {
	Node  pyast.Stmt
	Order Order

	Gens  DefSet
	Kills DefSet
	Ins   DefSet
	Outs  DefSet
	Uses  NameSet
	Deps  NodeSet
}

// IsPlaceholder reports whether s is a no-op inserted into an empty chunk.
func (s *Statement) IsPlaceholder() bool {
	c, ok := s.Node.(*pyast.Comment)
	return ok && c.Placeholder
}

// Chunk is a basic block: statements executed in sequence. A control-flow
// statement can only be the last statement of a chunk.
type Chunk struct {
	Order      int
	Kind       ChunkKind
	Statements []*Statement
}

// Append adds a statement at the end of the chunk.
func (c *Chunk) Append(n pyast.Stmt) *Statement {
	s := &Statement{
		Node:  n,
		Order: Order{Chunk: c.Order, Index: len(c.Statements)},
	}
	c.Statements = append(c.Statements, s)
	return s
}

// Last returns the final statement or nil when the chunk is empty.
func (c *Chunk) Last() *Statement {
	if len(c.Statements) == 0 {
		return nil
	}
	return c.Statements[len(c.Statements)-1]
}

// Terminator returns the trailing control-flow statement, if any.
func (c *Chunk) Terminator() *Statement {
	last := c.Last()
	if last != nil && pyast.IsControlFlow(last.Node) {
		return last
	}
	return nil
}

// EndsInControlFlow reports whether the chunk ends in an if or loop.
func (c *Chunk) EndsInControlFlow() bool {
	return c.Terminator() != nil
}

// Renumber resets statement indices to their current positions.
func (c *Chunk) Renumber() {
	for i, s := range c.Statements {
		s.Order = Order{Chunk: c.Order, Index: i}
	}
}

// NewPlaceholder returns the no-op statement used to fill empty chunks.
func NewPlaceholder() *pyast.Comment {
	return &pyast.Comment{
		StmtBase:    pyast.StmtBase{Span: pyast.Span{Text: "# placeholder"}},
		Placeholder: true,
	}
}
