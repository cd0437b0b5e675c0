package cfg

import (
	"fmt"

	"github.com/reschivon/autoforge/pkg/pyast"
)

// Graph is the chunk graph of one function. Chunks live in an arena indexed
// by their order; edges are ordered index lists, and the insertion order of a
// chunk's children is significant to the reassembler.
type Graph struct {
	Func  pyast.Functional
	Entry *Chunk

	// Captures holds names read but not defined in the function. It is nil
	// until the graph has been analyzed.
	Captures NameSet

	chunks   []*Chunk
	children [][]int
	parents  [][]int
}

// NewGraph creates a graph for fn with an empty entry chunk.
func NewGraph(fn pyast.Functional) *Graph {
	g := &Graph{Func: fn}
	g.Entry = g.NewChunk(KindEntry)
	return g
}

// Name returns the function name.
func (g *Graph) Name() string { return g.Func.FuncName() }

// NewChunk appends an empty chunk. Orders strictly increase.
func (g *Graph) NewChunk(kind ChunkKind) *Chunk {
	c := &Chunk{Order: len(g.chunks), Kind: kind}
	g.chunks = append(g.chunks, c)
	g.children = append(g.children, nil)
	g.parents = append(g.parents, nil)
	return c
}

// AddEdge links from to to. Both chunks must belong to g.
func (g *Graph) AddEdge(from, to *Chunk) error {
	if !g.owns(from) || !g.owns(to) {
		return fmt.Errorf("adding edge in %s: chunk from another graph: %w", g.Name(), ErrInternal)
	}
	g.children[from.Order] = append(g.children[from.Order], to.Order)
	g.parents[to.Order] = append(g.parents[to.Order], from.Order)
	return nil
}

func (g *Graph) owns(c *Chunk) bool {
	return c != nil && c.Order >= 0 && c.Order < len(g.chunks) && g.chunks[c.Order] == c
}

// Len returns the number of chunks.
func (g *Graph) Len() int { return len(g.chunks) }

// Chunk returns the chunk with the given order.
func (g *Graph) Chunk(order int) *Chunk {
	if order < 0 || order >= len(g.chunks) {
		return nil
	}
	return g.chunks[order]
}

// Chunks returns all chunks in order.
func (g *Graph) Chunks() []*Chunk { return g.chunks }

// Children returns the successors of c in insertion order.
func (g *Graph) Children(c *Chunk) []*Chunk {
	return g.resolve(g.children[c.Order])
}

// Parents returns the predecessors of c in insertion order.
func (g *Graph) Parents(c *Chunk) []*Chunk {
	return g.resolve(g.parents[c.Order])
}

func (g *Graph) resolve(idx []int) []*Chunk {
	out := make([]*Chunk, len(idx))
	for i, o := range idx {
		out[i] = g.chunks[o]
	}
	return out
}

// Statements returns every statement in chunk order.
func (g *Graph) Statements() []*Statement {
	var out []*Statement
	for _, c := range g.chunks {
		out = append(out, c.Statements...)
	}
	return out
}

// Program is the result of building every function in a module.
type Program struct {
	Module *pyast.Module

	// Graphs lists function graphs with nested functions before the
	// functions that enclose them.
	Graphs []*Graph

	// Skipped lists top-level definitions that could not be built.
	Skipped []Skip

	byFunc map[pyast.Functional]*Graph
}

// Skip records a definition left untouched and why.
type Skip struct {
	Name string
	Line int
	Err  error
}

func newProgram(m *pyast.Module) *Program {
	return &Program{Module: m, byFunc: make(map[pyast.Functional]*Graph)}
}

func (p *Program) add(g *Graph) {
	p.Graphs = append(p.Graphs, g)
	p.byFunc[g.Func] = g
}

// Graph returns the graph built for fn.
func (p *Program) Graph(fn pyast.Functional) (*Graph, bool) {
	g, ok := p.byFunc[fn]
	return g, ok
}

// Captures returns the captures of fn's graph. It reports false when fn has
// no graph or its graph has not been analyzed yet.
func (p *Program) Captures(fn pyast.Functional) (NameSet, bool) {
	g, ok := p.byFunc[fn]
	if !ok || g.Captures == nil {
		return nil, false
	}
	return g.Captures, true
}
