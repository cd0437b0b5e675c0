// Package cfg builds statement-level control flow graphs for Python
// functions and defines the report types used to serialize them.
package cfg

import (
	"github.com/reschivon/autoforge/pkg/pyast"
)

// ChunkKind labels the role a chunk plays in the graph.
type ChunkKind string

const (
	KindEntry    ChunkKind = "entry"     // Function entry point
	KindBranch   ChunkKind = "branch"    // Body of an if
	KindOrelse   ChunkKind = "orelse"    // Else body of an if or loop
	KindLoopBase ChunkKind = "loop_base" // Holds the loop statement
	KindLoopBody ChunkKind = "loop_body" // Loop body (for/while)
	KindJoin     ChunkKind = "join"      // Where if branches merge
	KindGather   ChunkKind = "gather"    // Code after a loop
)

// EdgeType represents the type of a CFG edge.
type EdgeType string

const (
	EdgeTypeUnconditional EdgeType = "unconditional" // Fallthrough
	EdgeTypeTrue          EdgeType = "true"          // Into an if or loop body
	EdgeTypeFalse         EdgeType = "false"         // Into an else body or past the statement
	EdgeTypeBackEdge      EdgeType = "back_edge"     // Back to a loop base
)

// StatementInfo is the serializable view of an analyzed statement.
type StatementInfo struct {
	Index int      `json:"index" msgpack:"index"`               // Position in the chunk
	Line  int      `json:"line" msgpack:"line"`                 // Source line
	Kind  string   `json:"kind" msgpack:"kind"`                 // Statement kind
	Text  string   `json:"text" msgpack:"text"`                 // First source line
	Gens  []string `json:"gens,omitempty" msgpack:"gens"`       // Generated definitions, name@line
	Kills []string `json:"kills,omitempty" msgpack:"kills"`     // Killed definitions
	Ins   []string `json:"ins,omitempty" msgpack:"ins"`         // Reaching definitions on entry
	Outs  []string `json:"outs,omitempty" msgpack:"outs"`       // Reaching definitions on exit
	Uses  []string `json:"uses,omitempty" msgpack:"uses"`       // Names read
	Deps  []int    `json:"deps_lines,omitempty" msgpack:"deps"` // Lines of statements this one depends on
}

// ChunkInfo is the serializable view of a chunk.
type ChunkInfo struct {
	Order      int             `json:"order" msgpack:"order"`           // Creation order
	Kind       ChunkKind       `json:"kind" msgpack:"kind"`             // Role in the graph
	StartLine  int             `json:"start_line" msgpack:"start_line"` // First statement line, 0 when empty
	EndLine    int             `json:"end_line" msgpack:"end_line"`     // Last statement line
	Statements []StatementInfo `json:"statements" msgpack:"statements"` // Statements in order
	Parents    []int           `json:"parents" msgpack:"parents"`       // Orders of predecessor chunks
	Children   []int           `json:"children" msgpack:"children"`     // Orders of successor chunks
}

// EdgeInfo represents a directed edge between two chunks.
type EdgeInfo struct {
	Source   int      `json:"source" msgpack:"source"`       // Order of the source chunk
	Target   int      `json:"target" msgpack:"target"`       // Order of the target chunk
	EdgeType EdgeType `json:"edge_type" msgpack:"edge_type"` // Type of edge
}

// GraphInfo represents the complete chunk graph for a function.
type GraphInfo struct {
	FunctionName         string      `json:"function_name" msgpack:"function_name"`                 // Name of the function
	Line                 int         `json:"line" msgpack:"line"`                                   // Definition line
	Chunks               []ChunkInfo `json:"chunks" msgpack:"chunks"`                               // Chunks by order
	Edges                []EdgeInfo  `json:"edges" msgpack:"edges"`                                 // List of edges in the graph
	Entry                int         `json:"entry" msgpack:"entry"`                                 // Order of the entry chunk
	Captures             []string    `json:"captures" msgpack:"captures"`                           // Names read from enclosing scopes
	CyclomaticComplexity int         `json:"cyclomatic_complexity" msgpack:"cyclomatic_complexity"` // Cyclomatic complexity of the function
}

// Info snapshots the graph and its analysis sets.
func (g *Graph) Info() *GraphInfo {
	info := &GraphInfo{
		FunctionName: g.Name(),
		Line:         g.Func.Position(),
		Entry:        g.Entry.Order,
		Captures:     g.Captures.Sorted(),
	}

	for _, c := range g.chunks {
		ci := ChunkInfo{
			Order:    c.Order,
			Kind:     c.Kind,
			Parents:  orders(g.Parents(c)),
			Children: orders(g.Children(c)),
		}
		for _, s := range c.Statements {
			ci.Statements = append(ci.Statements, statementInfo(s))
			if ci.StartLine == 0 {
				ci.StartLine = s.Node.Position()
			}
			ci.EndLine = s.Node.Position()
		}
		info.Chunks = append(info.Chunks, ci)

		for i, child := range g.Children(c) {
			info.Edges = append(info.Edges, EdgeInfo{
				Source:   c.Order,
				Target:   child.Order,
				EdgeType: g.edgeType(c, child, i),
			})
		}
	}

	info.CyclomaticComplexity = len(info.Edges) - len(info.Chunks) + 2
	if info.CyclomaticComplexity < 1 {
		info.CyclomaticComplexity = 1
	}
	return info
}

func (g *Graph) edgeType(from, to *Chunk, idx int) EdgeType {
	switch {
	case to.Order <= from.Order:
		return EdgeTypeBackEdge
	case !from.EndsInControlFlow():
		return EdgeTypeUnconditional
	case idx == 0:
		return EdgeTypeTrue
	default:
		return EdgeTypeFalse
	}
}

func statementInfo(s *Statement) StatementInfo {
	si := StatementInfo{
		Index: s.Order.Index,
		Line:  s.Node.Position(),
		Kind:  s.Node.Kind(),
		Text:  pyast.FirstLine(s.Node),
		Gens:  s.Gens.Strings(),
		Kills: s.Kills.Strings(),
		Ins:   s.Ins.Strings(),
		Outs:  s.Outs.Strings(),
		Uses:  s.Uses.Sorted(),
	}
	if len(s.Deps) > 0 {
		si.Deps = s.Deps.Lines()
	}
	return si
}

func orders(chunks []*Chunk) []int {
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = c.Order
	}
	return out
}
