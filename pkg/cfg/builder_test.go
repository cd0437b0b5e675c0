package cfg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reschivon/autoforge/pkg/pyast"
)

func build(t *testing.T, src string, opts BuildOptions) *Program {
	t.Helper()
	m, err := pyast.Parse([]byte(src))
	require.NoError(t, err)
	return Build(m, opts)
}

func kinds(g *Graph) []ChunkKind {
	var out []ChunkKind
	for _, c := range g.Chunks() {
		out = append(out, c.Kind)
	}
	return out
}

func TestBuildStraightLine(t *testing.T) {
	p := build(t, "def f(a):\n    b = a\n    return b\n", BuildOptions{})
	require.Len(t, p.Graphs, 1)

	g := p.Graphs[0]
	assert.Equal(t, "f", g.Name())
	assert.Equal(t, 1, g.Len())
	assert.Same(t, g.Entry, g.Chunk(0))
	assert.Len(t, g.Entry.Statements, 2)
	assert.Nil(t, g.Captures)
}

func TestBuildIfElse(t *testing.T) {
	p := build(t, `def f(x):
    y = 0
    if x:
        y = 1
    else:
        y = 2
        z = 3
    return y
`, BuildOptions{})
	g := p.Graphs[0]

	assert.Equal(t, []ChunkKind{KindEntry, KindBranch, KindOrelse, KindJoin}, kinds(g))
	assert.Equal(t, []int{1, 2}, orders(g.Children(g.Entry)))
	assert.Equal(t, []int{1, 2}, orders(g.Parents(g.Chunk(3))))
	assert.Len(t, g.Chunk(2).Statements, 2)

	term := g.Entry.Terminator()
	require.NotNil(t, term)
	assert.Equal(t, "if", term.Node.Kind())
	assert.Equal(t, Order{Chunk: 0, Index: 1}, term.Order)
}

func TestBuildIfWithoutElse(t *testing.T) {
	g := build(t, "def f(x):\n    if x:\n        y = 1\n    return x\n", BuildOptions{}).Graphs[0]

	assert.Equal(t, []ChunkKind{KindEntry, KindBranch, KindJoin}, kinds(g))
	assert.Equal(t, []int{1, 2}, orders(g.Children(g.Entry)), "body first, then join")
	assert.ElementsMatch(t, []int{0, 1}, orders(g.Parents(g.Chunk(2))))
}

func TestBuildLoops(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		kinds    []ChunkKind
		children []int
	}{
		{
			name:     "while",
			src:      "def f(x):\n    while x:\n        x -= 1\n    return x\n",
			kinds:    []ChunkKind{KindEntry, KindLoopBase, KindLoopBody, KindGather},
			children: []int{2, 3},
		},
		{
			name:     "for else",
			src:      "def f(xs):\n    for x in xs:\n        print(x)\n    else:\n        done()\n    return xs\n",
			kinds:    []ChunkKind{KindEntry, KindLoopBase, KindLoopBody, KindOrelse, KindGather},
			children: []int{2, 3, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(t, tt.src, BuildOptions{}).Graphs[0]
			assert.Equal(t, tt.kinds, kinds(g))

			base := g.Chunk(1)
			assert.Equal(t, tt.children, orders(g.Children(base)))
			assert.Contains(t, orders(g.Parents(base)), 2, "back edge from the body")
			assert.Len(t, base.Statements, 1)
			assert.NotNil(t, base.Terminator())
		})
	}
}

func TestBuildNestedFunctionsInnermostFirst(t *testing.T) {
	p := build(t, `def outer():
    def middle():
        def inner():
            return 1
        return inner
    return middle


class C:
    def method(self):
        pass


if DEBUG:
    def debug():
        pass
`, BuildOptions{})

	var names []string
	for _, g := range p.Graphs {
		names = append(names, g.Name())
	}
	assert.Equal(t, []string{"inner", "middle", "outer", "method", "debug"}, names)

	outer := p.Graphs[2]
	g, ok := p.Graph(outer.Func)
	assert.True(t, ok)
	assert.Same(t, outer, g)
}

func TestBuildLambdasGetGraphs(t *testing.T) {
	p := build(t, "def f(xs):\n    return sorted(xs, key=lambda v: -v)\n", BuildOptions{})
	require.Len(t, p.Graphs, 2)

	lam := p.Graphs[0]
	assert.Equal(t, "<lambda>", lam.Name())
	require.Len(t, lam.Entry.Statements, 1)
	assert.Equal(t, "-v", lam.Entry.Statements[0].Node.Source())
}

func TestBuildUnsupported(t *testing.T) {
	p := build(t, `def bad():
    try:
        pass
    except E:
        pass


def outer():
    def inner():
        with open(p) as fh:
            pass
    return inner


def good():
    return 1
`, BuildOptions{})

	require.Len(t, p.Skipped, 2)
	assert.Equal(t, "bad", p.Skipped[0].Name)
	assert.Equal(t, "outer", p.Skipped[1].Name, "failure propagates to the top-level definition")

	var unsupported *UnsupportedError
	require.True(t, errors.As(p.Skipped[0].Err, &unsupported))
	assert.Equal(t, "try_statement", unsupported.Kind)
	assert.Equal(t, 2, unsupported.Line)
	assert.ErrorIs(t, p.Skipped[1].Err, ErrUnsupported)
	assert.True(t, IsSkippable(p.Skipped[1].Err))

	require.Len(t, p.Graphs, 1)
	assert.Equal(t, "good", p.Graphs[0].Name())
}

func TestBuildDepthExceeded(t *testing.T) {
	src := `def f(a):
    if a:
        if a:
            if a:
                a = 1
`
	p := build(t, src, BuildOptions{MaxDepth: 3})
	require.Len(t, p.Skipped, 1)
	assert.ErrorIs(t, p.Skipped[0].Err, ErrDepthExceeded)

	p = build(t, src, BuildOptions{})
	assert.Empty(t, p.Skipped)
}

func TestAddEdgeRejectsForeignChunk(t *testing.T) {
	fn := &pyast.FunctionDef{Name: "f"}
	a, b := NewGraph(fn), NewGraph(fn)

	err := a.AddEdge(a.Entry, b.Entry)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternal)

	other := a.NewChunk(KindJoin)
	require.NoError(t, a.AddEdge(a.Entry, other))
	assert.Equal(t, []int{1}, orders(a.Children(a.Entry)))
	assert.Equal(t, []int{0}, orders(a.Parents(other)))
}

func TestInfo(t *testing.T) {
	g := build(t, "def f(x):\n    while x:\n        x -= 1\n    return x\n", BuildOptions{}).Graphs[0]
	info := g.Info()

	assert.Equal(t, "f", info.FunctionName)
	assert.Equal(t, 1, info.Line)
	assert.Len(t, info.Chunks, 4)
	assert.Equal(t, 2, info.CyclomaticComplexity)

	types := map[EdgeType]int{}
	for _, e := range info.Edges {
		types[e.EdgeType]++
	}
	assert.Equal(t, map[EdgeType]int{
		EdgeTypeUnconditional: 1,
		EdgeTypeTrue:          1,
		EdgeTypeFalse:         1,
		EdgeTypeBackEdge:      1,
	}, types)
	assert.Equal(t, "while x:", info.Chunks[1].Statements[0].Text)
}
