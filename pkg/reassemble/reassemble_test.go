package reassemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reschivon/autoforge/pkg/cfg"
	"github.com/reschivon/autoforge/pkg/dfg"
	"github.com/reschivon/autoforge/pkg/pyast"
)

const roundTrip = `import os


def f(xs, n):
    # running total
    total = 0
    for x in xs:
        if x > n:
            total += x
        elif x < 0:
            continue
        else:
            pass
    else:
        total -= 1
    while total > 100:
        total //= 2

    def helper(v):
        """Add the total."""
        return v + total
    return helper(total)


class C:
    def m(self):
        if self.x:
            return self.x
        return None
`

func program(t *testing.T, src string) *cfg.Program {
	t.Helper()
	m, err := pyast.Parse([]byte(src))
	require.NoError(t, err)
	p := cfg.Build(m, cfg.BuildOptions{})
	require.Empty(t, p.Skipped)
	require.Empty(t, dfg.AnalyzeProgram(p, nil))
	return p
}

// rebuild reassembles every def of p outermost first.
func rebuild(t *testing.T, p *cfg.Program, opts Options) *pyast.Module {
	t.Helper()
	m := p.Module
	for i := len(p.Graphs) - 1; i >= 0; i-- {
		g := p.Graphs[i]
		orig, ok := g.Func.(*pyast.FunctionDef)
		if !ok {
			continue
		}
		fn, err := Function(g, opts)
		require.NoError(t, err, g.Name())

		var found bool
		m, found = Substitute(m, orig, fn)
		require.True(t, found, g.Name())
	}
	return m
}

func TestFunctionRoundTrip(t *testing.T) {
	p := program(t, roundTrip)
	out := rebuild(t, p, Options{})
	assert.Equal(t, roundTrip, pyast.Print(out))
	assert.Equal(t, roundTrip, pyast.Print(p.Module), "original tree untouched")
}

func TestFunctionStripComments(t *testing.T) {
	p := program(t, `def f():
    """Doc."""
    # note
    a = 1
    if a:
        # only a comment
        pass
    return a
`)
	out := rebuild(t, p, Options{StripComments: true})
	assert.Equal(t, `def f():
    a = 1
    if a:
        pass
    return a
`, pyast.Print(out))
}

func TestFunctionEmptyBranchPrintsPass(t *testing.T) {
	p := program(t, `def f(a):
    if a:
        "todo"
    else:
        a = 2
    return a
`)
	out := rebuild(t, p, Options{StripComments: true})
	assert.Equal(t, `def f(a):
    if a:
        pass
    else:
        a = 2
    return a
`, pyast.Print(out))
}

func TestFunctionFollowsChunkOrder(t *testing.T) {
	p := program(t, `def f():
    a = 1
    b = 2
    for i in range(3):
        c = i
        d = i
    return a
`)
	g := p.Graphs[0]
	entry := g.Entry.Statements
	entry[0], entry[1] = entry[1], entry[0]
	body := g.Chunk(2).Statements
	body[0], body[1] = body[1], body[0]

	fn, err := Function(g, Options{})
	require.NoError(t, err)
	assert.Equal(t, `def f():
    b = 2
    a = 1
    for i in range(3):
        d = i
        c = i
    return a
`, pyast.PrintStmt(fn))
}

func TestFunctionRejectsUnreachableChunk(t *testing.T) {
	p := program(t, "def f():\n    return 1\n")
	g := p.Graphs[0]
	g.NewChunk(cfg.KindJoin).Append(cfg.NewPlaceholder())

	_, err := Function(g, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, cfg.ErrInternal)
}

func TestFunctionRejectsLambda(t *testing.T) {
	p := program(t, "def f(xs):\n    return map(lambda x: x, xs)\n")
	require.Equal(t, "<lambda>", p.Graphs[0].Name())

	_, err := Function(p.Graphs[0], Options{})
	assert.ErrorIs(t, err, cfg.ErrInternal)
}

func TestSubstitute(t *testing.T) {
	m, err := pyast.Parse([]byte(`class A:
    if FLAG:
        def f():
            return 1
`))
	require.NoError(t, err)

	cls := m.Body[0].(*pyast.ClassDef)
	orig := cls.Body[0].(*pyast.If).Body[0].(*pyast.FunctionDef)
	repl := *orig
	repl.Body = nil

	out, ok := Substitute(m, orig, &repl)
	require.True(t, ok)
	assert.NotSame(t, m, out)
	assert.Equal(t, `class A:
    if FLAG:
        def f():
            pass
`, pyast.Print(out))
	assert.Same(t, orig, cls.Body[0].(*pyast.If).Body[0], "input unchanged")

	same, ok := Substitute(m, &pyast.Pass{}, &repl)
	assert.False(t, ok)
	assert.Same(t, m, same)
}
