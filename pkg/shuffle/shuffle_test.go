package shuffle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reschivon/autoforge/pkg/cfg"
	"github.com/reschivon/autoforge/pkg/dfg"
	"github.com/reschivon/autoforge/pkg/pyast"
)

func analyzed(t *testing.T, src string) *cfg.Graph {
	t.Helper()
	m, err := pyast.Parse([]byte(src))
	require.NoError(t, err)
	p := cfg.Build(m, cfg.BuildOptions{})
	require.Empty(t, p.Skipped)
	require.Empty(t, dfg.AnalyzeProgram(p, nil))
	return p.Graphs[len(p.Graphs)-1]
}

// lines returns the statement lines of chunk c in their current order,
// placeholders as 0.
func lines(c *cfg.Chunk) []int {
	var out []int
	for _, s := range c.Statements {
		if s.IsPlaceholder() {
			out = append(out, 0)
			continue
		}
		out = append(out, s.Node.Position())
	}
	return out
}

const mixed = `def f(xs, n):
    total = 0
    count = 0
    label = str(n)
    for x in xs:
        a = x * 2
        b = x + 1
        total = total + a
        count += 1
        if total > n:
            print(label)
            break
    avg = total / count
    msg = label + str(avg)
    print(msg)
    return avg
`

func TestShuffleKeepsDependencies(t *testing.T) {
	for seed := uint64(0); seed < 200; seed++ {
		g := analyzed(t, mixed)
		require.NoError(t, Shuffle(g, NewRand(seed)), "seed %d", seed)
		require.NoError(t, Verify(g), "seed %d", seed)

		for _, c := range g.Chunks() {
			for i, s := range c.Statements {
				assert.Equal(t, cfg.Order{Chunk: c.Order, Index: i}, s.Order)
			}
		}
		// Loop statement and if stay at the end of their chunks.
		assert.Equal(t, 5, g.Chunk(1).Last().Node.Position())
		assert.Equal(t, 10, g.Chunk(2).Last().Node.Position())
		// Nothing moves past the return.
		assert.Equal(t, 16, g.Chunk(g.Len()-1).Last().Node.Position())
	}
}

func TestShuffleExploresIndependentOrders(t *testing.T) {
	src := `def f():
    a = 1
    b = 2
    c = a + b
`
	seen := map[[3]int]bool{}
	for seed := uint64(0); seed < 64; seed++ {
		g := analyzed(t, src)
		require.NoError(t, Shuffle(g, NewRand(seed)))

		got := lines(g.Entry)
		require.Len(t, got, 3)
		assert.Equal(t, 4, got[2], "c stays last")
		seen[[3]int(got)] = true
	}
	assert.True(t, seen[[3]int{2, 3, 4}], "a before b")
	assert.True(t, seen[[3]int{3, 2, 4}], "b before a")
}

func TestShuffleDeterministic(t *testing.T) {
	run := func(seed uint64) [][]int {
		g := analyzed(t, mixed)
		require.NoError(t, Shuffle(g, NewRand(seed)))
		var out [][]int
		for _, c := range g.Chunks() {
			out = append(out, lines(c))
		}
		return out
	}

	assert.Equal(t, run(42), run(42))
}

func TestShuffleInvertsBackEdgeDependencies(t *testing.T) {
	g := analyzed(t, `def f(n):
    while n:
        m = n
        n = n - 1
`)
	body := g.Chunk(2)
	read, write := body.Statements[0], body.Statements[1]
	base := g.Chunk(1).Statements[0]
	require.True(t, base.Deps.Has(write.Node), "loop test reads the redefinition")

	require.NoError(t, Shuffle(g, NewRand(7)))
	assert.False(t, base.Deps.Has(write.Node))
	assert.True(t, write.Deps.Has(base.Node))
	assert.Equal(t, []int{3, 4}, lines(body), "read stays before the write")
	assert.Same(t, read, body.Statements[0])
	require.NoError(t, Verify(g))
}

func TestVerifyDetectsViolation(t *testing.T) {
	g := analyzed(t, "def f():\n    a = 1\n    b = a\n")
	stmts := g.Entry.Statements
	stmts[0], stmts[1] = stmts[1], stmts[0]
	g.Entry.Renumber()

	err := Verify(g)
	require.Error(t, err)
	assert.ErrorIs(t, err, cfg.ErrInternal)
}

func TestShuffleReportsCycle(t *testing.T) {
	g := analyzed(t, "def f():\n    a = 1\n    b = 2\n    c = 3\n")
	// A statement waiting on itself never becomes ready.
	first := g.Entry.Statements[0]
	first.Deps.Add(first.Node)

	err := Shuffle(g, NewRand(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, cfg.ErrInternal)
}
