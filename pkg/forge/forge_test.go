package forge

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reschivon/autoforge/pkg/cfg"
	"github.com/reschivon/autoforge/pkg/pyast"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	src, err := os.ReadFile(filepath.Join("..", "..", "testdata", "python", name))
	require.NoError(t, err)
	return src
}

// codeLines returns the non-blank lines of src, sorted.
func codeLines(src string) []string {
	var out []string
	for _, l := range strings.Split(src, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return out
}

func names(res *Result, mutated bool) []string {
	var out []string
	for _, f := range res.Functions {
		if f.Mutated == mutated {
			out = append(out, f.Name)
		}
	}
	return out
}

func TestMutateNoShuffleReproducesSource(t *testing.T) {
	src := fixture(t, "ledger.py")

	res, err := Mutate(src, Options{NoShuffle: true})
	require.NoError(t, err)
	assert.Equal(t, string(src), res.Source)
	assert.Equal(t, []string{"interest", "summarize", "scale", "counter", "bump", "__init__", "add", "report"}, names(res, true))
	assert.Empty(t, names(res, false))
}

func TestMutateKeepsEveryStatement(t *testing.T) {
	src := fixture(t, "ledger.py")
	want := codeLines(string(src))

	changed := 0
	for seed := uint64(0); seed < 25; seed++ {
		res, err := Mutate(src, Options{Seed: seed})
		require.NoError(t, err, "seed %d", seed)

		assert.Equal(t, want, codeLines(res.Source), "seed %d", seed)
		_, err = pyast.Parse([]byte(res.Source))
		require.NoError(t, err, "seed %d output must parse", seed)

		if res.Source != string(src) {
			changed++
		}
	}
	assert.Positive(t, changed, "some seed reorders something")
}

func TestMutateIsDeterministic(t *testing.T) {
	src := fixture(t, "ledger.py")

	a, err := Mutate(src, Options{Seed: 11})
	require.NoError(t, err)
	b, err := Mutate(src, Options{Seed: 11})
	require.NoError(t, err)
	assert.Equal(t, a.Source, b.Source)
}

func TestMutateIndependentStatements(t *testing.T) {
	src := []byte("def f():\n    a = 1\n    b = 2\n    c = a + b\n")

	seen := map[string]bool{}
	for seed := uint64(0); seed < 40; seed++ {
		res, err := Mutate(src, Options{Seed: seed})
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(res.Source), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "    c = a + b", lines[3])
		seen[lines[1]] = true
	}
	assert.True(t, seen["    a = 1"])
	assert.True(t, seen["    b = 2"])
}

func TestMutateOnly(t *testing.T) {
	src := fixture(t, "ledger.py")

	res, err := Mutate(src, Options{Seed: 3, Only: []string{"interest"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"interest"}, names(res, true))

	for _, f := range res.Functions {
		if f.Name != "interest" {
			assert.Equal(t, "not selected", f.Reason, f.Name)
		}
	}

	// Everything after interest is untouched.
	tail := string(src[strings.Index(string(src), "def summarize"):])
	assert.True(t, strings.HasSuffix(res.Source, tail))
}

func TestMutateSkipsUnsupported(t *testing.T) {
	src := fixture(t, "unsupported.py")

	res, err := Mutate(src, Options{Seed: 1})
	require.NoError(t, err)
	require.Len(t, res.Functions, 2)

	risky := res.Functions[0]
	assert.Equal(t, "risky", risky.Name)
	assert.False(t, risky.Mutated)
	assert.ErrorIs(t, risky.Err, cfg.ErrUnsupported)
	assert.Contains(t, risky.Reason, "try_statement")
	assert.True(t, res.Functions[1].Mutated)

	assert.True(t, strings.HasPrefix(res.Source, string(src[:strings.Index(string(src), "def safe")])))
}

func TestMutateStrict(t *testing.T) {
	_, err := Mutate(fixture(t, "unsupported.py"), Options{Strict: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStrict)
	assert.ErrorIs(t, err, cfg.ErrUnsupported)
}

func TestMutateStripComments(t *testing.T) {
	src := []byte("def f():\n    \"\"\"Doc.\"\"\"\n    # note\n    return 1\n")

	res, err := Mutate(src, Options{StripComments: true, NoShuffle: true})
	require.NoError(t, err)
	assert.Equal(t, "def f():\n    return 1\n", res.Source)
}

func TestMutateParseError(t *testing.T) {
	_, err := Mutate([]byte("def f(:\n    pass\n"), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, pyast.ErrSyntax)
}

func TestOptionsFingerprint(t *testing.T) {
	base := Options{Seed: 1, Only: []string{"b", "a"}}
	assert.Equal(t, base.Fingerprint(), Options{Seed: 1, Only: []string{"a", "b"}}.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), Options{Seed: 2, Only: []string{"a", "b"}}.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), Options{Seed: 1, Only: []string{"a", "b"}, StripComments: true}.Fingerprint())
	assert.Equal(t, []string{"b", "a"}, base.Only, "fingerprint leaves the options alone")

	assert.Equal(t, base.Fingerprint(), Options{Seed: 1, Only: []string{"a", "b"}, MaxDepth: cfg.DefaultMaxDepth}.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), Options{Seed: 1, Only: []string{"a", "b"}, MaxDepth: 4}.Fingerprint())
}

const closureSource = `def closures():
    base = 5
    add = lambda x: x + base
    mul = 2
    def scale():
        return mul * 3
    a = add(1)
    s = scale()
    base = 10
    mul = 7
    b = add(1)
    c = scale()
    return a + s, b + c
`

// lineIndex returns the position of the first line of src equal to want.
func lineIndex(t *testing.T, src, want string) int {
	t.Helper()
	i := slices.Index(strings.Split(src, "\n"), want)
	require.GreaterOrEqual(t, i, 0, "missing %q in\n%s", want, src)
	return i
}

func TestMutateKeepsClosureCallsBeforeRebinding(t *testing.T) {
	src := []byte(closureSource)

	moved := false
	for seed := uint64(0); seed < 60; seed++ {
		res, err := Mutate(src, Options{Seed: seed})
		require.NoError(t, err, "seed %d", seed)
		out := res.Source

		assert.Less(t, lineIndex(t, out, "    a = add(1)"), lineIndex(t, out, "    base = 10"), "seed %d", seed)
		assert.Less(t, lineIndex(t, out, "    s = scale()"), lineIndex(t, out, "    mul = 7"), "seed %d", seed)
		assert.Less(t, lineIndex(t, out, "    base = 10"), lineIndex(t, out, "    b = add(1)"), "seed %d", seed)
		assert.Less(t, lineIndex(t, out, "    mul = 7"), lineIndex(t, out, "    c = scale()"), "seed %d", seed)

		if out != closureSource {
			moved = true
		}
	}
	assert.True(t, moved, "independent statements still move")
}

func TestMutateSwapsSiblingAttribute(t *testing.T) {
	src := []byte("def f(self):\n    count = 1\n    self.count = 2\n")

	seen := map[string]bool{}
	for seed := uint64(0); seed < 64; seed++ {
		res, err := Mutate(src, Options{Seed: seed})
		require.NoError(t, err)
		seen[strings.Split(res.Source, "\n")[1]] = true
	}
	assert.True(t, seen["    count = 1"])
	assert.True(t, seen["    self.count = 2"], "a write to self.count is independent of count")
}

func TestAnalyze(t *testing.T) {
	a, err := Analyze(fixture(t, "ledger.py"), Options{}, false)
	require.NoError(t, err)
	assert.Empty(t, a.Skipped)

	var fnames []string
	for _, g := range a.Graphs {
		fnames = append(fnames, g.FunctionName)
	}
	assert.Equal(t, []string{"interest", "summarize", "<lambda>", "scale", "bump", "counter", "__init__", "add", "report"}, fnames)
	assert.Len(t, a.Analyzed(), 9)

	interest := a.Graphs[0]
	assert.Equal(t, []string{"RATE", "range", "round"}, interest.Captures)
	assert.Equal(t, 2, interest.CyclomaticComplexity)
}

func TestAnalyzeShuffledKeepsTerminators(t *testing.T) {
	a, err := Analyze(fixture(t, "ledger.py"), Options{Seed: 5}, true)
	require.NoError(t, err)

	for _, g := range a.Graphs {
		for _, c := range g.Chunks {
			for i, s := range c.Statements {
				switch s.Kind {
				case "if", "while", "for":
					assert.Equal(t, len(c.Statements)-1, i, "%s chunk %d", g.FunctionName, c.Order)
				}
			}
		}
	}
}

func TestAnalyzeReportsSkipped(t *testing.T) {
	a, err := Analyze(fixture(t, "unsupported.py"), Options{}, false)
	require.NoError(t, err)
	require.Len(t, a.Skipped, 1)
	assert.Equal(t, "risky", a.Skipped[0].Name)
	require.Len(t, a.Graphs, 1)
	assert.Equal(t, "safe", a.Graphs[0].FunctionName)
}
