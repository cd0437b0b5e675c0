// Package forge drives the mutation pipeline over a Python source file:
// parse, build chunk graphs, analyze, shuffle, reassemble and print.
package forge

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/reschivon/autoforge/internal/log"
	"github.com/reschivon/autoforge/pkg/cfg"
	"github.com/reschivon/autoforge/pkg/dfg"
	"github.com/reschivon/autoforge/pkg/pyast"
	"github.com/reschivon/autoforge/pkg/reassemble"
	"github.com/reschivon/autoforge/pkg/shuffle"
)

// ErrStrict is returned in strict mode when a function cannot be mutated.
var ErrStrict = errors.New("function could not be mutated")

// ReasonNotSelected is the reason reported for functions excluded by
// Options.Only.
const ReasonNotSelected = "not selected"

// Options configures Mutate and Analyze.
type Options struct {
	Seed          uint64     // shuffle seed, used when Rand is nil
	Rand          *rand.Rand // shared generator; overrides Seed
	StripComments bool       // drop comments and bare strings from rebuilt functions
	MaxDepth      int        // nesting limit, cfg.DefaultMaxDepth when zero
	Only          []string   // function names to mutate; empty means all
	NoShuffle     bool       // keep statement order; only reassemble
	Strict        bool       // fail on the first function that cannot be mutated
	Logger        log.Logger
}

// fingerprint holds the options that change the output.
type fingerprint struct {
	Seed          uint64
	StripComments bool
	MaxDepth      int
	Only          []string `hash:"set"`
	NoShuffle     bool
}

// Fingerprint hashes every option that changes the output, for use in cache
// keys. The order of Only does not matter, and an unset MaxDepth hashes as
// the default it stands for.
func (o Options) Fingerprint() string {
	depth := o.MaxDepth
	if depth <= 0 {
		depth = cfg.DefaultMaxDepth
	}
	// Hash only fails on channels and funcs.
	h, _ := hashstructure.Hash(fingerprint{
		Seed:          o.Seed,
		StripComments: o.StripComments,
		MaxDepth:      depth,
		Only:          o.Only,
		NoShuffle:     o.NoShuffle,
	}, hashstructure.FormatV2, nil)
	return strconv.FormatUint(h, 16)
}

func (o Options) logger() log.Logger {
	if o.Logger == nil {
		return log.Discard()
	}
	return o.Logger
}

func (o Options) rng() *rand.Rand {
	if o.Rand != nil {
		return o.Rand
	}
	return shuffle.NewRand(o.Seed)
}

func (o Options) selected(name string) bool {
	return len(o.Only) == 0 || slices.Contains(o.Only, name)
}

// FunctionResult reports what happened to one def.
type FunctionResult struct {
	Name    string `json:"name" msgpack:"name"`
	Line    int    `json:"line" msgpack:"line"`
	Mutated bool   `json:"mutated" msgpack:"mutated"`
	Reason  string `json:"reason,omitempty" msgpack:"reason"`
	Err     error  `json:"-" msgpack:"-"`
}

// Result is the outcome of Mutate.
type Result struct {
	Source    string           `json:"source" msgpack:"source"`
	Functions []FunctionResult `json:"functions" msgpack:"functions"`
}

// Mutated returns how many functions were rewritten.
func (r *Result) Mutated() int {
	n := 0
	for _, f := range r.Functions {
		if f.Mutated {
			n++
		}
	}
	return n
}

// Mutate reorders the statements of every selected function in src. A
// function that cannot be handled keeps its original text unless
// opts.Strict is set. Parse errors always fail.
func Mutate(src []byte, opts Options) (*Result, error) {
	logger := opts.logger()

	p, failed, err := prepare(src, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, s := range p.Skipped {
		if err := res.fail(s.Name, s.Line, s.Err, opts.Strict); err != nil {
			return nil, err
		}
	}

	rng := opts.rng()
	rebuilt := make(map[*cfg.Graph]*pyast.FunctionDef)
	for _, g := range p.Graphs {
		fn, ok := g.Func.(*pyast.FunctionDef)
		if !ok {
			continue
		}
		if !opts.selected(fn.Name) {
			res.Functions = append(res.Functions, FunctionResult{Name: fn.Name, Line: fn.Position(), Reason: ReasonNotSelected})
			continue
		}
		if err := failed[g]; err != nil {
			if err := res.fail(fn.Name, fn.Position(), err, opts.Strict); err != nil {
				return nil, err
			}
			continue
		}

		out, err := mutateFunction(g, rng, opts)
		if err != nil {
			logger.Warn("leaving function unchanged", "name", fn.Name, "line", fn.Position(), "error", err)
			if err := res.fail(fn.Name, fn.Position(), err, opts.Strict); err != nil {
				return nil, err
			}
			continue
		}
		rebuilt[g] = out
		res.Functions = append(res.Functions, FunctionResult{Name: fn.Name, Line: fn.Position(), Mutated: true})
	}

	// Outermost first: an enclosing function's new body still holds the
	// original nested def, which is found and replaced afterwards.
	m := p.Module
	for i := len(p.Graphs) - 1; i >= 0; i-- {
		g := p.Graphs[i]
		out, ok := rebuilt[g]
		if !ok {
			continue
		}
		var found bool
		if m, found = reassemble.Substitute(m, g.Func.(*pyast.FunctionDef), out); !found {
			return nil, fmt.Errorf("substituting %s: definition not in tree: %w", g.Name(), cfg.ErrInternal)
		}
	}

	slices.SortStableFunc(res.Functions, func(a, b FunctionResult) int { return a.Line - b.Line })
	res.Source = pyast.Print(m)
	logger.Info("mutated source", "functions", len(res.Functions), "mutated", res.Mutated())
	return res, nil
}

// prepare parses src, builds every graph and analyzes it.
func prepare(src []byte, opts Options) (*cfg.Program, map[*cfg.Graph]error, error) {
	logger := opts.logger()

	m, err := pyast.Parse(src)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing source: %w", err)
	}
	p := cfg.Build(m, cfg.BuildOptions{MaxDepth: opts.MaxDepth, Logger: logger})
	failed := dfg.AnalyzeProgram(p, logger)
	return p, failed, nil
}

func mutateFunction(g *cfg.Graph, rng *rand.Rand, opts Options) (*pyast.FunctionDef, error) {
	if !opts.NoShuffle {
		if err := shuffle.Shuffle(g, rng); err != nil {
			return nil, err
		}
		if err := shuffle.Verify(g); err != nil {
			return nil, err
		}
	}
	return reassemble.Function(g, reassemble.Options{StripComments: opts.StripComments})
}

// fail records a function left unchanged. In strict mode it returns the
// error instead.
func (r *Result) fail(name string, line int, err error, strict bool) error {
	if strict {
		return fmt.Errorf("%s (line %d): %w: %w", name, line, ErrStrict, err)
	}
	r.Functions = append(r.Functions, FunctionResult{Name: name, Line: line, Reason: err.Error(), Err: err})
	return nil
}
