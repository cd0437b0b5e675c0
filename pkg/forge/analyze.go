package forge

import (
	"github.com/reschivon/autoforge/pkg/cfg"
	"github.com/reschivon/autoforge/pkg/shuffle"
)

// Analysis holds the analyzed graphs of a source file.
type Analysis struct {
	Program *cfg.Program     `json:"-"`
	Graphs  []*cfg.GraphInfo `json:"functions"`
	Skipped []FunctionResult `json:"skipped,omitempty"`
}

// Analyze parses src, builds and analyzes every function and snapshots the
// result. With shuffled set, each analyzed graph is shuffled before the
// snapshot, using opts for the generator. Lambda graphs are included.
func Analyze(src []byte, opts Options, shuffled bool) (*Analysis, error) {
	p, failed, err := prepare(src, opts)
	if err != nil {
		return nil, err
	}

	a := &Analysis{Program: p}
	for _, s := range p.Skipped {
		a.Skipped = append(a.Skipped, FunctionResult{Name: s.Name, Line: s.Line, Reason: s.Err.Error(), Err: s.Err})
	}

	rng := opts.rng()
	for _, g := range p.Graphs {
		if err := failed[g]; err != nil {
			a.Skipped = append(a.Skipped, FunctionResult{Name: g.Name(), Line: g.Func.Position(), Reason: err.Error(), Err: err})
			continue
		}
		if shuffled && opts.selected(g.Name()) {
			if err := shuffle.Shuffle(g, rng); err != nil {
				a.Skipped = append(a.Skipped, FunctionResult{Name: g.Name(), Line: g.Func.Position(), Reason: err.Error(), Err: err})
				continue
			}
		}
		a.Graphs = append(a.Graphs, g.Info())
	}
	return a, nil
}

// Analyzed returns the graphs that were analyzed successfully, in build
// order.
func (a *Analysis) Analyzed() []*cfg.Graph {
	var out []*cfg.Graph
	for _, g := range a.Program.Graphs {
		if g.Captures != nil {
			out = append(out, g)
		}
	}
	return out
}
