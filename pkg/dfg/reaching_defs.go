// Package dfg provides data flow analysis including reaching definitions.
package dfg

import (
	"fmt"

	"github.com/reschivon/autoforge/internal/log"
	"github.com/reschivon/autoforge/pkg/cfg"
)

// ReachingDefsAnalyzer performs reaching definitions analysis on chunk
// graphs. It fills in the gen, kill, in, out, use and dependency sets of
// every statement and the captures of the graph.
type ReachingDefsAnalyzer struct {
	src CaptureSource
	log log.Logger
}

// NewReachingDefsAnalyzer creates an analyzer resolving nested function
// captures through src.
func NewReachingDefsAnalyzer(src CaptureSource, logger log.Logger) *ReachingDefsAnalyzer {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReachingDefsAnalyzer{src: src, log: logger}
}

// AnalyzeProgram analyzes every graph of p, nested functions first. Graphs
// that fail are returned with their errors; graphs enclosing a failed one
// fail in turn because its captures stay unknown.
func AnalyzeProgram(p *cfg.Program, logger log.Logger) map[*cfg.Graph]error {
	r := NewReachingDefsAnalyzer(p, logger)
	failed := make(map[*cfg.Graph]error)
	for _, g := range p.Graphs {
		if err := r.Analyze(g); err != nil {
			r.log.Warn("analysis failed", "name", g.Name(), "line", g.Func.Position(), "error", err)
			failed[g] = err
		}
	}
	return failed
}

// Analyze runs reaching definitions on g.
func (r *ReachingDefsAnalyzer) Analyze(g *cfg.Graph) error {
	r.log.Debug("analyzing function", "name", g.Name(), "line", g.Func.Position(), "chunks", g.Len())

	// Empty chunks get a placeholder so every chunk has a last statement.
	for _, c := range g.Chunks() {
		if len(c.Statements) == 0 {
			c.Append(cfg.NewPlaceholder())
		}
	}

	params := cfg.DefSet{}
	for _, name := range Params(g.Func) {
		params.Add(cfg.Def{Name: name, Node: g.Func})
	}

	if err := r.initialize(g, params); err != nil {
		return fmt.Errorf("analyzing %s: %w", g.Name(), err)
	}
	passes := r.solve(g, params)
	captures := r.dependencies(g)

	g.Captures = captures
	r.log.Debug("analyzed function", "name", g.Name(), "passes", passes, "captures", len(captures))
	return nil
}

// initialize computes gen, use and kill sets.
func (r *ReachingDefsAnalyzer) initialize(g *cfg.Graph, params cfg.DefSet) error {
	all := params.Clone()
	stmts := g.Statements()

	for _, s := range stmts {
		s.Gens = cfg.DefSet{}
		s.Kills = cfg.DefSet{}
		s.Ins = cfg.DefSet{}
		s.Outs = cfg.DefSet{}
		s.Uses = cfg.NameSet{}
		s.Deps = cfg.NodeSet{}
		if s.IsPlaceholder() {
			continue
		}

		for name := range Assignments(s.Node) {
			s.Gens.Add(cfg.Def{Name: name, Node: s.Node})
		}
		uses, err := Usages(s.Node, r.src)
		if err != nil {
			return fmt.Errorf("line %d: %w", s.Node.Position(), err)
		}
		s.Uses = uses
		all.AddAll(s.Gens)
	}

	for _, s := range stmts {
		for d := range all {
			if d.Node == s.Node {
				continue
			}
			for gen := range s.Gens {
				if NamesInterfere(gen.Name, d.Name) {
					s.Kills.Add(d)
					break
				}
			}
		}
	}
	return nil
}

// solve iterates the transfer functions to a fixed point and returns the
// number of passes taken.
func (r *ReachingDefsAnalyzer) solve(g *cfg.Graph, params cfg.DefSet) int {
	passes := 0
	for changed := true; changed; {
		changed = false
		passes++

		for _, c := range g.Chunks() {
			for i, s := range c.Statements {
				var in cfg.DefSet
				if i > 0 {
					in = c.Statements[i-1].Outs.Clone()
				} else {
					in = cfg.DefSet{}
					for _, p := range g.Parents(c) {
						in.AddAll(p.Last().Outs)
					}
					if c == g.Entry {
						in.AddAll(params)
					}
				}

				out := transfer(s, in)
				if !out.Equal(s.Outs) {
					changed = true
				}
				s.Ins, s.Outs = in, out
			}
		}
	}
	return passes
}

// transfer computes OUT = (IN \ KILL) ∪ GEN. Only killed definitions of a
// name this statement generates stop reaching; a write to a.x leaves a alive.
func transfer(s *cfg.Statement, in cfg.DefSet) cfg.DefSet {
	genNames := cfg.NameSet{}
	for d := range s.Gens {
		genNames.Add(d.Name)
	}

	out := cfg.DefSet{}
	for d := range in {
		if s.Kills.Has(d) && genNames.Has(d.Name) {
			continue
		}
		out.Add(d)
	}
	out.AddAll(s.Gens)
	return out
}

// dependencies derives statement dependencies and returns the names read
// but never defined in the function.
func (r *ReachingDefsAnalyzer) dependencies(g *cfg.Graph) cfg.NameSet {
	captures := cfg.NameSet{}
	stmts := g.Statements()

	// readers maps a definition to the statements reading it.
	readers := make(map[cfg.Def][]*cfg.Statement)

	for _, s := range stmts {
		s.Uses.AddAll(r.calleeCaptures(g, s))
		for use := range s.Uses {
			found := false
			for d := range s.Ins {
				if NamesInterfere(use, d.Name) {
					found = true
					s.Deps.Add(d.Node)
					readers[d] = append(readers[d], s)
				}
			}
			if !found {
				captures.Add(use)
			}
		}
		for d := range s.Kills {
			if s.Ins.Has(d) {
				s.Deps.Add(d.Node)
			}
		}
	}

	// A statement killing a definition stays on the same side of every
	// statement of its chunk reading it.
	for _, s := range stmts {
		for d := range s.Kills {
			for _, reader := range readers[d] {
				if reader != s && reader.Order.Chunk == s.Order.Chunk {
					s.Deps.Add(reader.Node)
				}
			}
		}
	}

	for _, c := range g.Chunks() {
		for i, s := range c.Statements {
			if s.IsPlaceholder() || !IsBarrier(s.Node) {
				continue
			}
			for j, other := range c.Statements {
				switch {
				case j < i:
					s.Deps.Add(other.Node)
				case j > i:
					other.Deps.Add(s.Node)
				}
			}
		}
	}

	for _, s := range stmts {
		s.Deps.Remove(g.Func)
		s.Deps.Remove(s.Node)
	}
	return captures
}

// calleeCaptures returns the captures of the local functions s calls by name.
// A closure reads its captures when it runs, so a rebinding of one of them
// must stay on the same side of the call.
func (r *ReachingDefsAnalyzer) calleeCaptures(g *cfg.Graph, s *cfg.Statement) cfg.NameSet {
	out := cfg.NameSet{}
	if r.src == nil || s.IsPlaceholder() {
		return out
	}
	for _, name := range calledNames(s.Node) {
		for d := range s.Ins {
			if d.Name != name || d.Node == g.Func {
				continue
			}
			fn := boundFunctional(d.Node, name)
			if fn == nil {
				continue
			}
			if captures, ok := r.src.Captures(fn); ok {
				out.AddAll(captures)
			}
		}
	}
	return out
}
