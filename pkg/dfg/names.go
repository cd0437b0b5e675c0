package dfg

import (
	"fmt"
	"strings"

	"github.com/reschivon/autoforge/pkg/cfg"
	"github.com/reschivon/autoforge/pkg/pyast"
)

// CaptureSource resolves the captured names of an already analyzed nested
// function. *cfg.Program implements it.
type CaptureSource interface {
	Captures(fn pyast.Functional) (cfg.NameSet, bool)
}

// NamesInterfere reports whether writing one dotted name may affect the
// other. Equal names interfere; distinct names of the same depth do not;
// names of different depth interfere when some position of their common
// prefix holds the same element, as self and self.x do.
func NamesInterfere(a, b string) bool {
	if a == b {
		return true
	}
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	if len(as) == len(bs) {
		return false
	}
	for i := 0; i < min(len(as), len(bs)); i++ {
		if as[i] == bs[i] {
			return true
		}
	}
	return false
}

// rootedIn reports whether name is bound or one of its attributes.
func rootedIn(name, bound string) bool {
	return name == bound || strings.HasPrefix(name, bound+".")
}

// Params returns the parameter names of fn.
func Params(fn pyast.Functional) []string {
	var out []string
	for _, p := range fn.ParamList() {
		if p.Name != "" {
			out = append(out, p.Name)
		}
	}
	return out
}

// dotted returns "a.b.c" for a chain of attributes over a name, or "".
func dotted(e pyast.Expr) string {
	switch n := e.(type) {
	case *pyast.Name:
		return n.ID
	case *pyast.Attribute:
		if base := dotted(n.Value); base != "" {
			return base + "." + n.Attr
		}
	case *pyast.Compound:
		if n.Type == "parenthesized_expression" && len(n.Children) == 1 {
			return dotted(n.Children[0])
		}
	}
	return ""
}

// dottedPrefix returns the longest dotted name the object reached by e hangs
// off: "a.b" for a.b[0].c, "" for f().x.
func dottedPrefix(e pyast.Expr) string {
	if d := dotted(e); d != "" {
		return d
	}
	switch n := e.(type) {
	case *pyast.Attribute:
		return dottedPrefix(n.Value)
	case *pyast.Subscript:
		return dottedPrefix(n.Value)
	}
	return ""
}

// ---- assignments ----

// Assignments returns the names a statement defines or mutates.
func Assignments(s pyast.Stmt) cfg.NameSet {
	out := cfg.NameSet{}

	switch n := s.(type) {
	case *pyast.FunctionDef:
		out.Add(n.Name)
	case *pyast.ClassDef:
		out.Add(n.Name)
	case *pyast.Assign:
		for _, t := range n.Targets {
			targetNames(t, out)
		}
	case *pyast.AugAssign:
		targetNames(n.Target, out)
	case *pyast.AnnAssign:
		if n.Value != nil {
			targetNames(n.Target, out)
		}
	case *pyast.For:
		targetNames(n.Target, out)
	case *pyast.Delete:
		for _, t := range n.Targets {
			targetNames(t, out)
		}
	case *pyast.Import:
		for _, name := range n.Names {
			out.Add(name)
		}
	}

	for _, e := range pyast.HeadExprs(s) {
		exprAssignments(e, out)
	}
	return out
}

// targetNames adds the names bound by an assignment target.
func targetNames(e pyast.Expr, out cfg.NameSet) {
	switch n := e.(type) {
	case *pyast.Name:
		out.Add(n.ID)
	case *pyast.Attribute:
		if d := dottedPrefix(n); d != "" {
			out.Add(d)
		}
	case *pyast.Subscript:
		if d := dottedPrefix(n.Value); d != "" {
			out.Add(d)
		}
	case *pyast.Starred:
		targetNames(n.Value, out)
	case *pyast.Compound:
		for _, child := range n.Children {
			targetNames(child, out)
		}
	}
}

// exprAssignments adds names mutated while evaluating e: method call
// receivers and walrus targets. Lambda bodies run later and are skipped.
func exprAssignments(e pyast.Expr, out cfg.NameSet) {
	pyast.InspectExpr(e, func(x pyast.Expr) bool {
		switch n := x.(type) {
		case *pyast.Lambda:
			return false
		case *pyast.NamedExpr:
			out.Add(n.Target.ID)
		case *pyast.Call:
			if attr, ok := n.Func.(*pyast.Attribute); ok {
				if d := dottedPrefix(attr.Value); d != "" {
					out.Add(d)
				}
			}
		case *pyast.Comprehension:
			inner := cfg.NameSet{}
			for _, child := range pyast.ExprChildren(n) {
				exprAssignments(child, inner)
			}
			bound := comprehensionBound(n)
			for name := range inner {
				if !rootedInAny(name, bound) {
					out.Add(name)
				}
			}
			return false
		}
		return true
	})
}

// ---- usages ----

// Usages returns the names a statement reads. Nested functions and lambdas
// contribute their captures, which must already be known to src.
func Usages(s pyast.Stmt, src CaptureSource) (cfg.NameSet, error) {
	u := &usages{src: src, out: cfg.NameSet{}}

	switch n := s.(type) {
	case *pyast.FunctionDef:
		if err := u.functional(n); err != nil {
			return nil, err
		}
		for _, d := range n.Decorators {
			u.expr(d)
		}
	case *pyast.ClassDef:
		for _, e := range pyast.HeadExprs(n) {
			u.expr(e)
		}
		// Class bodies run in place; every name they mention is read here.
		allNames(n.Body, u.out)
	case *pyast.Assign:
		for _, t := range n.Targets {
			u.target(t)
		}
		u.expr(n.Value)
	case *pyast.AugAssign:
		u.expr(n.Target)
		u.expr(n.Value)
	case *pyast.AnnAssign:
		u.target(n.Target)
		u.expr(n.Value)
	case *pyast.For:
		u.target(n.Target)
		u.expr(n.Iter)
	case *pyast.Delete:
		for _, t := range n.Targets {
			u.target(t)
		}
	default:
		for _, e := range pyast.HeadExprs(s) {
			u.expr(e)
		}
	}

	if u.err != nil {
		return nil, u.err
	}
	return u.out, nil
}

type usages struct {
	src CaptureSource
	out cfg.NameSet
	err error
}

// functional adds the captures and parameter defaults of fn.
func (u *usages) functional(fn pyast.Functional) error {
	var captures cfg.NameSet
	ok := false
	if u.src != nil {
		captures, ok = u.src.Captures(fn)
	}
	if !ok {
		return fmt.Errorf("%s at line %d has no captures: %w", fn.FuncName(), fn.Position(), cfg.ErrOrderingPrecondition)
	}
	u.out.AddAll(captures)
	for _, p := range fn.ParamList() {
		u.expr(p.Default)
	}
	return nil
}

// target adds the names read by an assignment target: subscript bases and
// indices, and anything under a non-dotted attribute.
func (u *usages) target(e pyast.Expr) {
	switch n := e.(type) {
	case *pyast.Name:
	case *pyast.Attribute:
		if dotted(n) == "" {
			u.expr(n.Value)
		}
	case *pyast.Subscript:
		u.expr(n.Value)
		for _, idx := range n.Index {
			u.expr(idx)
		}
	case *pyast.Starred:
		u.target(n.Value)
	case *pyast.Compound:
		for _, child := range n.Children {
			u.target(child)
		}
	}
}

func (u *usages) expr(e pyast.Expr) {
	if e == nil || u.err != nil {
		return
	}

	switch n := e.(type) {
	case *pyast.Name:
		u.out.Add(n.ID)

	case *pyast.Attribute:
		if d := dotted(n); d != "" {
			u.out.Add(d)
			return
		}
		u.expr(n.Value)

	case *pyast.Call:
		// a.b.c(...) reads a.b; the method itself is not a name.
		if attr, ok := n.Func.(*pyast.Attribute); ok {
			if d := dotted(attr.Value); d != "" {
				u.out.Add(d)
			} else {
				u.expr(attr.Value)
			}
		} else {
			u.expr(n.Func)
		}
		for _, arg := range n.Args {
			u.expr(arg)
		}

	case *pyast.Keyword:
		u.expr(n.Value)

	case *pyast.NamedExpr:
		u.expr(n.Value)

	case *pyast.Lambda:
		if err := u.functional(n); err != nil {
			u.err = err
		}

	case *pyast.Comprehension:
		u.comprehension(n)

	default:
		for _, child := range pyast.ExprChildren(e) {
			u.expr(child)
		}
	}
}

// comprehension adds the names a comprehension reads from its enclosing
// scope. The first iterable is evaluated outside the comprehension.
func (u *usages) comprehension(n *pyast.Comprehension) {
	if len(n.Clauses) == 0 {
		return
	}
	u.expr(n.Clauses[0].Iter)

	inner := &usages{src: u.src, out: cfg.NameSet{}}
	inner.expr(n.Elt)
	for i, cl := range n.Clauses {
		inner.target(cl.Target)
		if i > 0 {
			inner.expr(cl.Iter)
		}
		for _, cond := range cl.Ifs {
			inner.expr(cond)
		}
	}
	if inner.err != nil {
		u.err = inner.err
		return
	}

	bound := comprehensionBound(n)
	for name := range inner.out {
		if !rootedInAny(name, bound) {
			u.out.Add(name)
		}
	}
}

func comprehensionBound(n *pyast.Comprehension) cfg.NameSet {
	bound := cfg.NameSet{}
	for _, cl := range n.Clauses {
		targetNames(cl.Target, bound)
	}
	return bound
}

func rootedInAny(name string, bound cfg.NameSet) bool {
	for b := range bound {
		if rootedIn(name, b) {
			return true
		}
	}
	return false
}

// allNames adds every name mentioned anywhere in stmts, nested bodies
// included.
func allNames(stmts []pyast.Stmt, out cfg.NameSet) {
	for _, s := range stmts {
		for _, e := range pyast.HeadExprs(s) {
			pyast.InspectExpr(e, func(x pyast.Expr) bool {
				if d := dotted(x); d != "" {
					out.Add(d)
					return false
				}
				return true
			})
		}
		switch n := s.(type) {
		case *pyast.If:
			allNames(n.Body, out)
			allNames(n.Orelse, out)
		case *pyast.While:
			allNames(n.Body, out)
			allNames(n.Orelse, out)
		case *pyast.For:
			allNames(n.Body, out)
			allNames(n.Orelse, out)
		case *pyast.FunctionDef:
			allNames(n.Body, out)
		case *pyast.ClassDef:
			allNames(n.Body, out)
		}
	}
}

// calledNames returns the plain names called while evaluating s. Calls
// inside lambda bodies run later and are skipped.
func calledNames(s pyast.Stmt) []string {
	var out []string
	for _, e := range pyast.HeadExprs(s) {
		pyast.InspectExpr(e, func(x pyast.Expr) bool {
			switch n := x.(type) {
			case *pyast.Lambda:
				return false
			case *pyast.Call:
				if fn, ok := n.Func.(*pyast.Name); ok {
					out = append(out, fn.ID)
				}
			}
			return true
		})
	}
	return out
}

// boundFunctional returns the function a definition binds to name: a def
// statement, or an assignment of a lambda.
func boundFunctional(node pyast.Node, name string) pyast.Functional {
	switch n := node.(type) {
	case *pyast.FunctionDef:
		if n.Name == name {
			return n
		}
	case *pyast.Assign:
		if lam, ok := n.Value.(*pyast.Lambda); ok {
			return lam
		}
	}
	return nil
}

// IsBarrier reports whether s must keep its position relative to every
// other statement of its chunk.
func IsBarrier(s pyast.Stmt) bool {
	switch s.(type) {
	case *pyast.Return, *pyast.Raise, *pyast.Break, *pyast.Continue, *pyast.Global:
		return true
	}
	return pyast.ContainsYield(s)
}
