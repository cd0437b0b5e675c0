package pyast

// HeadExprs returns the expressions a statement evaluates itself, excluding
// the bodies of compound statements. For a def or class that is its
// decorators and parameter defaults or base classes.
func HeadExprs(s Stmt) []Expr {
	var out []Expr
	add := func(es ...Expr) {
		for _, e := range es {
			if e != nil {
				out = append(out, e)
			}
		}
	}

	switch n := s.(type) {
	case *Assign:
		add(n.Targets...)
		add(n.Value)
	case *AugAssign:
		add(n.Target, n.Value)
	case *AnnAssign:
		add(n.Target, n.Annotation, n.Value)
	case *ExprStmt:
		add(n.X)
	case *Return:
		add(n.Value)
	case *Raise:
		add(n.Exc, n.Cause)
	case *Delete:
		add(n.Targets...)
	case *Assert:
		add(n.Test, n.Msg)
	case *If:
		add(n.Test)
	case *While:
		add(n.Test)
	case *For:
		add(n.Target, n.Iter)
	case *FunctionDef:
		add(n.Decorators...)
		for _, p := range n.Params {
			add(p.Default)
		}
	case *ClassDef:
		add(n.Decorators...)
		add(n.Bases...)
	}
	return out
}

// ExprChildren returns the direct sub-expressions of e.
func ExprChildren(e Expr) []Expr {
	var out []Expr
	add := func(es ...Expr) {
		for _, x := range es {
			if x != nil {
				out = append(out, x)
			}
		}
	}

	switch n := e.(type) {
	case *Attribute:
		add(n.Value)
	case *Call:
		add(n.Func)
		add(n.Args...)
	case *Keyword:
		add(n.Value)
	case *Starred:
		add(n.Value)
	case *Subscript:
		add(n.Value)
		add(n.Index...)
	case *Comprehension:
		add(n.Elt)
		for _, cl := range n.Clauses {
			add(cl.Target, cl.Iter)
			add(cl.Ifs...)
		}
	case *Lambda:
		for _, p := range n.Params {
			add(p.Default)
		}
		add(n.Body)
	case *NamedExpr:
		add(n.Target, n.Value)
	case *Compound:
		add(n.Children...)
	}
	return out
}

// InspectExpr walks e in depth-first order. Children of a node are skipped
// when fn returns false.
func InspectExpr(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, child := range ExprChildren(e) {
		InspectExpr(child, fn)
	}
}

// Lambdas returns the outermost lambdas appearing in the head expressions of
// s, in source order.
func Lambdas(s Stmt) []*Lambda {
	var out []*Lambda
	for _, e := range HeadExprs(s) {
		InspectExpr(e, func(x Expr) bool {
			if l, ok := x.(*Lambda); ok {
				out = append(out, l)
				return false
			}
			return true
		})
	}
	return out
}

// ContainsYield reports whether a yield or await expression appears in the
// head expressions of s outside nested lambdas.
func ContainsYield(s Stmt) bool {
	found := false
	for _, e := range HeadExprs(s) {
		InspectExpr(e, func(x Expr) bool {
			if found {
				return false
			}
			switch x.Kind() {
			case "yield", "await":
				found = true
				return false
			case "lambda":
				return false
			}
			return true
		})
	}
	return found
}

// NewExprStmt wraps e in a statement, as used for the body of a lambda.
func NewExprStmt(e Expr) *ExprStmt {
	return &ExprStmt{
		StmtBase: StmtBase{Span: Span{Text: e.Source(), Line: e.Position()}},
		X:        e,
	}
}
