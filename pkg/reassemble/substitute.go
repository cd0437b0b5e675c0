package reassemble

import (
	"github.com/reschivon/autoforge/pkg/pyast"
)

// Substitute returns a module in which orig is replaced by repl. Nodes on
// the path to orig are copied; everything else is shared with m, which is
// not modified. It reports false and returns m when orig is not found.
func Substitute(m *pyast.Module, orig, repl pyast.Stmt) (*pyast.Module, bool) {
	body, ok := replace(m.Body, orig, repl)
	if !ok {
		return m, false
	}
	out := *m
	out.Body = body
	return &out, true
}

func replace(stmts []pyast.Stmt, orig, repl pyast.Stmt) ([]pyast.Stmt, bool) {
	for i, s := range stmts {
		next, ok := replaceStmt(s, orig, repl)
		if !ok {
			continue
		}
		out := make([]pyast.Stmt, len(stmts))
		copy(out, stmts)
		out[i] = next
		return out, true
	}
	return stmts, false
}

func replaceStmt(s, orig, repl pyast.Stmt) (pyast.Stmt, bool) {
	if s == orig {
		return repl, true
	}

	switch n := s.(type) {
	case *pyast.FunctionDef:
		if body, ok := replace(n.Body, orig, repl); ok {
			out := *n
			out.Body = body
			return &out, true
		}
	case *pyast.ClassDef:
		if body, ok := replace(n.Body, orig, repl); ok {
			out := *n
			out.Body = body
			return &out, true
		}
	case *pyast.If:
		body, inBody := replace(n.Body, orig, repl)
		orelse, inOrelse := replace(n.Orelse, orig, repl)
		if inBody || inOrelse {
			out := *n
			out.Body, out.Orelse = body, orelse
			return &out, true
		}
	case *pyast.While:
		body, inBody := replace(n.Body, orig, repl)
		orelse, inOrelse := replace(n.Orelse, orig, repl)
		if inBody || inOrelse {
			out := *n
			out.Body, out.Orelse = body, orelse
			return &out, true
		}
	case *pyast.For:
		body, inBody := replace(n.Body, orig, repl)
		orelse, inOrelse := replace(n.Orelse, orig, repl)
		if inBody || inOrelse {
			out := *n
			out.Body, out.Orelse = body, orelse
			return &out, true
		}
	}
	return s, false
}
