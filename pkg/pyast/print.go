package pyast

import (
	"strings"
)

// Print renders a module. Statements keep their original indentation and
// text; compound statements print their original header followed by their
// (possibly rebuilt) bodies, so only statement order changes on a round trip.
func Print(m *Module) string {
	p := &printer{}
	p.block(m.Body, "", true)
	return p.sb.String()
}

// PrintStmt renders a single statement the same way Print does.
func PrintStmt(s Stmt) string {
	p := &printer{}
	p.stmt(s)
	return p.sb.String()
}

type printer struct {
	sb strings.Builder
}

// block prints a statement list. Empty bodies print "pass" at fallback so
// the result stays valid Python.
func (p *printer) block(stmts []Stmt, fallback string, module bool) {
	if len(stmts) == 0 {
		if !module {
			p.line(fallback, "pass")
		}
		return
	}
	for i, s := range stmts {
		if i > 0 && (isDef(s) || (module && isDef(stmts[i-1]))) {
			p.sb.WriteString("\n")
			if module {
				p.sb.WriteString("\n")
			}
		}
		p.stmt(s)
	}
}

func (p *printer) stmt(s Stmt) {
	ind := s.Indentation()

	switch n := s.(type) {
	case *If:
		header := n.Header
		if n.Elif {
			// An elif that is no longer the sole else branch prints as a plain if.
			header = "if" + strings.TrimPrefix(header, "elif")
		}
		p.ifChain(n, ind, header)

	case *While:
		p.line(ind, n.Header)
		p.block(n.Body, n.BodyIndent, false)
		p.orelse(n.Orelse, ind, n.BodyIndent)

	case *For:
		p.line(ind, n.Header)
		p.block(n.Body, n.BodyIndent, false)
		p.orelse(n.Orelse, ind, n.BodyIndent)

	case *FunctionDef:
		for _, d := range n.Decorators {
			p.line(ind, "@"+d.Source())
		}
		p.line(ind, n.Header)
		p.block(n.Body, n.BodyIndent, false)

	case *ClassDef:
		for _, d := range n.Decorators {
			p.line(ind, "@"+d.Source())
		}
		p.line(ind, n.Header)
		p.block(n.Body, n.BodyIndent, false)

	default:
		p.line(ind, s.Source())
	}
}

func (p *printer) ifChain(n *If, ind, header string) {
	p.line(ind, header)
	p.block(n.Body, n.BodyIndent, false)
	if len(n.Orelse) == 1 {
		if elif, ok := n.Orelse[0].(*If); ok && elif.Elif {
			p.ifChain(elif, ind, elif.Header)
			return
		}
	}
	p.orelse(n.Orelse, ind, n.BodyIndent)
}

func (p *printer) orelse(stmts []Stmt, ind, bodyIndent string) {
	if len(stmts) == 0 {
		return
	}
	p.line(ind, "else:")
	p.block(stmts, bodyIndent, false)
}

func (p *printer) line(ind, text string) {
	p.sb.WriteString(ind)
	p.sb.WriteString(text)
	p.sb.WriteString("\n")
}

func isDef(s Stmt) bool {
	switch s.(type) {
	case *FunctionDef, *ClassDef:
		return true
	}
	return false
}
