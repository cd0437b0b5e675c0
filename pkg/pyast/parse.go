package pyast

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrSyntax is returned when tree-sitter reports a parse error.
var ErrSyntax = errors.New("python syntax error")

// Parse parses Python source into a Module.
func Parse(src []byte) (*Module, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line := firstErrorLine(root)
		return nil, fmt.Errorf("%w near line %d", ErrSyntax, line)
	}

	c := &converter{content: src}
	body, _ := c.block(root, "")
	return &Module{
		Span: Span{Text: string(src), Line: 1},
		Body: body,
	}, nil
}

func firstErrorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.HasError() {
			return firstErrorLine(child)
		}
	}
	return int(n.StartPoint().Row) + 1
}

// converter turns tree-sitter nodes into pyast nodes.
type converter struct {
	content []byte
}

// block converts the statements of a module or block node. All statements of
// a block share one indentation; statements that continue a header line
// ("if x: y") get parentIndent plus four spaces.
func (c *converter) block(n *sitter.Node, parentIndent string) ([]Stmt, string) {
	if n == nil {
		return nil, parentIndent + "    "
	}
	indent, ok := "", false
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if ind, starts := c.lineIndent(n.NamedChild(i)); starts {
			indent, ok = ind, true
			break
		}
	}
	if !ok && n.Type() != "module" {
		indent = parentIndent + "    "
	}

	var stmts []Stmt
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		stmts = append(stmts, c.stmt(child, indent))
	}
	return stmts, indent
}

// body converts the block held in field of n. Comment lines between the
// header and the first statement are children of n in the parse tree; they
// are moved into the body.
func (c *converter) body(n *sitter.Node, field, parentIndent string) ([]Stmt, string) {
	blk := n.ChildByFieldName(field)
	stmts, indent := c.block(blk, parentIndent)
	if blk == nil {
		return stmts, indent
	}

	var lead []Stmt
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() != "comment" {
			continue
		}
		if child.StartByte() >= blk.StartByte() {
			break
		}
		if _, starts := c.lineIndent(child); starts {
			lead = append(lead, &Comment{StmtBase: c.stmtBase(child, indent)})
		}
	}
	if len(lead) == 0 {
		return stmts, indent
	}
	return append(lead, stmts...), indent
}

// lineIndent returns the whitespace before n on its line and whether n is the
// first token of that line.
func (c *converter) lineIndent(n *sitter.Node) (string, bool) {
	start := int(n.StartByte())
	if start > len(c.content) {
		return "", false
	}
	lineStart := strings.LastIndexByte(string(c.content[:start]), '\n') + 1
	prefix := string(c.content[lineStart:start])
	if strings.TrimLeft(prefix, " \t") != "" {
		return "", false
	}
	return prefix, true
}

func (c *converter) span(n *sitter.Node, indent string) Span {
	return Span{
		Text:   c.nodeText(n),
		Line:   int(n.StartPoint().Row) + 1,
		Col:    int(n.StartPoint().Column),
		Indent: indent,
	}
}

func (c *converter) stmtBase(n *sitter.Node, indent string) StmtBase {
	return StmtBase{Span: c.span(n, indent)}
}

func (c *converter) exprBase(n *sitter.Node) ExprBase {
	return ExprBase{Span: c.span(n, "")}
}

func (c *converter) stmt(n *sitter.Node, indent string) Stmt {
	base := c.stmtBase(n, indent)

	switch n.Type() {
	case "comment":
		return &Comment{StmtBase: base}

	case "expression_statement":
		return c.expressionStatement(n, base)

	case "pass_statement":
		return &Pass{StmtBase: base}

	case "break_statement":
		return &Break{StmtBase: base}

	case "continue_statement":
		return &Continue{StmtBase: base}

	case "return_statement":
		ret := &Return{StmtBase: base}
		if n.NamedChildCount() > 0 {
			ret.Value = c.expr(c.firstNamed(n))
		}
		return ret

	case "raise_statement":
		r := &Raise{StmtBase: base}
		cause := n.ChildByFieldName("cause")
		if cause != nil {
			r.Cause = c.expr(cause)
		}
		if exc := c.firstNamed(n); exc != nil && (cause == nil || exc.StartByte() != cause.StartByte()) {
			r.Exc = c.expr(exc)
		}
		return r

	case "import_statement", "import_from_statement", "future_import_statement":
		return &Import{StmtBase: base, Names: c.importedNames(n)}

	case "delete_statement":
		d := &Delete{StmtBase: base}
		for _, child := range c.namedChildren(n) {
			d.Targets = append(d.Targets, c.flatten(c.expr(child))...)
		}
		return d

	case "assert_statement":
		a := &Assert{StmtBase: base}
		children := c.namedChildren(n)
		if len(children) > 0 {
			a.Test = c.expr(children[0])
		}
		if len(children) > 1 {
			a.Msg = c.expr(children[1])
		}
		return a

	case "global_statement", "nonlocal_statement":
		g := &Global{StmtBase: base, Nonlocal: n.Type() == "nonlocal_statement"}
		for _, child := range c.namedChildren(n) {
			g.Names = append(g.Names, c.nodeText(child))
		}
		return g

	case "if_statement":
		return c.ifStatement(n, base, false)

	case "while_statement":
		w := &While{StmtBase: base, Header: c.header(n), Test: c.expr(n.ChildByFieldName("condition"))}
		w.Body, w.BodyIndent = c.body(n, "body", indent)
		w.Orelse = c.elseBody(n.ChildByFieldName("alternative"), indent)
		return w

	case "for_statement":
		f := &For{
			StmtBase: base,
			Header:   c.header(n),
			Target:   c.expr(n.ChildByFieldName("left")),
			Iter:     c.expr(n.ChildByFieldName("right")),
			Async:    c.hasToken(n, "async"),
		}
		f.Body, f.BodyIndent = c.body(n, "body", indent)
		f.Orelse = c.elseBody(n.ChildByFieldName("alternative"), indent)
		return f

	case "function_definition":
		return c.functionDef(n, base, nil)

	case "class_definition":
		return c.classDef(n, base, nil)

	case "decorated_definition":
		var decorators []Expr
		for _, child := range c.namedChildren(n) {
			if child.Type() == "decorator" {
				decorators = append(decorators, c.expr(c.firstNamed(child)))
			}
		}
		def := n.ChildByFieldName("definition")
		if def == nil {
			return &Opaque{StmtBase: base, Type: n.Type()}
		}
		switch def.Type() {
		case "function_definition":
			return c.functionDef(def, base, decorators)
		case "class_definition":
			return c.classDef(def, base, decorators)
		}
		return &Opaque{StmtBase: base, Type: n.Type()}
	}

	return &Opaque{StmtBase: base, Type: n.Type()}
}

func (c *converter) expressionStatement(n *sitter.Node, base StmtBase) Stmt {
	children := c.namedChildren(n)
	if len(children) == 1 {
		child := children[0]
		switch child.Type() {
		case "assignment":
			return c.assignment(child, base)
		case "augmented_assignment":
			return &AugAssign{
				StmtBase: base,
				Target:   c.expr(child.ChildByFieldName("left")),
				Op:       c.nodeText(child.ChildByFieldName("operator")),
				Value:    c.expr(child.ChildByFieldName("right")),
			}
		}
		return &ExprStmt{StmtBase: base, X: c.expr(child)}
	}
	// "a, b" as a statement is an implicit tuple.
	tuple := &Compound{ExprBase: c.exprBase(n), Type: "expression_list"}
	for _, child := range children {
		tuple.Children = append(tuple.Children, c.expr(child))
	}
	return &ExprStmt{StmtBase: base, X: tuple}
}

// assignment flattens chained assignments ("a = b = c") into one Assign.
func (c *converter) assignment(n *sitter.Node, base StmtBase) Stmt {
	if typ := n.ChildByFieldName("type"); typ != nil {
		ann := &AnnAssign{
			StmtBase:   base,
			Target:     c.expr(n.ChildByFieldName("left")),
			Annotation: c.expr(typ),
		}
		if right := n.ChildByFieldName("right"); right != nil {
			ann.Value = c.expr(right)
		}
		return ann
	}

	a := &Assign{StmtBase: base}
	cur := n
	for {
		a.Targets = append(a.Targets, c.expr(cur.ChildByFieldName("left")))
		right := cur.ChildByFieldName("right")
		if right == nil {
			break
		}
		if right.Type() == "assignment" && right.ChildByFieldName("type") == nil {
			cur = right
			continue
		}
		a.Value = c.expr(right)
		break
	}
	return a
}

func (c *converter) ifStatement(n *sitter.Node, base StmtBase, elif bool) *If {
	s := &If{
		StmtBase: base,
		Header:   c.header(n),
		Test:     c.expr(n.ChildByFieldName("condition")),
		Elif:     elif,
	}
	s.Body, s.BodyIndent = c.body(n, "consequence", base.Indent)

	// Alternatives are a flat list of elif/else clauses; fold them into a
	// right-nested chain.
	var alts []*sitter.Node
	for _, child := range c.namedChildren(n) {
		if child.Type() == "elif_clause" || child.Type() == "else_clause" {
			alts = append(alts, child)
		}
	}
	s.Orelse = c.alternatives(alts, base.Indent)
	return s
}

func (c *converter) alternatives(alts []*sitter.Node, indent string) []Stmt {
	if len(alts) == 0 {
		return nil
	}
	first := alts[0]
	if first.Type() == "else_clause" {
		body, _ := c.body(first, "body", indent)
		return body
	}
	elif := &If{
		StmtBase: c.stmtBase(first, indent),
		Header:   c.header(first),
		Test:     c.expr(first.ChildByFieldName("condition")),
		Elif:     true,
	}
	elif.Body, elif.BodyIndent = c.body(first, "consequence", indent)
	elif.Orelse = c.alternatives(alts[1:], indent)
	return []Stmt{elif}
}

func (c *converter) elseBody(n *sitter.Node, indent string) []Stmt {
	if n == nil {
		return nil
	}
	body, _ := c.body(n, "body", indent)
	return body
}

func (c *converter) functionDef(n *sitter.Node, base StmtBase, decorators []Expr) *FunctionDef {
	f := &FunctionDef{
		StmtBase:   base,
		Name:       c.nodeText(n.ChildByFieldName("name")),
		Params:     c.params(n.ChildByFieldName("parameters")),
		Decorators: decorators,
		Header:     c.header(n),
		Async:      c.hasToken(n, "async"),
	}
	f.Body, f.BodyIndent = c.body(n, "body", base.Indent)
	return f
}

func (c *converter) classDef(n *sitter.Node, base StmtBase, decorators []Expr) *ClassDef {
	cd := &ClassDef{
		StmtBase:   base,
		Name:       c.nodeText(n.ChildByFieldName("name")),
		Decorators: decorators,
		Header:     c.header(n),
	}
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for _, child := range c.namedChildren(supers) {
			cd.Bases = append(cd.Bases, c.expr(child))
		}
	}
	cd.Body, cd.BodyIndent = c.body(n, "body", base.Indent)
	return cd
}

func (c *converter) params(n *sitter.Node) []*Param {
	if n == nil {
		return nil
	}
	var params []*Param
	for _, child := range c.namedChildren(n) {
		switch child.Type() {
		case "identifier":
			params = append(params, &Param{Name: c.nodeText(child)})
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			if id := c.findChildByType(child, "identifier"); id != nil {
				params = append(params, &Param{Name: c.nodeText(id)})
			} else if inner := c.firstNamed(child); inner != nil {
				if id := c.findChildByType(inner, "identifier"); id != nil {
					params = append(params, &Param{Name: c.nodeText(id)})
				}
			}
		case "default_parameter", "typed_default_parameter":
			p := &Param{Name: c.nodeText(child.ChildByFieldName("name"))}
			if v := child.ChildByFieldName("value"); v != nil {
				p.Default = c.expr(v)
			}
			params = append(params, p)
		}
	}
	return params
}

func (c *converter) importedNames(n *sitter.Node) []string {
	var names []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		// The module of "from m import x" binds nothing.
		if n.Type() == "import_from_statement" && i == 0 && child.Type() != "aliased_import" {
			if mod := n.ChildByFieldName("module_name"); mod != nil && mod.StartByte() == child.StartByte() {
				continue
			}
		}
		switch child.Type() {
		case "aliased_import":
			names = append(names, c.nodeText(child.ChildByFieldName("alias")))
		case "dotted_name":
			text := c.nodeText(child)
			if n.Type() == "import_statement" {
				text = strings.SplitN(text, ".", 2)[0]
			}
			names = append(names, text)
		}
	}
	return names
}

func (c *converter) expr(n *sitter.Node) Expr {
	if n == nil {
		return nil
	}
	base := c.exprBase(n)

	switch n.Type() {
	case "identifier":
		return &Name{ExprBase: base, ID: c.nodeText(n)}

	case "attribute":
		return &Attribute{
			ExprBase: base,
			Value:    c.expr(n.ChildByFieldName("object")),
			Attr:     c.nodeText(n.ChildByFieldName("attribute")),
		}

	case "call":
		call := &Call{ExprBase: base, Func: c.expr(n.ChildByFieldName("function"))}
		args := n.ChildByFieldName("arguments")
		if args != nil && args.Type() == "generator_expression" {
			call.Args = []Expr{c.expr(args)}
		} else if args != nil {
			for _, child := range c.namedChildren(args) {
				call.Args = append(call.Args, c.expr(child))
			}
		}
		return call

	case "keyword_argument":
		return &Keyword{
			ExprBase: base,
			Name:     c.nodeText(n.ChildByFieldName("name")),
			Value:    c.expr(n.ChildByFieldName("value")),
		}

	case "dictionary_splat":
		return &Keyword{ExprBase: base, Value: c.expr(c.firstNamed(n))}

	case "list_splat", "list_splat_pattern":
		return &Starred{ExprBase: base, Value: c.expr(c.firstNamed(n))}

	case "subscript":
		sub := &Subscript{ExprBase: base, Value: c.expr(n.ChildByFieldName("value"))}
		for i, child := range c.namedChildren(n) {
			if i == 0 {
				continue
			}
			sub.Index = append(sub.Index, c.expr(child))
		}
		return sub

	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		return c.comprehension(n, base)

	case "lambda":
		return &Lambda{
			ExprBase: base,
			Params:   c.params(n.ChildByFieldName("parameters")),
			Body:     c.expr(n.ChildByFieldName("body")),
		}

	case "named_expression":
		target := n.ChildByFieldName("name")
		return &NamedExpr{
			ExprBase: base,
			Target:   &Name{ExprBase: c.exprBase(target), ID: c.nodeText(target)},
			Value:    c.expr(n.ChildByFieldName("value")),
		}

	case "string":
		var parts []Expr
		for _, child := range c.namedChildren(n) {
			if child.Type() == "interpolation" {
				if inner := c.firstNamed(child); inner != nil {
					parts = append(parts, c.expr(inner))
				}
			}
		}
		if len(parts) == 0 {
			return &Literal{ExprBase: base, Type: "string"}
		}
		return &Compound{ExprBase: base, Type: "string", Children: parts}
	}

	children := c.namedChildren(n)
	if len(children) == 0 {
		return &Literal{ExprBase: base, Type: n.Type()}
	}
	comp := &Compound{ExprBase: base, Type: n.Type()}
	for _, child := range children {
		comp.Children = append(comp.Children, c.expr(child))
	}
	return comp
}

func (c *converter) comprehension(n *sitter.Node, base ExprBase) Expr {
	comp := &Comprehension{ExprBase: base, Type: n.Type(), Elt: c.expr(n.ChildByFieldName("body"))}
	var cur *CompFor
	for _, child := range c.namedChildren(n) {
		switch child.Type() {
		case "for_in_clause":
			cur = &CompFor{
				Target: c.expr(child.ChildByFieldName("left")),
				Iter:   c.expr(child.ChildByFieldName("right")),
				Async:  c.hasToken(child, "async"),
			}
			comp.Clauses = append(comp.Clauses, cur)
		case "if_clause":
			if cur != nil {
				cur.Ifs = append(cur.Ifs, c.expr(c.firstNamed(child)))
			}
		}
	}
	return comp
}

// flatten splits an implicit tuple ("del a, b") into its elements.
func (c *converter) flatten(e Expr) []Expr {
	if comp, ok := e.(*Compound); ok && comp.Type == "expression_list" {
		return comp.Children
	}
	return []Expr{e}
}

// header returns the source of a compound statement up to and including the
// colon that opens its body.
func (c *converter) header(n *sitter.Node) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && !child.IsNamed() && child.Type() == ":" {
			return string(c.content[n.StartByte():child.EndByte()])
		}
	}
	return c.nodeText(n)
}

func (c *converter) hasToken(n *sitter.Node, token string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && !child.IsNamed() && child.Type() == token {
			return true
		}
	}
	return false
}

// namedChildren returns the named children of n, skipping comments.
func (c *converter) namedChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

func (c *converter) firstNamed(n *sitter.Node) *sitter.Node {
	children := c.namedChildren(n)
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// findChildByType finds a child node of a specific type.
func (c *converter) findChildByType(node *sitter.Node, childType string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child != nil && child.Type() == childType {
			return child
		}
	}
	return nil
}

// nodeText extracts the text content of a node from the source.
func (c *converter) nodeText(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start >= uint32(len(c.content)) || end > uint32(len(c.content)) {
		return ""
	}
	return string(c.content[start:end])
}
