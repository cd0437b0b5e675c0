// Package pyast models the subset of Python that the mutation pipeline
// understands. Trees are produced by Parse, printed by Print and treated as
// immutable: passes that want a different tree build new nodes.
package pyast

// Span records where a node came from in the original source.
type Span struct {
	Text   string // original source text of the node
	Line   int    // 1-based start line
	Col    int    // 0-based start column (bytes)
	Indent string // indentation of the enclosing block, statements only
}

// Source returns the original text of the node.
func (s *Span) Source() string { return s.Text }

// Position returns the 1-based start line of the node.
func (s *Span) Position() int { return s.Line }

// Indentation returns the leading whitespace used when printing a statement.
func (s *Span) Indentation() string { return s.Indent }

// Node is implemented by every tree node.
type Node interface {
	Kind() string
	Source() string
	Position() int
}

// Stmt is a statement node.
type Stmt interface {
	Node
	Indentation() string
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// StmtBase is embedded by statement nodes.
type StmtBase struct{ Span }

func (*StmtBase) stmtNode() {}

// ExprBase is embedded by expression nodes.
type ExprBase struct{ Span }

func (*ExprBase) exprNode() {}

// Module is the root of a parsed file.
type Module struct {
	Span
	Body []Stmt
}

func (*Module) Kind() string { return "module" }

// Functional is a function-like definition: a def or a lambda.
type Functional interface {
	Node
	FuncName() string
	ParamList() []*Param
}

// Param is one formal parameter.
type Param struct {
	Name    string
	Default Expr // nil when absent
}

// ---- statements ----

// Assign is `a = b` or `a = b = c`.
type Assign struct {
	StmtBase
	Targets []Expr
	Value   Expr
}

// AugAssign is `a += b`.
type AugAssign struct {
	StmtBase
	Target Expr
	Op     string
	Value  Expr
}

// AnnAssign is `a: T = b`; Value is nil for a bare annotation.
type AnnAssign struct {
	StmtBase
	Target     Expr
	Annotation Expr
	Value      Expr
}

// ExprStmt is an expression used as a statement: calls, docstrings, bare names.
type ExprStmt struct {
	StmtBase
	X Expr
}

// Comment is a comment line. Placeholder comments are inserted by analysis
// passes into empty chunks and never printed.
type Comment struct {
	StmtBase
	Placeholder bool
}

// Pass is `pass`.
type Pass struct{ StmtBase }

// Return is `return [value]`.
type Return struct {
	StmtBase
	Value Expr
}

// Raise is `raise [exc [from cause]]`.
type Raise struct {
	StmtBase
	Exc   Expr
	Cause Expr
}

// Break is `break`.
type Break struct{ StmtBase }

// Continue is `continue`.
type Continue struct{ StmtBase }

// Import is any import statement. Names holds the names it binds locally.
type Import struct {
	StmtBase
	Names []string
}

// Delete is `del a, b`.
type Delete struct {
	StmtBase
	Targets []Expr
}

// Assert is `assert test[, msg]`.
type Assert struct {
	StmtBase
	Test Expr
	Msg  Expr
}

// Global is `global a, b` or, with Nonlocal set, `nonlocal a, b`.
type Global struct {
	StmtBase
	Names    []string
	Nonlocal bool
}

// If is an if statement. An elif clause is represented as an If with Elif
// set, as the only statement of its parent's Orelse.
type If struct {
	StmtBase
	Header     string // "if cond:" or "elif cond:"
	Test       Expr
	Body       []Stmt
	Orelse     []Stmt
	Elif       bool
	BodyIndent string
}

// While is a while loop with an optional else clause.
type While struct {
	StmtBase
	Header     string
	Test       Expr
	Body       []Stmt
	Orelse     []Stmt
	BodyIndent string
}

// For is a for loop with an optional else clause.
type For struct {
	StmtBase
	Header     string
	Target     Expr
	Iter       Expr
	Body       []Stmt
	Orelse     []Stmt
	Async      bool
	BodyIndent string
}

// FunctionDef is a def statement.
type FunctionDef struct {
	StmtBase
	Name       string
	Params     []*Param
	Decorators []Expr
	Header     string // "def name(params) -> ret:"
	Body       []Stmt
	Async      bool
	BodyIndent string
}

func (f *FunctionDef) FuncName() string    { return f.Name }
func (f *FunctionDef) ParamList() []*Param { return f.Params }

// ClassDef is a class statement.
type ClassDef struct {
	StmtBase
	Name       string
	Bases      []Expr
	Decorators []Expr
	Header     string
	Body       []Stmt
	BodyIndent string
}

// Opaque is a statement the pipeline has no rule for (try, with, match, ...).
// It is printed verbatim and rejected inside analyzed function bodies.
type Opaque struct {
	StmtBase
	Type string // tree-sitter node type
}

func (*Assign) Kind() string      { return "assign" }
func (*AugAssign) Kind() string   { return "aug_assign" }
func (*AnnAssign) Kind() string   { return "ann_assign" }
func (*ExprStmt) Kind() string    { return "expr_stmt" }
func (*Comment) Kind() string     { return "comment" }
func (*Pass) Kind() string        { return "pass" }
func (*Return) Kind() string      { return "return" }
func (*Raise) Kind() string       { return "raise" }
func (*Break) Kind() string       { return "break" }
func (*Continue) Kind() string    { return "continue" }
func (*Import) Kind() string      { return "import" }
func (*Delete) Kind() string      { return "delete" }
func (*Assert) Kind() string      { return "assert" }
func (*If) Kind() string          { return "if" }
func (*While) Kind() string       { return "while" }
func (*For) Kind() string         { return "for" }
func (*FunctionDef) Kind() string { return "function_def" }
func (*ClassDef) Kind() string    { return "class_def" }
func (o *Opaque) Kind() string    { return o.Type }

func (g *Global) Kind() string {
	if g.Nonlocal {
		return "nonlocal"
	}
	return "global"
}

// ---- expressions ----

// Name is a bare identifier.
type Name struct {
	ExprBase
	ID string
}

// Attribute is `value.attr`.
type Attribute struct {
	ExprBase
	Value Expr
	Attr  string
}

// Call is `func(args...)`.
type Call struct {
	ExprBase
	Func Expr
	Args []Expr
}

// Keyword is a `name=value` call argument; Name is empty for `**value`.
type Keyword struct {
	ExprBase
	Name  string
	Value Expr
}

// Starred is `*value` in calls, targets and displays.
type Starred struct {
	ExprBase
	Value Expr
}

// Subscript is `value[index...]`.
type Subscript struct {
	ExprBase
	Value Expr
	Index []Expr
}

// Comprehension covers list/set/dict comprehensions and generator
// expressions. For dict comprehensions Elt is the key/value pair.
type Comprehension struct {
	ExprBase
	Type    string
	Elt     Expr
	Clauses []*CompFor
}

// CompFor is one `for target in iter if cond...` clause.
type CompFor struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
	Async  bool
}

// Lambda is `lambda params: body`.
type Lambda struct {
	ExprBase
	Params []*Param
	Body   Expr
}

func (*Lambda) FuncName() string      { return "<lambda>" }
func (l *Lambda) ParamList() []*Param { return l.Params }

// NamedExpr is the walrus `target := value`.
type NamedExpr struct {
	ExprBase
	Target *Name
	Value  Expr
}

// Literal is a constant with no sub-expressions.
type Literal struct {
	ExprBase
	Type string
}

// Compound is any other expression; Children are its operand expressions.
type Compound struct {
	ExprBase
	Type     string
	Children []Expr
}

func (*Name) Kind() string          { return "name" }
func (*Attribute) Kind() string     { return "attribute" }
func (*Call) Kind() string          { return "call" }
func (*Keyword) Kind() string       { return "keyword" }
func (*Starred) Kind() string       { return "starred" }
func (*Subscript) Kind() string     { return "subscript" }
func (*Comprehension) Kind() string { return "comprehension" }
func (*Lambda) Kind() string        { return "lambda" }
func (*NamedExpr) Kind() string     { return "named_expr" }
func (l *Literal) Kind() string     { return l.Type }
func (c *Compound) Kind() string    { return c.Type }

// IsControlFlow reports whether n is an if, while or for statement.
func IsControlFlow(n Node) bool {
	switch n.(type) {
	case *If, *While, *For:
		return true
	}
	return false
}

// IsDefinition reports whether n is a function, lambda or class definition.
func IsDefinition(n Node) bool {
	switch n.(type) {
	case *FunctionDef, *Lambda, *ClassDef:
		return true
	}
	return false
}

// IsDocString reports whether s is a bare string literal statement.
func IsDocString(s Stmt) bool {
	es, ok := s.(*ExprStmt)
	if !ok {
		return false
	}
	switch x := es.X.(type) {
	case *Literal:
		return x.Type == "string"
	case *Compound:
		return x.Type == "concatenated_string" || x.Type == "string"
	}
	return false
}

// FirstLine returns the first source line of n, trimmed.
func FirstLine(n Node) string {
	text := n.Source()
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			return trimSpace(text[:i])
		}
	}
	return trimSpace(text)
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}
