package ast

import (
	"bytes"
	"strings"

	"github.com/closecrowd/apyshell/internal/token"
)

// ExprContext distinguishes how a name/attribute/subscript/container node is
// being used. The evaluator dispatches on it (loads resolve values, stores
// and deletes return assignment targets).
type ExprContext int

const (
	Load ExprContext = iota
	Store
	Del
)

// The base Node interface. Every node remembers the source line it came from
// so faults can point at it.
type Node interface {
	Line() int
	String() string
}

type Statement interface {
	Node
	statementNode()
}

type Expression interface {
	Node
	expressionNode()
}

// Module is the top-level statement sequence produced by a parse.
type Module struct {
	Statements []Statement
}

func (m *Module) Line() int {
	if len(m.Statements) > 0 {
		return m.Statements[0].Line()
	}
	return 0
}

func (m *Module) String() string {
	var out bytes.Buffer
	for _, s := range m.Statements {
		out.WriteString(s.String())
		out.WriteString("\n")
	}
	return out.String()
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

type ExpressionStatement struct {
	Token token.Token
	Value Expression
}

func (s *ExpressionStatement) statementNode() {}
func (s *ExpressionStatement) Line() int      { return s.Token.Line }
func (s *ExpressionStatement) String() string { return s.Value.String() }

type AssignStatement struct {
	Token   token.Token
	Targets []Expression // chained targets: a = b = expr
	Value   Expression
}

func (s *AssignStatement) statementNode() {}
func (s *AssignStatement) Line() int      { return s.Token.Line }
func (s *AssignStatement) String() string {
	var out bytes.Buffer
	for _, t := range s.Targets {
		out.WriteString(t.String())
		out.WriteString(" = ")
	}
	out.WriteString(s.Value.String())
	return out.String()
}

type AugAssignStatement struct {
	Token  token.Token
	Target Expression
	Op     string // "+", "-", ...
	Value  Expression
}

func (s *AugAssignStatement) statementNode() {}
func (s *AugAssignStatement) Line() int      { return s.Token.Line }
func (s *AugAssignStatement) String() string {
	return s.Target.String() + " " + s.Op + "= " + s.Value.String()
}

type DeleteStatement struct {
	Token   token.Token
	Targets []Expression
}

func (s *DeleteStatement) statementNode() {}
func (s *DeleteStatement) Line() int      { return s.Token.Line }
func (s *DeleteStatement) String() string {
	parts := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		parts[i] = t.String()
	}
	return "del " + strings.Join(parts, ", ")
}

type IfStatement struct {
	Token  token.Token
	Test   Expression
	Body   []Statement
	OrElse []Statement // elif chains are nested IfStatements in OrElse
}

func (s *IfStatement) statementNode() {}
func (s *IfStatement) Line() int      { return s.Token.Line }
func (s *IfStatement) String() string { return "if " + s.Test.String() + ": ..." }

type WhileStatement struct {
	Token  token.Token
	Test   Expression
	Body   []Statement
	OrElse []Statement
}

func (s *WhileStatement) statementNode() {}
func (s *WhileStatement) Line() int      { return s.Token.Line }
func (s *WhileStatement) String() string { return "while " + s.Test.String() + ": ..." }

type ForStatement struct {
	Token  token.Token
	Target Expression // Name or TupleLiteral in Store context
	Iter   Expression
	Body   []Statement
	OrElse []Statement
}

func (s *ForStatement) statementNode() {}
func (s *ForStatement) Line() int      { return s.Token.Line }
func (s *ForStatement) String() string {
	return "for " + s.Target.String() + " in " + s.Iter.String() + ": ..."
}

type BreakStatement struct {
	Token token.Token
}

func (s *BreakStatement) statementNode() {}
func (s *BreakStatement) Line() int      { return s.Token.Line }
func (s *BreakStatement) String() string { return "break" }

type ContinueStatement struct {
	Token token.Token
}

func (s *ContinueStatement) statementNode() {}
func (s *ContinueStatement) Line() int      { return s.Token.Line }
func (s *ContinueStatement) String() string { return "continue" }

type PassStatement struct {
	Token token.Token
}

func (s *PassStatement) statementNode() {}
func (s *PassStatement) Line() int      { return s.Token.Line }
func (s *PassStatement) String() string { return "pass" }

// Param is a single formal parameter of a def. Default is nil for required
// parameters.
type Param struct {
	Name    string
	Default Expression
}

type FunctionDef struct {
	Token  token.Token
	Name   string
	Params []Param
	Vararg string // *args name, "" when absent
	Varkw  string // **kwargs name, "" when absent
	Body   []Statement
	Doc    string
}

func (s *FunctionDef) statementNode() {}
func (s *FunctionDef) Line() int      { return s.Token.Line }
func (s *FunctionDef) String() string {
	parts := make([]string, 0, len(s.Params)+2)
	for _, p := range s.Params {
		if p.Default != nil {
			parts = append(parts, p.Name+"="+p.Default.String())
		} else {
			parts = append(parts, p.Name)
		}
	}
	if s.Vararg != "" {
		parts = append(parts, "*"+s.Vararg)
	}
	if s.Varkw != "" {
		parts = append(parts, "**"+s.Varkw)
	}
	return "def " + s.Name + "(" + strings.Join(parts, ", ") + "): ..."
}

type ReturnStatement struct {
	Token token.Token
	Value Expression // nil for a bare `return`
}

func (s *ReturnStatement) statementNode() {}
func (s *ReturnStatement) Line() int      { return s.Token.Line }
func (s *ReturnStatement) String() string {
	if s.Value == nil {
		return "return"
	}
	return "return " + s.Value.String()
}

type ExceptHandler struct {
	Token    token.Token
	ExcClass string // "" matches anything
	Name     string // `as name` binding, "" when absent
	Body     []Statement
}

func (h *ExceptHandler) Line() int { return h.Token.Line }

type TryStatement struct {
	Token    token.Token
	Body     []Statement
	Handlers []*ExceptHandler
	OrElse   []Statement
	Final    []Statement
}

func (s *TryStatement) statementNode() {}
func (s *TryStatement) Line() int      { return s.Token.Line }
func (s *TryStatement) String() string { return "try: ..." }

type RaiseStatement struct {
	Token token.Token
	Exc   Expression // nil for a bare re-raise
	Cause Expression // `raise X from Y`, nil when absent
}

func (s *RaiseStatement) statementNode() {}
func (s *RaiseStatement) Line() int      { return s.Token.Line }
func (s *RaiseStatement) String() string {
	if s.Exc == nil {
		return "raise"
	}
	return "raise " + s.Exc.String()
}

type AssertStatement struct {
	Token token.Token
	Test  Expression
	Msg   Expression // nil when absent
}

func (s *AssertStatement) statementNode() {}
func (s *AssertStatement) Line() int      { return s.Token.Line }
func (s *AssertStatement) String() string { return "assert " + s.Test.String() }

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

type Name struct {
	Token token.Token
	Value string
	Ctx   ExprContext
}

func (e *Name) expressionNode() {}
func (e *Name) Line() int       { return e.Token.Line }
func (e *Name) String() string  { return e.Value }

type IntLiteral struct {
	Token token.Token
	Value int64
}

func (e *IntLiteral) expressionNode() {}
func (e *IntLiteral) Line() int       { return e.Token.Line }
func (e *IntLiteral) String() string  { return e.Token.Literal }

type FloatLiteral struct {
	Token token.Token
	Value float64
}

func (e *FloatLiteral) expressionNode() {}
func (e *FloatLiteral) Line() int       { return e.Token.Line }
func (e *FloatLiteral) String() string  { return e.Token.Literal }

type StringLiteral struct {
	Token token.Token
	Value string
}

func (e *StringLiteral) expressionNode() {}
func (e *StringLiteral) Line() int       { return e.Token.Line }
func (e *StringLiteral) String() string  { return "'" + e.Value + "'" }

type BoolLiteral struct {
	Token token.Token
	Value bool
}

func (e *BoolLiteral) expressionNode() {}
func (e *BoolLiteral) Line() int       { return e.Token.Line }
func (e *BoolLiteral) String() string  { return e.Token.Literal }

type NoneLiteral struct {
	Token token.Token
}

func (e *NoneLiteral) expressionNode() {}
func (e *NoneLiteral) Line() int       { return e.Token.Line }
func (e *NoneLiteral) String() string  { return "None" }

type UnaryExpression struct {
	Token   token.Token
	Op      string // "-", "+", "~", "not"
	Operand Expression
}

func (e *UnaryExpression) expressionNode() {}
func (e *UnaryExpression) Line() int       { return e.Token.Line }
func (e *UnaryExpression) String() string {
	if e.Op == "not" {
		return "(not " + e.Operand.String() + ")"
	}
	return "(" + e.Op + e.Operand.String() + ")"
}

type BinaryExpression struct {
	Token token.Token
	Left  Expression
	Op    string // "+", "-", "*", "/", "//", "%", "**", "&", "|", "^", "<<", ">>"
	Right Expression
}

func (e *BinaryExpression) expressionNode() {}
func (e *BinaryExpression) Line() int       { return e.Token.Line }
func (e *BinaryExpression) String() string {
	return "(" + e.Left.String() + " " + e.Op + " " + e.Right.String() + ")"
}

type BoolExpression struct {
	Token  token.Token
	Op     string // "and", "or"
	Values []Expression
}

func (e *BoolExpression) expressionNode() {}
func (e *BoolExpression) Line() int       { return e.Token.Line }
func (e *BoolExpression) String() string {
	parts := make([]string, len(e.Values))
	for i, v := range e.Values {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, " "+e.Op+" ") + ")"
}

// CompareExpression holds an operator chain: a < b <= c has Left=a,
// Ops=["<", "<="], Comparators=[b, c].
type CompareExpression struct {
	Token       token.Token
	Left        Expression
	Ops         []string
	Comparators []Expression
}

func (e *CompareExpression) expressionNode() {}
func (e *CompareExpression) Line() int       { return e.Token.Line }
func (e *CompareExpression) String() string {
	var out bytes.Buffer
	out.WriteString("(" + e.Left.String())
	for i, op := range e.Ops {
		out.WriteString(" " + op + " " + e.Comparators[i].String())
	}
	out.WriteString(")")
	return out.String()
}

type IfExpression struct {
	Token  token.Token
	Test   Expression
	Body   Expression
	OrElse Expression
}

func (e *IfExpression) expressionNode() {}
func (e *IfExpression) Line() int       { return e.Token.Line }
func (e *IfExpression) String() string {
	return "(" + e.Body.String() + " if " + e.Test.String() + " else " + e.OrElse.String() + ")"
}

type Keyword struct {
	Name  string // "" for **expr spreads
	Value Expression
}

type CallExpression struct {
	Token    token.Token
	Func     Expression
	Args     []Expression
	StarArg  Expression // *seq, nil when absent
	Keywords []Keyword
}

func (e *CallExpression) expressionNode() {}
func (e *CallExpression) Line() int       { return e.Token.Line }
func (e *CallExpression) String() string {
	parts := make([]string, 0, len(e.Args)+len(e.Keywords))
	for _, a := range e.Args {
		parts = append(parts, a.String())
	}
	if e.StarArg != nil {
		parts = append(parts, "*"+e.StarArg.String())
	}
	for _, k := range e.Keywords {
		if k.Name == "" {
			parts = append(parts, "**"+k.Value.String())
		} else {
			parts = append(parts, k.Name+"="+k.Value.String())
		}
	}
	return e.Func.String() + "(" + strings.Join(parts, ", ") + ")"
}

type AttributeExpression struct {
	Token token.Token
	Value Expression
	Attr  string
	Ctx   ExprContext
}

func (e *AttributeExpression) expressionNode() {}
func (e *AttributeExpression) Line() int       { return e.Token.Line }
func (e *AttributeExpression) String() string  { return e.Value.String() + "." + e.Attr }

type SubscriptExpression struct {
	Token token.Token
	Value Expression
	Index Expression // plain expression, SliceExpression, or ExtSliceExpression
	Ctx   ExprContext
}

func (e *SubscriptExpression) expressionNode() {}
func (e *SubscriptExpression) Line() int       { return e.Token.Line }
func (e *SubscriptExpression) String() string {
	return e.Value.String() + "[" + e.Index.String() + "]"
}

type SliceExpression struct {
	Token token.Token
	Lower Expression // nil when omitted
	Upper Expression
	Step  Expression
}

func (e *SliceExpression) expressionNode() {}
func (e *SliceExpression) Line() int       { return e.Token.Line }
func (e *SliceExpression) String() string {
	var out bytes.Buffer
	if e.Lower != nil {
		out.WriteString(e.Lower.String())
	}
	out.WriteString(":")
	if e.Upper != nil {
		out.WriteString(e.Upper.String())
	}
	if e.Step != nil {
		out.WriteString(":" + e.Step.String())
	}
	return out.String()
}

// ExtSliceExpression is a multi-dimension subscript: a[1:2, ::2].
type ExtSliceExpression struct {
	Token token.Token
	Dims  []Expression
}

func (e *ExtSliceExpression) expressionNode() {}
func (e *ExtSliceExpression) Line() int       { return e.Token.Line }
func (e *ExtSliceExpression) String() string {
	parts := make([]string, len(e.Dims))
	for i, d := range e.Dims {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}

type ListLiteral struct {
	Token    token.Token
	Elements []Expression
	Ctx      ExprContext
}

func (e *ListLiteral) expressionNode() {}
func (e *ListLiteral) Line() int       { return e.Token.Line }
func (e *ListLiteral) String() string {
	parts := make([]string, len(e.Elements))
	for i, el := range e.Elements {
		parts[i] = el.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

type TupleLiteral struct {
	Token    token.Token
	Elements []Expression
	Ctx      ExprContext
}

func (e *TupleLiteral) expressionNode() {}
func (e *TupleLiteral) Line() int       { return e.Token.Line }
func (e *TupleLiteral) String() string {
	parts := make([]string, len(e.Elements))
	for i, el := range e.Elements {
		parts[i] = el.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

type DictLiteral struct {
	Token  token.Token
	Keys   []Expression
	Values []Expression
}

func (e *DictLiteral) expressionNode() {}
func (e *DictLiteral) Line() int       { return e.Token.Line }
func (e *DictLiteral) String() string {
	parts := make([]string, len(e.Keys))
	for i := range e.Keys {
		parts[i] = e.Keys[i].String() + ": " + e.Values[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Comprehension is one `for target in iter [if cond]*` clause of a list
// comprehension.
type Comprehension struct {
	Target Expression
	Iter   Expression
	Ifs    []Expression
}

// ListComp supports a bounded number of chained generators (MaxGenerators).
type ListComp struct {
	Token      token.Token
	Elt        Expression
	Generators []Comprehension
}

// MaxGenerators bounds how many chained for-clauses a comprehension may have.
const MaxGenerators = 4

func (e *ListComp) expressionNode() {}
func (e *ListComp) Line() int       { return e.Token.Line }
func (e *ListComp) String() string {
	var out bytes.Buffer
	out.WriteString("[" + e.Elt.String())
	for _, g := range e.Generators {
		out.WriteString(" for " + g.Target.String() + " in " + g.Iter.String())
		for _, cond := range g.Ifs {
			out.WriteString(" if " + cond.String())
		}
	}
	out.WriteString("]")
	return out.String()
}
