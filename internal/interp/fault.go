// Package interp is the tree-walking evaluator: node dispatch, the shared
// symbol table's script-facing rules, the procedure calling convention, the
// security policy, and the structured fault channel that emulates
// try/except, loops, and return without host control-flow primitives.
package interp

import (
	"fmt"

	"github.com/closecrowd/apyshell/internal/ast"
	"github.com/closecrowd/apyshell/internal/object"
)

type FaultKind int

const (
	ParseFault FaultKind = iota
	NameFault
	TypeFault
	AttributeFault
	AssertionFault
	AbortFault
	ValueFault
	RuntimeFault
)

// className maps a fault kind to the exception-class name used both in
// host-facing messages and by except-clause matching.
func (k FaultKind) className() string {
	switch k {
	case ParseFault:
		return "SyntaxError"
	case NameFault:
		return "NameError"
	case TypeFault:
		return "TypeError"
	case AttributeFault:
		return "AttributeError"
	case AssertionFault:
		return "AssertionError"
	case ValueFault:
		return "ValueError"
	default:
		return "RuntimeError"
	}
}

// Fault is one structured, recoverable error record. Class is normally the
// kind's exception-class name but a script `raise SomeError(...)` may carry
// any class, and except clauses match on it.
type Fault struct {
	Kind  FaultKind
	Class string
	Msg   string
	Line  int
	Expr  string
	Node  ast.Node
}

func newFault(kind FaultKind, node ast.Node, format string, args ...interface{}) *Fault {
	f := &Fault{
		Kind:  kind,
		Class: kind.className(),
		Msg:   fmt.Sprintf(format, args...),
		Node:  node,
	}
	if node != nil {
		f.Line = node.Line()
		f.Expr = node.String()
	}
	return f
}

// Error formats the host-facing text: "<Class>: <msg> at line N".
func (f *Fault) Error() string {
	if f.Line > 0 {
		return fmt.Sprintf("%s: %s at line %d", f.Class, f.Msg, f.Line)
	}
	return fmt.Sprintf("%s: %s", f.Class, f.Msg)
}

// ---------------------------------------------------------------------------
// Control-flow signals. These are sentinel result values passed up the
// evaluation recursion; they never escape Run/Eval.
// ---------------------------------------------------------------------------

type faultSignal struct {
	fault *Fault
}

func (s *faultSignal) Type() object.ObjectType { return "fault" }
func (s *faultSignal) Inspect() string         { return "<fault " + s.fault.Class + ">" }

type returnSignal struct {
	value object.Object // always non-nil; bare `return` carries None
}

func (s *returnSignal) Type() object.ObjectType { return "return" }
func (s *returnSignal) Inspect() string         { return "<return>" }

type breakSignal struct{}

func (s *breakSignal) Type() object.ObjectType { return "break" }
func (s *breakSignal) Inspect() string         { return "<break>" }

type continueSignal struct{}

func (s *continueSignal) Type() object.ObjectType { return "continue" }
func (s *continueSignal) Inspect() string         { return "<continue>" }

// stopSignal halts evaluation silently after StopRun.
type stopSignal struct{}

func (s *stopSignal) Type() object.ObjectType { return "stop" }
func (s *stopSignal) Inspect() string         { return "<stop>" }

// isSignal reports whether a result value is a control-flow sentinel that
// must be propagated instead of used as a value.
func isSignal(obj object.Object) bool {
	switch obj.(type) {
	case *faultSignal, *returnSignal, *breakSignal, *continueSignal, *stopSignal:
		return true
	}
	return false
}
