package interp

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/closecrowd/apyshell/internal/ast"
	"github.com/closecrowd/apyshell/internal/lexer"
	"github.com/closecrowd/apyshell/internal/object"
	"github.com/closecrowd/apyshell/internal/parser"
)

const (
	defaultMaxStatementLength = 50000
	maxCallDepth              = 200
)

// Config selects the host-facing behaviors of one evaluator instance.
type Config struct {
	// MaxStatementLength caps script text length before lexing.
	MaxStatementLength int
	// RaiseErrors makes Eval return the first fault as an error instead of
	// printing it to ErrWriter.
	RaiseErrors bool
	// NoPrint silences the print builtin.
	NoPrint bool
	// PrintPrefix is prepended to every print line.
	PrintPrefix string
	// GlobalFuncs makes procedure parameter bindings write straight into
	// the shared table instead of a per-call frame.
	GlobalFuncs bool
	// BuiltinsReadonly marks every construction-time name readonly.
	BuiltinsReadonly bool

	Writer    io.Writer
	ErrWriter io.Writer
}

// Interp is one evaluator instance: the shared symbol table, the security
// policy state, and the cooperative cancellation flags. One Interp executes
// at most one call stack at a time; hosts wanting concurrent script
// execution run one Interp per caller or serialize Run/Eval externally.
// AddSymbol/GetSymbol/DelSymbol are safe from any goroutine.
type Interp struct {
	table *object.SymbolTable
	cfg   Config

	abortFlag atomic.Bool
	stopFlag  atomic.Bool

	installed     map[string]bool
	vectorCompare bool

	lastFaults []*Fault
}

// execState is the per-run execution context threaded through every
// evaluation call, so control-flow state never lives on the shared instance.
type execState struct {
	faults      []*Fault
	frames      []map[string]object.Object
	depth       int
	lastHandled *Fault // most recent fault consumed by an except clause
}

func (st *execState) topFrame() map[string]object.Object {
	if len(st.frames) == 0 {
		return nil
	}
	return st.frames[len(st.frames)-1]
}

// New builds an evaluator with the builtin symbols installed and, when
// cfg.BuiltinsReadonly is set, frozen against script mutation.
func New(cfg Config) *Interp {
	if cfg.MaxStatementLength <= 0 {
		cfg.MaxStatementLength = defaultMaxStatementLength
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.ErrWriter == nil {
		cfg.ErrWriter = os.Stderr
	}
	if cfg.PrintPrefix == "" {
		cfg.PrintPrefix = "--> "
	}

	i := &Interp{
		table:     object.NewSymbolTable(),
		cfg:       cfg,
		installed: make(map[string]bool),
	}
	installBuiltins(i)
	i.table.Set("errline_", object.None)
	i.table.Freeze(cfg.BuiltinsReadonly)
	return i
}

// Table exposes the shared symbol table to the host layer.
func (i *Interp) Table() *object.SymbolTable { return i.table }

// AddSymbol stores a value from host code. The host, unlike scripts, may use
// reserved `_`-suffix names.
func (i *Interp) AddSymbol(name string, value object.Object) error {
	if !object.ValidName(name) {
		return fmt.Errorf("invalid symbol name %q", name)
	}
	i.table.Set(name, value)
	return nil
}

// GetSymbol reads a value; missing names yield None, false.
func (i *Interp) GetSymbol(name string) (object.Object, bool) {
	v, ok := i.table.Get(name)
	if !ok {
		return object.None, false
	}
	return v, true
}

// DelSymbol removes a name from host code, ignoring the script-facing rules.
func (i *Interp) DelSymbol(name string) bool { return i.table.Delete(name) }

// ReadonlySymbols returns the current readonly name set.
func (i *Interp) ReadonlySymbols() []string { return i.table.ReadonlyNames() }

// MarkReadonly adds names to the readonly set; the host calls this right
// after registering a command.
func (i *Interp) MarkReadonly(names ...string) { i.table.MarkReadonly(names...) }

// MarkExempt flags host callables as never shadow-copied.
func (i *Interp) MarkExempt(names ...string) { i.table.MarkExempt(names...) }

// AbortRun requests cooperative cancellation; the next node boundary raises
// an AbortFault. The flag stays set until Reset.
func (i *Interp) AbortRun() { i.abortFlag.Store(true) }

// StopRun halts evaluation silently at the next node boundary.
func (i *Interp) StopRun() { i.stopFlag.Store(true) }

// Stopped reports whether a stop has been requested.
func (i *Interp) Stopped() bool { return i.stopFlag.Load() }

// Reset clears the cancellation flags and the recorded faults of the last
// run, ahead of a fresh top-level execution.
func (i *Interp) Reset() {
	i.abortFlag.Store(false)
	i.stopFlag.Store(false)
	i.lastFaults = nil
}

// Faults returns the ordered fault list of the last Run; the first entry is
// authoritative.
func (i *Interp) Faults() []*Fault { return i.lastFaults }

// LastFault returns the authoritative fault of the last Run, or nil.
func (i *Interp) LastFault() *Fault {
	if len(i.lastFaults) == 0 {
		return nil
	}
	return i.lastFaults[0]
}

// Parse turns script text into an AST, enforcing the length cap before
// lexing. Errors are always *Fault values of kind ParseFault.
func (i *Interp) Parse(text string) (*ast.Module, error) {
	if len(text) > i.cfg.MaxStatementLength {
		return nil, &Fault{
			Kind:  ParseFault,
			Class: ParseFault.className(),
			Msg:   fmt.Sprintf("statement too long (%d > %d characters)", len(text), i.cfg.MaxStatementLength),
		}
	}
	p := parser.New(lexer.New(text))
	module := p.ParseModule()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, &Fault{
			Kind:  ParseFault,
			Class: ParseFault.className(),
			Msg:   errs[0],
		}
	}
	return module, nil
}

// Run evaluates a parsed module. The result is the value of the last
// expression statement, or None. A fault is reported as a non-nil *Fault
// error; the full ordered list stays readable through Faults.
func (i *Interp) Run(module *ast.Module) (object.Object, error) {
	st := &execState{}
	result := object.Object(object.None)

	for _, stmt := range module.Statements {
		v := i.evalStatement(stmt, st)
		if v == nil {
			continue
		}
		switch sig := v.(type) {
		case *faultSignal:
			i.lastFaults = st.faults
			return object.None, sig.fault
		case *stopSignal:
			i.lastFaults = st.faults
			return object.None, nil
		case *breakSignal:
			f := newFault(ParseFault, stmt, "'break' outside loop")
			i.recordFault(st, f)
			i.lastFaults = st.faults
			return object.None, f
		case *continueSignal:
			f := newFault(ParseFault, stmt, "'continue' outside loop")
			i.recordFault(st, f)
			i.lastFaults = st.faults
			return object.None, f
		case *returnSignal:
			f := newFault(ParseFault, stmt, "'return' outside function")
			i.recordFault(st, f)
			i.lastFaults = st.faults
			return object.None, f
		default:
			result = v
		}
	}
	i.lastFaults = st.faults
	return result, nil
}

// Eval composes Parse and Run. With RaiseErrors set, faults come back as the
// error; otherwise the formatted first-fault text is written to ErrWriter
// and also returned as the value.
func (i *Interp) Eval(text string) (object.Object, error) {
	module, err := i.Parse(text)
	if err != nil {
		return i.reportFault(err)
	}
	v, err := i.Run(module)
	if err != nil {
		return i.reportFault(err)
	}
	return v, nil
}

func (i *Interp) reportFault(err error) (object.Object, error) {
	if i.cfg.RaiseErrors {
		return object.None, err
	}
	fmt.Fprintln(i.cfg.ErrWriter, err.Error())
	return &object.Str{Value: err.Error()}, nil
}

// CallProc invokes a user-defined procedure by name from host code, on a
// fresh call stack. The host serializes callback dispatch against any
// concurrently running Eval on the same instance.
func (i *Interp) CallProc(name string, args ...object.Object) (object.Object, error) {
	v, ok := i.table.Get(name)
	if !ok {
		return object.None, &Fault{Kind: NameFault, Class: NameFault.className(),
			Msg: fmt.Sprintf("'%s' is not defined", name)}
	}
	proc, ok := v.(*Procedure)
	if !ok {
		return object.None, &Fault{Kind: TypeFault, Class: TypeFault.className(),
			Msg: fmt.Sprintf("'%s' is not a procedure", name)}
	}

	st := &execState{depth: 1}
	frame, fault := proc.bind(nil, args, map[string]object.Object{})
	if fault != nil {
		return object.None, fault
	}
	st.frames = append(st.frames, frame)
	out := i.evalBody(proc.Body, st)

	if out == nil {
		return object.None, nil
	}
	switch sig := out.(type) {
	case *returnSignal:
		return sig.value, nil
	case *faultSignal:
		return object.None, sig.fault
	default:
		return object.None, nil
	}
}

// recordFault appends to the ordered channel and updates the errline_
// symbol.
func (i *Interp) recordFault(st *execState, f *Fault) *faultSignal {
	st.faults = append(st.faults, f)
	if f.Line > 0 {
		i.table.Set("errline_", &object.Int{Value: int64(f.Line)})
	}
	slog.Debug("script fault", "class", f.Class, "msg", f.Msg, "line", f.Line)
	return &faultSignal{fault: f}
}

func (i *Interp) faultf(st *execState, kind FaultKind, node ast.Node, format string, args ...interface{}) object.Object {
	return i.recordFault(st, newFault(kind, node, format, args...))
}

// pre runs the checks every node evaluation starts with: stop, abort,
// pending fault. A non-nil result short-circuits the node.
func (i *Interp) pre(st *execState, node ast.Node) object.Object {
	if i.stopFlag.Load() {
		return &stopSignal{}
	}
	if i.abortFlag.Load() {
		f := newFault(AbortFault, node, "execution aborted")
		// only record the abort once per run
		if len(st.faults) == 0 || st.faults[0].Kind != AbortFault {
			i.recordFault(st, f)
		}
		return &faultSignal{fault: f}
	}
	if len(st.faults) > 0 {
		return &faultSignal{fault: st.faults[0]}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Statement dispatch
// ---------------------------------------------------------------------------

func (i *Interp) evalStatement(stmt ast.Statement, st *execState) object.Object {
	if sig := i.pre(st, stmt); sig != nil {
		return sig
	}

	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		return i.evalExpression(s.Value, st)
	case *ast.AssignStatement:
		return i.evalAssign(s, st)
	case *ast.AugAssignStatement:
		return i.evalAugAssign(s, st)
	case *ast.DeleteStatement:
		return i.evalDelete(s, st)
	case *ast.IfStatement:
		return i.evalIf(s, st)
	case *ast.WhileStatement:
		return i.evalWhile(s, st)
	case *ast.ForStatement:
		return i.evalFor(s, st)
	case *ast.BreakStatement:
		return &breakSignal{}
	case *ast.ContinueStatement:
		return &continueSignal{}
	case *ast.PassStatement:
		return nil
	case *ast.FunctionDef:
		return i.evalFunctionDef(s, st)
	case *ast.ReturnStatement:
		return i.evalReturn(s, st)
	case *ast.TryStatement:
		return i.evalTry(s, st)
	case *ast.RaiseStatement:
		return i.evalRaise(s, st)
	case *ast.AssertStatement:
		return i.evalAssert(s, st)
	default:
		return i.faultf(st, RuntimeFault, stmt, "statement kind %T is not supported", stmt)
	}
}

func (i *Interp) evalBody(body []ast.Statement, st *execState) object.Object {
	for _, stmt := range body {
		v := i.evalStatement(stmt, st)
		if v != nil && isSignal(v) {
			return v
		}
	}
	return nil
}

func (i *Interp) evalAssign(s *ast.AssignStatement, st *execState) object.Object {
	value := i.evalExpression(s.Value, st)
	if isSignal(value) {
		return value
	}
	for _, target := range s.Targets {
		if sig := i.assignTarget(target, value, st); sig != nil {
			return sig
		}
	}
	return nil
}

func (i *Interp) evalAugAssign(s *ast.AugAssignStatement, st *execState) object.Object {
	current := i.evalExpression(s.Target, st)
	if isSignal(current) {
		return current
	}
	operand := i.evalExpression(s.Value, st)
	if isSignal(operand) {
		return operand
	}
	result, err := binaryOp(s.Op, current, operand)
	if err != nil {
		return i.opFault(st, s, err)
	}
	return i.assignTarget(s.Target, result, st)
}

// assignTarget stores value into a Store-context target; nil means success.
func (i *Interp) assignTarget(target ast.Expression, value object.Object, st *execState) object.Object {
	switch t := target.(type) {
	case *ast.Name:
		return i.assignName(t, value, st)

	case *ast.TupleLiteral:
		return i.unpackInto(t.Elements, value, target, st)
	case *ast.ListLiteral:
		return i.unpackInto(t.Elements, value, target, st)

	case *ast.SubscriptExpression:
		container := i.evalExpression(t.Value, st)
		if isSignal(container) {
			return container
		}
		index := i.evalExpression(t.Index, st)
		if isSignal(index) {
			return index
		}
		if err := storeIndex(container, index, value); err != nil {
			return i.opFault(st, t, err)
		}
		return nil

	case *ast.AttributeExpression:
		// no exposed type declares writable attributes
		if attrDenied(t.Attr) {
			return i.faultf(st, AttributeFault, t, "attribute '%s' is denied", t.Attr)
		}
		return i.faultf(st, AttributeFault, t,
			"attribute '%s' is not writable", t.Attr)

	default:
		return i.faultf(st, TypeFault, target, "cannot assign to %s", target.String())
	}
}

func (i *Interp) assignName(t *ast.Name, value object.Object, st *execState) object.Object {
	name := t.Value
	if !object.ValidName(name) {
		return i.faultf(st, NameFault, t, "invalid symbol name '%s'", name)
	}
	if object.Reserved(name) {
		return i.faultf(st, NameFault, t, "symbol name '%s' is reserved", name)
	}
	// a parameter binding shadows the global entry for the call's duration
	if frame := st.topFrame(); frame != nil {
		if _, ok := frame[name]; ok {
			frame[name] = value
			return nil
		}
	}
	if !i.table.SetChecked(name, value) {
		return i.faultf(st, NameFault, t, "cannot assign to readonly symbol '%s'", name)
	}
	return nil
}

func (i *Interp) unpackInto(targets []ast.Expression, value object.Object, node ast.Node, st *execState) object.Object {
	elements, ok := sequenceElements(value)
	if !ok {
		return i.faultf(st, TypeFault, node, "cannot unpack non-sequence %s", value.Type())
	}
	if len(elements) != len(targets) {
		return i.faultf(st, TypeFault, node,
			"unpack arity mismatch: %d target(s), %d value(s)", len(targets), len(elements))
	}
	for idx, target := range targets {
		if sig := i.assignTarget(target, elements[idx], st); sig != nil {
			return sig
		}
	}
	return nil
}

func (i *Interp) evalDelete(s *ast.DeleteStatement, st *execState) object.Object {
	for _, target := range s.Targets {
		switch t := target.(type) {
		case *ast.Name:
			name := t.Value
			if object.Reserved(name) {
				return i.faultf(st, NameFault, t, "symbol name '%s' is reserved", name)
			}
			if frame := st.topFrame(); frame != nil {
				if _, ok := frame[name]; ok {
					delete(frame, name)
					continue
				}
			}
			if i.table.IsReadonly(name) {
				return i.faultf(st, NameFault, t, "cannot delete readonly symbol '%s'", name)
			}
			if !i.table.DeleteChecked(name) {
				return i.faultf(st, NameFault, t, "'%s' is not defined", name)
			}
		case *ast.SubscriptExpression:
			container := i.evalExpression(t.Value, st)
			if isSignal(container) {
				return container
			}
			index := i.evalExpression(t.Index, st)
			if isSignal(index) {
				return index
			}
			if err := deleteIndex(container, index); err != nil {
				return i.opFault(st, t, err)
			}
		default:
			return i.faultf(st, TypeFault, target, "cannot delete %s", target.String())
		}
	}
	return nil
}

func (i *Interp) evalIf(s *ast.IfStatement, st *execState) object.Object {
	test := i.evalExpression(s.Test, st)
	if isSignal(test) {
		return test
	}
	if object.Truthy(test) {
		return i.evalBody(s.Body, st)
	}
	return i.evalBody(s.OrElse, st)
}

func (i *Interp) evalWhile(s *ast.WhileStatement, st *execState) object.Object {
	broke := false
	for {
		test := i.evalExpression(s.Test, st)
		if isSignal(test) {
			return test
		}
		if !object.Truthy(test) {
			break
		}
		v := i.evalBody(s.Body, st)
		if v == nil {
			continue
		}
		if _, ok := v.(*breakSignal); ok {
			broke = true
			break
		}
		if _, ok := v.(*continueSignal); ok {
			continue
		}
		return v
	}
	if !broke {
		return i.evalBody(s.OrElse, st)
	}
	return nil
}

func (i *Interp) evalFor(s *ast.ForStatement, st *execState) object.Object {
	iter := i.evalExpression(s.Iter, st)
	if isSignal(iter) {
		return iter
	}
	items, err := iterate(iter)
	if err != nil {
		return i.opFault(st, s.Iter, err)
	}

	broke := false
	for _, item := range items {
		if sig := i.pre(st, s); sig != nil {
			return sig
		}
		if sig := i.assignTarget(s.Target, item, st); sig != nil {
			return sig
		}
		v := i.evalBody(s.Body, st)
		if v == nil {
			continue
		}
		if _, ok := v.(*breakSignal); ok {
			broke = true
			break
		}
		if _, ok := v.(*continueSignal); ok {
			continue
		}
		return v
	}
	if !broke {
		return i.evalBody(s.OrElse, st)
	}
	return nil
}

func (i *Interp) evalFunctionDef(s *ast.FunctionDef, st *execState) object.Object {
	name := s.Name
	if !object.ValidName(name) {
		return i.faultf(st, NameFault, s, "invalid procedure name '%s'", name)
	}
	if object.Reserved(name) {
		return i.faultf(st, NameFault, s, "procedure name '%s' is reserved", name)
	}
	if i.table.IsReadonly(name) {
		return i.faultf(st, NameFault, s, "cannot redefine readonly symbol '%s'", name)
	}

	proc := &Procedure{
		Name:   name,
		Vararg: s.Vararg,
		Varkw:  s.Varkw,
		Body:   s.Body,
		Line:   s.Line(),
		Doc:    s.Doc,
	}
	for _, param := range s.Params {
		if param.Default == nil {
			proc.Params = append(proc.Params, param.Name)
			continue
		}
		dv := i.evalExpression(param.Default, st)
		if isSignal(dv) {
			return dv
		}
		proc.Kwargs = append(proc.Kwargs, KwParam{Name: param.Name, Default: dv})
	}

	if !i.table.SetChecked(name, proc) {
		return i.faultf(st, NameFault, s, "cannot redefine readonly symbol '%s'", name)
	}
	return nil
}

func (i *Interp) evalReturn(s *ast.ReturnStatement, st *execState) object.Object {
	if s.Value == nil {
		return &returnSignal{value: object.None}
	}
	v := i.evalExpression(s.Value, st)
	if isSignal(v) {
		return v
	}
	return &returnSignal{value: v}
}

func (i *Interp) evalTry(s *ast.TryStatement, st *execState) object.Object {
	var outcome object.Object

	faulted := false
	for _, stmt := range s.Body {
		v := i.evalStatement(stmt, st)
		if v == nil || !isSignal(v) {
			continue
		}
		if sig, ok := v.(*faultSignal); ok {
			faulted = true
			outcome = i.matchHandlers(s, sig.fault, st)
		} else {
			outcome = v
		}
		break
	}

	if !faulted && outcome == nil {
		outcome = i.evalBody(s.OrElse, st)
	}

	if len(s.Final) > 0 {
		// finally runs exactly once, even while a fault is pending
		savedFaults := st.faults
		st.faults = nil
		finalOutcome := i.evalBody(s.Final, st)
		if finalOutcome != nil {
			return finalOutcome // a signal from finally wins
		}
		st.faults = append(st.faults, savedFaults...)
	}
	return outcome
}

func (i *Interp) matchHandlers(s *ast.TryStatement, fault *Fault, st *execState) object.Object {
	for _, handler := range s.Handlers {
		if handler.ExcClass != "" && handler.ExcClass != fault.Class {
			continue
		}
		st.faults = nil // the handler consumes the channel
		st.lastHandled = fault
		if handler.Name != "" {
			if sig := i.assignName(&ast.Name{Value: handler.Name, Ctx: ast.Store},
				&object.Str{Value: fault.Msg}, st); sig != nil {
				return sig
			}
		}
		return i.evalBody(handler.Body, st)
	}
	return &faultSignal{fault: fault}
}

// classToKind maps the well-known exception classes a script may raise back
// onto fault kinds; anything else stays RuntimeFault with its own class.
var classToKind = map[string]FaultKind{
	"SyntaxError":    ParseFault,
	"NameError":      NameFault,
	"TypeError":      TypeFault,
	"AttributeError": AttributeFault,
	"AssertionError": AssertionFault,
	"ValueError":     ValueFault,
	"RuntimeError":   RuntimeFault,
}

func (i *Interp) evalRaise(s *ast.RaiseStatement, st *execState) object.Object {
	if s.Exc == nil {
		// bare raise: re-raise the fault the current handler consumed
		if st.lastHandled != nil {
			return i.recordFault(st, st.lastHandled)
		}
		return i.faultf(st, RuntimeFault, s, "no active exception to re-raise")
	}

	class := ""
	msg := ""
	switch exc := s.Exc.(type) {
	case *ast.CallExpression:
		name, ok := exc.Func.(*ast.Name)
		if !ok {
			return i.faultf(st, TypeFault, s, "exceptions must be raised by class name")
		}
		class = name.Value
		if len(exc.Args) > 0 {
			v := i.evalExpression(exc.Args[0], st)
			if isSignal(v) {
				return v
			}
			msg = object.Repr(v)
		}
	case *ast.Name:
		class = exc.Value
	default:
		return i.faultf(st, TypeFault, s, "exceptions must be raised by class name")
	}

	// `raise X from None` suppresses the cause; any other cause expression
	// is evaluated and appended to the message
	if s.Cause != nil {
		if _, isNone := s.Cause.(*ast.NoneLiteral); !isNone {
			cause := i.evalExpression(s.Cause, st)
			if isSignal(cause) {
				return cause
			}
			if msg == "" {
				msg = "from " + object.Repr(cause)
			} else {
				msg += " from " + object.Repr(cause)
			}
		}
	}

	kind, known := classToKind[class]
	if !known {
		kind = RuntimeFault
	}
	f := newFault(kind, s, "%s", msg)
	f.Class = class
	return i.recordFault(st, f)
}

func (i *Interp) evalAssert(s *ast.AssertStatement, st *execState) object.Object {
	test := i.evalExpression(s.Test, st)
	if isSignal(test) {
		return test
	}
	if object.Truthy(test) {
		return nil
	}
	msg := ""
	if s.Msg != nil {
		v := i.evalExpression(s.Msg, st)
		if isSignal(v) {
			return v
		}
		msg = object.Repr(v)
	}
	return i.faultf(st, AssertionFault, s, "%s", msg)
}

// ---------------------------------------------------------------------------
// Expression dispatch
// ---------------------------------------------------------------------------

func (i *Interp) evalExpression(expr ast.Expression, st *execState) object.Object {
	if sig := i.pre(st, expr); sig != nil {
		return sig
	}

	switch e := expr.(type) {
	case *ast.IntLiteral:
		return &object.Int{Value: e.Value}
	case *ast.FloatLiteral:
		return &object.Float{Value: e.Value}
	case *ast.StringLiteral:
		return &object.Str{Value: e.Value}
	case *ast.BoolLiteral:
		return object.FromBool(e.Value)
	case *ast.NoneLiteral:
		return object.None

	case *ast.Name:
		return i.evalName(e, st)

	case *ast.ListLiteral:
		elements, sig := i.evalExpressions(e.Elements, st)
		if sig != nil {
			return sig
		}
		return &object.List{Elements: elements}
	case *ast.TupleLiteral:
		elements, sig := i.evalExpressions(e.Elements, st)
		if sig != nil {
			return sig
		}
		return &object.Tuple{Elements: elements}
	case *ast.DictLiteral:
		return i.evalDictLiteral(e, st)

	case *ast.UnaryExpression:
		operand := i.evalExpression(e.Operand, st)
		if isSignal(operand) {
			return operand
		}
		v, err := unaryOp(e.Op, operand)
		if err != nil {
			return i.opFault(st, e, err)
		}
		return v

	case *ast.BinaryExpression:
		left := i.evalExpression(e.Left, st)
		if isSignal(left) {
			return left
		}
		right := i.evalExpression(e.Right, st)
		if isSignal(right) {
			return right
		}
		v, err := binaryOp(e.Op, left, right)
		if err != nil {
			return i.opFault(st, e, err)
		}
		return v

	case *ast.BoolExpression:
		return i.evalBoolExpression(e, st)
	case *ast.CompareExpression:
		return i.evalCompare(e, st)
	case *ast.IfExpression:
		test := i.evalExpression(e.Test, st)
		if isSignal(test) {
			return test
		}
		if object.Truthy(test) {
			return i.evalExpression(e.Body, st)
		}
		return i.evalExpression(e.OrElse, st)

	case *ast.CallExpression:
		return i.evalCall(e, st)
	case *ast.AttributeExpression:
		return i.evalAttribute(e, st)
	case *ast.SubscriptExpression:
		return i.evalSubscript(e, st)
	case *ast.SliceExpression:
		return i.evalSliceExpr(e, st)
	case *ast.ExtSliceExpression:
		dims, sig := i.evalExpressions(e.Dims, st)
		if sig != nil {
			return sig
		}
		return &object.Tuple{Elements: dims}

	case *ast.ListComp:
		return i.evalListComp(e, st)

	default:
		return i.faultf(st, RuntimeFault, expr, "expression kind %T is not supported", expr)
	}
}

func (i *Interp) evalExpressions(exprs []ast.Expression, st *execState) ([]object.Object, object.Object) {
	out := make([]object.Object, 0, len(exprs))
	for _, expr := range exprs {
		v := i.evalExpression(expr, st)
		if isSignal(v) {
			return nil, v
		}
		out = append(out, v)
	}
	return out, nil
}

func (i *Interp) evalName(e *ast.Name, st *execState) object.Object {
	if frame := st.topFrame(); frame != nil {
		if v, ok := frame[e.Value]; ok {
			return v
		}
	}
	if v, ok := i.table.Get(e.Value); ok {
		return v
	}
	return i.faultf(st, NameFault, e, "'%s' is not defined", e.Value)
}

func (i *Interp) evalDictLiteral(e *ast.DictLiteral, st *execState) object.Object {
	d := object.NewDict()
	for idx := range e.Keys {
		key := i.evalExpression(e.Keys[idx], st)
		if isSignal(key) {
			return key
		}
		value := i.evalExpression(e.Values[idx], st)
		if isSignal(value) {
			return value
		}
		hk, ok := key.(object.Hashable)
		if !ok {
			return i.faultf(st, TypeFault, e.Keys[idx], "unhashable type: '%s'", key.Type())
		}
		d.Pairs[hk.HashKey()] = object.DictPair{Key: key, Value: value}
	}
	return d
}

func (i *Interp) evalBoolExpression(e *ast.BoolExpression, st *execState) object.Object {
	var last object.Object = object.None
	for _, operand := range e.Values {
		v := i.evalExpression(operand, st)
		if isSignal(v) {
			return v
		}
		last = v
		if e.Op == "and" && !object.Truthy(v) {
			return v
		}
		if e.Op == "or" && object.Truthy(v) {
			return v
		}
	}
	return last
}

func (i *Interp) evalCompare(e *ast.CompareExpression, st *execState) object.Object {
	left := i.evalExpression(e.Left, st)
	if isSignal(left) {
		return left
	}

	var result object.Object = object.True
	for idx, op := range e.Ops {
		right := i.evalExpression(e.Comparators[idx], st)
		if isSignal(right) {
			return right
		}
		var v object.Object
		var err *opError
		if i.vectorCompare && len(e.Ops) == 1 {
			v, err = elementwiseCompare(op, left, right)
		} else {
			v, err = compareOp(op, left, right)
		}
		if err != nil {
			return i.opFault(st, e, err)
		}
		result = v
		// chained comparisons stop at the first false link
		if b, ok := v.(*object.Bool); ok && !b.Value {
			return object.False
		}
		left = right
	}
	return result
}

// opFault converts an operator-table error into a recorded fault.
func (i *Interp) opFault(st *execState, node ast.Node, err *opError) object.Object {
	f := newFault(err.kind, node, "%s", err.msg)
	if err.class != "" {
		f.Class = err.class
	}
	return i.recordFault(st, f)
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (i *Interp) evalCall(e *ast.CallExpression, st *execState) object.Object {
	callee := i.evalExpression(e.Func, st)
	if isSignal(callee) {
		return callee
	}

	args, sig := i.evalExpressions(e.Args, st)
	if sig != nil {
		return sig
	}
	if e.StarArg != nil {
		starred := i.evalExpression(e.StarArg, st)
		if isSignal(starred) {
			return starred
		}
		extra, ok := sequenceElements(starred)
		if !ok {
			return i.faultf(st, TypeFault, e, "argument after * must be a sequence, not %s", starred.Type())
		}
		args = append(args, extra...)
	}

	kwargs := make(map[string]object.Object, len(e.Keywords))
	for _, kw := range e.Keywords {
		v := i.evalExpression(kw.Value, st)
		if isSignal(v) {
			return v
		}
		if kw.Name != "" {
			kwargs[kw.Name] = v
			continue
		}
		// ** expansion
		d, ok := v.(*object.Dict)
		if !ok {
			return i.faultf(st, TypeFault, e, "argument after ** must be a dict, not %s", v.Type())
		}
		for _, pair := range d.Pairs {
			key, ok := pair.Key.(*object.Str)
			if !ok {
				return i.faultf(st, TypeFault, e, "keywords must be strings")
			}
			kwargs[key.Value] = pair.Value
		}
	}

	switch fn := callee.(type) {
	case *Procedure:
		return i.callProcedure(fn, e, args, kwargs, st)
	case *object.Builtin:
		v, err := fn.Fn(args, kwargs)
		if err != nil {
			if oe, ok := err.(*opError); ok {
				return i.opFault(st, e, oe)
			}
			return i.faultf(st, RuntimeFault, e, "error in call to %s(): %s", fn.Name, err.Error())
		}
		if v == nil {
			return object.None
		}
		return v
	default:
		return i.faultf(st, TypeFault, e, "'%s' object is not callable", callee.Type())
	}
}

func (i *Interp) callProcedure(proc *Procedure, e *ast.CallExpression, args []object.Object, kwargs map[string]object.Object, st *execState) object.Object {
	if st.depth >= maxCallDepth {
		return i.faultf(st, RuntimeFault, e, "maximum call depth exceeded in %s()", proc.Name)
	}

	frame, fault := proc.bind(e, args, kwargs)
	if fault != nil {
		return i.recordFault(st, fault)
	}

	st.depth++
	if i.cfg.GlobalFuncs {
		// globals-only mode: bindings land in the shared table, visible
		// and durable beyond the call
		for name, value := range frame {
			i.table.Set(name, value)
		}
	} else {
		st.frames = append(st.frames, frame)
	}

	v := i.evalBody(proc.Body, st)

	if !i.cfg.GlobalFuncs {
		st.frames = st.frames[:len(st.frames)-1]
	}
	st.depth--

	if v == nil {
		return object.None
	}
	switch sig := v.(type) {
	case *returnSignal:
		return sig.value
	case *breakSignal:
		return i.faultf(st, ParseFault, e, "'break' outside loop in %s()", proc.Name)
	case *continueSignal:
		return i.faultf(st, ParseFault, e, "'continue' outside loop in %s()", proc.Name)
	default:
		return v // fault or stop
	}
}

// ---------------------------------------------------------------------------
// Attributes, subscripts, comprehensions
// ---------------------------------------------------------------------------

func (i *Interp) evalAttribute(e *ast.AttributeExpression, st *execState) object.Object {
	target := i.evalExpression(e.Value, st)
	if isSignal(target) {
		return target
	}

	if attrDenied(e.Attr) {
		return i.faultf(st, AttributeFault, e, "attribute '%s' is denied", e.Attr)
	}

	if mod, ok := target.(*object.Module); ok {
		v, found := mod.Attrs[e.Attr]
		if !found {
			return i.faultf(st, AttributeFault, e,
				"module '%s' has no attribute '%s'", mod.Name, e.Attr)
		}
		return v
	}

	if !attrAllowed(target, e.Attr) {
		return i.faultf(st, AttributeFault, e,
			"'%s' object has no attribute '%s'", target.Type(), e.Attr)
	}

	method, ok := boundMethod(target, e.Attr)
	if !ok {
		return i.faultf(st, AttributeFault, e,
			"'%s' object has no attribute '%s'", target.Type(), e.Attr)
	}
	return method
}

func (i *Interp) evalSubscript(e *ast.SubscriptExpression, st *execState) object.Object {
	container := i.evalExpression(e.Value, st)
	if isSignal(container) {
		return container
	}
	index := i.evalExpression(e.Index, st)
	if isSignal(index) {
		return index
	}
	v, err := loadIndex(container, index)
	if err != nil {
		return i.opFault(st, e, err)
	}
	return v
}

func (i *Interp) evalSliceExpr(e *ast.SliceExpression, st *execState) object.Object {
	s := &object.Slice{Lower: object.None, Upper: object.None, Step: object.None}
	if e.Lower != nil {
		v := i.evalExpression(e.Lower, st)
		if isSignal(v) {
			return v
		}
		s.Lower = v
	}
	if e.Upper != nil {
		v := i.evalExpression(e.Upper, st)
		if isSignal(v) {
			return v
		}
		s.Upper = v
	}
	if e.Step != nil {
		v := i.evalExpression(e.Step, st)
		if isSignal(v) {
			return v
		}
		s.Step = v
	}
	return s
}

// evalListComp runs the bounded generator nest. Names bound by the targets
// are saved first and restored afterward, so nothing leaks into the
// enclosing scope.
func (i *Interp) evalListComp(e *ast.ListComp, st *execState) object.Object {
	saved := make(map[string]object.Object)
	var order []string
	for _, gen := range e.Generators {
		for _, name := range targetNames(gen.Target) {
			if _, seen := saved[name]; seen {
				continue
			}
			if v, ok := i.lookupName(name, st); ok {
				saved[name] = v
			} else {
				saved[name] = nil
			}
			order = append(order, name)
		}
	}

	out := &object.List{}
	sig := i.runGenerators(e, 0, out, st)

	// restore regardless of outcome
	for _, name := range order {
		if prior := saved[name]; prior != nil {
			i.setName(name, prior, st)
		} else {
			i.dropName(name, st)
		}
	}

	if sig != nil {
		return sig
	}
	return out
}

func (i *Interp) runGenerators(e *ast.ListComp, level int, out *object.List, st *execState) object.Object {
	if level == len(e.Generators) {
		v := i.evalExpression(e.Elt, st)
		if isSignal(v) {
			return v
		}
		out.Elements = append(out.Elements, v)
		return nil
	}

	gen := e.Generators[level]
	iter := i.evalExpression(gen.Iter, st)
	if isSignal(iter) {
		return iter
	}
	items, err := iterate(iter)
	if err != nil {
		return i.opFault(st, gen.Iter, err)
	}

	for _, item := range items {
		if sig := i.pre(st, e); sig != nil {
			return sig
		}
		if sig := i.assignTarget(gen.Target, item, st); sig != nil {
			return sig
		}
		skip := false
		for _, cond := range gen.Ifs {
			v := i.evalExpression(cond, st)
			if isSignal(v) {
				return v
			}
			if !object.Truthy(v) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if sig := i.runGenerators(e, level+1, out, st); sig != nil {
			return sig
		}
	}
	return nil
}

func targetNames(target ast.Expression) []string {
	switch t := target.(type) {
	case *ast.Name:
		return []string{t.Value}
	case *ast.TupleLiteral:
		var names []string
		for _, el := range t.Elements {
			names = append(names, targetNames(el)...)
		}
		return names
	case *ast.ListLiteral:
		var names []string
		for _, el := range t.Elements {
			names = append(names, targetNames(el)...)
		}
		return names
	}
	return nil
}

// lookupName / setName / dropName mirror the evaluator's frame-then-global
// resolution for the comprehension save/restore path.
func (i *Interp) lookupName(name string, st *execState) (object.Object, bool) {
	if frame := st.topFrame(); frame != nil {
		if v, ok := frame[name]; ok {
			return v, true
		}
	}
	return i.table.Get(name)
}

func (i *Interp) setName(name string, value object.Object, st *execState) {
	if frame := st.topFrame(); frame != nil {
		if _, ok := frame[name]; ok {
			frame[name] = value
			return
		}
	}
	i.table.Set(name, value)
}

func (i *Interp) dropName(name string, st *execState) {
	if frame := st.topFrame(); frame != nil {
		if _, ok := frame[name]; ok {
			delete(frame, name)
			return
		}
	}
	i.table.Delete(name)
}
