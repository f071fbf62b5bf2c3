// Package engine wraps one evaluator with the host-side conventions:
// `_`-suffixed command registration, script file loading with a sanitized
// search path, persistent procedures across reloads, and the system
// variable store.
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/closecrowd/apyshell/internal/interp"
	"github.com/closecrowd/apyshell/internal/object"
)

// DefaultExtension is appended to script names given without one.
const DefaultExtension = ".apy"

// Options configures an engine instance.
type Options struct {
	// ScriptDirs is the search path for LoadScript, in order.
	ScriptDirs []string
	// Extension overrides DefaultExtension.
	Extension string

	RaiseErrors bool
	NoPrint     bool
	GlobalFuncs bool

	Writer    io.Writer
	ErrWriter io.Writer
}

// Engine owns one evaluator plus the host bookkeeping around it.
type Engine struct {
	interp *interp.Interp
	opts   Options

	mu           sync.Mutex
	commands     map[string]bool
	persistProcs map[string]bool
	sysvars      map[string]object.Object

	exitRequested bool
	exitCode      int64
}

func New(opts Options) *Engine {
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	if opts.ErrWriter == nil {
		opts.ErrWriter = os.Stderr
	}

	e := &Engine{
		opts: opts,
		interp: interp.New(interp.Config{
			RaiseErrors:      opts.RaiseErrors,
			NoPrint:          opts.NoPrint,
			GlobalFuncs:      opts.GlobalFuncs,
			BuiltinsReadonly: true,
			Writer:           opts.Writer,
			ErrWriter:        opts.ErrWriter,
		}),
		commands:     make(map[string]bool),
		persistProcs: make(map[string]bool),
		sysvars:      make(map[string]object.Object),
	}
	e.registerEngineCommands()
	return e
}

// Interp exposes the wrapped evaluator.
func (e *Engine) Interp() *interp.Interp { return e.interp }

// ---------------------------------------------------------------------------
// Command registration
// ---------------------------------------------------------------------------

// RegisterCommand installs a host callable under a `_`-suffixed name,
// marking it readonly atomically with registration so scripts can never
// shadow or remove it.
func (e *Engine) RegisterCommand(name string, fn object.BuiltinFunc) error {
	if !object.ValidName(name) || !strings.HasSuffix(name, "_") {
		return fmt.Errorf("command name %q must be a valid identifier ending in '_'", name)
	}
	e.interp.AddSymbol(name, &object.Builtin{Name: name, Fn: fn})
	e.interp.MarkReadonly(name)
	e.interp.MarkExempt(name)

	e.mu.Lock()
	e.commands[name] = true
	e.mu.Unlock()
	slog.Debug("command registered", "name", name)
	return nil
}

// AddCommands registers a batch of commands, stopping at the first failure.
func (e *Engine) AddCommands(cmds map[string]object.BuiltinFunc) error {
	for name, fn := range cmds {
		if err := e.RegisterCommand(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// UnregisterCommand removes a previously registered command.
func (e *Engine) UnregisterCommand(name string) bool {
	e.mu.Lock()
	known := e.commands[name]
	delete(e.commands, name)
	e.mu.Unlock()
	if !known {
		return false
	}
	e.interp.DelSymbol(name)
	slog.Debug("command unregistered", "name", name)
	return true
}

// Commands lists the registered command names.
func (e *Engine) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.commands))
	for name := range e.commands {
		out = append(out, name)
	}
	return out
}

// ---------------------------------------------------------------------------
// Script loading
// ---------------------------------------------------------------------------

// SanitizeScriptName strips path-escape attempts from a script name:
// backslashes, parent references, doubled and leading slashes. An empty
// result or a remaining unsafe character rejects the name.
func SanitizeScriptName(name string) (string, error) {
	s := strings.ReplaceAll(name, "\\", "")
	s = strings.ReplaceAll(s, "..", "")
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return "", fmt.Errorf("empty script name")
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.' || r == '/':
		default:
			return "", fmt.Errorf("unsafe character %q in script name", r)
		}
	}
	return s, nil
}

// FindScript resolves a sanitized name against the search path, appending
// the default extension when absent.
func (e *Engine) FindScript(name string) (string, error) {
	clean, err := SanitizeScriptName(name)
	if err != nil {
		return "", err
	}
	if filepath.Ext(clean) == "" {
		clean += e.opts.Extension
	}
	dirs := e.opts.ScriptDirs
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, dir := range dirs {
		path := filepath.Join(dir, clean)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("script %q not found", clean)
}

// LoadScript locates, reads, and evaluates a script file. With persist set,
// every procedure the script defines survives ClearProcs.
func (e *Engine) LoadScript(name string, persist bool) (object.Object, error) {
	path, err := e.FindScript(name)
	if err != nil {
		return object.None, err
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return object.None, err
	}

	var before map[string]bool
	if persist {
		before = e.procNames()
	}

	// a fresh top-level run clears any abort or stop left by the last one
	e.interp.Reset()

	slog.Debug("loading script", "path", path, "persist", persist)
	v, err := e.interp.Eval(string(text))

	if persist {
		e.mu.Lock()
		for name := range e.procNames() {
			if !before[name] {
				e.persistProcs[name] = true
			}
		}
		e.mu.Unlock()
	}
	return v, err
}

func (e *Engine) procNames() map[string]bool {
	out := make(map[string]bool)
	for name, value := range e.interp.Table().Snapshot() {
		if _, ok := value.(*interp.Procedure); ok {
			out[name] = true
		}
	}
	return out
}

// ClearProcs removes all user-defined procedures except the persistent set
// and any names in keep.
func (e *Engine) ClearProcs(keep []string) {
	keepSet := make(map[string]bool, len(keep))
	for _, name := range keep {
		keepSet[name] = true
	}
	e.mu.Lock()
	persist := make(map[string]bool, len(e.persistProcs))
	for name := range e.persistProcs {
		persist[name] = true
	}
	e.mu.Unlock()

	for name := range e.procNames() {
		if persist[name] || keepSet[name] {
			continue
		}
		e.interp.DelSymbol(name)
	}
}

// ---------------------------------------------------------------------------
// Host-facing evaluator access
// ---------------------------------------------------------------------------

// Eval runs script text through the wrapped evaluator.
func (e *Engine) Eval(text string) (object.Object, error) { return e.interp.Eval(text) }

// Check parses script text without running it.
func (e *Engine) Check(text string) error {
	_, err := e.interp.Parse(text)
	return err
}

func (e *Engine) GetVar(name string) (object.Object, bool) { return e.interp.GetSymbol(name) }

func (e *Engine) SetVar(name string, value object.Object) error {
	return e.interp.AddSymbol(name, value)
}

// SetSysVar stores a host-controlled value readable from scripts only
// through getSysVar_.
func (e *Engine) SetSysVar(name string, value object.Object) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sysvars[name] = value
}

func (e *Engine) AbortRun() { e.interp.AbortRun() }
func (e *Engine) StopRun()  { e.interp.StopRun() }

// ExitRequested reports whether a script called exit_, and the code it gave.
func (e *Engine) ExitRequested() (bool, int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exitRequested, e.exitCode
}

// IsDef reports whether name is a user-defined procedure.
func (e *Engine) IsDef(name string) bool {
	v, ok := e.interp.GetSymbol(name)
	if !ok {
		return false
	}
	_, isProc := v.(*interp.Procedure)
	return isProc
}

// ListDefs returns the names of all user-defined procedures.
func (e *Engine) ListDefs() []string {
	var out []string
	for name := range e.procNames() {
		out = append(out, name)
	}
	return out
}

// ---------------------------------------------------------------------------
// Script commands
// ---------------------------------------------------------------------------

func (e *Engine) registerEngineCommands() {
	must := func(err error) {
		if err != nil {
			panic(err) // registration of the fixed set never fails
		}
	}

	must(e.RegisterCommand("eval_", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		src, err := oneStringArg("eval_", args)
		if err != nil {
			return nil, err
		}
		return e.interp.Eval(src)
	}))

	must(e.RegisterCommand("check_", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		src, err := oneStringArg("check_", args)
		if err != nil {
			return nil, err
		}
		if err := e.Check(src); err != nil {
			return &object.Str{Value: err.Error()}, nil
		}
		return object.True, nil
	}))

	must(e.RegisterCommand("install_", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		name, err := oneStringArg("install_", args)
		if err != nil {
			return nil, err
		}
		return object.FromBool(e.interp.Install(name)), nil
	}))

	must(e.RegisterCommand("listModules_", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		names := interp.AvailableModules()
		out := make([]object.Object, len(names))
		for i, n := range names {
			out[i] = &object.Str{Value: n}
		}
		return &object.List{Elements: out}, nil
	}))

	must(e.RegisterCommand("loadScript_", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("loadScript_ takes 1 or 2 arguments")
		}
		name, ok := args[0].(*object.Str)
		if !ok {
			return nil, fmt.Errorf("loadScript_ needs a script name")
		}
		persist := len(args) == 2 && object.Truthy(args[1])
		return e.LoadScript(name.Value, persist)
	}))

	must(e.RegisterCommand("isDef_", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		name, err := oneStringArg("isDef_", args)
		if err != nil {
			return nil, err
		}
		return object.FromBool(e.IsDef(name)), nil
	}))

	must(e.RegisterCommand("listDefs_", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		var out []object.Object
		for _, name := range e.ListDefs() {
			out = append(out, &object.Str{Value: name})
		}
		return &object.List{Elements: out}, nil
	}))

	must(e.RegisterCommand("getvar_", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("getvar_ takes 1 or 2 arguments")
		}
		name, ok := args[0].(*object.Str)
		if !ok {
			return nil, fmt.Errorf("getvar_ needs a symbol name")
		}
		if v, found := e.GetVar(name.Value); found {
			return v, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return object.None, nil
	}))

	must(e.RegisterCommand("setvar_", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("setvar_ takes 2 arguments")
		}
		name, ok := args[0].(*object.Str)
		if !ok {
			return nil, fmt.Errorf("setvar_ needs a symbol name")
		}
		// scripts cannot smuggle writes into the host namespace this way
		if strings.HasSuffix(name.Value, "_") {
			return nil, fmt.Errorf("symbol name %q is reserved", name.Value)
		}
		if err := e.SetVar(name.Value, args[1]); err != nil {
			return nil, err
		}
		return object.True, nil
	}))

	must(e.RegisterCommand("getSysVar_", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("getSysVar_ takes 1 or 2 arguments")
		}
		name, ok := args[0].(*object.Str)
		if !ok {
			return nil, fmt.Errorf("getSysVar_ needs a name")
		}
		e.mu.Lock()
		v, found := e.sysvars[name.Value]
		e.mu.Unlock()
		if found {
			return v, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return object.None, nil
	}))

	must(e.RegisterCommand("exit_", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		code := int64(0)
		if len(args) == 1 {
			if n, ok := args[0].(*object.Int); ok {
				code = n.Value
			}
		}
		e.mu.Lock()
		e.exitRequested = true
		e.exitCode = code
		e.mu.Unlock()
		e.interp.StopRun()
		return object.None, nil
	}))
}

func oneStringArg(cmd string, args []object.Object) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s takes exactly 1 argument", cmd)
	}
	s, ok := args[0].(*object.Str)
	if !ok {
		return "", fmt.Errorf("%s needs a string argument, got %s", cmd, args[0].Type())
	}
	return s.Value, nil
}
