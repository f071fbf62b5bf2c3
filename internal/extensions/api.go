// Package extensions holds the compiled-in extension framework and the
// stock extensions: named commands layered on the engine that give scripts
// guarded access to files, queues, SQL databases, timers, shared
// containers, event flags, HTTP, and host utilities.
package extensions

import (
	"sync"

	"github.com/closecrowd/apyshell/internal/engine"
	"github.com/closecrowd/apyshell/internal/object"
)

// API is the narrow engine surface handed to extensions.
type API interface {
	RegisterCommands(cmds map[string]object.BuiltinFunc) error
	UnregisterCommands(names ...string)
	GetVar(name string) (object.Object, bool)
	SetVar(name string, value object.Object) error
	SetSysVar(name string, value object.Object)
	LoadScript(name string, persist bool) (object.Object, error)
	// HandleEvent calls back into a script procedure. Calls are serialized
	// so extension goroutines never overlap on the evaluator.
	HandleEvent(proc string, args ...object.Object) (object.Object, error)
}

// Extension is one compiled-in feature set. Commands builds the command map
// for registration; Shutdown releases whatever the extension holds.
type Extension interface {
	Name() string
	Commands(api API, options map[string]string) (map[string]object.BuiltinFunc, error)
	Shutdown()
}

// engineAPI adapts an engine.Engine to the API interface.
type engineAPI struct {
	eng     *engine.Engine
	eventMu sync.Mutex
}

// NewAPI wraps an engine for extension use.
func NewAPI(eng *engine.Engine) API {
	return &engineAPI{eng: eng}
}

func (a *engineAPI) RegisterCommands(cmds map[string]object.BuiltinFunc) error {
	return a.eng.AddCommands(cmds)
}

func (a *engineAPI) UnregisterCommands(names ...string) {
	for _, name := range names {
		a.eng.UnregisterCommand(name)
	}
}

func (a *engineAPI) GetVar(name string) (object.Object, bool) { return a.eng.GetVar(name) }

func (a *engineAPI) SetVar(name string, value object.Object) error {
	return a.eng.SetVar(name, value)
}

func (a *engineAPI) SetSysVar(name string, value object.Object) { a.eng.SetSysVar(name, value) }

func (a *engineAPI) LoadScript(name string, persist bool) (object.Object, error) {
	return a.eng.LoadScript(name, persist)
}

func (a *engineAPI) HandleEvent(proc string, args ...object.Object) (object.Object, error) {
	a.eventMu.Lock()
	defer a.eventMu.Unlock()
	return a.eng.Interp().CallProc(proc, args...)
}

// optBool reads a truthy option value.
func optBool(options map[string]string, key string) bool {
	switch options[key] {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func optStr(options map[string]string, key, def string) string {
	if v, ok := options[key]; ok && v != "" {
		return v
	}
	return def
}
