package extensions

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/closecrowd/apyshell/internal/engine"
	"github.com/closecrowd/apyshell/internal/object"
)

// Constructor builds a fresh extension instance.
type Constructor func() Extension

// registry maps extension names to their constructors. Extensions are
// compiled in; there is no dynamic loading.
var (
	registryMu sync.Mutex
	registry   = map[string]Constructor{}
)

// Register adds a constructor to the global registry. Called from the
// extensions' init functions.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

// Available returns the sorted names of all compiled-in extensions.
func Available() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type loadedExt struct {
	ext      Extension
	commands []string
}

// Manager tracks which extensions are loaded against one engine and owns
// their command registrations.
type Manager struct {
	mu      sync.Mutex
	api     API
	eng     *engine.Engine
	options map[string]string
	loaded  map[string]*loadedExt
	log     *slog.Logger
}

// NewManager creates a manager over an engine. The options map is passed
// to every extension as it loads; a nil logger disables manager logging.
func NewManager(eng *engine.Engine, options map[string]string, log *slog.Logger) *Manager {
	if options == nil {
		options = map[string]string{}
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := &Manager{
		api:     NewAPI(eng),
		eng:     eng,
		options: options,
		loaded:  map[string]*loadedExt{},
		log:     log,
	}
	m.registerManagerCommands()
	return m
}

// Load instantiates an extension and registers its commands. Loading an
// already-loaded extension is a no-op.
func (m *Manager) Load(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loaded[name]; ok {
		return nil
	}
	registryMu.Lock()
	ctor, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return fmt.Errorf("unknown extension %q", name)
	}
	ext := ctor()
	cmds, err := ext.Commands(m.api, m.options)
	if err != nil {
		ext.Shutdown()
		return fmt.Errorf("extension %q: %w", name, err)
	}
	if err := m.api.RegisterCommands(cmds); err != nil {
		ext.Shutdown()
		return fmt.Errorf("extension %q: %w", name, err)
	}
	names := make([]string, 0, len(cmds))
	for cname := range cmds {
		names = append(names, cname)
	}
	sort.Strings(names)
	m.loaded[name] = &loadedExt{ext: ext, commands: names}
	m.log.Info("extension loaded", "name", name, "commands", len(names))
	return nil
}

// Unload shuts an extension down and removes its commands.
func (m *Manager) Unload(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	le, ok := m.loaded[name]
	if !ok {
		return fmt.Errorf("extension %q not loaded", name)
	}
	m.api.UnregisterCommands(le.commands...)
	le.ext.Shutdown()
	delete(m.loaded, name)
	m.log.Info("extension unloaded", "name", name)
	return nil
}

// IsLoaded reports whether an extension is currently loaded.
func (m *Manager) IsLoaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loaded[name]
	return ok
}

// Loaded returns the sorted names of loaded extensions.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.loaded))
	for name := range m.loaded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown unloads every extension. Used on engine teardown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, le := range m.loaded {
		m.api.UnregisterCommands(le.commands...)
		le.ext.Shutdown()
		delete(m.loaded, name)
	}
}

// registerManagerCommands installs the extension control commands into
// the engine's symbol table.
func (m *Manager) registerManagerCommands() {
	cmds := map[string]object.BuiltinFunc{
		"loadExtension_": func(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
			name, err := oneStringArg("loadExtension_", args)
			if err != nil {
				return nil, err
			}
			if err := m.Load(name); err != nil {
				m.log.Warn("extension load failed", "name", name, "err", err)
				return object.False, nil
			}
			return object.True, nil
		},
		"unloadExtension_": func(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
			name, err := oneStringArg("unloadExtension_", args)
			if err != nil {
				return nil, err
			}
			if err := m.Unload(name); err != nil {
				return object.False, nil
			}
			return object.True, nil
		},
		"isExtLoaded_": func(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
			name, err := oneStringArg("isExtLoaded_", args)
			if err != nil {
				return nil, err
			}
			if m.IsLoaded(name) {
				return object.True, nil
			}
			return object.False, nil
		},
		"listExtensions_": func(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
			out := &object.List{}
			for _, name := range m.Loaded() {
				out.Elements = append(out.Elements, &object.Str{Value: name})
			}
			return out, nil
		},
		"availExtensions_": func(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
			out := &object.List{}
			for _, name := range Available() {
				out.Elements = append(out.Elements, &object.Str{Value: name})
			}
			return out, nil
		},
	}
	// Ignore registration conflicts here; a second manager on the same
	// engine is a caller bug surfaced by the first failing command.
	_ = m.eng.AddCommands(cmds)
}

// oneStringArg extracts a single required string argument.
func oneStringArg(cmd string, args []object.Object) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s() takes exactly one argument (%d given)", cmd, len(args))
	}
	s, ok := args[0].(*object.Str)
	if !ok {
		return "", fmt.Errorf("%s() argument must be str", cmd)
	}
	return s.Value, nil
}
