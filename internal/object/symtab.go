package object

import (
	"sort"
	"strings"
	"sync"
)

// SymbolTable is the single flat namespace shared by a whole script run and
// by any host threads that reach in through Set/Get/Delete. Every individual
// operation is serialized behind one mutex; callers that need multi-step
// atomicity must hold their own coordination.
type SymbolTable struct {
	mu       sync.Mutex
	store    map[string]Object
	readonly map[string]bool
	frozen   map[string]bool // present before any script ran
	exempt   map[string]bool // never deep-copied when shadowed
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		store:    make(map[string]Object),
		readonly: make(map[string]bool),
		frozen:   make(map[string]bool),
		exempt:   make(map[string]bool),
	}
}

// ValidName reports whether name is a syntactically valid identifier.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Reserved reports whether name belongs to the host namespace: identifiers
// ending in `_` can never be created, rebound, or deleted by script code.
func Reserved(name string) bool {
	return strings.HasSuffix(name, "_")
}

// Set stores a value unconditionally. This is the host-facing mutation path;
// script assignments go through SetChecked.
func (st *SymbolTable) Set(name string, value Object) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.store[name] = value
}

// SetChecked stores a value on behalf of script code, enforcing the reserved
// suffix and readonly rules. It reports whether the store happened.
func (st *SymbolTable) SetChecked(name string, value Object) bool {
	if !ValidName(name) || Reserved(name) {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.readonly[name] {
		return false
	}
	st.store[name] = value
	delete(st.exempt, name) // a script rebind ends the no-copy exemption
	return true
}

func (st *SymbolTable) Get(name string) (Object, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	v, ok := st.store[name]
	return v, ok
}

// Delete removes a name unconditionally (host-facing) and reports whether it
// existed.
func (st *SymbolTable) Delete(name string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.store[name]
	if ok {
		delete(st.store, name)
		delete(st.readonly, name)
		delete(st.exempt, name)
	}
	return ok
}

// DeleteChecked removes a name on behalf of script code, refusing reserved
// and readonly names.
func (st *SymbolTable) DeleteChecked(name string) bool {
	if Reserved(name) {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.readonly[name] {
		return false
	}
	_, ok := st.store[name]
	if ok {
		delete(st.store, name)
		delete(st.exempt, name)
	}
	return ok
}

func (st *SymbolTable) Has(name string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.store[name]
	return ok
}

// MarkReadonly adds names to the readonly set.
func (st *SymbolTable) MarkReadonly(names ...string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, n := range names {
		st.readonly[n] = true
	}
}

func (st *SymbolTable) IsReadonly(name string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.readonly[name]
}

// ReadonlyNames returns a sorted copy of the readonly set.
func (st *SymbolTable) ReadonlyNames() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	names := make([]string, 0, len(st.readonly))
	for n := range st.readonly {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Freeze records every current entry as frozen-at-construction; when
// markReadonly is true they also all become readonly (builtins_readonly).
func (st *SymbolTable) Freeze(markReadonly bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for n := range st.store {
		st.frozen[n] = true
		if markReadonly {
			st.readonly[n] = true
		}
	}
}

func (st *SymbolTable) IsFrozen(name string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.frozen[name]
}

// MarkExempt flags a host-provided value as never subject to shadow copying.
func (st *SymbolTable) MarkExempt(names ...string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, n := range names {
		st.exempt[n] = true
	}
}

func (st *SymbolTable) IsExempt(name string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.exempt[name]
}

// Names returns a sorted copy of all current keys.
func (st *SymbolTable) Names() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	names := make([]string, 0, len(st.store))
	for n := range st.store {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a shallow copy of the whole mapping.
func (st *SymbolTable) Snapshot() map[string]Object {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]Object, len(st.store))
	for k, v := range st.store {
		out[k] = v
	}
	return out
}
