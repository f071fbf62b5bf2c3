// Package object defines the runtime value model shared by the evaluator and
// the host layer: every value a script can touch implements Object.
package object

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
)

type ObjectType string

const (
	NIL_OBJ     ObjectType = "NoneType"
	BOOL_OBJ    ObjectType = "bool"
	INT_OBJ     ObjectType = "int"
	FLOAT_OBJ   ObjectType = "float"
	STR_OBJ     ObjectType = "str"
	LIST_OBJ    ObjectType = "list"
	TUPLE_OBJ   ObjectType = "tuple"
	DICT_OBJ    ObjectType = "dict"
	SLICE_OBJ   ObjectType = "slice"
	BUILTIN_OBJ ObjectType = "builtin"
	PROC_OBJ    ObjectType = "function"
	MODULE_OBJ  ObjectType = "module"
)

// Object is the interface satisfied by every script-visible value.
type Object interface {
	Type() ObjectType
	Inspect() string
}

// Hashable marks values usable as dict keys.
type Hashable interface {
	HashKey() HashKey
}

type HashKey struct {
	Type  ObjectType
	Value uint64
}

// ---------------------------------------------------------------------------

type Nil struct{}

func (n *Nil) Type() ObjectType { return NIL_OBJ }
func (n *Nil) Inspect() string  { return "None" }

type Bool struct {
	Value bool
}

func (b *Bool) Type() ObjectType { return BOOL_OBJ }
func (b *Bool) Inspect() string {
	if b.Value {
		return "True"
	}
	return "False"
}
func (b *Bool) HashKey() HashKey {
	if b.Value {
		return HashKey{Type: BOOL_OBJ, Value: 1}
	}
	return HashKey{Type: BOOL_OBJ, Value: 0}
}

// Shared singletons. Comparisons still go through Equals; identity of these
// values is never significant.
var (
	None  = &Nil{}
	True  = &Bool{Value: true}
	False = &Bool{Value: false}
)

func FromBool(v bool) *Bool {
	if v {
		return True
	}
	return False
}

type Int struct {
	Value int64
}

func (i *Int) Type() ObjectType { return INT_OBJ }
func (i *Int) Inspect() string  { return strconv.FormatInt(i.Value, 10) }
func (i *Int) HashKey() HashKey { return HashKey{Type: INT_OBJ, Value: uint64(i.Value)} }

type Float struct {
	Value float64
}

func (f *Float) Type() ObjectType { return FLOAT_OBJ }
func (f *Float) Inspect() string {
	s := strconv.FormatFloat(f.Value, 'g', -1, 64)
	// show a float as a float even when it happens to be integral
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
func (f *Float) HashKey() HashKey {
	// ints and the equal float hash alike so d[1] and d[1.0] agree
	if f.Value == math.Trunc(f.Value) && !math.IsInf(f.Value, 0) {
		return HashKey{Type: INT_OBJ, Value: uint64(int64(f.Value))}
	}
	return HashKey{Type: FLOAT_OBJ, Value: math.Float64bits(f.Value)}
}

type Str struct {
	Value string
}

func (s *Str) Type() ObjectType { return STR_OBJ }
func (s *Str) Inspect() string  { return "'" + strings.ReplaceAll(s.Value, "'", "\\'") + "'" }
func (s *Str) HashKey() HashKey {
	h := fnv.New64a()
	h.Write([]byte(s.Value))
	return HashKey{Type: STR_OBJ, Value: h.Sum64()}
}

type List struct {
	Elements []Object
}

func (l *List) Type() ObjectType { return LIST_OBJ }
func (l *List) Inspect() string  { return "[" + inspectJoin(l.Elements) + "]" }

type Tuple struct {
	Elements []Object
}

func (t *Tuple) Type() ObjectType { return TUPLE_OBJ }
func (t *Tuple) Inspect() string {
	if len(t.Elements) == 1 {
		return "(" + t.Elements[0].Inspect() + ",)"
	}
	return "(" + inspectJoin(t.Elements) + ")"
}
func (t *Tuple) HashKey() HashKey {
	h := fnv.New64a()
	for _, el := range t.Elements {
		hk, ok := el.(Hashable)
		if !ok {
			return HashKey{Type: TUPLE_OBJ, Value: 0}
		}
		key := hk.HashKey()
		fmt.Fprintf(h, "%s:%d;", key.Type, key.Value)
	}
	return HashKey{Type: TUPLE_OBJ, Value: h.Sum64()}
}

type DictPair struct {
	Key   Object
	Value Object
}

type Dict struct {
	Pairs map[HashKey]DictPair
}

func NewDict() *Dict {
	return &Dict{Pairs: make(map[HashKey]DictPair)}
}

func (d *Dict) Type() ObjectType { return DICT_OBJ }
func (d *Dict) Inspect() string {
	parts := make([]string, 0, len(d.Pairs))
	for _, pair := range d.Pairs {
		parts = append(parts, pair.Key.Inspect()+": "+pair.Value.Inspect())
	}
	sort.Strings(parts) // stable output for tests and error text
	return "{" + strings.Join(parts, ", ") + "}"
}

// Slice is the evaluated form of a[lo:hi:step]; any bound may be None.
type Slice struct {
	Lower Object
	Upper Object
	Step  Object
}

func (s *Slice) Type() ObjectType { return SLICE_OBJ }
func (s *Slice) Inspect() string {
	return fmt.Sprintf("slice(%s, %s, %s)", s.Lower.Inspect(), s.Upper.Inspect(), s.Step.Inspect())
}

// BuiltinFunc is the signature of host-provided callables and builtins.
type BuiltinFunc func(args []Object, kwargs map[string]Object) (Object, error)

type Builtin struct {
	Name string
	Fn   BuiltinFunc
}

func (b *Builtin) Type() ObjectType { return BUILTIN_OBJ }
func (b *Builtin) Inspect() string  { return "<builtin " + b.Name + ">" }

// Module is an installed module namespace: attribute reads resolve against
// Attrs under the evaluator's attribute policy.
type Module struct {
	Name  string
	Attrs map[string]Object
}

func (m *Module) Type() ObjectType { return MODULE_OBJ }
func (m *Module) Inspect() string  { return "<module " + m.Name + ">" }

// ---------------------------------------------------------------------------

func inspectJoin(elements []Object) string {
	parts := make([]string, len(elements))
	for i, el := range elements {
		parts[i] = el.Inspect()
	}
	return strings.Join(parts, ", ")
}

// Truthy applies Python truthiness rules.
func Truthy(obj Object) bool {
	switch o := obj.(type) {
	case *Nil:
		return false
	case *Bool:
		return o.Value
	case *Int:
		return o.Value != 0
	case *Float:
		return o.Value != 0
	case *Str:
		return len(o.Value) != 0
	case *List:
		return len(o.Elements) != 0
	case *Tuple:
		return len(o.Elements) != 0
	case *Dict:
		return len(o.Pairs) != 0
	default:
		return true
	}
}

// Equals applies Python equality: numeric types compare by value across
// int/float/bool, containers compare element-wise, everything else by
// identity of the underlying value.
func Equals(a, b Object) bool {
	if an, aok := asFloat(a); aok {
		bn, bok := asFloat(b)
		return bok && an == bn
	}
	switch av := a.(type) {
	case *Nil:
		_, ok := b.(*Nil)
		return ok
	case *Str:
		bv, ok := b.(*Str)
		return ok && av.Value == bv.Value
	case *List:
		bv, ok := b.(*List)
		return ok && elementsEqual(av.Elements, bv.Elements)
	case *Tuple:
		bv, ok := b.(*Tuple)
		return ok && elementsEqual(av.Elements, bv.Elements)
	case *Dict:
		bv, ok := b.(*Dict)
		if !ok || len(av.Pairs) != len(bv.Pairs) {
			return false
		}
		for k, pair := range av.Pairs {
			other, found := bv.Pairs[k]
			if !found || !Equals(pair.Value, other.Value) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func elementsEqual(a, b []Object) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equals(a[i], b[i]) {
			return false
		}
	}
	return true
}

func asFloat(obj Object) (float64, bool) {
	switch o := obj.(type) {
	case *Int:
		return float64(o.Value), true
	case *Float:
		return o.Value, true
	case *Bool:
		if o.Value {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsFloat exposes numeric widening to the evaluator's operator table.
func AsFloat(obj Object) (float64, bool) { return asFloat(obj) }

// Repr renders a value the way the script-level str() does: bare strings,
// repr-style containers.
func Repr(obj Object) string {
	if s, ok := obj.(*Str); ok {
		return s.Value
	}
	return obj.Inspect()
}
