package interp

import (
	"strings"

	"github.com/closecrowd/apyshell/internal/ast"
	"github.com/closecrowd/apyshell/internal/object"
)

// KwParam is one keyword-with-default parameter.
type KwParam struct {
	Name    string
	Default object.Object
}

// Procedure is a user-defined callable built by a def statement. It is
// immutable after creation; re-defining the same name replaces the symbol
// table entry.
type Procedure struct {
	Name   string
	Params []string // required, in order
	Kwargs []KwParam
	Vararg string
	Varkw  string
	Body   []ast.Statement
	Line   int
	Doc    string
}

func (p *Procedure) Type() object.ObjectType { return object.PROC_OBJ }
func (p *Procedure) Inspect() string {
	var b strings.Builder
	b.WriteString("<function ")
	b.WriteString(p.Name)
	b.WriteString("(")
	parts := make([]string, 0, len(p.Params)+len(p.Kwargs)+2)
	parts = append(parts, p.Params...)
	for _, kw := range p.Kwargs {
		parts = append(parts, kw.Name+"="+kw.Default.Inspect())
	}
	if p.Vararg != "" {
		parts = append(parts, "*"+p.Vararg)
	}
	if p.Varkw != "" {
		parts = append(parts, "**"+p.Varkw)
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(")>")
	return b.String()
}

// bind maps call arguments onto parameter names, producing the local frame
// for one invocation. kwargs is consumed.
func (p *Procedure) bind(node ast.Node, args []object.Object, kwargs map[string]object.Object) (map[string]object.Object, *Fault) {
	frame := make(map[string]object.Object, len(p.Params)+len(p.Kwargs)+2)

	// (1) too few positionals: promote matching keyword arguments, in
	// declaration order, until the first gap
	for len(args) < len(p.Params) {
		name := p.Params[len(args)]
		v, ok := kwargs[name]
		if !ok {
			break
		}
		args = append(args, v)
		delete(kwargs, name)
	}

	// (2) still short
	if len(args) < len(p.Params) {
		return nil, newFault(TypeFault, node,
			"%s() missing %d required argument(s)", p.Name, len(p.Params)-len(args))
	}

	// (3) a positionally-bound required parameter must not also arrive by
	// keyword
	for i := 0; i < len(p.Params); i++ {
		if _, dup := kwargs[p.Params[i]]; dup {
			return nil, newFault(TypeFault, node,
				"%s() got multiple values for argument '%s'", p.Name, p.Params[i])
		}
	}

	// (4) required parameters consume positionals left to right
	for i, name := range p.Params {
		frame[name] = args[i]
	}
	extra := args[len(p.Params):]

	// (5) surplus positionals: vararg if declared, else keyword-with-default
	// slots in declaration order
	bound := make(map[string]bool, len(p.Kwargs))
	if p.Vararg != "" {
		frame[p.Vararg] = &object.Tuple{Elements: append([]object.Object{}, extra...)}
	} else {
		if len(extra) > len(p.Kwargs) {
			return nil, newFault(TypeFault, node, "too many arguments for %s()", p.Name)
		}
		for i, v := range extra {
			name := p.Kwargs[i].Name
			if _, dup := kwargs[name]; dup {
				return nil, newFault(TypeFault, node,
					"%s() got multiple values for argument '%s'", p.Name, name)
			}
			frame[name] = v
			bound[name] = true
		}
	}

	// (6) keyword arguments fill the remaining defaults by name
	for _, kw := range p.Kwargs {
		if bound[kw.Name] {
			continue
		}
		if v, ok := kwargs[kw.Name]; ok {
			frame[kw.Name] = v
			delete(kwargs, kw.Name)
		} else {
			frame[kw.Name] = kw.Default
		}
	}

	// (7) leftovers go to varkw or fault
	if len(kwargs) > 0 {
		if p.Varkw == "" {
			names := make([]string, 0, len(kwargs))
			for k := range kwargs {
				names = append(names, k)
			}
			return nil, newFault(TypeFault, node,
				"extra keyword arguments for %s(): %s", p.Name, strings.Join(names, ", "))
		}
		d := object.NewDict()
		for k, v := range kwargs {
			key := &object.Str{Value: k}
			d.Pairs[key.HashKey()] = object.DictPair{Key: key, Value: v}
		}
		frame[p.Varkw] = d
	} else if p.Varkw != "" {
		frame[p.Varkw] = object.NewDict()
	}

	return frame, nil
}
