package interp

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/closecrowd/apyshell/internal/object"
)

// installBuiltins populates a fresh table with the builtin callables. They
// are present before Freeze runs, so builtins_readonly covers them all.
func installBuiltins(i *Interp) {
	add := func(name string, fn object.BuiltinFunc) {
		i.table.Set(name, &object.Builtin{Name: name, Fn: fn})
	}

	add("print", func(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
		if i.cfg.NoPrint {
			return object.None, nil
		}
		parts := make([]string, len(args))
		for n, a := range args {
			parts[n] = object.Repr(a)
		}
		end := "\n"
		if e, ok := kwargs["end"].(*object.Str); ok {
			end = e.Value
		}
		sep := " "
		if s, ok := kwargs["sep"].(*object.Str); ok {
			sep = s.Value
		}
		fmt.Fprint(i.cfg.Writer, i.cfg.PrintPrefix+strings.Join(parts, sep)+end)
		return object.None, nil
	})

	add("len", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("len", args, 1, 1); err != nil {
			return nil, err
		}
		switch o := args[0].(type) {
		case *object.Str:
			return &object.Int{Value: int64(len([]rune(o.Value)))}, nil
		case *object.List:
			return &object.Int{Value: int64(len(o.Elements))}, nil
		case *object.Tuple:
			return &object.Int{Value: int64(len(o.Elements))}, nil
		case *object.Dict:
			return &object.Int{Value: int64(len(o.Pairs))}, nil
		}
		return nil, typeErrf("object of type '%s' has no len()", args[0].Type())
	})

	add("abs", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("abs", args, 1, 1); err != nil {
			return nil, err
		}
		switch o := args[0].(type) {
		case *object.Int:
			if o.Value < 0 {
				return &object.Int{Value: -o.Value}, nil
			}
			return o, nil
		case *object.Float:
			return &object.Float{Value: math.Abs(o.Value)}, nil
		case *object.Bool:
			if o.Value {
				return &object.Int{Value: 1}, nil
			}
			return &object.Int{Value: 0}, nil
		}
		return nil, typeErrf("bad operand type for abs(): '%s'", args[0].Type())
	})

	add("min", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		return extreme("min", args, -1)
	})
	add("max", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		return extreme("max", args, 1)
	})

	add("sum", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("sum", args, 1, 2); err != nil {
			return nil, err
		}
		elements, ok := sequenceElements(args[0])
		if !ok {
			return nil, typeErrf("sum() argument must be a sequence")
		}
		total := object.Object(&object.Int{Value: 0})
		if len(args) == 2 {
			total = args[1]
		}
		for _, el := range elements {
			v, err := binaryOp("+", total, el)
			if err != nil {
				return nil, err
			}
			total = v
		}
		return total, nil
	})

	add("sorted", func(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
		if err := wantArgs("sorted", args, 1, 1); err != nil {
			return nil, err
		}
		items, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		out := append([]object.Object{}, items...)
		reverse := false
		if r, ok := kwargs["reverse"]; ok {
			reverse = object.Truthy(r)
		}
		var sortErr *opError
		sort.SliceStable(out, func(a, b int) bool {
			if sortErr != nil {
				return false
			}
			cmp, err := ordering(out[a], out[b], "<")
			if err != nil {
				sortErr = err
				return false
			}
			if reverse {
				return cmp > 0
			}
			return cmp < 0
		})
		if sortErr != nil {
			return nil, sortErr
		}
		return &object.List{Elements: out}, nil
	})

	add("reversed", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("reversed", args, 1, 1); err != nil {
			return nil, err
		}
		items, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		out := make([]object.Object, len(items))
		for n, el := range items {
			out[len(items)-1-n] = el
		}
		return &object.List{Elements: out}, nil
	})

	add("range", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("range", args, 1, 3); err != nil {
			return nil, err
		}
		bounds := make([]int64, len(args))
		for n, a := range args {
			v, ok := asInt(a)
			if !ok {
				return nil, typeErrf("range() arguments must be integers, not '%s'", a.Type())
			}
			bounds[n] = v
		}
		start, stop, step := int64(0), int64(0), int64(1)
		switch len(bounds) {
		case 1:
			stop = bounds[0]
		case 2:
			start, stop = bounds[0], bounds[1]
		case 3:
			start, stop, step = bounds[0], bounds[1], bounds[2]
		}
		if step == 0 {
			return nil, valueErrf("range() step argument must not be zero")
		}
		var out []object.Object
		if step > 0 {
			for v := start; v < stop; v += step {
				out = append(out, &object.Int{Value: v})
			}
		} else {
			for v := start; v > stop; v += step {
				out = append(out, &object.Int{Value: v})
			}
		}
		return &object.List{Elements: out}, nil
	})

	add("int", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("int", args, 0, 2); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return &object.Int{Value: 0}, nil
		}
		switch o := args[0].(type) {
		case *object.Int:
			return o, nil
		case *object.Float:
			return &object.Int{Value: int64(math.Trunc(o.Value))}, nil
		case *object.Bool:
			if o.Value {
				return &object.Int{Value: 1}, nil
			}
			return &object.Int{Value: 0}, nil
		case *object.Str:
			base := 10
			if len(args) == 2 {
				b, ok := asInt(args[1])
				if !ok {
					return nil, typeErrf("int() base must be an integer")
				}
				base = int(b)
			}
			v, err := strconv.ParseInt(strings.TrimSpace(o.Value), base, 64)
			if err != nil {
				return nil, valueErrf("invalid literal for int(): %s", o.Inspect())
			}
			return &object.Int{Value: v}, nil
		}
		return nil, typeErrf("int() argument must be a string or a number, not '%s'", args[0].Type())
	})

	add("float", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("float", args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return &object.Float{Value: 0}, nil
		}
		if f, ok := object.AsFloat(args[0]); ok {
			return &object.Float{Value: f}, nil
		}
		if s, ok := args[0].(*object.Str); ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(s.Value), 64)
			if err != nil {
				return nil, valueErrf("could not convert string to float: %s", s.Inspect())
			}
			return &object.Float{Value: v}, nil
		}
		return nil, typeErrf("float() argument must be a string or a number, not '%s'", args[0].Type())
	})

	add("str", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("str", args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return &object.Str{Value: ""}, nil
		}
		return &object.Str{Value: object.Repr(args[0])}, nil
	})

	add("repr", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("repr", args, 1, 1); err != nil {
			return nil, err
		}
		return &object.Str{Value: args[0].Inspect()}, nil
	})

	add("bool", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("bool", args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return object.False, nil
		}
		return object.FromBool(object.Truthy(args[0])), nil
	})

	add("list", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("list", args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return &object.List{}, nil
		}
		items, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		return &object.List{Elements: append([]object.Object{}, items...)}, nil
	})

	add("tuple", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("tuple", args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return &object.Tuple{}, nil
		}
		items, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		return &object.Tuple{Elements: append([]object.Object{}, items...)}, nil
	})

	add("dict", func(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
		d := object.NewDict()
		for k, v := range kwargs {
			key := &object.Str{Value: k}
			d.Pairs[key.HashKey()] = object.DictPair{Key: key, Value: v}
		}
		return d, nil
	})

	add("type", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("type", args, 1, 1); err != nil {
			return nil, err
		}
		return &object.Str{Value: string(args[0].Type())}, nil
	})

	add("round", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("round", args, 1, 2); err != nil {
			return nil, err
		}
		f, ok := object.AsFloat(args[0])
		if !ok {
			return nil, typeErrf("round() argument must be a number, not '%s'", args[0].Type())
		}
		if len(args) == 2 {
			digits, ok := asInt(args[1])
			if !ok {
				return nil, typeErrf("round() ndigits must be an integer")
			}
			if digits >= 0 {
				// round on the decimal form: 2.675 is really 2.67499...,
				// so scale-multiply would give 2.68
				v, _ := strconv.ParseFloat(strconv.FormatFloat(f, 'f', int(digits), 64), 64)
				return &object.Float{Value: v}, nil
			}
			scale := math.Pow(10, float64(digits))
			return &object.Float{Value: math.Round(f*scale) / scale}, nil
		}
		return &object.Int{Value: int64(math.Round(f))}, nil
	})

	add("ord", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("ord", args, 1, 1); err != nil {
			return nil, err
		}
		s, ok := args[0].(*object.Str)
		if !ok || len([]rune(s.Value)) != 1 {
			return nil, typeErrf("ord() expected a character")
		}
		return &object.Int{Value: int64([]rune(s.Value)[0])}, nil
	})

	add("chr", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("chr", args, 1, 1); err != nil {
			return nil, err
		}
		n, ok := asInt(args[0])
		if !ok {
			return nil, typeErrf("chr() argument must be an integer")
		}
		return &object.Str{Value: string(rune(n))}, nil
	})

	add("any", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("any", args, 1, 1); err != nil {
			return nil, err
		}
		items, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		for _, el := range items {
			if object.Truthy(el) {
				return object.True, nil
			}
		}
		return object.False, nil
	})

	add("all", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs("all", args, 1, 1); err != nil {
			return nil, err
		}
		items, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		for _, el := range items {
			if !object.Truthy(el) {
				return object.False, nil
			}
		}
		return object.True, nil
	})

	add("hex", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		return baseConv("hex", args, 16, "0x")
	})
	add("oct", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		return baseConv("oct", args, 8, "0o")
	})
	add("bin", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		return baseConv("bin", args, 2, "0b")
	})
}

func extreme(name string, args []object.Object, dir int) (object.Object, error) {
	var items []object.Object
	if len(args) == 1 {
		seq, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		items = seq
	} else {
		items = args
	}
	if len(items) == 0 {
		return nil, valueErrf("%s() arg is an empty sequence", name)
	}
	best := items[0]
	for _, el := range items[1:] {
		cmp, err := ordering(el, best, "<")
		if err != nil {
			return nil, err
		}
		if (dir < 0 && cmp < 0) || (dir > 0 && cmp > 0) {
			best = el
		}
	}
	return best, nil
}

func baseConv(name string, args []object.Object, base int, prefix string) (object.Object, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	n, ok := asInt(args[0])
	if !ok {
		return nil, typeErrf("%s() argument must be an integer, not '%s'", name, args[0].Type())
	}
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return &object.Str{Value: sign + prefix + strconv.FormatInt(n, base)}, nil
}
