package interp

import (
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/closecrowd/apyshell/internal/object"
)

// Install adds a pre-approved module's names into the table. Only the fixed
// allow-list below is installable; the call is idempotent per module and
// only ever adds entries. Installing "vector" also switches comparison
// operators to element-wise semantics for lists.
func (i *Interp) Install(name string) bool {
	if i.installed[name] {
		return true
	}
	builder, ok := moduleBuilders[name]
	if !ok {
		slog.Warn("install refused", "module", name)
		return false
	}

	mod := builder()
	i.table.Set(name, mod)
	i.table.MarkReadonly(name)
	i.installed[name] = true
	if name == "vector" {
		i.vectorCompare = true
	}
	slog.Debug("module installed", "module", name)
	return true
}

// Installed lists the modules installed so far.
func (i *Interp) Installed() []string {
	out := make([]string, 0, len(i.installed))
	for name := range i.installed {
		out = append(out, name)
	}
	return out
}

// AvailableModules lists the installable module names.
func AvailableModules() []string {
	out := make([]string, 0, len(moduleBuilders))
	for name := range moduleBuilders {
		out = append(out, name)
	}
	return out
}

var moduleBuilders = map[string]func() *object.Module{
	"math":   buildMathModule,
	"time":   buildTimeModule,
	"random": buildRandomModule,
	"vector": buildVectorModule,
}

func fn1(name string, f func(float64) float64) *object.Builtin {
	return &object.Builtin{Name: name, Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs(name, args, 1, 1); err != nil {
			return nil, err
		}
		x, ok := object.AsFloat(args[0])
		if !ok {
			return nil, typeErrf("%s() argument must be a number, not '%s'", name, args[0].Type())
		}
		return &object.Float{Value: f(x)}, nil
	}}
}

func fn2(name string, f func(float64, float64) float64) *object.Builtin {
	return &object.Builtin{Name: name, Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		if err := wantArgs(name, args, 2, 2); err != nil {
			return nil, err
		}
		x, xok := object.AsFloat(args[0])
		y, yok := object.AsFloat(args[1])
		if !xok || !yok {
			return nil, typeErrf("%s() arguments must be numbers", name)
		}
		return &object.Float{Value: f(x, y)}, nil
	}}
}

func buildMathModule() *object.Module {
	return &object.Module{Name: "math", Attrs: map[string]object.Object{
		"pi":      &object.Float{Value: math.Pi},
		"e":       &object.Float{Value: math.E},
		"inf":     &object.Float{Value: math.Inf(1)},
		"nan":     &object.Float{Value: math.NaN()},
		"sqrt":    fn1("sqrt", math.Sqrt),
		"sin":     fn1("sin", math.Sin),
		"cos":     fn1("cos", math.Cos),
		"tan":     fn1("tan", math.Tan),
		"asin":    fn1("asin", math.Asin),
		"acos":    fn1("acos", math.Acos),
		"atan":    fn1("atan", math.Atan),
		"atan2":   fn2("atan2", math.Atan2),
		"log":     fn1("log", math.Log),
		"log10":   fn1("log10", math.Log10),
		"exp":     fn1("exp", math.Exp),
		"pow":     fn2("pow", math.Pow),
		"fmod":    fn2("fmod", math.Mod),
		"floor":   fn1("floor", math.Floor),
		"ceil":    fn1("ceil", math.Ceil),
		"fabs":    fn1("fabs", math.Abs),
		"trunc":   fn1("trunc", math.Trunc),
		"degrees": fn1("degrees", func(x float64) float64 { return x * 180 / math.Pi }),
		"radians": fn1("radians", func(x float64) float64 { return x * math.Pi / 180 }),
	}}
}

func buildTimeModule() *object.Module {
	return &object.Module{Name: "time", Attrs: map[string]object.Object{
		"time": &object.Builtin{Name: "time", Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			return &object.Float{Value: float64(time.Now().UnixNano()) / 1e9}, nil
		}},
		"monotonic": &object.Builtin{Name: "monotonic", Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			return &object.Float{Value: float64(time.Now().UnixNano()) / 1e9}, nil
		}},
		"sleep": &object.Builtin{Name: "sleep", Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs("sleep", args, 1, 1); err != nil {
				return nil, err
			}
			secs, ok := object.AsFloat(args[0])
			if !ok || secs < 0 {
				return nil, valueErrf("sleep() needs a non-negative number")
			}
			time.Sleep(time.Duration(secs * float64(time.Second)))
			return object.None, nil
		}},
		"strftime": &object.Builtin{Name: "strftime", Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs("strftime", args, 1, 1); err != nil {
				return nil, err
			}
			layout, ok := args[0].(*object.Str)
			if !ok {
				return nil, typeErrf("strftime() format must be a string")
			}
			return &object.Str{Value: time.Now().Format(layout.Value)}, nil
		}},
	}}
}

func buildRandomModule() *object.Module {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &object.Module{Name: "random", Attrs: map[string]object.Object{
		"random": &object.Builtin{Name: "random", Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			return &object.Float{Value: rng.Float64()}, nil
		}},
		"uniform": fn2("uniform", func(a, b float64) float64 {
			return a + rng.Float64()*(b-a)
		}),
		"randint": &object.Builtin{Name: "randint", Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs("randint", args, 2, 2); err != nil {
				return nil, err
			}
			lo, lok := asInt(args[0])
			hi, hok := asInt(args[1])
			if !lok || !hok {
				return nil, typeErrf("randint() arguments must be integers")
			}
			if hi < lo {
				return nil, valueErrf("randint() empty range")
			}
			return &object.Int{Value: lo + rng.Int63n(hi-lo+1)}, nil
		}},
		"choice": &object.Builtin{Name: "choice", Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs("choice", args, 1, 1); err != nil {
				return nil, err
			}
			elements, ok := sequenceElements(args[0])
			if !ok || len(elements) == 0 {
				return nil, valueErrf("choice() needs a non-empty sequence")
			}
			return elements[rng.Intn(len(elements))], nil
		}},
		"seed": &object.Builtin{Name: "seed", Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs("seed", args, 1, 1); err != nil {
				return nil, err
			}
			n, ok := asInt(args[0])
			if !ok {
				return nil, typeErrf("seed() argument must be an integer")
			}
			rng.Seed(n)
			return object.None, nil
		}},
	}}
}

// buildVectorModule is the numeric-vector helper set. Its presence also
// flips comparison operators to element-wise semantics for lists.
func buildVectorModule() *object.Module {
	return &object.Module{Name: "vector", Attrs: map[string]object.Object{
		"zeros": &object.Builtin{Name: "zeros", Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			return filled(args, &object.Float{Value: 0})
		}},
		"ones": &object.Builtin{Name: "ones", Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			return filled(args, &object.Float{Value: 1})
		}},
		"arange": &object.Builtin{Name: "arange", Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs("arange", args, 1, 3); err != nil {
				return nil, err
			}
			start, stop, step := 0.0, 0.0, 1.0
			vals := make([]float64, len(args))
			for n, a := range args {
				f, ok := object.AsFloat(a)
				if !ok {
					return nil, typeErrf("arange() arguments must be numbers")
				}
				vals[n] = f
			}
			switch len(vals) {
			case 1:
				stop = vals[0]
			case 2:
				start, stop = vals[0], vals[1]
			case 3:
				start, stop, step = vals[0], vals[1], vals[2]
			}
			if step == 0 {
				return nil, valueErrf("arange() step must not be zero")
			}
			var out []object.Object
			if step > 0 {
				for v := start; v < stop; v += step {
					out = append(out, &object.Float{Value: v})
				}
			} else {
				for v := start; v > stop; v += step {
					out = append(out, &object.Float{Value: v})
				}
			}
			return &object.List{Elements: out}, nil
		}},
		"dot": &object.Builtin{Name: "dot", Fn: func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs("dot", args, 2, 2); err != nil {
				return nil, err
			}
			a, aok := sequenceElements(args[0])
			b, bok := sequenceElements(args[1])
			if !aok || !bok {
				return nil, typeErrf("dot() arguments must be sequences")
			}
			if len(a) != len(b) {
				return nil, valueErrf("dot() needs equal-length sequences (%d vs %d)", len(a), len(b))
			}
			total := 0.0
			for n := range a {
				x, xok := object.AsFloat(a[n])
				y, yok := object.AsFloat(b[n])
				if !xok || !yok {
					return nil, typeErrf("dot() elements must be numbers")
				}
				total += x * y
			}
			return &object.Float{Value: total}, nil
		}},
	}}
}

func filled(args []object.Object, fill object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, typeErrf("expected a length argument, got %d", len(args))
	}
	n, ok := asInt(args[0])
	if !ok || n < 0 {
		return nil, valueErrf("length must be a non-negative integer, got %s", args[0].Inspect())
	}
	out := make([]object.Object, n)
	for idx := range out {
		out[idx] = fill
	}
	return &object.List{Elements: out}, nil
}
