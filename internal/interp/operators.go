package interp

import (
	"fmt"
	"math"
	"strings"

	"github.com/closecrowd/apyshell/internal/object"
)

// opError carries the fault kind an operator failure should report as.
type opError struct {
	kind  FaultKind
	class string
	msg   string
}

func (e *opError) Error() string { return e.msg }

func typeErrf(format string, args ...interface{}) *opError {
	return &opError{kind: TypeFault, class: "TypeError", msg: fmt.Sprintf(format, args...)}
}

func zeroDivErr() *opError {
	return &opError{kind: RuntimeFault, class: "ZeroDivisionError", msg: "division by zero"}
}

func valueErrf(format string, args ...interface{}) *opError {
	return &opError{kind: ValueFault, class: "ValueError", msg: fmt.Sprintf(format, args...)}
}

// binaryOp implements the arithmetic/bitwise/sequence operator table.
func binaryOp(op string, left, right object.Object) (object.Object, *opError) {
	// int ∘ int stays integral except for true division
	if li, lok := asInt(left); lok {
		if ri, rok := asInt(right); rok {
			return intOp(op, li, ri)
		}
	}
	if lf, lok := object.AsFloat(left); lok {
		if rf, rok := object.AsFloat(right); rok {
			return floatOp(op, lf, rf)
		}
	}

	switch l := left.(type) {
	case *object.Str:
		if r, ok := right.(*object.Str); ok && op == "+" {
			return &object.Str{Value: l.Value + r.Value}, nil
		}
		if n, ok := asInt(right); ok && op == "*" {
			return &object.Str{Value: strings.Repeat(l.Value, clampRepeat(n))}, nil
		}
		if op == "%" {
			return formatStr(l.Value, right)
		}
	case *object.List:
		if r, ok := right.(*object.List); ok && op == "+" {
			return &object.List{Elements: concat(l.Elements, r.Elements)}, nil
		}
		if n, ok := asInt(right); ok && op == "*" {
			return &object.List{Elements: repeat(l.Elements, n)}, nil
		}
	case *object.Tuple:
		if r, ok := right.(*object.Tuple); ok && op == "+" {
			return &object.Tuple{Elements: concat(l.Elements, r.Elements)}, nil
		}
		if n, ok := asInt(right); ok && op == "*" {
			return &object.Tuple{Elements: repeat(l.Elements, n)}, nil
		}
	case *object.Int:
		// int * seq commutes
		if op == "*" {
			switch r := right.(type) {
			case *object.Str:
				return &object.Str{Value: strings.Repeat(r.Value, clampRepeat(l.Value))}, nil
			case *object.List:
				return &object.List{Elements: repeat(r.Elements, l.Value)}, nil
			case *object.Tuple:
				return &object.Tuple{Elements: repeat(r.Elements, l.Value)}, nil
			}
		}
	}

	return nil, typeErrf("unsupported operand type(s) for %s: '%s' and '%s'",
		op, left.Type(), right.Type())
}

func intOp(op string, l, r int64) (object.Object, *opError) {
	switch op {
	case "+":
		return &object.Int{Value: l + r}, nil
	case "-":
		return &object.Int{Value: l - r}, nil
	case "*":
		return &object.Int{Value: l * r}, nil
	case "/":
		if r == 0 {
			return nil, zeroDivErr()
		}
		return &object.Float{Value: float64(l) / float64(r)}, nil
	case "//":
		if r == 0 {
			return nil, zeroDivErr()
		}
		return &object.Int{Value: floorDiv(l, r)}, nil
	case "%":
		if r == 0 {
			return nil, zeroDivErr()
		}
		return &object.Int{Value: pyMod(l, r)}, nil
	case "**":
		if r < 0 {
			return &object.Float{Value: math.Pow(float64(l), float64(r))}, nil
		}
		return &object.Int{Value: intPow(l, r)}, nil
	case "&":
		return &object.Int{Value: l & r}, nil
	case "|":
		return &object.Int{Value: l | r}, nil
	case "^":
		return &object.Int{Value: l ^ r}, nil
	case "<<":
		if r < 0 {
			return nil, valueErrf("negative shift count")
		}
		return &object.Int{Value: l << uint64(r)}, nil
	case ">>":
		if r < 0 {
			return nil, valueErrf("negative shift count")
		}
		return &object.Int{Value: l >> uint64(r)}, nil
	}
	return nil, typeErrf("unsupported operand type(s) for %s: 'int' and 'int'", op)
}

func floatOp(op string, l, r float64) (object.Object, *opError) {
	switch op {
	case "+":
		return &object.Float{Value: l + r}, nil
	case "-":
		return &object.Float{Value: l - r}, nil
	case "*":
		return &object.Float{Value: l * r}, nil
	case "/":
		if r == 0 {
			return nil, zeroDivErr()
		}
		return &object.Float{Value: l / r}, nil
	case "//":
		if r == 0 {
			return nil, zeroDivErr()
		}
		return &object.Float{Value: math.Floor(l / r)}, nil
	case "%":
		if r == 0 {
			return nil, zeroDivErr()
		}
		m := math.Mod(l, r)
		if m != 0 && (m < 0) != (r < 0) {
			m += r
		}
		return &object.Float{Value: m}, nil
	case "**":
		return &object.Float{Value: math.Pow(l, r)}, nil
	}
	return nil, typeErrf("unsupported operand type(s) for %s: 'float' and 'float'", op)
}

// compareOp evaluates one link of a comparison chain.
func compareOp(op string, left, right object.Object) (object.Object, *opError) {
	switch op {
	case "==":
		return object.FromBool(object.Equals(left, right)), nil
	case "!=":
		return object.FromBool(!object.Equals(left, right)), nil
	case "is":
		return object.FromBool(identical(left, right)), nil
	case "is not":
		return object.FromBool(!identical(left, right)), nil
	case "in":
		v, err := contains(right, left)
		if err != nil {
			return nil, err
		}
		return object.FromBool(v), nil
	case "not in":
		v, err := contains(right, left)
		if err != nil {
			return nil, err
		}
		return object.FromBool(!v), nil
	}

	cmp, err := ordering(left, right, op)
	if err != nil {
		return nil, err
	}
	switch op {
	case "<":
		return object.FromBool(cmp < 0), nil
	case "<=":
		return object.FromBool(cmp <= 0), nil
	case ">":
		return object.FromBool(cmp > 0), nil
	case ">=":
		return object.FromBool(cmp >= 0), nil
	}
	return nil, typeErrf("unknown comparison operator %q", op)
}

// elementwiseCompare is the vector-module compare semantics: a list compared
// with a scalar or an equal-length list yields a list of bools.
func elementwiseCompare(op string, left, right object.Object) (object.Object, *opError) {
	ll, lok := left.(*object.List)
	rl, rok := right.(*object.List)

	switch {
	case lok && rok:
		if len(ll.Elements) != len(rl.Elements) {
			return nil, valueErrf("cannot compare lists of length %d and %d",
				len(ll.Elements), len(rl.Elements))
		}
		out := make([]object.Object, len(ll.Elements))
		for i := range ll.Elements {
			v, err := compareOp(op, ll.Elements[i], rl.Elements[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return &object.List{Elements: out}, nil
	case lok:
		out := make([]object.Object, len(ll.Elements))
		for i, el := range ll.Elements {
			v, err := compareOp(op, el, right)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return &object.List{Elements: out}, nil
	case rok:
		out := make([]object.Object, len(rl.Elements))
		for i, el := range rl.Elements {
			v, err := compareOp(op, left, el)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return &object.List{Elements: out}, nil
	}
	return compareOp(op, left, right)
}

// ordering returns -1/0/1 for orderable pairs.
func ordering(left, right object.Object, op string) (int, *opError) {
	if lf, lok := object.AsFloat(left); lok {
		if rf, rok := object.AsFloat(right); rok {
			switch {
			case lf < rf:
				return -1, nil
			case lf > rf:
				return 1, nil
			}
			return 0, nil
		}
	}
	if ls, lok := left.(*object.Str); lok {
		if rs, rok := right.(*object.Str); rok {
			return strings.Compare(ls.Value, rs.Value), nil
		}
	}
	le, lok := sequenceElements(left)
	re, rok := sequenceElements(right)
	if lok && rok && left.Type() == right.Type() {
		return lexicographic(le, re, op)
	}
	return 0, typeErrf("'%s' not supported between instances of '%s' and '%s'",
		op, left.Type(), right.Type())
}

func lexicographic(a, b []object.Object, op string) (int, *opError) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if object.Equals(a[i], b[i]) {
			continue
		}
		return ordering(a[i], b[i], op)
	}
	switch {
	case len(a) < len(b):
		return -1, nil
	case len(a) > len(b):
		return 1, nil
	}
	return 0, nil
}

func contains(container, item object.Object) (bool, *opError) {
	switch c := container.(type) {
	case *object.Str:
		s, ok := item.(*object.Str)
		if !ok {
			return false, typeErrf("'in <str>' requires string as left operand, not '%s'", item.Type())
		}
		return strings.Contains(c.Value, s.Value), nil
	case *object.List:
		return elementIn(c.Elements, item), nil
	case *object.Tuple:
		return elementIn(c.Elements, item), nil
	case *object.Dict:
		hk, ok := item.(object.Hashable)
		if !ok {
			return false, typeErrf("unhashable type: '%s'", item.Type())
		}
		_, found := c.Pairs[hk.HashKey()]
		return found, nil
	}
	return false, typeErrf("argument of type '%s' is not iterable", container.Type())
}

func elementIn(elements []object.Object, item object.Object) bool {
	for _, el := range elements {
		if object.Equals(el, item) {
			return true
		}
	}
	return false
}

// identical: None/True/False are shared singletons, so pointer identity
// matches script expectations for the common `x is None` forms.
func identical(a, b object.Object) bool {
	return a == b
}

func unaryOp(op string, operand object.Object) (object.Object, *opError) {
	switch op {
	case "not":
		return object.FromBool(!object.Truthy(operand)), nil
	case "-":
		switch o := operand.(type) {
		case *object.Int:
			return &object.Int{Value: -o.Value}, nil
		case *object.Float:
			return &object.Float{Value: -o.Value}, nil
		case *object.Bool:
			if o.Value {
				return &object.Int{Value: -1}, nil
			}
			return &object.Int{Value: 0}, nil
		}
	case "+":
		switch operand.(type) {
		case *object.Int, *object.Float, *object.Bool:
			return operand, nil
		}
	case "~":
		if n, ok := asInt(operand); ok {
			return &object.Int{Value: ^n}, nil
		}
	}
	return nil, typeErrf("bad operand type for unary %s: '%s'", op, operand.Type())
}

// ---------------------------------------------------------------------------

// asInt accepts int and bool (Python treats bool as an int subtype) but NOT
// float.
func asInt(obj object.Object) (int64, bool) {
	switch o := obj.(type) {
	case *object.Int:
		return o.Value, true
	case *object.Bool:
		if o.Value {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func sequenceElements(obj object.Object) ([]object.Object, bool) {
	switch o := obj.(type) {
	case *object.List:
		return o.Elements, true
	case *object.Tuple:
		return o.Elements, true
	}
	return nil, false
}

func floorDiv(l, r int64) int64 {
	q := l / r
	if (l%r != 0) && ((l < 0) != (r < 0)) {
		q--
	}
	return q
}

func pyMod(l, r int64) int64 {
	m := l % r
	if m != 0 && (m < 0) != (r < 0) {
		m += r
	}
	return m
}

func intPow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func clampRepeat(n int64) int {
	if n < 0 {
		return 0
	}
	return int(n)
}

func concat(a, b []object.Object) []object.Object {
	out := make([]object.Object, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func repeat(elements []object.Object, n int64) []object.Object {
	count := clampRepeat(n)
	out := make([]object.Object, 0, len(elements)*count)
	for i := 0; i < count; i++ {
		out = append(out, elements...)
	}
	return out
}

// formatStr implements the % string-formatting operator for the handful of
// verbs scripts actually use.
func formatStr(format string, arg object.Object) (object.Object, *opError) {
	var values []object.Object
	if t, ok := arg.(*object.Tuple); ok {
		values = t.Elements
	} else {
		values = []object.Object{arg}
	}

	var out strings.Builder
	vi := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			out.WriteByte(format[i])
			continue
		}
		i++
		if i >= len(format) {
			return nil, valueErrf("incomplete format")
		}
		if format[i] == '%' {
			out.WriteByte('%')
			continue
		}
		// copy flags/width/precision through to Go's verbs
		start := i
		for i < len(format) && strings.ContainsRune("-+ 0123456789.", rune(format[i])) {
			i++
		}
		if i >= len(format) {
			return nil, valueErrf("incomplete format")
		}
		if vi >= len(values) {
			return nil, typeErrf("not enough arguments for format string")
		}
		spec := "%" + format[start:i]
		v := values[vi]
		vi++
		switch format[i] {
		case 'd', 'i':
			n, ok := asInt(v)
			if !ok {
				if f, fok := v.(*object.Float); fok {
					n = int64(f.Value)
				} else {
					return nil, typeErrf("%%d format: a number is required, not %s", v.Type())
				}
			}
			fmt.Fprintf(&out, spec+"d", n)
		case 'f', 'e', 'g':
			f, ok := object.AsFloat(v)
			if !ok {
				return nil, typeErrf("float argument required, not %s", v.Type())
			}
			fmt.Fprintf(&out, spec+string(format[i]), f)
		case 's':
			fmt.Fprintf(&out, spec+"s", object.Repr(v))
		case 'x', 'X', 'o':
			n, ok := asInt(v)
			if !ok {
				return nil, typeErrf("%%%c format: an integer is required, not %s", format[i], v.Type())
			}
			fmt.Fprintf(&out, spec+string(format[i]), n)
		default:
			return nil, valueErrf("unsupported format character '%c'", format[i])
		}
	}
	if vi < len(values) {
		return nil, typeErrf("not all arguments converted during string formatting")
	}
	return &object.Str{Value: out.String()}, nil
}
