package interp

import (
	"sort"
	"strings"
	"unicode"

	"github.com/closecrowd/apyshell/internal/object"
)

// titleCase uppercases the first letter of every run of letters; any
// non-letter ends a word, so "they're" becomes "They'Re" like Python's
// str.title.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inWord := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if inWord {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			inWord = true
		} else {
			b.WriteRune(r)
			inWord = false
		}
	}
	return b.String()
}

// boundMethod builds the callable for an allowed attribute read. The
// capability tables in policy.go gate which names ever reach here.
func boundMethod(target object.Object, name string) (object.Object, bool) {
	switch t := target.(type) {
	case *object.Str:
		return strMethod(t, name)
	case *object.List:
		return listMethod(t, name)
	case *object.Dict:
		return dictMethod(t, name)
	}
	return nil, false
}

func method(name string, fn object.BuiltinFunc) (object.Object, bool) {
	return &object.Builtin{Name: name, Fn: fn}, true
}

func wantArgs(name string, args []object.Object, min, max int) *opError {
	if len(args) < min || len(args) > max {
		if min == max {
			return typeErrf("%s() takes %d argument(s), got %d", name, min, len(args))
		}
		return typeErrf("%s() takes %d to %d arguments, got %d", name, min, max, len(args))
	}
	return nil
}

func argStr(name string, args []object.Object, n int) (string, *opError) {
	s, ok := args[n].(*object.Str)
	if !ok {
		return "", typeErrf("%s() argument %d must be a string, not '%s'", name, n+1, args[n].Type())
	}
	return s.Value, nil
}

func strMethod(s *object.Str, name string) (object.Object, bool) {
	v := s.Value
	switch name {
	case "upper":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			return &object.Str{Value: strings.ToUpper(v)}, nil
		})
	case "lower":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			return &object.Str{Value: strings.ToLower(v)}, nil
		})
	case "capitalize":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if v == "" {
				return s, nil
			}
			return &object.Str{Value: strings.ToUpper(v[:1]) + strings.ToLower(v[1:])}, nil
		})
	case "title":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			return &object.Str{Value: titleCase(v)}, nil
		})
	case "strip", "lstrip", "rstrip":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			cutset := " \t\n\r\v\f"
			if len(args) == 1 {
				c, err := argStr(name, args, 0)
				if err != nil {
					return nil, err
				}
				cutset = c
			}
			switch name {
			case "lstrip":
				return &object.Str{Value: strings.TrimLeft(v, cutset)}, nil
			case "rstrip":
				return &object.Str{Value: strings.TrimRight(v, cutset)}, nil
			}
			return &object.Str{Value: strings.Trim(v, cutset)}, nil
		})
	case "split", "rsplit":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if len(args) == 0 {
				fields := strings.Fields(v)
				out := make([]object.Object, len(fields))
				for i, f := range fields {
					out[i] = &object.Str{Value: f}
				}
				return &object.List{Elements: out}, nil
			}
			sep, err := argStr(name, args, 0)
			if err != nil {
				return nil, err
			}
			parts := strings.Split(v, sep)
			out := make([]object.Object, len(parts))
			for i, p := range parts {
				out[i] = &object.Str{Value: p}
			}
			return &object.List{Elements: out}, nil
		})
	case "splitlines":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			lines := strings.Split(strings.TrimSuffix(v, "\n"), "\n")
			out := make([]object.Object, len(lines))
			for i, l := range lines {
				out[i] = &object.Str{Value: strings.TrimSuffix(l, "\r")}
			}
			return &object.List{Elements: out}, nil
		})
	case "join":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			elements, ok := sequenceElements(args[0])
			if !ok {
				return nil, typeErrf("join() argument must be a sequence")
			}
			parts := make([]string, len(elements))
			for i, el := range elements {
				s, ok := el.(*object.Str)
				if !ok {
					return nil, typeErrf("join() sequence item %d is not a string", i)
				}
				parts[i] = s.Value
			}
			return &object.Str{Value: strings.Join(parts, v)}, nil
		})
	case "replace":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 2, 2); err != nil {
				return nil, err
			}
			old, err := argStr(name, args, 0)
			if err != nil {
				return nil, err
			}
			repl, err := argStr(name, args, 1)
			if err != nil {
				return nil, err
			}
			return &object.Str{Value: strings.ReplaceAll(v, old, repl)}, nil
		})
	case "find", "rfind":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			sub, err := argStr(name, args, 0)
			if err != nil {
				return nil, err
			}
			if name == "rfind" {
				return &object.Int{Value: int64(strings.LastIndex(v, sub))}, nil
			}
			return &object.Int{Value: int64(strings.Index(v, sub))}, nil
		})
	case "count":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			sub, err := argStr(name, args, 0)
			if err != nil {
				return nil, err
			}
			return &object.Int{Value: int64(strings.Count(v, sub))}, nil
		})
	case "startswith", "endswith":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			sub, err := argStr(name, args, 0)
			if err != nil {
				return nil, err
			}
			if name == "endswith" {
				return object.FromBool(strings.HasSuffix(v, sub)), nil
			}
			return object.FromBool(strings.HasPrefix(v, sub)), nil
		})
	case "isdigit", "isalpha", "isalnum", "isspace", "isupper", "islower":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			return object.FromBool(classify(v, name)), nil
		})
	case "ljust", "rjust", "center", "zfill":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 2); err != nil {
				return nil, err
			}
			width, ok := asInt(args[0])
			if !ok {
				return nil, typeErrf("%s() width must be an integer", name)
			}
			pad := " "
			if name == "zfill" {
				pad = "0"
			} else if len(args) == 2 {
				p, err := argStr(name, args, 1)
				if err != nil {
					return nil, err
				}
				pad = p
			}
			return &object.Str{Value: justify(v, int(width), pad, name)}, nil
		})
	}
	return nil, false
}

func classify(v, predicate string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		switch predicate {
		case "isdigit":
			if r < '0' || r > '9' {
				return false
			}
		case "isalpha":
			if !isAlphaRune(r) {
				return false
			}
		case "isalnum":
			if !isAlphaRune(r) && (r < '0' || r > '9') {
				return false
			}
		case "isspace":
			if !strings.ContainsRune(" \t\n\r\v\f", r) {
				return false
			}
		case "isupper":
			if r >= 'a' && r <= 'z' {
				return false
			}
		case "islower":
			if r >= 'A' && r <= 'Z' {
				return false
			}
		}
	}
	return true
}

func isAlphaRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func justify(v string, width int, pad, mode string) string {
	gap := width - len(v)
	if gap <= 0 || pad == "" {
		return v
	}
	fill := strings.Repeat(pad, gap)[:gap]
	switch mode {
	case "ljust":
		return v + fill
	case "center":
		left := gap / 2
		return fill[:left] + v + fill[left:]
	default: // rjust, zfill
		return fill + v
	}
}

func listMethod(l *object.List, name string) (object.Object, bool) {
	switch name {
	case "append":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			l.Elements = append(l.Elements, args[0])
			return object.None, nil
		})
	case "extend":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			elements, ok := sequenceElements(args[0])
			if !ok {
				return nil, typeErrf("extend() argument must be a sequence")
			}
			l.Elements = append(l.Elements, elements...)
			return object.None, nil
		})
	case "insert":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 2, 2); err != nil {
				return nil, err
			}
			n, ok := asInt(args[0])
			if !ok {
				return nil, typeErrf("insert() index must be an integer")
			}
			pos := clamp(int(n), 0, len(l.Elements))
			if int(n) < 0 {
				pos = clamp(int(n)+len(l.Elements), 0, len(l.Elements))
			}
			l.Elements = append(l.Elements, nil)
			copy(l.Elements[pos+1:], l.Elements[pos:])
			l.Elements[pos] = args[1]
			return object.None, nil
		})
	case "remove":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			for i, el := range l.Elements {
				if object.Equals(el, args[0]) {
					l.Elements = append(l.Elements[:i], l.Elements[i+1:]...)
					return object.None, nil
				}
			}
			return nil, valueErrf("list.remove(x): x not in list")
		})
	case "pop":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 0, 1); err != nil {
				return nil, err
			}
			if len(l.Elements) == 0 {
				return nil, &opError{kind: RuntimeFault, class: "IndexError", msg: "pop from empty list"}
			}
			pos := len(l.Elements) - 1
			if len(args) == 1 {
				p, err := normalizeIndex(args[0], len(l.Elements), "list")
				if err != nil {
					return nil, err
				}
				pos = p
			}
			v := l.Elements[pos]
			l.Elements = append(l.Elements[:pos], l.Elements[pos+1:]...)
			return v, nil
		})
	case "clear":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			l.Elements = nil
			return object.None, nil
		})
	case "index":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			for i, el := range l.Elements {
				if object.Equals(el, args[0]) {
					return &object.Int{Value: int64(i)}, nil
				}
			}
			return nil, valueErrf("%s is not in list", args[0].Inspect())
		})
	case "count":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			n := int64(0)
			for _, el := range l.Elements {
				if object.Equals(el, args[0]) {
					n++
				}
			}
			return &object.Int{Value: n}, nil
		})
	case "sort":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			var sortErr *opError
			sort.SliceStable(l.Elements, func(a, b int) bool {
				if sortErr != nil {
					return false
				}
				cmp, err := ordering(l.Elements[a], l.Elements[b], "<")
				if err != nil {
					sortErr = err
					return false
				}
				return cmp < 0
			})
			if sortErr != nil {
				return nil, sortErr
			}
			return object.None, nil
		})
	case "reverse":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			for a, b := 0, len(l.Elements)-1; a < b; a, b = a+1, b-1 {
				l.Elements[a], l.Elements[b] = l.Elements[b], l.Elements[a]
			}
			return object.None, nil
		})
	case "copy":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			return &object.List{Elements: append([]object.Object{}, l.Elements...)}, nil
		})
	}
	return nil, false
}

func dictMethod(d *object.Dict, name string) (object.Object, bool) {
	switch name {
	case "get":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 2); err != nil {
				return nil, err
			}
			hk, ok := args[0].(object.Hashable)
			if !ok {
				return nil, typeErrf("unhashable type: '%s'", args[0].Type())
			}
			if pair, found := d.Pairs[hk.HashKey()]; found {
				return pair.Value, nil
			}
			if len(args) == 2 {
				return args[1], nil
			}
			return object.None, nil
		})
	case "keys":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			out := make([]object.Object, 0, len(d.Pairs))
			for _, pair := range d.Pairs {
				out = append(out, pair.Key)
			}
			return &object.List{Elements: out}, nil
		})
	case "values":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			out := make([]object.Object, 0, len(d.Pairs))
			for _, pair := range d.Pairs {
				out = append(out, pair.Value)
			}
			return &object.List{Elements: out}, nil
		})
	case "items":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			out := make([]object.Object, 0, len(d.Pairs))
			for _, pair := range d.Pairs {
				out = append(out, &object.Tuple{Elements: []object.Object{pair.Key, pair.Value}})
			}
			return &object.List{Elements: out}, nil
		})
	case "pop":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 2); err != nil {
				return nil, err
			}
			hk, ok := args[0].(object.Hashable)
			if !ok {
				return nil, typeErrf("unhashable type: '%s'", args[0].Type())
			}
			if pair, found := d.Pairs[hk.HashKey()]; found {
				delete(d.Pairs, hk.HashKey())
				return pair.Value, nil
			}
			if len(args) == 2 {
				return args[1], nil
			}
			return nil, &opError{kind: RuntimeFault, class: "KeyError", msg: args[0].Inspect()}
		})
	case "clear":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			d.Pairs = make(map[object.HashKey]object.DictPair)
			return object.None, nil
		})
	case "update":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			other, ok := args[0].(*object.Dict)
			if !ok {
				return nil, typeErrf("update() argument must be a dict, not '%s'", args[0].Type())
			}
			for k, pair := range other.Pairs {
				d.Pairs[k] = pair
			}
			return object.None, nil
		})
	case "setdefault":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			if err := wantArgs(name, args, 1, 2); err != nil {
				return nil, err
			}
			hk, ok := args[0].(object.Hashable)
			if !ok {
				return nil, typeErrf("unhashable type: '%s'", args[0].Type())
			}
			if pair, found := d.Pairs[hk.HashKey()]; found {
				return pair.Value, nil
			}
			def := object.Object(object.None)
			if len(args) == 2 {
				def = args[1]
			}
			d.Pairs[hk.HashKey()] = object.DictPair{Key: args[0], Value: def}
			return def, nil
		})
	case "copy":
		return method(name, func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
			out := object.NewDict()
			for k, pair := range d.Pairs {
				out.Pairs[k] = pair
			}
			return out, nil
		})
	}
	return nil, false
}
