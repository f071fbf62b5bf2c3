package interp

import (
	"github.com/closecrowd/apyshell/internal/object"
)

// loadIndex implements subscript reads: plain indexes, slices, and the
// extended multi-dimension form, which applies each dimension in turn to the
// elements produced by the previous one.
func loadIndex(container, index object.Object) (object.Object, *opError) {
	switch idx := index.(type) {
	case *object.Slice:
		return loadSlice(container, idx)
	case *object.Tuple: // extended slice a[1:, ::2]
		result := container
		for dimNo, dim := range idx.Elements {
			if dimNo == 0 {
				v, err := loadIndex(result, dim)
				if err != nil {
					return nil, err
				}
				result = v
				continue
			}
			rows, ok := result.(*object.List)
			if !ok {
				return nil, typeErrf("extended slice needs nested lists, got '%s'", result.Type())
			}
			out := make([]object.Object, len(rows.Elements))
			for rowNo, row := range rows.Elements {
				v, err := loadIndex(row, dim)
				if err != nil {
					return nil, err
				}
				out[rowNo] = v
			}
			result = &object.List{Elements: out}
		}
		return result, nil
	}

	switch c := container.(type) {
	case *object.List:
		pos, err := normalizeIndex(index, len(c.Elements), "list")
		if err != nil {
			return nil, err
		}
		return c.Elements[pos], nil
	case *object.Tuple:
		pos, err := normalizeIndex(index, len(c.Elements), "tuple")
		if err != nil {
			return nil, err
		}
		return c.Elements[pos], nil
	case *object.Str:
		runes := []rune(c.Value)
		pos, err := normalizeIndex(index, len(runes), "string")
		if err != nil {
			return nil, err
		}
		return &object.Str{Value: string(runes[pos])}, nil
	case *object.Dict:
		hk, ok := index.(object.Hashable)
		if !ok {
			return nil, typeErrf("unhashable type: '%s'", index.Type())
		}
		pair, found := c.Pairs[hk.HashKey()]
		if !found {
			return nil, &opError{kind: RuntimeFault, class: "KeyError", msg: index.Inspect()}
		}
		return pair.Value, nil
	}
	return nil, typeErrf("'%s' object is not subscriptable", container.Type())
}

func storeIndex(container, index, value object.Object) *opError {
	switch c := container.(type) {
	case *object.List:
		pos, err := normalizeIndex(index, len(c.Elements), "list")
		if err != nil {
			return err
		}
		c.Elements[pos] = value
		return nil
	case *object.Dict:
		hk, ok := index.(object.Hashable)
		if !ok {
			return typeErrf("unhashable type: '%s'", index.Type())
		}
		c.Pairs[hk.HashKey()] = object.DictPair{Key: index, Value: value}
		return nil
	case *object.Tuple:
		return typeErrf("'tuple' object does not support item assignment")
	case *object.Str:
		return typeErrf("'str' object does not support item assignment")
	}
	return typeErrf("'%s' object does not support item assignment", container.Type())
}

func deleteIndex(container, index object.Object) *opError {
	switch c := container.(type) {
	case *object.List:
		pos, err := normalizeIndex(index, len(c.Elements), "list")
		if err != nil {
			return err
		}
		c.Elements = append(c.Elements[:pos], c.Elements[pos+1:]...)
		return nil
	case *object.Dict:
		hk, ok := index.(object.Hashable)
		if !ok {
			return typeErrf("unhashable type: '%s'", index.Type())
		}
		if _, found := c.Pairs[hk.HashKey()]; !found {
			return &opError{kind: RuntimeFault, class: "KeyError", msg: index.Inspect()}
		}
		delete(c.Pairs, hk.HashKey())
		return nil
	}
	return typeErrf("'%s' object does not support item deletion", container.Type())
}

// normalizeIndex converts a (possibly negative) script index into a bounds
// checked position.
func normalizeIndex(index object.Object, length int, what string) (int, *opError) {
	n, ok := asInt(index)
	if !ok {
		return 0, typeErrf("%s indices must be integers, not '%s'", what, index.Type())
	}
	pos := int(n)
	if pos < 0 {
		pos += length
	}
	if pos < 0 || pos >= length {
		return 0, &opError{kind: RuntimeFault, class: "IndexError",
			msg: what + " index out of range"}
	}
	return pos, nil
}

func loadSlice(container object.Object, s *object.Slice) (object.Object, *opError) {
	switch c := container.(type) {
	case *object.List:
		idxs, err := sliceIndices(s, len(c.Elements))
		if err != nil {
			return nil, err
		}
		return &object.List{Elements: gather(c.Elements, idxs)}, nil
	case *object.Tuple:
		idxs, err := sliceIndices(s, len(c.Elements))
		if err != nil {
			return nil, err
		}
		return &object.Tuple{Elements: gather(c.Elements, idxs)}, nil
	case *object.Str:
		runes := []rune(c.Value)
		idxs, err := sliceIndices(s, len(runes))
		if err != nil {
			return nil, err
		}
		out := make([]rune, len(idxs))
		for i, pos := range idxs {
			out[i] = runes[pos]
		}
		return &object.Str{Value: string(out)}, nil
	}
	return nil, typeErrf("'%s' object is not sliceable", container.Type())
}

func gather(elements []object.Object, idxs []int) []object.Object {
	out := make([]object.Object, len(idxs))
	for i, pos := range idxs {
		out[i] = elements[pos]
	}
	return out
}

// sliceIndices resolves a slice triplet against a length with Python's
// clamping rules, returning the selected positions in order.
func sliceIndices(s *object.Slice, length int) ([]int, *opError) {
	step := 1
	if _, isNil := s.Step.(*object.Nil); !isNil {
		n, ok := asInt(s.Step)
		if !ok {
			return nil, typeErrf("slice step must be an integer, not '%s'", s.Step.Type())
		}
		if n == 0 {
			return nil, valueErrf("slice step cannot be zero")
		}
		step = int(n)
	}

	resolve := func(bound object.Object, def int) (int, *opError) {
		if _, isNil := bound.(*object.Nil); isNil {
			return def, nil
		}
		n, ok := asInt(bound)
		if !ok {
			return 0, typeErrf("slice indices must be integers, not '%s'", bound.Type())
		}
		pos := int(n)
		if pos < 0 {
			pos += length
		}
		return pos, nil
	}

	var start, stop int
	var err *opError
	if step > 0 {
		if start, err = resolve(s.Lower, 0); err != nil {
			return nil, err
		}
		if stop, err = resolve(s.Upper, length); err != nil {
			return nil, err
		}
		start = clamp(start, 0, length)
		stop = clamp(stop, 0, length)
		var idxs []int
		for i := start; i < stop; i += step {
			idxs = append(idxs, i)
		}
		return idxs, nil
	}

	if start, err = resolve(s.Lower, length-1); err != nil {
		return nil, err
	}
	if stop, err = resolve(s.Upper, -length-1); err != nil {
		return nil, err
	}
	start = clamp(start, -1, length-1)
	stop = clamp(stop, -1, length-1)
	var idxs []int
	for i := start; i > stop; i += step {
		idxs = append(idxs, i)
	}
	return idxs, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// iterate materializes a for-loop iterable.
func iterate(obj object.Object) ([]object.Object, *opError) {
	switch o := obj.(type) {
	case *object.List:
		return o.Elements, nil
	case *object.Tuple:
		return o.Elements, nil
	case *object.Str:
		out := make([]object.Object, 0, len(o.Value))
		for _, r := range o.Value {
			out = append(out, &object.Str{Value: string(r)})
		}
		return out, nil
	case *object.Dict:
		out := make([]object.Object, 0, len(o.Pairs))
		for _, pair := range o.Pairs {
			out = append(out, pair.Key)
		}
		return out, nil
	}
	return nil, typeErrf("'%s' object is not iterable", obj.Type())
}
