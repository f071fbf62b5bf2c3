package extensions

import (
	"fmt"
	"sync"

	"github.com/closecrowd/apyshell/internal/object"
)

func init() {
	Register("tdictext", func() Extension { return &tdictExt{dicts: map[string]*object.Dict{}} })
}

// tdictExt holds named dicts behind one mutex, so procedures running on
// task goroutines can share keyed state without touching script globals.
type tdictExt struct {
	mu    sync.Mutex
	dicts map[string]*object.Dict
}

func (t *tdictExt) Name() string { return "tdictext" }

func (t *tdictExt) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dicts = map[string]*object.Dict{}
}

func (t *tdictExt) Commands(api API, options map[string]string) (map[string]object.BuiltinFunc, error) {
	return map[string]object.BuiltinFunc{
		"tdict_open_":  t.open,
		"tdict_close_": t.closeCmd,
		"tdict_put_":   t.put,
		"tdict_get_":   t.get,
		"tdict_del_":   t.del,
		"tdict_keys_":  t.keys,
		"tdict_len_":   t.length,
		"tdict_list_":  t.list,
	}, nil
}

func hashableKey(cmd string, o object.Object) (object.HashKey, error) {
	h, ok := o.(object.Hashable)
	if !ok {
		return object.HashKey{}, fmt.Errorf("%s(): unhashable key type %s", cmd, o.Type())
	}
	return h.HashKey(), nil
}

func (t *tdictExt) open(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := oneStringArg("tdict_open_", args)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.dicts[name]; !ok {
		t.dicts[name] = object.NewDict()
	}
	return object.True, nil
}

func (t *tdictExt) closeCmd(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := oneStringArg("tdict_close_", args)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.dicts[name]; !ok {
		return object.False, nil
	}
	delete(t.dicts, name)
	return object.True, nil
}

func (t *tdictExt) lookup(cmd string, args []object.Object, want int) (*object.Dict, error) {
	if len(args) != want {
		return nil, fmt.Errorf("%s() takes exactly %d arguments (%d given)", cmd, want, len(args))
	}
	name, ok := args[0].(*object.Str)
	if !ok {
		return nil, fmt.Errorf("%s() dict name must be str", cmd)
	}
	d, ok := t.dicts[name.Value]
	if !ok {
		return nil, fmt.Errorf("%s(): no dict %q", cmd, name.Value)
	}
	return d, nil
}

func (t *tdictExt) put(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, err := t.lookup("tdict_put_", args, 3)
	if err != nil {
		return nil, err
	}
	hk, err := hashableKey("tdict_put_", args[1])
	if err != nil {
		return nil, err
	}
	d.Pairs[hk] = object.DictPair{Key: args[1], Value: args[2]}
	return object.True, nil
}

func (t *tdictExt) get(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, err := t.lookup("tdict_get_", args, 2)
	if err != nil {
		return nil, err
	}
	hk, err := hashableKey("tdict_get_", args[1])
	if err != nil {
		return nil, err
	}
	if pair, ok := d.Pairs[hk]; ok {
		return pair.Value, nil
	}
	return object.None, nil
}

func (t *tdictExt) del(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, err := t.lookup("tdict_del_", args, 2)
	if err != nil {
		return nil, err
	}
	hk, err := hashableKey("tdict_del_", args[1])
	if err != nil {
		return nil, err
	}
	if _, ok := d.Pairs[hk]; !ok {
		return object.False, nil
	}
	delete(d.Pairs, hk)
	return object.True, nil
}

func (t *tdictExt) keys(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, err := t.lookup("tdict_keys_", args, 1)
	if err != nil {
		return nil, err
	}
	out := &object.List{}
	for _, pair := range d.Pairs {
		out.Elements = append(out.Elements, pair.Key)
	}
	return out, nil
}

func (t *tdictExt) length(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, err := t.lookup("tdict_len_", args, 1)
	if err != nil {
		return nil, err
	}
	return &object.Int{Value: int64(len(d.Pairs))}, nil
}

func (t *tdictExt) list(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	t.mu.Lock()
	names := make([]string, 0, len(t.dicts))
	for name := range t.dicts {
		names = append(names, name)
	}
	t.mu.Unlock()
	return sortedStrList(names), nil
}
