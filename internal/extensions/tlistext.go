package extensions

import (
	"fmt"
	"sync"

	"github.com/closecrowd/apyshell/internal/object"
)

func init() {
	Register("tlistext", func() Extension { return &tlistExt{lists: map[string][]object.Object{}} })
}

// tlistExt holds named lists behind one mutex. Values copy in and out by
// reference, same as script list assignment.
type tlistExt struct {
	mu    sync.Mutex
	lists map[string][]object.Object
}

func (t *tlistExt) Name() string { return "tlistext" }

func (t *tlistExt) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lists = map[string][]object.Object{}
}

func (t *tlistExt) Commands(api API, options map[string]string) (map[string]object.BuiltinFunc, error) {
	return map[string]object.BuiltinFunc{
		"tlist_open_":   t.open,
		"tlist_close_":  t.closeCmd,
		"tlist_append_": t.appendCmd,
		"tlist_get_":    t.get,
		"tlist_pop_":    t.pop,
		"tlist_len_":    t.length,
		"tlist_clear_":  t.clear,
		"tlist_list_":   t.list,
	}, nil
}

func (t *tlistExt) open(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := oneStringArg("tlist_open_", args)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.lists[name]; !ok {
		t.lists[name] = nil
	}
	return object.True, nil
}

func (t *tlistExt) closeCmd(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := oneStringArg("tlist_close_", args)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.lists[name]; !ok {
		return object.False, nil
	}
	delete(t.lists, name)
	return object.True, nil
}

// exists checks the name under the caller-held lock.
func (t *tlistExt) exists(cmd, name string) error {
	if _, ok := t.lists[name]; !ok {
		return fmt.Errorf("%s(): no list %q", cmd, name)
	}
	return nil
}

func nameArg(cmd string, args []object.Object, want int) (string, error) {
	if len(args) != want {
		return "", fmt.Errorf("%s() takes exactly %d arguments (%d given)", cmd, want, len(args))
	}
	s, ok := args[0].(*object.Str)
	if !ok {
		return "", fmt.Errorf("%s() list name must be str", cmd)
	}
	return s.Value, nil
}

func (t *tlistExt) appendCmd(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := nameArg("tlist_append_", args, 2)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.exists("tlist_append_", name); err != nil {
		return nil, err
	}
	t.lists[name] = append(t.lists[name], args[1])
	return object.True, nil
}

func (t *tlistExt) get(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := nameArg("tlist_get_", args, 2)
	if err != nil {
		return nil, err
	}
	idx, ok := args[1].(*object.Int)
	if !ok {
		return nil, fmt.Errorf("tlist_get_() index must be int")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.exists("tlist_get_", name); err != nil {
		return nil, err
	}
	items := t.lists[name]
	i := idx.Value
	if i < 0 {
		i += int64(len(items))
	}
	if i < 0 || i >= int64(len(items)) {
		return object.None, nil
	}
	return items[i], nil
}

// pop removes and returns the first element, or None when empty.
func (t *tlistExt) pop(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := nameArg("tlist_pop_", args, 1)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.exists("tlist_pop_", name); err != nil {
		return nil, err
	}
	items := t.lists[name]
	if len(items) == 0 {
		return object.None, nil
	}
	v := items[0]
	t.lists[name] = items[1:]
	return v, nil
}

func (t *tlistExt) length(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := nameArg("tlist_len_", args, 1)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.exists("tlist_len_", name); err != nil {
		return nil, err
	}
	return &object.Int{Value: int64(len(t.lists[name]))}, nil
}

func (t *tlistExt) clear(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := nameArg("tlist_clear_", args, 1)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.exists("tlist_clear_", name); err != nil {
		return nil, err
	}
	t.lists[name] = nil
	return object.True, nil
}

func (t *tlistExt) list(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	t.mu.Lock()
	names := make([]string, 0, len(t.lists))
	for name := range t.lists {
		names = append(names, name)
	}
	t.mu.Unlock()
	return sortedStrList(names), nil
}
