package extensions

import (
	"fmt"
	"sync"
	"time"

	"github.com/closecrowd/apyshell/internal/object"
)

func init() {
	Register("flagext", func() Extension {
		f := &flagExt{flags: map[string]bool{}}
		f.cond = sync.NewCond(&f.mu)
		return f
	})
}

// flagExt implements named boolean event flags. flag_wait_ blocks until a
// flag raises, so a main script can sleep until a task goroutine signals.
type flagExt struct {
	mu    sync.Mutex
	cond  *sync.Cond
	flags map[string]bool
	down  bool
}

func (f *flagExt) Name() string { return "flagext" }

func (f *flagExt) Shutdown() {
	f.mu.Lock()
	f.down = true
	f.flags = map[string]bool{}
	f.mu.Unlock()
	f.cond.Broadcast()
}

func (f *flagExt) Commands(api API, options map[string]string) (map[string]object.BuiltinFunc, error) {
	return map[string]object.BuiltinFunc{
		"flag_add_":      f.add,
		"flag_del_":      f.del,
		"flag_raise_":    f.raiseCmd,
		"flag_lower_":    f.lower,
		"flag_israised_": f.isRaised,
		"flag_wait_":     f.wait,
		"flag_list_":     f.list,
	}, nil
}

func (f *flagExt) add(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := oneStringArg("flag_add_", args)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.flags[name]; !ok {
		f.flags[name] = false
	}
	return object.True, nil
}

func (f *flagExt) del(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := oneStringArg("flag_del_", args)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	_, ok := f.flags[name]
	delete(f.flags, name)
	f.mu.Unlock()
	// wake waiters so they notice the flag is gone
	f.cond.Broadcast()
	return object.FromBool(ok), nil
}

func (f *flagExt) set(cmd, name string, up bool) (object.Object, error) {
	f.mu.Lock()
	_, ok := f.flags[name]
	if ok {
		f.flags[name] = up
	}
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s(): no flag %q", cmd, name)
	}
	if up {
		f.cond.Broadcast()
	}
	return object.True, nil
}

func (f *flagExt) raiseCmd(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := oneStringArg("flag_raise_", args)
	if err != nil {
		return nil, err
	}
	return f.set("flag_raise_", name, true)
}

func (f *flagExt) lower(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := oneStringArg("flag_lower_", args)
	if err != nil {
		return nil, err
	}
	return f.set("flag_lower_", name, false)
}

func (f *flagExt) isRaised(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := oneStringArg("flag_israised_", args)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.flags[name]
	if !ok {
		return object.None, nil
	}
	return object.FromBool(up), nil
}

// wait blocks flag_wait_(name[, seconds]) until the flag raises, then
// lowers it and returns True. A timeout or a deleted flag returns False.
func (f *flagExt) wait(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("flag_wait_() takes 1 or 2 arguments (%d given)", len(args))
	}
	name, ok := args[0].(*object.Str)
	if !ok {
		return nil, fmt.Errorf("flag_wait_() flag name must be str")
	}
	var deadline time.Time
	if len(args) == 2 {
		secs, ok := object.AsFloat(args[1])
		if !ok || secs < 0 {
			return nil, fmt.Errorf("flag_wait_() timeout must be a non-negative number")
		}
		deadline = time.Now().Add(time.Duration(secs * float64(time.Second)))
	}

	// a timer broadcast bounds each cond wait
	var timer *time.Timer
	if !deadline.IsZero() {
		timer = time.AfterFunc(time.Until(deadline), f.cond.Broadcast)
		defer timer.Stop()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		up, ok := f.flags[name.Value]
		if !ok || f.down {
			return object.False, nil
		}
		if up {
			f.flags[name.Value] = false
			return object.True, nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return object.False, nil
		}
		f.cond.Wait()
	}
}

func (f *flagExt) list(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	f.mu.Lock()
	names := make([]string, 0, len(f.flags))
	for name := range f.flags {
		names = append(names, name)
	}
	f.mu.Unlock()
	return sortedStrList(names), nil
}
