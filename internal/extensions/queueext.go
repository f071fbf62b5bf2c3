package extensions

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/closecrowd/apyshell/internal/object"
)

func init() {
	Register("queueext", func() Extension { return &queueExt{queues: map[string]*extQueue{}} })
}

const defaultQueueDepth = 256

// extQueue is one named channel-backed queue. The mutex guards the closed
// flag so a close racing a put never writes to a closed channel.
type extQueue struct {
	mu     sync.Mutex
	ch     chan object.Object
	closed bool
}

func (q *extQueue) put(v object.Object) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

func (q *extQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// queueExt provides named in-process queues so script procedures running on
// different host goroutines can hand values to each other.
type queueExt struct {
	mu     sync.Mutex
	queues map[string]*extQueue
}

func (q *queueExt) Name() string { return "queueext" }

func (q *queueExt) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for name, qu := range q.queues {
		qu.close()
		delete(q.queues, name)
	}
}

func (q *queueExt) Commands(api API, options map[string]string) (map[string]object.BuiltinFunc, error) {
	return map[string]object.BuiltinFunc{
		"queue_open_":    q.open,
		"queue_close_":   q.closeCmd,
		"queue_put_":     q.putCmd,
		"queue_get_":     q.get,
		"queue_clear_":   q.clear,
		"queue_len_":     q.length,
		"queue_isempty_": q.isEmpty,
		"queue_list_":    q.list,
	}, nil
}

func (q *queueExt) lookup(cmd string, args []object.Object) (*extQueue, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("%s() needs a queue name", cmd)
	}
	name, ok := args[0].(*object.Str)
	if !ok {
		return nil, fmt.Errorf("%s() queue name must be str", cmd)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	qu, ok := q.queues[name.Value]
	if !ok {
		return nil, fmt.Errorf("%s(): no queue %q", cmd, name.Value)
	}
	return qu, nil
}

func (q *queueExt) open(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("queue_open_() takes 1 or 2 arguments (%d given)", len(args))
	}
	name, ok := args[0].(*object.Str)
	if !ok {
		return nil, fmt.Errorf("queue_open_() queue name must be str")
	}
	depth := int64(defaultQueueDepth)
	if len(args) == 2 {
		d, ok := args[1].(*object.Int)
		if !ok || d.Value < 1 {
			return nil, fmt.Errorf("queue_open_() depth must be a positive int")
		}
		depth = d.Value
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queues[name.Value]; ok {
		return object.True, nil
	}
	q.queues[name.Value] = &extQueue{ch: make(chan object.Object, depth)}
	return object.True, nil
}

func (q *queueExt) closeCmd(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := oneStringArg("queue_close_", args)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	qu, ok := q.queues[name]
	delete(q.queues, name)
	q.mu.Unlock()
	if !ok {
		return object.False, nil
	}
	qu.close()
	return object.True, nil
}

func (q *queueExt) putCmd(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("queue_put_() takes exactly 2 arguments (%d given)", len(args))
	}
	qu, err := q.lookup("queue_put_", args)
	if err != nil {
		return nil, err
	}
	return object.FromBool(qu.put(args[1])), nil
}

// get blocks for up to an optional timeout in seconds (default forever,
// 0 means poll). Returns None when the wait expires or the queue closes.
func (q *queueExt) get(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	qu, err := q.lookup("queue_get_", args)
	if err != nil {
		return nil, err
	}
	var timeout float64 = -1
	if len(args) == 2 {
		f, ok := object.AsFloat(args[1])
		if !ok {
			return nil, fmt.Errorf("queue_get_() timeout must be a number")
		}
		timeout = f
	}
	switch {
	case timeout < 0:
		v, ok := <-qu.ch
		if !ok {
			return object.None, nil
		}
		return v, nil
	case timeout == 0:
		select {
		case v, ok := <-qu.ch:
			if !ok {
				return object.None, nil
			}
			return v, nil
		default:
			return object.None, nil
		}
	default:
		t := time.NewTimer(time.Duration(timeout * float64(time.Second)))
		defer t.Stop()
		select {
		case v, ok := <-qu.ch:
			if !ok {
				return object.None, nil
			}
			return v, nil
		case <-t.C:
			return object.None, nil
		}
	}
}

func (q *queueExt) clear(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	qu, err := q.lookup("queue_clear_", args)
	if err != nil {
		return nil, err
	}
	n := int64(0)
	for {
		select {
		case _, ok := <-qu.ch:
			if !ok {
				return &object.Int{Value: n}, nil
			}
			n++
		default:
			return &object.Int{Value: n}, nil
		}
	}
}

func (q *queueExt) length(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	qu, err := q.lookup("queue_len_", args)
	if err != nil {
		return nil, err
	}
	return &object.Int{Value: int64(len(qu.ch))}, nil
}

func (q *queueExt) isEmpty(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	qu, err := q.lookup("queue_isempty_", args)
	if err != nil {
		return nil, err
	}
	return object.FromBool(len(qu.ch) == 0), nil
}

func (q *queueExt) list(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	q.mu.Lock()
	names := make([]string, 0, len(q.queues))
	for name := range q.queues {
		names = append(names, name)
	}
	q.mu.Unlock()
	return sortedStrList(names), nil
}

// sortedStrList builds a script list of strings in sorted order.
func sortedStrList(names []string) *object.List {
	sort.Strings(names)
	out := &object.List{}
	for _, n := range names {
		out.Elements = append(out.Elements, &object.Str{Value: n})
	}
	return out
}
