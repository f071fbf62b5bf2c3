package extensions

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/closecrowd/apyshell/internal/object"
)

func init() {
	Register("tasksext", func() Extension { return &tasksExt{tasks: map[string]*scriptTask{}} })
}

// scriptTask is one periodic timer driving a script procedure. The paused
// flag is checked on every tick; stop closes done and waits for the
// goroutine to drain.
type scriptTask struct {
	proc   string
	period time.Duration
	paused atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// tasksExt runs script procedures on timers from host goroutines. Each
// tick calls the named procedure with the task name as its argument; the
// API serializes those calls against the main script.
type tasksExt struct {
	mu    sync.Mutex
	api   API
	tasks map[string]*scriptTask
}

func (t *tasksExt) Name() string { return "tasksext" }

func (t *tasksExt) Shutdown() {
	t.mu.Lock()
	tasks := t.tasks
	t.tasks = map[string]*scriptTask{}
	t.mu.Unlock()
	for _, task := range tasks {
		close(task.done)
		task.wg.Wait()
	}
}

func (t *tasksExt) Commands(api API, options map[string]string) (map[string]object.BuiltinFunc, error) {
	t.api = api
	return map[string]object.BuiltinFunc{
		"task_start_":  t.start,
		"task_stop_":   t.stop,
		"task_pause_":  t.pause,
		"task_resume_": t.resume,
		"task_status_": t.status,
		"task_list_":   t.list,
	}, nil
}

// start launches task_start_(name, proc, seconds).
func (t *tasksExt) start(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("task_start_() takes exactly 3 arguments (%d given)", len(args))
	}
	name, ok1 := args[0].(*object.Str)
	proc, ok2 := args[1].(*object.Str)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("task_start_() name and procedure must be str")
	}
	secs, ok := object.AsFloat(args[2])
	if !ok || secs <= 0 {
		return nil, fmt.Errorf("task_start_() interval must be a positive number")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.tasks[name.Value]; exists {
		return object.False, nil
	}
	task := &scriptTask{
		proc:   proc.Value,
		period: time.Duration(secs * float64(time.Second)),
		done:   make(chan struct{}),
	}
	t.tasks[name.Value] = task
	task.wg.Add(1)
	go t.run(name.Value, task)
	return object.True, nil
}

func (t *tasksExt) run(name string, task *scriptTask) {
	defer task.wg.Done()
	ticker := time.NewTicker(task.period)
	defer ticker.Stop()
	arg := &object.Str{Value: name}
	for {
		select {
		case <-task.done:
			return
		case <-ticker.C:
			if task.paused.Load() {
				continue
			}
			// a missing or faulting procedure stops the task
			if _, err := t.api.HandleEvent(task.proc, arg); err != nil {
				t.mu.Lock()
				delete(t.tasks, name)
				t.mu.Unlock()
				return
			}
		}
	}
}

func (t *tasksExt) take(cmd string, args []object.Object) (*scriptTask, error) {
	name, err := oneStringArg(cmd, args)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tasks[name], nil
}

func (t *tasksExt) stop(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := oneStringArg("task_stop_", args)
	if err != nil {
		return nil, err
	}
	// fetch and remove in one critical section so only one caller owns
	// the shutdown of this task
	t.mu.Lock()
	task, ok := t.tasks[name]
	if ok {
		delete(t.tasks, name)
	}
	t.mu.Unlock()
	if !ok {
		return object.False, nil
	}
	close(task.done)
	task.wg.Wait()
	return object.True, nil
}

func (t *tasksExt) pause(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	task, err := t.take("task_pause_", args)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return object.False, nil
	}
	task.paused.Store(true)
	return object.True, nil
}

func (t *tasksExt) resume(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	task, err := t.take("task_resume_", args)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return object.False, nil
	}
	task.paused.Store(false)
	return object.True, nil
}

// status returns "running", "paused", or None for an unknown task.
func (t *tasksExt) status(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	task, err := t.take("task_status_", args)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return object.None, nil
	}
	if task.paused.Load() {
		return &object.Str{Value: "paused"}, nil
	}
	return &object.Str{Value: "running"}, nil
}

func (t *tasksExt) list(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	t.mu.Lock()
	names := make([]string, 0, len(t.tasks))
	for name := range t.tasks {
		names = append(names, name)
	}
	t.mu.Unlock()
	return sortedStrList(names), nil
}
