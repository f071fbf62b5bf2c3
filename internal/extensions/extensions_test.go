package extensions

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/closecrowd/apyshell/internal/engine"
	"github.com/closecrowd/apyshell/internal/object"
)

func newTestManager(t *testing.T, options map[string]string) (*engine.Engine, *Manager) {
	t.Helper()
	eng := engine.New(engine.Options{RaiseErrors: true, Writer: io.Discard, ErrWriter: io.Discard})
	mgr := NewManager(eng, options, nil)
	t.Cleanup(mgr.Shutdown)
	return eng, mgr
}

func evalStr(t *testing.T, eng *engine.Engine, text string) string {
	t.Helper()
	v, err := eng.Eval(text)
	if err != nil {
		t.Fatalf("eval %q: %v", text, err)
	}
	if v == nil {
		return ""
	}
	return v.Inspect()
}

func TestManagerLoadUnload(t *testing.T) {
	eng, mgr := newTestManager(t, nil)

	if mgr.IsLoaded("utilext") {
		t.Fatal("utilext loaded before Load")
	}
	if err := mgr.Load("utilext"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Load("utilext"); err != nil {
		t.Fatalf("second Load not idempotent: %v", err)
	}
	if !mgr.IsLoaded("utilext") {
		t.Fatal("utilext not reported loaded")
	}
	if got := evalStr(t, eng, "hostname_()"); got == "None" {
		t.Log("hostname unavailable, skipping value check")
	}

	if err := mgr.Unload("utilext"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Eval("hostname_()"); err == nil {
		t.Fatal("hostname_ still callable after unload")
	}
	if err := mgr.Unload("utilext"); err == nil {
		t.Fatal("double unload succeeded")
	}
}

func TestManagerUnknownExtension(t *testing.T) {
	_, mgr := newTestManager(t, nil)
	if err := mgr.Load("no-such-ext"); err == nil {
		t.Fatal("expected error for unknown extension")
	}
}

func TestManagerScriptCommands(t *testing.T) {
	eng, _ := newTestManager(t, nil)

	if got := evalStr(t, eng, `loadExtension_("utilext")`); got != "True" {
		t.Fatalf("loadExtension_ = %s", got)
	}
	if got := evalStr(t, eng, `isExtLoaded_("utilext")`); got != "True" {
		t.Fatalf("isExtLoaded_ = %s", got)
	}
	if got := evalStr(t, eng, `listExtensions_()`); got != "['utilext']" {
		t.Fatalf("listExtensions_ = %s", got)
	}
	if got := evalStr(t, eng, `unloadExtension_("utilext")`); got != "True" {
		t.Fatalf("unloadExtension_ = %s", got)
	}
	if got := evalStr(t, eng, `loadExtension_("bogus")`); got != "False" {
		t.Fatalf("loadExtension_ on unknown = %s", got)
	}
}

func TestFileExtRoundTrip(t *testing.T) {
	dir := t.TempDir()
	eng, mgr := newTestManager(t, map[string]string{"file_root": dir})
	if err := mgr.Load("fileext"); err != nil {
		t.Fatal(err)
	}

	if got := evalStr(t, eng, `writeLines_("notes", ["alpha", "beta"])`); got != "True" {
		t.Fatalf("writeLines_ = %s", got)
	}
	if got := evalStr(t, eng, `appendLines_("notes", "gamma")`); got != "True" {
		t.Fatalf("appendLines_ = %s", got)
	}
	if got := evalStr(t, eng, `readLines_("notes")`); got != "['alpha', 'beta', 'gamma']" {
		t.Fatalf("readLines_ = %s", got)
	}
	if got := evalStr(t, eng, `listFiles_()`); got != "['notes']" {
		t.Fatalf("listFiles_ = %s", got)
	}

	data, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "alpha\nbeta\ngamma\n" {
		t.Fatalf("file contents = %q", data)
	}
}

func TestFileExtRejectsEscapes(t *testing.T) {
	eng, mgr := newTestManager(t, map[string]string{"file_root": t.TempDir()})
	if err := mgr.Load("fileext"); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"../etc/passwd", "a/b", `a\b`, ""} {
		if _, err := eng.Eval(fmt.Sprintf("readLines_(%q)", name)); err == nil {
			t.Errorf("readLines_(%q) accepted", name)
		}
	}
}

func TestQueueExtBasics(t *testing.T) {
	eng, mgr := newTestManager(t, nil)
	if err := mgr.Load("queueext"); err != nil {
		t.Fatal(err)
	}

	evalStr(t, eng, `queue_open_("q", 4)`)
	if got := evalStr(t, eng, `queue_isempty_("q")`); got != "True" {
		t.Fatalf("queue_isempty_ = %s", got)
	}
	evalStr(t, eng, `queue_put_("q", 1)`)
	evalStr(t, eng, `queue_put_("q", 2)`)
	if got := evalStr(t, eng, `queue_len_("q")`); got != "2" {
		t.Fatalf("queue_len_ = %s", got)
	}
	if got := evalStr(t, eng, `queue_get_("q", 0)`); got != "1" {
		t.Fatalf("queue_get_ = %s", got)
	}
	if got := evalStr(t, eng, `queue_clear_("q")`); got != "1" {
		t.Fatalf("queue_clear_ = %s", got)
	}
	// polling an empty queue returns None, not a block
	if got := evalStr(t, eng, `queue_get_("q", 0)`); got != "None" {
		t.Fatalf("queue_get_ on empty = %s", got)
	}
	if got := evalStr(t, eng, `queue_list_()`); got != "['q']" {
		t.Fatalf("queue_list_ = %s", got)
	}
	evalStr(t, eng, `queue_close_("q")`)
	if _, err := eng.Eval(`queue_put_("q", 3)`); err == nil {
		t.Fatal("put on closed queue succeeded")
	}
}

func TestQueueExtCrossGoroutine(t *testing.T) {
	_, mgr := newTestManager(t, nil)
	if err := mgr.Load("queueext"); err != nil {
		t.Fatal(err)
	}
	qx := mgr.loaded["queueext"].ext.(*queueExt)
	qx.open([]object.Object{&object.Str{Value: "x"}}, nil)
	qu, err := qx.lookup("test", []object.Object{&object.Str{Value: "x"}})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		qu.put(&object.Int{Value: 42})
	}()
	got, err := qx.get([]object.Object{&object.Str{Value: "x"}, &object.Float{Value: 2}}, nil)
	wg.Wait()
	if err != nil {
		t.Fatal(err)
	}
	if got.Inspect() != "42" {
		t.Fatalf("blocking get = %s", got.Inspect())
	}
}

func TestSQLExtSqlite(t *testing.T) {
	dir := t.TempDir()
	eng, mgr := newTestManager(t, map[string]string{"sql_root": dir})
	if err := mgr.Load("sqlext"); err != nil {
		t.Fatal(err)
	}

	if got := evalStr(t, eng, `sql_open_("db", "sqlite3", "test")`); got != "True" {
		t.Fatalf("sql_open_ = %s", got)
	}
	evalStr(t, eng, `sql_execute_("db", "create table t (id integer, name text)")`)
	if got := evalStr(t, eng, `sql_execute_("db", "insert into t values (?, ?)", 1, "one")`); got != "1" {
		t.Fatalf("insert changes = %s", got)
	}
	evalStr(t, eng, `sql_execute_("db", "insert into t values (?, ?)", 2, "two")`)
	if got := evalStr(t, eng, `sql_commit_("db")`); got != "True" {
		t.Fatalf("sql_commit_ = %s", got)
	}
	if got := evalStr(t, eng, `sql_execute_("db", "select id, name from t order by id")`); got != "[[1, 'one'], [2, 'two']]" {
		t.Fatalf("select = %s", got)
	}
	if got := evalStr(t, eng, `sql_changes_("db")`); got != "1" {
		t.Fatalf("sql_changes_ = %s", got)
	}

	// uncommitted work rolls back
	evalStr(t, eng, `sql_execute_("db", "delete from t")`)
	evalStr(t, eng, `sql_rollback_("db")`)
	if got := evalStr(t, eng, `sql_execute_("db", "select count(*) from t")`); got != "[[2]]" {
		t.Fatalf("count after rollback = %s", got)
	}

	if got := evalStr(t, eng, `sql_list_()`); got != "['db']" {
		t.Fatalf("sql_list_ = %s", got)
	}
	if got := evalStr(t, eng, `sql_close_("db")`); got != "True" {
		t.Fatalf("sql_close_ = %s", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "test.db")); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
}

func TestSQLExtGuards(t *testing.T) {
	eng, mgr := newTestManager(t, map[string]string{"sql_root": t.TempDir()})
	if err := mgr.Load("sqlext"); err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{
		`sql_open_("a", "sqlite3", "../escape")`,
		`sql_open_("b", "mysql", "user@/db")`,
		`sql_open_("c", "nosuchdriver", "dsn")`,
		`sql_execute_("missing", "select 1")`,
	} {
		if _, err := eng.Eval(text); err == nil {
			t.Errorf("%s accepted", text)
		}
	}
}

func TestTasksExtCallsProc(t *testing.T) {
	eng, mgr := newTestManager(t, nil)
	if err := mgr.Load("tasksext"); err != nil {
		t.Fatal(err)
	}
	script := strings.Join([]string{
		"hits = 0",
		"def tick(which):",
		"    hits = hits + 1",
	}, "\n")
	if _, err := eng.Eval(script); err != nil {
		t.Fatal(err)
	}

	if got := evalStr(t, eng, `task_start_("t1", "tick", 0.01)`); got != "True" {
		t.Fatalf("task_start_ = %s", got)
	}
	if got := evalStr(t, eng, `task_status_("t1")`); got != "'running'" {
		t.Fatalf("task_status_ = %s", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		v, ok := eng.GetVar("hits")
		if ok {
			if n, isInt := v.(*object.Int); isInt && n.Value >= 2 {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	v, _ := eng.GetVar("hits")
	if n, ok := v.(*object.Int); !ok || n.Value < 2 {
		t.Fatalf("task never ticked, hits = %v", v)
	}

	evalStr(t, eng, `task_pause_("t1")`)
	if got := evalStr(t, eng, `task_status_("t1")`); got != "'paused'" {
		t.Fatalf("paused status = %s", got)
	}
	evalStr(t, eng, `task_resume_("t1")`)
	if got := evalStr(t, eng, `task_stop_("t1")`); got != "True" {
		t.Fatalf("task_stop_ = %s", got)
	}
	if got := evalStr(t, eng, `task_status_("t1")`); got != "None" {
		t.Fatalf("status after stop = %s", got)
	}
}

func TestTasksExtConcurrentStop(t *testing.T) {
	eng, mgr := newTestManager(t, nil)
	if err := mgr.Load("tasksext"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Eval("def noop(which):\n    return None\n"); err != nil {
		t.Fatal(err)
	}
	tx := mgr.loaded["tasksext"].ext.(*tasksExt)
	arg := []object.Object{&object.Str{Value: "t1"}}

	for round := 0; round < 20; round++ {
		if _, err := tx.start([]object.Object{
			&object.Str{Value: "t1"}, &object.Str{Value: "noop"}, &object.Float{Value: 60},
		}, nil); err != nil {
			t.Fatal(err)
		}
		// exactly one of the racing stops owns the shutdown
		var wg sync.WaitGroup
		results := make([]object.Object, 2)
		for g := 0; g < 2; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				v, err := tx.stop(arg, nil)
				if err != nil {
					t.Error(err)
					return
				}
				results[g] = v
			}(g)
		}
		wg.Wait()
		stopped := 0
		for _, v := range results {
			if v == object.True {
				stopped++
			}
		}
		if stopped != 1 {
			t.Fatalf("round %d: %d stops reported success", round, stopped)
		}
	}
}

func TestTDictSharedState(t *testing.T) {
	eng, mgr := newTestManager(t, nil)
	if err := mgr.Load("tdictext"); err != nil {
		t.Fatal(err)
	}
	evalStr(t, eng, `tdict_open_("d")`)
	evalStr(t, eng, `tdict_put_("d", "k", [1, 2])`)
	if got := evalStr(t, eng, `tdict_get_("d", "k")`); got != "[1, 2]" {
		t.Fatalf("tdict_get_ = %s", got)
	}
	if got := evalStr(t, eng, `tdict_len_("d")`); got != "1" {
		t.Fatalf("tdict_len_ = %s", got)
	}
	if got := evalStr(t, eng, `tdict_get_("d", "missing")`); got != "None" {
		t.Fatalf("missing key = %s", got)
	}
	if got := evalStr(t, eng, `tdict_del_("d", "k")`); got != "True" {
		t.Fatalf("tdict_del_ = %s", got)
	}
	if got := evalStr(t, eng, `tdict_del_("d", "k")`); got != "False" {
		t.Fatalf("second delete = %s", got)
	}
	evalStr(t, eng, `tdict_close_("d")`)
	if _, err := eng.Eval(`tdict_put_("d", "k", 1)`); err == nil {
		t.Fatal("put after close succeeded")
	}
}

func TestTDictConcurrentPuts(t *testing.T) {
	_, mgr := newTestManager(t, nil)
	if err := mgr.Load("tdictext"); err != nil {
		t.Fatal(err)
	}
	td := mgr.loaded["tdictext"].ext.(*tdictExt)
	td.open([]object.Object{&object.Str{Value: "d"}}, nil)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key := &object.Str{Value: fmt.Sprintf("k%d-%d", g, i)}
				td.put([]object.Object{&object.Str{Value: "d"}, key, &object.Int{Value: int64(i)}}, nil)
			}
		}(g)
	}
	wg.Wait()
	n, err := td.length([]object.Object{&object.Str{Value: "d"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n.Inspect() != "400" {
		t.Fatalf("tdict_len_ after concurrent puts = %s", n.Inspect())
	}
}

func TestTListOrdering(t *testing.T) {
	eng, mgr := newTestManager(t, nil)
	if err := mgr.Load("tlistext"); err != nil {
		t.Fatal(err)
	}
	evalStr(t, eng, `tlist_open_("l")`)
	evalStr(t, eng, `tlist_append_("l", "a")`)
	evalStr(t, eng, `tlist_append_("l", "b")`)
	if got := evalStr(t, eng, `tlist_len_("l")`); got != "2" {
		t.Fatalf("tlist_len_ = %s", got)
	}
	if got := evalStr(t, eng, `tlist_get_("l", -1)`); got != "'b'" {
		t.Fatalf("tlist_get_(-1) = %s", got)
	}
	if got := evalStr(t, eng, `tlist_pop_("l")`); got != "'a'" {
		t.Fatalf("tlist_pop_ = %s", got)
	}
	if got := evalStr(t, eng, `tlist_pop_("l")`); got != "'b'" {
		t.Fatalf("second pop = %s", got)
	}
	if got := evalStr(t, eng, `tlist_pop_("l")`); got != "None" {
		t.Fatalf("pop on empty = %s", got)
	}
	evalStr(t, eng, `tlist_clear_("l")`)
	evalStr(t, eng, `tlist_close_("l")`)
}

func TestFlagExtWait(t *testing.T) {
	eng, mgr := newTestManager(t, nil)
	if err := mgr.Load("flagext"); err != nil {
		t.Fatal(err)
	}
	evalStr(t, eng, `flag_add_("go")`)
	if got := evalStr(t, eng, `flag_israised_("go")`); got != "False" {
		t.Fatalf("new flag raised: %s", got)
	}
	// immediate timeout on a lowered flag
	if got := evalStr(t, eng, `flag_wait_("go", 0)`); got != "False" {
		t.Fatalf("flag_wait_(0) = %s", got)
	}

	fx := mgr.loaded["flagext"].ext.(*flagExt)
	go func() {
		time.Sleep(20 * time.Millisecond)
		fx.set("flag_raise_", "go", true)
	}()
	if got := evalStr(t, eng, `flag_wait_("go", 2)`); got != "True" {
		t.Fatalf("flag_wait_ = %s", got)
	}
	// wait consumed the flag
	if got := evalStr(t, eng, `flag_israised_("go")`); got != "False" {
		t.Fatalf("flag still raised after wait: %s", got)
	}
	if got := evalStr(t, eng, `flag_del_("go")`); got != "True" {
		t.Fatalf("flag_del_ = %s", got)
	}
	if got := evalStr(t, eng, `flag_israised_("go")`); got != "None" {
		t.Fatalf("deleted flag status = %s", got)
	}
}

func TestUtilExtEnvGate(t *testing.T) {
	eng, mgr := newTestManager(t, nil)
	if err := mgr.Load("utilext"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Eval(`getenv_("PATH")`); err == nil {
		t.Fatal("getenv_ allowed without allow_getenv")
	}
	if got := evalStr(t, eng, `timems_() > 0`); got != "True" {
		t.Fatalf("timems_ = %s", got)
	}

	eng2, mgr2 := newTestManager(t, map[string]string{"allow_getenv": "true"})
	if err := mgr2.Load("utilext"); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APYSHELL_TEST_VAR", "ok")
	if got := evalStr(t, eng2, `getenv_("APYSHELL_TEST_VAR")`); got != "'ok'" {
		t.Fatalf("getenv_ = %s", got)
	}
}

func TestHTTPExtSchemeGate(t *testing.T) {
	eng, mgr := newTestManager(t, nil) // default: https only
	if err := mgr.Load("httpext"); err != nil {
		t.Fatal(err)
	}
	if got := evalStr(t, eng, `http_modes_()`); got != "['https']" {
		t.Fatalf("http_modes_ = %s", got)
	}
	if _, err := eng.Eval(`http_get_("http://example.com/")`); err == nil {
		t.Fatal("cleartext scheme accepted under https-only mode")
	}
	if _, err := eng.Eval(`http_get_("ftp://example.com/")`); err == nil {
		t.Fatal("ftp scheme accepted")
	}
}
