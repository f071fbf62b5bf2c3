package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/closecrowd/apyshell/internal/object"
)

func newTestEngine(t *testing.T, dirs ...string) *Engine {
	t.Helper()
	return New(Options{
		ScriptDirs:  dirs,
		RaiseErrors: true,
		Writer:      &bytes.Buffer{},
		ErrWriter:   &bytes.Buffer{},
	})
}

func TestRegisterCommand(t *testing.T) {
	e := newTestEngine(t)
	called := false
	err := e.RegisterCommand("ping_", func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		called = true
		return &object.Str{Value: "pong"}, nil
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	v, err := e.Eval("ping_()")
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if !called || v.(*object.Str).Value != "pong" {
		t.Errorf("command not invoked correctly: %v", v)
	}

	// registered commands are readonly and unshadowable
	if _, err := e.Eval("ping_ = 1"); err == nil {
		t.Error("assigning a registered command should fault")
	}
	if _, err := e.Eval("def ping_(): pass"); err == nil {
		t.Error("shadowing a registered command with a def should fault")
	}
}

func TestRegisterCommandRejectsBadNames(t *testing.T) {
	e := newTestEngine(t)
	fn := func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		return object.None, nil
	}
	for _, name := range []string{"noslash", "bad-name_", "", "1x_"} {
		if err := e.RegisterCommand(name, fn); err == nil {
			t.Errorf("name %q should be rejected", name)
		}
	}
}

func TestUnregisterCommand(t *testing.T) {
	e := newTestEngine(t)
	fn := func(args []object.Object, _ map[string]object.Object) (object.Object, error) {
		return object.None, nil
	}
	e.RegisterCommand("gone_", fn)
	if !e.UnregisterCommand("gone_") {
		t.Fatal("unregister should succeed")
	}
	if e.UnregisterCommand("gone_") {
		t.Error("second unregister should report false")
	}
	if _, err := e.Eval("gone_()"); err == nil {
		t.Error("unregistered command should not be callable")
	}
}

func TestSanitizeScriptName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"job", "job", true},
		{"sub/job", "sub/job", true},
		{"../etc/passwd", "etc/passwd", true},
		{"/abs/path", "abs/path", true},
		{"a//b", "a/b", true},
		{"win\\name", "winname", true},
		{"bad name", "", false},
		{"semi;colon", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SanitizeScriptName(tt.in)
			if tt.ok && (err != nil || got != tt.want) {
				t.Errorf("got %q, %v; want %q", got, err, tt.want)
			}
			if !tt.ok && err == nil {
				t.Errorf("%q should be rejected", tt.in)
			}
		})
	}
}

func TestLoadScript(t *testing.T) {
	dir := t.TempDir()
	script := "answer = 6 * 7\ndef helper():\n    return answer\n"
	if err := os.WriteFile(filepath.Join(dir, "setup.apy"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine(t, dir)
	// extension is appended when absent
	if _, err := e.LoadScript("setup", false); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	v, _ := e.GetVar("answer")
	if v.(*object.Int).Value != 42 {
		t.Errorf("answer = %s", v.Inspect())
	}
	if !e.IsDef("helper") {
		t.Error("helper should be defined")
	}

	if _, err := e.LoadScript("missing", false); err == nil {
		t.Error("missing script should error")
	}
}

func TestPersistentProcs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lib.apy"),
		[]byte("def keeper():\n    return 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine(t, dir)
	if _, err := e.LoadScript("lib", true); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Eval("def transient():\n    return 2"); err != nil {
		t.Fatal(err)
	}

	e.ClearProcs(nil)
	if !e.IsDef("keeper") {
		t.Error("persistent proc should survive ClearProcs")
	}
	if e.IsDef("transient") {
		t.Error("non-persistent proc should be cleared")
	}

	// explicit keep list also protects
	e.Eval("def pinned():\n    return 3")
	e.ClearProcs([]string{"pinned"})
	if !e.IsDef("pinned") {
		t.Error("keep list should protect a proc")
	}
}

func TestEngineCommands(t *testing.T) {
	e := newTestEngine(t)

	v, err := e.Eval("eval_('1 + 1')")
	if err != nil {
		t.Fatalf("eval_: %v", err)
	}
	if v.(*object.Int).Value != 2 {
		t.Errorf("eval_ = %s", v.Inspect())
	}

	v, _ = e.Eval("check_('x = ')")
	if _, isStr := v.(*object.Str); !isStr {
		t.Errorf("check_ on bad input should return the message, got %s", v.Inspect())
	}
	v, _ = e.Eval("check_('x = 1')")
	if v != object.True {
		t.Errorf("check_ on good input = %s", v.Inspect())
	}

	v, _ = e.Eval("install_('math')")
	if v != object.True {
		t.Error("install_ math should succeed")
	}
	v, _ = e.Eval("'math' in listModules_()")
	if v != object.True {
		t.Error("listModules_ should include math")
	}

	e.Eval("setvar_('shared', 5)")
	v, _ = e.Eval("getvar_('shared') + getvar_('absent', 10)")
	if v.(*object.Int).Value != 15 {
		t.Errorf("getvar_/setvar_ roundtrip = %s", v.Inspect())
	}

	if _, err := e.Eval("setvar_('smuggle_', 1)"); err == nil {
		t.Error("setvar_ must refuse reserved names")
	}

	e.SetSysVar("build", &object.Str{Value: "v1"})
	v, _ = e.Eval("getSysVar_('build')")
	if v.(*object.Str).Value != "v1" {
		t.Errorf("getSysVar_ = %s", v.Inspect())
	}

	v, _ = e.Eval("isDef_('nope')")
	if v != object.False {
		t.Error("isDef_ on a missing name should be False")
	}
}

func TestExitCommand(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Eval("exit_(3)\nnever = 1")
	if err != nil {
		t.Fatalf("exit_ should stop silently: %v", err)
	}
	requested, code := e.ExitRequested()
	if !requested || code != 3 {
		t.Errorf("exit state = %v/%d", requested, code)
	}
	if _, ok := e.GetVar("never"); ok {
		t.Error("statements after exit_ must not run")
	}
}
