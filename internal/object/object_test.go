package object

import (
	"fmt"
	"sync"
	"testing"
)

func TestInspect(t *testing.T) {
	tests := []struct {
		name string
		obj  Object
		want string
	}{
		{"none", None, "None"},
		{"true", True, "True"},
		{"int", &Int{Value: -7}, "-7"},
		{"float", &Float{Value: 2.5}, "2.5"},
		{"integral float", &Float{Value: 3}, "3.0"},
		{"string", &Str{Value: "hi"}, "'hi'"},
		{"list", &List{Elements: []Object{&Int{Value: 1}, &Str{Value: "a"}}}, "[1, 'a']"},
		{"tuple", &Tuple{Elements: []Object{&Int{Value: 1}}}, "(1,)"},
		{"nested", &List{Elements: []Object{&List{Elements: []Object{None}}}}, "[[None]]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.obj.Inspect(); got != tt.want {
				t.Errorf("Inspect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruthy(t *testing.T) {
	truthy := []Object{True, &Int{Value: 1}, &Float{Value: 0.5}, &Str{Value: "x"},
		&List{Elements: []Object{None}}}
	falsy := []Object{None, False, &Int{}, &Float{}, &Str{}, &List{}, &Tuple{}, NewDict()}

	for _, obj := range truthy {
		if !Truthy(obj) {
			t.Errorf("%s should be truthy", obj.Inspect())
		}
	}
	for _, obj := range falsy {
		if Truthy(obj) {
			t.Errorf("%s should be falsy", obj.Inspect())
		}
	}
}

func TestEquals(t *testing.T) {
	if !Equals(&Int{Value: 1}, &Float{Value: 1.0}) {
		t.Error("1 == 1.0 should hold")
	}
	if !Equals(True, &Int{Value: 1}) {
		t.Error("True == 1 should hold")
	}
	if Equals(&Str{Value: "1"}, &Int{Value: 1}) {
		t.Error("'1' == 1 should not hold")
	}
	a := &List{Elements: []Object{&Int{Value: 1}, &Str{Value: "x"}}}
	b := &List{Elements: []Object{&Int{Value: 1}, &Str{Value: "x"}}}
	if !Equals(a, b) {
		t.Error("equal lists should compare equal")
	}
}

func TestHashKeys(t *testing.T) {
	if (&Int{Value: 1}).HashKey() != (&Float{Value: 1.0}).HashKey() {
		t.Error("1 and 1.0 should hash alike")
	}
	if (&Str{Value: "a"}).HashKey() == (&Str{Value: "b"}).HashKey() {
		t.Error("distinct strings should hash differently")
	}
	t1 := &Tuple{Elements: []Object{&Int{Value: 1}, &Str{Value: "x"}}}
	t2 := &Tuple{Elements: []Object{&Int{Value: 1}, &Str{Value: "x"}}}
	if t1.HashKey() != t2.HashKey() {
		t.Error("equal tuples should hash alike")
	}
}

func TestValidName(t *testing.T) {
	for _, good := range []string{"x", "_x", "x_", "abc123", "snake_case"} {
		if !ValidName(good) {
			t.Errorf("%q should be valid", good)
		}
	}
	for _, bad := range []string{"", "1x", "a-b", "a.b", "a b"} {
		if ValidName(bad) {
			t.Errorf("%q should be invalid", bad)
		}
	}
}

func TestSetCheckedEnforcesRules(t *testing.T) {
	st := NewSymbolTable()

	if st.SetChecked("cmd_", &Int{Value: 1}) {
		t.Error("reserved-suffix name should be rejected")
	}
	if st.Has("cmd_") {
		t.Error("rejected store must not leave an entry")
	}

	st.Set("pi", &Float{Value: 3.14})
	st.MarkReadonly("pi")
	if st.SetChecked("pi", &Int{Value: 0}) {
		t.Error("readonly name should be rejected")
	}
	v, _ := st.Get("pi")
	if v.(*Float).Value != 3.14 {
		t.Error("rejected store must leave the prior value intact")
	}

	if !st.SetChecked("x", &Int{Value: 5}) {
		t.Error("plain store should succeed")
	}
}

func TestDeleteChecked(t *testing.T) {
	st := NewSymbolTable()
	st.Set("keep_", &Int{Value: 1})
	st.Set("ro", &Int{Value: 2})
	st.MarkReadonly("ro")
	st.Set("x", &Int{Value: 3})

	if st.DeleteChecked("keep_") {
		t.Error("reserved name must not be deletable from script")
	}
	if st.DeleteChecked("ro") {
		t.Error("readonly name must not be deletable from script")
	}
	if !st.DeleteChecked("x") {
		t.Error("plain delete should succeed")
	}

	// host-facing Delete ignores the script rules
	if !st.Delete("keep_") {
		t.Error("host delete should succeed")
	}
}

func TestFreeze(t *testing.T) {
	st := NewSymbolTable()
	st.Set("builtin", &Int{Value: 1})
	st.Freeze(true)
	st.Set("later", &Int{Value: 2})

	if !st.IsFrozen("builtin") || !st.IsReadonly("builtin") {
		t.Error("pre-existing names should be frozen and readonly")
	}
	if st.IsFrozen("later") || st.IsReadonly("later") {
		t.Error("names added after Freeze should be unaffected")
	}
}

func TestExemptClearedOnScriptRebind(t *testing.T) {
	st := NewSymbolTable()
	st.Set("cb", &Builtin{Name: "cb"})
	st.MarkExempt("cb")
	if !st.IsExempt("cb") {
		t.Fatal("exempt flag not recorded")
	}
	st.SetChecked("cb", &Int{Value: 1})
	if st.IsExempt("cb") {
		t.Error("script rebind should clear the exemption")
	}
}

func TestConcurrentAccess(t *testing.T) {
	st := NewSymbolTable()
	const n = 64
	var wg sync.WaitGroup
	errs := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			st.Set(key, &Int{Value: int64(i)})
			v, ok := st.Get(key)
			if !ok {
				errs <- key + " missing"
				return
			}
			if v.(*Int).Value != int64(i) {
				errs <- key + " corrupted"
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}
