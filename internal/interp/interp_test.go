package interp

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/closecrowd/apyshell/internal/object"
)

func newTestInterp() *Interp {
	return New(Config{RaiseErrors: true, BuiltinsReadonly: true, Writer: &bytes.Buffer{}, ErrWriter: &bytes.Buffer{}})
}

func evalOK(t *testing.T, i *Interp, src string) object.Object {
	t.Helper()
	v, err := i.Eval(src)
	if err != nil {
		t.Fatalf("Eval(%q) failed: %v", src, err)
	}
	return v
}

func evalFault(t *testing.T, i *Interp, src string) *Fault {
	t.Helper()
	_, err := i.Eval(src)
	if err == nil {
		t.Fatalf("Eval(%q) should have faulted", src)
	}
	f, ok := err.(*Fault)
	if !ok {
		t.Fatalf("Eval(%q) returned %T, want *Fault", src, err)
	}
	return f
}

func wantInt(t *testing.T, v object.Object, want int64) {
	t.Helper()
	n, ok := v.(*object.Int)
	if !ok {
		t.Fatalf("got %s (%s), want int %d", v.Inspect(), v.Type(), want)
	}
	if n.Value != want {
		t.Errorf("got %d, want %d", n.Value, want)
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2+3*4", "14"},
		{"(2+3)*4", "20"},
		{"7 // 2", "3"},
		{"-7 // 2", "-4"},
		{"7 % 3", "1"},
		{"-7 % 3", "2"},
		{"7 / 2", "3.5"},
		{"2 ** 10", "1024"},
		{"2 ** -1", "0.5"},
		{"1 << 4", "16"},
		{"6 & 3", "2"},
		{"6 | 3", "7"},
		{"6 ^ 3", "5"},
		{"~5", "-6"},
		{"-2 ** 2", "-4"},
		{"'ab' + 'cd'", "'abcd'"},
		{"'ab' * 3", "'ababab'"},
		{"[1] + [2, 3]", "[1, 2, 3]"},
		{"[0] * 3", "[0, 0, 0]"},
		{"True + 1", "2"},
		{"'%s=%d' % ('a', 1)", "'a=1'"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v := evalOK(t, newTestInterp(), tt.input)
			if got := v.Inspect(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestListComprehension(t *testing.T) {
	v := evalOK(t, newTestInterp(), "[i*i for i in range(4)]")
	if got := v.Inspect(); got != "[0, 1, 4, 9]" {
		t.Errorf("got %s", got)
	}

	v = evalOK(t, newTestInterp(), "[a*10+b for a in range(2) for b in range(3) if b != 1]")
	if got := v.Inspect(); got != "[0, 2, 10, 12]" {
		t.Errorf("nested comp got %s", got)
	}
}

func TestListCompDoesNotLeak(t *testing.T) {
	i := newTestInterp()
	evalOK(t, i, "i = 99\nsquares = [i*i for i in range(4)]")
	v, _ := i.GetSymbol("i")
	wantInt(t, v, 99)

	// a name that did not exist before stays undefined
	evalOK(t, i, "outs = [j for j in range(2)]")
	if _, ok := i.GetSymbol("j"); ok {
		t.Error("comprehension variable leaked into the table")
	}
}

func TestReadonlyAssignmentFails(t *testing.T) {
	i := newTestInterp()
	i.AddSymbol("cfg", &object.Int{Value: 42})
	i.MarkReadonly("cfg")

	f := evalFault(t, i, "cfg = 0")
	if f.Kind != NameFault {
		t.Errorf("kind = %v, want NameFault", f.Kind)
	}
	v, _ := i.GetSymbol("cfg")
	wantInt(t, v, 42)
}

func TestReservedSuffixNames(t *testing.T) {
	i := newTestInterp()

	f := evalFault(t, i, "def foo_(): pass")
	if f.Kind != NameFault {
		t.Errorf("def foo_ kind = %v, want NameFault", f.Kind)
	}
	if _, ok := i.GetSymbol("foo_"); ok {
		t.Error("foo_ must never be creatable from script code")
	}

	if evalFault(t, i, "bar_ = 1").Kind != NameFault {
		t.Error("assigning a reserved name should be a NameFault")
	}
	i.AddSymbol("host_", &object.Int{Value: 1})
	if evalFault(t, i, "del host_").Kind != NameFault {
		t.Error("deleting a reserved name should be a NameFault")
	}
}

func TestBlockedAttributes(t *testing.T) {
	i := newTestInterp()
	for _, src := range []string{
		"'abc'.__class__",
		"[].__dict__",
		"{}.__subclasshook__",
		"'x'.func_globals",
	} {
		f := evalFault(t, i, src)
		if f.Kind != AttributeFault {
			t.Errorf("%q kind = %v, want AttributeFault", src, f.Kind)
		}
		if !strings.Contains(f.Msg, "denied") {
			t.Errorf("%q should report a denial, got %q", src, f.Msg)
		}
	}

	// missing-but-not-denied reads distinguish themselves
	f := evalFault(t, i, "'abc'.nosuch")
	if strings.Contains(f.Msg, "denied") {
		t.Errorf("missing attribute should not claim denial: %q", f.Msg)
	}
}

func TestShadowRoundTrip(t *testing.T) {
	i := newTestInterp()
	src := `
x = 5
def f(x):
    x = x + 1
    return x
y = f(x)
`
	evalOK(t, i, src)
	v, _ := i.GetSymbol("x")
	wantInt(t, v, 5)
	v, _ = i.GetSymbol("y")
	wantInt(t, v, 6)
}

func TestProcAssignsGlobalForNonParams(t *testing.T) {
	i := newTestInterp()
	evalOK(t, i, "def g():\n    counter = 7\ng()")
	v, ok := i.GetSymbol("counter")
	if !ok {
		t.Fatal("non-parameter assignment inside a procedure should reach the table")
	}
	wantInt(t, v, 7)
}

func TestGlobalFuncsMode(t *testing.T) {
	i := New(Config{RaiseErrors: true, GlobalFuncs: true, Writer: &bytes.Buffer{}, ErrWriter: &bytes.Buffer{}})
	evalOK(t, i, "def f(a):\n    return a + 1\nr = f(10)")
	v, ok := i.GetSymbol("a")
	if !ok {
		t.Fatal("globals-only mode should leave the parameter binding in the table")
	}
	wantInt(t, v, 10)
}

func TestForElse(t *testing.T) {
	i := newTestInterp()
	evalOK(t, i, `
flag = False
for i in range(3):
    pass
else:
    flag = True
`)
	v, _ := i.GetSymbol("flag")
	if v != object.True {
		t.Error("normal exhaustion should run the else clause")
	}

	i = newTestInterp()
	evalOK(t, i, `
flag = False
for i in range(3):
    break
else:
    flag = True
`)
	v, _ = i.GetSymbol("flag")
	if v != object.False {
		t.Error("break must skip the else clause")
	}
}

func TestWhileElseAndContinue(t *testing.T) {
	i := newTestInterp()
	evalOK(t, i, `
total = 0
n = 0
while n < 5:
    n = n + 1
    if n % 2 == 0:
        continue
    total = total + n
else:
    done = True
`)
	v, _ := i.GetSymbol("total")
	wantInt(t, v, 9)
	if d, _ := i.GetSymbol("done"); d != object.True {
		t.Error("while else should have run")
	}
}

func TestTryFinallyAlwaysRuns(t *testing.T) {
	i := newTestInterp()
	_, err := i.Eval(`
marker = 0
try:
    raise ValueError('x')
finally:
    marker = 1
`)
	if err == nil {
		t.Fatal("the unhandled fault should propagate")
	}
	v, _ := i.GetSymbol("marker")
	wantInt(t, v, 1)

	// and with a matching handler
	i = newTestInterp()
	evalOK(t, i, `
marker = 0
try:
    try:
        raise ValueError('x')
    finally:
        marker = 1
except ValueError:
    caught = True
`)
	v, _ = i.GetSymbol("marker")
	wantInt(t, v, 1)
	if c, _ := i.GetSymbol("caught"); c != object.True {
		t.Error("outer except should have matched")
	}
}

func TestExceptMatching(t *testing.T) {
	i := newTestInterp()
	evalOK(t, i, `
try:
    nope
except NameError as e:
    got = e
`)
	v, _ := i.GetSymbol("got")
	s, ok := v.(*object.Str)
	if !ok || !strings.Contains(s.Value, "not defined") {
		t.Errorf("handler should bind the fault message, got %v", v)
	}

	// non-matching class propagates
	f := evalFault(t, newTestInterp(), `
try:
    nope
except ValueError:
    pass
`)
	if f.Class != "NameError" {
		t.Errorf("class = %s, want NameError", f.Class)
	}

	// bare except matches anything; else runs only on clean bodies
	i = newTestInterp()
	evalOK(t, i, `
try:
    x = 1
except:
    path = 'handler'
else:
    path = 'else'
`)
	v, _ = i.GetSymbol("path")
	if v.(*object.Str).Value != "else" {
		t.Errorf("else clause should run on a clean body, got %s", v.Inspect())
	}
}

func TestRaiseForms(t *testing.T) {
	f := evalFault(t, newTestInterp(), "raise ValueError('bad input')")
	if f.Class != "ValueError" || f.Kind != ValueFault {
		t.Errorf("class/kind = %s/%v", f.Class, f.Kind)
	}
	if f.Msg != "bad input" {
		t.Errorf("msg = %q", f.Msg)
	}

	// custom class names still match handlers by name
	i := newTestInterp()
	evalOK(t, i, `
try:
    raise ConfigError('missing key')
except ConfigError:
    handled = True
`)
	if v, _ := i.GetSymbol("handled"); v != object.True {
		t.Error("custom exception class should match by name")
	}

	// `from None` suppresses the cause, anything else is appended
	f = evalFault(t, newTestInterp(), "raise ValueError('x') from None")
	if f.Msg != "x" {
		t.Errorf("from None should leave the message alone, got %q", f.Msg)
	}
	f = evalFault(t, newTestInterp(), "raise ValueError('x') from 'earlier'")
	if !strings.Contains(f.Msg, "from earlier") {
		t.Errorf("cause should be appended, got %q", f.Msg)
	}

	// bare raise re-raises inside a handler
	f = evalFault(t, newTestInterp(), `
try:
    raise ValueError('orig')
except ValueError:
    raise
`)
	if f.Msg != "orig" {
		t.Errorf("bare raise should re-raise the handled fault, got %q", f.Msg)
	}
}

func TestAssert(t *testing.T) {
	f := evalFault(t, newTestInterp(), "assert 1 == 2, 'math is broken'")
	if f.Kind != AssertionFault || f.Msg != "math is broken" {
		t.Errorf("kind/msg = %v/%q", f.Kind, f.Msg)
	}
	evalOK(t, newTestInterp(), "assert True")
}

func TestChainedComparisons(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{"1 < 2 < 3", object.True},
		{"1 < 2 > 3", object.False},
		{"3 >= 3 >= 3", object.True},
		{"'a' < 'b'", object.True},
		{"[1, 2] < [1, 3]", object.True},
		{"2 in [1, 2, 3]", object.True},
		{"5 not in [1, 2, 3]", object.True},
		{"'bc' in 'abcd'", object.True},
		{"None is None", object.True},
		{"1 is not None", object.True},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if v := evalOK(t, newTestInterp(), tt.input); v != tt.want {
				t.Errorf("got %s", v.Inspect())
			}
		})
	}
}

func TestShortCircuit(t *testing.T) {
	// the right side would fault if evaluated
	if v := evalOK(t, newTestInterp(), "False and nosuch"); v != object.False {
		t.Errorf("got %s", v.Inspect())
	}
	if v := evalOK(t, newTestInterp(), "True or nosuch"); v != object.True {
		t.Errorf("got %s", v.Inspect())
	}
	// and/or return the deciding operand, not a coerced bool
	v := evalOK(t, newTestInterp(), "0 or 'fallback'")
	if v.(*object.Str).Value != "fallback" {
		t.Errorf("got %s", v.Inspect())
	}
}

func TestProcedureBinding(t *testing.T) {
	i := newTestInterp()
	evalOK(t, i, `
def f(a, b, c=10, *rest, **opts):
    return [a, b, c, list(rest), opts]
`)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"positional", "f(1, 2)", "[1, 2, 10, [], {}]"},
		{"keyword promotion", "f(1, b=2)", "[1, 2, 10, [], {}]"},
		// with a vararg present, surplus positionals go to it rather than
		// filling keyword defaults
		{"surplus to vararg", "f(1, 2, 3)", "[1, 2, 10, [3], {}]"},
		{"vararg", "f(1, 2, 3, 4, 5)", "[1, 2, 10, [3, 4, 5], {}]"},
		{"varkw", "f(1, 2, extra=9)", "[1, 2, 10, [], {'extra': 9}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := evalOK(t, i, tt.input)
			if got := v.Inspect(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProcedureBindingFaults(t *testing.T) {
	i := newTestInterp()
	evalOK(t, i, "def g(a, b):\n    return a + b")

	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"too few", "g(1)", "missing"},
		{"too many", "g(1, 2, 3)", "too many"},
		{"duplicate", "g(1, 2, a=3)", "multiple values"},
		{"extra keyword", "g(1, 2, z=3)", "extra keyword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := evalFault(t, i, tt.input)
			if f.Kind != TypeFault {
				t.Errorf("kind = %v, want TypeFault", f.Kind)
			}
			if !strings.Contains(f.Msg, tt.msg) {
				t.Errorf("msg = %q, want substring %q", f.Msg, tt.msg)
			}
		})
	}
}

func TestProcedureRedefinition(t *testing.T) {
	i := newTestInterp()
	evalOK(t, i, "def h():\n    return 1")
	first, _ := i.GetSymbol("h")
	evalOK(t, i, "def h():\n    return 2")
	second, _ := i.GetSymbol("h")
	if first == second {
		t.Error("redefinition should replace the Procedure")
	}
	v := evalOK(t, i, "h()")
	wantInt(t, v, 2)
}

func TestRecursionDepthLimit(t *testing.T) {
	f := evalFault(t, newTestInterp(), "def r(n):\n    return r(n + 1)\nr(0)")
	if !strings.Contains(f.Msg, "call depth") {
		t.Errorf("msg = %q", f.Msg)
	}
}

func TestConcurrentHostAccess(t *testing.T) {
	i := newTestInterp()
	const n = 32
	var wg sync.WaitGroup
	errs := make(chan string, n)
	for k := 0; k < n; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			name := fmt.Sprintf("k%d", k)
			if err := i.AddSymbol(name, &object.Int{Value: int64(k)}); err != nil {
				errs <- err.Error()
				return
			}
			v, ok := i.GetSymbol(name)
			if !ok || v.(*object.Int).Value != int64(k) {
				errs <- name + " corrupted"
			}
		}(k)
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func TestAbortRun(t *testing.T) {
	i := newTestInterp()
	i.AbortRun()
	f := evalFault(t, i, "x = 1\ny = 2")
	if f.Kind != AbortFault {
		t.Fatalf("kind = %v, want AbortFault", f.Kind)
	}
	if _, ok := i.GetSymbol("x"); ok {
		t.Error("no statement may execute after an abort")
	}

	i.Reset()
	evalOK(t, i, "x = 1")
}

func TestStopRunIsSilent(t *testing.T) {
	i := newTestInterp()
	i.StopRun()
	v, err := i.Eval("x = 1")
	if err != nil {
		t.Fatalf("stop must not fault: %v", err)
	}
	if v != object.None {
		t.Errorf("got %s", v.Inspect())
	}
	if _, ok := i.GetSymbol("x"); ok {
		t.Error("no statement may execute after a stop")
	}
}

func TestUnpacking(t *testing.T) {
	i := newTestInterp()
	evalOK(t, i, "a, b = 1, 2\na, b = b, a")
	v, _ := i.GetSymbol("a")
	wantInt(t, v, 2)

	f := evalFault(t, i, "a, b = [1, 2, 3]")
	if f.Kind != TypeFault || !strings.Contains(f.Msg, "arity") {
		t.Errorf("kind/msg = %v/%q", f.Kind, f.Msg)
	}
}

func TestSubscriptsAndSlices(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"[10, 20, 30][1]", "20"},
		{"[10, 20, 30][-1]", "30"},
		{"'hello'[1]", "'e'"},
		{"[0, 1, 2, 3, 4][1:4]", "[1, 2, 3]"},
		{"[0, 1, 2, 3, 4][::2]", "[0, 2, 4]"},
		{"[0, 1, 2, 3, 4][::-1]", "[4, 3, 2, 1, 0]"},
		{"'abcdef'[2:4]", "'cd'"},
		{"(1, 2, 3)[1:]", "(2, 3)"},
		{"{'a': 1}['a']", "1"},
		{"[[1, 2], [3, 4], [5, 6]][1:, :1]", "[[3], [5]]"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v := evalOK(t, newTestInterp(), tt.input)
			if got := v.Inspect(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	f := evalFault(t, newTestInterp(), "[1, 2][5]")
	if f.Class != "IndexError" {
		t.Errorf("class = %s, want IndexError", f.Class)
	}
}

func TestIndexedStoreAndDelete(t *testing.T) {
	i := newTestInterp()
	evalOK(t, i, "xs = [1, 2, 3]\nxs[1] = 20\nd = {'a': 1}\nd['b'] = 2\ndel xs[0]\ndel d['a']")
	xs, _ := i.GetSymbol("xs")
	if xs.Inspect() != "[20, 3]" {
		t.Errorf("xs = %s", xs.Inspect())
	}
	d, _ := i.GetSymbol("d")
	if d.Inspect() != "{'b': 2}" {
		t.Errorf("d = %s", d.Inspect())
	}

	f := evalFault(t, i, "(1, 2)[0] = 9")
	if f.Kind != TypeFault {
		t.Errorf("tuple store kind = %v", f.Kind)
	}
}

func TestMethods(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"'a,b,c'.split(',')", "['a', 'b', 'c']"},
		{"'-'.join(['x', 'y'])", "'x-y'"},
		{"'  pad  '.strip()", "'pad'"},
		{"'Hello'.upper()", "'HELLO'"},
		{"'one two'.title()", "'One Two'"},
		// apostrophes end a word, like CPython
		{`"they're HERE".title()`, `'They\'Re Here'`},
		{"'hello'.replace('l', 'L')", "'heLLo'"},
		{"'hello'.find('ll')", "2"},
		{"'hello'.startswith('he')", "True"},
		{"'42'.zfill(4)", "'0042'"},
		{"{'a': 1, 'b': 2}.get('c', 0)", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v := evalOK(t, newTestInterp(), tt.input)
			if got := v.Inspect(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	i := newTestInterp()
	evalOK(t, i, "xs = [3, 1, 2]\nxs.append(0)\nxs.sort()")
	xs, _ := i.GetSymbol("xs")
	if xs.Inspect() != "[0, 1, 2, 3]" {
		t.Errorf("xs = %s", xs.Inspect())
	}
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"len('abcd')", "4"},
		{"len([1, 2])", "2"},
		{"abs(-3)", "3"},
		{"min(4, 2, 9)", "2"},
		{"max([4, 2, 9])", "9"},
		{"sum([1, 2, 3])", "6"},
		{"sorted([3, 1, 2])", "[1, 2, 3]"},
		{"sorted([3, 1, 2], reverse=True)", "[3, 2, 1]"},
		{"list(range(2, 8, 2))", "[2, 4, 6]"},
		{"int('2f', 16)", "47"},
		{"float('2.5')", "2.5"},
		{"str(12)", "'12'"},
		{"bool([])", "False"},
		{"type(1.5)", "'float'"},
		{"round(2.5)", "3"},
		{"round(2.675, 2)", "2.67"}, // 2.675 has no exact binary form
		{"round(1.005, 2)", "1.0"},
		{"round(1234.5678, -2)", "1200.0"},
		{"ord('A')", "65"},
		{"chr(98)", "'b'"},
		{"any([0, 0, 1])", "True"},
		{"all([1, 0])", "False"},
		{"hex(255)", "'0xff'"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v := evalOK(t, newTestInterp(), tt.input)
			if got := v.Inspect(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPrintOutput(t *testing.T) {
	var out bytes.Buffer
	i := New(Config{RaiseErrors: true, Writer: &out, ErrWriter: &bytes.Buffer{}})
	evalOK(t, i, "print('hello', 42)")
	if got := out.String(); got != "--> hello 42\n" {
		t.Errorf("output = %q", got)
	}

	out.Reset()
	i = New(Config{RaiseErrors: true, NoPrint: true, Writer: &out, ErrWriter: &bytes.Buffer{}})
	evalOK(t, i, "print('quiet')")
	if out.Len() != 0 {
		t.Errorf("NoPrint should silence output, got %q", out.String())
	}
}

func TestEvalPrintModeReturnsFormattedFault(t *testing.T) {
	var errOut bytes.Buffer
	i := New(Config{Writer: &bytes.Buffer{}, ErrWriter: &errOut})
	v, err := i.Eval("nosuch")
	if err != nil {
		t.Fatalf("print mode must not raise: %v", err)
	}
	s, ok := v.(*object.Str)
	if !ok || !strings.Contains(s.Value, "NameError") {
		t.Errorf("value = %v", v)
	}
	if !strings.Contains(errOut.String(), "NameError") {
		t.Errorf("errWriter = %q", errOut.String())
	}
}

func TestErrlineUpdated(t *testing.T) {
	i := newTestInterp()
	_, _ = i.Eval("x = 1\nnosuch\n")
	v, _ := i.GetSymbol("errline_")
	wantInt(t, v, 2)
}

func TestFaultFormatting(t *testing.T) {
	f := evalFault(t, newTestInterp(), "x = 1\nnosuch\n")
	want := "NameError: 'nosuch' is not defined at line 2"
	if f.Error() != want {
		t.Errorf("Error() = %q, want %q", f.Error(), want)
	}
}

func TestStatementLengthCap(t *testing.T) {
	i := New(Config{RaiseErrors: true, MaxStatementLength: 64, Writer: &bytes.Buffer{}, ErrWriter: &bytes.Buffer{}})
	_, err := i.Parse("x = '" + strings.Repeat("a", 100) + "'")
	f, ok := err.(*Fault)
	if !ok || f.Kind != ParseFault {
		t.Fatalf("err = %v, want a ParseFault", err)
	}
}

func TestParseFaults(t *testing.T) {
	for _, src := range []string{"import os", "lambda x: x", "x = = 1"} {
		_, err := newTestInterp().Parse(src)
		if err == nil {
			t.Errorf("%q should fail to parse", src)
		}
	}
}

func TestInstallModules(t *testing.T) {
	i := newTestInterp()
	if !i.Install("math") {
		t.Fatal("math should install")
	}
	if !i.Install("math") {
		t.Fatal("install must be idempotent")
	}
	if i.Install("socketry") {
		t.Fatal("unknown modules must be refused")
	}

	v := evalOK(t, i, "math.sqrt(16.0)")
	if v.(*object.Float).Value != 4 {
		t.Errorf("sqrt = %s", v.Inspect())
	}
	if evalFault(t, i, "math = 0").Kind != NameFault {
		t.Error("installed module names should be readonly")
	}
}

func TestVectorCompareSemantics(t *testing.T) {
	i := newTestInterp()
	// before install: list vs scalar comparison is a TypeFault
	if evalFault(t, i, "[1, 2, 3] > 2").Kind != TypeFault {
		t.Error("scalar/list ordering should fault without the vector module")
	}

	i.Install("vector")
	v := evalOK(t, i, "[1, 2, 3] > 2")
	if v.Inspect() != "[False, False, True]" {
		t.Errorf("elementwise compare = %s", v.Inspect())
	}
	v = evalOK(t, i, "[1, 5] == [1, 9]")
	if v.Inspect() != "[True, False]" {
		t.Errorf("elementwise eq = %s", v.Inspect())
	}
}

func TestTernaryAndDictLiteral(t *testing.T) {
	v := evalOK(t, newTestInterp(), "'yes' if 2 > 1 else 'no'")
	if v.(*object.Str).Value != "yes" {
		t.Errorf("got %s", v.Inspect())
	}
	v = evalOK(t, newTestInterp(), "{'a': 1, 'b': 2}['b']")
	wantInt(t, v, 2)
}

func TestDeleteSymbol(t *testing.T) {
	i := newTestInterp()
	evalOK(t, i, "x = 1\ndel x")
	if _, ok := i.GetSymbol("x"); ok {
		t.Error("x should be gone")
	}
	if evalFault(t, i, "del x").Kind != NameFault {
		t.Error("deleting a missing name should be a NameFault")
	}
}
