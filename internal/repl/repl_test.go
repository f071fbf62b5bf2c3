package repl

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/closecrowd/apyshell/internal/engine"
)

func runSession(t *testing.T, input string) string {
	t.Helper()
	eng := engine.New(engine.Options{Writer: io.Discard, ErrWriter: io.Discard})
	var out bytes.Buffer
	Start(eng, strings.NewReader(input), &out)
	return out.String()
}

func TestExpressionEcho(t *testing.T) {
	got := runSession(t, "1 + 2\n")
	if !strings.Contains(got, "3") {
		t.Fatalf("output %q missing result", got)
	}
}

func TestStateCarriesAcrossLines(t *testing.T) {
	got := runSession(t, "x = 10\nx * 2\n")
	if !strings.Contains(got, "20") {
		t.Fatalf("output %q missing result", got)
	}
}

func TestBlockBuffering(t *testing.T) {
	session := strings.Join([]string{
		"def twice(n):",
		"    return n * 2",
		"",
		"twice(21)",
		"",
	}, "\n")
	got := runSession(t, session)
	if !strings.Contains(got, "42") {
		t.Fatalf("output %q missing call result", got)
	}
	// the continuation prompt appeared while the block was open
	if !strings.Contains(got, contPrompt) {
		t.Fatalf("output %q missing continuation prompt", got)
	}
}

func TestFaultReported(t *testing.T) {
	got := runSession(t, "1 / 0\n")
	if !strings.Contains(got, "ZeroDivisionError") {
		t.Fatalf("output %q missing fault text", got)
	}
}

func TestExitEndsSession(t *testing.T) {
	got := runSession(t, "exit_(0)\n99\n")
	if strings.Contains(got, "99") {
		t.Fatalf("session continued after exit: %q", got)
	}
}
