// Package repl implements the interactive read-eval-print loop for the
// shell. Block statements are buffered line by line until the suite ends,
// then handed to the engine as one unit.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/closecrowd/apyshell/internal/engine"
)

const (
	prompt     = ">> "
	contPrompt = ".. "
)

// Start reads statements from in, evaluates them on eng, and prints each
// result to out until EOF or an exit_() request.
func Start(eng *engine.Engine, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var block []string
	for {
		if len(block) == 0 {
			fmt.Fprint(out, prompt)
		} else {
			fmt.Fprint(out, contPrompt)
		}
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()

		if len(block) > 0 {
			// a blank line closes the open block
			if strings.TrimSpace(line) == "" {
				run(eng, out, strings.Join(block, "\n"))
				block = block[:0]
				if done(eng) {
					return
				}
			} else {
				block = append(block, line)
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		if opensBlock(line) {
			block = append(block, line)
			continue
		}
		run(eng, out, line)
		if done(eng) {
			return
		}
	}
}

// opensBlock reports whether a line starts a suite that needs more input.
func opensBlock(line string) bool {
	trimmed := strings.TrimRight(line, " \t")
	return strings.HasSuffix(trimmed, ":")
}

func run(eng *engine.Engine, out io.Writer, text string) {
	v, err := eng.Eval(text)
	if err != nil {
		fmt.Fprintln(out, err.Error())
		return
	}
	if v != nil && v.Inspect() != "None" {
		fmt.Fprintln(out, v.Inspect())
	}
}

func done(eng *engine.Engine) bool {
	requested, _ := eng.ExitRequested()
	return requested
}
