package util

import (
	"bytes"
	"fmt"
	"strings"
)

// ContextLines formats the script lines around faultLine for error output:
// up to two lines of leading context, then the fault line marked with '>'.
// Returns "" when the line number is out of range.
func ContextLines(src string, faultLine int) string {
	lines := strings.Split(src, "\n")
	if faultLine < 1 || faultLine > len(lines) {
		return ""
	}

	start := faultLine - 2
	if start < 1 {
		start = 1
	}

	var out bytes.Buffer
	for i := start; i <= faultLine; i++ {
		if i == faultLine {
			fmt.Fprintf(&out, "  >  %3d | %s\n", i, lines[i-1])
		} else {
			fmt.Fprintf(&out, "     %3d | %s\n", i, lines[i-1])
		}
	}
	return out.String()
}
