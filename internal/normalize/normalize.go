// Package normalize prepares post bodies for the target renderer.
package normalize

import "strings"

// HardBreak is the trailing marker the renderer treats as a line break.
const HardBreak = "  "

// Normalize ends every line of body with a hard break. Lines that already
// end with one are kept as is, and CRLF line endings become LF. Applying
// Normalize twice gives the same result as applying it once.
func Normalize(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasSuffix(line, HardBreak) {
			line += HardBreak
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
