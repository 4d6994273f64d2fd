// Package metadata detects, strips, generates and updates the fenced
// metadata header at the start of a post.
//
// Detection is positional and syntactic: a block counts only when the fence
// is the very first thing in the text. The header grammar is only ever
// written by this package, so it is edited line by line rather than
// round-tripped through a YAML encoder.
package metadata

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Fence delimits the metadata block.
const Fence = "---"

const (
	timestampLayout = "2006-01-02 15:04:05"
	compactLayout   = "20060102150405"
)

var (
	blockRe   = regexp.MustCompile(`(?ms)\A---[ \t]*\r?$.*?^---[ \t]*\r?$`)
	lastmodRe = regexp.MustCompile(`(?m)^lastmod:[^\r\n]*`)
)

// Extract returns the leading metadata block, fences included, or "" when
// the text does not start with one.
func Extract(text string) string {
	return text[:blockEnd(text)]
}

// Strip removes exactly one leading metadata block and trims the remainder.
func Strip(text string) string {
	return strings.TrimSpace(text[blockEnd(text):])
}

// blockEnd returns the offset just past the closing fence, or 0.
func blockEnd(text string) int {
	loc := blockRe.FindStringIndex(text)
	if loc == nil {
		return 0
	}
	end := loc[1]
	if text[end-1] == '\r' {
		end--
	}
	return end
}

// Split returns Extract(text) and Strip(text).
func Split(text string) (block, body string) {
	return Extract(text), Strip(text)
}

// Generate builds a fresh block stamped with now. Untitled posts are tagged
// with defaultTag.
func Generate(title string, now time.Time, defaultTag string) string {
	tags := "[]"
	if title == "" && defaultTag != "" {
		tags = "[" + defaultTag + "]"
	}
	ts := quote(FormatTimestamp(now))

	var b strings.Builder
	b.WriteString(Fence + "\n")
	fmt.Fprintf(&b, "title: %s\n", quote(title))
	fmt.Fprintf(&b, "date: %s\n", ts)
	fmt.Fprintf(&b, "lastmod: %s\n", ts)
	fmt.Fprintf(&b, "tags: %s\n", tags)
	b.WriteString("draft: false\n")
	b.WriteString("summary: ''\n")
	b.WriteString(Fence)
	return b.String()
}

// UpdateLastmod rewrites the lastmod line of block to now. A block without a
// lastmod line gets one inserted before the closing fence. All other lines
// are left untouched.
func UpdateLastmod(block string, now time.Time) string {
	if block == "" {
		return ""
	}
	line := "lastmod: " + quote(FormatTimestamp(now))

	if loc := lastmodRe.FindStringIndex(block); loc != nil {
		return block[:loc[0]] + line + block[loc[1]:]
	}

	idx := strings.LastIndex(block, "\n"+Fence)
	if idx < 0 {
		return block
	}
	nl := "\n"
	if idx > 0 && block[idx-1] == '\r' {
		idx--
		nl = "\r\n"
	}
	return block[:idx] + nl + line + block[idx:]
}

// Assemble joins a block and a body the way published content is laid out.
func Assemble(block, body string) string {
	return block + "\n" + body
}

// FormatTimestamp renders t as YYYY-MM-DD HH:MM:SS in local time.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(timestampLayout)
}

// CompactTimestamp renders t as YYYYMMDDHHMMSS in local time, for slugs.
func CompactTimestamp(t time.Time) string {
	return t.Local().Format(compactLayout)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
