// Package text formats help text and values for the CLI.
package text

import (
	"fmt"
	"strings"
)

// Indentation prefixes every line of an example block.
const Indentation = `  `

// LongDesc trims a command's long description written as an indented raw string.
func LongDesc(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	return strings.Join(lines, "\n")
}

// Examples trims a command's examples and indents every line.
func Examples(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			line = Indentation + line
		}
		lines[i] = line
	}

	return strings.Join(lines, "\n")
}

// Percent renders a share as shown next to each candidate, e.g. "42.9%".
func Percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// YesNo renders a flag in tables.
func YesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

// OrDash renders an empty value as "-".
func OrDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
