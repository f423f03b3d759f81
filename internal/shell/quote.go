// Package shell quotes values written into bash scripts and command lines.
package shell

import (
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

var plain = regexp.MustCompile(`^[A-Za-z0-9_./:,+@%-]+$`)

// Quote returns s as a single bash word that expands back to s. Plain
// words are returned unchanged.
func Quote(s string) string {
	if plain.MatchString(s) {
		return s
	}
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		// NUL bytes cannot be represented in a shell word.
		return "'" + strings.ReplaceAll(strings.ReplaceAll(s, "\x00", ""), "'", `'\''`) + "'"
	}
	return q
}
