package asm

import (
	"fmt"
	"strings"
)

// ParseFailure is a fatal assembly error: a position, a message, and a
// short excerpt of the offending source (the defining line plus its
// immediate neighbors, for "printing the offending line
// plus its neighbors for context").
type ParseFailure struct {
	File    string
	Line    int
	Message string
	Excerpt []string // up to 3 lines: line-1, line, line+1 (omitting missing ones)
}

func (e *ParseFailure) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%d: %s\n", e.File, e.Line, e.Message)
	for _, l := range e.Excerpt {
		sb.WriteString("    ")
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// newParseFailure builds a ParseFailure attaching up to one line of context
// on either side of line (1-indexed) from the full source text.
func newParseFailure(file string, line int, message string, sourceLines []string) *ParseFailure {
	var excerpt []string
	for _, i := range []int{line - 2, line - 1, line} {
		if i >= 0 && i < len(sourceLines) {
			excerpt = append(excerpt, sourceLines[i])
		}
	}
	return &ParseFailure{File: file, Line: line, Message: message, Excerpt: excerpt}
}
