package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lookbusy1344/rv32im-toolchain/asm"
)

// LintLevel represents the severity of a lint issue
type LintLevel int

const (
	LintError   LintLevel = iota // Syntax errors, undefined references
	LintWarning                  // Best practice violations, potential issues
	LintInfo                     // Suggestions, style recommendations
)

func (l LintLevel) String() string {
	switch l {
	case LintError:
		return "error"
	case LintWarning:
		return "warning"
	case LintInfo:
		return "info"
	default:
		return "unknown"
	}
}

// LintIssue represents a single lint finding
type LintIssue struct {
	Level   LintLevel
	Line    int
	Message string
	Code    string // Issue code like "UNDEF_LABEL", "UNREACHABLE_CODE"
}

func (i *LintIssue) String() string {
	return fmt.Sprintf("line %d: %s: %s [%s]", i.Line, i.Level, i.Message, i.Code)
}

// LintOptions controls linter behavior
type LintOptions struct {
	Strict       bool // Treat warnings as errors
	CheckUnused  bool // Check for unused labels
	CheckReach   bool // Check for unreachable code
	SuggestFixes bool // Suggest fixes for common issues
}

// DefaultLintOptions returns default linter options
func DefaultLintOptions() *LintOptions {
	return &LintOptions{
		Strict:       false,
		CheckUnused:  true,
		CheckReach:   true,
		SuggestFixes: true,
	}
}

// Linter analyzes RV32IM assembly source for issues
type Linter struct {
	options *LintOptions
	issues  []*LintIssue
	lines   []*SourceLine

	definedLabels    map[string]int   // label -> line number
	referencedLabels map[string][]int // label -> line numbers where used
}

// NewLinter creates a new linter
func NewLinter(options *LintOptions) *Linter {
	if options == nil {
		options = DefaultLintOptions()
	}
	return &Linter{
		options:          options,
		definedLabels:    make(map[string]int),
		referencedLabels: make(map[string][]int),
	}
}

var branchMnemonics = map[string]bool{
	"beq": true, "bne": true, "blt": true, "bge": true, "bltu": true, "bgeu": true,
	"ble": true, "bleu": true, "bgt": true, "bgtu": true,
	"beqz": true, "bnez": true, "bltz": true, "bgez": true, "bgtz": true, "blez": true,
}

var unconditionalJumpMnemonics = map[string]bool{"j": true, "jal": true, "tail": true}

// Lint analyzes the given assembly source code
func (l *Linter) Lint(input, filename string) []*LintIssue {
	l.lines = ParseSource(input)

	l.collectLabels()
	l.checkUndefinedLabels()

	if l.options.CheckUnused {
		l.checkUnusedLabels()
	}

	if l.options.CheckReach {
		l.checkUnreachableCode()
	}

	l.checkMnemonics()
	l.checkDirectives()

	if l.options.Strict {
		for _, issue := range l.issues {
			if issue.Level == LintWarning {
				issue.Level = LintError
			}
		}
	}

	sort.Slice(l.issues, func(i, j int) bool {
		return l.issues[i].Line < l.issues[j].Line
	})

	return l.issues
}

// collectLabels builds a map of all defined labels
func (l *Linter) collectLabels() {
	for _, sl := range l.lines {
		if sl.Label == "" {
			continue
		}
		if _, exists := l.definedLabels[sl.Label]; exists {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintWarning,
				Line:    sl.Line,
				Message: fmt.Sprintf("Duplicate label %q", sl.Label),
				Code:    "DUPLICATE_LABEL",
			})
			continue
		}
		l.definedLabels[sl.Label] = sl.Line
	}
}

// checkUndefinedLabels checks for references to undefined labels
func (l *Linter) checkUndefinedLabels() {
	for _, sl := range l.lines {
		if sl.Mnemonic == "" || len(sl.Operands) == 0 {
			continue
		}
		target := sl.Operands[len(sl.Operands)-1]
		switch {
		case branchMnemonics[sl.Mnemonic] || unconditionalJumpMnemonics[sl.Mnemonic] ||
			sl.Mnemonic == "call" || sl.Mnemonic == "jr" || sl.Mnemonic == "jalr":
			if isRegisterOperand(target) || isNumericOperand(target) {
				continue
			}
			l.checkLabelReference(target, sl.Line)
		case sl.Mnemonic == "la" || sl.Mnemonic == "lla":
			if len(sl.Operands) == 2 {
				l.checkLabelReference(sl.Operands[1], sl.Line)
			}
		}
	}
}

// checkLabelReference verifies a label exists and records usage
func (l *Linter) checkLabelReference(label string, line int) {
	label = strings.TrimSpace(label)
	if label == "" || isNumericOperand(label) {
		return
	}

	l.referencedLabels[label] = append(l.referencedLabels[label], line)

	if _, exists := l.definedLabels[label]; !exists {
		suggestion := l.findSimilarLabel(label)
		msg := fmt.Sprintf("Undefined label %q", label)
		if suggestion != "" && l.options.SuggestFixes {
			msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		l.issues = append(l.issues, &LintIssue{
			Level:   LintError,
			Line:    line,
			Message: msg,
			Code:    "UNDEF_LABEL",
		})
	}
}

// checkUnusedLabels warns about defined but unused labels
func (l *Linter) checkUnusedLabels() {
	for label, defLine := range l.definedLabels {
		if isSpecialLabel(label) {
			continue
		}
		if _, used := l.referencedLabels[label]; !used {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintWarning,
				Line:    defLine,
				Message: fmt.Sprintf("Label %q defined but never referenced", label),
				Code:    "UNUSED_LABEL",
			})
		}
	}
}

// checkUnreachableCode detects instructions after an unconditional jump
// or return, with no label in between to receive control
func (l *Linter) checkUnreachableCode() {
	var instLines []*SourceLine
	for _, sl := range l.lines {
		if sl.Mnemonic != "" {
			instLines = append(instLines, sl)
		}
	}

	for i, sl := range instLines {
		// jal/call always save a return address and control comes back, so
		// only the link-free transfers end a block here.
		isTerminator := sl.Mnemonic == "ret" || sl.Mnemonic == "j" || sl.Mnemonic == "tail"

		if !isTerminator || i+1 >= len(instLines) {
			continue
		}
		next := instLines[i+1]
		if next.Label == "" {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintWarning,
				Line:    next.Line,
				Message: "Unreachable code detected",
				Code:    "UNREACHABLE_CODE",
			})
		}
	}
}

// checkMnemonics flags instruction mnemonics the assembler would reject
func (l *Linter) checkMnemonics() {
	for _, sl := range l.lines {
		if sl.Mnemonic == "" {
			continue
		}
		if !asm.IsKnownMnemonic(sl.Mnemonic) {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintError,
				Line:    sl.Line,
				Message: fmt.Sprintf("Unrecognized mnemonic %q", sl.Mnemonic),
				Code:    "UNKNOWN_MNEMONIC",
			})
		}
	}
}

// checkDirectives validates assembler directives
func (l *Linter) checkDirectives() {
	for _, sl := range l.lines {
		switch sl.Directive {
		case ".byte", ".half", ".short", ".2byte", ".word", ".long", ".4byte":
			if len(sl.Operands) == 0 {
				l.issues = append(l.issues, &LintIssue{
					Level:   LintError,
					Line:    sl.Line,
					Message: fmt.Sprintf("%s directive requires at least one argument", sl.Directive),
					Code:    "INVALID_DIRECTIVE",
				})
			}

		case ".align", ".p2align":
			if len(sl.Operands) != 1 {
				l.issues = append(l.issues, &LintIssue{
					Level:   LintError,
					Line:    sl.Line,
					Message: fmt.Sprintf("%s directive requires exactly one argument", sl.Directive),
					Code:    "INVALID_DIRECTIVE",
				})
			}

		case ".zero":
			if len(sl.Operands) != 1 {
				l.issues = append(l.issues, &LintIssue{
					Level:   LintError,
					Line:    sl.Line,
					Message: ".zero directive requires exactly one argument",
					Code:    "INVALID_DIRECTIVE",
				})
			}

		case ".string", ".asciz":
			if len(sl.Operands) != 1 {
				l.issues = append(l.issues, &LintIssue{
					Level:   LintError,
					Line:    sl.Line,
					Message: fmt.Sprintf("%s directive requires exactly one string argument", sl.Directive),
					Code:    "INVALID_DIRECTIVE",
				})
			}
		}
	}
}

// findSimilarLabel finds a label with a similar name (for suggestions)
func (l *Linter) findSimilarLabel(target string) string {
	target = strings.ToLower(target)
	bestMatch := ""
	bestDistance := 999

	for label := range l.definedLabels {
		dist := levenshteinDistance(strings.ToLower(label), target)
		if dist < bestDistance && dist <= 3 { // Max 3 character difference
			bestMatch = label
			bestDistance = dist
		}
	}

	return bestMatch
}

// levenshteinDistance calculates edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(s1)][len(s2)]
}

func min(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
