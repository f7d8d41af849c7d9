package tools

import (
	"strings"
)

// FormatStyle defines formatting options
type FormatStyle int

const (
	FormatDefault  FormatStyle = iota // Standard formatting
	FormatCompact                     // Minimal whitespace
	FormatExpanded                    // Extra whitespace for readability
)

// FormatOptions controls formatter behavior
type FormatOptions struct {
	Style              FormatStyle
	LabelColumn        int  // Column for labels (default: 0)
	InstructionColumn  int  // Column for instructions (default: 8)
	OperandColumn      int  // Column for operands (default: 16)
	CommentColumn      int  // Column for comments (default: 40)
	AlignOperands      bool // Align operands in columns
	AlignComments      bool // Align comments in columns
	PreserveEmptyLines bool // Keep empty lines
}

// DefaultFormatOptions returns default formatter options
func DefaultFormatOptions() *FormatOptions {
	return &FormatOptions{
		Style:              FormatDefault,
		LabelColumn:        0,
		InstructionColumn:  8,
		OperandColumn:      16,
		CommentColumn:      40,
		AlignOperands:      true,
		AlignComments:      true,
		PreserveEmptyLines: true,
	}
}

// CompactFormatOptions returns options for compact formatting
func CompactFormatOptions() *FormatOptions {
	opts := DefaultFormatOptions()
	opts.Style = FormatCompact
	opts.InstructionColumn = 0
	opts.OperandColumn = 0
	opts.CommentColumn = 0
	opts.AlignOperands = false
	opts.AlignComments = false
	return opts
}

// ExpandedFormatOptions returns options for expanded formatting
func ExpandedFormatOptions() *FormatOptions {
	opts := DefaultFormatOptions()
	opts.Style = FormatExpanded
	opts.InstructionColumn = 12
	opts.OperandColumn = 24
	opts.CommentColumn = 50
	return opts
}

// Formatter formats RV32IM assembly source code
type Formatter struct {
	options *FormatOptions
	output  strings.Builder
}

// NewFormatter creates a new formatter
func NewFormatter(options *FormatOptions) *Formatter {
	if options == nil {
		options = DefaultFormatOptions()
	}
	return &Formatter{options: options}
}

// Format formats the given assembly source code. filename is accepted
// for API symmetry with the rest of the toolchain but unused: formatting
// never needs to resolve symbols across files.
func (f *Formatter) Format(input, filename string) (string, error) {
	f.output.Reset()

	lines := ParseSource(input)
	byLine := make(map[int]*SourceLine, len(lines))
	maxLine := 0
	for _, l := range lines {
		byLine[l.Line] = l
		if l.Line > maxLine {
			maxLine = l.Line
		}
	}

	rawLines := strings.Split(input, "\n")
	if len(rawLines) > maxLine {
		maxLine = len(rawLines)
	}

	for ln := 1; ln <= maxLine; ln++ {
		sl, ok := byLine[ln]
		if !ok {
			if f.options.PreserveEmptyLines {
				f.output.WriteString("\n")
			}
			continue
		}
		f.formatLine(sl)
	}

	return f.output.String(), nil
}

// formatLine formats a single parsed source line
func (f *Formatter) formatLine(sl *SourceLine) {
	line := strings.Builder{}

	// Label
	if sl.Label != "" {
		line.WriteString(sl.Label)
		line.WriteString(":")
		if f.options.Style != FormatCompact {
			f.padToColumn(&line, f.options.InstructionColumn)
		}
	} else if f.options.Style != FormatCompact {
		f.padToColumn(&line, f.options.InstructionColumn)
	}

	switch {
	case sl.Directive != "":
		f.writeCompactableName(&line, sl.Label, sl.Directive)
	case sl.Mnemonic != "":
		f.writeCompactableName(&line, sl.Label, sl.Mnemonic)
	default:
		// label-only line, nothing more to write
	}

	if len(sl.Operands) > 0 {
		if f.options.Style != FormatCompact && f.options.AlignOperands && (sl.Directive != "" || sl.Mnemonic != "") {
			f.padToColumn(&line, f.options.OperandColumn)
		} else if sl.Directive != "" || sl.Mnemonic != "" {
			line.WriteString(f.operandSeparator())
		}
		line.WriteString(strings.Join(sl.Operands, ", "))
	}

	if sl.Comment != "" {
		switch {
		case f.options.Style == FormatCompact:
			line.WriteString(" # ")
			line.WriteString(sl.Comment)
		case f.options.AlignComments:
			f.padToColumn(&line, f.options.CommentColumn)
			line.WriteString("# ")
			line.WriteString(sl.Comment)
		default:
			line.WriteString("\t# ")
			line.WriteString(sl.Comment)
		}
	}

	f.output.WriteString(line.String())
	f.output.WriteString("\n")
}

// writeCompactableName writes a mnemonic or directive name, adding the
// separating space compact style needs when a label preceded it.
func (f *Formatter) writeCompactableName(line *strings.Builder, label, name string) {
	if f.options.Style == FormatCompact && label != "" {
		line.WriteString(" ")
	}
	line.WriteString(name)
}

func (f *Formatter) operandSeparator() string {
	if f.options.Style == FormatCompact {
		return " "
	}
	return "\t"
}

// padToColumn pads the string builder to the specified column
func (f *Formatter) padToColumn(sb *strings.Builder, column int) {
	current := sb.Len()
	switch {
	case current < column:
		sb.WriteString(strings.Repeat(" ", column-current))
	case current == column:
		// already at column
	default:
		sb.WriteString(" ")
	}
}

// FormatString is a convenience function to format a string with default options
func FormatString(input, filename string) (string, error) {
	formatter := NewFormatter(DefaultFormatOptions())
	return formatter.Format(input, filename)
}

// FormatStringWithStyle formats a string with the specified style
func FormatStringWithStyle(input, filename string, style FormatStyle) (string, error) {
	var options *FormatOptions
	switch style {
	case FormatCompact:
		options = CompactFormatOptions()
	case FormatExpanded:
		options = ExpandedFormatOptions()
	default:
		options = DefaultFormatOptions()
	}
	formatter := NewFormatter(options)
	return formatter.Format(input, filename)
}
