package tools

import (
	"strings"
	"testing"
)

func TestFormat_BasicInstruction(t *testing.T) {
	source := `addi a0,zero,10`

	formatter := NewFormatter(DefaultFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.Contains(result, "addi") {
		t.Error("Expected addi instruction in output")
	}
	if !strings.Contains(result, "a0, zero, 10") {
		t.Errorf("Expected comma-space operand formatting, got: %s", result)
	}
}

func TestFormat_WithLabel(t *testing.T) {
	source := `loop:addi a0,zero,10`

	formatter := NewFormatter(DefaultFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.Contains(result, "loop:") {
		t.Error("Expected label with colon")
	}

	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) > 0 && !strings.HasPrefix(lines[0], "loop:") {
		t.Error("Expected line to start with label")
	}
}

func TestFormat_WithComment(t *testing.T) {
	source := `addi a0, zero, 10 # Load 10 into a0`

	formatter := NewFormatter(DefaultFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.Contains(result, "Load 10 into a0") {
		t.Error("Expected comment in output")
	}
	if !strings.Contains(result, "#") {
		t.Error("Expected '#' for comment")
	}
}

func TestFormat_CompactStyle(t *testing.T) {
	source := `
loop:	addi a0, zero, 10
		addi a0, a0, 1
	`

	formatter := NewFormatter(CompactFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(result), "\n")
	for _, line := range lines {
		if strings.Contains(line, "  ") && !strings.Contains(line, "#") {
			t.Errorf("Compact style should minimize whitespace: %s", line)
		}
	}
}

func TestFormat_ExpandedStyle(t *testing.T) {
	source := `addi a0,zero,10`

	formatter := NewFormatter(ExpandedFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.Contains(result, " ") {
		t.Error("Expected whitespace in expanded style")
	}
}

func TestFormat_MultipleInstructions(t *testing.T) {
	source := `
_start: addi a0, zero, 10
        addi a0, a0, 1
        sub a1, a0, zero
        ecall
	`

	formatter := NewFormatter(DefaultFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) != 4 {
		t.Errorf("Expected 4 lines, got %d", len(lines))
	}

	for _, inst := range []string{"addi", "sub"} {
		if !strings.Contains(result, inst) {
			t.Errorf("Expected instruction %s in output", inst)
		}
	}
}

func TestFormat_Directives(t *testing.T) {
	source := `
		.text
data:	.word 42
		.byte 0xFF
	`

	formatter := NewFormatter(DefaultFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.Contains(result, ".text") {
		t.Error("Expected .text directive")
	}
	if !strings.Contains(result, ".word") {
		t.Error("Expected .word directive")
	}
	if !strings.Contains(result, ".byte") {
		t.Error("Expected .byte directive")
	}
}

func TestFormat_ComplexOperands(t *testing.T) {
	source := `lw a0, 4(a1)`

	formatter := NewFormatter(DefaultFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.Contains(result, "(a1)") {
		t.Errorf("Expected offset(register) operand, got: %s", result)
	}
}

func TestFormat_AlignComments(t *testing.T) {
	source := `
addi a0, zero, 10 # Comment 1
addi a1, a0, 1 # Comment 2
	`

	options := DefaultFormatOptions()
	options.AlignComments = true
	options.CommentColumn = 30

	formatter := NewFormatter(options)
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(result), "\n")
	commentPositions := make([]int, 0)
	for _, line := range lines {
		if idx := strings.Index(line, "#"); idx != -1 {
			commentPositions = append(commentPositions, idx)
		}
	}
	if len(commentPositions) != 2 {
		t.Errorf("Expected 2 comments, got %d", len(commentPositions))
	}
}

func TestFormat_PreserveOperandOrder(t *testing.T) {
	source := `add a0, a1, a2`

	formatter := NewFormatter(DefaultFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.Contains(result, "a0, a1, a2") {
		t.Errorf("Expected operands in order a0, a1, a2, got: %s", result)
	}
}

func TestFormat_EmptyInput(t *testing.T) {
	source := ``

	formatter := NewFormatter(DefaultFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if strings.TrimSpace(result) != "" {
		t.Errorf("Expected empty output for empty input, got: %s", result)
	}
}

func TestFormat_MixedCase(t *testing.T) {
	source := `ADD a0, a0, a1`

	formatter := NewFormatter(DefaultFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.Contains(result, "add") {
		t.Error("Expected mnemonic text preserved (case-insensitively lexed)")
	}
}

func TestFormat_LabelOnly(t *testing.T) {
	source := `
_start:
		addi a0, zero, 10
	`

	formatter := NewFormatter(DefaultFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.Contains(result, "_start:") {
		t.Error("Expected _start label")
	}
}

func TestFormat_DirectiveWithLabel(t *testing.T) {
	source := `data: .word 42`

	formatter := NewFormatter(DefaultFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.Contains(result, "data:") {
		t.Error("Expected data label")
	}
	if !strings.Contains(result, ".word") {
		t.Error("Expected .word directive")
	}
}

func TestFormatString_Convenience(t *testing.T) {
	source := `addi a0, zero, 10`

	result, err := FormatString(source, "test.s")
	if err != nil {
		t.Fatalf("FormatString error: %v", err)
	}
	if !strings.Contains(result, "addi") {
		t.Error("Expected addi in formatted output")
	}
}

func TestFormatStringWithStyle_Compact(t *testing.T) {
	source := `addi a0, zero, 10`

	result, err := FormatStringWithStyle(source, "test.s", FormatCompact)
	if err != nil {
		t.Fatalf("FormatStringWithStyle error: %v", err)
	}
	if !strings.Contains(result, "addi") {
		t.Error("Expected addi in formatted output")
	}
}

func TestFormatStringWithStyle_Expanded(t *testing.T) {
	source := `addi a0, zero, 10`

	result, err := FormatStringWithStyle(source, "test.s", FormatExpanded)
	if err != nil {
		t.Fatalf("FormatStringWithStyle error: %v", err)
	}
	if !strings.Contains(result, "addi") {
		t.Error("Expected addi in formatted output")
	}
}

func TestFormat_ShiftImmediate(t *testing.T) {
	source := `slli a0, a1, 2`

	formatter := NewFormatter(DefaultFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.Contains(result, "slli") {
		t.Error("Expected slli shift instruction")
	}
}

func TestFormat_BranchInstruction(t *testing.T) {
	source := `
_start:	addi a0, zero, 10
		j loop
loop:	addi a0, a0, 1
	`

	formatter := NewFormatter(DefaultFormatOptions())
	result, err := formatter.Format(source, "test.s")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.Contains(result, "j") {
		t.Error("Expected j instruction")
	}
	if !strings.Contains(result, "_start:") || !strings.Contains(result, "loop:") {
		t.Error("Expected both labels in output")
	}
}
