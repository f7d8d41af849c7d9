package tools

import (
	"fmt"
	"sort"
	"strings"
)

// ReferenceType indicates how a symbol is used
type ReferenceType int

const (
	RefDefinition ReferenceType = iota // Symbol defined here
	RefBranch                          // Branch target
	RefLoad                            // Load from address
	RefStore                           // Store to address
	RefData                            // Data reference
	RefCall                            // Function call (jal/call/tail)
)

func (r ReferenceType) String() string {
	switch r {
	case RefDefinition:
		return "definition"
	case RefBranch:
		return "branch"
	case RefLoad:
		return "load"
	case RefStore:
		return "store"
	case RefData:
		return "data"
	case RefCall:
		return "call"
	default:
		return "unknown"
	}
}

// Reference represents a single reference to a symbol
type Reference struct {
	Type   ReferenceType
	Line   int
	Source string // source line text
}

// Symbol represents a symbol and all its references
type Symbol struct {
	Name        string
	Definition  *Reference   // Where it's defined
	References  []*Reference // Where it's used
	IsFunction  bool         // True if it's called with jal/call
	IsDataLabel bool         // True if defined by a data directive
}

// XRefGenerator generates cross-reference information for RV32IM assembly
type XRefGenerator struct {
	lines   []*SourceLine
	symbols map[string]*Symbol
}

// NewXRefGenerator creates a new cross-reference generator
func NewXRefGenerator() *XRefGenerator {
	return &XRefGenerator{symbols: make(map[string]*Symbol)}
}

var loadMnemonicSet = map[string]bool{"lb": true, "lh": true, "lw": true, "lbu": true, "lhu": true}
var storeMnemonicSet = map[string]bool{"sb": true, "sh": true, "sw": true}
var callMnemonicSet = map[string]bool{"call": true, "tail": true}

// Generate generates cross-reference information from source code
func (x *XRefGenerator) Generate(input, filename string) (map[string]*Symbol, error) {
	x.lines = ParseSource(input)

	x.collectDefinitions()
	x.collectReferences()
	x.analyzeCallGraph()

	return x.symbols, nil
}

// collectDefinitions collects all symbol definitions
func (x *XRefGenerator) collectDefinitions() {
	for _, sl := range x.lines {
		if sl.Label == "" {
			continue
		}
		sym := x.getOrCreate(sl.Label)
		sym.Definition = &Reference{Type: RefDefinition, Line: sl.Line, Source: sl.Raw}
		if sl.Directive != "" {
			sym.IsDataLabel = true
		}
	}
}

// collectReferences collects all symbol references
func (x *XRefGenerator) collectReferences() {
	for _, sl := range x.lines {
		if sl.Mnemonic == "" || len(sl.Operands) == 0 {
			continue
		}
		mnem := sl.Mnemonic
		target := sl.Operands[len(sl.Operands)-1]

		switch {
		case branchMnemonics[mnem]:
			if !isRegisterOperand(target) && !isNumericOperand(target) {
				x.addReference(target, RefBranch, sl.Line, sl.Raw)
			}
		case unconditionalJumpMnemonics[mnem], mnem == "jr", mnem == "jalr":
			if !isRegisterOperand(target) && !isNumericOperand(target) {
				x.addReference(target, RefBranch, sl.Line, sl.Raw)
			}
		case callMnemonicSet[mnem]:
			if !isRegisterOperand(target) && !isNumericOperand(target) {
				x.addReference(target, RefCall, sl.Line, sl.Raw)
			}
		case mnem == "jal":
			if !isRegisterOperand(target) && !isNumericOperand(target) {
				refType := RefBranch
				if len(sl.Operands) == 2 {
					refType = RefCall
				}
				x.addReference(target, refType, sl.Line, sl.Raw)
			}
		case loadMnemonicSet[mnem] || mnem == "la" || mnem == "lla" || mnem == "li":
			if len(sl.Operands) == 2 {
				sym := strings.TrimSuffix(sl.Operands[1], "(r0)")
				if !isRegisterOperand(sym) && !isNumericOperand(sym) && !strings.Contains(sym, "(") {
					x.addReference(sym, RefLoad, sl.Line, sl.Raw)
				}
			}
		case storeMnemonicSet[mnem]:
			if len(sl.Operands) == 3 {
				sym := sl.Operands[1]
				if !isRegisterOperand(sym) && !isNumericOperand(sym) {
					x.addReference(sym, RefStore, sl.Line, sl.Raw)
				}
			}
		}
	}
}

func (x *XRefGenerator) getOrCreate(name string) *Symbol {
	if sym, ok := x.symbols[name]; ok {
		return sym
	}
	sym := &Symbol{Name: name}
	x.symbols[name] = sym
	return sym
}

// addReference adds a reference to a symbol
func (x *XRefGenerator) addReference(name string, refType ReferenceType, line int, source string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	sym := x.getOrCreate(name)
	sym.References = append(sym.References, &Reference{Type: refType, Line: line, Source: source})
}

// analyzeCallGraph determines which symbols are functions
func (x *XRefGenerator) analyzeCallGraph() {
	for _, symbol := range x.symbols {
		for _, ref := range symbol.References {
			if ref.Type == RefCall {
				symbol.IsFunction = true
				break
			}
		}
	}
}

// XRefReport generates a formatted cross-reference report
type XRefReport struct {
	symbols []*Symbol
}

// NewXRefReport creates a new cross-reference report
func NewXRefReport(symbols map[string]*Symbol) *XRefReport {
	sortedSymbols := make([]*Symbol, 0, len(symbols))
	for _, sym := range symbols {
		sortedSymbols = append(sortedSymbols, sym)
	}
	sort.Slice(sortedSymbols, func(i, j int) bool {
		return sortedSymbols[i].Name < sortedSymbols[j].Name
	})

	return &XRefReport{symbols: sortedSymbols}
}

// String generates a text report
func (r *XRefReport) String() string {
	var sb strings.Builder

	sb.WriteString("Symbol Cross-Reference\n")
	sb.WriteString("======================\n\n")

	for _, sym := range r.symbols {
		sb.WriteString(fmt.Sprintf("%-30s", sym.Name))

		switch {
		case sym.IsFunction:
			sb.WriteString(" [function]")
		case sym.IsDataLabel:
			sb.WriteString(" [data]")
		default:
			sb.WriteString(" [label]")
		}
		sb.WriteString("\n")

		if sym.Definition != nil {
			sb.WriteString(fmt.Sprintf("  Defined:     line %d\n", sym.Definition.Line))
		} else {
			sb.WriteString("  Defined:     (undefined)\n")
		}

		if len(sym.References) == 0 {
			sb.WriteString("  Referenced:  (never)\n")
		} else {
			sb.WriteString(fmt.Sprintf("  Referenced:  %d time(s)\n", len(sym.References)))

			refsByType := make(map[ReferenceType][]*Reference)
			for _, ref := range sym.References {
				refsByType[ref.Type] = append(refsByType[ref.Type], ref)
			}

			types := []ReferenceType{RefCall, RefBranch, RefLoad, RefStore, RefData}
			for _, refType := range types {
				refs := refsByType[refType]
				if len(refs) > 0 {
					lines := make([]string, len(refs))
					for i, ref := range refs {
						lines[i] = fmt.Sprintf("%d", ref.Line)
					}
					sb.WriteString(fmt.Sprintf("    %-10s: line(s) %s\n", refType.String(), strings.Join(lines, ", ")))
				}
			}
		}

		sb.WriteString("\n")
	}

	totalSymbols := len(r.symbols)
	definedSymbols := 0
	undefinedSymbols := 0
	unusedSymbols := 0
	functionCount := 0

	for _, sym := range r.symbols {
		if sym.Definition != nil {
			definedSymbols++
		} else {
			undefinedSymbols++
		}
		if len(sym.References) == 0 {
			unusedSymbols++
		}
		if sym.IsFunction {
			functionCount++
		}
	}

	sb.WriteString("Summary\n")
	sb.WriteString("=======\n")
	sb.WriteString(fmt.Sprintf("Total symbols:     %d\n", totalSymbols))
	sb.WriteString(fmt.Sprintf("Defined:           %d\n", definedSymbols))
	sb.WriteString(fmt.Sprintf("Undefined:         %d\n", undefinedSymbols))
	sb.WriteString(fmt.Sprintf("Unused:            %d\n", unusedSymbols))
	sb.WriteString(fmt.Sprintf("Functions:         %d\n", functionCount))

	return sb.String()
}

// GenerateXRef is a convenience function to generate a cross-reference report
func GenerateXRef(input, filename string) (string, error) {
	gen := NewXRefGenerator()
	symbols, err := gen.Generate(input, filename)
	if err != nil {
		return "", err
	}

	report := NewXRefReport(symbols)
	return report.String(), nil
}

// GetSymbols returns all symbols found in the source
func (x *XRefGenerator) GetSymbols() map[string]*Symbol {
	return x.symbols
}

// GetSymbol returns a specific symbol by name
func (x *XRefGenerator) GetSymbol(name string) (*Symbol, bool) {
	sym, exists := x.symbols[name]
	return sym, exists
}

// GetFunctions returns all symbols that are functions
func (x *XRefGenerator) GetFunctions() []*Symbol {
	functions := make([]*Symbol, 0)
	for _, sym := range x.symbols {
		if sym.IsFunction {
			functions = append(functions, sym)
		}
	}
	sort.Slice(functions, func(i, j int) bool {
		return functions[i].Name < functions[j].Name
	})
	return functions
}

// GetDataLabels returns all symbols that are data labels
func (x *XRefGenerator) GetDataLabels() []*Symbol {
	dataLabels := make([]*Symbol, 0)
	for _, sym := range x.symbols {
		if sym.IsDataLabel {
			dataLabels = append(dataLabels, sym)
		}
	}
	sort.Slice(dataLabels, func(i, j int) bool {
		return dataLabels[i].Name < dataLabels[j].Name
	})
	return dataLabels
}

// GetUndefinedSymbols returns all symbols that are referenced but not defined
func (x *XRefGenerator) GetUndefinedSymbols() []*Symbol {
	undefined := make([]*Symbol, 0)
	for _, sym := range x.symbols {
		if sym.Definition == nil && len(sym.References) > 0 {
			undefined = append(undefined, sym)
		}
	}
	sort.Slice(undefined, func(i, j int) bool {
		return undefined[i].Name < undefined[j].Name
	})
	return undefined
}

// GetUnusedSymbols returns all symbols that are defined but never referenced
func (x *XRefGenerator) GetUnusedSymbols() []*Symbol {
	unused := make([]*Symbol, 0)
	for _, sym := range x.symbols {
		if sym.Definition != nil && len(sym.References) == 0 {
			if !isSpecialLabel(sym.Name) {
				unused = append(unused, sym)
			}
		}
	}
	sort.Slice(unused, func(i, j int) bool {
		return unused[i].Name < unused[j].Name
	})
	return unused
}
