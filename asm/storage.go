package asm

import (
	"fmt"

	"github.com/lookbusy1344/rv32im-toolchain/isa"
)

// Kind discriminates the Storage sum type. Every Storage
// belongs to exactly one Section, carried on the node itself so the linker
// can bucket by kind without a second lookup.
type Kind int

const (
	KindArithmeticReg Kind = iota
	KindArithmeticImm
	KindLoadStore
	KindBranch
	KindJumpRelative
	KindJumpRegister
	KindCallFunction
	KindLoadImmediate
	KindLoadUpperImmediate
	KindAddUpperImmediatePC

	KindAlignment
	KindIntegerData
	KindZeroBytes
	KindASCIZ
)

func (k Kind) IsInstruction() bool { return k <= KindAddUpperImmediatePC }

// Storage is one node of an AssemblyLayout: either an instruction or a
// static-data directive, tagged with the Section it was assembled into.
// Only the fields relevant to Kind are populated; callers switch on Kind
// before reading them (an exhaustive switch per variant, not a type
// hierarchy, per the closed-union treatment of this sum type).
type Storage struct {
	Kind    Kind
	Section isa.Section
	Line    int // source line, for diagnostics

	ArithOp isa.ArithOp
	LSOp    isa.LoadStoreOp
	BrOp    isa.BranchOp

	Rd, Rs1, Rs2 isa.Register
	Imm          *Immediate

	IsTail bool // CallFunction: true for `tail`, false for `call`

	Width int // IntegerData: 1, 2, or 4
	Align uint32
	Count uint32
	Text  string // ASCIZ payload, already unescaped
}

func (s *Storage) String() string {
	switch s.Kind {
	case KindArithmeticReg:
		return fmt.Sprintf("%s %s, %s, %s", s.ArithOp, s.Rd, s.Rs1, s.Rs2)
	case KindArithmeticImm:
		return fmt.Sprintf("%s %s, %s, %s", s.ArithOp, s.Rd, s.Rs1, s.Imm)
	case KindLoadStore:
		if s.LSOp.IsStore() {
			return fmt.Sprintf("%s %s, %s(%s)", s.LSOp, s.Rs2, s.Imm, s.Rs1)
		}
		return fmt.Sprintf("%s %s, %s(%s)", s.LSOp, s.Rd, s.Imm, s.Rs1)
	case KindBranch:
		return fmt.Sprintf("%s %s, %s, %s", s.BrOp, s.Rs1, s.Rs2, s.Imm)
	case KindJumpRelative:
		return fmt.Sprintf("jal %s, %s", s.Rd, s.Imm)
	case KindJumpRegister:
		return fmt.Sprintf("jalr %s, %s(%s)", s.Rd, s.Imm, s.Rs1)
	case KindCallFunction:
		if s.IsTail {
			return fmt.Sprintf("tail %s", s.Imm)
		}
		return fmt.Sprintf("call %s", s.Imm)
	case KindLoadImmediate:
		return fmt.Sprintf("li %s, %s", s.Rd, s.Imm)
	case KindLoadUpperImmediate:
		return fmt.Sprintf("lui %s, %s", s.Rd, s.Imm)
	case KindAddUpperImmediatePC:
		return fmt.Sprintf("auipc %s, %s", s.Rd, s.Imm)
	case KindAlignment:
		return fmt.Sprintf(".align -> %d", s.Align)
	case KindIntegerData:
		return fmt.Sprintf(".%dbyte %s", s.Width, s.Imm)
	case KindZeroBytes:
		return fmt.Sprintf(".zero %d", s.Count)
	case KindASCIZ:
		return fmt.Sprintf(".asciz %q", s.Text)
	default:
		return "?"
	}
}

// MaxSize returns the pessimistic (upper-bound) encoded size in bytes used
// by the linker's size-estimation pass. CallFunction
// and LoadImmediate are estimated at their maximum two-instruction forms;
// relaxation may later shrink them.
func (s *Storage) MaxSize() uint32 {
	switch s.Kind {
	case KindCallFunction, KindLoadImmediate:
		return 8
	case KindAlignment:
		return s.Align // worst case: up to (align-1) padding bytes, capped by Align itself below
	case KindZeroBytes:
		return s.Count
	case KindASCIZ:
		return uint32(len(s.Text)) + 1
	case KindIntegerData:
		return uint32(s.Width)
	default:
		if s.Kind.IsInstruction() {
			return 4
		}
		return 0
	}
}

// Label is a named reference into an AssemblyLayout's Storage pool
// StorageIndex indexes into the owning
// AssemblyLayout.Pool/Nodes, re-expressing the spec's raw-pointer
// defining_storage_pointer as a stable arena index.
type Label struct {
	Name              string
	DefiningLine      int
	DefiningStorage   int // index into AssemblyLayout.Nodes, or -1 if only .globl-declared so far
	IsGlobal          bool
	Section           isa.Section
}

// SectionRun is one (contiguous slice of Nodes, Section) pair, preserving
// source order within the file.
type SectionRun struct {
	Start, End int // [Start, End) into AssemblyLayout.Nodes
	Section    isa.Section
}

// AssemblyLayout is the per-file output of the Assembler: a
// contiguous pool owning all Storage nodes, an ordered list of section
// runs, and a list of label records. The File field names the source for
// diagnostics downstream in the linker.
type AssemblyLayout struct {
	File    string
	Nodes   []*Storage
	Runs    []SectionRun
	Labels  []*Label
}

// LabelByName returns the Label with the given name, or nil.
func (a *AssemblyLayout) LabelByName(name string) *Label {
	for _, l := range a.Labels {
		if l.Name == name {
			return l
		}
	}
	return nil
}
