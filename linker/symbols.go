package linker

import (
	"fmt"

	"github.com/lookbusy1344/rv32im-toolchain/asm"
	"github.com/lookbusy1344/rv32im-toolchain/isa"
)

// LinkFailure is a fatal linker error (duplicate global, missing main,
// unresolved symbol at encoding time). Surfaced the same way as a
// ParseFailure but without a source excerpt.
type LinkFailure struct {
	Message string
}

func (e *LinkFailure) Error() string { return e.Message }

// SymbolLocation re-expresses the source's raw pointer into a per-file
// StorageDetails as a stable arena index: {section, index}. Address
// lookup is always a function of the current arena state, so relaxation's
// in-place node rewrites are observed everywhere without aliasing.
type SymbolLocation struct {
	Section isa.Section
	Index   int
}

// arena is the per-section StorageDetails analogue: all nodes
// destined for one Section, linked in file order, with a begin_position and
// a length-N+1 offset table re-derived between passes.
type arena struct {
	section isa.Section
	nodes   []*asm.Storage
	files   []string // files[i] names the source file that produced nodes[i]
	offsets []uint32 // len(nodes)+1; offsets[i] = distance of node i from start
	start   uint32
}

func newArena(section isa.Section) *arena {
	return &arena{section: section}
}

// remeasure recomputes offsets from each node's current (possibly
// relaxation-shrunk) MaxSize. Idempotent: calling it twice in a row without
// an intervening rewrite yields identical offsets.
// Alignment nodes are special-cased: their true size depends on the
// absolute address reached so far, not a worst-case constant, so remeasure
// computes their pad exactly (the same formula encodeStorage uses), which
// is what lets a single re-estimate pass settle on
// final, byte-exact addresses.
func (a *arena) remeasure() {
	a.offsets = make([]uint32, len(a.nodes)+1)
	var pos uint32
	for i, n := range a.nodes {
		a.offsets[i] = pos
		if n.Kind == asm.KindAlignment {
			pos += alignPadding(a.start+pos, n.Align)
		} else {
			pos += n.MaxSize()
		}
	}
	a.offsets[len(a.nodes)] = pos
}

// alignPadding returns the number of bytes needed to bring addr up to the
// next multiple of align (a power of two), or 0 if already aligned.
func alignPadding(addr, align uint32) uint32 {
	if align == 0 {
		return 0
	}
	rem := addr % align
	if rem == 0 {
		return 0
	}
	return align - rem
}

func (a *arena) size() uint32 {
	if len(a.offsets) == 0 {
		return 0
	}
	return a.offsets[len(a.offsets)-1]
}

func (a *arena) addressOf(index int) uint32 {
	return a.start + a.offsets[index]
}

// symbolTable resolves a SymbolLocation to an absolute address by
// consulting the owning arena on every call, per the "update once, observed
// everywhere" re-expression in the spec's design notes.
type symbolTable struct {
	arenas   map[isa.Section]*arena
	globals  map[string]SymbolLocation
	locals   map[string]map[string]SymbolLocation // file -> name -> location
	libcAddr map[string]uint32                    // libc trampolines: fixed addresses, not arena-backed
}

func newSymbolTable() *symbolTable {
	st := &symbolTable{
		arenas:   make(map[isa.Section]*arena),
		globals:  make(map[string]SymbolLocation),
		locals:   make(map[string]map[string]SymbolLocation),
		libcAddr: make(map[string]uint32),
	}
	for _, s := range []isa.Section{isa.SectionText, isa.SectionData, isa.SectionRodata, isa.SectionBSS} {
		st.arenas[s] = newArena(s)
	}
	return st
}

func (st *symbolTable) address(loc SymbolLocation) uint32 {
	return st.arenas[loc.Section].addressOf(loc.Index)
}

// resolve looks up name first in the file's local table, then globally,
// then the libc trampoline table.
func (st *symbolTable) resolve(file, name string) (uint32, bool) {
	if locals, ok := st.locals[file]; ok {
		if loc, ok := locals[name]; ok {
			return st.address(loc), true
		}
	}
	if loc, ok := st.globals[name]; ok {
		return st.address(loc), true
	}
	if addr, ok := st.libcAddr[name]; ok {
		return addr, true
	}
	return 0, false
}

// addLibcSymbol registers a fixed-address symbol that is not backed by an
// arena entry (the libc trampoline table).
func (st *symbolTable) addLibcSymbol(name string, addr uint32) {
	st.libcAddr[name] = addr
}

// buildLocalTables appends every file's section-run nodes into the shared
// per-section arenas and records each label's SymbolLocation, publishing
// globals into the shared global table. Duplicate globals are fatal.
func (st *symbolTable) buildLocalTables(layouts []*asm.AssemblyLayout) error {
	for _, layout := range layouts {
		nodeLoc := make([]SymbolLocation, len(layout.Nodes))
		for _, run := range layout.Runs {
			ar := st.arenas[run.Section]
			if ar == nil {
				continue // SectionUnknown storage never legally exists post-assembly
			}
			for i := run.Start; i < run.End; i++ {
				nodeLoc[i] = SymbolLocation{Section: run.Section, Index: len(ar.nodes)}
				ar.nodes = append(ar.nodes, layout.Nodes[i])
				ar.files = append(ar.files, layout.File)
			}
		}

		locals := make(map[string]SymbolLocation)
		for _, l := range layout.Labels {
			if l.DefiningStorage < 0 {
				continue // .globl declared but never defined in this file
			}
			loc := nodeLoc[l.DefiningStorage]
			locals[l.Name] = loc
			if l.IsGlobal {
				if _, exists := st.globals[l.Name]; exists {
					return &LinkFailure{Message: fmt.Sprintf("duplicate global symbol %q (defined again in %s:%d)", l.Name, layout.File, l.DefiningLine)}
				}
				st.globals[l.Name] = loc
			}
		}
		st.locals[layout.File] = locals
	}
	return nil
}
