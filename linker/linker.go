package linker

import (
	"fmt"

	"github.com/lookbusy1344/rv32im-toolchain/abi"
	"github.com/lookbusy1344/rv32im-toolchain/asm"
	"github.com/lookbusy1344/rv32im-toolchain/isa"
)

// orderedSections lists the linker's four arena-backed sections in their
// final address order (UNKNOWN is folded into RODATA's trailing bytes per
// the Storage sum type, since no variant this assembler produces is ever
// assigned SectionUnknown once assembly completes).
var orderedSections = []isa.Section{isa.SectionText, isa.SectionData, isa.SectionRodata, isa.SectionBSS}

// Link runs the linker's five internal phases over an
// ordered sequence of per-file AssemblyLayouts, producing the single
// MemoryLayout that the interpreter loads.
func Link(layouts []*asm.AssemblyLayout) (*MemoryLayout, error) {
	st := newSymbolTable()

	// Phase 1: build section buckets + local symbol tables.
	if err := st.buildLocalTables(layouts); err != nil {
		return nil, err
	}

	// Phase 2: publish libc trampolines.
	for i, name := range abi.TrampolineNames {
		st.addLibcSymbol(name, abi.LibcBase+uint32(i)*4)
	}
	textStart := abi.End()

	// Phase 3: pessimistic size estimate.
	estimateAll(st, textStart)

	// Phase 4: relaxation (TEXT only; data sections carry no pseudo forms).
	relaxArena(st.arenas[isa.SectionText], st)

	// Phase 5: re-estimate (sizes may have shrunk) then encode.
	estimateAll(st, textStart)

	entryAddr, ok := st.globals["main"]
	if !ok {
		return nil, &LinkFailure{Message: "undefined entry symbol \"main\""}
	}

	ml := &MemoryLayout{
		Symbols: make(map[string]uint32),
		LibcEnd: textStart,
		EntryPC: st.address(entryAddr),
	}
	for name, loc := range st.globals {
		ml.Symbols[name] = st.address(loc)
	}
	// Local labels are published too; a global of the same name, or an
	// earlier file's local, keeps its entry.
	for _, layout := range layouts {
		for name, loc := range st.locals[layout.File] {
			if _, ok := ml.Symbols[name]; !ok {
				ml.Symbols[name] = st.address(loc)
			}
		}
	}
	for name, addr := range st.libcAddr {
		ml.Symbols[name] = addr
	}

	sections := map[isa.Section]*Section{
		isa.SectionText:   &ml.Text,
		isa.SectionData:   &ml.Data,
		isa.SectionRodata: &ml.Rodata,
		isa.SectionBSS:    &ml.BSS,
	}
	for _, sec := range orderedSections {
		ar := st.arenas[sec]
		out := sections[sec]
		out.Start = ar.start
		out.Bytes = make([]byte, 0, ar.size())
		for i, n := range ar.nodes {
			pc := ar.addressOf(i)
			ctx := evalContext{file: ar.files[i], st: st, havePC: true, pc: pc}
			b, err := encodeStorage(n, pc, ctx)
			if err != nil {
				return nil, err
			}
			out.Bytes = append(out.Bytes, b...)
		}
		if uint32(len(out.Bytes)) != ar.size() {
			return nil, &LinkFailure{Message: fmt.Sprintf("internal error: %s section encoded to %d bytes, estimated %d", sec, len(out.Bytes), ar.size())}
		}
	}

	return ml, nil
}

// estimateAll assigns each arena's start address in section order and
// remeasures its offset table: TEXT starts
// at textStart, is page-aligned before DATA, then RODATA and BSS each start
// at the next 4-byte boundary after the previous section.
func estimateAll(st *symbolTable, textStart uint32) {
	text := st.arenas[isa.SectionText]
	text.start = textStart
	text.remeasure()

	data := st.arenas[isa.SectionData]
	data.start = alignUp(text.start+text.size(), PageSize)
	data.remeasure()

	rodata := st.arenas[isa.SectionRodata]
	rodata.start = alignUp(data.start+data.size(), 4)
	rodata.remeasure()

	bss := st.arenas[isa.SectionBSS]
	bss.start = alignUp(rodata.start+rodata.size(), 4)
	bss.remeasure()
}
