// Package abi defines the fixed libc trampoline table address layout
// shared between the linker, which publishes each
// trampoline as a symbol, and the libc package, which implements the
// handlers those symbols resolve to. It exists as its own leaf package
// so that linker -> abi and libc -> abi both hold without linker and
// libc depending on each other (libc in turn depends on vm, and vm
// depends on linker for MemoryLayout, so libc cannot sit below linker).
package abi

// TrampolineNames lists the supported libc entry points in the exact
// order that determines their trampoline address: entry i is assigned
// address LibcBase + 4*i.
var TrampolineNames = []string{
	"puts", "putchar", "printf", "sprintf", "getchar", "scanf", "sscanf",
	"malloc", "calloc", "realloc", "free",
	"memcpy", "memset", "memmove", "memcmp",
	"strcpy", "strlen", "strnlen_s", "strcat", "strcmp",
}

// LibcBase is the first address of the trampoline table.
const LibcBase = 0x00010000

// End returns the address immediately past the trampoline table.
func End() uint32 {
	return LibcBase + uint32(len(TrampolineNames))*4
}

// IndexOf returns the trampoline index of name, or -1.
func IndexOf(name string) int {
	for i, n := range TrampolineNames {
		if n == name {
			return i
		}
	}
	return -1
}
