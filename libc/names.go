// Package libc emulates a small C standard library boundary: a fixed,
// address-stable trampoline table in low text memory that intercepts
// puts/printf/scanf/malloc/memcpy/… via synthetic addresses, plus a bump
// allocator over the virtual heap.
package libc

import "github.com/lookbusy1344/rv32im-toolchain/abi"

// TrampolineNames, LibcBase, End and IndexOf are re-exported from abi,
// which the linker also depends on to publish each trampoline as a
// symbol — keeping both packages off of each other avoids an import
// cycle through vm (libc -> vm -> linker).
var TrampolineNames = abi.TrampolineNames

const LibcBase = abi.LibcBase

func End() uint32 { return abi.End() }

func IndexOf(name string) int { return abi.IndexOf(name) }
