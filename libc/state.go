package libc

import (
	"bufio"
	"io"
)

// State is the host-side context every trampoline closes over: the guest's
// input/output streams and the bump allocator's bookkeeping. It is owned
// by the loader, one per running program.
type State struct {
	Stdin  *bufio.Reader
	Stdout io.Writer

	lastAlloc uint32          // most recent payload address, chains "prev" headers
	sizes     map[uint32]uint32 // payload address -> requested size, for realloc
}

// NewState builds a State reading from in and writing to out.
func NewState(in io.Reader, out io.Writer) *State {
	return &State{
		Stdin:  bufio.NewReader(in),
		Stdout: out,
		sizes:  make(map[uint32]uint32),
	}
}
