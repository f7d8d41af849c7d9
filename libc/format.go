package libc

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/lookbusy1344/rv32im-toolchain/vm"
)

func (st *State) puts(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("puts")
	a := args(rf)
	s, err := cstring(mem, "puts", a[0])
	if err != nil {
		return err
	}
	n, _ := st.Stdout.Write(append(append([]byte(nil), s...), '\n'))
	finish(rf, uint32(n))
	return nil
}

func (st *State) putchar(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("putchar")
	a := args(rf)
	c := byte(a[0])
	st.Stdout.Write([]byte{c})
	finish(rf, uint32(c))
	return nil
}

func (st *State) getchar(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("getchar")
	b, err := st.Stdin.ReadByte()
	if err != nil {
		finish(rf, 0xFFFFFFFF) // EOF -> -1
		return nil
	}
	finish(rf, uint32(b))
	return nil
}

func (st *State) printf(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("printf")
	a := args(rf)
	n, err := formatWrite(mem, "printf", a[0], a, 1, st.Stdout)
	if err != nil {
		return err
	}
	finish(rf, uint32(n))
	return nil
}

func (st *State) sprintf(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("sprintf")
	a := args(rf)
	var buf bytes.Buffer
	n, err := formatWrite(mem, "sprintf", a[1], a, 2, &buf)
	if err != nil {
		return err
	}
	dst, err := accessN(mem, "sprintf", a[0], uint32(buf.Len())+1)
	if err != nil {
		return err
	}
	copy(dst, buf.Bytes())
	dst[buf.Len()] = 0
	finish(rf, uint32(n))
	return nil
}

// formatWrite renders format string fmtAddr against a, consuming variadic
// arguments starting at startIdx (%d %u %x %p %c %s %%).
// Reaching past a7 (index 7) means the format demands a 9th overall
// argument, which the calling convention cannot supply.
func formatWrite(mem *vm.Memory, which string, fmtAddr uint32, a [8]uint32, startIdx int, w io.Writer) (int, error) {
	fmtBytes, err := cstring(mem, which, fmtAddr)
	if err != nil {
		return 0, err
	}
	var out bytes.Buffer
	argIdx := startIdx
	for i := 0; i < len(fmtBytes); i++ {
		c := fmtBytes[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		i++
		if i >= len(fmtBytes) {
			break
		}
		spec := fmtBytes[i]
		if spec == '%' {
			out.WriteByte('%')
			continue
		}
		if argIdx > 7 {
			return 0, notImplemented(which, "format string requires more arguments than a0-a7 can carry")
		}
		v := a[argIdx]
		argIdx++
		switch spec {
		case 'd':
			out.WriteString(strconv.FormatInt(int64(int32(v)), 10))
		case 'u':
			out.WriteString(strconv.FormatUint(uint64(v), 10))
		case 'x':
			out.WriteString(strconv.FormatUint(uint64(v), 16))
		case 'p':
			out.WriteString(fmt.Sprintf("0x%x", v))
		case 'c':
			out.WriteByte(byte(v))
		case 's':
			s, err := cstring(mem, which, v)
			if err != nil {
				return 0, err
			}
			out.Write(s)
		default:
			return 0, notImplemented(which, fmt.Sprintf("unsupported conversion %%%c", spec))
		}
	}
	n, err := w.Write(out.Bytes())
	return n, err
}

func (st *State) scanf(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("scanf")
	a := args(rf)
	n, err := formatScan(mem, "scanf", a[0], a, 1, st.Stdin)
	if err != nil {
		return err
	}
	finish(rf, uint32(n))
	return nil
}

func (st *State) sscanf(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("sscanf")
	a := args(rf)
	s, err := cstring(mem, "sscanf", a[0])
	if err != nil {
		return err
	}
	r := bufio.NewReader(bytes.NewReader(s))
	n, err := formatScan(mem, "sscanf", a[1], a, 2, r)
	if err != nil {
		return err
	}
	finish(rf, uint32(n))
	return nil
}

// formatScan matches format string fmtAddr against r (%d %u
// %c %s), storing each converted value through the pointer argument at its
// position. Matching stops, like the C library's, at the first input
// mismatch or EOF; it returns the count of successful conversions so far.
func formatScan(mem *vm.Memory, which string, fmtAddr uint32, a [8]uint32, startIdx int, r *bufio.Reader) (int, error) {
	fmtBytes, err := cstring(mem, which, fmtAddr)
	if err != nil {
		return 0, err
	}
	argIdx := startIdx
	matched := 0
	for i := 0; i < len(fmtBytes); i++ {
		c := fmtBytes[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			skipWhitespace(r)
		case c != '%':
			b, err := r.ReadByte()
			if err != nil || b != c {
				return matched, nil
			}
		default:
			i++
			if i >= len(fmtBytes) {
				return matched, nil
			}
			spec := fmtBytes[i]
			if spec == '%' {
				b, err := r.ReadByte()
				if err != nil || b != '%' {
					return matched, nil
				}
				continue
			}
			if argIdx > 7 {
				return matched, notImplemented(which, "format string requires more arguments than a0-a7 can carry")
			}
			ptr := a[argIdx]
			argIdx++
			ok, err := scanOne(mem, which, r, spec, ptr)
			if err != nil {
				return matched, err
			}
			if !ok {
				return matched, nil
			}
			matched++
		}
	}
	return matched, nil
}

func scanOne(mem *vm.Memory, which string, r *bufio.Reader, spec byte, ptr uint32) (bool, error) {
	switch spec {
	case 'd', 'u':
		skipWhitespace(r)
		tok := readToken(r)
		if tok == "" {
			return false, nil
		}
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return false, nil
		}
		return true, mem.StoreU32(ptr, uint32(v))
	case 'c':
		b, err := r.ReadByte()
		if err != nil {
			return false, nil
		}
		return true, mem.StoreU8(ptr, b)
	case 's':
		skipWhitespace(r)
		tok := readToken(r)
		if tok == "" {
			return false, nil
		}
		return true, writeCString(mem, which, ptr, []byte(tok))
	default:
		return false, notImplemented(which, fmt.Sprintf("unsupported conversion %%%c", spec))
	}
}

func skipWhitespace(r *bufio.Reader) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		if b != ' ' && b != '\t' && b != '\n' && b != '\r' {
			r.UnreadByte()
			return
		}
	}
}

func readToken(r *bufio.Reader) string {
	var out bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			break
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			r.UnreadByte()
			break
		}
		out.WriteByte(b)
	}
	return out.String()
}

func writeCString(mem *vm.Memory, which string, addr uint32, s []byte) error {
	d, err := accessN(mem, which, addr, uint32(len(s))+1)
	if err != nil {
		return err
	}
	copy(d, s)
	d[len(s)] = 0
	return nil
}
