package libc

import "github.com/lookbusy1344/rv32im-toolchain/vm"

// accessN validates that [addr, addr+n) lies within a single memory region
// (a libc-access bounds check) and returns that
// slice for direct read/write.
func accessN(mem *vm.Memory, which string, addr, n uint32) ([]byte, error) {
	buf, ok := mem.LibcAccess(addr)
	if !ok || uint32(len(buf)) < n {
		return nil, &vm.InterpretFailure{Kind: vm.LibcOutOfBound, Which: which, Addr: addr, Size: n}
	}
	return buf[:n], nil
}

// cstring reads a NUL-terminated string at addr, returning it without the
// terminator.
func cstring(mem *vm.Memory, which string, addr uint32) ([]byte, error) {
	buf, ok := mem.LibcAccess(addr)
	if !ok {
		return nil, &vm.InterpretFailure{Kind: vm.LibcOutOfBound, Which: which, Addr: addr}
	}
	for i, b := range buf {
		if b == 0 {
			return buf[:i], nil
		}
	}
	return nil, &vm.InterpretFailure{Kind: vm.LibcOutOfBound, Which: which, Addr: addr, Message: "unterminated string"}
}

func copyBytes(mem *vm.Memory, which string, dst, src, n uint32) error {
	s, err := accessN(mem, which, src, n)
	if err != nil {
		return err
	}
	d, err := accessN(mem, which, dst, n)
	if err != nil {
		return err
	}
	copy(d, s)
	return nil
}

func (st *State) memcpy(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("memcpy")
	a := args(rf)
	dst, src, n := a[0], a[1], a[2]
	if err := copyBytes(mem, "memcpy", dst, src, n); err != nil {
		return err
	}
	finish(rf, dst)
	return nil
}

func (st *State) memmove(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("memmove")
	a := args(rf)
	dst, src, n := a[0], a[1], a[2]
	s, err := accessN(mem, "memmove", src, n)
	if err != nil {
		return err
	}
	tmp := make([]byte, n)
	copy(tmp, s)
	d, err := accessN(mem, "memmove", dst, n)
	if err != nil {
		return err
	}
	copy(d, tmp)
	finish(rf, dst)
	return nil
}

func (st *State) memset(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("memset")
	a := args(rf)
	dst, val, n := a[0], byte(a[1]), a[2]
	d, err := accessN(mem, "memset", dst, n)
	if err != nil {
		return err
	}
	for i := range d {
		d[i] = val
	}
	finish(rf, dst)
	return nil
}

func (st *State) memcmp(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("memcmp")
	a := args(rf)
	pa, pb, n := a[0], a[1], a[2]
	bufA, err := accessN(mem, "memcmp", pa, n)
	if err != nil {
		return err
	}
	bufB, err := accessN(mem, "memcmp", pb, n)
	if err != nil {
		return err
	}
	result := uint32(0)
	for i := uint32(0); i < n; i++ {
		if bufA[i] != bufB[i] {
			if bufA[i] < bufB[i] {
				result = 0xFFFFFFFF // -1
			} else {
				result = 1
			}
			break
		}
	}
	finish(rf, result)
	return nil
}

func (st *State) strcpy(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("strcpy")
	a := args(rf)
	dst, src := a[0], a[1]
	s, err := cstring(mem, "strcpy", src)
	if err != nil {
		return err
	}
	d, err := accessN(mem, "strcpy", dst, uint32(len(s))+1)
	if err != nil {
		return err
	}
	copy(d, s)
	d[len(s)] = 0
	finish(rf, dst)
	return nil
}

func (st *State) strcat(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("strcat")
	a := args(rf)
	dst, src := a[0], a[1]
	dstStr, err := cstring(mem, "strcat", dst)
	if err != nil {
		return err
	}
	srcStr, err := cstring(mem, "strcat", src)
	if err != nil {
		return err
	}
	d, err := accessN(mem, "strcat", dst, uint32(len(dstStr)+len(srcStr))+1)
	if err != nil {
		return err
	}
	copy(d[len(dstStr):], srcStr)
	d[len(dstStr)+len(srcStr)] = 0
	finish(rf, dst)
	return nil
}

func (st *State) strlen(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("strlen")
	a := args(rf)
	s, err := cstring(mem, "strlen", a[0])
	if err != nil {
		return err
	}
	finish(rf, uint32(len(s)))
	return nil
}

// strnlenS is strnlen_s: scans at most maxlen bytes and never reads past a
// region boundary, matching the *_s family's bounded-read guarantee.
func (st *State) strnlenS(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("strnlen_s")
	a := args(rf)
	addr, maxlen := a[0], a[1]
	buf, ok := mem.LibcAccess(addr)
	if !ok {
		return &vm.InterpretFailure{Kind: vm.LibcOutOfBound, Which: "strnlen_s", Addr: addr}
	}
	n := maxlen
	if uint32(len(buf)) < n {
		n = uint32(len(buf))
	}
	length := uint32(0)
	for length < n && buf[length] != 0 {
		length++
	}
	finish(rf, length)
	return nil
}

func (st *State) strcmp(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("strcmp")
	a := args(rf)
	sa, err := cstring(mem, "strcmp", a[0])
	if err != nil {
		return err
	}
	sb, err := cstring(mem, "strcmp", a[1])
	if err != nil {
		return err
	}
	result := uint32(0)
	n := len(sa)
	if len(sb) < n {
		n = len(sb)
	}
	for i := 0; i < n; i++ {
		if sa[i] != sb[i] {
			if sa[i] < sb[i] {
				result = 0xFFFFFFFF
			} else {
				result = 1
			}
			finish(rf, result)
			return nil
		}
	}
	switch {
	case len(sa) < len(sb):
		result = 0xFFFFFFFF
	case len(sa) > len(sb):
		result = 1
	}
	finish(rf, result)
	return nil
}
