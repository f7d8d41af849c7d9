package vm

import "github.com/lookbusy1344/rv32im-toolchain/isa"

// Handler executes one already-decoded instruction: it reads/writes the
// register file, performs any memory access, advances (or overwrites)
// rf.PC, and charges the device's cycle counters. A nil return with
// rf.PC == 0 signals a normal program halt.
type Handler func(rf *RegisterFile, mem *Memory, dev *Device) error

// LibcHandler implements one emulated libc trampoline. It is responsible
// for reading its arguments from a0-a7, performing the host-side effect,
// writing a0 with the return value, and setting rf.PC = rf.Get(isa.RA) to
// return to the caller.
type LibcHandler func(rf *RegisterFile, mem *Memory, dev *Device) error

// ICache is a lazy instruction cache: every TEXT slot
// starts as a self-replacing compile_once handler that decodes the word at
// its address on first fetch and installs the real handler in its place;
// every libc slot is wired once at load time to a host-implemented
// trampoline. Decoding a slot more than once is a correctness bug, not
// just a missed optimization, since the handler closures below capture
// their pc once at decode time.
type ICache struct {
	textStart uint32
	textSlots []Slot
	libcSlots map[uint32]*Slot
}

// Slot holds one address's handler. It is a struct (not a bare func) so
// compile_once can replace its own Handler in place. Addr lets Fetch
// validate a caller-supplied hint in O(1) instead of trusting it blindly.
type Slot struct {
	Addr    uint32
	Handler Handler
}

// NewICache allocates one slot per 4-byte-aligned word of [textStart,
// textStart+textLen), each initially a compile_once sentinel.
func NewICache(textStart, textLen uint32) *ICache {
	ic := &ICache{
		textStart: textStart,
		textSlots: make([]Slot, textLen/4),
		libcSlots: make(map[uint32]*Slot),
	}
	for i := range ic.textSlots {
		idx := uint32(i)
		ic.textSlots[i].Addr = textStart + idx*4
		ic.textSlots[i].Handler = ic.compileOnce(idx)
	}
	return ic
}

// InstallLibc wires addr (one of the fixed libc trampoline addresses) to h.
func (ic *ICache) InstallLibc(addr uint32, h LibcHandler) {
	ic.libcSlots[addr] = &Slot{Addr: addr, Handler: Handler(h)}
}

// Fetch resolves pc to its slot, decoding it lazily on first use. If hint
// is non-nil and already addresses pc, it is returned directly, skipping
// the libc map probe and the alignment/bounds checks below — the
// branch-predictor optimization described for ifetch(pc, hint).
func (ic *ICache) Fetch(pc uint32, hint *Slot) (*Slot, error) {
	if hint != nil && hint.Addr == pc {
		return hint, nil
	}
	if s, ok := ic.libcSlots[pc]; ok {
		return s, nil
	}
	if pc%4 != 0 {
		return nil, &InterpretFailure{Kind: InsMisAligned, Addr: pc, Align: 4}
	}
	if pc < ic.textStart {
		return nil, &InterpretFailure{Kind: InsOutOfBound, Addr: pc, Size: 4}
	}
	idx := (pc - ic.textStart) / 4
	if idx >= uint32(len(ic.textSlots)) {
		return nil, &InterpretFailure{Kind: InsOutOfBound, Addr: pc, Size: 4}
	}
	return &ic.textSlots[idx], nil
}

// compileOnce returns the sentinel handler installed in every TEXT slot at
// construction: it decodes the word at its own address, replaces itself
// with the decoded handler, and immediately invokes it.
func (ic *ICache) compileOnce(idx uint32) Handler {
	return func(rf *RegisterFile, mem *Memory, dev *Device) error {
		pc := ic.textStart + idx*4
		word, err := mem.LoadCmd(pc)
		if err != nil {
			return err
		}
		h, err := ic.decode(pc, word)
		if err != nil {
			return err
		}
		ic.textSlots[idx].Handler = h
		return h(rf, mem, dev)
	}
}

// decode turns a raw instruction word at pc into a Handler closure. This is
// the interpreter's only decoder; the same bitfield unpacking the linker's
// encoder inverts lives in isa so the two stay symmetric by construction.
func (ic *ICache) decode(pc, word uint32) (Handler, error) {
	switch isa.Opcode(word) {
	case isa.OpcodeR:
		funct3, funct7, rd, rs1, rs2 := isa.DecodeR(word)
		op, ok := isa.ArithOpFromRFunct(funct3, funct7)
		if !ok {
			return nil, &InterpretFailure{Kind: InsUnknown, Word: word, Addr: pc}
		}
		name := op.String()
		return func(rf *RegisterFile, mem *Memory, dev *Device) error {
			v, err := arithReg(op, rf.Get(rs1), rf.Get(rs2), pc)
			if err != nil {
				return err
			}
			rf.Set(rd, v)
			rf.PC = pc + 4
			dev.Tick(name)
			return nil
		}, nil

	case isa.OpcodeI:
		funct3, rd, rs1, imm := isa.DecodeI(word)
		if funct3 == 0x1 || funct3 == 0x5 {
			shamt := uint32(imm) & 0x1F
			op := isa.SLL
			if funct3 == 0x5 {
				if (uint32(imm)>>10)&1 == 1 {
					op = isa.SRA
				} else {
					op = isa.SRL
				}
			}
			name := op.String()
			return func(rf *RegisterFile, mem *Memory, dev *Device) error {
				v, _ := arithReg(op, rf.Get(rs1), shamt, pc)
				rf.Set(rd, v)
				rf.PC = pc + 4
				dev.Tick(name)
				return nil
			}, nil
		}
		op, ok := isa.ArithOpFromIFunct(funct3)
		if !ok {
			return nil, &InterpretFailure{Kind: InsUnknown, Word: word, Addr: pc}
		}
		name := op.String()
		immVal := uint32(imm)
		return func(rf *RegisterFile, mem *Memory, dev *Device) error {
			v, err := arithReg(op, rf.Get(rs1), immVal, pc)
			if err != nil {
				return err
			}
			rf.Set(rd, v)
			rf.PC = pc + 4
			dev.Tick(name)
			return nil
		}, nil

	case isa.OpcodeLoad:
		funct3, rd, rs1, imm := isa.DecodeI(word)
		op, ok := isa.LoadStoreOpFromFunct3(funct3, false)
		if !ok {
			return nil, &InterpretFailure{Kind: InsUnknown, Word: word, Addr: pc}
		}
		name := op.String()
		return func(rf *RegisterFile, mem *Memory, dev *Device) error {
			addr := rf.Get(rs1) + uint32(imm)
			v, err := loadValue(mem, op, addr)
			if err != nil {
				return err
			}
			rf.Set(rd, v)
			rf.PC = pc + 4
			dev.Tick(name)
			return nil
		}, nil

	case isa.OpcodeStore:
		funct3, rs1, rs2, imm := isa.DecodeS(word)
		op, ok := isa.LoadStoreOpFromFunct3(funct3, true)
		if !ok {
			return nil, &InterpretFailure{Kind: InsUnknown, Word: word, Addr: pc}
		}
		name := op.String()
		return func(rf *RegisterFile, mem *Memory, dev *Device) error {
			addr := rf.Get(rs1) + uint32(imm)
			if err := storeValue(mem, op, addr, rf.Get(rs2)); err != nil {
				return err
			}
			rf.PC = pc + 4
			dev.Tick(name)
			return nil
		}, nil

	case isa.OpcodeBranch:
		funct3, rs1, rs2, imm := isa.DecodeB(word)
		op, ok := isa.BranchOpFromFunct3(funct3)
		if !ok {
			return nil, &InterpretFailure{Kind: InsUnknown, Word: word, Addr: pc}
		}
		name := op.String()
		target := uint32(int32(pc) + imm)
		fallthroughPC := pc + 4
		// Both successors have static addresses, so resolve their slots once
		// at decode time; a nil entry (misaligned/out-of-bounds target)
		// just falls back to a full Fetch next Step, which raises properly.
		takenSlot, _ := ic.Fetch(target, nil)
		notTakenSlot, _ := ic.Fetch(fallthroughPC, nil)
		return func(rf *RegisterFile, mem *Memory, dev *Device) error {
			predicted := dev.Predictor.Predict(pc)
			taken := evalBranch(op, rf.Get(rs1), rf.Get(rs2))
			dev.Predictor.Update(pc, taken)
			if predicted == taken {
				dev.PredictHits++
			} else {
				dev.PredictMisses++
			}
			dev.RecordBranch(taken)
			if taken {
				rf.PC = target
				dev.NextHint = takenSlot
			} else {
				rf.PC = fallthroughPC
				dev.NextHint = notTakenSlot
			}
			dev.Tick(name)
			return nil
		}, nil

	case isa.OpcodeJAL:
		rd, imm := isa.DecodeJ(word)
		target := uint32(int32(pc) + imm)
		targetSlot, _ := ic.Fetch(target, nil)
		return func(rf *RegisterFile, mem *Memory, dev *Device) error {
			rf.Set(rd, pc+4)
			rf.PC = target
			dev.NextHint = targetSlot
			dev.Tick("jal")
			return nil
		}, nil

	case isa.OpcodeJALR:
		_, rd, rs1, imm := isa.DecodeI(word)
		return func(rf *RegisterFile, mem *Memory, dev *Device) error {
			target := (rf.Get(rs1) + uint32(imm)) &^ 1
			rf.Set(rd, pc+4)
			rf.PC = target
			dev.Tick("jalr")
			return nil
		}, nil

	case isa.OpcodeLUI:
		rd, imm := isa.DecodeU(word)
		return func(rf *RegisterFile, mem *Memory, dev *Device) error {
			rf.Set(rd, imm<<12)
			rf.PC = pc + 4
			dev.Tick("lui")
			return nil
		}, nil

	case isa.OpcodeAUIPC:
		rd, imm := isa.DecodeU(word)
		return func(rf *RegisterFile, mem *Memory, dev *Device) error {
			rf.Set(rd, pc+(imm<<12))
			rf.PC = pc + 4
			dev.Tick("auipc")
			return nil
		}, nil

	default:
		return nil, &InterpretFailure{Kind: InsUnknown, Word: word, Addr: pc}
	}
}

func evalBranch(op isa.BranchOp, a, b uint32) bool {
	switch op {
	case isa.BEQ:
		return a == b
	case isa.BNE:
		return a != b
	case isa.BLT:
		return int32(a) < int32(b)
	case isa.BGE:
		return int32(a) >= int32(b)
	case isa.BLTU:
		return a < b
	case isa.BGEU:
		return a >= b
	default:
		return false
	}
}

func loadValue(mem *Memory, op isa.LoadStoreOp, addr uint32) (uint32, error) {
	switch op {
	case isa.LB:
		v, err := mem.LoadI8(addr)
		return uint32(v), err
	case isa.LBU:
		v, err := mem.LoadU8(addr)
		return uint32(v), err
	case isa.LH:
		v, err := mem.LoadI16(addr)
		return uint32(v), err
	case isa.LHU:
		v, err := mem.LoadU16(addr)
		return uint32(v), err
	default: // LW
		v, err := mem.LoadI32(addr)
		return uint32(v), err
	}
}

func storeValue(mem *Memory, op isa.LoadStoreOp, addr, v uint32) error {
	switch op {
	case isa.SB:
		return mem.StoreU8(addr, uint8(v))
	case isa.SH:
		return mem.StoreU16(addr, uint16(v))
	default: // SW
		return mem.StoreU32(addr, v)
	}
}

// arithReg evaluates a register-register (or register-shamt) ALU op. pc is
// only used to annotate a division-by-zero trap.
func arithReg(op isa.ArithOp, a, b, pc uint32) (uint32, error) {
	switch op {
	case isa.ADD:
		return a + b, nil
	case isa.SUB:
		return a - b, nil
	case isa.AND:
		return a & b, nil
	case isa.OR:
		return a | b, nil
	case isa.XOR:
		return a ^ b, nil
	case isa.SLL:
		return a << (b & 0x1F), nil
	case isa.SRL:
		return a >> (b & 0x1F), nil
	case isa.SRA:
		return uint32(int32(a) >> (b & 0x1F)), nil
	case isa.SLT:
		if int32(a) < int32(b) {
			return 1, nil
		}
		return 0, nil
	case isa.SLTU:
		if a < b {
			return 1, nil
		}
		return 0, nil
	case isa.MUL:
		return uint32(int64(int32(a)) * int64(int32(b))), nil
	case isa.MULH:
		return uint32((int64(int32(a)) * int64(int32(b))) >> 32), nil
	case isa.MULHSU:
		return uint32((int64(int32(a)) * int64(uint64(b))) >> 32), nil
	case isa.MULHU:
		return uint32((uint64(a) * uint64(b)) >> 32), nil
	case isa.DIV:
		if b == 0 {
			return 0, &InterpretFailure{Kind: DivideByZero, PC: pc}
		}
		if int32(a) == -(1<<31) && int32(b) == -1 {
			return a, nil // overflow: INT_MIN / -1 wraps to INT_MIN
		}
		return uint32(int32(a) / int32(b)), nil
	case isa.DIVU:
		if b == 0 {
			return 0, &InterpretFailure{Kind: DivideByZero, PC: pc}
		}
		return a / b, nil
	case isa.REM:
		if b == 0 {
			return 0, &InterpretFailure{Kind: DivideByZero, PC: pc}
		}
		if int32(a) == -(1<<31) && int32(b) == -1 {
			return 0, nil
		}
		return uint32(int32(a) % int32(b)), nil
	case isa.REMU:
		if b == 0 {
			return 0, &InterpretFailure{Kind: DivideByZero, PC: pc}
		}
		return a % b, nil
	default:
		return 0, &InterpretFailure{Kind: InsUnknown, Addr: pc}
	}
}
