package asm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

func (r Register) String() string {
	return fmt.Sprintf("r%d", uint8(r))
}

func widthName(w uint32) string {
	switch w {
	case 1:
		return "u8"
	case 2:
		return "u16"
	case 4:
		return "u32"
	default:
		return "u64"
	}
}

// memRef formats a base+offset memory operand: (r10 - 8), (r6 + 0).
func memRef(base Register, off int16) string {
	if off < 0 {
		return fmt.Sprintf("(%s - %d)", base, -int32(off))
	}
	return fmt.Sprintf("(%s + %d)", base, off)
}

// String renders the instruction in the conventional BPF listing style.
func (ins Instruction) String() string {
	switch {
	case ins.Opcode == opMovImm64:
		return fmt.Sprintf("%s = %d", ins.Dst, ins.Imm)
	case ins.Opcode == opMovReg64:
		return fmt.Sprintf("%s = %s", ins.Dst, ins.Src)
	case ins.Opcode == opAddImm64:
		if ins.Imm < 0 {
			return fmt.Sprintf("%s -= %d", ins.Dst, -ins.Imm)
		}
		return fmt.Sprintf("%s += %d", ins.Dst, ins.Imm)
	case ins.Opcode == opLoadImmDW:
		if lt := LoadType(ins.Src); lt != LoadVoid {
			return fmt.Sprintf("%s = %#x ll (%s)", ins.Dst, uint64(ins.Imm), lt)
		}
		return fmt.Sprintf("%s = %#x ll", ins.Dst, uint64(ins.Imm))
	case ins.IsMemLoad():
		return fmt.Sprintf("%s = *(%s *)%s", ins.Dst, widthName(ins.AccessWidth()), memRef(ins.Src, ins.Offset))
	case ins.Opcode&0x07 == classSTX && ins.IsMemStore():
		return fmt.Sprintf("*(%s *)%s = %s", widthName(ins.AccessWidth()), memRef(ins.Dst, ins.Offset), ins.Src)
	case ins.IsMemStore():
		return fmt.Sprintf("*(%s *)%s = %d", widthName(ins.AccessWidth()), memRef(ins.Dst, ins.Offset), ins.Imm)
	case ins.Opcode == opCall:
		return fmt.Sprintf("call #%d", ins.Imm)
	case ins.Opcode == opExit:
		return "exit"
	default:
		return fmt.Sprintf("op %#02x dst=%s src=%s off=%d imm=%d", ins.Opcode, ins.Dst, ins.Src, ins.Offset, ins.Imm)
	}
}

// Disassemble renders a whole program, one instruction per line with its
// index.
func Disassemble(ins []Instruction) string {
	var b strings.Builder
	for i, in := range ins {
		fmt.Fprintf(&b, "%4d: %s\n", i, in)
	}
	return b.String()
}
