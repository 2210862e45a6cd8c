// Package asm defines the eBPF instruction set used by the compiler:
// registers, instruction constructors, 64-bit word encoding, and
// disassembly.
package asm

// ---------------------------------------------------------------------------
// Registers
// ---------------------------------------------------------------------------

// Register identifies one of the eleven BPF registers.
type Register uint8

const (
	R0  Register = 0 // return value / scratch
	R1  Register = 1 // first argument
	R2  Register = 2
	R3  Register = 3
	R4  Register = 4
	R5  Register = 5 // last argument
	R6  Register = 6 // callee-saved
	R7  Register = 7
	R8  Register = 8
	R9  Register = 9
	R10 Register = 10 // frame pointer, read-only
)

// ArgumentRegister returns the register that carries the n-th call argument
// (1-based). Returns false when n is outside R1..R5.
func ArgumentRegister(n int) (Register, bool) {
	if n < 1 || n > 5 {
		return 0, false
	}
	return Register(n), true
}

// ---------------------------------------------------------------------------
// Opcode encoding
// ---------------------------------------------------------------------------

// Instruction classes (low three bits of the opcode byte).
const (
	classLD  = 0x00
	classLDX = 0x01
	classST  = 0x02
	classSTX = 0x03
	classALU = 0x04
	classJMP = 0x05
	classA64 = 0x07
)

// Operand sizes for memory instructions.
const (
	sizeW  = 0x00 // 4 bytes
	sizeH  = 0x08 // 2 bytes
	sizeB  = 0x10 // 1 byte
	sizeDW = 0x18 // 8 bytes
)

// Addressing modes.
const (
	modeIMM = 0x00
	modeMEM = 0x60
)

// ALU operations and source flag.
const (
	aluADD = 0x00
	aluMOV = 0xb0
	srcK   = 0x00 // immediate operand
	srcX   = 0x08 // register operand
)

// Fully assembled opcode bytes.
const (
	opMovImm64 = classA64 | srcK | aluMOV // 0xb7
	opMovReg64 = classA64 | srcX | aluMOV // 0xbf
	opAddImm64 = classA64 | srcK | aluADD // 0x07

	opStoreImm8  = classST | modeMEM | sizeB  // 0x72
	opStoreImm16 = classST | modeMEM | sizeH  // 0x6a
	opStoreImm32 = classST | modeMEM | sizeW  // 0x62
	opStoreImm64 = classST | modeMEM | sizeDW // 0x7a

	opStoreReg64 = classSTX | modeMEM | sizeDW // 0x7b

	opLoad8  = classLDX | modeMEM | sizeB  // 0x71
	opLoad16 = classLDX | modeMEM | sizeH  // 0x69
	opLoad32 = classLDX | modeMEM | sizeW  // 0x61
	opLoad64 = classLDX | modeMEM | sizeDW // 0x79

	opLoadImmDW = classLD | modeIMM | sizeDW // 0x18

	opCall = classJMP | 0x80 // 0x85
	opExit = classJMP | 0x90 // 0x95
)

// ---------------------------------------------------------------------------
// Typed wide loads
// ---------------------------------------------------------------------------

// LoadType selects the pseudo source-register code carried by a two-word
// immediate load. The verifier interprets the immediate differently for
// each code.
type LoadType uint8

const (
	LoadVoid     LoadType = 0 // plain 64-bit constant
	LoadMapFd    LoadType = 1 // immediate is a map file descriptor
	LoadMapValue LoadType = 2 // immediate is a map value address
)

func (lt LoadType) String() string {
	switch lt {
	case LoadMapFd:
		return "map_fd"
	case LoadMapValue:
		return "map_value"
	default:
		return "imm"
	}
}

// ---------------------------------------------------------------------------
// Instruction
// ---------------------------------------------------------------------------

// Instruction is a single decoded BPF instruction. The zero value is not a
// valid instruction; use the constructors below. Instructions are plain
// comparable values so tests can assert exact sequences.
type Instruction struct {
	Opcode uint8
	Dst    Register
	Src    Register
	Offset int16
	Imm    int64
}

// Mov64 sets a register to a 32-bit immediate: dst = imm.
func Mov64(dst Register, imm int32) Instruction {
	return Instruction{Opcode: opMovImm64, Dst: dst, Imm: int64(imm)}
}

// Mov64Reg copies one register into another: dst = src.
func Mov64Reg(dst, src Register) Instruction {
	return Instruction{Opcode: opMovReg64, Dst: dst, Src: src}
}

// Add64 adds a 32-bit immediate to a register: dst += imm.
func Add64(dst Register, imm int32) Instruction {
	return Instruction{Opcode: opAddImm64, Dst: dst, Imm: int64(imm)}
}

// Store8 writes a 1-byte immediate through base+off.
func Store8(base Register, off int16, imm int8) Instruction {
	return Instruction{Opcode: opStoreImm8, Dst: base, Offset: off, Imm: int64(imm)}
}

// Store16 writes a 2-byte immediate through base+off.
func Store16(base Register, off int16, imm int16) Instruction {
	return Instruction{Opcode: opStoreImm16, Dst: base, Offset: off, Imm: int64(imm)}
}

// Store32 writes a 4-byte immediate through base+off.
func Store32(base Register, off int16, imm int32) Instruction {
	return Instruction{Opcode: opStoreImm32, Dst: base, Offset: off, Imm: int64(imm)}
}

// Store64 writes an 8-byte immediate through base+off. Only the low 32 bits
// are encoded; the machine sign-extends them.
func Store64(base Register, off int16, imm int64) Instruction {
	return Instruction{Opcode: opStoreImm64, Dst: base, Offset: off, Imm: imm}
}

// StoreReg64 writes a register through base+off: *(u64 *)(base + off) = src.
func StoreReg64(base Register, off int16, src Register) Instruction {
	return Instruction{Opcode: opStoreReg64, Dst: base, Offset: off, Src: src}
}

// Load8 reads one byte from base+off into dst, zero-extended.
func Load8(dst, base Register, off int16) Instruction {
	return Instruction{Opcode: opLoad8, Dst: dst, Src: base, Offset: off}
}

// Load16 reads two bytes from base+off into dst, zero-extended.
func Load16(dst, base Register, off int16) Instruction {
	return Instruction{Opcode: opLoad16, Dst: dst, Src: base, Offset: off}
}

// Load32 reads four bytes from base+off into dst, zero-extended.
func Load32(dst, base Register, off int16) Instruction {
	return Instruction{Opcode: opLoad32, Dst: dst, Src: base, Offset: off}
}

// Load64 reads eight bytes from base+off into dst.
func Load64(dst, base Register, off int16) Instruction {
	return Instruction{Opcode: opLoad64, Dst: dst, Src: base, Offset: off}
}

// LoadImm64 sets a register to a full 64-bit immediate. Encodes to two
// words.
func LoadImm64(dst Register, imm int64) Instruction {
	return Instruction{Opcode: opLoadImmDW, Dst: dst, Imm: imm}
}

// LoadImmType sets a register to a 64-bit immediate carrying a typed-load
// pseudo code in the source-register field. Encodes to two words.
func LoadImmType(dst Register, imm int64, lt LoadType) Instruction {
	return Instruction{Opcode: opLoadImmDW, Dst: dst, Src: Register(lt), Imm: imm}
}

// Call invokes the helper with the given numeric id.
func Call(id uint32) Instruction {
	return Instruction{Opcode: opCall, Imm: int64(id)}
}

// Exit terminates the program, returning R0.
func Exit() Instruction {
	return Instruction{Opcode: opExit}
}

// ---------------------------------------------------------------------------
// Predicates used by the peephole optimizer
// ---------------------------------------------------------------------------

// IsWide reports whether the instruction encodes to two 64-bit words.
func (ins Instruction) IsWide() bool {
	return ins.Opcode == opLoadImmDW
}

// IsMovReg64 reports whether the instruction is a 64-bit register move.
func (ins Instruction) IsMovReg64() bool {
	return ins.Opcode == opMovReg64
}

// IsAddImm64 reports whether the instruction is a 64-bit immediate add.
func (ins Instruction) IsAddImm64() bool {
	return ins.Opcode == opAddImm64
}

// IsMemLoad reports whether the instruction is a memory load (any width).
func (ins Instruction) IsMemLoad() bool {
	return ins.Opcode&0x07 == classLDX && ins.Opcode&0xe0 == modeMEM
}

// IsMemStore reports whether the instruction is a memory store of either an
// immediate or a register (any width).
func (ins Instruction) IsMemStore() bool {
	cls := ins.Opcode & 0x07
	return (cls == classST || cls == classSTX) && ins.Opcode&0xe0 == modeMEM
}

// AccessWidth returns the memory access width in bytes for load/store
// instructions, or 0 for everything else.
func (ins Instruction) AccessWidth() uint32 {
	if !ins.IsMemLoad() && !ins.IsMemStore() {
		return 0
	}
	switch ins.Opcode & 0x18 {
	case sizeB:
		return 1
	case sizeH:
		return 2
	case sizeW:
		return 4
	default:
		return 8
	}
}
