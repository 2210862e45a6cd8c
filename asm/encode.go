package asm

// ---------------------------------------------------------------------------
// Binary encoding
// ---------------------------------------------------------------------------
//
// Each instruction packs into one 64-bit word:
//
//	bits  0..7   opcode
//	bits  8..11  destination register
//	bits 12..15  source register
//	bits 16..31  signed offset
//	bits 32..63  signed immediate
//
// Two-word instructions carry the high half of their 64-bit immediate in
// the immediate field of a second, otherwise-zero word.

// Encode returns the instruction's binary words. The second word is only
// meaningful when wide is true.
func (ins Instruction) Encode() (lo, hi uint64, wide bool) {
	lo = uint64(ins.Opcode) |
		uint64(ins.Dst&0x0f)<<8 |
		uint64(ins.Src&0x0f)<<12 |
		uint64(uint16(ins.Offset))<<16 |
		uint64(uint32(ins.Imm))<<32

	if ins.IsWide() {
		hi = uint64(uint32(ins.Imm>>32)) << 32
		return lo, hi, true
	}
	return lo, 0, false
}

// Marshal flattens a sequence of instructions into raw bytecode words in
// emission order.
func Marshal(ins []Instruction) []uint64 {
	words := make([]uint64, 0, len(ins))
	for _, i := range ins {
		lo, hi, wide := i.Encode()
		words = append(words, lo)
		if wide {
			words = append(words, hi)
		}
	}
	return words
}
