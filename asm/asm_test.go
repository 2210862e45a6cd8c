package asm

import (
	"testing"
)

func TestEncodeMovImm(t *testing.T) {
	lo, _, wide := Mov64(R0, 300).Encode()
	if wide {
		t.Fatalf("mov64 should encode to a single word")
	}
	want := uint64(0xb7) | uint64(300)<<32
	if lo != want {
		t.Errorf("encoded word = %#x, want %#x", lo, want)
	}
}

func TestEncodeStoreReg(t *testing.T) {
	lo, _, wide := StoreReg64(R10, -8, R1).Encode()
	if wide {
		t.Fatalf("storex64 should encode to a single word")
	}
	off := int16(-8)
	want := uint64(0x7b) | uint64(10)<<8 | uint64(1)<<12 | uint64(uint16(off))<<16
	if lo != want {
		t.Errorf("encoded word = %#x, want %#x", lo, want)
	}
}

func TestEncodeNegativeOffsetField(t *testing.T) {
	// The offset occupies bits 16..31 as the two's-complement of its
	// int16 value.
	lo, _, _ := Load64(R6, R10, -24).Encode()
	if field := (lo >> 16) & 0xffff; field != 0xffe8 {
		t.Errorf("offset field = %#x, want 0xffe8", field)
	}
}

func TestEncodeWideImmediate(t *testing.T) {
	lo, hi, wide := LoadImm64(R1, 0x1122334455667788).Encode()
	if !wide {
		t.Fatalf("ld_imm64 should encode to two words")
	}
	if lo != uint64(0x18)|uint64(1)<<8|uint64(0x55667788)<<32 {
		t.Errorf("low word = %#x", lo)
	}
	if hi != uint64(0x11223344)<<32 {
		t.Errorf("high word = %#x", hi)
	}
}

func TestEncodeTypedLoadCarriesPseudoCode(t *testing.T) {
	lo, _, wide := LoadImmType(R1, 7, LoadMapFd).Encode()
	if !wide {
		t.Fatalf("typed load should encode to two words")
	}
	if src := (lo >> 12) & 0x0f; src != uint64(LoadMapFd) {
		t.Errorf("source register field = %d, want %d", src, LoadMapFd)
	}
}

func TestMarshalWordCount(t *testing.T) {
	prog := []Instruction{
		Mov64(R0, 0),
		LoadImmType(R1, 0xdeadbeef, LoadVoid),
		StoreReg64(R10, -8, R0),
		Exit(),
	}
	words := Marshal(prog)
	// One extra word for the single wide instruction.
	if len(words) != len(prog)+1 {
		t.Errorf("marshal produced %d words, want %d", len(words), len(prog)+1)
	}
}

func TestDisassembly(t *testing.T) {
	cases := []struct {
		ins  Instruction
		want string
	}{
		{Mov64(R0, 42), "r0 = 42"},
		{Mov64Reg(R1, R10), "r1 = r10"},
		{Add64(R6, -24), "r6 -= 24"},
		{Add64(R6, 8), "r6 += 8"},
		{Store64(R10, -16, 0), "*(u64 *)(r10 - 16) = 0"},
		{StoreReg64(R10, -8, R1), "*(u64 *)(r10 - 8) = r1"},
		{Load32(R0, R10, -8), "r0 = *(u32 *)(r10 - 8)"},
		{Call(113), "call #113"},
		{Exit(), "exit"},
	}
	for _, c := range cases {
		if got := c.ins.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestAccessWidth(t *testing.T) {
	if w := Load8(R0, R10, 0).AccessWidth(); w != 1 {
		t.Errorf("load8 width = %d", w)
	}
	if w := Store16(R10, 0, 0).AccessWidth(); w != 2 {
		t.Errorf("store16 width = %d", w)
	}
	if w := Mov64(R0, 0).AccessWidth(); w != 0 {
		t.Errorf("mov width = %d", w)
	}
}
