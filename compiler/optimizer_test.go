package compiler

import (
	"testing"

	"github.com/probelab/bpfscript/asm"
)

func compareInstructions(t *testing.T, got, want []asm.Instruction) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("instruction count = %d, want %d\n%s", len(got), len(want), asm.Disassemble(got))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("instruction %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFoldMovAddLoad(t *testing.T) {
	got := optimize([]asm.Instruction{
		asm.Mov64Reg(asm.R6, asm.R10),
		asm.Add64(asm.R6, -8),
		asm.Load64(asm.R6, asm.R6, 0),
	})
	compareInstructions(t, got, []asm.Instruction{
		asm.Load64(asm.R6, asm.R10, -8),
	})
}

func TestFoldMovLoadWithoutAdd(t *testing.T) {
	got := optimize([]asm.Instruction{
		asm.Mov64Reg(asm.R0, asm.R6),
		asm.Load32(asm.R0, asm.R0, 0),
	})
	compareInstructions(t, got, []asm.Instruction{
		asm.Load32(asm.R0, asm.R6, 0),
	})
}

func TestFoldPreservesLoadWidth(t *testing.T) {
	got := optimize([]asm.Instruction{
		asm.Mov64Reg(asm.R0, asm.R10),
		asm.Add64(asm.R0, -4),
		asm.Load8(asm.R0, asm.R0, 0),
	})
	compareInstructions(t, got, []asm.Instruction{
		asm.Load8(asm.R0, asm.R10, -4),
	})
}

func TestNoFoldWhenRegistersDiffer(t *testing.T) {
	// The add targets a different register than the mov, so the
	// sequence is not an address computation and must survive.
	ins := []asm.Instruction{
		asm.Mov64Reg(asm.R6, asm.R10),
		asm.Add64(asm.R7, -8),
		asm.Load64(asm.R6, asm.R6, 0),
	}
	got := optimize(ins)
	if len(got) != 3 {
		t.Fatalf("instruction count = %d, want 3\n%s", len(got), asm.Disassemble(got))
	}
}

func TestNoFoldWhenLoadHasDisplacement(t *testing.T) {
	ins := []asm.Instruction{
		asm.Mov64Reg(asm.R6, asm.R10),
		asm.Load64(asm.R6, asm.R6, 8),
	}
	got := optimize(ins)
	compareInstructions(t, got, ins)
}

func TestNoFoldWhenDisplacementOverflows(t *testing.T) {
	ins := []asm.Instruction{
		asm.Mov64Reg(asm.R6, asm.R10),
		asm.Add64(asm.R6, 0x10000),
		asm.Load64(asm.R6, asm.R6, 0),
	}
	got := optimize(ins)
	if len(got) != 3 {
		t.Fatalf("instruction count = %d, want 3\n%s", len(got), asm.Disassemble(got))
	}
}

func TestDropAdjacentOverwrittenStore(t *testing.T) {
	got := optimize([]asm.Instruction{
		asm.Store32(asm.R10, -4, 1),
		asm.Store32(asm.R10, -4, 2),
		asm.Exit(),
	})
	compareInstructions(t, got, []asm.Instruction{
		asm.Store32(asm.R10, -4, 2),
		asm.Exit(),
	})
}

func TestKeepStoresAtDifferentLocations(t *testing.T) {
	ins := []asm.Instruction{
		asm.Store64(asm.R10, -16, 0),
		asm.Store64(asm.R10, -8, 0),
		asm.Exit(),
	}
	got := optimize(ins)
	compareInstructions(t, got, ins)
}

func TestKeepStoresOfDifferentWidths(t *testing.T) {
	// A narrower overwrite leaves some of the first store's bytes
	// visible, so both must survive.
	ins := []asm.Instruction{
		asm.Store64(asm.R10, -8, 1),
		asm.Store32(asm.R10, -8, 2),
		asm.Exit(),
	}
	got := optimize(ins)
	compareInstructions(t, got, ins)
}

func TestOptimizeIsIdempotent(t *testing.T) {
	ins := []asm.Instruction{
		asm.StoreReg64(asm.R10, -8, asm.R1),
		asm.Mov64Reg(asm.R6, asm.R10),
		asm.Add64(asm.R6, -8),
		asm.Load64(asm.R6, asm.R6, 0),
		asm.Store32(asm.R10, -12, 1),
		asm.Store32(asm.R10, -12, 2),
		asm.Exit(),
	}
	once := optimize(ins)
	twice := optimize(once)
	compareInstructions(t, twice, once)
}

func TestOptimizeEmpty(t *testing.T) {
	if got := optimize(nil); len(got) != 0 {
		t.Errorf("optimizing nothing produced %d instructions", len(got))
	}
}
