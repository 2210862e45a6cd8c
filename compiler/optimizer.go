package compiler

import "github.com/probelab/bpfscript/asm"

// ---------------------------------------------------------------------------
// Peephole optimizer
// ---------------------------------------------------------------------------
//
// Straightforward per-statement lowering materializes every address as a
// mov from the frame pointer followed by a constant add. A single pass
// over the finished instruction stream folds those sequences into the
// displacement field of the load that consumes them, and drops stores
// that are overwritten before they can be read. The pass knows nothing
// about source types or variables; it only inspects register and memory
// effects, and its output is never longer than its input.

// optimize returns a behaviorally equivalent, possibly shorter program.
func optimize(ins []asm.Instruction) []asm.Instruction {
	return dropDeadStores(foldAddressLoads(ins))
}

// foldAddressLoads rewrites
//
//	rD = rS; rD += k; rD = *(uN *)(rD + 0)
//
// into a single rD = *(uN *)(rS + k), and the two-instruction form
// without the add into a zero-displacement load.
func foldAddressLoads(ins []asm.Instruction) []asm.Instruction {
	out := make([]asm.Instruction, 0, len(ins))

	for i := 0; i < len(ins); i++ {
		mov := ins[i]
		if !mov.IsMovReg64() {
			out = append(out, mov)
			continue
		}

		// rD = rS; rD += k; rD = *(rD + 0)
		if i+2 < len(ins) {
			add, load := ins[i+1], ins[i+2]
			if add.IsAddImm64() && add.Dst == mov.Dst &&
				load.IsMemLoad() && load.Dst == mov.Dst && load.Src == mov.Dst && load.Offset == 0 &&
				add.Imm >= -0x8000 && add.Imm <= 0x7fff {
				folded := load
				folded.Src = mov.Src
				folded.Offset = int16(add.Imm)
				out = append(out, folded)
				i += 2
				continue
			}
		}

		// rD = rS; rD = *(rD + 0)
		if i+1 < len(ins) {
			load := ins[i+1]
			if load.IsMemLoad() && load.Dst == mov.Dst && load.Src == mov.Dst && load.Offset == 0 {
				folded := load
				folded.Src = mov.Src
				out = append(out, folded)
				i++
				continue
			}
		}

		out = append(out, mov)
	}
	return out
}

// dropDeadStores removes a store whose target is overwritten by the very
// next instruction: same base register, same offset, same width. Stores
// read registers, never memory, so the adjacent overwrite cannot observe
// the dropped bytes.
func dropDeadStores(ins []asm.Instruction) []asm.Instruction {
	out := make([]asm.Instruction, 0, len(ins))

	for i := 0; i < len(ins); i++ {
		cur := ins[i]
		if i+1 < len(ins) && cur.IsMemStore() {
			next := ins[i+1]
			if next.IsMemStore() &&
				next.Dst == cur.Dst &&
				next.Offset == cur.Offset &&
				next.AccessWidth() == cur.AccessWidth() {
				continue // cur is overwritten before any read
			}
		}
		out = append(out, cur)
	}
	return out
}
