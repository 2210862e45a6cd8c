// Package compiler translates script source into BPF instructions. A
// script declares one function with typed arguments and a body of
// assignment, call, and return statements; variable types resolve against
// a kernel type database and calls against the helper catalog.
package compiler

import (
	"strconv"

	"github.com/probelab/bpfscript/asm"
	"github.com/probelab/bpfscript/helpers"
	"github.com/probelab/bpfscript/types"
)

// stackLimit is the hard byte budget of a program's stack frame.
const stackLimit = 512

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

// storageKind says where a variable's value lives.
type storageKind int

const (
	storageStack     storageKind = iota // fixed slot below the frame base
	storageImmediate                    // captured host value, no memory
)

// variable is one symbol table entry. A variable's type and location are
// fixed at creation and never change.
type variable struct {
	typ    types.Type
	kind   storageKind
	offset int16  // stack slot offset from R10, valid for storageStack
	imm    uint32 // captured value, valid for storageImmediate
}

// ---------------------------------------------------------------------------
// Compiler
// ---------------------------------------------------------------------------

// Compiler compiles scripts against a fixed type database. One instance
// holds one mutable compilation context: the symbol table, instruction
// buffer, and stack counter persist across Compile calls, so successive
// calls accumulate rather than starting fresh. Instances are not safe for
// concurrent use.
type Compiler struct {
	db    *types.Database
	vars  map[string]variable
	ins   []asm.Instruction
	stack uint32
	line  int // 1-based statement counter for diagnostics
}

// New creates a compiler bound to the given type database.
func New(db *types.Database) *Compiler {
	return &Compiler{
		db:   db,
		vars: make(map[string]variable),
		line: 1,
	}
}

// Capture binds a host value to a name visible to subsequently compiled
// scripts. The value is baked into the program as an immediate load; it
// occupies no stack memory and cannot be assigned, referenced, or
// dereferenced. The main use is passing map identifiers to helpers.
func (c *Compiler) Capture(name string, value int64) {
	c.vars[name] = variable{
		typ:  types.Int(8, true),
		kind: storageImmediate,
		imm:  uint32(value),
	}
}

// Instructions returns the instruction list built by Compile. The contents
// are unspecified after a failed compile.
func (c *Compiler) Instructions() []asm.Instruction {
	return c.ins
}

// Bytecode returns the flattened binary encoding of the instruction list.
func (c *Compiler) Bytecode() []uint64 {
	return asm.Marshal(c.ins)
}

// Compile parses and lowers a script, appending to the instruction list.
// The first error aborts compilation; the instruction buffer and symbol
// table are not rolled back on failure.
func (c *Compiler) Compile(src string) error {
	script, err := NewParser(src).Parse()
	if err != nil {
		return c.errorf("%s", err)
	}
	if err := c.emitPrologue(script); err != nil {
		return err
	}
	if err := c.emitBody(script); err != nil {
		return err
	}

	c.ins = optimize(c.ins)
	return nil
}

func (c *Compiler) emit(ins ...asm.Instruction) {
	c.ins = append(c.ins, ins...)
}

// ---------------------------------------------------------------------------
// Resolution helpers
// ---------------------------------------------------------------------------

// resolveTypeByID resolves a type id discovered while walking members or
// array elements. Failure here means the type database itself is
// inconsistent, not that the script is wrong.
func (c *Compiler) resolveTypeByID(id uint32) (types.Type, error) {
	if t, ok := c.db.ResolveByID(id); ok {
		return t, nil
	}
	return types.Type{}, c.errorf("bad type database: type id %d not found", id)
}

// resolveTypeByDecl resolves an explicit type declaration, counting a
// leading reference marker into the pointer depth.
func (c *Compiler) resolveTypeByDecl(decl *TypeDecl) (types.Type, error) {
	t, ok := c.db.ResolveByName(decl.Name)
	if !ok {
		return types.Type{}, c.errorf("no type found with the name %q", decl.Name)
	}
	if decl.IsRef {
		t.Refs++
	}
	return t, nil
}

// lookupVariable finds a symbol table entry by name.
func (c *Compiler) lookupVariable(name string) (variable, error) {
	if v, ok := c.vars[name]; ok {
		return v, nil
	}
	return variable{}, c.errorf("no variable with the name %q", name)
}

func (c *Compiler) parseUintImm(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, c.errorf("bad immediate value %q", s)
	}
	return v, nil
}

func (c *Compiler) parseIntImm(s string, bits int) (int64, error) {
	v, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		return 0, c.errorf("bad immediate value %q", s)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Stack allocation
// ---------------------------------------------------------------------------

// pushStack commits n more bytes of the stack frame and returns the new
// offset from the frame base. Slots are never freed or reused within one
// compilation.
func (c *Compiler) pushStack(n uint32) (int16, error) {
	if c.stack+n > stackLimit {
		return 0, c.errorf("stack size exceeded %d bytes with this assignment", stackLimit)
	}
	c.stack += n
	return -int16(c.stack), nil
}

// ---------------------------------------------------------------------------
// Immediate lowering
// ---------------------------------------------------------------------------

// emitInitStack tiles one byte value across size bytes starting at offset,
// writing the largest chunks first to minimize instructions.
func (c *Compiler) emitInitStack(offset int16, value int8, size uint32) {
	v := int64(value)
	v64 := v | v<<8 | v<<16 | v<<24 | v<<32 | v<<40 | v<<48 | v<<56

	for ; size >= 8; size -= 8 {
		c.emit(asm.Store64(asm.R10, offset, v64))
		offset += 8
	}
	for ; size >= 4; size -= 4 {
		c.emit(asm.Store32(asm.R10, offset, int32(v64)))
		offset += 4
	}
	for ; size >= 2; size -= 2 {
		c.emit(asm.Store16(asm.R10, offset, int16(v64)))
		offset += 2
	}
	for ; size >= 1; size-- {
		c.emit(asm.Store8(asm.R10, offset, int8(v64)))
		offset++
	}
}

// emitPushImmediate writes a decimal literal to a stack slot, parsed
// according to the cast type's width and signedness. Widths other than
// 1/2/4/8 take the literal as a signed byte and tile it across the whole
// span, so aggregate initialization only carries byte-uniform patterns.
func (c *Compiler) emitPushImmediate(imm string, cast types.Type, useOffset *int16) (int16, types.Type, error) {
	var size uint32
	var signed bool
	switch base := cast.Base.(type) {
	case types.Integer:
		size, signed = base.Size, base.Signed
	case types.Struct:
		size, signed = base.Size, false
	case types.Void:
		size, signed = 8, false
	default:
		return 0, types.Type{}, c.errorf("can only assign immediates to integer or inferred types")
	}

	var offset int16
	if useOffset != nil {
		offset = *useOffset
	} else {
		var err error
		if offset, err = c.pushStack(size); err != nil {
			return 0, types.Type{}, err
		}
	}

	var newType types.Type
	switch {
	case size == 1 && !signed:
		v, err := c.parseUintImm(imm, 8)
		if err != nil {
			return 0, types.Type{}, err
		}
		c.emit(asm.Store8(asm.R10, offset, int8(v)))
		newType = types.Int(1, false)
	case size == 1:
		v, err := c.parseIntImm(imm, 8)
		if err != nil {
			return 0, types.Type{}, err
		}
		c.emit(asm.Store8(asm.R10, offset, int8(v)))
		newType = types.Int(1, true)
	case size == 2 && !signed:
		v, err := c.parseUintImm(imm, 16)
		if err != nil {
			return 0, types.Type{}, err
		}
		c.emit(asm.Store16(asm.R10, offset, int16(v)))
		newType = types.Int(2, false)
	case size == 2:
		v, err := c.parseIntImm(imm, 16)
		if err != nil {
			return 0, types.Type{}, err
		}
		c.emit(asm.Store16(asm.R10, offset, int16(v)))
		newType = types.Int(2, true)
	case size == 4 && !signed:
		v, err := c.parseUintImm(imm, 32)
		if err != nil {
			return 0, types.Type{}, err
		}
		c.emit(asm.Store32(asm.R10, offset, int32(v)))
		newType = types.Int(4, false)
	case size == 4:
		v, err := c.parseIntImm(imm, 32)
		if err != nil {
			return 0, types.Type{}, err
		}
		c.emit(asm.Store32(asm.R10, offset, int32(v)))
		newType = types.Int(4, true)
	case size == 8 && !signed:
		v, err := c.parseUintImm(imm, 64)
		if err != nil {
			return 0, types.Type{}, err
		}
		c.emit(asm.Store64(asm.R10, offset, int64(v)))
		newType = types.Int(8, false)
	case size == 8:
		v, err := c.parseIntImm(imm, 64)
		if err != nil {
			return 0, types.Type{}, err
		}
		c.emit(asm.Store64(asm.R10, offset, v))
		newType = types.Int(8, true)
	default:
		v, err := c.parseIntImm(imm, 8)
		if err != nil {
			return 0, types.Type{}, err
		}
		c.emitInitStack(offset, int8(v), size)
		newType = cast
	}

	return offset, newType, nil
}

// ---------------------------------------------------------------------------
// LValue lowering
// ---------------------------------------------------------------------------

// emitPushRegister stores a register to a stack slot, allocating one when
// no offset is supplied.
func (c *Compiler) emitPushRegister(reg asm.Register, useOffset *int16) (int16, error) {
	var offset int16
	if useOffset != nil {
		offset = *useOffset
	} else {
		var err error
		if offset, err = c.pushStack(8); err != nil {
			return 0, err
		}
	}
	c.emit(asm.StoreReg64(asm.R10, offset, reg))
	return offset, nil
}

// emitDerefRegisterToStack copies size bytes from the address in reg into
// the stack slot at offset via the safe-read helper. Routing every
// pointer-indirected read through probe_read_kernel keeps the verifier
// satisfied without proving the pointer itself.
func (c *Compiler) emitDerefRegisterToStack(reg asm.Register, size uint32, offset int16) {
	c.emit(asm.Mov64Reg(asm.R1, asm.R10))
	c.emit(asm.Add64(asm.R1, int32(offset)))
	c.emit(asm.Mov64(asm.R2, int32(size)))
	c.emit(asm.Mov64Reg(asm.R3, reg))
	c.emit(asm.Call(helpers.ProbeReadKernel))
}

// emitPushLValue evaluates a named source expression into a stack slot:
// either the pointed-to bytes (no prefix) or the computed address itself
// (reference prefix).
func (c *Compiler) emitPushLValue(lval *LValue, cast types.Type, useOffset *int16) (int16, types.Type, error) {
	varType, err := c.emitRegisterLValueAddr(asm.R6, lval)
	if err != nil {
		return 0, types.Type{}, err
	}

	// A void cast deduces its type from the lvalue.
	realType := cast
	if _, isVoid := cast.Base.(types.Void); isVoid && cast.Refs == 0 {
		realType = varType
	}

	if realType.Size() != varType.Size() {
		return 0, types.Type{}, c.errorf("cannot assign two types of different sizes")
	}

	var offset int16
	if useOffset != nil {
		offset = *useOffset
	} else {
		if offset, err = c.pushStack(realType.Size()); err != nil {
			return 0, types.Type{}, err
		}
	}

	switch lval.Prefix {
	case NoPrefix:
		c.emitDerefRegisterToStack(asm.R6, realType.Size(), offset)
	case DerefPrefix:
		return 0, types.Type{}, c.errorf("dereference prefix is not supported in assignment sources")
	case RefPrefix:
		realType.Refs++
		c.emit(asm.StoreReg64(asm.R10, offset, asm.R6))
	}

	return offset, realType, nil
}

// emitPushRValue lowers an assignment source into a stack slot and returns
// the slot offset and the concrete value type.
func (c *Compiler) emitPushRValue(rval RValue, cast types.Type, useOffset *int16) (int16, types.Type, error) {
	switch rv := rval.(type) {
	case Immediate:
		return c.emitPushImmediate(string(rv), cast, useOffset)
	case *LValue:
		return c.emitPushLValue(rv, cast, useOffset)
	case *FunctionCall:
		base, ok := cast.Base.(types.Integer)
		if !ok {
			return 0, types.Type{}, c.errorf("cannot store function return in non-integer type")
		}
		if base.Size != 8 {
			return 0, types.Type{}, c.errorf("cannot store function return value in non-64-bit integer")
		}
		if err := c.emitCall(rv); err != nil {
			return 0, types.Type{}, err
		}
		offset, err := c.emitPushRegister(asm.R0, useOffset)
		if err != nil {
			return 0, types.Type{}, err
		}
		return offset, cast, nil
	default:
		panic("unhandled rvalue variant")
	}
}

// ---------------------------------------------------------------------------
// Dereference chains
// ---------------------------------------------------------------------------

// memberAccess returns the byte offset and resolved type of a named struct
// member.
func (c *Compiler) memberAccess(t types.Type, name string) (uint32, types.Type, error) {
	st, ok := t.Base.(types.Struct)
	if !ok {
		return 0, types.Type{}, c.errorf("tried to access member on non-struct type")
	}
	m, ok := st.Member(name)
	if !ok {
		return 0, types.Type{}, c.errorf("member %q doesn't exist", name)
	}
	if m.Offset%8 != 0 {
		return 0, types.Type{}, c.errorf("bitfield accesses aren't supported")
	}
	memberType, err := c.resolveTypeByID(m.TypeID)
	if err != nil {
		return 0, types.Type{}, err
	}
	return m.Offset / 8, memberType, nil
}

// arrayIndex returns the byte offset and element type of an array access.
// An index equal to the declared element count is accepted; only strictly
// greater indices are rejected.
func (c *Compiler) arrayIndex(t types.Type, index string) (uint32, types.Type, error) {
	idx, err := c.parseUintImm(index, 32)
	if err != nil {
		return 0, types.Type{}, err
	}
	ar, ok := t.Base.(types.Array)
	if !ok {
		return 0, types.Type{}, c.errorf("tried to index non-array type")
	}
	if uint32(idx) > ar.Count {
		return 0, types.Type{}, c.errorf("tried to access array index %d when array size is %d", idx, ar.Count)
	}
	elemType, err := c.resolveTypeByID(ar.ElemID)
	if err != nil {
		return 0, types.Type{}, err
	}
	return elemType.Size() * uint32(idx), elemType, nil
}

// assignOffset walks an assignment target's dereference chain against a
// variable's known type, producing a static byte offset and the narrowed
// target type. Walking through a pointer would need a runtime load, which
// an assignment target cannot express.
func (c *Compiler) assignOffset(t types.Type, derefs []Deref) (int16, types.Type, error) {
	var offset uint32
	cur := t
	for _, d := range derefs {
		if cur.IsPointer() {
			return 0, types.Type{}, c.errorf("indirect assignments aren't supported")
		}

		var off uint32
		var next types.Type
		var err error
		switch dd := d.(type) {
		case MemberAccess:
			off, next, err = c.memberAccess(cur, dd.Name)
		case ArrayIndex:
			off, next, err = c.arrayIndex(cur, dd.Index)
		default:
			panic("unhandled dereference variant")
		}
		if err != nil {
			return 0, types.Type{}, err
		}

		offset += off
		cur = next
	}

	if offset > 0x7fff {
		return 0, types.Type{}, c.errorf("dereference offset %d does not fit a stack displacement", offset)
	}
	return int16(offset), cur, nil
}

// emitDerefsToRegister applies a dereference chain to an address already
// held in reg, emitting a constant add per step. When the current type is
// a pointer the walk transparently follows one level of indirection with
// an 8-byte load before continuing.
func (c *Compiler) emitDerefsToRegister(reg asm.Register, t types.Type, derefs []Deref) (types.Type, error) {
	cur := t
	for _, d := range derefs {
		if cur.IsPointer() {
			c.emit(asm.Load64(reg, reg, 0))
		}

		var off uint32
		var next types.Type
		var err error
		switch dd := d.(type) {
		case MemberAccess:
			off, next, err = c.memberAccess(cur, dd.Name)
		case ArrayIndex:
			off, next, err = c.arrayIndex(cur, dd.Index)
		default:
			panic("unhandled dereference variant")
		}
		if err != nil {
			return types.Type{}, err
		}

		if off > 0 {
			c.emit(asm.Add64(reg, int32(off)))
		}
		cur = next
	}
	return cur, nil
}

// emitRegisterLValueAddr points reg at the lvalue's storage and returns
// the lvalue's type.
func (c *Compiler) emitRegisterLValueAddr(reg asm.Register, lval *LValue) (types.Type, error) {
	info, err := c.lookupVariable(lval.Name)
	if err != nil {
		return types.Type{}, err
	}
	if info.kind == storageImmediate {
		return types.Type{}, c.errorf("cannot take the address of captured variable %q", lval.Name)
	}

	c.emit(asm.Mov64Reg(reg, asm.R10))
	c.emit(asm.Add64(reg, int32(info.offset)))

	return c.emitDerefsToRegister(reg, info.typ, lval.Derefs)
}

// emitRegisterLValue loads an lvalue's value (or, with a reference prefix,
// its address) into reg. Captured variables become a single typed
// immediate load.
func (c *Compiler) emitRegisterLValue(reg asm.Register, lval *LValue, loadType *asm.LoadType) error {
	info, err := c.lookupVariable(lval.Name)
	if err != nil {
		return err
	}

	if info.kind == storageImmediate {
		if lval.Prefix != NoPrefix || len(lval.Derefs) > 0 {
			return c.errorf("cannot dereference captured variable %q", lval.Name)
		}
		lt := asm.LoadVoid
		if loadType != nil {
			lt = *loadType
		}
		c.emit(asm.LoadImmType(reg, int64(info.imm), lt))
		return nil
	}

	varType, err := c.emitRegisterLValueAddr(reg, lval)
	if err != nil {
		return err
	}

	// The register already holds the address; a reference prefix needs
	// nothing further.
	if lval.Prefix == RefPrefix {
		return nil
	}

	switch varType.Size() {
	case 1:
		c.emit(asm.Load8(reg, reg, 0))
	case 2:
		c.emit(asm.Load16(reg, reg, 0))
	case 4:
		c.emit(asm.Load32(reg, reg, 0))
	case 8:
		c.emit(asm.Load64(reg, reg, 0))
	default:
		return c.errorf("variable too large to be passed in a register")
	}

	// One more indirection when a dereference prefix was written.
	if lval.Prefix == DerefPrefix {
		if !varType.IsPointer() {
			return c.errorf("cannot dereference a non-pointer type")
		}
		c.emit(asm.Load64(reg, reg, 0))
	}

	return nil
}

// emitRegisterRValue evaluates an rvalue directly into reg. The load-type
// hint, when present, selects a typed wide load for immediates and
// captures.
func (c *Compiler) emitRegisterRValue(reg asm.Register, rval RValue, loadType *asm.LoadType) error {
	switch rv := rval.(type) {
	case Immediate:
		if loadType != nil {
			v, err := c.parseIntImm(string(rv), 64)
			if err != nil {
				return err
			}
			c.emit(asm.LoadImmType(reg, v, *loadType))
			return nil
		}
		v, err := c.parseIntImm(string(rv), 32)
		if err != nil {
			return err
		}
		c.emit(asm.Mov64(reg, int32(v)))
		return nil
	case *LValue:
		return c.emitRegisterLValue(reg, rv, loadType)
	case *FunctionCall:
		if err := c.emitCall(rv); err != nil {
			return err
		}
		if reg != asm.R0 {
			c.emit(asm.Mov64Reg(reg, asm.R0))
		}
		return nil
	default:
		panic("unhandled rvalue variant")
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// emitAssign lowers one assignment statement. New names allocate a slot
// and create a symbol table entry; existing names write through their
// original slot and type.
func (c *Compiler) emitAssign(assign *Assignment) error {
	newVariable := true
	var castType types.Type
	var useOffset *int16

	if info, ok := c.vars[assign.Left.Name]; ok {
		if assign.Decl != nil {
			return c.errorf("can't re-type %q after first assignment", assign.Left.Name)
		}
		if info.kind != storageStack {
			return c.errorf("variable %q cannot be re-assigned", assign.Left.Name)
		}
		rel, targetType, err := c.assignOffset(info.typ, assign.Left.Derefs)
		if err != nil {
			return err
		}
		newVariable = false
		castType = targetType
		off := info.offset + rel
		useOffset = &off
	} else if assign.Decl != nil {
		var err error
		if castType, err = c.resolveTypeByDecl(assign.Decl); err != nil {
			return err
		}
	} else {
		castType = types.VoidType()
	}

	offset, newType, err := c.emitPushRValue(assign.Right, castType, useOffset)
	if err != nil {
		return err
	}

	if newVariable {
		c.vars[assign.Left.Name] = variable{
			typ:    newType,
			kind:   storageStack,
			offset: offset,
		}
	}
	return nil
}

// emitCall lowers a helper invocation: arguments marshal left to right
// into R1..R5, then the call is emitted. A later argument that is itself a
// call clobbers the registers populated by earlier arguments; nothing is
// spilled.
func (c *Compiler) emitCall(call *FunctionCall) error {
	h, ok := helpers.Lookup(call.Name)
	if !ok {
		return c.errorf("unknown helper function %q", call.Name)
	}

	for i, arg := range call.Args {
		if i >= helpers.MaxArgs {
			return c.errorf("function calls can have a maximum of %d arguments", helpers.MaxArgs)
		}
		reg, _ := asm.ArgumentRegister(i + 1)
		lt := h.Args[i]
		if err := c.emitRegisterRValue(reg, arg, &lt); err != nil {
			return err
		}
	}

	c.emit(asm.Call(h.ID))
	return nil
}

// emitReturn lowers a return statement. The value, when present, goes
// directly into the result register without an intermediate slot.
func (c *Compiler) emitReturn(ret *Return) error {
	if ret.Value == nil {
		c.emit(asm.Mov64(asm.R0, 0))
		c.emit(asm.Exit())
		return nil
	}
	if err := c.emitRegisterRValue(asm.R0, ret.Value, nil); err != nil {
		return err
	}
	c.emit(asm.Exit())
	return nil
}

// emitPrologue copies each incoming argument register into a fresh stack
// slot and registers the argument as a stack-resident variable.
func (c *Compiler) emitPrologue(script *Script) error {
	if len(script.Args) > helpers.MaxArgs {
		return c.errorf("function calls can have a maximum of %d arguments", helpers.MaxArgs)
	}

	for i, arg := range script.Args {
		reg, _ := asm.ArgumentRegister(i + 1)
		argType, err := c.resolveTypeByDecl(&arg.Type)
		if err != nil {
			return err
		}
		offset, err := c.emitPushRegister(reg, nil)
		if err != nil {
			return err
		}
		c.vars[arg.Name] = variable{
			typ:    argType,
			kind:   storageStack,
			offset: offset,
		}
	}
	return nil
}

// emitBody lowers every statement in order, then appends an implicit bare
// return when the script doesn't end in one.
func (c *Compiler) emitBody(script *Script) error {
	for _, stmt := range script.Stmts {
		c.line++

		var err error
		switch s := stmt.(type) {
		case *Assignment:
			err = c.emitAssign(s)
		case *FunctionCall:
			err = c.emitCall(s)
		case *Return:
			err = c.emitReturn(s)
		default:
			panic("unhandled statement variant")
		}
		if err != nil {
			return err
		}
	}

	if n := len(script.Stmts); n == 0 {
		return c.emitReturn(&Return{})
	} else if _, ok := script.Stmts[n-1].(*Return); !ok {
		return c.emitReturn(&Return{})
	}
	return nil
}
