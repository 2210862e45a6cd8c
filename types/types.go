// Package types implements the kernel type database the compiler resolves
// script types against. Types are registered under stable numeric ids and
// looked up either by name (explicit declarations) or by id (struct member
// and array element references).
package types

// ---------------------------------------------------------------------------
// Base kinds
// ---------------------------------------------------------------------------

// Kind is the interface implemented by all base type descriptions.
type Kind interface {
	// ByteSize returns the storage size of a value of this kind.
	ByteSize() uint32
	kind() // marker method
}

// Void is the absence of a concrete type. Newly declared variables without
// a type annotation start as Void until the right-hand side resolves them.
type Void struct{}

func (Void) ByteSize() uint32 { return 0 }
func (Void) kind()            {}

// Integer is a fixed-width integer.
type Integer struct {
	Size   uint32 // bytes: 1, 2, 4 or 8
	Signed bool
}

func (i Integer) ByteSize() uint32 { return i.Size }
func (Integer) kind()              {}

// Member is a single struct field. Offset is in bits, as delivered by the
// kernel type information.
type Member struct {
	Name   string
	Offset uint32 // bit offset from the start of the struct
	TypeID uint32
}

// Struct is an aggregate with named members.
type Struct struct {
	Size    uint32
	Members []Member // declaration order
}

func (s Struct) ByteSize() uint32 { return s.Size }
func (Struct) kind()              {}

// Member returns the named member, if present.
func (s Struct) Member(name string) (Member, bool) {
	for _, m := range s.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// Array is a fixed-length sequence of one element type. The total byte size
// is computed at registration time so Kind sizes never need a database.
type Array struct {
	ElemID uint32
	Count  uint32
	size   uint32
}

func (a Array) ByteSize() uint32 { return a.size }
func (Array) kind()              {}

// Pointer refers to another registered type. Resolution flattens pointer
// chains into the reference depth of the qualified type, so the compiler
// never sees this kind directly.
type Pointer struct {
	TargetID uint32
}

func (Pointer) ByteSize() uint32 { return 8 }
func (Pointer) kind()            {}

// Typedef is a named alias for another registered type. Resolution follows
// aliases transparently.
type Typedef struct {
	TargetID uint32
}

func (Typedef) ByteSize() uint32 { return 0 }
func (Typedef) kind()            {}

// ---------------------------------------------------------------------------
// Qualified types
// ---------------------------------------------------------------------------

// Type is a base kind qualified with a pointer depth. Refs > 0 means the
// value is an address, regardless of the base kind.
type Type struct {
	Base Kind
	Refs uint32
}

// VoidType returns the inferred placeholder type.
func VoidType() Type {
	return Type{Base: Void{}}
}

// Int returns an unregistered integer type, used for values that never
// touch the database (captured host values).
func Int(size uint32, signed bool) Type {
	return Type{Base: Integer{Size: size, Signed: signed}}
}

// IsPointer reports whether the value is an address.
func (t Type) IsPointer() bool {
	return t.Refs > 0
}

// Size returns the storage size in bytes. Pointers are always 8 bytes.
func (t Type) Size() uint32 {
	if t.Refs > 0 {
		return 8
	}
	if t.Base == nil {
		return 0
	}
	return t.Base.ByteSize()
}
