package types

import "fmt"

// ---------------------------------------------------------------------------
// Database
// ---------------------------------------------------------------------------

// Database holds registered kinds keyed by id and name. Ids are assigned
// sequentially starting at 1; id 0 is never valid. The zero Database is not
// usable; call NewDatabase.
type Database struct {
	kinds  map[uint32]Kind
	byName map[string]uint32
	nextID uint32
}

// NewDatabase creates an empty type database.
func NewDatabase() *Database {
	return &Database{
		kinds:  make(map[uint32]Kind),
		byName: make(map[string]uint32),
		nextID: 1,
	}
}

func (db *Database) add(name string, k Kind) uint32 {
	id := db.nextID
	db.nextID++
	db.kinds[id] = k
	if name != "" {
		db.byName[name] = id
	}
	return id
}

// AddInteger registers a fixed-width integer type and returns its id.
func (db *Database) AddInteger(name string, size uint32, signed bool) uint32 {
	return db.add(name, Integer{Size: size, Signed: signed})
}

// AddStruct registers an aggregate type and returns its id. Member offsets
// are in bits and member type ids must already be registered.
func (db *Database) AddStruct(name string, size uint32, members []Member) uint32 {
	return db.add(name, Struct{Size: size, Members: members})
}

// AddArray registers a fixed-length array type and returns its id, or an
// error when the element id is unknown.
func (db *Database) AddArray(name string, elemID, count uint32) (uint32, error) {
	elem, ok := db.ResolveByID(elemID)
	if !ok {
		return 0, fmt.Errorf("array element type id %d not found", elemID)
	}
	return db.add(name, Array{ElemID: elemID, Count: count, size: elem.Size() * count}), nil
}

// AddPointer registers a pointer to an existing type and returns its id.
func (db *Database) AddPointer(name string, targetID uint32) uint32 {
	return db.add(name, Pointer{TargetID: targetID})
}

// AddTypedef registers a named alias for an existing type and returns its
// id.
func (db *Database) AddTypedef(name string, targetID uint32) uint32 {
	return db.add(name, Typedef{TargetID: targetID})
}

// resolve follows typedef and pointer links from an id down to a concrete
// base kind, counting pointer hops into the reference depth.
func (db *Database) resolve(id uint32) (Type, bool) {
	var refs uint32
	for {
		k, ok := db.kinds[id]
		if !ok {
			return Type{}, false
		}
		switch kk := k.(type) {
		case Pointer:
			refs++
			id = kk.TargetID
		case Typedef:
			id = kk.TargetID
		default:
			return Type{Base: k, Refs: refs}, true
		}
	}
}

// ResolveByName returns the qualified type registered under name.
func (db *Database) ResolveByName(name string) (Type, bool) {
	id, ok := db.byName[name]
	if !ok {
		return Type{}, false
	}
	return db.resolve(id)
}

// ResolveByID returns the qualified type for a numeric id, following
// typedefs and pointer chains.
func (db *Database) ResolveByID(id uint32) (Type, bool) {
	return db.resolve(id)
}
