package manifest

import (
	"fmt"

	"github.com/probelab/bpfscript/types"
)

// Database materializes the manifest's type declarations into a type
// database the compiler can resolve against. Categories register in
// dependency order and each name may only reference names registered
// before it.
func (m *Manifest) Database() (*types.Database, error) {
	db := types.NewDatabase()
	ids := make(map[string]uint32)

	register := func(name string, id uint32) error {
		if _, dup := ids[name]; dup {
			return fmt.Errorf("type %q declared twice", name)
		}
		ids[name] = id
		return nil
	}
	lookup := func(name, ref string) (uint32, error) {
		id, ok := ids[ref]
		if !ok {
			return 0, fmt.Errorf("type %q references undeclared type %q", name, ref)
		}
		return id, nil
	}

	for _, d := range m.Types.Integers {
		if d.Size == 0 {
			return nil, fmt.Errorf("integer type %q has no size", d.Name)
		}
		if err := register(d.Name, db.AddInteger(d.Name, d.Size, d.Signed)); err != nil {
			return nil, err
		}
	}

	for _, d := range m.Types.Arrays {
		elem, err := lookup(d.Name, d.Of)
		if err != nil {
			return nil, err
		}
		id, err := db.AddArray(d.Name, elem, d.Count)
		if err != nil {
			return nil, fmt.Errorf("array type %q: %w", d.Name, err)
		}
		if err := register(d.Name, id); err != nil {
			return nil, err
		}
	}

	for _, d := range m.Types.Structs {
		members := make([]types.Member, 0, len(d.Members))
		for _, md := range d.Members {
			id, err := lookup(d.Name, md.Type)
			if err != nil {
				return nil, err
			}
			members = append(members, types.Member{
				Name:   md.Name,
				Offset: md.Offset,
				TypeID: id,
			})
		}
		if err := register(d.Name, db.AddStruct(d.Name, d.Size, members)); err != nil {
			return nil, err
		}
	}

	for _, d := range m.Types.Pointers {
		target, err := lookup(d.Name, d.To)
		if err != nil {
			return nil, err
		}
		if err := register(d.Name, db.AddPointer(d.Name, target)); err != nil {
			return nil, err
		}
	}

	for _, d := range m.Types.Typedefs {
		target, err := lookup(d.Name, d.Of)
		if err != nil {
			return nil, err
		}
		if err := register(d.Name, db.AddTypedef(d.Name, target)); err != nil {
			return nil, err
		}
	}

	return db, nil
}
