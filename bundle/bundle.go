// Package bundle packages compiled programs for storage and exchange. A
// bundle carries the source script, the flattened bytecode, and a
// disassembly listing, serialized as canonical CBOR and addressed by the
// hash of the source text.
package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/probelab/bpfscript/asm"
)

// cborEncMode uses canonical options so the same bundle always encodes to
// the same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bundle: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Bundle is one compiled program. Words is the binary encoding handed to
// the loader; Listing is the human-readable disassembly kept alongside it.
type Bundle struct {
	ID      uuid.UUID `cbor:"1,keyasint"`
	Name    string    `cbor:"2,keyasint"`
	Script  string    `cbor:"3,keyasint"` // source text
	Words   []uint64  `cbor:"4,keyasint"`
	Listing string    `cbor:"5,keyasint,omitempty"`
	Created int64     `cbor:"6,keyasint"` // unix seconds
}

// New wraps a compiled instruction stream into a fresh bundle.
func New(name, script string, ins []asm.Instruction) *Bundle {
	return &Bundle{
		ID:      uuid.New(),
		Name:    name,
		Script:  script,
		Words:   asm.Marshal(ins),
		Listing: asm.Disassemble(ins),
		Created: time.Now().Unix(),
	}
}

// Hash returns the content address of the bundle: the hex SHA-256 of its
// source text. Two bundles built from the same script share a hash even
// when their ids differ.
func (b *Bundle) Hash() string {
	return ScriptHash(b.Script)
}

// ScriptHash computes the content address for a script without building a
// bundle.
func ScriptHash(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}

// Marshal serializes a bundle to CBOR bytes.
func Marshal(b *Bundle) ([]byte, error) {
	return cborEncMode.Marshal(b)
}

// Unmarshal deserializes a bundle from CBOR bytes.
func Unmarshal(data []byte) (*Bundle, error) {
	var b Bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("bundle: unmarshal bundle: %w", err)
	}
	return &b, nil
}
