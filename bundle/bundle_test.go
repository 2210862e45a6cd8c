package bundle

import (
	"path/filepath"
	"testing"

	"github.com/probelab/bpfscript/asm"
)

func testBundle() *Bundle {
	return New("probe", "fn()\n  return 1", []asm.Instruction{
		asm.Mov64(asm.R0, 1),
		asm.Exit(),
	})
}

func TestNewBundle(t *testing.T) {
	b := testBundle()
	if b.Name != "probe" {
		t.Errorf("name = %q", b.Name)
	}
	if len(b.Words) != 2 {
		t.Errorf("word count = %d, want 2", len(b.Words))
	}
	if b.Listing == "" {
		t.Error("listing is empty")
	}
	if b.Created == 0 {
		t.Error("created timestamp is zero")
	}
}

func TestHashTracksScriptOnly(t *testing.T) {
	a := testBundle()
	b := testBundle()
	if a.ID == b.ID {
		t.Error("bundles share an id")
	}
	if a.Hash() != b.Hash() {
		t.Error("same script produced different hashes")
	}
	if a.Hash() != ScriptHash(a.Script) {
		t.Error("bundle hash disagrees with ScriptHash")
	}

	c := New("probe", "fn()\n  return 2", nil)
	if c.Hash() == a.Hash() {
		t.Error("different scripts share a hash")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	b := testBundle()
	data, err := Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != b.ID || got.Name != b.Name || got.Script != b.Script {
		t.Errorf("round trip changed identity: %+v", got)
	}
	if len(got.Words) != len(b.Words) {
		t.Fatalf("word count = %d, want %d", len(got.Words), len(b.Words))
	}
	for i := range got.Words {
		if got.Words[i] != b.Words[i] {
			t.Errorf("word %d = %#x, want %#x", i, got.Words[i], b.Words[i])
		}
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	b := testBundle()
	first, err := Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Error("canonical encoding is not stable")
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0x00, 0x13}); err == nil {
		t.Error("garbage decoded cleanly")
	}
}

func TestStorePutGet(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "bundles.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	b := testBundle()
	if err := store.Put(b); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(b.Hash())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != b.ID || got.Script != b.Script {
		t.Errorf("loaded bundle = %+v", got)
	}
}

func TestStoreMissingHash(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "bundles.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if _, err := store.Get(ScriptHash("fn()")); err != ErrNotFound {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestStoreReplacesSameScript(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "bundles.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	first := testBundle()
	second := testBundle()
	if err := store.Put(first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := store.Put(second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	got, err := store.Get(first.Hash())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != second.ID {
		t.Error("replacement kept the old bundle")
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "probe" {
		t.Errorf("names = %v", names)
	}
}

func TestStoreDelete(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "bundles.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	b := testBundle()
	if err := store.Put(b); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(b.Hash()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(b.Hash()); err != ErrNotFound {
		t.Errorf("error after delete = %v, want ErrNotFound", err)
	}

	// Deleting again is a no-op.
	if err := store.Delete(b.Hash()); err != nil {
		t.Errorf("second delete: %v", err)
	}
}
