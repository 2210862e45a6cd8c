package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleManifest = `
[program]
name = "count_opens"
script = "probe.bps"

[output]
bundle = "probe.bundle"
cache = "cache/bundles.db"

[captures]
events_map = 3
pid_filter = 1000

[[types.integers]]
name = "u16"
size = 2

[[types.integers]]
name = "u64"
size = 8

[[types.integers]]
name = "int"
size = 4
signed = true

[[types.arrays]]
name = "four_u16"
of = "u16"
count = 4

[[types.structs]]
name = "iovec"
size = 16
members = [
  { name = "iov_base", offset = 0, type = "u64" },
  { name = "iov_len", offset = 64, type = "u64" },
]

[[types.pointers]]
name = "iovec_ptr"
to = "iovec"

[[types.typedefs]]
name = "__u64"
of = "u64"
`

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "bpfscript.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, sampleManifest)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if m.Program.Name != "count_opens" {
		t.Errorf("name = %q", m.Program.Name)
	}
	if m.ScriptPath() != filepath.Join(m.Dir, "probe.bps") {
		t.Errorf("script path = %q", m.ScriptPath())
	}
	if m.BundlePath() != filepath.Join(m.Dir, "probe.bundle") {
		t.Errorf("bundle path = %q", m.BundlePath())
	}
	if m.CachePath() != filepath.Join(m.Dir, "cache", "bundles.db") {
		t.Errorf("cache path = %q", m.CachePath())
	}
	if m.Captures["events_map"] != 3 || m.Captures["pid_filter"] != 1000 {
		t.Errorf("captures = %v", m.Captures)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[program]\nscript = \"trace_open.bps\"\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Program.Name != "trace_open" {
		t.Errorf("derived name = %q", m.Program.Name)
	}
	if m.Output.Cache != filepath.Join(".bpfscript", "bundles.db") {
		t.Errorf("default cache = %q", m.Output.Cache)
	}
	if m.BundlePath() != "" {
		t.Errorf("bundle path = %q, want empty", m.BundlePath())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("loading an empty directory succeeded")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, sampleManifest)

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if m == nil {
		t.Fatal("manifest not found from nested directory")
	}
	if m.Program.Name != "count_opens" {
		t.Errorf("name = %q", m.Program.Name)
	}
}

func TestFindAndLoadNoManifest(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if m != nil {
		t.Errorf("found unexpected manifest in %q", m.Dir)
	}
}

func TestDatabase(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, sampleManifest)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	db, err := m.Database()
	if err != nil {
		t.Fatalf("database: %v", err)
	}

	if typ, ok := db.ResolveByName("iovec"); !ok || typ.Size() != 16 {
		t.Errorf("iovec = %+v found=%v", typ, ok)
	}
	if typ, ok := db.ResolveByName("iovec_ptr"); !ok || !typ.IsPointer() {
		t.Errorf("iovec_ptr = %+v found=%v", typ, ok)
	}
	if typ, ok := db.ResolveByName("__u64"); !ok || typ.Size() != 8 {
		t.Errorf("__u64 = %+v found=%v", typ, ok)
	}
	if typ, ok := db.ResolveByName("four_u16"); !ok || typ.Size() != 8 {
		t.Errorf("four_u16 = %+v found=%v", typ, ok)
	}
}

func TestDatabaseErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{
			"undeclared reference",
			"[[types.typedefs]]\nname = \"alias\"\nof = \"nothing\"\n",
		},
		{
			"duplicate name",
			"[[types.integers]]\nname = \"u8\"\nsize = 1\n[[types.integers]]\nname = \"u8\"\nsize = 1\n",
		},
		{
			"zero-size integer",
			"[[types.integers]]\nname = \"u0\"\n",
		},
		{
			// Arrays resolve before structs register, so an array of a
			// struct cannot be declared.
			"category order",
			"[[types.structs]]\nname = \"st\"\nsize = 8\n[[types.arrays]]\nname = \"arr\"\nof = \"st\"\ncount = 2\n",
		},
	}

	for _, tc := range cases {
		dir := t.TempDir()
		writeManifest(t, dir, tc.content)
		m, err := Load(dir)
		if err != nil {
			t.Fatalf("%s: load: %v", tc.name, err)
		}
		if _, err := m.Database(); err == nil {
			t.Errorf("%s: database built cleanly", tc.name)
		}
	}
}
