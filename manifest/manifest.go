// Package manifest handles bpfscript.toml project configuration: where the
// script lives, where compiled bundles go, which host values are captured
// into the program, and the kernel types the script compiles against.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a bpfscript.toml project configuration.
type Manifest struct {
	Program  Program          `toml:"program"`
	Output   Output           `toml:"output"`
	Captures map[string]int64 `toml:"captures"`
	Types    Types            `toml:"types"`

	// Dir is the directory containing the bpfscript.toml file (set at
	// load time).
	Dir string `toml:"-"`
}

// Program contains program metadata and the script entry point.
type Program struct {
	Name   string `toml:"name"`
	Script string `toml:"script"`
}

// Output configures where compiled artifacts land.
type Output struct {
	Bundle string `toml:"bundle"`
	Cache  string `toml:"cache"`
}

// Types declares the kernel types visible to the script. Declarations may
// reference each other by name; each category resolves against everything
// declared before it, in the order integers, arrays, structs, pointers,
// typedefs.
type Types struct {
	Integers []IntegerDecl `toml:"integers"`
	Arrays   []ArrayDecl   `toml:"arrays"`
	Structs  []StructDecl  `toml:"structs"`
	Pointers []PointerDecl `toml:"pointers"`
	Typedefs []TypedefDecl `toml:"typedefs"`
}

// IntegerDecl declares a fixed-width integer type.
type IntegerDecl struct {
	Name   string `toml:"name"`
	Size   uint32 `toml:"size"`
	Signed bool   `toml:"signed"`
}

// ArrayDecl declares a fixed-length array of a previously declared type.
type ArrayDecl struct {
	Name  string `toml:"name"`
	Of    string `toml:"of"`
	Count uint32 `toml:"count"`
}

// StructDecl declares an aggregate with members at fixed bit offsets.
type StructDecl struct {
	Name    string       `toml:"name"`
	Size    uint32       `toml:"size"`
	Members []MemberDecl `toml:"members"`
}

// MemberDecl is one struct member. Offset is in bits, matching kernel
// type encodings.
type MemberDecl struct {
	Name   string `toml:"name"`
	Offset uint32 `toml:"offset"`
	Type   string `toml:"type"`
}

// PointerDecl declares a pointer to a previously declared type.
type PointerDecl struct {
	Name string `toml:"name"`
	To   string `toml:"to"`
}

// TypedefDecl declares a named alias for a previously declared type.
type TypedefDecl struct {
	Name string `toml:"name"`
	Of   string `toml:"of"`
}

// Load parses a bpfscript.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "bpfscript.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Program.Script == "" {
		m.Program.Script = "main.bps"
	}
	if m.Program.Name == "" {
		name := filepath.Base(m.Program.Script)
		m.Program.Name = name[:len(name)-len(filepath.Ext(name))]
	}
	if m.Output.Cache == "" {
		m.Output.Cache = filepath.Join(".bpfscript", "bundles.db")
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a bpfscript.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "bpfscript.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ScriptPath returns the absolute path of the script entry point.
func (m *Manifest) ScriptPath() string {
	return filepath.Join(m.Dir, m.Program.Script)
}

// BundlePath returns the absolute output path for the compiled bundle, or
// "" when no bundle output is configured.
func (m *Manifest) BundlePath() string {
	if m.Output.Bundle == "" {
		return ""
	}
	return filepath.Join(m.Dir, m.Output.Bundle)
}

// CachePath returns the absolute path of the bundle cache database.
func (m *Manifest) CachePath() string {
	return filepath.Join(m.Dir, m.Output.Cache)
}
