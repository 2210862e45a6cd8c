// bsc - the bpfscript compiler CLI. Compiles a project's script against
// its declared kernel types and emits bytecode, caching compiled bundles
// by script hash.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tliron/commonlog"

	"github.com/probelab/bpfscript/bundle"
	"github.com/probelab/bpfscript/compiler"
	"github.com/probelab/bpfscript/manifest"

	_ "github.com/tliron/commonlog/simple"
)

var log commonlog.Logger

func main() {
	hexOut := flag.Bool("hex", false, "Print bytecode words as hex instead of a disassembly listing")
	output := flag.String("o", "", "Bundle output path (overrides the manifest)")
	noCache := flag.Bool("no-cache", false, "Compile even when a cached bundle matches the script")
	list := flag.Bool("list", false, "List cached bundles and exit")
	verbosity := flag.Int("v", 0, "Log verbosity (0 = quiet)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bsc [options] [dir]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles the script configured in bpfscript.toml, searching upward\n")
		fmt.Fprintf(os.Stderr, "from dir (default \".\") for the manifest.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bsc                  # Compile the current project, print the listing\n")
		fmt.Fprintf(os.Stderr, "  bsc -hex ./probes    # Compile ./probes, print raw bytecode words\n")
		fmt.Fprintf(os.Stderr, "  bsc -o out.bundle    # Also write the serialized bundle\n")
		fmt.Fprintf(os.Stderr, "  bsc -list            # Show what the bundle cache holds\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)
	log = commonlog.GetLogger("bsc")

	dir := "."
	if flag.NArg() > 0 {
		dir = flag.Arg(0)
	}

	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		fmt.Fprintf(os.Stderr, "Error: no bpfscript.toml found from %s\n", dir)
		os.Exit(1)
	}
	log.Infof("using manifest in %s", m.Dir)

	if *list {
		if err := listBundles(m); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	b, err := build(m, *noCache)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	bundlePath := m.BundlePath()
	if *output != "" {
		bundlePath = *output
	}
	if bundlePath != "" {
		if err := writeBundle(b, bundlePath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		log.Infof("wrote bundle to %s", bundlePath)
	}

	if *hexOut {
		for _, w := range b.Words {
			fmt.Printf("%016x\n", w)
		}
	} else {
		fmt.Print(b.Listing)
	}
}

// build returns a bundle for the manifest's script, reusing the cache when
// the script hash matches a stored bundle.
func build(m *manifest.Manifest, noCache bool) (*bundle.Bundle, error) {
	src, err := os.ReadFile(m.ScriptPath())
	if err != nil {
		return nil, fmt.Errorf("cannot read script: %w", err)
	}
	script := string(src)

	var store *bundle.Store
	if !noCache {
		store, err = openCache(m)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		if b, err := store.Get(bundle.ScriptHash(script)); err == nil {
			log.Infof("cache hit for %s", m.Program.Name)
			return b, nil
		} else if !errors.Is(err, bundle.ErrNotFound) {
			return nil, err
		}
	}

	b, err := compile(m, script)
	if err != nil {
		return nil, err
	}

	if store != nil {
		if err := store.Put(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// compile runs the full pipeline: build the type database, register the
// captured values, and lower the script.
func compile(m *manifest.Manifest, script string) (*bundle.Bundle, error) {
	db, err := m.Database()
	if err != nil {
		return nil, err
	}

	c := compiler.New(db)
	names := make([]string, 0, len(m.Captures))
	for name := range m.Captures {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.Capture(name, m.Captures[name])
	}

	if err := c.Compile(script); err != nil {
		return nil, fmt.Errorf("%s: %w", m.Program.Script, err)
	}
	log.Infof("compiled %s: %d instructions", m.Program.Name, len(c.Instructions()))

	return bundle.New(m.Program.Name, script, c.Instructions()), nil
}

func openCache(m *manifest.Manifest) (*bundle.Store, error) {
	path := m.CachePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create cache directory: %w", err)
	}
	return bundle.OpenStore(path)
}

func listBundles(m *manifest.Manifest) error {
	store, err := openCache(m)
	if err != nil {
		return err
	}
	defer store.Close()

	names, err := store.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("cache is empty")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func writeBundle(b *bundle.Bundle, path string) error {
	data, err := bundle.Marshal(b)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
