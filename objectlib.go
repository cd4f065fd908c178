package classloader

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkujhd/goloader"

	"github.com/hexforge/classloader/internal/sink"
	"github.com/hexforge/classloader/symbolpool"
)

// objectLibrary is the Shared-Library Primitive backend over
// github.com/pkujhd/goloader: it JIT-links a relocatable .o/.a file
// into a mmap'd code section without ever calling the OS dynamic
// loader. Unlike nativeLibrary, Close here performs a real unload
// (CodeModule.Unload), so libraries opened through this backend do
// not need the graveyard's rescue path -- a second Open of the same
// path re-reads the object file and re-runs init() for real.
//
// Because goloader needs an explicit package import path (there is
// no RTTI-equivalent auto-discovery), the library path accepted by
// this backend may carry one appended after a '#', e.g.
// "plugins/critters.o#critters". With no '#' the package path
// defaults to "main".
type objectLibrary struct {
	mu     sync.Mutex
	path   string
	pkg    string
	pool   *symbolpool.Pool
	linker *goloader.Linker
	module *goloader.CodeModule
	loaded bool
}

func splitObjectPath(path string) (file, pkg string) {
	if i := strings.LastIndexByte(path, '#'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, "main"
}

func openObjectLibrary(path string) (sharedLibraryHandle, error) {
	file, pkg := splitObjectPath(path)

	pool := symbolpool.Shared()
	if err := pool.Seed(); err != nil {
		return nil, fmt.Errorf("seeding symbol pool: %w", err)
	}

	linker, err := goloader.ReadObj(file, pkg)
	if err != nil {
		return nil, fmt.Errorf("goloader.ReadObj(%q, %q): %w", file, pkg, err)
	}

	syms := pool.Snapshot()
	module, err := goloader.Load(linker, syms)
	if err != nil {
		return nil, fmt.Errorf("goloader.Load(%q): %w", file, err)
	}
	pool.Merge(module.Syms)

	sink.Debugf("classloader: object backend loaded %q (package %q)", file, pkg)
	return &objectLibrary{path: path, pkg: pkg, pool: pool, linker: linker, module: module, loaded: true}, nil
}

func (o *objectLibrary) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.loaded {
		return nil
	}
	o.pool.Forget(o.module.Syms)
	o.module.Unload()
	o.loaded = false
	sink.Debugf("classloader: object backend unloaded %q", o.path)
	return nil
}

func (o *objectLibrary) IsLoaded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loaded
}

// Sym is the object backend's raw symbol handle: a function or data
// address inside the JIT-mapped code section.
type Sym uintptr

func (o *objectLibrary) FindSymbol(name string) (any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.loaded {
		return nil, false
	}
	if !strings.Contains(name, ".") {
		name = o.pkg + "." + name
	}
	addr, ok := o.module.Syms[name]
	if !ok {
		return nil, false
	}
	return Sym(addr), true
}
