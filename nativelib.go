package classloader

import (
	"fmt"
	"plugin"
	"sync"

	"github.com/hexforge/classloader/internal/sink"
)

// nativeLibrary is the Shared-Library Primitive backend over the
// standard library's "plugin" package, used for real .so files built
// with `go build -buildmode=plugin`.
//
// plugin.Open has the exact property spec §4.4's graveyard exists to
// handle: it caches opened paths process-wide and will not re-run a
// library's init() functions on a second Open of the same path, and
// the plugin package exposes no Close at all -- once opened, a
// library's code genuinely never leaves the process. Close here is
// therefore honest bookkeeping, not a real unload request.
type nativeLibrary struct {
	mu     sync.Mutex
	path   string
	plug   *plugin.Plugin
	loaded bool
}

func openNativeLibrary(path string) (sharedLibraryHandle, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("plugin.Open(%q): %w", path, err)
	}
	sink.Debugf("classloader: native backend opened %q", path)
	return &nativeLibrary{path: path, plug: p, loaded: true}, nil
}

func (n *nativeLibrary) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.loaded {
		return nil
	}
	sink.Debugf("classloader: native backend release of %q requested; the Go runtime will "+
		"not actually evict the code, only the registry's bookkeeping treats it as closed", n.path)
	n.loaded = false
	return nil
}

func (n *nativeLibrary) IsLoaded() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loaded
}

func (n *nativeLibrary) FindSymbol(name string) (any, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.loaded {
		return nil, false
	}
	sym, err := n.plug.Lookup(name)
	if err != nil {
		return nil, false
	}
	return sym, true
}
