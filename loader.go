package classloader

import (
	"math"
	"sync"

	"github.com/hexforge/classloader/internal/sink"
)

// maxLoadCount caps LoaderHandle.loadCount. Spec §4.6 only requires
// that overflow be disallowed, not any specific ceiling.
const maxLoadCount = math.MaxInt32

// LoaderHandle is spec §4.6's LH: a user-facing object bound to
// exactly one library path, carrying the lazy flag and load count.
type LoaderHandle struct {
	mu       sync.Mutex
	path     string
	lazy     bool
	count    int
	registry *Registry
}

// NewLoaderHandle constructs a LoaderHandle bound to path against the
// process-wide default registry. When lazy is false the library is
// loaded eagerly and the load count starts at 1; when lazy is true
// nothing is loaded yet and the count starts at 0.
func NewLoaderHandle(path string, lazy bool) (*LoaderHandle, error) {
	return NewLoaderHandleWithRegistry(path, lazy, defaultRegistry())
}

// NewLoaderHandleWithRegistry is NewLoaderHandle against an explicit
// *Registry, primarily useful for tests that want an isolated
// registry rather than the process-wide singleton.
func NewLoaderHandleWithRegistry(path string, lazy bool, registry *Registry) (*LoaderHandle, error) {
	lh := &LoaderHandle{path: path, lazy: lazy, registry: registry}
	if !lazy {
		if err := lh.registry.loadLibrary(path, lh); err != nil {
			return nil, err
		}
		lh.count = 1
	}
	return lh, nil
}

// LibraryPath returns the library path this handle is bound to.
func (lh *LoaderHandle) LibraryPath() string { return lh.path }

// IsLazy reports the handle's lazy flag.
func (lh *LoaderHandle) IsLazy() bool { return lh.lazy }

// LoadCount returns the current load count, mostly useful for tests.
func (lh *LoaderHandle) LoadCount() int {
	lh.mu.Lock()
	defer lh.mu.Unlock()
	return lh.count
}

// loadLibrary implements spec §4.6's loadLibrary: if the count is
// zero, ask the registry to load; the count is always incremented
// (short of the overflow cap).
func (lh *LoaderHandle) loadLibrary() error {
	lh.mu.Lock()
	defer lh.mu.Unlock()
	if lh.count == 0 {
		if err := lh.registry.loadLibrary(lh.path, lh); err != nil {
			return err
		}
	}
	if lh.count < maxLoadCount {
		lh.count++
	} else {
		sink.Warnf("classloader: load count for %q is saturated at %d; further loadLibrary calls are no-ops", lh.path, maxLoadCount)
	}
	return nil
}

// LoadLibrary is the exported form of loadLibrary.
func (lh *LoaderHandle) LoadLibrary() error { return lh.loadLibrary() }

// unloadLibrary implements spec §4.6's unloadLibrary: decrementing a
// count already at zero is a no-op; reaching zero asks the registry
// to tear the library down.
func (lh *LoaderHandle) unloadLibrary() error {
	lh.mu.Lock()
	defer lh.mu.Unlock()
	if lh.count == 0 {
		return nil
	}
	lh.count--
	if lh.count == 0 {
		return lh.registry.unloadLibrary(lh.path, lh)
	}
	return nil
}

// UnloadLibrary is the exported form of unloadLibrary.
func (lh *LoaderHandle) UnloadLibrary() error { return lh.unloadLibrary() }

// IsLibraryLoaded reports whether the load count is positive, the LLT
// still carries this path, and this loader's owned meta-objects for
// the path are internally consistent -- spec §4.6's isLibraryLoaded.
func (lh *LoaderHandle) IsLibraryLoaded() bool {
	lh.mu.Lock()
	count := lh.count
	lh.mu.Unlock()
	if count <= 0 {
		return false
	}
	return lh.registry.isLibraryLoaded(lh.path, lh)
}

// IsLibraryLoadedByAnybody reports whether the bound path is resident
// in the process at all, regardless of which loader put it there.
func (lh *LoaderHandle) IsLibraryLoadedByAnybody() bool {
	return lh.registry.isLibraryLoadedByAnybody(lh.path)
}

// LibrariesInUse returns every distinct library path referenced by
// meta-objects this loader owns, ported from the original's
// getAllLibrariesUsedByPluginLoader.
func (lh *LoaderHandle) LibrariesInUse() []string {
	return lh.registry.librariesUsedBy(lh)
}

// ensureLoadedForCreate implements the lazy-loader trigger described
// in §4.6's createInstance: on a lazy loader, if the load count was
// zero, loading happens first.
func (lh *LoaderHandle) ensureLoadedForCreate() error {
	lh.mu.Lock()
	needsLoad := lh.lazy && lh.count == 0
	lh.mu.Unlock()
	if needsLoad {
		return lh.loadLibrary()
	}
	// Non-lazy loaders are already loaded by construction; still run
	// loadLibrary's bookkeeping so the load count reflects this
	// instance's claim, matching a non-lazy loader being reusable for
	// many CreateInstance calls without ever dropping to zero between
	// them.
	return lh.loadLibrary()
}

// CreateInstance creates a new instance of className as seen through
// lh, returning a shared-ownership Instance handle. On a lazy loader
// whose load count was zero, the library is loaded first. The
// returned instance carries one decrement obligation against lh: once
// every clone has called Release, lh's load count drops by one.
func CreateInstance[Base any](lh *LoaderHandle, className string) (*Instance[Base], error) {
	if err := lh.ensureLoadedForCreate(); err != nil {
		return nil, err
	}
	value, err := createInstance[Base](lh.registry, className, lh)
	if err != nil {
		_ = lh.unloadLibrary()
		return nil, err
	}
	return newInstance(value, lh), nil
}

// CreateUniqueInstance is CreateInstance returning an exclusive-
// ownership UniqueInstance handle instead of a shared one.
func CreateUniqueInstance[Base any](lh *LoaderHandle, className string) (*UniqueInstance[Base], error) {
	if err := lh.ensureLoadedForCreate(); err != nil {
		return nil, err
	}
	value, err := createInstance[Base](lh.registry, className, lh)
	if err != nil {
		_ = lh.unloadLibrary()
		return nil, err
	}
	return newUniqueInstance(value, lh), nil
}

// GetAvailableClasses lists every derived-class name registered under
// Base that lh can see: classes it owns, plus orphaned classes with
// no owner at all.
func GetAvailableClasses[Base any](lh *LoaderHandle) []string {
	return getAvailableClasses[Base](lh.registry, lh)
}

// IsClassAvailable reports whether className appears in
// GetAvailableClasses[Base](lh).
func IsClassAvailable[Base any](lh *LoaderHandle, className string) bool {
	for _, name := range GetAvailableClasses[Base](lh) {
		if name == className {
			return true
		}
	}
	return false
}
