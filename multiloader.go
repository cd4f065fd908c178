package classloader

import "sync"

// MultiLoaderHandle is spec §4.7's MLH: an aggregate over many
// LoaderHandles, one per library path it has been asked to load.
// MultiCreateInstance tries each owned loader, in no particular order,
// and returns the first class match, letting callers treat a set of plugin libraries
// as a single namespace without caring which one actually defines a
// given class.
type MultiLoaderHandle struct {
	mu      sync.Mutex
	lazy    bool
	loaders map[string]*LoaderHandle

	registry *Registry
}

// NewMultiLoaderHandle constructs an empty MLH against the process-
// wide default registry. Every library later added via LoadLibrary
// inherits lazy.
func NewMultiLoaderHandle(lazy bool) *MultiLoaderHandle {
	return NewMultiLoaderHandleWithRegistry(lazy, defaultRegistry())
}

// NewMultiLoaderHandleWithRegistry is NewMultiLoaderHandle against an
// explicit *Registry.
func NewMultiLoaderHandleWithRegistry(lazy bool, registry *Registry) *MultiLoaderHandle {
	return &MultiLoaderHandle{lazy: lazy, loaders: make(map[string]*LoaderHandle), registry: registry}
}

// LoadLibrary adds path to the set this MLH manages, constructing a
// fresh LoaderHandle for it if one isn't already held. Calling it
// again for a path already held just forwards to that loader's own
// loadLibrary, bumping its count.
func (m *MultiLoaderHandle) LoadLibrary(path string) error {
	m.mu.Lock()
	lh, ok := m.loaders[path]
	m.mu.Unlock()
	if ok {
		return lh.LoadLibrary()
	}

	lh, err := NewLoaderHandleWithRegistry(path, m.lazy, m.registry)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.loaders[path] = lh
	m.mu.Unlock()
	return nil
}

// UnloadLibrary drops one claim on path. Once its loader's load count
// reaches zero the loader is dropped from the set entirely; a later
// LoadLibrary for the same path starts fresh.
func (m *MultiLoaderHandle) UnloadLibrary(path string) error {
	m.mu.Lock()
	lh, ok := m.loaders[path]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if err := lh.UnloadLibrary(); err != nil {
		return err
	}
	if lh.LoadCount() == 0 {
		m.mu.Lock()
		delete(m.loaders, path)
		m.mu.Unlock()
	}
	return nil
}

// LoadedLibraries lists every path this MLH currently holds a loader
// for.
func (m *MultiLoaderHandle) LoadedLibraries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.loaders))
	for path := range m.loaders {
		out = append(out, path)
	}
	return out
}

func (m *MultiLoaderHandle) snapshotLoaders() []*LoaderHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*LoaderHandle, 0, len(m.loaders))
	for _, lh := range m.loaders {
		out = append(out, lh)
	}
	return out
}

// MultiCreateInstance tries every loader this MLH owns, in no
// particular order, and returns an instance from the first one whose
// registry view of className is available. It fails with the same
// CreateClassError as a single LoaderHandle would if no owned loader
// can supply the class.
func MultiCreateInstance[Base any](m *MultiLoaderHandle, className string) (*Instance[Base], error) {
	for _, lh := range m.snapshotLoaders() {
		if IsClassAvailable[Base](lh, className) {
			return CreateInstance[Base](lh, className)
		}
	}
	return nil, newCreateClassError(className)
}

// MultiCreateUniqueInstance is MultiCreateInstance returning an
// exclusive-ownership handle.
func MultiCreateUniqueInstance[Base any](m *MultiLoaderHandle, className string) (*UniqueInstance[Base], error) {
	for _, lh := range m.snapshotLoaders() {
		if IsClassAvailable[Base](lh, className) {
			return CreateUniqueInstance[Base](lh, className)
		}
	}
	return nil, newCreateClassError(className)
}

// MultiGetAvailableClasses unions GetAvailableClasses[Base] across
// every loader this MLH owns, without duplicates.
func MultiGetAvailableClasses[Base any](m *MultiLoaderHandle) []string {
	seen := make(map[string]bool)
	var out []string
	for _, lh := range m.snapshotLoaders() {
		for _, name := range GetAvailableClasses[Base](lh) {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

// MultiIsClassAvailable reports whether className appears in
// MultiGetAvailableClasses[Base](m).
func MultiIsClassAvailable[Base any](m *MultiLoaderHandle, className string) bool {
	for _, lh := range m.snapshotLoaders() {
		if IsClassAvailable[Base](lh, className) {
			return true
		}
	}
	return false
}
