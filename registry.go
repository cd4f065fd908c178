package classloader

import (
	"sync"

	"github.com/davecgh/go-spew/spew"

	"github.com/hexforge/classloader/internal/sink"
)

// Registry is the process-wide directory and lifecycle engine
// described in spec §4.4. Ordinary callers never construct one
// directly -- NewLoaderHandle and NewMultiLoaderHandle use the
// package-level singleton returned by defaultRegistry(). A
// constructible type is kept anyway because it makes the core
// algorithm unit-testable in isolation from the process-wide
// singleton, and because a test suite that loads and unloads many
// throwaway libraries benefits from a scratch registry with no
// shared state.
type Registry struct {
	// dirMu ("DIR_LOCK") guards directory, graveyard and the two
	// ambients below. It is a plain sync.Mutex, not a reentrant
	// lock: every exported method acquires it exactly once and
	// delegates to an unexported *Locked helper that assumes it is
	// already held, so no call path ever double-acquires it. This
	// sidesteps Go's lack of a stdlib reentrant mutex while
	// preserving the serialization the spec's DIR_LOCK provides.
	dirMu sync.Mutex

	// directory maps base-interface identity -> derived-class name -> meta-object.
	directory map[string]map[string]metaObjectBase
	graveyard []metaObjectBase

	// ambients, valid only while dirMu is held and a load is in progress.
	loadingLibraryPath string
	activeLoader       *LoaderHandle

	nonPureLibraryOpened bool

	// lltMu ("LLT_LOCK") guards llt. Acquired before dirMu whenever
	// both are needed, per §5's ordering rule.
	lltMu sync.Mutex
	llt   loadedLibraryTable

	// loadMu ("LOAD_LOCK") serializes concurrent loadLibrary calls
	// across all paths, grounded on the original's single static
	// std::recursive_mutex inside loadLibrary (PluginLoaderCore.cpp).
	loadMu sync.Mutex
}

// NewRegistry returns an empty, independent registry.
func NewRegistry() *Registry {
	return &Registry{directory: make(map[string]map[string]metaObjectBase)}
}

var (
	globalRegistryOnce sync.Once
	globalRegistryInst *Registry
)

// defaultRegistry returns the process-wide singleton every
// LoaderHandle uses unless constructed against an explicit *Registry.
// Lazily initialising it on first use (rather than at package
// var-init time) matches §9's requirement that the global storage
// exist before any plugin library's init() functions run, since
// library loading can only happen after a LoaderHandle -- and hence
// this function -- has already been reached.
func defaultRegistry() *Registry {
	globalRegistryOnce.Do(func() {
		globalRegistryInst = NewRegistry()
	})
	return globalRegistryInst
}

func (r *Registry) factoryMapLocked(baseID string) map[string]metaObjectBase {
	m, ok := r.directory[baseID]
	if !ok {
		m = make(map[string]metaObjectBase)
		r.directory[baseID] = m
	}
	return m
}

// registerPlugin is invoked (indirectly, via Register) from a
// library's init() function. It implements spec §4.4's Registration
// algorithm.
func registerPlugin[Base any](r *Registry, className string, ctor func() Base) {
	r.dirMu.Lock()
	defer r.dirMu.Unlock()

	loader := r.activeLoader
	libPath := r.loadingLibraryPath

	if loader == nil {
		if !r.nonPureLibraryOpened {
			sink.Warnf("classloader: a library containing plugins was opened through a means "+
				"other than a LoaderHandle (registering class %q). This library can never be "+
				"safely unloaded once any registration like this has happened.", className)
		}
		r.nonPureLibraryOpened = true
	}

	mo := newMetaObject[Base](className, ctor)
	mo.setLibraryPath(libPath)
	mo.owners().add(loader)

	baseID := baseIdentity[Base]()
	fm := r.factoryMapLocked(baseID)
	if _, exists := fm[className]; exists {
		sink.Warnf("classloader: registration collision for class %q (base %q); "+
			"the newly registered factory replaces the existing one", className, mo.baseClassName())
	}
	fm[className] = mo

	sink.Debugf("classloader: registered class %q (base %q) from library %q, loader=%p",
		className, mo.baseClassName(), libPath, loader)
}

// createInstance implements spec §4.4's Creation algorithm.
func createInstance[Base any](r *Registry, className string, loader *LoaderHandle) (Base, error) {
	var zero Base

	r.dirMu.Lock()
	fm := r.factoryMapLocked(baseIdentity[Base]())
	mo, found := fm[className]
	r.dirMu.Unlock()

	if !found {
		sink.Errorf("classloader: no metaobject exists for class %q", className)
		return zero, newCreateClassError(className)
	}

	typed, ok := mo.(creator[Base])
	if !ok {
		// Happens when two different Base types share one identity
		// string: reflect.Type.String() qualifies a type by its package
		// name, not its import path, so distinct interface types can
		// collide.
		return zero, newCreateClassError(className)
	}

	if mo.owners().isOwnedBy(loader) {
		return typed.create(), nil
	}
	if mo.owners().isOwnedBy(nil) {
		sink.Debugf("classloader: class %q has no owning loader (registered outside a "+
			"LoaderHandle); creating an orphaned instance anyway", className)
		return typed.create(), nil
	}
	return zero, newCreateClassError(className)
}

// getAvailableClasses implements spec §4.4's class listing.
func getAvailableClasses[Base any](r *Registry, loader *LoaderHandle) []string {
	r.dirMu.Lock()
	defer r.dirMu.Unlock()

	fm := r.factoryMapLocked(baseIdentity[Base]())
	var owned, orphaned []string
	for name, mo := range fm {
		switch {
		case mo.owners().isOwnedBy(loader):
			owned = append(owned, name)
		case mo.owners().isOwnedBy(nil):
			orphaned = append(orphaned, name)
		}
	}
	return append(owned, orphaned...)
}

func (r *Registry) allMetaObjectsLocked() []metaObjectBase {
	var all []metaObjectBase
	for _, fm := range r.directory {
		for _, mo := range fm {
			all = append(all, mo)
		}
	}
	return all
}

func filterByLibrary(all []metaObjectBase, path string) []metaObjectBase {
	var out []metaObjectBase
	for _, mo := range all {
		if mo.libraryPath() == path {
			out = append(out, mo)
		}
	}
	return out
}

func filterByOwner(all []metaObjectBase, loader *LoaderHandle) []metaObjectBase {
	var out []metaObjectBase
	for _, mo := range all {
		if mo.owners().isOwnedBy(loader) {
			out = append(out, mo)
		}
	}
	return out
}

// librariesUsedBy returns every distinct library path referenced by
// meta-objects owned by loader. Ported from the original's
// getAllLibrariesUsedByPluginLoader (PluginLoaderCore.cpp).
func (r *Registry) librariesUsedBy(loader *LoaderHandle) []string {
	r.dirMu.Lock()
	owned := filterByOwner(r.allMetaObjectsLocked(), loader)
	r.dirMu.Unlock()

	seen := make(map[string]bool)
	var libs []string
	for _, mo := range owned {
		p := mo.libraryPath()
		if !seen[p] {
			seen[p] = true
			libs = append(libs, p)
		}
	}
	return libs
}

func (r *Registry) findLoadedLocked(path string) (*llEntry, bool) {
	return r.llt.find(path)
}

// isLibraryLoadedByAnybody reports whether any LoaderHandle, anywhere
// in the process, currently has path open.
func (r *Registry) isLibraryLoadedByAnybody(path string) bool {
	r.lltMu.Lock()
	defer r.lltMu.Unlock()
	_, ok := r.findLoadedLocked(path)
	return ok
}

// isLibraryLoaded reports whether path is loaded within loader's
// scope specifically (§4.6's isLibraryLoaded semantics, ported from
// the original's plugin::impl::isLibraryLoaded).
func (r *Registry) isLibraryLoaded(path string, loader *LoaderHandle) bool {
	if !r.isLibraryLoadedByAnybody(path) {
		return false
	}
	r.dirMu.Lock()
	all := filterByLibrary(r.allMetaObjectsLocked(), path)
	owned := filterByOwner(all, loader)
	r.dirMu.Unlock()
	if len(all) == 0 {
		return true
	}
	return len(owned) <= len(all)
}

func (r *Registry) addOwnerForExistingLocked(path string, loader *LoaderHandle) {
	for _, mo := range filterByLibrary(r.allMetaObjectsLocked(), path) {
		mo.owners().add(loader)
	}
}

func (r *Registry) reviveFromGraveyardLocked(path string, loader *LoaderHandle) {
	for _, mo := range r.graveyard {
		if mo.libraryPath() != path {
			continue
		}
		mo.owners().add(loader)
		fm := r.factoryMapLocked(mo.baseIdentity())
		fm[mo.className()] = mo
		sink.Debugf("classloader: revived class %q (base %q) from graveyard for library %q",
			mo.className(), mo.baseClassName(), path)
	}
}

// purgeGraveyardLocked removes every graveyard entry for path. When
// deleteObjs is true, entries that were not revived into the current
// directory (i.e. genuinely stale) are dropped for good; entries that
// were revived are only unlinked from the graveyard slice, since the
// directory still references the same object -- ported from
// purgeGraveyardOfMetaobjects in PluginLoaderCore.cpp.
func (r *Registry) purgeGraveyardLocked(path string, deleteObjs bool) {
	live := make(map[metaObjectBase]bool)
	for _, mo := range r.allMetaObjectsLocked() {
		live[mo] = true
	}

	kept := r.graveyard[:0]
	for _, mo := range r.graveyard {
		if mo.libraryPath() != path {
			kept = append(kept, mo)
			continue
		}
		if live[mo] {
			sink.Debugf("classloader: purged revived class %q from graveyard (still referenced by directory)", mo.className())
			continue
		}
		if deleteObjs && !r.nonPureLibraryOpened {
			sink.Debugf("classloader: discarding stale graveyard entry for class %q (library %q)", mo.className(), path)
			continue
		}
		kept = append(kept, mo)
	}
	r.graveyard = kept
}

// loadLibrary implements spec §4.4's Load-library algorithm.
func (r *Registry) loadLibrary(path string, loader *LoaderHandle) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	sink.Debugf("classloader: attempting to load library %q on behalf of loader %p", path, loader)

	if r.isLibraryLoadedByAnybody(path) {
		r.dirMu.Lock()
		r.addOwnerForExistingLocked(path, loader)
		r.dirMu.Unlock()
		sink.Debugf("classloader: library %q already resident; bound existing metaobjects to loader %p", path, loader)
		return nil
	}

	handle, err := openLibrary(path, r, loader)
	if err != nil {
		return newLibraryLoadError(path, err)
	}

	r.dirMu.Lock()
	numForLib := len(filterByLibrary(r.allMetaObjectsLocked(), path))
	if numForLib == 0 {
		sink.Debugf("classloader: library %q registered no new factories; checking graveyard", path)
		r.reviveFromGraveyardLocked(path, loader)
		r.purgeGraveyardLocked(path, false)
	} else {
		sink.Debugf("classloader: library %q registered %d new factories; discarding any stale graveyard entries", path, numForLib)
		r.purgeGraveyardLocked(path, true)
	}
	r.dirMu.Unlock()

	r.lltMu.Lock()
	r.llt.append(path, handle)
	r.lltMu.Unlock()
	return nil
}

// unloadLibrary implements spec §4.4's Unload-library algorithm.
func (r *Registry) unloadLibrary(path string, loader *LoaderHandle) error {
	if r.nonPureLibraryOpened {
		sink.Warnf("classloader: refusing to unload %q (or any other library): a non-pure "+
			"plugin library has been opened and it is no longer safe to close anything", path)
		return nil
	}

	r.lltMu.Lock()
	entry, ok := r.findLoadedLocked(path)
	r.lltMu.Unlock()
	if !ok {
		return newLibraryUnloadError(path, nil)
	}

	r.dirMu.Lock()
	fm := r.directory
	for _, classes := range fm {
		for name, mo := range classes {
			if mo.libraryPath() != path || !mo.owners().isOwnedBy(loader) {
				continue
			}
			mo.owners().remove(loader)
			if !mo.owners().isOwnedByAnybody() {
				delete(classes, name)
				r.graveyard = append(r.graveyard, mo)
				sink.Debugf("classloader: moved class %q (library %q) to the graveyard; no owners remain", name, path)
			}
		}
	}
	remaining := len(filterByLibrary(r.allMetaObjectsLocked(), path))
	r.dirMu.Unlock()

	if remaining > 0 {
		sink.Debugf("classloader: %d metaobjects for library %q still owned by other loaders; keeping it open", remaining, path)
		return nil
	}

	sink.Debugf("classloader: no metaobjects remain for library %q; closing it", path)
	if err := entry.handle.Close(); err != nil {
		return newLibraryUnloadError(path, err)
	}
	r.lltMu.Lock()
	r.llt.remove(path)
	r.lltMu.Unlock()
	return nil
}

// DebugInfo is a snapshot for diagnostics, ported from the original's
// printDebugInfoToScreen (PluginLoaderCore.cpp).
type DebugInfo struct {
	OpenLibraries []string
	MetaObjects   []DebugMetaObject
}

// DebugMetaObject is one entry of DebugInfo.
type DebugMetaObject struct {
	ClassName     string
	BaseClassName string
	LibraryPath   string
	OwnerCount    int
}

// DebugSnapshot returns a point-in-time view of every open library and
// every live meta-object, for diagnostics or tests.
func (r *Registry) DebugSnapshot() DebugInfo {
	r.lltMu.Lock()
	libs := r.llt.paths()
	r.lltMu.Unlock()

	r.dirMu.Lock()
	defer r.dirMu.Unlock()
	var mos []DebugMetaObject
	for _, mo := range r.allMetaObjectsLocked() {
		mos = append(mos, DebugMetaObject{
			ClassName:     mo.className(),
			BaseClassName: mo.baseClassName(),
			LibraryPath:   mo.libraryPath(),
			OwnerCount:    len(mo.owners().counts),
		})
	}
	return DebugInfo{OpenLibraries: libs, MetaObjects: mos}
}

// DebugDump renders DebugSnapshot for human inspection, the Go
// equivalent of the original's printDebugInfoToScreen, without
// needing a hand-written formatter for the nested slice of structs.
func (r *Registry) DebugDump() string {
	return spew.Sdump(r.DebugSnapshot())
}
