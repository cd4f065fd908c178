package classloader

import (
	"fmt"
	"path/filepath"
	"strings"
)

// sharedLibraryHandle is the Go shape of spec §4.1's Shared-Library
// Primitive: open-by-path already happened by the time a value of
// this type exists (construction doubles as open), close requests
// unload, isLoaded reports the primitive's belief about residency,
// and findSymbol resolves an exported name.
//
// Two backends implement it: nativeLibrary (nativelib.go, stdlib
// "plugin") for real .so files, and objectLibrary (objectlib.go,
// goloader) for relocatable .o/.a files. Each backend serializes its
// own four operations behind a single internal lock, per §4.1.
type sharedLibraryHandle interface {
	Close() error
	IsLoaded() bool
	FindSymbol(name string) (any, bool)
}

// backendOpeners maps a file extension to the function that opens it.
// A plain function dispatch would do just as well, but keeping it as
// a map lets tests register a fake in-process backend (see
// registry_test.go's ".fake" entries) to exercise the registry's
// lifecycle algorithm without needing a real compiled .so or .o on
// disk for every scenario.
var backendOpeners = map[string]func(path string) (sharedLibraryHandle, error){
	".so":     openNativeLibrary,
	".dylib":  openNativeLibrary,
	".dll":    openNativeLibrary,
	"":        openNativeLibrary,
	".o":      openObjectLibrary,
	".a":      openObjectLibrary,
}

// openBackendHandle dispatches to a backend by file extension. This
// is the one place the two backends are chosen between; everything
// above it in the registry is backend-agnostic.
func openBackendHandle(path string) (sharedLibraryHandle, error) {
	file, _ := splitObjectPath(path)
	ext := strings.ToLower(filepath.Ext(file))
	open, ok := backendOpeners[ext]
	if !ok {
		return nil, fmt.Errorf("classloader: unrecognized plugin library extension %q", ext)
	}
	return open(path)
}

// openLibrary opens path through the appropriate backend while
// maintaining the ambient "currently loading library" / "currently
// active loader" state that registerPlugin reads. Per spec §4.4 step
// 3, the ambients are set and cleared under DIR_LOCK, but the
// backend's actual open call -- during which the library's init()
// functions run and may recursively call back into the registry --
// happens with no registry lock held.
func openLibrary(path string, r *Registry, loader *LoaderHandle) (sharedLibraryHandle, error) {
	r.dirMu.Lock()
	r.loadingLibraryPath = path
	r.activeLoader = loader
	r.dirMu.Unlock()

	handle, err := openBackendHandle(path)

	r.dirMu.Lock()
	r.loadingLibraryPath = ""
	r.activeLoader = nil
	r.dirMu.Unlock()

	return handle, err
}
