package classloader

import "fmt"

// PluginLoaderError is the base of every error this package returns
// that originates from plugin lifecycle operations, as opposed to
// plain argument errors. Callers can test for it with errors.As to
// distinguish classloader failures from unrelated ones.
type PluginLoaderError struct {
	Op  string
	Msg string
}

func (e *PluginLoaderError) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return fmt.Sprintf("classloader: %s: %s", e.Op, e.Msg)
}

// LibraryLoadError is returned when the Shared-Library Primitive
// failed to open a library (bad path, load-time symbol resolution
// failure, wrong backend for the file, etc).
type LibraryLoadError struct {
	PluginLoaderError
	Path string
	Err  error
}

func (e *LibraryLoadError) Unwrap() error { return e.Err }

func newLibraryLoadError(path string, err error) *LibraryLoadError {
	return &LibraryLoadError{
		PluginLoaderError: PluginLoaderError{Op: "loadLibrary", Msg: fmt.Sprintf("failed to load %q: %v", path, err)},
		Path:              path,
		Err:               err,
	}
}

// LibraryUnloadError is returned when the Shared-Library Primitive's
// close raised, or when an unload was requested for a library path
// the registry has no record of.
type LibraryUnloadError struct {
	PluginLoaderError
	Path string
	Err  error
}

func (e *LibraryUnloadError) Unwrap() error { return e.Err }

func newLibraryUnloadError(path string, err error) *LibraryUnloadError {
	msg := fmt.Sprintf("could not unload %q", path)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &LibraryUnloadError{
		PluginLoaderError: PluginLoaderError{Op: "unloadLibrary", Msg: msg},
		Path:              path,
		Err:               err,
	}
}

// CreateClassError is returned when no meta-object for a requested
// derived-class name is visible to the requesting loader: either
// none was ever registered, or one exists but is owned by a
// different loader and is not an orphan.
type CreateClassError struct {
	PluginLoaderError
	ClassName string
}

func newCreateClassError(className string) *CreateClassError {
	return &CreateClassError{
		PluginLoaderError: PluginLoaderError{Op: "createInstance", Msg: fmt.Sprintf("could not create instance of class %q", className)},
		ClassName:         className,
	}
}
