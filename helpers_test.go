package classloader

import "sync"

// fakeHandle is an in-process sharedLibraryHandle used by the tests in
// this package to exercise the registry's load/unload algorithm
// without a real compiled .so or .o on disk. It is registered under
// the ".fake" extension by withFakeBackend.
type fakeHandle struct {
	mu      sync.Mutex
	loaded  bool
	onClose func() error
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return nil
	}
	h.loaded = false
	if h.onClose != nil {
		return h.onClose()
	}
	return nil
}

func (h *fakeHandle) IsLoaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

func (h *fakeHandle) FindSymbol(string) (any, bool) { return nil, false }

// fakeRegistrations maps a fake library path to the registration
// function that should run as though it were that library's init().
var fakeRegistrations = map[string]func(){}

func openFakeLibrary(path string) (sharedLibraryHandle, error) {
	if register, ok := fakeRegistrations[path]; ok {
		register()
	}
	return &fakeHandle{loaded: true}, nil
}

// withFakeBackend installs the ".fake" extension for the duration of
// a test and tears it down afterward, along with any registrations
// set up via fakeRegistrations.
func withFakeBackend(t testingT, path string, register func()) {
	t.Helper()
	backendOpeners[".fake"] = openFakeLibrary
	if register != nil {
		fakeRegistrations[path] = register
	}
	t.Cleanup(func() {
		delete(backendOpeners, ".fake")
		delete(fakeRegistrations, path)
	})
}

// testingT is the subset of *testing.T withFakeBackend needs, kept
// minimal so this file has no direct "testing" dependency at the
// package level beyond what each _test.go already imports.
type testingT interface {
	Helper()
	Cleanup(func())
}

// animal and friends are the base interfaces and plugin types shared
// by this package's tests.
type animal interface {
	Speak() string
}

type invalidAnimal interface {
	Speak() string
}

type testCat struct{}

func (testCat) Speak() string { return "meow" }

type testDog struct{}

func (testDog) Speak() string { return "woof" }

type testRobot struct{}

func (testRobot) Speak() string { return "beep boop" }
