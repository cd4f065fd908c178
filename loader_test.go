package classloader

import "testing"

func TestLazyLoaderSelfUnloads(t *testing.T) {
	r := NewRegistry()
	path := "p1.fake"
	withFakeBackend(t, path, func() {
		registerPlugin[animal](r, "Cat", func() animal { return testCat{} })
	})

	lh, err := NewLoaderHandleWithRegistry(path, true, r)
	if err != nil {
		t.Fatalf("NewLoaderHandleWithRegistry: %v", err)
	}
	if lh.IsLibraryLoadedByAnybody() {
		t.Fatal("a lazy handle must not load before the first create")
	}

	inst, err := CreateInstance[animal](lh, "Cat")
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	if !lh.IsLibraryLoadedByAnybody() {
		t.Fatal("expected the library to be resident once an instance is outstanding")
	}

	inst.Release()
	if lh.IsLibraryLoadedByAnybody() {
		t.Fatal("expected the library to self-unload once the instance is released")
	}
}

func TestRefCountingLazySequence(t *testing.T) {
	r := NewRegistry()
	path := "p1.fake"
	withFakeBackend(t, path, func() {
		registerPlugin[animal](r, "Dog", func() animal { return testDog{} })
	})

	lh, err := NewLoaderHandleWithRegistry(path, true, r)
	if err != nil {
		t.Fatalf("NewLoaderHandleWithRegistry: %v", err)
	}

	inst, err := CreateInstance[animal](lh, "Dog")
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	inst.Release()
	if lh.IsLibraryLoadedByAnybody() {
		t.Fatal("expected unloaded after release")
	}

	if err := lh.LoadLibrary(); err != nil {
		t.Fatalf("loadLibrary #1: %v", err)
	}
	if !lh.IsLibraryLoadedByAnybody() || lh.LoadCount() != 1 {
		t.Fatalf("expected loaded, count 1; got loaded=%v count=%d", lh.IsLibraryLoadedByAnybody(), lh.LoadCount())
	}

	if err := lh.LoadLibrary(); err != nil {
		t.Fatalf("loadLibrary #2: %v", err)
	}
	if lh.LoadCount() != 2 {
		t.Fatalf("expected count 2, got %d", lh.LoadCount())
	}

	if err := lh.UnloadLibrary(); err != nil {
		t.Fatalf("unloadLibrary #1: %v", err)
	}
	if !lh.IsLibraryLoadedByAnybody() || lh.LoadCount() != 1 {
		t.Fatalf("expected still loaded, count 1; got loaded=%v count=%d", lh.IsLibraryLoadedByAnybody(), lh.LoadCount())
	}

	if err := lh.UnloadLibrary(); err != nil {
		t.Fatalf("unloadLibrary #2: %v", err)
	}
	if lh.IsLibraryLoadedByAnybody() {
		t.Fatal("expected unloaded at count 0")
	}

	// A third unload at the floor must be a no-op, not an error.
	if err := lh.UnloadLibrary(); err != nil {
		t.Fatalf("unloadLibrary at floor should be a no-op, got %v", err)
	}
	if lh.LoadCount() != 0 {
		t.Fatalf("expected count to stay at 0, got %d", lh.LoadCount())
	}

	if err := lh.LoadLibrary(); err != nil {
		t.Fatalf("final reload: %v", err)
	}
	if !lh.IsLibraryLoadedByAnybody() {
		t.Fatal("expected loaded again after the final loadLibrary")
	}
}

func TestNonLazyLoaderLoadsEagerly(t *testing.T) {
	r := NewRegistry()
	path := "p1.fake"
	withFakeBackend(t, path, func() {
		registerPlugin[animal](r, "Cat", func() animal { return testCat{} })
	})

	lh, err := NewLoaderHandleWithRegistry(path, false, r)
	if err != nil {
		t.Fatalf("NewLoaderHandleWithRegistry: %v", err)
	}
	if !lh.IsLibraryLoadedByAnybody() {
		t.Fatal("a non-lazy handle must load at construction time")
	}
	if lh.LoadCount() != 1 {
		t.Fatalf("expected initial load count 1, got %d", lh.LoadCount())
	}
}

func TestNewLoaderHandleUnknownLibraryPath(t *testing.T) {
	r := NewRegistry()
	_, err := NewLoaderHandleWithRegistry("does-not-exist.fake", false, r)
	if err == nil {
		t.Fatal("expected an error opening a library with no registered fake backend")
	}
	var loadErr *LibraryLoadError
	if !isLibraryLoadError(err, &loadErr) {
		t.Fatalf("expected a *LibraryLoadError, got %T: %v", err, err)
	}
}

func isLibraryLoadError(err error, target **LibraryLoadError) bool {
	le, ok := err.(*LibraryLoadError)
	if ok {
		*target = le
	}
	return ok
}

func TestInvalidBaseDiscrimination(t *testing.T) {
	r := NewRegistry()
	path := "p1.fake"
	withFakeBackend(t, path, func() {
		registerPlugin[animal](r, "Cat", func() animal { return testCat{} })
	})

	lh, err := NewLoaderHandleWithRegistry(path, false, r)
	if err != nil {
		t.Fatalf("NewLoaderHandleWithRegistry: %v", err)
	}
	if !IsClassAvailable[animal](lh, "Cat") {
		t.Fatal("expected Cat to be available under animal")
	}
	if IsClassAvailable[invalidAnimal](lh, "Cat") {
		t.Fatal("expected Cat to be unavailable under the unrelated invalidAnimal base")
	}
}

func TestLibrariesInUse(t *testing.T) {
	r := NewRegistry()
	path := "p1.fake"
	withFakeBackend(t, path, func() {
		registerPlugin[animal](r, "Cat", func() animal { return testCat{} })
		registerPlugin[animal](r, "Dog", func() animal { return testDog{} })
	})

	lh, err := NewLoaderHandleWithRegistry(path, false, r)
	if err != nil {
		t.Fatalf("NewLoaderHandleWithRegistry: %v", err)
	}
	libs := lh.LibrariesInUse()
	if len(libs) != 1 || libs[0] != path {
		t.Fatalf("expected LibrariesInUse == [%q], got %v", path, libs)
	}
}
