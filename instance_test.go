package classloader

import "testing"

func TestInstanceCloneSharesReleaseObligation(t *testing.T) {
	r := NewRegistry()
	path := "p1.fake"
	withFakeBackend(t, path, func() {
		registerPlugin[animal](r, "Cat", func() animal { return testCat{} })
	})

	lh, err := NewLoaderHandleWithRegistry(path, true, r)
	if err != nil {
		t.Fatalf("NewLoaderHandleWithRegistry: %v", err)
	}

	inst, err := CreateInstance[animal](lh, "Cat")
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	clone := inst.Clone()

	inst.Release()
	if lh.IsLibraryLoadedByAnybody() == false {
		t.Fatal("expected the library to stay loaded while a clone is still outstanding")
	}

	clone.Release()
	if lh.IsLibraryLoadedByAnybody() {
		t.Fatal("expected the library to unload once every clone has released")
	}
}

func TestUniqueInstanceReleaseIsIdempotent(t *testing.T) {
	r := NewRegistry()
	path := "p1.fake"
	withFakeBackend(t, path, func() {
		registerPlugin[animal](r, "Dog", func() animal { return testDog{} })
	})

	lh, err := NewLoaderHandleWithRegistry(path, true, r)
	if err != nil {
		t.Fatalf("NewLoaderHandleWithRegistry: %v", err)
	}

	inst, err := CreateUniqueInstance[animal](lh, "Dog")
	if err != nil {
		t.Fatalf("CreateUniqueInstance: %v", err)
	}
	inst.Release()
	if lh.IsLibraryLoadedByAnybody() {
		t.Fatal("expected the library to unload after release")
	}

	// A second Release must not double-decrement the loader's count.
	inst.Release()
	if lh.LoadCount() != 0 {
		t.Fatalf("expected load count to stay at 0 after a redundant Release, got %d", lh.LoadCount())
	}
}
