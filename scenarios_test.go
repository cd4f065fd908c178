package classloader

import (
	"errors"
	"sync"
	"testing"
)

// TestNonExistentPlugin is spec scenario 3.
func TestNonExistentPlugin(t *testing.T) {
	r := NewRegistry()
	path := "p1.fake"
	withFakeBackend(t, path, func() {
		registerPlugin[animal](r, "Cat", func() animal { return testCat{} })
	})

	lh, err := NewLoaderHandleWithRegistry(path, false, r)
	if err != nil {
		t.Fatalf("NewLoaderHandleWithRegistry: %v", err)
	}
	_, err = CreateInstance[animal](lh, "Bear")
	var classErr *CreateClassError
	if !errors.As(err, &classErr) {
		t.Fatalf("expected *CreateClassError for an unregistered class, got %T: %v", err, err)
	}
}

// TestNonExistentLibrary is spec scenario 4.
func TestNonExistentLibrary(t *testing.T) {
	r := NewRegistry()
	_, err := NewLoaderHandleWithRegistry("libDoesNotExist.fake", false, r)
	var loadErr *LibraryLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LibraryLoadError for an eager load of a missing library, got %T: %v", err, err)
	}
}

// TestConcurrentCreateInstance is spec scenario 7: many goroutines
// hammering a single shared LoaderHandle must neither crash nor leave
// any create failing.
func TestConcurrentCreateInstance(t *testing.T) {
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

	const goroutines = 1000
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for _, name := range GetAvailableClasses[animal](lh) {
				inst, err := CreateInstance[animal](lh, name)
				if err != nil {
					errs <- err
					return
				}
				inst.Value.Speak()
				inst.Release()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent CreateInstance failed: %v", err)
	}
	if !lh.IsLibraryLoadedByAnybody() {
		t.Fatal("expected the non-lazy handle to remain loaded after the stress run")
	}
}

// TestMathOperations is spec scenario 8. The four operations are
// registered here as inline closures and loaded through the fake
// Shared-Library Primitive backend this package's tests use.
func TestMathOperations(t *testing.T) {
	r := NewRegistry()
	path := "mathops.fake"

	type operation interface {
		MathFunction(a, b float64) float64
	}
	withFakeBackend(t, path, func() {
		registerPlugin[operation](r, "PlusOperation", func() operation { return mathOpFunc(func(a, b float64) float64 { return a + b }) })
		registerPlugin[operation](r, "SubstractOperation", func() operation { return mathOpFunc(func(a, b float64) float64 { return a - b }) })
		registerPlugin[operation](r, "MultiplyOperation", func() operation { return mathOpFunc(func(a, b float64) float64 { return a * b }) })
		registerPlugin[operation](r, "DivideOperation", func() operation {
			return mathOpFunc(func(a, b float64) float64 {
				if b == 0 {
					return 0
				}
				return a / b
			})
		})
	})

	lh, err := NewLoaderHandleWithRegistry(path, false, r)
	if err != nil {
		t.Fatalf("NewLoaderHandleWithRegistry: %v", err)
	}

	cases := []struct {
		class string
		want  float64
	}{
		{"PlusOperation", 3.0},
		{"SubstractOperation", -1.0},
		{"MultiplyOperation", 2.0},
		{"DivideOperation", 0.5},
	}
	for _, c := range cases {
		inst, err := createInstance[operation](r, c.class, lh)
		if err != nil {
			t.Fatalf("createInstance(%s): %v", c.class, err)
		}
		if got := inst.MathFunction(1.0, 2.0); got != c.want {
			t.Fatalf("%s(1.0, 2.0) = %v, want %v", c.class, got, c.want)
		}
	}

	divide, err := createInstance[operation](r, "DivideOperation", lh)
	if err != nil {
		t.Fatalf("createInstance(DivideOperation): %v", err)
	}
	if got := divide.MathFunction(1.0, 0.0); got != 0.0 {
		t.Fatalf("DivideOperation(1.0, 0.0) = %v, want 0.0", got)
	}
}

type mathOpFunc func(a, b float64) float64

func (f mathOpFunc) MathFunction(a, b float64) float64 { return f(a, b) }
