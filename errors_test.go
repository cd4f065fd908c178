package classloader

import (
	"errors"
	"testing"
)

func TestLibraryLoadErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := newLibraryLoadError("p1.so", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected LibraryLoadError to unwrap to its cause")
	}
	if err.Path != "p1.so" {
		t.Fatalf("expected Path to be recorded, got %q", err.Path)
	}
}

func TestLibraryUnloadErrorWithoutCause(t *testing.T) {
	err := newLibraryUnloadError("p1.so", nil)
	if err.Error() == "" {
		t.Fatal("expected a non-empty message even with a nil cause")
	}
	if errors.Unwrap(err) != nil {
		t.Fatal("expected Unwrap to return nil when there is no underlying cause")
	}
}

func TestCreateClassErrorCarriesClassName(t *testing.T) {
	err := newCreateClassError("Bear")
	if err.ClassName != "Bear" {
		t.Fatalf("expected ClassName to be recorded, got %q", err.ClassName)
	}
}
