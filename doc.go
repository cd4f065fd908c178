/*
Package classloader is a runtime plugin framework for Go: it loads
shared libraries on demand, discovers factory objects those libraries
self-register on load, and hands back polymorphic instances of a
caller-declared base interface.

# Basics

A plugin library exports one or more concrete types behind a shared
Base interface. It registers each type from an init() function using
[Register]:

	package main

	import "github.com/hexforge/classloader"

	type Cat struct{}

	func (Cat) Speak() string { return "meow" }

	func init() {
		classloader.Register[Animal]("Cat", func() Animal { return Cat{} })
	}

A host opens the library through a [LoaderHandle]:

	lh, err := classloader.NewLoaderHandle("./plugins/critters.so", false)
	cat, err := classloader.CreateInstance[Animal](lh, "Cat")

# Reference counting and the graveyard

Multiple LoaderHandles may share one physical library; the library is
only closed once every handle, and every outstanding instance, has
released it. Because the standard plugin package never truly unloads
a shared object once opened, a loader's "unload" is honest bookkeeping
rather than a guarantee the code leaves the process -- see the
registry's graveyard for how it compensates on the next load.

# Backends

Two Shared-Library Primitive backends exist: a native one on top of
the standard "plugin" package for real .so files, and an object one on
top of goloader for relocatable .o/.a files loaded without invoking
the OS dynamic loader at all. The backend is chosen from the library
path's extension; see sharedlib.go.
*/
package classloader
