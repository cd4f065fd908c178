package classloader

// Register is the Go analogue of spec §4.8's REGISTER_CLASS macro. A
// plugin library calls it from an init() function, once per (derived
// type, Base) pair:
//
//	func init() {
//		classloader.Register[Animal]("Cat", func() Animal { return Cat{} })
//	}
//
// Because plugin.Open (and goloader.Load) run the opened package's
// init() functions synchronously and before returning, this always
// happens while the registry's currently-loading-library and
// currently-active-loader ambients are set, exactly as if it were a
// static initializer running during a C++ dlopen.
//
// Go's generics and first-class functions make the C++ macro's
// "uniquely named static object with a compilation-counter token"
// trick unnecessary: there is no code generation step to collide, so
// a plain function call from init() is both the macro expansion and
// the registration call in one.
func Register[Base any](className string, ctor func() Base) {
	registerPlugin[Base](defaultRegistry(), className, ctor)
}
