package classloader

import "reflect"

// baseIdentity returns the string identity of a base-interface type
// parameter, the Go analogue of typeid(Base).name() in §3: it is not
// the human class name, it is compared bytewise, and two Base type
// parameters with the same string are treated as "the same base".
// The string is reflect's Type.String(), which qualifies the type by
// package name rather than import path, so same-named interfaces from
// two packages with the same name share one identity.
func baseIdentity[Base any]() string {
	return reflect.TypeOf((*Base)(nil)).Elem().String()
}

// baseHumanName returns the unqualified human name of a base
// interface type parameter, used only for diagnostics (§4.3's
// base-interface-human-name field).
func baseHumanName[Base any]() string {
	return reflect.TypeOf((*Base)(nil)).Elem().Name()
}
