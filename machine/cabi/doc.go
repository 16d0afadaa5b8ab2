// Command cabi builds the C ABI table from SPEC_FULL.md §6
// (InitializeLibrary, ShutdownLibrary, SetName, SetReset, RegisterFunction,
// RegisterSensor, RegisterAxis, RegisterStream, ConnectToServer,
// LibraryUpdate) as cgo //export shims over the pure-Go machine.Machine.
// It is built with `go build -buildmode=c-archive` (or c-shared) to
// produce the static/shared library third-party machine code links
// against — cgo only allows //export in package main, hence the cmd-style
// package despite living under machine/ rather than cmd/.
//
// It does not reimplement capability registration, connection handling, or
// dispatch — those live in package machine — nor does it reimplement value
// marshalling, which lives in internal/marshal. This package only does two
// things: turns raw C arguments (name/type descriptor pairs, a C function
// pointer, a raw fd) into the Go-shaped calls machine.Machine already
// exposes, and turns a machine.Machine instance into an opaque handle a C
// caller can hold across calls.
//
// Handles are runtime/cgo.Handle values cast to uintptr_t at the boundary.
// There is no cgo pattern anywhere in the example corpus this package was
// grounded on to build from, unlike every other package in this module —
// see DESIGN.md for the direct justification.
package main

// main is never invoked: the build produces a library, not an executable,
// but cgo's //export requires package main.
func main() {}
