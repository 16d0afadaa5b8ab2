// Package marshal implements the machine-side marshalling bridge (spec.md
// §4.B): converting decoded JSON parameter/return values into stable,
// pointer-addressable buffers that match the native callback ABI described
// in spec.md §6, and converting the callback's written results back to
// JSON.
//
// There is no cgo here. A registered capability's native callback is
// modeled directly as a Go function operating on unsafe.Pointer buffers —
// func(params []unsafe.Pointer, returns []unsafe.Pointer) — which is the
// same shape the real C ABI table in spec.md §6 describes once each
// []unsafe.Pointer is passed across a cgo boundary as a const void* const*.
// machine/cabi builds that cgo boundary on top of this package; it does not
// reimplement marshalling.
//
// Layout per type code, grounded on original_source/native/rs/src/marshall.rs:
//
//   - scalar: pointer to a single fixed-size value.
//   - primitive array: pointer to an arrayHeader{Length int32, Data unsafe.Pointer}.
//   - string: pointer to a char*-sized cell holding the address of a
//     null-terminated byte copy (one more level of indirection than a
//     scalar, exactly as InputStringMarshall.data() returns
//     "&self.data as *const *const c_char").
//   - string array: pointer to an arrayHeader whose Data points at a
//     contiguous run of string-cell addresses.
package marshal
