package main

/*
#include <stdlib.h>
#include "cabi.h"
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/robofabric/fabric/internal/marshal"
	"github.com/robofabric/fabric/internal/wire"
)

// A C function pointer cannot be invoked directly from Go; cgo requires a
// tiny static C trampoline per callback shape (cabi_invoke_* in cabi.h) to
// call through the function pointer handed across the ABI.

func wrapResetCallback(cb C.reset_callback) func() {
	if cb == nil {
		return nil
	}
	return func() { C.cabi_invoke_reset(cb) }
}

func wrapAxisCallback(cb C.axis_callback) func(float64) error {
	return func(value float64) error {
		C.cabi_invoke_axis(cb, C.double(value))
		return nil
	}
}

func wrapSensorCallback(cb C.sensor_callback) func() (float64, error) {
	return func() (float64, error) {
		var out C.double
		C.cabi_invoke_sensor(cb, &out)
		return float64(out), nil
	}
}

// wrapFunctionCallback adapts a C function_callback into marshal.Callback.
// The native callback expects flat const void*const*/void*const* arrays; Go
// slices of unsafe.Pointer cannot be passed to C directly because their
// backing memory is itself a Go pointer holding further Go pointers, so each
// call copies the pointer values into a C-owned scratch buffer for the
// duration of the call only.
func wrapFunctionCallback(cb C.function_callback) marshal.Callback {
	return func(params, returns []unsafe.Pointer) {
		paramsBuf := newPointerArray(params)
		defer C.free(paramsBuf)
		returnsBuf := newPointerArray(returns)
		defer C.free(returnsBuf)

		C.cabi_invoke_function(
			cb,
			(*unsafe.Pointer)(paramsBuf),
			(*unsafe.Pointer)(returnsBuf),
		)
	}
}

func newPointerArray(ptrs []unsafe.Pointer) unsafe.Pointer {
	if len(ptrs) == 0 {
		// A zero-length C.malloc is implementation defined; callbacks with
		// no parameters/returns never dereference the array, so a non-nil
		// one-element buffer keeps the pointer well-defined without a
		// special-cased nil branch at the call site.
		return C.malloc(C.size_t(unsafe.Sizeof(uintptr(0))))
	}
	size := C.size_t(len(ptrs)) * C.size_t(unsafe.Sizeof(uintptr(0)))
	buf := C.malloc(size)
	out := unsafe.Slice((*unsafe.Pointer)(buf), len(ptrs))
	copy(out, ptrs)
	return buf
}

// parseDescriptors walks a flat, null-terminated array of {name, typecode}
// C string pairs — binary-compatible with the "[*const c_char; 2]"
// sentinel-terminated layout original_source/rs/client/src/lib.rs's
// parse_descriptors reads — preserving declared order, which machine.Machine
// needs for positional marshalling (internal/marshal.Param).
func parseDescriptors(pairs **C.char) ([]marshal.Param, error) {
	if pairs == nil {
		return nil, nil
	}
	base := uintptr(unsafe.Pointer(pairs))
	ptrSize := unsafe.Sizeof(uintptr(0))

	var params []marshal.Param
	for i := 0; ; i++ {
		namePtr := *(**C.char)(unsafe.Pointer(base + uintptr(i)*2*ptrSize))
		typePtr := *(**C.char)(unsafe.Pointer(base + (uintptr(i)*2+1)*ptrSize))
		if namePtr == nil || typePtr == nil {
			break
		}
		name := C.GoString(namePtr)
		code := wire.TypeCode(C.GoString(typePtr))
		if !code.Valid() {
			return nil, fmt.Errorf("unrecognized type code %q for parameter %q", code, name)
		}
		params = append(params, marshal.Param{Name: name, Code: code})
	}
	return params, nil
}
