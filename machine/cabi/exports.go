// Package cabi's exported functions are the literal ABI table from
// SPEC_FULL.md §6. Every entry point returns a fabricerr.Kind cast to
// int — the enum form the spec recommends over historical booleans — and
// performs the mandated null-pointer checks before touching its handle.
package main

/*
#include <stdint.h>
#include "cabi.h"
*/
import "C"

import (
	"os"
	"runtime/cgo"
	"strconv"

	"github.com/robofabric/fabric/internal/fabricerr"
	"github.com/robofabric/fabric/machine"
)

//export InitializeLibrary
func InitializeLibrary() C.uintptr_t {
	h := cgo.NewHandle(machine.New())
	return C.uintptr_t(h)
}

//export ShutdownLibrary
func ShutdownLibrary(handle C.uintptr_t) C.int {
	m, ok := lookup(handle)
	if !ok {
		return C.int(fabricerr.InvalidHandle)
	}
	err := m.Shutdown()
	cgo.Handle(handle).Delete()
	return kindCode(err)
}

//export SetName
func SetName(handle C.uintptr_t, name *C.char) C.int {
	m, ok := lookup(handle)
	if !ok {
		return C.int(fabricerr.InvalidHandle)
	}
	if name == nil {
		return C.int(fabricerr.NullParameter)
	}
	return kindCode(m.SetName(C.GoString(name)))
}

//export SetReset
func SetReset(handle C.uintptr_t, reset C.reset_callback) C.int {
	m, ok := lookup(handle)
	if !ok {
		return C.int(fabricerr.InvalidHandle)
	}
	return kindCode(m.SetReset(wrapResetCallback(reset)))
}

//export RegisterFunction
func RegisterFunction(handle C.uintptr_t, name *C.char, parameters, returns **C.char, callback C.function_callback) C.int {
	m, ok := lookup(handle)
	if !ok {
		return C.int(fabricerr.InvalidHandle)
	}
	if name == nil {
		return C.int(fabricerr.NullParameter)
	}
	if callback == nil {
		return C.int(fabricerr.NullParameter)
	}
	params, err := parseDescriptors(parameters)
	if err != nil {
		return C.int(fabricerr.InvalidParameter)
	}
	rets, err := parseDescriptors(returns)
	if err != nil {
		return C.int(fabricerr.InvalidParameter)
	}
	return kindCode(m.RegisterFunction(C.GoString(name), params, rets, wrapFunctionCallback(callback)))
}

//export RegisterSensor
func RegisterSensor(handle C.uintptr_t, name *C.char, min, max C.double, callback C.sensor_callback) C.int {
	m, ok := lookup(handle)
	if !ok {
		return C.int(fabricerr.InvalidHandle)
	}
	if name == nil {
		return C.int(fabricerr.NullParameter)
	}
	if callback == nil {
		return C.int(fabricerr.NullParameter)
	}
	return kindCode(m.RegisterSensor(C.GoString(name), float64(min), float64(max), wrapSensorCallback(callback)))
}

//export RegisterAxis
func RegisterAxis(handle C.uintptr_t, name *C.char, min, max C.double, group, direction *C.char, callback C.axis_callback) C.int {
	m, ok := lookup(handle)
	if !ok {
		return C.int(fabricerr.InvalidHandle)
	}
	if name == nil {
		return C.int(fabricerr.NullParameter)
	}
	if callback == nil {
		return C.int(fabricerr.NullParameter)
	}
	groupStr, dirStr := "", ""
	if group != nil {
		groupStr = C.GoString(group)
	}
	if direction != nil {
		dirStr = C.GoString(direction)
	}
	return kindCode(m.RegisterAxis(C.GoString(name), float64(min), float64(max), groupStr, dirStr, wrapAxisCallback(callback)))
}

//export RegisterStream
func RegisterStream(handle C.uintptr_t, name, format *C.char, fd C.int) C.int {
	m, ok := lookup(handle)
	if !ok {
		return C.int(fabricerr.InvalidHandle)
	}
	if name == nil || format == nil {
		return C.int(fabricerr.NullParameter)
	}
	f := os.NewFile(uintptr(fd), C.GoString(name))
	return kindCode(m.RegisterStream(C.GoString(name), C.GoString(format), f))
}

//export ConnectToServer
func ConnectToServer(handle C.uintptr_t, server *C.char, port, streamPort C.uint16_t) C.int {
	m, ok := lookup(handle)
	if !ok {
		return C.int(fabricerr.InvalidHandle)
	}
	if server == nil {
		return C.int(fabricerr.NullParameter)
	}
	addr := C.GoString(server)
	controlAddr := addr + ":" + strconv.Itoa(int(port))
	mediaAddr := addr + ":" + strconv.Itoa(int(streamPort))
	return kindCode(m.Connect(controlAddr, mediaAddr))
}

//export LibraryUpdate
func LibraryUpdate(handle C.uintptr_t) C.int {
	m, ok := lookup(handle)
	if !ok {
		return C.int(fabricerr.InvalidHandle)
	}
	return kindCode(m.Update())
}
