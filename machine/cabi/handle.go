package main

/*
#include <stdint.h>
*/
import "C"

import (
	"runtime/cgo"

	"github.com/robofabric/fabric/internal/fabricerr"
	"github.com/robofabric/fabric/machine"
)

// lookup resolves a uintptr_t handed back across the ABI to the
// machine.Machine it denotes. A null or stale handle is the caller's
// InvalidHandle.
func lookup(h C.uintptr_t) (m *machine.Machine, ok bool) {
	if h == 0 {
		return nil, false
	}
	defer func() {
		// cgo.Handle.Value panics on a handle that was already deleted.
		if recover() != nil {
			m, ok = nil, false
		}
	}()
	v := cgo.Handle(h).Value()
	m, ok = v.(*machine.Machine)
	return m, ok
}

func kindCode(err error) C.int {
	if err == nil {
		return C.int(fabricerr.NoError)
	}
	return C.int(fabricerr.KindOf(err))
}
