package marshal

import (
	"encoding/json"
	"runtime"
	"unsafe"

	"github.com/robofabric/fabric/internal/fabricerr"
	"github.com/robofabric/fabric/internal/wire"
)

// Param is one named, typed parameter or return slot in declared order.
// The wire schema (wire.Function) carries no ordering guarantee, so the
// caller — the machine-side capability registry — supplies it here.
type Param struct {
	Name string
	Code wire.TypeCode
}

// Callback is the native entry point a registered capability exposes,
// modeled directly on spec.md §6's RegisterFunction signature
// "(const void* const*, void* const*) -> void".
type Callback func(params []unsafe.Pointer, returns []unsafe.Pointer)

// Call implements the five-step ordering rule from spec.md §4.B: allocate
// inputs in declared order, allocate outputs in declared order, invoke the
// callback, serialize outputs while inputs are still live (outputs may
// alias input memory), then release outputs and let inputs go.
func Call(paramOrder, returnOrder []Param, args map[string]json.RawMessage, cb Callback) (map[string]json.RawMessage, error) {
	inputs := make([]*OwnedInputBuffer, len(paramOrder))
	for i, p := range paramOrder {
		raw, ok := args[p.Name]
		if !ok {
			return nil, fabricerr.Newf(fabricerr.MissingRequiredValue, "missing parameter %q", p.Name)
		}
		buf, err := NewInputBuffer(p.Code, raw)
		if err != nil {
			return nil, err
		}
		inputs[i] = buf
	}

	outputs := make([]*OwnedOutputBuffer, len(returnOrder))
	for i, r := range returnOrder {
		buf, err := NewOutputBuffer(r.Code)
		if err != nil {
			return nil, err
		}
		outputs[i] = buf
	}

	paramPtrs := make([]unsafe.Pointer, len(inputs))
	for i, b := range inputs {
		paramPtrs[i] = b.Pointer()
	}
	returnPtrs := make([]unsafe.Pointer, len(outputs))
	for i, b := range outputs {
		returnPtrs[i] = b.Pointer()
	}

	cb(paramPtrs, returnPtrs)

	result := make(map[string]json.RawMessage, len(returnOrder))
	var firstErr error
	for i, r := range returnOrder {
		j, err := outputs[i].ToJSON()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		result[r.Name] = j
	}

	for _, b := range outputs {
		b.Release()
	}
	// Inputs must outlive both the callback invocation and output
	// serialization above, since outputs may alias input memory.
	runtime.KeepAlive(inputs)

	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}
