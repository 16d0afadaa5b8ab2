package wire

// Function describes a callable capability's wire-visible shape: named,
// typed parameters and named, typed returns. JSON objects carry no
// ordering guarantee, so the *declared* parameter/return order the
// marshalling bridge relies on (spec.md §4.B) is tracked separately by the
// machine-side capability registry (machine.Function), not here.
type Function struct {
	Parameters map[string]TypeCode `json:"parameters"`
	Returns    map[string]TypeCode `json:"returns"`
}

// Sensor describes a pollable scalar capability.
type Sensor struct {
	OutputType TypeCode `json:"type"`
	Min        float64  `json:"min"`
	Max        float64  `json:"max"`
}

// Axis describes a writable scalar capability.
type Axis struct {
	InputType TypeCode `json:"type"`
	Min       float64  `json:"min"`
	Max       float64  `json:"max"`
	Group     string   `json:"group,omitempty"`
	Direction string   `json:"direction,omitempty"`
}

// BufferMethod controls how a stream's broadcast channel handles a slow
// subscriber. Only Frames is implemented (spec.md §9 decision 4): the
// machine library always announces Frames, and the server never consults
// the field, so a Bytes or NoDiscard value is accepted and ignored.
type BufferMethod string

const (
	BufferFrames   BufferMethod = "frames"
	BufferBytes    BufferMethod = "bytes"
	BufferNoDiscard BufferMethod = "no_discard"
)

// Stream describes a raw media capability.
type Stream struct {
	Format       string       `json:"format"`
	BufferMethod BufferMethod `json:"buffer_method,omitempty"`
}
