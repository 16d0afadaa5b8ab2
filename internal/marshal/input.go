package marshal

import (
	"encoding/json"
	"fmt"
	"unsafe"

	"github.com/robofabric/fabric/internal/fabricerr"
	"github.com/robofabric/fabric/internal/wire"
)

// arrayHeader is the stable, pointer-addressable shape handed to the native
// callback for any array-typed buffer (input or output): a length and a
// data pointer, mirroring InputPrimitiveArrayMarshallInner in
// original_source/native/rs/src/marshall.rs.
type arrayHeader struct {
	Length int32
	Data   unsafe.Pointer
}

// OwnedInputBuffer is a stable copy of one decoded parameter value, live
// for exactly one native call. Callers must runtime.KeepAlive the buffer
// (or the slice holding it) until after the callback returns and its
// outputs have been serialized, since outputs may alias input memory
// (spec.md §4.B step 4).
type OwnedInputBuffer struct {
	code TypeCode
	ptr  unsafe.Pointer
	// cell holds the char* value for string buffers; ptr points at cell
	// itself, giving the callback the same one-extra-indirection shape
	// the original marshaller uses for strings.
	cell unsafe.Pointer
	// keepAlive anchors the backing Go memory (slice, byte buffer, or
	// slice-of-slices) so the GC does not reclaim it out from under ptr.
	keepAlive any
}

type TypeCode = wire.TypeCode

// Pointer returns the address to hand to the native callback.
func (b *OwnedInputBuffer) Pointer() unsafe.Pointer { return b.ptr }

// NewInputBuffer decodes raw according to code and produces a stable
// buffer in the native layout for that code (spec.md §4.B).
func NewInputBuffer(code wire.TypeCode, raw json.RawMessage) (*OwnedInputBuffer, error) {
	if !code.Valid() {
		return nil, fabricerr.Newf(fabricerr.InvalidParameter, "unknown type code %q", code)
	}
	if code.IsArray() {
		if code.Elem() == wire.TypeString {
			return newStringArrayInput(raw)
		}
		return newPrimitiveArrayInput(code, raw)
	}
	if code == wire.TypeString {
		return newStringInput(raw)
	}
	return newScalarInput(code, raw)
}

func decodeErr(code wire.TypeCode, err error) error {
	return fabricerr.New(fabricerr.InvalidParameter, fmt.Errorf("decode %s: %w", code, err))
}

func newScalarInput(code wire.TypeCode, raw json.RawMessage) (*OwnedInputBuffer, error) {
	switch code {
	case wire.TypeBool:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, decodeErr(code, err)
		}
		cell := boolByte(v)
		return &OwnedInputBuffer{code: code, ptr: unsafe.Pointer(&cell), keepAlive: &cell}, nil
	case wire.TypeByte:
		var v int8
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, decodeErr(code, err)
		}
		return &OwnedInputBuffer{code: code, ptr: unsafe.Pointer(&v), keepAlive: &v}, nil
	case wire.TypeShort:
		var v int16
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, decodeErr(code, err)
		}
		return &OwnedInputBuffer{code: code, ptr: unsafe.Pointer(&v), keepAlive: &v}, nil
	case wire.TypeInt:
		var v int32
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, decodeErr(code, err)
		}
		return &OwnedInputBuffer{code: code, ptr: unsafe.Pointer(&v), keepAlive: &v}, nil
	case wire.TypeLong:
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, decodeErr(code, err)
		}
		return &OwnedInputBuffer{code: code, ptr: unsafe.Pointer(&v), keepAlive: &v}, nil
	case wire.TypeFloat:
		var v float32
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, decodeErr(code, err)
		}
		return &OwnedInputBuffer{code: code, ptr: unsafe.Pointer(&v), keepAlive: &v}, nil
	case wire.TypeDouble:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, decodeErr(code, err)
		}
		return &OwnedInputBuffer{code: code, ptr: unsafe.Pointer(&v), keepAlive: &v}, nil
	default:
		return nil, fabricerr.Newf(fabricerr.InvalidParameter, "not a scalar type code %q", code)
	}
}

func newStringInput(raw json.RawMessage) (*OwnedInputBuffer, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, decodeErr(wire.TypeString, err)
	}
	buf := append([]byte(s), 0)
	b := &OwnedInputBuffer{code: wire.TypeString, keepAlive: buf}
	b.cell = unsafe.Pointer(&buf[0])
	b.ptr = unsafe.Pointer(&b.cell)
	return b, nil
}

func newPrimitiveArrayInput(code wire.TypeCode, raw json.RawMessage) (*OwnedInputBuffer, error) {
	switch code.Elem() {
	case wire.TypeBool:
		var vs []bool
		if err := json.Unmarshal(raw, &vs); err != nil {
			return nil, decodeErr(code, err)
		}
		buf := make([]byte, len(vs))
		for i, v := range vs {
			buf[i] = boolByte(v)
		}
		return arrayInputBuffer(code, buf)
	case wire.TypeByte:
		var vs []int8
		if err := json.Unmarshal(raw, &vs); err != nil {
			return nil, decodeErr(code, err)
		}
		return arrayInputBuffer(code, vs)
	case wire.TypeShort:
		var vs []int16
		if err := json.Unmarshal(raw, &vs); err != nil {
			return nil, decodeErr(code, err)
		}
		return arrayInputBuffer(code, vs)
	case wire.TypeInt:
		var vs []int32
		if err := json.Unmarshal(raw, &vs); err != nil {
			return nil, decodeErr(code, err)
		}
		return arrayInputBuffer(code, vs)
	case wire.TypeLong:
		var vs []int64
		if err := json.Unmarshal(raw, &vs); err != nil {
			return nil, decodeErr(code, err)
		}
		return arrayInputBuffer(code, vs)
	case wire.TypeFloat:
		var vs []float32
		if err := json.Unmarshal(raw, &vs); err != nil {
			return nil, decodeErr(code, err)
		}
		return arrayInputBuffer(code, vs)
	case wire.TypeDouble:
		var vs []float64
		if err := json.Unmarshal(raw, &vs); err != nil {
			return nil, decodeErr(code, err)
		}
		return arrayInputBuffer(code, vs)
	default:
		return nil, fabricerr.Newf(fabricerr.InvalidParameter, "not a primitive array type code %q", code)
	}
}

func arrayInputBuffer[T any](code wire.TypeCode, data []T) (*OwnedInputBuffer, error) {
	if len(data) > maxArrayLength {
		return nil, fabricerr.Newf(fabricerr.InvalidParameter, "length %d too long", len(data))
	}
	var dataPtr unsafe.Pointer
	if len(data) > 0 {
		dataPtr = unsafe.Pointer(&data[0])
	}
	hdr := &arrayHeader{Length: int32(len(data)), Data: dataPtr}
	return &OwnedInputBuffer{code: code, ptr: unsafe.Pointer(hdr), keepAlive: data}, nil
}

func newStringArrayInput(raw json.RawMessage) (*OwnedInputBuffer, error) {
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, decodeErr(wire.TypeStringArray, err)
	}
	if len(ss) > maxArrayLength {
		return nil, fabricerr.Newf(fabricerr.InvalidParameter, "length %d too long", len(ss))
	}
	cstrs := make([][]byte, len(ss))
	ptrs := make([]unsafe.Pointer, len(ss))
	for i, s := range ss {
		cstrs[i] = append([]byte(s), 0)
		ptrs[i] = unsafe.Pointer(&cstrs[i][0])
	}
	var dataPtr unsafe.Pointer
	if len(ptrs) > 0 {
		dataPtr = unsafe.Pointer(&ptrs[0])
	}
	hdr := &arrayHeader{Length: int32(len(ptrs)), Data: dataPtr}
	return &OwnedInputBuffer{
		code: wire.TypeStringArray,
		ptr:  unsafe.Pointer(hdr),
		keepAlive: struct {
			cstrs [][]byte
			ptrs  []unsafe.Pointer
		}{cstrs, ptrs},
	}, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
