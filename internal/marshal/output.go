package marshal

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
	"unsafe"

	"github.com/robofabric/fabric/internal/fabricerr"
	"github.com/robofabric/fabric/internal/wire"
)

// ReleaseFunc frees callee-owned memory backing an output buffer. Pure-Go
// callbacks normally leave this nil (the Go GC owns the memory); it exists
// for the cabi boundary, where a native callback may hand back
// malloc'd memory that must be freed once the buffer's JSON has been
// materialized (spec.md §4.B step 5).
type ReleaseFunc func()

// stringCell is the writable location a string-typed output buffer hands
// to the callback: the callback writes Data to point at a null-terminated
// byte sequence it owns.
type stringCell struct {
	Data unsafe.Pointer
}

// OwnedOutputBuffer is a writable location handed to the native callback;
// after the call, ToJSON materializes its contents.
type OwnedOutputBuffer struct {
	code    wire.TypeCode
	ptr     unsafe.Pointer
	release ReleaseFunc
}

// Pointer returns the address to hand to the native callback.
func (b *OwnedOutputBuffer) Pointer() unsafe.Pointer { return b.ptr }

// SetRelease records a callback-supplied release hook, invoked once by
// Release.
func (b *OwnedOutputBuffer) SetRelease(fn ReleaseFunc) { b.release = fn }

// Release invokes any callback-supplied release hook exactly once.
func (b *OwnedOutputBuffer) Release() {
	if b.release != nil {
		b.release()
		b.release = nil
	}
}

// NewOutputBuffer allocates the zero-valued writable location for code.
func NewOutputBuffer(code wire.TypeCode) (*OwnedOutputBuffer, error) {
	if !code.Valid() {
		return nil, fabricerr.Newf(fabricerr.InvalidParameter, "unknown type code %q", code)
	}
	if code == wire.TypeString {
		return &OwnedOutputBuffer{code: code, ptr: unsafe.Pointer(&stringCell{})}, nil
	}
	if code.IsArray() {
		return &OwnedOutputBuffer{code: code, ptr: unsafe.Pointer(&arrayHeader{})}, nil
	}
	cell, err := zeroScalarCell(code)
	if err != nil {
		return nil, err
	}
	return &OwnedOutputBuffer{code: code, ptr: cell}, nil
}

func zeroScalarCell(code wire.TypeCode) (unsafe.Pointer, error) {
	switch code {
	case wire.TypeBool:
		var v byte
		return unsafe.Pointer(&v), nil
	case wire.TypeByte:
		var v int8
		return unsafe.Pointer(&v), nil
	case wire.TypeShort:
		var v int16
		return unsafe.Pointer(&v), nil
	case wire.TypeInt:
		var v int32
		return unsafe.Pointer(&v), nil
	case wire.TypeLong:
		var v int64
		return unsafe.Pointer(&v), nil
	case wire.TypeFloat:
		var v float32
		return unsafe.Pointer(&v), nil
	case wire.TypeDouble:
		var v float64
		return unsafe.Pointer(&v), nil
	default:
		return nil, fabricerr.Newf(fabricerr.InvalidParameter, "not a scalar type code %q", code)
	}
}

// ToJSON materializes the buffer's current contents as spec.md §4.B
// describes: bool normalizes any nonzero byte to true, negative array
// lengths are *invalid length*, a null data pointer is only legal with
// length 0, and string output must be valid UTF-8.
func (b *OwnedOutputBuffer) ToJSON() (json.RawMessage, error) {
	if b.code == wire.TypeString {
		return stringToJSON(b.ptr)
	}
	if b.code.IsArray() {
		if b.code.Elem() == wire.TypeString {
			return stringArrayToJSON(b.ptr)
		}
		return primitiveArrayToJSON(b.code, b.ptr)
	}
	return scalarToJSON(b.code, b.ptr)
}

func scalarToJSON(code wire.TypeCode, ptr unsafe.Pointer) (json.RawMessage, error) {
	switch code {
	case wire.TypeBool:
		return json.Marshal(*(*byte)(ptr) != 0)
	case wire.TypeByte:
		return json.Marshal(*(*int8)(ptr))
	case wire.TypeShort:
		return json.Marshal(*(*int16)(ptr))
	case wire.TypeInt:
		return json.Marshal(*(*int32)(ptr))
	case wire.TypeLong:
		return json.Marshal(*(*int64)(ptr))
	case wire.TypeFloat:
		return json.Marshal(*(*float32)(ptr))
	case wire.TypeDouble:
		return json.Marshal(*(*float64)(ptr))
	default:
		return nil, fabricerr.Newf(fabricerr.InvalidParameter, "not a scalar type code %q", code)
	}
}

func cString(p unsafe.Pointer) string {
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(p), n))
}

func stringToJSON(ptr unsafe.Pointer) (json.RawMessage, error) {
	cell := (*stringCell)(ptr)
	if cell.Data == nil {
		return nil, fabricerr.New(fabricerr.MissingRequiredValue, fmt.Errorf("string output was never set"))
	}
	s := cString(cell.Data)
	if !utf8.ValidString(s) {
		return nil, fabricerr.New(fabricerr.NonUtf8String, fmt.Errorf("string output was not valid UTF-8"))
	}
	return json.Marshal(s)
}

// maxArrayLength bounds a declared array length (spec.md §8: "Primitive
// arrays with length = INT_MAX reject (too long) in marshalling"). A
// length this large can never be backed by a real buffer the caller
// actually populated, native-code bug or hostile input alike.
const maxArrayLength = 1 << 20

func checkArrayHeader(hdr *arrayHeader) error {
	if hdr.Length < 0 {
		return fabricerr.Newf(fabricerr.InvalidParameter, "invalid length %d", hdr.Length)
	}
	if hdr.Length > maxArrayLength {
		return fabricerr.Newf(fabricerr.InvalidParameter, "length %d too long", hdr.Length)
	}
	if hdr.Data == nil && hdr.Length > 0 {
		return fabricerr.Newf(fabricerr.InvalidParameter, "null data with length %d", hdr.Length)
	}
	return nil
}

func primitiveArrayToJSON(code wire.TypeCode, ptr unsafe.Pointer) (json.RawMessage, error) {
	hdr := (*arrayHeader)(ptr)
	if err := checkArrayHeader(hdr); err != nil {
		return nil, err
	}
	n := int(hdr.Length)
	if n == 0 {
		return json.RawMessage("[]"), nil
	}
	switch code.Elem() {
	case wire.TypeBool:
		raw := unsafe.Slice((*byte)(hdr.Data), n)
		vs := make([]bool, n)
		for i, v := range raw {
			vs[i] = v != 0
		}
		return json.Marshal(vs)
	case wire.TypeByte:
		return json.Marshal(unsafe.Slice((*int8)(hdr.Data), n))
	case wire.TypeShort:
		return json.Marshal(unsafe.Slice((*int16)(hdr.Data), n))
	case wire.TypeInt:
		return json.Marshal(unsafe.Slice((*int32)(hdr.Data), n))
	case wire.TypeLong:
		return json.Marshal(unsafe.Slice((*int64)(hdr.Data), n))
	case wire.TypeFloat:
		return json.Marshal(unsafe.Slice((*float32)(hdr.Data), n))
	case wire.TypeDouble:
		return json.Marshal(unsafe.Slice((*float64)(hdr.Data), n))
	default:
		return nil, fabricerr.Newf(fabricerr.InvalidParameter, "not a primitive array type code %q", code)
	}
}

func stringArrayToJSON(ptr unsafe.Pointer) (json.RawMessage, error) {
	hdr := (*arrayHeader)(ptr)
	if err := checkArrayHeader(hdr); err != nil {
		return nil, err
	}
	n := int(hdr.Length)
	if n == 0 {
		return json.RawMessage("[]"), nil
	}
	ptrs := unsafe.Slice((*unsafe.Pointer)(hdr.Data), n)
	out := make([]string, n)
	for i, p := range ptrs {
		if p == nil {
			return nil, fabricerr.New(fabricerr.MissingRequiredValue, fmt.Errorf("string array element %d was never set", i))
		}
		s := cString(p)
		if !utf8.ValidString(s) {
			return nil, fabricerr.New(fabricerr.NonUtf8String, fmt.Errorf("string array element %d was not valid UTF-8", i))
		}
		out[i] = s
	}
	return json.Marshal(out)
}

// Scalar is the set of Go types a fixed-size numeric output cell can hold.
type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// SetScalar writes v into the output cell at ptr. Used by Go-native
// capability callbacks (machine.RegisterFunction et al.) to fill a return
// value without touching unsafe.Pointer directly.
func SetScalar[T Scalar](ptr unsafe.Pointer, v T) {
	*(*T)(ptr) = v
}

// SetBool writes a normalized boolean output.
func SetBool(ptr unsafe.Pointer, v bool) {
	*(*byte)(ptr) = boolByte(v)
}

// SetString writes s as the output's null-terminated copy.
func SetString(ptr unsafe.Pointer, s string) {
	cell := (*stringCell)(ptr)
	buf := append([]byte(s), 0)
	cell.Data = unsafe.Pointer(&buf[0])
}

// SetPrimitiveArray writes vs as the output's array contents.
func SetPrimitiveArray[T Scalar](ptr unsafe.Pointer, vs []T) {
	hdr := (*arrayHeader)(ptr)
	hdr.Length = int32(len(vs))
	if len(vs) > 0 {
		hdr.Data = unsafe.Pointer(&vs[0])
	} else {
		hdr.Data = nil
	}
}

// SetBoolArray writes vs as the output's array contents.
func SetBoolArray(ptr unsafe.Pointer, vs []bool) {
	buf := make([]byte, len(vs))
	for i, v := range vs {
		buf[i] = boolByte(v)
	}
	SetPrimitiveArray(ptr, buf)
}

// SetStringArray writes vs as the output's array of null-terminated copies.
func SetStringArray(ptr unsafe.Pointer, vs []string) {
	cstrs := make([][]byte, len(vs))
	ptrs := make([]unsafe.Pointer, len(vs))
	for i, s := range vs {
		cstrs[i] = append([]byte(s), 0)
		ptrs[i] = unsafe.Pointer(&cstrs[i][0])
	}
	hdr := (*arrayHeader)(ptr)
	hdr.Length = int32(len(ptrs))
	if len(ptrs) > 0 {
		hdr.Data = unsafe.Pointer(&ptrs[0])
	} else {
		hdr.Data = nil
	}
}
