package marshal

import (
	"encoding/json"
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robofabric/fabric/internal/fabricerr"
	"github.com/robofabric/fabric/internal/wire"
)

func TestCall_ScalarRoundTrip(t *testing.T) {
	params := []Param{{Name: "a", Code: wire.TypeInt}, {Name: "b", Code: wire.TypeInt}}
	returns := []Param{{Name: "sum", Code: wire.TypeInt}}
	args := map[string]json.RawMessage{"a": json.RawMessage("2"), "b": json.RawMessage("3")}

	cb := func(p, r []unsafe.Pointer) {
		a := *(*int32)(p[0])
		b := *(*int32)(p[1])
		SetScalar(r[0], a+b)
	}

	out, err := Call(params, returns, args, cb)
	require.NoError(t, err)
	assert.JSONEq(t, "5", string(out["sum"]))
}

func TestCall_BoolNormalization(t *testing.T) {
	returns := []Param{{Name: "ok", Code: wire.TypeBool}}
	cb := func(p, r []unsafe.Pointer) {
		*(*byte)(r[0]) = 42 // any nonzero byte means true
	}
	out, err := Call(nil, returns, nil, cb)
	require.NoError(t, err)
	assert.JSONEq(t, "true", string(out["ok"]))
}

func TestCall_StringRoundTrip(t *testing.T) {
	params := []Param{{Name: "name", Code: wire.TypeString}}
	returns := []Param{{Name: "greeting", Code: wire.TypeString}}
	args := map[string]json.RawMessage{"name": json.RawMessage(`"arm"`)}

	cb := func(p, r []unsafe.Pointer) {
		namePtr := *(*unsafe.Pointer)(p[0])
		n := 0
		for *(*byte)(unsafe.Add(namePtr, n)) != 0 {
			n++
		}
		name := string(unsafe.Slice((*byte)(namePtr), n))
		SetString(r[0], "hello "+name)
	}

	out, err := Call(params, returns, args, cb)
	require.NoError(t, err)
	assert.JSONEq(t, `"hello arm"`, string(out["greeting"]))
}

func TestCall_PrimitiveArrayRoundTrip(t *testing.T) {
	params := []Param{{Name: "values", Code: wire.TypeIntArray}}
	returns := []Param{{Name: "doubled", Code: wire.TypeIntArray}}
	args := map[string]json.RawMessage{"values": json.RawMessage("[1,2,3]")}

	cb := func(p, r []unsafe.Pointer) {
		hdr := (*arrayHeader)(p[0])
		in := unsafe.Slice((*int32)(hdr.Data), int(hdr.Length))
		out := make([]int32, len(in))
		for i, v := range in {
			out[i] = v * 2
		}
		SetPrimitiveArray(r[0], out)
	}

	out, err := Call(params, returns, args, cb)
	require.NoError(t, err)
	assert.JSONEq(t, "[2,4,6]", string(out["doubled"]))
}

func TestCall_EmptyArrayRoundTrip(t *testing.T) {
	returns := []Param{{Name: "empty", Code: wire.TypeIntArray}}
	cb := func(p, r []unsafe.Pointer) {
		SetPrimitiveArray[int32](r[0], nil)
	}
	out, err := Call(nil, returns, nil, cb)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(out["empty"]))
}

func TestCall_StringArrayRoundTrip(t *testing.T) {
	params := []Param{{Name: "names", Code: wire.TypeStringArray}}
	returns := []Param{{Name: "names", Code: wire.TypeStringArray}}
	args := map[string]json.RawMessage{"names": json.RawMessage(`["a","bb","ccc"]`)}

	cb := func(p, r []unsafe.Pointer) {
		hdr := (*arrayHeader)(p[0])
		ptrs := unsafe.Slice((*unsafe.Pointer)(hdr.Data), int(hdr.Length))
		out := make([]string, len(ptrs))
		for i, sp := range ptrs {
			out[i] = cString(sp)
		}
		SetStringArray(r[0], out)
	}

	out, err := Call(params, returns, args, cb)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","bb","ccc"]`, string(out["names"]))
}

func TestCall_MissingParameter(t *testing.T) {
	params := []Param{{Name: "a", Code: wire.TypeInt}}
	_, err := Call(params, nil, map[string]json.RawMessage{}, func([]unsafe.Pointer, []unsafe.Pointer) {})
	require.Error(t, err)
	assert.Equal(t, fabricerr.MissingRequiredValue, fabricerr.KindOf(err))
}

func TestCall_NonUtf8StringOutputRejected(t *testing.T) {
	returns := []Param{{Name: "s", Code: wire.TypeString}}
	cb := func(p, r []unsafe.Pointer) {
		buf := []byte{0xff, 0xfe, 0x00}
		cell := (*stringCell)(r[0])
		cell.Data = unsafe.Pointer(&buf[0])
	}
	_, err := Call(nil, returns, nil, cb)
	require.Error(t, err)
	assert.Equal(t, fabricerr.NonUtf8String, fabricerr.KindOf(err))
}

func TestCall_NegativeArrayLengthRejected(t *testing.T) {
	returns := []Param{{Name: "bad", Code: wire.TypeIntArray}}
	cb := func(p, r []unsafe.Pointer) {
		hdr := (*arrayHeader)(r[0])
		hdr.Length = -1
	}
	_, err := Call(nil, returns, nil, cb)
	require.Error(t, err)
	assert.Equal(t, fabricerr.InvalidParameter, fabricerr.KindOf(err))
}

func TestCall_OversizedArrayLengthRejected(t *testing.T) {
	returns := []Param{{Name: "bad", Code: wire.TypeIntArray}}
	cb := func(p, r []unsafe.Pointer) {
		hdr := (*arrayHeader)(r[0])
		hdr.Length = math.MaxInt32
	}
	_, err := Call(nil, returns, nil, cb)
	require.Error(t, err)
	assert.Equal(t, fabricerr.InvalidParameter, fabricerr.KindOf(err))
}

func TestCall_UnknownTypeCodeRejected(t *testing.T) {
	params := []Param{{Name: "a", Code: "teleport"}}
	args := map[string]json.RawMessage{"a": json.RawMessage("1")}
	_, err := Call(params, nil, args, func([]unsafe.Pointer, []unsafe.Pointer) {})
	require.Error(t, err)
	assert.Equal(t, fabricerr.InvalidParameter, fabricerr.KindOf(err))
}
