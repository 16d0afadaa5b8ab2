package wire

// TypeCode is a wire-level type tag attached to function parameters and
// returns, and to sensor/axis scalar values. The set is closed: an
// unrecognized code fails capability registration (spec.md invariant 4).
type TypeCode string

const (
	TypeBool   TypeCode = "bool"
	TypeByte   TypeCode = "byte"
	TypeShort  TypeCode = "short"
	TypeInt    TypeCode = "int"
	TypeLong   TypeCode = "long"
	TypeFloat  TypeCode = "float"
	TypeDouble TypeCode = "double"
	TypeString TypeCode = "string"

	TypeBoolArray   TypeCode = "bool[]"
	TypeByteArray   TypeCode = "byte[]"
	TypeShortArray  TypeCode = "short[]"
	TypeIntArray    TypeCode = "int[]"
	TypeLongArray   TypeCode = "long[]"
	TypeFloatArray  TypeCode = "float[]"
	TypeDoubleArray TypeCode = "double[]"
	TypeStringArray TypeCode = "string[]"
)

var scalarCodes = map[TypeCode]bool{
	TypeBool: true, TypeByte: true, TypeShort: true, TypeInt: true,
	TypeLong: true, TypeFloat: true, TypeDouble: true, TypeString: true,
}

var arrayCodes = map[TypeCode]bool{
	TypeBoolArray: true, TypeByteArray: true, TypeShortArray: true,
	TypeIntArray: true, TypeLongArray: true, TypeFloatArray: true,
	TypeDoubleArray: true, TypeStringArray: true,
}

// Valid reports whether code is one of the closed set of recognized type
// codes (spec.md §3 "Type codes").
func (c TypeCode) Valid() bool {
	return scalarCodes[c] || arrayCodes[c]
}

// IsArray reports whether code denotes an array/slice variant.
func (c TypeCode) IsArray() bool {
	return arrayCodes[c]
}

// IsString reports whether code is string or string[].
func (c TypeCode) IsString() bool {
	return c == TypeString || c == TypeStringArray
}

// Elem returns the scalar element code of an array code, e.g. int[] -> int.
// For non-array codes it returns the code unchanged.
func (c TypeCode) Elem() TypeCode {
	switch c {
	case TypeBoolArray:
		return TypeBool
	case TypeByteArray:
		return TypeByte
	case TypeShortArray:
		return TypeShort
	case TypeIntArray:
		return TypeInt
	case TypeLongArray:
		return TypeLong
	case TypeFloatArray:
		return TypeFloat
	case TypeDoubleArray:
		return TypeDouble
	case TypeStringArray:
		return TypeString
	default:
		return c
	}
}
