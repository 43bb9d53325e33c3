package proc

import (
	"fmt"

	"github.com/go-delve/remoteeval/pkg/metadata"
)

// HandleKind is the shape of a remote value.
type HandleKind uint8

const (
	NullHandle      HandleKind = iota // null reference
	PrimitiveHandle                   // primitive or pointer, passed by value
	StructHandle                      // struct or enum instance, passed by value
	ObjectHandle                      // reference to a heap object, including boxed values
)

func (k HandleKind) String() string {
	switch k {
	case NullHandle:
		return "null"
	case PrimitiveHandle:
		return "primitive"
	case StructHandle:
		return "struct"
	case ObjectHandle:
		return "object"
	}
	return fmt.Sprintf("HandleKind(%d)", uint8(k))
}

// Handle is an opaque reference to a value in the debuggee.
// Implementations must be pointer types: the engine compares handles by
// identity.
type Handle interface {
	Kind() HandleKind
	// RuntimeType is the type of the value as observed in the debuggee.
	// For boxed objects it is the type of the boxed value.
	RuntimeType() *metadata.Type
	// IsBoxed reports whether the handle refers to a heap object holding
	// a boxed value type instance.
	IsBoxed() bool
}

// Primitive is a primitive value held by the debugger. Primitives are
// sent to the agent by value.
//
// Val holds bool for Boolean, uint16 for Char, the Go integer type of the
// matching width for the integer codes, float32/float64 for Single/Double
// and int32 or int64 for pointers.
type Primitive struct {
	Type *metadata.Type
	Val  interface{}
}

func (p *Primitive) Kind() HandleKind            { return PrimitiveHandle }
func (p *Primitive) RuntimeType() *metadata.Type { return p.Type }
func (p *Primitive) IsBoxed() bool               { return false }

func (p *Primitive) String() string {
	if p.Type != nil && p.Type.Code == metadata.TypeCodeChar {
		return fmt.Sprintf("%q", rune(p.Val.(uint16)))
	}
	return fmt.Sprintf("%v", p.Val)
}

// Null is a null reference of static type Type.
type Null struct {
	Type *metadata.Type
}

func (n *Null) Kind() HandleKind            { return NullHandle }
func (n *Null) RuntimeType() *metadata.Type { return n.Type }
func (n *Null) IsBoxed() bool               { return false }
func (n *Null) String() string              { return "null" }

// Char is a UTF-16 code unit. Passing a Char as an argument produces a
// Char primitive rather than an integer.
type Char uint16

// ZeroPrimitive returns the zero value of the primitive type t.
func ZeroPrimitive(t *metadata.Type) *Primitive {
	var v interface{}
	switch t.Code {
	case metadata.TypeCodeBoolean:
		v = false
	case metadata.TypeCodeChar:
		v = uint16(0)
	case metadata.TypeCodeSByte:
		v = int8(0)
	case metadata.TypeCodeByte:
		v = uint8(0)
	case metadata.TypeCodeInt16:
		v = int16(0)
	case metadata.TypeCodeUInt16:
		v = uint16(0)
	case metadata.TypeCodeInt32:
		v = int32(0)
	case metadata.TypeCodeUInt32:
		v = uint32(0)
	case metadata.TypeCodeInt64:
		v = int64(0)
	case metadata.TypeCodeUInt64:
		v = uint64(0)
	case metadata.TypeCodeSingle:
		v = float32(0)
	case metadata.TypeCodeDouble:
		v = float64(0)
	case metadata.TypeCodeIntPtr:
		v = int64(0)
	case metadata.TypeCodeUIntPtr:
		v = uint64(0)
	default:
		v = int32(0)
	}
	return &Primitive{Type: t, Val: v}
}

// zeroPointer returns a null pointer of type t for a debuggee with the
// given pointer size.
func zeroPointer(t *metadata.Type, ptrSize int) *Primitive {
	if ptrSize == 4 {
		return &Primitive{Type: t, Val: int32(0)}
	}
	return &Primitive{Type: t, Val: int64(0)}
}

// hostPrimitive converts a Go value into a primitive of the matching
// built-in type.
func hostPrimitive(types TypeSystem, v interface{}) (*Primitive, bool) {
	var code metadata.TypeCode
	switch x := v.(type) {
	case bool:
		code = metadata.TypeCodeBoolean
	case Char:
		return &Primitive{Type: types.PrimitiveType(metadata.TypeCodeChar), Val: uint16(x)}, true
	case int8:
		code = metadata.TypeCodeSByte
	case uint8:
		code = metadata.TypeCodeByte
	case int16:
		code = metadata.TypeCodeInt16
	case uint16:
		code = metadata.TypeCodeUInt16
	case int32:
		code = metadata.TypeCodeInt32
	case uint32:
		code = metadata.TypeCodeUInt32
	case int64:
		code = metadata.TypeCodeInt64
	case uint64:
		code = metadata.TypeCodeUInt64
	case int:
		return &Primitive{Type: types.PrimitiveType(metadata.TypeCodeInt32), Val: int32(x)}, true
	case uint:
		return &Primitive{Type: types.PrimitiveType(metadata.TypeCodeUInt32), Val: uint32(x)}, true
	case uintptr:
		return &Primitive{Type: types.PrimitiveType(metadata.TypeCodeUIntPtr), Val: uint64(x)}, true
	case float32:
		code = metadata.TypeCodeSingle
	case float64:
		code = metadata.TypeCodeDouble
	default:
		return nil, false
	}
	return &Primitive{Type: types.PrimitiveType(code), Val: v}, true
}

// ConvertPrimitive converts p to the primitive type t, truncating like an
// explicit numeric conversion would.
func ConvertPrimitive(p *Primitive, t *metadata.Type) (*Primitive, error) {
	if metadata.TypeEqual(p.Type, t) {
		return p, nil
	}
	if t.Kind != metadata.Primitive && !t.IsPointer() {
		return nil, newEvalError(MalformedRequest, "can not convert %v to %s", p, t)
	}
	b, isBool := p.Val.(bool)
	if isBool != (t.Code == metadata.TypeCodeBoolean) {
		return nil, newEvalError(MalformedRequest, "can not convert %v to %s", p, t)
	}
	if isBool {
		return &Primitive{Type: t, Val: b}, nil
	}
	var i int64
	var f float64
	isFloat := false
	switch x := p.Val.(type) {
	case int8:
		i = int64(x)
	case uint8:
		i = int64(x)
	case int16:
		i = int64(x)
	case uint16:
		i = int64(x)
	case int32:
		i = int64(x)
	case uint32:
		i = int64(x)
	case int64:
		i = x
	case uint64:
		i = int64(x)
	case float32:
		f, isFloat = float64(x), true
	case float64:
		f, isFloat = x, true
	default:
		return nil, newEvalError(MalformedRequest, "can not convert %v to %s", p, t)
	}
	if isFloat {
		i = int64(f)
	} else {
		f = float64(i)
	}
	var v interface{}
	switch t.Code {
	case metadata.TypeCodeChar, metadata.TypeCodeUInt16:
		v = uint16(i)
	case metadata.TypeCodeSByte:
		v = int8(i)
	case metadata.TypeCodeByte:
		v = uint8(i)
	case metadata.TypeCodeInt16:
		v = int16(i)
	case metadata.TypeCodeInt32:
		v = int32(i)
	case metadata.TypeCodeUInt32:
		v = uint32(i)
	case metadata.TypeCodeInt64, metadata.TypeCodeIntPtr:
		v = i
	case metadata.TypeCodeUInt64, metadata.TypeCodeUIntPtr:
		v = uint64(i)
	case metadata.TypeCodeSingle:
		v = float32(f)
	case metadata.TypeCodeDouble:
		v = f
	default:
		v = i
	}
	return &Primitive{Type: t, Val: v}, nil
}
