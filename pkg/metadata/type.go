// Package metadata describes the types, fields and methods of a debuggee
// as seen by the debugger's reflection layer. Values of these types are
// descriptions only: nothing here talks to the debuggee.
package metadata

import (
	"strings"
)

// Kind is the category of a Type.
type Kind uint8

const (
	Class Kind = iota
	Interface
	Struct
	Enum
	Primitive
	Pointer
	FunctionPointer
	GenericParameter
)

func (k Kind) String() string {
	switch k {
	case Class:
		return "class"
	case Interface:
		return "interface"
	case Struct:
		return "struct"
	case Enum:
		return "enum"
	case Primitive:
		return "primitive"
	case Pointer:
		return "pointer"
	case FunctionPointer:
		return "fnptr"
	case GenericParameter:
		return "generic parameter"
	}
	return "unknown"
}

// TypeCode identifies the built-in types that have a direct
// representation in the protocol.
type TypeCode uint8

const (
	TypeCodeNone TypeCode = iota
	TypeCodeBoolean
	TypeCodeChar
	TypeCodeSByte
	TypeCodeByte
	TypeCodeInt16
	TypeCodeUInt16
	TypeCodeInt32
	TypeCodeUInt32
	TypeCodeInt64
	TypeCodeUInt64
	TypeCodeSingle
	TypeCodeDouble
	TypeCodeIntPtr
	TypeCodeUIntPtr
	TypeCodeString
	TypeCodeObject
)

// Type describes a type of the debuggee.
type Type struct {
	// Name is the fully qualified name of the type.
	Name string
	Kind Kind
	// Code is set for built-in types.
	Code TypeCode
	Base *Type
	// Interfaces lists the interfaces directly implemented by the type.
	Interfaces []*Type
	// Underlying is the underlying primitive type of an enum.
	Underlying *Type
	// GenericArgs are the type arguments of a generic instantiation. Open
	// instantiations have arguments of kind GenericParameter.
	GenericArgs []*Type
	// Fields are the fields declared by the type, in declaration order.
	Fields []*Field
	// Methods are the methods and constructors declared by the type.
	Methods []*Method
	// Domain is the application domain the type was loaded in.
	Domain int
}

// Field describes a field declared by a type.
type Field struct {
	Name string
	Type *Type
	// Static fields are not part of a value's layout.
	Static bool
	// Literal fields are compile time constants and have no storage.
	Literal bool
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

// ShortName returns the name of the type without its namespace.
func (t *Type) ShortName() string {
	if i := strings.LastIndexByte(t.Name, '.'); i >= 0 {
		return t.Name[i+1:]
	}
	return t.Name
}

// IsValueType returns true for types whose instances are copied by
// value: structs, enums, primitives and unmanaged pointers.
func (t *Type) IsValueType() bool {
	switch t.Kind {
	case Struct, Enum, Primitive, Pointer, FunctionPointer:
		return true
	}
	return false
}

func (t *Type) IsInterface() bool       { return t.Kind == Interface }
func (t *Type) IsEnum() bool            { return t.Kind == Enum }
func (t *Type) IsPointer() bool         { return t.Kind == Pointer }
func (t *Type) IsFunctionPointer() bool { return t.Kind == FunctionPointer }

// ContainsGenericParameters returns true if t is, or is instantiated
// with, an open generic parameter.
func (t *Type) ContainsGenericParameters() bool {
	if t.Kind == GenericParameter {
		return true
	}
	for _, arg := range t.GenericArgs {
		if arg.ContainsGenericParameters() {
			return true
		}
	}
	return false
}

// AllMethods returns the methods declared by t followed by the methods
// of its base types, most derived first.
func (t *Type) AllMethods() []*Method {
	var r []*Method
	for cur := t; cur != nil; cur = cur.Base {
		r = append(r, cur.Methods...)
	}
	return r
}

// MethodsNamed returns every method called name that is visible on t,
// most derived first.
func (t *Type) MethodsNamed(name string) []*Method {
	var r []*Method
	for _, m := range t.AllMethods() {
		if m.Name == name {
			r = append(r, m)
		}
	}
	return r
}

// Constructors returns the instance constructors declared by t.
func (t *Type) Constructors() []*Method {
	var r []*Method
	for _, m := range t.Methods {
		if m.Constructor && !m.Static {
			r = append(r, m)
		}
	}
	return r
}

// FieldByName returns the field declared by t called name.
func (t *Type) FieldByName(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// InstanceFields returns the fields that make up the layout of a value of
// type t, skipping static and literal fields.
func (t *Type) InstanceFields() []*Field {
	r := make([]*Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.Static || f.Literal {
			continue
		}
		r = append(r, f)
	}
	return r
}

// IsAssignableTo returns true if a value of type t can be stored in a
// location of type dst without conversion.
func (t *Type) IsAssignableTo(dst *Type) bool {
	if t == nil || dst == nil {
		return false
	}
	if TypeEqual(t, dst) {
		return true
	}
	if dst.Code == TypeCodeObject {
		return true
	}
	for cur := t; cur != nil; cur = cur.Base {
		if TypeEqual(cur, dst) {
			return true
		}
		for _, iface := range cur.Interfaces {
			if TypeEqual(iface, dst) {
				return true
			}
		}
	}
	return false
}

// TypeEqual returns true if a and b describe the same type.
func TypeEqual(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Name != b.Name || a.Domain != b.Domain || len(a.GenericArgs) != len(b.GenericArgs) {
		return false
	}
	for i := range a.GenericArgs {
		if !TypeEqual(a.GenericArgs[i], b.GenericArgs[i]) {
			return false
		}
	}
	return true
}
