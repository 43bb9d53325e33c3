package metadata

import (
	"fmt"
	"sort"
)

// Universe is the set of types loaded in one application domain of the
// debuggee.
type Universe struct {
	domain     int
	types      map[string]*Type
	primitives map[TypeCode]*Type
}

var builtinTypes = []struct {
	name string
	code TypeCode
}{
	{"System.Boolean", TypeCodeBoolean},
	{"System.Char", TypeCodeChar},
	{"System.SByte", TypeCodeSByte},
	{"System.Byte", TypeCodeByte},
	{"System.Int16", TypeCodeInt16},
	{"System.UInt16", TypeCodeUInt16},
	{"System.Int32", TypeCodeInt32},
	{"System.UInt32", TypeCodeUInt32},
	{"System.Int64", TypeCodeInt64},
	{"System.UInt64", TypeCodeUInt64},
	{"System.Single", TypeCodeSingle},
	{"System.Double", TypeCodeDouble},
	{"System.IntPtr", TypeCodeIntPtr},
	{"System.UIntPtr", TypeCodeUIntPtr},
}

// NewUniverse returns a universe for the given application domain,
// populated with the built-in types.
func NewUniverse(domain int) *Universe {
	u := &Universe{
		domain:     domain,
		types:      make(map[string]*Type),
		primitives: make(map[TypeCode]*Type),
	}
	object := u.Add(&Type{Name: "System.Object", Kind: Class, Code: TypeCodeObject})
	u.primitives[TypeCodeObject] = object
	object.Methods = []*Method{
		{Name: "ToString", DeclaringType: object, Return: nil, Virtual: true},
		{Name: "GetHashCode", DeclaringType: object, Virtual: true},
	}
	valueType := u.Add(&Type{Name: "System.ValueType", Kind: Class, Base: object})
	u.Add(&Type{Name: "System.Enum", Kind: Class, Base: valueType})
	str := u.Add(&Type{Name: "System.String", Kind: Class, Code: TypeCodeString, Base: object})
	u.primitives[TypeCodeString] = str
	object.Methods[0].Return = str
	for _, bt := range builtinTypes {
		u.primitives[bt.code] = u.Add(&Type{Name: bt.name, Kind: Primitive, Code: bt.code, Base: valueType})
	}
	object.Methods[1].Return = u.primitives[TypeCodeInt32]
	return u
}

// Domain returns the application domain of the universe.
func (u *Universe) Domain() int {
	return u.domain
}

// Add registers t in the universe. Classes and interfaces without a base
// type get System.Object, structs get System.ValueType and enums
// System.Enum. Methods declared by t are bound to it.
func (u *Universe) Add(t *Type) *Type {
	if _, dup := u.types[t.Name]; dup {
		panic(fmt.Errorf("type %s registered twice", t.Name))
	}
	t.Domain = u.domain
	if t.Base == nil {
		switch t.Kind {
		case Class:
			if t.Code != TypeCodeObject {
				t.Base = u.types["System.Object"]
			}
		case Struct:
			t.Base = u.types["System.ValueType"]
		case Enum:
			t.Base = u.types["System.Enum"]
		}
	}
	for _, m := range t.Methods {
		m.DeclaringType = t
	}
	u.types[t.Name] = t
	return t
}

// ObjectType returns System.Object.
func (u *Universe) ObjectType() *Type {
	return u.primitives[TypeCodeObject]
}

// StringType returns System.String.
func (u *Universe) StringType() *Type {
	return u.primitives[TypeCodeString]
}

// PrimitiveType returns the built-in type with the given code.
func (u *Universe) PrimitiveType(code TypeCode) *Type {
	return u.primitives[code]
}

// Lookup finds a type by its fully qualified name or, if that is not
// ambiguous, by its short name.
func (u *Universe) Lookup(name string) (*Type, bool) {
	if t, ok := u.types[name]; ok {
		return t, true
	}
	var found *Type
	for _, t := range u.types {
		if t.ShortName() == name {
			if found != nil {
				return nil, false
			}
			found = t
		}
	}
	return found, found != nil
}

// Types returns all registered types sorted by name.
func (u *Universe) Types() []*Type {
	r := make([]*Type, 0, len(u.types))
	for _, t := range u.types {
		r = append(r, t)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Name < r[j].Name })
	return r
}
