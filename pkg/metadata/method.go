package metadata

import (
	"strings"
)

// MethodKind tells where a method comes from.
type MethodKind uint8

const (
	// MethodKindMetadata methods are defined in metadata and can be
	// invoked in the debuggee.
	MethodKindMetadata MethodKind = iota
	// MethodKindArray methods are the synthetic accessors and
	// constructors of array types.
	MethodKindArray
	// MethodKindEmulated methods only exist in the debugger and must be
	// emulated by the caller.
	MethodKindEmulated
)

// Method describes a method or constructor.
type Method struct {
	Name          string
	DeclaringType *Type
	// Params are the fixed parameter types.
	Params []*Type
	// VarArgs are the types of the variable arguments passed at a
	// vararg call site, after the fixed parameters.
	VarArgs []*Type
	// Return is nil for constructors and methods returning void.
	Return *Type

	Static      bool
	Virtual     bool
	Abstract    bool
	Private     bool
	Constructor bool

	// GenericArgs are the type arguments of a constructed generic method.
	GenericArgs []*Type

	// Overrides is the method of a base type this method overrides, nil if
	// the method introduces a new slot.
	Overrides *Method

	Kind MethodKind
}

// BaseDefinition returns the method at the root of m's override chain.
func (m *Method) BaseDefinition() *Method {
	r := m
	for r.Overrides != nil {
		r = r.Overrides
	}
	return r
}

// IsConstructedGeneric returns true if m is an instantiation of a generic
// method.
func (m *Method) IsConstructedGeneric() bool {
	return len(m.GenericArgs) > 0
}

// ReflectedType returns the type through which m was obtained.
func (m *Method) ReflectedType() *Type {
	return m.DeclaringType
}

// AllParameterTypes returns the fixed parameter types followed by the
// vararg parameter types.
func (m *Method) AllParameterTypes() []*Type {
	if len(m.VarArgs) == 0 {
		return m.Params
	}
	r := make([]*Type, 0, len(m.Params)+len(m.VarArgs))
	r = append(r, m.Params...)
	r = append(r, m.VarArgs...)
	return r
}

func (m *Method) String() string {
	if m == nil {
		return "<nil>"
	}
	var b strings.Builder
	if m.DeclaringType != nil {
		b.WriteString(m.DeclaringType.Name)
		b.WriteByte('.')
	}
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.AllParameterTypes() {
		if i > 0 {
			b.WriteString(", ")
		}
		if i == len(m.Params) {
			b.WriteString("..., ")
		}
		b.WriteString(p.ShortName())
	}
	b.WriteByte(')')
	return b.String()
}

// SigCompareOptions select which parts of a method a SigComparer looks at
// besides its parameter and return types.
type SigCompareOptions uint8

const (
	CompareName SigCompareOptions = 1 << iota
	CompareDeclaringType
)

// DefaultSigCompareOptions compare everything.
const DefaultSigCompareOptions = CompareName | CompareDeclaringType

// SigComparer compares method signatures.
type SigComparer struct {
	Options SigCompareOptions
}

// Equal returns true if a and b have the same signature.
func (c SigComparer) Equal(a, b *Method) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if c.Options&CompareName != 0 && a.Name != b.Name {
		return false
	}
	if c.Options&CompareDeclaringType != 0 && !TypeEqual(a.DeclaringType, b.DeclaringType) {
		return false
	}
	if a.Static != b.Static || len(a.GenericArgs) != len(b.GenericArgs) {
		return false
	}
	return TypeEqual(a.Return, b.Return) && typesEqual(a.Params, b.Params) && typesEqual(a.VarArgs, b.VarArgs)
}

func typesEqual(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !TypeEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
