package metadata

import (
	"testing"
)

func testUniverse(t *testing.T) (*Universe, *Type, *Type, *Type) {
	u := NewUniverse(1)
	i32 := u.PrimitiveType(TypeCodeInt32)
	iface := u.Add(&Type{Name: "Zoo.IAnimal", Kind: Interface, Methods: []*Method{
		{Name: "Speak", Return: u.StringType(), Virtual: true, Abstract: true},
	}})
	animal := u.Add(&Type{Name: "Zoo.Animal", Kind: Class, Interfaces: []*Type{iface}, Methods: []*Method{
		{Name: "Feed", Params: []*Type{i32}, Virtual: true},
	}})
	dog := u.Add(&Type{Name: "Zoo.Dog", Kind: Class, Base: animal, Methods: []*Method{
		{Name: "Feed", Params: []*Type{i32}, Virtual: true},
	}})
	dog.Methods[0].Overrides = animal.Methods[0]
	return u, iface, animal, dog
}

func TestBuiltinTypes(t *testing.T) {
	u := NewUniverse(3)
	for _, bt := range builtinTypes {
		typ := u.PrimitiveType(bt.code)
		if typ == nil || typ.Name != bt.name {
			t.Fatalf("missing built-in %s", bt.name)
		}
		if !typ.IsValueType() {
			t.Errorf("%s should be a value type", bt.name)
		}
		if typ.Domain != 3 {
			t.Errorf("%s: wrong domain %d", bt.name, typ.Domain)
		}
	}
	if u.ObjectType().IsValueType() || u.StringType().IsValueType() {
		t.Errorf("object and string are reference types")
	}
	if u.ObjectType().Base != nil {
		t.Errorf("System.Object has a base type")
	}
}

func TestLookup(t *testing.T) {
	u, _, animal, _ := testUniverse(t)
	if typ, ok := u.Lookup("Zoo.Animal"); !ok || typ != animal {
		t.Errorf("full name lookup failed")
	}
	if typ, ok := u.Lookup("Animal"); !ok || typ != animal {
		t.Errorf("short name lookup failed")
	}
	if _, ok := u.Lookup("Giraffe"); ok {
		t.Errorf("lookup of missing type succeeded")
	}
	u.Add(&Type{Name: "Other.Animal", Kind: Class})
	if _, ok := u.Lookup("Animal"); ok {
		t.Errorf("ambiguous short name lookup succeeded")
	}
}

func TestSigComparer(t *testing.T) {
	_, _, animal, dog := testUniverse(t)
	full := SigComparer{Options: DefaultSigCompareOptions}
	noDecl := SigComparer{Options: DefaultSigCompareOptions &^ CompareDeclaringType}
	sigOnly := SigComparer{}

	if full.Equal(animal.Methods[0], dog.Methods[0]) {
		t.Errorf("methods of different types compared equal")
	}
	if !noDecl.Equal(animal.Methods[0], dog.Methods[0]) {
		t.Errorf("override did not match ignoring declaring type")
	}
	renamed := *dog.Methods[0]
	renamed.Name = "Zoo.IAnimal.Feed"
	if noDecl.Equal(animal.Methods[0], &renamed) {
		t.Errorf("different names compared equal")
	}
	if !sigOnly.Equal(animal.Methods[0], &renamed) {
		t.Errorf("signature-only comparison failed")
	}
	withVarArgs := renamed
	withVarArgs.VarArgs = []*Type{animal}
	if sigOnly.Equal(&renamed, &withVarArgs) {
		t.Errorf("vararg tail ignored by comparison")
	}
}

func TestBaseDefinition(t *testing.T) {
	_, _, animal, dog := testUniverse(t)
	if dog.Methods[0].BaseDefinition() != animal.Methods[0] {
		t.Errorf("wrong base definition")
	}
	if animal.Methods[0].BaseDefinition() != animal.Methods[0] {
		t.Errorf("root method is not its own base definition")
	}
}

func TestAllParameterTypes(t *testing.T) {
	u := NewUniverse(1)
	i32, str := u.PrimitiveType(TypeCodeInt32), u.StringType()
	m := &Method{Name: "Printf", Params: []*Type{str}, VarArgs: []*Type{i32, str}}
	ps := m.AllParameterTypes()
	if len(ps) != 3 || ps[0] != str || ps[1] != i32 || ps[2] != str {
		t.Fatalf("wrong parameter list %v", ps)
	}
	if m.String() != "Printf(String, ..., Int32, String)" {
		t.Errorf("wrong method string %q", m.String())
	}
}

func TestAssignability(t *testing.T) {
	u, iface, animal, dog := testUniverse(t)
	if !dog.IsAssignableTo(animal) || !dog.IsAssignableTo(iface) || !dog.IsAssignableTo(u.ObjectType()) {
		t.Errorf("dog not assignable to its bases")
	}
	if animal.IsAssignableTo(dog) {
		t.Errorf("base assignable to derived")
	}
}

func TestContainsGenericParameters(t *testing.T) {
	u := NewUniverse(1)
	tparam := &Type{Name: "T", Kind: GenericParameter}
	open := u.Add(&Type{Name: "Coll.List`1[T]", Kind: Class, GenericArgs: []*Type{tparam}})
	closed := u.Add(&Type{Name: "Coll.List`1[System.Int32]", Kind: Class, GenericArgs: []*Type{u.PrimitiveType(TypeCodeInt32)}})
	if !open.ContainsGenericParameters() || closed.ContainsGenericParameters() {
		t.Errorf("wrong ContainsGenericParameters")
	}
}
