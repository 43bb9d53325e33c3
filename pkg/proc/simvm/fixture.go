package simvm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-delve/remoteeval/pkg/metadata"
	"github.com/go-delve/remoteeval/pkg/proc"
	"github.com/go-delve/remoteeval/pkg/protoversion"
)

// NestingDepth is the length of the chain of nested structs Nest0,
// Nest1, ... defined by the fixture.
const NestingDepth = 102

// Fixture is a VM loaded with a small demo program, paused in a frame
// with a few locals.
type Fixture struct {
	*VM

	Exception, NullReference, Failure *metadata.Type
	Point, PointPtr, Line, Color      *metadata.Type
	Animal, Dog, IGreeter, Greeter    *metadata.Type
	Util, OpenBox, Nest0              *metadata.Type

	ObjectToString, Int32ToString                      *metadata.Method
	PointCtor, PointOffset, PointSum, PointToString    *metadata.Method
	AnimalCtor, AnimalSpeak, AnimalDescribe            *metadata.Method
	DogCtor, DogSpeak                                  *metadata.Method
	Greet, GreetImpl, GreeterCtor                      *metadata.Method
	Echo, Add, Fail, Hang, Format, Identity, ArrayGet  *metadata.Method
	OpenBoxEmpty                                       *metadata.Method

	Main, Worker, Finalizer, Worker2, Foreign *proc.Thread
}

// NewFixture returns the demo program running on an agent that speaks
// version.
func NewFixture(version protoversion.Version) *Fixture {
	u := metadata.NewUniverse(1)
	f := &Fixture{VM: New(u, version, 8)}

	obj := u.ObjectType()
	str := u.StringType()
	i32 := u.PrimitiveType(metadata.TypeCodeInt32)
	f.ObjectToString = obj.MethodsNamed("ToString")[0]

	f.Exception = u.Add(&metadata.Type{Name: "System.Exception", Kind: metadata.Class, Fields: []*metadata.Field{{Name: "Message", Type: str}}})
	f.NullReference = u.Add(&metadata.Type{Name: "System.NullReferenceException", Kind: metadata.Class, Base: f.Exception})
	f.Failure = u.Add(&metadata.Type{Name: "Demo.Failure", Kind: metadata.Class, Base: f.Exception})

	f.Int32ToString = &metadata.Method{Name: "ToString", DeclaringType: i32, Return: str, Virtual: true, Overrides: f.ObjectToString}
	i32.Methods = append(i32.Methods, f.Int32ToString)

	f.Color = u.Add(&metadata.Type{Name: "Demo.Color", Kind: metadata.Enum, Underlying: i32})

	f.PointCtor = &metadata.Method{Name: ".ctor", Constructor: true, Params: []*metadata.Type{i32, i32}}
	f.PointOffset = &metadata.Method{Name: "Offset", Params: []*metadata.Type{i32}}
	f.PointSum = &metadata.Method{Name: "Sum", Return: i32}
	f.PointToString = &metadata.Method{Name: "ToString", Return: str, Virtual: true, Overrides: f.ObjectToString}
	f.Point = u.Add(&metadata.Type{
		Name:    "Demo.Point",
		Kind:    metadata.Struct,
		Fields:  []*metadata.Field{{Name: "X", Type: i32}, {Name: "Y", Type: i32}, {Name: "Origin", Type: nil, Static: true}},
		Methods: []*metadata.Method{f.PointCtor, f.PointOffset, f.PointSum, f.PointToString},
	})
	f.Point.Fields[2].Type = f.Point
	f.PointPtr = u.Add(&metadata.Type{Name: "Demo.Point*", Kind: metadata.Pointer})
	f.Line = u.Add(&metadata.Type{
		Name: "Demo.Line",
		Kind: metadata.Struct,
		Fields: []*metadata.Field{
			{Name: "Start", Type: f.Point},
			{Name: "End", Type: f.Point},
			{Name: "Color", Type: f.Color},
			{Name: "Anchor", Type: f.PointPtr},
			{Name: "Label", Type: str},
			{Name: "Segments", Type: i32, Literal: true},
		},
	})

	f.AnimalCtor = &metadata.Method{Name: ".ctor", Constructor: true, Params: []*metadata.Type{str}}
	f.AnimalSpeak = &metadata.Method{Name: "Speak", Return: str, Virtual: true}
	f.AnimalDescribe = &metadata.Method{Name: "Describe", Return: str}
	f.Animal = u.Add(&metadata.Type{
		Name:    "Demo.Animal",
		Kind:    metadata.Class,
		Fields:  []*metadata.Field{{Name: "Name", Type: str}},
		Methods: []*metadata.Method{f.AnimalCtor, f.AnimalSpeak, f.AnimalDescribe},
	})
	f.DogCtor = &metadata.Method{Name: ".ctor", Constructor: true, Params: []*metadata.Type{str}}
	f.DogSpeak = &metadata.Method{Name: "Speak", Return: str, Virtual: true, Overrides: f.AnimalSpeak}
	f.Dog = u.Add(&metadata.Type{Name: "Demo.Dog", Kind: metadata.Class, Base: f.Animal, Methods: []*metadata.Method{f.DogCtor, f.DogSpeak}})

	f.Greet = &metadata.Method{Name: "Greet", Return: str, Virtual: true, Abstract: true}
	f.IGreeter = u.Add(&metadata.Type{Name: "Demo.IGreeter", Kind: metadata.Interface, Methods: []*metadata.Method{f.Greet}})
	f.GreeterCtor = &metadata.Method{Name: ".ctor", Constructor: true}
	f.GreetImpl = &metadata.Method{Name: "Demo.IGreeter.Greet", Return: str, Virtual: true, Private: true, Overrides: f.Greet}
	f.Greeter = u.Add(&metadata.Type{
		Name:       "Demo.Greeter",
		Kind:       metadata.Class,
		Interfaces: []*metadata.Type{f.IGreeter},
		Methods:    []*metadata.Method{f.GreeterCtor, f.GreetImpl},
	})

	f.Echo = &metadata.Method{Name: "Echo", Static: true, Params: []*metadata.Type{obj}, Return: obj}
	f.Add = &metadata.Method{Name: "Add", Static: true, Params: []*metadata.Type{i32, i32}, Return: i32}
	f.Fail = &metadata.Method{Name: "Fail", Static: true}
	f.Hang = &metadata.Method{Name: "Hang", Static: true}
	f.Format = &metadata.Method{Name: "Format", Static: true, Params: []*metadata.Type{str}, VarArgs: []*metadata.Type{i32, i32}, Return: str}
	f.Identity = &metadata.Method{Name: "Identity", Static: true, Params: []*metadata.Type{i32}, Return: i32, GenericArgs: []*metadata.Type{i32}}
	f.ArrayGet = &metadata.Method{Name: "Get", Static: true, Params: []*metadata.Type{i32}, Return: obj, Kind: metadata.MethodKindArray}
	f.Util = u.Add(&metadata.Type{
		Name:    "Demo.Util",
		Kind:    metadata.Class,
		Methods: []*metadata.Method{f.Echo, f.Add, f.Fail, f.Hang, f.Format, f.Identity, f.ArrayGet},
	})

	f.OpenBoxEmpty = &metadata.Method{Name: "Empty", Static: true, Return: obj}
	tparam := &metadata.Type{Name: "T", Kind: metadata.GenericParameter}
	f.OpenBox = u.Add(&metadata.Type{Name: "Demo.Box`1", Kind: metadata.Class, GenericArgs: []*metadata.Type{tparam}, Methods: []*metadata.Method{f.OpenBoxEmpty}})

	var next *metadata.Type
	for i := NestingDepth - 1; i >= 0; i-- {
		t := &metadata.Type{Name: fmt.Sprintf("Demo.Nest%d", i), Kind: metadata.Struct}
		if next != nil {
			t.Fields = []*metadata.Field{{Name: "Next", Type: next}}
		}
		next = u.Add(t)
	}
	f.Nest0 = next

	f.defineBodies()

	f.Main = &proc.Thread{ID: 1, Name: "Main", Domain: 1, Kind: proc.ThreadMain}
	f.Worker = &proc.Thread{ID: 2, Name: "Worker", Domain: 1}
	f.Finalizer = &proc.Thread{ID: 3, Name: "Finalizer", Domain: 1, Kind: proc.ThreadFinalizer}
	f.Worker2 = &proc.Thread{ID: 4, Name: "Worker 2", Domain: 1}
	f.Foreign = &proc.Thread{ID: 5, Name: "Plugin", Domain: 2}
	for _, t := range []*proc.Thread{f.Finalizer, f.Worker, f.Main, f.Foreign, f.Worker2} {
		f.AddThread(t)
	}

	f.SetLocal("p", f.Point, f.NewStruct(f.Point, f.NewInt32(1), f.NewInt32(2)))
	frozen := f.SetLocal("frozen", f.Point, f.NewStruct(f.Point, f.NewInt32(5), f.NewInt32(5)))
	frozen.ReadOnly = true
	f.SetLocal("line", f.Line, f.zero(f.Line))
	dog := f.NewObject(f.Dog)
	dog.Fields["Name"] = f.NewString("Rex")
	f.SetLocal("pet", f.Animal, dog)
	f.SetLocal("greeter", f.IGreeter, f.NewObject(f.Greeter))
	f.SetLocal("n", i32, f.NewInt32(42))
	f.SetLocal("s", str, f.NewString("hello"))
	f.SetLocal("color", f.Color, &Struct{Type: f.Color, Fields: []proc.Handle{f.NewInt32(2)}})
	boxed := f.NewObject(i32)
	boxed.Boxed = f.NewInt32(7)
	f.SetLocal("boxed", obj, boxed)
	f.SetLocal("nothing", f.Animal, &proc.Null{Type: f.Animal})
	return f
}

func (f *Fixture) defineBodies() {
	f.Define(f.ObjectToString, func(fr *Frame) (proc.Handle, error) {
		return fr.VM.NewString(fr.This.RuntimeType().Name), nil
	})
	f.Define(f.Int32ToString, func(fr *Frame) (proc.Handle, error) {
		return fr.VM.NewString(strconv.Itoa(int(Int32(fr.This)))), nil
	})

	f.Define(f.PointCtor, func(fr *Frame) (proc.Handle, error) {
		p := fr.This.(*Struct)
		p.SetField("X", fr.Args[0])
		p.SetField("Y", fr.Args[1])
		return nil, nil
	})
	f.Define(f.PointOffset, func(fr *Frame) (proc.Handle, error) {
		p := fr.This.(*Struct)
		d := Int32(fr.Args[0])
		p.SetField("X", fr.VM.NewInt32(Int32(p.Field("X"))+d))
		p.SetField("Y", fr.VM.NewInt32(Int32(p.Field("Y"))+d))
		return nil, nil
	})
	f.Define(f.PointSum, func(fr *Frame) (proc.Handle, error) {
		p := fr.This.(*Struct)
		return fr.VM.NewInt32(Int32(p.Field("X")) + Int32(p.Field("Y"))), nil
	})
	f.Define(f.PointToString, func(fr *Frame) (proc.Handle, error) {
		p := fr.This.(*Struct)
		return fr.VM.NewString(fmt.Sprintf("(%d, %d)", Int32(p.Field("X")), Int32(p.Field("Y")))), nil
	})

	setName := func(fr *Frame) (proc.Handle, error) {
		fr.This.(*Object).Fields["Name"] = fr.Args[0]
		return nil, nil
	}
	f.Define(f.AnimalCtor, setName)
	f.Define(f.DogCtor, setName)
	f.Define(f.AnimalSpeak, func(fr *Frame) (proc.Handle, error) {
		return fr.VM.NewString("..."), nil
	})
	f.Define(f.DogSpeak, func(fr *Frame) (proc.Handle, error) {
		return fr.VM.NewString("Woof"), nil
	})
	f.Define(f.AnimalDescribe, func(fr *Frame) (proc.Handle, error) {
		o := fr.This.(*Object)
		return fr.VM.NewString(Str(o.Fields["Name"]) + " is a " + o.Type.ShortName()), nil
	})

	f.Define(f.GreeterCtor, func(fr *Frame) (proc.Handle, error) { return nil, nil })
	f.Define(f.GreetImpl, func(fr *Frame) (proc.Handle, error) {
		return fr.VM.NewString("Hello"), nil
	})

	f.Define(f.Echo, func(fr *Frame) (proc.Handle, error) {
		return fr.Args[0], nil
	})
	f.Define(f.Add, func(fr *Frame) (proc.Handle, error) {
		return fr.VM.NewInt32(Int32(fr.Args[0]) + Int32(fr.Args[1])), nil
	})
	f.Define(f.Fail, func(fr *Frame) (proc.Handle, error) {
		return nil, fr.Throw(f.Failure, "boom")
	})
	f.Define(f.Hang, func(fr *Frame) (proc.Handle, error) {
		<-fr.Ctx.Done()
		return nil, fr.Ctx.Err()
	})
	f.Define(f.Format, func(fr *Frame) (proc.Handle, error) {
		parts := []string{Str(fr.Args[0])}
		for _, a := range fr.Args[1:] {
			parts = append(parts, strconv.Itoa(int(Int32(a))))
		}
		return fr.VM.NewString(strings.Join(parts, " ")), nil
	})
	f.Define(f.Identity, func(fr *Frame) (proc.Handle, error) {
		return fr.Args[0], nil
	})
	f.Define(f.OpenBoxEmpty, func(fr *Frame) (proc.Handle, error) {
		return &proc.Null{Type: fr.VM.types.ObjectType()}, nil
	})
}
