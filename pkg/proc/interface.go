package proc

import (
	"context"
	"time"

	"github.com/go-delve/remoteeval/pkg/metadata"
	"github.com/go-delve/remoteeval/pkg/protoversion"
)

// Agent is the remote debugging agent of a debuggee. All its methods
// issue requests over the debugger protocol.
type Agent interface {
	// Version returns the protocol version spoken by the agent.
	Version() protoversion.Version
	// PointerSize returns the size in bytes of a pointer in the debuggee.
	PointerSize() int

	Suspend() error
	Resume() error
	// Threads returns every thread of the debuggee.
	Threads() ([]*Thread, error)

	// Invoke calls a method. Invoke must give up and return an error when
	// ctx is done.
	Invoke(ctx context.Context, call *Call) (*CallResult, error)
	// Construct allocates a new instance of the declaring type of
	// call.Method and runs the constructor on it.
	Construct(ctx context.Context, call *Call) (*CallResult, error)

	// ConstructStruct creates a struct of type typ with the given field
	// values, in the order of typ.InstanceFields().
	ConstructStruct(typ *metadata.Type, fields []Handle) (Handle, error)
	// ConstructEnum creates a value of the enum type typ.
	ConstructEnum(typ *metadata.Type, underlying Handle) (Handle, error)
	// Box copies the value v of value type typ into a new heap object.
	Box(v Handle, typ *metadata.Type) (Handle, error)
	// Unbox returns the value type instance contained in the boxed object obj.
	Unbox(obj Handle, typ *metadata.Type) (Handle, error)
	// CreateString allocates a string in the debuggee.
	CreateString(ctx context.Context, thread *Thread, s string) (Handle, error)
}

// Releaser is implemented by agents that need to be told when the
// debugger stops using a handle.
type Releaser interface {
	Release(h Handle)
}

// TypeSystem gives access to the built-in types of the debuggee.
type TypeSystem interface {
	ObjectType() *metadata.Type
	StringType() *metadata.Type
	PrimitiveType(code metadata.TypeCode) *metadata.Type
}

// CallFlags modify how the agent performs a call.
type CallFlags uint8

const (
	// CallVirtual asks the agent to dispatch the call on the runtime type
	// of the receiver.
	CallVirtual CallFlags = 1 << iota
	// CallReturnOutThis asks the agent to return the state of a value
	// type receiver after the call.
	CallReturnOutThis
	// CallRunAllThreads lets every other thread run during the call.
	CallRunAllThreads
)

// Call is a method invocation request.
type Call struct {
	Method   *metadata.Method
	Receiver Handle
	Args     []Handle
	Flags    CallFlags
	Thread   *Thread
	Timeout  time.Duration
}

// CallResult is the reply of the agent to a call. Exception is set if
// the debuggee code threw.
type CallResult struct {
	Exception Handle
	Result    Handle
	OutThis   Handle
}

// Location is a storage slot of the debuggee: a local variable, a field,
// an array element, or a temporary.
type Location interface {
	Type() *metadata.Type
	Load() (Handle, error)
	Store(Handle) error
}
