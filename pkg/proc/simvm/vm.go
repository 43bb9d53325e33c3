// Package simvm implements an in-memory debuggee together with the agent
// that controls it. It models the parts of a managed runtime the
// evaluation engine relies on: typed heap objects, structs copied by
// value, boxing, virtual dispatch, exceptions, threads and the protocol
// version gates of the real agents.
package simvm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-delve/remoteeval/pkg/logflags"
	"github.com/go-delve/remoteeval/pkg/metadata"
	"github.com/go-delve/remoteeval/pkg/proc"
	"github.com/go-delve/remoteeval/pkg/protoversion"
)

// Body is the implementation of a method of the simulated debuggee.
type Body func(f *Frame) (proc.Handle, error)

// Frame is the activation of a method body.
type Frame struct {
	Ctx    context.Context
	VM     *VM
	Thread *proc.Thread
	// This is the receiver. Struct receivers are private copies the body
	// may modify.
	This proc.Handle
	Args []proc.Handle
}

// Throw returns an error that makes the current call complete with an
// exception of type typ.
func (f *Frame) Throw(typ *metadata.Type, msg string) error {
	exc := f.VM.newObject(typ)
	exc.Fields["Message"] = f.VM.NewString(msg)
	return &thrown{exc: exc}
}

type thrown struct {
	exc *Object
}

func (t *thrown) Error() string { return "exception " + t.exc.Type.Name }

// VM is a simulated debuggee.
type VM struct {
	types   *metadata.Universe
	version protoversion.Version
	ptrSize int

	mu        sync.Mutex
	suspended bool
	threads   []*proc.Thread
	unsafe    map[int64]bool
	broken    map[int64]bool
	bodies    map[*metadata.Method]Body
	locals    map[string]*Local
	nextID    int64
	calls     []proc.Call
	counters  map[string]int
	released  int
}

// New returns an empty suspended VM speaking the given protocol version.
func New(types *metadata.Universe, version protoversion.Version, ptrSize int) *VM {
	return &VM{
		types:     types,
		version:   version,
		ptrSize:   ptrSize,
		suspended: true,
		unsafe:    make(map[int64]bool),
		broken:    make(map[int64]bool),
		bodies:    make(map[*metadata.Method]Body),
		locals:    make(map[string]*Local),
		counters:  make(map[string]int),
	}
}

// Types returns the universe of the VM.
func (vm *VM) Types() *metadata.Universe {
	return vm.types
}

// Define registers the body of m.
func (vm *VM) Define(m *metadata.Method, body Body) {
	vm.mu.Lock()
	vm.bodies[m] = body
	vm.mu.Unlock()
}

// AddThread adds a thread to the VM.
func (vm *VM) AddThread(t *proc.Thread) {
	vm.mu.Lock()
	vm.threads = append(vm.threads, t)
	vm.mu.Unlock()
}

// SetUnsafe marks a thread as stopped outside of a safe point: calls on
// it fail with proc.ErrVMNotSuspended.
func (vm *VM) SetUnsafe(id int64, unsafe bool) {
	vm.mu.Lock()
	vm.unsafe[id] = unsafe
	vm.mu.Unlock()
}

// SetBroken makes calls on a thread fail with a protocol error.
func (vm *VM) SetBroken(id int64, broken bool) {
	vm.mu.Lock()
	vm.broken[id] = broken
	vm.mu.Unlock()
}

// Calls returns the calls the agent received so far.
func (vm *VM) Calls() []proc.Call {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]proc.Call(nil), vm.calls...)
}

// Requests returns how many requests of the given kind ("invoke",
// "construct", "struct", "enum", "box", "unbox", "string", "threads")
// the agent served.
func (vm *VM) Requests(kind string) int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.counters[kind]
}

// TotalRequests returns the number of requests the agent served.
func (vm *VM) TotalRequests() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	n := 0
	for _, c := range vm.counters {
		n += c
	}
	return n
}

// Released returns how many object handles were released.
func (vm *VM) Released() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.released
}

// NewString allocates a string.
func (vm *VM) NewString(s string) *Object {
	o := vm.newObject(vm.types.StringType())
	o.Str = s
	return o
}

// NewInt32 returns an Int32 primitive.
func (vm *VM) NewInt32(v int32) *proc.Primitive {
	return &proc.Primitive{Type: vm.types.PrimitiveType(metadata.TypeCodeInt32), Val: v}
}

func (vm *VM) newObject(t *metadata.Type) *Object {
	vm.mu.Lock()
	vm.nextID++
	id := vm.nextID
	vm.mu.Unlock()
	o := &Object{ID: id, Type: t, Fields: make(map[string]proc.Handle)}
	for cur := t; cur != nil; cur = cur.Base {
		for _, f := range cur.InstanceFields() {
			o.Fields[f.Name] = vm.zero(f.Type)
		}
	}
	return o
}

// NewObject allocates an instance of the class t with zeroed fields.
func (vm *VM) NewObject(t *metadata.Type) *Object {
	return vm.newObject(t)
}

// zero returns the zero value of t without going through the protocol.
func (vm *VM) zero(t *metadata.Type) proc.Handle {
	switch {
	case !t.IsValueType():
		return &proc.Null{Type: t}
	case t.IsPointer(), t.IsFunctionPointer():
		if vm.ptrSize == 4 {
			return &proc.Primitive{Type: t, Val: int32(0)}
		}
		return &proc.Primitive{Type: t, Val: int64(0)}
	case t.Kind == metadata.Primitive:
		return proc.ZeroPrimitive(t)
	case t.IsEnum():
		return &Struct{Type: t, Fields: []proc.Handle{proc.ZeroPrimitive(t.Underlying)}}
	}
	fields := t.InstanceFields()
	s := &Struct{Type: t, Fields: make([]proc.Handle, len(fields))}
	for i, f := range fields {
		if metadata.TypeEqual(f.Type, t) {
			// Only reachable for malformed self-containing structs.
			s.Fields[i] = &proc.Null{Type: f.Type}
			continue
		}
		s.Fields[i] = vm.zero(f.Type)
	}
	return s
}

// NewStruct returns a struct of type t with the given fields.
func (vm *VM) NewStruct(t *metadata.Type, fields ...proc.Handle) *Struct {
	return &Struct{Type: t, Fields: fields}
}

func (vm *VM) count(kind string) {
	vm.mu.Lock()
	vm.counters[kind]++
	vm.mu.Unlock()
}

var errRunning = errors.New("vm is running")

// checkThread returns the error the agent reports for a call on t.
func (vm *VM) checkThread(t *proc.Thread) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.suspended {
		return errRunning
	}
	if t == nil {
		return nil
	}
	if vm.unsafe[t.ID] {
		return fmt.Errorf("thread %d: %w", t.ID, proc.ErrVMNotSuspended)
	}
	if vm.broken[t.ID] {
		return fmt.Errorf("thread %d: invalid thread state", t.ID)
	}
	return nil
}

func (vm *VM) log() logflags.Logger {
	return logflags.AgentLogger().WithField("agent", "simvm")
}

// SetPointerSize changes the pointer size reported by the agent.
func (vm *VM) SetPointerSize(n int) {
	vm.ptrSize = n
}
