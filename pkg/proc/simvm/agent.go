package simvm

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-delve/remoteeval/pkg/metadata"
	"github.com/go-delve/remoteeval/pkg/proc"
	"github.com/go-delve/remoteeval/pkg/protoversion"
)

func (vm *VM) Version() protoversion.Version { return vm.version }
func (vm *VM) PointerSize() int              { return vm.ptrSize }

func (vm *VM) Suspend() error {
	vm.mu.Lock()
	vm.suspended = true
	vm.mu.Unlock()
	return nil
}

func (vm *VM) Resume() error {
	vm.mu.Lock()
	vm.suspended = false
	vm.mu.Unlock()
	return nil
}

// Running reports whether the VM is running.
func (vm *VM) Running() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return !vm.suspended
}

func (vm *VM) Threads() ([]*proc.Thread, error) {
	vm.count("threads")
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]*proc.Thread(nil), vm.threads...), nil
}

func (vm *VM) Invoke(ctx context.Context, call *proc.Call) (*proc.CallResult, error) {
	vm.count("invoke")
	return vm.call(ctx, call, false)
}

func (vm *VM) Construct(ctx context.Context, call *proc.Call) (*proc.CallResult, error) {
	vm.count("construct")
	return vm.call(ctx, call, true)
}

func (vm *VM) call(ctx context.Context, call *proc.Call, newObj bool) (*proc.CallResult, error) {
	vm.mu.Lock()
	vm.calls = append(vm.calls, *call)
	vm.mu.Unlock()
	if err := vm.checkThread(call.Thread); err != nil {
		return nil, err
	}

	m := call.Method
	log := vm.log().WithField("method", m.String())
	if call.Flags&proc.CallVirtual != 0 && !vm.version.SupportsVirtualDispatch() {
		return nil, fmt.Errorf("invoke %s: virtual flag needs protocol %v", m, protoversion.MinVirtualDispatch)
	}
	if call.Flags&proc.CallReturnOutThis != 0 && !vm.version.SupportsReturnOutThis() {
		return nil, fmt.Errorf("invoke %s: return-out-this flag needs protocol %v", m, protoversion.MinReturnOutThis)
	}
	if len(call.Args) != len(m.AllParameterTypes()) {
		return nil, fmt.Errorf("invoke %s: wrong number of arguments", m)
	}
	for i, p := range m.AllParameterTypes() {
		if err := checkPassable(call.Args[i], p); err != nil {
			return nil, fmt.Errorf("invoke %s: argument %d: %v", m, i, err)
		}
	}

	var this proc.Handle
	switch {
	case newObj:
		if !m.Constructor {
			return nil, fmt.Errorf("construct %s: not a constructor", m)
		}
		t := m.DeclaringType
		if t.IsValueType() {
			this = vm.zero(t)
		} else {
			this = vm.newObject(t)
		}
	case !m.Static:
		if call.Receiver == nil || call.Receiver.Kind() == proc.NullHandle {
			exc := vm.newObject(vm.exceptionType("System.NullReferenceException"))
			return &proc.CallResult{Exception: exc}, nil
		}
		if call.Flags&proc.CallVirtual != 0 {
			m = dispatch(call.Receiver.RuntimeType(), m)
			log.Debugf("dispatched to %s", m)
		}
		this = copyHandle(call.Receiver)
		if o, ok := call.Receiver.(*Object); ok && o.Boxed != nil && m.DeclaringType.IsValueType() {
			// Methods of value types run in place on the contents of a
			// boxed receiver.
			this = o.Boxed
		}
		if err := checkPassable(this, m.DeclaringType); err != nil {
			return nil, fmt.Errorf("invoke %s: receiver: %v", m, err)
		}
	}

	vm.mu.Lock()
	body := vm.bodies[m]
	vm.mu.Unlock()
	if body == nil || m.Abstract {
		return nil, fmt.Errorf("invoke %s: method has no body", m)
	}

	args := make([]proc.Handle, len(call.Args))
	for i := range call.Args {
		args[i] = copyHandle(call.Args[i])
	}
	f := &Frame{Ctx: ctx, VM: vm, Thread: call.Thread, This: this, Args: args}
	res, err := body(f)
	var exc *thrown
	switch {
	case errors.As(err, &exc):
		log.Debugf("threw %s", exc.exc.Type)
		return &proc.CallResult{Exception: exc.exc}, nil
	case errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("invoke %s: %w", m, proc.ErrAgentTimeout)
	case err != nil:
		return nil, err
	}

	r := &proc.CallResult{Result: res}
	if newObj {
		r.Result = this
	}
	if call.Flags&proc.CallReturnOutThis != 0 {
		r.OutThis = this
	}
	return r, nil
}

// dispatch finds the implementation of m for the runtime type t.
func dispatch(t *metadata.Type, m *metadata.Method) *metadata.Method {
	base := m.BaseDefinition()
	for _, cand := range t.AllMethods() {
		if cand == m || cand.BaseDefinition() == base {
			return cand
		}
	}
	return m
}

// checkPassable returns an error if h can not be passed where a value of
// type t is expected.
func checkPassable(h proc.Handle, t *metadata.Type) error {
	if h == nil {
		return errors.New("missing value")
	}
	rt := h.RuntimeType()
	switch h.Kind() {
	case proc.NullHandle:
		if t.IsValueType() {
			return fmt.Errorf("null passed as %s", t)
		}
		return nil
	case proc.PrimitiveHandle, proc.StructHandle:
		if !t.IsValueType() {
			return fmt.Errorf("unboxed %s passed as %s", rt, t)
		}
	case proc.ObjectHandle:
		if t.IsValueType() {
			return fmt.Errorf("object %s passed as %s", rt, t)
		}
	}
	if rt != nil && !rt.IsAssignableTo(t) {
		return fmt.Errorf("%s is not assignable to %s", rt, t)
	}
	return nil
}

func (vm *VM) exceptionType(name string) *metadata.Type {
	if t, ok := vm.types.Lookup(name); ok {
		return t
	}
	return vm.types.ObjectType()
}

func (vm *VM) ConstructStruct(typ *metadata.Type, fields []proc.Handle) (proc.Handle, error) {
	vm.count("struct")
	if err := vm.checkThread(nil); err != nil {
		return nil, err
	}
	want := typ.InstanceFields()
	if len(fields) != len(want) {
		return nil, fmt.Errorf("construct %s: %d fields, want %d", typ, len(fields), len(want))
	}
	s := &Struct{Type: typ, Fields: make([]proc.Handle, len(fields))}
	for i := range fields {
		if err := checkPassable(fields[i], want[i].Type); err != nil {
			return nil, fmt.Errorf("construct %s: field %s: %v", typ, want[i].Name, err)
		}
		s.Fields[i] = copyHandle(fields[i])
	}
	return s, nil
}

func (vm *VM) ConstructEnum(typ *metadata.Type, underlying proc.Handle) (proc.Handle, error) {
	vm.count("enum")
	if err := vm.checkThread(nil); err != nil {
		return nil, err
	}
	if !typ.IsEnum() || underlying.Kind() != proc.PrimitiveHandle {
		return nil, fmt.Errorf("construct enum %s: invalid value %v", typ, underlying)
	}
	return &Struct{Type: typ, Fields: []proc.Handle{underlying}}, nil
}

func (vm *VM) Box(v proc.Handle, typ *metadata.Type) (proc.Handle, error) {
	vm.count("box")
	if err := vm.checkThread(nil); err != nil {
		return nil, err
	}
	if k := v.Kind(); k != proc.PrimitiveHandle && k != proc.StructHandle {
		return nil, fmt.Errorf("box: %v is not a value type instance", v)
	}
	o := vm.newObject(typ)
	o.Boxed = copyHandle(v)
	return o, nil
}

func (vm *VM) Unbox(obj proc.Handle, typ *metadata.Type) (proc.Handle, error) {
	vm.count("unbox")
	if err := vm.checkThread(nil); err != nil {
		return nil, err
	}
	o, ok := obj.(*Object)
	if !ok || o.Boxed == nil || !metadata.TypeEqual(o.Type, typ) {
		return nil, fmt.Errorf("unbox: %v is not a boxed %s", obj, typ)
	}
	return copyHandle(o.Boxed), nil
}

func (vm *VM) CreateString(ctx context.Context, thread *proc.Thread, s string) (proc.Handle, error) {
	vm.count("string")
	if err := vm.checkThread(thread); err != nil {
		return nil, err
	}
	return vm.NewString(s), nil
}

func (vm *VM) Release(h proc.Handle) {
	vm.mu.Lock()
	vm.released++
	vm.mu.Unlock()
}
