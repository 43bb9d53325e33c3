package proc

import (
	"context"

	"github.com/go-delve/remoteeval/pkg/metadata"
)

// argMarshaler converts receivers and arguments into the handles the
// agent expects for one call.
type argMarshaler struct {
	agent  Agent
	types  TypeSystem
	ctx    context.Context
	thread *Thread
}

// convert turns v into a handle. It returns the type of the value that
// was produced, which is the runtime type for debuggee values and the
// matching built-in type for host values. target is the type the value
// will be passed as and is used as the static type of nil.
func (m *argMarshaler) convert(v interface{}, target *metadata.Type) (Handle, *metadata.Type, error) {
	switch x := v.(type) {
	case nil:
		return &Null{Type: target}, target, nil
	case *Value:
		h := x.Handle()
		if h == nil {
			return &Null{Type: x.Type()}, x.Type(), nil
		}
		return h, x.RuntimeType(), nil
	case Handle:
		return x, x.RuntimeType(), nil
	case string:
		h, err := m.agent.CreateString(m.ctx, m.thread, x)
		if err != nil {
			return nil, nil, agentError(err)
		}
		return h, m.types.StringType(), nil
	}
	if p, ok := hostPrimitive(m.types, v); ok {
		return p, p.Type, nil
	}
	return nil, nil, newEvalError(MalformedRequest, "can not pass value of type %T", v)
}

// boxIfNeeded boxes h when it is passed as the reference type target but
// holds an unboxed instance of the value type valueType.
func (m *argMarshaler) boxIfNeeded(h Handle, target, valueType *metadata.Type) (Handle, error) {
	if target.IsValueType() || valueType == nil || !valueType.IsValueType() {
		return h, nil
	}
	if k := h.Kind(); k != PrimitiveHandle && k != StructHandle {
		return h, nil
	}
	boxed, err := m.agent.Box(h, valueType)
	if err != nil {
		return nil, agentError(err)
	}
	return boxed, nil
}

// convertArgument converts v for a parameter of type param.
func (m *argMarshaler) convertArgument(v interface{}, param *metadata.Type) (Handle, error) {
	h, typ, err := m.convert(v, param)
	if err != nil {
		return nil, err
	}
	return m.boxIfNeeded(h, param, typ)
}

// convertReceiver converts the receiver of a call to method. declType is
// the type the receiver is passed as. A value type receiver of a method
// declared on that same value type is passed as the raw struct, unboxing
// it if needed. outThis is set when the agent can return the state of
// the struct after the call, which happens when the receiver handle is
// passed unchanged.
func (m *argMarshaler) convertReceiver(obj *Value, method *metadata.Method, declType *metadata.Type, supportsOutThis bool) (hidden Handle, outThis bool, err error) {
	val, typ, err := m.convert(obj, declType)
	if err != nil {
		return nil, false, err
	}
	if typ != nil && typ.IsValueType() && metadata.TypeEqual(method.DeclaringType, typ) {
		hidden = val
		if val.Kind() == ObjectHandle {
			hidden, err = m.agent.Unbox(val, typ)
			if err != nil {
				return nil, false, agentError(err)
			}
		}
	} else {
		hidden, err = m.boxIfNeeded(val, declType, typ)
		if err != nil {
			return nil, false, err
		}
	}
	outThis = hidden == val && val.Kind() == StructHandle && supportsOutThis
	return hidden, outThis, nil
}
