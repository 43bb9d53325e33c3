package proc

import (
	"github.com/go-delve/remoteeval/pkg/metadata"
)

// maxDefaultValueDepth bounds the nesting of struct fields when building
// default values.
const maxDefaultValueDepth = 100

// buildDefault returns the zero value of t: null for reference types,
// zero for primitives and pointers, and a struct or enum assembled by the
// agent from the zero values of its fields.
func buildDefault(agent Agent, t *metadata.Type, depth int) (Handle, error) {
	if depth > maxDefaultValueDepth {
		return nil, newEvalError(DepthExceeded, "building default value of %s", t)
	}
	if !t.IsValueType() {
		return &Null{Type: t}, nil
	}
	switch {
	case t.IsPointer(), t.IsFunctionPointer():
		return zeroPointer(t, agent.PointerSize()), nil
	case t.IsEnum():
		if t.Underlying == nil {
			return nil, newEvalError(InternalProtocolError, "enum %s has no underlying type", t)
		}
		u, err := buildDefault(agent, t.Underlying, depth+1)
		if err != nil {
			return nil, err
		}
		h, err := agent.ConstructEnum(t, u)
		return h, agentError(err)
	case t.Kind == metadata.Primitive:
		return ZeroPrimitive(t), nil
	}
	fields := t.InstanceFields()
	vals := make([]Handle, len(fields))
	for i, f := range fields {
		h, err := buildDefault(agent, f.Type, depth+1)
		if err != nil {
			return nil, err
		}
		vals[i] = h
	}
	h, err := agent.ConstructStruct(t, vals)
	return h, agentError(err)
}
