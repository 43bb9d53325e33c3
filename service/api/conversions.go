package api

import (
	"fmt"

	"github.com/go-delve/remoteeval/pkg/proc"
)

// ConvertThread converts an internal thread to an API Thread.
func ConvertThread(th *proc.Thread) *Thread {
	if th == nil {
		return nil
	}
	var kind string
	switch th.Kind {
	case proc.ThreadMain:
		kind = "main"
	case proc.ThreadFinalizer:
		kind = "finalizer"
	}
	return &Thread{
		ID:     th.ID,
		Name:   th.Name,
		Domain: th.Domain,
		Kind:   kind,
	}
}

// ConvertVar converts a debuggee value to an API Variable.
func ConvertVar(name string, v *proc.Value) Variable {
	h := v.Handle()
	r := Variable{
		Name: name,
		Type: ShortenType(v.Type().String()),
	}
	if h == nil {
		r.Value = "null"
		r.Kind = proc.NullHandle.String()
		return r
	}
	r.Value = fmt.Sprint(h)
	r.Kind = h.Kind().String()
	r.Boxed = h.IsBoxed()
	if rt := h.RuntimeType(); rt != nil && rt != v.Type() && h.Kind() != proc.NullHandle {
		r.Type = ShortenType(rt.String())
	}
	return r
}

// ConvertOutcome converts the outcome of an evaluation to an EvalResult,
// or returns its error.
func ConvertOutcome(out proc.Outcome) (*EvalResult, error) {
	switch out.Kind() {
	case proc.OutcomeValue:
		return &EvalResult{Variable: ConvertVar("", out.Value())}, nil
	case proc.OutcomeException:
		return &EvalResult{Variable: ConvertVar("", out.Value()), Exception: true}, nil
	}
	return nil, out.Err()
}
