package proc

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/go-delve/remoteeval/pkg/logflags"
	"github.com/go-delve/remoteeval/pkg/metadata"
)

// This file implements function evaluation.
//
// The main entry point is Session.Evaluate. After checking that an
// evaluation may start it either uses the thread named by the request or
// tries every thread of the method's domain in the order given by
// SelectThreads, stopping at the first attempt that does not fail with an
// internal error.
//
// Each attempt goes through funcEvalCall, which rewrites constructor calls
// on struct receivers for agents that can not return the receiver after
// the call, and funcEvalCallReal which resolves the method, converts the
// receiver and the arguments and performs the call.
//
// Agents that speak protocol 2.35 or later return the state of a struct
// receiver after the call (CallReturnOutThis): the engine copies it back
// into the receiver's location, which makes mutating methods called on
// struct locals behave as they would in the debuggee.

// EvalRequest describes a function evaluation.
type EvalRequest struct {
	Method *metadata.Method
	// Receiver is the instance the method is called on, nil for static
	// methods and new-object constructor calls.
	Receiver *Value
	// Args are the arguments. Each one is a *Value, a Handle, a string, a
	// Go boolean or numeric value, a Char or nil.
	Args []interface{}
	// NonVirtual calls Method itself instead of the override selected by
	// the runtime type of the receiver.
	NonVirtual bool
	// NewObject allocates a new instance and runs the constructor Method on
	// it.
	NewObject bool
	// Thread is the thread to run the call on. If nil every eligible
	// thread is tried.
	Thread *Thread
	// Timeout overrides the session's timeout when not zero.
	Timeout time.Duration
	// RunAllThreads lets the other threads run during the call.
	RunAllThreads bool
}

// Evaluate calls a method in the debuggee.
func (s *Session) Evaluate(ctx context.Context, req *EvalRequest) (out Outcome) {
	if err := s.beginEval(); err != nil {
		return errorOutcome(err)
	}
	defer func() { s.endEval(out.Err()) }()

	if err := ctx.Err(); err != nil {
		return errorOutcome(agentError(err))
	}
	if req.Method == nil {
		return errorOutcome(newEvalError(MalformedRequest, "no method"))
	}
	log := logflags.EvalLogger().WithFields(logflags.Fields{"evalid": uuid.New().String(), "method": req.Method.String()})

	if req.Thread != nil {
		return s.funcEvalCall(ctx, log, req.Thread, req)
	}

	threads, err := s.agent.Threads()
	if err != nil {
		return errorOutcome(agentError(err))
	}
	st := s.StopState()
	for _, th := range SelectThreads(threads, req.Method.DeclaringType.Domain, st.CurrentThread, st.BreakThread) {
		out = s.funcEvalCall(ctx, log, th, req)
		if ErrorKindOf(out.Err()) != InternalProtocolError {
			return out
		}
		log.Debugf("evaluation on thread %v failed: %v", th, out.Err())
	}
	return errorOutcome(newEvalError(InternalProtocolError, "no thread could evaluate %s", req.Method))
}

// funcEvalCall runs req on thread. Constructors called on a struct
// receiver are turned into a new-object call whose result is stored into
// the receiver when the agent can not return the receiver itself.
func (s *Session) funcEvalCall(ctx context.Context, log logflags.Logger, thread *Thread, req *EvalRequest) Outcome {
	m := req.Method
	if req.NewObject || req.Receiver == nil || !m.Constructor || !m.ReflectedType().IsValueType() || s.agent.Version().SupportsReturnOutThis() {
		return s.funcEvalCallReal(ctx, log, thread, req, req.Receiver, req.NewObject)
	}

	log.Debugf("constructing %s to store into its receiver", m.ReflectedType())
	res := s.funcEvalCallReal(ctx, log, thread, req, nil, true)
	if res.Kind() != OutcomeValue {
		return res
	}
	if err := req.Receiver.Store(res.Value().Handle()); err != nil {
		s.release(res.Value())
		return errorOutcome(agentError(err))
	}
	return res
}

// funcEvalCallReal performs one call on thread. obj is the receiver and
// newObj selects a new-object call.
func (s *Session) funcEvalCallReal(ctx context.Context, log logflags.Logger, thread *Thread, req *EvalRequest, obj *Value, newObj bool) Outcome {
	m := req.Method
	if newObj && !m.Constructor {
		return errorOutcome(newEvalError(MalformedRequest, "%s is not a constructor", m))
	}
	version := s.agent.Version()

	var recvType *metadata.Type
	if obj != nil {
		recvType = obj.RuntimeType()
	}
	called, flags, err := s.resolver.resolve(version, m, recvType, req.NonVirtual)
	if err != nil {
		return errorOutcome(err)
	}
	if called != m {
		log.Debugf("dispatching to %s", called)
	}

	params := m.AllParameterTypes()
	if len(params) != len(req.Args) {
		return errorOutcome(newEvalError(MalformedRequest, "%s takes %d arguments, got %d", m, len(params), len(req.Args)))
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.conf.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	mar := s.marshaler(ctx, thread)

	var hidden, created Handle
	switch {
	case !m.Static && !newObj:
		if obj == nil {
			return errorOutcome(newEvalError(MalformedRequest, "%s needs a receiver", m))
		}
		declType := m.DeclaringType
		if !m.Constructor {
			declType = m.BaseDefinition().DeclaringType
		}
		h, outThis, err := mar.convertReceiver(obj, m, declType, version.SupportsReturnOutThis())
		if err != nil {
			return errorOutcome(err)
		}
		hidden = h
		if outThis {
			flags |= CallReturnOutThis
		}
	case newObj && m.ReflectedType().IsValueType() && version.SupportsReturnOutThis():
		// Run the constructor on a default instance and keep the state it
		// leaves behind.
		h, err := buildDefault(s.agent, m.ReflectedType(), 0)
		if err != nil {
			return errorOutcome(err)
		}
		hidden, created = h, h
		newObj = false
		flags |= CallReturnOutThis
	}

	args := make([]Handle, len(req.Args))
	for i := range req.Args {
		h, err := mar.convertArgument(req.Args[i], params[i])
		if err != nil {
			return errorOutcome(err)
		}
		args[i] = h
	}

	if req.RunAllThreads || s.conf.RunAllThreads {
		flags |= CallRunAllThreads
	}
	call := &Call{Method: called, Receiver: hidden, Args: args, Flags: flags, Thread: thread, Timeout: timeout}
	log.Debugf("calling on thread %v with flags %#x", thread, flags)
	var res *CallResult
	if newObj {
		res, err = s.agent.Construct(ctx, call)
	} else {
		res, err = s.agent.Invoke(ctx, call)
	}
	if err != nil {
		return errorOutcome(agentError(err))
	}
	if res == nil {
		return errorOutcome(newEvalError(InternalProtocolError, "no reply for call to %s", called))
	}

	if flags&CallReturnOutThis != 0 && res.OutThis != nil && res.OutThis.Kind() == StructHandle {
		if created != nil {
			created = res.OutThis
		} else if obj != nil {
			if err := obj.Store(res.OutThis); err != nil {
				return errorOutcome(agentError(err))
			}
		}
	}

	if res.Exception != nil {
		log.Debugf("call threw %s", res.Exception.RuntimeType())
		return exceptionOutcome(s.Wrap(res.Exception, res.Exception.RuntimeType()))
	}
	retType := m.Return
	if m.Constructor {
		retType = m.ReflectedType()
	} else if retType == nil {
		retType = s.types.ObjectType()
	}
	h := res.Result
	if h == nil {
		h = created
	}
	return valueOutcome(s.Wrap(h, retType))
}
