package proc

import (
	"context"
	"sync"
	"time"

	"github.com/go-delve/remoteeval/pkg/logflags"
	"github.com/go-delve/remoteeval/pkg/metadata"
)

// DefaultTimeout is the function evaluation timeout used when Config
// does not set one.
const DefaultTimeout = time.Second

// Config configures a Session.
type Config struct {
	// Timeout bounds every remote call made by an evaluation.
	Timeout time.Duration
	// RunAllThreads lets the other threads of the debuggee run while a
	// function is evaluated.
	RunAllThreads bool
	// ResolverCacheSize is the number of virtual dispatch results
	// remembered by the session.
	ResolverCacheSize int
}

// StopState describes why the debuggee is paused.
type StopState struct {
	// CurrentThread is the thread selected by the user.
	CurrentThread *Thread
	// BreakThread is the thread that caused the stop.
	BreakThread *Thread
	// UnhandledException is set if the stop was caused by an exception no
	// handler caught.
	UnhandledException bool
}

// Session evaluates functions in a debuggee. A Session performs at most
// one evaluation at a time: an evaluation requested while another one is
// in flight fails with ErrConcurrentEvaluation.
type Session struct {
	agent    Agent
	types    TypeSystem
	conf     Config
	resolver *methodResolver
	tracker  valueTracker

	mu               sync.Mutex
	paused           bool
	stop             StopState
	evaluating       bool
	timedOutDisabled bool
}

// NewSession returns a session that talks to agent. The debuggee is
// assumed to be running until OnDebuggeePaused is called.
func NewSession(agent Agent, types TypeSystem, conf Config) *Session {
	if conf.Timeout <= 0 {
		conf.Timeout = DefaultTimeout
	}
	return &Session{
		agent:    agent,
		types:    types,
		conf:     conf,
		resolver: newMethodResolver(conf.ResolverCacheSize),
	}
}

// Agent returns the agent used by the session.
func (s *Session) Agent() Agent {
	return s.agent
}

// OnDebuggeePaused must be called every time the debuggee stops.
func (s *Session) OnDebuggeePaused(st StopState) {
	s.mu.Lock()
	s.paused = true
	s.stop = st
	s.mu.Unlock()
	logflags.EvalLogger().Debugf("debuggee paused, current thread %v, break thread %v", st.CurrentThread, st.BreakThread)
}

// OnDebuggeeResumed must be called every time the debuggee resumes. It
// re-enables evaluation after a timeout and closes every Value handed
// out since the last stop.
func (s *Session) OnDebuggeeResumed() {
	s.mu.Lock()
	s.paused = false
	s.stop = StopState{}
	s.timedOutDisabled = false
	s.mu.Unlock()
	rel, _ := s.agent.(Releaser)
	n := s.tracker.closeAll(rel)
	logflags.EvalLogger().Debugf("debuggee resumed, released %d values", n)
}

// Suspend stops the debuggee.
func (s *Session) Suspend() error {
	if err := s.agent.Suspend(); err != nil {
		return agentError(err)
	}
	s.OnDebuggeePaused(StopState{})
	return nil
}

// Resume lets the debuggee run. Values are released even when the agent
// fails to resume, but the session stays paused in that case.
func (s *Session) Resume() error {
	s.mu.Lock()
	stop, timedOut := s.stop, s.timedOutDisabled
	s.mu.Unlock()
	s.OnDebuggeeResumed()
	if err := s.agent.Resume(); err != nil {
		s.mu.Lock()
		s.paused, s.stop, s.timedOutDisabled = true, stop, timedOut
		s.mu.Unlock()
		return agentError(err)
	}
	return nil
}

// Paused reports whether the debuggee is paused.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// StopState returns the state of the last stop.
func (s *Session) StopState() StopState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop
}

// LiveValues returns the number of values that have not been released
// yet.
func (s *Session) LiveValues() int {
	return s.tracker.len()
}

// beginEval checks that an evaluation may start and marks one as in
// flight.
func (s *Session) beginEval() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.paused:
		return ErrNotPaused
	case s.stop.UnhandledException:
		return ErrUnhandledExceptionPending
	case s.timedOutDisabled:
		return ErrTimedOutDisabled
	case s.evaluating:
		return ErrConcurrentEvaluation
	}
	s.evaluating = true
	return nil
}

// endEval ends the evaluation started by beginEval. A timeout disables
// evaluation until the debuggee resumes.
func (s *Session) endEval(err error) {
	s.mu.Lock()
	s.evaluating = false
	if ErrorKindOf(err) == Timeout {
		s.timedOutDisabled = true
	}
	s.mu.Unlock()
}

// Wrap returns a tracked value holding h, with static type typ. A nil
// handle produces a null value.
func (s *Session) Wrap(h Handle, typ *metadata.Type) *Value {
	if h == nil {
		h = &Null{Type: typ}
	}
	return s.tracker.add(&Value{typ: typ, loc: &tempLocation{typ: typ, h: h}, handle: h})
}

// NewValue returns a tracked value for the storage slot loc.
func (s *Session) NewValue(loc Location) (*Value, error) {
	h, err := loc.Load()
	if err != nil {
		return nil, agentError(err)
	}
	if h == nil {
		h = &Null{Type: loc.Type()}
	}
	return s.tracker.add(&Value{typ: loc.Type(), loc: loc, handle: h}), nil
}

func (s *Session) release(v *Value) {
	rel, _ := s.agent.(Releaser)
	closeValue(v, rel)
}

func (s *Session) marshaler(ctx context.Context, thread *Thread) *argMarshaler {
	return &argMarshaler{agent: s.agent, types: s.types, ctx: ctx, thread: thread}
}

// Box returns v boxed as an object of value type typ. Host values are
// converted to typ first; debuggee values must already be of type typ.
func (s *Session) Box(ctx context.Context, v interface{}, typ *metadata.Type) (out Outcome) {
	if err := s.beginEval(); err != nil {
		return errorOutcome(err)
	}
	defer func() { s.endEval(out.Err()) }()
	if !typ.IsValueType() {
		return errorOutcome(newEvalError(MalformedRequest, "can not box reference type %s", typ))
	}
	if typ.Kind == metadata.Primitive {
		if p, ok := hostPrimitive(s.types, v); ok {
			cp, err := ConvertPrimitive(p, typ)
			if err != nil {
				return errorOutcome(err)
			}
			v = cp
		}
	}
	ctx, cancel := context.WithTimeout(ctx, s.conf.Timeout)
	defer cancel()
	m := s.marshaler(ctx, s.StopState().CurrentThread)
	h, valueType, err := m.convert(v, typ)
	if err != nil {
		return errorOutcome(err)
	}
	if h.Kind() == NullHandle {
		return errorOutcome(newEvalError(InternalProtocolError, "can not box null"))
	}
	if !metadata.TypeEqual(valueType, typ) {
		return errorOutcome(newEvalError(MalformedRequest, "can not box %s as %s", valueType, typ))
	}
	boxed, err := m.boxIfNeeded(h, s.types.ObjectType(), valueType)
	if err != nil {
		return errorOutcome(err)
	}
	return valueOutcome(s.Wrap(boxed, typ))
}

// BuildDefaultValue returns the default value of typ.
func (s *Session) BuildDefaultValue(ctx context.Context, typ *metadata.Type) (out Outcome) {
	if err := s.beginEval(); err != nil {
		return errorOutcome(err)
	}
	defer func() { s.endEval(out.Err()) }()
	if err := ctx.Err(); err != nil {
		return errorOutcome(agentError(err))
	}
	h, err := buildDefault(s.agent, typ, 0)
	if err != nil {
		return errorOutcome(err)
	}
	return valueOutcome(s.Wrap(h, typ))
}

// CreateValue returns a debuggee value for v. Values are returned
// unchanged, host strings are allocated in the debuggee and host
// primitives are boxed.
func (s *Session) CreateValue(ctx context.Context, v interface{}) (out Outcome) {
	if dv, ok := v.(*Value); ok {
		return valueOutcome(dv)
	}
	if err := s.beginEval(); err != nil {
		return errorOutcome(err)
	}
	defer func() { s.endEval(out.Err()) }()
	ctx, cancel := context.WithTimeout(ctx, s.conf.Timeout)
	defer cancel()
	obj := s.types.ObjectType()
	m := s.marshaler(ctx, s.StopState().CurrentThread)
	h, typ, err := m.convert(v, obj)
	if err != nil {
		return errorOutcome(err)
	}
	h, err = m.boxIfNeeded(h, obj, typ)
	if err != nil {
		return errorOutcome(err)
	}
	return valueOutcome(s.Wrap(h, typ))
}
