package debugger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-delve/remoteeval/pkg/logflags"
	"github.com/go-delve/remoteeval/pkg/metadata"
	"github.com/go-delve/remoteeval/pkg/proc"
	"github.com/go-delve/remoteeval/pkg/proc/callexpr"
	"github.com/go-delve/remoteeval/pkg/proc/simvm"
	"github.com/go-delve/remoteeval/pkg/protoversion"
	"github.com/go-delve/remoteeval/service/api"
)

// Debugger service.
//
// Debugger provides a higher level of abstraction over proc.Session. It
// handles converting from internal types to the types expected by
// clients and resolving the names users type into types, locals and
// methods.
type Debugger struct {
	config *Config
	log    logflags.Logger

	targetMutex sync.Mutex
	target      *simvm.Fixture
	session     *proc.Session
	current     *proc.Thread
}

// Config provides the configuration to start a Debugger.
type Config struct {
	// ProtocolVersion is the debugger protocol version spoken by the
	// agent, for example "2.35".
	ProtocolVersion string
	// PointerSize is the pointer size of the debuggee, 4 or 8.
	PointerSize int
	// FuncEvalTimeout bounds function evaluations.
	FuncEvalTimeout time.Duration
	// RunAllThreads lets all threads run during function evaluations.
	RunAllThreads bool
}

// DefaultProtocolVersion is the protocol version used when Config does
// not set one.
const DefaultProtocolVersion = "2.40"

// ErrNotFound is returned when a thread, local or type does not exist.
var ErrNotFound = errors.New("not found")

// New starts the debuggee and returns a Debugger attached to it. The
// debuggee starts stopped at a breakpoint on its main thread.
func New(config *Config) (*Debugger, error) {
	if config == nil {
		config = &Config{}
	}
	verstr := config.ProtocolVersion
	if verstr == "" {
		verstr = DefaultProtocolVersion
	}
	ver, ok := protoversion.Parse(verstr)
	if !ok {
		return nil, fmt.Errorf("invalid protocol version %q", verstr)
	}
	d := &Debugger{
		config: config,
		log:    logflags.DebuggerLogger(),
	}
	d.log.Infof("launching debuggee, protocol version %v", ver)
	d.target = simvm.NewFixture(ver)
	switch config.PointerSize {
	case 0:
	case 4, 8:
		d.target.SetPointerSize(config.PointerSize)
	default:
		return nil, fmt.Errorf("invalid pointer size %d", config.PointerSize)
	}
	d.session = proc.NewSession(d.target, d.target.Types(), proc.Config{
		Timeout:       config.FuncEvalTimeout,
		RunAllThreads: config.RunAllThreads,
	})
	d.current = d.target.Main
	d.stop()
	return d, nil
}

// stop tells the session the debuggee stopped at its breakpoint.
func (d *Debugger) stop() {
	d.session.OnDebuggeePaused(proc.StopState{CurrentThread: d.current, BreakThread: d.target.Main})
}

// Session returns the evaluation session of the debugger.
func (d *Debugger) Session() *proc.Session {
	return d.session
}

// State returns the current state of the debugger.
func (d *Debugger) State() *api.DebuggerState {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()
	return d.state()
}

func (d *Debugger) state() *api.DebuggerState {
	st := d.session.StopState()
	return &api.DebuggerState{
		Running:            !d.session.Paused(),
		CurrentThread:      api.ConvertThread(st.CurrentThread),
		BreakThread:        api.ConvertThread(st.BreakThread),
		UnhandledException: st.UnhandledException,
		ProtocolVersion:    d.target.Version().String(),
		LiveValues:         d.session.LiveValues(),
	}
}

// Threads returns the threads of the target process.
func (d *Debugger) Threads() ([]*api.Thread, error) {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()

	threads, err := d.target.Threads()
	if err != nil {
		return nil, err
	}
	r := make([]*api.Thread, 0, len(threads))
	for _, th := range threads {
		r = append(r, api.ConvertThread(th))
	}
	return r, nil
}

func (d *Debugger) findThread(id int64) (*proc.Thread, error) {
	threads, err := d.target.Threads()
	if err != nil {
		return nil, err
	}
	for _, th := range threads {
		if th.ID == id {
			return th, nil
		}
	}
	return nil, fmt.Errorf("thread %d: %w", id, ErrNotFound)
}

// Command handles commands which control the debugger lifecycle.
func (d *Debugger) Command(command *api.DebuggerCommand) (*api.DebuggerState, error) {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()

	var err error
	switch command.Name {
	case api.Continue:
		d.log.Debug("continuing")
		if err = d.session.Resume(); err == nil {
			// The demo program loops over its breakpoint.
			err = d.target.Suspend()
			d.stop()
		}
	case api.Resume:
		d.log.Debug("resuming")
		err = d.session.Resume()
	case api.Halt:
		d.log.Debug("halting")
		if err = d.session.Suspend(); err == nil {
			d.stop()
		}
	case api.SwitchThread:
		d.log.Debugf("switching to thread %d", command.ThreadID)
		var th *proc.Thread
		th, err = d.findThread(command.ThreadID)
		if err == nil {
			d.current = th
			if d.session.Paused() {
				d.stop()
			}
		}
	default:
		err = fmt.Errorf("unknown command %q", command.Name)
	}
	if err != nil {
		return nil, err
	}
	return d.state(), nil
}

// LocalVariables returns the locals of the current frame.
func (d *Debugger) LocalVariables() ([]api.Variable, error) {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()

	if !d.session.Paused() {
		return nil, proc.ErrNotPaused
	}
	locals := d.target.Locals()
	r := make([]api.Variable, 0, len(locals))
	for _, l := range locals {
		v, err := d.session.NewValue(l)
		if err != nil {
			return nil, err
		}
		r = append(r, api.ConvertVar(l.Name, v))
	}
	return r, nil
}

// EvalVariable returns the local called name.
func (d *Debugger) EvalVariable(name string) (*api.Variable, error) {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()

	v, err := d.Local(name)
	if err != nil {
		return nil, err
	}
	r := api.ConvertVar(name, v)
	return &r, nil
}

// Call parses expr as a call expression and evaluates it. If threadID is
// not zero the call runs on that thread only.
func (d *Debugger) Call(ctx context.Context, expr string, threadID int64, nonVirtual bool) (*api.EvalResult, error) {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()

	d.log.Debugf("function call %s", expr)
	if !d.session.Paused() {
		return nil, proc.ErrNotPaused
	}
	req, err := callexpr.Bind(d, expr)
	if err != nil {
		return nil, err
	}
	req.NonVirtual = nonVirtual
	if threadID != 0 {
		req.Thread, err = d.findThread(threadID)
		if err != nil {
			return nil, err
		}
	}
	return api.ConvertOutcome(d.session.Evaluate(ctx, req))
}

// Box boxes the literal or local expr as an instance of the value type
// typeName.
func (d *Debugger) Box(ctx context.Context, expr, typeName string) (*api.EvalResult, error) {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()

	typ, err := d.lookupType(typeName)
	if err != nil {
		return nil, err
	}
	// Bind the value as the argument of a call to a fake method so that
	// literals get the type they are boxed as.
	req, err := callexpr.Bind(&boxScope{d, typ}, fmt.Sprintf("box.Value(%s)", expr))
	if err != nil {
		return nil, err
	}
	return api.ConvertOutcome(d.session.Box(ctx, req.Args[0], typ))
}

// DefaultValue returns the default value of typeName.
func (d *Debugger) DefaultValue(ctx context.Context, typeName string) (*api.EvalResult, error) {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()

	typ, err := d.lookupType(typeName)
	if err != nil {
		return nil, err
	}
	return api.ConvertOutcome(d.session.BuildDefaultValue(ctx, typ))
}

// Types returns the names of the types loaded in the debuggee.
func (d *Debugger) Types() []string {
	types := d.target.Types().Types()
	r := make([]string, len(types))
	for i, t := range types {
		r[i] = t.Name
	}
	return r
}

func (d *Debugger) lookupType(name string) (*metadata.Type, error) {
	typ, ok := d.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("type %s: %w", name, ErrNotFound)
	}
	return typ, nil
}

// Lookup implements callexpr.Scope.
func (d *Debugger) Lookup(name string) (*metadata.Type, bool) {
	return d.target.Types().Lookup(name)
}

// PrimitiveType implements callexpr.Scope.
func (d *Debugger) PrimitiveType(code metadata.TypeCode) *metadata.Type {
	return d.target.Types().PrimitiveType(code)
}

// Local implements callexpr.Scope.
func (d *Debugger) Local(name string) (*proc.Value, error) {
	l, ok := d.target.Local(name)
	if !ok {
		return nil, fmt.Errorf("local %s: %w", name, callexpr.ErrNotFound)
	}
	return d.session.NewValue(l)
}

// Detach stops the debuggee and releases every value.
func (d *Debugger) Detach() error {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()
	d.log.Info("detaching")
	return d.session.Resume()
}

// boxScope resolves the receiver "box" to a synthetic type whose Value
// method takes a single parameter of the boxed type.
type boxScope struct {
	*Debugger
	typ *metadata.Type
}

func (s *boxScope) Lookup(name string) (*metadata.Type, bool) {
	if name != "box" {
		return s.Debugger.Lookup(name)
	}
	return &metadata.Type{
		Name: "box",
		Kind: metadata.Class,
		Methods: []*metadata.Method{{
			Name:   "Value",
			Static: true,
			Params: []*metadata.Type{s.typ},
		}},
	}, true
}
