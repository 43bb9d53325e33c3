package api

// DebuggerState represents the current context of the debugger.
type DebuggerState struct {
	// Running is true if the debuggee is running.
	Running bool `json:"running"`
	// CurrentThread is the thread selected by the user, evaluations try it
	// first.
	CurrentThread *Thread `json:"currentThread,omitempty"`
	// BreakThread is the thread that caused the last stop.
	BreakThread *Thread `json:"breakThread,omitempty"`
	// UnhandledException is set if the debuggee stopped because of an
	// exception no handler caught.
	UnhandledException bool `json:"unhandledException"`
	// ProtocolVersion is the version of the debugger protocol spoken by
	// the agent.
	ProtocolVersion string `json:"protocolVersion"`
	// LiveValues is the number of debuggee values held by the debugger.
	LiveValues int `json:"liveValues"`
}

// Thread is a thread within the debugged process.
type Thread struct {
	// ID is a unique identifier for the thread.
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// Domain is the application domain the thread runs in.
	Domain int `json:"domain"`
	// Kind is "main", "finalizer" or empty.
	Kind string `json:"kind,omitempty"`
}

// Variable describes a debuggee value.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`
	// Kind is the kind of the remote handle: null, primitive, struct or
	// object.
	Kind string `json:"kind"`
	// Boxed is set for boxed value type instances.
	Boxed bool `json:"boxed,omitempty"`
}

// EvalResult is the result of a function evaluation that did not fail.
type EvalResult struct {
	Variable
	// Exception is set if the debuggee threw: Variable then describes the
	// exception object.
	Exception bool `json:"exception"`
}

// DebuggerCommand is a command which changes the debugger's execution state.
type DebuggerCommand struct {
	// Name is the command to run.
	Name string `json:"name"`
	// ThreadID is used to specify which thread to use with the SwitchThread
	// command.
	ThreadID int64 `json:"threadID,omitempty"`
}

const (
	// Continue resumes process execution until the next stop.
	Continue = "continue"
	// SwitchThread switches the debugger's current thread context.
	SwitchThread = "switchThread"
	// Halt suspends the process.
	Halt = "halt"
	// Resume lets the process run without waiting for a stop.
	Resume = "resume"
)
