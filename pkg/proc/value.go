package proc

import (
	"sync"

	"github.com/go-delve/remoteeval/pkg/metadata"
)

// Value is a debuggee value obtained by the debugger. A Value is only
// valid while the debuggee stays paused: once it resumes, the session
// that produced the Value closes it and any further use panics.
type Value struct {
	typ    *metadata.Type
	loc    Location
	handle Handle
	closed bool
}

// Type returns the static type of v.
func (v *Value) Type() *metadata.Type {
	return v.typ
}

// RuntimeType returns the type of the value currently held by v, falling
// back to the static type when the handle does not know it.
func (v *Value) RuntimeType() *metadata.Type {
	v.mustBeOpen()
	if v.handle != nil {
		if t := v.handle.RuntimeType(); t != nil {
			return t
		}
	}
	return v.typ
}

// Handle returns the handle last read from or written to v.
func (v *Value) Handle() Handle {
	v.mustBeOpen()
	return v.handle
}

// IsNull returns true if v holds a null reference.
func (v *Value) IsNull() bool {
	v.mustBeOpen()
	return v.handle == nil || v.handle.Kind() == NullHandle
}

// Location returns the storage slot of v.
func (v *Value) Location() Location {
	return v.loc
}

// Load reads the current contents of v's location.
func (v *Value) Load() (Handle, error) {
	v.mustBeOpen()
	h, err := v.loc.Load()
	if err != nil {
		return nil, err
	}
	v.handle = h
	return h, nil
}

// Store writes h into v's location.
func (v *Value) Store(h Handle) error {
	v.mustBeOpen()
	if err := v.loc.Store(h); err != nil {
		return err
	}
	v.handle = h
	return nil
}

// Closed reports whether v has been released.
func (v *Value) Closed() bool {
	return v.closed
}

func (v *Value) mustBeOpen() {
	if v.closed {
		panic("use of debuggee value after the debuggee was resumed")
	}
}

// tempLocation is a location that only exists in the debugger. It holds
// call results and synthetic values.
type tempLocation struct {
	typ *metadata.Type
	h   Handle
}

func (l *tempLocation) Type() *metadata.Type  { return l.typ }
func (l *tempLocation) Load() (Handle, error) { return l.h, nil }

func (l *tempLocation) Store(h Handle) error {
	l.h = h
	return nil
}

// valueTracker remembers every value handed out by a session so that they
// can all be released when the debuggee resumes.
type valueTracker struct {
	mu     sync.Mutex
	values []*Value
}

func (t *valueTracker) add(v *Value) *Value {
	t.mu.Lock()
	t.values = append(t.values, v)
	t.mu.Unlock()
	return v
}

// closeAll closes every tracked value and returns how many were still
// open.
func (t *valueTracker) closeAll(rel Releaser) int {
	t.mu.Lock()
	values := t.values
	t.values = nil
	t.mu.Unlock()
	n := 0
	for _, v := range values {
		if v.closed {
			continue
		}
		closeValue(v, rel)
		n++
	}
	return n
}

func (t *valueTracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, v := range t.values {
		if !v.closed {
			n++
		}
	}
	return n
}

func closeValue(v *Value, rel Releaser) {
	if v.closed {
		return
	}
	v.closed = true
	if rel != nil && v.handle != nil && v.handle.Kind() == ObjectHandle {
		rel.Release(v.handle)
	}
	v.handle = nil
}

// OutcomeKind tells which of the three results an Outcome holds.
type OutcomeKind uint8

const (
	OutcomeValue OutcomeKind = iota
	OutcomeException
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeValue:
		return "value"
	case OutcomeException:
		return "exception"
	default:
		return "error"
	}
}

// Outcome is the result of an evaluation: a value, an exception thrown
// by the debuggee, or an error.
type Outcome struct {
	kind  OutcomeKind
	value *Value
	err   error
}

func valueOutcome(v *Value) Outcome     { return Outcome{kind: OutcomeValue, value: v} }
func exceptionOutcome(v *Value) Outcome { return Outcome{kind: OutcomeException, value: v} }
func errorOutcome(err error) Outcome    { return Outcome{kind: OutcomeError, err: err} }

func (o Outcome) Kind() OutcomeKind { return o.kind }

// Value returns the result, or the exception object if the debuggee threw.
func (o Outcome) Value() *Value { return o.value }

// Err returns the evaluation error, nil unless Kind is OutcomeError.
func (o Outcome) Err() error { return o.err }

func (o Outcome) IsException() bool { return o.kind == OutcomeException }
