// Package proc is the function evaluation engine of the debugger.
//
// The debuggee is a paused remote process reachable only through an
// Agent. Every read, write and call is a request to the agent: nothing is
// executed locally. A Session drives one evaluation at a time: it checks
// that evaluation is currently allowed, picks a thread, resolves the
// method to call (emulating virtual dispatch on agents that can not do
// it), converts receiver and arguments into remote handles, performs the
// call under a timeout and wraps what comes back into Values. Values are
// only valid until the debuggee is resumed, at which point the session
// releases all of them.
package proc
