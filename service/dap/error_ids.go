package dap

// Identifiers of the error messages sent in error responses. DAP only
// requires them to be unique; the 2000 and 3000 ranges follow the codes
// used by the vscode-go adapter so clients can treat them alike.
const (
	// Session lifecycle.
	FailedToLaunch   = 3000
	FailedToAttach   = 3001
	NoDebugIsRunning = 3002

	// Debuggee state and values.
	UnableToDisplayThreads     = 2003
	UnableToProduceStackTrace  = 2004
	UnableToListLocals         = 2005
	UnableToLookupVariable     = 2008
	UnableToEvaluateExpression = 2009
	UnableToHalt               = 2010

	// Requests this adapter does not serve.
	NotYetImplemented  = 7777
	InternalError      = 8888
	UnsupportedCommand = 9999
)
