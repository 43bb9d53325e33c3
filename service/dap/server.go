// Package dap implements VSCode's Debug Adaptor Protocol (DAP).
// This allows the evaluator to communicate with frontends using DAP
// without a separate adaptor. The frontend will run the debugger
// (which now doubles as an adaptor) in server mode listening on
// a port and communicating over TCP. The server supports synchronous
// request-response communication, blocking while processing each request.
// For DAP details see https://microsoft.github.io/debug-adapter-protocol.
package dap

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/go-delve/remoteeval/pkg/logflags"
	"github.com/go-delve/remoteeval/service"
	"github.com/go-delve/remoteeval/service/api"
	"github.com/go-delve/remoteeval/service/debugger"
	"github.com/google/go-dap"
)

// Server implements a DAP server that can accept a single client for
// a single debug session. It does not support restarting.
// The server operates via two goroutines:
// (1) Main goroutine where the server is created via NewServer(),
// started via Run() and stopped via Stop().
// (2) Run goroutine started from Run() that accepts a client connection,
// reads, decodes and processes each request, issuing commands to the
// underlying debugger and sending back events and responses.
type Server struct {
	// config is all the information necessary to start the debugger and server.
	config *service.Config
	// listener is used to accept the client connection.
	listener net.Listener
	// conn is the accepted client connection.
	conn net.Conn
	// stopChan is closed when the server is Stop()-ed. This can be used to signal
	// to goroutines run by the server that it's time to quit.
	stopChan chan struct{}
	// reader is used to read requests from the connection.
	reader *bufio.Reader
	// debugger is the underlying debugger service.
	debugger *debugger.Debugger
	// log is used for structured logging.
	log logflags.Logger
	// stackFrameHandles maps the frame of each thread to unique ids.
	stackFrameHandles *handlesMap
	// variableHandles maps scopes to unique references.
	variableHandles *handlesMap
	// stopOnEntry is set to report the entry stop to the client.
	stopOnEntry bool
}

var _ service.Server = (*Server)(nil)

// NewServer creates a new DAP Server. It takes an opened Listener
// via config and assumes its ownership. config.DisconnectChan has to be set;
// it will be closed by the server when the client disconnects or requests
// shutdown. Once DisconnectChan is closed, Server.Stop() must be called.
func NewServer(config *service.Config) *Server {
	logger := logflags.DAPLogger()
	logflags.WriteDAPListeningMessage(config.Listener.Addr().String())
	logger.Debug("DAP server pid = ", os.Getpid())
	return &Server{
		config:            config,
		listener:          config.Listener,
		stopChan:          make(chan struct{}),
		log:               logger,
		stackFrameHandles: newHandlesMap(),
		variableHandles:   newHandlesMap(),
	}
}

// Stop stops the DAP debugger service, closes the listener and the client
// connection. It detaches the underlying debugger, releasing every value
// it still holds. This method mustn't be called more than once.
func (s *Server) Stop() {
	s.listener.Close()
	close(s.stopChan)
	if s.conn != nil {
		// Unless Stop() was called after serveDAPCodec()
		// returned, this will result in closed connection error
		// on next read, breaking out of the read loop and
		// allowing the run goroutine to exit.
		s.conn.Close()
	}
	if s.debugger != nil {
		if err := s.debugger.Detach(); err != nil {
			s.log.Error(err)
		}
	}
}

// signalDisconnect closes config.DisconnectChan if not nil, which
// signals that the client disconnected or there was a client
// connection failure. It can be called multiple times and is only
// called from the run goroutine.
func (s *Server) signalDisconnect() {
	if s.config.DisconnectChan != nil {
		close(s.config.DisconnectChan)
		s.config.DisconnectChan = nil
	}
}

// Run launches a new goroutine where it accepts a client connection
// and starts processing requests from it. Use Stop() to close connection.
// The server does not support multiple clients, serially or in parallel.
// The debugger won't be started until launch/attach request is received.
func (s *Server) Run() {
	go func() {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
			default:
				s.log.Errorf("Error accepting client connection: %s\n", err)
			}
			s.signalDisconnect()
			return
		}
		s.conn = conn
		s.serveDAPCodec()
	}()
}

// serveDAPCodec reads and decodes requests from the client
// until it encounters an error or EOF, when it sends
// the disconnect signal and returns.
func (s *Server) serveDAPCodec() {
	defer s.signalDisconnect()
	s.reader = bufio.NewReader(s.conn)
	for {
		request, err := dap.ReadProtocolMessage(s.reader)
		if err != nil {
			select {
			case <-s.stopChan:
				return
			default:
			}
			if err == io.EOF {
				return
			}
			if derr, ok := err.(*dap.DecodeProtocolMessageFieldError); ok {
				// Malformed or unknown requests get an error response and
				// the session goes on.
				s.sendInternalErrorResponse(derr.Seq, err.Error())
				continue
			}
			s.log.Error("DAP error: ", err)
			return
		}
		s.handleRequest(request)
	}
}

func (s *Server) handleRequest(request dap.Message) {
	defer func() {
		// In case a handler panics, we catch the panic and send an error response
		// back to the client.
		if ierr := recover(); ierr != nil {
			s.sendInternalErrorResponse(request.GetSeq(), fmt.Sprintf("%v", ierr))
		}
	}()

	jsonmsg, _ := json.Marshal(request)
	s.log.Debug("[<- from client]", string(jsonmsg))

	if _, ok := request.(dap.RequestMessage); !ok {
		s.sendInternalErrorResponse(request.GetSeq(), fmt.Sprintf("Unable to process non-request %#v\n", request))
		return
	}

	switch request := request.(type) {
	case *dap.InitializeRequest:
		s.onInitializeRequest(request)
	case *dap.LaunchRequest:
		s.onLaunchRequest(request)
	case *dap.AttachRequest:
		s.onAttachRequest(request)
	case *dap.DisconnectRequest:
		s.onDisconnectRequest(request)
	case *dap.SetExceptionBreakpointsRequest:
		s.onSetExceptionBreakpointsRequest(request)
	case *dap.ConfigurationDoneRequest:
		s.onConfigurationDoneRequest(request)
	case *dap.ContinueRequest:
		s.onContinueRequest(request)
	case *dap.PauseRequest:
		s.onPauseRequest(request)
	case *dap.ThreadsRequest:
		s.onThreadsRequest(request)
	case *dap.StackTraceRequest:
		s.onStackTraceRequest(request)
	case *dap.ScopesRequest:
		s.onScopesRequest(request)
	case *dap.VariablesRequest:
		s.onVariablesRequest(request)
	case *dap.EvaluateRequest:
		s.onEvaluateRequest(request)
	case *dap.NextRequest, *dap.StepInRequest, *dap.StepOutRequest,
		*dap.SetBreakpointsRequest, *dap.SetFunctionBreakpointsRequest,
		*dap.SetVariableRequest, *dap.RestartRequest, *dap.TerminateRequest:
		s.sendNotYetImplementedErrorResponse(*request.(dap.RequestMessage).GetRequest())
	default:
		s.sendUnsupportedErrorResponse(*request.(dap.RequestMessage).GetRequest())
	}
}

func (s *Server) send(message dap.Message) {
	jsonmsg, _ := json.Marshal(message)
	s.log.Debug("[-> to client]", string(jsonmsg))
	dap.WriteProtocolMessage(s.conn, message)
}

func (s *Server) onInitializeRequest(request *dap.InitializeRequest) {
	response := &dap.InitializeResponse{Response: *newResponse(request.Request)}
	response.Body.SupportsConfigurationDoneRequest = true
	response.Body.SupportsEvaluateForHovers = true
	s.send(response)
}

func (s *Server) onLaunchRequest(request *dap.LaunchRequest) {
	if s.debugger != nil {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch", "debug session already in progress")
		return
	}
	var args LaunchConfig
	if err := unmarshalLaunchAttachArgs(request.Arguments, &args); err != nil {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch", err.Error())
		return
	}
	conf := s.config.Debugger
	if args.ProtocolVersion != "" {
		conf.ProtocolVersion = args.ProtocolVersion
	}
	if args.PointerSize != 0 {
		conf.PointerSize = args.PointerSize
	}
	args.apply(&conf)
	if err := s.startDebugger(conf, args.StopOnEntry); err != nil {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch", err.Error())
		return
	}
	// Notify the client that the debugger is ready to start accepting
	// configuration requests. The client will end the configuration
	// sequence with 'configurationDone'.
	s.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
	s.send(&dap.LaunchResponse{Response: *newResponse(request.Request)})
}

func (s *Server) onAttachRequest(request *dap.AttachRequest) {
	if s.debugger != nil {
		s.sendErrorResponse(request.Request, FailedToAttach, "Failed to attach", "debug session already in progress")
		return
	}
	var args AttachConfig
	if err := unmarshalLaunchAttachArgs(request.Arguments, &args); err != nil {
		s.sendErrorResponse(request.Request, FailedToAttach, "Failed to attach", err.Error())
		return
	}
	conf := s.config.Debugger
	if args.ProtocolVersion != "" {
		conf.ProtocolVersion = args.ProtocolVersion
	}
	args.apply(&conf)
	if err := s.startDebugger(conf, args.StopOnEntry); err != nil {
		s.sendErrorResponse(request.Request, FailedToAttach, "Failed to attach", err.Error())
		return
	}
	s.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
	s.send(&dap.AttachResponse{Response: *newResponse(request.Request)})
}

func (s *Server) startDebugger(conf debugger.Config, stopOnEntry bool) error {
	d, err := debugger.New(&conf)
	if err != nil {
		return err
	}
	s.debugger = d
	s.stopOnEntry = stopOnEntry
	return nil
}

// onDisconnectRequest handles the DisconnectRequest. As required by DAP,
// it disconnects the debuggee and signals that the debug adaptor
// (in our case this TCP server) can be terminated.
func (s *Server) onDisconnectRequest(request *dap.DisconnectRequest) {
	if s.debugger != nil {
		if err := s.debugger.Detach(); err != nil {
			s.log.Error(err)
		}
		s.debugger = nil
	}
	s.send(&dap.DisconnectResponse{Response: *newResponse(request.Request)})
	s.signalDisconnect()
}

func (s *Server) onSetExceptionBreakpointsRequest(request *dap.SetExceptionBreakpointsRequest) {
	// This request is always sent even though we specified no filters at
	// initialization. Handle as no-op.
	s.send(&dap.SetExceptionBreakpointsResponse{Response: *newResponse(request.Request)})
}

func (s *Server) onConfigurationDoneRequest(request *dap.ConfigurationDoneRequest) {
	if s.debugger == nil {
		s.sendErrorResponse(request.Request, NoDebugIsRunning, "Unable to complete configuration", "debugger is nil")
		return
	}
	s.send(&dap.ConfigurationDoneResponse{Response: *newResponse(request.Request)})
	if s.stopOnEntry {
		s.handleStop(s.debugger.State(), "entry")
		return
	}
	s.doContinue()
}

func (s *Server) onContinueRequest(request *dap.ContinueRequest) {
	if s.debugger == nil {
		s.sendErrorResponse(request.Request, NoDebugIsRunning, "Unable to continue", "debugger is nil")
		return
	}
	s.send(&dap.ContinueResponse{
		Response: *newResponse(request.Request),
		Body:     dap.ContinueResponseBody{AllThreadsContinued: true},
	})
	s.doContinue()
}

func (s *Server) onPauseRequest(request *dap.PauseRequest) {
	if s.debugger == nil {
		s.sendErrorResponse(request.Request, NoDebugIsRunning, "Unable to halt execution", "debugger is nil")
		return
	}
	state, err := s.debugger.Command(&api.DebuggerCommand{Name: api.Halt})
	if err != nil {
		s.sendErrorResponse(request.Request, UnableToHalt, "Unable to halt execution", err.Error())
		return
	}
	s.send(&dap.PauseResponse{Response: *newResponse(request.Request)})
	s.handleStop(state, "pause")
}

func (s *Server) onThreadsRequest(request *dap.ThreadsRequest) {
	if s.debugger == nil {
		s.sendErrorResponse(request.Request, UnableToDisplayThreads, "Unable to display threads", "debugger is nil")
		return
	}
	ths, err := s.debugger.Threads()
	if err != nil {
		s.sendErrorResponse(request.Request, UnableToDisplayThreads, "Unable to display threads", err.Error())
		return
	}
	threads := make([]dap.Thread, len(ths))
	for i, th := range ths {
		threads[i] = dap.Thread{Id: int(th.ID), Name: th.Name}
	}
	s.send(&dap.ThreadsResponse{
		Response: *newResponse(request.Request),
		Body:     dap.ThreadsResponseBody{Threads: threads},
	})
}

// onStackTraceRequest reports a single frame for the requested thread:
// the debuggee only exposes the locals of its stop location.
func (s *Server) onStackTraceRequest(request *dap.StackTraceRequest) {
	if s.debugger == nil {
		s.sendErrorResponse(request.Request, UnableToProduceStackTrace, "Unable to produce stack trace", "debugger is nil")
		return
	}
	ths, err := s.debugger.Threads()
	if err != nil {
		s.sendErrorResponse(request.Request, UnableToProduceStackTrace, "Unable to produce stack trace", err.Error())
		return
	}
	var th *api.Thread
	for _, t := range ths {
		if t.ID == int64(request.Arguments.ThreadId) {
			th = t
		}
	}
	if th == nil {
		s.sendErrorResponse(request.Request, UnableToProduceStackTrace, "Unable to produce stack trace",
			fmt.Sprintf("unknown thread %d", request.Arguments.ThreadId))
		return
	}
	frame := dap.StackFrame{
		Id:   s.stackFrameHandles.create(stackFrame{threadID: th.ID}),
		Name: th.Name,
	}
	s.send(&dap.StackTraceResponse{
		Response: *newResponse(request.Request),
		Body:     dap.StackTraceResponseBody{StackFrames: []dap.StackFrame{frame}, TotalFrames: 1},
	})
}

func (s *Server) onScopesRequest(request *dap.ScopesRequest) {
	sf, ok := s.stackFrameHandles.get(request.Arguments.FrameId)
	if !ok {
		s.sendErrorResponse(request.Request, UnableToListLocals, "Unable to list locals", fmt.Sprintf("unknown frame id %d", request.Arguments.FrameId))
		return
	}
	locals := dap.Scope{
		Name:               "Locals",
		VariablesReference: s.variableHandles.create(localsScope{threadID: sf.(stackFrame).threadID}),
	}
	s.send(&dap.ScopesResponse{
		Response: *newResponse(request.Request),
		Body:     dap.ScopesResponseBody{Scopes: []dap.Scope{locals}},
	})
}

func (s *Server) onVariablesRequest(request *dap.VariablesRequest) {
	if _, ok := s.variableHandles.get(request.Arguments.VariablesReference); !ok {
		s.sendErrorResponse(request.Request, UnableToLookupVariable, "Unable to lookup variable", fmt.Sprintf("unknown reference %d", request.Arguments.VariablesReference))
		return
	}
	vars, err := s.debugger.LocalVariables()
	if err != nil {
		s.sendErrorResponse(request.Request, UnableToListLocals, "Unable to list locals", err.Error())
		return
	}
	children := make([]dap.Variable, len(vars))
	for i, v := range vars {
		children[i] = dap.Variable{
			Name:         v.Name,
			Value:        v.Value,
			Type:         v.Type,
			EvaluateName: v.Name,
		}
	}
	s.send(&dap.VariablesResponse{
		Response: *newResponse(request.Request),
		Body:     dap.VariablesResponseBody{Variables: children},
	})
}

// onEvaluateRequest handles 'evalute' requests.
// Expressions take one of the forms:
//
//	name                      the value of a local
//	default <type>            the default value of a type
//	box <type> <expr>         a boxed copy of a literal or local
//	<call expression>         a function evaluation
//
// Calls run on the thread of the frame if one is given.
func (s *Server) onEvaluateRequest(request *dap.EvaluateRequest) {
	showErrorToUser := request.Arguments.Context != "watch" && request.Arguments.Context != "hover"
	if s.debugger == nil {
		s.sendErrorResponseWithOpts(request.Request, UnableToEvaluateExpression, "Unable to evaluate expression", "debugger is nil", showErrorToUser)
		return
	}
	var threadID int64
	if sf, ok := s.stackFrameHandles.get(request.Arguments.FrameId); ok {
		threadID = sf.(stackFrame).threadID
	}
	res, err := s.evaluate(strings.TrimSpace(request.Arguments.Expression), threadID)
	if err != nil {
		s.sendErrorResponseWithOpts(request.Request, UnableToEvaluateExpression, "Unable to evaluate expression", err.Error(), showErrorToUser)
		return
	}
	response := &dap.EvaluateResponse{Response: *newResponse(request.Request)}
	response.Body.Result = res.Value
	response.Body.Type = res.Type
	if res.Exception {
		response.Body.Result = fmt.Sprintf("exception %s", res.Value)
	}
	s.send(response)
	if res.Exception {
		s.send(&dap.OutputEvent{
			Event: *newEvent("output"),
			Body: dap.OutputEventBody{
				Output:   fmt.Sprintf("%s threw %s\n", request.Arguments.Expression, res.Value),
				Category: "stderr",
			}})
	}
}

func (s *Server) evaluate(expr string, threadID int64) (*api.EvalResult, error) {
	ctx := context.Background()
	switch {
	case strings.HasPrefix(expr, "default "):
		return s.debugger.DefaultValue(ctx, strings.TrimSpace(strings.TrimPrefix(expr, "default ")))
	case strings.HasPrefix(expr, "box "):
		fields := strings.SplitN(strings.TrimSpace(strings.TrimPrefix(expr, "box ")), " ", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: box <type> <expr>")
		}
		return s.debugger.Box(ctx, strings.TrimSpace(fields[1]), fields[0])
	case !strings.Contains(expr, "("):
		v, err := s.debugger.EvalVariable(expr)
		if err != nil {
			return nil, err
		}
		return &api.EvalResult{Variable: *v}, nil
	}
	return s.debugger.Call(ctx, expr, threadID, false)
}

func (s *Server) sendErrorResponseWithOpts(request dap.Request, id int, summary, details string, showUser bool) {
	er := &dap.ErrorResponse{}
	er.Type = "response"
	er.Command = request.Command
	er.RequestSeq = request.Seq
	er.Success = false
	er.Message = summary
	er.Body.Error = &dap.ErrorMessage{
		Id:       id,
		Format:   fmt.Sprintf("%s: %s", summary, details),
		ShowUser: showUser,
	}
	s.log.Debug(er.Body.Error.Format)
	s.send(er)
}

func (s *Server) sendErrorResponse(request dap.Request, id int, summary, details string) {
	s.sendErrorResponseWithOpts(request, id, summary, details, true)
}

// sendInternalErrorResponse sends an "internal error" response back to the client.
// We only take a seq here because we don't want to make assumptions about the
// kind of message received by the server that this error is a reply to.
func (s *Server) sendInternalErrorResponse(seq int, details string) {
	er := &dap.ErrorResponse{}
	er.Type = "response"
	er.RequestSeq = seq
	er.Success = false
	er.Message = "Internal Error"
	er.Body.Error = &dap.ErrorMessage{
		Id:     InternalError,
		Format: fmt.Sprintf("%s: %s", er.Message, details),
	}
	s.log.Error(er.Body.Error.Format)
	s.send(er)
}

func (s *Server) sendUnsupportedErrorResponse(request dap.Request) {
	s.sendErrorResponse(request, UnsupportedCommand, "Unsupported command",
		fmt.Sprintf("cannot process %q request", request.Command))
}

func (s *Server) sendNotYetImplementedErrorResponse(request dap.Request) {
	s.sendErrorResponse(request, NotYetImplemented, "Not yet implemented",
		fmt.Sprintf("cannot process %q request", request.Command))
}

func newResponse(request dap.Request) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    request.Command,
		RequestSeq: request.Seq,
		Success:    true,
	}
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "event",
		},
		Event: event,
	}
}

func (s *Server) doContinue() {
	state, err := s.debugger.Command(&api.DebuggerCommand{Name: api.Continue})
	if err != nil {
		s.handleStopOnError(err)
		return
	}
	s.handleStop(state, "breakpoint")
}

func (s *Server) clearProcessStateHandles() {
	s.stackFrameHandles.reset()
	s.variableHandles.reset()
}

// handleStopOnError resets the stage for refreshing debuggee state
// and sends a stopped event followed by an output event with the
// details of the error.
func (s *Server) handleStopOnError(err error) {
	s.log.Error("runtime error: ", err)
	s.clearProcessStateHandles()

	e := &dap.StoppedEvent{Event: *newEvent("stopped")}
	e.Body.AllThreadsStopped = true
	e.Body.Reason = "runtime error"
	e.Body.Text = err.Error()
	if th := s.debugger.State().CurrentThread; th != nil {
		e.Body.ThreadId = int(th.ID)
	}
	s.send(e)
	s.send(&dap.OutputEvent{
		Event: *newEvent("output"),
		Body: dap.OutputEventBody{
			Output:   fmt.Sprintf("ERROR: %s\n", e.Body.Text),
			Category: "stderr",
		}})
}

// handleStop resets the stage for refreshing debuggee state and sends
// a stopped event to the client. Values evaluated before the stop are
// gone, so are their handles.
func (s *Server) handleStop(state *api.DebuggerState, reason string) {
	s.clearProcessStateHandles()

	e := &dap.StoppedEvent{Event: *newEvent("stopped")}
	e.Body.Reason = reason
	e.Body.AllThreadsStopped = true
	if state.CurrentThread != nil {
		e.Body.ThreadId = int(state.CurrentThread.ID)
	}
	if state.UnhandledException {
		e.Body.Reason = "exception"
	}
	s.send(e)
}
