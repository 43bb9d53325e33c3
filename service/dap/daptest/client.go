// Package daptest provides a sample client with utilities
// for DAP mode testing.
package daptest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"testing"

	"github.com/google/go-dap"
)

// Client is a debugger service client that uses Debug Adaptor Protocol.
// All client methods are synchronous.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	// seq is used to track the sequence number of each
	// requests that the client sends to the server
	seq int
}

// NewClient creates a new Client over a TCP connection.
// Call Close() to close the connection.
func NewClient(addr string) *Client {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		log.Fatal("dialing:", err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn), seq: 1}
}

// Close closes the client connection.
func (c *Client) Close() {
	c.conn.Close()
}

func (c *Client) send(request dap.Message) {
	dap.WriteProtocolMessage(c.conn, request)
}

// ReadMessage reads the next message sent by the server.
func (c *Client) ReadMessage() (dap.Message, error) {
	return dap.ReadProtocolMessage(c.reader)
}

func (c *Client) expect(t *testing.T, want string) dap.Message {
	t.Helper()
	m, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("reading %s: %v", want, err)
	}
	return m
}

func fail(t *testing.T, m dap.Message, want string) {
	t.Helper()
	t.Fatalf("got %#v, want %s", m, want)
}

func (c *Client) ExpectInitializeResponse(t *testing.T) *dap.InitializeResponse {
	t.Helper()
	m := c.expect(t, "InitializeResponse")
	r, ok := m.(*dap.InitializeResponse)
	if !ok {
		fail(t, m, "*dap.InitializeResponse")
	}
	if !r.Body.SupportsConfigurationDoneRequest {
		t.Errorf("got %#v, want SupportsConfigurationDoneRequest=true", r)
	}
	return r
}

func (c *Client) ExpectInitializedEvent(t *testing.T) *dap.InitializedEvent {
	t.Helper()
	m := c.expect(t, "InitializedEvent")
	r, ok := m.(*dap.InitializedEvent)
	if !ok {
		fail(t, m, "*dap.InitializedEvent")
	}
	return r
}

func (c *Client) ExpectLaunchResponse(t *testing.T) *dap.LaunchResponse {
	t.Helper()
	m := c.expect(t, "LaunchResponse")
	r, ok := m.(*dap.LaunchResponse)
	if !ok {
		fail(t, m, "*dap.LaunchResponse")
	}
	return r
}

func (c *Client) ExpectAttachResponse(t *testing.T) *dap.AttachResponse {
	t.Helper()
	m := c.expect(t, "AttachResponse")
	r, ok := m.(*dap.AttachResponse)
	if !ok {
		fail(t, m, "*dap.AttachResponse")
	}
	return r
}

func (c *Client) ExpectConfigurationDoneResponse(t *testing.T) *dap.ConfigurationDoneResponse {
	t.Helper()
	m := c.expect(t, "ConfigurationDoneResponse")
	r, ok := m.(*dap.ConfigurationDoneResponse)
	if !ok {
		fail(t, m, "*dap.ConfigurationDoneResponse")
	}
	return r
}

func (c *Client) ExpectStoppedEvent(t *testing.T) *dap.StoppedEvent {
	t.Helper()
	m := c.expect(t, "StoppedEvent")
	r, ok := m.(*dap.StoppedEvent)
	if !ok {
		fail(t, m, "*dap.StoppedEvent")
	}
	return r
}

func (c *Client) ExpectContinueResponse(t *testing.T) *dap.ContinueResponse {
	t.Helper()
	m := c.expect(t, "ContinueResponse")
	r, ok := m.(*dap.ContinueResponse)
	if !ok {
		fail(t, m, "*dap.ContinueResponse")
	}
	return r
}

func (c *Client) ExpectPauseResponse(t *testing.T) *dap.PauseResponse {
	t.Helper()
	m := c.expect(t, "PauseResponse")
	r, ok := m.(*dap.PauseResponse)
	if !ok {
		fail(t, m, "*dap.PauseResponse")
	}
	return r
}

func (c *Client) ExpectThreadsResponse(t *testing.T) *dap.ThreadsResponse {
	t.Helper()
	m := c.expect(t, "ThreadsResponse")
	r, ok := m.(*dap.ThreadsResponse)
	if !ok {
		fail(t, m, "*dap.ThreadsResponse")
	}
	return r
}

func (c *Client) ExpectStackTraceResponse(t *testing.T) *dap.StackTraceResponse {
	t.Helper()
	m := c.expect(t, "StackTraceResponse")
	r, ok := m.(*dap.StackTraceResponse)
	if !ok {
		fail(t, m, "*dap.StackTraceResponse")
	}
	return r
}

func (c *Client) ExpectScopesResponse(t *testing.T) *dap.ScopesResponse {
	t.Helper()
	m := c.expect(t, "ScopesResponse")
	r, ok := m.(*dap.ScopesResponse)
	if !ok {
		fail(t, m, "*dap.ScopesResponse")
	}
	return r
}

func (c *Client) ExpectVariablesResponse(t *testing.T) *dap.VariablesResponse {
	t.Helper()
	m := c.expect(t, "VariablesResponse")
	r, ok := m.(*dap.VariablesResponse)
	if !ok {
		fail(t, m, "*dap.VariablesResponse")
	}
	return r
}

func (c *Client) ExpectEvaluateResponse(t *testing.T) *dap.EvaluateResponse {
	t.Helper()
	m := c.expect(t, "EvaluateResponse")
	r, ok := m.(*dap.EvaluateResponse)
	if !ok {
		fail(t, m, "*dap.EvaluateResponse")
	}
	return r
}

func (c *Client) ExpectOutputEvent(t *testing.T) *dap.OutputEvent {
	t.Helper()
	m := c.expect(t, "OutputEvent")
	r, ok := m.(*dap.OutputEvent)
	if !ok {
		fail(t, m, "*dap.OutputEvent")
	}
	return r
}

func (c *Client) ExpectErrorResponse(t *testing.T) *dap.ErrorResponse {
	t.Helper()
	m := c.expect(t, "ErrorResponse")
	r, ok := m.(*dap.ErrorResponse)
	if !ok {
		fail(t, m, "*dap.ErrorResponse")
	}
	return r
}

func (c *Client) ExpectDisconnectResponse(t *testing.T) *dap.DisconnectResponse {
	t.Helper()
	m := c.expect(t, "DisconnectResponse")
	r, ok := m.(*dap.DisconnectResponse)
	if !ok {
		fail(t, m, "*dap.DisconnectResponse")
	}
	return r
}

// InitializeRequest sends an 'initialize' request.
func (c *Client) InitializeRequest() {
	request := &dap.InitializeRequest{Request: *c.newRequest("initialize")}
	request.Arguments = dap.InitializeRequestArguments{
		AdapterID:            "remoteeval",
		PathFormat:           "path",
		LinesStartAt1:        true,
		ColumnsStartAt1:      true,
		SupportsVariableType: true,
		Locale:               "en-us",
	}
	c.send(request)
}

// LaunchRequestWithArgs sends a 'launch' request with the specified arguments.
func (c *Client) LaunchRequestWithArgs(arguments map[string]interface{}) {
	request := &dap.LaunchRequest{Request: *c.newRequest("launch")}
	request.Arguments = toRawMessage(arguments)
	c.send(request)
}

// AttachRequest sends an 'attach' request with the specified arguments.
func (c *Client) AttachRequest(arguments map[string]interface{}) {
	request := &dap.AttachRequest{Request: *c.newRequest("attach")}
	request.Arguments = toRawMessage(arguments)
	c.send(request)
}

// ConfigurationDoneRequest sends a 'configurationDone' request.
func (c *Client) ConfigurationDoneRequest() {
	c.send(&dap.ConfigurationDoneRequest{Request: *c.newRequest("configurationDone")})
}

// ContinueRequest sends a 'continue' request.
func (c *Client) ContinueRequest(thread int) {
	request := &dap.ContinueRequest{Request: *c.newRequest("continue")}
	request.Arguments.ThreadId = thread
	c.send(request)
}

// PauseRequest sends a 'pause' request.
func (c *Client) PauseRequest(thread int) {
	request := &dap.PauseRequest{Request: *c.newRequest("pause")}
	request.Arguments.ThreadId = thread
	c.send(request)
}

// ThreadsRequest sends a 'threads' request.
func (c *Client) ThreadsRequest() {
	c.send(&dap.ThreadsRequest{Request: *c.newRequest("threads")})
}

// StackTraceRequest sends a 'stackTrace' request.
func (c *Client) StackTraceRequest(thread int) {
	request := &dap.StackTraceRequest{Request: *c.newRequest("stackTrace")}
	request.Arguments.ThreadId = thread
	c.send(request)
}

// ScopesRequest sends a 'scopes' request.
func (c *Client) ScopesRequest(frameID int) {
	request := &dap.ScopesRequest{Request: *c.newRequest("scopes")}
	request.Arguments.FrameId = frameID
	c.send(request)
}

// VariablesRequest sends a 'variables' request.
func (c *Client) VariablesRequest(variablesReference int) {
	request := &dap.VariablesRequest{Request: *c.newRequest("variables")}
	request.Arguments.VariablesReference = variablesReference
	c.send(request)
}

// EvaluateRequest sends a 'evaluate' request.
func (c *Client) EvaluateRequest(expr string, fid int, context string) {
	request := &dap.EvaluateRequest{Request: *c.newRequest("evaluate")}
	request.Arguments.Expression = expr
	request.Arguments.FrameId = fid
	request.Arguments.Context = context
	c.send(request)
}

// NextRequest sends a 'next' request.
func (c *Client) NextRequest(thread int) {
	request := &dap.NextRequest{Request: *c.newRequest("next")}
	request.Arguments.ThreadId = thread
	c.send(request)
}

// DisconnectRequest sends a 'disconnect' request.
func (c *Client) DisconnectRequest() {
	c.send(&dap.DisconnectRequest{Request: *c.newRequest("disconnect")})
}

// UnknownRequest triggers dap.DecodeProtocolMessageFieldError.
func (c *Client) UnknownRequest() {
	c.send(c.newRequest("unknown"))
}

// KnownEvent passes decode checks, but the server has no 'case' to
// handle it.
func (c *Client) KnownEvent() {
	event := &dap.Event{}
	event.Type = "event"
	event.Seq = -1
	event.Event = "terminated"
	c.send(event)
}

func (c *Client) newRequest(command string) *dap.Request {
	request := &dap.Request{}
	request.Type = "request"
	request.Command = command
	request.Seq = c.seq
	c.seq++
	return request
}

func toRawMessage(in interface{}) json.RawMessage {
	out, err := json.Marshal(in)
	if err != nil {
		panic(fmt.Sprintf("marshaling %v: %v", in, err))
	}
	return out
}
