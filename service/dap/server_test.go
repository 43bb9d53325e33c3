package dap

import (
	"flag"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-delve/remoteeval/pkg/logflags"
	"github.com/go-delve/remoteeval/service"
	"github.com/go-delve/remoteeval/service/dap/daptest"
	"github.com/go-delve/remoteeval/service/debugger"
	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	var logOutput string
	flag.StringVar(&logOutput, "log-output", "", "configures log output")
	flag.Parse()
	logflags.Setup(logOutput != "", logOutput, "")
	os.Exit(m.Run())
}

func runTest(t *testing.T, test func(c *daptest.Client)) {
	// Start the DAP server.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	disconnectChan := make(chan struct{})
	server := NewServer(&service.Config{
		Listener:       listener,
		DisconnectChan: disconnectChan,
		Debugger:       debugger.Config{FuncEvalTimeout: time.Second},
	})
	server.Run()
	// Give server time to start listening for clients
	time.Sleep(100 * time.Millisecond)

	var stopOnce sync.Once
	// Run a goroutine that stops the server when disconnectChan is signaled.
	go func() {
		<-disconnectChan
		stopOnce.Do(func() { server.Stop() })
	}()

	client := daptest.NewClient(listener.Addr().String())
	defer client.Close()

	defer func() {
		stopOnce.Do(func() { server.Stop() })
	}()

	test(client)
}

// launch runs the initialize/launch/configurationDone sequence and
// returns the stopped event that ends it.
func launch(t *testing.T, client *daptest.Client, args map[string]interface{}) *dap.StoppedEvent {
	t.Helper()
	client.InitializeRequest()
	client.ExpectInitializeResponse(t)
	client.LaunchRequestWithArgs(args)
	client.ExpectInitializedEvent(t)
	client.ExpectLaunchResponse(t)
	client.ConfigurationDoneRequest()
	client.ExpectConfigurationDoneResponse(t)
	return client.ExpectStoppedEvent(t)
}

func TestLaunchStopOnEntry(t *testing.T) {
	runTest(t, func(client *daptest.Client) {
		se := launch(t, client, map[string]interface{}{"stopOnEntry": true})
		assert.Equal(t, "entry", se.Body.Reason)
		assert.Equal(t, 1, se.Body.ThreadId)
		assert.True(t, se.Body.AllThreadsStopped)

		client.ThreadsRequest()
		tr := client.ExpectThreadsResponse(t)
		require.Len(t, tr.Body.Threads, 5)
		assert.Equal(t, dap.Thread{Id: 1, Name: "Main"}, tr.Body.Threads[0])

		client.DisconnectRequest()
		client.ExpectDisconnectResponse(t)
	})
}

func TestLaunchAttachErrors(t *testing.T) {
	runTest(t, func(client *daptest.Client) {
		client.InitializeRequest()
		client.ExpectInitializeResponse(t)

		client.LaunchRequestWithArgs(map[string]interface{}{"protocolVersion": "two"})
		er := client.ExpectErrorResponse(t)
		assert.Equal(t, FailedToLaunch, er.Body.Error.Id)
		assert.Equal(t, `Failed to launch: invalid protocol version "two"`, er.Body.Error.Format)

		client.LaunchRequestWithArgs(map[string]interface{}{"pointerSize": "big"})
		er = client.ExpectErrorResponse(t)
		assert.Equal(t, FailedToLaunch, er.Body.Error.Id)
		assert.Equal(t, `Failed to launch: cannot unmarshal string into "pointerSize" of type int`, er.Body.Error.Format)

		client.AttachRequest(map[string]interface{}{"protocolVersion": "2.30"})
		client.ExpectInitializedEvent(t)
		client.ExpectAttachResponse(t)

		client.AttachRequest(map[string]interface{}{})
		er = client.ExpectErrorResponse(t)
		assert.Equal(t, FailedToAttach, er.Body.Error.Id)
	})
}

func TestStackTraceScopesVariables(t *testing.T) {
	runTest(t, func(client *daptest.Client) {
		launch(t, client, map[string]interface{}{"stopOnEntry": true})

		client.StackTraceRequest(2)
		st := client.ExpectStackTraceResponse(t)
		require.Len(t, st.Body.StackFrames, 1)
		assert.Equal(t, "Worker", st.Body.StackFrames[0].Name)

		client.StackTraceRequest(99)
		er := client.ExpectErrorResponse(t)
		assert.Equal(t, UnableToProduceStackTrace, er.Body.Error.Id)

		client.ScopesRequest(st.Body.StackFrames[0].Id)
		sc := client.ExpectScopesResponse(t)
		require.Len(t, sc.Body.Scopes, 1)
		assert.Equal(t, "Locals", sc.Body.Scopes[0].Name)

		client.VariablesRequest(sc.Body.Scopes[0].VariablesReference)
		vr := client.ExpectVariablesResponse(t)
		vars := map[string]dap.Variable{}
		for _, v := range vr.Body.Variables {
			vars[v.Name] = v
		}
		assert.Equal(t, "42", vars["n"].Value)
		assert.Equal(t, "Int32", vars["n"].Type)
		assert.Equal(t, `"hello"`, vars["s"].Value)
		assert.Equal(t, "Dog", vars["pet"].Type)

		client.ScopesRequest(1111)
		er = client.ExpectErrorResponse(t)
		assert.Equal(t, "Unable to list locals: unknown frame id 1111", er.Body.Error.Format)

		client.VariablesRequest(7777)
		er = client.ExpectErrorResponse(t)
		assert.Equal(t, "Unable to lookup variable: unknown reference 7777", er.Body.Error.Format)
	})
}

func TestEvaluateRequest(t *testing.T) {
	runTest(t, func(client *daptest.Client) {
		launch(t, client, map[string]interface{}{"stopOnEntry": true})

		client.StackTraceRequest(1)
		st := client.ExpectStackTraceResponse(t)
		fid := st.Body.StackFrames[0].Id

		for _, tc := range []struct {
			expr, result, typ string
		}{
			{"p.Sum()", "3", "Int32"},
			{"Demo.Util.Add(40, 2)", "42", "Int32"},
			{"pet.Speak()", `"Woof"`, "String"},
			{"n", "42", "Int32"},
			{"default Demo.Point", "Point{X: 0, Y: 0}", "Point"},
			{"box Int64 5", "(Int64) 5", "Int64"},
		} {
			client.EvaluateRequest(tc.expr, fid, "repl")
			got := client.ExpectEvaluateResponse(t)
			assert.Equal(t, tc.result, got.Body.Result, tc.expr)
			assert.Equal(t, tc.typ, got.Body.Type, tc.expr)
		}

		client.EvaluateRequest("Demo.Util.Fail()", fid, "repl")
		got := client.ExpectEvaluateResponse(t)
		assert.True(t, strings.HasPrefix(got.Body.Result, "exception "), got.Body.Result)
		assert.Equal(t, "Failure", got.Body.Type)
		out := client.ExpectOutputEvent(t)
		assert.Equal(t, "stderr", out.Body.Category)

		client.EvaluateRequest("nope.Foo()", fid, "repl")
		er := client.ExpectErrorResponse(t)
		assert.Equal(t, UnableToEvaluateExpression, er.Body.Error.Id)
		assert.True(t, er.Body.Error.ShowUser)

		client.EvaluateRequest("nope", fid, "hover")
		er = client.ExpectErrorResponse(t)
		assert.Equal(t, UnableToEvaluateExpression, er.Body.Error.Id)
		assert.False(t, er.Body.Error.ShowUser)

		client.EvaluateRequest("box Int64", fid, "repl")
		er = client.ExpectErrorResponse(t)
		assert.Equal(t, "Unable to evaluate expression: usage: box <type> <expr>", er.Body.Error.Format)
	})
}

func TestEvaluateTimeoutUntilContinue(t *testing.T) {
	runTest(t, func(client *daptest.Client) {
		launch(t, client, map[string]interface{}{"stopOnEntry": true, "funcEvalTimeout": 10})

		client.EvaluateRequest("Demo.Util.Hang()", 0, "repl")
		er := client.ExpectErrorResponse(t)
		assert.Equal(t, UnableToEvaluateExpression, er.Body.Error.Id)

		client.EvaluateRequest("Demo.Util.Add(1, 2)", 0, "repl")
		client.ExpectErrorResponse(t)

		client.ContinueRequest(1)
		cr := client.ExpectContinueResponse(t)
		assert.True(t, cr.Body.AllThreadsContinued)
		se := client.ExpectStoppedEvent(t)
		assert.Equal(t, "breakpoint", se.Body.Reason)

		client.EvaluateRequest("Demo.Util.Add(1, 2)", 0, "repl")
		got := client.ExpectEvaluateResponse(t)
		assert.Equal(t, "3", got.Body.Result)
	})
}

func TestContinueAndPause(t *testing.T) {
	runTest(t, func(client *daptest.Client) {
		se := launch(t, client, map[string]interface{}{})
		assert.Equal(t, "breakpoint", se.Body.Reason)

		client.ContinueRequest(1)
		client.ExpectContinueResponse(t)
		se = client.ExpectStoppedEvent(t)
		assert.Equal(t, "breakpoint", se.Body.Reason)
		assert.Equal(t, 1, se.Body.ThreadId)

		client.PauseRequest(1)
		client.ExpectPauseResponse(t)
		se = client.ExpectStoppedEvent(t)
		assert.Equal(t, "pause", se.Body.Reason)
	})
}

func TestRequestsBeforeLaunch(t *testing.T) {
	runTest(t, func(client *daptest.Client) {
		client.ThreadsRequest()
		er := client.ExpectErrorResponse(t)
		assert.Equal(t, UnableToDisplayThreads, er.Body.Error.Id)

		client.EvaluateRequest("p.Sum()", 0, "repl")
		er = client.ExpectErrorResponse(t)
		assert.Equal(t, "Unable to evaluate expression: debugger is nil", er.Body.Error.Format)

		client.ContinueRequest(1)
		er = client.ExpectErrorResponse(t)
		assert.Equal(t, NoDebugIsRunning, er.Body.Error.Id)
	})
}

func TestUnsupportedRequests(t *testing.T) {
	runTest(t, func(client *daptest.Client) {
		client.NextRequest(1)
		er := client.ExpectErrorResponse(t)
		assert.Equal(t, NotYetImplemented, er.Body.Error.Id)
		assert.Equal(t, `Not yet implemented: cannot process "next" request`, er.Body.Error.Format)

		client.UnknownRequest()
		er = client.ExpectErrorResponse(t)
		assert.Equal(t, InternalError, er.Body.Error.Id)

		client.KnownEvent()
		er = client.ExpectErrorResponse(t)
		assert.Equal(t, InternalError, er.Body.Error.Id)
		assert.True(t, strings.HasPrefix(er.Body.Error.Format, "Internal Error: Unable to process non-request"))

		client.DisconnectRequest()
		client.ExpectDisconnectResponse(t)
	})
}
