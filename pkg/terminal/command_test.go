package terminal

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-delve/remoteeval/pkg/config"
	"github.com/go-delve/remoteeval/service/debugger"
)

type FakeTerminal struct {
	*Term
	t   testing.TB
	out *bytes.Buffer
}

func newFakeTerminal(t testing.TB, conf *config.Config) *FakeTerminal {
	d, err := debugger.New(nil)
	if err != nil {
		t.Fatalf("starting debugger: %v", err)
	}
	out := new(bytes.Buffer)
	cmds := DebugCommands(d)
	if conf != nil && conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}
	return &FakeTerminal{
		Term: &Term{debugger: d, conf: conf, cmds: cmds, dumb: true, stdout: out},
		t:    t,
		out:  out,
	}
}

func (ft *FakeTerminal) Exec(cmdstr string) (string, error) {
	ft.out.Reset()
	err := ft.cmds.Call(cmdstr, ft.Term)
	return ft.out.String(), err
}

func (ft *FakeTerminal) MustExec(cmdstr string) string {
	ft.t.Helper()
	outstr, err := ft.Exec(cmdstr)
	if err != nil {
		ft.t.Fatalf("Error executing <%s>: %v", cmdstr, err)
	}
	return outstr
}

func (ft *FakeTerminal) AssertExecError(cmdstr, tgterr string) {
	ft.t.Helper()
	_, err := ft.Exec(cmdstr)
	if err == nil {
		ft.t.Fatalf("Expected error executing %q", cmdstr)
	}
	if !strings.Contains(err.Error(), tgterr) {
		ft.t.Fatalf("Expected error %q executing %q, got error %q", tgterr, cmdstr, err.Error())
	}
}

func TestCommandDefault(t *testing.T) {
	var (
		cmds = Commands{}
		cmd  = cmds.Find("non-existant-command")
	)

	err := cmd(nil, callContext{}, "")
	if err == nil {
		t.Fatal("cmd() did not default")
	}

	if err.Error() != "command not available" {
		t.Fatal("wrong command output")
	}
}

func TestCommandReplayWithoutPreviousCommand(t *testing.T) {
	var (
		cmds = DebugCommands(nil)
		cmd  = cmds.Find("")
		err  = cmd(nil, callContext{}, "")
	)

	if err != nil {
		t.Error("Null command not returned", err)
	}
}

func TestCommandThread(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	ft.AssertExecError("thread", "you must specify a thread")
	ft.AssertExecError("thread 42", "not found")
	out := ft.MustExec("thread 2")
	if out != "Switched from 1 to 2\n" {
		t.Fatalf("unexpected output %q", out)
	}
	out = ft.MustExec("threads")
	if !strings.Contains(out, "* Thread 2 Worker domain 1\n") || !strings.Contains(out, "  Thread 1 Main domain 1 (main)\n") {
		t.Fatalf("unexpected threads output %q", out)
	}
}

func TestCommandCall(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	for _, tc := range []struct {
		cmd, out string
	}{
		{"call p.Sum()", "3\n"},
		{"print Demo.Util.Add(40, 2)", "42\n"},
		{"p pet.Speak()", "\"Woof\"\n"},
		{"call -nonvirtual pet.Speak()", "\"...\"\n"},
		{"call -thread 2 -nonvirtual pet.Speak()", "\"...\"\n"},
		{"p n", "n = 42\n"},
		{"call Demo.Util.Fail()", "exception Failure"},
		{"box Int64 5", "(Int64) 5 (boxed)\n"},
		{"default Demo.Point", "Point{X: 0, Y: 0}\n"},
	} {
		out := ft.MustExec(tc.cmd)
		if !strings.HasPrefix(out, tc.out) {
			t.Errorf("%s: got %q, want prefix %q", tc.cmd, out, tc.out)
		}
	}
	ft.AssertExecError("call", "not enough arguments")
	ft.AssertExecError("call -thread", "not enough arguments")
	ft.AssertExecError("call -thread x p.Sum()", "invalid thread id")
	ft.AssertExecError("box Int64", "wrong number of arguments")
	ft.AssertExecError("default", "wrong number of arguments")
	ft.AssertExecError("default Demo.Nope", "not found")
}

func TestCommandContinueResumeHalt(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	ft.MustExec("call p.Sum()")
	out := ft.MustExec("continue")
	if !strings.Contains(out, "0 live values") {
		t.Fatalf("unexpected continue output %q", out)
	}
	out = ft.MustExec("resume")
	if !strings.Contains(out, "running") {
		t.Fatalf("unexpected resume output %q", out)
	}
	ft.AssertExecError("call p.Sum()", "only possible while the process is paused")
	ft.MustExec("suspend")
	ft.MustExec("call p.Sum()")
	out = ft.MustExec("state")
	if !strings.Contains(out, "protocol 2.40") {
		t.Fatalf("unexpected state output %q", out)
	}
}

func TestCommandLocalsAndTypes(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	out := ft.MustExec("locals ^p")
	if !strings.Contains(out, "pet") || !strings.Contains(out, "p ") || strings.Contains(out, "greeter") {
		t.Fatalf("unexpected locals output %q", out)
	}
	ft.AssertExecError("locals [", "invalid filter argument")
	out = ft.MustExec("types ^Demo\\.Point")
	if out != "Demo.Point\nDemo.Point*\n" {
		t.Fatalf("unexpected types output %q", out)
	}
}

func TestHelp(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	out := ft.MustExec("help")
	if !strings.Contains(out, "call (alias: print | p)") {
		t.Fatalf("missing call in help output %q", out)
	}
	out = ft.MustExec("help box")
	if !strings.HasPrefix(out, "Boxes a value.") {
		t.Fatalf("unexpected help output %q", out)
	}
	ft.AssertExecError("help nope", "command not available")
}

func TestIssue354Aliases(t *testing.T) {
	ft := newFakeTerminal(t, &config.Config{Aliases: map[string][]string{"call": {"ev"}}})
	if out := ft.MustExec("ev p.Sum()"); out != "3\n" {
		t.Fatalf("unexpected output %q", out)
	}
	ft.cmds.Merge(map[string][]string{"call": {"eval"}})
	ft.AssertExecError("ev p.Sum()", "command not available")
	ft.MustExec("eval p.Sum()")
}

func TestExecuteFile(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	path := filepath.Join(t.TempDir(), "script")
	script := "# comment\ncall p.Offset(1)\n\nnope\np p\nexit\ncall p.Sum()\n"
	if err := os.WriteFile(path, []byte(script), 0600); err != nil {
		t.Fatal(err)
	}
	out, err := ft.Exec("source " + path)
	if _, ok := err.(ExitRequestError); !ok {
		t.Fatalf("expected exit request, got %v", err)
	}
	if !strings.Contains(out, path+":4: command not available") || !strings.Contains(out, "p = Point{X: 2, Y: 3}") {
		t.Fatalf("unexpected output %q", out)
	}
	ft.AssertExecError("source", "wrong number of arguments")
}

func TestComplete(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	ft.buildCompletions()
	if c := ft.complete("thr"); len(c) != 2 || c[0] != "thread" || c[1] != "threads" {
		t.Fatalf("unexpected command completions %q", c)
	}
	c := ft.complete("call gre")
	if len(c) != 1 || c[0] != "call greeter" {
		t.Fatalf("unexpected local completions %q", c)
	}
	c = ft.complete("call Demo.Util.Echo(Demo.Co")
	if len(c) != 1 || c[0] != "call Demo.Util.Echo(Demo.Color" {
		t.Fatalf("unexpected type completions %q", c)
	}
	if c := ft.complete("call "); c != nil {
		t.Fatalf("unexpected completions %q", c)
	}
}

func TestSplitArgs(t *testing.T) {
	v, err := splitArgs(`"a b" c`)
	if err != nil || len(v) != 2 || v[0] != "a b" || v[1] != "c" {
		t.Fatalf("unexpected split %q, %v", v, err)
	}
	if _, err := splitArgs("`ls`"); err == nil {
		t.Fatal("expected backtick error")
	}
}
