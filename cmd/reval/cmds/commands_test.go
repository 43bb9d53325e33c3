package cmds

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/go-delve/remoteeval/pkg/config"
	"github.com/go-delve/remoteeval/service/debugger"
	"github.com/spf13/pflag"
)

func TestDebuggerConfigDefaults(t *testing.T) {
	got := debuggerConfig(nil, nil)
	want := debugger.Config{FuncEvalTimeout: config.DefaultFuncEvalTimeout}
	if got != want {
		t.Fatalf("expected %#v, got %#v", want, got)
	}
}

func TestDebuggerConfigFlagsOverrideFile(t *testing.T) {
	t.Setenv("REVAL_CONFIG_DIR", t.TempDir())
	New()
	conf := &config.Config{
		ProtocolVersion: "2.30",
		PointerSize:     4,
		FuncEvalTimeout: 2 * time.Second,
	}

	flags := rootCommand.PersistentFlags()
	if err := flags.Parse([]string{"--pointer-size=8", "--run-all-threads"}); err != nil {
		t.Fatal(err)
	}
	got := debuggerConfig(conf, flags)
	want := debugger.Config{
		ProtocolVersion: "2.30",
		PointerSize:     8,
		FuncEvalTimeout: 2 * time.Second,
		RunAllThreads:   true,
	}
	if got != want {
		t.Fatalf("expected %#v, got %#v", want, got)
	}

	// Unchanged flags keep their file values even when the flag default differs.
	got = debuggerConfig(conf, pflag.NewFlagSet("empty", pflag.ContinueOnError))
	if got.FuncEvalTimeout != 2*time.Second || got.PointerSize != 4 {
		t.Fatalf("unexpected override: %#v", got)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("REVAL_CONFIG_DIR", t.TempDir())
	root := New()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "reval\nVersion: ") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestLogHelpListsComponents(t *testing.T) {
	t.Setenv("REVAL_CONFIG_DIR", t.TempDir())
	root := New()
	cmd, _, err := root.Find([]string{"log"})
	if err != nil {
		t.Fatal(err)
	}
	for _, component := range []string{"debugger", "eval", "agent", "dap", "terminal"} {
		if !strings.Contains(cmd.Long, "\t"+component+"\t") {
			t.Errorf("component %q missing from 'reval help log'", component)
		}
	}
}
