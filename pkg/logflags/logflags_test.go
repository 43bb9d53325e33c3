package logflags

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type bufferWriter struct {
	bytes.Buffer
}

func (bw *bufferWriter) Close() error {
	return nil
}

func withLogOut(t *testing.T) *bufferWriter {
	t.Helper()
	if logOut != nil {
		t.Fatalf("expected logOut to be nil; but was <%v>", logOut)
	}
	buf := &bufferWriter{}
	logOut = buf
	t.Cleanup(func() { logOut = nil })
	return buf
}

func TestLoggerFactoryReceivesLayer(t *testing.T) {
	buf := withLogOut(t)
	t.Cleanup(func() { SetLoggerFactory(nil) })

	var gotFlag bool
	var gotFields Fields
	var gotOut io.Writer
	want := &logrusLogger{logrus.NewEntry(logrus.New())}
	SetLoggerFactory(func(flag bool, fields Fields, out io.Writer) Logger {
		gotFlag, gotFields, gotOut = flag, fields, out
		return want
	})

	eval = true
	defer func() { eval = false }()
	if got := EvalLogger(); got != want {
		t.Fatalf("expected the factory logger, got %v", got)
	}
	if !gotFlag {
		t.Errorf("expected flag to be true for a selected layer")
	}
	if gotFields["layer"] != "proc" || gotFields["kind"] != "fncall" {
		t.Errorf("expected layer=proc kind=fncall, got %v", gotFields)
	}
	if gotOut != buf {
		t.Errorf("expected out to be the configured log destination, got %v", gotOut)
	}
}

func TestMakeLoggerLevels(t *testing.T) {
	for _, tc := range []struct {
		flag  bool
		level logrus.Level
	}{
		{true, logrus.DebugLevel},
		{false, logrus.ErrorLevel},
	} {
		l, ok := makeLogger(tc.flag, Fields{"layer": "agent"}).(*logrusLogger)
		if !ok {
			t.Fatalf("expected a *logrusLogger")
		}
		if l.Logger.Level != tc.level {
			t.Errorf("flag=%v: expected level %v, got %v", tc.flag, tc.level, l.Logger.Level)
		}
		if l.Logger.Formatter != textFormatterInstance {
			t.Errorf("flag=%v: expected the default formatter", tc.flag)
		}
		if l.Data["layer"] != "agent" {
			t.Errorf("flag=%v: lost fields %v", tc.flag, l.Data)
		}
	}
}

func TestLoggerWritesFields(t *testing.T) {
	buf := withLogOut(t)

	makeLogger(true, Fields{"foo": "bar"}).WithField("evalid", "abc").Debugf("resolved %s", "Point.Offset")
	out := buf.String()
	if !strings.Contains(out, "evalid=abc foo=bar resolved Point.Offset") {
		t.Fatalf("unexpected log line %q", out)
	}
	if !strings.HasPrefix(strings.SplitN(out, " ", 3)[1], "debug") {
		t.Fatalf("expected debug level in %q", out)
	}

	buf.Reset()
	makeLogger(false, nil).WithFields(Fields{"method": "Util.Hang"}).Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("debug output of an unselected layer: %q", buf.String())
	}
}

func TestSetup(t *testing.T) {
	defer func() {
		eval, agent, debugger, dap, terminal = false, false, false, false, false
	}()
	if err := Setup(false, "eval", ""); err != errLogstrWithoutLog {
		t.Fatalf("expected %v got %v", errLogstrWithoutLog, err)
	}
	if err := Setup(true, "fncall,dap", ""); err != nil {
		t.Fatal(err)
	}
	if !Eval() || !DAP() || Agent() || Debugger() || Terminal() {
		t.Fatalf("wrong flags eval=%v dap=%v agent=%v debugger=%v terminal=%v", Eval(), DAP(), Agent(), Debugger(), Terminal())
	}
}
