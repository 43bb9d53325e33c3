package logflags

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var eval = false
var agent = false
var debugger = false
var dap = false
var terminal = false

var logOut io.WriteCloser

func makeLogger(flag bool, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(flag, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = DefaultFormatter()
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.ErrorLevel
	}
	return &logrusLogger{logger}
}

// Eval returns true if the evaluation engine should log.
func Eval() bool {
	return eval
}

// EvalLogger returns a logger for the evaluation engine (pkg/proc).
func EvalLogger() Logger {
	return makeLogger(eval, Fields{"layer": "proc", "kind": "fncall"})
}

// Agent returns true if the remote agent backends should log every
// request they serve.
func Agent() bool {
	return agent
}

// AgentLogger returns a logger for the remote agent backends.
func AgentLogger() Logger {
	return makeLogger(agent, Fields{"layer": "agent"})
}

// Debugger returns true if the debugger package should log.
func Debugger() bool {
	return debugger
}

// DebuggerLogger returns a logger for the debugger package.
func DebuggerLogger() Logger {
	return makeLogger(debugger, Fields{"layer": "debugger"})
}

// DAP returns true if the DAP server should log all the messages it
// exchanges with the client.
func DAP() bool {
	return dap
}

// DAPLogger returns a logger for the dap package.
func DAPLogger() Logger {
	return makeLogger(dap, Fields{"layer": "dap"})
}

// Terminal returns true if the terminal should log.
func Terminal() bool {
	return terminal
}

// TerminalLogger returns a logger for the terminal package.
func TerminalLogger() Logger {
	return makeLogger(terminal, Fields{"layer": "terminal"})
}

// WriteDAPListeningMessage writes the "DAP server listening" message in dap
// mode, to the log destination when one was configured.
func WriteDAPListeningMessage(addr string) {
	var out io.Writer = os.Stdout
	if logOut != nil {
		out = logOut
	}
	fmt.Fprintf(out, "DAP server listening at: %s\n", addr)
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets debugger flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "delve-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "debugger"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		// If adding another value, do make sure to
		// update "Help about logging flags" in commands.go.
		switch logcmd {
		case "eval", "fncall":
			eval = true
		case "agent":
			agent = true
		case "debugger":
			debugger = true
		case "dap":
			dap = true
		case "terminal":
			terminal = true
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown log output value %q, run 'reval help log' for usage.\n", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}

// DefaultFormatter provides a simplified version of logrus.TextFormatter that
// doesn't make logs unreadable when they are output to a text file or to a
// terminal that doesn't support colors.
func DefaultFormatter() logrus.Formatter {
	return textFormatterInstance
}

type textFormatter struct {
}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s ", entry.Time.Format("2006-01-02T15:04:05Z07:00"), strings.ToLower(entry.Level.String()))
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v ", k, entry.Data[k])
	}
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

var textFormatterInstance = &textFormatter{}
