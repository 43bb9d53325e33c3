package cmds

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-delve/remoteeval/pkg/config"
	"github.com/go-delve/remoteeval/pkg/logflags"
	"github.com/go-delve/remoteeval/pkg/terminal"
	"github.com/go-delve/remoteeval/pkg/version"
	"github.com/go-delve/remoteeval/service"
	"github.com/go-delve/remoteeval/service/dap"
	"github.com/go-delve/remoteeval/service/debugger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// addr is the DAP server listen address.
	addr string
	// initFile is the path to initialization file.
	initFile string

	protocolVersion string
	pointerSize     int
	funcEvalTimeout time.Duration
	runAllThreads   bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const revalCommandLongDesc = `reval evaluates expressions by executing code inside a paused managed debuggee.

Method calls, constructor calls, boxing of primitive values and default
values of value types are executed on a debuggee thread, and their results
are kept alive in the debuggee until it is resumed.

The evaluator can be driven interactively with 'reval repl' or by an editor
through the Debug Adapter Protocol with 'reval dap'.`

// New returns an initialized command tree.
func New() *cobra.Command {
	var err error
	conf, err = config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}

	rootCommand = &cobra.Command{
		Use:          "reval",
		Short:        "reval is a function evaluator for paused managed debuggees.",
		Long:         revalCommandLongDesc,
		SilenceUsage: true,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable evaluator logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'reval help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'reval help log').")

	rootCommand.PersistentFlags().StringVar(&protocolVersion, "protocol-version", "", "Debugger protocol version of the debuggee, in major.minor form.")
	rootCommand.PersistentFlags().IntVar(&pointerSize, "pointer-size", 0, "Pointer size of the debuggee in bytes, 4 or 8.")
	rootCommand.PersistentFlags().DurationVar(&funcEvalTimeout, "func-eval-timeout", config.DefaultFuncEvalTimeout, "Maximum duration of a single function evaluation.")
	rootCommand.PersistentFlags().BoolVar(&runAllThreads, "run-all-threads", false, "Let every debuggee thread run during function evaluations.")

	// 'repl' subcommand.
	replCommand := &cobra.Command{
		Use:   "repl",
		Short: "Starts an interactive evaluation session.",
		Long: `Starts the debuggee stopped at its first breakpoint and opens an
interactive prompt. Type 'help' at the prompt for the list of commands.`,
		Run: replCmd,
	}
	replCommand.Flags().StringVar(&initFile, "init", "", "Init file, executed by the terminal client.")
	rootCommand.AddCommand(replCommand)

	// 'dap' subcommand.
	dapCommand := &cobra.Command{
		Use:   "dap",
		Short: "Starts a TCP server communicating via Debug Adaptor Protocol (DAP).",
		Long: `Starts a TCP server communicating via Debug Adaptor Protocol (DAP).

The debuggee is started by a launch or attach request. The launch arguments
'protocolVersion', 'pointerSize', 'funcEvalTimeout' (in milliseconds) and
'runAllThreads' override the command line flags.
Expressions sent with an evaluate request are executed as function
evaluations; 'default <type>' and 'box <type> <expr>' are also accepted.
The server does not accept multiple client connections.`,
		Run: dapCmd,
	}
	dapCommand.Flags().StringVarP(&addr, "listen", "l", "127.0.0.1:0", "DAP server listen address.")
	rootCommand.AddCommand(dapCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reval\n%s\n", version.RevalVersion)
			if log {
				fmt.Fprintln(cmd.OutOrStdout(), version.BuildInfo())
			}
		},
	}
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	debugger	Log debugger commands
	eval		Log function evaluations (alias: fncall)
	agent		Log the requests sent to the debugger agent
	dap		Log all DAP messages
	terminal	Log terminal commands

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
This option will also redirect the "DAP server listening at" message.

`,
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

// debuggerConfig merges the flags explicitly set on the command line over
// the values read from the configuration file.
func debuggerConfig(conf *config.Config, flags *pflag.FlagSet) debugger.Config {
	if conf == nil {
		conf = &config.Config{}
	}
	dc := debugger.Config{
		ProtocolVersion: conf.ProtocolVersion,
		PointerSize:     conf.PointerSize,
		FuncEvalTimeout: conf.Timeout(),
		RunAllThreads:   conf.RunAllThreads,
	}
	if flags == nil {
		return dc
	}
	if flags.Changed("protocol-version") {
		dc.ProtocolVersion = protocolVersion
	}
	if flags.Changed("pointer-size") {
		dc.PointerSize = pointerSize
	}
	if flags.Changed("func-eval-timeout") {
		dc.FuncEvalTimeout = funcEvalTimeout
	}
	if flags.Changed("run-all-threads") {
		dc.RunAllThreads = runAllThreads
	}
	return dc
}

func replCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		if err := logflags.Setup(log, logOutput, logDest); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer logflags.Close()

		dc := debuggerConfig(conf, cmd.Flags())
		d, err := debugger.New(&dc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		term := terminal.New(d, conf)
		term.InitFile = initFile
		status, err := term.Run()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		return status
	}()
	os.Exit(status)
}

func dapCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		if err := logflags.Setup(log, logOutput, logDest); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer logflags.Close()

		if len(args) > 0 {
			fmt.Fprintf(os.Stderr, "Warning: arguments ignored with dap; specify via launch/attach request instead\n")
		}

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			fmt.Printf("couldn't start listener: %s\n", err)
			return 1
		}
		disconnectChan := make(chan struct{})
		server := dap.NewServer(&service.Config{
			Listener:       listener,
			DisconnectChan: disconnectChan,
			Debugger:       debuggerConfig(conf, cmd.Flags()),
		})
		defer server.Stop()

		server.Run()
		waitForDisconnectSignal(disconnectChan)
		return 0
	}()
	os.Exit(status)
}

// waitForDisconnectSignal is a blocking function that waits for either
// a SIGINT (Ctrl-C) signal from the OS or for disconnectChan to be closed
// by the server when the client disconnects.
func waitForDisconnectSignal(disconnectChan chan struct{}) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	defer signal.Stop(ch)
	select {
	case <-ch:
	case <-disconnectChan:
	}
}
