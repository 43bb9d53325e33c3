// Package terminal implements functions for responding to user
// input and dispatching to appropriate backend commands.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"

	"github.com/go-delve/remoteeval/service/api"
	"github.com/go-delve/remoteeval/service/debugger"
)

type callContext struct {
	// ThreadID is the thread calls are pinned to, zero for any thread.
	ThreadID int64
}

type cmdfunc func(t *Term, ctx callContext, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	group          commandGroup
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands of the evaluator terminal.
type Commands struct {
	cmds     []command
	debugger *debugger.Debugger
}

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands(d *debugger.Debugger) *Commands {
	c := &Commands{debugger: d}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"call", "print", "p"}, group: dataCmds, cmdFn: call, helpMsg: `Evaluates a function call in the debuggee.

	call [-thread <id>] [-nonvirtual] <expr>

The expression takes one of the forms:

	local.Method(args...)		calls a method on a local
	Namespace.Type.Method(args...)	calls a static method
	local.ctor(args...)		runs a constructor on a local struct
	new(Namespace.Type, args...)	creates a new instance

Arguments are literals, null or locals. A literal can be converted to a
primitive type with a conversion such as int64(5). A plain local name
prints the local.

With -thread the call only runs on the given thread, otherwise the
current thread is tried first, then the break thread, the main thread
and the others. With -nonvirtual virtual methods are not dispatched on
the runtime type of the receiver.`},
		{aliases: []string{"box"}, group: dataCmds, cmdFn: box, helpMsg: `Boxes a value.

	box <type> <expr>

The expression is a literal or a local; the type must be a value type.`},
		{aliases: []string{"default", "zero"}, group: dataCmds, cmdFn: defaultValue, helpMsg: `Prints the default value of a type.

	default <type>`},
		{aliases: []string{"locals"}, group: dataCmds, cmdFn: locals, helpMsg: `Print local variables.

	locals [<regex>]

If regex is specified only local variables with a name matching it will be returned.`},
		{aliases: []string{"types"}, group: dataCmds, cmdFn: types, helpMsg: `Print list of types.

	types [<regex>]

If regex is specified only the types matching it will be returned.`},
		{aliases: []string{"threads"}, group: threadCmds, cmdFn: threads, helpMsg: "Print out info for every traced thread."},
		{aliases: []string{"thread", "tr"}, group: threadCmds, cmdFn: thread, helpMsg: `Switch to the specified thread.

	thread <id>`},
		{aliases: []string{"continue", "c"}, group: runCmds, cmdFn: cont, helpMsg: `Run until the next breakpoint.

Values obtained before continuing are released.`},
		{aliases: []string{"resume"}, group: runCmds, cmdFn: resume, helpMsg: `Resume the debuggee and leave it running.

Function calls fail until the debuggee is suspended again.`},
		{aliases: []string{"halt", "suspend"}, group: runCmds, cmdFn: halt, helpMsg: "Suspend the debuggee."},
		{aliases: []string{"state"}, group: runCmds, cmdFn: state, helpMsg: "Print the state of the debuggee."},
		{aliases: []string{"source"}, cmdFn: c.sourceCommand, helpMsg: `Executes a file containing a list of commands.

	source <path>`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: `Exit the debugger.

The debuggee is resumed and every value released.`},
	}

	sort.Sort(byFirstAlias(c.cmds))
	return c
}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

// Register custom commands. Expects cf to be a func of type cmdfunc,
// returning only an error.
func (c *Commands) Register(cmdstr string, cf cmdfunc, helpMsg string) {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			c.cmds[i].cmdFn = cf
			return
		}
	}

	c.cmds = append(c.cmds, command{aliases: []string{cmdstr}, cmdFn: cf, helpMsg: helpMsg})
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return noCmdAvailable
}

// CallWithContext takes a command and a context that command should be executed in.
func (c *Commands) CallWithContext(cmdstr string, t *Term, ctx callContext) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	return c.Find(cmdname)(t, ctx, args)
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	return c.CallWithContext(cmdstr, t, callContext{})
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

var errNoCmd = errors.New("command not available")

func noCmdAvailable(t *Term, ctx callContext, args string) error {
	return errNoCmd
}

func nullCommand(t *Term, ctx callContext, args string) error {
	return nil
}

func (c *Commands) help(t *Term, ctx callContext, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return errNoCmd
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

// splitArgs splits args the way a shell would.
func splitArgs(args string) ([]string, error) {
	v, err := argv.Argv(args,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) > 1 {
		return nil, errors.New("illegal commandline")
	}
	if len(v) == 0 {
		return nil, nil
	}
	return v[0], nil
}

func split2PartsBySpace(s string) []string {
	v := strings.SplitN(s, " ", 2)
	for i := range v {
		v[i] = strings.TrimSpace(v[i])
	}
	return v
}

func call(t *Term, ctx callContext, args string) error {
	nonVirtual := false
	threadID := ctx.ThreadID
	for {
		v := split2PartsBySpace(args)
		switch v[0] {
		case "-nonvirtual":
			nonVirtual = true
		case "-thread":
			if len(v) < 2 {
				return errors.New("not enough arguments")
			}
			w := split2PartsBySpace(v[1])
			id, err := strconv.ParseInt(w[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid thread id %q", w[0])
			}
			threadID = id
			v = w
		default:
			return callExpr(t, args, threadID, nonVirtual)
		}
		if len(v) < 2 {
			return errors.New("not enough arguments")
		}
		args = v[1]
	}
}

func callExpr(t *Term, expr string, threadID int64, nonVirtual bool) error {
	if expr == "" {
		return errors.New("not enough arguments")
	}
	if !strings.ContainsAny(expr, "(") {
		v, err := t.debugger.EvalVariable(expr)
		if err != nil {
			return err
		}
		printVariable(t, v)
		return nil
	}
	r, err := t.debugger.Call(context.Background(), expr, threadID, nonVirtual)
	if err != nil {
		return err
	}
	printResult(t, r)
	return nil
}

func box(t *Term, ctx callContext, args string) error {
	v := split2PartsBySpace(args)
	if len(v) != 2 || v[0] == "" || v[1] == "" {
		return errors.New("wrong number of arguments: box <type> <expr>")
	}
	r, err := t.debugger.Box(context.Background(), v[1], v[0])
	if err != nil {
		return err
	}
	printResult(t, r)
	return nil
}

func defaultValue(t *Term, ctx callContext, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	if len(v) != 1 {
		return errors.New("wrong number of arguments: default <type>")
	}
	r, err := t.debugger.DefaultValue(context.Background(), v[0])
	if err != nil {
		return err
	}
	printResult(t, r)
	return nil
}

func printResult(t *Term, r *api.EvalResult) {
	if r.Exception {
		t.printColored(ansiRed, "exception ", fmt.Sprintf("%s %s", r.Type, r.Value))
		return
	}
	printVariable(t, &r.Variable)
}

func printVariable(t *Term, v *api.Variable) {
	s := v.Value
	if v.Boxed {
		s += " (boxed)"
	}
	if v.Name != "" {
		fmt.Fprintf(t.stdout, "%s = %s\n", v.Name, s)
		return
	}
	fmt.Fprintln(t.stdout, s)
}

func locals(t *Term, ctx callContext, args string) error {
	var filter *regexp.Regexp
	if args != "" {
		var err error
		filter, err = regexp.Compile(args)
		if err != nil {
			return fmt.Errorf("invalid filter argument: %s", err.Error())
		}
	}
	vars, err := t.debugger.LocalVariables()
	if err != nil {
		return err
	}
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 1, ' ', 0)
	for _, v := range vars {
		if filter != nil && !filter.MatchString(v.Name) {
			continue
		}
		s := v.Value
		if v.Boxed {
			s += " (boxed)"
		}
		fmt.Fprintf(w, "%s\t%s\t= %s\n", v.Name, v.Type, s)
	}
	return w.Flush()
}

func types(t *Term, ctx callContext, args string) error {
	var filter *regexp.Regexp
	if args != "" {
		var err error
		filter, err = regexp.Compile(args)
		if err != nil {
			return fmt.Errorf("invalid filter argument: %s", err.Error())
		}
	}
	names := t.debugger.Types()
	sort.Strings(names)
	for _, name := range names {
		if filter == nil || filter.MatchString(name) {
			fmt.Fprintln(t.stdout, name)
		}
	}
	return nil
}

type byThreadID []*api.Thread

func (a byThreadID) Len() int           { return len(a) }
func (a byThreadID) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byThreadID) Less(i, j int) bool { return a[i].ID < a[j].ID }

func threads(t *Term, ctx callContext, args string) error {
	threads, err := t.debugger.Threads()
	if err != nil {
		return err
	}
	state := t.debugger.State()
	sort.Sort(byThreadID(threads))
	for _, th := range threads {
		prefix := "  "
		if state.CurrentThread != nil && state.CurrentThread.ID == th.ID {
			prefix = "* "
		}
		fmt.Fprintf(t.stdout, "%sThread %s\n", prefix, formatThread(th))
	}
	return nil
}

func formatThread(th *api.Thread) string {
	s := fmt.Sprintf("%d %s domain %d", th.ID, th.Name, th.Domain)
	if th.Kind != "" {
		s += " (" + th.Kind + ")"
	}
	return s
}

func thread(t *Term, ctx callContext, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	if len(v) != 1 {
		return errors.New("you must specify a thread")
	}
	tid, err := strconv.ParseInt(v[0], 10, 64)
	if err != nil {
		return err
	}
	oldState := t.debugger.State()
	newState, err := t.debugger.Command(&api.DebuggerCommand{Name: api.SwitchThread, ThreadID: tid})
	if err != nil {
		return err
	}

	oldThread := "<none>"
	newThread := "<none>"
	if oldState.CurrentThread != nil {
		oldThread = strconv.FormatInt(oldState.CurrentThread.ID, 10)
	}
	if newState.CurrentThread != nil {
		newThread = strconv.FormatInt(newState.CurrentThread.ID, 10)
	}
	fmt.Fprintf(t.stdout, "Switched from %s to %s\n", oldThread, newThread)
	return nil
}

func cont(t *Term, ctx callContext, args string) error {
	st, err := t.debugger.Command(&api.DebuggerCommand{Name: api.Continue})
	if err != nil {
		return err
	}
	printState(t, st)
	return nil
}

func resume(t *Term, ctx callContext, args string) error {
	st, err := t.debugger.Command(&api.DebuggerCommand{Name: api.Resume})
	if err != nil {
		return err
	}
	printState(t, st)
	return nil
}

func halt(t *Term, ctx callContext, args string) error {
	st, err := t.debugger.Command(&api.DebuggerCommand{Name: api.Halt})
	if err != nil {
		return err
	}
	printState(t, st)
	return nil
}

func state(t *Term, ctx callContext, args string) error {
	printState(t, t.debugger.State())
	return nil
}

func printState(t *Term, st *api.DebuggerState) {
	if st.Running {
		t.Println("> ", "running")
		return
	}
	th := "<none>"
	if st.CurrentThread != nil {
		th = formatThread(st.CurrentThread)
	}
	t.Println("> ", fmt.Sprintf("stopped on thread %s, protocol %s, %d live values", th, st.ProtocolVersion, st.LiveValues))
	if st.UnhandledException {
		t.printColored(ansiYellow, "> ", "unhandled exception pending")
	}
}

func (c *Commands) sourceCommand(t *Term, ctx callContext, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	if len(v) != 1 {
		return errors.New("wrong number of arguments: source <filename>")
	}
	return c.executeFile(t, v[0])
}

// ExitRequestError is returned when the user
// exits the terminal.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, ctx callContext, args string) error {
	return ExitRequestError{}
}

func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}
