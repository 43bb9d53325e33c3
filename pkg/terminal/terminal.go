package terminal

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"

	"github.com/go-delve/remoteeval/pkg/config"
	"github.com/go-delve/remoteeval/pkg/logflags"
	"github.com/go-delve/remoteeval/service/api"
	"github.com/go-delve/remoteeval/service/debugger"
)

const (
	historyFile                 string = ".reval_history"
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
)

const (
	ansiRed    = 31
	ansiYellow = 33
	ansiBlue   = 34
)

// Term represents the terminal running the evaluator.
type Term struct {
	debugger *debugger.Debugger
	conf     *config.Config
	prompt   string
	line     *liner.State
	cmds     *Commands
	dumb     bool
	stdout   io.Writer
	log      logflags.Logger
	InitFile string

	commandTrie *trie.Trie
	nameTrie    *trie.Trie

	quittingMutex sync.Mutex
	quitting      bool
}

// New returns a new Term.
func New(d *debugger.Debugger, conf *config.Config) *Term {
	cmds := DebugCommands(d)
	if conf == nil {
		conf = &config.Config{}
	}
	if conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	var w io.Writer
	dumb := isDumb()
	if dumb {
		w = os.Stdout
	} else {
		w = getColorableWriter()
	}

	return &Term{
		debugger: d,
		conf:     conf,
		prompt:   "(reval) ",
		line:     liner.NewLiner(),
		cmds:     cmds,
		dumb:     dumb,
		stdout:   w,
		log:      logflags.TerminalLogger(),
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
		t.quittingMutex.Lock()
		quitting := t.quitting
		t.quittingMutex.Unlock()
		if quitting {
			return
		}
		fmt.Fprintf(t.stdout, "received SIGINT, suspending the debuggee\n")
		if _, err := t.debugger.Command(&api.DebuggerCommand{Name: api.Halt}); err != nil {
			fmt.Fprintf(os.Stderr, "%v", err)
		}
	}
}

// Run begins running the evaluator in the terminal.
func (t *Term) Run() (int, error) {
	defer t.Close()

	// Suspend the debuggee on SIGINT
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	defer signal.Stop(ch)
	go t.sigintGuard(ch)

	t.line.SetCtrlCAborts(false)
	t.line.SetCompleter(func(line string) []string {
		t.buildCompletions()
		return t.complete(line)
	})

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Fprintf(t.stdout, "Unable to load history file: %v.", err)
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Fprintf(t.stdout, "Unable to open history file: %v. History will not be saved for this session.", err)
		}
	}
	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}
	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}

		t.log.Debugf("command %q", cmdstr)
		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

// Println prints a line to the terminal.
func (t *Term) Println(prefix, str string) {
	t.printColored(ansiBlue, prefix, str)
}

func (t *Term) printColored(color int, prefix, str string) {
	if !t.dumb && prefix != "" {
		prefix = fmt.Sprintf(terminalHighlightEscapeCode+"%s"+terminalResetEscapeCode, color, prefix)
	}
	fmt.Fprintf(t.stdout, "%s%s\n", prefix, str)
}

// buildCompletions indexes the command aliases, the loaded types and the
// locals of the current stop.
func (t *Term) buildCompletions() {
	cmds := trie.New()
	for _, cmd := range t.cmds.cmds {
		for _, alias := range cmd.aliases {
			cmds.Add(alias, nil)
		}
	}
	names := trie.New()
	for _, typ := range t.debugger.Types() {
		names.Add(typ, nil)
	}
	if vars, err := t.debugger.LocalVariables(); err == nil {
		for _, v := range vars {
			names.Add(v.Name, nil)
		}
	}
	t.commandTrie, t.nameTrie = cmds, names
}

// complete returns the completions of line: command names for the first
// word, type and local names after it.
func (t *Term) complete(line string) []string {
	i := strings.LastIndexAny(line, " (,")
	if i < 0 {
		c := t.commandTrie.PrefixSearch(strings.ToLower(line))
		sort.Strings(c)
		return c
	}
	head, word := line[:i+1], line[i+1:]
	if word == "" {
		return nil
	}
	c := t.nameTrie.PrefixSearch(word)
	sort.Strings(c)
	for j := range c {
		c[j] = head + c[j]
	}
	return c
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit() (int, error) {
	t.quittingMutex.Lock()
	t.quitting = true
	t.quittingMutex.Unlock()

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Fprintln(t.stdout, "Error saving history file:", err)
	} else {
		if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR|os.O_TRUNC, 0666); err == nil {
			_, err = t.line.WriteHistory(f)
			if err != nil {
				fmt.Fprintln(t.stdout, "readline history error:", err)
			}
			f.Close()
		}
	}

	if err := t.debugger.Detach(); err != nil {
		return 1, err
	}
	return 0, nil
}
