package terminal

// commandGroup orders the commands listed by help.
type commandGroup uint8

const (
	otherCmds commandGroup = iota
	runCmds
	dataCmds
	threadCmds
)

var commandGroupDescriptions = []struct {
	description string
	group       commandGroup
}{
	{"Evaluating functions and viewing values", dataCmds},
	{"Suspending and resuming the debuggee", runCmds},
	{"Listing and switching between threads", threadCmds},
	{"Other commands", otherCmds},
}
