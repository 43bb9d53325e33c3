package terminal

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// getColorableWriter returns a writer that is capable of interpreting
// ANSI escape codes for terminal colors, or one that strips them when
// stdout is not a terminal.
func getColorableWriter() io.Writer {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return colorable.NewNonColorable(os.Stdout)
	}
	return colorable.NewColorableStdout()
}

// isDumb reports whether escape codes should not be written at all.
func isDumb() bool {
	return strings.ToLower(os.Getenv("TERM")) == "dumb" || !isatty.IsTerminal(os.Stdout.Fd())
}
