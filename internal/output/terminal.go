package output

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// EnvNoColor disables colors when set to any value.
const EnvNoColor = "NO_COLOR"

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ColorDisabled decides whether output written to w should be plain.
// Colors are used only for terminals, and never when requested
// otherwise by flag or NO_COLOR.
func ColorDisabled(w io.Writer, noColorFlag bool) bool {
	if noColorFlag {
		return true
	}
	if _, set := os.LookupEnv(EnvNoColor); set {
		return true
	}
	return !isTerminal(w)
}
