package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/dellis1972/pcl-gen/internal/errors"
)

// reportError prints a fatal error and its hints. verbose adds the stack
// and wrapping chain.
func reportError(w io.Writer, err error, verbose bool) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprint(w, "error: ")
	fmt.Fprintln(w, err)

	hint := color.New(color.FgCyan)
	for _, h := range errors.GetAllHints(err) {
		hint.Fprint(w, "hint: ")
		fmt.Fprintln(w, h)
	}

	if verbose {
		fmt.Fprintf(w, "\n%+v\n", err)
	}
}

func reportWarning(w io.Writer, format string, args ...any) {
	orange := color.New(color.FgYellow, color.Bold)
	orange.Fprint(w, "! ")
	fmt.Fprintf(w, format+"\n", args...)
}
