package deploy

import (
	"fmt"

	"github.com/fatih/color"
)

// Colors for human-readable status lines. fatih/color disables itself
// when the output is not a terminal or NO_COLOR is set.
var (
	successColor = color.New(color.FgGreen, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
	noteColor    = color.New(color.FgYellow)
)

func (iv *Invoker) status(format string, args ...any) {
	fmt.Fprintf(iv.out, format+"\n", args...)
}

func (iv *Invoker) success(format string, args ...any) {
	successColor.Fprintf(iv.out, format+"\n", args...)
}

func (iv *Invoker) failure(format string, args ...any) {
	failureColor.Fprintf(iv.out, format+"\n", args...)
}

func (iv *Invoker) note(format string, args ...any) {
	noteColor.Fprintf(iv.out, format+"\n", args...)
}
