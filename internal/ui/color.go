package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mgutz/ansi"
)

// Writer wraps stdout/stderr with colorable (so ANSI codes render on
// Windows) and gates color on NO_COLOR / terminal detection.
type Writer struct {
	out     io.Writer
	colored bool
}

// NewStdout returns a Writer around os.Stdout.
func NewStdout() *Writer {
	w := colorable.NewColorableStdout()
	return &Writer{out: w, colored: ColorEnabled(os.Stdout)}
}

// NewStderr returns a Writer around os.Stderr.
func NewStderr() *Writer {
	w := colorable.NewColorableStderr()
	return &Writer{out: w, colored: ColorEnabled(os.Stderr)}
}

// Errorf prints a one-line error message to w with a stable prefix,
// colored red unless color is disabled (§ "errors to stderr with a
// stable one-line prefix ... colour applied unless NO_COLOR is set or
// output is not a terminal").
func (w *Writer) Errorf(format string, args ...interface{}) {
	msg := "rsenv: error: " + fmt.Sprintf(format, args...)
	if w.colored {
		msg = ansi.Color(msg, "red")
	}
	fmt.Fprintln(w.out, msg)
}

// Warnf prints a one-line warning, colored yellow.
func (w *Writer) Warnf(format string, args ...interface{}) {
	msg := "rsenv: warning: " + fmt.Sprintf(format, args...)
	if w.colored {
		msg = ansi.Color(msg, "yellow")
	}
	fmt.Fprintln(w.out, msg)
}

// Printf prints an uncolored line.
func (w *Writer) Printf(format string, args ...interface{}) {
	fmt.Fprintf(w.out, format, args...)
}

// Println prints an uncolored line with a trailing newline.
func (w *Writer) Println(args ...interface{}) {
	fmt.Fprintln(w.out, args...)
}

// RawOut exposes the underlying writer for callers (e.g. a TOML encoder)
// that need an io.Writer directly.
func (w *Writer) RawOut() io.Writer { return w.out }
