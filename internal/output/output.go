// Package output provides the reporting context passed into every pipeline
// component. It replaces any notion of a process-global console: each command
// builds one Writer and hands it down, so components never contend on shared
// output state and tests can capture everything.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/forgeport/forgeport/internal/render"
)

// Writer handles output for a command, dispatching between JSON and
// human-readable formats based on mode flags. An optional audit logger
// mirrors warnings and failures as JSON lines for post-run analysis.
type Writer struct {
	JSONMode  bool
	QuietMode bool
	Stdout    io.Writer
	Stderr    io.Writer

	audit *zerolog.Logger
}

// New creates a Writer configured by the given mode flags. Data output goes
// to os.Stdout; diagnostics go to os.Stderr.
func New(jsonMode, quietMode bool) *Writer {
	return &Writer{
		JSONMode:  jsonMode,
		QuietMode: quietMode,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// WithAudit attaches a JSONL audit log written to w (typically a file in the
// export directory). Every Warn and Error is mirrored there with a level and
// timestamp, regardless of console modes.
func (w *Writer) WithAudit(out io.Writer) *Writer {
	logger := zerolog.New(out).With().Timestamp().Logger()
	w.audit = &logger
	return w
}

// Success renders a successful result. In JSON mode the data is wrapped in a
// success envelope written to Stdout. In human mode the message is printed to
// Stdout.
func (w *Writer) Success(data any, message string) {
	if w.JSONMode {
		writeJSONSuccess(w.Stdout, data, message)
		return
	}
	if message != "" {
		fmt.Fprintln(w.Stdout, message)
	}
}

// Error renders an error and returns the exit code for the caller to pass to
// os.Exit.
func (w *Writer) Error(err error, code ErrorCode) int {
	if w.audit != nil {
		w.audit.Error().Str("code", string(code)).Msg(err.Error())
	}
	if w.JSONMode {
		writeJSONError(w.Stdout, err, code)
	} else {
		if render.ColorsEnabled() {
			label := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Render("Error:")
			fmt.Fprintf(w.Stderr, "%s %s\n", label, err.Error())
		} else {
			fmt.Fprintf(w.Stderr, "Error: %s\n", err.Error())
		}
	}
	return ExitCodeForError(code)
}

// Info writes an informational message to Stderr. In quiet mode or JSON mode,
// Info is a no-op (the JSON envelope on Stdout is the sole structured output).
func (w *Writer) Info(format string, args ...any) {
	if w.audit != nil {
		w.audit.Info().Msg(fmt.Sprintf(format, args...))
	}
	if w.QuietMode || w.JSONMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if render.ColorsEnabled() {
		fmt.Fprintln(w.Stderr, lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(msg))
	} else {
		fmt.Fprintln(w.Stderr, msg)
	}
}

// Warn writes a warning to Stderr. Warnings are always emitted in human mode,
// even in quiet mode, but are suppressed in JSON mode.
func (w *Writer) Warn(format string, args ...any) {
	if w.audit != nil {
		w.audit.Warn().Msg(fmt.Sprintf(format, args...))
	}
	if w.JSONMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if render.ColorsEnabled() {
		label := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true).Render("Warning:")
		fmt.Fprintf(w.Stderr, "%s %s\n", label, msg)
	} else {
		fmt.Fprintf(w.Stderr, "Warning: %s\n", msg)
	}
}

// ItemFailed announces a per-item failure. The run continues; the item is
// simply absent from the final counts. Enough context is given to locate and
// remediate the item by hand.
func (w *Writer) ItemFailed(kind, id string, err error) {
	if w.audit != nil {
		w.audit.Error().Str("kind", kind).Str("item", id).Msg(err.Error())
	}
	if w.JSONMode {
		return
	}
	msg := fmt.Sprintf("failed to process %s %s: %v", kind, id, err)
	if render.ColorsEnabled() {
		fmt.Fprintln(w.Stderr, lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render(msg))
	} else {
		fmt.Fprintln(w.Stderr, msg)
	}
}
