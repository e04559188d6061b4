// Package output provides formatted output for flow runs and node status.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/lftpcmd/lftpcmd/internal/node"
	"github.com/lftpcmd/lftpcmd/internal/operation"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Stats holds run statistics for output.
type Stats interface {
	GetSent() int
	GetFailed() int
	GetDuration() time.Duration
}

// Output handles formatted output. It is safe for concurrent use.
type Output struct {
	mu       sync.Mutex
	w        io.Writer
	useColor bool
	debug    bool
}

// New creates a new output handler.
func New(w io.Writer) *Output {
	return &Output{
		w:        w,
		useColor: true,
	}
}

// SetColor enables or disables color output.
func (o *Output) SetColor(enabled bool) {
	o.useColor = enabled
}

// SetDebug enables or disables debug output.
func (o *Output) SetDebug(enabled bool) {
	o.debug = enabled
}

// color returns the string wrapped in color codes if enabled.
func (o *Output) color(c, s string) string {
	if !o.useColor {
		return s
	}
	return c + s + colorReset
}

// FlowStart prints the flow start banner.
func (o *Output) FlowStart(path string, messages int) {
	o.printf("\n%s %s %s\n", o.color(colorBold, "FLOW"), path, o.color(colorGray, fmt.Sprintf("(%d messages)", messages)))
	if o.debug {
		o.printf("%s\n", strings.Repeat("-", 60))
	}
}

// FlowEnd prints the run summary.
func (o *Output) FlowEnd(stats Stats) {
	sent := o.color(colorGreen, fmt.Sprintf("sent=%d", stats.GetSent()))
	failed := o.color(colorRed, fmt.Sprintf("failed=%d", stats.GetFailed()))

	o.printf("\n%s %s %s %s\n",
		o.color(colorBold, "RECAP"),
		sent,
		failed,
		o.color(colorGray, fmt.Sprintf("(%.2fs)", stats.GetDuration().Seconds())))
}

// NodeStatus prints a status change of a node.
// Format: [indicator] node | status
func (o *Output) NodeStatus(name string, s node.Status) {
	var indicator, statusColor string

	switch s {
	case node.StatusExecuting:
		if !o.debug {
			return
		}
		indicator = "●"
		statusColor = colorBlue
	case node.StatusClear:
		indicator = "✓"
		statusColor = colorGreen
	case node.StatusError:
		indicator = "✗"
		statusColor = colorRed
	default:
		indicator = "?"
		statusColor = colorGray
	}

	o.printf("  %s %s %s\n", o.color(statusColor, indicator), name, o.color(colorGray, s.String()))
}

// NodeError prints an error reported by a node together with the id of the
// message that caused it.
func (o *Output) NodeError(name string, err error, msg operation.Message) {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s %s %v", o.color(colorRed, "✗"), name, err)

	if id := msg.String("_msgid"); id != "" {
		fmt.Fprintf(&b, " %s", o.color(colorGray, "("+id+")"))
	}
	b.WriteString("\n")

	if o.debug && msg != nil {
		if data, jerr := json.Marshal(msg); jerr == nil {
			fmt.Fprintf(&b, "    %s %s\n", o.color(colorGray, "msg:"), data)
		}
	}

	o.printf("%s", b.String())
}

// Section prints a section header.
func (o *Output) Section(name string) {
	o.printf("\n%s\n", o.color(colorBold, name))
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorBlue, "INFO"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (o *Output) Warn(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (o *Output) Error(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorRed, "ERROR"), fmt.Sprintf(format, args...))
}

// Debug prints a debug message (only in debug mode).
func (o *Output) Debug(format string, args ...any) {
	if o.debug {
		o.printf("%s %s\n", o.color(colorGray, "DEBUG"), fmt.Sprintf(format, args...))
	}
}

// Success prints a line marked with a check.
func (o *Output) Success(format string, args ...any) {
	o.printf("  %s %s\n", o.color(colorGreen, "✓"), fmt.Sprintf(format, args...))
}

// Skipped prints a line marked with a hollow circle.
func (o *Output) Skipped(format string, args ...any) {
	o.printf("  %s %s\n", o.color(colorCyan, "○"), fmt.Sprintf(format, args...))
}

func (o *Output) printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, format, args...)
}
