package operation

import (
	"strings"

	"github.com/lftpcmd/lftpcmd/internal/transfer"
)

// ErrorDetector decides whether a chain that ran to completion failed.
type ErrorDetector interface {
	Detect(res *transfer.Result) bool
}

// DefaultDetector is used when an Env supplies no detector.
var DefaultDetector ErrorDetector = SubstringDetector{}

// SubstringDetector flags a result whose diagnostic output contains
// Substring, ignoring case. An empty Substring means "error".
type SubstringDetector struct {
	Substring string
}

func (d SubstringDetector) Detect(res *transfer.Result) bool {
	sub := d.Substring
	if sub == "" {
		sub = "error"
	}
	return strings.Contains(strings.ToLower(res.Error), strings.ToLower(sub))
}

// ExitCodeDetector flags a non-zero exit code, falling back to Fallback
// (SubstringDetector when nil) for tools that exit 0 on failure.
type ExitCodeDetector struct {
	Fallback ErrorDetector
}

func (d ExitCodeDetector) Detect(res *transfer.Result) bool {
	if res.ExitCode != 0 {
		return true
	}
	fallback := d.Fallback
	if fallback == nil {
		fallback = SubstringDetector{}
	}
	return fallback.Detect(res)
}

// IsError runs d against res. A detector that panics counts as no error.
func IsError(d ErrorDetector, res *transfer.Result) (failed bool) {
	defer func() {
		if recover() != nil {
			failed = false
		}
	}()
	return d.Detect(res)
}
