package operation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidOperation is returned for empty or unregistered operation
	// names.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNothingToWrite is returned by put when there is neither a local
	// file nor payload content to upload.
	ErrNothingToWrite = errors.New("nothing to write")
)

// TransportError means the chain could not be run at all: the transfer tool
// did not start, the connection was refused or login failed.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError means the chain ran but its result reports a failure.
type RemoteError struct {
	Op       string
	Output   string
	ExitCode int
}

func (e *RemoteError) Error() string {
	if out := strings.TrimSpace(e.Output); out != "" {
		return out
	}
	return fmt.Sprintf("%s failed with exit code %d", e.Op, e.ExitCode)
}
