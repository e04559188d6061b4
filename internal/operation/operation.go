// Package operation defines the file operations a node can dispatch and the
// registry they are looked up in.
package operation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lftpcmd/lftpcmd/internal/transfer"
)

// Event holds the resolved parameters of one inbound message.
type Event struct {
	Operation      string `mapstructure:"operation"`
	Workdir        string `mapstructure:"workdir"`
	Filename       string `mapstructure:"filename"`
	TargetFilename string `mapstructure:"targetFilename"`
	LocalFilename  string `mapstructure:"localFilename"`
	Savedir        string `mapstructure:"savedir"`
	FileExtension  string `mapstructure:"fileExtension"`
}

// Env is the part of a node a handler works with.
type Env interface {
	// Session opens an empty session on the profile of the current message.
	Session() *transfer.Session

	// Detector decides whether a completed chain failed on the remote side.
	Detector() ErrorDetector

	// Debugf writes a debug line.
	Debugf(format string, args ...any)
}

// Operation is the interface that all operation handlers implement.
type Operation interface {
	// Name returns the operation's unique identifier.
	Name() string

	// Run builds and executes exactly one session chain for ev and returns
	// the outgoing message. msg is the inbound message and must not be
	// modified.
	Run(ctx context.Context, env Env, ev Event, msg Message) (Message, error)
}

// registry holds all registered operations.
var (
	registry   = make(map[string]Operation)
	registryMu sync.RWMutex
)

// Register adds an operation to the registry.
// It panics if an operation with the same name is already registered.
func Register(op Operation) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := op.Name()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("operation %q is already registered", name))
	}
	registry[name] = op
}

// Get retrieves an operation from the registry by name.
// Returns nil if the operation is not found.
func Get(name string) Operation {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// Lookup is like Get but returns ErrInvalidOperation for empty or unknown
// names.
func Lookup(name string) (Operation, error) {
	if op := Get(name); name != "" && op != nil {
		return op, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidOperation, name)
}

// List returns the sorted names of all registered operations.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeDir appends "/" to a non-empty workdir that does not already end
// in one.
func NormalizeDir(workdir string) string {
	if workdir == "" || strings.HasSuffix(workdir, "/") {
		return workdir
	}
	return workdir + "/"
}

// RemotePath joins workdir and name without cleaning either.
func RemotePath(workdir, name string) string {
	return NormalizeDir(workdir) + name
}

// Exec runs the session and classifies the outcome. A failure to run the
// chain is a *TransportError; a chain the detector flags is a *RemoteError.
func Exec(ctx context.Context, env Env, op string, s *transfer.Session) (*transfer.Result, error) {
	res, err := s.Exec(ctx)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	detector := env.Detector()
	if detector == nil {
		detector = DefaultDetector
	}
	if IsError(detector, res) {
		return nil, &RemoteError{Op: op, Output: res.Error, ExitCode: res.ExitCode}
	}

	return res, nil
}
