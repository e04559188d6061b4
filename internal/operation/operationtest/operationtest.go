// Package operationtest provides a recording transfer backend and handler
// environment for operation tests.
package operationtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/lftpcmd/lftpcmd/internal/operation"
	"github.com/lftpcmd/lftpcmd/internal/profile"
	"github.com/lftpcmd/lftpcmd/internal/transfer"
)

// Backend records every chain it is asked to execute and answers with a
// fixed result.
type Backend struct {
	Result *transfer.Result
	Err    error

	// OnExecute, when set, is called with each chain before it returns.
	OnExecute func(cmds []transfer.Command)

	mu     sync.Mutex
	chains [][]transfer.Command
}

// Execute records cmds and returns the configured result.
func (b *Backend) Execute(ctx context.Context, p profile.Profile, cmds []transfer.Command) (*transfer.Result, error) {
	b.mu.Lock()
	b.chains = append(b.chains, cmds)
	b.mu.Unlock()

	if b.OnExecute != nil {
		b.OnExecute(cmds)
	}
	if b.Err != nil {
		return nil, b.Err
	}
	if b.Result == nil {
		return &transfer.Result{}, nil
	}
	res := *b.Result
	return &res, nil
}

// Chains returns the executed chains in order.
func (b *Backend) Chains() [][]transfer.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]transfer.Command(nil), b.chains...)
}

// String returns a description of the backend.
func (b *Backend) String() string {
	return "operationtest"
}

// Env is an operation.Env over a recording Backend.
type Env struct {
	Backend       *Backend
	Profile       profile.Profile
	ErrorDetector operation.ErrorDetector

	mu    sync.Mutex
	debug []string
}

// NewEnv returns an Env whose backend answers with res and err.
func NewEnv(res *transfer.Result, err error) *Env {
	return &Env{
		Backend: &Backend{Result: res, Err: err},
		Profile: profile.Assemble(profile.Raw{}, nil),
	}
}

// Session opens a session on the recording backend.
func (e *Env) Session() *transfer.Session {
	return transfer.Open(e.Backend, e.Profile)
}

// Detector returns the configured detector, which may be nil.
func (e *Env) Detector() operation.ErrorDetector {
	return e.ErrorDetector
}

// Debugf records a debug line.
func (e *Env) Debugf(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.debug = append(e.debug, fmt.Sprintf(format, args...))
}

// DebugLines returns the recorded debug lines.
func (e *Env) DebugLines() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.debug...)
}

// Ensure Backend implements the transfer.Backend interface.
var _ transfer.Backend = (*Backend)(nil)

// Ensure Env implements the operation.Env interface.
var _ operation.Env = (*Env)(nil)
