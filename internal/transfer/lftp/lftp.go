// Package lftp provides a transfer backend that runs command chains through
// the lftp command-line client.
package lftp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/lftpcmd/lftpcmd/internal/profile"
	"github.com/lftpcmd/lftpcmd/internal/transfer"
)

// Backend executes chains with `lftp -c`.
type Backend struct {
	binary string
	env    []string
}

// Option configures the lftp backend.
type Option func(*Backend)

// WithBinary sets the lftp executable to run.
func WithBinary(path string) Option {
	return func(b *Backend) {
		b.binary = path
	}
}

// WithEnv adds KEY=VALUE pairs to the lftp process environment.
func WithEnv(env ...string) Option {
	return func(b *Backend) {
		b.env = append(b.env, env...)
	}
}

func init() {
	transfer.RegisterBackend(profile.BackendLftp, func() transfer.Backend { return New() })
}

// New creates a new lftp backend.
func New(opts ...Option) *Backend {
	b := &Backend{binary: "lftp"}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Execute runs the chain in one lftp process. Standard output becomes
// Result.Data and standard error Result.Error. Only a failure to start lftp
// is returned as an error.
func (b *Backend) Execute(ctx context.Context, p profile.Profile, cmds []transfer.Command) (*transfer.Result, error) {
	script := Script(p, cmds)

	execCmd := exec.CommandContext(ctx, b.binary, "-c", script)
	if p.Cwd != "" {
		execCmd.Dir = p.Cwd
	}
	if len(b.env) > 0 {
		execCmd.Env = append(execCmd.Environ(), b.env...)
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	result := &transfer.Result{
		Data:  stdout.String(),
		Error: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute lftp: %w", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return result, nil
}

// Script builds the lftp script for a chain: settings derived from the
// profile, additional directives, the open directive, then the chain.
func Script(p profile.Profile, cmds []transfer.Command) string {
	escape := func(s string) string { return s }
	if p.Escape {
		escape = transfer.Escape
	}

	lines := Settings(p)
	lines = append(lines, p.Directives()...)
	lines = append(lines, openDirective(p))

	for _, cmd := range cmds {
		if line := transfer.Render(cmd, escape); line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, ";")
}

// Settings returns the `set` directives for the profile's connection policy.
func Settings(p profile.Profile) []string {
	var opts []string

	proto := strings.ToLower(p.Protocol)

	// auto-confirm only exists for the ssh based protocols
	if (proto == "sftp" || proto == "fish") && p.AutoConfirm {
		opts = append(opts, fmt.Sprintf("set %s:auto-confirm yes", proto))
	}

	if proto == "sftp" && p.SSHKey.Required {
		opts = append(opts, fmt.Sprintf(`set sftp:connect-program "ssh -a -x -i %s"`, p.SSHKey.Path))
	}

	opts = append(opts,
		fmt.Sprintf("set net:max-retries %d", p.Retries),
		fmt.Sprintf("set net:timeout %d", p.Timeout),
		fmt.Sprintf("set net:reconnect-interval-base %d", p.RetryInterval),
		"set net:reconnect-interval-multiplier "+strconv.FormatFloat(p.RetryMultiplier, 'f', -1, 64),
	)

	return opts
}

func openDirective(p profile.Profile) string {
	open := "open"
	if p.Username != "" {
		open += fmt.Sprintf(` -u "%s","%s"`, transfer.Escape(p.Username), transfer.Escape(p.Password))
	}
	return open + fmt.Sprintf(` "%s"`, p.Target())
}

// String returns a description of the backend.
func (b *Backend) String() string {
	return "lftp://" + b.binary
}

// Ensure Backend implements the transfer.Backend interface.
var _ transfer.Backend = (*Backend)(nil)
