// Package transfer defines the client used to run file operations against
// remote servers.
//
// A Session collects a chain of commands (cd, ls, cat, put, ...) and runs
// the whole chain over a single connection when Exec is called. Backends
// decide how the chain is executed: by shelling out to lftp or by speaking
// the protocol natively.
package transfer

import (
	"context"
	"fmt"
	"regexp"

	"github.com/lftpcmd/lftpcmd/internal/profile"
)

// Op identifies a command in a session chain.
type Op string

// Supported command ops.
const (
	OpCd    Op = "cd"
	OpLs    Op = "ls"
	OpCat   Op = "cat"
	OpPut   Op = "put"
	OpRm    Op = "rm"
	OpRmdir Op = "rmdir"
	OpMv    Op = "mv"
	OpRaw   Op = "raw"
)

// Command is a single step of a session chain. Args are unescaped; OpRaw
// carries the directive text verbatim in Args[0].
type Command struct {
	Op   Op
	Args []string
}

// Result holds the output of an executed chain.
type Result struct {
	// Data is the standard output of the chain.
	Data string

	// Error is the diagnostic output of the chain. A non-empty Error does not
	// by itself mean the chain failed.
	Error string

	// ExitCode is the exit status reported by the backend.
	ExitCode int
}

// Backend executes command chains against a server.
type Backend interface {
	// Execute runs cmds over one connection described by p. The returned
	// error is reserved for transport failures; failures of individual
	// steps are reported through Result.
	Execute(ctx context.Context, p profile.Profile, cmds []Command) (*Result, error)

	// String returns a human-readable description of the backend.
	String() string
}

// Session is a chain of commands bound to a profile. It is not safe for
// concurrent use; open one session per operation.
type Session struct {
	backend Backend
	profile profile.Profile
	cmds    []Command
}

// Open starts an empty session.
func Open(b Backend, p profile.Profile) *Session {
	return &Session{backend: b, profile: p}
}

// Cd changes the remote working directory.
func (s *Session) Cd(dir string) *Session {
	return s.add(OpCd, dir)
}

// Ls lists the current remote directory.
func (s *Session) Ls() *Session {
	return s.add(OpLs)
}

// Cat writes the content of a remote file to the result data.
func (s *Session) Cat(path string) *Session {
	return s.add(OpCat, path)
}

// Put uploads a local file to a remote path.
func (s *Session) Put(local, remote string) *Session {
	if local == "" {
		return s
	}
	return s.add(OpPut, local, remote)
}

// Rm removes remote files.
func (s *Session) Rm(paths ...string) *Session {
	return s.add(OpRm, paths...)
}

// Rmdir removes an empty remote directory.
func (s *Session) Rmdir(path string) *Session {
	return s.add(OpRmdir, path)
}

// Mv renames a remote path.
func (s *Session) Mv(from, to string) *Session {
	return s.add(OpMv, from, to)
}

// Raw appends a directive that is passed to the backend unmodified.
// Empty directives are ignored.
func (s *Session) Raw(directive string) *Session {
	if directive == "" {
		return s
	}
	return s.add(OpRaw, directive)
}

// Escape quotes s for embedding in a raw directive, honouring the profile's
// escape setting.
func (s *Session) Escape(str string) string {
	if !s.profile.Escape {
		return str
	}
	return Escape(str)
}

// Commands returns a copy of the queued chain.
func (s *Session) Commands() []Command {
	out := make([]Command, len(s.cmds))
	copy(out, s.cmds)
	return out
}

// Profile returns the profile the session was opened with.
func (s *Session) Profile() profile.Profile {
	return s.profile
}

// Exec runs the chain and resets the session.
func (s *Session) Exec(ctx context.Context) (*Result, error) {
	if len(s.cmds) == 0 {
		return nil, fmt.Errorf("no commands to execute")
	}

	cmds := s.cmds
	s.cmds = nil

	return s.backend.Execute(ctx, s.profile, cmds)
}

func (s *Session) add(op Op, args ...string) *Session {
	s.cmds = append(s.cmds, Command{Op: op, Args: args})
	return s
}

// shellSpecial matches the characters lftp's command parser treats as
// separators, quoting, redirection, comments or shell escapes.
var shellSpecial = regexp.MustCompile("([\"\\s'$`\\\\;&|<>!#()])")

// Escape backslash-escapes quotes, whitespace and the characters lftp
// interprets as command syntax: $ ` \ ; & | < > ! # ( ).
func Escape(s string) string {
	return shellSpecial.ReplaceAllString(s, `\$1`)
}
