// Package remove provides the operations that delete remote files and
// directories: delete, rmdir and rmrf.
package remove

import (
	"context"

	"github.com/lftpcmd/lftpcmd/internal/operation"
	"github.com/lftpcmd/lftpcmd/internal/transfer"
)

func init() {
	operation.Register(&Operation{name: "delete", build: func(s *transfer.Session, p string) { s.Rm(p) }})
	operation.Register(&Operation{name: "rmdir", build: func(s *transfer.Session, p string) { s.Rmdir(p) }})
	operation.Register(&Operation{name: "rmrf", build: func(s *transfer.Session, p string) {
		s.Raw("rm -r -f " + s.Escape(p))
	}})
}

// Operation removes workdir/filename. The three variants differ only in
// the command they queue.
type Operation struct {
	name  string
	build func(s *transfer.Session, path string)
}

// Name returns the operation identifier.
func (o *Operation) Name() string {
	return o.name
}

// Run removes the path and replies with it.
func (o *Operation) Run(ctx context.Context, env operation.Env, ev operation.Event, msg operation.Message) (operation.Message, error) {
	path := operation.RemotePath(ev.Workdir, ev.Filename)

	s := env.Session()
	o.build(s, path)

	if _, err := operation.Exec(ctx, env, o.name, s); err != nil {
		return nil, err
	}

	return operation.Reply(msg, ev.Workdir, operation.FileResult(ev.Filename, path)), nil
}

// Ensure Operation implements the operation.Operation interface.
var _ operation.Operation = (*Operation)(nil)
