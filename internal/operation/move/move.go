// Package move provides the operation that renames a remote file.
package move

import (
	"context"

	"github.com/lftpcmd/lftpcmd/internal/operation"
)

func init() {
	operation.Register(&Operation{})
}

// Operation renames workdir/filename to workdir/targetFilename.
type Operation struct{}

// Name returns the operation identifier.
func (o *Operation) Name() string {
	return "move"
}

// Run moves the file and replies with the new name and path.
func (o *Operation) Run(ctx context.Context, env operation.Env, ev operation.Event, msg operation.Message) (operation.Message, error) {
	from := operation.RemotePath(ev.Workdir, ev.Filename)
	to := operation.RemotePath(ev.Workdir, ev.TargetFilename)

	if _, err := operation.Exec(ctx, env, o.Name(), env.Session().Mv(from, to)); err != nil {
		return nil, err
	}

	return operation.Reply(msg, ev.Workdir, operation.FileResult(ev.TargetFilename, to)), nil
}

// Ensure Operation implements the operation.Operation interface.
var _ operation.Operation = (*Operation)(nil)
