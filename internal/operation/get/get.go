// Package get provides the operation that reads a remote file.
package get

import (
	"context"

	"github.com/lftpcmd/lftpcmd/internal/operation"
	"github.com/lftpcmd/lftpcmd/internal/staging"
)

func init() {
	operation.Register(&Operation{})
}

// Operation fetches the content of workdir/filename.
type Operation struct{}

// Name returns the operation identifier.
func (o *Operation) Name() string {
	return "get"
}

// Run reads the file and replies with its content. With a savedir the
// content is also written to savedir/localFilename, or savedir/filename when
// no local filename is set.
//
// Output payload:
//   - filedata: the file content
//   - filename: the event filename
//   - filepath: the remote path that was read
//   - savedpath: the local file written, only with a savedir
func (o *Operation) Run(ctx context.Context, env operation.Env, ev operation.Event, msg operation.Message) (operation.Message, error) {
	path := operation.RemotePath(ev.Workdir, ev.Filename)

	res, err := operation.Exec(ctx, env, o.Name(), env.Session().Cat(path))
	if err != nil {
		return nil, err
	}

	payload := operation.FileResult(ev.Filename, path)
	payload["filedata"] = res.Data

	if ev.Savedir != "" {
		name := ev.LocalFilename
		if name == "" {
			name = ev.Filename
		}
		saved, err := staging.Save(ctx, ev.Savedir, name, []byte(res.Data))
		if err != nil {
			return nil, err
		}
		env.Debugf("saved %s to %s", path, saved)
		payload["savedpath"] = saved
	}

	return operation.Reply(msg, ev.Workdir, payload), nil
}

// Ensure Operation implements the operation.Operation interface.
var _ operation.Operation = (*Operation)(nil)
