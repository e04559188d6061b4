// Package list provides the operation that lists a remote directory.
package list

import (
	"context"

	"github.com/lftpcmd/lftpcmd/internal/listing"
	"github.com/lftpcmd/lftpcmd/internal/operation"
)

func init() {
	operation.Register(&Operation{})
}

// Operation lists the entries of the event's workdir.
type Operation struct{}

// Name returns the operation identifier.
func (o *Operation) Name() string {
	return "list"
}

// Run changes to the workdir, lists it and replies with the parsed entries.
func (o *Operation) Run(ctx context.Context, env operation.Env, ev operation.Event, msg operation.Message) (operation.Message, error) {
	s := env.Session().Cd(ev.Workdir).Ls()

	res, err := operation.Exec(ctx, env, o.Name(), s)
	if err != nil {
		return nil, err
	}

	return operation.Reply(msg, ev.Workdir, listing.Parse(res.Data)), nil
}

// Ensure Operation implements the operation.Operation interface.
var _ operation.Operation = (*Operation)(nil)
