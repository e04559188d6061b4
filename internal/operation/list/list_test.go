package list

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lftpcmd/lftpcmd/internal/listing"
	"github.com/lftpcmd/lftpcmd/internal/operation"
	"github.com/lftpcmd/lftpcmd/internal/operation/operationtest"
	"github.com/lftpcmd/lftpcmd/internal/transfer"
)

const unixListing = `drwxr-xr-x    2 ftp      ftp          4096 Mar 10 12:00 archive
-rw-r--r--    1 ftp      ftp          1024 Mar 11 08:15 report.csv
`

func TestRun(t *testing.T) {
	env := operationtest.NewEnv(&transfer.Result{Data: unixListing}, nil)
	msg := operation.Message{"_msgid": "1", "payload": "trigger"}

	out, err := (&Operation{}).Run(context.Background(), env, operation.Event{Workdir: "/pub"}, msg)
	require.NoError(t, err)

	assert.Equal(t, "/pub", out["workdir"])
	assert.Equal(t, "1", out["_msgid"])

	entries, ok := out["payload"].([]listing.Entry)
	require.True(t, ok)
	require.Len(t, entries, 2)
	assert.Equal(t, "archive", entries[0].Name)
	assert.Equal(t, listing.TypeDir, entries[0].Type)
	assert.Equal(t, int64(1024), entries[1].Size)

	chains := env.Backend.Chains()
	require.Len(t, chains, 1)
	assert.Equal(t, []transfer.Command{
		{Op: transfer.OpCd, Args: []string{"/pub"}},
		{Op: transfer.OpLs},
	}, chains[0])
}

func TestRunEmptyDirectory(t *testing.T) {
	env := operationtest.NewEnv(&transfer.Result{}, nil)

	out, err := (&Operation{}).Run(context.Background(), env, operation.Event{Workdir: "/empty"}, operation.Message{})
	require.NoError(t, err)
	assert.Equal(t, []listing.Entry{}, out["payload"])
}

func TestRunRemoteError(t *testing.T) {
	env := operationtest.NewEnv(&transfer.Result{Error: "cd: Access failed: 550 /nope: No such file or directory (error)"}, nil)

	out, err := (&Operation{}).Run(context.Background(), env, operation.Event{Workdir: "/nope"}, operation.Message{})
	assert.Nil(t, out)

	var re *operation.RemoteError
	assert.ErrorAs(t, err, &re)
}

func TestRegistered(t *testing.T) {
	assert.NotNil(t, operation.Get("list"))
}
