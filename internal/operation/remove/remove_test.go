package remove

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lftpcmd/lftpcmd/internal/operation"
	"github.com/lftpcmd/lftpcmd/internal/operation/operationtest"
	"github.com/lftpcmd/lftpcmd/internal/profile"
	"github.com/lftpcmd/lftpcmd/internal/transfer"
)

func TestOperations(t *testing.T) {
	tests := []struct {
		name    string
		workdir string
		file    string
		want    transfer.Command
		path    string
	}{
		{
			name: "delete",
			file: "notes.txt",
			want: transfer.Command{Op: transfer.OpRm, Args: []string{"notes.txt"}},
			path: "notes.txt",
		},
		{
			name:    "rmdir",
			workdir: "/data/",
			file:    "old",
			want:    transfer.Command{Op: transfer.OpRmdir, Args: []string{"/data/old"}},
			path:    "/data/old",
		},
		{
			name:    "rmrf",
			workdir: "/data",
			file:    "my tree",
			want:    transfer.Command{Op: transfer.OpRaw, Args: []string{`rm -r -f /data/my\ tree`}},
			path:    "/data/my tree",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := operation.Get(tt.name)
			require.NotNil(t, op)

			env := operationtest.NewEnv(&transfer.Result{}, nil)
			ev := operation.Event{Workdir: tt.workdir, Filename: tt.file}

			out, err := op.Run(context.Background(), env, ev, operation.Message{})
			require.NoError(t, err)

			assert.Equal(t, tt.workdir, out["workdir"])
			assert.Equal(t, map[string]any{"filename": tt.file, "filepath": tt.path}, out["payload"])
			assert.Equal(t, [][]transfer.Command{{tt.want}}, env.Backend.Chains())
		})
	}
}

func TestRmrfWithoutEscaping(t *testing.T) {
	escape := false
	env := operationtest.NewEnv(&transfer.Result{}, nil)
	env.Profile = profile.Assemble(profile.Raw{Escape: &escape}, nil)

	_, err := operation.Get("rmrf").Run(context.Background(), env, operation.Event{Filename: "a b"}, operation.Message{})
	require.NoError(t, err)
	assert.Equal(t, "rm -r -f a b", env.Backend.Chains()[0][0].Args[0])
}

func TestRemoteErrorProducesNoMessage(t *testing.T) {
	for _, name := range []string{"delete", "rmdir", "rmrf"} {
		env := operationtest.NewEnv(&transfer.Result{Error: "rm: Access failed: 550 Permission denied (error)"}, nil)

		out, err := operation.Get(name).Run(context.Background(), env, operation.Event{Filename: "x"}, operation.Message{})
		assert.Nil(t, out, name)
		assert.Error(t, err, name)
	}
}
