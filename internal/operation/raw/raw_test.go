package raw

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lftpcmd/lftpcmd/internal/operation"
	"github.com/lftpcmd/lftpcmd/internal/operation/operationtest"
	"github.com/lftpcmd/lftpcmd/internal/transfer"
)

func TestRunListPayloadUsesOneChain(t *testing.T) {
	env := operationtest.NewEnv(&transfer.Result{Data: "done\n"}, nil)
	msg := operation.Message{"payload": []any{"mkdir newdir", "chmod 755 newdir"}, "workdir": "/keep"}

	out, err := (&Operation{}).Run(context.Background(), env, operation.Event{}, msg)
	require.NoError(t, err)

	assert.Equal(t, [][]transfer.Command{{
		{Op: transfer.OpRaw, Args: []string{"mkdir newdir"}},
		{Op: transfer.OpRaw, Args: []string{"chmod 755 newdir"}},
	}}, env.Backend.Chains())

	assert.Equal(t, "done\n", out["payload"])
	assert.Equal(t, "/keep", out["workdir"], "raw leaves workdir untouched")
}

func TestRunStringPayloadIsNotEscaped(t *testing.T) {
	env := operationtest.NewEnv(&transfer.Result{}, nil)

	_, err := (&Operation{}).Run(context.Background(), env, operation.Event{}, operation.Message{"payload": `put "a b" -o "c d"`})
	require.NoError(t, err)
	assert.Equal(t, `put "a b" -o "c d"`, env.Backend.Chains()[0][0].Args[0])
}

func TestDirectives(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    []string
		wantErr bool
	}{
		{"string", "ls", []string{"ls"}, false},
		{"strings", []string{"a", "b"}, []string{"a", "b"}, false},
		{"any list", []any{"a"}, []string{"a"}, false},
		{"nil", nil, nil, true},
		{"empty string", "", nil, true},
		{"empty list", []any{}, nil, true},
		{"non string item", []any{"a", 1}, nil, true},
		{"object", map[string]any{"cmd": "ls"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Directives(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunNoDirectivesDoesNoIO(t *testing.T) {
	env := operationtest.NewEnv(&transfer.Result{}, nil)

	_, err := (&Operation{}).Run(context.Background(), env, operation.Event{}, operation.Message{})
	assert.ErrorIs(t, err, ErrNoDirectives)
	assert.Empty(t, env.Backend.Chains())
}
