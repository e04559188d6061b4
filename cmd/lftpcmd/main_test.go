package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lftpcmd/lftpcmd/internal/node"
	"github.com/lftpcmd/lftpcmd/internal/operation"
	"github.com/lftpcmd/lftpcmd/internal/operation/operationtest"
	"github.com/lftpcmd/lftpcmd/internal/profile"
	"github.com/lftpcmd/lftpcmd/internal/transfer"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", nil},
		{"mkdir -p /in", "mkdir -p /in"},
		{`"quoted"`, "quoted"},
		{`{"filedata":"hi"}`, map[string]any{"filedata": "hi"}},
		{`["cd /", "ls"]`, []any{"cd /", "ls"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, decodePayload(tt.in))
		})
	}
}

func TestWithMessageID(t *testing.T) {
	msg := operation.Message{"_msgid": "keep"}
	assert.Equal(t, "keep", withMessageID(msg).String("_msgid"))

	in := operation.Message{"payload": "x"}
	out := withMessageID(in)
	_, err := uuid.Parse(out.String("_msgid"))
	require.NoError(t, err)
	assert.NotContains(t, in, "_msgid")
}

func TestReadMessages(t *testing.T) {
	input := strings.Join([]string{
		`{"operation":"list","workdir":"/a"}`,
		``,
		`not json`,
		`null`,
		`  {"operation":"get"}  `,
	}, "\n")

	var handled []operation.Message
	var invalid []int
	err := readMessages(context.Background(), strings.NewReader(input),
		func(m operation.Message) { handled = append(handled, m) },
		func(line int, err error) { invalid = append(invalid, line) })

	require.NoError(t, err)
	require.Len(t, handled, 2)
	assert.Equal(t, "/a", handled[0].String("workdir"))
	assert.Equal(t, "get", handled[1].String("operation"))
	assert.Equal(t, []int{3, 4}, invalid)
}

func TestReadMessagesStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var handled int
	err := readMessages(ctx, strings.NewReader("{}\n{}\n"),
		func(operation.Message) { handled++ },
		func(int, error) {})

	require.NoError(t, err)
	assert.Zero(t, handled)
}

type countingSink struct {
	mu   sync.Mutex
	sent []operation.Message
}

func (s *countingSink) Send(_ string, msg operation.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
}

func (s *countingSink) Status(string, node.Status)             {}
func (s *countingSink) Error(string, error, operation.Message) {}

func TestDispatcher(t *testing.T) {
	backend := &operationtest.Backend{Result: &transfer.Result{Data: ""}}
	sink := &countingSink{}
	profiles := map[string]profile.Profile{"srv": profile.Assemble(profile.Raw{}, nil)}

	n, err := node.New(node.Config{Name: "ls", Server: "srv", Operation: "list"}, profiles,
		node.WithBackend(backend), node.WithSink(sink))
	require.NoError(t, err)

	d := newDispatcher(3)
	for i := 0; i < 12; i++ {
		d.dispatch(context.Background(), n, operation.Message{})
	}
	stats := d.wait()

	assert.Equal(t, 12, stats.GetSent())
	assert.Equal(t, 0, stats.GetFailed())
	assert.Len(t, backend.Chains(), 12)
	for _, msg := range sink.sent {
		assert.NotEmpty(t, msg.String("_msgid"))
	}

	backend.Err = errors.New("connection refused")
	d = newDispatcher(0)
	d.dispatch(context.Background(), n, operation.Message{})
	assert.Equal(t, 1, d.wait().GetFailed())
}

func writeFlow(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidateFlow(t *testing.T) {
	tests := []struct {
		name    string
		flow    string
		wantErr string
	}{
		{
			name: "valid",
			flow: `
servers: {a: {backend: sftp, port: 22}}
nodes: {n: {server: a}}
messages:
  - node: n
    msg: {operation: rmrf}`,
		},
		{
			name: "unknown operation",
			flow: `
servers: {a: {}}
nodes: {n: {server: a, operation: chmod}}
messages:
  - node: n`,
			wantErr: "message 1: invalid operation: chmod",
		},
		{
			name: "no operation",
			flow: `
servers: {a: {}}
nodes: {n: {server: a}}
messages:
  - node: n
    msg: {workdir: /}`,
			wantErr: "message 1: no operation set on node n or in msg",
		},
		{
			name: "unknown backend",
			flow: `
servers: {a: {backend: carrier-pigeon}}
nodes: {n: {server: a, operation: list}}`,
			wantErr: `server a: unknown backend "carrier-pigeon"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFlow(writeFlow(t, tt.flow))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunFlowDispatchesMessageWithoutOperation(t *testing.T) {
	path := writeFlow(t, `
servers: {a: {}}
nodes: {n: {server: a}}
messages:
  - node: n
    msg: {workdir: /}`)

	err := runFlow(runCmd, []string{path})
	require.Error(t, err)
	assert.Equal(t, "1 message(s) failed", err.Error())
}
