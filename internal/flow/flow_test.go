package flow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
servers:
  backup:
    host: ftp.example.com
    protocol: sftp
    port: 22
    credentials:
      username: backup
      password: secret
nodes:
  upload:
    server: backup
    operation: put
    workdir: /incoming
  browse:
    server: backup
messages:
  - node: upload
    msg:
      payload:
        filename: a.txt
        filedata: hello
  - node: browse
    msg:
      operation: list
      workdir: /pub
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.Len(t, f.Messages, 2)
	assert.Equal(t, "put", f.Operation(f.Messages[0]))
	assert.Equal(t, "list", f.Operation(f.Messages[1]))

	payload, ok := f.Messages[0].Msg["payload"].(map[string]any)
	require.True(t, ok, "payload should decode as a string keyed map")
	assert.Equal(t, "hello", payload["filedata"])

	cfgs := f.NodeConfigs()
	require.Len(t, cfgs, 2)
	assert.Equal(t, "browse", cfgs[0].Name)
	assert.Equal(t, "upload", cfgs[1].Name)
	assert.Equal(t, "/incoming", cfgs[1].Workdir)

	p := f.Profiles()["backup"]
	assert.Equal(t, "backup", p.Name)
	assert.Equal(t, "sftp://ftp.example.com:22", p.Target())
	assert.Equal(t, "backup", p.Username)
	assert.Equal(t, "secret", p.Password)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name:   "no nodes",
			yaml:   "servers: {a: {}}",
			errMsg: "flow has no nodes",
		},
		{
			name:   "node without server",
			yaml:   "nodes: {n: {operation: list}}",
			errMsg: "node n: missing required 'server' field",
		},
		{
			name:   "unknown server",
			yaml:   "nodes: {n: {server: nope}}",
			errMsg: `node n: unknown server "nope"`,
		},
		{
			name: "unknown node",
			yaml: `
servers: {a: {}}
nodes: {n: {server: a, operation: list}}
messages:
  - node: n
  - node: m`,
			errMsg: `message 2: unknown node "m"`,
		},
		{
			name: "empty message entry",
			yaml: `
servers: {a: {}}
nodes: {n: {server: a, operation: list}}
messages:
  -`,
			errMsg: "message 1: empty entry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCheckOperations(t *testing.T) {
	f, err := Parse([]byte(`
servers: {a: {}}
nodes:
  n: {server: a}
  m: {server: a, operation: list}
messages:
  - node: m
  - node: n
    msg: {operation: get}
  - node: n
    msg: {workdir: /}`))
	require.NoError(t, err)
	require.Len(t, f.Messages, 3)

	assert.EqualError(t, f.CheckOperations(), "message 3: no operation set on node n or in msg")

	f.Messages = f.Messages[:2]
	assert.NoError(t, f.CheckOperations())
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("nodes: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flow format")
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	f, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read flow")
}
