// Package flow defines the structure and parsing of flow files.
//
// A flow file declares servers, the nodes bound to them and the messages to
// inject into those nodes:
//
//	servers:
//	  backup:
//	    host: ftp.example.com
//	    credentials:
//	      username: backup
//	nodes:
//	  upload:
//	    server: backup
//	    operation: put
//	    workdir: /incoming
//	messages:
//	  - node: upload
//	    msg:
//	      payload: {filename: a.txt, filedata: hello}
package flow

import (
	"fmt"
	"sort"

	"github.com/lftpcmd/lftpcmd/internal/node"
	"github.com/lftpcmd/lftpcmd/internal/profile"
)

// Flow is a parsed flow file.
type Flow struct {
	// Path is the file path the flow was loaded from.
	Path string `yaml:"-"`

	// Servers maps server names to their settings.
	Servers map[string]profile.Raw `yaml:"servers"`

	// Nodes maps node names to their configuration.
	Nodes map[string]node.Config `yaml:"nodes"`

	// Messages are injected in order, each into the named node.
	Messages []*Message `yaml:"messages"`
}

// Message is one message to inject.
type Message struct {
	Node string         `yaml:"node"`
	Msg  map[string]any `yaml:"msg"`
}

// Operation returns the operation the message resolves to on its node,
// or "" when neither sets one.
func (f *Flow) Operation(m *Message) string {
	if cfg, ok := f.Nodes[m.Node]; ok && cfg.Operation != "" {
		return cfg.Operation
	}
	op, _ := m.Msg["operation"].(string)
	return op
}

// Profiles assembles the server profiles.
func (f *Flow) Profiles() map[string]profile.Profile {
	return profile.FromRaw(f.Servers)
}

// NodeConfigs returns the node configurations sorted by name. Each Name is
// the node's key in the file.
func (f *Flow) NodeConfigs() []node.Config {
	names := make([]string, 0, len(f.Nodes))
	for name := range f.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	cfgs := make([]node.Config, 0, len(names))
	for _, name := range names {
		cfg := f.Nodes[name]
		cfg.Name = name
		cfgs = append(cfgs, cfg)
	}
	return cfgs
}

// Validate checks the flow for common errors.
func (f *Flow) Validate() error {
	if len(f.Nodes) == 0 {
		return fmt.Errorf("flow has no nodes")
	}

	for _, cfg := range f.NodeConfigs() {
		if cfg.Server == "" {
			return fmt.Errorf("node %s: missing required 'server' field", cfg.Name)
		}
		if _, ok := f.Servers[cfg.Server]; !ok {
			return fmt.Errorf("node %s: unknown server %q", cfg.Name, cfg.Server)
		}
	}

	for i, m := range f.Messages {
		if m == nil {
			return fmt.Errorf("message %d: empty entry", i+1)
		}
		if _, ok := f.Nodes[m.Node]; !ok {
			return fmt.Errorf("message %d: unknown node %q", i+1, m.Node)
		}
	}

	return nil
}

// CheckOperations reports the first message that resolves to no operation.
// Validate leaves such messages to be dispatched and fail on their own.
func (f *Flow) CheckOperations() error {
	for i, m := range f.Messages {
		if f.Operation(m) == "" {
			return fmt.Errorf("message %d: no operation set on node %s or in msg", i+1, m.Node)
		}
	}
	return nil
}
