package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/lftpcmd/lftpcmd/internal/node"
	"github.com/lftpcmd/lftpcmd/internal/operation"
)

// Sink is a node.Sink that writes outgoing messages as JSON lines to a data
// writer and reports status and errors through an Output.
type Sink struct {
	out *Output

	mu  sync.Mutex
	enc *json.Encoder
}

// NewSink creates a sink writing messages to data.
func NewSink(out *Output, data io.Writer) *Sink {
	return &Sink{out: out, enc: json.NewEncoder(data)}
}

// Send writes msg as one JSON line.
func (s *Sink) Send(name string, msg operation.Message) {
	s.mu.Lock()
	err := s.enc.Encode(msg)
	s.mu.Unlock()

	if err != nil {
		s.out.Error("failed to write message from %s: %v", name, err)
	}
}

// Status reports a status change.
func (s *Sink) Status(name string, st node.Status) {
	s.out.NodeStatus(name, st)
}

// Error reports a failed message.
func (s *Sink) Error(name string, err error, msg operation.Message) {
	s.out.NodeError(name, err, msg)
}

// Ensure Sink implements the node.Sink interface.
var _ node.Sink = (*Sink)(nil)
