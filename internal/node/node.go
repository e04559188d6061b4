// Package node dispatches inbound messages to file operations.
//
// A Node is bound to one server profile. Each call to Handle resolves an
// operation event from the node configuration and the message, runs the
// matching operation over one transfer session, and reports the outcome
// through a Sink.
package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/lftpcmd/lftpcmd/internal/metrics"
	"github.com/lftpcmd/lftpcmd/internal/operation"
	"github.com/lftpcmd/lftpcmd/internal/profile"
	"github.com/lftpcmd/lftpcmd/internal/transfer"
)

var (
	// ErrMissingServer is returned by New when the configured server is
	// not defined.
	ErrMissingServer = errors.New("missing server configuration")

	// ErrPasswordRequired is returned by Handle when the profile requires a
	// password, a username is set and neither the profile nor the message
	// supplies a password.
	ErrPasswordRequired = errors.New("password required")
)

// Status is the indicator a node shows for its last message.
type Status int

// Node statuses.
const (
	StatusClear Status = iota
	StatusExecuting
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusClear:
		return "clear"
	case StatusExecuting:
		return "executing"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Sink receives what a node emits: outgoing messages, status changes and
// errors with the message that caused them.
type Sink interface {
	Send(node string, msg operation.Message)
	Status(node string, s Status)
	Error(node string, err error, msg operation.Message)
}

// Config holds the static values of a node. Non-empty values take
// precedence over the values carried by messages.
type Config struct {
	Name           string `yaml:"name"`
	Server         string `yaml:"server"`
	Operation      string `yaml:"operation"`
	Workdir        string `yaml:"workdir"`
	Filename       string `yaml:"filename"`
	TargetFilename string `yaml:"target_filename"`
	LocalFilename  string `yaml:"local_filename"`
	Savedir        string `yaml:"savedir"`
	FileExtension  string `yaml:"file_extension"`
}

// Node handles messages for one server profile. It is safe for concurrent
// use; the profile is never modified after New.
type Node struct {
	cfg      Config
	profile  profile.Profile
	backend  transfer.Backend
	sink     Sink
	detector operation.ErrorDetector
	metrics  *metrics.Metrics
	debugf   func(format string, args ...any)
}

// Option configures a Node.
type Option func(*Node)

// WithSink sets where the node emits messages, status and errors.
func WithSink(s Sink) Option {
	return func(n *Node) {
		n.sink = s
	}
}

// WithBackend overrides the backend chosen from the profile.
func WithBackend(b transfer.Backend) Option {
	return func(n *Node) {
		n.backend = b
	}
}

// WithDetector replaces the default result error detector.
func WithDetector(d operation.ErrorDetector) Option {
	return func(n *Node) {
		n.detector = d
	}
}

// WithMetrics records operation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Node) {
		n.metrics = m
	}
}

// WithDebug sets the function handlers write debug lines to.
func WithDebug(f func(format string, args ...any)) Option {
	return func(n *Node) {
		n.debugf = f
	}
}

// New creates a node for cfg using the profile named by cfg.Server.
// A missing server is reported through the sink and returned as
// ErrMissingServer.
func New(cfg Config, profiles map[string]profile.Profile, opts ...Option) (*Node, error) {
	n := &Node{
		cfg:      cfg,
		sink:     discard{},
		detector: operation.DefaultDetector,
		debugf:   func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(n)
	}

	p, ok := profiles[cfg.Server]
	if cfg.Server == "" || !ok {
		err := fmt.Errorf("%w: %q", ErrMissingServer, cfg.Server)
		n.sink.Error(cfg.Name, err, nil)
		n.sink.Status(cfg.Name, StatusClear)
		return nil, err
	}
	n.profile = p

	if n.backend == nil {
		b, err := transfer.NewBackend(p.Backend)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", cfg.Name, err)
		}
		n.backend = b
	}

	return n, nil
}

// Name returns the node name.
func (n *Node) Name() string {
	return n.cfg.Name
}

// Profile returns the node's shared profile.
func (n *Node) Profile() profile.Profile {
	return n.profile
}

// Handle processes one inbound message. On success the outgoing message is
// sent to the sink and returned. On failure the error is reported to the
// sink with the inbound message and returned. msg is not modified.
func (n *Node) Handle(ctx context.Context, msg operation.Message) (out operation.Message, err error) {
	n.sink.Status(n.cfg.Name, StatusExecuting)

	in := msg.Clone()
	opName := ""
	done := n.metrics.Start(n.cfg.Name)
	defer func() {
		done(opName, err)
	}()

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("unexpected error: %v", r)
			n.sink.Error(n.cfg.Name, err, in)
			n.sink.Status(n.cfg.Name, StatusClear)
		}
	}()

	ev, err := n.Event(msg)
	if err != nil {
		return nil, n.fail(err, in)
	}
	opName = ev.Operation
	in["operation"] = ev.Operation

	op, err := operation.Lookup(ev.Operation)
	if err != nil {
		return nil, n.fail(err, in)
	}

	p, err := n.profileFor(msg)
	if err != nil {
		return nil, n.fail(err, in)
	}

	out, err = op.Run(ctx, &env{node: n, profile: p}, ev, in)
	if err != nil {
		return nil, n.fail(err, in)
	}

	n.sink.Send(n.cfg.Name, out)
	n.sink.Status(n.cfg.Name, StatusClear)
	return out, nil
}

func (n *Node) fail(err error, msg operation.Message) error {
	n.sink.Error(n.cfg.Name, err, msg)
	n.sink.Status(n.cfg.Name, StatusError)
	return err
}

// Event resolves the operation event for msg. Node configuration wins over
// message values. Message values are read from the top level (operation,
// workdir, savedir, localFilename, fileExtension) and from the payload
// (filename, targetFilename, localFilename).
func (n *Node) Event(msg operation.Message) (operation.Event, error) {
	payload := msg.Payload()

	fromMsg := map[string]any{}
	for _, key := range []string{"operation", "workdir", "savedir", "localFilename", "fileExtension"} {
		if v, ok := msg[key]; ok && v != nil {
			fromMsg[key] = v
		}
	}
	for _, key := range []string{"filename", "targetFilename", "localFilename"} {
		if _, set := fromMsg[key]; set {
			continue
		}
		if v, ok := payload[key]; ok && v != nil {
			fromMsg[key] = v
		}
	}

	var ev operation.Event
	if err := decode(fromMsg, &ev); err != nil {
		return operation.Event{}, fmt.Errorf("invalid message: %w", err)
	}

	ev.Operation = or(n.cfg.Operation, ev.Operation)
	ev.Workdir = or(n.cfg.Workdir, ev.Workdir)
	ev.Filename = or(n.cfg.Filename, ev.Filename)
	ev.TargetFilename = or(n.cfg.TargetFilename, ev.TargetFilename)
	ev.LocalFilename = or(n.cfg.LocalFilename, ev.LocalFilename)
	ev.Savedir = or(n.cfg.Savedir, ev.Savedir)
	ev.FileExtension = or(n.cfg.FileExtension, ev.FileExtension)

	return ev, nil
}

// profileFor returns a copy of the node profile with the message's
// connection overrides applied.
func (n *Node) profileFor(msg operation.Message) (profile.Profile, error) {
	var o struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	}

	fields := map[string]any{}
	for _, key := range []string{"host", "port", "username", "password"} {
		if v, ok := msg[key]; ok && v != nil {
			fields[key] = v
		}
	}
	if err := decode(fields, &o); err != nil {
		return profile.Profile{}, fmt.Errorf("invalid connection override: %w", err)
	}

	p := n.profile.WithOverrides(profile.Overrides{
		Host:     o.Host,
		Port:     o.Port,
		Username: o.Username,
		Password: o.Password,
	})
	if p.RequiresPassword && p.Username != "" && p.Password == "" {
		return profile.Profile{}, ErrPasswordRequired
	}
	return p, nil
}

func decode(input map[string]any, out any) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return d.Decode(input)
}

func or(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// env is the operation.Env of one message.
type env struct {
	node    *Node
	profile profile.Profile
}

func (e *env) Session() *transfer.Session {
	return transfer.Open(e.node.backend, e.profile)
}

func (e *env) Detector() operation.ErrorDetector {
	return e.node.detector
}

func (e *env) Debugf(format string, args ...any) {
	e.node.debugf(format, args...)
}

type discard struct{}

func (discard) Send(string, operation.Message)         {}
func (discard) Status(string, Status)                  {}
func (discard) Error(string, error, operation.Message) {}
