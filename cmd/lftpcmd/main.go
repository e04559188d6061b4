// Package main is the entrypoint for the lftpcmd CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	// Import operations and backends to register them
	_ "github.com/lftpcmd/lftpcmd/internal/operation/get"
	_ "github.com/lftpcmd/lftpcmd/internal/operation/list"
	_ "github.com/lftpcmd/lftpcmd/internal/operation/move"
	_ "github.com/lftpcmd/lftpcmd/internal/operation/put"
	_ "github.com/lftpcmd/lftpcmd/internal/operation/raw"
	_ "github.com/lftpcmd/lftpcmd/internal/operation/remove"
	_ "github.com/lftpcmd/lftpcmd/internal/transfer/ftp"
	_ "github.com/lftpcmd/lftpcmd/internal/transfer/sftp"

	"github.com/lftpcmd/lftpcmd/internal/flow"
	"github.com/lftpcmd/lftpcmd/internal/metrics"
	"github.com/lftpcmd/lftpcmd/internal/node"
	"github.com/lftpcmd/lftpcmd/internal/operation"
	"github.com/lftpcmd/lftpcmd/internal/output"
	"github.com/lftpcmd/lftpcmd/internal/profile"
	"github.com/lftpcmd/lftpcmd/internal/transfer"
	"github.com/lftpcmd/lftpcmd/internal/transfer/lftp"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	debug        bool
	noColor      bool
	envFile      string
	strictErrors bool
	lftpBinary   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lftpcmd",
	Short: "lftpcmd - FTP and SFTP file operations driven by messages",
	Long: `lftpcmd runs file operations (list, get, put, delete, rmdir, rmrf,
move, raw) against FTP, FTPS and SFTP servers. Each operation is triggered by
a JSON message and answered with an outgoing message.

Transfers run through the lftp command line client by default. Servers may
select the native ftp or sftp backend instead.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return profile.LoadEnv(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output with executing status and message dumps")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load credentials from this dotenv file if it exists")
	rootCmd.PersistentFlags().BoolVar(&strictErrors, "strict-errors", false, "Treat a non-zero exit code of the transfer tool as a failure")
	rootCmd.PersistentFlags().StringVar(&lftpBinary, "lftp", "", "Path to the lftp executable (default: lftp from PATH)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(operationsCmd)
}

// newOutput creates the status output on stderr. Stdout carries only
// outgoing messages.
func newOutput() *output.Output {
	out := output.New(os.Stderr)
	out.SetColor(!noColor)
	out.SetDebug(debug)
	return out
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(out *output.Output) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			out.Warn("interrupted, waiting for running operations")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// nodeOptions returns the options shared by every node of a command.
func nodeOptions(out *output.Output, sink node.Sink, m *metrics.Metrics) []node.Option {
	opts := []node.Option{
		node.WithSink(sink),
		node.WithDebug(out.Debug),
		node.WithMetrics(m),
	}
	if strictErrors {
		opts = append(opts, node.WithDetector(operation.ExitCodeDetector{}))
	}
	return opts
}

// buildNode creates a node, using the configured lftp executable for
// profiles on the lftp backend.
func buildNode(cfg node.Config, profiles map[string]profile.Profile, opts []node.Option) (*node.Node, error) {
	if p, ok := profiles[cfg.Server]; ok && p.Backend == profile.BackendLftp && lftpBinary != "" {
		opts = append(opts[:len(opts):len(opts)], node.WithBackend(lftp.New(lftp.WithBinary(lftpBinary))))
	}
	return node.New(cfg, profiles, opts...)
}

// buildNodes creates every node of f.
func buildNodes(f *flow.Flow, opts []node.Option) (map[string]*node.Node, error) {
	profiles := f.Profiles()

	nodes := make(map[string]*node.Node, len(f.Nodes))
	for _, cfg := range f.NodeConfigs() {
		n, err := buildNode(cfg, profiles, opts)
		if err != nil {
			return nil, err
		}
		nodes[cfg.Name] = n
	}
	return nodes, nil
}

// withMessageID returns msg with a generated _msgid when it has none.
func withMessageID(msg operation.Message) operation.Message {
	if msg.String("_msgid") != "" {
		return msg
	}
	out := msg.Clone()
	out["_msgid"] = uuid.NewString()
	return out
}

// runStats counts handled messages.
type runStats struct {
	sent   atomic.Int64
	failed atomic.Int64
	start  time.Time
}

func newRunStats() *runStats {
	return &runStats{start: time.Now()}
}

func (s *runStats) record(err error) {
	if err != nil {
		s.failed.Add(1)
		return
	}
	s.sent.Add(1)
}

func (s *runStats) GetSent() int               { return int(s.sent.Load()) }
func (s *runStats) GetFailed() int             { return int(s.failed.Load()) }
func (s *runStats) GetDuration() time.Duration { return time.Since(s.start) }

// dispatcher handles messages concurrently, at most limit at a time.
type dispatcher struct {
	sem   chan struct{}
	wg    sync.WaitGroup
	stats *runStats
}

func newDispatcher(limit int) *dispatcher {
	if limit < 1 {
		limit = 1
	}
	return &dispatcher{sem: make(chan struct{}, limit), stats: newRunStats()}
}

func (d *dispatcher) dispatch(ctx context.Context, n *node.Node, msg operation.Message) {
	d.sem <- struct{}{}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()

		_, err := n.Handle(ctx, withMessageID(msg))
		d.stats.record(err)
	}()
}

func (d *dispatcher) wait() *runStats {
	d.wg.Wait()
	return d.stats
}

// runCmd injects the messages of a flow file
var runCmd = &cobra.Command{
	Use:   "run <flow.yaml>",
	Short: "Run the messages of a flow file",
	Long: `Build the nodes of a flow file and inject its messages. Messages are
handled concurrently; outgoing messages are printed as JSON lines on stdout.

Examples:
  lftpcmd run backup.yaml
  lftpcmd run backup.yaml --debug --parallel 8`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runFlow,
}

func init() {
	runCmd.Flags().IntP("parallel", "p", 4, "Maximum number of messages handled at once")
}

func runFlow(cmd *cobra.Command, args []string) error {
	parallel, _ := cmd.Flags().GetInt("parallel")

	f, err := flow.ParseFile(args[0])
	if err != nil {
		return err
	}

	out := newOutput()
	sink := output.NewSink(out, os.Stdout)

	nodes, err := buildNodes(f, nodeOptions(out, sink, nil))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(out)
	defer cancel()

	out.FlowStart(f.Path, len(f.Messages))

	d := newDispatcher(parallel)
	for _, m := range f.Messages {
		if ctx.Err() != nil {
			break
		}
		d.dispatch(ctx, nodes[m.Node], operation.Message(m.Msg))
	}
	stats := d.wait()

	out.FlowEnd(stats)

	if stats.GetFailed() > 0 {
		return fmt.Errorf("%d message(s) failed", stats.GetFailed())
	}
	return nil
}

// validateCmd validates flow files without running them
var validateCmd = &cobra.Command{
	Use:   "validate <flow.yaml> [flow2.yaml ...]",
	Short: "Validate one or more flow files",
	Long: `Parse and validate flow files without connecting to any server.

This checks for:
  - Valid YAML syntax
  - Nodes bound to defined servers
  - Messages addressed to defined nodes
  - Every message resolving to a known operation
  - Known backends

Examples:
  lftpcmd validate backup.yaml
  lftpcmd validate flows/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateFlows,
}

func validateFlows(cmd *cobra.Command, args []string) error {
	out := newOutput()
	var hasErrors bool

	for _, path := range args {
		if err := validateFlow(path); err != nil {
			out.NodeError(path, err, nil)
			hasErrors = true
		} else {
			out.Success("%s", path)
		}
	}

	if hasErrors {
		return fmt.Errorf("one or more flows failed validation")
	}

	out.Info("all %d flow(s) valid", len(args))
	return nil
}

func validateFlow(path string) error {
	f, err := flow.ParseFile(path)
	if err != nil {
		return err
	}

	for name, p := range f.Profiles() {
		if _, err := transfer.NewBackend(p.Backend); err != nil {
			return fmt.Errorf("server %s: %w", name, err)
		}
	}

	if err := f.CheckOperations(); err != nil {
		return err
	}

	for i, m := range f.Messages {
		if _, err := operation.Lookup(f.Operation(m)); err != nil {
			return fmt.Errorf("message %d: %w", i+1, err)
		}
	}

	return nil
}

// operationsCmd lists available operations
var operationsCmd = &cobra.Command{
	Use:   "operations",
	Short: "List available operations and backends",
	Run: func(cmd *cobra.Command, args []string) {
		out := newOutput()

		out.Section("Operations")
		for _, name := range operation.List() {
			out.Success("%s", name)
		}

		out.Section("Backends")
		for _, name := range transfer.Backends() {
			out.Success("%s", name)
		}
	},
}
