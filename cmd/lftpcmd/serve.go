package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/lftpcmd/lftpcmd/internal/flow"
	"github.com/lftpcmd/lftpcmd/internal/metrics"
	"github.com/lftpcmd/lftpcmd/internal/operation"
	"github.com/lftpcmd/lftpcmd/internal/output"
)

// maxMessageSize bounds one JSON line read from stdin.
const maxMessageSize = 16 << 20

// serveCmd feeds stdin messages to one node
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Handle JSON-line messages from stdin with one node",
	Long: `Read one JSON message per line from stdin and hand each to a node of a
flow file. Outgoing messages are written as JSON lines on stdout. The
messages listed in the flow file are ignored.

Examples:
  tail -f queue.jsonl | lftpcmd serve --flow backup.yaml --node upload
  lftpcmd serve --flow backup.yaml --node browse --metrics-addr :9100`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         serve,
}

func init() {
	serveCmd.Flags().String("flow", "", "Flow file defining servers and nodes")
	serveCmd.Flags().String("node", "", "Node that handles the messages")
	serveCmd.Flags().String("metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9100)")
	serveCmd.Flags().IntP("parallel", "p", 4, "Maximum number of messages handled at once")
	_ = serveCmd.MarkFlagRequired("flow")
	_ = serveCmd.MarkFlagRequired("node")
}

func serve(cmd *cobra.Command, args []string) error {
	flowPath, _ := cmd.Flags().GetString("flow")
	nodeName, _ := cmd.Flags().GetString("node")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	parallel, _ := cmd.Flags().GetInt("parallel")

	f, err := flow.ParseFile(flowPath)
	if err != nil {
		return err
	}
	cfg, ok := f.Nodes[nodeName]
	if !ok {
		return fmt.Errorf("node %q not found in %s", nodeName, flowPath)
	}
	cfg.Name = nodeName

	out := newOutput()
	sink := output.NewSink(out, os.Stdout)

	var m *metrics.Metrics
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)

		srv := startMetricsServer(out, metricsAddr, reg)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	n, err := buildNode(cfg, f.Profiles(), nodeOptions(out, sink, m))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(out)
	defer cancel()

	d := newDispatcher(parallel)
	readErr := readMessages(ctx, os.Stdin, func(msg operation.Message) {
		d.dispatch(ctx, n, msg)
	}, func(line int, err error) {
		out.Error("line %d: invalid message: %v", line, err)
	})
	stats := d.wait()

	out.FlowEnd(stats)
	return readErr
}

// readMessages decodes one JSON object per line of r and passes it to
// handle. Blank lines are skipped and undecodable lines are reported to
// invalid. Reading stops at EOF or when ctx is done.
func readMessages(ctx context.Context, r io.Reader, handle func(operation.Message), invalid func(line int, err error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	line := 0
	for scanner.Scan() {
		line++
		if ctx.Err() != nil {
			return nil
		}

		data := scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}

		var msg operation.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			invalid(line, err)
			continue
		}
		if msg == nil {
			invalid(line, errors.New("message is not an object"))
			continue
		}
		handle(msg)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read messages: %w", err)
	}
	return nil
}

func startMetricsServer(out *output.Output, addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		out.Info("serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			out.Error("metrics server: %v", err)
		}
	}()

	return srv
}
