package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/lftpcmd/lftpcmd/internal/node"
	"github.com/lftpcmd/lftpcmd/internal/operation"
	"github.com/lftpcmd/lftpcmd/internal/output"
	"github.com/lftpcmd/lftpcmd/internal/profile"
)

// execCmd runs a single operation from flags
var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Run a single operation",
	Long: `Run one operation against a server from a server file. The outgoing
message is printed as a JSON line on stdout.

--payload is decoded as JSON when possible and used as a string otherwise.

Examples:
  lftpcmd exec --server backup --operation list --workdir /pub
  lftpcmd exec --server backup --operation put --filename a.txt --payload '{"filedata":"hi"}'
  lftpcmd exec --server backup --operation raw --payload 'mkdir -p /in/new'`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         execOperation,
}

func init() {
	execCmd.Flags().String("server-file", "servers.yaml", "YAML file defining servers")
	execCmd.Flags().StringP("server", "s", "", "Server to connect to")
	execCmd.Flags().StringP("operation", "o", "", "Operation to run")
	execCmd.Flags().StringP("workdir", "w", "", "Remote working directory")
	execCmd.Flags().StringP("filename", "f", "", "Remote file name")
	execCmd.Flags().String("target", "", "Target file name for move")
	execCmd.Flags().String("local", "", "Local file to upload for put, or saved name for get")
	execCmd.Flags().String("savedir", "", "Local directory get saves the file into")
	execCmd.Flags().String("extension", "", "Extension of generated put file names")
	execCmd.Flags().String("payload", "", "Message payload")
	_ = execCmd.MarkFlagRequired("server")
	_ = execCmd.MarkFlagRequired("operation")
}

func execOperation(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	serverFile, _ := flags.GetString("server-file")

	cfg := node.Config{Name: "exec"}
	cfg.Server, _ = flags.GetString("server")
	cfg.Operation, _ = flags.GetString("operation")
	cfg.Workdir, _ = flags.GetString("workdir")
	cfg.Filename, _ = flags.GetString("filename")
	cfg.TargetFilename, _ = flags.GetString("target")
	cfg.LocalFilename, _ = flags.GetString("local")
	cfg.Savedir, _ = flags.GetString("savedir")
	cfg.FileExtension, _ = flags.GetString("extension")
	rawPayload, _ := flags.GetString("payload")

	profiles, err := profile.LoadFile(serverFile)
	if err != nil {
		return err
	}

	out := newOutput()
	sink := output.NewSink(out, os.Stdout)

	n, err := buildNode(cfg, profiles, nodeOptions(out, sink, nil))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(out)
	defer cancel()

	msg := withMessageID(operation.Message{"payload": decodePayload(rawPayload)})
	_, err = n.Handle(ctx, msg)
	return err
}

// decodePayload returns s decoded as JSON, or s itself when it is not
// valid JSON. An empty s yields nil.
func decodePayload(s string) any {
	if s == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
