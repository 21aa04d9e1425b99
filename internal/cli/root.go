// Package cli defines the openmem-mcp command tree. Running the binary with
// no subcommand serves MCP over stdio, which is how MCP clients launch it.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/memtensor/openmem-mcp/internal/api/mcp"
	"github.com/memtensor/openmem-mcp/internal/config"
	"github.com/memtensor/openmem-mcp/internal/logging"
	"github.com/memtensor/openmem-mcp/internal/memos"
	"github.com/memtensor/openmem-mcp/internal/version"
)

var (
	cfgFile    string
	logLevel   string
	listenAddr string

	// built in PersistentPreRunE
	log *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openmem-mcp",
		Short: "openmem-mcp — MCP adapter for the OpenMem memory API",
		Long: "openmem-mcp exposes the OpenMem remote memory API as MCP tools\n" +
			"(add_message, search_memory, get_message, delete_memory, add_feedback)\n" +
			"over stdio JSON-RPC, so AI assistants can store and recall long-term memories.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
			if cfgFile == "" {
				cfgFile = config.DefaultPath()
			}
			return nil
		},
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.openmem-mcp/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "serve over WebSocket on this address instead of stdio (e.g. 127.0.0.1:8765)")

	cmd.AddCommand(newVersionCmd())

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	// Missing credentials are deliberately not fatal here: each tool call
	// reports them in-band so the MCP client sees a useful message.
	client := memos.NewClient(cfg.BaseURL, cfg.APIKey, memos.WithLogger(log))
	srv := mcp.NewServer(cfg,
		mcp.WithClient(client),
		mcp.WithLogger(log),
		mcp.WithVersion(version.Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if listenAddr != "" {
		if err := mcp.NewWSTransport(srv, listenAddr).Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("websocket transport failed")
			return err
		}
	} else {
		if err := mcp.NewStdioTransport(srv, os.Stdin, os.Stdout).Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("stdio transport failed")
			return err
		}
	}

	log.Info().Msg("shutdown complete")
	return nil
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
