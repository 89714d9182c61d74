package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"orbit/internal/agent/daemon"
	"orbit/internal/logging"
)

var (
	addr      string
	workspace string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "agentd",
	Short: "agentd - orbit's browsing agent daemon",
	Long: `agentd answers delegated search tasks for the orbit overlay. It
drives a headless Chrome through the DevTools protocol and exposes a
small HTTP API (GET /health, POST /agent/run).`,
	RunE: runDaemon,
}

func init() {
	rootCmd.Flags().StringVarP(&addr, "addr", "a", "localhost:4823", "listen address")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: cwd)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	if workspace == "" {
		workspace, _ = os.Getwd()
	}
	if err := logging.Initialize(workspace); err != nil {
		logger.Warn("file logging unavailable", zap.Error(err))
	}
	defer logging.CloseAll()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	searcher := daemon.NewBrowserSearcher()
	defer searcher.Shutdown()

	server := daemon.NewServer(searcher)

	logger.Info("agentd listening", zap.String("addr", addr))
	if err := server.ListenAndServe(ctx, addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	logger.Info("agentd stopped")
	return nil
}
