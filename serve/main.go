// Command vocaresumed is the vocaresume routing daemon.
// It listens on a Unix domain socket for ingest and route requests from the
// UI layer, keeps one task router per session, and answers with the task to run.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vocaresume/vocaresume"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	verbose     bool
	socketPath  string
	persistDir  string
	metricsAddr string

	rootCmd = &cobra.Command{
		Use:           "vocaresumed",
		Short:         "vocaresumed routes resume-analysis queries to tasks over a Unix socket",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
)

func init() {
	rootCmd.SetVersionTemplate("vocaresumed {{.Version}}\n")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "log every request and response to stderr")
	rootCmd.Flags().StringVar(&socketPath, "socket", "", "socket path (default $VOCARESUME_SOCKET, $XDG_RUNTIME_DIR/vocaresume.sock)")
	rootCmd.Flags().StringVar(&persistDir, "persist-dir", "", "directory for per-session collections (default store.persist_dir)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for the Prometheus /metrics endpoint (default server.metrics_addr)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("vocaresumed failed", "error", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := vocaresume.LoadConfig()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "path", vocaresume.ConfigPath(), "error", err)
		cfg = vocaresume.DefaultConfig()
	}
	for _, w := range vocaresume.ValidateConfig(cfg) {
		slog.Warn("config", "warning", w)
	}

	if socketPath == "" {
		socketPath = resolveSocketPath()
	}
	if persistDir == "" {
		persistDir = vocaresume.ResolvePersistDir(cfg)
	}
	if metricsAddr == "" {
		metricsAddr = cfg.Server.MetricsAddr
	}

	slog.Info("starting", "socket", socketPath, "persist_dir", persistDir)

	srv, err := NewServer(socketPath, cfg, persistDir)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer srv.Close()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", srv.MetricsHandler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		}()
		slog.Info("metrics listening", "addr", metricsAddr)
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutting down")
		srv.Close()
		os.Exit(0)
	}()

	slog.Info("ready")
	return srv.Serve()
}

func resolveSocketPath() string {
	if path := os.Getenv("VOCARESUME_SOCKET"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/vocaresume.sock"
	}
	return fmt.Sprintf("/tmp/vocaresume-%d.sock", os.Getuid())
}
