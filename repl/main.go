// Command vocaresume-repl is an interactive REPL for the task router.
// It reads queries from the terminal and writes one TOML record per routed
// query to stdout.
//
// Usage:
//
//	./vocaresume-repl                      # interactive, TOML on screen
//	./vocaresume-repl > routes.toml        # prompt on screen, TOML to file
//	./vocaresume-repl --persist-dir ./data # keep the collection between runs
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vocaresume/vocaresume"
	"github.com/vocaresume/vocaresume/router"
)

const prompt = "> "

var (
	persistDir string
	topK       int

	rootCmd = &cobra.Command{
		Use:           "vocaresume-repl",
		Short:         "Interactive REPL for routing resume-analysis queries",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
)

func init() {
	rootCmd.Flags().StringVar(&persistDir, "persist-dir", "", "directory for the collection (default store.persist_dir, in-memory if unset)")
	rootCmd.Flags().IntVar(&topK, "top-k", 0, "neighbours searched per query (default router.top_k)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	editor, err := NewEditor()
	if err != nil {
		return err
	}
	defer editor.Close()

	tty := editor.Tty()
	slog.SetDefault(slog.New(slog.NewTextHandler(&crlfWriter{w: os.Stderr}, nil)))

	cfg, err := vocaresume.LoadConfig()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = vocaresume.DefaultConfig()
	}
	if persistDir == "" {
		persistDir = vocaresume.ResolvePersistDir(cfg)
	}

	fmt.Fprintf(tty, "\033[2J\033[H") // clear screen
	fmt.Fprintf(tty, "vocaresume repl\r\n")

	ctx := context.Background()
	r := router.New(ctx, cfg, persistDir)
	defer func() {
		if err := r.Close(); err != nil {
			slog.Warn("failed to close router", "error", err)
		}
	}()
	r.EnsureTaskLabels(ctx)

	fmt.Fprintf(tty, "backend: %s\r\n", r.RoutingBackend())
	fmt.Fprintf(tty, "\r\ncommands:\r\n")
	fmt.Fprintf(tty, "  :resume <file>  ingest a plain-text resume\r\n")
	fmt.Fprintf(tty, "  :jd <file>      ingest a plain-text job description\r\n")
	fmt.Fprintf(tty, "  :stats          route counts\r\n")
	fmt.Fprintf(tty, "  :backend        routing backend\r\n")
	fmt.Fprintf(tty, "  :quit           exit\r\n\r\n")

	// stdout writer: converts \n → \r\n when stdout is a terminal (raw mode),
	// passes \n through unchanged when redirected to a file.
	out := termWriter(os.Stdout)

	s := &replSession{router: r, tty: tty, out: out, k: topK}
	for {
		text, err := editor.ReadLine(prompt)
		if err == io.EOF || errors.Is(err, ErrInterrupt) {
			break
		}
		if err != nil {
			fmt.Fprintf(tty, "read error: %v\r\n", err)
			break
		}
		if s.handle(ctx, text) {
			break
		}
	}
	return nil
}

// replSession dispatches REPL input to the router.
type replSession struct {
	router *router.Router
	tty    io.Writer
	out    io.Writer
	k      int
	reqID  int
	now    func() time.Time
}

// handle processes one line of input and reports whether the REPL should exit.
func (s *replSession) handle(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return false

	case text == ":quit" || text == ":q":
		return true

	case text == ":stats":
		writeStats(s.tty, s.router.Stats(), s.router.RoutingBackend())

	case text == ":backend":
		fmt.Fprintf(s.tty, "backend: %s\r\n\r\n", s.router.RoutingBackend())

	case strings.HasPrefix(text, ":resume "), strings.HasPrefix(text, ":jd "):
		cmd, path, _ := strings.Cut(text, " ")
		data, err := os.ReadFile(strings.TrimSpace(path))
		if err != nil {
			fmt.Fprintf(s.tty, "error: %v\r\n\r\n", err)
			return false
		}
		if cmd == ":resume" {
			s.router.IngestResume(ctx, string(data))
		} else {
			s.router.IngestJobDescription(ctx, string(data))
		}
		fmt.Fprintf(s.tty, "ingested %d bytes (%s)\r\n\r\n", len(data), s.router.RoutingBackend())

	case strings.HasPrefix(text, ":"):
		fmt.Fprintf(s.tty, "unknown command: %s\r\n\r\n", text)

	default:
		s.reqID++
		res := s.router.Route(ctx, text, s.k)
		backend := s.router.RoutingBackend()
		writeSummary(s.tty, res, backend)

		now := time.Now
		if s.now != nil {
			now = s.now
		}
		if err := writeEntry(s.out, s.reqID, text, s.k, res, backend, now()); err != nil {
			fmt.Fprintf(s.tty, "error: %v\r\n", err)
		}
	}
	return false
}
