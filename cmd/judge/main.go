// Command judge runs the tournament match execution engine: one Match
// Watcher per registered game, a Healer sweeping stuck matches, and an
// optional ops HTTP surface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/axeltournament/judge/internal/capacity"
	"github.com/axeltournament/judge/internal/config"
	"github.com/axeltournament/judge/internal/game"
	"github.com/axeltournament/judge/internal/httpapi"
	"github.com/axeltournament/judge/internal/logger"
	"github.com/axeltournament/judge/internal/sandbox"
	"github.com/axeltournament/judge/internal/store"
	"github.com/axeltournament/judge/internal/watcher"
)

func main() {
	// Mirrors the re-exec dispatch convention this codebase's sandbox
	// lineage uses: argv[1] == the wrapper marker means "run the
	// in-namespace child setup, not the CLI" — checked before cobra ever
	// sees the arguments.
	if len(os.Args) > 1 && os.Args[1] == sandbox.ExecInitSubcommand {
		sandbox.RunExecInit(os.Args[2:])
		return
	}

	root := &cobra.Command{
		Use:   "judge",
		Short: "tournament match execution engine",
	}
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the watchers, healer, and ops HTTP surface until signalled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.LogLevel, ""); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	schema, err := cfg.ResolveParticipantSchema()
	if err != nil {
		return fmt.Errorf("resolve participant schema: %w", err)
	}

	st, err := store.Open(cfg.DatabaseURL, schema)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	cap := capacity.New(cfg.MaxCapacity, cfg.MaxClaimDelayMS)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, len(game.Slugs())+2)

	for _, slug := range game.Slugs() {
		w := watcher.New(slug, st, cap, schema)
		go func(slug string) {
			slog.Info("watcher started", "game", slug)
			errCh <- w.Run(ctx)
		}(slug)
	}

	healer := watcher.NewHealer(st,
		time.Duration(cfg.QueuedTTLSeconds)*time.Second,
		time.Duration(cfg.RunningTTLSeconds)*time.Second)
	go func() {
		slog.Info("healer started")
		errCh <- healer.Run(ctx)
	}()

	httpSrv := httpapi.NewServer(cap, cfg.JWTSecret)
	addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
	go func() {
		slog.Info("ops http surface listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe(ctx, addr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		time.Sleep(time.Second)
		return nil
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			stop()
			return fmt.Errorf("engine error: %w", err)
		}
		return nil
	}
}
