// Command ritual records days and habits and serves them over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ritual/internal/config"
	"ritual/internal/core"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ritual:", err)
		exitFunc(1)
	}
}

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	verbosity  int
	cfg        config.Config
	logger     *slog.Logger
	coreOpts   []core.Option
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ritual",
		Short:         "Track daily habits",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")
	root.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", "increase log verbosity (-v debug, -vv debug with source)")

	root.AddCommand(dayCmd(a), habitCmd(a), showCmd(a), serveCmd(a))
	return root
}

func (a *app) setup(logOut io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(logOut, cfg.Log, a.verbosity)
	a.coreOpts = append(a.coreOpts, core.WithLogger(a.logger))
	return nil
}

// newLogger maps -v counts onto slog levels. Without -v the configured
// level applies.
func newLogger(w io.Writer, cfg config.Log, verbosity int) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	switch {
	case verbosity >= 2:
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	case verbosity == 1:
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// withEngine opens the configured store, runs the engine for the duration of
// fn, then stops it and closes the store.
func (a *app) withEngine(ctx context.Context, fn func(eng *core.Engine) error) (err error) {
	eng, err := core.Open(ctx, a.cfg, a.coreOpts...)
	if err != nil {
		return err
	}
	runErr := make(chan error, 1)
	go func() { runErr <- eng.Run(context.WithoutCancel(ctx)) }()
	defer func() {
		eng.Stop()
		if rerr := <-runErr; rerr != nil && err == nil {
			err = rerr
		}
		if cerr := eng.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(eng)
}
