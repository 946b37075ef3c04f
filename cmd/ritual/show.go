package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ritual/internal/core"
	"ritual/internal/display"
	"ritual/pkg/domain"
)

func showCmd(a *app) *cobra.Command {
	var (
		last  uint32
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print days and their habits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var limit domain.NonZeroUint32
			if cmd.Flags().Changed("last") {
				var err error
				if limit, err = domain.NewNonZeroUint32(last); err != nil {
					return fmt.Errorf("--last: %w", err)
				}
			}
			out := cmd.OutOrStdout()
			renderer := display.NewRenderer(out)
			return a.withEngine(cmd.Context(), func(eng *core.Engine) error {
				if err := render(renderer, eng, limit); err != nil {
					return err
				}
				if !watch {
					return nil
				}
				ctx := cmd.Context()
				return eng.Watch(ctx, func() {
					if err := eng.Reload(ctx); err != nil {
						return
					}
					_, _ = io.WriteString(out, "\n")
					if err := render(renderer, eng, limit); err != nil {
						a.logger.Warn("render failed", "error", err)
					}
				})
			})
		},
	}
	cmd.Flags().Uint32Var(&last, "last", 0, "only the newest N days")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-render when the stored document changes")
	return cmd
}

func render(r *display.Renderer, eng *core.Engine, limit domain.NonZeroUint32) error {
	snapshot := eng.Snapshot()
	return r.Days(display.Recent(snapshot, limit), eng.Service().Now())
}
