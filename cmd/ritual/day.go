package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ritual/internal/core"
)

func dayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "day",
		Short: "Manage days",
	}
	cmd.AddCommand(dayAddCmd(a))
	return cmd
}

func dayAddCmd(a *app) *cobra.Command {
	var rawDate string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a day and save",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := parseDate(rawDate)
			if err != nil {
				return err
			}
			return a.withEngine(cmd.Context(), func(eng *core.Engine) error {
				day, err := eng.NewDay(cmd.Context(), date)
				if err != nil {
					return err
				}
				if err := eng.Save(cmd.Context()); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), day.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&rawDate, "date", "", "day date (RFC 3339 or YYYY-MM-DD); defaults to now")
	return cmd
}

// parseDate accepts RFC 3339 timestamps and bare dates. Empty means now.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --date %q: want RFC 3339 or YYYY-MM-DD", raw)
}
