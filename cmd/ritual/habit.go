package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ritual/internal/core"
)

func habitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habit",
		Short: "Manage habits",
	}
	cmd.AddCommand(habitAddCmd(a), habitDoneCmd(a))
	return cmd
}

func habitAddCmd(a *app) *cobra.Command {
	var rawDay string
	cmd := &cobra.Command{
		Use:   "add --day ID TITLE",
		Short: "Add a habit to a day and save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dayID, err := parseID("day", rawDay)
			if err != nil {
				return err
			}
			return a.withEngine(cmd.Context(), func(eng *core.Engine) error {
				habit, err := eng.AddHabitToDay(cmd.Context(), args[0], dayID)
				if err != nil {
					return err
				}
				if err := eng.Save(cmd.Context()); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), habit.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&rawDay, "day", "", "day id")
	_ = cmd.MarkFlagRequired("day")
	return cmd
}

func habitDoneCmd(a *app) *cobra.Command {
	var (
		rawDay   string
		rawHabit string
		undo     bool
	)
	cmd := &cobra.Command{
		Use:   "done --day ID --habit ID",
		Short: "Mark a habit done for a day and save",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dayID, err := parseID("day", rawDay)
			if err != nil {
				return err
			}
			habitID, err := parseID("habit", rawHabit)
			if err != nil {
				return err
			}
			return a.withEngine(cmd.Context(), func(eng *core.Engine) error {
				ref, err := eng.SetHabitDone(cmd.Context(), dayID, habitID, !undo)
				if err != nil {
					return err
				}
				if err := eng.Save(cmd.Context()); err != nil {
					return err
				}
				state := "done"
				if !ref.Done {
					state = "not done"
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", ref.Name, state)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&rawDay, "day", "", "day id")
	cmd.Flags().StringVar(&rawHabit, "habit", "", "habit id")
	cmd.Flags().BoolVar(&undo, "undo", false, "mark the habit not done")
	_ = cmd.MarkFlagRequired("day")
	_ = cmd.MarkFlagRequired("habit")
	return cmd
}

func parseID(flag, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --%s %q: %w", flag, raw, err)
	}
	return id, nil
}
