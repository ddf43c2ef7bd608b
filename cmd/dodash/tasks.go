package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dodash/internal/client"
	"github.com/mschirtzinger/dodash/internal/ui"
)

// Tasks are referenced by their position as printed by "show" (1, 2, ...)
// or by id.

var addCmd = &cobra.Command{
	Use:     "add [TEXT...]",
	GroupID: "tasks",
	Short:   "Add a task to a list",
	Example: `  dodash add Buy milk
  dodash add -l Work "Review the release notes"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if strings.TrimSpace(text) == "" {
			var err error
			if text, err = promptText("New task", "What needs doing?"); err != nil {
				return err
			}
		}
		listRef, _ := cmd.Flags().GetString("list")

		return withMirror(cmd, func(ctx context.Context, m *client.Mirror) error {
			l, err := resolveList(m, listRef)
			if err != nil {
				return err
			}
			if _, err := m.AddTask(ctx, l.ID, text); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Added to %s %s: %s\n",
				ui.RenderPass("✓"), ui.Swatch(l.Color), l.Name, strings.TrimSpace(text))
			return nil
		})
	},
}

var editCmd = &cobra.Command{
	Use:     "edit TASK TEXT...",
	GroupID: "tasks",
	Short:   "Change a task's text",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args[1:], " ")
		return withMirror(cmd, func(ctx context.Context, m *client.Mirror) error {
			l, t, err := taskTarget(cmd, m, args[0])
			if err != nil {
				return err
			}
			if err := m.RenameTask(ctx, l.ID, t.ID, text); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated: %s\n", ui.RenderPass("✓"), strings.TrimSpace(text))
			return nil
		})
	},
}

func completionCmd(use, short string, completed bool) *cobra.Command {
	return &cobra.Command{
		Use:     use + " TASK",
		GroupID: "tasks",
		Short:   short,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMirror(cmd, func(ctx context.Context, m *client.Mirror) error {
				l, t, err := taskTarget(cmd, m, args[0])
				if err != nil {
					return err
				}
				if err := m.SetCompleted(ctx, l.ID, t.ID, completed); err != nil {
					return err
				}
				state := "open"
				if completed {
					state = "done"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", ui.RenderPass("✓"), state, t.Text)
				return nil
			})
		},
	}
}

var (
	doneCmd = completionCmd("done", "Mark a task completed", true)
	undoCmd = completionCmd("undo", "Mark a task not completed", false)
)

var rmCmd = &cobra.Command{
	Use:     "rm TASK",
	GroupID: "tasks",
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMirror(cmd, func(ctx context.Context, m *client.Mirror) error {
			l, t, err := taskTarget(cmd, m, args[0])
			if err != nil {
				return err
			}
			if err := m.DeleteTask(ctx, l.ID, t.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted: %s\n", ui.RenderPass("✓"), t.Text)
			return nil
		})
	},
}

var mvCmd = &cobra.Command{
	Use:     "mv TASK POSITION",
	GroupID: "tasks",
	Short:   "Move a task to another position in its list",
	Example: `  dodash mv 3 1     # move the third task to the top`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := strconv.Atoi(args[1])
		if err != nil || pos < 1 {
			return fmt.Errorf("position must be a number starting at 1, got %q", args[1])
		}
		return withMirror(cmd, func(ctx context.Context, m *client.Mirror) error {
			l, t, err := taskTarget(cmd, m, args[0])
			if err != nil {
				return err
			}
			if err := m.MoveTask(ctx, l.ID, t.ID, pos-1); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Moved: %s\n", ui.RenderPass("✓"), t.Text)
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:     "clear",
	GroupID: "tasks",
	Short:   "Remove completed tasks from a list",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		listRef, _ := cmd.Flags().GetString("list")
		return withMirror(cmd, func(ctx context.Context, m *client.Mirror) error {
			l, err := resolveList(m, listRef)
			if err != nil {
				return err
			}
			n, err := m.ClearCompleted(ctx, l.ID)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing to clear in %s\n", l.Name)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Cleared %d completed tasks from %s\n", ui.RenderPass("✓"), n, l.Name)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{addCmd, editCmd, doneCmd, undoCmd, rmCmd, mvCmd, clearCmd} {
		listFlag(c)
		rootCmd.AddCommand(c)
	}
}
