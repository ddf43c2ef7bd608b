package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dodash/internal/client"
	"github.com/mschirtzinger/dodash/internal/ui"
)

var listsCmd = &cobra.Command{
	Use:     "lists",
	GroupID: "lists",
	Short:   "Show all lists with their task counts",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMirror(cmd, func(ctx context.Context, m *client.Mirror) error {
			doc := m.Snapshot()
			out := cmd.OutOrStdout()
			if len(doc.Lists) == 0 {
				fmt.Fprintln(out, ui.RenderMuted("No lists. Create one with: dodash list add NAME"))
				return nil
			}
			active, _ := m.Active()
			for _, l := range doc.Lists {
				fmt.Fprintln(out, ui.ListLine(l, l.ID == active))
			}
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "lists",
	Short:   "Create, rename, recolor or delete lists",
}

var listAddCmd = &cobra.Command{
	Use:   "add [NAME...]",
	Short: "Create a list",
	Example: `  dodash list add Groceries
  dodash list add "Side projects" --color "#10B981"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		if strings.TrimSpace(name) == "" {
			var err error
			if name, err = promptText("List name", "Groceries"); err != nil {
				return err
			}
		}
		color, _ := cmd.Flags().GetString("color")

		return withMirror(cmd, func(ctx context.Context, m *client.Mirror) error {
			id, err := m.AddList(ctx, name, color)
			if err != nil {
				return err
			}
			l, _ := resolveList(m, id.String())
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created list %s %s %s\n",
				ui.RenderPass("✓"), ui.Swatch(l.Color), l.Name, ui.RenderMuted("("+id.String()+")"))
			return nil
		})
	},
}

var listRenameCmd = &cobra.Command{
	Use:   "rename LIST NAME...",
	Short: "Rename a list",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args[1:], " ")
		return withMirror(cmd, func(ctx context.Context, m *client.Mirror) error {
			l, err := resolveList(m, args[0])
			if err != nil {
				return err
			}
			if err := m.RenameList(ctx, l.ID, name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed %s to %s\n", ui.RenderPass("✓"), l.Name, strings.TrimSpace(name))
			return nil
		})
	},
}

var listColorCmd = &cobra.Command{
	Use:     "color LIST COLOR",
	Short:   "Change a list's color (#RRGGBB)",
	Example: `  dodash list color Work "#F59E0B"`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMirror(cmd, func(ctx context.Context, m *client.Mirror) error {
			l, err := resolveList(m, args[0])
			if err != nil {
				return err
			}
			if err := m.RecolorList(ctx, l.ID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is now %s %s\n", ui.RenderPass("✓"), l.Name, ui.Swatch(args[1]), args[1])
			return nil
		})
	},
}

var listRmCmd = &cobra.Command{
	Use:     "rm LIST",
	Aliases: []string{"delete"},
	Short:   "Delete a list and all of its tasks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		return withMirror(cmd, func(ctx context.Context, m *client.Mirror) error {
			l, err := resolveList(m, args[0])
			if err != nil {
				return err
			}
			ok, err := confirm(fmt.Sprintf("Delete %q and its %d tasks?", l.Name, len(l.Tasks)), yes)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
				return nil
			}
			if err := m.DeleteList(ctx, l.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted list %s\n", ui.RenderPass("✓"), l.Name)
			return nil
		})
	},
}

func init() {
	listAddCmd.Flags().String("color", "", "List color as #RRGGBB (default: #6B46C1)")
	listRmCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	listCmd.AddCommand(listAddCmd, listRenameCmd, listColorCmd, listRmCmd)
	rootCmd.AddCommand(listsCmd, listCmd)
}
