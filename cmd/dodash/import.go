package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dodash/internal/client"
	"github.com/mschirtzinger/dodash/internal/export"
	"github.com/mschirtzinger/dodash/internal/schema"
	"github.com/mschirtzinger/dodash/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import FILE",
	GroupID: "sync",
	Short:   "Replace the document with a JSON, YAML or TOML file",
	Long: `Validate FILE (or stdin for "-") and replace the server's document with it.

The import is conditional: if the document changes on the server between
reading and writing, nothing is written. --force skips that check.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		format, err := formatFlag(cmd, path)
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")
		force, _ := cmd.Flags().GetBool("force")

		var doc *schema.Document
		if path == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			doc, err = export.Decode(data, format)
			if err != nil {
				return err
			}
		} else {
			doc, err = export.ReadFile(path, format)
			if err != nil {
				return err
			}
		}

		c := client.New(cfg.Server, nil)
		current, version, err := c.Fetch(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch document: %w", err)
		}

		ok, err := confirm(fmt.Sprintf("Replace %d lists with %d lists from %s?", len(current.Lists), len(doc.Lists), path), yes)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
			return nil
		}

		ifVersion := version
		if force {
			ifVersion = ""
		}
		newVersion, err := c.Push(cmd.Context(), doc, ifVersion)
		if errors.Is(err, client.ErrConflict) {
			return fmt.Errorf("%w; nothing was imported (re-run, or use --force)", err)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s Imported %d lists from %s %s\n",
			ui.RenderPass("✓"), len(doc.Lists), path, ui.RenderMuted("(version "+short(newVersion)+")"))
		return nil
	},
}

func init() {
	importCmd.Flags().StringP("format", "f", "", "json, yaml or toml (default: from the file extension, json for stdin)")
	importCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	importCmd.Flags().Bool("force", false, "Overwrite even if the document changed meanwhile")
	rootCmd.AddCommand(importCmd)
}
