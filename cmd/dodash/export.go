package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dodash/internal/client"
	"github.com/mschirtzinger/dodash/internal/export"
	"github.com/mschirtzinger/dodash/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export [FILE]",
	GroupID: "sync",
	Short:   "Write the document to a JSON, YAML or TOML file",
	Long: `Fetch the document from the server and write it to FILE, or to stdout
when FILE is "-" or omitted. The format comes from the file extension
unless --format is given.`,
	Example: `  dodash export backup.yaml
  dodash export --format toml > todos.toml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		format, err := formatFlag(cmd, path)
		if err != nil {
			return err
		}

		doc, version, err := client.New(cfg.Server, nil).Fetch(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch document: %w", err)
		}

		if path == "-" {
			return export.Encode(cmd.OutOrStdout(), doc, format)
		}
		if err := export.WriteFile(path, doc, format); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Exported %d lists to %s %s\n",
			ui.RenderPass("✓"), len(doc.Lists), path, ui.RenderMuted("(version "+short(version)+")"))
		return nil
	},
}

// formatFlag resolves --format, falling back to the extension of path.
// stdout defaults to JSON.
func formatFlag(cmd *cobra.Command, path string) (export.Format, error) {
	name, _ := cmd.Flags().GetString("format")
	if name != "" {
		return export.ParseFormat(name)
	}
	if path == "-" {
		return export.FormatJSON, nil
	}
	return export.FormatFromPath(path)
}

func short(version string) string {
	if len(version) > 12 {
		return version[:12]
	}
	return version
}

func init() {
	exportCmd.Flags().StringP("format", "f", "", "json, yaml or toml (default: from the file extension)")
	rootCmd.AddCommand(exportCmd)
}
