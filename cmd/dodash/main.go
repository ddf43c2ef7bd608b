package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dodash/internal/config"
	"github.com/mschirtzinger/dodash/internal/logging"
	"github.com/mschirtzinger/dodash/internal/ui"
)

var (
	configFile string
	verbose    bool

	// cfg is resolved before any command runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dodash",
	Short: "Colored to-do lists backed by a single JSON document",
	Long: `DoDash keeps named, colored to-do lists in one JSON document.

Run "dodash serve" to host the document and the web UI, then use the other
commands (or a browser) to edit it. Every edit replaces the whole document;
the server validates it and keeps the previous copy if anything is wrong.

Configuration is read from flags, the PORT environment variable and an
optional dodash.toml in the working directory or ~/.config/dodash.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = c
		logging.Setup(logging.Options{File: cfg.LogFile, Quiet: !verbose})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Close()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server:"},
		&cobra.Group{ID: "lists", Title: "Lists:"},
		&cobra.Group{ID: "tasks", Title: "Tasks:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
	)

	def := config.Default()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default: ./dodash.toml, then ~/.config/dodash/dodash.toml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
	pf.String("server", def.Server, "Base URL of the DoDash server")
	pf.String("data", def.Data, "Data file (file backend) or database (sqlite backend)")
	pf.String("backend", def.Backend, "Storage backend: file, sqlite or memory")
	pf.String("log-file", "", "Also write logs to this file (rotated)")
	pf.String("failure-policy", def.FailurePolicy, "What to do with a local edit the server rejects: rollback or warn")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("Error:"), err)
		os.Exit(1)
	}
}
