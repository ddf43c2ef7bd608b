package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dodash/internal/logging"
	"github.com/mschirtzinger/dodash/internal/server"
	"github.com/mschirtzinger/dodash/internal/store"
	"github.com/mschirtzinger/dodash/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "server",
	Short:   "Serve the document API and the web UI",
	Long: `Start the DoDash HTTP server.

Endpoints:
  GET  /api/data     the current document (ETag carries its version)
  POST /api/data     replace the document; send If-Match to avoid lost updates
  GET  /api/events   websocket, pushes the document after every change
  GET  /health       liveness check

Every other path serves the web UI. The file backend also watches the data
file, so edits made by other processes reach connected clients.

Example usage:
  dodash serve                         # port 8080, data/todos.json
  PORT=9000 dodash serve               # port from the environment
  dodash serve --backend sqlite --data dodash.db`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(logging.Options{File: cfg.LogFile})

		st, err := store.New(&store.Config{
			Backend: cfg.Backend,
			Path:    cfg.Data,
			Logger:  logging.New("store"),
		})
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()

		watchPath := ""
		if cfg.Backend == store.BackendFile {
			watchPath = cfg.Data
		}

		srv, err := server.NewServer(&server.Config{
			Port:      cfg.Port,
			Store:     st,
			StaticDir: cfg.Static,
			WatchPath: watchPath,
			Logger:    logging.New("server"),
		})
		if err != nil {
			return err
		}
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s DoDash serving %s (%s backend)\n", ui.RenderAccent("●"), cfg.Data, cfg.Backend)
		fmt.Fprintf(out, "  UI:     http://%s/\n", srv.GetAddr())
		fmt.Fprintf(out, "  Events: ws://%s/api/events\n", srv.GetAddr())
		fmt.Fprintln(out, "\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Fprintln(out, "\nShutting down...")
		if err := srv.Stop(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (PORT overrides the default)")
	serveCmd.Flags().String("static", "", "Serve the UI from this directory instead of the built-in page")
	rootCmd.AddCommand(serveCmd)
}
