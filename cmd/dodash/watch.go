package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dodash/internal/client"
	"github.com/mschirtzinger/dodash/internal/logging"
	"github.com/mschirtzinger/dodash/internal/schema"
	"github.com/mschirtzinger/dodash/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Print the document every time it changes",
	Long: `Follow the server's event stream and print the document after every
change. If the stream is unavailable, fall back to polling GET /api/data
every --poll-interval.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		m := newMirror()
		if err := m.Load(ctx); err != nil {
			return fmt.Errorf("failed to load document from %s: %w", cfg.Server, err)
		}

		out := cmd.OutOrStdout()
		var (
			mu   sync.Mutex
			last string
		)
		emit := func(doc *schema.Document, version string) {
			mu.Lock()
			defer mu.Unlock()
			if version == last {
				return
			}
			last = version
			fmt.Fprintf(out, "%s %s\n", ui.RenderAccent("──"), ui.RenderMuted(time.Now().Format("15:04:05")))
			printDocument(out, doc)
		}
		emit(m.Snapshot(), m.Version())

		err := client.Subscribe(ctx, cfg.Server, m, emit)
		if err == nil {
			return nil
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%s live updates unavailable (%v), polling every %s\n",
			ui.RenderWarn("!"), err, cfg.PollInterval)

		poller := client.NewPoller(m, &client.PollerConfig{
			Interval:  cfg.PollInterval,
			OnRefresh: emit,
			Logger:    logging.New("poller"),
		})
		if err := poller.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		poller.Stop()
		return nil
	},
}

func init() {
	watchCmd.Flags().Duration("poll-interval", client.DefaultPollInterval, "Polling interval when live updates are unavailable")
	rootCmd.AddCommand(watchCmd)
}
