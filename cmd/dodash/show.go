package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/mschirtzinger/dodash/internal/client"
	"github.com/mschirtzinger/dodash/internal/schema"
	"github.com/mschirtzinger/dodash/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show",
	GroupID: "sync",
	Short:   "Print lists and tasks",
	Long: `Print every list with its tasks in display order, or a single list with
--list. Task positions shown here are what the task commands accept.

--json prints the raw document and --query extracts part of it with a
GJSON path (https://github.com/tidwall/gjson/blob/master/SYNTAX.md).`,
	Example: `  dodash show
  dodash show -l Work
  dodash show --query 'lists.#.name'
  dodash show --query 'lists.#(name=="Work").tasks.#(completed==false)#.text'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		listRef, _ := cmd.Flags().GetString("list")
		asJSON, _ := cmd.Flags().GetBool("json")
		query, _ := cmd.Flags().GetString("query")

		return withMirror(cmd, func(ctx context.Context, m *client.Mirror) error {
			doc := m.Snapshot()
			out := cmd.OutOrStdout()

			data, err := schema.Marshal(doc)
			if err != nil {
				return err
			}

			switch {
			case query != "":
				res := gjson.GetBytes(data, query)
				if !res.Exists() {
					return fmt.Errorf("query %q matched nothing", query)
				}
				fmt.Fprintln(out, res.String())
				return nil
			case asJSON:
				_, err := out.Write(data)
				return err
			}

			if listRef != "" {
				l, err := resolveList(m, listRef)
				if err != nil {
					return err
				}
				fmt.Fprint(out, ui.List(l))
				return nil
			}

			printDocument(out, doc)
			printFooter(out, doc, m.Version(), len(data))
			return nil
		})
	},
}

func printDocument(out io.Writer, doc *schema.Document) {
	if len(doc.Lists) == 0 {
		fmt.Fprintln(out, ui.RenderMuted("No lists."))
		return
	}
	for i, l := range doc.Lists {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprint(out, ui.List(l))
	}
}

func printFooter(out io.Writer, doc *schema.Document, version string, size int) {
	var open, done int
	for i := range doc.Lists {
		o, d := doc.Lists[i].Counts()
		open += o
		done += d
	}
	if len(version) > 12 {
		version = version[:12]
	}
	fmt.Fprintf(out, "\n%s\n", ui.RenderMuted(fmt.Sprintf("%s open · %s done · %s · version %s",
		humanize.Comma(int64(open)), humanize.Comma(int64(done)),
		humanize.Bytes(uint64(size)), version)))
}

func init() {
	listFlag(showCmd)
	showCmd.Flags().Bool("json", false, "Print the raw document")
	showCmd.Flags().StringP("query", "q", "", "Print the result of a GJSON path query")
	rootCmd.AddCommand(showCmd)
}
