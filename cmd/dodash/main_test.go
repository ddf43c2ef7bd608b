package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mschirtzinger/dodash/internal/logging"
	"github.com/mschirtzinger/dodash/internal/schema"
	"github.com/mschirtzinger/dodash/internal/server"
	"github.com/mschirtzinger/dodash/internal/store"
	"github.com/mschirtzinger/dodash/internal/ui"
)

func TestMain(m *testing.M) {
	ui.SetColor(false)
	interactive = func() bool { return false }
	os.Exit(m.Run())
}

// startServer serves a fresh in-memory document and returns its URL.
func startServer(t *testing.T) (string, *store.MemoryStore) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PORT", "")

	st := store.NewMemory(nil)
	srv, err := server.NewServer(&server.Config{Store: st, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL, st
}

// reset restores every flag to its default and gives every command ctx;
// cobra only hands the root context to a subcommand the first time it runs.
func reset(cmd *cobra.Command, ctx context.Context) {
	restore := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(restore)
	cmd.PersistentFlags().VisitAll(restore)
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		reset(c, ctx)
	}
}

func runCtx(ctx context.Context, args ...string) (string, error) {
	reset(rootCmd, ctx)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

// run executes one CLI invocation against url.
func run(t *testing.T, url string, args ...string) string {
	t.Helper()
	out, err := runCtx(context.Background(), append([]string{"--server", url}, args...)...)
	if err != nil {
		t.Fatalf("dodash %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func readDoc(t *testing.T, st *store.MemoryStore) *schema.Document {
	t.Helper()
	doc, err := st.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	return doc
}

func findList(doc *schema.Document, name string) *schema.List {
	for i := range doc.Lists {
		if doc.Lists[i].Name == name {
			return &doc.Lists[i]
		}
	}
	return nil
}

func TestCLI_ListAndTaskWorkflow(t *testing.T) {
	url, st := startServer(t)

	out := run(t, url, "list", "add", "Groceries", "--color", "#10B981")
	if !strings.Contains(out, "Created list") || !strings.Contains(out, "Groceries") {
		t.Errorf("list add output = %q", out)
	}

	run(t, url, "add", "-l", "groceries", "milk")
	run(t, url, "add", "--list", "Groceries", "eggs")
	run(t, url, "done", "-l", "groceries", "1")

	doc := readDoc(t, st)
	g := findList(doc, "Groceries")
	if g == nil {
		t.Fatal("Groceries list not stored")
	}
	if g.Color != "#10B981" || len(g.Tasks) != 2 {
		t.Fatalf("Groceries = %+v", g)
	}
	sorted := g.Sorted()
	if sorted[0].Text != "milk" || !sorted[0].Completed || sorted[1].Completed {
		t.Errorf("tasks = %+v", sorted)
	}

	run(t, url, "mv", "-l", "groceries", "2", "1")
	out = run(t, url, "show", "-l", "groceries")
	want := "■ Groceries\n  1. [ ] eggs\n  2. [x] milk\n"
	if out != want {
		t.Errorf("show -l groceries =\n%q\nwant\n%q", out, want)
	}

	run(t, url, "edit", "-l", "groceries", "1", "brown", "eggs")
	run(t, url, "undo", "-l", "groceries", "2")

	out = run(t, url, "clear", "-l", "groceries")
	if !strings.Contains(out, "Nothing to clear") {
		t.Errorf("clear with nothing completed = %q", out)
	}
	run(t, url, "done", "-l", "groceries", "1")
	out = run(t, url, "clear", "-l", "groceries")
	if !strings.Contains(out, "Cleared 1 completed tasks") {
		t.Errorf("clear output = %q", out)
	}

	g = findList(readDoc(t, st), "Groceries")
	if len(g.Tasks) != 1 || g.Tasks[0].Text != "milk" {
		t.Errorf("after clear = %+v", g.Tasks)
	}

	run(t, url, "rm", "-l", "groceries", "1")
	run(t, url, "list", "rename", "groceries", "Shopping", "list")
	run(t, url, "list", "color", "shopping list", "#F59E0B")

	out = run(t, url, "lists")
	if !strings.Contains(out, "▸ ■ My Tasks  0 open · 0 done  (default)") {
		t.Errorf("lists output = %q", out)
	}
	if !strings.Contains(out, "Shopping list") {
		t.Errorf("renamed list missing from %q", out)
	}

	run(t, url, "list", "rm", "Shopping list", "--yes")
	doc = readDoc(t, st)
	if len(doc.Lists) != 1 || doc.Lists[0].ID.String() != schema.DefaultListID {
		t.Errorf("after list rm = %+v", doc.Lists)
	}
}

func TestCLI_Show(t *testing.T) {
	url, _ := startServer(t)
	run(t, url, "add", "write tests")

	out := run(t, url, "show")
	if !strings.Contains(out, "  1. [ ] write tests") || !strings.Contains(out, "1 open · 0 done") {
		t.Errorf("show output = %q", out)
	}

	out = run(t, url, "show", "--json")
	doc, err := schema.Parse([]byte(out))
	if err != nil {
		t.Fatalf("show --json is not a valid document: %v", err)
	}
	if len(doc.Lists[0].Tasks) != 1 {
		t.Errorf("show --json = %s", out)
	}

	out = run(t, url, "show", "--query", "lists.#.name")
	if strings.TrimSpace(out) != `["My Tasks"]` {
		t.Errorf("show --query = %q", out)
	}

	_, err = runCtx(context.Background(), "--server", url, "show", "--query", "nope.nothing")
	if err == nil {
		t.Error("query with no match should fail")
	}
}

func TestCLI_Errors(t *testing.T) {
	url, st := startServer(t)
	before := readDoc(t, st)

	tests := []struct {
		name string
		args []string
		is   error
	}{
		{"unknown task", []string{"done", "5"}, schema.ErrTaskNotFound},
		{"unknown list", []string{"add", "-l", "nope", "x"}, schema.ErrListNotFound},
		{"bad color", []string{"list", "color", "default", "purple"}, schema.ErrInvalidColor},
		{"no prompt without terminal", []string{"add"}, errNotInteractive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCtx(context.Background(), append([]string{"--server", url}, tt.args...)...)
			if !errors.Is(err, tt.is) {
				t.Errorf("error = %v, want %v", err, tt.is)
			}
		})
	}

	if _, err := runCtx(context.Background(), "--server", url, "list", "rm", "default"); err == nil {
		t.Error("list rm without --yes and without a terminal should fail")
	}
	if _, err := runCtx(context.Background(), "--server", url, "mv", "1", "first"); err == nil {
		t.Error("mv with a non-numeric position should fail")
	}

	if !schema.Equal(readDoc(t, st), before) {
		t.Error("failed commands changed the document")
	}

	_, err := runCtx(context.Background(), "--server", "http://127.0.0.1:1", "lists")
	if err == nil || !strings.Contains(err.Error(), "failed to load document") {
		t.Errorf("unreachable server error = %v", err)
	}
}

func TestCLI_ExportImport(t *testing.T) {
	url, st := startServer(t)
	dir := t.TempDir()

	run(t, url, "add", "keep me")
	for _, name := range []string{"backup.yaml", "backup.toml", "backup.json"} {
		run(t, url, "export", filepath.Join(dir, name))
	}
	saved := readDoc(t, st)

	out := run(t, url, "export")
	if _, err := schema.Parse([]byte(out)); err != nil {
		t.Errorf("export to stdout is not a document: %v", err)
	}

	for _, name := range []string{"backup.yaml", "backup.toml", "backup.json"} {
		run(t, url, "add", "drop me")
		run(t, url, "import", filepath.Join(dir, name), "--yes")
		if !schema.Equal(readDoc(t, st), saved) {
			t.Errorf("import %s did not restore the exported document", name)
		}
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("lists:\n  - id: x\n    name: X\n    color: blue\n    tasks: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := runCtx(context.Background(), "--server", url, "import", bad, "--yes")
	if !schema.IsValidationError(err) {
		t.Errorf("import of invalid file: error = %v, want validation error", err)
	}
	if !schema.Equal(readDoc(t, st), saved) {
		t.Error("invalid import changed the document")
	}
}

func TestCLI_Watch(t *testing.T) {
	url, _ := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out, err := runCtx(ctx, "--server", url, "watch")
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	if !strings.Contains(out, "■ My Tasks") {
		t.Errorf("watch output = %q", out)
	}
}

func TestCLI_Stress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress run in short mode")
	}
	t.Setenv("HOME", t.TempDir())

	out, err := runCtx(context.Background(), "--backend", "memory", "stress",
		"--duration", "200ms", "--readers", "2", "--writers", "1", "--lists", "1", "--tasks", "3")
	if err != nil {
		t.Fatalf("stress failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Reads:", "Writes:", "Atomicity:  ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("stress output missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_Serve(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PORT", "")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out, err := runCtx(ctx, "--backend", "memory", "serve", "--port", "0")
	if err != nil {
		t.Fatalf("serve failed: %v", err)
	}
	if !strings.Contains(out, "DoDash serving") || !strings.Contains(out, "Server stopped") {
		t.Errorf("serve output = %q", out)
	}
}
