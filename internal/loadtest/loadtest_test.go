package loadtest

import (
	"bytes"
	"context"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mschirtzinger/dodash/internal/schema"
	"github.com/mschirtzinger/dodash/internal/store"
)

func TestGenerateDocument_Valid(t *testing.T) {
	doc := GenerateDocument(3, 20, "r1")
	if err := doc.Validate(); err != nil {
		t.Fatalf("generated document invalid: %v", err)
	}
	if len(doc.Lists) != 3 || len(doc.Lists[2].Tasks) != 20 {
		t.Errorf("shape = %d lists, %d tasks", len(doc.Lists), len(doc.Lists[2].Tasks))
	}
	if schema.Equal(doc, GenerateDocument(3, 20, "r2")) {
		t.Error("different revisions produced identical documents")
	}
}

func TestRun_Atomicity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load test in short mode")
	}

	quiet := log.New(io.Discard, "", 0)
	fileStore, err := store.OpenFile(filepath.Join(t.TempDir(), "todos.json"), quiet)
	if err != nil {
		t.Fatalf("OpenFile() failed: %v", err)
	}
	sqliteStore, err := store.OpenSQLite(filepath.Join(t.TempDir(), "dodash.db"), quiet)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer sqliteStore.Close()

	backends := map[string]store.Store{
		"file":   fileStore,
		"sqlite": sqliteStore,
		"memory": store.NewMemory(nil),
	}

	for name, st := range backends {
		t.Run(name, func(t *testing.T) {
			cfg := &Config{
				Readers:      4,
				Writers:      2,
				Duration:     300 * time.Millisecond,
				Lists:        3,
				TasksPerList: 40,
			}
			report, err := Run(context.Background(), st, cfg)
			if err != nil {
				t.Fatalf("Run() failed: %v", err)
			}
			if report.Reads.Operations == 0 || report.Writes.Operations == 0 {
				t.Errorf("no operations recorded: %+v", report)
			}
			if report.DistinctSeen == 0 {
				t.Error("readers saw no documents")
			}
			t.Logf("%s: %d reads (p95 %v), %d writes (p95 %v), %d distinct versions",
				name, report.Reads.Operations, report.Reads.P95,
				report.Writes.Operations, report.Writes.P95, report.DistinctSeen)
		})
	}
}

func TestRun_RequiresWorkers(t *testing.T) {
	_, err := Run(context.Background(), store.NewMemory(nil), &Config{Readers: 0, Writers: 1, Duration: time.Millisecond})
	if err == nil {
		t.Error("Run() with no readers should fail")
	}
}

func TestComputeLatencyStats(t *testing.T) {
	var durations []time.Duration
	for i := 100; i >= 1; i-- {
		durations = append(durations, time.Duration(i)*time.Millisecond)
	}

	stats := computeLatencyStats(durations)
	if stats.Min != time.Millisecond || stats.Max != 100*time.Millisecond {
		t.Errorf("Min/Max = %v/%v", stats.Min, stats.Max)
	}
	if stats.P50 != 51*time.Millisecond {
		t.Errorf("P50 = %v, want 51ms", stats.P50)
	}
	if stats.Operations != 100 {
		t.Errorf("Operations = %d, want 100", stats.Operations)
	}

	var buf bytes.Buffer
	stats.PrintStats(&buf, "Reads")
	if !strings.HasPrefix(buf.String(), "Reads:\n") || !strings.Contains(buf.String(), "P95") {
		t.Errorf("PrintStats() = %q", buf.String())
	}
}
