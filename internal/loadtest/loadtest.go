// Package loadtest drives a document store with concurrent readers and
// writers.
//
// It measures read and write latency and checks the atomicity guarantee:
// every document a reader observes must be one that some writer wrote in
// full (or the document present before the run).
package loadtest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mschirtzinger/dodash/internal/schema"
	"github.com/mschirtzinger/dodash/internal/store"
)

// LatencyStats captures performance metrics from load tests.
type LatencyStats struct {
	Min        time.Duration
	Max        time.Duration
	Mean       time.Duration
	P50        time.Duration // Median
	P95        time.Duration
	P99        time.Duration
	Operations int
	Errors     int
	Durations  []time.Duration
}

// Report is the outcome of a mixed read/write run.
type Report struct {
	Reads  *LatencyStats
	Writes *LatencyStats

	// DistinctSeen counts the distinct document versions readers observed.
	DistinctSeen int
}

// Config controls a run.
type Config struct {
	Readers  int
	Writers  int
	Duration time.Duration

	// Lists and TasksPerList size the generated documents.
	Lists        int
	TasksPerList int
}

// DefaultConfig returns a short run with a few hundred tasks per document.
func DefaultConfig() *Config {
	return &Config{
		Readers:      8,
		Writers:      2,
		Duration:     2 * time.Second,
		Lists:        5,
		TasksPerList: 50,
	}
}

// GenerateDocument builds a valid document with the given shape. rev is
// embedded in list names so documents from different revisions differ.
func GenerateDocument(lists, tasksPerList int, rev string) *schema.Document {
	doc := &schema.Document{Lists: make([]schema.List, 0, lists)}
	colors := []string{"#8B5CF6", "#6B46C1", "#10B981", "#F59E0B", "#EF4444"}

	for i := 0; i < lists; i++ {
		l := schema.List{
			ID:    schema.StringID(fmt.Sprintf("list-%03d", i)),
			Name:  fmt.Sprintf("List %d (%s)", i, rev),
			Color: colors[i%len(colors)],
			Tasks: make([]schema.Task, 0, tasksPerList),
		}
		for j := 0; j < tasksPerList; j++ {
			order := j
			l.Tasks = append(l.Tasks, schema.Task{
				ID:        schema.StringID(fmt.Sprintf("task-%03d-%04d", i, j)),
				Text:      fmt.Sprintf("Task %d of list %d, revision %s", j, i, rev),
				Completed: j%3 == 0,
				Order:     &order,
			})
		}
		doc.Lists = append(doc.Lists, l)
	}
	return doc
}

// Run drives st with concurrent readers and writers for cfg.Duration.
// It returns an error if any reader observes a document that was never
// written whole, or if any operation fails.
func Run(ctx context.Context, st store.Store, cfg *Config) (*Report, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Readers < 1 || cfg.Writers < 1 {
		return nil, fmt.Errorf("need at least one reader and one writer")
	}

	var known sync.Map // version -> struct{}

	initial, err := st.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read initial document: %w", err)
	}
	if err := remember(&known, initial); err != nil {
		return nil, err
	}

	// Pre-generate each writer's documents so the hot loop only writes
	const revisions = 4
	docs := make([][]*schema.Document, cfg.Writers)
	for w := range docs {
		for r := 0; r < revisions; r++ {
			doc := GenerateDocument(cfg.Lists, cfg.TasksPerList, fmt.Sprintf("w%d-r%d", w, r))
			if err := remember(&known, doc); err != nil {
				return nil, err
			}
			docs[w] = append(docs[w], doc)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var (
		mu         sync.Mutex
		readTimes  []time.Duration
		writeTimes []time.Duration
		seen       = make(map[string]struct{})
	)

	g, gctx := errgroup.WithContext(runCtx)

	for w := 0; w < cfg.Writers; w++ {
		w := w
		g.Go(func() error {
			var local []time.Duration
			defer func() {
				mu.Lock()
				writeTimes = append(writeTimes, local...)
				mu.Unlock()
			}()

			for i := 0; ; i++ {
				if gctx.Err() != nil {
					return nil
				}
				start := time.Now()
				err := st.Write(gctx, docs[w][i%revisions])
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("writer %d write %d failed: %w", w, i, err)
				}
				local = append(local, time.Since(start))
			}
		})
	}

	for r := 0; r < cfg.Readers; r++ {
		r := r
		g.Go(func() error {
			var local []time.Duration
			localSeen := make(map[string]struct{})
			defer func() {
				mu.Lock()
				readTimes = append(readTimes, local...)
				for v := range localSeen {
					seen[v] = struct{}{}
				}
				mu.Unlock()
			}()

			for i := 0; ; i++ {
				if gctx.Err() != nil {
					return nil
				}
				start := time.Now()
				doc, err := st.Read(gctx)
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("reader %d read %d failed: %w", r, i, err)
				}
				local = append(local, time.Since(start))

				version, err := versionOf(doc)
				if err != nil {
					return err
				}
				if _, ok := known.Load(version); !ok {
					return fmt.Errorf("reader %d observed a document no writer produced (version %.12s)", r, version)
				}
				localSeen[version] = struct{}{}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{DistinctSeen: len(seen)}
	if len(readTimes) > 0 {
		report.Reads = computeLatencyStats(readTimes)
	}
	if len(writeTimes) > 0 {
		report.Writes = computeLatencyStats(writeTimes)
	}
	if report.Reads == nil || report.Writes == nil {
		return report, fmt.Errorf("run too short: %d reads, %d writes", len(readTimes), len(writeTimes))
	}
	return report, nil
}

func versionOf(doc *schema.Document) (string, error) {
	data, err := schema.Marshal(doc)
	if err != nil {
		return "", err
	}
	return store.Version(data), nil
}

func remember(known *sync.Map, doc *schema.Document) error {
	version, err := versionOf(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	known.Store(version, struct{}{})
	return nil
}

// computeLatencyStats calculates min/max/mean/percentiles.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:        sorted[0],
		Max:        sorted[len(sorted)-1],
		Mean:       sum / time.Duration(len(durations)),
		P50:        sorted[len(sorted)*50/100],
		P95:        sorted[len(sorted)*95/100],
		P99:        sorted[len(sorted)*99/100],
		Operations: len(durations),
		Durations:  sorted,
	}
}

// PrintStats formats latency statistics under a heading.
func (s *LatencyStats) PrintStats(w io.Writer, heading string) {
	fmt.Fprintf(w, "%s:\n", heading)
	fmt.Fprintf(w, "  Operations:    %d\n", s.Operations)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}
