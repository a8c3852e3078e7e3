package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/vango-dev/atomdom"
	"github.com/vango-dev/atomdom/el"
	"github.com/vango-dev/atomdom/internal/errors"
	"github.com/vango-dev/atomdom/pkg/atom"
	"github.com/vango-dev/atomdom/pkg/metrics"
	vdom "github.com/vango-dev/atomdom/pkg/vdom"
	"github.com/vango-dev/atomdom/pkg/vtest"
)

type profile struct {
	Name       string
	Size       int
	Iterations int
	Swaps      int
	Inserts    int
	Removals   int
	Edits      int
}

var profiles = map[string]profile{
	"fast": {
		Name:       "fast",
		Size:       100,
		Iterations: 200,
		Swaps:      2,
		Inserts:    1,
		Removals:   1,
		Edits:      2,
	},
	"standard": {
		Name:       "standard",
		Size:       1000,
		Iterations: 500,
		Swaps:      5,
		Inserts:    3,
		Removals:   3,
		Edits:      10,
	},
	"stress": {
		Name:       "stress",
		Size:       10000,
		Iterations: 200,
		Swaps:      50,
		Inserts:    20,
		Removals:   20,
		Edits:      100,
	},
}

type benchConfig struct {
	profile
	Seed int64
}

type benchReport struct {
	Version   string           `json:"version"`
	Run       benchRunInfo     `json:"run"`
	Workload  benchConfig      `json:"workload"`
	LatencyMS latencyInfo      `json:"latency_ms"`
	Commits   int              `json:"commits"`
	Renders   int              `json:"renders"`
	Patches   map[string]int64 `json:"patches"`
	Flushes   int64            `json:"flushes"`
	AllocMB   float64          `json:"alloc_mb"`
	Elapsed   float64          `json:"elapsed_ms"`
}

type benchRunInfo struct {
	Timestamp string `json:"timestamp"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

func benchCmd() *cobra.Command {
	var (
		profileName string
		size        int
		iterations  int
		seed        int64
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure keyed list reconciliation",
		Long: `Mount a keyed list in an in-memory target and mutate it through an
atom: every iteration swaps, inserts, removes and edits items, and the
view re-renders in one flush. Commit latencies and patch counts are
reported, and the final target is checked against a fresh build.

Profiles: fast, standard, stress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := profiles[profileName]
			if !ok {
				return errors.New("E500").WithDetail(fmt.Sprintf("unknown profile %q", profileName)).
					WithSuggestion("Use one of: fast, standard, stress")
			}
			if size > 0 {
				p.Size = size
			}
			if iterations > 0 {
				p.Iterations = iterations
			}
			report, err := runBench(cmd.Context(), benchConfig{profile: p, Seed: seed})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			writeSummary(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVar(&profileName, "profile", "fast", "Workload profile")
	cmd.Flags().IntVarP(&size, "size", "n", 0, "List size (overrides the profile)")
	cmd.Flags().IntVarP(&iterations, "iterations", "i", 0, "Iterations (overrides the profile)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}

// latencyRecorder keeps every commit duration and forwards the event.
type latencyRecorder struct {
	next      vdom.Observer
	latencies []time.Duration
	err       error
}

func (r *latencyRecorder) Committed(patches []vdom.Patch, d time.Duration, err error) {
	r.latencies = append(r.latencies, d)
	if err != nil && r.err == nil {
		r.err = err
	}
	r.next.Committed(patches, d, err)
}

type item struct {
	key   string
	label string
}

func runBench(ctx context.Context, cfg benchConfig) (benchReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Size <= 0 || cfg.Iterations <= 0 {
		return benchReport{}, errors.New("E500").WithDetail("size and iterations must be positive")
	}

	registry := prometheus.NewRegistry()
	collector := metrics.New(metrics.WithRegistry(registry))
	recorder := &latencyRecorder{next: collector}

	var failures []error
	queue := &atom.TaskQueue{}
	app := atomdom.New(atomdom.Config{
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Scheduler:       queue,
		OnError:         func(err error) { failures = append(failures, err) },
		RuntimeObserver: collector,
		CommitObserver:  recorder,
	})

	rng := rand.New(rand.NewSource(cfg.Seed))
	nextKey := 0
	initial := make([]item, cfg.Size)
	for i := range initial {
		initial[i] = item{key: strconv.Itoa(nextKey), label: "item " + strconv.Itoa(nextKey)}
		nextKey++
	}

	items := atom.NewAtom(app.Runtime(), initial)
	backend := vtest.NewBackend()
	view, err := app.Mount(backend, backend.Container(), func() *vdom.VNode {
		return renderList(items.Get())
	})
	if err != nil {
		return benchReport{}, errors.New("E501").Wrap(err)
	}
	defer view.Dispose()

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	start := time.Now()

	for i := 0; i < cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return benchReport{}, err
		}
		items.Update(func(cur []item) []item {
			return mutate(rng, cur, cfg.profile, &nextKey)
		})
		queue.Drain()
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&after)

	if len(failures) > 0 {
		return benchReport{}, errors.New("E501").Wrap(failures[0])
	}
	if recorder.err != nil {
		return benchReport{}, errors.New("E501").Wrap(recorder.err)
	}
	want := vtest.Build(renderList(items.Peek()))
	if mismatch := vtest.Mismatch(backend.Tree(), want); mismatch != "" {
		return benchReport{}, errors.New("E501").WithDetail("target diverged: " + mismatch)
	}

	patches, flushes, err := gatherCounts(registry)
	if err != nil {
		return benchReport{}, errors.New("E501").Wrap(err)
	}

	// The mount commit is not part of the workload.
	latencies := append([]time.Duration(nil), recorder.latencies[1:]...)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	report := benchReport{
		Version: "1",
		Run: benchRunInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
		},
		Workload: cfg,
		Commits:  len(latencies),
		Renders:  view.Renders(),
		Patches:  patches,
		Flushes:  flushes,
		AllocMB:  float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
		Elapsed:  ms(elapsed),
	}
	if len(latencies) > 0 {
		report.LatencyMS = latencyInfo{
			Min: ms(latencies[0]),
			P50: ms(percentile(latencies, 0.50)),
			P95: ms(percentile(latencies, 0.95)),
			P99: ms(percentile(latencies, 0.99)),
			Max: ms(latencies[len(latencies)-1]),
		}
	}
	return report, nil
}

func renderList(items []item) *vdom.VNode {
	return el.Ul(el.Class("bench"), el.Range(items, func(it item, _ int) *vdom.VNode {
		return el.Li(el.Key(it.key), it.label)
	}))
}

// mutate returns a new list with the profile's edits applied.
func mutate(rng *rand.Rand, cur []item, p profile, nextKey *int) []item {
	next := append([]item(nil), cur...)
	for i := 0; i < p.Removals && len(next) > 1; i++ {
		j := rng.Intn(len(next))
		next = append(next[:j], next[j+1:]...)
	}
	for i := 0; i < p.Inserts; i++ {
		j := rng.Intn(len(next) + 1)
		it := item{key: strconv.Itoa(*nextKey), label: "item " + strconv.Itoa(*nextKey)}
		*nextKey++
		next = append(next, item{})
		copy(next[j+1:], next[j:])
		next[j] = it
	}
	for i := 0; i < p.Swaps && len(next) > 1; i++ {
		a, b := rng.Intn(len(next)), rng.Intn(len(next))
		next[a], next[b] = next[b], next[a]
	}
	for i := 0; i < p.Edits && len(next) > 0; i++ {
		j := rng.Intn(len(next))
		next[j].label = next[j].key + " edited " + strconv.Itoa(rng.Intn(1000))
	}
	return next
}

// gatherCounts reads the patch and flush counters from registry.
func gatherCounts(registry *prometheus.Registry) (map[string]int64, int64, error) {
	families, err := registry.Gather()
	if err != nil {
		return nil, 0, err
	}
	patches := make(map[string]int64)
	var flushes int64
	for _, mf := range families {
		switch mf.GetName() {
		case "atomdom_patches_total":
			for _, m := range mf.GetMetric() {
				patches[labelValue(m, "op")] += int64(m.GetCounter().GetValue())
			}
		case "atomdom_flushes_total":
			for _, m := range mf.GetMetric() {
				flushes += int64(m.GetCounter().GetValue())
			}
		}
	}
	return patches, flushes, nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	idx = max(idx, 0)
	idx = min(idx, len(sorted)-1)
	return sorted[idx]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func writeSummary(w io.Writer, report benchReport) {
	fmt.Fprintln(w, "=== atomdom reconciliation benchmark ===")
	fmt.Fprintf(w, "Profile: %s\n", report.Workload.Name)
	fmt.Fprintf(w, "List size: %d\n", report.Workload.Size)
	fmt.Fprintf(w, "Iterations: %d\n", report.Workload.Iterations)
	fmt.Fprintf(w, "Per iteration: %d swaps, %d inserts, %d removals, %d edits\n",
		report.Workload.Swaps, report.Workload.Inserts, report.Workload.Removals, report.Workload.Edits)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Commits: %d (renders %d, flushes %d)\n", report.Commits, report.Renders, report.Flushes)
	fmt.Fprintf(w, "Elapsed: %.2f ms\n", report.Elapsed)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Commit latency:")
	fmt.Fprintf(w, "  min: %.3f ms\n", report.LatencyMS.Min)
	fmt.Fprintf(w, "  p50: %.3f ms\n", report.LatencyMS.P50)
	fmt.Fprintf(w, "  p95: %.3f ms\n", report.LatencyMS.P95)
	fmt.Fprintf(w, "  p99: %.3f ms\n", report.LatencyMS.P99)
	fmt.Fprintf(w, "  max: %.3f ms\n", report.LatencyMS.Max)
	fmt.Fprintln(w)

	ops := make([]string, 0, len(report.Patches))
	for op := range report.Patches {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	fmt.Fprintln(w, "Patches:")
	for _, op := range ops {
		fmt.Fprintf(w, "  %-16s %d\n", op, report.Patches[op])
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Allocated: %.2f MB\n", report.AllocMB)
}
