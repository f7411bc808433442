// Package benchmark measures classification and Grad-CAM explanation cost.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/MeKo-Tech/wastelens/internal/preprocess"
)

// Timer provides simple timing utilities for benchmarking.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer with the given name.
func NewTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64
	TotalAllocBytes uint64
	SysBytes        uint64
	NumGC           uint32
	GCCPUFraction   float64
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

// Result holds the outcome of one benchmark run.
type Result struct {
	Name         string
	Duration     time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Iterations   int
	Error        error
}

// Average returns the mean duration per iteration.
func (r Result) Average() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// AllocatedKB is the growth of total allocations over the run.
func (r Result) AllocatedKB() int64 {
	return int64((r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes) / 1024) //nolint:gosec // G115: display only
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %d KB",
		r.Name, r.Iterations, r.Average(), r.Duration, r.AllocatedKB())
}

type entry struct {
	name string
	fn   func() error
}

// Suite runs named benchmark functions.
type Suite struct {
	mu      sync.Mutex
	entries []entry
	results []Result
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add registers fn under name.
func (s *Suite) Add(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{name: name, fn: fn})
}

// Run runs a single benchmark.
func (s *Suite) Run(name string, iterations int) Result {
	s.mu.Lock()
	var found *entry
	for i := range s.entries {
		if s.entries[i].name == name {
			found = &s.entries[i]
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
	}
	return measure(*found, iterations)
}

// RunAll runs every registered benchmark in registration order.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make([]Result, 0, len(s.entries))
	for _, e := range s.entries {
		s.results = append(s.results, measure(e, iterations))
	}
	return s.results
}

// Results returns the last RunAll results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// PrintResults writes the last RunAll results to w.
func (s *Suite) PrintResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Benchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
}

func measure(e entry, iterations int) Result {
	runtime.GC()
	before := GetMemoryStats()
	timer := NewTimer(e.name)

	done := 0
	var err error
	for range iterations {
		if err = e.fn(); err != nil {
			break
		}
		done++
	}

	d := timer.Stop()
	return Result{
		Name:         e.name,
		Duration:     d,
		MemoryBefore: before,
		MemoryAfter:  GetMemoryStats(),
		Iterations:   done,
		Error:        err,
	}
}

// Comparison is the score-only vs explained cost for one image.
type Comparison struct {
	ImagePath string
	Size      string
	Decision  string
	Classify  Result
	Explain   Result
}

// Overhead is the explained duration relative to score-only.
func (c Comparison) Overhead() float64 {
	a, b := c.Classify.Average(), c.Explain.Average()
	if a <= 0 {
		return 0
	}
	return float64(b) / float64(a)
}

func (c Comparison) String() string {
	if c.Classify.Error != nil || c.Explain.Error != nil {
		return fmt.Sprintf("%s (%s): classify: %v, explain: %v", c.ImagePath, c.Size, c.Classify.Error, c.Explain.Error)
	}
	return fmt.Sprintf("%s (%s) -> %s: classify: %v, explain: %v (%.2fx), alloc: %d/%d KB",
		c.ImagePath, c.Size, c.Decision,
		c.Classify.Average(), c.Explain.Average(), c.Overhead(),
		c.Classify.AllocatedKB(), c.Explain.AllocatedKB())
}

// ExplainBenchmark compares plain classification against classification
// with Grad-CAM for a set of images on one pipeline.
type ExplainBenchmark struct {
	pl     *pipeline.Pipeline
	images []string
	warmup int
}

// NewExplainBenchmark benchmarks pl. pl must have explanation enabled for
// the explain leg to compute a saliency map.
func NewExplainBenchmark(pl *pipeline.Pipeline, images ...string) *ExplainBenchmark {
	return &ExplainBenchmark{pl: pl, images: images, warmup: 1}
}

// AddImage appends an image path.
func (b *ExplainBenchmark) AddImage(path string) {
	b.images = append(b.images, path)
}

// SetWarmup sets the untimed iterations run before each measurement.
func (b *ExplainBenchmark) SetWarmup(n int) {
	b.warmup = max(n, 0)
}

// Run measures every image. Images that fail to load are reported in the
// comparison's Error fields rather than aborting the run.
func (b *ExplainBenchmark) Run(ctx context.Context, iterations int) ([]Comparison, error) {
	if b.pl == nil {
		return nil, errors.New("pipeline is nil")
	}
	if iterations < 1 {
		return nil, fmt.Errorf("invalid iteration count: %d", iterations)
	}

	out := make([]Comparison, 0, len(b.images))
	for _, path := range b.images {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, b.compare(ctx, path, iterations))
	}
	return out, nil
}

func (b *ExplainBenchmark) compare(ctx context.Context, path string, iterations int) Comparison {
	c := Comparison{ImagePath: filepath.Base(path), Size: "unknown"}
	img, err := preprocess.LoadImage(path)
	if err != nil {
		c.Classify.Error, c.Explain.Error = err, err
		return c
	}
	bounds := img.Bounds()
	c.Size = fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy())

	classify := func() error {
		_, err := b.pl.Classify(ctx, img)
		return err
	}
	explain := func() error {
		res, err := b.pl.ClassifyAndExplain(ctx, img)
		if err == nil {
			c.Decision = res.Decision.String()
		}
		return err
	}

	b.runWarmup(ctx, img)
	c.Classify = measure(entry{name: "classify", fn: classify}, iterations)
	c.Explain = measure(entry{name: "explain", fn: explain}, iterations)
	return c
}

func (b *ExplainBenchmark) runWarmup(ctx context.Context, img image.Image) {
	for range b.warmup {
		_, _ = b.pl.ClassifyAndExplain(ctx, img)
	}
}

// WriteCSV writes comparisons as CSV rows with durations in milliseconds.
func WriteCSV(w io.Writer, results []Comparison) error {
	if _, err := fmt.Fprintln(w, "image,size,decision,classify_ms,explain_ms,overhead,classify_alloc_kb,explain_alloc_kb"); err != nil {
		return err
	}
	for _, c := range results {
		_, err := fmt.Fprintf(w, "%s,%s,%s,%.3f,%.3f,%.2f,%d,%d\n",
			c.ImagePath, c.Size, c.Decision,
			float64(c.Classify.Average().Microseconds())/1000,
			float64(c.Explain.Average().Microseconds())/1000,
			c.Overhead(), c.Classify.AllocatedKB(), c.Explain.AllocatedKB())
		if err != nil {
			return err
		}
	}
	return nil
}
