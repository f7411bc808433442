package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/wastelens/internal/pipeline"
)

// Config holds all configuration for batch classification.
type Config struct {
	Pipeline pipeline.Config

	// Worker pool
	Workers         int
	ContinueOnError bool

	// File discovery
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Output
	OverlayDir string
	HeatmapDir string
	Format     string
	OutputFile string

	// Progress
	ShowProgress bool
	Quiet        bool
	Progress     ProgressFunc
}

// DefaultConfig returns a batch configuration with four workers that keeps
// going when single images fail.
func DefaultConfig() Config {
	return Config{
		Pipeline:        pipeline.DefaultConfig(),
		Workers:         4,
		ContinueOnError: true,
		Format:          pipeline.FormatText,
	}
}

// Failure records an image that could not be classified.
type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Summary counts outcomes per decision.
type Summary struct {
	Total      int `json:"total"`
	Organic    int `json:"organic"`
	Recyclable int `json:"recyclable"`
	Uncertain  int `json:"uncertain"`
	Failed     int `json:"failed"`
}

// Result holds the result of a batch run. Results is aligned with
// ImagePaths; failed images have a nil entry.
type Result struct {
	Results     []*pipeline.Result
	ImagePaths  []string
	Failures    []Failure
	Duration    time.Duration
	WorkerCount int
}

// Succeeded returns the non-nil results in input order.
func (r *Result) Succeeded() []*pipeline.Result {
	out := make([]*pipeline.Result, 0, len(r.Results))
	for _, res := range r.Results {
		if res != nil {
			out = append(out, res)
		}
	}
	return out
}

// Summary tallies decisions and failures.
func (r *Result) Summary() Summary {
	s := Summary{Total: len(r.ImagePaths), Failed: len(r.Failures)}
	for _, res := range r.Results {
		if res == nil {
			continue
		}
		switch {
		case res.Decision.IsUncertain():
			s.Uncertain++
		case res.DisposalKey == "organic":
			s.Organic++
		default:
			s.Recyclable++
		}
	}
	return s
}

// FormatResults formats the batch results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the formatted results to outputFile, or to stdout when
// outputFile is empty.
func (r *Result) SaveResults(stdout io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(stdout, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, _ = fmt.Fprintln(stdout, output)
	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	s := r.Summary()
	processed := s.Total - s.Failed
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", s.Total)
	_, _ = fmt.Fprintf(w, "  Organic: %d\n", s.Organic)
	_, _ = fmt.Fprintf(w, "  Recyclable: %d\n", s.Recyclable)
	_, _ = fmt.Fprintf(w, "  Uncertain: %d\n", s.Uncertain)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if processed > 0 {
		avg := r.Duration / time.Duration(processed)
		_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", avg.Round(time.Millisecond))
	}
	if secs := r.Duration.Seconds(); secs > 0 {
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", float64(processed)/secs)
	}
}
