package batch

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/wastelens/internal/confidence"
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticResult() *Result {
	organic := &pipeline.Result{Source: "a.png", Width: 10, Height: 10, Score: 0.1,
		Decision: confidence.Confident(confidence.Organic), DisposalKey: "organic"}
	uncertain := &pipeline.Result{Source: "b.png", Width: 10, Height: 10, Score: 0.5,
		Decision: confidence.Uncertain(), FeedbackRequested: true}
	return &Result{
		Results:     []*pipeline.Result{organic, uncertain, nil},
		ImagePaths:  []string{"a.png", "b.png", "c.png"},
		Failures:    []Failure{{File: "c.png", Error: "decode error: bad"}},
		Duration:    300 * time.Millisecond,
		WorkerCount: 2,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.ContinueOnError)
	assert.Equal(t, pipeline.FormatText, cfg.Format)
	assert.True(t, cfg.Pipeline.Explain)
}

func TestResult_Summary(t *testing.T) {
	assert.Equal(t, Summary{Total: 3, Organic: 1, Uncertain: 1, Failed: 1}, syntheticResult().Summary())
	assert.Len(t, syntheticResult().Succeeded(), 2)
}

func TestResult_SaveResults_ToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.csv")
	var stdout bytes.Buffer

	require.NoError(t, syntheticResult().SaveResults(&stdout, "csv", out, false))
	data, err := os.ReadFile(out) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Contains(t, string(data), "a.png")
	assert.Contains(t, stdout.String(), "Results written to "+out)
}

func TestResult_SaveResults_Quiet(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.json")
	var stdout bytes.Buffer

	require.NoError(t, syntheticResult().SaveResults(&stdout, "json", out, true))
	assert.Empty(t, stdout.String())
}

func TestResult_SaveResults_Stdout(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, syntheticResult().SaveResults(&stdout, "text", "", false))
	assert.Contains(t, stdout.String(), "c.png\n  Error: decode error: bad")
}

func TestResult_SaveResults_Errors(t *testing.T) {
	var stdout bytes.Buffer
	err := syntheticResult().SaveResults(&stdout, "yaml", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to format results")

	err = syntheticResult().SaveResults(&stdout, "text", filepath.Join(t.TempDir(), "missing", "out.txt"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write output file")
}

func TestResult_PrintStats(t *testing.T) {
	var buf bytes.Buffer
	syntheticResult().PrintStats(&buf, true)
	assert.Empty(t, buf.String())

	syntheticResult().PrintStats(&buf, false)
	out := buf.String()
	assert.Contains(t, out, "Total images: 3")
	assert.Contains(t, out, "Organic: 1")
	assert.Contains(t, out, "Failed: 1")
	assert.Contains(t, out, "Workers: 2")
	assert.Contains(t, out, "Avg per image: 150ms")
	assert.Contains(t, out, "Throughput: 6.7 images/sec")
}

func TestConsoleProgress(t *testing.T) {
	var buf bytes.Buffer
	p := ConsoleProgress(&buf, "Processing: ")
	p(1, 4, "a.png", nil)
	p(2, 4, "b.png", assert.AnError)
	assert.Equal(t, "Processing: [1/4  25.0%] a.png ok\nProcessing: [2/4  50.0%] b.png failed\n", buf.String())
}
