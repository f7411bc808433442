package benchmark

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/wastelens/internal/model/modeltest"
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/MeKo-Tech/wastelens/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuiteRun(t *testing.T) {
	suite := NewSuite()
	suite.Add("success", func() error {
		time.Sleep(time.Millisecond)
		return nil
	})
	suite.Add("failure", func() error {
		return errors.New("test error")
	})

	result := suite.Run("success", 5)
	require.NoError(t, result.Error)
	assert.Equal(t, 5, result.Iterations)
	assert.GreaterOrEqual(t, result.Average(), time.Millisecond)

	result = suite.Run("failure", 3)
	require.Error(t, result.Error)
	assert.Equal(t, 0, result.Iterations)
	assert.Contains(t, result.String(), "ERROR - test error")

	result = suite.Run("missing", 1)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "not found")
}

func TestSuiteRunAll(t *testing.T) {
	suite := NewSuite()
	calls := map[string]int{}
	for _, name := range []string{"a", "b"} {
		suite.Add(name, func() error {
			calls[name]++
			return nil
		})
	}

	results := suite.RunAll(3)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Name)
	assert.Equal(t, "b", results[1].Name)
	assert.Equal(t, map[string]int{"a": 3, "b": 3}, calls)
	assert.Equal(t, results, suite.Results())

	var buf bytes.Buffer
	suite.PrintResults(&buf)
	assert.Contains(t, buf.String(), "Benchmark Results:")
	assert.Contains(t, buf.String(), "a: 3 iterations")
}

func TestResultAverageZeroIterations(t *testing.T) {
	assert.Zero(t, Result{Duration: time.Second}.Average())
}

func TestExplainBenchmark(t *testing.T) {
	pl, err := pipeline.NewBuilder().BuildWithClassifier(modeltest.Color(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pl.Close() })

	dir := t.TempDir()
	testutil.WriteSampleSet(t, dir)

	b := NewExplainBenchmark(pl, filepath.Join(dir, "bottle_blue.png"))
	b.AddImage(filepath.Join(dir, "missing.png"))
	b.SetWarmup(0)

	results, err := b.Run(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	ok := results[0]
	require.NoError(t, ok.Classify.Error)
	require.NoError(t, ok.Explain.Error)
	assert.Equal(t, "bottle_blue.png", ok.ImagePath)
	assert.Equal(t, "150x150", ok.Size)
	assert.Equal(t, "Confident(Recyclable)", ok.Decision)
	assert.Equal(t, 2, ok.Explain.Iterations)
	assert.Positive(t, ok.Overhead())

	missing := results[1]
	require.Error(t, missing.Classify.Error)
	assert.Equal(t, "unknown", missing.Size)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results[:1]))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "bottle_blue.png,150x150,Confident(Recyclable),"))
}

func TestExplainBenchmarkInvalid(t *testing.T) {
	_, err := NewExplainBenchmark(nil).Run(context.Background(), 1)
	require.Error(t, err)

	pl, err := pipeline.NewBuilder().BuildWithClassifier(modeltest.Color(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pl.Close() })

	_, err = NewExplainBenchmark(pl).Run(context.Background(), 0)
	require.ErrorContains(t, err, "invalid iteration count")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewExplainBenchmark(pl, "x.png").Run(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}
