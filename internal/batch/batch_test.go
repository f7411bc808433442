package batch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/wastelens/internal/confidence"
	"github.com/MeKo-Tech/wastelens/internal/model/modeltest"
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/MeKo-Tech/wastelens/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessWithPipeline_Decisions(t *testing.T) {
	dir := sampleDir(t)
	pl := newColorPipeline(t)

	res, err := ProcessWithPipeline(context.Background(), pl, []string{dir}, testConfig())
	require.NoError(t, err)
	require.Len(t, res.ImagePaths, 3)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 2, res.WorkerCount)

	want := map[string]confidence.Decision{
		"bottle_blue.png":   confidence.Confident(confidence.Recyclable),
		"concrete_gray.png": confidence.Uncertain(),
		"leaves_green.jpg":  confidence.Confident(confidence.Organic),
	}
	for i, path := range res.ImagePaths {
		require.NotNil(t, res.Results[i], path)
		assert.Equal(t, path, res.Results[i].Source)
		assert.Equal(t, want[filepath.Base(path)], res.Results[i].Decision, path)
		require.NoError(t, pipeline.ValidateResult(res.Results[i]))
	}

	assert.Equal(t, Summary{Total: 3, Organic: 1, Recyclable: 1, Uncertain: 1}, res.Summary())
}

func TestProcessWithPipeline_NilPipeline(t *testing.T) {
	_, err := ProcessWithPipeline(context.Background(), nil, []string{t.TempDir()}, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline is nil")
}

func TestProcessWithPipeline_NoImageFiles(t *testing.T) {
	pl := newColorPipeline(t)

	res, err := ProcessWithPipeline(context.Background(), pl, []string{t.TempDir()}, testConfig())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "no image files found")
}

func TestProcessWithPipeline_InvalidPath(t *testing.T) {
	pl := newColorPipeline(t)

	_, err := ProcessWithPipeline(context.Background(), pl, []string{"/nonexistent/file.png"}, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestProcessWithPipeline_ContinueOnError(t *testing.T) {
	dir := sampleDir(t)
	broken := writeBroken(t, dir, "broken.png")
	pl := newColorPipeline(t)

	res, err := ProcessWithPipeline(context.Background(), pl, []string{dir}, testConfig())
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, broken, res.Failures[0].File)
	assert.Contains(t, res.Failures[0].Error, "decode error")
	assert.Len(t, res.Succeeded(), 3)
	assert.Equal(t, 1, res.Summary().Failed)
}

func TestProcessWithPipeline_StopOnError(t *testing.T) {
	dir := sampleDir(t)
	writeBroken(t, dir, "broken.png")
	pl := newColorPipeline(t)

	cfg := testConfig()
	cfg.ContinueOnError = false
	res, err := ProcessWithPipeline(context.Background(), pl, []string{dir}, cfg)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "broken.png")
}

func TestProcessWithPipeline_AllFailed(t *testing.T) {
	dir := t.TempDir()
	writeBroken(t, dir, "a.png")
	writeBroken(t, dir, "b.jpg")
	pl := newColorPipeline(t)

	res, err := ProcessWithPipeline(context.Background(), pl, []string{dir}, testConfig())
	require.ErrorIs(t, err, ErrAllFailed)
	require.NotNil(t, res)
	assert.Len(t, res.Failures, 2)
}

func TestProcessWithPipeline_Cancelled(t *testing.T) {
	dir := sampleDir(t)
	pl := newColorPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ProcessWithPipeline(ctx, pl, []string{dir}, testConfig())
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcessWithPipeline_Progress(t *testing.T) {
	dir := sampleDir(t)
	pl := newColorPipeline(t)

	var calls []int
	cfg := testConfig()
	cfg.Progress = func(done, total int, _ string, err error) {
		assert.Equal(t, 3, total)
		assert.NoError(t, err)
		calls = append(calls, done)
	}
	_, err := ProcessWithPipeline(context.Background(), pl, []string{dir}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestProcessBatch_FromModelFile(t *testing.T) {
	dir := sampleDir(t)
	cfg := testConfig()
	cfg.Pipeline = pipeline.NewBuilder().WithModelPath(modeltest.WriteSpec(t, modeltest.ColorSpec(20))).Config()
	cfg.OverlayDir = filepath.Join(t.TempDir(), "overlays")

	res, err := ProcessBatch(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary().Total-res.Summary().Failed)
	assert.True(t, testutil.FileExists(filepath.Join(cfg.OverlayDir, "leaves_green_gradcam.png")))
}

func TestProcessBatch_PipelineBuildFailure(t *testing.T) {
	dir := sampleDir(t)
	cfg := testConfig()
	cfg.Pipeline.Model.ModelPath = filepath.Join(t.TempDir(), "missing.json")

	res, err := ProcessBatch(context.Background(), []string{dir}, cfg)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "failed to build pipeline")
}
