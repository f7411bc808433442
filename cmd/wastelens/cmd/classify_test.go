package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/wastelens/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePaths(t *testing.T) (bottle, leaves, concrete string) {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteSampleSet(t, dir)
	return filepath.Join(dir, "bottle_blue.png"),
		filepath.Join(dir, "leaves_green.jpg"),
		filepath.Join(dir, "concrete_gray.png")
}

func TestClassifyCommand_Text(t *testing.T) {
	bottle, leaves, concrete := samplePaths(t)

	res := execute(t, "classify", "--model", colorModel(t), bottle, leaves, concrete)
	require.NoError(t, res.err)

	blocks := strings.Split(res.stdout, "\n\n")
	require.Len(t, blocks, 3)
	assert.Contains(t, blocks[0], bottle)
	assert.Contains(t, blocks[0], "Decision:   Recyclable")
	assert.Contains(t, blocks[0], "Recycling bin (clean and dry)")
	assert.Contains(t, blocks[1], "Decision:   Organic")
	assert.Contains(t, blocks[1], "Food scraps")
	assert.Contains(t, blocks[2], "Organic:     50.00%")
	assert.Contains(t, blocks[2], "Uncertain (feedback requested)")
	assert.Contains(t, blocks[2], "What type of waste is this?")
	assert.Contains(t, blocks[0], "Saliency:   conv2d_1")
}

func TestClassifyCommand_JSON(t *testing.T) {
	_, leaves, _ := samplePaths(t)

	res := execute(t, "classify", "--model", colorModel(t), "--format", "json", "--lang", "de", leaves)
	require.NoError(t, res.err)

	var out struct {
		Result struct {
			Decision struct {
				Kind  string `json:"kind"`
				Label string `json:"label"`
			} `json:"decision"`
			FeedbackRequested bool `json:"feedback_requested"`
			Explanation       *struct {
				Layer string `json:"layer"`
			} `json:"explanation"`
		} `json:"result"`
		Guidance struct {
			Key      string `json:"key"`
			Language string `json:"language"`
			Title    string `json:"title"`
		} `json:"guidance"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, "confident", out.Result.Decision.Kind)
	assert.Equal(t, "Organic", out.Result.Decision.Label)
	assert.False(t, out.Result.FeedbackRequested)
	require.NotNil(t, out.Result.Explanation)
	assert.Equal(t, "conv2d_1", out.Result.Explanation.Layer)
	assert.Equal(t, "organic", out.Guidance.Key)
	assert.Equal(t, "de", out.Guidance.Language)
	assert.Equal(t, "Bioabfall", out.Guidance.Title)
}

func TestClassifyCommand_CSVToFile(t *testing.T) {
	bottle, leaves, _ := samplePaths(t)
	outFile := filepath.Join(t.TempDir(), "out.csv")

	res := execute(t, "classify", "--model", colorModel(t), "-f", "csv", "-o", outFile, bottle, leaves)
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)

	data, err := os.ReadFile(outFile) //nolint:gosec // test path
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "source,score,organic,recyclable,decision,label"))
	assert.Contains(t, lines[1], ",confident,Recyclable,")
	assert.Contains(t, lines[2], ",confident,Organic,")
}

func TestClassifyCommand_ThresholdFlags(t *testing.T) {
	_, _, concrete := samplePaths(t)

	res := execute(t, "classify", "--model", colorModel(t), "--low", "0.30", "--high", "0.45", concrete)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Decision:   Recyclable")
}

func TestClassifyCommand_InvalidThresholds(t *testing.T) {
	_, leaves, _ := samplePaths(t)

	res := execute(t, "classify", "--model", colorModel(t), "--low", "0.7", "--high", "0.6", leaves)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid configuration")
}

func TestClassifyCommand_ExplanationFiles(t *testing.T) {
	bottle, _, _ := samplePaths(t)
	out := t.TempDir()

	res := execute(t, "classify", "--model", colorModel(t),
		"--overlay-dir", filepath.Join(out, "ov"), "--heatmap-dir", filepath.Join(out, "hm"), bottle)
	require.NoError(t, res.err)
	assert.True(t, testutil.FileExists(filepath.Join(out, "ov", "bottle_blue_gradcam.png")))
	assert.True(t, testutil.FileExists(filepath.Join(out, "hm", "bottle_blue_heatmap.png")))
}

func TestClassifyCommand_NoExplain(t *testing.T) {
	bottle, _, _ := samplePaths(t)
	out := filepath.Join(t.TempDir(), "ov")

	res := execute(t, "classify", "--model", colorModel(t), "--no-explain", "--overlay-dir", out, bottle)
	require.NoError(t, res.err)
	assert.NotContains(t, res.stdout, "Saliency:")
	assert.False(t, testutil.DirExists(out))
}

func TestClassifyCommand_PartialFailure(t *testing.T) {
	bottle, _, _ := samplePaths(t)
	broken := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o600))

	res := execute(t, "classify", "--model", colorModel(t), bottle, broken)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "1 of 2 image(s) could not be classified")
	assert.Contains(t, res.stderr, broken+": classification failed: decode error")
	assert.Contains(t, res.stdout, "Decision:   Recyclable")
}

func TestClassifyCommand_MissingModel(t *testing.T) {
	bottle, _, _ := samplePaths(t)

	res := execute(t, "classify", "--model", filepath.Join(t.TempDir(), "missing.json"), bottle)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "failed to load classifier")
}

func TestClassifyCommand_RequiresArgs(t *testing.T) {
	res := execute(t, "classify")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "requires at least 1 arg")
}

func TestClassifyCommand_InvalidFormat(t *testing.T) {
	bottle, _, _ := samplePaths(t)

	res := execute(t, "classify", "--model", colorModel(t), "--format", "xml", bottle)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unsupported output format")
}
