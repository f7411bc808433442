package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/wastelens/internal/model/modeltest"
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/MeKo-Tech/wastelens/internal/testutil"
	"github.com/stretchr/testify/require"
)

func newColorPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	pl, err := pipeline.NewBuilder().BuildWithClassifier(modeltest.Color(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pl.Close() })
	return pl
}

// sampleDir writes the standard samples and returns the directory.
func sampleDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteSampleSet(t, dir)
	return dir
}

func writeBroken(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))
	return path
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	return &cfg
}
