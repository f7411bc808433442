package cmd

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/wastelens/internal/config"
	"github.com/MeKo-Tech/wastelens/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.Same(t, rootCmd, GetRootCommand())
	assert.Equal(t, "wastelens", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	res := execute(t, "--help")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Organic or Recyclable")
	assert.Contains(t, res.stdout, "Available Commands:")
	assert.Contains(t, res.stdout, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	res := execute(t, "--version")
	require.NoError(t, res.err)
	assert.Equal(t, version.String()+"\n", res.stdout)
}

func TestRootCommandSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"classify", "batch", "serve", "info", "check", "config"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	res := execute(t, "--no-such-flag")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown flag")
}

func TestRootCommandMissingConfigFile(t *testing.T) {
	res := execute(t, "config", "show", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "config file does not exist")
}

func TestRootCommandInvalidEnvironment(t *testing.T) {
	t.Setenv("WASTELENS_CLASSIFIER_DEADBAND_LOW", "0.9")
	res := execute(t, "config", "show")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "error loading configuration")
}

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name    string
		level   string
		verbose bool
		want    slog.Level
	}{
		{"default", "info", false, slog.LevelInfo},
		{"warn", "warn", false, slog.LevelWarn},
		{"error", "error", false, slog.LevelError},
		{"debug", "debug", false, slog.LevelDebug},
		{"verbose wins", "error", true, slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.LogLevel = tt.level
			cfg.Verbose = tt.verbose
			setupLogging(&cfg)
			h := slog.Default().Handler()
			assert.True(t, h.Enabled(t.Context(), tt.want))
			assert.False(t, h.Enabled(t.Context(), tt.want-1))
		})
	}
}

func TestGetConfigAppliesModelFlag(t *testing.T) {
	path := colorModel(t)
	res := execute(t, "config", "show", "--model", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "model_path: "+path)
}
