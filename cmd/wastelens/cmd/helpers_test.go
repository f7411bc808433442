package cmd

import (
	"bytes"
	"testing"

	"github.com/MeKo-Tech/wastelens/internal/model/modeltest"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type cmdResult struct {
	stdout string
	stderr string
	err    error
}

// execute runs the root command with fresh flag state.
func execute(t *testing.T, args ...string) cmdResult {
	t.Helper()
	t.Chdir(t.TempDir())
	resetFlags(rootCmd)
	globalConfig = nil

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return cmdResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// colorModel writes the color test model and returns its path.
func colorModel(t *testing.T) string {
	t.Helper()
	return modeltest.WriteSpec(t, modeltest.ColorSpec(20))
}
