package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/wastelens/internal/models"
	"github.com/MeKo-Tech/wastelens/internal/onnx"
	"github.com/spf13/cobra"
)

// checkCmd probes the runtime environment.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check ONNX Runtime and model availability",
	Long: `Check that the ONNX Runtime shared library can be found and initialized
and that the configured model file exists.

Native .json models do not need ONNX Runtime; for them a missing library is
reported but not treated as an error.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		out := cmd.OutOrStdout()
		modelPath := models.ResolveModelPath(cfg.ModelPath)

		_, _ = fmt.Fprintln(out, "Checking model...")
		if err := models.ValidateModelExists(modelPath); err != nil {
			_, _ = fmt.Fprintf(out, "  FAIL %v\n", err)
			return fmt.Errorf("model check failed: %w", err)
		}
		_, _ = fmt.Fprintf(out, "  OK   %s\n", modelPath)

		needsRuntime := onnxModel(modelPath)
		_, _ = fmt.Fprintln(out, "Checking ONNX Runtime...")
		libPath, err := onnx.FindLibrary(cfg.GPU.Enabled)
		if err != nil {
			_, _ = fmt.Fprintf(out, "  FAIL %v\n", err)
			if needsRuntime {
				return fmt.Errorf("runtime check failed: %w", err)
			}
			_, _ = fmt.Fprintln(out, "  (not required for native models)")
			return nil
		}
		_, _ = fmt.Fprintf(out, "  OK   library %s\n", libPath)

		if !needsRuntime {
			return nil
		}
		info, err := onnx.InitializeRuntime(cfg.GPU.Enabled)
		if err != nil {
			_, _ = fmt.Fprintf(out, "  FAIL %v\n", err)
			return fmt.Errorf("runtime check failed: %w", err)
		}
		_, _ = fmt.Fprintf(out, "  OK   version %s\n", info.Version)
		return nil
	},
}

func onnxModel(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".onnx")
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
