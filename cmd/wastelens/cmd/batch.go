package cmd

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/wastelens/internal/batch"
	"github.com/MeKo-Tech/wastelens/internal/config"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command for parallel image classification.
var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Classify many images in parallel",
	Long: `Classify all supported images in the given files and directories using a
pool of workers, then print the results and a per-decision summary.

Examples:
  wastelens batch photos/
  wastelens batch photos/ --recursive --workers 8
  wastelens batch a.jpg b.png --format json --output results.json
  wastelens batch photos/ --overlay-dir overlays/ --stats`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

// configToBatchConfig maps the centralized configuration and CLI flags to
// batch.Config.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) (*batch.Config, error) {
	pCfg, err := pipelineConfig(cmd, cfg)
	if err != nil {
		return nil, err
	}

	bc := batch.DefaultConfig()
	bc.Pipeline = pCfg

	bc.Workers = cfg.Batch.Workers
	if cmd.Flags().Changed("workers") {
		bc.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if bc.Workers < 1 {
		return nil, fmt.Errorf("invalid worker count: %d (must be at least 1)", bc.Workers)
	}

	bc.ContinueOnError = cfg.Batch.ContinueOnError
	if stop, _ := cmd.Flags().GetBool("stop-on-error"); stop {
		bc.ContinueOnError = false
	}

	bc.Recursive = cfg.Batch.Recursive
	if cmd.Flags().Changed("recursive") {
		bc.Recursive, _ = cmd.Flags().GetBool("recursive")
	}
	bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")

	bc.Format = stringFlag(cmd, "format", cfg.Output.Format)
	bc.OutputFile = stringFlag(cmd, "output", cfg.Output.File)
	bc.OverlayDir = stringFlag(cmd, "overlay-dir", cfg.Output.OverlayDir)
	bc.HeatmapDir, _ = cmd.Flags().GetString("heatmap-dir")

	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	return &bc, nil
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	bc, err := configToBatchConfig(GetConfig(), cmd)
	if err != nil {
		return err
	}
	if bc.ShowProgress && !bc.Quiet {
		bc.Progress = batch.ConsoleProgress(cmd.ErrOrStderr(), "Processing: ")
	}

	result, err := batch.ProcessBatch(cmd.Context(), args, bc)
	if err != nil && !errors.Is(err, batch.ErrAllFailed) {
		return err
	}

	if err := result.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		result.PrintStats(cmd.ErrOrStderr(), bc.Quiet)
	}
	return err
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addClassifierFlags(batchCmd)

	// Output flags
	batchCmd.Flags().StringP("format", "f", "text", "output format: text, json, csv")
	batchCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	batchCmd.Flags().String("overlay-dir", "", "directory to save Grad-CAM overlays")
	batchCmd.Flags().String("heatmap-dir", "", "directory to save grayscale saliency maps")

	// Worker pool flags
	batchCmd.Flags().IntP("workers", "w", 4, "number of parallel workers")
	batchCmd.Flags().Bool("stop-on-error", false, "abort the run on the first failing image")

	// File discovery flags
	batchCmd.Flags().BoolP("recursive", "r", false, "recursively scan directories")
	batchCmd.Flags().StringSlice("include", []string{}, "file patterns to include (e.g. '*.jpg')")
	batchCmd.Flags().StringSlice("exclude", []string{}, "file patterns to exclude")

	// Progress flags
	batchCmd.Flags().Bool("progress", false, "print one progress line per image to stderr")
	batchCmd.Flags().Bool("quiet", false, "suppress progress and status output")
	batchCmd.Flags().Bool("stats", false, "print processing statistics to stderr")
}
