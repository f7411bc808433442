package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MeKo-Tech/wastelens/internal/batch"
	"github.com/MeKo-Tech/wastelens/internal/guidance"
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

// classifyCmd represents the classify command.
var classifyCmd = &cobra.Command{
	Use:   "classify [images...]",
	Short: "Classify waste images as Organic or Recyclable",
	Long: `Classify one or more image files and print the class confidences, the
decision and the matching disposal guidance.

Supported formats: JPEG, PNG, BMP, GIF, WebP

Examples:
  wastelens classify bottle.jpg
  wastelens classify *.png --format json
  wastelens classify peel.jpg --overlay-dir out/ --heatmap-dir out/
  wastelens classify can.jpg --low 0.3 --high 0.7 --lang de`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runClassify,
}

type classifyOutput struct {
	Result   *pipeline.Result `json:"result"`
	Guidance guidance.Entry   `json:"guidance"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	cfg.Output.Format = stringFlag(cmd, "format", cfg.Output.Format)
	cfg.Output.OverlayDir = stringFlag(cmd, "overlay-dir", cfg.Output.OverlayDir)
	cfg.Output.File = stringFlag(cmd, "output", cfg.Output.File)
	heatmapDir, _ := cmd.Flags().GetString("heatmap-dir")
	lang := guidance.Negotiate(stringFlag(cmd, "lang", cfg.Server.Language))

	pCfg, err := pipelineConfig(cmd, cfg)
	if err != nil {
		return err
	}
	format, err := pipeline.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	pl, err := pipeline.NewBuilderFromConfig(pCfg).Build()
	if err != nil {
		return fmt.Errorf("failed to load classifier: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("Error closing pipeline", "error", err)
		}
	}()

	var (
		results []*pipeline.Result
		failed  int
	)
	names := batch.OutputNames(args)
	for i, path := range args {
		res, err := pl.ClassifyFile(cmd.Context(), path)
		if err == nil {
			err = batch.SaveExplanation(res, names[i], cfg.Output.OverlayDir, heatmapDir)
		}
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: classification failed: %v\n", path, err)
			continue
		}
		results = append(results, res)
	}

	if len(results) > 0 {
		output, err := renderClassification(results, format, lang)
		if err != nil {
			return err
		}
		if err := writeOutput(cmd.OutOrStdout(), cfg.Output.File, output); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d image(s) could not be classified", failed, len(args))
	}
	return nil
}

func renderClassification(results []*pipeline.Result, format string, lang language.Tag) (string, error) {
	switch format {
	case pipeline.FormatJSON:
		out := make([]classifyOutput, len(results))
		for i, r := range results {
			out[i] = classifyOutput{Result: r, Guidance: guidance.For(r.Decision, lang)}
		}
		var v any = out
		if len(out) == 1 {
			v = out[0]
		}
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	case pipeline.FormatCSV:
		return pipeline.ToCSV(results)
	default:
		parts := make([]string, 0, len(results))
		for _, r := range results {
			text, err := pipeline.ToText(r)
			if err != nil {
				return "", err
			}
			parts = append(parts, text+"\n"+formatGuidance(guidance.For(r.Decision, lang)))
		}
		return strings.Join(parts, "\n\n"), nil
	}
}

// formatGuidance renders an entry as an indented block.
func formatGuidance(e guidance.Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s\n", e.Title)
	for _, item := range e.Includes {
		fmt.Fprintf(&sb, "    - %s\n", item)
	}
	if e.Disposal != "" {
		fmt.Fprintf(&sb, "    -> %s\n", e.Disposal)
	}
	if e.Prompt != "" {
		fmt.Fprintf(&sb, "    %s\n", e.Prompt)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// writeOutput writes output to file, or to w when file is empty.
func writeOutput(w io.Writer, file, output string) error {
	if file == "" {
		_, err := fmt.Fprintln(w, output)
		return err
	}
	if err := os.WriteFile(file, []byte(output+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	addClassifierFlags(classifyCmd)

	classifyCmd.Flags().StringP("format", "f", "text", "output format: text, json, csv")
	classifyCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	classifyCmd.Flags().String("overlay-dir", "", "directory to save Grad-CAM overlays (<name>_gradcam.png)")
	classifyCmd.Flags().String("heatmap-dir", "", "directory to save grayscale saliency maps (<name>_heatmap.png)")
	classifyCmd.Flags().String("lang", "", "guidance language (en, de)")
}
