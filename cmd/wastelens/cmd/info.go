package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/wastelens/internal/model"
	"github.com/spf13/cobra"
)

// infoCmd prints model information.
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show model information and Grad-CAM target layers",
	Long: `Load the configured model and print its input shape and the layers that
can be used as Grad-CAM targets via --layer or saliency.target_layer.

Examples:
  wastelens info
  wastelens info --model models/demo_model.json --json`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		pCfg, err := GetConfig().ToPipelineConfig()
		if err != nil {
			return err
		}
		m, err := model.Load(pCfg.Model)
		if err != nil {
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				slog.Warn("Error closing model", "error", err)
			}
		}()

		info := m.Info()
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			b, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(b))
			return err
		}

		_, _ = fmt.Fprintf(out, "Model:    %s\n", info.Name)
		_, _ = fmt.Fprintf(out, "Backend:  %s\n", info.Backend)
		_, _ = fmt.Fprintf(out, "Path:     %s\n", info.Path)
		_, _ = fmt.Fprintf(out, "Input:    %dx%dx%d\n", info.InputHeight, info.InputWidth, info.InputChannels)
		_, _ = fmt.Fprintln(out, "Layers:")
		for _, l := range info.Layers {
			marker := ""
			if l == info.LastConv {
				marker = "  (last_conv)"
			}
			_, _ = fmt.Fprintf(out, "  %s%s\n", l, marker)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().Bool("json", false, "print model information as JSON")
}
