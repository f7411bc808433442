package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/wastelens/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the classification API",
	Long: `Start an HTTP server that classifies uploaded images.

The server provides the following endpoints:
  POST /classify     - Classify an uploaded image (multipart field "image")
  POST /feedback     - Report the correct label for an uncertain prediction
  GET  /ws/classify  - WebSocket: binary image frames in, JSON results out
  GET  /model        - Model information and Grad-CAM layers
  GET  /health       - Health check endpoint
  GET  /metrics      - Prometheus metrics

Examples:
  wastelens serve
  wastelens serve --port 8080
  wastelens serve --host 0.0.0.0 --port 3000 --language de`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		sc := &cfg.Server
		sc.Host = stringFlag(cmd, "host", sc.Host)
		if cmd.Flags().Changed("port") {
			sc.Port, _ = cmd.Flags().GetInt("port")
		}
		sc.CORSOrigin = stringFlag(cmd, "cors-origin", sc.CORSOrigin)
		if cmd.Flags().Changed("max-upload-size") {
			sc.MaxUploadMB, _ = cmd.Flags().GetInt64("max-upload-size")
		}
		if cmd.Flags().Changed("max-pixels") {
			sc.MaxPixels, _ = cmd.Flags().GetInt("max-pixels")
		}
		if cmd.Flags().Changed("timeout") {
			sc.TimeoutSec, _ = cmd.Flags().GetInt("timeout")
		}
		if cmd.Flags().Changed("shutdown-timeout") {
			sc.ShutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}
		if cmd.Flags().Changed("overlay-enable") {
			sc.OverlayEnabled, _ = cmd.Flags().GetBool("overlay-enable")
		}
		sc.Language = stringFlag(cmd, "language", sc.Language)

		pCfg, err := pipelineConfig(cmd, cfg)
		if err != nil {
			return err
		}
		host, port, timeout, shutdownTimeout := sc.Host, sc.Port, sc.TimeoutSec, sc.ShutdownTimeout

		srv, err := server.NewServer(server.Config{
			Host:            host,
			Port:            port,
			CORSOrigin:      sc.CORSOrigin,
			MaxUploadMB:     sc.MaxUploadMB,
			MaxPixels:       sc.MaxPixels,
			TimeoutSec:      timeout,
			ShutdownTimeout: shutdownTimeout,
			OverlayEnabled:  sc.OverlayEnabled,
			Language:        sc.Language,
			PipelineConfig:  pCfg,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
			WriteTimeout:      time.Duration(timeout) * time.Second,
		}

		go func() {
			slog.Info("Starting wastelens server", "host", host, "port", port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}
		if err := srv.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}
		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addClassifierFlags(serveCmd)

	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int64("max-upload-size", 20, "maximum upload size in MB")
	serveCmd.Flags().Int("max-pixels", 40_000_000, "maximum decoded image size in pixels (0 = unlimited)")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("overlay-enable", true, "enable overlay and heatmap image responses")
	serveCmd.Flags().String("language", "", "default guidance language when no Accept-Language is sent")
}
