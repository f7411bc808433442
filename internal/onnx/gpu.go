package onnx

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/yalue/onnxruntime_go"
)

// GPUConfig holds configuration for CUDA acceleration.
type GPUConfig struct {
	UseGPU              bool   // Enable CUDA execution provider
	DeviceID            int    // CUDA device ID
	GPUMemLimit         uint64 // GPU memory limit in bytes (0 = unlimited)
	CUDNNConvAlgoSearch string // "EXHAUSTIVE", "HEURISTIC" or "DEFAULT"
}

// DefaultGPUConfig returns a CPU-only configuration.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{
		CUDNNConvAlgoSearch: "DEFAULT",
	}
}

// ConfigureSessionForGPU appends the CUDA execution provider to the session options.
// It is a no-op for CPU-only configurations.
func ConfigureSessionForGPU(opts *onnxruntime_go.SessionOptions, cfg GPUConfig) error {
	if !cfg.UseGPU {
		return nil
	}

	cudaOpts, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if err := cudaOpts.Destroy(); err != nil {
			slog.Warn("failed to destroy CUDA provider options", "error", err)
		}
	}()

	settings := map[string]string{
		"device_id": strconv.Itoa(cfg.DeviceID),
	}
	if cfg.GPUMemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(cfg.GPUMemLimit, 10)
	}
	if cfg.CUDNNConvAlgoSearch != "" {
		settings["cudnn_conv_algo_search"] = cfg.CUDNNConvAlgoSearch
	}

	if err := cudaOpts.Update(settings); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}

// ValidateGPUConfig checks if the GPU configuration is valid.
func ValidateGPUConfig(cfg GPUConfig) error {
	if !cfg.UseGPU {
		return nil
	}
	if cfg.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", cfg.DeviceID)
	}
	switch cfg.CUDNNConvAlgoSearch {
	case "", "EXHAUSTIVE", "HEURISTIC", "DEFAULT":
	default:
		return fmt.Errorf("invalid CUDNN conv algo search: %s (must be EXHAUSTIVE, HEURISTIC or DEFAULT)",
			cfg.CUDNNConvAlgoSearch)
	}
	return nil
}

// ParseMemoryLimit converts strings like "512MB" or "2GB" into bytes.
// "auto" and "" mean unlimited (0).
func ParseMemoryLimit(limit string) (uint64, error) {
	s := strings.ToUpper(strings.TrimSpace(limit))
	if s == "" || s == "AUTO" {
		return 0, nil
	}
	units := []struct {
		suffix string
		factor float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(s, u.suffix), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.factor), nil
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB (got %s)", limit)
}
