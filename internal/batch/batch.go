// Package batch classifies many image files on a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/wastelens/internal/pipeline"
)

// ErrAllFailed is returned together with the Result when not a single image
// could be classified.
var ErrAllFailed = errors.New("all images failed")

// ProcessBatch builds a pipeline from config and classifies every image found
// under imagePaths.
func ProcessBatch(ctx context.Context, imagePaths []string, config *Config) (*Result, error) {
	files, err := discover(imagePaths, config)
	if err != nil {
		return nil, err
	}

	pl, err := buildPipeline(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("Error closing pipeline", "error", err)
		}
	}()

	return run(ctx, pl, files, config)
}

// ProcessWithPipeline classifies every image found under imagePaths with an
// existing pipeline. The pipeline is not closed.
func ProcessWithPipeline(ctx context.Context, pl *pipeline.Pipeline, imagePaths []string,
	config *Config) (*Result, error) {
	if pl == nil {
		return nil, errors.New("pipeline is nil")
	}
	files, err := discover(imagePaths, config)
	if err != nil {
		return nil, err
	}
	return run(ctx, pl, files, config)
}

func discover(imagePaths []string, config *Config) ([]string, error) {
	files, err := discoverImageFiles(imagePaths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}
	return files, nil
}

func run(ctx context.Context, pl classifier, files []string, config *Config) (*Result, error) {
	if config.Progress == nil && config.ShowProgress && !config.Quiet {
		config.Progress = ConsoleProgress(os.Stderr, "Processing: ")
	}

	slog.Debug("Starting batch", "images", len(files), "workers", config.Workers)
	start := time.Now()
	results, failures, err := processImagesParallel(ctx, pl, files, config)
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	res := &Result{
		Results:     results,
		ImagePaths:  files,
		Failures:    failures,
		Duration:    duration,
		WorkerCount: max(config.Workers, 1),
	}
	if len(failures) == len(files) {
		return res, ErrAllFailed
	}
	return res, nil
}
