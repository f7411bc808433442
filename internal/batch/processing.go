package batch

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

// classifier is the subset of *pipeline.Pipeline used by the worker pool.
type classifier interface {
	ClassifyFile(ctx context.Context, path string) (*pipeline.Result, error)
}

// writeImage encodes img as PNG at dir/<name><suffix>.png.
func writeImage(dir, name, suffix string, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	outPath := filepath.Join(dir, name+suffix+".png")
	f, err := os.Create(outPath) //nolint:gosec // G304: output dir comes from CLI flags
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to encode %s: %w", outPath, err)
	}
	return outPath, f.Close()
}

// SaveExplanation writes <name>_gradcam.png to overlayDir and
// <name>_heatmap.png to heatmapDir. Empty directories are skipped.
func SaveExplanation(res *pipeline.Result, name, overlayDir, heatmapDir string) error {
	if overlayDir != "" && res.Visualization != nil {
		if _, err := writeImage(overlayDir, name, "_gradcam", res.Visualization); err != nil {
			return fmt.Errorf("overlay: %w", err)
		}
	}
	if heatmapDir != "" && res.Saliency != nil {
		if _, err := writeImage(heatmapDir, name, "_heatmap", res.Saliency.ToGray()); err != nil {
			return fmt.Errorf("heatmap: %w", err)
		}
	}
	return nil
}

// OutputNames returns one explanation file stem per path. Stems are the base
// name without extension; paths whose stems collide are named by their path
// below the common parent directory instead, with separators replaced by '_'.
// Any remaining clash gets a numeric suffix.
func OutputNames(paths []string) []string {
	names := make([]string, len(paths))
	counts := make(map[string]int, len(paths))
	for i, p := range paths {
		names[i] = stem(filepath.Base(p))
		counts[names[i]]++
	}

	root := commonDir(paths)
	for i, p := range paths {
		if counts[names[i]] < 2 {
			continue
		}
		if rel, err := filepath.Rel(root, filepath.Clean(p)); err == nil && !escapes(rel) {
			names[i] = strings.ReplaceAll(stem(rel), string(filepath.Separator), "_")
		}
	}

	seen := make(map[string]int, len(paths))
	for i, n := range names {
		seen[n]++
		if k := seen[n]; k > 1 {
			names[i] = fmt.Sprintf("%s_%d", n, k)
		}
	}
	return names
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// commonDir returns the deepest directory containing every path.
func commonDir(paths []string) string {
	if len(paths) == 0 {
		return "."
	}
	dir := filepath.Dir(filepath.Clean(paths[0]))
	for _, p := range paths[1:] {
		d := filepath.Dir(filepath.Clean(p))
		for {
			if rel, err := filepath.Rel(dir, d); err == nil && !escapes(rel) {
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return dir
}

// processSingleImage classifies one file and stores its explanation images
// under name.
func processSingleImage(ctx context.Context, pl classifier, path, name string, config *Config) (*pipeline.Result, error) {
	res, err := pl.ClassifyFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := SaveExplanation(res, name, config.OverlayDir, config.HeatmapDir); err != nil {
		return nil, err
	}
	return res, nil
}

// processImagesParallel classifies imagePaths on a bounded worker pool.
// With ContinueOnError the failures are collected and the run completes;
// otherwise the first failure cancels the remaining work.
func processImagesParallel(ctx context.Context, pl classifier, imagePaths []string,
	config *Config) ([]*pipeline.Result, []Failure, error) {
	results := make([]*pipeline.Result, len(imagePaths))
	errs := make([]error, len(imagePaths))

	names := OutputNames(imagePaths)
	workers := max(config.Workers, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		mu   sync.Mutex
		done int
	)
	report := func(path string, err error) {
		if config.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		config.Progress(done, len(imagePaths), path, err)
	}

	for i, path := range imagePaths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := processSingleImage(gctx, pl, path, names[i], config)
			report(path, err)
			if err != nil {
				errs[i] = err
				if config.ContinueOnError {
					slog.Warn("Image classification failed", "file", path, "error", err)
					return nil
				}
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var failures []Failure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, Failure{File: imagePaths[i], Error: err.Error()})
		}
	}
	return results, failures, nil
}
