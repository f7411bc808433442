package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/wastelens/internal/model"
	"github.com/MeKo-Tech/wastelens/internal/model/modeltest"
	"github.com/MeKo-Tech/wastelens/internal/models"
	"github.com/MeKo-Tech/wastelens/internal/testutil"
	"github.com/disintegration/imaging"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		generateImages = flag.Bool("images", true, "Generate synthetic sample images")
		generateModel  = flag.Bool("model", true, "Generate the native demo model")
		gain           = flag.Float64("gain", 20, "Dense-layer gain of the demo model")
		verbose        = flag.Bool("v", false, "Verbose output")
		help           = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate sample images and the native demo model for wastelens.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                 # Generate everything\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -model=false    # Only images\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	if *verbose {
		slog.Info("Project root", "path", root)
	}

	if *generateImages {
		dir := filepath.Join(root, "testdata", "images")
		if err := writeSamples(dir); err != nil {
			slog.Error("Failed to generate sample images", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated sample images", "dir", dir)
	}

	if *generateModel {
		path := filepath.Join(root, models.DefaultModelsDir, models.DemoModel)
		if err := writeDemoModel(path, float32(*gain)); err != nil {
			slog.Error("Failed to generate demo model", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated demo model", "path", path)
	}
}

// writeSamples renders the standard sample set plus a larger scene and a manifest.
func writeSamples(dir string) error {
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	size := testutil.ModelSize
	images := map[string]image.Image{
		"bottle":   testutil.PatchImage(size.Width, size.Height, testutil.Blue, image.Rect(20, 20, 130, 130)),
		"leaves":   testutil.SolidImage(size.Width, size.Height, testutil.Green),
		"concrete": testutil.SolidImage(size.Width, size.Height, testutil.Gray),
	}

	samples := testutil.StandardSamples()
	for _, s := range samples {
		if err := imaging.Save(images[s.Name], filepath.Join(dir, s.File)); err != nil {
			return fmt.Errorf("failed to save %s: %w", s.File, err)
		}
	}

	// A non-square scene exercises resizing and overlay scaling.
	scene := testutil.GenerateSample(testutil.SampleConfig{
		Size:       testutil.MediumSize,
		Background: testutil.Gray,
		Patch:      testutil.Blue,
		PatchRect:  image.Rect(400, 120, 600, 360),
	})
	samples = append(samples, testutil.Sample{
		Name: "scene", File: "scene_bottle.png", ExpectedLabel: "Recyclable", ExpectedKind: "confident",
	})
	if err := imaging.Save(scene, filepath.Join(dir, "scene_bottle.png")); err != nil {
		return fmt.Errorf("failed to save scene: %w", err)
	}

	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o600)
}

func writeDemoModel(path string, gain float32) error {
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}
	spec := modeltest.ColorSpec(gain)
	spec.Name = "wastelens-demo"
	if _, err := model.NewNative(spec); err != nil {
		return fmt.Errorf("invalid demo model: %w", err)
	}
	return model.SaveNative(path, spec)
}
