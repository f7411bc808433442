package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/wastelens/internal/benchmark"
	"github.com/MeKo-Tech/wastelens/internal/models"
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/MeKo-Tech/wastelens/internal/preprocess"
)

func main() {
	var (
		modelPath  = flag.String("model", "", "Classifier artifact (.onnx or native .json)")
		imagesDir  = flag.String("images", "testdata/images", "Directory with sample images")
		iterations = flag.Int("iterations", 5, "Number of iterations per image")
		warmup     = flag.Int("warmup", 1, "Untimed iterations before measuring")
		useGPU     = flag.Bool("gpu", false, "Use the CUDA execution provider")
		outputFile = flag.String("output", "", "Write CSV results to file (optional)")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	fmt.Println("wastelens classify vs explain benchmark")
	fmt.Println("=======================================")

	path := models.ResolveModelPath(*modelPath)
	if err := models.ValidateModelExists(path); err != nil {
		log.Fatalf("Model check failed: %v", err)
	}

	pl, err := pipeline.NewBuilder().
		WithModelPath(path).
		WithGPU(*useGPU).
		WithExplain(true).
		Build()
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer func() { _ = pl.Close() }()

	entries, err := os.ReadDir(*imagesDir)
	if err != nil {
		log.Fatalf("Images directory not readable: %v", err)
	}
	bench := benchmark.NewExplainBenchmark(pl)
	bench.SetWarmup(*warmup)
	for _, e := range entries {
		if e.IsDir() || !preprocess.IsSupportedImage(e.Name()) {
			continue
		}
		bench.AddImage(filepath.Join(*imagesDir, e.Name()))
		if *verbose {
			fmt.Printf("Added image: %s\n", e.Name())
		}
	}

	fmt.Printf("Running %d iterations per image...\n\n", *iterations)
	results, err := bench.Run(context.Background(), *iterations)
	if err != nil {
		log.Fatalf("Benchmark failed: %v", err)
	}
	for _, r := range results {
		fmt.Println(r.String())
	}

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, results); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

func saveResultsToFile(filename string, results []benchmark.Comparison) error {
	file, err := os.Create(filename) //nolint:gosec // G304: output path from flag
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()
	return benchmark.WriteCSV(file, results)
}
