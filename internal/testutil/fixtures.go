package testutil

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// Sample is one synthetic image with the decision the color test model is
// expected to produce for it.
type Sample struct {
	Name          string `json:"name"`
	File          string `json:"file"`
	ExpectedLabel string `json:"expected_label,omitempty"`
	ExpectedKind  string `json:"expected_kind"`
}

// StandardSamples describes the default fixture set.
func StandardSamples() []Sample {
	return []Sample{
		{Name: "bottle", File: "bottle_blue.png", ExpectedLabel: "Recyclable", ExpectedKind: "confident"},
		{Name: "leaves", File: "leaves_green.jpg", ExpectedLabel: "Organic", ExpectedKind: "confident"},
		{Name: "concrete", File: "concrete_gray.png", ExpectedKind: "uncertain"},
	}
}

// WriteSampleSet renders StandardSamples into dir together with a
// manifest.json and returns the samples with absolute file paths.
func WriteSampleSet(t testing.TB, dir string) []Sample {
	t.Helper()
	samples, err := RenderSampleSet(dir)
	require.NoError(t, err)
	return samples
}

// RenderSampleSet is WriteSampleSet for callers without a testing.TB.
func RenderSampleSet(dir string) ([]Sample, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}

	images := map[string]image.Image{
		"bottle":   PatchImage(ModelSize.Width, ModelSize.Height, Blue, image.Rect(20, 20, 130, 130)),
		"leaves":   SolidImage(ModelSize.Width, ModelSize.Height, Green),
		"concrete": SolidImage(ModelSize.Width, ModelSize.Height, Gray),
	}

	samples := StandardSamples()
	for i, s := range samples {
		path := filepath.Join(dir, s.File)
		if err := imaging.Save(images[s.Name], path); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", s.File, err)
		}
		samples[i].File = path
	}

	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o600); err != nil {
		return nil, err
	}
	return samples, nil
}

// LoadManifest reads the manifest written by WriteSampleSet.
func LoadManifest(t testing.TB, dir string) []Sample {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json")) //nolint:gosec // G304: test fixture path
	require.NoError(t, err)
	var samples []Sample
	require.NoError(t, json.Unmarshal(data, &samples))
	return samples
}
