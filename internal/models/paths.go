package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Model file name constants.
const (
	// BestModel is the exported classifier with Grad-CAM gradient outputs.
	BestModel = "best_model.onnx"
	// DemoModel is the native fallback artifact.
	DemoModel = "demo_model.json"
)

// Default models directory.
const DefaultModelsDir = "models"

// Environment variables overriding model discovery.
const (
	EnvModel     = "WASTELENS_MODEL"
	EnvModelsDir = "WASTELENS_MODELS_DIR"
)

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// GetModelsDir returns the models directory path.
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable, 3. Project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath returns the classifier artifact path.
// Priority: 1. Explicit path (flag or config), 2. WASTELENS_MODEL,
// 3. models/best_model.onnx under the models directory.
func ResolveModelPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvModel); env != "" {
		return env
	}
	return filepath.Join(GetModelsDir(""), BestModel)
}

// IsSupportedModel reports whether path has a loadable artifact extension.
func IsSupportedModel(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".onnx", ".json":
		return true
	default:
		return false
	}
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	st, err := os.Stat(modelPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("model path is a directory: %s", modelPath)
	}
	if !IsSupportedModel(modelPath) {
		return fmt.Errorf("unsupported model format: %s", filepath.Ext(modelPath))
	}
	return nil
}
