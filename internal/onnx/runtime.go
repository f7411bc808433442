package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath overrides ONNX Runtime shared library discovery.
const EnvLibraryPath = "WASTELENS_ONNXRUNTIME_LIB"

var initMu sync.Mutex

// RuntimeInfo describes the initialized ONNX Runtime.
type RuntimeInfo struct {
	LibraryPath string `json:"library_path"`
	Version     string `json:"version"`
}

// libraryName returns the shared library filename for the current OS.
func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// candidateLibraryPaths lists locations searched for the shared library, in order.
func candidateLibraryPaths(useGPU bool) []string {
	var paths []string
	if env := os.Getenv(EnvLibraryPath); env != "" {
		paths = append(paths, env)
	}

	name, err := libraryName()
	if err != nil {
		return paths
	}

	if useGPU {
		paths = append(paths, filepath.Join("/opt/onnxruntime/gpu/lib", name))
	}
	paths = append(paths,
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
		filepath.Join("/opt/onnxruntime/cpu/lib", name),
	)

	if root, err := findProjectRoot(); err == nil {
		if useGPU {
			paths = append(paths, filepath.Join(root, "onnxruntime", "gpu", "lib", name))
		}
		paths = append(paths, filepath.Join(root, "onnxruntime", "lib", name))
	}
	return paths
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

// FindLibrary returns the first existing ONNX Runtime library path.
func FindLibrary(useGPU bool) (string, error) {
	for _, p := range candidateLibraryPaths(useGPU) {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ONNX Runtime library not found (set %s)", EnvLibraryPath)
}

// InitializeRuntime locates the shared library and initializes the ONNX Runtime
// environment once per process.
func InitializeRuntime(useGPU bool) (RuntimeInfo, error) {
	initMu.Lock()
	defer initMu.Unlock()

	if onnxruntime_go.IsInitialized() {
		return RuntimeInfo{Version: onnxruntime_go.GetVersion()}, nil
	}

	libPath, err := FindLibrary(useGPU)
	if err != nil {
		return RuntimeInfo{}, err
	}
	onnxruntime_go.SetSharedLibraryPath(libPath)

	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return RuntimeInfo{}, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	return RuntimeInfo{LibraryPath: libPath, Version: onnxruntime_go.GetVersion()}, nil
}

// Available reports whether the ONNX Runtime library can be found.
func Available() bool {
	_, err := FindLibrary(false)
	return err == nil
}
