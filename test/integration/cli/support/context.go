package support

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/wastelens/internal/server"
)

// EnvBinary names the variable holding the CLI binary path.
const EnvBinary = "WASTELENS_BIN"

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastStderr    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	WorkingDir string
	TempDir    string
	ImagesDir  string
	ModelPath  string
	EnvVars    []string

	// Server state
	HTTPServer *httptest.Server
	Server     *server.Server

	// HTTP response state
	LastHTTPStatusCode  int
	LastHTTPResponse    []byte
	LastHTTPContentType string
}

// NewTestContext creates a new test context with its own temp directory.
func NewTestContext() (*TestContext, error) {
	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "wastelens-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{
		WorkingDir: workingDir,
		TempDir:    tempDir,
		ImagesDir:  filepath.Join(tempDir, "images"),
	}, nil
}

// Cleanup stops the server and removes the temp directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	testCtx.stopServer()
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}
	return errors.Join(errs...)
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// substitute expands {model}, {images} and {tmp} in command strings.
func (testCtx *TestContext) substitute(s string) string {
	return strings.NewReplacer(
		"{model}", testCtx.ModelPath,
		"{images}", testCtx.ImagesDir,
		"{tmp}", testCtx.TempDir,
	).Replace(s)
}

// binary returns the CLI binary to execute for name.
func binary(name string) string {
	if name == "wastelens" {
		if bin := os.Getenv(EnvBinary); bin != "" {
			return bin
		}
	}
	return name
}
