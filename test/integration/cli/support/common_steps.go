package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/wastelens/internal/model"
	"github.com/MeKo-Tech/wastelens/internal/model/modeltest"
	"github.com/MeKo-Tech/wastelens/internal/testutil"
	"github.com/cucumber/godog"
)

// aNativeColorModel writes the blue/green color model.
func (testCtx *TestContext) aNativeColorModel() error {
	return testCtx.writeModel(modeltest.ColorSpec(20))
}

// aConstantModelScoring writes a model that always returns score.
func (testCtx *TestContext) aConstantModelScoring(score float64) error {
	return testCtx.writeModel(modeltest.ConstantSpec(score))
}

func (testCtx *TestContext) writeModel(spec model.NativeSpec) error {
	path := filepath.Join(testCtx.TempDir, "model.json")
	if err := model.SaveNative(path, spec); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	testCtx.ModelPath = path
	return nil
}

// theSampleImagesAreAvailable renders the standard sample set.
func (testCtx *TestContext) theSampleImagesAreAvailable() error {
	_, err := testutil.RenderSampleSet(testCtx.ImagesDir)
	return err
}

// aCorruptImageNamed writes bytes that no decoder accepts.
func (testCtx *TestContext) aCorruptImageNamed(name string) error {
	if err := testutil.EnsureDir(testCtx.ImagesDir); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(testCtx.ImagesDir, name), []byte("definitely not an image"), 0o600)
}

// theEnvironmentVariableIsSet sets name=value for subsequent commands.
func (testCtx *TestContext) theEnvironmentVariableIsSet(name, value string) error {
	testCtx.AddEnvVar(name, testCtx.substitute(value))
	return nil
}

// iRunCommand executes a command and stores its stdout and stderr.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substitute(command)
	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary(parts[0]), parts[1:]...)
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		testCtx.LastExitCode = 0
	case errors.As(err, &exitErr):
		testCtx.LastExitCode = exitErr.ExitCode()
	default:
		return fmt.Errorf("failed to run %q: %w", command, err)
	}
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d\nStdout: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain checks stdout.
func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastOutput, expected) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expected, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldNotContain checks stdout.
func (testCtx *TestContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(testCtx.LastOutput, unexpected) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", unexpected, testCtx.LastOutput)
	}
	return nil
}

// theErrorShouldMention checks stderr, case-insensitively.
func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastExitCode == 0 && testCtx.LastStderr == "" {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", text)
	}
	if !strings.Contains(strings.ToLower(testCtx.LastStderr), strings.ToLower(text)) {
		return fmt.Errorf("error does not contain '%s'\nActual stderr: %s", text, testCtx.LastStderr)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies stdout is a JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &js); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

// theJSONFieldShouldBe compares a dotted path in the stdout JSON.
func (testCtx *TestContext) theJSONFieldShouldBe(path, expected string) error {
	return jsonFieldEquals([]byte(testCtx.LastOutput), path, expected)
}

// theFileShouldExist checks for a file below the temp directory.
func (testCtx *TestContext) theFileShouldExist(name string) error {
	path := testCtx.substitute(name)
	if !filepath.IsAbs(path) {
		path = filepath.Join(testCtx.TempDir, path)
	}
	if !testutil.FileExists(path) {
		return fmt.Errorf("file not found: %s", path)
	}
	return nil
}

// theFileShouldContain checks the content of a file below the temp directory.
func (testCtx *TestContext) theFileShouldContain(name, expected string) error {
	path := filepath.Join(testCtx.TempDir, testCtx.substitute(name))
	data, err := os.ReadFile(path) //nolint:gosec // G304: test temp path
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", name, expected, data)
	}
	return nil
}

// jsonFieldEquals walks a dotted path (numeric segments index arrays) and
// compares the leaf, formatted with %v, against expected.
func jsonFieldEquals(data []byte, path, expected string) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w\n%s", err, data)
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return fmt.Errorf("field '%s' not found in JSON", path)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return fmt.Errorf("invalid index '%s' in '%s'", part, path)
			}
			cur = node[i]
		default:
			return fmt.Errorf("cannot navigate into '%s' of '%s'", part, path)
		}
	}
	if got := fmt.Sprintf("%v", cur); got != expected {
		return fmt.Errorf("field '%s' is '%s', want '%s'", path, got, expected)
	}
	return nil
}

// RegisterCommonSteps registers model, image, command and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a native color model$`, testCtx.aNativeColorModel)
	sc.Step(`^a constant model scoring ([0-9.]+)$`, testCtx.aConstantModelScoring)
	sc.Step(`^the sample images are available$`, testCtx.theSampleImagesAreAvailable)
	sc.Step(`^a corrupt image named "([^"]*)"$`, testCtx.aCorruptImageNamed)
	sc.Step(`^the environment variable "([^"]*)" is "([^"]*)"$`, testCtx.theEnvironmentVariableIsSet)

	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
}
