package support

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/MeKo-Tech/wastelens/internal/server"
	"github.com/cucumber/godog"
)

// theServerIsRunning starts an in-process server on the current model.
func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.startServer("")
}

// theServerIsRunningWithLanguage starts the server with a default guidance language.
func (testCtx *TestContext) theServerIsRunningWithLanguage(lang string) error {
	return testCtx.startServer(lang)
}

func (testCtx *TestContext) startServer(lang string) error {
	if testCtx.ModelPath == "" {
		return errors.New("no model configured for the server")
	}
	testCtx.stopServer()

	srv, err := server.NewServer(server.Config{
		MaxUploadMB:    5,
		TimeoutSec:     10,
		OverlayEnabled: true,
		Language:       lang,
		PipelineConfig: pipeline.NewBuilder().WithModelPath(testCtx.ModelPath).Config(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.Server = srv
	testCtx.HTTPServer = httptest.NewServer(srv.Handler())
	return nil
}

func (testCtx *TestContext) stopServer() {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.Server != nil {
		_ = testCtx.Server.Close()
		testCtx.Server = nil
	}
}

func (testCtx *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPContentType = resp.Header.Get("Content-Type")
	return nil
}

func (testCtx *TestContext) url(path string) (string, error) {
	if testCtx.HTTPServer == nil {
		return "", errors.New("server is not running")
	}
	return testCtx.HTTPServer.URL + path, nil
}

// iGET requests path.
func (testCtx *TestContext) iGET(path string) error {
	u, err := testCtx.url(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// iPOSTImage uploads a sample image to /classify.
func (testCtx *TestContext) iPOSTImage(name string) error {
	return testCtx.postImage(name, nil, "")
}

// iPOSTImageWithFormat uploads a sample image asking for format.
func (testCtx *TestContext) iPOSTImageWithFormat(name, format string) error {
	return testCtx.postImage(name, map[string]string{"format": format}, "")
}

// iPOSTImageWithLanguage uploads a sample image with an Accept-Language header.
func (testCtx *TestContext) iPOSTImageWithLanguage(name, accept string) error {
	return testCtx.postImage(name, nil, accept)
}

func (testCtx *TestContext) postImage(name string, fields map[string]string, accept string) error {
	data, err := os.ReadFile(filepath.Join(testCtx.ImagesDir, name)) //nolint:gosec // G304: test temp path
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", name)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	u, err := testCtx.url("/classify")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, u, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if accept != "" {
		req.Header.Set("Accept-Language", accept)
	}
	return testCtx.do(req)
}

// iPOSTFeedback sends a feedback label.
func (testCtx *TestContext) iPOSTFeedback(label string) error {
	u, err := testCtx.url("/feedback")
	if err != nil {
		return err
	}
	payload := fmt.Sprintf(`{"request_id":"req-1","label":%q}`, label)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, u, strings.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return testCtx.do(req)
}

// theResponseStatusShouldBe checks the last HTTP status.
func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseFieldShouldBe compares a dotted path in the response JSON.
func (testCtx *TestContext) theResponseFieldShouldBe(path, expected string) error {
	return jsonFieldEquals(testCtx.LastHTTPResponse, path, expected)
}

// theResponseShouldContain checks the raw response body.
func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !bytes.Contains(testCtx.LastHTTPResponse, []byte(text)) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseShouldBeAPNGImage checks the content type and PNG signature.
func (testCtx *TestContext) theResponseShouldBeAPNGImage() error {
	if testCtx.LastHTTPContentType != "image/png" {
		return fmt.Errorf("content type is %q, want image/png", testCtx.LastHTTPContentType)
	}
	if !bytes.HasPrefix(testCtx.LastHTTPResponse, []byte("\x89PNG\r\n\x1a\n")) {
		return errors.New("response body is not a PNG image")
	}
	return nil
}

// RegisterServerSteps registers HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the server is running with language "([^"]*)"$`, testCtx.theServerIsRunningWithLanguage)

	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST the image "([^"]*)" to classify$`, testCtx.iPOSTImage)
	sc.Step(`^I POST the image "([^"]*)" to classify with format "([^"]*)"$`, testCtx.iPOSTImageWithFormat)
	sc.Step(`^I POST the image "([^"]*)" to classify accepting "([^"]*)"$`, testCtx.iPOSTImageWithLanguage)
	sc.Step(`^I POST feedback with label "([^"]*)"$`, testCtx.iPOSTFeedback)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should be a PNG image$`, testCtx.theResponseShouldBeAPNGImage)
}
