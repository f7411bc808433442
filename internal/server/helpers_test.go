package server

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/wastelens/internal/model"
	"github.com/MeKo-Tech/wastelens/internal/model/modeltest"
	"github.com/MeKo-Tech/wastelens/internal/onnx"
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		CORSOrigin:     "*",
		MaxUploadMB:    5,
		TimeoutSec:     10,
		OverlayEnabled: true,
	}
}

// newTestServer wraps c in a pipeline and returns a server with cfg.
func newTestServer(t *testing.T, c model.Classifier, cfg Config) *Server {
	t.Helper()
	pl, err := pipeline.NewBuilder().BuildWithClassifier(c)
	require.NoError(t, err)
	s, err := NewServerWithPipeline(cfg, pl)
	require.NoError(t, err)
	return s
}

func newColorServer(t *testing.T) *Server {
	t.Helper()
	return newTestServer(t, modeltest.Color(t), testConfig())
}

// failingClassifier scores like the wrapped model but fails at inference.
type failingClassifier struct {
	model.Classifier
}

func (failingClassifier) Score(onnx.Tensor) (float64, error) {
	return 0, errors.New("session run failed")
}

// classifyRequest builds a multipart POST /classify request.
func classifyRequest(t *testing.T, imageData []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if imageData != nil {
		part, err := writer.CreateFormFile("image", "upload.png")
		require.NoError(t, err)
		_, err = part.Write(imageData)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/classify", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func pipelineConfigFor(t *testing.T, modelPath string) pipeline.Config {
	t.Helper()
	return pipeline.NewBuilder().WithModelPath(modelPath).Config()
}
