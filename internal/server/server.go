package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MeKo-Tech/wastelens/internal/guidance"
	"github.com/MeKo-Tech/wastelens/internal/model"
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"
)

const bytesPerMB = 1024 * 1024

// NewServer loads the model and creates a server that owns the pipeline and
// the model handle.
func NewServer(config Config) (*Server, error) {
	shared := model.NewLazy(config.PipelineConfig.Model)
	s, err := NewServerWithModel(config, shared)
	if err != nil {
		_ = shared.Close()
		return nil, err
	}
	s.ownsModel = true
	return s, nil
}

// NewServerWithModel builds the pipeline on a shared model handle. The model
// is loaded here if it was not already; the caller keeps ownership of shared.
func NewServerWithModel(config Config, shared *model.Lazy) (*Server, error) {
	pl, err := pipeline.NewBuilderFromConfig(config.PipelineConfig).BuildShared(shared)
	if err != nil {
		return nil, err
	}
	s, err := newServer(config, pl)
	if err != nil {
		_ = pl.Close()
		return nil, err
	}
	s.ownsPipeline = true
	s.model = shared
	return s, nil
}

// NewServerWithPipeline creates a server around an existing pipeline. The
// caller keeps ownership of pl.
func NewServerWithPipeline(config Config, pl *pipeline.Pipeline) (*Server, error) {
	if pl == nil {
		return nil, errors.New("pipeline is nil")
	}
	return newServer(config, pl)
}

func newServer(config Config, pl pipelineInterface) (*Server, error) {
	lang := language.English
	if config.Language != "" {
		tag, err := language.Parse(config.Language)
		if err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", config.Language, err)
		}
		lang = guidance.Negotiate(tag.String())
	}
	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 20
	}
	timeout := config.TimeoutSec
	if timeout <= 0 {
		timeout = 30
	}
	return &Server{
		pipeline:       pl,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    maxUpload,
		maxPixels:      config.MaxPixels,
		timeoutSec:     timeout,
		overlayEnabled: config.OverlayEnabled,
		language:       lang,
	}, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	var errs []error
	if s.pipeline != nil && s.ownsPipeline {
		errs = append(errs, s.pipeline.Close())
	}
	if s.model != nil && s.ownsModel {
		errs = append(errs, s.model.Close())
	}
	return errors.Join(errs...)
}

// Handler returns the routed HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, s.corsMiddleware, metricsMiddleware)

	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/model", s.modelHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/classify", s.classifyHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/feedback", s.feedbackHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/ws/classify", s.classifyWebSocketHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeErrorResponse(w, req, "Method not allowed", http.StatusMethodNotAllowed)
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeErrorResponse(w, req, "Not found", http.StatusNotFound)
	})
	return r
}
