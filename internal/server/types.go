package server

import (
	"context"

	"github.com/MeKo-Tech/wastelens/internal/guidance"
	"github.com/MeKo-Tech/wastelens/internal/model"
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"golang.org/x/text/language"
)

// pipelineInterface defines the methods needed by the server from a pipeline.
type pipelineInterface interface {
	ClassifyBytes(ctx context.Context, data []byte, maxPixels int) (*pipeline.Result, error)
	Info() map[string]any
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline       pipelineInterface
	ownsPipeline   bool
	model          *model.Lazy
	ownsModel      bool
	corsOrigin     string
	maxUploadMB    int64
	maxPixels      int
	timeoutSec     int
	overlayEnabled bool
	language       language.Tag
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	MaxUploadMB     int64
	MaxPixels       int
	TimeoutSec      int
	ShutdownTimeout int
	OverlayEnabled  bool
	// Language is the guidance language used when a request sends no
	// Accept-Language header. Empty means English.
	Language       string
	PipelineConfig pipeline.Config
}

// Response types for API endpoints.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	ModelLoaded bool   `json:"model_loaded"`
	Time        string `json:"time"`
}

// ClassifyResponse is the JSON body of POST /classify.
type ClassifyResponse struct {
	Success   bool             `json:"success"`
	RequestID string           `json:"request_id,omitempty"`
	Result    *pipeline.Result `json:"result,omitempty"`
	Guidance  *guidance.Entry  `json:"guidance,omitempty"`
	// Overlay is a base64 PNG of the Grad-CAM composite (include_overlay=true).
	Overlay string `json:"overlay,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FeedbackRequest reports the correct label for an uncertain prediction.
type FeedbackRequest struct {
	RequestID string `json:"request_id"`
	Label     string `json:"label"`
}

// FeedbackResponse acknowledges a FeedbackRequest.
type FeedbackResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Label     string `json:"label"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}
