package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/wastelens/internal/confidence"
	"github.com/MeKo-Tech/wastelens/internal/guidance"
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/MeKo-Tech/wastelens/internal/preprocess"
	"github.com/MeKo-Tech/wastelens/internal/version"
	"golang.org/x/text/language"
)

// Response formats accepted by POST /classify.
const (
	formatJSON    = "json"
	formatOverlay = "overlay"
	formatHeatmap = "heatmap"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	loaded := s.pipeline != nil
	if s.model != nil {
		loaded = s.model.Loaded()
	}
	response := HealthResponse{
		Status:      "healthy",
		Version:     version.Version,
		ModelLoaded: loaded,
		Time:        time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, response)
}

// modelHandler describes the loaded model, its layers and the deadband.
func (s *Server) modelHandler(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeErrorResponse(w, r, "classifier not initialized", http.StatusServiceUnavailable)
		return
	}
	info := s.pipeline.Info()
	info["version"] = version.Version
	writeJSON(w, http.StatusOK, info)
}

// classifyHandler processes a multipart image upload.
func (s *Server) classifyHandler(w http.ResponseWriter, r *http.Request) {
	data, status, err := s.readUpload(w, r)
	if err != nil {
		classificationErrorsTotal.WithLabelValues("http", "upload").Inc()
		writeErrorResponse(w, r, err.Error(), status)
		return
	}

	format := strings.ToLower(r.FormValue("format"))
	if format == "" {
		format = formatJSON
	}
	switch format {
	case formatJSON, formatOverlay, formatHeatmap:
	default:
		writeErrorResponse(w, r, fmt.Sprintf("unsupported format %q (want json, overlay or heatmap)", format),
			http.StatusBadRequest)
		return
	}
	if format != formatJSON && !s.overlayEnabled {
		writeErrorResponse(w, r, "overlay output disabled", http.StatusForbidden)
		return
	}

	res, status, err := s.classify(r.Context(), data, "http")
	if err != nil {
		writeErrorResponse(w, r, err.Error(), status)
		return
	}

	switch format {
	case formatOverlay:
		s.writeImage(w, r, res.Visualization)
		return
	case formatHeatmap:
		if res.Saliency == nil {
			s.writeImage(w, r, nil)
			return
		}
		s.writeImage(w, r, res.Saliency.ToGray())
		return
	}

	entry := guidance.For(res.Decision, s.negotiate(r))
	response := ClassifyResponse{
		Success:   true,
		RequestID: RequestIDFrom(r.Context()),
		Result:    res,
		Guidance:  &entry,
	}
	if r.FormValue("include_overlay") == "true" && s.overlayEnabled && res.Visualization != nil {
		encoded, err := encodePNGBase64(res.Visualization)
		if err != nil {
			writeErrorResponse(w, r, "overlay encoding failed", http.StatusInternalServerError)
			return
		}
		response.Overlay = encoded
	}
	writeJSON(w, http.StatusOK, response)
}

// readUpload enforces the upload limit and returns the "image" form file.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, int, error) {
	limit := s.maxUploadMB * bytesPerMB
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
			return nil, http.StatusRequestEntityTooLarge, errors.New("file too large")
		}
		return nil, http.StatusBadRequest, errors.New("failed to parse form data")
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("no image file provided")
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		return nil, http.StatusRequestEntityTooLarge, errors.New("file too large")
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("failed to read image data")
	}
	return data, http.StatusOK, nil
}

// classify runs the pipeline under the request timeout and records metrics.
// Errors carry the HTTP status and the user-visible message.
func (s *Server) classify(ctx context.Context, data []byte, source string) (*pipeline.Result, int, error) {
	if s.pipeline == nil {
		classificationErrorsTotal.WithLabelValues(source, "unavailable").Inc()
		return nil, http.StatusServiceUnavailable, errors.New("classifier not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.ClassifyBytes(ctx, data, s.maxPixels)
	duration := time.Since(start)
	if err != nil {
		status, kind := classifyStatus(err)
		classificationErrorsTotal.WithLabelValues(source, kind).Inc()
		slog.Warn("Classification failed",
			"request_id", RequestIDFrom(ctx),
			"source", source,
			"error_type", kind,
			"error", err)
		return nil, status, fmt.Errorf("classification failed: %w", err)
	}

	classificationsTotal.WithLabelValues(source, guidance.Key(res.Decision)).Inc()
	classificationDuration.WithLabelValues(source).Observe(duration.Seconds())
	classificationScore.Observe(res.Score)

	slog.Info("Image classified",
		"request_id", RequestIDFrom(ctx),
		"source", source,
		"score", res.Score,
		"decision", res.Decision.String(),
		"duration_ms", duration.Milliseconds())
	return res, http.StatusOK, nil
}

// classifyStatus maps a pipeline error to an HTTP status and a metric label.
func classifyStatus(err error) (int, string) {
	switch {
	case preprocess.IsDecodeError(err):
		return http.StatusBadRequest, "decode"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "model"
	}
}

// feedbackHandler records the correct label for an uncertain prediction.
// Feedback is logged and counted, never stored.
func (s *Server) feedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 64*1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeErrorResponse(w, r, fmt.Sprintf("failed to parse JSON request: %v", err), http.StatusBadRequest)
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" {
		writeErrorResponse(w, r, "request_id is required", http.StatusBadRequest)
		return
	}
	label, err := confidence.ParseLabel(req.Label)
	if err != nil {
		writeErrorResponse(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	feedbackTotal.WithLabelValues(string(label)).Inc()
	slog.Info("Feedback received",
		"request_id", RequestIDFrom(r.Context()),
		"feedback_for", req.RequestID,
		"label", string(label))

	writeJSON(w, http.StatusAccepted, FeedbackResponse{
		Success:   true,
		RequestID: req.RequestID,
		Label:     string(label),
	})
}

// negotiate picks the guidance language for r.
func (s *Server) negotiate(r *http.Request) language.Tag {
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return guidance.Negotiate(accept)
	}
	return s.language
}

func (s *Server) writeImage(w http.ResponseWriter, r *http.Request, img image.Image) {
	if img == nil {
		writeErrorResponse(w, r, "saliency is disabled on this server", http.StatusConflict)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		writeErrorResponse(w, r, "image encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func encodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Log error, but can't send another response
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func writeErrorResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Success:   false,
		RequestID: RequestIDFrom(r.Context()),
		Error:     message,
	})
}
