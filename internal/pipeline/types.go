package pipeline

import (
	"image"

	"github.com/MeKo-Tech/wastelens/internal/confidence"
	"github.com/MeKo-Tech/wastelens/internal/saliency"
)

// Result is the per-image classification output.
type Result struct {
	Source            string              `json:"source,omitempty"`
	Width             int                 `json:"width"`
	Height            int                 `json:"height"`
	Score             float64             `json:"score"`
	Confidences       confidence.Pair     `json:"confidences"`
	Decision          confidence.Decision `json:"decision"`
	DisposalKey       string              `json:"disposal_key,omitempty"`
	FeedbackRequested bool                `json:"feedback_requested"`
	Explanation       *Explanation        `json:"explanation,omitempty"`
	Processing        Processing          `json:"processing"`

	// Saliency is the map at the original image resolution.
	Saliency *saliency.Map `json:"-"`
	// Visualization is the original blended with the colorized map.
	Visualization *image.NRGBA `json:"-"`
}

// Explanation summarizes the saliency map.
type Explanation struct {
	Layer     string  `json:"layer"`
	PeakX     int     `json:"peak_x"`
	PeakY     int     `json:"peak_y"`
	PeakValue float64 `json:"peak_value"`
	// Empty is set when no region raised the score.
	Empty bool `json:"empty"`
}

// Processing holds per-stage durations.
type Processing struct {
	PreprocessNs int64 `json:"preprocess_ns"`
	InferenceNs  int64 `json:"inference_ns"`
	ExplainNs    int64 `json:"explain_ns"`
	OverlayNs    int64 `json:"overlay_ns"`
	TotalNs      int64 `json:"total_ns"`
}
