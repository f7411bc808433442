package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/wastelens/internal/confidence"
	"github.com/MeKo-Tech/wastelens/internal/overlay"
	"github.com/MeKo-Tech/wastelens/internal/preprocess"
	"github.com/MeKo-Tech/wastelens/internal/saliency"
)

var errClosed = errors.New("pipeline is closed")

// ClassifyAndExplain classifies img and, when explanation is enabled, attaches
// the saliency map and the overlay composite.
func (p *Pipeline) ClassifyAndExplain(ctx context.Context, img image.Image) (*Result, error) {
	return p.process(ctx, img, p.cfg.Explain)
}

// Classify scores img without computing a saliency map.
func (p *Pipeline) Classify(ctx context.Context, img image.Image) (*Result, error) {
	return p.process(ctx, img, false)
}

// ClassifyBytes decodes data and runs ClassifyAndExplain. Undecodable input
// fails with *preprocess.DecodeError before the model is invoked.
func (p *Pipeline) ClassifyBytes(ctx context.Context, data []byte, maxPixels int) (*Result, error) {
	img, _, err := preprocess.DecodeBytes(data, maxPixels)
	if err != nil {
		return nil, err
	}
	return p.ClassifyAndExplain(ctx, img)
}

// ClassifyFile loads path and runs ClassifyAndExplain.
func (p *Pipeline) ClassifyFile(ctx context.Context, path string) (*Result, error) {
	img, err := preprocess.LoadImage(path)
	if err != nil {
		return nil, err
	}
	res, err := p.ClassifyAndExplain(ctx, img)
	if err != nil {
		return nil, err
	}
	res.Source = path
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, img image.Image, explain bool) (*Result, error) {
	if p == nil || p.classifier == nil {
		return nil, errClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	total := time.Now()

	start := time.Now()
	tensor, err := p.pre.Normalize(img)
	if err != nil {
		return nil, err
	}
	defer preprocess.Release(tensor)
	res := &Result{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	res.Processing.PreprocessNs = time.Since(start).Nanoseconds()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start = time.Now()
	raw, err := p.classifier.Score(tensor)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	res.Processing.InferenceNs = time.Since(start).Nanoseconds()

	pair, decision := p.eval.Evaluate(raw)
	res.Score = confidence.Clamp(raw)
	res.Confidences = pair
	res.Decision = decision
	res.DisposalKey = decision.DisposalKey()
	res.FeedbackRequested = decision.NeedsFeedback()

	if explain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start = time.Now()
		act, grad, err := p.classifier.ActivationsAndGradients(tensor, p.cfg.TargetLayer)
		if err != nil {
			return nil, fmt.Errorf("saliency: %w", err)
		}
		m, err := saliency.Generate(act, grad)
		if err != nil {
			return nil, fmt.Errorf("saliency: %w", err)
		}
		full := saliency.Upsample(m, res.Width, res.Height, p.cfg.Overlay.Interpolation)
		res.Processing.ExplainNs = time.Since(start).Nanoseconds()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start = time.Now()
		res.Visualization = overlay.Render(img, full, p.cfg.Overlay)
		res.Processing.OverlayNs = time.Since(start).Nanoseconds()

		peak, v := m.Peak()
		sx := float64(res.Width) / float64(m.Width)
		sy := float64(res.Height) / float64(m.Height)
		res.Saliency = &full
		res.Explanation = &Explanation{
			Layer:     p.layer,
			PeakX:     int((float64(peak.X) + 0.5) * sx),
			PeakY:     int((float64(peak.Y) + 0.5) * sy),
			PeakValue: v,
			Empty:     m.IsZero(),
		}
	}

	res.Processing.TotalNs = time.Since(total).Nanoseconds()
	p.Profiler.Record(res)

	slog.Debug("Image classified",
		"score", res.Score,
		"decision", res.Decision.String(),
		"explained", res.Explanation != nil,
		"duration_ms", res.Processing.TotalNs/1_000_000)
	return res, nil
}
