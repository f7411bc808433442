package pipeline

import (
	"sync/atomic"
)

// Profiler aggregates simple counters/timers across multiple runs.
type Profiler struct {
	PreprocessTimeNs atomic.Int64
	InferenceTimeNs  atomic.Int64
	ExplainTimeNs    atomic.Int64
	ImagesProcessed  atomic.Int64
	Organic          atomic.Int64
	Recyclable       atomic.Int64
	Uncertain        atomic.Int64
}

// Record adds one result.
func (p *Profiler) Record(res *Result) {
	if p == nil || res == nil {
		return
	}
	p.PreprocessTimeNs.Add(res.Processing.PreprocessNs)
	p.InferenceTimeNs.Add(res.Processing.InferenceNs)
	p.ExplainTimeNs.Add(res.Processing.ExplainNs + res.Processing.OverlayNs)
	p.ImagesProcessed.Add(1)
	switch res.DisposalKey {
	case "organic":
		p.Organic.Add(1)
	case "recyclable":
		p.Recyclable.Add(1)
	default:
		p.Uncertain.Add(1)
	}
}

// Snapshot returns cumulative metrics in milliseconds for readability.
func (p *Profiler) Snapshot() map[string]any {
	imgs := p.ImagesProcessed.Load()
	pre := p.PreprocessTimeNs.Load()
	inf := p.InferenceTimeNs.Load()
	exp := p.ExplainTimeNs.Load()
	out := map[string]any{
		"images":           imgs,
		"organic":          p.Organic.Load(),
		"recyclable":       p.Recyclable.Load(),
		"uncertain":        p.Uncertain.Load(),
		"pre_ms_total":     pre / 1_000_000,
		"infer_ms_total":   inf / 1_000_000,
		"explain_ms_total": exp / 1_000_000,
	}
	if imgs > 0 {
		out["infer_ms_per_image"] = float64(inf) / 1_000_000.0 / float64(imgs)
		out["explain_ms_per_image"] = float64(exp) / 1_000_000.0 / float64(imgs)
	}
	return out
}
