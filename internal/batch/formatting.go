package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/wastelens/internal/pipeline"
)

type jsonImage struct {
	File   string           `json:"file"`
	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

type jsonBatch struct {
	Images  []jsonImage `json:"images"`
	Summary Summary     `json:"summary"`
}

// formatBatchResults renders r in the given format. CSV rows cover
// successful images only.
func formatBatchResults(r *Result, format string) (string, error) {
	f, err := pipeline.ParseFormat(format)
	if err != nil {
		return "", err
	}
	switch f {
	case pipeline.FormatJSON:
		return formatJSON(r)
	case pipeline.FormatCSV:
		return pipeline.ToCSV(r.Succeeded())
	default:
		return formatText(r)
	}
}

func formatJSON(r *Result) (string, error) {
	out := jsonBatch{Images: make([]jsonImage, len(r.ImagePaths)), Summary: r.Summary()}
	failed := failureIndex(r.Failures)
	for i, path := range r.ImagePaths {
		out.Images[i] = jsonImage{File: path, Error: failed[path]}
		if i < len(r.Results) {
			out.Images[i].Result = r.Results[i]
		}
	}
	bts, err := json.MarshalIndent(out, "", "  ")
	return string(bts), err
}

func formatText(r *Result) (string, error) {
	failed := failureIndex(r.Failures)
	var output strings.Builder
	for i, path := range r.ImagePaths {
		if i > 0 {
			output.WriteString("\n\n")
		}
		var res *pipeline.Result
		if i < len(r.Results) {
			res = r.Results[i]
		}
		if res == nil {
			fmt.Fprintf(&output, "%s\n  Error: %s", path, failed[path])
			continue
		}
		text, err := pipeline.ToText(res)
		if err != nil {
			return "", err
		}
		output.WriteString(text)
	}
	s := r.Summary()
	fmt.Fprintf(&output, "\n\nSummary: %d organic, %d recyclable, %d uncertain, %d failed",
		s.Organic, s.Recyclable, s.Uncertain, s.Failed)
	return strings.TrimLeft(output.String(), "\n"), nil
}

func failureIndex(failures []Failure) map[string]string {
	m := make(map[string]string, len(failures))
	for _, f := range failures {
		m[f.File] = f.Error
	}
	return m
}
