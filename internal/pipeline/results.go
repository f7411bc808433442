package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Output formats shared by the CLI and batch runner.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want text, json or csv)", s)
	}
}

// ToJSON serializes a single Result to pretty JSON.
func ToJSON(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONResults serializes multiple results to a pretty JSON array.
func ToJSONResults(results []*Result) (string, error) {
	if results == nil {
		results = []*Result{}
	}
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToText renders a human-readable summary of res.
func ToText(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var sb strings.Builder
	if res.Source != "" {
		fmt.Fprintf(&sb, "%s\n", res.Source)
	}
	fmt.Fprintf(&sb, "  Organic:    %6.2f%%\n", res.Confidences.Organic)
	fmt.Fprintf(&sb, "  Recyclable: %6.2f%%\n", res.Confidences.Recyclable)
	if res.Decision.IsUncertain() {
		sb.WriteString("  Decision:   Uncertain (feedback requested)\n")
	} else {
		fmt.Fprintf(&sb, "  Decision:   %s\n", res.Decision.Label)
	}
	if e := res.Explanation; e != nil {
		if e.Empty {
			fmt.Fprintf(&sb, "  Saliency:   %s, no discriminative region\n", e.Layer)
		} else {
			fmt.Fprintf(&sb, "  Saliency:   %s, peak at (%d,%d)\n", e.Layer, e.PeakX, e.PeakY)
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

var csvHeader = []string{
	"source", "score", "organic", "recyclable", "decision", "label",
	"feedback_requested", "layer", "peak_x", "peak_y", "total_ms",
}

// ToCSV exports results as CSV with header.
func ToCSV(results []*Result) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(csvHeader)
	for _, r := range results {
		if r == nil {
			continue
		}
		layer, px, py := "", "", ""
		if r.Explanation != nil {
			layer = r.Explanation.Layer
			if !r.Explanation.Empty {
				px, py = strconv.Itoa(r.Explanation.PeakX), strconv.Itoa(r.Explanation.PeakY)
			}
		}
		_ = w.Write([]string{
			r.Source,
			fmt.Sprintf("%.6f", r.Score),
			fmt.Sprintf("%.2f", r.Confidences.Organic),
			fmt.Sprintf("%.2f", r.Confidences.Recyclable),
			string(r.Decision.Kind),
			string(r.Decision.Label),
			strconv.FormatBool(r.FeedbackRequested),
			layer, px, py,
			fmt.Sprintf("%.1f", float64(r.Processing.TotalNs)/1e6),
		})
	}
	w.Flush()
	return buf.String(), w.Error()
}

// Format renders results in the given format.
func Format(results []*Result, format string) (string, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return "", err
	}
	switch f {
	case FormatJSON:
		if len(results) == 1 {
			return ToJSON(results[0])
		}
		return ToJSONResults(results)
	case FormatCSV:
		return ToCSV(results)
	default:
		parts := make([]string, 0, len(results))
		for _, r := range results {
			s, err := ToText(r)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, "\n\n"), nil
	}
}

// ValidateResult performs simple consistency checks.
func ValidateResult(res *Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	if res.Width <= 0 || res.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", res.Width, res.Height)
	}
	if res.Score < 0 || res.Score > 1 {
		return fmt.Errorf("score %v out of range", res.Score)
	}
	if sum := res.Confidences.Organic + res.Confidences.Recyclable; math.Abs(sum-100) > 1e-9 {
		return fmt.Errorf("confidences sum to %v", sum)
	}
	if res.FeedbackRequested != res.Decision.IsUncertain() {
		return errors.New("feedback flag disagrees with decision")
	}
	if res.Saliency != nil {
		if err := res.Saliency.Validate(); err != nil {
			return err
		}
		if res.Saliency.Width != res.Width || res.Saliency.Height != res.Height {
			return errors.New("saliency map does not match image size")
		}
	}
	return nil
}
