// Package confidence turns a raw classifier score into class confidences and
// a decision, deferring to a human inside the uncertainty deadband.
package confidence

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Label is one of the two waste categories.
type Label string

const (
	Organic    Label = "Organic"
	Recyclable Label = "Recyclable"
)

// Kind tags a Decision.
type Kind string

const (
	KindConfident Kind = "confident"
	KindUncertain Kind = "uncertain"
)

// Default deadband bounds (inclusive).
const (
	DefaultLow  = 0.40
	DefaultHigh = 0.60
)

// Pair holds per-class confidences in percent. Organic + Recyclable == 100.
type Pair struct {
	Organic    float64 `json:"organic"`
	Recyclable float64 `json:"recyclable"`
}

// Decision is either Confident(Label) or Uncertain.
type Decision struct {
	Kind  Kind
	Label Label
}

// Confident returns a confident decision for label.
func Confident(label Label) Decision {
	return Decision{Kind: KindConfident, Label: label}
}

// Uncertain returns the deferred decision.
func Uncertain() Decision {
	return Decision{Kind: KindUncertain}
}

// IsUncertain reports whether the decision was deferred.
func (d Decision) IsUncertain() bool {
	return d.Kind == KindUncertain
}

// NeedsFeedback reports whether the user should be asked for the correct label.
func (d Decision) NeedsFeedback() bool {
	return d.IsUncertain()
}

// DisposalKey returns the guidance key for a confident decision, "" otherwise.
func (d Decision) DisposalKey() string {
	switch {
	case d.IsUncertain():
		return ""
	case d.Label == Organic:
		return "organic"
	case d.Label == Recyclable:
		return "recyclable"
	default:
		return ""
	}
}

func (d Decision) String() string {
	if d.IsUncertain() {
		return "Uncertain"
	}
	return fmt.Sprintf("Confident(%s)", d.Label)
}

type decisionJSON struct {
	Kind  Kind  `json:"kind"`
	Label Label `json:"label,omitempty"`
}

// MarshalJSON encodes {"kind":"confident","label":"Organic"} or {"kind":"uncertain"}.
func (d Decision) MarshalJSON() ([]byte, error) {
	out := decisionJSON{Kind: d.Kind}
	if !d.IsUncertain() {
		out.Label = d.Label
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var in decisionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case KindUncertain:
		*d = Uncertain()
	case KindConfident:
		if in.Label != Organic && in.Label != Recyclable {
			return fmt.Errorf("invalid label %q", in.Label)
		}
		*d = Confident(in.Label)
	default:
		return fmt.Errorf("invalid decision kind %q", in.Kind)
	}
	return nil
}

// ParseLabel accepts "organic"/"recyclable" in any case.
func ParseLabel(s string) (Label, error) {
	switch {
	case strings.EqualFold(s, string(Organic)):
		return Organic, nil
	case strings.EqualFold(s, string(Recyclable)):
		return Recyclable, nil
	default:
		return "", fmt.Errorf("unknown label %q (want Organic or Recyclable)", s)
	}
}

// Thresholds bounds the inclusive uncertainty deadband.
type Thresholds struct {
	Low  float64
	High float64
}

// DefaultThresholds returns [0.40, 0.60].
func DefaultThresholds() Thresholds {
	return Thresholds{Low: DefaultLow, High: DefaultHigh}
}

// Validate requires 0 <= Low <= High <= 1.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.Low) || math.IsNaN(t.High) || t.Low < 0 || t.High > 1 || t.Low > t.High {
		return fmt.Errorf("invalid deadband [%.4f, %.4f] (need 0 <= low <= high <= 1)", t.Low, t.High)
	}
	return nil
}

// Evaluator maps scores to confidences and decisions.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator validates t and returns an Evaluator.
func NewEvaluator(t Thresholds) (*Evaluator, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{thresholds: t}, nil
}

// DefaultEvaluator uses the default deadband.
func DefaultEvaluator() *Evaluator {
	return &Evaluator{thresholds: DefaultThresholds()}
}

// Thresholds returns the deadband in use.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate returns the confidence pair and decision for score.
// Out-of-range scores are clamped to [0,1]; NaN is treated as 0.5.
func (e *Evaluator) Evaluate(score float64) (Pair, Decision) {
	s := Clamp(score)
	pair := Pair{Organic: (1 - s) * 100, Recyclable: s * 100}

	if e.thresholds.Low <= s && s <= e.thresholds.High {
		return pair, Uncertain()
	}
	// 0.5 outside the band resolves to Recyclable.
	if s < 0.5 {
		return pair, Confident(Organic)
	}
	return pair, Confident(Recyclable)
}

// Clamp limits score to [0,1] and maps NaN to 0.5.
func Clamp(score float64) float64 {
	switch {
	case math.IsNaN(score):
		return 0.5
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
