package confidence

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEvaluate_ConfidencesSumTo100(t *testing.T) {
	properties := gopter.NewProperties(nil)
	e := DefaultEvaluator()

	properties.Property("organic + recyclable == 100", prop.ForAll(
		func(score float64) bool {
			pair, _ := e.Evaluate(score)
			return math.Abs(pair.Organic+pair.Recyclable-100) < 1e-9
		},
		gen.Float64Range(0, 1),
	))

	properties.Property("recyclable == score * 100", prop.ForAll(
		func(score float64) bool {
			pair, _ := e.Evaluate(score)
			return math.Abs(pair.Recyclable-score*100) < 1e-9
		},
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestEvaluate_DecisionMatchesPolicy(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("decision follows the inclusive deadband", prop.ForAll(
		func(low, width, score float64) bool {
			high := math.Min(low+width, 1)
			e, err := NewEvaluator(Thresholds{Low: low, High: high})
			if err != nil {
				return false
			}
			_, d := e.Evaluate(score)
			switch {
			case low <= score && score <= high:
				return d == Uncertain()
			case score < 0.5:
				return d == Confident(Organic)
			default:
				return d == Confident(Recyclable)
			}
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 0.5),
		gen.Float64Range(0, 1),
	))

	properties.Property("confidences stay within [0,100] for any input", prop.ForAll(
		func(score float64) bool {
			pair, _ := DefaultEvaluator().Evaluate(score)
			return pair.Organic >= 0 && pair.Organic <= 100 && pair.Recyclable >= 0 && pair.Recyclable <= 100
		},
		gen.Float64Range(-10, 10),
	))

	properties.TestingRun(t)
}
