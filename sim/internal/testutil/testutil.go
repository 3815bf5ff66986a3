// Package testutil provides shared test infrastructure for the epidemic
// simulator: reference parameters and float assertion helpers used across
// sim/ and cmd/ test packages.
package testutil

import (
	"math"
	"testing"
)

// Reference scenario: the parameters the model was calibrated against.
const (
	RefPopulation      = 10000.0
	RefInitialInfected = 10.0
	RefBeta            = 0.35
	RefGamma           = 0.1
	RefStopTime        = 200.0
	RefSampleCount     = 500
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertNonIncreasing fails if any element exceeds its predecessor by more
// than slack.
func AssertNonIncreasing(t *testing.T, name string, xs []float64, slack float64) {
	t.Helper()
	for k := 1; k < len(xs); k++ {
		if xs[k] > xs[k-1]+slack {
			t.Errorf("%s: increased at %d: %v -> %v", name, k, xs[k-1], xs[k])
			return
		}
	}
}

// AssertNonDecreasing fails if any element is below its predecessor by more
// than slack.
func AssertNonDecreasing(t *testing.T, name string, xs []float64, slack float64) {
	t.Helper()
	for k := 1; k < len(xs); k++ {
		if xs[k] < xs[k-1]-slack {
			t.Errorf("%s: decreased at %d: %v -> %v", name, k, xs[k-1], xs[k])
			return
		}
	}
}
