package stats

import "math"

// TwoProportion is the outcome of a pooled two-proportion z-test.
type TwoProportion struct {
	// Z is (p1 - p2) / SE under the pooled null hypothesis.
	Z float64
	// P is the two-tailed p-value implied by Z.
	P float64
}

// TwoProportionTest compares x1 successes in n1 trials against x2 in n2
// using a pooled standard error. Zero-sample or zero-variance inputs
// degenerate to z=0, p=1; callers that consider those an error screen them
// out first.
func TwoProportionTest(x1, n1, x2, n2 int64) TwoProportion {
	if n1 == 0 || n2 == 0 {
		return TwoProportion{Z: 0, P: 1}
	}

	p1 := float64(x1) / float64(n1)
	p2 := float64(x2) / float64(n2)
	pooled := float64(x1+x2) / float64(n1+n2)

	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(n1) + 1/float64(n2)))
	if se == 0 {
		return TwoProportion{Z: 0, P: 1}
	}

	z := (p1 - p2) / se
	return TwoProportion{
		Z: z,
		P: 2 * (1 - NormalCDF(math.Abs(z))),
	}
}

// Interval is a two-sided confidence interval over a proportion.
type Interval struct {
	Lower float64
	Upper float64
}

// Wilson returns the Wilson score interval for x successes in n trials at
// the given confidence level. More accurate than the normal approximation
// at small n; bounds are clamped to [0, 1].
func Wilson(x, n int64, confidence float64) Interval {
	if n == 0 {
		return Interval{}
	}

	z := CriticalZ(confidence)
	p := float64(x) / float64(n)
	nf := float64(n)

	denom := 1 + z*z/nf
	center := (p + z*z/(2*nf)) / denom
	spread := (z / denom) * math.Sqrt(p*(1-p)/nf+z*z/(4*nf*nf))

	return Interval{
		Lower: math.Max(0, center-spread),
		Upper: math.Min(1, center+spread),
	}
}
