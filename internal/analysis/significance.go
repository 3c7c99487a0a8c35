package analysis

import (
	"github.com/rotisserie/eris"

	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/stats"
)

// SignificanceReport is the outcome of a two-proportion comparison between
// the control and test arms of an experiment.
type SignificanceReport struct {
	FirstStep string
	LastStep  string

	ControlUsers     int64
	ControlConverted int64
	TestUsers        int64
	TestConverted    int64

	// ControlConversion and TestConversion are percentages.
	ControlConversion float64
	TestConversion    float64
	// AbsoluteDiff is test minus control, in percentage points.
	AbsoluteDiff float64
	// RelativeLift is (test - control) / control, as a percentage.
	RelativeLift float64

	ZScore        float64
	PValue        float64
	Confidence    float64
	IsSignificant bool

	// Wilson score intervals over each arm's conversion, as fractions.
	ControlInterval stats.Interval
	TestInterval    stats.Interval

	Recommendation string
}

// Significance compares conversion between two funnel results over a chosen
// step pair. Steps are looked up by label, not position. Conversion per arm
// is count(lastStep)/count(firstStep); the verdict holds when the
// two-tailed p-value falls below 1 - confidence.
func Significance(control, test funnel.FunnelResult, firstStep, lastStep string, confidence float64) (*SignificanceReport, error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, eris.Wrapf(funnel.ErrValidation, "analysis: confidence level %v outside (0, 1)", confidence)
	}

	cFirst, ok := control.Lookup(firstStep)
	if !ok {
		return nil, eris.Wrapf(funnel.ErrStepNotFound, "analysis: step %q missing from control result", firstStep)
	}
	cLast, ok := control.Lookup(lastStep)
	if !ok {
		return nil, eris.Wrapf(funnel.ErrStepNotFound, "analysis: step %q missing from control result", lastStep)
	}
	tFirst, ok := test.Lookup(firstStep)
	if !ok {
		return nil, eris.Wrapf(funnel.ErrStepNotFound, "analysis: step %q missing from test result", firstStep)
	}
	tLast, ok := test.Lookup(lastStep)
	if !ok {
		return nil, eris.Wrapf(funnel.ErrStepNotFound, "analysis: step %q missing from test result", lastStep)
	}

	n1, x1 := cFirst.UserCount, cLast.UserCount
	n2, x2 := tFirst.UserCount, tLast.UserCount
	if n1 <= 0 {
		return nil, eris.Wrap(funnel.ErrInsufficientData, "analysis: control arm has no users")
	}
	if n2 <= 0 {
		return nil, eris.Wrap(funnel.ErrInsufficientData, "analysis: test arm has no users")
	}

	p1 := float64(x1) / float64(n1)
	p2 := float64(x2) / float64(n2)
	if p1 == 0 {
		return nil, eris.Wrap(funnel.ErrInsufficientData, "analysis: control conversion is zero, lift undefined")
	}

	zt := stats.TwoProportionTest(x1, n1, x2, n2)

	report := &SignificanceReport{
		FirstStep:         firstStep,
		LastStep:          lastStep,
		ControlUsers:      n1,
		ControlConverted:  x1,
		TestUsers:         n2,
		TestConverted:     x2,
		ControlConversion: p1 * 100,
		TestConversion:    p2 * 100,
		AbsoluteDiff:      (p2 - p1) * 100,
		RelativeLift:      (p2 - p1) / p1 * 100,
		ZScore:            zt.Z,
		PValue:            zt.P,
		Confidence:        confidence,
		IsSignificant:     zt.P < 1-confidence,
		ControlInterval:   stats.Wilson(x1, n1, confidence),
		TestInterval:      stats.Wilson(x2, n2, confidence),
	}
	report.Recommendation = recommend(report)
	return report, nil
}

func recommend(r *SignificanceReport) string {
	switch {
	case r.IsSignificant && r.RelativeLift > 0:
		return "Statistically significant improvement; roll out the test variant."
	case r.IsSignificant && r.RelativeLift < 0:
		return "Statistically significant decline; keep the control variant."
	default:
		return "No statistically significant difference; keep the experiment running or test a bigger change."
	}
}
