package funnel

import "github.com/rotisserie/eris"

// Sentinel errors for the funnel core. Callers classify failures with
// errors.Is; wrap sites attach context with eris.Wrap.
var (
	// ErrValidation is returned for a structurally invalid funnel definition.
	ErrValidation = eris.New("invalid funnel definition")

	// ErrConfiguration is returned for an unknown data source or unusable
	// backend configuration.
	ErrConfiguration = eris.New("invalid funnel configuration")

	// ErrEmptyFunnel is returned when the first step of a result has zero
	// users, leaving conversion rates undefined.
	ErrEmptyFunnel = eris.New("no users entered the funnel")

	// ErrStepNotFound is returned when a requested step label is absent
	// from a funnel result.
	ErrStepNotFound = eris.New("step not found in funnel result")

	// ErrInsufficientData is returned when a significance test has a
	// zero-sample arm or a zero baseline for lift.
	ErrInsufficientData = eris.New("insufficient data for significance test")

	// ErrMissingParameter is returned when a custom query references a
	// placeholder with no bound value.
	ErrMissingParameter = eris.New("missing query parameter")
)
