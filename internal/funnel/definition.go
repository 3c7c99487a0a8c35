// Package funnel holds the core data model for funnel analytics: ordered
// event steps, match constraints, date ranges and per-step results. The
// model is backend-agnostic; compilation to SQL lives in internal/plan and
// internal/sqlgen.
package funnel

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rotisserie/eris"
)

// DataSource selects the event-log schema family a funnel runs against.
type DataSource string

const (
	// SourceStandard is a flat event table: one row per event, parameters
	// as plain columns, a TIMESTAMP column at second granularity.
	SourceStandard DataSource = "standard"
	// SourceGA4 is a GA4 export table: microsecond integer timestamps, a
	// dedicated event_date column and nested event_params.
	SourceGA4 DataSource = "ga4"
)

// ParseSource parses a data source name.
func ParseSource(s string) (DataSource, error) {
	switch DataSource(strings.ToLower(strings.TrimSpace(s))) {
	case SourceStandard:
		return SourceStandard, nil
	case SourceGA4:
		return SourceGA4, nil
	}
	return "", eris.Wrapf(ErrConfiguration, "funnel: unknown data source %q", s)
}

// EventStep is one ordered step of a funnel: a required event name plus
// optional parameter constraints an event must satisfy to qualify.
type EventStep struct {
	Name   string
	Params map[string]MatchValue
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start civil.Date
	End   civil.Date
}

// Validate checks that both endpoints are real dates in order.
func (r DateRange) Validate() error {
	if !r.Start.IsValid() {
		return eris.Wrapf(ErrValidation, "funnel: invalid start date %v", r.Start)
	}
	if !r.End.IsValid() {
		return eris.Wrapf(ErrValidation, "funnel: invalid end date %v", r.End)
	}
	if r.End.Before(r.Start) {
		return eris.Wrapf(ErrValidation, "funnel: date range %v..%v ends before it starts", r.Start, r.End)
	}
	return nil
}

// FunnelDefinition is the user-authored description of a funnel. It is
// validated once at entry and treated as immutable afterwards.
type FunnelDefinition struct {
	Name    string
	Source  DataSource
	Steps   []EventStep
	Filters map[string]MatchValue
	Dates   DateRange
	Window  time.Duration

	// Segment optionally names an event column to break results down by.
	// Users are attributed to the segment value of their entry event.
	Segment string
}

// Validate checks the definition eagerly so later stages can assume a
// well-formed funnel. Steps must be ordered, named and at least two deep;
// the window must be positive; the date range must be real.
func (d *FunnelDefinition) Validate() error {
	if len(d.Steps) < 2 {
		return eris.Wrapf(ErrValidation, "funnel: need at least 2 steps, got %d", len(d.Steps))
	}
	for i, step := range d.Steps {
		if strings.TrimSpace(step.Name) == "" {
			return eris.Wrapf(ErrValidation, "funnel: step %d has no event name", i)
		}
		for key := range step.Params {
			if strings.TrimSpace(key) == "" {
				return eris.Wrapf(ErrValidation, "funnel: step %d has an unnamed parameter", i)
			}
		}
	}
	for key := range d.Filters {
		if strings.TrimSpace(key) == "" {
			return eris.Wrap(ErrValidation, "funnel: unnamed global filter")
		}
	}
	if d.Window <= 0 {
		return eris.Wrapf(ErrValidation, "funnel: window must be positive, got %s", d.Window)
	}
	if err := d.Dates.Validate(); err != nil {
		return err
	}
	if _, err := ParseSource(string(d.Source)); err != nil {
		return err
	}
	return nil
}

// ABTestConfig locates the arm-assignment table for an experiment. Session
// rows carry a group code of the form "<testCode>-A" (control) or
// "<testCode>-B" (test); users mapping to more than one arm are excluded.
type ABTestConfig struct {
	Table        string
	TestCode     string
	UserIDColumn string
}

// Validate checks that the assignment table is fully identified.
func (c ABTestConfig) Validate() error {
	if strings.TrimSpace(c.Table) == "" {
		return eris.Wrap(ErrConfiguration, "funnel: ab test assignment table required")
	}
	if strings.TrimSpace(c.TestCode) == "" {
		return eris.Wrap(ErrConfiguration, "funnel: ab test code required")
	}
	if strings.TrimSpace(c.UserIDColumn) == "" {
		return eris.Wrap(ErrConfiguration, "funnel: ab test user id column required")
	}
	return nil
}
