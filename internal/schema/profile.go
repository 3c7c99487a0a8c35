// Package schema maps abstract funnel concepts (timestamp, user id, date
// filtering, parameter access) onto the concrete columns and units of one
// event-log flavor. A profile is resolved once from the data source and
// every downstream difference between flavors flows through it.
package schema

import (
	"github.com/rotisserie/eris"

	"github.com/pathwise/funnel-cli/internal/funnel"
)

// Unit is the granularity of the event timestamp column.
type Unit int

const (
	// UnitSeconds means a native TIMESTAMP column compared at second
	// granularity.
	UnitSeconds Unit = iota
	// UnitMicros means an integer column of epoch microseconds, the GA4
	// export convention.
	UnitMicros
)

// ParamAccess is how a named event parameter is reached.
type ParamAccess int

const (
	// ParamColumn means parameters are flat columns on the event row.
	ParamColumn ParamAccess = iota
	// ParamNested means parameters live in a repeated key/value record
	// (GA4 event_params) and are read through a subselect over UNNEST.
	ParamNested
)

// Aggregation directs how rendered queries group non-aggregated columns.
type Aggregation int

const (
	// GroupExplicit lists every grouping key explicitly.
	GroupExplicit Aggregation = iota
	// GroupImplicitAll relies on the backend grouping all non-aggregated
	// columns itself (BigQuery GROUP BY ALL). Backends without that
	// shorthand expand it mechanically to an explicit key list.
	GroupImplicitAll
)

// Profile is the column/unit mapping for one data source. Immutable after
// resolution.
type Profile struct {
	Source          funnel.DataSource
	TimestampColumn string
	TimestampUnit   Unit

	// DateColumn names the dedicated date-filter column. Empty means date
	// filtering casts the timestamp column instead.
	DateColumn string
	// DateFormat is the Go layout date literals are rendered with.
	DateFormat string

	UserIDColumn    string
	EventNameColumn string
	ParamAccess     ParamAccess
	Grouping        Aggregation
}

// ForSource resolves the profile for a data source.
func ForSource(src funnel.DataSource) (Profile, error) {
	switch src {
	case funnel.SourceStandard:
		return Profile{
			Source:          funnel.SourceStandard,
			TimestampColumn: "timestamp",
			TimestampUnit:   UnitSeconds,
			DateFormat:      "2006-01-02",
			UserIDColumn:    "user_id",
			EventNameColumn: "event_name",
			ParamAccess:     ParamColumn,
			Grouping:        GroupExplicit,
		}, nil
	case funnel.SourceGA4:
		// GA4 export tables store event_date as a compact string and
		// event_timestamp as epoch microseconds.
		return Profile{
			Source:          funnel.SourceGA4,
			TimestampColumn: "event_timestamp",
			TimestampUnit:   UnitMicros,
			DateColumn:      "event_date",
			DateFormat:      "20060102",
			UserIDColumn:    "user_pseudo_id",
			EventNameColumn: "event_name",
			ParamAccess:     ParamNested,
			Grouping:        GroupImplicitAll,
		}, nil
	}
	return Profile{}, eris.Wrapf(funnel.ErrConfiguration, "schema: no profile for data source %q", src)
}
