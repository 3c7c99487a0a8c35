// Package export writes conversion and significance reports to CSV or
// XLSX files. Both formats share one column layout per report so the
// output extension changes the container, never the content.
package export

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pathwise/funnel-cli/internal/analysis"
	"github.com/pathwise/funnel-cli/internal/funnel"
)

var conversionColumns = []string{
	"step_index",
	"step_label",
	"users",
	"step_rate",
	"overall_rate",
}

var dropoffColumns = []string{
	"from_step",
	"to_step",
	"entered",
	"completed",
	"dropped",
	"dropoff_rate",
	"share_of_total",
}

var significanceColumns = []string{"metric", "value"}

// WriteConversion writes a conversion report to path, choosing the format
// from the file extension. CSV output carries the step table; XLSX adds a
// second sheet with the per-boundary dropoffs.
func WriteConversion(r *analysis.ConversionReport, path string) error {
	switch ext(path) {
	case ".csv":
		return writeCSV(path, conversionColumns, conversionRows(r))
	case ".xlsx":
		return writeXLSX(path, []sheetData{
			{name: "Steps", header: conversionColumns, rows: conversionRows(r)},
			{name: "Dropoffs", header: dropoffColumns, rows: dropoffRows(r)},
		})
	}
	return unsupported(path)
}

// WriteSegments writes one conversion report per cohort as a single flat
// table with a leading segment column. Cohorts are ordered by name.
func WriteSegments(by map[string]*analysis.ConversionReport, path string) error {
	header := append([]string{"segment"}, conversionColumns...)
	rows := segmentRows(by)

	switch ext(path) {
	case ".csv":
		return writeCSV(path, header, rows)
	case ".xlsx":
		return writeXLSX(path, []sheetData{
			{name: "Segments", header: header, rows: rows},
		})
	}
	return unsupported(path)
}

// WriteSignificance writes an A/B significance report as metric/value pairs.
func WriteSignificance(r *analysis.SignificanceReport, path string) error {
	switch ext(path) {
	case ".csv":
		return writeCSV(path, significanceColumns, significanceRows(r))
	case ".xlsx":
		return writeXLSX(path, []sheetData{
			{name: "Significance", header: significanceColumns, rows: significanceRows(r)},
		})
	}
	return unsupported(path)
}

func conversionRows(r *analysis.ConversionReport) [][]string {
	var first int64
	if len(r.Steps) > 0 {
		first = r.Steps[0].UserCount
	}

	rows := make([][]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		overall := 0.0
		if first > 0 {
			overall = float64(s.UserCount) / float64(first)
		}
		rows = append(rows, []string{
			strconv.Itoa(s.StepIndex),
			s.StepLabel,
			count(s.UserCount),
			f4(s.Rate),
			f4(overall),
		})
	}
	return rows
}

func dropoffRows(r *analysis.ConversionReport) [][]string {
	rows := make([][]string, 0, len(r.Dropoffs))
	for _, d := range r.Dropoffs {
		rows = append(rows, []string{
			d.FromLabel,
			d.ToLabel,
			count(d.Entered),
			count(d.Completed),
			count(d.Dropped),
			f4(d.Rate),
			f4(d.OfTotal),
		})
	}
	return rows
}

func segmentRows(by map[string]*analysis.ConversionReport) [][]string {
	names := make([]string, 0, len(by))
	for name := range by {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows [][]string
	for _, name := range names {
		for _, row := range conversionRows(by[name]) {
			rows = append(rows, append([]string{name}, row...))
		}
	}
	return rows
}

func significanceRows(r *analysis.SignificanceReport) [][]string {
	return [][]string{
		{"first_step", r.FirstStep},
		{"last_step", r.LastStep},
		{"control_users", count(r.ControlUsers)},
		{"control_converted", count(r.ControlConverted)},
		{"control_conversion_pct", f4(r.ControlConversion)},
		{"test_users", count(r.TestUsers)},
		{"test_converted", count(r.TestConverted)},
		{"test_conversion_pct", f4(r.TestConversion)},
		{"absolute_diff_pts", f4(r.AbsoluteDiff)},
		{"relative_lift_pct", f4(r.RelativeLift)},
		{"z_score", f4(r.ZScore)},
		{"p_value", f4(r.PValue)},
		{"confidence", f4(r.Confidence)},
		{"significant", strconv.FormatBool(r.IsSignificant)},
		{"control_interval_lower", f4(r.ControlInterval.Lower)},
		{"control_interval_upper", f4(r.ControlInterval.Upper)},
		{"test_interval_lower", f4(r.TestInterval.Lower)},
		{"test_interval_upper", f4(r.TestInterval.Upper)},
		{"recommendation", r.Recommendation},
	}
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func unsupported(path string) error {
	return eris.Wrapf(funnel.ErrConfiguration,
		"export: unsupported output format %q, use .csv or .xlsx", ext(path))
}

func f4(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func count(v int64) string {
	return strconv.FormatInt(v, 10)
}
