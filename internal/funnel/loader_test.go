package funnel

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefinition(t *testing.T) {
	yaml := `
name: product-checkout
source: ga4
window: 24h
date_range:
  start: "2024-01-01"
  end: "2024-01-31"
filters:
  platform: web
segment: device_category
steps:
  - name: session_start
  - name: view_item
    params:
      page_location: "/products/%"
      item_count: 2
  - name: purchase
    params:
      currency: [USD, EUR]
`
	dir := t.TempDir()
	path := filepath.Join(dir, "funnel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	def, err := LoadDefinition(path)
	require.NoError(t, err)

	assert.Equal(t, "product-checkout", def.Name)
	assert.Equal(t, SourceGA4, def.Source)
	assert.Equal(t, 24*time.Hour, def.Window)
	assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 1}, def.Dates.Start)
	assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 31}, def.Dates.End)
	assert.Equal(t, "device_category", def.Segment)
	assert.Equal(t, Equals("web"), def.Filters["platform"])

	require.Len(t, def.Steps, 3)
	assert.Equal(t, "session_start", def.Steps[0].Name)
	assert.Nil(t, def.Steps[0].Params)
	assert.Equal(t, Pattern("/products/%"), def.Steps[1].Params["page_location"])
	assert.Equal(t, Equals("2"), def.Steps[1].Params["item_count"])
	assert.Equal(t, OneOf("USD", "EUR"), def.Steps[2].Params["currency"])
}

func TestLoadDefinition_FileNotFound(t *testing.T) {
	_, err := LoadDefinition("/nonexistent/funnel.yaml")
	assert.Error(t, err)
}

func TestParseDefinition_DefaultSource(t *testing.T) {
	def, err := ParseDefinition([]byte(`
window: 8h
date_range: {start: "2024-03-01", end: "2024-03-07"}
steps:
  - name: signup
  - name: activate
`))
	require.NoError(t, err)
	assert.Equal(t, SourceStandard, def.Source)
}

func TestParseDefinition_Errors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		sentinel error
	}{
		{
			name: "missing window",
			yaml: `
date_range: {start: "2024-03-01", end: "2024-03-07"}
steps: [{name: a}, {name: b}]
`,
			sentinel: ErrValidation,
		},
		{
			name: "bad start date",
			yaml: `
window: 8h
date_range: {start: "03/01/2024", end: "2024-03-07"}
steps: [{name: a}, {name: b}]
`,
			sentinel: ErrValidation,
		},
		{
			name: "single step",
			yaml: `
window: 8h
date_range: {start: "2024-03-01", end: "2024-03-07"}
steps: [{name: a}]
`,
			sentinel: ErrValidation,
		},
		{
			name: "unknown source",
			yaml: `
source: snowplow
window: 8h
date_range: {start: "2024-03-01", end: "2024-03-07"}
steps: [{name: a}, {name: b}]
`,
			sentinel: ErrConfiguration,
		},
		{
			name: "empty step param",
			yaml: `
window: 8h
date_range: {start: "2024-03-01", end: "2024-03-07"}
steps:
  - name: a
    params:
      page: []
  - name: b
`,
			sentinel: ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel))
		})
	}
}

func TestParseDefinition_BadYAML(t *testing.T) {
	_, err := ParseDefinition([]byte("steps: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse definition")
}
