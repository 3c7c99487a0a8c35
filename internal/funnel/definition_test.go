package funnel

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition() *FunnelDefinition {
	return &FunnelDefinition{
		Name:   "checkout",
		Source: SourceStandard,
		Steps: []EventStep{
			{Name: "view_item"},
			{Name: "add_to_cart", Params: map[string]MatchValue{"category": Equals("shoes")}},
			{Name: "purchase"},
		},
		Filters: map[string]MatchValue{"platform": Equals("web")},
		Dates: DateRange{
			Start: civil.Date{Year: 2024, Month: 1, Day: 1},
			End:   civil.Date{Year: 2024, Month: 1, Day: 31},
		},
		Window: 24 * time.Hour,
	}
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		in      string
		want    DataSource
		wantErr bool
	}{
		{"standard", SourceStandard, false},
		{"ga4", SourceGA4, false},
		{"GA4", SourceGA4, false},
		{"  standard ", SourceStandard, false},
		{"bigtable", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSource(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			assert.True(t, errors.Is(err, ErrConfiguration))
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestDefinitionValidate_OK(t *testing.T) {
	def := validDefinition()
	require.NoError(t, def.Validate())
}

func TestDefinitionValidate_TooFewSteps(t *testing.T) {
	def := validDefinition()
	def.Steps = def.Steps[:1]
	err := def.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "at least 2 steps")
}

func TestDefinitionValidate_UnnamedStep(t *testing.T) {
	def := validDefinition()
	def.Steps[1].Name = "  "
	err := def.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "step 1")
}

func TestDefinitionValidate_Window(t *testing.T) {
	def := validDefinition()
	def.Window = 0
	assert.True(t, errors.Is(def.Validate(), ErrValidation))

	def.Window = -time.Hour
	assert.True(t, errors.Is(def.Validate(), ErrValidation))
}

func TestDefinitionValidate_ReversedDates(t *testing.T) {
	def := validDefinition()
	def.Dates.Start, def.Dates.End = def.Dates.End, def.Dates.Start
	err := def.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "ends before it starts")
}

func TestDefinitionValidate_BadSource(t *testing.T) {
	def := validDefinition()
	def.Source = "snowplow"
	assert.True(t, errors.Is(def.Validate(), ErrConfiguration))
}

func TestDateRangeValidate_ZeroDate(t *testing.T) {
	r := DateRange{End: civil.Date{Year: 2024, Month: 2, Day: 1}}
	err := r.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestABTestConfigValidate(t *testing.T) {
	cfg := ABTestConfig{Table: "proj.ds.sessions", TestCode: "CHECKOUT24", UserIDColumn: "googleID"}
	require.NoError(t, cfg.Validate())

	for _, broken := range []ABTestConfig{
		{TestCode: "CHECKOUT24", UserIDColumn: "googleID"},
		{Table: "proj.ds.sessions", UserIDColumn: "googleID"},
		{Table: "proj.ds.sessions", TestCode: "CHECKOUT24"},
	} {
		err := broken.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfiguration))
	}
}
