package funnel

import (
	"os"

	"cloud.google.com/go/civil"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// definitionFile is the YAML wire form of a funnel definition. Dates and
// the window are kept as strings and parsed explicitly; parameter values
// stay untyped until ParseMatch classifies them.
type definitionFile struct {
	Name      string `yaml:"name"`
	Source    string `yaml:"source"`
	Window    string `yaml:"window"`
	DateRange struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"date_range"`
	Filters map[string]any `yaml:"filters"`
	Segment string         `yaml:"segment"`
	Steps   []struct {
		Name   string         `yaml:"name"`
		Params map[string]any `yaml:"params"`
	} `yaml:"steps"`
}

// LoadDefinition reads a funnel definition from a YAML file and validates it.
func LoadDefinition(path string) (*FunnelDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "funnel: read definition %s", path)
	}
	return ParseDefinition(data)
}

// ParseDefinition parses and validates a YAML funnel definition.
func ParseDefinition(data []byte) (*FunnelDefinition, error) {
	var file definitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "funnel: parse definition")
	}

	if file.Source == "" {
		file.Source = string(SourceStandard)
	}
	source, err := ParseSource(file.Source)
	if err != nil {
		return nil, err
	}
	if file.Window == "" {
		return nil, eris.Wrap(ErrValidation, "funnel: definition has no window")
	}
	window, err := ParseWindow(file.Window)
	if err != nil {
		return nil, err
	}
	start, err := civil.ParseDate(file.DateRange.Start)
	if err != nil {
		return nil, eris.Wrapf(ErrValidation, "funnel: parse start date %q", file.DateRange.Start)
	}
	end, err := civil.ParseDate(file.DateRange.End)
	if err != nil {
		return nil, eris.Wrapf(ErrValidation, "funnel: parse end date %q", file.DateRange.End)
	}

	def := &FunnelDefinition{
		Name:    file.Name,
		Source:  source,
		Dates:   DateRange{Start: start, End: end},
		Window:  window,
		Segment: file.Segment,
	}

	if len(file.Filters) > 0 {
		def.Filters = make(map[string]MatchValue, len(file.Filters))
		for key, raw := range file.Filters {
			match, err := ParseMatch(raw)
			if err != nil {
				return nil, eris.Wrapf(err, "funnel: filter %q", key)
			}
			def.Filters[key] = match
		}
	}

	def.Steps = make([]EventStep, 0, len(file.Steps))
	for i, raw := range file.Steps {
		step := EventStep{Name: raw.Name}
		if len(raw.Params) > 0 {
			step.Params = make(map[string]MatchValue, len(raw.Params))
			for key, value := range raw.Params {
				match, err := ParseMatch(value)
				if err != nil {
					return nil, eris.Wrapf(err, "funnel: step %d param %q", i, key)
				}
				step.Params[key] = match
			}
		}
		def.Steps = append(def.Steps, step)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
