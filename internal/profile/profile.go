// Package profile loads reusable YAML import profiles so repeat imports of
// the same source layout skip manual column mapping.
package profile

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/mapyard/marker-ingest/internal/model"
	"github.com/mapyard/marker-ingest/internal/tabular"
)

// Profile describes one source layout: where the marker fields live, how the
// file is shaped, and defaults for the markers it produces.
type Profile struct {
	Name     string         `yaml:"name"`
	Mapping  MappingConfig  `yaml:"mapping"`
	Source   SourceConfig   `yaml:"source"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// MappingConfig names the source columns backing each marker field.
type MappingConfig struct {
	Name    string `yaml:"name" validate:"required"`
	Address string `yaml:"address"`
	Lat     string `yaml:"lat"`
	Lng     string `yaml:"lng"`
}

// SourceConfig describes the file shape.
type SourceConfig struct {
	Delimiter string `yaml:"delimiter" validate:"omitempty,len=1"`
	Sheet     string `yaml:"sheet"`
	NoHeader  bool   `yaml:"no_header"`
	Charset   string `yaml:"charset"`
}

// DefaultsConfig is applied to every marker the import creates.
type DefaultsConfig struct {
	MarkerType string   `yaml:"marker_type" validate:"omitempty,oneof=other food lodging shop office landmark transit"`
	Tags       []string `yaml:"tags"`
	GroupHint  string   `yaml:"group_hint"`
}

// Load reads and validates a profile file. Omitted defaults are filled in
// before validation.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read %s", path)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "profile: parse %s", path)
	}

	if p.Defaults.MarkerType == "" {
		p.Defaults.MarkerType = model.DefaultMarkerType
	}

	if err := p.Validate(); err != nil {
		return nil, eris.Wrapf(err, "profile: validate %s", path)
	}
	return &p, nil
}

// Validate checks the profile against its struct tags.
func (p *Profile) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}

// ColumnMapping converts the mapping section to the pipeline's form.
func (p *Profile) ColumnMapping() model.ColumnMapping {
	return model.ColumnMapping{
		Name:    p.Mapping.Name,
		Address: p.Mapping.Address,
		Lat:     p.Mapping.Lat,
		Lng:     p.Mapping.Lng,
	}
}

// TabularOptions converts the source section to loader options.
func (p *Profile) TabularOptions() tabular.Options {
	opts := tabular.Options{
		Charset:  p.Source.Charset,
		Sheet:    p.Source.Sheet,
		NoHeader: p.Source.NoHeader,
	}
	if p.Source.Delimiter != "" {
		opts.Delimiter = []rune(p.Source.Delimiter)[0]
	}
	return opts
}
