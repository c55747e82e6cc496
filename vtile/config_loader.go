package vtile

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultExtent is the MVT grid size shared by all layers of a tile
	DefaultExtent = 4096
	// MaxSupportedZoom bounds tile ids to what fits comfortably in uint32 math
	MaxSupportedZoom = 24
)

// DefaultConfig returns a configuration with no layers or rules and the
// engine defaults filled in
func DefaultConfig() *Config {
	return &Config{
		Extent:         DefaultExtent,
		MinZoom:        0,
		MaxZoom:        14,
		SimplifyPixels: 0.5,
		IncludeIDs:     true,
		Coastline: CoastlineConfig{
			Layer: "water",
			Class: "ocean",
		},
	}
}

// LoadConfig loads the configuration from a YAML file. Missing scalar fields
// keep the values of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf("config file not found: %s", path)
		}
		return nil, errors.Wrap(err, "reading config file")
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "parsing config YAML")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "marshaling config YAML")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "writing config file")
	}

	return nil
}

// Validate checks field ranges and rule references
func (c *Config) Validate() error {
	if c.Extent <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "extent must be positive, got %d", c.Extent)
	}
	if c.MinZoom < 0 || c.MaxZoom > MaxSupportedZoom || c.MinZoom > c.MaxZoom {
		return errors.Wrapf(ErrInvalidConfig, "zoom range %d..%d outside 0..%d", c.MinZoom, c.MaxZoom, MaxSupportedZoom)
	}
	if c.SimplifyPixels < 0 {
		return errors.Wrapf(ErrInvalidConfig, "simplifyPixels must not be negative")
	}
	if c.Coastline.Layer == "" {
		return errors.Wrapf(ErrInvalidConfig, "coastline.layer is required")
	}
	if c.Coastline.Class == "" {
		return errors.Wrapf(ErrInvalidConfig, "coastline.class is required")
	}

	seen := make(map[string]bool)
	for i, l := range c.Layers {
		if l.Name == "" {
			return errors.Wrapf(ErrInvalidConfig, "layers[%d].name is required", i)
		}
		if seen[l.Name] {
			return errors.Wrapf(ErrInvalidConfig, "layer %q declared twice", l.Name)
		}
		seen[l.Name] = true
	}

	for i, r := range c.Rules {
		if len(r.Match) == 0 {
			return errors.Wrapf(ErrInvalidConfig, "rules[%d].match is required", i)
		}
		if r.Coastline {
			continue
		}
		if r.Layer == "" {
			return errors.Wrapf(ErrInvalidConfig, "rules[%d].layer is required", i)
		}
		if _, ok := ParseGeometryKind(r.Kind); !ok {
			return errors.Wrapf(ErrInvalidConfig, "rules[%d].kind %q must be point, line or polygon", i, r.Kind)
		}
		if len(c.Layers) > 0 && !seen[r.Layer] {
			return errors.Wrapf(ErrInvalidConfig, "rules[%d] references undeclared layer %q", i, r.Layer)
		}
	}

	return nil
}
