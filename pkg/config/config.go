// Package config provides configuration loading and management for
// niftiview. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"niftiview/internal/models"
	"niftiview/pkg/mapping"
)

// Config represents the viewer configuration loaded from YAML.
type Config struct {
	// Display parameters
	Display struct {
		// Convention is the display convention; only "RAS" is implemented.
		Convention string `yaml:"convention"`

		// Plane is the view plane shown at startup (axial, sagittal, coronal).
		Plane string `yaml:"plane"`

		// Colormap names the intensity colormap (gray, hot, cool, viridis).
		Colormap string `yaml:"colormap"`

		// OverlayOpacity weights overlay layers during compositing, in [0,1].
		OverlayOpacity float64 `yaml:"overlayOpacity"`
	} `yaml:"display"`

	// Window parameters for the initial display range
	Window struct {
		// LowPercentile is the intensity percentile mapped to black.
		LowPercentile float64 `yaml:"lowPercentile"`

		// HighPercentile is the intensity percentile mapped to white.
		HighPercentile float64 `yaml:"highPercentile"`
	} `yaml:"window"`

	// Export parameters for saving slices to disk
	Export struct {
		// Scale is the isotropic magnification applied to exported slices.
		Scale float64 `yaml:"scale"`

		// Smooth selects bilinear instead of nearest-neighbor scaling.
		Smooth bool `yaml:"smooth"`

		// Directory is where exported slice images are written.
		Directory string `yaml:"directory"`
	} `yaml:"export"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default display parameters
	cfg.Display.Convention = string(mapping.RAS)
	cfg.Display.Plane = models.Axial.String()
	cfg.Display.Colormap = "gray"
	cfg.Display.OverlayOpacity = 0.5

	// Set default windowing parameters
	cfg.Window.LowPercentile = 2
	cfg.Window.HighPercentile = 98

	// Set default export parameters
	cfg.Export.Scale = 1.0
	cfg.Export.Smooth = false
	cfg.Export.Directory = "slices"

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the viewer cannot honor.
// An unsupported display convention is surfaced as such rather than
// silently approximated.
func (c *Config) Validate() error {
	if mapping.Convention(c.Display.Convention) != mapping.RAS {
		return fmt.Errorf("display convention %q: %w", c.Display.Convention, mapping.ErrUnsupportedConvention)
	}
	if _, err := models.ParseViewPlane(c.Display.Plane); err != nil {
		return fmt.Errorf("invalid display plane: %w", err)
	}
	if c.Display.OverlayOpacity < 0 || c.Display.OverlayOpacity > 1 {
		return fmt.Errorf("overlay opacity %v outside [0,1]", c.Display.OverlayOpacity)
	}
	if c.Window.LowPercentile < 0 || c.Window.HighPercentile > 100 ||
		c.Window.LowPercentile >= c.Window.HighPercentile {
		return fmt.Errorf("invalid percentile window [%v, %v]", c.Window.LowPercentile, c.Window.HighPercentile)
	}
	if c.Export.Scale <= 0 {
		return fmt.Errorf("export scale must be positive, got %v", c.Export.Scale)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
