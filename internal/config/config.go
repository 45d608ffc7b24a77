package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/reelframe/internal/composer"
)

// ErrInvalid wraps every configuration validation failure so callers can
// distinguish bad config from processing errors with errors.Is.
var ErrInvalid = errors.New("config: invalid")

// Config holds every tunable of the reframing pipeline. Zero values are
// filled by Default; a YAML file overrides defaults, CLI flags override
// the file.
type Config struct {
	// Output geometry
	TargetWidth int    `yaml:"target_width"`
	Layout      string `yaml:"layout"`

	// Tracking and smoothing
	SmoothingStrength  float64 `yaml:"smoothing_strength"`
	TickIntervalFrames int     `yaml:"tick_interval_frames"`
	HysteresisTicks    int     `yaml:"hysteresis_ticks"`
	MinSegmentDuration float64 `yaml:"min_segment_duration"`

	// ZeroFace panning
	PanCycleDuration float64 `yaml:"pan_cycle_duration"`
	PanLeftBound     float64 `yaml:"pan_left_bound"`
	PanRightBound    float64 `yaml:"pan_right_bound"`

	// Stacked layout content
	SecondaryContent string `yaml:"secondary_content"`
	CaptionText      string `yaml:"caption_text"`

	// Output timing
	FPS float64 `yaml:"fps"`

	// Batch processing; 0 workers means size from the host
	Workers int `yaml:"workers"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the stock configuration
func Default() *Config {
	return &Config{
		TargetWidth:        1080,
		Layout:             string(composer.LayoutVertical),
		SmoothingStrength:  0.5,
		TickIntervalFrames: 4,
		HysteresisTicks:    2,
		MinSegmentDuration: 1.0,
		PanCycleDuration:   8.0,
		PanLeftBound:       0.15,
		PanRightBound:      0.85,
		FPS:                30,
		LogLevel:           "info",
		LogFormat:          "console",
	}
}

// Load reads a YAML config file over the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

// Validate rejects bad configuration before any processing starts.
func (c *Config) Validate() error {
	if c.TargetWidth <= 0 {
		return fmt.Errorf("%w: target_width must be > 0, got %d", ErrInvalid, c.TargetWidth)
	}
	if _, err := composer.ParseLayout(c.Layout); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.SmoothingStrength < 0 || c.SmoothingStrength > 1 {
		return fmt.Errorf("%w: smoothing_strength must be in [0,1], got %g", ErrInvalid, c.SmoothingStrength)
	}
	if c.TickIntervalFrames < 1 {
		return fmt.Errorf("%w: tick_interval_frames must be >= 1, got %d", ErrInvalid, c.TickIntervalFrames)
	}
	if c.HysteresisTicks < 1 {
		return fmt.Errorf("%w: hysteresis_ticks must be >= 1, got %d", ErrInvalid, c.HysteresisTicks)
	}
	if c.MinSegmentDuration < 0 {
		return fmt.Errorf("%w: min_segment_duration must be >= 0, got %g", ErrInvalid, c.MinSegmentDuration)
	}
	if c.PanCycleDuration <= 0 {
		return fmt.Errorf("%w: pan_cycle_duration must be > 0, got %g", ErrInvalid, c.PanCycleDuration)
	}
	if c.PanLeftBound < 0 || c.PanRightBound > 1 || c.PanLeftBound >= c.PanRightBound {
		return fmt.Errorf("%w: pan bounds must satisfy 0 <= left < right <= 1, got [%g, %g]",
			ErrInvalid, c.PanLeftBound, c.PanRightBound)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("%w: fps must be > 0, got %g", ErrInvalid, c.FPS)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalid, c.Workers)
	}
	return nil
}

// ParsedLayout returns the validated layout value
func (c *Config) ParsedLayout() composer.Layout {
	l, err := composer.ParseLayout(c.Layout)
	if err != nil {
		return composer.LayoutVertical
	}
	return l
}
