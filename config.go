package backdrop

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Density scales every preset's base particle count.
type Density string

const (
	DensityHigh   Density = "high"
	DensityNormal Density = "normal"
	DensityLow    Density = "low"
)

func (d Density) Multiplier() float64 {
	switch d {
	case DensityHigh:
		return 1.5
	case DensityLow:
		return 0.6
	}
	return 1.0
}

// MotionIntensity scales oscillation amplitudes.
type MotionIntensity string

const (
	MotionHigh   MotionIntensity = "high"
	MotionNormal MotionIntensity = "normal"
	MotionLow    MotionIntensity = "low"
)

// WaveScale applies to wave amplitude and rotation speed.
func (m MotionIntensity) WaveScale() float64 {
	switch m {
	case MotionHigh:
		return 1.5
	case MotionLow:
		return 0.6
	}
	return 1.0
}

// PulseScale applies to pulse amplitude.
func (m MotionIntensity) PulseScale() float64 {
	switch m {
	case MotionHigh:
		return 1.3
	case MotionLow:
		return 0.8
	}
	return 1.0
}

const (
	DefaultBaseHue         = 0.6
	DefaultHueRange        = 1.0
	DefaultTransitionSpeed = 0.05
	DefaultColorStops      = 4
)

// ColorTransition is a partial override; nil fields take the defaults.
type ColorTransition struct {
	BaseHue         *float64 `yaml:"base_hue,omitempty"`
	HueRange        *float64 `yaml:"hue_range,omitempty"`
	TransitionSpeed *float64 `yaml:"transition_speed,omitempty"`
	ColorStops      *int     `yaml:"color_stops,omitempty"`
}

// ColorScheme is a ColorTransition with every field resolved.
type ColorScheme struct {
	BaseHue         float64
	HueRange        float64
	TransitionSpeed float64
	ColorStops      int
}

func (c ColorTransition) Resolve() ColorScheme {
	s := ColorScheme{
		BaseHue:         DefaultBaseHue,
		HueRange:        DefaultHueRange,
		TransitionSpeed: DefaultTransitionSpeed,
		ColorStops:      DefaultColorStops,
	}
	if c.BaseHue != nil {
		s.BaseHue = clamp01(*c.BaseHue)
	}
	if c.HueRange != nil {
		s.HueRange = clamp01(*c.HueRange)
	}
	if c.TransitionSpeed != nil {
		s.TransitionSpeed = *c.TransitionSpeed
	}
	if c.ColorStops != nil && *c.ColorStops > 0 {
		s.ColorStops = *c.ColorStops
	}
	return s
}

type WindowConfig struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	Title       string `yaml:"title"`
	Transparent bool   `yaml:"transparent"`
}

// StatsConfig controls frame statistics export. An empty Path disables it.
type StatsConfig struct {
	Path   string `yaml:"path"`
	Window int    `yaml:"window"`
}

// Config is supplied at Acquire time.
type Config struct {
	Density         Density               `yaml:"density"`
	MotionIntensity MotionIntensity       `yaml:"motion_intensity"`
	ColorTransition ColorTransition       `yaml:"color_transition"`
	Tier            string                `yaml:"tier"`
	Seed            int64                 `yaml:"seed"`
	Backend         string                `yaml:"backend"`
	Debug           bool                  `yaml:"debug"`
	Assets          map[TextureKey]string `yaml:"assets"`
	AssetTimeout    time.Duration         `yaml:"assets_timeout"`
	Window          WindowConfig          `yaml:"window"`
	Stats           StatsConfig           `yaml:"stats"`

	// Logger receives engine logs. Nil means no logging.
	Logger Logger `yaml:"-"`
}

// Load reads a YAML file over the embedded defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return *cfg
}

func (c *Config) Validate() error {
	switch c.Density {
	case DensityHigh, DensityNormal, DensityLow:
	case "":
		c.Density = DensityNormal
	default:
		return fmt.Errorf("invalid density %q", c.Density)
	}
	switch c.MotionIntensity {
	case MotionHigh, MotionNormal, MotionLow:
	case "":
		c.MotionIntensity = MotionNormal
	default:
		return fmt.Errorf("invalid motion_intensity %q", c.MotionIntensity)
	}
	if _, _, err := ParseTier(c.Tier); err != nil {
		return fmt.Errorf("invalid tier: %w", err)
	}
	if c.AssetTimeout <= 0 {
		c.AssetTimeout = 5 * time.Second
	}
	if c.Stats.Window <= 0 {
		c.Stats.Window = 120
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Modifiers are the user-facing scale factors the factory applies.
type Modifiers struct {
	Density    float64
	WaveScale  float64
	PulseScale float64
	Colors     ColorScheme
}

func (c *Config) Modifiers() Modifiers {
	return Modifiers{
		Density:    c.Density.Multiplier(),
		WaveScale:  c.MotionIntensity.WaveScale(),
		PulseScale: c.MotionIntensity.PulseScale(),
		Colors:     c.ColorTransition.Resolve(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
