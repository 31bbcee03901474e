// Package config loads pitch2midi settings from defaults, a YAML file, the
// environment and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/james-see/pitch2midi/pkg/melody"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PITCH2MIDI_ENGINE_SMOOTH
const EnvPrefix = "PITCH2MIDI"

// Engine mirrors melody.Config with a textual non-finite policy
type Engine struct {
	SampleRate         int     `mapstructure:"sample_rate" yaml:"sample_rate" json:"sample_rate"`
	HopSize            int     `mapstructure:"hop_size" yaml:"hop_size" json:"hop_size"`
	Smooth             float64 `mapstructure:"smooth" yaml:"smooth" json:"smooth"`
	MinDuration        float64 `mapstructure:"min_duration" yaml:"min_duration" json:"min_duration"`
	ReferenceFrequency float64 `mapstructure:"reference_frequency" yaml:"reference_frequency" json:"reference_frequency"`
	ReferenceUnit      int     `mapstructure:"reference_unit" yaml:"reference_unit" json:"reference_unit"`
	UnitsPerOctave     float64 `mapstructure:"units_per_octave" yaml:"units_per_octave" json:"units_per_octave"`
	PadFrames          int     `mapstructure:"pad_frames" yaml:"pad_frames" json:"pad_frames"`
	NonFinite          string  `mapstructure:"non_finite" yaml:"non_finite" json:"non_finite"`
}

// MIDI holds exporter settings
type MIDI struct {
	BPM       float64 `mapstructure:"bpm" yaml:"bpm" json:"bpm"`
	TrackName string  `mapstructure:"track_name" yaml:"track_name" json:"track_name"`
	Velocity  int     `mapstructure:"velocity" yaml:"velocity" json:"velocity"`
	JAMS      bool    `mapstructure:"jams" yaml:"jams" json:"jams"`
}

// Server holds API server settings
type Server struct {
	Port        int   `mapstructure:"port" yaml:"port" json:"port"`
	MaxUploadMB int64 `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
}

// Log holds logger settings
type Log struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Config is the root of the configuration tree
type Config struct {
	Engine Engine `mapstructure:"engine" yaml:"engine" json:"engine"`
	MIDI   MIDI   `mapstructure:"midi" yaml:"midi" json:"midi"`
	Server Server `mapstructure:"server" yaml:"server" json:"server"`
	Log    Log    `mapstructure:"log" yaml:"log" json:"log"`
}

// Default returns the built-in configuration
func Default() Config {
	d := melody.DefaultConfig()
	return Config{
		Engine: Engine{
			SampleRate:         d.SampleRate,
			HopSize:            d.HopSize,
			Smooth:             d.SmoothDuration,
			MinDuration:        d.MinDuration,
			ReferenceFrequency: d.ReferenceFrequency,
			ReferenceUnit:      d.ReferenceUnit,
			UnitsPerOctave:     d.UnitsPerOctave,
			PadFrames:          d.PadFrames,
			NonFinite:          d.NonFinite.String(),
		},
		MIDI: MIDI{
			BPM:       120,
			TrackName: "MIDI TRACK",
			Velocity:  100,
		},
		Server: Server{
			Port:        8080,
			MaxUploadMB: 32,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// NewViper returns a viper instance seeded with defaults and environment binding
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("engine.sample_rate", d.Engine.SampleRate)
	v.SetDefault("engine.hop_size", d.Engine.HopSize)
	v.SetDefault("engine.smooth", d.Engine.Smooth)
	v.SetDefault("engine.min_duration", d.Engine.MinDuration)
	v.SetDefault("engine.reference_frequency", d.Engine.ReferenceFrequency)
	v.SetDefault("engine.reference_unit", d.Engine.ReferenceUnit)
	v.SetDefault("engine.units_per_octave", d.Engine.UnitsPerOctave)
	v.SetDefault("engine.pad_frames", d.Engine.PadFrames)
	v.SetDefault("engine.non_finite", d.Engine.NonFinite)
	v.SetDefault("midi.bpm", d.MIDI.BPM)
	v.SetDefault("midi.track_name", d.MIDI.TrackName)
	v.SetDefault("midi.velocity", d.MIDI.Velocity)
	v.SetDefault("midi.jams", d.MIDI.JAMS)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional YAML file at path into v and decodes the result
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Melody converts the engine section to an engine configuration
func (c *Config) Melody() (melody.Config, error) {
	policy, err := melody.ParseNonFinitePolicy(c.Engine.NonFinite)
	if err != nil {
		return melody.Config{}, err
	}
	return melody.Config{
		SampleRate:         c.Engine.SampleRate,
		HopSize:            c.Engine.HopSize,
		SmoothDuration:     c.Engine.Smooth,
		MinDuration:        c.Engine.MinDuration,
		ReferenceFrequency: c.Engine.ReferenceFrequency,
		ReferenceUnit:      c.Engine.ReferenceUnit,
		UnitsPerOctave:     c.Engine.UnitsPerOctave,
		PadFrames:          c.Engine.PadFrames,
		NonFinite:          policy,
	}, nil
}

// Validate checks every section
func (c *Config) Validate() error {
	m, err := c.Melody()
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if !(c.MIDI.BPM > 0) {
		return fmt.Errorf("%w: bpm must be positive, got %v", melody.ErrInvalidConfig, c.MIDI.BPM)
	}
	if c.MIDI.Velocity < 1 || c.MIDI.Velocity > 127 {
		return fmt.Errorf("%w: velocity must be within 1..127, got %d", melody.ErrInvalidConfig, c.MIDI.Velocity)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", melody.ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: max upload must be positive", melody.ErrInvalidConfig)
	}
	return nil
}

// Save writes cfg as YAML
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Read decodes a YAML file on top of the defaults without viper
func Read(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
