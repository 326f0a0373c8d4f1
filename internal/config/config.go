package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects the orchestration of the engine. It is fixed while the
// engine runs and may only change between runs.
type Mode string

const (
	// ModeSimplex alternates level-triggered capture and replay.
	ModeSimplex Mode = "simplex"
	// ModeDuplex pipes input to output continuously with a fixed delay.
	ModeDuplex Mode = "duplex"
)

// maxThreshold bounds the trigger thresholds; it matches the full range of
// the mean-absolute level of 16-bit samples.
const maxThreshold = 32767

// Config represents the complete service configuration.
type Config struct {
	Audio   AudioConfig   `yaml:"audio"`
	Params  Params        `yaml:"params"`
	Archive ArchiveConfig `yaml:"archive"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// AudioConfig contains the fixed session layout and device selection.
// These values require reopening the devices and cannot change while the
// engine runs.
type AudioConfig struct {
	SampleRate     int    `yaml:"sample_rate"`
	InputChannels  int    `yaml:"input_channels"`
	OutputChannels int    `yaml:"output_channels"`
	ChunkFrames    int    `yaml:"chunk_frames"`
	InputDevice    string `yaml:"input_device"`  // device name, empty = default
	OutputDevice   string `yaml:"output_device"` // device name, empty = default
}

// Params is the live-tunable parameter set. It is the persisted settings
// schema and the snapshot type held by Store; the engine reads one
// snapshot per chunk.
type Params struct {
	Mode Mode `yaml:"mode" json:"mode"`

	// Trigger thresholds on the damped level. Invariant kept by the
	// store: stop_threshold <= start_threshold.
	StartThreshold int `yaml:"start_threshold" json:"start_threshold"`
	StopThreshold  int `yaml:"stop_threshold" json:"stop_threshold"`

	// Envelope time constants in milliseconds; 0 snaps instantly.
	RiseTimeMs float64 `yaml:"rise_time_ms" json:"rise_time_ms"`
	FallTimeMs float64 `yaml:"fall_time_ms" json:"fall_time_ms"`

	// Simplex timings in seconds.
	RecordTime float64 `yaml:"record_time" json:"record_time"`
	StopTime   float64 `yaml:"stop_time" json:"stop_time"`
	DeadTime   float64 `yaml:"dead_time" json:"dead_time"`

	// Delay for duplex streaming and the idle monitor path.
	PlaybackDelayMs float64 `yaml:"playback_delay_ms" json:"playback_delay_ms"`

	// Monitor feeds delayed live input to the output while idle in
	// simplex mode.
	MonitorEnabled bool `yaml:"monitor_enabled" json:"monitor_enabled"`

	// Processing chain.
	EQEnabled bool      `yaml:"eq_enabled" json:"eq_enabled"`
	EQGains   []float64 `yaml:"eq_gains" json:"eq_gains"` // dB per band
	GainDB    float64   `yaml:"gain_db" json:"gain_db"`
}

// ArchiveConfig controls WAV archiving of finished capture episodes.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
	QueueSize int    `yaml:"queue_size"`
}

// HTTPConfig contains the control API server configuration.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate:     44100,
			InputChannels:  1,
			OutputChannels: 1,
			ChunkFrames:    1024,
		},
		Params: Params{
			Mode:            ModeSimplex,
			StartThreshold:  1000,
			StopThreshold:   100,
			RiseTimeMs:      0,
			FallTimeMs:      100,
			RecordTime:      30,
			StopTime:        0.5,
			DeadTime:        2,
			PlaybackDelayMs: 500,
		},
		Archive: ArchiveConfig{
			QueueSize: 8,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Address: "127.0.0.1",
			Port:    8750,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Save writes the configuration, including the current live parameters,
// back to disk. Called on shutdown so tuning survives restarts.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("params config: %w", err)
	}

	if err := c.Archive.Validate(); err != nil {
		return fmt.Errorf("archive config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates the audio session layout.
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %d", a.SampleRate)
	}

	if a.InputChannels != 1 && a.InputChannels != 2 {
		return fmt.Errorf("input_channels must be 1 or 2, got %d", a.InputChannels)
	}

	if a.OutputChannels != 1 && a.OutputChannels != 2 {
		return fmt.Errorf("output_channels must be 1 or 2, got %d", a.OutputChannels)
	}

	if a.ChunkFrames < 64 || a.ChunkFrames > 16384 {
		return fmt.Errorf("chunk_frames must be between 64 and 16384, got %d", a.ChunkFrames)
	}

	return nil
}

// Validate validates the live parameter set.
func (p *Params) Validate() error {
	if p.Mode != ModeSimplex && p.Mode != ModeDuplex {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeSimplex, ModeDuplex, p.Mode)
	}

	if p.StartThreshold < 0 || p.StartThreshold > maxThreshold {
		return fmt.Errorf("start_threshold must be between 0 and %d, got %d", maxThreshold, p.StartThreshold)
	}

	if p.StopThreshold < 0 || p.StopThreshold > p.StartThreshold {
		return fmt.Errorf("stop_threshold must be between 0 and start_threshold (%d), got %d",
			p.StartThreshold, p.StopThreshold)
	}

	if p.RiseTimeMs < 0 || p.FallTimeMs < 0 {
		return fmt.Errorf("rise_time_ms and fall_time_ms cannot be negative")
	}

	if p.RecordTime <= 0 {
		return fmt.Errorf("record_time must be positive, got %f", p.RecordTime)
	}

	if p.StopTime < 0 || p.DeadTime < 0 {
		return fmt.Errorf("stop_time and dead_time cannot be negative")
	}

	if p.PlaybackDelayMs < 0 {
		return fmt.Errorf("playback_delay_ms cannot be negative, got %f", p.PlaybackDelayMs)
	}

	for i, g := range p.EQGains {
		if g < -24 || g > 24 {
			return fmt.Errorf("eq_gains[%d] must be between -24 and 24 dB, got %f", i, g)
		}
	}

	return nil
}

// Validate validates the archive configuration.
func (a *ArchiveConfig) Validate() error {
	if !a.Enabled {
		return nil
	}

	if a.Directory == "" {
		return fmt.Errorf("directory cannot be empty when archiving is enabled")
	}

	if a.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", a.QueueSize)
	}

	return nil
}

// Validate validates the HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if !h.Enabled {
		return nil
	}

	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty when HTTP is enabled")
	}

	return nil
}

// Validate validates the logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// DeadDuration returns the dead time as a time.Duration.
func (p *Params) DeadDuration() time.Duration {
	return time.Duration(p.DeadTime * float64(time.Second))
}
