// Package config loads user settings from a YAML file. Anything the file
// leaves out keeps the built-in default.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "studio"

//go:embed default.yml
var defaultYAML []byte

// Config holds the settings shared by every command.
type Config struct {
	SampleRate    int           `yaml:"sample_rate"`
	BufferSize    time.Duration `yaml:"buffer_size"`
	MasterVolume  float64       `yaml:"master_volume"`
	Lookahead     time.Duration `yaml:"lookahead"`
	ScheduleAhead time.Duration `yaml:"schedule_ahead"`

	// Library is the SQLite pattern library. Empty means library.db in Dir.
	Library string `yaml:"library,omitempty"`
	// MIDIOut selects an output port by name substring; empty disables MIDI.
	MIDIOut  string `yaml:"midi_out"`
	LogFile  string `yaml:"log_file,omitempty"`
	LogLevel string `yaml:"log_level"`

	// Samples maps sound names to WAV or MP3 files loaded into the kit.
	Samples map[string]string `yaml:"samples,omitempty"`
}

// Dir is the per-user configuration directory, honoring XDG_CONFIG_HOME.
func Dir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	dir, err := Dir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "config.yaml")
}

// Default returns the built-in settings.
func Default() Config {
	var c Config
	if err := decode(bytes.NewReader(defaultYAML), &c); err != nil {
		panic(fmt.Errorf("failed to unmarshal default config: %w", err))
	}
	c.fillPaths()
	return c
}

// Load reads path over the defaults. A missing file is not an error.
// An empty path means DefaultPath.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		path = DefaultPath()
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	defer f.Close()

	if err := decode(f, &c); err != nil && !errors.Is(err, io.EOF) {
		return c, fmt.Errorf("config %s: %w", path, err)
	}
	c.fillPaths()
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Validate clamps the master volume into [0,1] and rejects settings the
// audio engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.MasterVolume < 0:
		c.MasterVolume = 0
	case c.MasterVolume > 1:
		c.MasterVolume = 1
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer_size must not be negative, got %v", c.BufferSize)
	}
	if c.Lookahead <= 0 {
		return fmt.Errorf("lookahead must be positive, got %v", c.Lookahead)
	}
	if c.ScheduleAhead < c.Lookahead {
		return fmt.Errorf("schedule_ahead (%v) must not be shorter than lookahead (%v)", c.ScheduleAhead, c.Lookahead)
	}
	return nil
}

// Write saves c as YAML at path, creating the directory.
func (c Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (c *Config) fillPaths() {
	if c.Library != "" {
		return
	}
	dir, err := Dir()
	if err != nil {
		dir = "."
	}
	c.Library = filepath.Join(dir, "library.db")
}

func decode(r io.Reader, c *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	return dec.Decode(c)
}
