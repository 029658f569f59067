package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.SampleRate != 44100 {
		t.Errorf("SampleRate = %d", c.SampleRate)
	}
	if c.Lookahead != 25*time.Millisecond || c.ScheduleAhead != 100*time.Millisecond {
		t.Errorf("timing = %v / %v", c.Lookahead, c.ScheduleAhead)
	}
	if c.MasterVolume != 0.8 {
		t.Errorf("MasterVolume = %v", c.MasterVolume)
	}
	if filepath.Base(c.Library) != "library.db" {
		t.Errorf("Library = %q", c.Library)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.SampleRate != Default().SampleRate {
		t.Errorf("SampleRate = %d", c.SampleRate)
	}
}

func TestLoadOverridesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
sample_rate: 48000
master_volume: 3
schedule_ahead: 200ms
midi_out: IAC
samples:
  rim: /tmp/rim.wav
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.SampleRate != 48000 || c.MIDIOut != "IAC" || c.ScheduleAhead != 200*time.Millisecond {
		t.Errorf("overrides not applied: %+v", c)
	}
	if c.Lookahead != 25*time.Millisecond {
		t.Errorf("unset field lost its default: %v", c.Lookahead)
	}
	if c.MasterVolume != 1 {
		t.Errorf("MasterVolume = %v, want clamped to 1", c.MasterVolume)
	}
	if c.Samples["rim"] != "/tmp/rim.wav" {
		t.Errorf("Samples = %v", c.Samples)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name, data, want string
	}{
		{"unknown field", "sample_rte: 1\n", "sample_rte"},
		{"zero rate", "sample_rate: 0\n", "sample_rate"},
		{"horizon too short", "lookahead: 50ms\nschedule_ahead: 10ms\n", "schedule_ahead"},
		{"bad duration", "lookahead: soon\n", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Errorf("empty file: %v", err)
	}
}

func TestWriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	c := Default()
	c.SampleRate = 22050
	c.Lookahead = 40 * time.Millisecond
	if err := c.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SampleRate != 22050 || got.Lookahead != 40*time.Millisecond {
		t.Errorf("got %+v", got)
	}
}

func TestDirHonorsXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only read on linux")
	}
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	dir, err := Dir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/xdg", appName); dir != want {
		t.Errorf("Dir = %q, want %q", dir, want)
	}
}
