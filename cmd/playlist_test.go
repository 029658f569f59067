package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/audio/audiotest"
	"github.com/codedswitch/studio/internal/playlist"
)

func newTestShell(t *testing.T) (*playlistShell, *bytes.Buffer) {
	t.Helper()
	mgr := audio.NewManager(&audiotest.Opener{}, audio.WithSampleRate(8000))
	player := playlist.New(mgr, playlist.WithLogger(logger))
	t.Cleanup(player.Close)
	buf := &audio.Buffer{SampleRate: 8000, Frames: make([][2]float32, 8000*75)}
	player.Add(playlist.Item{Name: "intro.wav", Buffer: buf}, playlist.Item{Name: "outro.wav", Buffer: buf})
	out := &bytes.Buffer{}
	return &playlistShell{player: player, mgr: mgr, out: out}, out
}

func TestPlaylistShellTransport(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()

	tests := []struct {
		input string
		state playlist.State
		want  string
	}{
		{"play", playlist.Playing, ""},
		{"seek 1:05", playlist.Playing, ""},
		{"status", playlist.Playing, "intro.wav  1:05 / 1:15"},
		{"pause", playlist.Paused, ""},
		{"next", playlist.Playing, ""},
		{"list", playlist.Playing, ">  2. outro.wav  1:15"},
		{"stop", playlist.Ready, ""},
		{"volume 150", playlist.Ready, "Volume: 100%"},
		{"bogus", playlist.Ready, "Unknown command: bogus"},
		{"seek soon", playlist.Ready, "Invalid position: soon"},
	}
	for _, tt := range tests {
		out.Reset()
		if !sh.handle(ctx, tt.input) {
			t.Fatalf("%q ended the shell", tt.input)
		}
		if got := sh.player.State(); got != tt.state {
			t.Errorf("%q: state = %v, want %v", tt.input, got, tt.state)
		}
		if tt.want != "" && !strings.Contains(out.String(), tt.want) {
			t.Errorf("%q: output %q does not contain %q", tt.input, out.String(), tt.want)
		}
	}

	if sh.handle(ctx, "exit") {
		t.Error("exit did not end the shell")
	}
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{"2.5", 2.5, true},
		{"1:05", 65, true},
		{"x:05", 0, false},
		{"", 0, false},
		{"nan", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
		{"-Inf", 0, false},
		{"1:nan", 0, false},
		{"0:+inf", 0, false},
	}
	for _, tt := range tests {
		got, err := parseSeconds(tt.in)
		if (err == nil) != tt.ok || (tt.ok && got != tt.want) {
			t.Errorf("parseSeconds(%q) = %v, %v", tt.in, got, err)
		}
	}
	if got := formatSeconds(125.4); got != "2:05" {
		t.Errorf("formatSeconds = %q", got)
	}
}
