//go:build !js

package cmd

import (
	"github.com/codedswitch/studio/internal/audio"

	// registers the rtmidi driver for MIDI input and output ports
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func newOpener() audio.Opener {
	return &audio.OtoOpener{BufferSize: cfg.BufferSize}
}
