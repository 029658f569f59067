//go:build js

package cmd

import "github.com/codedswitch/studio/internal/audio"

func newOpener() audio.Opener {
	return audio.WebAudioOpener{}
}
