package audio

import (
	"errors"
	"io"
	"time"

	"github.com/gopherjs/gopherjs/js"
)

const (
	webAudioBlock = 2048

	// resumeTimeout bounds the wait for the resume promise, which stays
	// pending in some browsers until a gesture arrives.
	resumeTimeout = time.Second
)

// WebAudioOpener opens output through the browser's Web Audio API. The
// context is created suspended; browsers only let Resume succeed after a
// user gesture.
type WebAudioOpener struct{}

func (WebAudioOpener) Open(sampleRate int, src io.Reader) (Device, error) {
	ctor := js.Global.Get("AudioContext")
	if ctor == nil || ctor == js.Undefined {
		ctor = js.Global.Get("webkitAudioContext")
	}
	if ctor == nil || ctor == js.Undefined {
		return nil, errors.New("Web Audio API not available")
	}

	ctx := ctor.New(js.M{"sampleRate": sampleRate})
	gain := ctx.Call("createGain")
	gain.Call("connect", ctx.Get("destination"))

	d := &webAudioDevice{ctx: ctx, src: src, pcm: make([]byte, webAudioBlock*frameSize)}
	d.node = ctx.Call("createScriptProcessor", webAudioBlock, 0, channelCount)
	d.node.Set("onaudioprocess", d.process)
	d.node.Call("connect", gain)
	return d, nil
}

type webAudioDevice struct {
	ctx  *js.Object
	node *js.Object
	src  io.Reader
	pcm  []byte
}

// process copies one block from the mixer into the output buffer.
func (d *webAudioDevice) process(event *js.Object) {
	out := event.Get("outputBuffer")
	left := out.Call("getChannelData", 0)
	right := out.Call("getChannelData", 1)
	n := out.Get("length").Int()
	pcm := d.pcm[:n*frameSize]
	if _, err := io.ReadFull(d.src, pcm); err != nil {
		return
	}
	for i := 0; i < n; i++ {
		idx := i * frameSize
		l := int16(uint16(pcm[idx]) | uint16(pcm[idx+1])<<8)
		r := int16(uint16(pcm[idx+2]) | uint16(pcm[idx+3])<<8)
		left.SetIndex(i, float64(l)/32768)
		right.SetIndex(i, float64(r)/32768)
	}
}

// Resume waits for the promise returned by resume before reading the
// state; browsers settle it asynchronously.
func (d *webAudioDevice) Resume() error {
	settled := make(chan struct{}, 1)
	done := func(*js.Object) { settled <- struct{}{} }
	d.ctx.Call("resume").Call("then", done, done)

	timer := time.NewTimer(resumeTimeout)
	defer timer.Stop()
	select {
	case <-settled:
	case <-timer.C:
	}
	if state := d.ctx.Get("state").String(); state != "running" {
		return errors.New("audio context is " + state)
	}
	return nil
}

func (d *webAudioDevice) Suspend() error {
	d.ctx.Call("suspend")
	return nil
}

func (d *webAudioDevice) Close() error {
	d.node.Call("disconnect")
	d.ctx.Call("close")
	return nil
}
