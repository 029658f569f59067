package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

var errUnknownFormat = errors.New("unsupported audio format, expected WAV or MP3")

// Decode reads a whole WAV or MP3 stream into a Buffer. The format is
// detected from the leading bytes, not from name, which is only used in
// error messages. Every failure is a *DecodeError.
func Decode(name string, r io.Reader) (*Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}

	var buf *Buffer
	switch {
	case isWAV(data):
		buf, err = decodeWAV(data)
	case isMP3(data):
		buf, err = decodeMP3(data)
	default:
		err = errUnknownFormat
	}
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}
	if buf.Len() == 0 {
		return nil, &DecodeError{Name: name, Err: errors.New("no audio frames")}
	}
	return buf, nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func isMP3(data []byte) bool {
	if len(data) >= 3 && string(data[:3]) == "ID3" {
		return true
	}
	// MPEG frame sync
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

func decodeWAV(data []byte) (*Buffer, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read WAV samples: %w", err)
	}
	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		return nil, errors.New("unknown bit depth")
	}
	nchannels := pcm.Format.NumChannels
	if nchannels <= 0 {
		return nil, errors.New("no channels")
	}
	factor := math.Pow(2, float64(bitDepth-1))

	nframes := len(pcm.Data) / nchannels
	buf := &Buffer{SampleRate: pcm.Format.SampleRate, Frames: make([][2]float32, nframes)}
	for i := range buf.Frames {
		l := float32(float64(pcm.Data[i*nchannels]) / factor)
		r := l
		if nchannels > 1 {
			r = float32(float64(pcm.Data[i*nchannels+1]) / factor)
		}
		buf.Frames[i] = [2]float32{l, r}
	}
	return buf, nil
}

func decodeMP3(data []byte) (*Buffer, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	// go-mp3 always produces 16-bit little endian stereo
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("read MP3 samples: %w", err)
	}
	nframes := len(pcm) / frameSize
	buf := &Buffer{SampleRate: decoder.SampleRate(), Frames: make([][2]float32, nframes)}
	for i := range buf.Frames {
		idx := i * frameSize
		l := int16(uint16(pcm[idx]) | uint16(pcm[idx+1])<<8)
		r := int16(uint16(pcm[idx+2]) | uint16(pcm[idx+3])<<8)
		buf.Frames[i] = [2]float32{float32(l) / 32768, float32(r) / 32768}
	}
	return buf, nil
}
