package pattern

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadFile loads a pattern from a .json, .yaml/.yml or .mid/.midi file.
// Other extensions are sniffed as JSON then YAML.
func ReadFile(path string) (Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pattern{}, err
	}
	var p Pattern
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		p, err = ReadMIDI(bytes.NewReader(data))
	case ".yaml", ".yml":
		p, err = DecodeYAML(data)
	default:
		p, err = Decode(data)
	}
	if err != nil {
		return Pattern{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// WriteFile saves p in the format implied by the extension, JSON by default.
func WriteFile(path string, p Pattern) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		var buf bytes.Buffer
		err = WriteMIDI(p, &buf)
		data = buf.Bytes()
	case ".yaml", ".yml":
		data, err = EncodeYAML(p)
	default:
		data, err = Encode(p)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}
