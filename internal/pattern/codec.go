package pattern

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrFormat is returned when data is neither valid JSON nor YAML.
var ErrFormat = errors.New("unrecognized pattern data")

// document is the external shape shared with the persistence layer and the
// generation endpoints. Unknown fields are ignored.
type document struct {
	Tracks []trackDoc `json:"tracks" yaml:"tracks"`
	BPM    float64    `json:"bpm,omitempty" yaml:"bpm,omitempty"`
	Swing  float64    `json:"swing,omitempty" yaml:"swing,omitempty"`
	Length int        `json:"patternLength" yaml:"patternLength"`
}

type trackDoc struct {
	ID         string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string   `json:"name" yaml:"name"`
	Sound      string   `json:"sound,omitempty" yaml:"sound,omitempty"`
	Note       *int     `json:"note,omitempty" yaml:"note,omitempty"`
	Pattern    []any    `json:"pattern" yaml:"pattern"`
	Velocities []any    `json:"velocities,omitempty" yaml:"velocities,omitempty"`
	Volume     *float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
	Muted      bool     `json:"muted,omitempty" yaml:"muted,omitempty"`
	Solo       bool     `json:"solo,omitempty" yaml:"solo,omitempty"`
	Effects    Effects  `json:"effects,omitempty" yaml:"effects,omitempty"`
}

// stepDoc is the object form of a step written by Encode.
type stepDoc struct {
	Active        bool    `json:"active" yaml:"active"`
	Velocity      uint8   `json:"velocity" yaml:"velocity"`
	Probability   uint8   `json:"probability" yaml:"probability"`
	SwingOffsetMs float64 `json:"swingOffsetMs,omitempty" yaml:"swingOffsetMs,omitempty"`
}

// Decode parses a pattern from JSON, falling back to YAML.
func Decode(data []byte) (Pattern, error) {
	p, jsonErr := DecodeJSON(data)
	if jsonErr == nil {
		return p, nil
	}
	p, yamlErr := DecodeYAML(data)
	if yamlErr == nil {
		return p, nil
	}
	return Pattern{}, fmt.Errorf("%w: json: %v, yaml: %v", ErrFormat, jsonErr, yamlErr)
}

// DecodeJSON parses the JSON form.
func DecodeJSON(data []byte) (Pattern, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Pattern{}, err
	}
	return doc.pattern(), nil
}

// DecodeYAML parses the YAML form.
func DecodeYAML(data []byte) (Pattern, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Pattern{}, err
	}
	if doc.Tracks == nil && doc.BPM == 0 && doc.Length == 0 {
		return Pattern{}, errors.New("no pattern fields")
	}
	return doc.pattern(), nil
}

// Encode writes the JSON form. Every allocated step is written so data past
// the current length survives a round trip.
func Encode(p Pattern) ([]byte, error) {
	return json.MarshalIndent(newDocument(p), "", "  ")
}

// EncodeYAML writes the YAML form.
func EncodeYAML(p Pattern) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(p)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newDocument(p Pattern) document {
	doc := document{BPM: p.BPM, Swing: p.SwingPercent, Length: p.Length}
	doc.Tracks = make([]trackDoc, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		note := int(t.Note)
		vol := t.Volume
		td := trackDoc{
			ID:      t.ID,
			Name:    t.Name,
			Sound:   t.Sound,
			Note:    &note,
			Volume:  &vol,
			Muted:   t.Muted,
			Solo:    t.Solo,
			Effects: t.Effects,
			Pattern: make([]any, MaxSteps),
		}
		for i, s := range t.Steps {
			td.Pattern[i] = stepDoc{
				Active:        s.Active,
				Velocity:      s.Velocity,
				Probability:   s.Probability,
				SwingOffsetMs: s.SwingOffsetMs,
			}
		}
		doc.Tracks = append(doc.Tracks, td)
	}
	return doc
}

func (d document) pattern() Pattern {
	p := Pattern{BPM: d.BPM, SwingPercent: d.Swing, Length: d.Length}
	if p.BPM == 0 {
		p.BPM = DefaultBPM
	}
	for _, td := range d.Tracks {
		p.Tracks = append(p.Tracks, td.track())
	}
	p.normalize()
	return p
}

func (td trackDoc) track() Track {
	sound := td.Sound
	if sound == "" {
		sound = strings.ToLower(td.Name)
	}
	t := NewTrack(td.Name, sound)
	if td.ID != "" {
		t.ID = td.ID
	}
	if td.Note != nil {
		t.Note = uint8(clamp(float64(*td.Note), 0, 127))
	}
	if td.Volume != nil {
		t.Volume = *td.Volume
	}
	t.Muted = td.Muted
	t.Solo = td.Solo
	t.Effects = td.Effects

	// short tracks stay padded with inactive default steps
	for i, v := range td.Pattern {
		if i >= MaxSteps {
			break
		}
		t.Steps[i] = parseStep(v)
	}
	for i, v := range td.Velocities {
		if i >= MaxSteps {
			break
		}
		if f, ok := number(v); ok {
			t.Steps[i].Velocity = uint8(clamp(math.Round(f), 0, MaxVelocity))
		}
	}
	return t
}

// parseStep accepts 0/1, booleans, boolean-like strings or a step object.
// Anything else becomes an inactive step.
func parseStep(v any) Step {
	s := NewStep()
	switch x := v.(type) {
	case map[string]any:
		s.Active, _ = boolLike(x["active"])
		if f, ok := number(x["velocity"]); ok {
			s.Velocity = uint8(clamp(math.Round(f), 0, MaxVelocity))
		} else if f, ok := number(x["intensity"]); ok {
			s.Velocity = IntensityToVelocity(int(math.Round(f)))
		}
		if f, ok := number(x["probability"]); ok {
			s.Probability = uint8(clamp(math.Round(f), 0, MaxProbability))
		}
		if f, ok := number(x["swingOffsetMs"]); ok {
			s.SwingOffsetMs = f
		}
	default:
		s.Active, _ = boolLike(v)
	}
	return s
}

// boolLike interprets the loose truth values producers send. ok is false
// for values that are not recognizably boolean, which count as inactive.
func boolLike(v any) (active, ok bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "on", "yes", "x":
			return true, true
		case "0", "false", "off", "no", "-", "", ".":
			return false, true
		}
		return false, false
	}
	if f, ok := number(v); ok {
		switch f {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	}
	return false, false
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
