package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

const (
	meterFPS   = 60
	meterWidth = 10
	meterRest  = 0.001
)

// frameMsg drives the meter animation.
type frameMsg time.Time

func frame() tea.Cmd {
	return tea.Tick(time.Second/meterFPS, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// meters shows how loud each track last hit. A hit sets the level and a
// spring pulls it back to zero.
type meters struct {
	spring     harmonica.Spring
	levels     []float64
	velocities []float64
	animating  bool
}

func newMeters() meters {
	return meters{spring: harmonica.NewSpring(harmonica.FPS(meterFPS), 6.0, 1.0)}
}

func (m *meters) resize(n int) {
	for len(m.levels) < n {
		m.levels = append(m.levels, 0)
		m.velocities = append(m.velocities, 0)
	}
	m.levels = m.levels[:n]
	m.velocities = m.velocities[:n]
}

func (m *meters) hit(track int, gain float64) {
	if track < 0 || track >= len(m.levels) {
		return
	}
	if gain > 1 {
		gain = 1
	}
	if gain > m.levels[track] {
		m.levels[track] = gain
		m.velocities[track] = 0
	}
}

// update advances every spring one frame and reports whether any meter is
// still moving.
func (m *meters) update() bool {
	moving := false
	for i := range m.levels {
		m.levels[i], m.velocities[i] = m.spring.Update(m.levels[i], m.velocities[i], 0)
		if m.levels[i] < meterRest && m.velocities[i] > -meterRest && m.velocities[i] < meterRest {
			m.levels[i], m.velocities[i] = 0, 0
			continue
		}
		moving = true
	}
	return moving
}

func (m *meters) reset() {
	for i := range m.levels {
		m.levels[i], m.velocities[i] = 0, 0
	}
}

var meterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))

func renderMeter(level float64) string {
	if level < 0 {
		level = 0
	}
	n := int(level*meterWidth + 0.5)
	if n > meterWidth {
		n = meterWidth
	}
	return meterStyle.Render(strings.Repeat("▮", n)) + strings.Repeat(" ", meterWidth-n)
}
