package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/pattern"
)

const stepLabels = "0123456789ABCDEFGHIJKLMNOPQRSTUV"

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	x, y := m.cursorX, m.cursorY
	hasTrack := y < len(m.pattern.Tracks)

	var err error
	switch msg.String() {
	case "ctrl+c", "q":
		m.sched.Stop()
		return m, tea.Quit
	case keyLeft, "h":
		if m.cursorX > 0 {
			m.cursorX--
		}
	case keyRight, "l":
		if m.cursorX < m.pattern.Length-1 {
			m.cursorX++
		}
	case keyUp, "k":
		if m.cursorY > 0 {
			m.cursorY--
		}
	case keyDown, "j":
		if m.cursorY < len(m.pattern.Tracks)-1 {
			m.cursorY++
		}
	case " ":
		if hasTrack {
			err = m.seq.ToggleStep(y, x)
		}
	case "e":
		if err = m.mgr.Resume(); err == nil {
			m.message = "Audio enabled"
		}
	case "p":
		if m.sched.Playing() {
			m.sched.Stop()
			m.playing = false
			m.playhead = -1
			return m, nil
		}
		m.message = ""
		return m, m.startPlayback()
	case "r":
		if hasTrack {
			err = m.seq.Randomize(y)
		}
	case "c":
		if hasTrack {
			err = m.seq.Clear(y)
		}
	case "L":
		err = m.seq.SetPatternLength(nextLength(m.pattern.Length))
	case "+", "=":
		m.seq.SetBPM(m.pattern.BPM + bpmStep)
	case "-", "_":
		m.seq.SetBPM(m.pattern.BPM - bpmStep)
	case ">", ".":
		m.seq.SetSwing(m.pattern.SwingPercent + swingStep)
	case "<", ",":
		m.seq.SetSwing(m.pattern.SwingPercent - swingStep)
	case "]":
		if hasTrack {
			err = m.seq.SetVelocity(y, x, int(m.pattern.Tracks[y].Steps[x].Velocity)+velocityStep)
		}
	case "[":
		if hasTrack {
			err = m.seq.SetVelocity(y, x, int(m.pattern.Tracks[y].Steps[x].Velocity)-velocityStep)
		}
	case "m":
		if hasTrack {
			err = m.seq.SetMuted(y, !m.pattern.Tracks[y].Muted)
		}
	case "s":
		if hasTrack {
			err = m.seq.SetSolo(y, !m.pattern.Tracks[y].Solo)
		}
	case "S":
		if m.save == nil {
			m.message = "Nowhere to save: start with a file or --name"
			break
		}
		var status string
		if status, err = m.save(m.seq.Snapshot()); err == nil {
			m.message = status
		}
	}

	if err != nil {
		m.log.Warn("edit failed", "key", msg.String(), "err", err)
		m.message = statusText(err)
	}
	m.refresh()
	return m, nil
}

// nextLength cycles 8 → 16 → 32 → 8.
func nextLength(n int) int {
	for i, l := range pattern.ValidLengths {
		if l == n {
			return pattern.ValidLengths[(i+1)%len(pattern.ValidLengths)]
		}
	}
	return pattern.DefaultLength
}

func (m *Model) View() string {
	p := m.pattern

	var b strings.Builder

	b.WriteString(titleStyle.Render("CodedSwitch Studio") + " " + m.title + "\n\n")
	b.WriteString(fmt.Sprintf("BPM: %.0f (+/-)  Swing: %.0f%% (</>)  Length: %d (L)\n", p.BPM, p.SwingPercent, p.Length))
	b.WriteString(m.audioStatus() + "\n\n")

	b.WriteString(renderClockBar(p.Length, m.playing, m.playhead) + "\n\n")

	// 14 chars before the steps: 8 for the track name + 6 for the note
	b.WriteString("Track   Note  ")
	for i := 0; i < p.Length; i++ {
		b.WriteString(fmt.Sprintf(" %c ", stepLabels[i]))
	}
	b.WriteString("\n")

	for ti, t := range p.Tracks {
		name := fmt.Sprintf("%-8.8s", t.Name)
		note := fmt.Sprintf("%-5s ", midiNoteToName(int(t.Note)))
		if ti == m.cursorY {
			name = selectedStyle.Render(name)
			note = selectedStyle.Render(note)
		}
		b.WriteString(name + note)

		audible := p.Audible(ti)
		for step := 0; step < p.Length; step++ {
			b.WriteString(m.renderCell(t.Steps[step], ti, step, audible))
		}
		b.WriteString(" " + trackFlags(t) + " ")
		if ti < len(m.meters.levels) {
			b.WriteString(renderMeter(m.meters.levels[ti]))
		}
		b.WriteString("\n")
	}
	if len(p.Tracks) == 0 {
		b.WriteString(infoStyle.Render("  (no tracks)") + "\n")
	}

	b.WriteString("\n")
	if m.cursorY < len(p.Tracks) {
		st := p.Tracks[m.cursorY].Steps[m.cursorX]
		b.WriteString(infoStyle.Render(fmt.Sprintf("Step %d: velocity %d (%d%%)  probability %d%%  offset %+.0fms",
			m.cursorX+1, st.Velocity, pattern.VelocityToIntensity(st.Velocity), st.Probability, st.SwingOffsetMs)) + "\n")
	}
	if m.message != "" {
		b.WriteString(errorStyle.Render(m.message) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("Navigation: ↑↓←→ or hjkl • Space: toggle step • [/]: velocity • r: randomize • c: clear track"))
	b.WriteString("\n" + helpStyle.Render("e: enable audio • p: play/stop • m: mute • s: solo • S: save • q: quit"))

	return b.String()
}

func (m *Model) audioStatus() string {
	c := m.mgr.Active()
	switch {
	case c == nil:
		return "Audio: off (press 'e' to enable)"
	case c.State() == audio.StateRunning:
		return fmt.Sprintf("Audio: %s ✓ %d Hz", c.State(), c.SampleRate())
	default:
		return fmt.Sprintf("Audio: %s (press 'e' to enable)", c.State())
	}
}

func (m *Model) renderCell(st pattern.Step, track, step int, audible bool) string {
	cell := " · "
	if st.Active {
		cell = " ● "
		if st.Probability < pattern.MaxProbability {
			cell = " ○ "
		}
	}

	cellStyle := lipgloss.NewStyle().Width(3)
	if track == m.cursorY && step == m.cursorX {
		cellStyle = cellStyle.Background(lipgloss.Color("#7D56F4"))
	}
	switch {
	case m.playing && step == m.playhead && st.Active && audible:
		cellStyle = cellStyle.Foreground(lipgloss.Color("#00FF00")).Bold(true)
	case st.Active && audible:
		cellStyle = cellStyle.Foreground(velocityColor(st.Velocity))
	case st.Active:
		cellStyle = cellStyle.Foreground(lipgloss.Color("#444444"))
	default:
		cellStyle = cellStyle.Foreground(lipgloss.Color("#666666"))
	}
	if m.playing && step == m.playhead && !st.Active {
		cellStyle = cellStyle.Foreground(lipgloss.Color("#00FF00"))
	}
	return cellStyle.Render(cell)
}

// velocityColor shades an active step from dim to bright gold.
func velocityColor(v uint8) lipgloss.Color {
	shades := []string{"#5C4D00", "#8A7300", "#B89A00", "#E6C000", "#FFD700"}
	i := int(v) * len(shades) / (pattern.MaxVelocity + 1)
	return lipgloss.Color(shades[i])
}

func trackFlags(t pattern.Track) string {
	flags := []byte("--")
	if t.Muted {
		flags[0] = 'M'
	}
	if t.Solo {
		flags[1] = 'S'
	}
	return string(flags)
}

func renderClockBar(length int, isPlaying bool, currentStep int) string {
	// Colors for the clock bar - gradient from cyan to magenta
	colors := []string{
		"#00FFFF", "#00E5FF", "#00CCFF", "#00B2FF",
		"#0099FF", "#0080FF", "#0066FF", "#1A4DFF",
		"#3333FF", "#4D1AFF", "#6600FF", "#8000FF",
		"#9900FF", "#B300FF", "#CC00FF", "#FF00FF",
	}

	bar := strings.Builder{}
	// 14 chars to align with the grid
	bar.WriteString("Clock         ")

	for i := 0; i < length; i++ {
		color := colors[i*len(colors)/length]
		var cell string
		var cellStyle lipgloss.Style

		switch {
		case isPlaying && i == currentStep:
			cell = " ▶ "
			cellStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(lipgloss.Color(color)).
				Bold(true)
		case isPlaying && i < currentStep:
			cell = " █ "
			cellStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(color))
		default:
			cell = " · "
			cellStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#444444"))
		}

		bar.WriteString(cellStyle.Render(cell))
	}

	status := " Stopped"
	statusStyle := infoStyle
	if isPlaying {
		status = " Playing"
		statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	}
	bar.WriteString(statusStyle.Render(status))

	return bar.String()
}

func midiNoteToName(note int) string {
	notes := []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	octave := (note / 12) - 1
	noteName := notes[note%12]
	return fmt.Sprintf("%s%d", noteName, octave)
}
