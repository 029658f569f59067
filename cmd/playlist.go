package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/bus"
	"github.com/codedswitch/studio/internal/config"
	"github.com/codedswitch/studio/internal/playlist"
)

var playlistCmd = &cobra.Command{
	Use:   "playlist [file|url ...]",
	Short: "Play songs one after another from a small shell",
	Long: `Start a playlist shell. Arguments are WAV or MP3 files or http(s) URLs and
are added to the playlist in order; more can be added with 'load'.

Commands: play, pause, stop, seek <sec>, next, prev, list, load <file|url>,
volume <0-100>, status, help, exit`,
	RunE: runPlaylist,
}

func init() {
	rootCmd.AddCommand(playlistCmd)
}

func runPlaylist(cmd *cobra.Command, args []string) error {
	e := newEngine()
	defer e.Close()

	events := newPlaylistEvents()
	player := playlist.New(e.mgr, playlist.WithLogger(logger), playlist.WithEvents(events.bus))
	defer player.Close()
	player.AddURLs(args...)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "playlist> ",
		HistoryFile:  historyFile(),
		AutoComplete: playlistCompleter(),
	})
	if err != nil {
		return fmt.Errorf("error initializing readline: %w", err)
	}
	defer rl.Close()
	logger.SetOutput(rl.Stderr())

	sh := &playlistShell{player: player, mgr: e.mgr, out: rl.Stdout()}
	go events.print(rl.Stdout())
	defer events.bus.Close()

	fmt.Fprintf(sh.out, "%d item(s) queued. Type 'help' for commands.\n", len(args))
	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Fprintln(sh.out, "Exiting playlist...")
				return nil
			}
			return fmt.Errorf("error reading input: %w", err)
		}
		if !sh.handle(cmd.Context(), strings.TrimSpace(input)) {
			return nil
		}
	}
}

func historyFile() string {
	dir, err := config.Dir()
	if err != nil {
		return ""
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "playlist_history")
}

func playlistCompleter() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("play"),
		readline.PcItem("pause"),
		readline.PcItem("stop"),
		readline.PcItem("seek"),
		readline.PcItem("next"),
		readline.PcItem("prev"),
		readline.PcItem("list"),
		readline.PcItem("load", readline.PcItemDynamic(listAudioFiles)),
		readline.PcItem("volume"),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

func listAudioFiles(string) []string {
	var names []string
	entries, err := os.ReadDir(".")
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".wav", ".mp3":
			names = append(names, entry.Name())
		}
	}
	return names
}

// playlistEvents prints transport changes the user did not type, such as
// the next song starting on its own.
type playlistEvents struct {
	bus *bus.Bus[playlist.Event]
	ch  <-chan playlist.Event
}

func newPlaylistEvents() *playlistEvents {
	b := bus.New[playlist.Event]()
	ch, _ := b.Subscribe(32)
	return &playlistEvents{bus: b, ch: ch}
}

func (pe *playlistEvents) print(w io.Writer) {
	last := playlist.Idle
	for ev := range pe.ch {
		switch {
		case ev.Err != nil:
			fmt.Fprintln(w, playlist.UserMessage(ev.Err))
		case ev.State == playlist.Playing && last != playlist.Playing:
			fmt.Fprintf(w, "Now playing: %s\n", ev.Name)
		case ev.State == playlist.Idle && last == playlist.Ended:
			fmt.Fprintln(w, "End of playlist.")
		}
		last = ev.State
	}
}

// playlistShell runs one command per line against a player.
type playlistShell struct {
	player *playlist.Player
	mgr    *audio.Manager
	out    io.Writer
}

// handle runs one line and reports whether the shell should keep going.
func (sh *playlistShell) handle(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return true
	}
	cmd, args := strings.TrimPrefix(parts[0], "/"), parts[1:]

	var err error
	switch cmd {
	case "exit", "quit", "q":
		sh.player.Stop()
		fmt.Fprintln(sh.out, "Exiting playlist...")
		return false
	case "help", "h":
		sh.help()
	case "play", "p":
		err = sh.player.Play(ctx)
	case "pause":
		sh.player.Pause()
	case "stop":
		sh.player.Stop()
	case "seek":
		if len(args) == 0 {
			fmt.Fprintln(sh.out, "Usage: seek <seconds>")
			break
		}
		sec, perr := parseSeconds(args[0])
		if perr != nil {
			fmt.Fprintf(sh.out, "Invalid position: %s\n", args[0])
			break
		}
		err = sh.player.Seek(sec)
	case "next", "n":
		err = sh.player.Next(ctx)
	case "prev", "previous":
		err = sh.player.Previous(ctx)
	case "list", "ls":
		sh.list()
	case "load":
		if len(args) == 0 {
			fmt.Fprintln(sh.out, "Usage: load <file|url>")
			break
		}
		err = sh.player.LoadURL(ctx, strings.Join(args, " "))
	case "volume", "vol":
		if len(args) == 0 {
			fmt.Fprintf(sh.out, "Volume: %.0f%%\n", sh.mgr.MasterVolume()*100)
			break
		}
		v, perr := strconv.ParseFloat(args[0], 64)
		if perr != nil {
			fmt.Fprintf(sh.out, "Invalid volume: %s\n", args[0])
			break
		}
		sh.mgr.SetMasterVolume(v / 100)
		fmt.Fprintf(sh.out, "Volume: %.0f%%\n", sh.mgr.MasterVolume()*100)
	case "status", "s":
		sh.status()
	default:
		fmt.Fprintf(sh.out, "Unknown command: %s (type 'help')\n", cmd)
	}

	if err != nil {
		logger.Debug("playlist command failed", "cmd", cmd, "err", err)
		fmt.Fprintln(sh.out, playlist.UserMessage(err))
	}
	return true
}

func (sh *playlistShell) help() {
	fmt.Fprintf(sh.out, "Commands:\n")
	fmt.Fprintf(sh.out, "  play                 Play or resume the current song\n")
	fmt.Fprintf(sh.out, "  pause                Pause, keeping the position\n")
	fmt.Fprintf(sh.out, "  stop                 Stop and rewind\n")
	fmt.Fprintf(sh.out, "  seek <sec|m:ss>      Jump to a position\n")
	fmt.Fprintf(sh.out, "  next / prev          Change song\n")
	fmt.Fprintf(sh.out, "  list                 Show the playlist\n")
	fmt.Fprintf(sh.out, "  load <file|url>      Add a song and select it\n")
	fmt.Fprintf(sh.out, "  volume [0-100]       Show or set the master volume\n")
	fmt.Fprintf(sh.out, "  status               Show the current song and position\n")
	fmt.Fprintf(sh.out, "  exit                 Leave the shell\n")
}

func (sh *playlistShell) list() {
	items := sh.player.Items()
	if len(items) == 0 {
		fmt.Fprintln(sh.out, "Playlist is empty.")
		return
	}
	current := sh.player.Index()
	for i, it := range items {
		marker := "  "
		if i == current {
			marker = "> "
		}
		line := fmt.Sprintf("%s%2d. %s", marker, i+1, it.Name)
		switch {
		case it.Err != nil:
			line += "  (failed)"
		case it.Buffer != nil:
			line += "  " + formatSeconds(it.Buffer.Duration())
		}
		fmt.Fprintln(sh.out, line)
	}
}

func (sh *playlistShell) status() {
	items := sh.player.Items()
	i := sh.player.Index()
	if i < 0 || i >= len(items) {
		fmt.Fprintf(sh.out, "%s, nothing selected\n", sh.player.State())
		return
	}
	fmt.Fprintf(sh.out, "%s: %s  %s / %s\n", sh.player.State(), items[i].Name,
		formatSeconds(sh.player.Position()), formatSeconds(sh.player.Duration()))
}

// errPosition rejects positions that are not finite.
var errPosition = errors.New("position must be a finite number")

// parseSeconds accepts "42", "42.5" and "1:05".
func parseSeconds(s string) (float64, error) {
	var v float64
	if mins, sec, ok := strings.Cut(s, ":"); ok {
		m, err := strconv.Atoi(mins)
		if err != nil {
			return 0, err
		}
		ss, err := strconv.ParseFloat(sec, 64)
		if err != nil {
			return 0, err
		}
		v = float64(m)*60 + ss
	} else {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		v = f
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errPosition
	}
	return v, nil
}

func formatSeconds(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
