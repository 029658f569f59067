// Package playlist plays a list of whole songs one after another with the
// usual transport controls. A player never has more than one source
// sounding.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/bus"
)

var (
	ErrIndex      = errors.New("playlist index out of range")
	ErrSuperseded = errors.New("load superseded by a newer one")
	ErrPosition   = errors.New("seek position is not a number")
)

// State is the transport state.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Playing
	Paused
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Item is one song. Buffer is filled in on first load and shared read-only
// afterwards.
type Item struct {
	ID     string
	Name   string
	URL    string // http(s) URL or local path; empty for in-memory buffers
	Buffer *audio.Buffer
	Err    error // last load failure
}

// Event is published on every state change.
type Event struct {
	State State
	Index int
	Name  string
	Err   error
}

// Option configures a Player.
type Option func(*Player)

// WithFetcher replaces the default HTTP/file fetcher.
func WithFetcher(f Fetcher) Option {
	return func(p *Player) { p.fetch = f }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Player) {
		if l != nil {
			p.log = l
		}
	}
}

// WithEvents publishes state changes on b.
func WithEvents(b *bus.Bus[Event]) Option {
	return func(p *Player) { p.events = b }
}

// Player is the playlist transport.
type Player struct {
	mgr    *audio.Manager
	fetch  Fetcher
	log    *log.Logger
	events *bus.Bus[Event]

	mu      sync.Mutex
	items   []Item
	index   int
	state   State
	src     *audio.Source
	offset  float64 // seconds into the buffer where src started, or the paused position
	gen     int     // bumped whenever src changes; stale end callbacks compare it
	loadGen int
}

// New creates an idle player that plays through mgr.
func New(mgr *audio.Manager, opts ...Option) *Player {
	p := &Player{
		mgr:   mgr,
		fetch: HTTPFetcher{},
		log:   log.Default(),
		index: -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add appends items, giving them IDs and names where missing.
func (p *Player) Add(items ...Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		if it.Name == "" {
			it.Name = path.Base(it.URL)
		}
		p.items = append(p.items, it)
	}
}

// AddURLs appends one item per URL or path.
func (p *Player) AddURLs(urls ...string) {
	items := make([]Item, 0, len(urls))
	for _, u := range urls {
		items = append(items, Item{URL: u})
	}
	p.Add(items...)
}

// Items returns a copy of the playlist.
func (p *Player) Items() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Item(nil), p.items...)
}

// Index is the current item, or -1 before anything was loaded.
func (p *Player) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Duration of the current item in seconds, 0 if none is loaded.
func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current().Duration()
}

// Position is the playback position in seconds.
func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position()
}

// Load selects item index and decodes it if needed. A decode failure marks
// only that item as failed and leaves the player idle.
func (p *Player) Load(ctx context.Context, index int) error {
	p.mu.Lock()
	if index < 0 || index >= len(p.items) {
		p.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrIndex, index)
	}
	p.stopSource()
	p.index = index
	p.offset = 0
	p.loadGen++
	gen := p.loadGen
	item := p.items[index]
	if item.Buffer != nil {
		p.setState(Ready, nil)
		p.mu.Unlock()
		return nil
	}
	p.setState(Loading, nil)
	p.mu.Unlock()

	buf, err := p.decode(ctx, item)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.loadGen {
		return ErrSuperseded
	}
	if err != nil {
		p.items[index].Err = err
		p.log.Warn("cannot load item", "name", item.Name, "err", err)
		p.setState(Idle, err)
		return err
	}
	p.items[index].Buffer = buf
	p.items[index].Err = nil
	p.setState(Ready, nil)
	return nil
}

// LoadURL appends url to the playlist and loads it.
func (p *Player) LoadURL(ctx context.Context, url string) error {
	p.AddURLs(url)
	return p.Load(ctx, len(p.Items())-1)
}

// LoadBuffer appends an already decoded buffer and loads it.
func (p *Player) LoadBuffer(name string, buf *audio.Buffer) error {
	p.Add(Item{Name: name, Buffer: buf.Resample(p.mgr.SampleRate())})
	return p.Load(context.Background(), len(p.Items())-1)
}

func (p *Player) decode(ctx context.Context, item Item) (*audio.Buffer, error) {
	rc, err := p.fetch.Fetch(ctx, item.URL)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	buf, err := audio.Decode(item.Name, rc)
	if err != nil {
		return nil, err
	}
	return buf.Resample(p.mgr.SampleRate()), nil
}

// Play starts the current item, loading the first one if nothing is
// selected. Playing while already playing restarts the source at the
// current position, so at most one source is ever active.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	if len(p.items) == 0 {
		p.mu.Unlock()
		return nil
	}
	index := p.index
	if index < 0 {
		index = 0
	}
	needsLoad := p.index != index || p.items[index].Buffer == nil
	p.mu.Unlock()

	if needsLoad {
		if err := p.Load(ctx, index); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case Playing:
		p.offset = p.position()
	case Ended, Idle:
		p.offset = 0
	}
	if p.offset >= p.current().Duration() {
		p.offset = 0
	}
	return p.start()
}

// Pause keeps the position for the next Play.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Playing {
		return
	}
	p.offset = p.position()
	p.stopSource()
	p.setState(Paused, nil)
}

// Stop rewinds to the start and returns to Ready. It does nothing before
// an item is loaded.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.state == Idle || p.state == Loading {
		return
	}
	p.stopSource()
	p.offset = 0
	p.setState(Ready, nil)
}

// Seek moves to sec, clamped to the item length. While playing the source
// is restarted at the new offset. NaN is rejected with ErrPosition.
func (p *Player) Seek(sec float64) error {
	if math.IsNaN(sec) {
		return ErrPosition
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := p.current()
	if buf == nil {
		return nil
	}
	p.offset = clamp(sec, 0, buf.Duration())
	if p.state == Playing {
		return p.start()
	}
	return nil
}

// Next loads and plays the following item. At the last item it stops
// instead of wrapping.
func (p *Player) Next(ctx context.Context) error {
	p.mu.Lock()
	index, n := p.index, len(p.items)
	if index >= n-1 {
		p.stopLocked()
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.jump(ctx, index+1)
}

// Previous loads and plays the preceding item. At the first item it seeks
// to the start instead of wrapping.
func (p *Player) Previous(ctx context.Context) error {
	p.mu.Lock()
	index := p.index
	p.mu.Unlock()
	if index <= 0 {
		return p.Seek(0)
	}
	return p.jump(ctx, index-1)
}

// Close stops playback and forgets the current selection.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopSource()
	p.offset = 0
	p.loadGen++
	p.setState(Idle, nil)
}

func (p *Player) jump(ctx context.Context, index int) error {
	if err := p.Load(ctx, index); err != nil {
		return err
	}
	return p.Play(ctx)
}

// start replaces the active source with a new one at p.offset.
func (p *Player) start() error {
	buf := p.current()
	if buf == nil {
		return nil
	}
	c, err := p.mgr.Context()
	if err != nil {
		p.publish(err)
		return err
	}
	if c.State() != audio.StateRunning {
		if err := p.mgr.Resume(); err != nil {
			p.publish(err)
			return err
		}
	}

	p.stopSource()
	p.gen++
	gen := p.gen
	p.src = c.Start(buf.Voice(p.offset, audio.Params{Gain: 1}), c.CurrentTime())
	p.src.OnEnded(func() { p.ended(gen) })
	p.setState(Playing, nil)
	return nil
}

// ended runs when a source plays to its end: advance to the next item that
// loads, or go idle.
func (p *Player) ended(gen int) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.src = nil
	p.offset = 0
	p.setState(Ended, nil)
	next, n := p.index+1, len(p.items)
	p.mu.Unlock()

	for ; next < n; next++ {
		err := p.jump(context.Background(), next)
		if err == nil || errors.Is(err, ErrSuperseded) {
			return
		}
		if !errors.Is(err, audio.ErrDecode) && !errors.Is(err, ErrFetch) {
			break
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Ended || p.state == Idle {
		p.setState(Idle, nil)
	}
}

func (p *Player) stopSource() {
	if p.src == nil {
		return
	}
	p.gen++
	p.src.Stop()
	p.src = nil
}

func (p *Player) current() *audio.Buffer {
	if p.index < 0 || p.index >= len(p.items) {
		return nil
	}
	return p.items[p.index].Buffer
}

func (p *Player) position() float64 {
	pos := p.offset
	if p.state == Playing && p.src != nil {
		pos += p.src.Elapsed()
	}
	return clamp(pos, 0, p.current().Duration())
}

func (p *Player) setState(s State, err error) {
	p.state = s
	p.publish(err)
}

func (p *Player) publish(err error) {
	ev := Event{State: p.state, Index: p.index, Err: err}
	if p.index >= 0 && p.index < len(p.items) {
		ev.Name = p.items[p.index].Name
	}
	p.events.Publish(ev)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
