// Package netwatch tracks whether the remote store is reachable and starts a
// catch-up sync pass every time the device comes back online.
//
// The connectivity signal is either supplied by the host platform as a
// stream of booleans (Watch) or produced here by probing the remote on a
// ticker (Run).
package netwatch

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Event is one connectivity transition.
type Event struct {
	Connected bool      `json:"connected"`
	At        time.Time `json:"at"`
}

// Config holds configuration for the watcher.
type Config struct {
	// Interval is how often Run probes the remote.
	Interval time.Duration

	// Timeout bounds a single probe.
	Timeout time.Duration

	// OnConnect runs in its own goroutine on every transition into the
	// connected state, including the first observation after start.
	OnConnect func(ctx context.Context)

	// Logger for connectivity changes
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: 15 * time.Second,
		Timeout:  5 * time.Second,
		Logger:   log.New(os.Stderr, "[netwatch] ", log.LstdFlags),
	}
}

type state int

const (
	unknown state = iota
	offline
	online
)

// Watcher keeps the last known connectivity state.
type Watcher struct {
	config *Config

	mu       sync.Mutex
	state    state
	running  bool
	interval chan time.Duration

	events chan Event
	wg     sync.WaitGroup
}

// New creates a Watcher. A nil config uses DefaultConfig.
func New(config *Config) *Watcher {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &Watcher{
		config:   config,
		interval: make(chan time.Duration, 1),
		events:   make(chan Event, 16),
	}
}

// Online reports the last observed state. It is false until the first
// observation.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == online
}

// Events returns the channel of connectivity transitions. Events are
// dropped when nobody keeps up with the channel.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// IsRunning reports whether Watch or Run is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Watch consumes connectivity states until ctx is done or states is closed.
func (w *Watcher) Watch(ctx context.Context, states <-chan bool) error {
	if err := w.start(); err != nil {
		return err
	}
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case connected, ok := <-states:
			if !ok {
				return nil
			}
			w.Observe(ctx, connected)
		}
	}
}

// Run probes the remote immediately and then every Interval until ctx is done.
func (w *Watcher) Run(ctx context.Context, p Prober) error {
	if err := w.start(); err != nil {
		return err
	}
	defer w.stop()

	w.config.Logger.Printf("Probing every %s", w.config.Interval)
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.probe(ctx, p)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-w.interval:
			w.config.Logger.Printf("Probe interval changed to %s", d)
			ticker.Reset(d)
		case <-ticker.C:
			w.probe(ctx, p)
		}
	}
}

// SetInterval changes the probe interval of a running Run loop. Only the
// latest pending value is kept.
func (w *Watcher) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.interval:
	default:
	}
	select {
	case w.interval <- d:
	default:
	}
}

// Wait blocks until every OnConnect started so far has returned.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

func (w *Watcher) probe(ctx context.Context, p Prober) {
	pctx := ctx
	if w.config.Timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, w.config.Timeout)
		defer cancel()
	}
	err := p.Probe(pctx)
	if ctx.Err() != nil {
		return
	}
	w.Observe(ctx, err == nil)
}

// Observe records one connectivity reading. Only changes produce events.
func (w *Watcher) Observe(ctx context.Context, connected bool) {
	next := offline
	if connected {
		next = online
	}

	w.mu.Lock()
	if w.state == next {
		w.mu.Unlock()
		return
	}
	w.state = next
	w.mu.Unlock()

	ev := Event{Connected: connected, At: time.Now()}
	select {
	case w.events <- ev:
	default:
		w.config.Logger.Printf("WARNING: Event channel full, dropping %v", ev)
	}

	if !connected {
		w.config.Logger.Println("Connectivity lost")
		return
	}
	w.config.Logger.Println("Connectivity restored")
	if w.config.OnConnect != nil {
		// The pass outlives the reading that triggered it.
		bg := context.WithoutCancel(ctx)
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.config.OnConnect(bg)
		}()
	}
}

func (w *Watcher) start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	return nil
}

func (w *Watcher) stop() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}
