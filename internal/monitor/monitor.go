// Package monitor runs the polling cycle: for every channel it decides
// between a full search and a cheap status refresh, persists the result and
// picks the event to surface.
package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"nasfaqv2/brokerbot/ytmonitor/internal/events"
)

// EventStore is the per-channel snapshot cache.
type EventStore interface {
	LoadLatest(key string) []events.Event
	Save(key string, evs []events.Event) error
	Trim(key string, keep int) error
}

// Sink receives the aggregate state after every cycle.
type Sink interface {
	Publish(ctx context.Context, streams map[string]ChannelState) error
}

type Config struct {
	// CycleInterval is the period between cycles.
	CycleInterval time.Duration
	// StatusInterval is how long lightweight refreshes are used before every
	// channel goes back to a full search.
	StatusInterval time.Duration
	// SearchInterval is the minimum spacing between two full searches of the
	// same channel when StatusInterval triggers one; such a channel gets a
	// status refresh instead. It only bites when SearchInterval is longer than
	// the time between two interval-triggered fetches, and then channels no
	// longer flip to a full search in the same cycle: each waits for its own
	// last full search to age out. An empty cache always fetches. Zero
	// disables the guard and keeps the purely cycle-wide behaviour.
	SearchInterval time.Duration
	// Retention is how many snapshots to keep per channel.
	Retention int
}

// Action is the per-channel decision taken by a cycle.
type Action int

const (
	ActionFetch Action = iota
	ActionRefresh
)

func (a Action) String() string {
	if a == ActionFetch {
		return "fetch"
	}
	return "refresh"
}

// Monitor coordinates the cycle loop and owns every piece of cross-channel
// state. It is safe to read Streams while a cycle runs.
type Monitor struct {
	cfg     Config
	store   EventStore
	fetcher *Fetcher
	sinks   []Sink

	// Now is the clock; tests replace it.
	Now func() time.Time

	mu                sync.RWMutex
	channels          []*Channel
	lastStatusRefresh time.Time
	running           bool
}

func New(cfg Config, store EventStore, fetcher *Fetcher, channels []Source, sinks ...Sink) *Monitor {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 120 * time.Second
	}
	if cfg.Retention < 1 {
		cfg.Retention = 5
	}
	m := &Monitor{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		sinks:   sinks,
		Now:     time.Now,
	}
	for _, src := range channels {
		m.channels = append(m.channels, NewChannel(src))
	}
	return m
}

// AddSink registers another receiver for cycle results. Call before Run.
func (m *Monitor) AddSink(s Sink) {
	m.mu.Lock()
	m.sinks = append(m.sinks, s)
	m.mu.Unlock()
}

// Run executes a cycle immediately and then once per CycleInterval until ctx
// is done. A cycle in progress is never interrupted between channels by the
// ticker; ctx cancellation stops it before the next channel.
func (m *Monitor) Run(ctx context.Context) error {
	m.setRunning(true)
	defer m.setRunning(false)

	log.Printf("monitor: started channels=%d interval=%s status_interval=%s", len(m.channels), m.cfg.CycleInterval, m.cfg.StatusInterval)
	if err := m.RunCycle(ctx); err != nil && ctx.Err() == nil {
		log.Printf("monitor: cycle failed: %v", err)
	}

	t := time.NewTicker(m.cfg.CycleInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("monitor: stopping: %v", ctx.Err())
			return nil
		case <-t.C:
			if err := m.RunCycle(ctx); err != nil && ctx.Err() == nil {
				log.Printf("monitor: cycle failed: %v", err)
			}
		}
	}
}

// RunCycle processes every channel in order, advances the status-refresh
// epoch and publishes the result to the sinks.
func (m *Monitor) RunCycle(ctx context.Context) error {
	now := m.Now()
	m.mu.RLock()
	epoch := m.lastStatusRefresh
	m.mu.RUnlock()

	for _, ch := range m.channels {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.processChannel(ctx, ch, now, epoch)
	}

	m.mu.Lock()
	m.lastStatusRefresh = now
	m.mu.Unlock()

	m.publish(ctx)
	return nil
}

// Decide picks the action for a channel with the given cached events.
func (m *Monitor) Decide(ch *Channel, cached []events.Event, now, epoch time.Time) Action {
	if len(cached) == 0 {
		return ActionFetch
	}
	if now.Sub(epoch) < m.cfg.StatusInterval {
		return ActionRefresh
	}
	m.mu.RLock()
	last := ch.lastFullFetch
	m.mu.RUnlock()
	if m.cfg.SearchInterval > 0 && !last.IsZero() && now.Sub(last) < m.cfg.SearchInterval {
		return ActionRefresh
	}
	return ActionFetch
}

func (m *Monitor) processChannel(ctx context.Context, ch *Channel, now, epoch time.Time) {
	key := ch.Source.Key()
	cached := m.store.LoadLatest(key)
	action := m.Decide(ch, cached, now, epoch)

	var (
		evs     []events.Event
		persist bool
	)
	switch action {
	case ActionFetch:
		log.Printf("monitor: channel=%s name=%q full search", key, ch.Source.DisplayName())
		evs, persist = m.fetch(ctx, ch, now)
	case ActionRefresh:
		evs, persist = m.refresh(ctx, key, cached, now)
	}
	if ctx.Err() != nil {
		return
	}

	current := evs
	if persist {
		if err := m.store.Save(key, evs); err != nil {
			log.Printf("monitor: channel=%s save error (using in-memory events): %v", key, err)
		} else {
			current = m.store.LoadLatest(key)
		}
	} else {
		current = m.store.LoadLatest(key)
	}

	var selected *events.Event
	if ev, ok := events.Select(current, now); ok {
		selected = &ev
		log.Printf("monitor: channel=%s selected video=%s title=%q", key, ev.VideoID, ev.Title)
	} else {
		log.Printf("monitor: channel=%s no stream available", key)
	}

	m.mu.Lock()
	ch.selected = selected
	m.mu.Unlock()

	if err := m.store.Trim(key, m.cfg.Retention); err != nil {
		log.Printf("monitor: channel=%s trim error: %v", key, err)
	}
}

// fetch runs a full search. Virtual channels have nothing to search, so
// their cache is left for whoever populates it.
func (m *Monitor) fetch(ctx context.Context, ch *Channel, now time.Time) ([]events.Event, bool) {
	reg, ok := ch.Source.(Registered)
	if !ok {
		return nil, false
	}
	res := m.fetcher.Fetch(ctx, reg)
	if res.SearchFailed() {
		log.Printf("monitor: channel=%s every search failed, keeping previous snapshot", reg.ID)
		return nil, false
	}
	m.mu.Lock()
	ch.lastFullFetch = now
	m.mu.Unlock()
	return events.Filter(res.Events, now), true
}

// refresh updates cached events in place from videos.list.
func (m *Monitor) refresh(ctx context.Context, key string, cached []events.Event, now time.Time) ([]events.Event, bool) {
	ids := videoIDs(cached)
	if len(ids) == 0 {
		return events.Filter(cached, now), true
	}
	details, errs := m.fetcher.Details(ctx, ids)
	if len(errs) > 0 {
		log.Printf("monitor: channel=%s status refresh had %d failed batches", key, len(errs))
	}
	for i := range cached {
		if d, ok := details[cached[i].VideoID]; ok {
			cached[i].ApplyTiming(timing(d))
		}
	}
	return events.Filter(cached, now), true
}

func (m *Monitor) publish(ctx context.Context) {
	streams := m.Streams()
	m.mu.RLock()
	sinks := append([]Sink(nil), m.sinks...)
	m.mu.RUnlock()
	for _, s := range sinks {
		if err := s.Publish(ctx, streams); err != nil {
			log.Printf("monitor: publish %T: %v", s, err)
		}
	}
}

// Streams returns the current pick of every channel keyed by channel id, or
// by name for virtual channels.
func (m *Monitor) Streams() map[string]ChannelState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]ChannelState, len(m.channels))
	for _, ch := range m.channels {
		key := ch.Source.Key()
		st := ChannelState{ChannelID: key, Name: ch.Source.DisplayName()}
		if ch.selected != nil {
			ev := *ch.selected
			st.SelectedStream = &ev
		}
		out[key] = st
	}
	return out
}

// LastStatusRefresh is the start time of the last completed cycle.
func (m *Monitor) LastStatusRefresh() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastStatusRefresh
}

func (m *Monitor) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Monitor) setRunning(v bool) {
	m.mu.Lock()
	m.running = v
	m.mu.Unlock()
}
