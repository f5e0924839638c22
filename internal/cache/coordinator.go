// Package cache implements the invalidation coordinator: a per-key
// FRESH / STALE / FETCHING state machine with stale-while-revalidate
// semantics, topic-based invalidation, and capped-backoff retries.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/event"
	"go.uber.org/zap"
)

// ErrUnknownKey is returned by Get for a key that was never registered.
var ErrUnknownKey = errors.New("cache: unknown key")

// FetchFunc loads fresh data for one key. It must honor ctx.
type FetchFunc func(ctx context.Context) (any, error)

// State is the lifecycle state of one cache key.
type State string

const (
	StateFresh    State = "FRESH"
	StateStale    State = "STALE"
	StateFetching State = "FETCHING"
)

// Options configures a Coordinator.
type Options struct {
	// FetchTimeout bounds each fetch; an expired fetch counts as failed.
	FetchTimeout time.Duration
	// RetryBase and RetryMax shape the failure backoff (doubling, capped).
	RetryBase time.Duration
	RetryMax  time.Duration
	// OnRefresh, if set, is called (outside the lock) after a key turns
	// FRESH with new data.
	OnRefresh func(key string)
	Logger    *zap.Logger
}

// Coordinator owns every cached view and decides, per invalidation
// topic, which keys must be refetched. It guarantees at most one
// in-flight fetch per key, and at most one queued follow-up when an
// invalidation arrives mid-flight.
type Coordinator struct {
	opts Options

	mu     sync.Mutex
	keys   map[string]*entry
	topics map[string][]string // topic -> subscribed keys
	closed bool
}

type waitResult struct {
	data any
	err  error
}

type entry struct {
	key    string
	fetch  FetchFunc
	topics []string

	state       State
	data        any
	hasData     bool
	lastFetched time.Time
	lastError   error
	retries     int

	// pending records an invalidation received while FETCHING; it forces
	// exactly one follow-up fetch after the in-flight one resolves.
	pending bool

	retryTimer *time.Timer
	waiters    []chan waitResult
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 2 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Coordinator{
		opts:   opts,
		keys:   make(map[string]*entry),
		topics: make(map[string][]string),
	}
}

// Register adds a cache key with its fetcher and the topics whose
// changes invalidate it. The key starts STALE with no data, so the
// first Get suspends until the fetch resolves.
func (c *Coordinator) Register(key string, topics []string, fetch FetchFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.keys[key]; exists {
		return fmt.Errorf("cache: key %q already registered", key)
	}
	c.keys[key] = &entry{
		key:    key,
		fetch:  fetch,
		topics: topics,
		state:  StateStale,
	}
	for _, t := range topics {
		c.topics[t] = append(c.topics[t], key)
	}
	keysGauge.Inc()
	return nil
}

// Prime seeds a key with previously persisted data. The key stays STALE
// so the next Get revalidates, but callers see the primed value
// immediately instead of suspending.
func (c *Coordinator) Prime(key string, data any, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.keys[key]
	if !ok || e.hasData {
		return
	}
	e.data = data
	e.hasData = true
	e.lastFetched = fetchedAt
}

// BindBus subscribes the coordinator's topic table to the event bus.
func (c *Coordinator) BindBus(bus *event.Bus) {
	c.mu.Lock()
	topics := make([]string, 0, len(c.topics))
	for t := range c.topics {
		topics = append(topics, t)
	}
	c.mu.Unlock()

	for _, topic := range topics {
		topic := topic
		bus.Subscribe(topic, func(_ context.Context, _ event.Event) {
			c.Invalidate(topic)
		})
	}
}

// Invalidate marks every key subscribed to the topic as STALE. Keys
// with a fetch in flight are flagged for one follow-up fetch instead.
func (c *Coordinator) Invalidate(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	invalidationsTotal.WithLabelValues(topic).Inc()

	for _, key := range c.topics[topic] {
		e := c.keys[key]
		switch e.state {
		case StateFresh:
			e.state = StateStale
		case StateFetching:
			e.pending = true
		case StateStale:
			// Already due for a refetch.
		}
	}
}

// Get returns the current value for the key. FRESH data is returned
// directly. STALE data triggers a background refetch and the previous
// value is returned immediately (stale-while-revalidate). Only a key
// with no previous value suspends the caller until the first fetch
// resolves or ctx is done.
func (c *Coordinator) Get(ctx context.Context, key string) (any, error) {
	c.mu.Lock()
	e, ok := c.keys[key]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	switch e.state {
	case StateFresh:
		data := e.data
		c.mu.Unlock()
		hitsTotal.WithLabelValues(key, "fresh").Inc()
		return data, nil

	case StateStale:
		c.startFetchLocked(e)
	case StateFetching:
		// Fetch already in flight; fall through to stale data or wait.
	}

	if e.hasData {
		data := e.data
		c.mu.Unlock()
		hitsTotal.WithLabelValues(key, "stale").Inc()
		return data, nil
	}

	// No previous value: suspend until the in-flight fetch resolves.
	w := make(chan waitResult, 1)
	e.waiters = append(e.waiters, w)
	c.mu.Unlock()

	hitsTotal.WithLabelValues(key, "wait").Inc()
	select {
	case res := <-w:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Info reports a key's state for staleness indicators.
type Info struct {
	State       State
	LastFetched time.Time
	LastError   error
	Retries     int
}

// Inspect returns the current state of a key.
func (c *Coordinator) Inspect(key string) (Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.keys[key]
	if !ok {
		return Info{}, false
	}
	return Info{
		State:       e.state,
		LastFetched: e.lastFetched,
		LastError:   e.lastError,
		Retries:     e.retries,
	}, true
}

// Keys returns all registered keys.
func (c *Coordinator) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.keys))
	for k := range c.keys {
		keys = append(keys, k)
	}
	return keys
}

// Close stops all pending retry timers. In-flight fetches finish but
// schedule no further work.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for _, e := range c.keys {
		if e.retryTimer != nil {
			e.retryTimer.Stop()
			e.retryTimer = nil
		}
	}
}

// startFetchLocked transitions the entry to FETCHING and launches the
// fetch goroutine. Caller must hold c.mu; the FETCHING guard makes a
// second in-flight fetch for the same key structurally impossible.
func (c *Coordinator) startFetchLocked(e *entry) {
	if e.state == StateFetching || c.closed {
		return
	}
	e.state = StateFetching
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
	go c.runFetch(e)
}

func (c *Coordinator) runFetch(e *entry) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.FetchTimeout)
	data, err := e.fetch(ctx)
	cancel()
	fetchDuration.WithLabelValues(e.key).Observe(time.Since(start).Seconds())

	if err != nil {
		fetchTotal.WithLabelValues(e.key, "error").Inc()
		c.finishError(e, err)
		return
	}
	fetchTotal.WithLabelValues(e.key, "ok").Inc()
	c.finishSuccess(e, data)
}

func (c *Coordinator) finishSuccess(e *entry, data any) {
	c.mu.Lock()
	e.data = data
	e.hasData = true
	e.lastFetched = time.Now()
	e.lastError = nil
	e.retries = 0

	waiters := e.waiters
	e.waiters = nil

	followUp := e.pending
	if followUp {
		// Invalidated while in flight: apply the result, re-mark STALE,
		// and schedule exactly one follow-up fetch.
		e.pending = false
		e.state = StateStale
		c.startFetchLocked(e)
	} else {
		e.state = StateFresh
	}
	c.mu.Unlock()

	for _, w := range waiters {
		w <- waitResult{data: data}
	}
	if c.opts.OnRefresh != nil {
		c.opts.OnRefresh(e.key)
	}
}

func (c *Coordinator) finishError(e *entry, err error) {
	c.mu.Lock()
	// FETCHING -> ERROR -> STALE: the error is recorded, previous data
	// stays visible, and a decaying retry is scheduled.
	e.state = StateStale
	e.lastError = err
	e.retries++

	waiters := e.waiters
	e.waiters = nil
	e.pending = false // The scheduled retry satisfies any queued follow-up.

	var delay time.Duration
	if !c.closed {
		delay = backoff(c.opts.RetryBase, c.opts.RetryMax, e.retries)
		e.retryTimer = time.AfterFunc(delay, func() { c.retryKick(e.key) })
	}
	c.mu.Unlock()

	c.opts.Logger.Warn("cache fetch failed",
		zap.String("key", e.key),
		zap.Int("retries", e.retries),
		zap.Duration("next_retry", delay),
		zap.Error(err),
	)

	for _, w := range waiters {
		w <- waitResult{err: err}
	}
}

func (c *Coordinator) retryKick(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.keys[key]
	if !ok || c.closed {
		return
	}
	if e.state == StateStale {
		c.startFetchLocked(e)
	}
}

// backoff returns base*2^(attempt-1) capped at max.
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
