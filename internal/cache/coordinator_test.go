package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c := New(Options{
		FetchTimeout: time.Second,
		RetryBase:    10 * time.Millisecond,
		RetryMax:     50 * time.Millisecond,
		Logger:       zap.NewNop(),
	})
	t.Cleanup(c.Close)
	return c
}

// blockingFetcher lets the test control when each fetch resolves.
type blockingFetcher struct {
	calls   atomic.Int64
	release chan any
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{release: make(chan any)}
}

func (f *blockingFetcher) fetch(ctx context.Context) (any, error) {
	f.calls.Add(1)
	select {
	case v := <-f.release:
		if err, ok := v.(error); ok {
			return nil, err
		}
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestFirstGetSuspendsUntilFetchResolves(t *testing.T) {
	c := newTestCoordinator(t)
	f := newBlockingFetcher()
	if err := c.Register("devices", []string{"device.metrics"}, f.fetch); err != nil {
		t.Fatal(err)
	}

	got := make(chan any, 1)
	go func() {
		v, err := c.Get(context.Background(), "devices")
		if err != nil {
			got <- err
			return
		}
		got <- v
	}()

	// The caller must be suspended while the fetch is outstanding.
	select {
	case v := <-got:
		t.Fatalf("Get returned %v before fetch resolved", v)
	case <-time.After(50 * time.Millisecond):
	}

	f.release <- "payload"

	select {
	case v := <-got:
		if v != "payload" {
			t.Errorf("Get = %v, want payload", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Get never resolved")
	}

	if info, _ := c.Inspect("devices"); info.State != StateFresh {
		t.Errorf("state = %s, want FRESH", info.State)
	}
}

func TestStaleWhileRevalidate(t *testing.T) {
	c := newTestCoordinator(t)
	f := newBlockingFetcher()
	if err := c.Register("devices", []string{"device.metrics"}, f.fetch); err != nil {
		t.Fatal(err)
	}
	c.Prime("devices", "old", time.Now().Add(-time.Hour))

	c.Invalidate("device.metrics")

	// Get must return the stale value immediately, not block on the
	// background refetch.
	v, err := c.Get(context.Background(), "devices")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if v != "old" {
		t.Errorf("Get = %v, want old (stale)", v)
	}
	if info, _ := c.Inspect("devices"); info.State != StateFetching {
		t.Errorf("state = %s, want FETCHING", info.State)
	}

	f.release <- "new"
	waitForState(t, c, "devices", StateFresh)

	v, _ = c.Get(context.Background(), "devices")
	if v != "new" {
		t.Errorf("Get after refresh = %v, want new", v)
	}
}

func TestInvalidateTransitionsFreshToStale(t *testing.T) {
	c := newTestCoordinator(t)
	f := newBlockingFetcher()
	if err := c.Register("devices", []string{"device.metrics"}, f.fetch); err != nil {
		t.Fatal(err)
	}

	go func() { f.release <- "v1" }()
	if _, err := c.Get(context.Background(), "devices"); err != nil {
		t.Fatal(err)
	}
	waitForState(t, c, "devices", StateFresh)

	c.Invalidate("device.metrics")
	if info, _ := c.Inspect("devices"); info.State != StateStale {
		t.Errorf("state after invalidate = %s, want STALE", info.State)
	}

	// Unrelated topics leave the key alone.
	c.Invalidate("alerts.summary")
	if info, _ := c.Inspect("devices"); info.State != StateStale {
		t.Errorf("state after unrelated invalidate = %s, want STALE", info.State)
	}
}

func TestAtMostOneInFlightFetch(t *testing.T) {
	c := newTestCoordinator(t)
	f := newBlockingFetcher()
	if err := c.Register("devices", []string{"device.metrics"}, f.fetch); err != nil {
		t.Fatal(err)
	}
	c.Prime("devices", "old", time.Now())
	c.Invalidate("device.metrics")

	// Many concurrent Gets while STALE must start exactly one fetch.
	for i := 0; i < 10; i++ {
		if _, err := c.Get(context.Background(), "devices"); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(50 * time.Millisecond)
	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
	f.release <- "new"
}

func TestInvalidationDuringFetchForcesExactlyOneFollowUp(t *testing.T) {
	c := newTestCoordinator(t)
	f := newBlockingFetcher()
	if err := c.Register("devices", []string{"device.metrics"}, f.fetch); err != nil {
		t.Fatal(err)
	}
	c.Prime("devices", "old", time.Now())
	c.Invalidate("device.metrics")

	// Kick off the fetch.
	if _, err := c.Get(context.Background(), "devices"); err != nil {
		t.Fatal(err)
	}

	// Two invalidations while the fetch is in flight...
	c.Invalidate("device.metrics")
	c.Invalidate("device.metrics")

	// ...must result in exactly one additional fetch after the first
	// resolves: never dropped, never duplicated.
	f.release <- "v2"
	f.release <- "v3"

	waitForState(t, c, "devices", StateFresh)
	time.Sleep(50 * time.Millisecond)

	if n := f.calls.Load(); n != 2 {
		t.Errorf("fetch calls = %d, want 2 (one in-flight + one follow-up)", n)
	}
	v, _ := c.Get(context.Background(), "devices")
	if v != "v3" {
		t.Errorf("final value = %v, want v3", v)
	}
}

func TestFailedFetchKeepsStaleDataAndRetries(t *testing.T) {
	c := newTestCoordinator(t)

	var calls atomic.Int64
	fail := errors.New("backend unreachable")
	fetch := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return nil, fail
		}
		return "recovered", nil
	}
	if err := c.Register("devices", []string{"device.metrics"}, fetch); err != nil {
		t.Fatal(err)
	}
	c.Prime("devices", "old", time.Now())
	c.Invalidate("device.metrics")

	v, err := c.Get(context.Background(), "devices")
	if err != nil {
		t.Fatalf("Get error = %v, stale data must stay visible", err)
	}
	if v != "old" {
		t.Errorf("Get = %v, want old", v)
	}

	// The backoff retry must eventually recover the key.
	waitForState(t, c, "devices", StateFresh)

	v, _ = c.Get(context.Background(), "devices")
	if v != "recovered" {
		t.Errorf("Get after retry = %v, want recovered", v)
	}
	if info, _ := c.Inspect("devices"); info.LastError != nil {
		t.Errorf("LastError = %v, want nil after recovery", info.LastError)
	}
}

func TestFirstFetchErrorResolvesWaiter(t *testing.T) {
	c := newTestCoordinator(t)
	fail := errors.New("boom")
	fetch := func(ctx context.Context) (any, error) { return nil, fail }
	if err := c.Register("alerts", []string{"alerts.summary"}, fetch); err != nil {
		t.Fatal(err)
	}

	_, err := c.Get(context.Background(), "alerts")
	if !errors.Is(err, fail) {
		t.Errorf("Get error = %v, want %v", err, fail)
	}

	info, _ := c.Inspect("alerts")
	if info.State != StateStale {
		t.Errorf("state after failure = %s, want STALE", info.State)
	}
	if info.Retries == 0 {
		t.Error("retries not recorded")
	}
}

func TestGetUnknownKey(t *testing.T) {
	c := newTestCoordinator(t)
	if _, err := c.Get(context.Background(), "nope"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get error = %v, want ErrUnknownKey", err)
	}
}

func TestGetContextCancelledWhileWaiting(t *testing.T) {
	c := newTestCoordinator(t)
	f := newBlockingFetcher()
	if err := c.Register("devices", nil, f.fetch); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := c.Get(ctx, "devices"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get error = %v, want context.Canceled", err)
	}
	f.release <- "late"
}

func TestFetchTimeoutCountsAsFailure(t *testing.T) {
	c := New(Options{
		FetchTimeout: 20 * time.Millisecond,
		RetryBase:    time.Minute, // keep the retry out of this test
		RetryMax:     time.Minute,
		Logger:       zap.NewNop(),
	})
	defer c.Close()

	fetch := func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := c.Register("devices", nil, fetch); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get(context.Background(), "devices"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Get error = %v, want deadline exceeded", err)
	}
}

func waitForState(t *testing.T, c *Coordinator, key string, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if info, ok := c.Inspect(key); ok && info.State == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	info, _ := c.Inspect(key)
	t.Fatalf("key %q never reached %s (state = %s)", key, want, info.State)
}
